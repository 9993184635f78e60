package service

import (
	"context"
	"encoding/json"
	"fmt"
	"interview_pilot_backend/internal/model"
	"interview_pilot_backend/internal/repository"
	"interview_pilot_backend/internal/util"
	"io"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// ResumeExtractor 从上传的简历文件提取纯文本。PDF/DOCX 的解析由
// 具体实现负责，服务层只消费文本。
type ResumeExtractor interface {
	Extract(ctx context.Context, filename, mime string, data []byte) (string, error)
}

// PlainTextExtractor 把 txt/markdown 类简历按原文读取
type PlainTextExtractor struct{}

func (PlainTextExtractor) Extract(ctx context.Context, filename, mime string, data []byte) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	switch ext {
	case ".txt", ".md", "":
		return string(data), nil
	}
	if strings.HasPrefix(mime, "text/") {
		return string(data), nil
	}
	return "", util.ErrResumeUnsupported
}

// 技能词典，含双词技能的 bigram 匹配
var defaultSkills = []string{
	"react", "typescript", "javascript", "node", "express",
	"graphql", "redux", "tailwind", "css", "html",
	"python", "java", "docker", "kubernetes", "aws",
}

var (
	resumeEmailRe = regexp.MustCompile(`(?i)[A-Z0-9._%+\-]+@[A-Z0-9.\-]+\.[A-Z]{2,}`)
	resumePhoneRe = regexp.MustCompile(`(?:\+?[0-9][\s\-]?)?(?:\(?[0-9]{3}\)?[\s\-]?)?[0-9]{3}[\s\-]?[0-9]{4}`)
	nonDigitRe    = regexp.MustCompile(`[^0-9]`)
	nameTokenRe   = regexp.MustCompile(`^[A-Z][a-zA-Z\-']+$`)
	nameCleanRe   = regexp.MustCompile(`[^a-zA-Z\s\-']`)
	spacesRe      = regexp.MustCompile(`\s{2,}`)
	tokenSplitRe  = regexp.MustCompile(`[^a-z0-9+#.]+`)
)

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizePhone 规整为带国家码的数字串；10 位默认北美 +1
func normalizePhone(s string) string {
	digits := nonDigitRe.ReplaceAllString(s, "")
	switch {
	case len(digits) == 10:
		return "+1" + digits
	case len(digits) == 11 && strings.HasPrefix(digits, "1"):
		return "+" + digits
	case len(digits) > 0 && strings.HasPrefix(digits, "0"):
		return digits
	case len(digits) > 0:
		return "+" + digits
	}
	return ""
}

// guessNameFromHeader 取首个非空行，2 到 4 个首字母大写的词视作姓名
func guessNameFromHeader(text string) string {
	var header string
	for _, line := range strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' }) {
		if strings.TrimSpace(line) != "" {
			header = line
			break
		}
	}
	cleaned := strings.TrimSpace(spacesRe.ReplaceAllString(nameCleanRe.ReplaceAllString(header, " "), " "))
	var cap []string
	for _, t := range strings.Fields(cleaned) {
		if nameTokenRe.MatchString(t) {
			cap = append(cap, t)
		}
	}
	if len(cap) >= 2 && len(cap) <= 4 {
		return strings.Join(cap, " ")
	}
	return ""
}

func extractEmail(text string) string {
	if m := resumeEmailRe.FindString(text); m != "" {
		return normalizeEmail(m)
	}
	return ""
}

func extractPhone(text string) string {
	if m := resumePhoneRe.FindString(text); m != "" {
		return normalizePhone(m)
	}
	return ""
}

func extractSkills(text string, dictionary []string) []string {
	lower := strings.ToLower(text)
	found := make(map[string]bool)
	for _, skill := range dictionary {
		re := regexp.MustCompile(`(?:^|[^a-z])` + regexp.QuoteMeta(skill) + `(?:$|[^a-z])`)
		if re.MatchString(lower) {
			found[skill] = true
		}
	}
	dict := make(map[string]bool, len(dictionary))
	for _, s := range dictionary {
		dict[s] = true
	}
	tokens := tokenSplitRe.Split(lower, -1)
	for i := 0; i+1 < len(tokens); i++ {
		if tokens[i] == "" || tokens[i+1] == "" {
			continue
		}
		bigram := tokens[i] + " " + tokens[i+1]
		if dict[bigram] {
			found[bigram] = true
		}
	}
	out := make([]string, 0, len(found))
	for s := range found {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// ResumeService 简历上传、落盘与字段提取。提取结果只补候选人档案里
// 的空字段，绝不覆盖已有值，也不为缺失字段编造内容。
type ResumeService struct {
	candidates *repository.CandidateRepository
	storage    *StorageService
	extractor  ResumeExtractor
}

func NewResumeService(candidates *repository.CandidateRepository, storage *StorageService, extractor ResumeExtractor) *ResumeService {
	if extractor == nil {
		extractor = PlainTextExtractor{}
	}
	return &ResumeService{candidates: candidates, storage: storage, extractor: extractor}
}

// Parse 纯解析，不触库
func (s *ResumeService) Parse(ctx context.Context, filename, mime string, data []byte) (*model.ParsedResume, error) {
	text, err := s.extractor.Extract(ctx, filename, mime, data)
	if err != nil {
		return nil, err
	}
	return &model.ParsedResume{
		Fields: model.ResumeFields{
			Name:  guessNameFromHeader(text),
			Email: extractEmail(text),
			Phone: extractPhone(text),
		},
		Skills: extractSkills(text, defaultSkills),
		Meta: model.ResumeMeta{
			Filename: filename,
			Size:     int64(len(data)),
			Mime:     mime,
		},
	}, nil
}

// Ingest 存储简历文件、解析并回填候选人档案
func (s *ResumeService) Ingest(ctx context.Context, candidateID, filename, mime string, reader io.Reader) (*model.ParsedResume, error) {
	candidate, err := s.candidates.FindByID(candidateID)
	if err != nil {
		return nil, util.ErrCandidateNotFound
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	parsed, err := s.Parse(ctx, filename, mime, data)
	if err != nil {
		return nil, err
	}

	objectName := fmt.Sprintf("resumes/%s/%s%s", candidateID, uuid.New().String(), path.Ext(filename))
	url, err := s.storage.Upload(ctx, objectName, strings.NewReader(string(data)), int64(len(data)), mime)
	if err != nil {
		return nil, fmt.Errorf("store resume: %w", err)
	}

	if candidate.Name == "" && parsed.Fields.Name != "" {
		candidate.Name = parsed.Fields.Name
	}
	if candidate.Email == "" && parsed.Fields.Email != "" {
		candidate.Email = parsed.Fields.Email
	}
	if candidate.Phone == "" && parsed.Fields.Phone != "" {
		candidate.Phone = parsed.Fields.Phone
	}
	if len(parsed.Skills) > 0 {
		if raw, err := json.Marshal(parsed.Skills); err == nil {
			candidate.Skills = raw
		}
	}
	candidate.ResumeFilename = parsed.Meta.Filename
	candidate.ResumeSize = parsed.Meta.Size
	candidate.ResumeMime = parsed.Meta.Mime
	candidate.ResumeURL = url

	if err := s.candidates.Update(candidate); err != nil {
		return nil, err
	}
	return parsed, nil
}
