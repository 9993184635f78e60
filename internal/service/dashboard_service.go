package service

import (
	"context"
	"encoding/json"
	"interview_pilot_backend/internal/model"
	"interview_pilot_backend/internal/repository"
	"interview_pilot_backend/internal/util"
	"sort"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	dashboardCacheKey = "interview:dashboard:"
	dashboardCacheTTL = 30 * time.Second
)

// DashboardService 面试官控制台：候选人列表（归档成绩 + 在线会话
// 实时阶段合并视图）、候选人详情、welcome-back 提示。
type DashboardService struct {
	Candidates *repository.CandidateRepository
	Archives   *repository.InterviewRepository
	Store      *SessionStore
	Hub        *SessionHub
	Redis      *redis.Client
}

func NewDashboardService(
	candidates *repository.CandidateRepository,
	archives *repository.InterviewRepository,
	store *SessionStore,
	hub *SessionHub,
	rdb *redis.Client,
) *DashboardService {
	return &DashboardService{
		Candidates: candidates,
		Archives:   archives,
		Store:      store,
		Hub:        hub,
		Redis:      rdb,
	}
}

// CandidateRow 列表一行的合并视图
type CandidateRow struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone"`
	Stage       string   `json:"stage"`
	Score       *float64 `json:"score,omitempty"`
	Level       string   `json:"level,omitempty"`
	AlteredPath bool     `json:"alteredPath"`
	CompletedAt *string  `json:"completedAt,omitempty"`
	CreatedAt   string   `json:"createdAt"`
}

type CandidateList struct {
	Rows  []CandidateRow `json:"rows"`
	Total int64          `json:"total"`
}

// ListCandidates 搜索 + 排序 + 分页。sortBy 支持 score/date/name，
// 结果短暂缓存在 Redis，写路径不失效，30 秒内以旧换快。
func (s *DashboardService) ListCandidates(ctx context.Context, search, sortBy, order string, page, limit int) (*CandidateList, error) {
	cacheKey := dashboardCacheKey + strings.Join([]string{search, sortBy, order,
		time.Now().Truncate(dashboardCacheTTL).Format(time.RFC3339)}, "|")
	if s.Redis != nil {
		if val, err := s.Redis.Get(ctx, cacheKey).Result(); err == nil {
			var cached CandidateList
			if json.Unmarshal([]byte(val), &cached) == nil {
				return pageOf(&cached, page, limit), nil
			}
		}
	}

	candidates, total, err := s.Candidates.List(search, 1, 1000)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ID
	}
	archives, err := s.Archives.ListByCandidates(ids)
	if err != nil {
		return nil, err
	}
	latest := make(map[string]*model.InterviewArchive, len(archives))
	for i := range archives {
		a := &archives[i]
		if prev, ok := latest[a.CandidateID]; !ok || a.CompletedAt.After(prev.CompletedAt) {
			latest[a.CandidateID] = a
		}
	}

	rows := make([]CandidateRow, 0, len(candidates))
	for _, c := range candidates {
		row := CandidateRow{
			ID:        c.ID,
			Name:      c.Name,
			Email:     c.Email,
			Phone:     c.Phone,
			Stage:     string(model.StageCollectingProfile),
			CreatedAt: c.CreatedAt.Format(time.RFC3339),
		}
		if st, ok := s.Store.Snapshot(c.ID); ok {
			row.Stage = string(st.Stage)
			if st.Summary != nil {
				v := st.Summary.Score
				row.Score = &v
				row.Level = string(st.Summary.Level)
				row.AlteredPath = st.Summary.AlteredPath
			}
		}
		if a, ok := latest[c.ID]; ok && row.Score == nil {
			row.Stage = string(model.StageCompleted)
			v := a.Score
			row.Score = &v
			row.Level = a.Level
			row.AlteredPath = a.AlteredPath
			ts := a.CompletedAt.Format(time.RFC3339)
			row.CompletedAt = &ts
		}
		rows = append(rows, row)
	}

	sortRows(rows, sortBy, order)

	full := &CandidateList{Rows: rows, Total: total}
	if s.Redis != nil {
		if raw, err := json.Marshal(full); err == nil {
			s.Redis.Set(ctx, cacheKey, raw, dashboardCacheTTL)
		}
	}
	return pageOf(full, page, limit), nil
}

func sortRows(rows []CandidateRow, sortBy, order string) {
	desc := order != "asc"
	less := func(i, j int) bool {
		switch sortBy {
		case "name":
			return rows[i].Name < rows[j].Name
		case "date":
			return rows[i].CreatedAt < rows[j].CreatedAt
		default: // score，未出分的排末尾
			si, sj := rows[i].Score, rows[j].Score
			if si == nil && sj == nil {
				return rows[i].CreatedAt < rows[j].CreatedAt
			}
			if si == nil {
				return !desc
			}
			if sj == nil {
				return desc
			}
			return *si < *sj
		}
	}
	if desc {
		sort.SliceStable(rows, func(i, j int) bool { return less(j, i) })
	} else {
		sort.SliceStable(rows, less)
	}
}

func pageOf(list *CandidateList, page, limit int) *CandidateList {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	start := (page - 1) * limit
	if start >= len(list.Rows) {
		return &CandidateList{Rows: []CandidateRow{}, Total: list.Total}
	}
	end := start + limit
	if end > len(list.Rows) {
		end = len(list.Rows)
	}
	return &CandidateList{Rows: list.Rows[start:end], Total: list.Total}
}

// CandidateDetail 档案 + 会话全量快照（含完整问答与总结）
type CandidateDetail struct {
	Candidate *model.Candidate        `json:"candidate"`
	Session   *model.InterviewState   `json:"session,omitempty"`
	Archive   *model.InterviewArchive `json:"archive,omitempty"`
}

func (s *DashboardService) GetCandidateDetail(candidateID string) (*CandidateDetail, error) {
	candidate, err := s.Candidates.FindByID(candidateID)
	if err != nil {
		return nil, util.ErrCandidateNotFound
	}
	detail := &CandidateDetail{Candidate: candidate}
	if st, ok := s.Store.Snapshot(candidateID); ok {
		detail.Session = &st
	}
	if a, err := s.Archives.FindLatestByCandidate(candidateID); err == nil {
		detail.Archive = a
	}
	return detail, nil
}

// WelcomeBack 最近活跃候选人若留有未完的 running/paused 会话，
// 返回其 id 供前端弹 welcome-back
func (s *DashboardService) WelcomeBack(ctx context.Context) (string, bool) {
	id, err := s.Hub.LastActiveCandidate(ctx)
	if err != nil || id == "" {
		return "", false
	}
	st, ok := s.Store.Snapshot(id)
	if !ok {
		return "", false
	}
	if st.Stage == model.StageRunning || st.Stage == model.StagePaused {
		return id, true
	}
	return "", false
}

// DeleteCandidate 删除档案并级联归档与内存会话
func (s *DashboardService) DeleteCandidate(candidateID string) error {
	if err := s.Candidates.Delete(candidateID); err != nil {
		return err
	}
	if err := s.Archives.DeleteByCandidate(candidateID); err != nil {
		return err
	}
	s.Store.Remove(candidateID)
	return nil
}
