package service

import (
	"context"
	"encoding/json"
	"fmt"
	"interview_pilot_backend/internal/model"
	"interview_pilot_backend/internal/repository"
	"interview_pilot_backend/pkg/logger"
	"math"

	"go.uber.org/zap"
)

const (
	BadgeQuickThinker        = "Quick Thinker"
	BadgeConsistentPerformer = "Consistent Performer"
	BadgeHardQuestionHero    = "Hard Question Hero"
)

// ScoringService 把已完成的答案送评、在六题答毕后汇总收尾
type ScoringService struct {
	store      *SessionStore
	candidates *repository.CandidateRepository
	archive    *repository.InterviewRepository
	completer  Completer
	summarizer Completer
	hub        *SessionHub
}

func NewScoringService(store *SessionStore, candidates *repository.CandidateRepository, archive *repository.InterviewRepository, completer Completer, hub *SessionHub) *ScoringService {
	return &ScoringService{
		store:      store,
		candidates: candidates,
		archive:    archive,
		completer:  InstrumentCompleter(completer, "score"),
		summarizer: InstrumentCompleter(completer, "summary"),
		hub:        hub,
	}
}

// ScoreAnswer 定位答案与其题目并请求打分。答案或题目缺失为静默空操作
// （会话可能已被并发重置，视作已处理）。校验失败为硬错误，不产生任何
// 半提交状态。
func (s *ScoringService) ScoreAnswer(ctx context.Context, candidateID, answerID string) error {
	st, ok := s.store.Snapshot(candidateID)
	if !ok {
		return nil
	}
	epoch := st.Epoch

	var answer *model.Answer
	for i := range st.Answers {
		if st.Answers[i].ID == answerID {
			answer = &st.Answers[i]
			break
		}
	}
	if answer == nil {
		return nil
	}
	var question *model.Question
	for i := range st.Questions {
		if st.Questions[i].ID == answer.QuestionID {
			question = &st.Questions[i]
			break
		}
	}
	if question == nil {
		return nil
	}

	system, user := buildScorePrompt(*question, answer.Text)
	raw, err := s.completer.Complete(ctx, system, user)
	if err != nil {
		return err
	}
	out, err := decodeScoreOut(raw)
	if err != nil {
		return err
	}

	score := out.Score
	if !s.store.UpdateAnswerScore(candidateID, epoch, answerID, &score, out.Feedback) {
		logger.Log.Warn("discarding score for stale session",
			zap.String("candidateId", candidateID),
			zap.String("answerId", answerID))
		return nil
	}

	// 评分反馈以助手消息形式进入会话记录
	if msg, ok := s.store.PushMessage(candidateID, model.RoleAssistant, out.Feedback); ok && s.hub != nil {
		s.hub.Publish(candidateID, SessionEvent{
			Type: EventFeedback,
			Data: map[string]interface{}{
				"answerId":  answerID,
				"score":     score,
				"feedback":  out.Feedback,
				"messageId": msg.ID,
			},
		})
	}
	return nil
}

// scoreStats 均值与总体标准差，缺失分按 0 计
func scoreStats(answers []model.Answer) (mean, stddev float64) {
	if len(answers) == 0 {
		return 0, 0
	}
	var sum float64
	for _, a := range answers {
		if a.Score != nil {
			sum += *a.Score
		}
	}
	mean = sum / float64(len(answers))
	var sq float64
	for _, a := range answers {
		v := 0.0
		if a.Score != nil {
			v = *a.Score
		}
		d := v - mean
		sq += d * d
	}
	stddev = math.Sqrt(sq / float64(len(answers)))
	return mean, stddev
}

// computeBadges 三条规则彼此独立，可同时命中任意子集
func computeBadges(questions []model.Question, answers []model.Answer) []string {
	byID := make(map[string]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	badges := []string{}

	for _, a := range answers {
		if a.Score != nil && a.ElapsedSeconds < 5 && *a.Score >= 8 {
			badges = append(badges, BadgeQuickThinker)
			break
		}
	}

	mean, stddev := scoreStats(answers)
	if stddev < 1.5 && mean >= 7.5 {
		badges = append(badges, BadgeConsistentPerformer)
	}

	for _, a := range answers {
		q, ok := byID[a.QuestionID]
		if ok && q.Difficulty == model.DifficultyHard && a.Score != nil && *a.Score == 10 {
			badges = append(badges, BadgeHardQuestionHero)
			break
		}
	}

	return badges
}

// MaybeSummarize 六题全部作答后才动作：统计聚合、徽章推导、请求叙述性
// 总结、写入 summary 并把会话转入 completed，最后落库归档。
func (s *ScoringService) MaybeSummarize(ctx context.Context, candidateID string) error {
	st, ok := s.store.Snapshot(candidateID)
	if !ok {
		return nil
	}
	if len(st.Answers) < model.TotalQuestions {
		return nil
	}
	if st.Summary != nil {
		return nil
	}
	epoch := st.Epoch

	var profile *model.Candidate
	if s.candidates != nil {
		if p, err := s.candidates.FindByID(candidateID); err == nil {
			profile = p
		}
	}

	qa := make([]summaryQA, 0, len(st.Answers))
	for i, a := range st.Answers {
		item := summaryQA{Feedback: a.Feedback}
		if i < len(st.Questions) {
			item.Question = st.Questions[i].Text
		}
		if a.Score != nil {
			item.Score = *a.Score
		}
		qa = append(qa, item)
	}

	system, user := buildSummaryPrompt(profile, qa)
	raw, err := s.summarizer.Complete(ctx, system, user)
	if err != nil {
		return err
	}
	out, err := decodeSummaryOut(raw)
	if err != nil {
		return err
	}

	summary := model.InterviewSummary{
		Score:        out.OverallScore,
		Level:        model.SummaryLevel(out.Level),
		Strengths:    out.Strengths,
		Improvements: out.Improvements,
		Overview:     out.Summary,
		Badges:       computeBadges(st.Questions, st.Answers),
		AlteredPath:  st.Meta.AlteredPath,
	}

	if !s.store.SetSummary(candidateID, epoch, summary) {
		logger.Log.Warn("discarding summary for stale session",
			zap.String("candidateId", candidateID))
		return nil
	}
	final, ok := s.store.Complete(candidateID, epoch)
	if !ok {
		// SetSummary 与 Complete 之间被 reset，写入的 summary 已随旧状态
		// 一并丢弃，不得归档
		logger.Log.Warn("discarding completion for stale session",
			zap.String("candidateId", candidateID))
		return nil
	}

	if err := s.archiveSession(candidateID, final, summary); err != nil {
		// 归档失败不回滚会话完成，仪表盘可退回内存快照
		logger.Log.Error("failed to archive completed interview",
			zap.String("candidateId", candidateID), zap.Error(err))
	}

	if s.hub != nil {
		s.hub.Publish(candidateID, SessionEvent{
			Type: EventCompleted,
			Data: map[string]interface{}{
				"score":  summary.Score,
				"level":  summary.Level,
				"badges": summary.Badges,
			},
		})
	}
	return nil
}

func (s *ScoringService) archiveSession(candidateID string, st model.InterviewState, summary model.InterviewSummary) error {
	if s.archive == nil {
		return nil
	}
	sumJSON, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	qJSON, err := json.Marshal(st.Questions)
	if err != nil {
		return err
	}
	aJSON, err := json.Marshal(st.Answers)
	if err != nil {
		return err
	}
	completedAt := st.CompletedAt
	if completedAt == nil {
		return fmt.Errorf("session has no completion timestamp")
	}
	return s.archive.CreateArchive(&model.InterviewArchive{
		CandidateID: candidateID,
		Score:       summary.Score,
		Level:       string(summary.Level),
		AlteredPath: summary.AlteredPath,
		Summary:     sumJSON,
		Questions:   qJSON,
		Answers:     aJSON,
		CompletedAt: *completedAt,
	})
}
