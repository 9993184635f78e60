package service

import (
	"context"
	"fmt"
	"interview_pilot_backend/internal/model"
	"interview_pilot_backend/internal/repository"
	"interview_pilot_backend/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ProgressionService 决定每道题的难度与时限，并向补全服务请求新题。
// 六道题的基准路线固定：0-1 easy/20s，2-3 medium/60s，4-5 hard/120s。
type ProgressionService struct {
	store      *SessionStore
	candidates *repository.CandidateRepository
	completer  Completer
	hub        *SessionHub
}

func NewProgressionService(store *SessionStore, candidates *repository.CandidateRepository, completer Completer, hub *SessionHub) *ProgressionService {
	return &ProgressionService{
		store:      store,
		candidates: candidates,
		completer:  InstrumentCompleter(completer, "question"),
		hub:        hub,
	}
}

// GetDifficultyByStep 基准映射，与历史无关
func GetDifficultyByStep(stepIndex int) (model.Difficulty, int) {
	switch {
	case stepIndex <= 1:
		return model.DifficultyEasy, 20
	case stepIndex <= 3:
		return model.DifficultyMedium, 60
	default:
		return model.DifficultyHard, 120
	}
}

// ComputeAdaptiveNextDifficulty 仅在 stepIndex == 2 评估一次的分支：
// 前两题均得 9 分及以上时直接跳到 hard/120 并永久标记 alteredPath，
// 其余情况回落基准映射。
func (s *ProgressionService) ComputeAdaptiveNextDifficulty(candidateID string) (model.Difficulty, int) {
	st, ok := s.store.Snapshot(candidateID)
	if !ok {
		return GetDifficultyByStep(0)
	}
	if st.StepIndex != 2 {
		return GetDifficultyByStep(st.StepIndex)
	}
	if len(st.Answers) >= 2 &&
		st.Answers[0].Score != nil && *st.Answers[0].Score >= 9 &&
		st.Answers[1].Score != nil && *st.Answers[1].Score >= 9 {
		s.store.MarkAlteredPath(candidateID, st.Epoch)
		logger.Log.Info("adaptive path taken, escalating question 3 to hard",
			zap.String("candidateId", candidateID))
		return model.DifficultyHard, 120
	}
	return GetDifficultyByStep(st.StepIndex)
}

// NextQuestion 按当前步数取（自适应）难度，携带此前问答上下文向模型
// 要一道新题并追加进会话。模型给出的 seconds 优先，缺省回落策略值。
// 输出不合 schema 属硬错误，不追加任何状态。
func (s *ProgressionService) NextQuestion(ctx context.Context, candidateID string) (*model.Question, error) {
	st, ok := s.store.Snapshot(candidateID)
	if !ok {
		return nil, fmt.Errorf("no interview session for candidate %s", candidateID)
	}
	if len(st.Questions) >= model.TotalQuestions {
		return nil, fmt.Errorf("question plan exhausted for candidate %s", candidateID)
	}
	epoch := st.Epoch

	difficulty, seconds := s.ComputeAdaptiveNextDifficulty(candidateID)

	var profile *model.Candidate
	if s.candidates != nil {
		if p, err := s.candidates.FindByID(candidateID); err == nil {
			profile = p
		}
	}

	step := st.StepIndex
	if step > len(st.Questions) {
		step = len(st.Questions)
	}
	previous := make([]qaPair, 0, step)
	for i := 0; i < step && i < len(st.Questions); i++ {
		p := qaPair{Question: st.Questions[i].Text}
		if i < len(st.Answers) {
			p.Answer = st.Answers[i].Text
		}
		previous = append(previous, p)
	}

	system, user := buildQuestionPrompt(profile, difficulty, seconds, previous)
	raw, err := s.completer.Complete(ctx, system, user)
	if err != nil {
		return nil, err
	}
	out, err := decodeQuestionOut(raw)
	if err != nil {
		return nil, err
	}

	q := model.Question{
		ID:         out.ID,
		Difficulty: model.Difficulty(out.Difficulty),
		Text:       out.Text,
		Seconds:    out.Seconds,
		Rubric:     out.Rubric,
	}
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	if q.Seconds <= 0 {
		q.Seconds = seconds
	}

	if !s.store.AddQuestion(candidateID, epoch, q) {
		// 会话在等待模型期间被重置/移除，结果作废
		logger.Log.Warn("discarding question for stale session",
			zap.String("candidateId", candidateID))
		return nil, nil
	}

	if s.hub != nil {
		s.hub.Publish(candidateID, SessionEvent{
			Type: EventQuestion,
			Data: map[string]interface{}{
				"questionId": q.ID,
				"difficulty": q.Difficulty,
				"text":       q.Text,
				"seconds":    q.Seconds,
			},
		})
	}
	return &q, nil
}
