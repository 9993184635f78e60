package service

import (
	"context"
	"fmt"
	"interview_pilot_backend/internal/model"
	"interview_pilot_backend/internal/util"
	"interview_pilot_backend/pkg/logger"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type candidateFinder interface {
	FindByID(id string) (*model.Candidate, error)
}

// InterviewService 面试流程编排：开始/暂停/恢复/重置/作答，
// 以及答案落库后的异步评分、出下一题或收尾总结。
// 会话状态的唯一权威是 SessionStore，本层只做转移编排。
type InterviewService struct {
	store       *SessionStore
	clock       *InterviewClock
	progression *ProgressionService
	scoring     *ScoringService
	hub         *SessionHub
	candidates  candidateFinder

	// askMu/asking 保证同一候选人同时至多一次出题请求在途
	askMu  sync.Mutex
	asking map[string]bool
}

func NewInterviewService(
	store *SessionStore,
	clock *InterviewClock,
	progression *ProgressionService,
	scoring *ScoringService,
	hub *SessionHub,
	candidates candidateFinder,
) *InterviewService {
	s := &InterviewService{
		store:       store,
		clock:       clock,
		progression: progression,
		scoring:     scoring,
		hub:         hub,
		candidates:  candidates,
		asking:      make(map[string]bool),
	}
	clock.SetExpireHandler(s.handleAutoSubmitted)
	return s
}

// State 当前会话快照，不存在则建一个 collecting_profile 的新会话
func (s *InterviewService) State(candidateID string) model.InterviewState {
	return s.store.Ensure(candidateID)
}

// Start 进入 running 并请求第一题。要求候选人三项资料均已合法，
// 已完成的会话拒绝重入，运行中重复调用为幂等。
func (s *InterviewService) Start(ctx context.Context, candidateID string) (model.InterviewState, error) {
	candidate, err := s.candidates.FindByID(candidateID)
	if err != nil {
		return model.InterviewState{}, util.ErrCandidateNotFound
	}
	if !util.ValidName(candidate.Name) || !util.ValidEmail(candidate.Email) || !util.ValidPhone(candidate.Phone) {
		return model.InterviewState{}, util.ErrProfileIncomplete
	}

	st := s.store.Ensure(candidateID)
	switch st.Stage {
	case model.StageCompleted:
		return st, util.ErrInterviewCompleted
	case model.StageRunning:
		s.ensureActiveQuestion(ctx, candidateID)
		s.clock.Start(candidateID)
		st, _ = s.store.Snapshot(candidateID)
		return st, nil
	case model.StagePaused:
		return s.Resume(ctx, candidateID)
	}

	st = s.store.Start(candidateID)
	if _, err := s.askNext(ctx, candidateID); err != nil {
		return st, err
	}
	s.clock.Start(candidateID)
	st, _ = s.store.Snapshot(candidateID)
	return st, nil
}

func (s *InterviewService) Pause(candidateID string) (model.InterviewState, error) {
	st, ok := s.store.Snapshot(candidateID)
	if !ok {
		return model.InterviewState{}, util.ErrSessionNotFound
	}
	if st.Stage != model.StageRunning {
		return st, util.ErrSessionNotRunning
	}
	st, _ = s.store.Pause(candidateID)
	s.clock.Stop(candidateID)
	return st, nil
}

func (s *InterviewService) Resume(ctx context.Context, candidateID string) (model.InterviewState, error) {
	st, ok := s.store.Snapshot(candidateID)
	if !ok {
		return model.InterviewState{}, util.ErrSessionNotFound
	}
	if st.Stage == model.StageCompleted {
		return st, util.ErrInterviewCompleted
	}
	if st.Stage == model.StagePaused {
		st, _ = s.store.Resume(candidateID)
	} else if st.Stage != model.StageRunning {
		return st, nil
	}
	s.ensureActiveQuestion(ctx, candidateID)
	s.clock.Start(candidateID)
	st, _ = s.store.Snapshot(candidateID)
	return st, nil
}

// ensureActiveQuestion 中途出题失败后的恢复路径：运行中、无在答题目、
// 题数与答数齐平且未满六题时补发一题。正常流转下条件不成立，为空操作。
func (s *InterviewService) ensureActiveQuestion(ctx context.Context, candidateID string) {
	st, ok := s.store.Snapshot(candidateID)
	if !ok || st.Stage != model.StageRunning {
		return
	}
	if st.Timer.QuestionID != "" {
		return
	}
	if len(st.Questions) != len(st.Answers) || len(st.Answers) >= model.TotalQuestions {
		return
	}
	if _, err := s.askNext(ctx, candidateID); err != nil {
		logger.Log.Error("question recovery failed",
			zap.String("candidateId", candidateID), zap.Error(err))
	}
}

// Reset 丢弃会话全部进度回到资料收集阶段，在途异步结果经世代号作废
func (s *InterviewService) Reset(candidateID string) model.InterviewState {
	s.clock.Stop(candidateID)
	return s.store.Reset(candidateID)
}

// Submit 手动提交当前题目的答案。耗时按题目限时减剩余秒数计。
func (s *InterviewService) Submit(ctx context.Context, candidateID, text string) (model.InterviewState, error) {
	st, ok := s.store.Snapshot(candidateID)
	if !ok {
		return model.InterviewState{}, util.ErrSessionNotFound
	}
	if st.Stage != model.StageRunning {
		return st, util.ErrSessionNotRunning
	}
	if st.Timer.QuestionID == "" {
		return st, util.ErrNoActiveQuestion
	}

	var question *model.Question
	for i := range st.Questions {
		if st.Questions[i].ID == st.Timer.QuestionID {
			question = &st.Questions[i]
			break
		}
	}
	if question == nil {
		return st, util.ErrNoActiveQuestion
	}

	now := time.Now()
	elapsed := question.Seconds - st.Timer.Remaining
	if elapsed < 0 {
		elapsed = 0
	}
	answer := model.Answer{
		ID:             uuid.New().String(),
		QuestionID:     question.ID,
		Text:           text,
		StartedAt:      now.Add(-time.Duration(elapsed) * time.Second),
		SubmittedAt:    &now,
		ElapsedSeconds: elapsed,
		AutoSubmitted:  false,
	}
	if !s.store.SubmitAnswer(candidateID, answer) {
		return st, util.ErrSessionNotRunning
	}
	s.store.PushMessage(candidateID, model.RoleUser, text)

	go s.afterAnswer(candidateID, answer.ID)

	st, _ = s.store.Snapshot(candidateID)
	return st, nil
}

// handleAutoSubmitted 倒计时归零时钟回调，走与手动提交相同的后续链路
func (s *InterviewService) handleAutoSubmitted(candidateID string, answer model.Answer) {
	s.store.PushMessage(candidateID, model.RoleAssistant, "Time is up, the answer was submitted automatically.")
	s.afterAnswer(candidateID, answer.ID)
}

// afterAnswer 评分，然后出下一题或收尾。评分失败不阻断推进。
func (s *InterviewService) afterAnswer(candidateID, answerID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := s.scoring.ScoreAnswer(ctx, candidateID, answerID); err != nil {
		logger.Log.Error("answer scoring failed",
			zap.String("candidateId", candidateID),
			zap.String("answerId", answerID),
			zap.Error(err))
	}

	st, ok := s.store.Snapshot(candidateID)
	if !ok || st.Stage == model.StageCompleted {
		return
	}
	if len(st.Answers) >= model.TotalQuestions {
		if err := s.scoring.MaybeSummarize(ctx, candidateID); err != nil {
			logger.Log.Error("interview summary failed",
				zap.String("candidateId", candidateID), zap.Error(err))
		} else {
			s.clock.Stop(candidateID)
		}
		return
	}
	if _, err := s.askNext(ctx, candidateID); err != nil {
		logger.Log.Error("next question failed",
			zap.String("candidateId", candidateID), zap.Error(err))
		s.store.PushMessage(candidateID, model.RoleAssistant,
			"Sorry, I could not prepare the next question. Please resume or reset the interview.")
	}
}

func (s *InterviewService) askNext(ctx context.Context, candidateID string) (*model.Question, error) {
	s.askMu.Lock()
	if s.asking[candidateID] {
		s.askMu.Unlock()
		return nil, nil
	}
	s.asking[candidateID] = true
	s.askMu.Unlock()
	defer func() {
		s.askMu.Lock()
		delete(s.asking, candidateID)
		s.askMu.Unlock()
	}()

	// 拿到在途标记后复查：并发的另一次出题可能已先落账
	if st, ok := s.store.Snapshot(candidateID); ok &&
		(st.Timer.QuestionID != "" || len(st.Questions) > len(st.Answers)) {
		return nil, nil
	}

	q, err := s.progression.NextQuestion(ctx, candidateID)
	if err != nil {
		return nil, fmt.Errorf("generate question: %w", err)
	}
	if q == nil {
		// 会话在途被重置，静默放弃
		return nil, nil
	}
	s.store.PushMessage(candidateID, model.RoleAssistant, q.Text)
	return q, nil
}
