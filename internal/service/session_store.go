package service

import (
	"interview_pilot_backend/internal/model"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionStore 持有全部进行中的面试会话，所有变更在互斥锁内
// 同步完成，化归为顺序语义。纯状态转移，不做任何 I/O。
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*model.InterviewState

	now   func() time.Time
	newID func() string
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*model.InterviewState),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
}

func freshState(candidateID string, epoch uint64) *model.InterviewState {
	return &model.InterviewState{
		CandidateID: candidateID,
		Stage:       model.StageCollectingProfile,
		StepIndex:   0,
		Timer:       model.TimerState{QuestionID: "", Remaining: 0, Paused: true},
		Messages:    []model.ChatMessage{},
		Questions:   []model.Question{},
		Answers:     []model.Answer{},
		Epoch:       epoch,
	}
}

// ensure 锁内调用
func (s *SessionStore) ensure(candidateID string) *model.InterviewState {
	st, ok := s.sessions[candidateID]
	if !ok {
		st = freshState(candidateID, 1)
		s.sessions[candidateID] = st
	}
	return st
}

// Ensure 为候选人建立会话（collecting_profile 起始态），已存在则不变
func (s *SessionStore) Ensure(candidateID string) model.InterviewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensure(candidateID).Clone()
}

// Snapshot 返回会话深拷贝
func (s *SessionStore) Snapshot(candidateID string) (model.InterviewState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[candidateID]
	if !ok {
		return model.InterviewState{}, false
	}
	return st.Clone(), true
}

// Epoch 当前会话世代，异步调用方先取值、落点时校验
func (s *SessionStore) Epoch(candidateID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[candidateID]
	if !ok {
		return 0
	}
	return st.Epoch
}

// Start 会话不存在则创建；置 running 并将 stepIndex 归零（允许幂等重入）
func (s *SessionStore) Start(candidateID string) model.InterviewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.ensure(candidateID)
	st.Stage = model.StageRunning
	st.StepIndex = 0
	return st.Clone()
}

func (s *SessionStore) Pause(candidateID string) (model.InterviewState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[candidateID]
	if !ok {
		return model.InterviewState{}, false
	}
	st.Stage = model.StagePaused
	st.Timer.Paused = true
	t := s.now()
	st.Meta.PausedAt = &t
	return st.Clone(), true
}

func (s *SessionStore) Resume(candidateID string) (model.InterviewState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[candidateID]
	if !ok {
		return model.InterviewState{}, false
	}
	st.Stage = model.StageRunning
	st.Timer.Paused = false
	st.Meta.PausedAt = nil
	return st.Clone(), true
}

// Complete 终态，此后不再接受题目/答案/tick 变更。世代不符时拒绝，
// 避免 reset 后在途的收尾把新会话盖成 completed
func (s *SessionStore) Complete(candidateID string, epoch uint64) (model.InterviewState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[candidateID]
	if !ok || st.Epoch != epoch {
		return model.InterviewState{}, false
	}
	st.Stage = model.StageCompleted
	st.Timer.Paused = true
	t := s.now()
	st.CompletedAt = &t
	return st.Clone(), true
}

// Reset 丢弃全部消息/题目/答案/总结，回到全新 collecting_profile，
// 世代号递增使在途异步结果失效
func (s *SessionStore) Reset(candidateID string) model.InterviewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	epoch := uint64(1)
	if prev, ok := s.sessions[candidateID]; ok {
		epoch = prev.Epoch + 1
	}
	st := freshState(candidateID, epoch)
	s.sessions[candidateID] = st
	return st.Clone()
}

// Remove 候选人删除时级联移除会话
func (s *SessionStore) Remove(candidateID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, candidateID)
}

func (s *SessionStore) PushMessage(candidateID string, role model.ChatRole, content string) (model.ChatMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[candidateID]
	if !ok {
		return model.ChatMessage{}, false
	}
	msg := model.ChatMessage{
		ID:        s.newID(),
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
	}
	st.Messages = append(st.Messages, msg)
	return msg, true
}

// AddQuestion 追加题目并重置计时器。候选人未知或世代不符时静默返回 false，
// 已完成的会话同样拒绝。
func (s *SessionStore) AddQuestion(candidateID string, epoch uint64, q model.Question) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[candidateID]
	if !ok || st.Epoch != epoch || st.Stage == model.StageCompleted {
		return false
	}
	if len(st.Questions) >= model.TotalQuestions {
		return false
	}
	st.Questions = append(st.Questions, q)
	st.Timer = model.TimerState{QuestionID: q.ID, Remaining: q.Seconds, Paused: false}
	return true
}

// submitLocked 手动提交与超时自动提交共用的落账路径
func (s *SessionStore) submitLocked(st *model.InterviewState, a model.Answer) {
	st.Answers = append(st.Answers, a)
	if st.Timer.QuestionID == a.QuestionID {
		st.Timer = model.TimerState{QuestionID: "", Remaining: 0, Paused: true}
	}
	if st.StepIndex < model.MaxStepIndex {
		st.StepIndex++
	}
}

func (s *SessionStore) SubmitAnswer(candidateID string, a model.Answer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[candidateID]
	if !ok || st.Stage == model.StageCompleted {
		return false
	}
	s.submitLocked(st, a)
	return true
}

// UpdateAnswerScore 按 id 定位答案合并给定字段；找不到视为可恢复条件，
// 静默返回 false（会话可能已被并发重置）
func (s *SessionStore) UpdateAnswerScore(candidateID string, epoch uint64, answerID string, score *float64, feedback string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[candidateID]
	if !ok || st.Epoch != epoch {
		return false
	}
	for i := range st.Answers {
		if st.Answers[i].ID == answerID {
			if score != nil {
				v := *score
				st.Answers[i].Score = &v
			}
			if feedback != "" {
				st.Answers[i].Feedback = feedback
			}
			return true
		}
	}
	return false
}

func (s *SessionStore) SetSummary(candidateID string, epoch uint64, sum model.InterviewSummary) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[candidateID]
	if !ok || st.Epoch != epoch {
		return false
	}
	st.Summary = &sum
	return true
}

// MarkAlteredPath 自适应分支一经触发永久生效
func (s *SessionStore) MarkAlteredPath(candidateID string, epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[candidateID]
	if !ok || st.Epoch != epoch {
		return false
	}
	st.Meta.AlteredPath = true
	return true
}

// TickResult tick 的可观测结果，供计时驱动与推送用
type TickResult struct {
	Known     bool
	Stage     model.InterviewStage
	Remaining int
	// Expired 为真时 AutoAnswer 是本次 tick 合成的空答案
	Expired    bool
	AutoAnswer model.Answer
}

// Tick 未暂停且剩余秒数大于 0 时减一。减到 0 且仍有在答题目时，
// 在同一次 tick 内走显式到期转移：合成空答案经提交路径落账并清空
// 计时器。QuestionID 同步清空保证每道题至多自动提交一次。
func (s *SessionStore) Tick(candidateID string) TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.sessions[candidateID]
	if !ok {
		return TickResult{}
	}
	if st.Stage == model.StageCompleted {
		return TickResult{Known: true, Stage: st.Stage, Remaining: st.Timer.Remaining}
	}
	if !st.Timer.Paused && st.Timer.Remaining > 0 {
		st.Timer.Remaining--
	}
	if st.Timer.Remaining <= 0 && st.Timer.QuestionID != "" {
		return s.expireLocked(st)
	}
	return TickResult{Known: true, Stage: st.Stage, Remaining: st.Timer.Remaining}
}

// expireLocked 到期转移：elapsedSeconds 置 0，文本为空，autoSubmitted 置位
func (s *SessionStore) expireLocked(st *model.InterviewState) TickResult {
	now := s.now()
	a := model.Answer{
		ID:             s.newID(),
		QuestionID:     st.Timer.QuestionID,
		Text:           "",
		StartedAt:      now,
		SubmittedAt:    &now,
		ElapsedSeconds: 0,
		AutoSubmitted:  true,
	}
	s.submitLocked(st, a)
	return TickResult{
		Known:      true,
		Stage:      st.Stage,
		Remaining:  0,
		Expired:    true,
		AutoAnswer: a,
	}
}

// RunningCandidates 供后台任务与指标使用
func (s *SessionStore) RunningCandidates() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, st := range s.sessions {
		if st.Stage == model.StageRunning {
			ids = append(ids, id)
		}
	}
	return ids
}

// EvictCompletedBefore 移除在 cutoff 之前完成的会话，返回移除数量。
// 归档落库后内存中的快照不再需要长期保留。
func (s *SessionStore) EvictCompletedBefore(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, st := range s.sessions {
		if st.Stage == model.StageCompleted && st.CompletedAt != nil && st.CompletedAt.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}
