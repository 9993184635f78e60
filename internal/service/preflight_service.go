package service

import (
	"context"
	"fmt"
	"interview_pilot_backend/internal/model"
	"interview_pilot_backend/internal/util"
	"strings"

	"gorm.io/gorm"
)

// candidateStore 资料读写的最小面，由 repository.CandidateRepository 满足
type candidateStore interface {
	FindByID(id string) (*model.Candidate, error)
	Create(c *model.Candidate) error
	Update(c *model.Candidate) error
}

type interviewStarter interface {
	Start(ctx context.Context, candidateID string) (model.InterviewState, error)
}

// 资料收集固定顺序，只追问缺失或不合法的字段
var profileFieldOrder = []string{"name", "email", "phone"}

var fieldPrompts = map[string]string{
	"name":  "Before we begin, what is your full name?",
	"email": "Thanks! What email address can we reach you at?",
	"phone": "Almost there. What is your phone number?",
}

var fieldRetries = map[string]string{
	"name":  "That name looks too short. Please enter at least 2 characters.",
	"email": "That does not look like a valid email address. Please try again, e.g. jane@example.com.",
	"phone": "That does not look like a valid phone number. Please enter at least 7 digits, separators and a + prefix are fine.",
}

// PreflightService 面试前的资料收集对话。收齐姓名/邮箱/电话并校验
// 通过后发送确认语并自动开始面试。
type PreflightService struct {
	store      *SessionStore
	candidates candidateStore
	interviews interviewStarter
	hub        *SessionHub
}

func NewPreflightService(store *SessionStore, candidates candidateStore, interviews interviewStarter, hub *SessionHub) *PreflightService {
	return &PreflightService{store: store, candidates: candidates, interviews: interviews, hub: hub}
}

// missingFields 按固定顺序返回尚未通过校验的字段
func missingFields(c *model.Candidate) []string {
	var missing []string
	for _, f := range profileFieldOrder {
		switch f {
		case "name":
			if !util.ValidName(c.Name) {
				missing = append(missing, f)
			}
		case "email":
			if !util.ValidEmail(c.Email) {
				missing = append(missing, f)
			}
		case "phone":
			if !util.ValidPhone(c.Phone) {
				missing = append(missing, f)
			}
		}
	}
	return missing
}

func (s *PreflightService) loadOrCreate(candidateID string) (*model.Candidate, error) {
	candidate, err := s.candidates.FindByID(candidateID)
	if err == nil {
		return candidate, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}
	candidate = &model.Candidate{}
	candidate.ID = candidateID
	if err := s.candidates.Create(candidate); err != nil {
		return nil, err
	}
	return candidate, nil
}

// Greet 会话首次接触时发送欢迎语和第一个缺失字段的提问。
// 已有消息或已过资料收集阶段则只回放当前快照。
func (s *PreflightService) Greet(candidateID string) (model.InterviewState, error) {
	candidate, err := s.loadOrCreate(candidateID)
	if err != nil {
		return model.InterviewState{}, err
	}
	st := s.store.Ensure(candidateID)
	if st.Stage != model.StageCollectingProfile || len(st.Messages) > 0 {
		return st, nil
	}
	s.pushAssistant(candidateID, "Hi! I'm your mock interviewer for the Full Stack (React/Node) role today.")
	missing := missingFields(candidate)
	if len(missing) > 0 {
		s.pushAssistant(candidateID, fieldPrompts[missing[0]])
	}
	st, _ = s.store.Snapshot(candidateID)
	return st, nil
}

// HandleMessage 处理候选人在资料收集阶段的一条输入：按顺序校验当前
// 待收字段，不合法则同字段重试，收齐后确认并开始面试。
func (s *PreflightService) HandleMessage(ctx context.Context, candidateID, text string) (model.InterviewState, error) {
	st := s.store.Ensure(candidateID)
	if st.Stage != model.StageCollectingProfile {
		return st, util.ErrInterviewCompleted
	}

	candidate, err := s.loadOrCreate(candidateID)
	if err != nil {
		return st, err
	}

	s.store.PushMessage(candidateID, model.RoleUser, text)

	missing := missingFields(candidate)
	if len(missing) == 0 {
		// 资料早已收齐但会话还停在收集阶段，直接进入面试
		return s.startInterview(ctx, candidateID, candidate)
	}

	field := missing[0]
	value := strings.TrimSpace(text)
	ok := false
	switch field {
	case "name":
		if ok = util.ValidName(value); ok {
			candidate.Name = value
		}
	case "email":
		if ok = util.ValidEmail(value); ok {
			candidate.Email = value
		}
	case "phone":
		if ok = util.ValidPhone(value); ok {
			candidate.Phone = value
		}
	}
	if !ok {
		s.pushAssistant(candidateID, fieldRetries[field])
		st, _ = s.store.Snapshot(candidateID)
		return st, nil
	}

	if err := s.candidates.Update(candidate); err != nil {
		return st, err
	}

	if rest := missingFields(candidate); len(rest) > 0 {
		s.pushAssistant(candidateID, fieldPrompts[rest[0]])
		st, _ = s.store.Snapshot(candidateID)
		return st, nil
	}
	return s.startInterview(ctx, candidateID, candidate)
}

func (s *PreflightService) startInterview(ctx context.Context, candidateID string, candidate *model.Candidate) (model.InterviewState, error) {
	s.pushAssistant(candidateID, fmt.Sprintf(
		"Perfect, %s. You will get %d timed questions: 2 easy, 2 medium and 2 hard. Each question has its own countdown and unanswered questions are submitted automatically. Good luck!",
		candidate.Name, model.TotalQuestions))
	return s.interviews.Start(ctx, candidateID)
}

func (s *PreflightService) pushAssistant(candidateID, content string) {
	if msg, ok := s.store.PushMessage(candidateID, model.RoleAssistant, content); ok && s.hub != nil {
		s.hub.Publish(candidateID, SessionEvent{
			Type: EventChat,
			Data: map[string]interface{}{"id": msg.ID, "role": msg.Role, "content": msg.Content},
		})
	}
}
