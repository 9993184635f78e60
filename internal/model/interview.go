package model

import "time"

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

type InterviewStage string

const (
	StageCollectingProfile InterviewStage = "collecting_profile"
	StageRunning           InterviewStage = "running"
	StagePaused            InterviewStage = "paused"
	StageCompleted         InterviewStage = "completed"
)

// TotalQuestions 每场面试的固定题量，非可配置项
const TotalQuestions = 6

// MaxStepIndex stepIndex 的上限，提交答案时封顶
const MaxStepIndex = TotalQuestions - 1

type ChatRole string

const (
	RoleSystem    ChatRole = "system"
	RoleAssistant ChatRole = "assistant"
	RoleUser      ChatRole = "user"
)

type ChatMessage struct {
	ID        string    `json:"id"`
	Role      ChatRole  `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Question 一经追加不再修改
type Question struct {
	ID         string     `json:"id"`
	Difficulty Difficulty `json:"difficulty"`
	Text       string     `json:"text"`
	Seconds    int        `json:"seconds"`
	Rubric     string     `json:"rubric,omitempty"`
}

type Answer struct {
	ID             string     `json:"id"`
	QuestionID     string     `json:"questionId"`
	Text           string     `json:"text"`
	StartedAt      time.Time  `json:"startedAt"`
	SubmittedAt    *time.Time `json:"submittedAt"`
	ElapsedSeconds int        `json:"elapsedSeconds"`
	AutoSubmitted  bool       `json:"autoSubmitted,omitempty"`
	Score          *float64   `json:"score,omitempty"`
	Feedback       string     `json:"feedback,omitempty"`
}

// TimerState QuestionID 非空当且仅当已出题且尚未作答
type TimerState struct {
	QuestionID string `json:"questionId"`
	Remaining  int    `json:"remaining"`
	Paused     bool   `json:"paused"`
}

// SessionMeta 固定结构的会话附加标志
type SessionMeta struct {
	AlteredPath bool       `json:"alteredPath"`
	PausedAt    *time.Time `json:"pausedAt,omitempty"`
}

type SummaryLevel string

const (
	LevelBeginner     SummaryLevel = "Beginner"
	LevelIntermediate SummaryLevel = "Intermediate"
	LevelExpert       SummaryLevel = "Expert"
)

type InterviewSummary struct {
	Score        float64      `json:"score"`
	Level        SummaryLevel `json:"level"`
	Strengths    []string     `json:"strengths"`
	Improvements []string     `json:"improvements"`
	Overview     string       `json:"overview"`
	Badges       []string     `json:"badges"`
	AlteredPath  bool         `json:"alteredPath"`
}

// InterviewState 每候选人一条，候选人 ID 为键。
// 不变式：len(answers) <= len(questions) <= 6；进入 running 后
// stepIndex == len(answers)，封顶 5；summary 存在当且仅当 stage == completed。
type InterviewState struct {
	CandidateID string            `json:"candidateId"`
	Stage       InterviewStage    `json:"stage"`
	StepIndex   int               `json:"stepIndex"`
	Timer       TimerState        `json:"timer"`
	Messages    []ChatMessage     `json:"messages"`
	Questions   []Question        `json:"questions"`
	Answers     []Answer          `json:"answers"`
	Summary     *InterviewSummary `json:"summary,omitempty"`
	Meta        SessionMeta       `json:"meta"`

	// Epoch 每次 reset/remove 递增，用于丢弃过期的异步模型结果
	Epoch uint64 `json:"-"`

	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Clone 深拷贝，供读取方持有而不受后续变更影响
func (s *InterviewState) Clone() InterviewState {
	out := *s
	out.Messages = append([]ChatMessage(nil), s.Messages...)
	out.Questions = append([]Question(nil), s.Questions...)
	out.Answers = make([]Answer, len(s.Answers))
	for i, a := range s.Answers {
		out.Answers[i] = a
		if a.Score != nil {
			v := *a.Score
			out.Answers[i].Score = &v
		}
		if a.SubmittedAt != nil {
			t := *a.SubmittedAt
			out.Answers[i].SubmittedAt = &t
		}
	}
	if s.Summary != nil {
		sum := *s.Summary
		sum.Strengths = append([]string(nil), s.Summary.Strengths...)
		sum.Improvements = append([]string(nil), s.Summary.Improvements...)
		sum.Badges = append([]string(nil), s.Summary.Badges...)
		out.Summary = &sum
	}
	if s.Meta.PausedAt != nil {
		t := *s.Meta.PausedAt
		out.Meta.PausedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return out
}
