package service

import (
	"context"
	"encoding/json"
	"fmt"
	"interview_pilot_backend/internal/model"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedCompleter 根据系统提示词分流：出题、评分、总结各返回
// 对应 schema 的响应。seconds 控制生成题目的限时。
type scriptedCompleter struct {
	seconds   int
	questions int32
}

func (f *scriptedCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	switch {
	case strings.Contains(system, "Ask one"):
		n := atomic.AddInt32(&f.questions, 1)
		q := map[string]interface{}{
			"difficulty": difficultyInPrompt(system),
			"text":       fmt.Sprintf("Question number %d?", n),
			"seconds":    f.seconds,
		}
		raw, _ := json.Marshal(q)
		return string(raw), nil
	case strings.Contains(system, "evaluating an interview answer"):
		return `{"score":8,"feedback":"Reasonable answer."}`, nil
	case strings.Contains(system, "summarizing an interview"):
		return `{"overallScore":80,"level":"Intermediate","strengths":["react"],"improvements":["testing"],"summary":"Solid."}`, nil
	}
	return "", fmt.Errorf("unexpected prompt: %s", system)
}

func difficultyInPrompt(system string) string {
	for _, d := range []string{"easy", "medium", "hard"} {
		if strings.Contains(system, "one "+d) {
			return d
		}
	}
	return "easy"
}

// questionSeconds 足够大，避免慢机器上计时器先于手动提交到期
func newTestInterviewService(store *SessionStore, candidates candidateFinder, questionSeconds int) (*InterviewService, *InterviewClock) {
	completer := &scriptedCompleter{seconds: questionSeconds}
	progression := NewProgressionService(store, nil, completer, nil)
	scoring := NewScoringService(store, nil, nil, completer, nil)
	clock := NewInterviewClock(store, nil)
	clock.interval = 5 * time.Millisecond
	svc := NewInterviewService(store, clock, progression, scoring, nil, candidates)
	return svc, clock
}

func completeProfile(id string) *fakeCandidateStore {
	candidates := newFakeCandidateStore()
	candidates.Create(&model.Candidate{
		UUIDBase: model.UUIDBase{ID: id},
		Name:     "Jane Smith",
		Email:    "jane@example.com",
		Phone:    "415-555-0123",
	})
	return candidates
}

func TestStartRequiresKnownCandidate(t *testing.T) {
	store := newTestStore()
	svc, _ := newTestInterviewService(store, newFakeCandidateStore(), 600)

	_, err := svc.Start(context.Background(), "ghost")
	assert.Error(t, err)
}

func TestStartRequiresCompleteProfile(t *testing.T) {
	store := newTestStore()
	candidates := newFakeCandidateStore()
	candidates.Create(&model.Candidate{UUIDBase: model.UUIDBase{ID: "c1"}, Name: "Jane Smith"})
	svc, _ := newTestInterviewService(store, candidates, 600)

	_, err := svc.Start(context.Background(), "c1")
	assert.Error(t, err)
}

func TestStartAsksFirstQuestionAndArmsTimer(t *testing.T) {
	store := newTestStore()
	svc, clock := newTestInterviewService(store, completeProfile("c1"), 600)
	defer clock.Stop("c1")

	st, err := svc.Start(context.Background(), "c1")
	require.NoError(t, err)

	assert.Equal(t, model.StageRunning, st.Stage)
	require.Len(t, st.Questions, 1)
	assert.Equal(t, st.Questions[0].ID, st.Timer.QuestionID)
	// 题目以助手消息进入记录
	msgs := assistantTexts(st)
	require.NotEmpty(t, msgs)
	assert.Contains(t, msgs[len(msgs)-1], "Question number 1")
}

func TestStartIsIdempotentWhileRunning(t *testing.T) {
	store := newTestStore()
	svc, clock := newTestInterviewService(store, completeProfile("c1"), 600)
	defer clock.Stop("c1")

	_, err := svc.Start(context.Background(), "c1")
	require.NoError(t, err)
	st, err := svc.Start(context.Background(), "c1")
	require.NoError(t, err)
	assert.Len(t, st.Questions, 1)
}

func TestPauseAndResumeRoundTrip(t *testing.T) {
	store := newTestStore()
	svc, clock := newTestInterviewService(store, completeProfile("c1"), 600)
	defer clock.Stop("c1")

	_, err := svc.Start(context.Background(), "c1")
	require.NoError(t, err)

	st, err := svc.Pause("c1")
	require.NoError(t, err)
	assert.Equal(t, model.StagePaused, st.Stage)

	remaining := st.Timer.Remaining
	time.Sleep(30 * time.Millisecond)
	st2, _ := store.Snapshot("c1")
	assert.Equal(t, remaining, st2.Timer.Remaining, "paused timer must not tick")

	st, err = svc.Resume(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, model.StageRunning, st.Stage)
}

func TestResumeRecoversMissingQuestion(t *testing.T) {
	store := newTestStore()
	svc, clock := newTestInterviewService(store, completeProfile("c1"), 600)
	defer clock.Stop("c1")

	// 第一题已作答，后续出题失败留下的状态：运行中但无在答题目
	store.Start("c1")
	epoch := store.Epoch("c1")
	require.True(t, store.AddQuestion("c1", epoch, model.Question{ID: "q1", Difficulty: model.DifficultyEasy, Text: "x", Seconds: 20}))
	require.True(t, store.SubmitAnswer("c1", model.Answer{ID: "a1", QuestionID: "q1", Text: "done"}))

	st, err := svc.Resume(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, model.StageRunning, st.Stage)
	require.Len(t, st.Questions, 2)
	assert.Equal(t, st.Questions[1].ID, st.Timer.QuestionID)
}

func TestStartRecoversMissingQuestion(t *testing.T) {
	store := newTestStore()
	svc, clock := newTestInterviewService(store, completeProfile("c1"), 600)
	defer clock.Stop("c1")

	store.Start("c1")
	epoch := store.Epoch("c1")
	require.True(t, store.AddQuestion("c1", epoch, model.Question{ID: "q1", Difficulty: model.DifficultyEasy, Text: "x", Seconds: 20}))
	require.True(t, store.SubmitAnswer("c1", model.Answer{ID: "a1", QuestionID: "q1", Text: "done"}))

	st, err := svc.Start(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, st.Questions, 2)
	assert.Equal(t, st.Questions[1].ID, st.Timer.QuestionID)
}

func TestSubmitRecordsElapsedAndAdvances(t *testing.T) {
	store := newTestStore()
	svc, clock := newTestInterviewService(store, completeProfile("c1"), 600)
	defer clock.Stop("c1")

	_, err := svc.Start(context.Background(), "c1")
	require.NoError(t, err)

	st, err := svc.Submit(context.Background(), "c1", "my answer")
	require.NoError(t, err)
	require.Len(t, st.Answers, 1)
	assert.False(t, st.Answers[0].AutoSubmitted)
	assert.Equal(t, "my answer", st.Answers[0].Text)
	assert.Equal(t, 1, st.StepIndex)

	// 异步链路：评分落账并出下一题
	require.Eventually(t, func() bool {
		cur, _ := store.Snapshot("c1")
		return len(cur.Questions) == 2 && cur.Answers[0].Score != nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSubmitWithoutActiveQuestion(t *testing.T) {
	store := newTestStore()
	store.Start("c1")
	svc, _ := newTestInterviewService(store, completeProfile("c1"), 600)

	_, err := svc.Submit(context.Background(), "c1", "hello")
	assert.Error(t, err)
}

func TestExpiredTimerAutoSubmitsAndAdvances(t *testing.T) {
	store := newTestStore()
	svc, clock := newTestInterviewService(store, completeProfile("c1"), 1)
	defer clock.Stop("c1")

	_, err := svc.Start(context.Background(), "c1")
	require.NoError(t, err)

	// 题目限时 1 秒而 tick 间隔 5ms，等待自动提交发生
	require.Eventually(t, func() bool {
		cur, _ := store.Snapshot("c1")
		return len(cur.Answers) >= 1 && cur.Answers[0].AutoSubmitted
	}, 2*time.Second, 10*time.Millisecond)

	cur, _ := store.Snapshot("c1")
	assert.Empty(t, cur.Answers[0].Text)
	assert.GreaterOrEqual(t, cur.StepIndex, 1)
}

func TestFullInterviewReachesSummary(t *testing.T) {
	store := newTestStore()
	svc, clock := newTestInterviewService(store, completeProfile("c1"), 600)
	defer clock.Stop("c1")

	_, err := svc.Start(context.Background(), "c1")
	require.NoError(t, err)

	for i := 0; i < model.TotalQuestions; i++ {
		qn := i + 1
		require.Eventually(t, func() bool {
			cur, _ := store.Snapshot("c1")
			return len(cur.Questions) == qn && cur.Timer.QuestionID != ""
		}, 2*time.Second, 10*time.Millisecond, "question %d never arrived", qn)

		_, err := svc.Submit(context.Background(), "c1", "answer")
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		cur, _ := store.Snapshot("c1")
		return cur.Stage == model.StageCompleted && cur.Summary != nil
	}, 5*time.Second, 10*time.Millisecond)

	final, _ := store.Snapshot("c1")
	assert.Equal(t, 80.0, final.Summary.Score)
	assert.Equal(t, model.LevelIntermediate, final.Summary.Level)
	assert.Equal(t, model.MaxStepIndex, final.StepIndex)
}

func TestResetStopsClockAndClearsState(t *testing.T) {
	store := newTestStore()
	svc, _ := newTestInterviewService(store, completeProfile("c1"), 600)

	_, err := svc.Start(context.Background(), "c1")
	require.NoError(t, err)

	st := svc.Reset("c1")
	assert.Equal(t, model.StageCollectingProfile, st.Stage)
	assert.Empty(t, st.Questions)
}
