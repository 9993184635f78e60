package service

import (
	"fmt"
	"interview_pilot_backend/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *SessionStore {
	s := NewSessionStore()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }
	n := 0
	s.newID = func() string {
		n++
		return fmt.Sprintf("auto-%d", n)
	}
	return s
}

func addRunningQuestion(t *testing.T, s *SessionStore, candidateID, questionID string, seconds int) {
	t.Helper()
	s.Start(candidateID)
	ok := s.AddQuestion(candidateID, s.Epoch(candidateID), model.Question{
		ID:         questionID,
		Difficulty: model.DifficultyEasy,
		Text:       "What does useEffect do?",
		Seconds:    seconds,
	})
	require.True(t, ok)
}

func TestEnsureCreatesCollectingProfileSession(t *testing.T) {
	s := newTestStore()
	st := s.Ensure("c1")

	assert.Equal(t, model.StageCollectingProfile, st.Stage)
	assert.Equal(t, 0, st.StepIndex)
	assert.Empty(t, st.Timer.QuestionID)
	assert.True(t, st.Timer.Paused)
	assert.NotNil(t, st.Messages)
	assert.Empty(t, st.Answers)

	again := s.Ensure("c1")
	assert.Equal(t, st.Epoch, again.Epoch)
}

func TestStartPauseResumeComplete(t *testing.T) {
	s := newTestStore()
	st := s.Start("c1")
	assert.Equal(t, model.StageRunning, st.Stage)

	st, ok := s.Pause("c1")
	require.True(t, ok)
	assert.Equal(t, model.StagePaused, st.Stage)
	assert.True(t, st.Timer.Paused)
	assert.NotNil(t, st.Meta.PausedAt)

	st, ok = s.Resume("c1")
	require.True(t, ok)
	assert.Equal(t, model.StageRunning, st.Stage)
	assert.False(t, st.Timer.Paused)
	assert.Nil(t, st.Meta.PausedAt)

	st, ok = s.Complete("c1", s.Epoch("c1"))
	require.True(t, ok)
	assert.Equal(t, model.StageCompleted, st.Stage)
	assert.NotNil(t, st.CompletedAt)
}

func TestPauseIsIdempotent(t *testing.T) {
	s := newTestStore()
	addRunningQuestion(t, s, "c1", "q1", 20)
	s.Tick("c1")

	first, ok := s.Pause("c1")
	require.True(t, ok)
	second, ok := s.Pause("c1")
	require.True(t, ok)

	assert.Equal(t, model.StagePaused, second.Stage)
	assert.Equal(t, first.Timer, second.Timer)
	assert.Equal(t, first.StepIndex, second.StepIndex)
	assert.Len(t, second.Answers, len(first.Answers))
	assert.Len(t, second.Questions, len(first.Questions))
}

func TestAddQuestionResetsTimer(t *testing.T) {
	s := newTestStore()
	addRunningQuestion(t, s, "c1", "q1", 20)

	st, _ := s.Snapshot("c1")
	assert.Equal(t, "q1", st.Timer.QuestionID)
	assert.Equal(t, 20, st.Timer.Remaining)
	assert.False(t, st.Timer.Paused)
}

func TestAddQuestionRejectsStaleEpoch(t *testing.T) {
	s := newTestStore()
	s.Start("c1")
	old := s.Epoch("c1")
	s.Reset("c1")
	s.Start("c1")

	ok := s.AddQuestion("c1", old, model.Question{ID: "q1", Text: "x", Seconds: 20})
	assert.False(t, ok)
	st, _ := s.Snapshot("c1")
	assert.Empty(t, st.Questions)
}

func TestAddQuestionCapsAtTotal(t *testing.T) {
	s := newTestStore()
	s.Start("c1")
	epoch := s.Epoch("c1")
	for i := 0; i < model.TotalQuestions; i++ {
		ok := s.AddQuestion("c1", epoch, model.Question{ID: fmt.Sprintf("q%d", i), Text: "x", Seconds: 20})
		require.True(t, ok)
	}
	assert.False(t, s.AddQuestion("c1", epoch, model.Question{ID: "q7", Text: "x", Seconds: 20}))
}

func TestSubmitAnswerAdvancesStepAndClearsTimer(t *testing.T) {
	s := newTestStore()
	addRunningQuestion(t, s, "c1", "q1", 20)

	ok := s.SubmitAnswer("c1", model.Answer{ID: "a1", QuestionID: "q1", Text: "closures"})
	require.True(t, ok)

	st, _ := s.Snapshot("c1")
	assert.Equal(t, 1, st.StepIndex)
	assert.Empty(t, st.Timer.QuestionID)
	require.Len(t, st.Answers, 1)
	assert.Equal(t, "q1", st.Answers[0].QuestionID)
}

func TestStepIndexCapsAtMax(t *testing.T) {
	s := newTestStore()
	s.Start("c1")
	epoch := s.Epoch("c1")
	for i := 0; i < model.TotalQuestions; i++ {
		qid := fmt.Sprintf("q%d", i)
		require.True(t, s.AddQuestion("c1", epoch, model.Question{ID: qid, Text: "x", Seconds: 20}))
		require.True(t, s.SubmitAnswer("c1", model.Answer{ID: fmt.Sprintf("a%d", i), QuestionID: qid}))
	}

	st, _ := s.Snapshot("c1")
	assert.Len(t, st.Answers, model.TotalQuestions)
	assert.Equal(t, model.MaxStepIndex, st.StepIndex)
}

func TestTickDecrementsOnlyWhileRunning(t *testing.T) {
	s := newTestStore()
	addRunningQuestion(t, s, "c1", "q1", 20)

	res := s.Tick("c1")
	assert.True(t, res.Known)
	assert.Equal(t, 19, res.Remaining)

	s.Pause("c1")
	res = s.Tick("c1")
	assert.Equal(t, 19, res.Remaining)
	assert.False(t, res.Expired)
}

func TestTickExpiresAndAutoSubmitsSameTick(t *testing.T) {
	s := newTestStore()
	addRunningQuestion(t, s, "c1", "q1", 2)

	res := s.Tick("c1")
	assert.False(t, res.Expired)

	res = s.Tick("c1")
	require.True(t, res.Expired)
	assert.Equal(t, "q1", res.AutoAnswer.QuestionID)
	assert.True(t, res.AutoAnswer.AutoSubmitted)
	assert.Empty(t, res.AutoAnswer.Text)
	assert.Zero(t, res.AutoAnswer.ElapsedSeconds)

	st, _ := s.Snapshot("c1")
	require.Len(t, st.Answers, 1)
	assert.Equal(t, 1, st.StepIndex)
	assert.Empty(t, st.Timer.QuestionID)

	// 计时器已清空，不会重复到期
	res = s.Tick("c1")
	assert.False(t, res.Expired)
	require.Len(t, st.Answers, 1)
}

func TestTickUnknownCandidate(t *testing.T) {
	s := newTestStore()
	res := s.Tick("ghost")
	assert.False(t, res.Known)
}

func TestUpdateAnswerScore(t *testing.T) {
	s := newTestStore()
	addRunningQuestion(t, s, "c1", "q1", 20)
	require.True(t, s.SubmitAnswer("c1", model.Answer{ID: "a1", QuestionID: "q1"}))

	score := 8.5
	ok := s.UpdateAnswerScore("c1", s.Epoch("c1"), "a1", &score, "solid answer")
	require.True(t, ok)

	st, _ := s.Snapshot("c1")
	require.NotNil(t, st.Answers[0].Score)
	assert.Equal(t, 8.5, *st.Answers[0].Score)
	assert.Equal(t, "solid answer", st.Answers[0].Feedback)

	// 未知答案 id 为空操作
	assert.False(t, s.UpdateAnswerScore("c1", s.Epoch("c1"), "missing", &score, "x"))
	// 过期世代被拒
	assert.False(t, s.UpdateAnswerScore("c1", s.Epoch("c1")+1, "a1", &score, "x"))
}

func TestResetDiscardsEverythingAndBumpsEpoch(t *testing.T) {
	s := newTestStore()
	addRunningQuestion(t, s, "c1", "q1", 20)
	s.SubmitAnswer("c1", model.Answer{ID: "a1", QuestionID: "q1"})
	s.PushMessage("c1", model.RoleUser, "hello")
	before := s.Epoch("c1")

	st := s.Reset("c1")
	assert.Equal(t, model.StageCollectingProfile, st.Stage)
	assert.Equal(t, 0, st.StepIndex)
	assert.Empty(t, st.Messages)
	assert.Empty(t, st.Questions)
	assert.Empty(t, st.Answers)
	assert.Nil(t, st.Summary)
	assert.Equal(t, before+1, st.Epoch)
}

func TestSetSummaryGuardedByEpoch(t *testing.T) {
	s := newTestStore()
	s.Start("c1")
	epoch := s.Epoch("c1")
	sum := model.InterviewSummary{Score: 72, Level: model.LevelIntermediate}

	assert.False(t, s.SetSummary("c1", epoch+1, sum))
	require.True(t, s.SetSummary("c1", epoch, sum))

	st, _ := s.Snapshot("c1")
	require.NotNil(t, st.Summary)
	assert.Equal(t, 72.0, st.Summary.Score)
}

func TestCompleteRejectsStaleEpochAfterReset(t *testing.T) {
	s := newTestStore()
	s.Start("c1")
	epoch := s.Epoch("c1")
	sum := model.InterviewSummary{Score: 72, Level: model.LevelIntermediate}
	require.True(t, s.SetSummary("c1", epoch, sum))

	s.Reset("c1")

	_, ok := s.Complete("c1", epoch)
	assert.False(t, ok)

	st, _ := s.Snapshot("c1")
	assert.Equal(t, model.StageCollectingProfile, st.Stage)
	assert.Nil(t, st.Summary)
	assert.Nil(t, st.CompletedAt)
}

func TestEvictCompletedBefore(t *testing.T) {
	s := newTestStore()
	s.Start("old")
	s.Complete("old", s.Epoch("old"))
	s.Start("fresh")

	n := s.EvictCompletedBefore(s.now().Add(time.Minute))
	assert.Equal(t, 1, n)
	_, ok := s.Snapshot("old")
	assert.False(t, ok)
	_, ok = s.Snapshot("fresh")
	assert.True(t, ok)
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	s := newTestStore()
	addRunningQuestion(t, s, "c1", "q1", 20)

	st, _ := s.Snapshot("c1")
	st.Questions[0].Text = "mutated"
	st.Timer.Remaining = 0

	again, _ := s.Snapshot("c1")
	assert.Equal(t, "What does useEffect do?", again.Questions[0].Text)
	assert.Equal(t, 20, again.Timer.Remaining)
}
