package service

import (
	"context"
	"interview_pilot_backend/internal/model"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	response string
	err      error
	calls    int
	lastUser string
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	f.calls++
	f.lastUser = user
	return f.response, f.err
}

func TestGetDifficultyByStep(t *testing.T) {
	cases := []struct {
		step       int
		difficulty model.Difficulty
		seconds    int
	}{
		{0, model.DifficultyEasy, 20},
		{1, model.DifficultyEasy, 20},
		{2, model.DifficultyMedium, 60},
		{3, model.DifficultyMedium, 60},
		{4, model.DifficultyHard, 120},
		{5, model.DifficultyHard, 120},
		{9, model.DifficultyHard, 120},
	}
	for _, tc := range cases {
		d, s := GetDifficultyByStep(tc.step)
		assert.Equal(t, tc.difficulty, d, "step %d", tc.step)
		assert.Equal(t, tc.seconds, s, "step %d", tc.step)
	}
}

func scored(id, qid string, v float64) model.Answer {
	return model.Answer{ID: id, QuestionID: qid, Score: &v}
}

func driveToStep2(t *testing.T, store *SessionStore, first, second float64) {
	t.Helper()
	store.Start("c1")
	epoch := store.Epoch("c1")
	require.True(t, store.AddQuestion("c1", epoch, model.Question{ID: "q0", Text: "x", Seconds: 20}))
	require.True(t, store.SubmitAnswer("c1", scored("a0", "q0", first)))
	require.True(t, store.AddQuestion("c1", epoch, model.Question{ID: "q1", Text: "x", Seconds: 20}))
	require.True(t, store.SubmitAnswer("c1", scored("a1", "q1", second)))
}

func TestAdaptiveEscalatesWhenBothFirstAnswersExcellent(t *testing.T) {
	store := newTestStore()
	driveToStep2(t, store, 9, 10)

	svc := NewProgressionService(store, nil, &fakeCompleter{}, nil)
	d, secs := svc.ComputeAdaptiveNextDifficulty("c1")

	assert.Equal(t, model.DifficultyHard, d)
	assert.Equal(t, 120, secs)
	st, _ := store.Snapshot("c1")
	assert.True(t, st.Meta.AlteredPath)
}

func TestAdaptiveFallsBackOnOrdinaryScores(t *testing.T) {
	store := newTestStore()
	driveToStep2(t, store, 9, 8.5)

	svc := NewProgressionService(store, nil, &fakeCompleter{}, nil)
	d, secs := svc.ComputeAdaptiveNextDifficulty("c1")

	assert.Equal(t, model.DifficultyMedium, d)
	assert.Equal(t, 60, secs)
	st, _ := store.Snapshot("c1")
	assert.False(t, st.Meta.AlteredPath)
}

func TestAdaptiveOnlyEvaluatedAtStepTwo(t *testing.T) {
	store := newTestStore()
	store.Start("c1")

	svc := NewProgressionService(store, nil, &fakeCompleter{}, nil)
	d, secs := svc.ComputeAdaptiveNextDifficulty("c1")
	assert.Equal(t, model.DifficultyEasy, d)
	assert.Equal(t, 20, secs)
}

func TestNextQuestionAppendsAndArmsTimer(t *testing.T) {
	store := newTestStore()
	store.Start("c1")

	fake := &fakeCompleter{response: `{"id":"q-gen","difficulty":"easy","text":"Explain the event loop.","seconds":20}`}
	svc := NewProgressionService(store, nil, fake, nil)

	q, err := svc.NextQuestion(context.Background(), "c1")
	require.NoError(t, err)
	require.NotNil(t, q)
	assert.Equal(t, "Explain the event loop.", q.Text)

	st, _ := store.Snapshot("c1")
	require.Len(t, st.Questions, 1)
	assert.Equal(t, q.ID, st.Timer.QuestionID)
	assert.Equal(t, 20, st.Timer.Remaining)
}

func TestNextQuestionFallsBackToPolicySeconds(t *testing.T) {
	store := newTestStore()
	store.Start("c1")

	fake := &fakeCompleter{response: `{"difficulty":"easy","text":"Name two React hooks.","seconds":0}`}
	svc := NewProgressionService(store, nil, fake, nil)

	q, err := svc.NextQuestion(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, 20, q.Seconds)
	assert.NotEmpty(t, q.ID)
}

func TestNextQuestionRejectsMalformedOutput(t *testing.T) {
	store := newTestStore()
	store.Start("c1")

	fake := &fakeCompleter{response: `{"difficulty":"extreme","text":"x","seconds":20}`}
	svc := NewProgressionService(store, nil, fake, nil)

	_, err := svc.NextQuestion(context.Background(), "c1")
	require.Error(t, err)
	st, _ := store.Snapshot("c1")
	assert.Empty(t, st.Questions)
}

func TestNextQuestionDiscardsResultAfterReset(t *testing.T) {
	store := newTestStore()
	store.Start("c1")

	// 模型应答期间会话被重置，世代号不再匹配，结果应作废
	svc := NewProgressionService(store, nil, completerFunc(func(ctx context.Context, system, user string) (string, error) {
		store.Reset("c1")
		store.Start("c1")
		return `{"difficulty":"easy","text":"Explain closures.","seconds":20}`, nil
	}), nil)

	q, err := svc.NextQuestion(context.Background(), "c1")
	require.NoError(t, err)
	assert.Nil(t, q)
	st, _ := store.Snapshot("c1")
	assert.Empty(t, st.Questions)
}

type completerFunc func(ctx context.Context, system, user string) (string, error)

func (f completerFunc) Complete(ctx context.Context, system, user string) (string, error) {
	return f(ctx, system, user)
}
