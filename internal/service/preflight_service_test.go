package service

import (
	"context"
	"interview_pilot_backend/internal/model"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeCandidateStore struct {
	byID map[string]*model.Candidate
}

func newFakeCandidateStore() *fakeCandidateStore {
	return &fakeCandidateStore{byID: make(map[string]*model.Candidate)}
}

func (f *fakeCandidateStore) FindByID(id string) (*model.Candidate, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCandidateStore) Create(c *model.Candidate) error {
	cp := *c
	f.byID[c.ID] = &cp
	return nil
}

func (f *fakeCandidateStore) Update(c *model.Candidate) error {
	cp := *c
	f.byID[c.ID] = &cp
	return nil
}

type fakeStarter struct {
	started []string
}

func (f *fakeStarter) Start(ctx context.Context, candidateID string) (model.InterviewState, error) {
	f.started = append(f.started, candidateID)
	return model.InterviewState{CandidateID: candidateID, Stage: model.StageRunning}, nil
}

func assistantTexts(st model.InterviewState) []string {
	var out []string
	for _, m := range st.Messages {
		if m.Role == model.RoleAssistant {
			out = append(out, m.Content)
		}
	}
	return out
}

func TestGreetAsksForFirstMissingField(t *testing.T) {
	store := newTestStore()
	svc := NewPreflightService(store, newFakeCandidateStore(), &fakeStarter{}, nil)

	st, err := svc.Greet("c1")
	require.NoError(t, err)

	msgs := assistantTexts(st)
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[1], "full name")
}

func TestGreetIsIdempotent(t *testing.T) {
	store := newTestStore()
	svc := NewPreflightService(store, newFakeCandidateStore(), &fakeStarter{}, nil)

	first, err := svc.Greet("c1")
	require.NoError(t, err)
	second, err := svc.Greet("c1")
	require.NoError(t, err)
	assert.Equal(t, len(first.Messages), len(second.Messages))
}

func TestHandleMessageCollectsFieldsInOrder(t *testing.T) {
	store := newTestStore()
	candidates := newFakeCandidateStore()
	starter := &fakeStarter{}
	svc := NewPreflightService(store, candidates, starter, nil)

	_, err := svc.Greet("c1")
	require.NoError(t, err)

	st, err := svc.HandleMessage(context.Background(), "c1", "Jane Smith")
	require.NoError(t, err)
	assert.Contains(t, assistantTexts(st)[len(assistantTexts(st))-1], "email")

	st, err = svc.HandleMessage(context.Background(), "c1", "jane@example.com")
	require.NoError(t, err)
	assert.Contains(t, assistantTexts(st)[len(assistantTexts(st))-1], "phone")

	_, err = svc.HandleMessage(context.Background(), "c1", "+1 415 555 0123")
	require.NoError(t, err)

	saved, err := candidates.FindByID("c1")
	require.NoError(t, err)
	assert.Equal(t, "Jane Smith", saved.Name)
	assert.Equal(t, "jane@example.com", saved.Email)
	assert.Equal(t, "+1 415 555 0123", saved.Phone)
	assert.Equal(t, []string{"c1"}, starter.started)
}

func TestHandleMessageRetriesInvalidEmail(t *testing.T) {
	store := newTestStore()
	candidates := newFakeCandidateStore()
	starter := &fakeStarter{}
	svc := NewPreflightService(store, candidates, starter, nil)

	_, err := svc.Greet("c1")
	require.NoError(t, err)
	_, err = svc.HandleMessage(context.Background(), "c1", "Jane Smith")
	require.NoError(t, err)

	st, err := svc.HandleMessage(context.Background(), "c1", "not-an-email")
	require.NoError(t, err)

	last := assistantTexts(st)[len(assistantTexts(st))-1]
	assert.Contains(t, last, "valid email")
	saved, _ := candidates.FindByID("c1")
	assert.Empty(t, saved.Email)
	assert.Empty(t, starter.started)
}

func TestHandleMessageSkipsFieldsAlreadyFilled(t *testing.T) {
	store := newTestStore()
	candidates := newFakeCandidateStore()
	candidates.Create(&model.Candidate{
		UUIDBase: model.UUIDBase{ID: "c1"},
		Name:     "Jane Smith",
		Email:    "jane@example.com",
	})
	starter := &fakeStarter{}
	svc := NewPreflightService(store, candidates, starter, nil)

	st, err := svc.Greet("c1")
	require.NoError(t, err)
	msgs := assistantTexts(st)
	assert.Contains(t, msgs[len(msgs)-1], "phone")

	_, err = svc.HandleMessage(context.Background(), "c1", "415-555-0123")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, starter.started)
}

func TestHandleMessageRejectedAfterCollection(t *testing.T) {
	store := newTestStore()
	store.Start("c1")
	svc := NewPreflightService(store, newFakeCandidateStore(), &fakeStarter{}, nil)

	_, err := svc.HandleMessage(context.Background(), "c1", "hello")
	assert.Error(t, err)
}

func TestMissingFieldsOrder(t *testing.T) {
	c := &model.Candidate{}
	assert.Equal(t, []string{"name", "email", "phone"}, missingFields(c))

	c.Name = "Jane Smith"
	assert.Equal(t, []string{"email", "phone"}, missingFields(c))

	c.Email = "jane@example.com"
	c.Phone = "415-555-0123"
	assert.Empty(t, missingFields(c))
}
