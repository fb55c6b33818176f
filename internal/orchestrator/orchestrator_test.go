package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"preventcoach/internal/agents"
	"preventcoach/internal/gateway"
	"preventcoach/internal/journey"
	"preventcoach/internal/model"
	"preventcoach/internal/storage"
)

// scriptedInvoker answers each prompt schema with a canned raw prediction.
type scriptedInvoker struct {
	bySchema map[string]string
	err      error
}

func (s *scriptedInvoker) Invoke(_ context.Context, spec gateway.PromptSpec, _ *model.SessionState, _ map[string]string) (*gateway.Prediction, error) {
	if s.err != nil {
		return nil, s.err
	}
	raw, ok := s.bySchema[spec.Name]
	if !ok {
		raw = `{"response": "ok"}`
	}
	return gateway.NewPrediction(raw), nil
}

type stubDirectory struct {
	byID map[string]model.PatientProfile
}

func (d *stubDirectory) FindByID(userID string) (*model.PatientProfile, bool) {
	p, ok := d.byID[userID]
	if !ok {
		return nil, false
	}
	copied := p
	return &copied, true
}

func (d *stubDirectory) FindByName(string) (*model.PatientProfile, bool) { return nil, false }

func newOrchestrator(inv gateway.Invoker) (*Orchestrator, storage.SessionStore) {
	registry := agents.NewRegistry(inv)
	store := storage.NewMemorySessionStore(registry.Names())
	return New(registry, store, &stubDirectory{byID: map[string]model.PatientProfile{}}), store
}

func TestFirstTurnIntroducesUserEndToEnd(t *testing.T) {
	inv := &scriptedInvoker{bySchema: map[string]string{
		"intake": `{"response": "Nice to meet you, Alex!", "extracted_name": "Alex", "next_step": "transition_to_motivation"}`,
	}}
	orch, store := newOrchestrator(inv)
	ctx := context.Background()

	result, err := orch.ProcessTurn(ctx, "u-1", "Hi, I'm Alex")
	require.NoError(t, err)
	assert.Equal(t, "Nice to meet you, Alex!", result.Response)
	assert.Equal(t, agents.AgentMotivation, result.ActiveAgent)

	// Durable state reflects the whole turn.
	loaded, err := store.Load(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "Alex", loaded.PatientProfile.Name)
	assert.Equal(t, agents.AgentMotivation, loaded.ActiveAgent)
	require.Len(t, loaded.ConversationHistory, 2)
	assert.Equal(t, "Hi, I'm Alex", loaded.ConversationHistory[0].Content)
	assert.Equal(t, "Nice to meet you, Alex!", loaded.ConversationHistory[1].Content)
}

func TestTurnsAccumulateHistoryAcrossReloads(t *testing.T) {
	inv := &scriptedInvoker{bySchema: map[string]string{
		"intake":     `{"response": "Nice to meet you, Alex!", "extracted_name": "Alex", "next_step": "transition_to_motivation"}`,
		"motivation": `{"response": "What matters most to you?"}`,
	}}
	orch, _ := newOrchestrator(inv)
	ctx := context.Background()

	_, err := orch.ProcessTurn(ctx, "u-1", "Hi, I'm Alex")
	require.NoError(t, err)

	snap, err := orch.Inspect(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.HistoryCount)

	result, err := orch.ProcessTurn(ctx, "u-1", "I want to stay healthy for my kids")
	require.NoError(t, err)
	assert.Equal(t, "What matters most to you?", result.Response)

	snap, err = orch.Inspect(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 4, snap.HistoryCount)
	assert.Equal(t, agents.AgentMotivation, snap.ActiveAgent)
}

func TestKnownPatientProfileSeedsSession(t *testing.T) {
	inv := &scriptedInvoker{bySchema: map[string]string{}}
	registry := agents.NewRegistry(inv)
	store := storage.NewMemorySessionStore(registry.Names())
	dir := &stubDirectory{byID: map[string]model.PatientProfile{
		"PRV-1001": {UserID: "PRV-1001", Name: "Jordan Reyes", DiabetesRisk: model.RiskHigh},
	}}
	orch := New(registry, store, dir)

	// Known name triggers the resume-choice fast path on the first turn.
	result, err := orch.ProcessTurn(context.Background(), "PRV-1001", "hello")
	require.NoError(t, err)
	assert.Contains(t, result.Response, "Welcome back, Jordan Reyes")

	loaded, err := store.Load(context.Background(), "PRV-1001")
	require.NoError(t, err)
	assert.Equal(t, model.RiskHigh, loaded.PatientProfile.DiabetesRisk)
}

func TestUnknownUserGetsDefaultProfile(t *testing.T) {
	inv := &scriptedInvoker{bySchema: map[string]string{}}
	orch, store := newOrchestrator(inv)

	_, err := orch.ProcessTurn(context.Background(), "stranger", "Hi!")
	require.NoError(t, err)

	loaded, err := store.Load(context.Background(), "stranger")
	require.NoError(t, err)
	assert.Empty(t, loaded.PatientProfile.Name)
	assert.Equal(t, model.RiskModerate, loaded.PatientProfile.DiabetesRisk)
	assert.InDelta(t, 5.7, loaded.PatientProfile.Biomarkers.A1C, 0.001)
	assert.Equal(t, journey.StageEducateMotivate, loaded.Stage)
}

func TestEducationToCoachingAdvancesStage(t *testing.T) {
	inv := &scriptedInvoker{bySchema: map[string]string{
		"education": `{"response": "Ready to set a goal?", "next_step": "transition_to_coaching"}`,
	}}
	orch, store := newOrchestrator(inv)
	ctx := context.Background()

	seed := model.NewSessionState("u-1", model.PatientProfile{UserID: "u-1", Name: "Alex"}, agents.AgentEducation)
	require.NoError(t, store.Save(ctx, "u-1", seed))

	result, err := orch.ProcessTurn(ctx, "u-1", "yes, let's do it")
	require.NoError(t, err)
	assert.Equal(t, agents.AgentCoaching, result.ActiveAgent)

	snap, err := orch.Inspect(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, journey.StageExploreCommit, snap.Stage)
}

func TestCommittedGoalAdvancesToEngage(t *testing.T) {
	inv := &scriptedInvoker{bySchema: map[string]string{
		"coaching": `{"response": "Love it. Start tonight.", "suggested_action": "10-minute walk after dinner"}`,
	}}
	orch, store := newOrchestrator(inv)
	ctx := context.Background()

	seed := model.NewSessionState("u-1", model.PatientProfile{UserID: "u-1", Name: "Alex"}, agents.AgentCoaching)
	seed.Stage = journey.StageExploreCommit
	require.NoError(t, store.Save(ctx, "u-1", seed))

	_, err := orch.ProcessTurn(ctx, "u-1", "I'll walk after dinner")
	require.NoError(t, err)

	snap, err := orch.Inspect(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, journey.StageEngage, snap.Stage)
	assert.Equal(t, agents.AgentCoaching, snap.ActiveAgent)
}

func TestRepairedSessionAtLateStageStaysUsable(t *testing.T) {
	inv := &scriptedInvoker{bySchema: map[string]string{}}
	orch, store := newOrchestrator(inv)
	ctx := context.Background()

	// A session persisted by an older build: the agent name no longer
	// exists, but the user already progressed to the Engage stage.
	seed := model.NewSessionState("u-1", model.PatientProfile{UserID: "u-1", Name: "Jordan"}, "agent_gone")
	seed.Stage = journey.StageEngage
	require.NoError(t, store.Save(ctx, "u-1", seed))

	// The load repairs the agent to intake; its welcome-back handoff must
	// not wedge on the stage, which stays where the user earned it.
	result, err := orch.ProcessTurn(ctx, "u-1", "hello again")
	require.NoError(t, err)
	assert.Contains(t, result.Response, "Welcome back, Jordan")

	snap, err := orch.Inspect(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, journey.StageEngage, snap.Stage)
	assert.Equal(t, agents.AgentIntake, snap.ActiveAgent)
	assert.Equal(t, 2, snap.HistoryCount, "the turn persisted")

	// And the session keeps working on the following turn.
	result, err = orch.ProcessTurn(ctx, "u-1", "let's continue")
	require.NoError(t, err)
	assert.Equal(t, agents.AgentMotivation, result.ActiveAgent)

	snap, err = orch.Inspect(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, journey.StageEngage, snap.Stage)
}

func TestAgentFailureLeavesTurnUnsaved(t *testing.T) {
	inv := &scriptedInvoker{err: errors.New("429 rate limit")}
	orch, _ := newOrchestrator(inv)
	ctx := context.Background()

	// Non-greeting input forces a model call, which fails.
	_, err := orch.ProcessTurn(ctx, "u-1", "my name is Pat and I have a question")
	require.Error(t, err)

	// The freshly created session was persisted, but not the failed turn.
	snap, err := orch.Inspect(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 0, snap.HistoryCount)
}

// failingSaves wraps a store and fails every Save after the first n.
type failingSaves struct {
	inner storage.SessionStore
	allow int
	calls int
}

func (f *failingSaves) Load(ctx context.Context, userID string) (*model.SessionState, error) {
	return f.inner.Load(ctx, userID)
}

func (f *failingSaves) Save(ctx context.Context, userID string, state *model.SessionState) error {
	f.calls++
	if f.calls > f.allow {
		return errors.New("redis: connection pool exhausted")
	}
	return f.inner.Save(ctx, userID, state)
}

func TestSaveFailureSurfacesAsTurnError(t *testing.T) {
	inv := &scriptedInvoker{bySchema: map[string]string{}}
	registry := agents.NewRegistry(inv)
	store := &failingSaves{inner: storage.NewMemorySessionStore(registry.Names()), allow: 1}
	orch := New(registry, store, &stubDirectory{byID: map[string]model.PatientProfile{}})

	_, err := orch.ProcessTurn(context.Background(), "u-1", "Hi!")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist session")
}

func TestUserMessageMapping(t *testing.T) {
	assert.Equal(t, MsgHighTraffic, UserMessage(errors.New("upstream said 429 too many requests")))
	assert.Equal(t, MsgHighTraffic, UserMessage(errors.New("RESOURCE_EXHAUSTED")))
	assert.Equal(t, MsgGeneric, UserMessage(errors.New("dial tcp: connection refused")))
	assert.Equal(t, MsgGeneric, UserMessage(gateway.ErrProvidersExhausted))
}
