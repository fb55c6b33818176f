package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"preventcoach/internal/journey"
	"preventcoach/internal/model"
)

var agentNames = []string{"intake", "motivation", "education", "coaching"}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore(agentNames)

	state := model.NewSessionState("u-1", model.PatientProfile{UserID: "u-1", Name: "Alex", Age: 42}, "intake")
	state.AppendMessage(model.UserMessage("hello"))
	state.AppendMessage(model.AssistantMessage("hi Alex"))
	state.ContextVariables["name"] = "Alex"
	state.Stage = journey.StageExploreCommit
	state.ActiveAgent = "coaching"

	require.NoError(t, store.Save(ctx, "u-1", state))

	loaded, err := store.Load(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, state.UserID, loaded.UserID)
	assert.Equal(t, "coaching", loaded.ActiveAgent)
	assert.Equal(t, journey.StageExploreCommit, loaded.Stage)
	assert.Equal(t, "Alex", loaded.PatientProfile.Name)
	require.Len(t, loaded.ConversationHistory, 2)
	assert.Equal(t, "hello", loaded.ConversationHistory[0].Content)
	assert.Equal(t, "Alex", loaded.ContextVariables["name"])
}

func TestMemoryStoreLoadMissingUser(t *testing.T) {
	store := NewMemorySessionStore(agentNames)

	_, err := store.Load(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Still absent after an unrelated user's save.
	other := model.NewSessionState("someone-else", model.PatientProfile{}, "intake")
	require.NoError(t, store.Save(context.Background(), "someone-else", other))

	_, err = store.Load(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemoryStoreLoadDoesNotAliasSavedState(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore(agentNames)

	state := model.NewSessionState("u-1", model.PatientProfile{UserID: "u-1"}, "intake")
	require.NoError(t, store.Save(ctx, "u-1", state))

	state.AppendMessage(model.UserMessage("mutated after save"))

	loaded, err := store.Load(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, loaded.ConversationHistory)
}

func TestLoadRepairsUnrecognizedActiveAgent(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore(agentNames)

	state := model.NewSessionState("u-1", model.PatientProfile{UserID: "u-1"}, "intake")
	state.ActiveAgent = "agent_that_no_longer_exists"
	require.NoError(t, store.Save(ctx, "u-1", state))

	loaded, err := store.Load(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "intake", loaded.ActiveAgent)
}

func TestLoadRepairsUnrecognizedStage(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore(agentNames)

	state := model.NewSessionState("u-1", model.PatientProfile{UserID: "u-1"}, "intake")
	state.Stage = journey.PatientStage("Graduated")
	require.NoError(t, store.Save(ctx, "u-1", state))

	loaded, err := store.Load(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, journey.StageEducateMotivate, loaded.Stage)
}

func TestLoadKeepsValidLateStage(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore(agentNames)

	state := model.NewSessionState("u-1", model.PatientProfile{UserID: "u-1"}, "intake")
	state.Stage = journey.StageSustain
	require.NoError(t, store.Save(ctx, "u-1", state))

	loaded, err := store.Load(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, journey.StageSustain, loaded.Stage)
}

func TestLoadRepairsNilMaps(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore(agentNames)

	state := &model.SessionState{UserID: "u-1", ActiveAgent: "intake", Stage: journey.StageEducateMotivate}
	require.NoError(t, store.Save(ctx, "u-1", state))

	loaded, err := store.Load(ctx, "u-1")
	require.NoError(t, err)
	assert.NotNil(t, loaded.ContextVariables)
	assert.NotNil(t, loaded.ConversationHistory)
}

func TestConcurrentSavesSameUser(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore(agentNames)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			state := model.NewSessionState("u-1", model.PatientProfile{UserID: "u-1"}, "intake")
			state.AppendMessage(model.UserMessage(fmt.Sprintf("turn %d", i)))
			assert.NoError(t, store.Save(ctx, "u-1", state))
		}(i)
	}
	wg.Wait()

	// Whatever save won, the stored value is one intact snapshot.
	loaded, err := store.Load(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, loaded.ConversationHistory, 1)
	assert.Contains(t, loaded.ConversationHistory[0].Content, "turn ")
}

func TestSessionKey(t *testing.T) {
	assert.Equal(t, "session:PRV-1001", sessionKey("PRV-1001"))
}
