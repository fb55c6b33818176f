package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"preventcoach/internal/agents"
	"preventcoach/internal/gateway"
	"preventcoach/internal/journey"
	"preventcoach/internal/logger"
	"preventcoach/internal/model"
	"preventcoach/internal/profiles"
	"preventcoach/internal/storage"
)

// User-visible messages for the two boundary error classes.
const (
	MsgHighTraffic = "I'm experiencing very high traffic right now. Please give me a moment and try again."
	MsgGeneric     = "Something went wrong on my end. Please try again."
)

// TurnResult is the outcome of one conversational turn.
type TurnResult struct {
	Response    string `json:"response"`
	ActiveAgent string `json:"active_agent"`
}

// Snapshot is the read-only debug view of a session, used by tests and
// operators, never by the conversational flow.
type Snapshot struct {
	ActiveAgent  string               `json:"active_agent"`
	Stage        journey.PatientStage `json:"stage"`
	HistoryCount int                  `json:"history_count"`
}

// stageForAgent maps a handoff target to the journey stage that phase
// serves. The journey validator still arbitrates every move.
var stageForAgent = map[string]journey.PatientStage{
	agents.AgentIntake:     journey.StageEducateMotivate,
	agents.AgentMotivation: journey.StageEducateMotivate,
	agents.AgentEducation:  journey.StageEducateMotivate,
	agents.AgentCoaching:   journey.StageExploreCommit,
}

// Orchestrator drives the per-turn loop: load session, dispatch to the
// active agent, apply deltas, persist, respond. Agent handoffs are applied
// here and nowhere else.
type Orchestrator struct {
	agents    agents.Registry
	store     storage.SessionStore
	directory profiles.Directory
}

func New(registry agents.Registry, store storage.SessionStore, directory profiles.Directory) *Orchestrator {
	return &Orchestrator{
		agents:    registry,
		store:     store,
		directory: directory,
	}
}

// ProcessTurn handles one inbound chat message. State is reloaded from the
// store at the top of every turn and saved at the bottom; no in-process
// copy survives between turns.
func (o *Orchestrator) ProcessTurn(ctx context.Context, userID, userInput string) (*TurnResult, error) {
	state, err := o.getOrCreateState(ctx, userID)
	if err != nil {
		return nil, err
	}

	state.AppendMessage(model.UserMessage(userInput))

	agent, ok := o.agents[state.ActiveAgent]
	if !ok {
		// Store normalization should have caught this; repair anyway.
		logger.Warn().Str("active_agent", state.ActiveAgent).Msg("Unregistered active agent, falling back to initial")
		state.ActiveAgent = agents.InitialAgent
		agent = o.agents[agents.InitialAgent]
	}

	result, err := agent.Process(ctx, userInput, state)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", state.ActiveAgent, err)
	}

	state.AppendMessage(model.AssistantMessage(result.Response))

	for key, value := range result.UpdatedContext {
		state.ContextVariables[key] = value
	}

	if err := o.applyHandoff(state, result); err != nil {
		// A handoff to an unregistered agent is a programming error and
		// fatal to the turn.
		return nil, err
	}

	state.UpdatedAt = time.Now().Unix()
	if err := o.store.Save(ctx, userID, state); err != nil {
		logger.Error().Err(err).Str("user_id", userID).Msg("Session save failed, scheduling background retry")
		o.retrySave(userID, state)
		return nil, fmt.Errorf("persist session: %w", err)
	}

	return &TurnResult{
		Response:    result.Response,
		ActiveAgent: state.ActiveAgent,
	}, nil
}

// applyHandoff moves the active agent and advances the journey stage
// through the validator. The agent-to-stage mapping is best-effort
// scaffolding for the typical forward flow: when a repaired or relapsed
// session sits in a later stage than the target agent usually serves, the
// handoff still happens and the stage simply stays put.
func (o *Orchestrator) applyHandoff(state *model.SessionState, result *agents.Result) error {
	if result.NextAgent != "" {
		if _, ok := o.agents[result.NextAgent]; !ok {
			return fmt.Errorf("agent %s requested handoff to unregistered agent %s", state.ActiveAgent, result.NextAgent)
		}

		target, ok := stageForAgent[result.NextAgent]
		if ok && target != state.Stage {
			if journey.CanTransition(state.Stage, target) {
				state.Stage = target
			} else {
				logger.Warn().
					Str("user_id", state.UserID).
					Str("stage", string(state.Stage)).
					Str("next_agent", result.NextAgent).
					Msg("Keeping current stage, mapped stage is not reachable from it")
			}
		}
		state.ActiveAgent = result.NextAgent
	}

	// A committed goal moves the journey from exploring to engaging.
	if state.ContextBool("goal_committed") && state.Stage == journey.StageExploreCommit {
		next, err := journey.Transition(state.Stage, journey.StageEngage)
		if err != nil {
			return err
		}
		state.Stage = next
	}
	return nil
}

// getOrCreateState loads the durable session, creating and immediately
// persisting a fresh one on first contact. The profile is seeded from the
// patient directory, or the documented default when the lookup misses.
func (o *Orchestrator) getOrCreateState(ctx context.Context, userID string) (*model.SessionState, error) {
	state, err := o.store.Load(ctx, userID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, storage.ErrSessionNotFound) {
		return nil, fmt.Errorf("load session: %w", err)
	}

	profile := profiles.DefaultProfile(userID)
	if found, ok := o.directory.FindByID(userID); ok {
		profile = *found
	}

	state = model.NewSessionState(userID, profile, agents.InitialAgent)
	if err := o.store.Save(ctx, userID, state); err != nil {
		return nil, fmt.Errorf("persist new session: %w", err)
	}

	logger.Info().Str("user_id", userID).Bool("known_patient", profile.Name != "").Msg("Session created")
	return state, nil
}

// retrySave makes one best-effort background attempt to persist a state
// whose foreground save failed. The turn has already been reported as an
// error; this only narrows the inconsistency window.
func (o *Orchestrator) retrySave(userID string, state *model.SessionState) {
	go func() {
		time.Sleep(500 * time.Millisecond)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.store.Save(ctx, userID, state); err != nil {
			logger.Error().Err(err).Str("user_id", userID).Msg("Background session save retry failed")
			return
		}
		logger.Info().Str("user_id", userID).Msg("Background session save retry succeeded")
	}()
}

// Inspect exposes a read-only session snapshot for operators and tests.
func (o *Orchestrator) Inspect(ctx context.Context, userID string) (*Snapshot, error) {
	state, err := o.store.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		ActiveAgent:  state.ActiveAgent,
		Stage:        state.Stage,
		HistoryCount: len(state.ConversationHistory),
	}, nil
}

// UserMessage maps an internal turn error to the string shown to the user.
// Quota-flavored exhaustion gets the high-traffic message; everything else
// is generic.
func UserMessage(err error) string {
	if gateway.IsQuotaError(err) {
		return MsgHighTraffic
	}
	return MsgGeneric
}
