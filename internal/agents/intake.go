package agents

import (
	"context"
	"fmt"
	"strings"

	"preventcoach/internal/gateway"
	"preventcoach/internal/logger"
	"preventcoach/internal/model"
)

// contextPendingResume flags that intake asked the user whether to resume or
// start fresh and is waiting for the answer.
const contextPendingResume = "pending_resume_choice"

// IntakeAgent welcomes the user, learns their name and hands off to the
// motivation phase. It short-circuits the model call on its deterministic
// paths (first contact, resume choice) to cut latency and cost.
type IntakeAgent struct {
	gw gateway.Invoker
}

func NewIntakeAgent(gw gateway.Invoker) *IntakeAgent {
	return &IntakeAgent{gw: gw}
}

func (a *IntakeAgent) Name() string { return AgentIntake }

func (a *IntakeAgent) Process(ctx context.Context, userInput string, state *model.SessionState) (*Result, error) {
	// Pending resume choice: parse the answer without a model call.
	if state.ContextBool(contextPendingResume) {
		return a.handleResumeChoice(userInput, state), nil
	}

	// Known name: returning user, offer to resume or start fresh.
	if state.PatientProfile.Name != "" && state.PatientProfile.Name != "User" {
		logger.Debug().Str("name", state.PatientProfile.Name).Msg("Known name, offering resume choice")
		return &Result{
			Response: fmt.Sprintf(
				"Welcome back, %s! It's great to see you again. Would you like to continue from where we left off, or is there something else on your mind today?",
				state.PatientProfile.Name),
			NextAgent:      AgentIntake, // stay one more turn to handle the choice
			UpdatedContext: map[string]any{contextPendingResume: true},
		}, nil
	}

	// Very first interaction with an unknown name and nothing to extract:
	// static welcome, no model latency.
	if len(state.ConversationHistory) <= 1 && isBareGreeting(userInput) {
		return &Result{
			Response:  "Hello! I'm Dawn, your Diabetes Prevention Assistant. I'm here to support your journey. To get started, may I ask your name?",
			NextAgent: AgentIntake,
		}, nil
	}

	result, err := a.gw.Invoke(ctx, intakeSpec, state, map[string]string{"user_input": userInput})
	if err != nil {
		return nil, err
	}

	response, ok := result.Field("response")
	if !ok {
		logger.Warn().Str("user_id", state.UserID).Msg("Model returned empty intake response")
		response = apologyResponse
	}

	updatedContext := map[string]any{}
	if name, ok := result.Field("extracted_name"); ok {
		state.PatientProfile.Name = name
		updatedContext["name"] = name
	}

	nextAgent := ""
	if step, ok := result.Field("next_step"); ok && step == "transition_to_motivation" {
		nextAgent = AgentMotivation
	}

	return &Result{
		Response:       response,
		NextAgent:      nextAgent,
		UpdatedContext: updatedContext,
	}, nil
}

// isBareGreeting reports whether the input is a plain greeting carrying no
// extractable information.
func isBareGreeting(s string) bool {
	t := strings.Trim(strings.ToLower(strings.TrimSpace(s)), "!., ")
	switch t {
	case "hi", "hello", "hey", "hiya", "good morning", "good afternoon", "good evening", "start":
		return true
	}
	return false
}

// handleResumeChoice interprets the user's answer to the resume-or-fresh
// question. "Fresh" wipes the history but keeps the profile.
func (a *IntakeAgent) handleResumeChoice(userInput string, state *model.SessionState) *Result {
	lower := strings.ToLower(userInput)
	startFresh := false
	for _, word := range []string{"fresh", "something else", "new", "start over", "mind"} {
		if strings.Contains(lower, word) {
			startFresh = true
			break
		}
	}

	if startFresh {
		logger.Info().Str("user_id", state.UserID).Msg("User chose a fresh start, wiping conversation history")
		// Keep only the current turn's user message.
		if n := len(state.ConversationHistory); n > 1 {
			state.ConversationHistory = state.ConversationHistory[n-1:]
		}
	}

	return &Result{
		Response:       "Understood. Let's dive in. How are you feeling about your health goals currently?",
		NextAgent:      AgentMotivation,
		UpdatedContext: map[string]any{contextPendingResume: false},
	}
}
