package agents

import (
	"context"
	"fmt"
	"strings"

	"preventcoach/internal/gateway"
	"preventcoach/internal/logger"
	"preventcoach/internal/model"
)

// MotivationAgent runs the motivational-interviewing phase: it assesses
// readiness to change, mines scores and barriers out of the model's output
// into the profile, and hands off to education when the transition criteria
// are met.
type MotivationAgent struct {
	gw gateway.Invoker
}

func NewMotivationAgent(gw gateway.Invoker) *MotivationAgent {
	return &MotivationAgent{gw: gw}
}

func (a *MotivationAgent) Name() string { return AgentMotivation }

func (a *MotivationAgent) Process(ctx context.Context, userInput string, state *model.SessionState) (*Result, error) {
	result, err := a.gw.Invoke(ctx, motivationSpec, state, map[string]string{"user_input": userInput})
	if err != nil {
		return nil, err
	}

	response, ok := result.Field("response")
	if !ok {
		response = "I'm listening. Tell me more."
	}

	updatedContext := map[string]any{}

	if raw, ok := result.Field("readiness_score"); ok {
		if score, ok := parseScale(raw); ok {
			updatedContext["readiness_score"] = score
			state.PatientProfile.MotivationLevel = fmt.Sprintf("Readiness: %g/10", score)
		}
	}
	if raw, ok := result.Field("importance_rating"); ok {
		if rating, ok := parseScale(raw); ok {
			updatedContext["importance_rating"] = rating
			state.PatientProfile.ImportanceRating = rating
		}
	}
	if raw, ok := result.Field("confidence_rating"); ok {
		if rating, ok := parseScale(raw); ok {
			updatedContext["confidence_rating"] = rating
			state.PatientProfile.ConfidenceRating = rating
		}
	}
	if raw, ok := result.Field("readiness_stage"); ok {
		stage := strings.ToLower(raw)
		updatedContext["readiness_stage"] = stage
		state.PatientProfile.ReadinessStage = stage
	}
	if raw, ok := result.Field("barriers"); ok {
		barriers := splitList(raw)
		state.PatientProfile.Barriers = barriers
		updatedContext["barriers"] = barriers
	}
	if raw, ok := result.Field("facilitators"); ok {
		facilitators := splitList(raw)
		state.PatientProfile.Facilitators = facilitators
		updatedContext["facilitators"] = facilitators
	}

	nextAgent := ""
	if step, ok := result.Field("next_step"); ok && step == "transition_to_education" {
		logger.Info().Str("user_id", state.UserID).Msg("Motivation transition criteria met, moving to education")
		nextAgent = AgentEducation
	}

	return &Result{
		Response:       response,
		NextAgent:      nextAgent,
		UpdatedContext: updatedContext,
	}, nil
}
