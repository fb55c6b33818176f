package agents

import (
	"context"

	"preventcoach/internal/gateway"
	"preventcoach/internal/logger"
	"preventcoach/internal/model"
)

// EducationAgent delivers bite-sized education with the
// Elicit-Provide-Elicit model and hands off to coaching once the user is
// ready to work on goals.
type EducationAgent struct {
	gw gateway.Invoker
}

func NewEducationAgent(gw gateway.Invoker) *EducationAgent {
	return &EducationAgent{gw: gw}
}

func (a *EducationAgent) Name() string { return AgentEducation }

func (a *EducationAgent) Process(ctx context.Context, userInput string, state *model.SessionState) (*Result, error) {
	result, err := a.gw.Invoke(ctx, educationSpec, state, map[string]string{"user_input": userInput})
	if err != nil {
		return nil, err
	}

	response, ok := result.Field("response")
	if !ok {
		logger.Warn().Str("user_id", state.UserID).Msg("Model returned empty education response")
		response = apologyResponse
	}

	updatedContext := map[string]any{}
	if quiz, ok := result.Field("quiz_question"); ok {
		updatedContext["last_quiz"] = quiz
	}

	nextAgent := ""
	if step, ok := result.Field("next_step"); ok && step == "transition_to_coaching" {
		nextAgent = AgentCoaching
	}

	return &Result{
		Response:       response,
		NextAgent:      nextAgent,
		UpdatedContext: updatedContext,
	}, nil
}
