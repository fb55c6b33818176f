package agents

import (
	"context"

	"preventcoach/internal/gateway"
	"preventcoach/internal/logger"
	"preventcoach/internal/model"
)

// CoachingAgent helps with habit formation: SMART goals broken down into
// tiny steps. A produced suggested_action marks the user as having committed
// to a goal.
type CoachingAgent struct {
	gw gateway.Invoker
}

func NewCoachingAgent(gw gateway.Invoker) *CoachingAgent {
	return &CoachingAgent{gw: gw}
}

func (a *CoachingAgent) Name() string { return AgentCoaching }

func (a *CoachingAgent) Process(ctx context.Context, userInput string, state *model.SessionState) (*Result, error) {
	result, err := a.gw.Invoke(ctx, coachingSpec, state, map[string]string{"user_input": userInput})
	if err != nil {
		return nil, err
	}

	response, ok := result.Field("response")
	if !ok {
		logger.Warn().Str("user_id", state.UserID).Msg("Model returned empty coaching response")
		response = apologyResponse
	}

	updatedContext := map[string]any{}
	if action, ok := result.Field("suggested_action"); ok {
		updatedContext["suggested_action"] = action
		updatedContext["goal_committed"] = true
	}

	return &Result{
		Response:       response,
		UpdatedContext: updatedContext,
	}, nil
}
