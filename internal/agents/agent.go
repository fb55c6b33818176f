package agents

import (
	"context"
	"strconv"
	"strings"

	"preventcoach/internal/gateway"
	"preventcoach/internal/model"
)

// Registered agent names, one per conversation phase.
const (
	AgentIntake     = "intake"
	AgentMotivation = "motivation"
	AgentEducation  = "education"
	AgentCoaching   = "coaching"
)

// InitialAgent is the phase every new session starts in, and the fallback
// substituted when a persisted agent name is unrecognized.
const InitialAgent = AgentIntake

// apologyResponse replaces a missing primary response field so the user
// never sees an empty reply.
const apologyResponse = "I'm sorry, I couldn't process that. Could you say that again?"

// Result is what an agent hands back to the orchestrator for one turn.
// NextAgent, when set, must name a registered agent; only the orchestrator
// applies the handoff.
type Result struct {
	Response       string
	NextAgent      string
	UpdatedContext map[string]any
}

// Agent is a conversation-phase handler. Process consumes the user's input
// plus session state and produces a response with optional state deltas. An
// agent may mutate state.PatientProfile in place as it extracts signals.
type Agent interface {
	Name() string
	Process(ctx context.Context, userInput string, state *model.SessionState) (*Result, error)
}

// Registry maps agent names to agents.
type Registry map[string]Agent

// NewRegistry builds the default four-phase registry over a gateway.
func NewRegistry(gw gateway.Invoker) Registry {
	registry := Registry{}
	for _, a := range []Agent{
		NewIntakeAgent(gw),
		NewMotivationAgent(gw),
		NewEducationAgent(gw),
		NewCoachingAgent(gw),
	} {
		registry[a.Name()] = a
	}
	return registry
}

// Names returns the registered agent names with the initial agent first.
func (r Registry) Names() []string {
	names := []string{InitialAgent}
	for name := range r {
		if name != InitialAgent {
			names = append(names, name)
		}
	}
	return names
}

// parseScale parses a 1-10 score from model output, tolerating "7", "7.5"
// and "7/10" shapes. Parse failures report ok=false and are swallowed by
// callers, leaving the profile field unchanged.
func parseScale(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, "/"); i > 0 {
		s = s[:i]
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// splitList splits a comma-separated model output into trimmed items.
func splitList(s string) []string {
	if !strings.Contains(s, ",") {
		return []string{strings.TrimSpace(s)}
	}
	parts := strings.Split(s, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
