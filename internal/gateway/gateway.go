package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/cloudwego/eino/schema"

	"preventcoach/internal/logger"
	"preventcoach/internal/model"
)

// ErrProvidersExhausted is returned when the provider list is empty. When
// providers exist but all fail, Invoke returns the last provider's error
// instead.
var ErrProvidersExhausted = errors.New("all model providers exhausted")

// Reserved input names the gateway always fills itself. Caller-supplied
// values for these are ignored.
const (
	inputHistory     = "history"
	inputUserProfile = "user_profile"
	inputUserContext = "user_context"
)

const summaryLimit = 160

// Invoker is the capability agents use to reach a model. Satisfied by
// *Gateway; stubbed in tests.
type Invoker interface {
	Invoke(ctx context.Context, spec PromptSpec, state *model.SessionState, extra map[string]string) (*Prediction, error)
}

// AuditWriter receives one record per successful invocation without
// blocking the caller.
type AuditWriter interface {
	Enqueue(record model.AuditRecord)
}

// Gateway turns prompt specs plus session context into model responses,
// masking transient provider failure behind a linear failover loop.
type Gateway struct {
	mu        sync.RWMutex
	providers []*Provider
	window    int
	audit     AuditWriter
}

// New creates a gateway over a priority-ordered provider list. window is the
// number of trailing history messages injected into "history" inputs.
func New(providers []*Provider, window int, audit AuditWriter) *Gateway {
	if window <= 0 {
		window = 8
	}
	return &Gateway{providers: providers, window: window, audit: audit}
}

// Invoke resolves the spec's inputs from the session state, then attempts
// each provider in priority order. Each provider gets exactly one attempt;
// the first success wins. If every provider fails the last error is
// returned.
func (g *Gateway) Invoke(ctx context.Context, spec PromptSpec, state *model.SessionState, extra map[string]string) (*Prediction, error) {
	inputs := g.resolveInputs(spec, state, extra)
	messages := spec.BuildMessages(inputs)

	g.mu.RLock()
	providers := g.providers
	g.mu.RUnlock()

	if len(providers) == 0 {
		return nil, ErrProvidersExhausted
	}

	logger.Debug().
		Str("schema", spec.Name).
		Str("user_id", state.UserID).
		Int("providers", len(providers)).
		Msg("Starting failover loop")

	var lastErr error
	for i, p := range providers {
		cm, err := p.client(ctx, spec)
		if err != nil {
			logger.Warn().Err(err).Str("provider", p.Name()).Msg("Provider client construction failed")
			lastErr = err
			continue
		}

		start := time.Now()
		out, err := cm.Generate(ctx, messages)
		latency := time.Since(start)
		if err != nil {
			logger.Warn().Err(err).
				Str("provider", p.Name()).
				Int("attempt", i+1).
				Msg("Provider attempt failed")
			lastErr = err
			continue
		}

		logger.Info().
			Str("provider", p.Name()).
			Str("schema", spec.Name).
			Str("user_id", state.UserID).
			Int64("latency_ms", latency.Milliseconds()).
			Msg("Model invocation succeeded")

		if g.audit != nil {
			g.audit.Enqueue(model.AuditRecord{
				UserID:          state.UserID,
				AgentName:       state.ActiveAgent,
				RequestKind:     spec.Name,
				PromptSummary:   summarize(lastUserContent(messages)),
				ResponseSummary: summarize(out.Content),
				Provider:        p.Name(),
				Model:           p.ModelName(),
				LatencyMS:       latency.Milliseconds(),
				Timestamp:       time.Now(),
			})
		}

		pred := NewPrediction(out.Content)
		pred.Provider = p.Name()
		pred.Model = p.ModelName()
		return pred, nil
	}

	logger.Error().Str("schema", spec.Name).Msg("All providers failed")
	return nil, lastErr
}

// Reconfigure replaces the provider list and returns the new effective
// priority order by name.
func (g *Gateway) Reconfigure(providers []*Provider) []string {
	g.mu.Lock()
	g.providers = providers
	g.mu.Unlock()

	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}
	logger.Info().Strs("providers", names).Msg("Gateway reconfigured")
	return names
}

// resolveInputs merges caller-supplied inputs with the reserved injected
// ones. Reserved names always win.
func (g *Gateway) resolveInputs(spec PromptSpec, state *model.SessionState, extra map[string]string) map[string]string {
	inputs := make(map[string]string, len(extra)+3)
	for k, v := range extra {
		if spec.HasInput(k) {
			inputs[k] = v
		}
	}

	if spec.HasInput(inputHistory) {
		inputs[inputHistory] = historyWindow(state.ConversationHistory, g.window)
	}
	if spec.HasInput(inputUserProfile) {
		inputs[inputUserProfile] = profileSnapshot(&state.PatientProfile)
	}
	if spec.HasInput(inputUserContext) {
		inputs[inputUserContext] = fmt.Sprintf("%s\ncurrent_stage: %s", profileSnapshot(&state.PatientProfile), state.Stage)
	}
	return inputs
}

// historyWindow formats the last n messages as "role: content" lines in
// chronological order.
func historyWindow(history []model.Message, n int) string {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	lines := make([]string, len(history))
	for i, msg := range history {
		lines[i] = fmt.Sprintf("%s: %s", msg.Role, msg.Content)
	}
	return strings.Join(lines, "\n")
}

func profileSnapshot(profile *model.PatientProfile) string {
	data, err := sonic.MarshalString(profile)
	if err != nil {
		logger.Warn().Err(err).Msg("Profile snapshot serialization failed")
		return "{}"
	}
	return data
}

// lastUserContent pulls the rendered user message for the audit summary.
func lastUserContent(messages []*schema.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == schema.User {
			return messages[i].Content
		}
	}
	return ""
}

func summarize(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= summaryLimit {
		return s
	}
	// Back up to a rune boundary so the cut never splits a multibyte
	// character.
	cut := summaryLimit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
