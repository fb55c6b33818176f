package gateway

import (
	"context"
	"fmt"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/ollama"
	"github.com/cloudwego/eino-ext/components/model/openai"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/ollama/ollama/api"

	"preventcoach/internal/config"
)

// ChatModel is the narrow generation interface the gateway needs. All
// eino-ext chat models satisfy it.
type ChatModel interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...einomodel.Option) (*schema.Message, error)
}

// Provider wraps one credential/model pair in the failover list. A provider
// lazily constructs and caches one chat model per prompt-schema name, since
// schemas pin their own token and temperature limits.
type Provider struct {
	name      string
	kind      string
	modelName string
	apiKey    string
	baseURL   string

	mu      sync.Mutex
	clients map[string]ChatModel

	// build is swappable for tests; defaults to the eino-ext constructors.
	build func(ctx context.Context, spec PromptSpec) (ChatModel, error)
}

// NewProvider creates a provider from its configuration.
func NewProvider(cfg config.ProviderConfig) *Provider {
	p := &Provider{
		name:      cfg.Name,
		kind:      cfg.Kind,
		modelName: cfg.Model,
		apiKey:    cfg.APIKey,
		baseURL:   cfg.BaseURL,
		clients:   make(map[string]ChatModel),
	}
	p.build = p.buildClient
	return p
}

// NewStubProvider creates a provider backed by an arbitrary builder. Used by
// tests to stand in for a real model endpoint.
func NewStubProvider(name string, build func(ctx context.Context, spec PromptSpec) (ChatModel, error)) *Provider {
	return &Provider{
		name:      name,
		kind:      "stub",
		modelName: "stub",
		clients:   make(map[string]ChatModel),
		build:     build,
	}
}

// Name returns the provider's configured name.
func (p *Provider) Name() string { return p.name }

// ModelName returns the resolved model identifier.
func (p *Provider) ModelName() string { return p.modelName }

// client returns the cached chat model for a schema, constructing it on
// first use.
func (p *Provider) client(ctx context.Context, spec PromptSpec) (ChatModel, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if cm, ok := p.clients[spec.Name]; ok {
		return cm, nil
	}

	cm, err := p.build(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("provider %s: %w", p.name, err)
	}
	p.clients[spec.Name] = cm
	return cm, nil
}

func (p *Provider) buildClient(ctx context.Context, spec PromptSpec) (ChatModel, error) {
	maxTokens := spec.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	temperature := spec.Temperature

	switch p.kind {
	case "openai":
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      p.apiKey,
			BaseURL:     p.baseURL,
			Model:       p.modelName,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
		})

	case "deepseek":
		return deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:      p.apiKey,
			BaseURL:     p.baseURL,
			Model:       p.modelName,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		})

	case "ark":
		return ark.NewChatModel(ctx, &ark.ChatModelConfig{
			APIKey:      p.apiKey,
			BaseURL:     p.baseURL,
			Model:       p.modelName,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
		})

	case "ollama":
		return ollama.NewChatModel(ctx, &ollama.ChatModelConfig{
			BaseURL: p.baseURL,
			Model:   p.modelName,
			Options: &api.Options{
				NumPredict:  maxTokens,
				Temperature: temperature,
			},
		})

	default:
		return nil, fmt.Errorf("unsupported provider kind: %s", p.kind)
	}
}

// BuildProviders constructs the priority-ordered provider list from config.
func BuildProviders(configs []config.ProviderConfig) []*Provider {
	providers := make([]*Provider, 0, len(configs))
	for _, cfg := range configs {
		providers = append(providers, NewProvider(cfg))
	}
	return providers
}
