package registry

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"vaanigo/internal/config"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// ErrUnconfiguredModel is returned when a model id has no configured client.
var ErrUnconfiguredModel = errors.New("model not configured")

const groqBaseURL = "https://api.groq.com/openai/v1"

// Factory constructs a provider chat client. Clients are built per dispatch
// rather than cached: construction is cheap and keeps the registry immutable.
type Factory func(ctx context.Context) (model.ToolCallingChatModel, error)

// Registry maps model identifiers to client factories. It is built once at
// startup from whichever provider credentials are present and never mutated
// afterwards, so it is safe for concurrent use without locking.
type Registry struct {
	factories map[string]Factory
	order     []string
}

// New probes the configured providers and registers the model ids each one
// serves. A missing credential silently omits its models.
func New(cfg *config.Config) *Registry {
	r := &Registry{factories: make(map[string]Factory)}

	if p, ok := cfg.Providers["openai"]; ok && p.APIKey != "" {
		for _, id := range []string{"gpt-4o-mini", "gpt-4o"} {
			r.Register(id, openAIFactory(id, p.BaseURL, p.APIKey))
		}
	} else {
		log.Printf("OPENAI_API_KEY is not set. OpenAI models will not be available.")
	}

	if p, ok := cfg.Providers["google"]; ok && p.APIKey != "" {
		r.Register("gemini-1.5-flash", geminiFactory("gemini-1.5-flash", p.APIKey))
	} else {
		log.Printf("GOOGLE_API_KEY is not set. Google Gemini models will not be available.")
	}

	if p, ok := cfg.Providers["anthropic"]; ok && p.APIKey != "" {
		r.Register("claude-3-haiku-20240307", claudeFactory("claude-3-haiku-20240307", p.BaseURL, p.APIKey))
	} else {
		log.Printf("ANTHROPIC_API_KEY is not set. Anthropic Claude models will not be available.")
	}

	if p, ok := cfg.Providers["groq"]; ok && p.APIKey != "" {
		baseURL := p.BaseURL
		if baseURL == "" {
			baseURL = groqBaseURL
		}
		for _, id := range []string{"llama-3.3-70b-versatile", "mixtral-8x7b-32768"} {
			r.Register(id, openAIFactory(id, baseURL, p.APIKey))
		}
	} else {
		log.Printf("GROQ_API_KEY is not set. Groq models will not be available.")
	}

	if len(r.order) == 0 {
		log.Printf("no model clients could be initialized, check your API keys")
	}
	return r
}

// Register adds a model id with its factory. Registration order is kept so
// First is deterministic.
func (r *Registry) Register(id string, f Factory) {
	if _, ok := r.factories[id]; !ok {
		r.order = append(r.order, id)
	}
	r.factories[id] = f
}

// Models returns the configured model identifiers, sorted.
func (r *Registry) Models() []string {
	ids := make([]string, len(r.order))
	copy(ids, r.order)
	sort.Strings(ids)
	return ids
}

// Has reports whether the model id is configured.
func (r *Registry) Has(id string) bool {
	_, ok := r.factories[id]
	return ok
}

// Empty reports whether no provider credentials were found.
func (r *Registry) Empty() bool {
	return len(r.order) == 0
}

// First returns the first-registered model id, empty when the registry is
// empty. Used as the silent fallback target for unknown model ids.
func (r *Registry) First() string {
	if len(r.order) == 0 {
		return ""
	}
	return r.order[0]
}

// Client constructs the chat client for a model id.
func (r *Registry) Client(ctx context.Context, id string) (model.ToolCallingChatModel, error) {
	f, ok := r.factories[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnconfiguredModel, id)
	}
	return f(ctx)
}

func openAIFactory(modelID, baseURL, apiKey string) Factory {
	return func(ctx context.Context) (model.ToolCallingChatModel, error) {
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL: baseURL,
			Model:   modelID,
			APIKey:  apiKey,
		})
	}
}

func geminiFactory(modelID, apiKey string) Factory {
	return func(ctx context.Context) (model.ToolCallingChatModel, error) {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
		if err != nil {
			return nil, fmt.Errorf("new gemini client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client: client,
			Model:  modelID,
		})
	}
}

func claudeFactory(modelID, baseURL, apiKey string) Factory {
	return func(ctx context.Context) (model.ToolCallingChatModel, error) {
		var baseURLPtr *string
		if baseURL != "" {
			baseURLPtr = &baseURL
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:    apiKey,
			Model:     modelID,
			BaseURL:   baseURLPtr,
			MaxTokens: 3000,
		})
	}
}
