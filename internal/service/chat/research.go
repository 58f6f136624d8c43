package chat

import (
	"context"
	"fmt"
	"log"
	"strings"

	"vaanigo/internal/service/registry"
	"vaanigo/internal/worker"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
)

// researchModelMapping translates internal model ids to the provider/model
// strings the research graph expects.
var researchModelMapping = map[string]string{
	"gpt-4o-mini":             "openai/gpt-4o-mini",
	"gpt-4o":                  "openai/gpt-4o",
	"gemini-1.5-flash":        "google/gemini-1.5-flash",
	"claude-3-haiku-20240307": "anthropic/claude-3-haiku-20240307",
	"llama-3.3-70b-versatile": "groq/llama-3.3-70b-versatile",
	"mixtral-8x7b-32768":      "groq/mixtral-8x7b-32768",
}

// researchFallbackOrder is the fixed priority list for the fallback model.
var researchFallbackOrder = []string{
	"gpt-4o-mini",
	"gemini-1.5-flash",
	"llama-3.3-70b-versatile",
}

// ResearchConfig is the configuration object handed to the research graph.
type ResearchConfig struct {
	Model            string // provider/model string
	FallbackModel    string
	MaxSearchResults int
	ThreadID         string
}

// ResearchGraphBuilder constructs the research graph for one dispatch.
type ResearchGraphBuilder func(ctx context.Context, cfg ResearchConfig) (GraphRunner, error)

// ResearchInput carries one research dispatch.
type ResearchInput struct {
	Conversation     []*schema.Message
	Model            string
	ThreadID         string
	MaxSearchResults int
}

// ResearchDispatcher routes a conversation through the search-capable
// research agent graph, with its own model-string convention and fallback
// selection.
type ResearchDispatcher struct {
	registry *registry.Registry
	pool     *worker.Pool
	build    ResearchGraphBuilder
}

func NewResearchDispatcher(reg *registry.Registry, pool *worker.Pool, build ResearchGraphBuilder) *ResearchDispatcher {
	d := &ResearchDispatcher{registry: reg, pool: pool, build: build}
	if d.build == nil {
		d.build = d.defaultBuilder
	}
	return d
}

// Configure translates the requested model into the graph's model string and
// picks a deterministic fallback: the first of the priority list that is
// configured and maps to a different string than the primary.
func (r *ResearchDispatcher) Configure(in ResearchInput) ResearchConfig {
	agentModel, ok := researchModelMapping[in.Model]
	if !ok {
		log.Printf("model %s not found in research mapping, using default format", in.Model)
		agentModel = "default/" + in.Model
	}

	cfg := ResearchConfig{
		Model:            agentModel,
		MaxSearchResults: in.MaxSearchResults,
		ThreadID:         in.ThreadID,
	}
	if cfg.MaxSearchResults <= 0 {
		cfg.MaxSearchResults = 3
	}
	for _, id := range researchFallbackOrder {
		mapped := researchModelMapping[id]
		if r.registry.Has(id) && mapped != agentModel {
			cfg.FallbackModel = mapped
			break
		}
	}
	return cfg
}

// Dispatch invokes the research graph and returns the final text. An
// upstream overload is reported with a dedicated retry suggestion; all other
// failures degrade to a generic research-agent message.
func (r *ResearchDispatcher) Dispatch(ctx context.Context, in ResearchInput) string {
	cfg := r.Configure(in)

	graph, err := r.build(ctx, cfg)
	if err != nil {
		return researchErrorMessage(err)
	}

	log.Printf("research dispatch: thread=%s model=%s fallback=%s max_results=%d",
		cfg.ThreadID, cfg.Model, cfg.FallbackModel, cfg.MaxSearchResults)

	var result *schema.Message
	if perr := r.pool.Run(ctx, func() {
		result, err = graph.Generate(ctx, in.Conversation)
	}); perr != nil {
		return researchErrorMessage(perr)
	}
	if err != nil {
		return researchErrorMessage(err)
	}

	text, ok := extractText(result)
	if !ok {
		log.Printf("no messages in research result for thread %s", cfg.ThreadID)
		return researchEmptyResult
	}
	return text
}

// defaultBuilder maps the provider/model string back to a configured client
// and assembles a react agent with the web search tools.
func (r *ResearchDispatcher) defaultBuilder(ctx context.Context, cfg ResearchConfig) (GraphRunner, error) {
	id := internalModelID(cfg.Model)
	if !r.registry.Has(id) && cfg.FallbackModel != "" {
		id = internalModelID(cfg.FallbackModel)
	}
	client, err := r.registry.Client(ctx, id)
	if err != nil {
		return nil, err
	}

	tools := searchTools(cfg.MaxSearchResults)
	if len(tools) == 0 {
		return modelRunner{client}, nil
	}
	return react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: client,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: tools,
		},
	})
}

// internalModelID strips the provider prefix from a provider/model string.
func internalModelID(agentModel string) string {
	if i := strings.IndexByte(agentModel, '/'); i >= 0 {
		return agentModel[i+1:]
	}
	return agentModel
}

// isOverloaded recognizes the upstream "service overloaded" condition, which
// gets its own user-facing message.
func isOverloaded(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "overloaded") || strings.Contains(msg, "529")
}

func researchErrorMessage(err error) string {
	log.Printf("research dispatch failed: %v", err)
	if isOverloaded(err) {
		return overloadedMessage
	}
	return fmt.Sprintf("I encountered an error with the research agent: %v", err)
}
