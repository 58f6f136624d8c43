package chat

import (
	"context"
	"fmt"
	"log"

	"vaanigo/internal/service/registry"
	"vaanigo/internal/worker"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/flow/agent"
	"github.com/cloudwego/eino/flow/agent/react"
	"github.com/cloudwego/eino/schema"
)

// GraphRunner is the slice of an agent graph this layer invokes. The graph's
// internal state machine, tool calling and retrieval are the graph's own
// business; this layer only builds the input and unwraps the result.
type GraphRunner interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...agent.AgentOption) (*schema.Message, error)
}

// GraphBuilder constructs the agent graph for one dispatch. Swappable for
// tests.
type GraphBuilder func(ctx context.Context, in AgentInput) (GraphRunner, error)

// AgentInput carries everything an agent dispatch needs. ThreadID keys the
// graph's own state and is opaque here.
type AgentInput struct {
	Conversation []*schema.Message
	Model        string
	ThreadID     string
	FileURL      string
	DeepResearch bool
}

// agentName derives the agent profile for the request: the web search agent
// when deep research was asked for, none otherwise.
func (in AgentInput) agentName() string {
	if in.DeepResearch {
		return webSearchAgentName
	}
	return ""
}

// AgentDispatcher routes a conversation through the pre-built react agent
// graph instead of calling the provider directly.
type AgentDispatcher struct {
	registry *registry.Registry
	pool     *worker.Pool
	build    GraphBuilder
}

func NewAgentDispatcher(reg *registry.Registry, pool *worker.Pool, build GraphBuilder) *AgentDispatcher {
	d := &AgentDispatcher{registry: reg, pool: pool, build: build}
	if d.build == nil {
		d.build = d.defaultBuilder
	}
	return d
}

// Dispatch invokes the agent graph and returns the final assistant text.
// Graph failures and malformed results both degrade to user-facing messages.
func (a *AgentDispatcher) Dispatch(ctx context.Context, in AgentInput) string {
	resolved, ok := a.resolve(in.Model)
	if !ok {
		return noModelsMessage
	}
	in.Model = resolved

	graph, err := a.build(ctx, in)
	if err != nil {
		return agentErrorMessage(err)
	}

	log.Printf("agent dispatch: thread=%s model=%s agent=%s", in.ThreadID, in.Model, in.agentName())

	var result *schema.Message
	if perr := a.pool.Run(ctx, func() {
		result, err = graph.Generate(ctx, in.Conversation)
	}); perr != nil {
		return agentErrorMessage(perr)
	}
	if err != nil {
		return agentErrorMessage(err)
	}

	text, ok := extractText(result)
	if !ok {
		log.Printf("no messages in agent result for thread %s", in.ThreadID)
		return agentEmptyResult
	}
	return text
}

func (a *AgentDispatcher) resolve(modelID string) (string, bool) {
	if a.registry.Has(modelID) {
		return modelID, true
	}
	if a.registry.Empty() {
		return "", false
	}
	return a.registry.First(), true
}

// defaultBuilder assembles a react agent over the resolved chat model,
// attaching the request's attachment reader and, for deep research, the web
// search tools.
func (a *AgentDispatcher) defaultBuilder(ctx context.Context, in AgentInput) (GraphRunner, error) {
	client, err := a.registry.Client(ctx, in.Model)
	if err != nil {
		return nil, err
	}

	var tools []tool.BaseTool
	if at := attachmentTool(in.FileURL); at != nil {
		tools = append(tools, at)
	}
	if in.agentName() == webSearchAgentName {
		tools = append(tools, searchTools(0)...)
	}
	if len(tools) == 0 {
		// nothing for a graph to call, run the bare model
		return modelRunner{client}, nil
	}

	return react.NewAgent(ctx, &react.AgentConfig{
		ToolCallingModel: client,
		ToolsConfig: compose.ToolsNodeConfig{
			Tools: tools,
		},
	})
}

// modelRunner adapts a plain chat model to the GraphRunner shape.
type modelRunner struct {
	m model.ToolCallingChatModel
}

func (r modelRunner) Generate(ctx context.Context, input []*schema.Message, _ ...agent.AgentOption) (*schema.Message, error) {
	return r.m.Generate(ctx, input)
}

func agentErrorMessage(err error) string {
	log.Printf("agent dispatch failed: %v", err)
	return fmt.Sprintf("I encountered an error with the AI agent: %v", err)
}
