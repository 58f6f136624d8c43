package chat

import (
	"context"
	"time"

	"vaanigo/internal/config"
	"vaanigo/internal/service/registry"
	"vaanigo/internal/worker"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/flow/agent"
	"github.com/cloudwego/eino/schema"
)

// fakeChatModel satisfies model.ToolCallingChatModel for dispatch tests.
type fakeChatModel struct {
	reply  string
	chunks []string
	err    error
}

func (f *fakeChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	if f.err != nil {
		return nil, f.err
	}
	chunks := f.chunks
	if len(chunks) == 0 {
		chunks = []string{f.reply}
	}
	msgs := make([]*schema.Message, 0, len(chunks))
	for _, c := range chunks {
		msgs = append(msgs, schema.AssistantMessage(c, nil))
	}
	return schema.StreamReaderFromArray(msgs), nil
}

func (f *fakeChatModel) WithTools(tools []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return f, nil
}

// fakeGraph satisfies GraphRunner.
type fakeGraph struct {
	msg *schema.Message
	err error
}

func (g fakeGraph) Generate(ctx context.Context, in []*schema.Message, _ ...agent.AgentOption) (*schema.Message, error) {
	return g.msg, g.err
}

func emptyRegistry() *registry.Registry {
	return registry.New(&config.Config{})
}

func registryWith(ids map[string]model.ToolCallingChatModel) *registry.Registry {
	reg := emptyRegistry()
	for id, m := range ids {
		m := m
		reg.Register(id, func(ctx context.Context) (model.ToolCallingChatModel, error) {
			return m, nil
		})
	}
	return reg
}

func testPool() *worker.Pool {
	return worker.NewPool(1, 4, time.Minute)
}
