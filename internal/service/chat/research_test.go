package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

func TestResearchConfigureMapping(t *testing.T) {
	reg := registryWith(map[string]model.ToolCallingChatModel{
		"gpt-4o-mini":      &fakeChatModel{reply: "x"},
		"gemini-1.5-flash": &fakeChatModel{reply: "y"},
	})
	r := NewResearchDispatcher(reg, testPool(), nil)

	cfg := r.Configure(ResearchInput{Model: "gemini-1.5-flash", MaxSearchResults: 5})
	if cfg.Model != "google/gemini-1.5-flash" {
		t.Fatalf("mapping mismatch: %q", cfg.Model)
	}
	if cfg.MaxSearchResults != 5 {
		t.Fatalf("max results not carried: %d", cfg.MaxSearchResults)
	}
	// first priority model that differs from the primary and is configured
	if cfg.FallbackModel != "openai/gpt-4o-mini" {
		t.Fatalf("fallback mismatch: %q", cfg.FallbackModel)
	}
}

func TestResearchConfigureUnmappedModel(t *testing.T) {
	r := NewResearchDispatcher(emptyRegistry(), testPool(), nil)
	cfg := r.Configure(ResearchInput{Model: "my-custom-model"})
	if cfg.Model != "default/my-custom-model" {
		t.Fatalf("unmapped model should use default format, got %q", cfg.Model)
	}
	if cfg.FallbackModel != "" {
		t.Fatalf("empty registry must not select a fallback, got %q", cfg.FallbackModel)
	}
	if cfg.MaxSearchResults != 3 {
		t.Fatalf("default max results expected, got %d", cfg.MaxSearchResults)
	}
}

func TestResearchConfigureFallbackSkipsPrimary(t *testing.T) {
	reg := registryWith(map[string]model.ToolCallingChatModel{
		"gpt-4o-mini": &fakeChatModel{reply: "x"},
	})
	r := NewResearchDispatcher(reg, testPool(), nil)

	cfg := r.Configure(ResearchInput{Model: "gpt-4o-mini"})
	if cfg.FallbackModel != "" {
		t.Fatalf("fallback must differ from primary mapping, got %q", cfg.FallbackModel)
	}
}

func TestResearchDispatchSuccess(t *testing.T) {
	var gotCfg ResearchConfig
	build := func(ctx context.Context, cfg ResearchConfig) (GraphRunner, error) {
		gotCfg = cfg
		return fakeGraph{msg: schema.AssistantMessage("findings", nil)}, nil
	}
	r := NewResearchDispatcher(emptyRegistry(), testPool(), build)

	got := r.Dispatch(context.Background(), ResearchInput{
		Conversation: Normalize(nil),
		Model:        "gpt-4o-mini",
		ThreadID:     "t1",
	})
	if got != "findings" {
		t.Fatalf("want findings, got %q", got)
	}
	if gotCfg.Model != "openai/gpt-4o-mini" || gotCfg.ThreadID != "t1" {
		t.Fatalf("graph config mismatch: %+v", gotCfg)
	}
}

func TestResearchDispatchEmptyResult(t *testing.T) {
	build := func(ctx context.Context, cfg ResearchConfig) (GraphRunner, error) {
		return fakeGraph{msg: schema.AssistantMessage("", nil)}, nil
	}
	r := NewResearchDispatcher(emptyRegistry(), testPool(), build)

	got := r.Dispatch(context.Background(), ResearchInput{Conversation: Normalize(nil), Model: "gpt-4o"})
	if got != researchEmptyResult {
		t.Fatalf("want empty-result fallback, got %q", got)
	}
}

func TestResearchDispatchOverloaded(t *testing.T) {
	build := func(ctx context.Context, cfg ResearchConfig) (GraphRunner, error) {
		return fakeGraph{err: errors.New("api error: 529 overloaded_error")}, nil
	}
	r := NewResearchDispatcher(emptyRegistry(), testPool(), build)

	got := r.Dispatch(context.Background(), ResearchInput{Conversation: Normalize(nil), Model: "gpt-4o"})
	if got != overloadedMessage {
		t.Fatalf("overloaded upstream should get retry suggestion, got %q", got)
	}
}

func TestResearchDispatchGenericError(t *testing.T) {
	build := func(ctx context.Context, cfg ResearchConfig) (GraphRunner, error) {
		return fakeGraph{err: errors.New("search backend down")}, nil
	}
	r := NewResearchDispatcher(emptyRegistry(), testPool(), build)

	got := r.Dispatch(context.Background(), ResearchInput{Conversation: Normalize(nil), Model: "gpt-4o"})
	if !strings.Contains(got, "I encountered an error with the research agent") ||
		!strings.Contains(got, "search backend down") {
		t.Fatalf("generic error not converted: %q", got)
	}
}

func TestInternalModelID(t *testing.T) {
	if got := internalModelID("openai/gpt-4o-mini"); got != "gpt-4o-mini" {
		t.Fatalf("got %q", got)
	}
	if got := internalModelID("bare-model"); got != "bare-model" {
		t.Fatalf("got %q", got)
	}
}
