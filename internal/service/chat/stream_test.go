package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"vaanigo/internal/models"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

func newTestStreamer(direct *DirectDispatcher, agent *AgentDispatcher, research *ResearchDispatcher) *Streamer {
	s := NewStreamer(direct, agent, research)
	s.chunkDelay = time.Millisecond
	s.progressEvery = 5 * time.Millisecond
	return s
}

func collectSink(events *[]*models.StreamEvent) EventSink {
	return func(ev *models.StreamEvent) error {
		*events = append(*events, ev)
		return nil
	}
}

func assertSingleTrailingResult(t *testing.T, events []*models.StreamEvent) *models.StreamEvent {
	t.Helper()
	if len(events) == 0 {
		t.Fatalf("no events emitted")
	}
	results := 0
	for _, ev := range events {
		if ev.Type == models.EventResult {
			results++
		}
	}
	if results != 1 {
		t.Fatalf("want exactly one result event, got %d", results)
	}
	last := events[len(events)-1]
	if last.Type != models.EventResult {
		t.Fatalf("result event must be last, got %s", last.Type)
	}
	return last
}

func TestStreamChatDirectPath(t *testing.T) {
	reg := registryWith(map[string]model.ToolCallingChatModel{
		"fake-model": &fakeChatModel{chunks: []string{"alpha ", "beta ", "gamma"}},
	})
	pool := testPool()
	direct := NewDirectDispatcher(reg, pool)
	s := newTestStreamer(direct, NewAgentDispatcher(reg, pool, nil), NewResearchDispatcher(reg, pool, nil))

	var events []*models.StreamEvent
	err := s.StreamChat(context.Background(), AgentInput{
		Conversation: Normalize(nil),
		Model:        "fake-model",
		ThreadID:     "thread-1",
	}, false, false, collectSink(&events))
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}

	if events[0].Type != models.EventStatus {
		t.Fatalf("first event should be status, got %s", events[0].Type)
	}
	var tokens []string
	for _, ev := range events {
		if ev.Type == models.EventToken {
			tokens = append(tokens, ev.Token)
		}
	}
	if len(tokens) != 3 {
		t.Fatalf("want 3 token events, got %d: %v", len(tokens), tokens)
	}
	for i := 1; i < len(tokens); i++ {
		if !strings.HasPrefix(tokens[i], tokens[i-1]) {
			t.Fatalf("token payloads must be cumulative: %q then %q", tokens[i-1], tokens[i])
		}
	}
	last := assertSingleTrailingResult(t, events)
	if last.Message == nil || last.Message.Content != "alpha beta gamma" {
		t.Fatalf("final text mismatch: %+v", last.Message)
	}
	if last.ThreadID != "thread-1" {
		t.Fatalf("thread id not carried: %q", last.ThreadID)
	}
}

func TestStreamChatAgentPath(t *testing.T) {
	reg := registryWith(map[string]model.ToolCallingChatModel{
		"fake-model": &fakeChatModel{reply: "ignored"},
	})
	pool := testPool()
	build := func(ctx context.Context, in AgentInput) (GraphRunner, error) {
		time.Sleep(20 * time.Millisecond) // let a progress phrase fire
		return fakeGraph{msg: schema.AssistantMessage("agent says one two three four", nil)}, nil
	}
	agent := NewAgentDispatcher(reg, pool, build)
	s := newTestStreamer(NewDirectDispatcher(reg, pool), agent, NewResearchDispatcher(reg, pool, nil))

	var events []*models.StreamEvent
	err := s.StreamChat(context.Background(), AgentInput{
		Conversation: Normalize(nil),
		Model:        "fake-model",
		ThreadID:     "thread-2",
	}, true, false, collectSink(&events))
	if err != nil {
		t.Fatalf("stream failed: %v", err)
	}

	statuses, tokens := 0, 0
	for _, ev := range events {
		switch ev.Type {
		case models.EventStatus:
			statuses++
		case models.EventToken:
			tokens++
		}
	}
	if statuses < 2 {
		t.Fatalf("agent path should emit progress statuses, got %d", statuses)
	}
	if tokens == 0 {
		t.Fatalf("agent path should chunk final text into token events")
	}
	last := assertSingleTrailingResult(t, events)
	if last.Message.Content != "agent says one two three four" {
		t.Fatalf("final text mismatch: %q", last.Message.Content)
	}
}

func TestStreamChatVoiceResult(t *testing.T) {
	reg := registryWith(map[string]model.ToolCallingChatModel{
		"fake-model": &fakeChatModel{reply: "spoken reply"},
	})
	pool := testPool()
	s := newTestStreamer(NewDirectDispatcher(reg, pool), NewAgentDispatcher(reg, pool, nil), NewResearchDispatcher(reg, pool, nil))

	var events []*models.StreamEvent
	if err := s.StreamChat(context.Background(), AgentInput{
		Conversation: Normalize(nil),
		Model:        "fake-model",
		ThreadID:     "thread-3",
	}, false, true, collectSink(&events)); err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	last := assertSingleTrailingResult(t, events)
	if !last.ShouldSpeak {
		t.Fatalf("voice result must set should_speak")
	}
}

func TestStreamChatAgentErrorSingleResult(t *testing.T) {
	reg := registryWith(map[string]model.ToolCallingChatModel{
		"fake-model": &fakeChatModel{reply: "x"},
	})
	pool := testPool()
	build := func(ctx context.Context, in AgentInput) (GraphRunner, error) {
		return nil, errors.New("graph exploded")
	}
	agent := NewAgentDispatcher(reg, pool, build)
	s := newTestStreamer(NewDirectDispatcher(reg, pool), agent, NewResearchDispatcher(reg, pool, nil))

	var events []*models.StreamEvent
	if err := s.StreamChat(context.Background(), AgentInput{
		Conversation: Normalize(nil),
		Model:        "fake-model",
		ThreadID:     "thread-4",
	}, true, false, collectSink(&events)); err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	last := assertSingleTrailingResult(t, events)
	if !strings.Contains(last.Message.Content, "graph exploded") {
		t.Fatalf("error not embedded in result: %q", last.Message.Content)
	}
}

func TestStreamResearch(t *testing.T) {
	pool := testPool()
	build := func(ctx context.Context, cfg ResearchConfig) (GraphRunner, error) {
		time.Sleep(20 * time.Millisecond)
		return fakeGraph{msg: schema.AssistantMessage("research findings", nil)}, nil
	}
	research := NewResearchDispatcher(emptyRegistry(), pool, build)
	reg := emptyRegistry()
	s := newTestStreamer(NewDirectDispatcher(reg, pool), NewAgentDispatcher(reg, pool, nil), research)

	var events []*models.StreamEvent
	if err := s.StreamResearch(context.Background(), ResearchInput{
		Conversation: Normalize(nil),
		Model:        "gpt-4o-mini",
		ThreadID:     "thread-5",
	}, collectSink(&events)); err != nil {
		t.Fatalf("stream failed: %v", err)
	}

	if events[0].Type != models.EventStatus || events[0].Status != "Starting research agent..." {
		t.Fatalf("unexpected first event: %+v", events[0])
	}
	last := assertSingleTrailingResult(t, events)
	if last.Message.Content != "research findings" {
		t.Fatalf("final text mismatch: %q", last.Message.Content)
	}
}

func TestStreamResearchErrorSingleResult(t *testing.T) {
	pool := testPool()
	build := func(ctx context.Context, cfg ResearchConfig) (GraphRunner, error) {
		return fakeGraph{err: errors.New("no search provider succeeded")}, nil
	}
	research := NewResearchDispatcher(emptyRegistry(), pool, build)
	reg := emptyRegistry()
	s := newTestStreamer(NewDirectDispatcher(reg, pool), NewAgentDispatcher(reg, pool, nil), research)

	var events []*models.StreamEvent
	if err := s.StreamResearch(context.Background(), ResearchInput{
		Conversation: Normalize(nil),
		Model:        "my-model",
		ThreadID:     "thread-6",
	}, collectSink(&events)); err != nil {
		t.Fatalf("stream failed: %v", err)
	}
	last := assertSingleTrailingResult(t, events)
	if !strings.Contains(last.Message.Content, "no search provider succeeded") {
		t.Fatalf("error not embedded: %q", last.Message.Content)
	}
}
