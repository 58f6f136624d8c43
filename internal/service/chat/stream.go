package chat

import (
	"context"
	"strings"
	"time"

	"vaanigo/internal/models"
)

// EventSink receives one streaming event. A sink error means the client went
// away; the stream is abandoned without further events.
type EventSink func(*models.StreamEvent) error

// Streamer converts a single blocking or incremental dispatch into the
// status/token/result event sequence. Every successful path and every error
// path ends with exactly one result event.
type Streamer struct {
	direct   *DirectDispatcher
	agent    *AgentDispatcher
	research *ResearchDispatcher

	chunkWords    int
	chunkDelay    time.Duration
	progressEvery time.Duration
}

func NewStreamer(direct *DirectDispatcher, agent *AgentDispatcher, research *ResearchDispatcher) *Streamer {
	return &Streamer{
		direct:        direct,
		agent:         agent,
		research:      research,
		chunkWords:    3,
		chunkDelay:    50 * time.Millisecond,
		progressEvery: 1500 * time.Millisecond,
	}
}

// Progress phrases shown while an agent graph is in flight. Cosmetic only.
var agentProgressPhrases = []string{
	"Planning response...",
	"Processing information...",
	"Thinking...",
}

var researchProgressPhrases = []string{
	"Planning search queries...",
	"Searching the web for information...",
	"Analyzing search results...",
	"Collecting relevant information...",
	"Verifying data from multiple sources...",
	"Synthesizing findings...",
}

// StreamChat streams one chat dispatch. The direct path re-emits the
// provider's native token stream; the agent path has no streaming API, so
// the graph runs in the background behind rotating progress phrases and the
// final text is chunked afterwards.
func (s *Streamer) StreamChat(ctx context.Context, in AgentInput, useAgent, shouldSpeak bool, sink EventSink) error {
	if err := sink(models.StatusEvent("Thinking...")); err != nil {
		return err
	}

	var text string
	if useAgent {
		var err error
		text, err = s.runWithProgress(ctx, sink, agentProgressPhrases, func() string {
			return s.agent.Dispatch(ctx, in)
		})
		if err != nil {
			return err
		}
		if err := s.emitChunks(ctx, sink, text, in.ThreadID); err != nil {
			return err
		}
	} else {
		var err error
		text, err = s.direct.DispatchStream(ctx, in.Model, in.Conversation, func(cumulative string) error {
			return sink(models.TokenEvent(cumulative, in.ThreadID))
		})
		if err != nil {
			return err
		}
	}

	ev := models.ResultEvent(text, in.ThreadID)
	ev.ShouldSpeak = shouldSpeak
	return sink(ev)
}

// StreamResearch streams one research dispatch: synthetic phase statuses
// while the graph runs, then a single result.
func (s *Streamer) StreamResearch(ctx context.Context, in ResearchInput, sink EventSink) error {
	if err := sink(models.StatusEvent("Starting research agent...")); err != nil {
		return err
	}

	text, err := s.runWithProgress(ctx, sink, researchProgressPhrases, func() string {
		return s.research.Dispatch(ctx, in)
	})
	if err != nil {
		return err
	}

	if err := sink(models.StatusEvent("Finalizing response...")); err != nil {
		return err
	}
	return sink(models.ResultEvent(text, in.ThreadID))
}

// runWithProgress runs fn in the background and emits rotating status
// phrases on a fixed cadence until it returns. On context cancellation the
// in-flight call is abandoned.
func (s *Streamer) runWithProgress(ctx context.Context, sink EventSink, phrases []string, fn func() string) (string, error) {
	resultCh := make(chan string, 1)
	go func() {
		resultCh <- fn()
	}()

	ticker := time.NewTicker(s.progressEvery)
	defer ticker.Stop()

	for i := 0; ; i++ {
		select {
		case text := <-resultCh:
			return text, nil
		case <-ticker.C:
			if err := sink(models.StatusEvent(phrases[i%len(phrases)])); err != nil {
				return "", err
			}
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

// emitChunks re-emits final text as cumulative token events, one every
// chunkWords words with a small delay in between. Used when no native token
// stream exists.
func (s *Streamer) emitChunks(ctx context.Context, sink EventSink, text, threadID string) error {
	words := strings.Split(text, " ")
	var cumulative strings.Builder
	for i, word := range words {
		cumulative.WriteString(word)
		cumulative.WriteString(" ")
		if i%s.chunkWords != 0 && i != len(words)-1 {
			continue
		}
		if err := sink(models.TokenEvent(cumulative.String(), threadID)); err != nil {
			return err
		}
		select {
		case <-time.After(s.chunkDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
