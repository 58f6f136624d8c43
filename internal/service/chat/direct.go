package chat

import (
	"context"
	"fmt"
	"log"

	"vaanigo/internal/service/registry"
	"vaanigo/internal/worker"

	"github.com/cloudwego/eino/schema"
)

// DirectDispatcher resolves a model id and invokes the provider client
// without any agent graph in between. Blocking provider calls run through
// the worker pool. No failure propagates: every error path returns a
// user-facing assistant message instead.
type DirectDispatcher struct {
	registry *registry.Registry
	pool     *worker.Pool
}

func NewDirectDispatcher(reg *registry.Registry, pool *worker.Pool) *DirectDispatcher {
	return &DirectDispatcher{registry: reg, pool: pool}
}

// Resolve maps a requested model id to a configured one. Unknown ids fall
// back to the first configured model rather than erroring; this masks client
// typos but existing frontends depend on it. ok is false when no provider at
// all is configured.
func (d *DirectDispatcher) Resolve(modelID string) (string, bool) {
	if d.registry.Has(modelID) {
		return modelID, true
	}
	if d.registry.Empty() {
		return "", false
	}
	fallback := d.registry.First()
	log.Printf("model %s not found, falling back to %s (available: %v)", modelID, fallback, d.registry.Models())
	return fallback, true
}

// Dispatch invokes the model over the full conversation and returns the
// generated text.
func (d *DirectDispatcher) Dispatch(ctx context.Context, modelID string, conv []*schema.Message) string {
	resolved, ok := d.Resolve(modelID)
	if !ok {
		return noModelsMessage
	}

	client, err := d.registry.Client(ctx, resolved)
	if err != nil {
		return modelErrorMessage(resolved, err)
	}

	var resp *schema.Message
	if perr := d.pool.Run(ctx, func() {
		resp, err = client.Generate(ctx, conv)
	}); perr != nil {
		return modelErrorMessage(resolved, perr)
	}
	if err != nil {
		return modelErrorMessage(resolved, err)
	}
	return resp.Content
}

// DispatchStream invokes the model's native token stream, calling emit with
// the cumulative text after every chunk. It returns the final text and any
// emit failure (a failed emit means the client went away; the stream is
// simply abandoned).
func (d *DirectDispatcher) DispatchStream(ctx context.Context, modelID string, conv []*schema.Message, emit func(cumulative string) error) (string, error) {
	resolved, ok := d.Resolve(modelID)
	if !ok {
		return noModelsMessage, nil
	}

	client, err := d.registry.Client(ctx, resolved)
	if err != nil {
		return modelErrorMessage(resolved, err), nil
	}

	var reader *schema.StreamReader[*schema.Message]
	if perr := d.pool.Run(ctx, func() {
		reader, err = client.Stream(ctx, conv)
	}); perr != nil {
		return modelErrorMessage(resolved, perr), nil
	}
	if err != nil {
		return modelErrorMessage(resolved, err), nil
	}
	defer reader.Close()

	var full string
	for {
		chunk, err := reader.Recv()
		if err != nil {
			// stream finished
			break
		}
		if chunk.Content == "" {
			continue
		}
		full += chunk.Content
		if emit != nil {
			if err := emit(full); err != nil {
				return full, err
			}
		}
	}
	return full, nil
}

func modelErrorMessage(modelID string, err error) string {
	log.Printf("model %s dispatch failed: %v", modelID, err)
	return fmt.Sprintf("I encountered an error with the %s model: %v", modelID, err)
}
