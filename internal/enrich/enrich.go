// Package enrich is the optional pre-embedding transform hook. An enricher
// may rewrite the text that gets embedded (say, by prepending a generated
// summary comment), but the stored document always keeps the original chunk
// content.
package enrich

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dshills/codeindexer/pkg/types"
)

// Transformer produces the embedding text for one chunk.
type Transformer interface {
	Transform(ctx context.Context, chunk types.CodeChunk) (string, error)
}

// TransformerFunc adapts a function to the Transformer interface.
type TransformerFunc func(ctx context.Context, chunk types.CodeChunk) (string, error)

// Transform calls the wrapped function.
func (f TransformerFunc) Transform(ctx context.Context, chunk types.CodeChunk) (string, error) {
	return f(ctx, chunk)
}

// Pipeline applies a Transformer across a batch with bounded parallelism.
// Results land in pre-sized slots, so output order always matches input
// order regardless of completion order.
type Pipeline struct {
	transformer Transformer
	parallel    int64
}

// NewPipeline creates an enrichment pipeline. maxParallel <= 1 runs
// strictly serially.
func NewPipeline(transformer Transformer, maxParallel int) *Pipeline {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Pipeline{transformer: transformer, parallel: int64(maxParallel)}
}

// Texts returns the embedding text for each chunk, falling back to the
// chunk's own content when the transformer fails for it.
func (p *Pipeline) Texts(ctx context.Context, chunks []types.CodeChunk) ([]string, error) {
	texts := make([]string, len(chunks))

	if p.transformer == nil {
		for i := range chunks {
			texts[i] = chunks[i].Content
		}
		return texts, nil
	}

	sem := semaphore.NewWeighted(p.parallel)
	g, gctx := errgroup.WithContext(ctx)

	for i := range chunks {
		if err := sem.Acquire(gctx, 1); err != nil {
			return nil, fmt.Errorf("acquire enrichment slot: %w", err)
		}

		g.Go(func() error {
			defer sem.Release(1)

			text, err := p.transformer.Transform(gctx, chunks[i])
			if err != nil || text == "" {
				text = chunks[i].Content
			}
			texts[i] = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return texts, nil
}
