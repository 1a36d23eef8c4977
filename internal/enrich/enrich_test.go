package enrich

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeindexer/pkg/types"
)

func makeChunks(n int) []types.CodeChunk {
	chunks := make([]types.CodeChunk, n)
	for i := range chunks {
		chunks[i] = types.CodeChunk{Content: fmt.Sprintf("chunk-%d", i), StartLine: i + 1, EndLine: i + 1}
	}
	return chunks
}

func TestPipeline_NilTransformerPassesContentThrough(t *testing.T) {
	p := NewPipeline(nil, 4)

	texts, err := p.Texts(context.Background(), makeChunks(3))
	require.NoError(t, err)
	assert.Equal(t, []string{"chunk-0", "chunk-1", "chunk-2"}, texts)
}

func TestPipeline_OutputOrderMatchesInputUnderParallelism(t *testing.T) {
	transformer := TransformerFunc(func(ctx context.Context, chunk types.CodeChunk) (string, error) {
		return "enriched " + chunk.Content, nil
	})
	p := NewPipeline(transformer, 8)

	chunks := makeChunks(50)
	texts, err := p.Texts(context.Background(), chunks)
	require.NoError(t, err)
	require.Len(t, texts, 50)

	for i, text := range texts {
		assert.Equal(t, "enriched "+chunks[i].Content, text)
	}
}

func TestPipeline_FailedTransformFallsBackToContent(t *testing.T) {
	transformer := TransformerFunc(func(ctx context.Context, chunk types.CodeChunk) (string, error) {
		if chunk.StartLine%2 == 0 {
			return "", errors.New("enrichment unavailable")
		}
		return "enriched " + chunk.Content, nil
	})
	p := NewPipeline(transformer, 2)

	texts, err := p.Texts(context.Background(), makeChunks(4))
	require.NoError(t, err)

	assert.Equal(t, "enriched chunk-0", texts[0])
	assert.Equal(t, "chunk-1", texts[1], "failed transform falls back to original content")
	assert.Equal(t, "enriched chunk-2", texts[2])
	assert.Equal(t, "chunk-3", texts[3])
}
