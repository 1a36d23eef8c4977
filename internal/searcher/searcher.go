package searcher

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"

	"go.uber.org/zap"

	"github.com/dshills/codeindexer/internal/collection"
	"github.com/dshills/codeindexer/internal/embedder"
	"github.com/dshills/codeindexer/internal/splitter"
	"github.com/dshills/codeindexer/internal/vectordb"
	"github.com/dshills/codeindexer/pkg/types"
)

// degradedScale marks hybrid-to-dense fallback results: dense scores are
// multiplied by this factor so callers can observe the degradation.
const degradedScale = 0.9

// SparseEncoder turns a query into a term->weight map. The default encoder
// is the store-side tokenizer; providers with server-side sparse embedding
// can plug in their own.
type SparseEncoder interface {
	Encode(text string) map[string]float64
}

// SparseEncoderFunc adapts a function to the SparseEncoder interface.
type SparseEncoderFunc func(text string) map[string]float64

// Encode calls the wrapped function.
func (f SparseEncoderFunc) Encode(text string) map[string]float64 {
	return f(text)
}

// Planner plans and executes searches: dense cosine retrieval, plus hybrid
// dense+sparse retrieval with rank fusion when the collection schema carries
// a sparse field, falling back to dense-only on hybrid failure.
type Planner struct {
	store    vectordb.VectorStore
	embedder embedder.Embedder
	sparse   SparseEncoder
	ranker   vectordb.Ranker
	logger   *zap.Logger
}

// New creates a Planner. A nil sparse encoder uses the default tokenizer; a
// zero ranker uses RRF with the standard constant.
func New(store vectordb.VectorStore, emb embedder.Embedder, sparse SparseEncoder, ranker vectordb.Ranker, logger *zap.Logger) (*Planner, error) {
	if store == nil || emb == nil {
		return nil, fmt.Errorf("%w: vector store and embedder are required", types.ErrConfig)
	}
	if sparse == nil {
		sparse = SparseEncoderFunc(vectordb.EncodeSparse)
	}
	if ranker.Type == "" {
		ranker = vectordb.DefaultRanker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Planner{
		store:    store,
		embedder: emb,
		sparse:   sparse,
		ranker:   ranker,
		logger:   logger,
	}, nil
}

// Search retrieves the topK most relevant chunks for a natural-language
// query against an indexed codebase, dropping hits scoring below threshold.
// Results are ordered by descending score; ties break by ascending relative
// path, then ascending start line.
func (p *Planner) Search(ctx context.Context, codebasePath, query string, topK int, threshold float64) ([]types.SearchResult, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: query cannot be empty", types.ErrConfig)
	}
	if topK <= 0 {
		topK = 10
	}

	name, err := collection.Name(codebasePath)
	if err != nil {
		return nil, err
	}

	exists, err := p.store.HasCollection(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("check collection %s: %w", name, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s has not been indexed", types.ErrCollectionMissing, codebasePath)
	}

	schema, err := p.store.DescribeCollection(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("describe collection %s: %w", name, err)
	}

	vector, err := p.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	var hits []vectordb.SearchHit
	if schema.HasSparse {
		hits, err = p.hybrid(ctx, name, query, vector, topK, threshold)
	} else {
		hits, err = p.store.Search(ctx, name, vector, vectordb.SearchOptions{TopK: topK, Threshold: threshold})
	}
	if err != nil {
		return nil, err
	}

	return p.toResults(hits, threshold), nil
}

// hybrid runs dense+sparse retrieval with the configured ranker. A failed or
// empty hybrid call falls back to dense-only with scores scaled by 0.9 to
// signal degradation.
func (p *Planner) hybrid(ctx context.Context, name, query string, vector []float32, topK int, threshold float64) ([]vectordb.SearchHit, error) {
	hits, err := p.store.HybridSearch(ctx, name, vector, p.sparse.Encode(query), vectordb.HybridOptions{
		TopK:      topK,
		Threshold: threshold,
		Ranker:    p.ranker,
	})
	if err == nil && len(hits) > 0 {
		p.logger.Debug("hybrid search served",
			zap.String("collection", name),
			zap.String("ranker", string(p.ranker.Type)),
			zap.Int("hits", len(hits)))
		return hits, nil
	}

	if err != nil {
		p.logger.Warn("hybrid search failed, falling back to dense",
			zap.String("collection", name), zap.Error(err))
	} else {
		p.logger.Warn("hybrid search returned no hits, falling back to dense",
			zap.String("collection", name))
	}

	dense, err := p.store.Search(ctx, name, vector, vectordb.SearchOptions{TopK: topK, Threshold: threshold})
	if err != nil {
		return nil, err
	}

	for i := range dense {
		dense[i].Score *= degradedScale
	}
	return dense, nil
}

// toResults converts hits, re-applies the threshold (fusion can rescale),
// and stable-sorts with the documented tie-breaks.
func (p *Planner) toResults(hits []vectordb.SearchHit, threshold float64) []types.SearchResult {
	results := make([]types.SearchResult, 0, len(hits))
	for _, hit := range hits {
		if hit.Score < threshold {
			continue
		}
		doc := hit.Document
		results = append(results, types.SearchResult{
			Content:      doc.Content,
			RelativePath: doc.RelativePath,
			StartLine:    doc.StartLine,
			EndLine:      doc.EndLine,
			Language:     splitter.LanguageForExtension(filepath.Ext(doc.RelativePath)),
			Score:        hit.Score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].RelativePath != results[j].RelativePath {
			return results[i].RelativePath < results[j].RelativePath
		}
		return results[i].StartLine < results[j].StartLine
	})

	return results
}
