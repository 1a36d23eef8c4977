package vectordb

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/dshills/codeindexer/pkg/types"
)

// MemoryStore is a map-backed VectorStore with the same semantics as the
// SQLite adapter. It backs tests and small in-process indexes.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	schema CollectionSchema
	docs   map[string]types.VectorDocument
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{collections: make(map[string]*memCollection)}
}

func (m *MemoryStore) CreateCollection(ctx context.Context, name string, dimension int, hasSparse bool, description string) error {
	if dimension <= 0 {
		return fmt.Errorf("collection %s: dimension must be positive", name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[name]; ok {
		return fmt.Errorf("%w: %s", ErrCollectionExists, name)
	}

	m.collections[name] = &memCollection{
		schema: CollectionSchema{Name: name, Dimension: dimension, HasSparse: hasSparse, Description: description},
		docs:   make(map[string]types.VectorDocument),
	}
	return nil
}

// DropCollection removes a collection; dropping a missing one is a no-op.
func (m *MemoryStore) DropCollection(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.collections, name)
	return nil
}

func (m *MemoryStore) HasCollection(ctx context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.collections[name]
	return ok, nil
}

func (m *MemoryStore) DescribeCollection(ctx context.Context, name string) (*CollectionSchema, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	coll, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	schema := coll.schema
	return &schema, nil
}

func (m *MemoryStore) Insert(ctx context.Context, name string, documents []types.VectorDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll, ok := m.collections[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}

	for i := range documents {
		doc := documents[i]
		if err := doc.Validate(); err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}
		if len(doc.Vector) != coll.schema.Dimension {
			return fmt.Errorf("%w: document %s has %d, collection %s has %d",
				ErrDimensionMismatch, doc.ID, len(doc.Vector), name, coll.schema.Dimension)
		}
		coll.docs[doc.ID] = doc
	}
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, name string, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	coll, ok := m.collections[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}

	for _, id := range ids {
		delete(coll.docs, id)
	}
	return nil
}

func (m *MemoryStore) Query(ctx context.Context, name, filterExpr string, outputFields []string, limit int) ([]map[string]string, error) {
	filter, err := ParseFilter(filterExpr)
	if err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	coll, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}

	// Stable iteration keeps query results deterministic.
	ids := make([]string, 0, len(coll.docs))
	for id := range coll.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var rows []map[string]string
	for _, id := range ids {
		doc := coll.docs[id]
		if !filter.Matches(&doc) {
			continue
		}

		row := make(map[string]string, len(outputFields))
		for _, field := range outputFields {
			switch field {
			case "start_line":
				row[field] = strconv.Itoa(doc.StartLine)
			case "end_line":
				row[field] = strconv.Itoa(doc.EndLine)
			default:
				if value, ok := documentField(&doc, field); ok {
					row[field] = value
				}
			}
		}
		rows = append(rows, row)

		if limit > 0 && len(rows) >= limit {
			break
		}
	}
	return rows, nil
}

func (m *MemoryStore) Search(ctx context.Context, name string, vector []float32, opts SearchOptions) ([]SearchHit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	coll, ok := m.collections[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if len(vector) != coll.schema.Dimension {
		return nil, fmt.Errorf("%w: query has %d, collection %s has %d",
			ErrDimensionMismatch, len(vector), name, coll.schema.Dimension)
	}

	hits := make([]SearchHit, 0, len(coll.docs))
	for _, doc := range coll.docs {
		score := cosineSimilarity(vector, doc.Vector)
		if score < opts.Threshold {
			continue
		}
		hits = append(hits, SearchHit{Document: doc, Score: score})
	}

	sortHits(hits)
	if opts.TopK > 0 && len(hits) > opts.TopK {
		hits = hits[:opts.TopK]
	}
	return hits, nil
}

func (m *MemoryStore) HybridSearch(ctx context.Context, name string, vector []float32, sparse map[string]float64, opts HybridOptions) ([]SearchHit, error) {
	m.mu.RLock()
	coll, ok := m.collections[name]
	if !ok {
		m.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if !coll.schema.HasSparse {
		m.mu.RUnlock()
		return nil, fmt.Errorf("%w: %s", ErrSparseUnsupported, name)
	}

	sparseHits := make([]SearchHit, 0, len(coll.docs))
	for _, doc := range coll.docs {
		score := sparseDot(sparse, doc.Sparse)
		if score <= 0 {
			continue
		}
		sparseHits = append(sparseHits, SearchHit{Document: doc, Score: score})
	}
	m.mu.RUnlock()

	sortHits(sparseHits)
	if opts.TopK > 0 && len(sparseHits) > opts.TopK {
		sparseHits = sparseHits[:opts.TopK]
	}

	denseHits, err := m.Search(ctx, name, vector, SearchOptions{TopK: opts.TopK})
	if err != nil {
		return nil, err
	}

	fused := fuse(denseHits, sparseHits, opts.Ranker, opts.TopK)

	// Fused scores live on a different scale than cosine; the threshold
	// still applies as a floor.
	filtered := fused[:0]
	for _, hit := range fused {
		if hit.Score >= opts.Threshold {
			filtered = append(filtered, hit)
		}
	}
	return filtered, nil
}

func (m *MemoryStore) Close() error {
	return nil
}

// sortHits orders by descending score, then ascending id for stability.
func sortHits(hits []SearchHit) {
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Document.ID < hits[j].Document.ID
	})
}
