package vectordb

import (
	"context"
	"errors"

	"github.com/dshills/codeindexer/pkg/types"
)

// Common adapter errors.
var (
	// ErrCollectionNotFound is returned for operations against a collection
	// that does not exist. DropCollection is the exception: dropping a
	// missing collection returns cleanly.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionExists is returned when creating a collection that
	// already exists.
	ErrCollectionExists = errors.New("collection already exists")

	// ErrDimensionMismatch is returned when a document or query vector
	// length differs from the collection dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrSparseUnsupported is returned by HybridSearch when the collection
	// schema has no sparse field.
	ErrSparseUnsupported = errors.New("collection has no sparse field")
)

// RankerType selects the hybrid fusion strategy.
type RankerType string

const (
	RankerRRF      RankerType = "rrf"
	RankerWeighted RankerType = "weight"

	// DefaultRRFK is the reciprocal-rank fusion constant.
	DefaultRRFK = 100
)

// Ranker configures hybrid result fusion.
type Ranker struct {
	Type RankerType
	// K is the RRF constant; used when Type is RankerRRF.
	K float64
	// DenseWeight and SparseWeight are the normalized-score weights; used
	// when Type is RankerWeighted.
	DenseWeight  float64
	SparseWeight float64
}

// DefaultRanker returns RRF fusion with the standard constant.
func DefaultRanker() Ranker {
	return Ranker{Type: RankerRRF, K: DefaultRRFK}
}

// CollectionSchema describes a collection. The dimension is fixed at
// creation time; every document in the collection shares it.
type CollectionSchema struct {
	Name        string
	Dimension   int
	HasSparse   bool
	Description string
}

// SearchOptions parameterizes a dense search.
type SearchOptions struct {
	TopK      int
	Threshold float64
}

// HybridOptions parameterizes a hybrid search.
type HybridOptions struct {
	TopK      int
	Threshold float64
	Ranker    Ranker
}

// SearchHit is one scored document returned from a search.
type SearchHit struct {
	Document types.VectorDocument
	Score    float64
}

// VectorStore is the abstract vector database consumed by the pipeline and
// the query planner. The filter expression grammar accepted by Query is
// limited to field equality and list membership over string-typed fields
// (see ParseFilter).
type VectorStore interface {
	CreateCollection(ctx context.Context, name string, dimension int, hasSparse bool, description string) error
	DropCollection(ctx context.Context, name string) error
	HasCollection(ctx context.Context, name string) (bool, error)
	DescribeCollection(ctx context.Context, name string) (*CollectionSchema, error)

	Insert(ctx context.Context, name string, documents []types.VectorDocument) error
	Delete(ctx context.Context, name string, ids []string) error

	// Query returns the requested output fields of documents matching the
	// filter expression, up to limit rows.
	Query(ctx context.Context, name, filterExpr string, outputFields []string, limit int) ([]map[string]string, error)

	Search(ctx context.Context, name string, vector []float32, opts SearchOptions) ([]SearchHit, error)
	HybridSearch(ctx context.Context, name string, vector []float32, sparse map[string]float64, opts HybridOptions) ([]SearchHit, error)

	Close() error
}

// documentField returns a document's value for a string-typed schema field.
func documentField(doc *types.VectorDocument, field string) (string, bool) {
	switch field {
	case "id":
		return doc.ID, true
	case "relative_path":
		return doc.RelativePath, true
	case "file_extension":
		return doc.FileExtension, true
	case "content":
		return doc.Content, true
	case "metadata":
		return doc.Metadata, true
	default:
		return "", false
	}
}
