package vectordb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/dshills/codeindexer/pkg/types"
)

// SQLiteStore implements VectorStore on a single SQLite database. Every
// collection is a row set in shared tables; dense vectors are stored as
// little-endian float32 blobs and scored with cosine similarity in Go, so
// the adapter works identically under the cgo and pure-Go drivers.
type SQLiteStore struct {
	db *sql.DB
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS collections (
    name TEXT PRIMARY KEY,
    dimension INTEGER NOT NULL,
    has_sparse INTEGER NOT NULL DEFAULT 0,
    description TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS documents (
    collection TEXT NOT NULL,
    id TEXT NOT NULL,
    vector BLOB NOT NULL,
    content TEXT NOT NULL,
    relative_path TEXT NOT NULL,
    start_line INTEGER NOT NULL,
    end_line INTEGER NOT NULL,
    file_extension TEXT,
    metadata TEXT,
    sparse TEXT,
    PRIMARY KEY (collection, id),
    FOREIGN KEY (collection) REFERENCES collections(name) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_documents_path ON documents(collection, relative_path);
`

// NewSQLiteStore opens (creating if needed) a vector database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL for concurrent readers; SQLite prefers a single writer.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) CreateCollection(ctx context.Context, name string, dimension int, hasSparse bool, description string) error {
	if dimension <= 0 {
		return fmt.Errorf("collection %s: dimension must be positive", name)
	}

	sparse := 0
	if hasSparse {
		sparse = 1
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (name, dimension, has_sparse, description) VALUES (?, ?, ?, ?)`,
		name, dimension, sparse, description)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") || strings.Contains(err.Error(), "PRIMARY") {
			return fmt.Errorf("%w: %s", ErrCollectionExists, name)
		}
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

// DropCollection removes the collection and its documents; dropping a
// missing collection returns cleanly.
func (s *SQLiteStore) DropCollection(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ?`, name); err != nil {
		return fmt.Errorf("drop collection documents %s: %w", name, err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, name); err != nil {
		return fmt.Errorf("drop collection %s: %w", name, err)
	}
	return nil
}

func (s *SQLiteStore) HasCollection(ctx context.Context, name string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM collections WHERE name = ?`, name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check collection %s: %w", name, err)
	}
	return true, nil
}

func (s *SQLiteStore) DescribeCollection(ctx context.Context, name string) (*CollectionSchema, error) {
	var schema CollectionSchema
	var sparse int
	var description sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT name, dimension, has_sparse, description FROM collections WHERE name = ?`, name).
		Scan(&schema.Name, &schema.Dimension, &sparse, &description)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("describe collection %s: %w", name, err)
	}

	schema.HasSparse = sparse != 0
	schema.Description = description.String
	return &schema, nil
}

func (s *SQLiteStore) Insert(ctx context.Context, name string, documents []types.VectorDocument) error {
	schema, err := s.DescribeCollection(ctx, name)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO documents
		(collection, id, vector, content, relative_path, start_line, end_line, file_extension, metadata, sparse)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i := range documents {
		doc := &documents[i]
		if err := doc.Validate(); err != nil {
			return fmt.Errorf("document %d: %w", i, err)
		}
		if len(doc.Vector) != schema.Dimension {
			return fmt.Errorf("%w: document %s has %d, collection %s has %d",
				ErrDimensionMismatch, doc.ID, len(doc.Vector), name, schema.Dimension)
		}

		var sparse interface{}
		if doc.Sparse != nil {
			encoded, err := json.Marshal(doc.Sparse)
			if err != nil {
				return fmt.Errorf("encode sparse for %s: %w", doc.ID, err)
			}
			sparse = string(encoded)
		}

		_, err = stmt.ExecContext(ctx, name, doc.ID, serializeVector(doc.Vector), doc.Content,
			doc.RelativePath, doc.StartLine, doc.EndLine, doc.FileExtension, doc.Metadata, sparse)
		if err != nil {
			return fmt.Errorf("insert document %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit insert: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, name string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`)
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, name, id); err != nil {
			return fmt.Errorf("delete document %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, name, filterExpr string, outputFields []string, limit int) ([]map[string]string, error) {
	filter, err := ParseFilter(filterExpr)
	if err != nil {
		return nil, err
	}

	where, args := filter.SQL()
	query := `SELECT id, content, relative_path, start_line, end_line, file_extension, metadata
		FROM documents WHERE collection = ? AND ` + where + ` ORDER BY id`
	args = append([]interface{}{name}, args...)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []map[string]string
	for rows.Next() {
		var id, content, relPath string
		var startLine, endLine int
		var ext, metadata sql.NullString

		if err := rows.Scan(&id, &content, &relPath, &startLine, &endLine, &ext, &metadata); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}

		fields := map[string]string{
			"id":             id,
			"content":        content,
			"relative_path":  relPath,
			"start_line":     strconv.Itoa(startLine),
			"end_line":       strconv.Itoa(endLine),
			"file_extension": ext.String,
			"metadata":       metadata.String,
		}

		row := make(map[string]string, len(outputFields))
		for _, field := range outputFields {
			if value, ok := fields[field]; ok {
				row[field] = value
			}
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) Search(ctx context.Context, name string, vector []float32, opts SearchOptions) ([]SearchHit, error) {
	schema, err := s.DescribeCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	if len(vector) != schema.Dimension {
		return nil, fmt.Errorf("%w: query has %d, collection %s has %d",
			ErrDimensionMismatch, len(vector), name, schema.Dimension)
	}

	hits, err := s.scoreAll(ctx, name, func(doc *types.VectorDocument) float64 {
		return cosineSimilarity(vector, doc.Vector)
	})
	if err != nil {
		return nil, err
	}

	filtered := hits[:0]
	for _, hit := range hits {
		if hit.Score >= opts.Threshold {
			filtered = append(filtered, hit)
		}
	}
	hits = filtered

	sortHits(hits)
	if opts.TopK > 0 && len(hits) > opts.TopK {
		hits = hits[:opts.TopK]
	}
	return hits, nil
}

func (s *SQLiteStore) HybridSearch(ctx context.Context, name string, vector []float32, sparse map[string]float64, opts HybridOptions) ([]SearchHit, error) {
	schema, err := s.DescribeCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	if !schema.HasSparse {
		return nil, fmt.Errorf("%w: %s", ErrSparseUnsupported, name)
	}

	denseHits, err := s.Search(ctx, name, vector, SearchOptions{TopK: opts.TopK})
	if err != nil {
		return nil, err
	}

	sparseHits, err := s.scoreAll(ctx, name, func(doc *types.VectorDocument) float64 {
		return sparseDot(sparse, doc.Sparse)
	})
	if err != nil {
		return nil, err
	}

	positive := sparseHits[:0]
	for _, hit := range sparseHits {
		if hit.Score > 0 {
			positive = append(positive, hit)
		}
	}
	sparseHits = positive

	sortHits(sparseHits)
	if opts.TopK > 0 && len(sparseHits) > opts.TopK {
		sparseHits = sparseHits[:opts.TopK]
	}

	fused := fuse(denseHits, sparseHits, opts.Ranker, opts.TopK)

	filtered := fused[:0]
	for _, hit := range fused {
		if hit.Score >= opts.Threshold {
			filtered = append(filtered, hit)
		}
	}
	return filtered, nil
}

// scoreAll streams every document of a collection through the scoring
// function. Cosine in Go keeps the adapter portable across drivers; for the
// collection sizes one codebase produces this is well within budget.
func (s *SQLiteStore) scoreAll(ctx context.Context, name string, score func(*types.VectorDocument) float64) ([]SearchHit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, vector, content, relative_path, start_line, end_line, file_extension, metadata, sparse
		FROM documents WHERE collection = ?`, name)
	if err != nil {
		return nil, fmt.Errorf("load documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []SearchHit
	for rows.Next() {
		var doc types.VectorDocument
		var blob []byte
		var ext, metadata, sparseJSON sql.NullString

		if err := rows.Scan(&doc.ID, &blob, &doc.Content, &doc.RelativePath,
			&doc.StartLine, &doc.EndLine, &ext, &metadata, &sparseJSON); err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}

		doc.FileExtension = ext.String
		doc.Metadata = metadata.String
		if doc.Vector, err = deserializeVector(blob); err != nil {
			return nil, fmt.Errorf("document %s: %w", doc.ID, err)
		}
		if sparseJSON.Valid && sparseJSON.String != "" {
			if err := json.Unmarshal([]byte(sparseJSON.String), &doc.Sparse); err != nil {
				return nil, fmt.Errorf("decode sparse for %s: %w", doc.ID, err)
			}
		}

		hits = append(hits, SearchHit{Document: doc, Score: score(&doc)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
