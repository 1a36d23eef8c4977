package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/codeindexer/internal/config"
	"github.com/dshills/codeindexer/internal/embedder"
	"github.com/dshills/codeindexer/internal/indexer"
	"github.com/dshills/codeindexer/internal/searcher"
	"github.com/dshills/codeindexer/internal/splitter"
	"github.com/dshills/codeindexer/internal/vectordb"
)

const (
	// ServerName is the MCP server name.
	ServerName = "codeindexer"
	// ServerVersion is the current server version.
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with the indexing pipeline and query planner.
type Server struct {
	mcp          *server.MCPServer
	orchestrator *indexer.Orchestrator
	planner      *searcher.Planner
	store        vectordb.VectorStore
	logger       *zap.Logger
}

// NewServer wires the pipeline from configuration and registers the tools.
func NewServer(cfg config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	store, err := vectordb.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	emb, err := embedder.New(embedder.Config{
		Provider:  cfg.Embedding.Provider,
		APIKey:    cfg.Embedding.APIKey,
		BaseURL:   cfg.Embedding.BaseURL,
		Model:     cfg.Embedding.Model,
		CacheSize: cfg.Embedding.CacheSize,
		Logger:    logger,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("initialize embedder: %w", err)
	}

	split := splitter.New(splitter.Options{
		ChunkSize:    cfg.Splitter.ChunkSize,
		ChunkOverlap: cfg.Splitter.ChunkOverlap,
		MaxNodeChars: cfg.Splitter.MaxNodeChars,
	}, logger)

	orch, err := indexer.New(indexer.Config{
		EmbedBatch:          cfg.EmbedBatch,
		EnableSparse:        cfg.EnableSparse,
		SupportedExtensions: cfg.SupportedExtensions,
		IgnorePatterns:      cfg.IgnorePatterns,
		SnapshotDir:         cfg.SnapshotDir,
		MaxParallelBatches:  cfg.MaxParallelBatches,
	}, split, emb, store, nil, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	ranker := vectordb.Ranker{
		Type:         vectordb.RankerType(cfg.Ranker.Type),
		K:            cfg.Ranker.KRRF,
		DenseWeight:  cfg.Ranker.DenseWeight,
		SparseWeight: cfg.Ranker.SparseWeight,
	}
	planner, err := searcher.New(store, emb, nil, ranker, logger)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	s := &Server{
		mcp:          server.NewMCPServer(ServerName, ServerVersion),
		orchestrator: orch,
		planner:      planner,
		store:        store,
		logger:       logger,
	}
	s.registerTools()

	return s, nil
}

// Serve starts the MCP server on stdio and blocks until shutdown.
func (s *Server) Serve(ctx context.Context) error {
	defer func() { _ = s.store.Close() }()
	return server.ServeStdio(s.mcp)
}

// Close releases the vector store. Serve closes it itself on shutdown.
func (s *Server) Close() error {
	return s.store.Close()
}

// Orchestrator exposes the wired pipeline for direct CLI use.
func (s *Server) Orchestrator() *indexer.Orchestrator {
	return s.orchestrator
}

// Planner exposes the wired query planner for direct CLI use.
func (s *Server) Planner() *searcher.Planner {
	return s.planner
}

func (s *Server) registerTools() {
	s.mcp.AddTool(indexCodebaseTool(), s.handleIndexCodebase)
	s.mcp.AddTool(reindexChangesTool(), s.handleReindexChanges)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(clearIndexTool(), s.handleClearIndex)
}
