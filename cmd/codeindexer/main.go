package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/dshills/codeindexer/internal/config"
	"github.com/dshills/codeindexer/internal/logger"
	"github.com/dshills/codeindexer/internal/mcp"
	"github.com/dshills/codeindexer/pkg/types"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

const usage = `usage: codeindexer [-config file] <command> [args]

commands:
  index <path>              index a codebase
  reindex <path>            incrementally re-index changed files
  search <path> <query>     search an indexed codebase
  clear <path>              drop a codebase's index
  serve                     run as an MCP stdio server
`

func main() {
	configPath := flag.String("config", os.Getenv("CODEINDEXER_CONFIG"), "path to YAML config file")
	topK := flag.Int("k", 10, "search: number of results")
	threshold := flag.Float64("threshold", 0, "search: minimum score")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if args[0] == "version" {
		fmt.Printf("codeindexer %s (built %s)\n", version, buildTime)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "codeindexer: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Logging.Env, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "codeindexer: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, log, args, *topK, *threshold); err != nil {
		log.Error("command failed", zap.String("command", args[0]), zap.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger, args []string, topK int, threshold float64) error {
	server, err := mcp.NewServer(cfg, log)
	if err != nil {
		return err
	}

	if args[0] == "serve" {
		log.Info("MCP server ready, listening on stdio",
			zap.String("version", version))
		return server.Serve(ctx)
	}
	defer func() { _ = server.Close() }()

	switch args[0] {
	case "index":
		if len(args) < 2 {
			return fmt.Errorf("index: missing path")
		}
		stats, err := server.Orchestrator().IndexCodebase(ctx, args[1], progressPrinter())
		if err != nil {
			return err
		}
		fmt.Printf("indexed %d files, %d chunks\n", stats.IndexedFiles, stats.TotalChunks)
		return nil

	case "reindex":
		if len(args) < 2 {
			return fmt.Errorf("reindex: missing path")
		}
		stats, err := server.Orchestrator().ReindexByChange(ctx, args[1], progressPrinter())
		if err != nil {
			return err
		}
		fmt.Printf("added %d, removed %d, modified %d\n", stats.Added, stats.Removed, stats.Modified)
		return nil

	case "search":
		if len(args) < 3 {
			return fmt.Errorf("search: missing path or query")
		}
		results, err := server.Planner().Search(ctx, args[1], args[2], topK, threshold)
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Printf("%.3f  %s:%d-%d\n%s\n\n", r.Score, r.RelativePath, r.StartLine, r.EndLine, r.Content)
		}
		return nil

	case "clear":
		if len(args) < 2 {
			return fmt.Errorf("clear: missing path")
		}
		return server.Orchestrator().ClearIndex(ctx, args[1])

	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

// progressPrinter reports pipeline progress on stderr.
func progressPrinter() types.ProgressFunc {
	return func(p types.Progress) {
		fmt.Fprintf(os.Stderr, "\r%s %d/%d (%.0f%%)", p.Phase, p.Current, p.Total, p.Percentage)
		if p.Phase == "completed" {
			fmt.Fprintln(os.Stderr)
		}
	}
}
