package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
)

// MCP error codes.
const (
	ErrorCodeInvalidParams = -32602
	ErrorCodeInternalError = -32603
	ErrorCodeNotIndexed    = -32001
	ErrorCodeEmptyQuery    = -32002
)

// handleIndexCodebase handles the index_codebase tool invocation.
func (s *Server) handleIndexCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := requirePath(request)
	if err != nil {
		return nil, err
	}

	stats, err := s.orchestrator.IndexCodebase(ctx, path, nil)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "indexing failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"indexed":       true,
		"indexed_files": stats.IndexedFiles,
		"total_chunks":  stats.TotalChunks,
	})), nil
}

// handleReindexChanges handles the reindex_changes tool invocation.
func (s *Server) handleReindexChanges(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := requirePath(request)
	if err != nil {
		return nil, err
	}

	stats, err := s.orchestrator.ReindexByChange(ctx, path, nil)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "reindex failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"added":    stats.Added,
		"removed":  stats.Removed,
		"modified": stats.Modified,
	})), nil
}

// handleSearchCode handles the search_code tool invocation.
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := requirePath(request)
	if err != nil {
		return nil, err
	}

	args, _ := request.Params.Arguments.(map[string]interface{})
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param": "query",
		})
	}

	limit := getIntDefault(args, "limit", 10)
	if limit < 1 || limit > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "limit must be between 1 and 100", map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}
	threshold := getFloatDefault(args, "threshold", 0)

	results, err := s.planner.Search(ctx, path, query, limit, threshold)
	if err != nil {
		return nil, newMCPError(ErrorCodeNotIndexed, "search failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	items := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		items = append(items, map[string]interface{}{
			"relative_path": r.RelativePath,
			"start_line":    r.StartLine,
			"end_line":      r.EndLine,
			"language":      r.Language,
			"score":         r.Score,
			"content":       r.Content,
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"total":   len(items),
		"results": items,
	})), nil
}

// handleClearIndex handles the clear_index tool invocation.
func (s *Server) handleClearIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := requirePath(request)
	if err != nil {
		return nil, err
	}

	if err := s.orchestrator.ClearIndex(ctx, path); err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "clear failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"cleared": true,
		"path":    path,
	})), nil
}

// Helper functions

// requirePath extracts and validates the path argument.
func requirePath(request mcp.CallToolRequest) (string, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return "", newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	path, ok := args["path"].(string)
	if !ok || path == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param": "path",
		})
	}

	if err := validatePath(path); err != nil {
		return "", newMCPError(ErrorCodeInvalidParams, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}
	return path, nil
}

// newMCPError creates a properly formatted MCP error.
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{Code: code, Message: message, Data: data}
}

// MCPError represents an MCP protocol error.
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that a path is an absolute, readable directory.
func validatePath(path string) error {
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}
	return nil
}

// formatJSON formats a map as indented JSON.
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value.
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}

// getFloatDefault extracts a float parameter with a default value.
func getFloatDefault(args map[string]interface{}, key string, defaultValue float64) float64 {
	if val, ok := args[key].(float64); ok {
		return val
	}
	return defaultValue
}

// Validation errors.
var (
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
