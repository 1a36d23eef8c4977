package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexCodebaseTool returns the tool definition for index_codebase.
func indexCodebaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_codebase",
		Description: "Index a codebase into the vector database so it can be searched semantically",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the codebase root",
				},
			},
			Required: []string{"path"},
		},
	}
}

// reindexChangesTool returns the tool definition for reindex_changes.
func reindexChangesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "reindex_changes",
		Description: "Incrementally re-index only the files added, modified, or removed since the last run",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the indexed codebase root",
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchCodeTool returns the tool definition for search_code.
func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Search an indexed codebase with a natural-language query",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the indexed codebase root",
				},
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query (natural language or keywords)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of results to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     100,
				},
				"threshold": map[string]interface{}{
					"type":        "number",
					"description": "Minimum relevance score (0.0-1.0); lower-scoring hits are dropped",
					"default":     0.0,
					"minimum":     0.0,
					"maximum":     1.0,
				},
			},
			Required: []string{"path", "query"},
		},
	}
}

// clearIndexTool returns the tool definition for clear_index.
func clearIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        "clear_index",
		Description: "Drop a codebase's collection and its snapshot",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the indexed codebase root",
				},
			},
			Required: []string{"path"},
		},
	}
}
