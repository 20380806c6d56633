package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/jacochat/jaco-rag/internal/index"
	"github.com/jacochat/jaco-rag/internal/retriever"
)

// Retriever is the query surface exposed over MCP. Satisfied by
// *retriever.Retriever.
type Retriever interface {
	Matches(ctx context.Context, query string, opts retriever.Options) ([]index.Scored, error)
	ContextBlock(ctx context.Context, query string, opts retriever.Options) (string, error)
}

// Config holds MCP server configuration.
type Config struct {
	Name      string
	Version   string
	Namespace string
}

// Server exposes retrieval tools to MCP clients over stdio.
type Server struct {
	mcpServer *server.MCPServer
	retriever Retriever
	namespace string
}

// NewServer creates a new MCP server with retrieval tools.
func NewServer(config Config, ret Retriever) (*Server, error) {
	if ret == nil {
		return nil, fmt.Errorf("retriever is required")
	}

	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	s := &Server{
		mcpServer: mcpServer,
		retriever: ret,
		namespace: config.Namespace,
	}

	contextTool := mcp.NewTool("get_context",
		mcp.WithDescription("Retrieve background knowledge relevant to a question as a single text block, assembled from the most similar indexed chunks."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The question to retrieve context for"),
		),
		mcp.WithNumber("maxChars",
			mcp.Description("Maximum context length in characters (default: 3000)"),
		),
	)
	mcpServer.AddTool(contextTool, s.contextHandler)

	searchTool := mcp.NewTool("search_sources",
		mcp.WithDescription("Search the indexed chunks by query. Returns each match with its similarity score and source URL."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query string"),
		),
		mcp.WithNumber("topK",
			mcp.Description("Maximum number of results to return (default: 10)"),
		),
	)
	mcpServer.AddTool(searchTool, s.searchHandler)

	return s, nil
}

// contextHandler handles the get_context tool call.
func (s *Server) contextHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	maxChars := req.GetInt("maxChars", retriever.DefaultMaxChars)

	block, err := s.retriever.ContextBlock(ctx, query, retriever.Options{
		Namespace: s.namespace,
		MaxChars:  maxChars,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("retrieval failed: %v", err)), nil
	}

	if block == "" {
		return mcp.NewToolResultText("No relevant context found."), nil
	}
	return mcp.NewToolResultText(block), nil
}

// searchHandler handles the search_sources tool call.
func (s *Server) searchHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	topK := req.GetInt("topK", retriever.DefaultTopK)

	matches, err := s.retriever.Matches(ctx, query, retriever.Options{
		Namespace: s.namespace,
		TopK:      topK,
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	result, err := json.Marshal(matches)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}

	return mcp.NewToolResultText(string(result)), nil
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
