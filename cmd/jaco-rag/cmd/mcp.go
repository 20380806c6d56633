package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacochat/jaco-rag/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Start the MCP server for context retrieval.

The server communicates via stdio and provides two tools:
  - get_context: Retrieve an assembled context block for a question
  - search_sources: Search indexed chunks with scores and source URLs

Example:
  jaco-rag mcp`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	ret, err := newRetriever(cfg)
	if err != nil {
		return fmt.Errorf("failed to create retriever: %w", err)
	}

	srv, err := mcp.NewServer(mcp.Config{
		Name:      cfg.MCP.Name,
		Version:   cfg.MCP.Version,
		Namespace: cfg.Index.Namespace,
	}, ret)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting MCP server...")

	return srv.ServeStdio()
}
