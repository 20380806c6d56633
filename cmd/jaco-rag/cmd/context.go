package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jacochat/jaco-rag/internal/retriever"
)

var (
	contextNamespace string
	contextTopK      int
	contextMinScore  float32
	contextMaxChars  int
	contextMatches   bool
)

var contextCmd = &cobra.Command{
	Use:   "context <query>",
	Short: "Retrieve context for a query",
	Long: `Embed the query, search the vector index, and print the assembled
context block. With --matches, print each match with its similarity
score and source URL instead, for inspecting retrieval quality.

Examples:
  jaco-rag context "Does Jaco have any health concerns?"
  jaco-rag context "feeding schedule" --matches --min-score 0.5`,
	Args: cobra.ExactArgs(1),
	RunE: runContext,
}

func init() {
	rootCmd.AddCommand(contextCmd)

	contextCmd.Flags().StringVar(&contextNamespace, "namespace", "", "index namespace to query")
	contextCmd.Flags().IntVar(&contextTopK, "top-k", 0, "max matches to retrieve")
	contextCmd.Flags().Float32Var(&contextMinScore, "min-score", 0, "similarity score floor")
	contextCmd.Flags().IntVar(&contextMaxChars, "max-chars", 0, "context block budget in characters")
	contextCmd.Flags().BoolVar(&contextMatches, "matches", false, "print scored matches instead of the context block")
}

func runContext(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	ret, err := newRetriever(cfg)
	if err != nil {
		return fmt.Errorf("failed to create retriever: %w", err)
	}

	namespace := cfg.Index.Namespace
	if contextNamespace != "" {
		namespace = contextNamespace
	}
	opts := retriever.Options{
		Namespace: namespace,
		TopK:      firstPositive(contextTopK, cfg.Retrieval.TopK),
		MinScore:  contextMinScore,
		MaxChars:  firstPositive(contextMaxChars, cfg.Retrieval.MaxChars),
	}
	if opts.MinScore == 0 {
		opts.MinScore = cfg.Retrieval.MinScore
	}

	query := args[0]

	if contextMatches {
		matches, err := ret.Matches(ctx, query, opts)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			fmt.Println("No matches.")
			return nil
		}
		for _, m := range matches {
			fmt.Printf("%.4f  %s\n", m.Score, m.Metadata.URL)
			fmt.Printf("        %s\n", firstLine(m.Metadata.Text))
		}
		return nil
	}

	block, err := ret.ContextBlock(ctx, query, opts)
	if err != nil {
		return err
	}
	if block == "" {
		fmt.Println("No relevant context found.")
		return nil
	}
	fmt.Println(block)
	return nil
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstLine(s string) string {
	for i, r := range s {
		if r == '\n' {
			return s[:i]
		}
		if i > 120 {
			return s[:i] + "..."
		}
	}
	return s
}
