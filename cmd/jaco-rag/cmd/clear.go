package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var clearNamespace string

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all indexed vectors in a namespace",
	Long: `Delete every vector in the configured namespace. Clearing an index
that does not exist succeeds, so clear is safe to run before the
first seed.

Example:
  jaco-rag clear --namespace docs`,
	RunE: runClear,
}

func init() {
	rootCmd.AddCommand(clearCmd)

	clearCmd.Flags().StringVar(&clearNamespace, "namespace", "", "index namespace to clear")
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()
	idx, err := newIndex(cfg)
	if err != nil {
		return fmt.Errorf("failed to create index client: %w", err)
	}

	namespace := cfg.Index.Namespace
	if clearNamespace != "" {
		namespace = clearNamespace
	}

	if err := idx.ClearNamespace(ctx, namespace); err != nil {
		return err
	}

	fmt.Println("Index cleared.")
	return nil
}
