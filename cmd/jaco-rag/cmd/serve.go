package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jacochat/jaco-rag/internal/server"
)

var serveAllowAll bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Start the HTTP API server used by the chat frontend.

Endpoints:
  POST /api/context     Retrieve scored matches for a query
  POST /api/crawl       Crawl and index a site
  POST /api/clearIndex  Delete all vectors in a namespace

Example:
  jaco-rag serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveAllowAll, "allow-all-origins", false, "allow all CORS origins (dev mode)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := GetConfig()

	ret, err := newRetriever(cfg)
	if err != nil {
		return fmt.Errorf("failed to create retriever: %w", err)
	}
	pipeline, err := newPipeline(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	idx, err := newIndex(cfg)
	if err != nil {
		return fmt.Errorf("failed to create index client: %w", err)
	}

	srv, err := server.New(server.Config{
		Port:      cfg.Server.Port,
		AllowAll:  serveAllowAll || cfg.Server.AllowAll,
		Namespace: cfg.Index.Namespace,
		IndexSpec: indexSpec(cfg),
	}, ret, pipeline, idx)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
