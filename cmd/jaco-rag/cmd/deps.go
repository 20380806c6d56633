package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jacochat/jaco-rag/internal/archive"
	"github.com/jacochat/jaco-rag/internal/config"
	"github.com/jacochat/jaco-rag/internal/crawler"
	"github.com/jacochat/jaco-rag/internal/embeddings"
	"github.com/jacochat/jaco-rag/internal/gdocs"
	"github.com/jacochat/jaco-rag/internal/index"
	"github.com/jacochat/jaco-rag/internal/index/elastic"
	"github.com/jacochat/jaco-rag/internal/index/pinecone"
	"github.com/jacochat/jaco-rag/internal/ingest"
	"github.com/jacochat/jaco-rag/internal/retriever"
)

// newIndex builds the configured vector index backend.
func newIndex(cfg config.Config) (index.Index, error) {
	switch cfg.Index.Backend {
	case "pinecone":
		return pinecone.New(pinecone.Config{
			APIKey:        cfg.Index.APIKey,
			IndexName:     cfg.Index.Name,
			ControllerURL: cfg.Index.ControllerURL,
		})
	case "elasticsearch":
		return elastic.New(elastic.Config{
			Addresses: cfg.Index.Addresses,
			Index:     cfg.Index.Name,
			Username:  cfg.Index.Username,
			Password:  cfg.Index.Password,
		})
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.Index.Backend)
	}
}

func indexSpec(cfg config.Config) index.Spec {
	return index.Spec{
		Name:      cfg.Index.Name,
		Dimension: embeddings.Dimension,
		Cloud:     cfg.Index.Cloud,
		Region:    cfg.Index.Region,
	}
}

func newEmbedder(cfg config.Config) (*embeddings.Client, error) {
	return embeddings.New(embeddings.Config{
		APIKey:  cfg.Embeddings.APIKey,
		Model:   cfg.Embeddings.Model,
		BaseURL: cfg.Embeddings.BaseURL,
	})
}

func newRetriever(cfg config.Config) (*retriever.Retriever, error) {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	idx, err := newIndex(cfg)
	if err != nil {
		return nil, err
	}
	return retriever.New(retriever.Config{
		Embedder:  embedder,
		Index:     idx,
		Stopwords: retriever.DefaultStopwords(cfg.Retrieval.ExtraStopwords...),
	})
}

// newPipeline wires the full ingestion pipeline. The Google Docs
// exporter and the crawl archive are attached only when configured.
func newPipeline(ctx context.Context, cfg config.Config) (*ingest.Pipeline, error) {
	embedder, err := newEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	idx, err := newIndex(cfg)
	if err != nil {
		return nil, err
	}

	var exporter crawler.Exporter
	if cfg.Google.CredentialsFile != "" || cfg.Google.CredentialsJSON != "" {
		gd, err := gdocs.New(ctx, gdocs.Config{
			CredentialsFile: cfg.Google.CredentialsFile,
			CredentialsJSON: []byte(cfg.Google.CredentialsJSON),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create google docs exporter: %w", err)
		}
		exporter = gd
		slog.Info("google docs export enabled")
	}

	var archiver ingest.Archiver
	if cfg.Archive.Enabled {
		ar, err := archive.New(archive.Config{
			Endpoint:        cfg.Archive.Endpoint,
			Bucket:          cfg.Archive.Bucket,
			AccessKeyID:     cfg.Archive.AccessKeyID,
			SecretAccessKey: cfg.Archive.SecretAccessKey,
			UseSSL:          cfg.Archive.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create archive client: %w", err)
		}
		archiver = ar
		slog.Info("crawl archive enabled", "bucket", cfg.Archive.Bucket)
	}

	crawl := crawler.New(crawler.Config{
		MaxDepth:  cfg.Crawler.MaxDepth,
		MaxPages:  cfg.Crawler.MaxPages,
		Delay:     cfg.Crawler.Delay,
		Timeout:   cfg.Crawler.Timeout,
		UserAgent: cfg.Crawler.UserAgent,
		Exporter:  exporter,
	})

	return ingest.New(ingest.Config{
		Crawler:  crawl,
		Embedder: embedder,
		Index:    idx,
		Archiver: archiver,
	})
}
