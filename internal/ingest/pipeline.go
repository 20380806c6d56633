package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jacochat/jaco-rag/internal/index"
	"github.com/jacochat/jaco-rag/internal/processor"
	"github.com/jacochat/jaco-rag/internal/splitter"
	"github.com/jacochat/jaco-rag/pkg/models"
)

// Defaults for ingestion tuning.
const (
	DefaultBatchSize        = 10
	DefaultEmbedConcurrency = 4
	DefaultSampleChunks     = 3
)

// Crawler produces the raw documents for a seed URL. Satisfied by
// *crawler.Crawler.
type Crawler interface {
	Crawl(ctx context.Context, seedURL string) ([]models.Document, error)
}

// BoundedCrawler is implemented by crawlers whose page budget can be
// overridden per run.
type BoundedCrawler interface {
	CrawlBounded(ctx context.Context, seedURL string, maxPages int) ([]models.Document, error)
}

// Embedder turns chunk text into a vector. Satisfied by
// *embeddings.Client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Archiver stores a raw crawl snapshot. Satisfied by *archive.Client.
type Archiver interface {
	SaveCrawl(ctx context.Context, seedURL string, docs []models.Document) (string, error)
}

// Config holds the pipeline's dependencies. Archiver is optional.
type Config struct {
	Crawler  Crawler
	Embedder Embedder
	Index    index.Index
	Archiver Archiver
}

// Options tunes a single ingestion run.
type Options struct {
	Namespace        string
	IndexSpec        index.Spec
	Splitter         splitter.Options
	MaxPages         int // per-run page budget, 0 keeps the crawler's default
	BatchSize        int // vectors per upsert call, default 10
	EmbedConcurrency int // concurrent embedding requests, default 4
}

// Result summarizes a completed ingestion run.
type Result struct {
	SeedURL         string         `json:"seed_url"`
	PagesCrawled    int            `json:"pages_crawled"`
	ChunksEmbedded  int            `json:"chunks_embedded"`
	VectorsUpserted int            `json:"vectors_upserted"`
	ArchivePrefix   string         `json:"archive_prefix,omitempty"`
	Duration        time.Duration  `json:"duration"`
	SampleChunks    []models.Chunk `json:"sample_chunks,omitempty"`
}

// Pipeline orchestrates the crawl, chunk, embed, and upsert flow.
type Pipeline struct {
	crawler   Crawler
	embedder  Embedder
	index     index.Index
	archiver  Archiver
	processor *processor.Processor
}

func New(cfg Config) (*Pipeline, error) {
	if cfg.Crawler == nil {
		return nil, fmt.Errorf("ingest: crawler is required")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("ingest: embedder is required")
	}
	if cfg.Index == nil {
		return nil, fmt.Errorf("ingest: index is required")
	}
	return &Pipeline{
		crawler:   cfg.Crawler,
		embedder:  cfg.Embedder,
		index:     cfg.Index,
		archiver:  cfg.Archiver,
		processor: processor.New(),
	}, nil
}

// Run executes the full ingestion flow for seedURL. Re-running over
// unchanged content produces the same vector IDs, so it overwrites
// rather than duplicates.
func (p *Pipeline) Run(ctx context.Context, seedURL string, opts Options) (*Result, error) {
	start := time.Now()

	split, err := splitter.New(opts.Splitter)
	if err != nil {
		return nil, err
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.EmbedConcurrency <= 0 {
		opts.EmbedConcurrency = DefaultEmbedConcurrency
	}

	docs, err := p.crawl(ctx, seedURL, opts.MaxPages)
	if err != nil {
		return nil, err
	}
	slog.Info("crawl complete", "seed_url", seedURL, "pages", len(docs))

	result := &Result{SeedURL: seedURL, PagesCrawled: len(docs)}

	if p.archiver != nil {
		prefix, err := p.archiver.SaveCrawl(ctx, seedURL, docs)
		if err != nil {
			slog.Warn("failed to archive crawl", "seed_url", seedURL, "error", err)
		} else {
			result.ArchivePrefix = prefix
			slog.Info("crawl archived", "prefix", prefix)
		}
	}

	var chunks []models.Chunk
	for _, doc := range docs {
		content, title, err := p.processor.Normalize(doc)
		if err != nil {
			slog.Warn("failed to normalize page", "url", doc.URL, "error", err)
			continue
		}

		pageChunks := split.Split(content, doc.URL)
		slog.Debug("page chunked", "url", doc.URL, "title", title, "chunks", len(pageChunks))
		chunks = append(chunks, pageChunks...)
	}

	if len(chunks) == 0 {
		result.Duration = time.Since(start)
		return result, nil
	}

	if err := p.index.EnsureIndex(ctx, opts.IndexSpec); err != nil {
		return nil, err
	}

	records, err := p.embedChunks(ctx, chunks, opts.EmbedConcurrency)
	if err != nil {
		return nil, err
	}
	result.ChunksEmbedded = len(records)

	for offset := 0; offset < len(records); offset += opts.BatchSize {
		end := min(offset+opts.BatchSize, len(records))
		if err := p.index.Upsert(ctx, opts.Namespace, records[offset:end]); err != nil {
			return nil, fmt.Errorf("upsert batch at %d: %w", offset, err)
		}
		result.VectorsUpserted += end - offset
	}

	result.SampleChunks = chunks[:min(DefaultSampleChunks, len(chunks))]
	result.Duration = time.Since(start)
	slog.Info("ingestion complete",
		"seed_url", seedURL,
		"pages", result.PagesCrawled,
		"vectors", result.VectorsUpserted,
		"duration", result.Duration)
	return result, nil
}

func (p *Pipeline) crawl(ctx context.Context, seedURL string, maxPages int) ([]models.Document, error) {
	if maxPages > 0 {
		if bounded, ok := p.crawler.(BoundedCrawler); ok {
			return bounded.CrawlBounded(ctx, seedURL, maxPages)
		}
	}
	return p.crawler.Crawl(ctx, seedURL)
}

// embedChunks embeds all chunks with bounded concurrency. The first
// embedding failure cancels the remaining work and fails the run.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []models.Chunk, concurrency int) ([]index.Record, error) {
	records := make([]index.Record, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, chunk := range chunks {
		g.Go(func() error {
			vector, err := p.embedder.Embed(gctx, chunk.Text)
			if err != nil {
				return fmt.Errorf("embed chunk %s: %w", chunk.Hash, err)
			}
			records[i] = index.Record{
				ID:     chunk.Hash,
				Values: vector,
				Metadata: index.Metadata{
					Chunk: chunk.Text,
					Text:  chunk.Text,
					URL:   chunk.URL,
					Hash:  chunk.Hash,
				},
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}
