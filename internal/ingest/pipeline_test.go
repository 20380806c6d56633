package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jacochat/jaco-rag/internal/index"
	"github.com/jacochat/jaco-rag/internal/splitter"
	"github.com/jacochat/jaco-rag/pkg/models"
)

type fakeCrawler struct {
	docs []models.Document
	err  error
}

func (f *fakeCrawler) Crawl(context.Context, string) ([]models.Document, error) {
	return f.docs, f.err
}

// boundedCrawler also supports per-run page budgets.
type boundedCrawler struct {
	fakeCrawler
	lastMaxPages int
}

func (b *boundedCrawler) CrawlBounded(ctx context.Context, seedURL string, maxPages int) ([]models.Document, error) {
	b.lastMaxPages = maxPages
	return b.Crawl(ctx, seedURL)
}

type fakeEmbedder struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 0, 0}, nil
}

type fakeIndex struct {
	mu        sync.Mutex
	ensured   []index.Spec
	batches   [][]index.Record
	records   map[string]index.Record
	upsertErr error
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{records: make(map[string]index.Record)}
}

func (f *fakeIndex) EnsureIndex(_ context.Context, spec index.Spec) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured = append(f.ensured, spec)
	return nil
}

func (f *fakeIndex) Upsert(_ context.Context, _ string, records []index.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.batches = append(f.batches, records)
	for _, r := range records {
		f.records[r.ID] = r
	}
	return nil
}

func (f *fakeIndex) Query(context.Context, string, []float32, int) ([]index.Scored, error) {
	return nil, nil
}

func (f *fakeIndex) ClearNamespace(context.Context, string) error { return nil }

type fakeArchiver struct {
	saved  int
	err    error
	prefix string
}

func (f *fakeArchiver) SaveCrawl(_ context.Context, _ string, docs []models.Document) (string, error) {
	f.saved = len(docs)
	return f.prefix, f.err
}

func page(url, body string) models.Document {
	return models.Document{
		URL:         url,
		Content:     "<html><head><title>Care</title></head><body>" + body + "</body></html>",
		ContentType: "text/html",
		CrawledAt:   time.Now(),
	}
}

func newTestPipeline(t *testing.T, cfg Config) *Pipeline {
	t.Helper()
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestNew_Validation(t *testing.T) {
	crawler := &fakeCrawler{}
	embedder := &fakeEmbedder{}
	idx := newFakeIndex()

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{name: "missing crawler", config: Config{Embedder: embedder, Index: idx}, wantErr: true},
		{name: "missing embedder", config: Config{Crawler: crawler, Index: idx}, wantErr: true},
		{name: "missing index", config: Config{Crawler: crawler, Embedder: embedder}, wantErr: true},
		{name: "archiver optional", config: Config{Crawler: crawler, Embedder: embedder, Index: idx}, wantErr: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRun_FullFlow(t *testing.T) {
	crawler := &fakeCrawler{docs: []models.Document{
		page("https://jaco.example.com/", "<p>Jaco is a golden retriever.</p><p>He lives in Lisbon.</p>"),
		page("https://jaco.example.com/food", "<p>Two meals a day, no grapes ever.</p>"),
	}}
	embedder := &fakeEmbedder{}
	idx := newFakeIndex()
	p := newTestPipeline(t, Config{Crawler: crawler, Embedder: embedder, Index: idx})

	result, err := p.Run(context.Background(), "https://jaco.example.com/", Options{
		Namespace: "docs",
		IndexSpec: index.Spec{Name: "jaco", Dimension: 3},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if result.PagesCrawled != 2 {
		t.Errorf("PagesCrawled = %d, want 2", result.PagesCrawled)
	}
	if result.ChunksEmbedded == 0 {
		t.Error("no chunks embedded")
	}
	if result.VectorsUpserted != result.ChunksEmbedded {
		t.Errorf("VectorsUpserted = %d, want %d", result.VectorsUpserted, result.ChunksEmbedded)
	}
	if len(idx.ensured) != 1 || idx.ensured[0].Name != "jaco" {
		t.Errorf("EnsureIndex calls = %v", idx.ensured)
	}
	if embedder.calls != result.ChunksEmbedded {
		t.Errorf("embedder calls = %d, want %d", embedder.calls, result.ChunksEmbedded)
	}
	if len(result.SampleChunks) == 0 {
		t.Error("no sample chunks in result")
	}

	for id, rec := range idx.records {
		if rec.Metadata.Hash != id {
			t.Errorf("record %s has mismatched hash %s", id, rec.Metadata.Hash)
		}
		if rec.Metadata.URL == "" {
			t.Errorf("record %s has no source URL", id)
		}
	}
}

func TestRun_Idempotent(t *testing.T) {
	crawler := &fakeCrawler{docs: []models.Document{
		page("https://jaco.example.com/", "<p>Jaco is a golden retriever.</p>"),
	}}
	idx := newFakeIndex()
	p := newTestPipeline(t, Config{Crawler: crawler, Embedder: &fakeEmbedder{}, Index: idx})

	opts := Options{Namespace: "docs", IndexSpec: index.Spec{Name: "jaco", Dimension: 3}}
	first, err := p.Run(context.Background(), "https://jaco.example.com/", opts)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if _, err := p.Run(context.Background(), "https://jaco.example.com/", opts); err != nil {
		t.Fatalf("second Run() error = %v", err)
	}

	if len(idx.records) != first.VectorsUpserted {
		t.Errorf("index holds %d records after re-run, want %d", len(idx.records), first.VectorsUpserted)
	}
}

func TestRun_BatchesUpserts(t *testing.T) {
	// One page big enough to produce well over one batch of chunks.
	body := strings.Repeat("<p>"+strings.Repeat("jaco walks daily ", 20)+"</p>", 60)
	crawler := &fakeCrawler{docs: []models.Document{page("https://jaco.example.com/", body)}}
	idx := newFakeIndex()
	p := newTestPipeline(t, Config{Crawler: crawler, Embedder: &fakeEmbedder{}, Index: idx})

	result, err := p.Run(context.Background(), "https://jaco.example.com/", Options{
		IndexSpec: index.Spec{Name: "jaco", Dimension: 3},
		Splitter:  splitter.Options{ChunkSize: 300, ChunkOverlap: 0},
		BatchSize: 10,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.ChunksEmbedded <= 10 {
		t.Fatalf("test needs >10 chunks, got %d", result.ChunksEmbedded)
	}

	for i, batch := range idx.batches {
		if len(batch) > 10 {
			t.Errorf("batch %d has %d records, want <= 10", i, len(batch))
		}
	}
	if len(idx.batches) < 2 {
		t.Errorf("got %d batches, want at least 2", len(idx.batches))
	}
}

func TestRun_EmbedFailureAborts(t *testing.T) {
	crawler := &fakeCrawler{docs: []models.Document{
		page("https://jaco.example.com/", "<p>Jaco is a golden retriever.</p>"),
	}}
	idx := newFakeIndex()
	embedErr := errors.New("model overloaded")
	p := newTestPipeline(t, Config{Crawler: crawler, Embedder: &fakeEmbedder{err: embedErr}, Index: idx})

	_, err := p.Run(context.Background(), "https://jaco.example.com/", Options{
		IndexSpec: index.Spec{Name: "jaco", Dimension: 3},
	})
	if !errors.Is(err, embedErr) {
		t.Fatalf("Run() error = %v, want wrapped %v", err, embedErr)
	}
	if len(idx.batches) != 0 {
		t.Errorf("vectors were upserted despite embedding failure")
	}
}

func TestRun_CrawlFailure(t *testing.T) {
	crawlErr := errors.New("seed unreachable")
	p := newTestPipeline(t, Config{
		Crawler:  &fakeCrawler{err: crawlErr},
		Embedder: &fakeEmbedder{},
		Index:    newFakeIndex(),
	})

	_, err := p.Run(context.Background(), "https://down.example.com/", Options{})
	if !errors.Is(err, crawlErr) {
		t.Fatalf("Run() error = %v, want %v", err, crawlErr)
	}
}

func TestRun_ArchiveFailureIsNotFatal(t *testing.T) {
	crawler := &fakeCrawler{docs: []models.Document{
		page("https://jaco.example.com/", "<p>Jaco is a golden retriever.</p>"),
	}}
	arch := &fakeArchiver{err: errors.New("bucket unavailable")}
	p := newTestPipeline(t, Config{
		Crawler:  crawler,
		Embedder: &fakeEmbedder{},
		Index:    newFakeIndex(),
		Archiver: arch,
	})

	result, err := p.Run(context.Background(), "https://jaco.example.com/", Options{
		IndexSpec: index.Spec{Name: "jaco", Dimension: 3},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.ArchivePrefix != "" {
		t.Errorf("ArchivePrefix = %q, want empty after archive failure", result.ArchivePrefix)
	}
	if result.VectorsUpserted == 0 {
		t.Error("ingestion did not proceed past archive failure")
	}
}

func TestRun_ArchivePrefixRecorded(t *testing.T) {
	crawler := &fakeCrawler{docs: []models.Document{
		page("https://jaco.example.com/", "<p>Jaco is a golden retriever.</p>"),
	}}
	arch := &fakeArchiver{prefix: "crawls/jaco.example.com/2025-03-14T09-30-00"}
	p := newTestPipeline(t, Config{
		Crawler:  crawler,
		Embedder: &fakeEmbedder{},
		Index:    newFakeIndex(),
		Archiver: arch,
	})

	result, err := p.Run(context.Background(), "https://jaco.example.com/", Options{
		IndexSpec: index.Spec{Name: "jaco", Dimension: 3},
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.ArchivePrefix != arch.prefix {
		t.Errorf("ArchivePrefix = %q, want %q", result.ArchivePrefix, arch.prefix)
	}
	if arch.saved != 1 {
		t.Errorf("archiver saw %d docs, want 1", arch.saved)
	}
}

func TestRun_MaxPagesOverride(t *testing.T) {
	crawler := &boundedCrawler{fakeCrawler: fakeCrawler{docs: []models.Document{
		page("https://jaco.example.com/", "<p>Jaco is a golden retriever.</p>"),
	}}}
	p := newTestPipeline(t, Config{Crawler: crawler, Embedder: &fakeEmbedder{}, Index: newFakeIndex()})

	_, err := p.Run(context.Background(), "https://jaco.example.com/", Options{
		IndexSpec: index.Spec{Name: "jaco", Dimension: 3},
		MaxPages:  5,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if crawler.lastMaxPages != 5 {
		t.Errorf("crawler saw maxPages %d, want 5", crawler.lastMaxPages)
	}
}

func TestRun_EmptyCrawlShortCircuits(t *testing.T) {
	crawler := &fakeCrawler{docs: []models.Document{
		{URL: "https://jaco.example.com/", Content: "   ", ContentType: "text/markdown"},
	}}
	idx := newFakeIndex()
	p := newTestPipeline(t, Config{Crawler: crawler, Embedder: &fakeEmbedder{}, Index: idx})

	result, err := p.Run(context.Background(), "https://jaco.example.com/", Options{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.VectorsUpserted != 0 {
		t.Errorf("VectorsUpserted = %d, want 0", result.VectorsUpserted)
	}
	if len(idx.ensured) != 0 {
		t.Error("index was created despite no chunks")
	}
}
