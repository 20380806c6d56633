package crawler

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/jacochat/jaco-rag/internal/gdocs"
	"github.com/jacochat/jaco-rag/pkg/models"
)

// FetchError marks a single page that could not be retrieved. The
// crawl skips the page and continues.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string { return fmt.Sprintf("fetch %s: %v", e.URL, e.Err) }
func (e *FetchError) Unwrap() error { return e.Err }

// CrawlError means the crawl produced no usable pages: the seed itself
// failed or every page fetch did. Fatal to an ingestion run.
type CrawlError struct {
	SeedURL string
	Err     error
}

func (e *CrawlError) Error() string { return fmt.Sprintf("crawl %s: %v", e.SeedURL, e.Err) }
func (e *CrawlError) Unwrap() error { return e.Err }

// Exporter fetches a hosted document's content by ID. Implemented by
// the gdocs client; swapped for a fake in tests.
type Exporter interface {
	Export(ctx context.Context, docID string) (string, error)
}

// Config holds crawler configuration.
type Config struct {
	MaxDepth  int
	MaxPages  int
	Delay     time.Duration
	UserAgent string
	Timeout   time.Duration
	Exporter  Exporter // nil disables hosted-document ingestion
}

// Crawler discovers and fetches a bounded set of pages from a seed URL.
type Crawler struct {
	config Config
}

// New creates a new Crawler with the given configuration.
func New(config Config) *Crawler {
	if config.MaxDepth <= 0 {
		config.MaxDepth = 1
	}
	if config.MaxPages <= 0 {
		config.MaxPages = 100
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.UserAgent == "" {
		config.UserAgent = "jaco-rag/1.0"
	}
	return &Crawler{config: config}
}

// Crawl fetches the seed URL and follows same-origin links breadth-
// bounded by MaxDepth, stopping once MaxPages pages have been
// dispatched. A seed recognised as a hosted-document link is exported
// directly and is a leaf: exactly one document, no link traversal.
func (c *Crawler) Crawl(ctx context.Context, seedURL string) ([]models.Document, error) {
	if gdocs.IsHostedDocURL(seedURL) {
		doc, err := c.exportHostedDoc(ctx, seedURL)
		if err != nil {
			return nil, &CrawlError{SeedURL: seedURL, Err: err}
		}
		return []models.Document{*doc}, nil
	}

	seed, err := url.Parse(seedURL)
	if err != nil {
		return nil, &CrawlError{SeedURL: seedURL, Err: err}
	}

	var (
		mu         sync.Mutex
		docs       []models.Document
		dispatched int // pages claimed against MaxPages, at dispatch time
		seedErr    error
	)

	// claimSlot is the single point where the page budget is spent.
	// Checking at dispatch means two in-flight fetches can never both
	// take the last slot.
	claimSlot := func() bool {
		mu.Lock()
		defer mu.Unlock()
		if dispatched >= c.config.MaxPages {
			return false
		}
		dispatched++
		return true
	}

	collector := colly.NewCollector(
		colly.MaxDepth(c.config.MaxDepth),
		colly.UserAgent(c.config.UserAgent),
	)
	collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Delay:       c.config.Delay,
		Parallelism: 2,
	})
	collector.SetRequestTimeout(c.config.Timeout)

	collector.OnRequest(func(r *colly.Request) {
		if ctx.Err() != nil {
			r.Abort()
			return
		}
		if !claimSlot() {
			slog.Debug("page budget exhausted, not dispatching", "url", r.URL.String())
			r.Abort()
		}
	})

	collector.OnResponse(func(r *colly.Response) {
		if r.StatusCode >= 400 {
			slog.Warn("skipping page", "error", &FetchError{
				URL: r.Request.URL.String(),
				Err: fmt.Errorf("status %d", r.StatusCode),
			})
			return
		}

		doc := models.Document{
			URL:         r.Request.URL.String(),
			Content:     string(r.Body),
			ContentType: r.Headers.Get("Content-Type"),
			CrawledAt:   time.Now(),
		}
		slog.Debug("crawled page", "url", doc.URL, "content_type", doc.ContentType, "size", len(doc.Content))

		mu.Lock()
		docs = append(docs, doc)
		mu.Unlock()
	})

	collector.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}

		// Hosted-document links are leaves: exported directly, no
		// further link discovery, but still charged to the budget.
		if gdocs.IsHostedDocURL(link) && c.config.Exporter != nil {
			if !claimSlot() {
				return
			}
			doc, err := c.exportHostedDoc(ctx, link)
			if err != nil {
				slog.Warn("skipping hosted document", "error", err)
				return
			}
			mu.Lock()
			docs = append(docs, *doc)
			mu.Unlock()
			return
		}

		linkURL, err := url.Parse(link)
		if err != nil {
			return
		}
		if linkURL.Host != seed.Host {
			return
		}
		// The collector deduplicates visits by normalized URL, so a
		// page linked from many places is fetched once.
		e.Request.Visit(normalizeURL(link))
	})

	collector.OnError(func(r *colly.Response, err error) {
		fetchErr := &FetchError{URL: r.Request.URL.String(), Err: err}
		if r.Request.Depth <= 1 {
			mu.Lock()
			seedErr = fetchErr
			mu.Unlock()
		}
		slog.Warn("skipping page", "error", fetchErr)
	})

	if err := collector.Visit(normalizeURL(seedURL)); err != nil {
		return nil, &CrawlError{SeedURL: seedURL, Err: err}
	}
	collector.Wait()

	if ctx.Err() != nil {
		return docs, ctx.Err()
	}
	if len(docs) == 0 {
		cause := seedErr
		if cause == nil {
			cause = fmt.Errorf("no pages collected")
		}
		return nil, &CrawlError{SeedURL: seedURL, Err: cause}
	}

	slog.Debug("crawl complete", "seed", seedURL, "pages", len(docs))
	return docs, nil
}

// CrawlBounded crawls with a per-run page budget. A maxPages of zero
// or less falls back to the configured MaxPages.
func (c *Crawler) CrawlBounded(ctx context.Context, seedURL string, maxPages int) ([]models.Document, error) {
	if maxPages <= 0 {
		return c.Crawl(ctx, seedURL)
	}
	bounded := *c
	bounded.config.MaxPages = maxPages
	return bounded.Crawl(ctx, seedURL)
}

// exportHostedDoc fetches a hosted document through the export
// capability instead of HTML scraping.
func (c *Crawler) exportHostedDoc(ctx context.Context, docURL string) (*models.Document, error) {
	if c.config.Exporter == nil {
		return nil, fmt.Errorf("no document exporter configured for %s", docURL)
	}
	docID := gdocs.ExtractDocID(docURL)
	if docID == "" {
		return nil, fmt.Errorf("no document ID in %s", docURL)
	}

	slog.Debug("exporting hosted document", "url", docURL, "doc_id", docID)
	content, err := c.config.Exporter.Export(ctx, docID)
	if err != nil {
		return nil, err
	}

	return &models.Document{
		URL:         docURL,
		Content:     content,
		ContentType: gdocs.ExportMimeType,
		CrawledAt:   time.Now(),
	}, nil
}

// normalizeURL strips fragments and trailing slashes so the same page
// reached through different link spellings is fetched once.
func normalizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	u.Host = strings.ToLower(u.Host)
	if u.Path != "/" {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	return u.String()
}
