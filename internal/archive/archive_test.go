package archive

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jacochat/jaco-rag/pkg/models"
)

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "empty endpoint",
			config:  Config{Endpoint: "", Bucket: "test"},
			wantErr: true,
		},
		{
			name:    "empty bucket",
			config:  Config{Endpoint: "localhost:9000", Bucket: ""},
			wantErr: true,
		},
		{
			name: "valid config",
			config: Config{
				Endpoint:        "localhost:9000",
				Bucket:          "test",
				AccessKeyID:     "minioadmin",
				SecretAccessKey: "minioadmin",
			},
			wantErr: false,
		},
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

func TestNewPrefix(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

	tests := []struct {
		name       string
		seedURL    string
		wantPrefix string
	}{
		{
			name:       "site crawl",
			seedURL:    "https://jaco.example.com/care",
			wantPrefix: "crawls/jaco.example.com/2025-03-14T09-30-00-",
		},
		{
			name:       "unparsable seed",
			seedURL:    "://not-a-url",
			wantPrefix: "crawls/unknown/2025-03-14T09-30-00-",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewPrefix(tt.seedURL, ts)
			if !strings.HasPrefix(got, tt.wantPrefix) {
				t.Errorf("NewPrefix(%q) = %q, want prefix %q", tt.seedURL, got, tt.wantPrefix)
			}
			if len(got) != len(tt.wantPrefix)+8 {
				t.Errorf("NewPrefix(%q) = %q, want 8-char run id suffix", tt.seedURL, got)
			}
		})
	}

	// Same seed, same timestamp, same prefix: the run id is
	// deterministic.
	a := NewPrefix("https://jaco.example.com/care", ts)
	b := NewPrefix("https://jaco.example.com/care", ts)
	if a != b {
		t.Errorf("prefix not deterministic: %q vs %q", a, b)
	}
}

func TestExtensionFor(t *testing.T) {
	tests := []struct {
		contentType string
		want        string
	}{
		{"text/markdown", ".md"},
		{"text/markdown; charset=utf-8", ".md"},
		{"text/html", ".html"},
		{"text/plain", ".txt"},
		{"", ".txt"},
	}

	for _, tt := range tests {
		if got := extensionFor(tt.contentType); got != tt.want {
			t.Errorf("extensionFor(%q) = %q, want %q", tt.contentType, got, tt.want)
		}
	}
}

// TestIntegration_ArchiveOperations exercises a real MinIO instance.
// Skip if MinIO is not running.
func TestIntegration_ArchiveOperations(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}

	client, err := New(Config{
		Endpoint:        endpoint,
		Bucket:          "jaco-rag-test",
		AccessKeyID:     "minioadmin",
		SecretAccessKey: "minioadmin",
		UseSSL:          false,
	})
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	ctx := context.Background()

	if err := client.EnsureBucket(ctx); err != nil {
		t.Skipf("MinIO not available, skipping integration test: %v", err)
	}

	docs := []models.Document{
		{
			URL:         "https://jaco.example.com/care/feeding",
			Title:       "Feeding",
			Content:     "# Feeding\n\nTwo meals a day.",
			ContentType: "text/html",
			CrawledAt:   time.Now(),
		},
		{
			URL:         "https://jaco.example.com/care/walks",
			Title:       "Walks",
			Content:     "# Walks\n\nMorning and evening.",
			ContentType: "text/markdown",
			CrawledAt:   time.Now(),
		},
	}

	prefix, err := client.SaveCrawl(ctx, "https://jaco.example.com/care", docs)
	if err != nil {
		t.Fatalf("SaveCrawl() error = %v", err)
	}
	if !strings.HasPrefix(prefix, "crawls/jaco.example.com/") {
		t.Errorf("SaveCrawl() prefix = %q, want crawls/jaco.example.com/...", prefix)
	}

	t.Run("ListPages", func(t *testing.T) {
		files, err := client.ListPages(ctx, prefix)
		if err != nil {
			t.Fatalf("ListPages() error = %v", err)
		}
		if len(files) != 2 {
			t.Errorf("ListPages() returned %d files, want 2", len(files))
		}
	})

	t.Run("GetPage", func(t *testing.T) {
		filename := models.HashContent(docs[0].Content) + ".html"
		content, err := client.GetPage(ctx, prefix, filename)
		if err != nil {
			t.Fatalf("GetPage() error = %v", err)
		}
		if content != docs[0].Content {
			t.Errorf("GetPage() = %q, want %q", content, docs[0].Content)
		}
	})

	t.Run("GetManifest", func(t *testing.T) {
		manifest, err := client.GetManifest(ctx, prefix)
		if err != nil {
			t.Fatalf("GetManifest() error = %v", err)
		}
		if manifest.SeedURL != "https://jaco.example.com/care" {
			t.Errorf("manifest.SeedURL = %q", manifest.SeedURL)
		}
		if manifest.PageCount != 2 {
			t.Errorf("manifest.PageCount = %d, want 2", manifest.PageCount)
		}
		if len(manifest.Pages) != 2 {
			t.Errorf("manifest.Pages has %d entries, want 2", len(manifest.Pages))
		}
	})
}
