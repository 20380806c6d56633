package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/jacochat/jaco-rag/pkg/models"
)

// Config holds S3/MinIO client configuration for crawl archives.
type Config struct {
	Endpoint        string // "localhost:9000" for MinIO
	Bucket          string // "jaco-rag"
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
}

// Client stores raw crawl snapshots in an S3-compatible bucket so a
// crawl can be inspected or re-ingested without hitting the site again.
type Client struct {
	minioClient *minio.Client
	bucket      string
}

func New(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	minioClient, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Client{
		minioClient: minioClient,
		bucket:      config.Bucket,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (c *Client) EnsureBucket(ctx context.Context) error {
	exists, err := c.minioClient.BucketExists(ctx, c.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	err = c.minioClient.MakeBucket(ctx, c.bucket, minio.MakeBucketOptions{})
	if err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Manifest describes one archived crawl.
type Manifest struct {
	SeedURL   string   `json:"seed_url"`
	Timestamp string   `json:"timestamp"`
	PageCount int      `json:"page_count"`
	Pages     []string `json:"pages"` // URLs of the crawled pages
}

// NewPrefix builds the object prefix for a crawl of seedURL taken at
// ts: crawls/{host}/{timestamp}-{runid}. The run id is derived from
// the seed so concurrent crawls of different seeds never collide. An
// unparsable seed falls back to the literal "unknown" host so the
// snapshot still lands somewhere findable.
func NewPrefix(seedURL string, ts time.Time) string {
	host := "unknown"
	if u, err := url.Parse(seedURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	runID := models.HashContent(seedURL)[:8]
	return path.Join("crawls", host, ts.UTC().Format("2006-01-02T15-04-05")+"-"+runID)
}

// PutPage writes one page's raw content under the crawl prefix, named
// by the content hash of the page.
func (c *Client) PutPage(ctx context.Context, prefix string, doc models.Document) error {
	filename := models.HashContent(doc.Content) + extensionFor(doc.ContentType)
	objectName := path.Join(prefix, "pages", filename)
	reader := strings.NewReader(doc.Content)

	_, err := c.minioClient.PutObject(ctx, c.bucket, objectName, reader, int64(len(doc.Content)), minio.PutObjectOptions{
		ContentType: doc.ContentType,
	})
	if err != nil {
		return fmt.Errorf("failed to put page: %w", err)
	}
	return nil
}

// PutManifest writes the crawl manifest JSON under the prefix.
func (c *Client) PutManifest(ctx context.Context, prefix string, manifest Manifest) error {
	objectName := path.Join(prefix, "manifest.json")

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	reader := bytes.NewReader(data)
	_, err = c.minioClient.PutObject(ctx, c.bucket, objectName, reader, int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to put manifest: %w", err)
	}
	return nil
}

// SaveCrawl archives every crawled page plus a manifest and returns
// the prefix the snapshot was written under.
func (c *Client) SaveCrawl(ctx context.Context, seedURL string, docs []models.Document) (string, error) {
	if err := c.EnsureBucket(ctx); err != nil {
		return "", err
	}

	now := time.Now()
	prefix := NewPrefix(seedURL, now)

	pages := make([]string, 0, len(docs))
	for _, doc := range docs {
		if err := c.PutPage(ctx, prefix, doc); err != nil {
			return "", fmt.Errorf("archive %s: %w", doc.URL, err)
		}
		pages = append(pages, doc.URL)
	}

	manifest := Manifest{
		SeedURL:   seedURL,
		Timestamp: now.UTC().Format(time.RFC3339),
		PageCount: len(docs),
		Pages:     pages,
	}
	if err := c.PutManifest(ctx, prefix, manifest); err != nil {
		return "", err
	}
	return prefix, nil
}

// ListPages returns the filenames of all archived pages under a prefix.
func (c *Client) ListPages(ctx context.Context, prefix string) ([]string, error) {
	pagesPrefix := path.Join(prefix, "pages") + "/"
	var files []string

	objectCh := c.minioClient.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    pagesPrefix,
		Recursive: true,
	})

	for object := range objectCh {
		if object.Err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", object.Err)
		}
		files = append(files, path.Base(object.Key))
	}

	return files, nil
}

// GetPage reads one archived page's content.
func (c *Client) GetPage(ctx context.Context, prefix, filename string) (string, error) {
	objectName := path.Join(prefix, "pages", filename)

	object, err := c.minioClient.GetObject(ctx, c.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to get page: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return "", fmt.Errorf("failed to read page: %w", err)
	}

	return string(data), nil
}

// GetManifest reads the crawl manifest under a prefix.
func (c *Client) GetManifest(ctx context.Context, prefix string) (*Manifest, error) {
	objectName := path.Join(prefix, "manifest.json")

	object, err := c.minioClient.GetObject(ctx, c.bucket, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get manifest: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}

	return &manifest, nil
}

// Bucket returns the bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

func extensionFor(contentType string) string {
	switch {
	case strings.Contains(contentType, "markdown"):
		return ".md"
	case strings.Contains(contentType, "html"):
		return ".html"
	default:
		return ".txt"
	}
}
