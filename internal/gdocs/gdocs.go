// Package gdocs exports hosted Google Docs through the Drive API.
// Recognised document links are ingested via export rather than HTML
// scraping; the document must be shared with the service account.
package gdocs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ExportMimeType is the format documents are exported as.
const ExportMimeType = "text/html"

// maxExportBytes bounds the size of exported content.
const maxExportBytes = 10 * 1024 * 1024

// Distinguishable export failures. Not-found means the document was
// deleted; permission-denied means it was never shared with the
// service account. Operators remediate these differently.
var (
	ErrNotFound         = errors.New("gdocs: document not found")
	ErrPermissionDenied = errors.New("gdocs: permission denied")
)

var docIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/document/d/([a-zA-Z0-9-_]+)`),
	regexp.MustCompile(`/file/d/([a-zA-Z0-9-_]+)`),
	regexp.MustCompile(`id=([a-zA-Z0-9-_]+)`),
}

// IsHostedDocURL reports whether url points at a hosted Google
// Docs/Drive document.
func IsHostedDocURL(url string) bool {
	return strings.Contains(url, "docs.google.com") ||
		strings.Contains(url, "drive.google.com")
}

// ExtractDocID pulls the document ID out of the known Google Docs URL
// shapes. Returns "" when none match.
func ExtractDocID(url string) string {
	for _, pattern := range docIDPatterns {
		if m := pattern.FindStringSubmatch(url); len(m) > 1 {
			return m[1]
		}
	}
	return ""
}

// Config holds Drive export client configuration.
type Config struct {
	CredentialsJSON []byte // service account key
	CredentialsFile string // alternative: path to the key file
}

// Client exports hosted documents via the Drive API.
type Client struct {
	svc *drive.Service
}

// New creates a Drive export client from service account credentials.
func New(ctx context.Context, config Config) (*Client, error) {
	var opts []option.ClientOption
	switch {
	case len(config.CredentialsJSON) > 0:
		opts = append(opts, option.WithCredentialsJSON(config.CredentialsJSON))
	case config.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(config.CredentialsFile))
	default:
		return nil, fmt.Errorf("gdocs: service account credentials are required")
	}
	opts = append(opts, option.WithScopes(drive.DriveReadonlyScope))

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gdocs: create drive service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// Export fetches the document's content as HTML. A missing document
// surfaces ErrNotFound, a document not shared with the service account
// surfaces ErrPermissionDenied.
func (c *Client) Export(ctx context.Context, docID string) (string, error) {
	resp, err := c.svc.Files.Export(docID, ExportMimeType).Context(ctx).Download()
	if err != nil {
		return "", wrapDriveError(docID, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxExportBytes))
	if err != nil {
		return "", fmt.Errorf("gdocs: read export of %s: %w", docID, err)
	}
	return string(data), nil
}

func wrapDriveError(docID string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s (document deleted or ID invalid)", ErrNotFound, docID)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %s (share the document with the service account)", ErrPermissionDenied, docID)
		}
	}
	return fmt.Errorf("gdocs: export %s: %w", docID, err)
}
