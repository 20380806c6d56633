package models

import (
	"crypto/md5"
	"encoding/hex"
	"time"
	"unicode/utf8"
)

// MaxMetadataTextBytes caps the text stored in index record metadata.
// Guards against pathologically large single chunks before they reach
// the index's per-record metadata limit.
const MaxMetadataTextBytes = 36000

// Document is a unit of ingestible text produced by the crawler,
// one per crawled page or exported hosted document.
type Document struct {
	URL         string    `json:"url"`
	Title       string    `json:"title,omitempty"`
	Content     string    `json:"content"`
	ContentType string    `json:"content_type,omitempty"` // HTTP Content-Type header
	CrawledAt   time.Time `json:"crawled_at"`
}

// Chunk is a bounded slice of a document's content, independently
// embeddable. Hash is the chunk's stable identity in the vector index.
type Chunk struct {
	Text string `json:"text"`
	URL  string `json:"url"`
	Hash string `json:"hash"`
}

// HashContent returns a deterministic fingerprint of text. Identical
// text always hashes to the same value, so re-ingesting unchanged
// content overwrites the same record instead of duplicating it.
func HashContent(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

// TruncateByBytes cuts s to at most n bytes without splitting a rune.
func TruncateByBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// NewChunk builds a chunk from raw text, applying the metadata byte cap
// and stamping the content hash. The hash covers the truncated text.
func NewChunk(text, sourceURL string) Chunk {
	text = TruncateByBytes(text, MaxMetadataTextBytes)
	return Chunk{
		Text: text,
		URL:  sourceURL,
		Hash: HashContent(text),
	}
}
