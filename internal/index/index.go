// Package index defines the vector index capability the ingestion
// pipeline writes to and the retriever reads from: idempotent upsert by
// record ID, similarity query, and namespace-scoped deletion.
package index

import (
	"context"
	"fmt"
)

// Metadata is the payload stored alongside each vector.
type Metadata struct {
	Chunk string `json:"chunk"`
	Text  string `json:"text"`
	URL   string `json:"url"`
	Hash  string `json:"hash"`
}

// Record is the persisted unit in the vector index. ID is the chunk's
// content hash; upserting an existing ID replaces the record.
type Record struct {
	ID       string    `json:"id"`
	Values   []float32 `json:"values"`
	Metadata Metadata  `json:"metadata"`
}

// Scored is a record returned from a similarity query with its score
// (0-1, higher is more similar). Values are omitted by most backends.
type Scored struct {
	ID       string   `json:"id"`
	Score    float32  `json:"score"`
	Metadata Metadata `json:"metadata"`
}

// Spec describes the index to ensure before ingesting.
type Spec struct {
	Name      string
	Dimension int
	Cloud     string // serverless placement, ignored by self-hosted backends
	Region    string
}

// Index is the capability surface consumed by ingestion, retrieval and
// maintenance. Implementations must make Upsert idempotent per ID and
// treat ClearNamespace on a missing index as success.
type Index interface {
	// EnsureIndex creates the index if absent and waits for readiness.
	EnsureIndex(ctx context.Context, spec Spec) error
	// Upsert writes records into the namespace, replacing existing IDs.
	Upsert(ctx context.Context, namespace string, records []Record) error
	// Query returns the topK most similar records with metadata.
	Query(ctx context.Context, namespace string, vector []float32, topK int) ([]Scored, error)
	// ClearNamespace deletes every record in the namespace.
	ClearNamespace(ctx context.Context, namespace string) error
}

// Error carries enough detail for operator diagnosis of a failed index
// operation.
type Error struct {
	Op        string
	Index     string
	Namespace string
	Err       error
}

func (e *Error) Error() string {
	if e.Namespace != "" {
		return fmt.Sprintf("index %s: %s (namespace %q): %v", e.Index, e.Op, e.Namespace, e.Err)
	}
	return fmt.Sprintf("index %s: %s: %v", e.Index, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
