package elastic

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jacochat/jaco-rag/internal/index"
)

func skipIfNoES(t *testing.T) {
	if os.Getenv("SKIP_ES_TESTS") == "1" {
		t.Skip("Skipping ES tests (SKIP_ES_TESTS=1)")
	}

	client, err := New(Config{
		Addresses: []string{"http://localhost:9200"},
		Index:     "test-skip-check",
	})
	if err != nil {
		t.Skipf("Skipping ES tests: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !client.Ping(ctx) {
		t.Skip("Skipping ES tests: Elasticsearch not available")
	}
}

func testVector(seed float32) []float32 {
	v := make([]float32, 1536)
	for i := range v {
		v[i] = seed
	}
	v[0] = 1
	return v
}

func TestClient_EnsureIndexIdempotent(t *testing.T) {
	skipIfNoES(t)

	client, err := New(Config{
		Addresses: []string{"http://localhost:9200"},
		Index:     "jaco-rag-test-create",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	client.DeleteIndex(ctx)
	defer client.DeleteIndex(ctx)

	spec := index.Spec{Name: "jaco-rag-test-create", Dimension: 1536}
	if err := client.EnsureIndex(ctx, spec); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}
	if err := client.EnsureIndex(ctx, spec); err != nil {
		t.Fatalf("EnsureIndex() second call error = %v", err)
	}
}

func TestClient_UpsertQueryClear(t *testing.T) {
	skipIfNoES(t)

	client, err := New(Config{
		Addresses: []string{"http://localhost:9200"},
		Index:     "jaco-rag-test-records",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	client.DeleteIndex(ctx)
	defer client.DeleteIndex(ctx)
	if err := client.EnsureIndex(ctx, index.Spec{Name: "jaco-rag-test-records", Dimension: 1536}); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}

	records := []index.Record{
		{ID: "hash-a", Values: testVector(0.01), Metadata: index.Metadata{Chunk: "jaco walks daily", URL: "https://example.com/a", Hash: "hash-a"}},
		{ID: "hash-b", Values: testVector(0.02), Metadata: index.Metadata{Chunk: "jaco eats twice", URL: "https://example.com/b", Hash: "hash-b"}},
	}
	if err := client.Upsert(ctx, "pets", records); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	// Re-upserting the same IDs must replace, not duplicate.
	if err := client.Upsert(ctx, "pets", records); err != nil {
		t.Fatalf("Upsert() second call error = %v", err)
	}
	client.Refresh(ctx)

	matches, err := client.Query(ctx, "pets", testVector(0.01), 10)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2 (no duplicates)", len(matches))
	}
	if matches[0].Metadata.Chunk == "" {
		t.Error("match missing metadata")
	}

	// Other namespaces are invisible to the query.
	other, err := client.Query(ctx, "elsewhere", testVector(0.01), 10)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(other) != 0 {
		t.Errorf("namespace leak: got %d matches in empty namespace", len(other))
	}

	if err := client.ClearNamespace(ctx, "pets"); err != nil {
		t.Fatalf("ClearNamespace() error = %v", err)
	}
	client.Refresh(ctx)

	cleared, err := client.Query(ctx, "pets", testVector(0.01), 10)
	if err != nil {
		t.Fatalf("Query() after clear error = %v", err)
	}
	if len(cleared) != 0 {
		t.Errorf("namespace not cleared: %d matches remain", len(cleared))
	}
}

func TestClient_ClearMissingIndexIsSuccess(t *testing.T) {
	skipIfNoES(t)

	client, err := New(Config{
		Addresses: []string{"http://localhost:9200"},
		Index:     "jaco-rag-test-never-created",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := client.ClearNamespace(context.Background(), "pets"); err != nil {
		t.Errorf("ClearNamespace() on missing index = %v, want nil", err)
	}
}
