package embeddings

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() with empty API key should fail")
	}
	if _, err := New(Config{APIKey: "test-key"}); err != nil {
		t.Errorf("New() error = %v", err)
	}
}

// embeddingsEndpoint serves a canned OpenAI embeddings response.
func embeddingsEndpoint(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vector := make([]float32, dims)
		for i := range vector {
			vector[i] = 0.01
		}
		resp := map[string]any{
			"object": "list",
			"data": []map[string]any{
				{"object": "embedding", "index": 0, "embedding": vector},
			},
			"model": "text-embedding-ada-002",
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
}

func TestEmbed_Success(t *testing.T) {
	server := embeddingsEndpoint(t, Dimension)
	defer server.Close()

	client, err := New(Config{APIKey: "test-key", BaseURL: server.URL + "/v1"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	vector, err := client.Embed(context.Background(), "jaco health concerns")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if len(vector) != Dimension {
		t.Errorf("Embed() returned %d dimensions, want %d", len(vector), Dimension)
	}
}

func TestEmbed_WrongDimensionality(t *testing.T) {
	server := embeddingsEndpoint(t, 42)
	defer server.Close()

	client, err := New(Config{APIKey: "test-key", BaseURL: server.URL + "/v1"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = client.Embed(context.Background(), "text")
	if !errors.Is(err, Error) {
		t.Errorf("Embed() error = %v, want embedding error", err)
	}
}

func TestEmbed_ServiceUnreachable(t *testing.T) {
	server := embeddingsEndpoint(t, Dimension)
	server.Close() // refuse connections

	client, err := New(Config{APIKey: "test-key", BaseURL: server.URL + "/v1"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = client.Embed(context.Background(), "text")
	if !errors.Is(err, Error) {
		t.Errorf("Embed() error = %v, want embedding error", err)
	}
}

func TestEmbed_UpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := New(Config{APIKey: "test-key", BaseURL: server.URL + "/v1"})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	_, err = client.Embed(context.Background(), "text")
	if !errors.Is(err, Error) {
		t.Errorf("Embed() error = %v, want embedding error", err)
	}
}
