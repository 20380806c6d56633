package embeddings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

// Dimension is the fixed embedding dimensionality the vector index is
// created with. All produced vectors are validated against it.
const Dimension = 1536

// Error marks failures of the embedding service: unreachable upstream
// or malformed output (wrong dimensionality, empty response).
var Error = errors.New("embedding failed")

// Config holds embeddings client configuration.
type Config struct {
	APIKey  string
	Model   string // defaults to text-embedding-ada-002
	BaseURL string // override for tests / compatible gateways
}

// Client generates fixed-length embedding vectors via the OpenAI API.
type Client struct {
	api   *openai.Client
	model openai.EmbeddingModel
}

// New creates a new embeddings client.
func New(config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("embeddings API key is required")
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	model := openai.AdaEmbeddingV2
	if config.Model != "" {
		model = openai.EmbeddingModel(config.Model)
	}

	return &Client{
		api:   openai.NewClientWithConfig(clientConfig),
		model: model,
	}, nil
}

// Embed generates an embedding vector for the given text. Failures are
// fatal to the run or request they occur in; the caller decides whether
// to abort or fail the request.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: c.model,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", Error, err)
	}

	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", Error)
	}

	vector := resp.Data[0].Embedding
	if len(vector) != Dimension {
		return nil, fmt.Errorf("%w: got %d dimensions, want %d", Error, len(vector), Dimension)
	}

	slog.Debug("generated embedding", "input_len", len(text), "dimensions", len(vector))
	return vector, nil
}
