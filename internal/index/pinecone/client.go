// Package pinecone implements the vector index capability against a
// Pinecone-style serverless REST API: a control plane for index
// lifecycle and a per-index data plane for vectors.
package pinecone

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jacochat/jaco-rag/internal/index"
)

// DefaultControllerURL is the production control plane endpoint.
const DefaultControllerURL = "https://api.pinecone.io"

const apiVersion = "2024-07"

// Config holds Pinecone client configuration.
type Config struct {
	APIKey        string
	IndexName     string
	ControllerURL string        // override for tests
	Timeout       time.Duration // per-request timeout
	ReadyPollWait time.Duration // delay between readiness polls
}

// Client talks to the Pinecone control and data planes.
type Client struct {
	apiKey     string
	indexName  string
	controller string
	host       string // data plane host, resolved lazily
	httpClient *http.Client
	pollWait   time.Duration
}

// New creates a Pinecone index client.
func New(config Config) (*Client, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("pinecone API key is required")
	}
	if config.IndexName == "" {
		return nil, fmt.Errorf("pinecone index name is required")
	}
	if config.ControllerURL == "" {
		config.ControllerURL = DefaultControllerURL
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.ReadyPollWait == 0 {
		config.ReadyPollWait = 2 * time.Second
	}
	return &Client{
		apiKey:     config.APIKey,
		indexName:  config.IndexName,
		controller: config.ControllerURL,
		httpClient: &http.Client{Timeout: config.Timeout},
		pollWait:   config.ReadyPollWait,
	}, nil
}

type indexDescription struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Host      string `json:"host"`
	Status    struct {
		Ready bool   `json:"ready"`
		State string `json:"state"`
	} `json:"status"`
}

type indexList struct {
	Indexes []indexDescription `json:"indexes"`
}

// EnsureIndex creates the index with the requested dimensionality and
// serverless placement if it does not exist, then waits for readiness.
func (c *Client) EnsureIndex(ctx context.Context, spec index.Spec) error {
	list, err := c.listIndexes(ctx)
	if err != nil {
		return &index.Error{Op: "list", Index: spec.Name, Err: err}
	}

	for _, desc := range list.Indexes {
		if desc.Name == spec.Name {
			slog.Debug("index already exists", "index", spec.Name, "host", desc.Host)
			c.host = desc.Host
			return nil
		}
	}

	slog.Info("creating index", "index", spec.Name, "dimension", spec.Dimension,
		"cloud", spec.Cloud, "region", spec.Region)

	body := map[string]any{
		"name":      spec.Name,
		"dimension": spec.Dimension,
		"metric":    "cosine",
		"spec": map[string]any{
			"serverless": map[string]any{
				"cloud":  spec.Cloud,
				"region": spec.Region,
			},
		},
	}
	var created indexDescription
	if err := c.do(ctx, http.MethodPost, c.controller+"/indexes", body, &created); err != nil {
		return &index.Error{Op: "create", Index: spec.Name, Err: err}
	}

	if err := c.waitUntilReady(ctx, spec.Name); err != nil {
		return &index.Error{Op: "create", Index: spec.Name, Err: err}
	}
	return nil
}

// waitUntilReady polls the index description until the index reports
// ready or the context is cancelled.
func (c *Client) waitUntilReady(ctx context.Context, name string) error {
	for {
		var desc indexDescription
		if err := c.do(ctx, http.MethodGet, c.controller+"/indexes/"+name, nil, &desc); err != nil {
			return err
		}
		if desc.Status.Ready {
			c.host = desc.Host
			return nil
		}
		slog.Debug("waiting for index readiness", "index", name, "state", desc.Status.State)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollWait):
		}
	}
}

// Upsert writes records into the namespace. Existing IDs are replaced,
// which is the idempotence contract re-crawls rely on.
func (c *Client) Upsert(ctx context.Context, namespace string, records []index.Record) error {
	if len(records) == 0 {
		return nil
	}
	host, err := c.dataHost(ctx)
	if err != nil {
		return &index.Error{Op: "upsert", Index: c.indexName, Namespace: namespace, Err: err}
	}

	body := map[string]any{
		"vectors":   records,
		"namespace": namespace,
	}
	if err := c.do(ctx, http.MethodPost, host+"/vectors/upsert", body, nil); err != nil {
		return &index.Error{Op: "upsert", Index: c.indexName, Namespace: namespace, Err: err}
	}
	return nil
}

type queryResponse struct {
	Matches []index.Scored `json:"matches"`
}

// Query returns the topK most similar records with metadata included.
func (c *Client) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]index.Scored, error) {
	host, err := c.dataHost(ctx)
	if err != nil {
		return nil, &index.Error{Op: "query", Index: c.indexName, Namespace: namespace, Err: err}
	}

	body := map[string]any{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": true,
		"namespace":       namespace,
	}
	var resp queryResponse
	if err := c.do(ctx, http.MethodPost, host+"/query", body, &resp); err != nil {
		return nil, &index.Error{Op: "query", Index: c.indexName, Namespace: namespace, Err: err}
	}
	return resp.Matches, nil
}

// ClearNamespace deletes every record in the namespace. A missing
// index is a no-op success: clearing something absent is trivially
// satisfied.
func (c *Client) ClearNamespace(ctx context.Context, namespace string) error {
	list, err := c.listIndexes(ctx)
	if err != nil {
		return &index.Error{Op: "clear", Index: c.indexName, Namespace: namespace, Err: err}
	}

	var host string
	for _, desc := range list.Indexes {
		if desc.Name == c.indexName {
			host = normalizeHost(desc.Host)
		}
	}
	if host == "" {
		slog.Info("index does not exist, nothing to clear", "index", c.indexName)
		return nil
	}

	body := map[string]any{
		"deleteAll": true,
		"namespace": namespace,
	}
	if err := c.do(ctx, http.MethodPost, host+"/vectors/delete", body, nil); err != nil {
		return &index.Error{Op: "clear", Index: c.indexName, Namespace: namespace, Err: err}
	}
	slog.Info("namespace cleared", "index", c.indexName, "namespace", namespace)
	return nil
}

func (c *Client) listIndexes(ctx context.Context) (*indexList, error) {
	var list indexList
	if err := c.do(ctx, http.MethodGet, c.controller+"/indexes", nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// dataHost resolves the index's data plane host, caching it across
// calls.
func (c *Client) dataHost(ctx context.Context) (string, error) {
	if c.host != "" {
		return normalizeHost(c.host), nil
	}
	var desc indexDescription
	if err := c.do(ctx, http.MethodGet, c.controller+"/indexes/"+c.indexName, nil, &desc); err != nil {
		return "", err
	}
	if desc.Host == "" {
		return "", fmt.Errorf("index %q has no data plane host", c.indexName)
	}
	c.host = desc.Host
	return normalizeHost(c.host), nil
}

// normalizeHost makes the control plane's bare host usable as a base
// URL. Test servers hand back full http:// URLs already.
func normalizeHost(host string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "https://" + host
}

// do performs one JSON request against either plane.
func (c *Client) do(ctx context.Context, method, url string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("X-Pinecone-API-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}
	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}
