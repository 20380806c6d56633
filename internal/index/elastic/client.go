// Package elastic implements the vector index capability on
// Elasticsearch: dense_vector kNN over chunk records, with a keyword
// namespace field standing in for serverless namespaces.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/jacochat/jaco-rag/internal/index"
)

// Config holds Elasticsearch client configuration.
type Config struct {
	Addresses []string
	Index     string
	Username  string
	Password  string
}

// Client wraps the Elasticsearch client with the index capability the
// pipeline and retriever consume.
type Client struct {
	es    *elasticsearch.Client
	index string
}

// New creates a new Elasticsearch-backed index client.
func New(config Config) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}

	return &Client{
		es:    es,
		index: config.Index,
	}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) bool {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

// chunkMapping stores one chunk record per ES document. The document
// _id is namespace-qualified so namespaces partition records the same
// way serverless namespaces do.
var chunkMapping = `{
	"mappings": {
		"properties": {
			"id": { "type": "keyword" },
			"namespace": { "type": "keyword" },
			"chunk": { "type": "text" },
			"text": { "type": "text" },
			"url": { "type": "keyword" },
			"hash": { "type": "keyword" },
			"values": {
				"type": "dense_vector",
				"dims": 1536,
				"index": true,
				"similarity": "cosine"
			}
		}
	}
}`

// EnsureIndex creates the index with the vector mapping if absent.
// Cloud and region have no meaning for a self-hosted cluster.
func (c *Client) EnsureIndex(ctx context.Context, spec index.Spec) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return &index.Error{Op: "exists", Index: c.index, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader([]byte(chunkMapping))),
	)
	if err != nil {
		return &index.Error{Op: "create", Index: c.index, Err: err}
	}
	defer res.Body.Close()

	if res.IsError() {
		return &index.Error{Op: "create", Index: c.index, Err: fmt.Errorf("%s", res.String())}
	}
	return nil
}

// DeleteIndex removes the index (testing/cleanup).
func (c *Client) DeleteIndex(ctx context.Context) error {
	res, err := c.es.Indices.Delete([]string{c.index}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// esRecord is the stored document shape.
type esRecord struct {
	ID        string    `json:"id"`
	Namespace string    `json:"namespace"`
	Chunk     string    `json:"chunk"`
	Text      string    `json:"text"`
	URL       string    `json:"url"`
	Hash      string    `json:"hash"`
	Values    []float32 `json:"values"`
}

// docID namespace-qualifies a record ID so identical content hashes in
// different namespaces stay distinct documents.
func docID(namespace, id string) string {
	if namespace == "" {
		return id
	}
	return namespace + "#" + id
}

// Upsert indexes records by deterministic document ID, replacing any
// record with the same ID.
func (c *Client) Upsert(ctx context.Context, namespace string, records []index.Record) error {
	for _, rec := range records {
		data, err := json.Marshal(esRecord{
			ID:        rec.ID,
			Namespace: namespace,
			Chunk:     rec.Metadata.Chunk,
			Text:      rec.Metadata.Text,
			URL:       rec.Metadata.URL,
			Hash:      rec.Metadata.Hash,
			Values:    rec.Values,
		})
		if err != nil {
			return &index.Error{Op: "upsert", Index: c.index, Namespace: namespace, Err: err}
		}

		res, err := c.es.Index(
			c.index,
			bytes.NewReader(data),
			c.es.Index.WithContext(ctx),
			c.es.Index.WithDocumentID(docID(namespace, rec.ID)),
		)
		if err != nil {
			return &index.Error{Op: "upsert", Index: c.index, Namespace: namespace, Err: err}
		}
		res.Body.Close()
		if res.IsError() {
			return &index.Error{Op: "upsert", Index: c.index, Namespace: namespace,
				Err: fmt.Errorf("status %d: %s", res.StatusCode, res.String())}
		}
	}
	return nil
}

// Refresh forces an index refresh so upserts are immediately
// searchable (testing).
func (c *Client) Refresh(ctx context.Context) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(c.index),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// searchResponse is the ES kNN response shape.
type searchResponse struct {
	Hits struct {
		Hits []struct {
			Score  float32  `json:"_score"`
			Source esRecord `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Query runs a kNN search filtered to the namespace. ES reports cosine
// kNN scores in [0,1], matching the retriever's score contract.
func (c *Client) Query(ctx context.Context, namespace string, vector []float32, topK int) ([]index.Scored, error) {
	searchQuery := map[string]any{
		"knn": map[string]any{
			"field":          "values",
			"query_vector":   vector,
			"k":              topK,
			"num_candidates": topK * 4,
			"filter": map[string]any{
				"term": map[string]any{"namespace": namespace},
			},
		},
		"size":    topK,
		"_source": []string{"id", "namespace", "chunk", "text", "url", "hash"},
	}

	data, err := json.Marshal(searchQuery)
	if err != nil {
		return nil, &index.Error{Op: "query", Index: c.index, Namespace: namespace, Err: err}
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return nil, &index.Error{Op: "query", Index: c.index, Namespace: namespace, Err: err}
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, &index.Error{Op: "query", Index: c.index, Namespace: namespace,
			Err: fmt.Errorf("%s", res.String())}
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, &index.Error{Op: "query", Index: c.index, Namespace: namespace, Err: err}
	}

	matches := make([]index.Scored, len(sr.Hits.Hits))
	for i, hit := range sr.Hits.Hits {
		matches[i] = index.Scored{
			ID:    hit.Source.ID,
			Score: hit.Score,
			Metadata: index.Metadata{
				Chunk: hit.Source.Chunk,
				Text:  hit.Source.Text,
				URL:   hit.Source.URL,
				Hash:  hit.Source.Hash,
			},
		}
	}
	return matches, nil
}

// ClearNamespace deletes every record in the namespace via
// delete-by-query, leaving other namespaces untouched. A missing index
// is a no-op success.
func (c *Client) ClearNamespace(ctx context.Context, namespace string) error {
	query := map[string]any{
		"query": map[string]any{
			"term": map[string]any{"namespace": namespace},
		},
	}
	data, err := json.Marshal(query)
	if err != nil {
		return &index.Error{Op: "clear", Index: c.index, Namespace: namespace, Err: err}
	}

	res, err := c.es.DeleteByQuery(
		[]string{c.index},
		bytes.NewReader(data),
		c.es.DeleteByQuery.WithContext(ctx),
	)
	if err != nil {
		return &index.Error{Op: "clear", Index: c.index, Namespace: namespace, Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		// Nothing to clear.
		return nil
	}
	if res.IsError() {
		return &index.Error{Op: "clear", Index: c.index, Namespace: namespace,
			Err: fmt.Errorf("%s", res.String())}
	}
	return nil
}
