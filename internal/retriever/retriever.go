package retriever

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jacochat/jaco-rag/internal/index"
)

// Separator joins chunk texts in an assembled context block.
const Separator = "\n---\n"

// Default retrieval tuning, overridable per request.
const (
	DefaultTopK     = 10
	DefaultMinScore = 0.7
	DefaultMaxChars = 3000
)

// Embedder turns a query into a vector. Satisfied by *embeddings.Client.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config holds the retriever's dependencies.
type Config struct {
	Embedder  Embedder
	Index     index.Index
	Stopwords Stopwords // nil means DefaultStopwords()
}

// Options tunes a single retrieval. Zero values take the package
// defaults; a MinScore of exactly 0 means "use the default", so
// callers wanting no score floor should pass a small negative value.
type Options struct {
	Namespace string
	TopK      int
	MinScore  float32
	MaxChars  int
}

func (o Options) withDefaults() Options {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.MinScore == 0 {
		o.MinScore = DefaultMinScore
	}
	if o.MaxChars <= 0 {
		o.MaxChars = DefaultMaxChars
	}
	return o
}

// Retriever answers queries against an index of embedded chunks.
type Retriever struct {
	embedder  Embedder
	index     index.Index
	stopwords Stopwords
}

func New(cfg Config) (*Retriever, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("retriever: embedder is required")
	}
	if cfg.Index == nil {
		return nil, fmt.Errorf("retriever: index is required")
	}
	stopwords := cfg.Stopwords
	if stopwords == nil {
		stopwords = DefaultStopwords()
	}
	return &Retriever{
		embedder:  cfg.Embedder,
		index:     cfg.Index,
		stopwords: stopwords,
	}, nil
}

// Matches returns the scored chunks for query that clear the score
// floor, best first. No matches is not an error.
func (r *Retriever) Matches(ctx context.Context, query string, opts Options) ([]index.Scored, error) {
	opts = opts.withDefaults()

	normalized := Normalize(query, r.stopwords)
	vector, err := r.embedder.Embed(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	matches, err := r.index.Query(ctx, opts.Namespace, vector, opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}

	var hits []index.Scored
	for _, m := range matches {
		if m.Score >= opts.MinScore {
			hits = append(hits, m)
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits, nil
}

// ContextBlock retrieves matches for query and assembles their texts
// into a single block within the character budget. Chunks are taken
// whole in descending score order; the first chunk that would push the
// block over budget stops accumulation. No matches yields an empty
// block and no error.
func (r *Retriever) ContextBlock(ctx context.Context, query string, opts Options) (string, error) {
	opts = opts.withDefaults()

	matches, err := r.Matches(ctx, query, opts)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, m := range matches {
		next := m.Metadata.Text
		if b.Len() > 0 {
			next = Separator + next
		}
		if b.Len()+len(next) > opts.MaxChars {
			break
		}
		b.WriteString(next)
	}
	return b.String(), nil
}
