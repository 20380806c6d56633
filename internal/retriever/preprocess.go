package retriever

import (
	"regexp"
	"strings"
)

// Stopwords is an immutable set of tokens stripped from queries before
// embedding. Question words, articles and auxiliary verbs add noise to
// embeddings without carrying meaning.
type Stopwords map[string]struct{}

// NewStopwords builds a stopword set from words, lowercased.
func NewStopwords(words ...string) Stopwords {
	set := make(Stopwords, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}

// DefaultStopwords returns the deployment's standard stopword list,
// including the subject-name token plus any extra words configured.
func DefaultStopwords(extra ...string) Stopwords {
	words := []string{
		"jaco",
		"does", "do", "did",
		"is", "are", "was", "were", "been", "being",
		"has", "have", "had",
		"can", "could",
		"would", "should",
		"will", "shall",
		"what", "when", "where", "who", "whom", "whose", "why", "how",
		"which",
		"may", "might", "must",
		"a", "an", "the",
		"any", "some",
	}
	return NewStopwords(append(words, extra...)...)
}

var punctuationRe = regexp.MustCompile(`[?!.,"';:]`)

// Normalize preprocesses a user query to improve embedding similarity
// with indexed chunks: lowercase, strip punctuation, drop stopword
// tokens, collapse whitespace. A query that normalizes to nothing
// falls back to the original input, never an empty string.
func Normalize(query string, stopwords Stopwords) string {
	processed := punctuationRe.ReplaceAllString(strings.ToLower(query), "")

	var kept []string
	for _, token := range strings.Fields(processed) {
		if _, drop := stopwords[token]; drop {
			continue
		}
		kept = append(kept, token)
	}

	normalized := strings.Join(kept, " ")
	if normalized == "" {
		return query
	}
	return normalized
}
