package splitter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/jacochat/jaco-rag/pkg/models"
)

// Method selects the chunking strategy.
type Method string

const (
	// Recursive splits on a hierarchy of separators (paragraph,
	// line, sentence, word) keeping chunks under the size limit.
	Recursive Method = "recursive"
	// Markdown splits preferentially at heading boundaries before
	// falling back to size-based splitting.
	Markdown Method = "markdown"
)

// Defaults applied when Options fields are zero.
const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Options configures a Splitter.
type Options struct {
	Method       Method
	ChunkSize    int // maximum chunk length in characters
	ChunkOverlap int // characters repeated between consecutive chunks
}

// Splitter turns document content into bounded, hashed chunks.
type Splitter struct {
	method    Method
	chunkSize int
	overlap   int
}

// recursiveSeparators is the split hierarchy, coarsest first. The
// empty string means a hard character cut.
var recursiveSeparators = []string{"\n\n", "\n", ". ", " ", ""}

var headingRe = regexp.MustCompile(`(?m)^#{1,6}\s`)

// New creates a Splitter for the given options.
func New(opts Options) (*Splitter, error) {
	switch opts.Method {
	case Recursive, Markdown:
	case "":
		opts.Method = Recursive
	default:
		return nil, fmt.Errorf("unknown splitting method %q", opts.Method)
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = 0
	}
	if opts.ChunkOverlap >= opts.ChunkSize {
		return nil, fmt.Errorf("chunk overlap %d must be smaller than chunk size %d",
			opts.ChunkOverlap, opts.ChunkSize)
	}
	return &Splitter{
		method:    opts.Method,
		chunkSize: opts.ChunkSize,
		overlap:   opts.ChunkOverlap,
	}, nil
}

// Split chunks content and stamps every chunk with the source URL and
// its content hash. Empty or whitespace-only content yields no chunks.
func (s *Splitter) Split(content, sourceURL string) []models.Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	var pieces []string
	switch s.method {
	case Markdown:
		pieces = s.splitMarkdown(content)
	default:
		pieces = s.splitRecursive(content, recursiveSeparators)
	}

	chunks := make([]models.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		chunks = append(chunks, models.NewChunk(piece, sourceURL))
	}
	return chunks
}

// splitRecursive splits text on the first separator that occurs in it,
// merges the parts back into size-bounded chunks, and recurses with
// finer separators on any part that is still too large.
func (s *Splitter) splitRecursive(text string, separators []string) []string {
	if len(text) <= s.chunkSize {
		return []string{text}
	}
	if len(separators) == 0 {
		return s.hardCut(text)
	}

	sep := separators[len(separators)-1]
	rest := separators
	for i, candidate := range separators {
		if candidate == "" || strings.Contains(text, candidate) {
			sep = candidate
			rest = separators[i+1:]
			break
		}
	}

	if sep == "" {
		return s.hardCut(text)
	}

	parts := splitKeepingSeparator(text, sep)

	var sized []string
	for _, part := range parts {
		if len(part) > s.chunkSize {
			sized = append(sized, s.splitRecursive(part, rest)...)
		} else {
			sized = append(sized, part)
		}
	}
	return s.merge(sized)
}

// merge greedily packs parts into chunks of at most chunkSize,
// carrying overlap characters across chunk boundaries.
func (s *Splitter) merge(parts []string) []string {
	var chunks []string
	var buf strings.Builder

	flush := func() {
		if buf.Len() == 0 {
			return
		}
		chunk := buf.String()
		chunks = append(chunks, chunk)
		buf.Reset()
		if s.overlap > 0 {
			buf.WriteString(tail(chunk, s.overlap))
		}
	}

	for _, part := range parts {
		if buf.Len() > 0 && buf.Len()+len(part) > s.chunkSize {
			flush()
			// Overlap carried into the buffer may itself crowd out
			// the next part; drop it rather than exceed the limit.
			if buf.Len()+len(part) > s.chunkSize {
				buf.Reset()
			}
		}
		buf.WriteString(part)
	}
	if buf.Len() > 0 {
		chunks = append(chunks, buf.String())
	}
	return chunks
}

// splitMarkdown cuts content at heading lines, then size-splits any
// section that is still over the limit.
func (s *Splitter) splitMarkdown(content string) []string {
	locs := headingRe.FindAllStringIndex(content, -1)

	var sections []string
	prev := 0
	for _, loc := range locs {
		if loc[0] > prev {
			sections = append(sections, content[prev:loc[0]])
		}
		prev = loc[0]
	}
	if prev < len(content) {
		sections = append(sections, content[prev:])
	}

	var out []string
	for _, section := range sections {
		if len(section) > s.chunkSize {
			out = append(out, s.splitRecursive(section, recursiveSeparators)...)
		} else {
			out = append(out, section)
		}
	}
	return out
}

// hardCut slices text into chunkSize windows stepped by size-overlap.
func (s *Splitter) hardCut(text string) []string {
	step := s.chunkSize - s.overlap
	var out []string
	for start := 0; start < len(text); start += step {
		end := start + s.chunkSize
		if end >= len(text) {
			out = append(out, text[start:])
			break
		}
		out = append(out, text[start:end])
	}
	return out
}

// splitKeepingSeparator splits text on sep, re-attaching the separator
// to the end of each part so no characters are lost.
func splitKeepingSeparator(text, sep string) []string {
	raw := strings.Split(text, sep)
	parts := make([]string, 0, len(raw))
	for i, p := range raw {
		if i < len(raw)-1 {
			p += sep
		}
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// tail returns the last n bytes of s without splitting a rune.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := models.TruncateByBytes(s, len(s)-n)
	return s[len(cut):]
}
