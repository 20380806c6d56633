package models

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestHashContent_Deterministic(t *testing.T) {
	text := "Jaco loves long walks by the canal."

	first := HashContent(text)
	for i := 0; i < 5; i++ {
		if got := HashContent(text); got != first {
			t.Fatalf("HashContent() not stable: got %q, want %q", got, first)
		}
	}

	if HashContent("different text") == first {
		t.Error("HashContent() should differ for different text")
	}
}

func TestHashContent_PureFunctionOfText(t *testing.T) {
	// Chunks from different source URLs but identical text must share
	// an identity, so re-ingestion overwrites rather than duplicates.
	a := NewChunk("same text", "https://example.com/a")
	b := NewChunk("same text", "https://example.com/b")

	if a.Hash != b.Hash {
		t.Errorf("hashes differ for identical text: %q vs %q", a.Hash, b.Hash)
	}
}

func TestTruncateByBytes(t *testing.T) {
	tests := []struct {
		name string
		s    string
		n    int
		want string
	}{
		{"shorter than limit", "hello", 10, "hello"},
		{"exact limit", "hello", 5, "hello"},
		{"over limit", "hello world", 5, "hello"},
		{"empty", "", 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateByBytes(tt.s, tt.n); got != tt.want {
				t.Errorf("TruncateByBytes(%q, %d) = %q, want %q", tt.s, tt.n, got, tt.want)
			}
		})
	}
}

func TestTruncateByBytes_NeverSplitsRune(t *testing.T) {
	s := strings.Repeat("é", 10) // 2 bytes per rune

	for n := 0; n <= len(s); n++ {
		got := TruncateByBytes(s, n)
		if !utf8.ValidString(got) {
			t.Fatalf("TruncateByBytes(%q, %d) produced invalid UTF-8", s, n)
		}
		if len(got) > n {
			t.Fatalf("TruncateByBytes returned %d bytes, limit %d", len(got), n)
		}
	}
}

func TestNewChunk_AppliesMetadataCap(t *testing.T) {
	big := strings.Repeat("a", MaxMetadataTextBytes+500)

	chunk := NewChunk(big, "https://example.com")

	if len(chunk.Text) != MaxMetadataTextBytes {
		t.Errorf("chunk text = %d bytes, want %d", len(chunk.Text), MaxMetadataTextBytes)
	}
	// Hash must cover the truncated text, not the original.
	if chunk.Hash != HashContent(chunk.Text) {
		t.Error("chunk hash does not match truncated text")
	}
}
