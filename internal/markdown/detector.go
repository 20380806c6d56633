package markdown

import (
	"regexp"
	"strings"
)

// IsMarkdownContentType checks if the Content-Type header indicates markdown.
func IsMarkdownContentType(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "text/markdown") ||
		strings.HasPrefix(ct, "text/x-markdown")
}

// IsMarkdownURL checks if the URL indicates a markdown file.
func IsMarkdownURL(url string) bool {
	lower := strings.ToLower(url)
	return strings.HasSuffix(lower, ".md") ||
		strings.HasSuffix(lower, ".markdown")
}

// IsMarkdownContent uses heuristics to detect if content is markdown.
func IsMarkdownContent(content string) bool {
	if content == "" {
		return false
	}

	trimmed := strings.TrimSpace(content)

	if looksLikeHTML(trimmed) {
		return false
	}

	return hasMarkdownPatterns(trimmed)
}

// looksLikeHTML checks if content appears to be HTML.
func looksLikeHTML(content string) bool {
	lower := strings.ToLower(content)
	return strings.HasPrefix(lower, "<!doctype") ||
		strings.HasPrefix(lower, "<html") ||
		strings.HasPrefix(lower, "<head") ||
		strings.HasPrefix(lower, "<body")
}

// hasMarkdownPatterns checks for common markdown syntax.
func hasMarkdownPatterns(content string) bool {
	// Headers (# Title)
	if regexp.MustCompile(`^#{1,6}\s+\S`).MatchString(content) {
		return true
	}

	// Unordered lists (- item or * item)
	if regexp.MustCompile(`(?m)^[\-\*]\s+\S`).MatchString(content) {
		return true
	}

	// Markdown links [text](url)
	if regexp.MustCompile(`\[.+?\]\(.+?\)`).MatchString(content) {
		return true
	}

	return false
}

// Detect combines all detection methods to determine if content is
// markdown, so already-markdown pages skip HTML conversion before
// chunking. Checks in order: Content-Type, URL, content heuristics.
func Detect(url, contentType, content string) bool {
	if IsMarkdownContentType(contentType) {
		return true
	}
	if IsMarkdownURL(url) {
		return true
	}
	return IsMarkdownContent(content)
}
