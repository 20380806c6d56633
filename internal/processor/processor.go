// Package processor normalizes crawled page content into markdown
// text ready for chunking.
package processor

import (
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"

	"github.com/jacochat/jaco-rag/internal/markdown"
	"github.com/jacochat/jaco-rag/pkg/models"
)

// Processor converts HTML content to Markdown.
type Processor struct{}

// New creates a new processor.
func New() *Processor {
	return &Processor{}
}

// Normalize returns the document's content as markdown together with
// its title. Pages that are already markdown pass through unconverted;
// HTML pages are converted and their <title> extracted. The source URL
// stands in when no title is found.
func (p *Processor) Normalize(doc models.Document) (content, title string, err error) {
	if markdown.Detect(doc.URL, doc.ContentType, doc.Content) {
		return doc.Content, firstHeading(doc.Content, doc.URL), nil
	}

	title = p.ExtractTitle(doc.Content)
	if title == "" {
		title = doc.URL
	}
	content, err = p.Convert(doc.Content)
	return content, title, err
}

// Convert transforms HTML content into Markdown.
func (p *Processor) Convert(htmlContent string) (string, error) {
	if htmlContent == "" {
		return "", nil
	}

	md, err := htmltomarkdown.ConvertString(htmlContent)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(md), nil
}

// ExtractTitle extracts the <title> content from HTML.
func (p *Processor) ExtractTitle(htmlContent string) string {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	var title string
	var findTitle func(*html.Node)
	findTitle = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" {
			if n.FirstChild != nil {
				title = n.FirstChild.Data
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			findTitle(c)
		}
	}
	findTitle(doc)

	return strings.TrimSpace(title)
}

// firstHeading returns the first H1 of markdown content, or fallback.
func firstHeading(content, fallback string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			return strings.TrimPrefix(line, "# ")
		}
	}
	return fallback
}
