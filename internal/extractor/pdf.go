// Package extractor wraps github.com/ledongthuc/pdf with the page-level
// text access the pipeline's passes need: per-page plain text, page
// counts, and paragraph splitting. Grounded on the teacher's
// internal/processor/pdf.go ExtractText/preprocessText pipeline, split
// here into reusable primitives so Pass A (ToC/heading scan), Pass B
// (page-range splitting) and Pass C (paragraph-fallback extraction) can
// each use only the page-level view they need.
package extractor

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Document is an opened PDF with its pages already extracted to text.
type Document struct {
	Path  string
	Pages []string // Pages[i] is the plain text of page i+1 (1-based pages).
	Size  int64
}

// Open reads filePath and extracts per-page plain text through the
// reader's per-page API; a page that cannot be read yields "". Only when
// the reader reports no pages at all does Open fall back to the
// whole-document text, split on form-feed page breaks.
func Open(filePath string) (*Document, error) {
	fi, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("extractor: stat %s: %w", filePath, err)
	}

	f, r, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("extractor: open %s: %w", filePath, err)
	}
	defer f.Close()

	numPages := r.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}

	if len(pages) == 0 {
		// Fall back to the whole-document reader and split on form feeds,
		// for PDFs whose per-page API returns nothing usable.
		var buf bytes.Buffer
		body, err := r.GetPlainText()
		if err == nil {
			buf.ReadFrom(body)
			pages = strings.Split(buf.String(), "\f")
		}
	}

	return &Document{Path: filePath, Pages: pages, Size: fi.Size()}, nil
}

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int { return len(d.Pages) }

// PageText returns the plain text of the given 1-based page number, or
// "" if out of range.
func (d *Document) PageText(page int) string {
	if page < 1 || page > len(d.Pages) {
		return ""
	}
	return d.Pages[page-1]
}

// FullText concatenates every page's text with form-feed separators,
// preserving the page-break structure later passes split on.
func (d *Document) FullText() string {
	return strings.Join(d.Pages, "\f")
}

// PageRangeText concatenates the text of pages [start, end] (1-based,
// inclusive), clamped to the document's bounds.
func (d *Document) PageRangeText(start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(d.Pages) {
		end = len(d.Pages)
	}
	if start > end {
		return ""
	}
	return strings.Join(d.Pages[start-1:end], "\f")
}

var paragraphSplitRe = regexp.MustCompile(`\n\s*\n+`)

// Paragraphs splits page text into paragraphs on blank-line boundaries,
// trimming each and dropping empties. This backs Pass C's text-layer
// extraction, which splits every page this way.
func Paragraphs(pageText string) []string {
	raw := paragraphSplitRe.Split(pageText, -1)
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
