package extractor

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"ttrpg-ingest/internal/models"
)

var tocIndicatorPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)table\s+of\s+contents`),
	regexp.MustCompile(`(?i)^contents$`),
	regexp.MustCompile(`(?i)^index$`),
	regexp.MustCompile(`(?i)chapter\s+list`),
	regexp.MustCompile(`(?i)section\s+overview`),
}

// trailingPageNumberPatterns are tried in order; the first to match a
// line wins. Each must capture the trailing page number as group 1.
var trailingPageNumberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\.+\s*(\d+)$`),
	regexp.MustCompile(`\s+(\d+)$`),
	regexp.MustCompile(`\t+(\d+)$`),
	regexp.MustCompile(`-+\s*(\d+)$`),
}

const maxTocScanPages = 10

// FindTocPages returns the page numbers (1-based) of the document's
// ToC, starting from the first page within the first maxTocScanPages
// whose text matches a ToC indicator pattern, and continuing to
// subsequent pages until a page yields no entries.
func FindTocPages(d *Document) []int {
	limit := maxTocScanPages
	if limit > d.PageCount() {
		limit = d.PageCount()
	}

	start := 0
	for i := 1; i <= limit; i++ {
		if matchesAny(tocIndicatorPatterns, d.PageText(i)) {
			start = i
			break
		}
	}
	if start == 0 {
		return nil
	}

	pages := []int{start}
	for p := start + 1; p <= d.PageCount(); p++ {
		if len(parseTocLines(d.PageText(p))) == 0 {
			break
		}
		pages = append(pages, p)
	}
	return pages
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		for _, p := range patterns {
			if p.MatchString(line) {
				return true
			}
		}
	}
	return false
}

// parseTocLines parses the lines of a ToC page: leaders are stripped and
// the trailing page number extracted via the first matching pattern;
// lines without a trailing number are skipped.
func parseTocLines(pageText string) []models.TocEntry {
	var entries []models.TocEntry
	for _, line := range strings.Split(pageText, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		title, page, ok := parseTocLine(line)
		if !ok {
			continue
		}
		entries = append(entries, models.NewTocEntry(title, page, 0, ""))
	}
	return entries
}

func parseTocLine(line string) (title string, page int, ok bool) {
	for _, pat := range trailingPageNumberPatterns {
		m := pat.FindStringSubmatchIndex(line)
		if m == nil {
			continue
		}
		numStr := line[m[2]:m[3]]
		n, err := strconv.Atoi(numStr)
		if err != nil {
			continue
		}
		title = strings.TrimSpace(line[:m[0]])
		title = strings.Trim(title, ". \t-")
		if title == "" {
			continue
		}
		return title, n, true
	}
	return "", 0, false
}

// Heading-fallback patterns (spec §4.3.1). Each tier is tried level 1,
// then 2, then 3; first match within a line wins.
var (
	level1Patterns = []*regexp.Regexp{
		regexp.MustCompile(`^(Chapter \d+|CHAPTER \d+|Part \d+|PART \d+):?\s*(.+)$`),
		regexp.MustCompile(`^([A-Z][A-Z\s]{10,})$`),
		regexp.MustCompile(`^(Appendix [A-Z]):?\s*(.+)$`),
	}
	level2Patterns = []*regexp.Regexp{
		regexp.MustCompile(`^(\d+\.\d+)\s+(.+)$`),
		regexp.MustCompile(`^([A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,3})$`),
	}
	level3Patterns = []*regexp.Regexp{
		regexp.MustCompile(`^(\d+\.\d+\.\d+)\s+(.+)$`),
		regexp.MustCompile(`^([A-Z][a-z]+\s+[A-Z][a-z]+):\s*(.+)$`),
	}
)

const maxHeadingTitleLen = 100

// ExtractHeadings scans pages [from, to] (1-based, inclusive) for heading
// lines matching the level 1/2/3 fallback patterns, used when no usable
// ToC page was found.
func ExtractHeadings(d *Document, from, to int) []models.TocEntry {
	if from < 1 {
		from = 1
	}
	if to > d.PageCount() {
		to = d.PageCount()
	}

	var entries []models.TocEntry
	for page := from; page <= to; page++ {
		for _, line := range strings.Split(d.PageText(page), "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			title, level, ok := matchHeadingLine(line)
			if !ok {
				continue
			}
			if len(title) > maxHeadingTitleLen {
				title = title[:maxHeadingTitleLen]
			}
			entries = append(entries, models.NewTocEntry(title, page, level, ""))
		}
	}
	return entries
}

func matchHeadingLine(line string) (title string, level int, ok bool) {
	if t, ok := firstSubmatchTitle(level1Patterns, line); ok {
		return t, 1, true
	}
	if t, ok := firstSubmatchTitle(level2Patterns, line); ok {
		return t, 2, true
	}
	if t, ok := firstSubmatchTitle(level3Patterns, line); ok {
		return t, 3, true
	}
	return "", 0, false
}

func firstSubmatchTitle(patterns []*regexp.Regexp, line string) (string, bool) {
	for _, p := range patterns {
		m := p.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		if len(m) >= 3 && strings.TrimSpace(m[2]) != "" {
			return strings.TrimSpace(m[2]), true
		}
		if len(m) >= 2 {
			return strings.TrimSpace(m[1]), true
		}
	}
	return "", false
}

var (
	chapterLevelRe  = regexp.MustCompile(`(?i)^(Chapter|Part)\s+\d+`)
	appendixLevelRe = regexp.MustCompile(`^Appendix [A-Z]`)
	level2NumberRe  = regexp.MustCompile(`^\d+\.\s+`)
	level3NumberRe  = regexp.MustCompile(`^\d+\.\d+\s+`)
)

// DetermineLevel implements the per-entry level-assignment heuristic
// from spec §4.3 step 3, used for ToC-page entries (which carry no
// pattern-derived level of their own).
func DetermineLevel(title string, leadingWhitespace int) int {
	switch {
	case chapterLevelRe.MatchString(title), appendixLevelRe.MatchString(title):
		return 1
	case level3NumberRe.MatchString(title):
		return 3
	case level2NumberRe.MatchString(title):
		return 2
	case leadingWhitespace > 10:
		return 3
	case leadingWhitespace > 5:
		return 2
	default:
		return 1
	}
}

// ExtractToc runs the full Pass A structure-discovery algorithm (steps
// 1-4): locate ToC pages and parse entries; if none are found or fewer
// than 3 entries result, fall back to heading extraction over pages
// [max(5, totalPages/10), end]; assign levels; sort by page; and build
// the parent/child hierarchy.
func ExtractToc(d *Document) []models.TocEntry {
	var entries []models.TocEntry

	tocPages := FindTocPages(d)
	for _, p := range tocPages {
		for _, e := range parseTocLines(d.PageText(p)) {
			e.Level = DetermineLevel(e.Title, 0)
			entries = append(entries, e)
		}
	}

	if len(entries) < 3 {
		total := d.PageCount()
		from := total / 10
		if from < 5 {
			from = 5
		}
		entries = ExtractHeadings(d, from, total)
	}

	sortEntriesByPage(entries)
	for i := range entries {
		entries[i].SectionID = fmt.Sprintf("section_%04d", i+1)
	}
	return models.BuildHierarchy(entries)
}

func sortEntriesByPage(entries []models.TocEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].Page < entries[j-1].Page; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}
