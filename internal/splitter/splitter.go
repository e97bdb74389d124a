// Package splitter implements Pass B, the logical splitter: it decides
// page-range boundaries for oversized sources and persists them as a
// split index, so Pass C can process each part independently.
//
// There is no PDF-writing library anywhere in the retrieval pack (the
// PDF reader, github.com/ledongthuc/pdf, is read-only) and fabricating
// one would violate the no-stub-dependencies rule, so this package does
// not produce physical per-part PDF files. Instead each part's "file" is
// the plain extracted text for its page range, written once so it can
// be checksummed and so Pass C has a stable artifact to read without
// re-running extraction: downstream passes address a part by page range
// against the original document, not by reopening a split PDF.
package splitter

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ttrpg-ingest/internal/atomicfile"
	"ttrpg-ingest/internal/extractor"
	"ttrpg-ingest/internal/models"
)

// SplitThresholdBytes is the file-size threshold above which a source is
// split into logical parts.
const SplitThresholdBytes = 25 * 1024 * 1024

// minPartPages is the minimum size a part may have before being merged
// into its predecessor.
const minPartPages = 10

// Part is one internal working unit before it is written to disk.
type Part struct {
	Name          string
	PageStart     int
	PageEnd       int
	SectionTitles []string
}

// Run performs Pass B: if the source is at or below the split threshold,
// it returns split_performed=false without writing anything. Otherwise
// it computes part boundaries, writes each part's text artifact and the
// split index, and returns the populated index.
func Run(d *extractor.Document, toc []models.TocEntry, jobDir, jobID string, sourceSize int64) (*models.SplitIndex, bool, error) {
	if sourceSize <= SplitThresholdBytes {
		return nil, false, nil
	}

	totalPages := d.PageCount()
	parts := computeParts(toc, totalPages)
	parts = mergeSmallParts(parts)

	partsDir := filepath.Join(jobDir, jobID+"_parts")
	if err := os.MkdirAll(partsDir, 0o755); err != nil {
		return nil, false, fmt.Errorf("splitter: create parts dir: %w", err)
	}

	splitParts := make([]models.SplitPart, 0, len(parts))
	for i, p := range parts {
		fileName := fmt.Sprintf("%s_part_%03d.txt", jobID, i+1)
		filePath := filepath.Join(partsDir, fileName)

		text := d.PageRangeText(p.PageStart, p.PageEnd)
		if err := os.WriteFile(filePath, []byte(text), 0o644); err != nil {
			return nil, false, fmt.Errorf("splitter: write part %d: %w", i+1, err)
		}

		sum := sha256.Sum256([]byte(text))
		fi, err := os.Stat(filePath)
		if err != nil {
			return nil, false, fmt.Errorf("splitter: stat part %d: %w", i+1, err)
		}

		splitParts = append(splitParts, models.SplitPart{
			PartName:      fmt.Sprintf("part_%03d", i+1),
			PageStart:     p.PageStart,
			PageEnd:       p.PageEnd,
			SectionTitles: p.SectionTitles,
			FilePath:      filePath,
			FileSize:      fi.Size(),
			ContentHash:   hex.EncodeToString(sum[:]),
		})
	}

	index := &models.SplitIndex{
		JobID:      jobID,
		CreatedAt:  time.Now(),
		PartsCount: len(splitParts),
		TotalPages: totalPages,
		Parts:      splitParts,
	}

	indexPath := filepath.Join(jobDir, "split_index.json")
	if err := atomicfile.WriteJSON(indexPath, index); err != nil {
		return nil, false, fmt.Errorf("splitter: write split index: %w", err)
	}

	return index, true, nil
}

// computeParts decides page-range boundaries, preferring ToC-guided
// splitting and falling back to fixed-size chunks when no usable ToC is
// available.
func computeParts(toc []models.TocEntry, totalPages int) []Part {
	sections := tocSplitCandidates(toc)
	if len(sections) == 0 {
		return fixedSizeParts(totalPages)
	}
	return tocGuidedParts(sections, totalPages)
}

// tocSplitCandidates keeps level<=2 entries, or the first 10 entries if
// no level-2 entries exist at all.
func tocSplitCandidates(toc []models.TocEntry) []models.TocEntry {
	var shallow []models.TocEntry
	hasLevel2 := false
	for _, e := range toc {
		if e.Level <= 2 {
			shallow = append(shallow, e)
		}
		if e.Level == 2 {
			hasLevel2 = true
		}
	}
	if hasLevel2 {
		return shallow
	}
	if len(toc) > 10 {
		return toc[:10]
	}
	return toc
}

func tocGuidedParts(sections []models.TocEntry, totalPages int) []Part {
	var parts []Part
	currentStart := 1
	var currentTitles []string

	for _, s := range sections {
		if len(currentTitles) > 0 && s.Page-currentStart >= 30 {
			parts = append(parts, Part{
				Name:          fmt.Sprintf("part_%03d", len(parts)+1),
				PageStart:     currentStart,
				PageEnd:       s.Page - 1,
				SectionTitles: currentTitles,
			})
			currentStart = s.Page
			currentTitles = nil
		}
		currentTitles = append(currentTitles, s.Title)
	}

	parts = append(parts, Part{
		Name:          fmt.Sprintf("part_%03d", len(parts)+1),
		PageStart:     currentStart,
		PageEnd:       totalPages,
		SectionTitles: currentTitles,
	})

	return parts
}

func fixedSizeParts(totalPages int) []Part {
	pageSize := totalPages / 4
	if pageSize < 50 {
		pageSize = 50
	}

	var parts []Part
	for start := 1; start <= totalPages; start += pageSize {
		end := start + pageSize - 1
		if end > totalPages {
			end = totalPages
		}
		parts = append(parts, Part{
			Name:      fmt.Sprintf("part_%03d", len(parts)+1),
			PageStart: start,
			PageEnd:   end,
		})
	}
	if len(parts) == 0 {
		parts = append(parts, Part{Name: "part_001", PageStart: 1, PageEnd: totalPages})
	}
	return parts
}

// mergeSmallParts folds any part shorter than minPartPages into its
// predecessor, except the first part, which is left as-is until a
// following boundary absorbs it.
func mergeSmallParts(parts []Part) []Part {
	if len(parts) <= 1 {
		return parts
	}

	merged := []Part{parts[0]}
	for _, p := range parts[1:] {
		pages := p.PageEnd - p.PageStart + 1
		if pages < minPartPages {
			last := &merged[len(merged)-1]
			last.PageEnd = p.PageEnd
			last.SectionTitles = append(last.SectionTitles, p.SectionTitles...)
			continue
		}
		merged = append(merged, p)
	}

	for i := range merged {
		merged[i].Name = fmt.Sprintf("part_%03d", i+1)
	}
	return merged
}
