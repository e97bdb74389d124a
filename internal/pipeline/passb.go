package pipeline

import (
	"fmt"
	"time"

	"ttrpg-ingest/internal/extractor"
	"ttrpg-ingest/internal/manifest"
	"ttrpg-ingest/internal/models"
	"ttrpg-ingest/internal/splitter"
)

// ProcessPassB runs the logical splitter. Below the 25 MiB threshold it
// updates the manifest with split_performed=false and does no other
// work; above it, it re-derives the ToC (the same deterministic parse
// Pass A already ran, re-run here rather than round-tripped through an
// artifact, since the pass reads only the source PDF plus the prior
// pass's manifest per spec §2) and delegates to internal/splitter. A
// failure to split degrades to "no split" rather than failing the pass,
// per spec §4.4.
func ProcessPassB(pdfPath, jobDir, jobID, env string) (*models.PassBResult, error) {
	start := time.Now()
	result := &models.PassBResult{}

	src, err := models.LoadSource(pdfPath)
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("pipeline: pass B load source: %w", err)
	}

	doc, err := extractor.Open(pdfPath)
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("pipeline: pass B open: %w", err)
	}
	result.TotalPages = doc.PageCount()

	toc := extractor.ExtractToc(doc)

	index, performed, splitErr := splitter.Run(doc, toc, jobDir, jobID, src.Info.Size)
	if splitErr != nil {
		performed = false
	}

	result.SplitPerformed = performed
	if performed {
		result.PartsCreated = index.PartsCount
	}
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	result.Success = true

	m, err := manifest.Load(jobDir)
	if err != nil {
		return result, fmt.Errorf("pipeline: pass B load manifest: %w", err)
	}
	m.MarkCompleted(models.PassB, result)
	if performed {
		if err := manifest.RecordArtifact(m, jobDir, "split_index.json"); err != nil {
			return result, fmt.Errorf("pipeline: pass B record split index: %w", err)
		}
	}
	if err := manifest.Save(jobDir, m); err != nil {
		return result, fmt.Errorf("pipeline: pass B save manifest: %w", err)
	}

	return result, nil
}
