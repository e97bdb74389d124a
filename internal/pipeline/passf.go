package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ttrpg-ingest/internal/atomicfile"
	"ttrpg-ingest/internal/manifest"
	"ttrpg-ingest/internal/models"
)

// ProcessPassF validates every recorded artifact, sweeps the job
// directory for leftover temp/partial files, composes the run summary,
// and writes the finalized manifest. Grounded on the re-hash-every-
// artifact approach 3Dzigns/TTRPG-CENTER's artifact_validator.py takes,
// and the pure-function-over-counts shape of its pipeline_guardrails.py
// (see internal/integrity). Validation failures demote the summary's
// completion status; they never make ProcessPassF itself return an
// error, per spec §4.8 step 7 (Pass F "never raises").
func ProcessPassF(jobDir, jobID string) (*models.PassFResult, error) {
	start := time.Now()
	result := &models.PassFResult{}

	m, err := manifest.Load(jobDir)
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("pipeline: pass F load manifest: %w", err)
	}

	report := models.CleanupReport{}
	validationErrors := 0
	for _, a := range m.Artifacts {
		full := filepath.Join(jobDir, a.File)
		if !atomicfile.Exists(full) {
			validationErrors++
			continue
		}
		sum, err := atomicfile.SHA256File(full)
		if err != nil || sum != a.Checksum {
			validationErrors++
			continue
		}
		report.ArtifactsVerified = append(report.ArtifactsVerified, a.File)
	}
	report.ValidationErrors = validationErrors

	moved, deleted, purged, err := sweepTempFiles(jobDir)
	if err != nil && result.Error == "" {
		result.Error = err.Error()
	}
	report.TempFilesMoved = moved
	report.TempFilesDeleted = deleted
	report.PartialsPurged = purged
	report.EmptyDirsRemoved = removeEmptyDirs(jobDir)

	if err := atomicfile.WriteJSON(filepath.Join(jobDir, "cleanup_report.json"), report); err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("pipeline: pass F write cleanup report: %w", err)
	}

	allCompleted := true
	for _, p := range models.AllPasses {
		if p == models.PassF {
			continue
		}
		if !m.HasCompleted(p) {
			allCompleted = false
			break
		}
	}

	summary := composeRunSummary(m, allCompleted)
	finalManifestValid := validationErrors == 0 && allCompleted

	now := time.Now()
	m.RunSummary = &summary
	m.FinalizedAt = &now
	m.PipelineVersion = "6-pass-system"
	if finalManifestValid {
		m.JobStatus = "completed"
	} else {
		m.JobStatus = "completed_with_warnings"
	}
	m.MarkCompleted(models.PassF, &models.PassFResult{
		RunSummary:         summary,
		FinalManifestValid: finalManifestValid,
	})

	if err := manifest.RecordArtifact(m, jobDir, "cleanup_report.json"); err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("pipeline: pass F record artifact: %w", err)
	}
	if err := manifest.Save(jobDir, m); err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("pipeline: pass F save manifest: %w", err)
	}

	result.RunSummary = summary
	result.FinalManifestValid = finalManifestValid
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	result.Success = true
	return result, nil
}

// composeRunSummary reads each pass's result out of m.PassResults as the
// map[string]interface{} shape a JSON round trip through manifest.Load
// leaves it in (see manifest.ExpectedArtifactsValid for the same
// pattern), rather than type-asserting back to the original Go struct
// pointers, which manifest.Load never produces.
func composeRunSummary(m *models.Manifest, allCompleted bool) models.RunSummary {
	a := passResultMap(m, models.PassA)
	b := passResultMap(m, models.PassB)
	c := passResultMap(m, models.PassC)
	d := passResultMap(m, models.PassD)
	e := passResultMap(m, models.PassE)

	var totalBytes int64
	for _, art := range m.Artifacts {
		totalBytes += art.Size
	}

	summary := models.RunSummary{
		CompletionStatus:   models.CompletionState{AllPassesCompleted: allCompleted},
		TotalArtifactBytes: totalBytes,
	}
	if a != nil {
		summary.DictionaryEntriesCreated = intField(a, "dictionary_entries")
	}
	if b != nil {
		summary.SplitPerformed = boolField(b, "split_performed")
		summary.PartsCreated = intField(b, "parts_created")
	}
	if c != nil {
		summary.ChunksExtracted = intField(c, "chunks_extracted")
	}
	if d != nil {
		summary.ChunksVectorized = intField(d, "chunks_vectorized")
	}
	if e != nil {
		nodes := intField(e, "graph_nodes")
		summary.ChunksGraphEnriched = nodes
		summary.GraphNodes = nodes
		summary.GraphEdges = intField(e, "graph_edges")
		summary.CrossReferences = intField(e, "cross_references")
		summary.DictionaryUpdates = intField(e, "dictionary_updates")
	}
	return summary
}

func passResultMap(m *models.Manifest, p models.Pass) map[string]interface{} {
	v, ok := m.PassResults[p]
	if !ok {
		return nil
	}
	result, _ := v.(map[string]interface{})
	return result
}

func intField(m map[string]interface{}, key string) int {
	if v, ok := m[key].(float64); ok {
		return int(v)
	}
	return 0
}

func boolField(m map[string]interface{}, key string) bool {
	v, _ := m[key].(bool)
	return v
}

// sweepTempFiles moves *.tmp files created by a crashed atomicfile
// write into a "partial/" subdirectory and deletes anything already
// inside it, matching the cleanup behavior spec §4.8 step 4 describes.
func sweepTempFiles(jobDir string) (moved, deleted, purged int, err error) {
	partialDir := filepath.Join(jobDir, "partial")
	entries, readErr := os.ReadDir(jobDir)
	if readErr != nil {
		return 0, 0, 0, fmt.Errorf("pipeline: pass F read job dir: %w", readErr)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.Contains(name, ".tmp") {
			continue
		}
		if mkErr := os.MkdirAll(partialDir, 0o755); mkErr != nil {
			return moved, deleted, purged, fmt.Errorf("pipeline: pass F mkdir partial: %w", mkErr)
		}
		if renErr := os.Rename(filepath.Join(jobDir, name), filepath.Join(partialDir, name)); renErr == nil {
			moved++
		}
	}

	if partialEntries, readErr := os.ReadDir(partialDir); readErr == nil {
		for _, entry := range partialEntries {
			if removeErr := os.Remove(filepath.Join(partialDir, entry.Name())); removeErr == nil {
				deleted++
				purged++
			}
		}
	}

	return moved, deleted, purged, nil
}

func removeEmptyDirs(jobDir string) int {
	removed := 0
	entries, err := os.ReadDir(jobDir)
	if err != nil {
		return 0
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sub := filepath.Join(jobDir, entry.Name())
		subEntries, err := os.ReadDir(sub)
		if err == nil && len(subEntries) == 0 {
			if os.Remove(sub) == nil {
				removed++
			}
		}
	}
	return removed
}
