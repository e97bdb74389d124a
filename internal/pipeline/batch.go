package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"ttrpg-ingest/internal/atomicfile"
	"ttrpg-ingest/internal/integrity"
	"ttrpg-ingest/internal/models"
)

// BatchOptions controls one batch-driver run over a directory of PDFs.
type BatchOptions struct {
	Env            string
	Threads        int
	UploadDir      string
	RunID          string
	Resume         bool
	ForceDictInit  bool
	BarrierTimeout time.Duration
	SourceOptions  Options
}

// RunBatch enumerates the PDFs in opts.UploadDir and fans them out across
// opts.Threads concurrent workers bounded by a golang.org/x/sync/semaphore,
// collecting results with a golang.org/x/sync/errgroup so the first
// irrecoverable worker error cancels the rest, matching the worker-pool
// shape spec §5 describes. Per-source pipeline failures do not count as
// irrecoverable: ProcessSource always returns a result, never an error,
// for ordinary pipeline failures, so one bad PDF never cancels its
// siblings.
func RunBatch(ctx context.Context, orch *Orchestrator, opts BatchOptions) (*models.BatchSummary, error) {
	start := time.Now()

	sources, err := listPDFs(opts.UploadDir)
	if err != nil {
		return nil, fmt.Errorf("pipeline: list upload dir: %w", err)
	}

	threads := opts.Threads
	if threads < 1 {
		threads = 1
	}
	sem := semaphore.NewWeighted(int64(threads))

	results := make([]*models.SourceResult, len(sources))
	g, gctx := errgroup.WithContext(ctx)

	for i, src := range sources {
		i, src := i, src
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			sourceOpts := opts.SourceOptions
			sourceOpts.Resume = opts.Resume
			sourceOpts.ForceDictInit = opts.ForceDictInit
			if sourceOpts.BarrierTimeout == 0 {
				sourceOpts.BarrierTimeout = opts.BarrierTimeout
			}

			result, err := orch.ProcessSource(gctx, src, opts.Env, sourceOpts)
			if err != nil {
				result = models.NewSourceResult(src, "")
				result.Success = false
				result.Error = err.Error()
			}
			applyIntegrityCheck(result)
			results[i] = result
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("pipeline: batch run: %w", err)
	}

	summary := buildBatchSummary(results, opts, start)
	if err := writeBatchSummary(opts.UploadDir, opts.Env, opts.RunID, summary); err != nil {
		return summary, err
	}
	return summary, nil
}

// applyIntegrityCheck approximates the chunk-to-dictionary ratio as
// raw chunks extracted over ToC entries parsed for the same source
// (Pass A seeds at most one dictionary term per entry, per
// internal/pipeline passa.go), then demotes the result when
// internal/integrity flags it.
func applyIntegrityCheck(result *models.SourceResult) {
	if !result.Success {
		return
	}
	dictDenominator := result.TocEntries
	if dictDenominator < 1 {
		dictDenominator = 1
	}
	report := integrity.Validate(integrity.Counts{
		TocEntries:       result.TocEntries,
		RawChunks:        result.RawChunks,
		Vectors:          result.Vectors,
		ChunkToDictRatio: float64(result.RawChunks) / float64(dictDenominator),
	})
	if len(report.Failures) > 0 {
		result.IntegrityFailures = report.Failures
	}
	if report.Failed {
		result.IntegrityFailed = true
		result.Success = false
		if result.Error == "" {
			result.Error = "Integrity validation failed"
		}
		result.FailureReason = strings.Join(report.Failures, "; ")
	}
}

func listPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

func buildBatchSummary(results []*models.SourceResult, opts BatchOptions, start time.Time) *models.BatchSummary {
	stats := models.SummaryStats{TotalSources: len(results)}
	// ToC entries stand in for dictionary terms, as in applyIntegrityCheck.
	var totalChunks, totalVectors, totalDict int
	for _, r := range results {
		if r == nil {
			continue
		}
		if r.Success {
			stats.Successful++
		} else {
			stats.Failed++
		}
		stats.TotalPassesCompleted += len(r.Timings)
		totalChunks += r.RawChunks
		totalVectors += r.Vectors
		totalDict += r.TocEntries
	}

	ratio := 0.0
	if stats.TotalSources > 0 {
		ratio = float64(totalChunks) / float64(maxInt(totalDict, 1))
	}
	check := integrity.Validate(integrity.Counts{
		TocEntries: stats.TotalSources, RawChunks: totalChunks, Vectors: totalVectors, ChunkToDictRatio: ratio,
	})

	return &models.BatchSummary{
		PipelineVersion: "6-pass-system",
		Env:             opts.Env,
		RunID:           opts.RunID,
		Threads:         opts.Threads,
		ElapsedMs:       time.Since(start).Milliseconds(),
		Sources:         results,
		SummaryStats:    stats,
		ConsistencyCheck: models.ConsistencyCheck{
			ChunkCount:       totalChunks,
			DictionaryCount:  totalDict,
			ChunkToDictRatio: ratio,
			Warnings:         check.Failures,
		},
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func writeBatchSummary(uploadDir, env, runID string, summary *models.BatchSummary) error {
	dir := filepath.Join("artifacts", "ingest", env)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("pipeline: mkdir summary dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("bulk_6pass_%s_summary.json", runID))
	return atomicfile.WriteJSON(path, summary)
}

// ExitCode implements spec §6's exit status for a completed batch: 0
// when every source succeeded, 1 when at least one source failed for
// any reason (pipeline error, guardrail abort, or integrity failure).
// Exit code 2 is reserved for preflight/dependency failures, which are
// decided before a batch ever runs and never reach this function.
func ExitCode(summary *models.BatchSummary) int {
	for _, r := range summary.Sources {
		if r == nil {
			continue
		}
		if !r.Success {
			return 1
		}
	}
	return 0
}

// FailureTable renders the "Source | Failed Pass | Reason" report spec
// §7 asks the batch driver to print on exit.
func FailureTable(summary *models.BatchSummary) string {
	var b strings.Builder
	b.WriteString("Source | Failed Pass | Reason\n")
	for _, r := range summary.Sources {
		if r == nil || r.Success {
			continue
		}
		fmt.Fprintf(&b, "%s | %s | %s\n", r.Source, failureCode(r), r.FailureReason)
	}
	return b.String()
}

// failureCode translates a failed SourceResult into spec §7's failure-pass
// code: "A (ToC)"/"C (Extract)"/"D (Vector)"/"Ratio"/"Integrity" for
// integrity-validation demotions (chosen by which predicate tripped),
// "{P} (Guard)" for a guardrail abort, and "Pipeline" for any other pass
// error.
func failureCode(r *models.SourceResult) string {
	if r.IntegrityFailed {
		for _, f := range r.IntegrityFailures {
			switch {
			case strings.Contains(f, "Pass A incomplete"):
				return "A (ToC)"
			case strings.Contains(f, "Pass C incomplete"):
				return "C (Extract)"
			case strings.Contains(f, "Pass D incomplete"):
				return "D (Vector)"
			case strings.Contains(f, "ratio"):
				return "Ratio"
			}
		}
		return "Integrity"
	}
	if r.AbortedAfterPass != "" {
		return fmt.Sprintf("%s (Guard)", r.AbortedAfterPass)
	}
	return "Pipeline"
}
