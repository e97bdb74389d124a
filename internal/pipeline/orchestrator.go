package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ttrpg-ingest/internal/chunker"
	"ttrpg-ingest/internal/dictionary"
	"ttrpg-ingest/internal/embedding"
	"ttrpg-ingest/internal/graphstore"
	"ttrpg-ingest/internal/guardrail"
	"ttrpg-ingest/internal/llmseed"
	"ttrpg-ingest/internal/logging"
	"ttrpg-ingest/internal/manifest"
	"ttrpg-ingest/internal/models"
	"ttrpg-ingest/internal/vectorstore"
)

// Options controls one ProcessSource invocation.
type Options struct {
	Resume         bool
	ForceDictInit  bool
	BarrierTimeout time.Duration
	ChunkConfig    chunker.Config
	ModelDim       int
	AbortOnDimMismatch bool
}

// DefaultBarrierTimeout matches spec §5's "lock_timeout" default.
const DefaultBarrierTimeout = 30 * time.Minute

// Orchestrator wires the six passes' collaborators once per batch run
// and drives ProcessSource for each source under the shared Barrier.
type Orchestrator struct {
	Dict     *dictionary.Store
	Seeder   llmseed.Seeder
	Embedder embedding.Embedder
	Store    vectorstore.Store
	Neo4j    *graphstore.Neo4jExporter
	Barrier  *Barrier
	BaseDir  string // parent directory for per-job working directories
}

// NewOrchestrator constructs an Orchestrator with a fresh Barrier.
func NewOrchestrator(baseDir string) *Orchestrator {
	return &Orchestrator{Barrier: NewBarrier(), BaseDir: baseDir}
}

// ProcessSource runs Pass A through F for one PDF under the
// orchestrator's Barrier, applying the guardrail abort policy after
// Pass C and Pass D, per spec §4.1.
func (o *Orchestrator) ProcessSource(ctx context.Context, pdfPath, env string, opts Options) (*models.SourceResult, error) {
	if opts.BarrierTimeout == 0 {
		opts.BarrierTimeout = DefaultBarrierTimeout
	}

	release, err := o.Barrier.Acquire(pdfPath, opts.BarrierTimeout)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	defer release()

	src, err := models.LoadSource(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("pipeline: load source %s: %w", pdfPath, err)
	}
	jobID := models.JobID(time.Now().Unix(), src.HashID())
	result := models.NewSourceResult(pdfPath, jobID)

	jobDir := filepath.Join(o.BaseDir, jobID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("pipeline: mkdir job dir: %w", err)
	}

	log := logging.New(jobID)

	if !manifest.Exists(jobDir) {
		m := models.NewManifest(jobID, src.Filename, pdfPath, env, src.Info, time.Now())
		if err := manifest.Save(jobDir, m); err != nil {
			result.Error = err.Error()
			return result, fmt.Errorf("pipeline: seed manifest: %w", err)
		}
	}

	runPass := func(p models.Pass, fn func() error) (aborted bool) {
		m, loadErr := manifest.Load(jobDir)
		if loadErr != nil {
			result.Error = loadErr.Error()
			result.Success = false
			return true
		}
		if !manifest.ShouldRun(m, jobDir, p, opts.Resume, opts.ForceDictInit) {
			result.Timings = append(result.Timings, models.Timing{Name: string(p)})
			result.PassResults[p] = models.NewSkipped()
			return false
		}
		t0 := time.Now()
		runErr := fn()
		result.Timings = append(result.Timings, models.Timing{
			Name: string(p), StartMs: t0.UnixMilli(), EndMs: time.Now().UnixMilli(),
		})
		if runErr != nil {
			log.Errorf("Pass %s failed: %s", p, runErr)
			result.Success = false
			result.FailureReason = runErr.Error()
			result.FailedPass = p
			return true
		}
		return false
	}

	var passAResult *models.PassAResult
	if aborted := runPass(models.PassA, func() error {
		var err error
		passAResult, err = ProcessPassA(ctx, pdfPath, jobDir, jobID, env, opts.ForceDictInit, PassADeps{Dict: o.Dict, Seeder: o.Seeder, Log: log})
		return err
	}); aborted {
		return result, nil
	}
	if passAResult != nil {
		result.TocEntries = passAResult.TocEntries
	}

	if aborted := runPass(models.PassB, func() error {
		_, err := ProcessPassB(pdfPath, jobDir, jobID, env)
		return err
	}); aborted {
		return result, nil
	}

	var passCResult *models.PassCResult
	if aborted := runPass(models.PassC, func() error {
		var err error
		passCResult, err = ProcessPassC(ctx, pdfPath, jobDir, jobID, env, o.Store)
		return err
	}); aborted {
		return result, nil
	}
	if passCResult != nil {
		result.RawChunks = passCResult.ChunksExtracted
	}
	if abortGuardrail(log, env, models.PassC, result.RawChunks, src.Filename, result) {
		return result, nil
	}

	var passDResult *models.PassDResult
	if aborted := runPass(models.PassD, func() error {
		var err error
		passDResult, err = ProcessPassD(ctx, jobDir, jobID, env, o.Embedder, opts.ChunkConfig, opts.ModelDim, opts.AbortOnDimMismatch, o.Store, log)
		return err
	}); aborted {
		return result, nil
	}
	if passDResult != nil {
		result.Vectors = passDResult.ChunksVectorized
	}
	if abortGuardrail(log, env, models.PassD, result.Vectors, src.Filename, result) {
		return result, nil
	}

	if aborted := runPass(models.PassE, func() error {
		_, err := ProcessPassE(ctx, jobDir, jobID, env, o.Store, PassEDeps{Dict: o.Dict, Neo4j: o.Neo4j, Log: log})
		return err
	}); aborted {
		return result, nil
	}

	if aborted := runPass(models.PassF, func() error {
		_, err := ProcessPassF(jobDir, jobID)
		return err
	}); aborted {
		return result, nil
	}

	result.Success = true
	return result, nil
}

// abortGuardrail runs the zero-output guardrail check after Pass C/D and,
// when it trips, logs the fatal line, marks the source as aborted, and
// reports true so ProcessSource stops early, per spec §4.9.
func abortGuardrail(log *logging.Logger, env string, p models.Pass, actual int, sourceFile string, result *models.SourceResult) bool {
	check := guardrail.Validate(env, p, false, actual)
	if check.Passed {
		return false
	}
	log.Fatal(string(p), check.FailureReason, sourceFile)
	result.Success = false
	result.FailureReason = check.FailureReason
	result.FailedPass = p
	result.AbortedAfterPass = p
	return true
}
