package models

import "time"

// ArtifactRecord describes one file persisted under a job directory.
type ArtifactRecord struct {
	File     string `json:"file"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	MTime    int64  `json:"mtime"`
	Checksum string `json:"checksum"`
}

// Manifest is the single source of truth for one job: which passes have
// completed, which artifacts exist, and (once finalized) the run summary.
// It is written atomically and re-read at the start of every pass decision.
type Manifest struct {
	JobID           string                 `json:"job_id"`
	SourceFile      string                 `json:"source_file"`
	SourcePath      string                 `json:"source_path"`
	Environment     string                 `json:"environment"`
	CreatedAt       time.Time              `json:"created_at"`
	SourceInfo      SourceInfo             `json:"source_info"`
	CompletedPasses []Pass                 `json:"completed_passes"`
	PassResults     map[Pass]interface{}   `json:"pass_results"`
	Artifacts       []ArtifactRecord       `json:"artifacts"`
	// Chunks is always present, possibly empty. It is never populated --
	// downstream schema validators require the key, not the contents.
	Chunks []interface{} `json:"chunks"`

	FinalizedAt     *time.Time             `json:"finalized_at,omitempty"`
	JobStatus       string                 `json:"job_status,omitempty"`
	RunSummary      *RunSummary            `json:"run_summary,omitempty"`
	PipelineVersion string                 `json:"pipeline_version,omitempty"`
}

// NewManifest constructs an empty manifest for a freshly created job,
// preserving the "chunks: []" schema invariant from the very first write.
func NewManifest(jobID, sourceFile, sourcePath, env string, info SourceInfo, createdAt time.Time) *Manifest {
	return &Manifest{
		JobID:           jobID,
		SourceFile:      sourceFile,
		SourcePath:      sourcePath,
		Environment:     env,
		CreatedAt:       createdAt,
		SourceInfo:      info,
		CompletedPasses: []Pass{},
		PassResults:     map[Pass]interface{}{},
		Artifacts:       []ArtifactRecord{},
		Chunks:          []interface{}{},
	}
}

// HasCompleted reports whether a pass is recorded as completed.
func (m *Manifest) HasCompleted(p Pass) bool {
	for _, c := range m.CompletedPasses {
		if c == p {
			return true
		}
	}
	return false
}

// MarkCompleted appends a pass to CompletedPasses if not already present
// and records its result.
func (m *Manifest) MarkCompleted(p Pass, result interface{}) {
	if !m.HasCompleted(p) {
		m.CompletedPasses = append(m.CompletedPasses, p)
	}
	if m.PassResults == nil {
		m.PassResults = map[Pass]interface{}{}
	}
	m.PassResults[p] = result
}

// AddArtifact appends or replaces an artifact record by file name.
func (m *Manifest) AddArtifact(rec ArtifactRecord) {
	for i, a := range m.Artifacts {
		if a.File == rec.File {
			m.Artifacts[i] = rec
			return
		}
	}
	m.Artifacts = append(m.Artifacts, rec)
}

// RunSummary aggregates the counters Pass F computes across a completed job.
type RunSummary struct {
	DictionaryEntriesCreated int             `json:"dictionary_entries_created"`
	SplitPerformed           bool            `json:"split_performed"`
	PartsCreated             int             `json:"parts_created"`
	ChunksExtracted          int             `json:"chunks_extracted"`
	ChunksVectorized         int             `json:"chunks_vectorized"`
	ChunksGraphEnriched      int             `json:"chunks_graph_enriched"`
	GraphNodes               int             `json:"graph_nodes"`
	GraphEdges               int             `json:"graph_edges"`
	CrossReferences          int             `json:"cross_references"`
	TotalArtifactBytes       int64           `json:"total_artifact_bytes"`
	DictionaryUpdates        int             `json:"dictionary_updates"`
	DeduplicationRatio       float64         `json:"deduplication_ratio"`
	EntitiesExtracted        int             `json:"entities_extracted"`
	KeywordsExtracted        int             `json:"keywords_extracted"`
	CompletionStatus         CompletionState `json:"completion_status"`
}

// CompletionState records whether every pass completed, used by Pass F's
// final self-validation step.
type CompletionState struct {
	AllPassesCompleted bool `json:"all_passes_completed"`
}
