// Package manifest owns reading, writing, and validating the per-job
// manifest.json that the rest of the pipeline treats as the single
// source of truth for resume decisions.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"ttrpg-ingest/internal/atomicfile"
	"ttrpg-ingest/internal/models"
)

// FileName is the manifest's fixed file name within a job directory.
const FileName = "manifest.json"

// Path returns the manifest path for a job directory.
func Path(jobDir string) string {
	return filepath.Join(jobDir, FileName)
}

// Load reads and decodes the manifest at jobDir/manifest.json.
func Load(jobDir string) (*models.Manifest, error) {
	var m models.Manifest
	if err := atomicfile.ReadJSON(Path(jobDir), &m); err != nil {
		return nil, fmt.Errorf("manifest: load %s: %w", jobDir, err)
	}
	return &m, nil
}

// Save atomically writes the manifest to jobDir/manifest.json.
func Save(jobDir string, m *models.Manifest) error {
	if err := atomicfile.WriteJSON(Path(jobDir), m); err != nil {
		return fmt.Errorf("manifest: save %s: %w", jobDir, err)
	}
	return nil
}

// Exists reports whether a manifest has already been written for jobDir.
func Exists(jobDir string) bool {
	return atomicfile.Exists(Path(jobDir))
}

// RecordArtifact computes an artifact's size/mtime/checksum from disk and
// appends (or replaces) its record on the manifest. file is the artifact
// name relative to jobDir, matching the manifest's {file, path, ...} shape.
func RecordArtifact(m *models.Manifest, jobDir, file string) error {
	path := filepath.Join(jobDir, file)
	fi, err := statFile(path)
	if err != nil {
		return fmt.Errorf("manifest: stat artifact %s: %w", file, err)
	}
	sum, err := atomicfile.SHA256File(path)
	if err != nil {
		return fmt.Errorf("manifest: checksum artifact %s: %w", file, err)
	}
	m.AddArtifact(models.ArtifactRecord{
		File:     file,
		Path:     path,
		Size:     fi.size,
		MTime:    fi.mtime,
		Checksum: sum,
	})
	return nil
}

type fileStat struct {
	size  int64
	mtime int64
}

func statFile(path string) (fileStat, error) {
	info, err := os.Stat(path)
	if err != nil {
		return fileStat{}, err
	}
	return fileStat{size: info.Size(), mtime: info.ModTime().Unix()}, nil
}

// ExpectedArtifactsValid implements the per-pass resume-validation rule
// from spec §4.1: whether the artifacts a pass is expected to have
// produced are present and, where the manifest claims success, marked so.
func ExpectedArtifactsValid(m *models.Manifest, jobDir string, p models.Pass) bool {
	if !m.HasCompleted(p) {
		return false
	}
	switch p {
	case models.PassA:
		return Exists(jobDir)
	case models.PassB:
		if res, ok := m.PassResults[models.PassB]; ok {
			if result, ok := res.(map[string]interface{}); ok {
				if performed, _ := result["split_performed"].(bool); performed {
					return atomicfile.Exists(filepath.Join(jobDir, "split_index.json"))
				}
			}
		}
		return true
	case models.PassC, models.PassD, models.PassE:
		return true
	case models.PassF:
		required := map[models.Pass]bool{
			models.PassA: false, models.PassB: false, models.PassC: false,
			models.PassD: false, models.PassE: false, models.PassF: false,
		}
		for _, c := range m.CompletedPasses {
			required[c] = true
		}
		for _, need := range models.AllPasses {
			if !required[need] {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// ShouldRun implements should_run(p) from spec §4.1: run unless resuming
// and the pass already completed with valid expected artifacts. Pass A
// additionally always runs when forceDictInit is set.
func ShouldRun(m *models.Manifest, jobDir string, p models.Pass, resume, forceDictInit bool) bool {
	if p == models.PassA && forceDictInit {
		return true
	}
	if !resume {
		return true
	}
	if !m.HasCompleted(p) {
		return true
	}
	return !ExpectedArtifactsValid(m, jobDir, p)
}

// Touch stamps CreatedAt if unset, used when constructing a manifest for
// a freshly created job.
func Touch(m *models.Manifest) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
}
