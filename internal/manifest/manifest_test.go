package manifest

import (
	"path/filepath"
	"testing"
	"time"

	"ttrpg-ingest/internal/models"
)

func newTestManifest(jobDir string) *models.Manifest {
	m := models.NewManifest("job_1_abc123", "rules.pdf", filepath.Join(jobDir, "rules.pdf"), "dev", models.SourceInfo{Size: 10, MTime: 1}, time.Now())
	return m
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := newTestManifest(dir)
	m.MarkCompleted(models.PassA, models.PassAResult{Success: true, DictionaryEntries: 3})

	if err := Save(dir, m); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !Exists(dir) {
		t.Fatalf("Exists = false after Save")
	}

	loaded, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !loaded.HasCompleted(models.PassA) {
		t.Fatalf("loaded manifest missing completed pass A")
	}
}

func TestShouldRunNoResume(t *testing.T) {
	dir := t.TempDir()
	m := newTestManifest(dir)
	if !ShouldRun(m, dir, models.PassA, false, false) {
		t.Fatalf("ShouldRun with resume=false should always be true")
	}
}

func TestShouldRunResumeSkipsCompleted(t *testing.T) {
	dir := t.TempDir()
	m := newTestManifest(dir)
	m.MarkCompleted(models.PassA, models.PassAResult{Success: true})
	if err := Save(dir, m); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if ShouldRun(m, dir, models.PassA, true, false) {
		t.Fatalf("ShouldRun should skip a completed pass A when resuming")
	}
}

func TestShouldRunForceDictInit(t *testing.T) {
	dir := t.TempDir()
	m := newTestManifest(dir)
	m.MarkCompleted(models.PassA, models.PassAResult{Success: true})
	if err := Save(dir, m); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !ShouldRun(m, dir, models.PassA, true, true) {
		t.Fatalf("ShouldRun should always rerun Pass A when forceDictInit is set")
	}
}

func TestExpectedArtifactsValidPassFRequiresAllPasses(t *testing.T) {
	dir := t.TempDir()
	m := newTestManifest(dir)
	m.MarkCompleted(models.PassF, models.PassFResult{Success: true})
	if ExpectedArtifactsValid(m, dir, models.PassF) {
		t.Fatalf("Pass F should be invalid when A-E haven't completed")
	}
	for _, p := range models.AllPasses {
		m.MarkCompleted(p, struct{}{})
	}
	if !ExpectedArtifactsValid(m, dir, models.PassF) {
		t.Fatalf("Pass F should be valid once all passes are completed")
	}
}
