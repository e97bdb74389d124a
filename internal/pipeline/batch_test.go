package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ttrpg-ingest/internal/models"
)

func TestListPDFsFiltersByExtensionAndSorts(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.PDF", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("seed %s: %v", name, err)
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, "subdir.pdf"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	paths, err := listPDFs(dir)
	if err != nil {
		t.Fatalf("listPDFs: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 pdf files, got %v", paths)
	}
	if filepath.Base(paths[0]) != "a.PDF" || filepath.Base(paths[1]) != "b.pdf" {
		t.Fatalf("expected sorted order a.PDF, b.pdf, got %v", paths)
	}
}

func TestApplyIntegrityCheckDemotesZeroVectors(t *testing.T) {
	result := &models.SourceResult{Success: true, TocEntries: 5, RawChunks: 10, Vectors: 0}
	applyIntegrityCheck(result)
	if result.Success {
		t.Fatalf("expected zero vectors to demote success to failure")
	}
	if !result.IntegrityFailed {
		t.Fatalf("expected IntegrityFailed = true")
	}
	if result.Error != "Integrity validation failed" {
		t.Fatalf("expected default integrity error message, got %q", result.Error)
	}
	if !strings.Contains(result.FailureReason, "Pass D incomplete") {
		t.Fatalf("expected failure_reason to join integrity_failures, got %q", result.FailureReason)
	}
}

func TestApplyIntegrityCheckPreservesExistingError(t *testing.T) {
	result := &models.SourceResult{Success: true, Error: "prior error", TocEntries: 5, RawChunks: 10, Vectors: 0}
	applyIntegrityCheck(result)
	if result.Error != "prior error" {
		t.Fatalf("expected a pre-existing error to survive demotion, got %q", result.Error)
	}
}

func TestApplyIntegrityCheckLeavesHealthyResultAlone(t *testing.T) {
	result := &models.SourceResult{Success: true, TocEntries: 10, RawChunks: 40, Vectors: 38}
	applyIntegrityCheck(result)
	if !result.Success {
		t.Fatalf("expected a healthy result to remain successful, failures: %v", result.IntegrityFailures)
	}
}

func TestExitCodeTwoWay(t *testing.T) {
	allOK := &models.BatchSummary{Sources: []*models.SourceResult{{Success: true}}}
	if ExitCode(allOK) != 0 {
		t.Fatalf("expected exit code 0 for all-success batch")
	}

	oneFailed := &models.BatchSummary{Sources: []*models.SourceResult{{Success: false, FailedPass: models.PassC}}}
	if ExitCode(oneFailed) != 1 {
		t.Fatalf("expected exit code 1 for a batch with a plain failure")
	}

	oneAborted := &models.BatchSummary{Sources: []*models.SourceResult{{Success: false, AbortedAfterPass: models.PassD}}}
	if ExitCode(oneAborted) != 1 {
		t.Fatalf("expected exit code 1 for a batch with a guardrail abort (2 is reserved for preflight failures)")
	}
}

func TestFailureTableListsOnlyFailures(t *testing.T) {
	summary := &models.BatchSummary{
		Sources: []*models.SourceResult{
			{Source: "ok.pdf", Success: true},
			{Source: "bad.pdf", Success: false, FailedPass: models.PassC, FailureReason: "boom"},
		},
	}
	table := FailureTable(summary)
	if !strings.Contains(table, "bad.pdf") || strings.Contains(table, "ok.pdf") {
		t.Fatalf("expected table to list only the failed source, got:\n%s", table)
	}
}

func TestFailureTableUsesGuardrailCode(t *testing.T) {
	summary := &models.BatchSummary{
		Sources: []*models.SourceResult{
			{Source: "empty.pdf", Success: false, FailedPass: models.PassC, AbortedAfterPass: models.PassC, FailureReason: "Zero output at Pass C"},
		},
	}
	table := FailureTable(summary)
	if !strings.Contains(table, "empty.pdf | C (Guard) | Zero output at Pass C") {
		t.Fatalf("expected guardrail row matching seed scenario 3, got:\n%s", table)
	}
}

func TestFailureTableUsesIntegrityCodes(t *testing.T) {
	cases := []struct {
		reason string
		want   string
	}{
		{"ToC entries < 1 (Pass A incomplete)", "A (ToC)"},
		{"Raw chunks < 1 (Pass C incomplete)", "C (Extract)"},
		{"Vectors < 1 (Pass D incomplete)", "D (Vector)"},
		{"chunk_to_dict_ratio 0.015 < 0.05 (critical threshold)", "Ratio"},
	}
	for _, tc := range cases {
		summary := &models.BatchSummary{
			Sources: []*models.SourceResult{
				{Source: "x.pdf", Success: false, IntegrityFailed: true, IntegrityFailures: []string{tc.reason}, FailureReason: tc.reason},
			},
		}
		table := FailureTable(summary)
		if !strings.Contains(table, "x.pdf | "+tc.want+" | "+tc.reason) {
			t.Fatalf("expected code %q for reason %q, got:\n%s", tc.want, tc.reason, table)
		}
	}
}

func TestFailureTableUsesPipelineCodeForGenericErrors(t *testing.T) {
	summary := &models.BatchSummary{
		Sources: []*models.SourceResult{
			{Source: "bad.pdf", Success: false, FailedPass: models.PassA, FailureReason: "Pass A failed: boom"},
		},
	}
	table := FailureTable(summary)
	if !strings.Contains(table, "bad.pdf | Pipeline | Pass A failed: boom") {
		t.Fatalf("expected Pipeline code for a plain pass error, got:\n%s", table)
	}
}
