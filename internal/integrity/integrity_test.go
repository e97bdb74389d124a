package integrity

import (
	"strings"
	"testing"
)

func TestValidateHealthySourcePasses(t *testing.T) {
	report := Validate(Counts{TocEntries: 5, RawChunks: 40, Vectors: 40, ChunkToDictRatio: 0.5})
	if report.Failed {
		t.Fatalf("expected healthy counts to pass, got failures: %v", report.Failures)
	}
}

func TestValidateLowRatioDemotes(t *testing.T) {
	report := Validate(Counts{TocEntries: 5, RawChunks: 3, Vectors: 3, ChunkToDictRatio: 0.015})
	if !report.Failed {
		t.Fatalf("expected ratio 0.015 to demote the source")
	}
	found := false
	for _, f := range report.Failures {
		if strings.Contains(f, "critical threshold") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a critical-threshold failure string, got %v", report.Failures)
	}
}

func TestValidateWarningRangeDoesNotDemote(t *testing.T) {
	report := Validate(Counts{TocEntries: 5, RawChunks: 10, Vectors: 10, ChunkToDictRatio: 0.1})
	if report.Failed {
		t.Fatalf("warning-range ratio should not demote the source")
	}
	if len(report.Failures) != 1 {
		t.Fatalf("expected one warning entry, got %v", report.Failures)
	}
}

func TestValidateMissingTocEntries(t *testing.T) {
	report := Validate(Counts{TocEntries: 0, RawChunks: 10, Vectors: 10, ChunkToDictRatio: 1.0})
	if !report.Failed {
		t.Fatalf("expected zero ToC entries to demote the source")
	}
}
