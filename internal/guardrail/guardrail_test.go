package guardrail

import (
	"testing"

	"ttrpg-ingest/internal/models"
)

func TestValidateDevZeroChunksFails(t *testing.T) {
	res := Validate("dev", models.PassC, false, 0)
	if res.Passed {
		t.Fatalf("expected dev Pass C with 0 chunks to fail the strictly-greater threshold")
	}
}

func TestValidateProdOneChunkFails(t *testing.T) {
	res := Validate("prod", models.PassC, false, 1)
	if res.Passed {
		t.Fatalf("expected prod Pass C with 1 chunk to fail (threshold is >1)")
	}
	if Validate("prod", models.PassC, false, 2).Passed != true {
		t.Fatalf("expected prod Pass C with 2 chunks to pass")
	}
}

func TestValidateSkippedAlwaysPasses(t *testing.T) {
	if !Validate("dev", models.PassC, true, 0).Passed {
		t.Fatalf("skipped pass should always pass")
	}
}

func TestValidateUnknownPassAlwaysPasses(t *testing.T) {
	if !Validate("dev", models.PassA, false, 0).Passed {
		t.Fatalf("non-critical pass A has no threshold and should always pass")
	}
}

func TestShouldAbortOnlyCriticalPasses(t *testing.T) {
	if ShouldAbort("dev", models.PassA, false, 0) {
		t.Fatalf("Pass A should never abort (warning-only)")
	}
	if !ShouldAbort("dev", models.PassC, false, 0) {
		t.Fatalf("Pass C with 0 chunks in dev should abort")
	}
}

func TestFailureSummary(t *testing.T) {
	summary := FailureSummary("dev", models.PassC, 0)
	if summary["failure_reason"] != "Zero output at Pass C" {
		t.Fatalf("failure_reason = %v, want 'Zero output at Pass C'", summary["failure_reason"])
	}
}
