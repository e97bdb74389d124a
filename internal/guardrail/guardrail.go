// Package guardrail implements the per-pass output-threshold policy:
// pure functions over a (pass, result) pair with no side effects beyond
// constructing the failure description, mirrored directly from the
// reference pipeline's pipeline_guardrails.py shape (see DESIGN.md).
package guardrail

import (
	"fmt"

	"ttrpg-ingest/internal/models"
)

// criticalPasses are the only passes whose failure can abort a source.
var criticalPasses = map[models.Pass]bool{
	models.PassC: true,
	models.PassD: true,
}

// thresholds maps env -> pass -> the strictly-greater-than bound the
// pass's primary output count must satisfy.
var thresholds = map[string]map[models.Pass]int{
	"dev":  {models.PassC: 0, models.PassD: 0},
	"test": {models.PassC: 0, models.PassD: 0},
	"prod": {models.PassC: 1, models.PassD: 1},
}

// Result is the outcome of validate(pass_id, result).
type Result struct {
	Passed        bool       `json:"passed"`
	PassName      string     `json:"pass_name"`
	ThresholdName string     `json:"threshold_name"`
	Actual        int        `json:"actual"`
	Threshold     int        `json:"threshold"`
	FailureReason string     `json:"failure_reason,omitempty"`
}

// thresholdName returns the counter name a pass's guardrail checks.
func thresholdName(p models.Pass) string {
	switch p {
	case models.PassC:
		return "chunks_extracted"
	case models.PassD:
		return "chunks_vectorized"
	default:
		return ""
	}
}

// Validate implements validate(pass_id, result): skipped passes and
// unknown passes always pass; unparseable actual counts are treated as
// zero.
func Validate(env string, p models.Pass, skipped bool, actual int) Result {
	name := thresholdName(p)
	if skipped || name == "" {
		return Result{Passed: true, PassName: string(p), ThresholdName: name}
	}

	envThresholds, ok := thresholds[env]
	if !ok {
		envThresholds = thresholds["dev"]
	}
	threshold, ok := envThresholds[p]
	if !ok {
		return Result{Passed: true, PassName: string(p), ThresholdName: name}
	}

	passed := actual > threshold
	res := Result{
		Passed:        passed,
		PassName:      string(p),
		ThresholdName: name,
		Actual:        actual,
		Threshold:     threshold,
	}
	if !passed {
		res.FailureReason = fmt.Sprintf("Zero output at Pass %s", p)
	}
	return res
}

// ShouldAbort implements should_abort(pass_id, result): true only when
// validation fails and the pass is critical.
func ShouldAbort(env string, p models.Pass, skipped bool, actual int) bool {
	if !criticalPasses[p] {
		return false
	}
	return !Validate(env, p, skipped, actual).Passed
}

// FailureSummary implements failure_summary(pass_id, result) for
// inclusion in the source result.
func FailureSummary(env string, p models.Pass, actual int) map[string]interface{} {
	res := Validate(env, p, false, actual)
	return map[string]interface{}{
		"pass_name":      res.PassName,
		"threshold_name": res.ThresholdName,
		"actual":         res.Actual,
		"threshold":      res.Threshold,
		"failure_reason": res.FailureReason,
	}
}
