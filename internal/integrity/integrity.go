// Package integrity implements the post-run integrity validator: a set
// of failure and warning predicates over batch-level counts that can
// demote an apparently-successful source to failed, grounded on the
// reference pipeline's artifact_validator.py re-hash-rather-than-trust
// approach (see DESIGN.md).
package integrity

import "fmt"

// Counts bundles the per-source and batch-level numbers the validator
// needs, per spec §4.10.
type Counts struct {
	TocEntries       int
	RawChunks        int
	Vectors          int
	ChunkToDictRatio float64
}

// Report is the result of Validate: whether the source should be demoted
// and the list of failure/warning strings to attach to its result.
type Report struct {
	Failed   bool
	Failures []string
}

// Validate applies the four failure predicates and two warning
// predicates from spec §4.10 in order.
func Validate(c Counts) Report {
	var report Report

	if c.TocEntries < 1 {
		report.Failed = true
		report.Failures = append(report.Failures, "ToC entries < 1 (Pass A incomplete)")
	}
	if c.RawChunks < 1 {
		report.Failed = true
		report.Failures = append(report.Failures, "Raw chunks < 1 (Pass C incomplete)")
	}
	if c.Vectors < 1 {
		report.Failed = true
		report.Failures = append(report.Failures, "Vectors < 1 (Pass D incomplete)")
	}
	if c.ChunkToDictRatio < 0.05 {
		report.Failed = true
		report.Failures = append(report.Failures, fmt.Sprintf("chunk_to_dict_ratio %.3f < 0.05 (critical threshold)", c.ChunkToDictRatio))
	} else if c.ChunkToDictRatio < 0.20 {
		report.Failures = append(report.Failures, fmt.Sprintf("chunk_to_dict_ratio %.3f < 0.20 (warning threshold)", c.ChunkToDictRatio))
	} else if c.ChunkToDictRatio > 10.0 {
		report.Failures = append(report.Failures, fmt.Sprintf("High chunk_to_dictionary ratio %.3f - possible over-chunking", c.ChunkToDictRatio))
	}

	return report
}
