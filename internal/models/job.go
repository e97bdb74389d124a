package models

import "fmt"

// Pass identifies one of the six ordered stages of the pipeline.
type Pass string

const (
	PassA Pass = "A"
	PassB Pass = "B"
	PassC Pass = "C"
	PassD Pass = "D"
	PassE Pass = "E"
	PassF Pass = "F"
)

// AllPasses is the fixed execution order A through F.
var AllPasses = []Pass{PassA, PassB, PassC, PassD, PassE, PassF}

// JobID formats the canonical job identifier: job_{unix}_{hash12}.
func JobID(unixSeconds int64, sourceHash12 string) string {
	return fmt.Sprintf("job_%d_%s", unixSeconds, sourceHash12)
}

// JobState is the orchestrator's state machine position for one source.
type JobState string

const (
	StatePending     JobState = "pending"
	StateRunningA    JobState = "running_a"
	StateRunningB    JobState = "running_b"
	StateRunningC    JobState = "running_c"
	StateRunningD    JobState = "running_d"
	StateRunningE    JobState = "running_e"
	StateRunningF    JobState = "running_f"
	StateCompleted   JobState = "completed"
	StateAbortedAtC  JobState = "aborted_at_c"
	StateAbortedAtD  JobState = "aborted_at_d"
	StateFailed      JobState = "failed"
)

func runningState(p Pass) JobState {
	switch p {
	case PassA:
		return StateRunningA
	case PassB:
		return StateRunningB
	case PassC:
		return StateRunningC
	case PassD:
		return StateRunningD
	case PassE:
		return StateRunningE
	case PassF:
		return StateRunningF
	default:
		return StatePending
	}
}

// RunningState returns the Running(p) state for a pass, used by the
// orchestrator to transition state at the start of each pass.
func RunningState(p Pass) JobState { return runningState(p) }
