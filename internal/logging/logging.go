// Package logging wraps the standard library logger with a job-scoped
// prefix. The teacher never reaches for a structured logging library
// (both its CLIs use log.Printf/log.Fatalf directly), so the expanded
// pipeline keeps the same ambient stack rather than introducing one.
package logging

import (
	"fmt"
	"log"
	"os"
)

// Logger prefixes every line with "[{LEVEL}][{job_id}]" (just "[{LEVEL}]"
// when the job ID is empty), matching the guardrail contract's literal
// "[FATAL][{job_id}] ..." line shape.
type Logger struct {
	jobID string
	std   *log.Logger
}

// New returns a Logger scoped to jobID, writing to os.Stderr.
func New(jobID string) *Logger {
	return &Logger{jobID: jobID, std: log.New(os.Stderr, "", log.LstdFlags)}
}

func (l *Logger) prefix(level string) string {
	if l.jobID == "" {
		return fmt.Sprintf("[%s] ", level)
	}
	return fmt.Sprintf("[%s][%s] ", level, l.jobID)
}

// Infof logs an informational line.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.std.Printf(l.prefix("INFO")+format, args...)
}

// Warnf logs a warning line; warnings never abort a pass.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.std.Printf(l.prefix("WARN")+format, args...)
}

// Errorf logs an error line.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.std.Printf(l.prefix("ERROR")+format, args...)
}

// Fatal logs the exact guardrail-abort line the spec's logging contract
// requires: "[FATAL][{job_id}] Pass {P} produced zero output — aborting
// source after Pass {P}" followed by the reason and source file name.
func (l *Logger) Fatal(pass, reason, sourceFile string) {
	l.std.Printf("[FATAL][%s] Pass %s produced zero output — aborting source after Pass %s: %s (%s)",
		l.jobID, pass, pass, reason, sourceFile)
}
