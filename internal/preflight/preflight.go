// Package preflight checks for the external command-line tools the
// pipeline's out-of-scope collaborators (PDF layout inspection, OCR)
// assume are present on the host, before any source is processed.
package preflight

import (
	"context"
	"fmt"
	"os/exec"
)

// Tool describes one external dependency check.
type Tool struct {
	Name string
	Bin  string
	Args []string
}

// RequiredTools is the fixed list spec §6 names: a PDF-layout tool
// (pdfinfo/pdftoppm equivalents) and an OCR tool (tesseract equivalent).
var RequiredTools = []Tool{
	{Name: "pdfinfo", Bin: "pdfinfo", Args: []string{"-v"}},
	{Name: "pdftoppm", Bin: "pdftoppm", Args: []string{"-v"}},
	{Name: "tesseract", Bin: "tesseract", Args: []string{"--version"}},
}

// Result is the outcome of checking one tool.
type Result struct {
	Tool      string
	Available bool
	Error     string
}

// Check runs every required tool's version/help invocation and reports
// which are missing or non-functional.
func Check(ctx context.Context) []Result {
	results := make([]Result, 0, len(RequiredTools))
	for _, tool := range RequiredTools {
		results = append(results, checkOne(ctx, tool))
	}
	return results
}

func checkOne(ctx context.Context, tool Tool) Result {
	path, err := exec.LookPath(tool.Bin)
	if err != nil {
		return Result{Tool: tool.Name, Available: false, Error: fmt.Sprintf("not found on PATH: %v", err)}
	}
	cmd := exec.CommandContext(ctx, path, tool.Args...)
	if err := cmd.Run(); err != nil {
		return Result{Tool: tool.Name, Available: false, Error: fmt.Sprintf("invocation failed: %v", err)}
	}
	return Result{Tool: tool.Name, Available: true}
}

// AllAvailable reports whether every tool check succeeded.
func AllAvailable(results []Result) bool {
	for _, r := range results {
		if !r.Available {
			return false
		}
	}
	return true
}

// RemediationGuidance returns the unavailable tools' names with a short
// install hint, for the exit-2 message spec §6 requires.
func RemediationGuidance(results []Result) string {
	msg := ""
	for _, r := range results {
		if r.Available {
			continue
		}
		msg += fmt.Sprintf("%s unavailable (%s); install poppler-utils and tesseract-ocr.\n", r.Tool, r.Error)
	}
	return msg
}
