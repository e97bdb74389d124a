package models

import (
	"strings"
	"time"
)

// DictCategory enumerates the known dictionary term categories. "general"
// is the catch-all for shallow ToC entries that don't match a keyword set.
type DictCategory string

const (
	CategorySpells    DictCategory = "spells"
	CategoryFeats     DictCategory = "feats"
	CategoryClasses   DictCategory = "classes"
	CategoryEquipment DictCategory = "equipment"
	CategoryMechanics DictCategory = "mechanics"
	CategoryGeneral   DictCategory = "general"
)

// DictSource records one origin of a dictionary term: which source file
// produced it, by what method, and optionally where in that source.
type DictSource struct {
	Source    string `json:"source"`
	Method    string `json:"method"`
	Page      int    `json:"page,omitempty"`
	SectionID string `json:"section_id,omitempty"`
	Level     int    `json:"level,omitempty"`
}

// DictTerm is one entry in the shared dictionary store.
type DictTerm struct {
	Term       string       `json:"term"`
	Definition string       `json:"definition"`
	Category   DictCategory `json:"category"`
	Sources    []DictSource `json:"sources"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// NormalizeTerm computes the dictionary's uniqueness key: lowercase with
// spaces, hyphens, and apostrophes collapsed to underscores.
func NormalizeTerm(term string) string {
	lower := strings.ToLower(term)
	replacer := strings.NewReplacer(" ", "_", "-", "_", "'", "_")
	return replacer.Replace(lower)
}

// TruncateDefinition truncates a definition string to at most n
// characters, matching the dictionary term invariant (≤400 chars).
func TruncateDefinition(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
