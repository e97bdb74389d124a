// Package llmseed implements the optional LLM-backed dictionary seed
// collaborator Pass A may consult in addition to its keyword-based
// categorisation: given a block of ToC text, ask the model for a JSON
// array of {term, definition, category} entries. Adapted from the
// teacher's internal/llm/ollama.go Generate/Answer shape, trimmed down
// to the single seeding call this pipeline needs (no prompt-with-context
// question answering).
package llmseed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"

	"ttrpg-ingest/internal/models"
)

// Timeout is the fixed budget spec §6 assigns the dictionary-seed call;
// a source whose LLM seed call runs long is simply skipped, never
// aborted.
const Timeout = 60 * time.Second

// Entry is one seed suggestion as the model returns it.
type Entry struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
	Category   string `json:"category"`
}

// Seeder asks a backing model to suggest dictionary entries for a block
// of text. A non-JSON response yields (nil, nil); a failed model call
// returns an error. The caller treats either as a skipped seed step, not
// a fatal one.
type Seeder interface {
	SeedDictionary(ctx context.Context, tocText string) ([]Entry, error)
}

// OllamaSeeder drives the seed prompt through a local Ollama model.
type OllamaSeeder struct {
	Client *api.Client
	Model  string
}

// NewOllamaSeeder builds a seeder against host (empty uses the
// OLLAMA_HOST environment default).
func NewOllamaSeeder(host, model string) *OllamaSeeder {
	hostURL := envconfig.Host()
	if host != "" {
		if parsed, err := url.Parse(host); err == nil {
			hostURL = parsed
		}
	}
	return &OllamaSeeder{
		Client: api.NewClient(hostURL, http.DefaultClient),
		Model:  model,
	}
}

const seedPromptTemplate = `Extract glossary terms from the following table-of-contents or heading text. ` +
	`Respond with ONLY a JSON array, no prose, of objects shaped {"term": string, "definition": string, "category": string}. ` +
	`category must be one of: spells, feats, classes, equipment, mechanics, general. ` +
	`If nothing qualifies, respond with an empty array [].

Text:
%s
`

// SeedDictionary asks the model for dictionary suggestions. Non-JSON
// responses (including empty or truncated ones) are discarded and
// reported as a skip, not an error.
func (s *OllamaSeeder) SeedDictionary(ctx context.Context, tocText string) ([]Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	prompt := fmt.Sprintf(seedPromptTemplate, tocText)

	req := api.GenerateRequest{
		Model:  s.Model,
		Prompt: prompt,
		Options: map[string]interface{}{
			"temperature": 0.0,
			"num_predict": 1024,
		},
	}

	var out strings.Builder
	err := s.Client.Generate(ctx, &req, func(resp api.GenerateResponse) error {
		_, err := out.WriteString(resp.Response)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("llmseed: generate: %w", err)
	}

	return ParseEntries(out.String())
}

// ParseEntries extracts the JSON array from a raw model response,
// tolerating leading/trailing prose around the array, and discards the
// response entirely if no valid JSON array of entries can be found.
func ParseEntries(raw string) ([]Entry, error) {
	start := strings.IndexByte(raw, '[')
	end := strings.LastIndexByte(raw, ']')
	if start < 0 || end < start {
		return nil, nil
	}

	var entries []Entry
	if err := json.Unmarshal([]byte(raw[start:end+1]), &entries); err != nil {
		return nil, nil
	}
	return entries, nil
}

// ToDictTerms converts seed entries into dictionary terms attributable
// to one source, filling in the normalized term and timestamps the
// dictionary store expects.
func ToDictTerms(entries []Entry, source, sectionID string, page, level int, now time.Time) []models.DictTerm {
	terms := make([]models.DictTerm, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Term) == "" {
			continue
		}
		cat := models.DictCategory(e.Category)
		switch cat {
		case models.CategorySpells, models.CategoryFeats, models.CategoryClasses,
			models.CategoryEquipment, models.CategoryMechanics, models.CategoryGeneral:
		default:
			cat = models.CategoryGeneral
		}
		terms = append(terms, models.DictTerm{
			Term:       e.Term,
			Definition: models.TruncateDefinition(e.Definition, 400),
			Category:   cat,
			Sources: []models.DictSource{{
				Source:    source,
				Method:    "llm_seed",
				Page:      page,
				SectionID: sectionID,
				Level:     level,
			}},
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return terms
}
