package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"ttrpg-ingest/internal/atomicfile"
	"ttrpg-ingest/internal/dictionary"
	"ttrpg-ingest/internal/extractor"
	"ttrpg-ingest/internal/llmseed"
	"ttrpg-ingest/internal/logging"
	"ttrpg-ingest/internal/manifest"
	"ttrpg-ingest/internal/models"
)

// PassADeps bundles Pass A's collaborators so ProcessPassA's signature
// stays the shape spec §4.3 describes (pdf, jobDir, jobId, env,
// forceDictInit) while still taking the dictionary store and optional
// LLM seeder by injection.
type PassADeps struct {
	Dict   *dictionary.Store
	Seeder llmseed.Seeder // optional; nil disables LLM-assisted seeding
	Log    *logging.Logger
}

// ProcessPassA parses the document's table of contents (or falls back to
// heading extraction), seeds the dictionary store, and writes the
// initial manifest. Dictionary failures are logged but never fail the
// pass, per spec §4.3 step 6.
func ProcessPassA(ctx context.Context, pdfPath, jobDir, jobID, env string, forceDictInit bool, deps PassADeps) (*models.PassAResult, error) {
	start := time.Now()
	result := &models.PassAResult{SourceFile: filepath.Base(pdfPath), JobID: jobID}

	doc, err := extractor.Open(pdfPath)
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("pipeline: pass A open %s: %w", pdfPath, err)
	}

	entries := extractor.ExtractToc(doc)

	terms := seedTermsFromToc(entries, result.SourceFile)
	if deps.Seeder != nil && len(entries) > 0 {
		tocText := tocTextSample(entries)
		if llmEntries, err := deps.Seeder.SeedDictionary(ctx, tocText); err != nil {
			if deps.Log != nil {
				deps.Log.Warnf("pass A: LLM dictionary seed failed, continuing without it: %v", err)
			}
		} else if len(llmEntries) > 0 {
			terms = append(terms, llmseed.ToDictTerms(llmEntries, result.SourceFile, "", 0, 0, start)...)
		}
	}

	dictionaryEntries := 0
	if deps.Dict != nil && len(terms) > 0 {
		n, err := deps.Dict.UpsertTerms(ctx, terms)
		if err != nil {
			if deps.Log != nil {
				deps.Log.Warnf("pass A: dictionary upsert failed, continuing: %v", err)
			}
		} else {
			dictionaryEntries = n
		}
	}

	artifactName := fmt.Sprintf("%s_pass_a_dict.json", jobID)
	artifactPath := filepath.Join(jobDir, artifactName)
	if err := atomicfile.WriteJSON(artifactPath, terms); err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("pipeline: pass A write artifact: %w", err)
	}

	src, err := models.LoadSource(pdfPath)
	if err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("pipeline: pass A load source: %w", err)
	}
	if _, err := src.ContentHash(); err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("pipeline: pass A content hash: %w", err)
	}

	m := models.NewManifest(jobID, result.SourceFile, pdfPath, env, src.Info, start)
	result.TocEntries = len(entries)
	result.SectionsParsed = len(entries)
	result.DictionaryEntries = dictionaryEntries
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	result.ManifestPath = manifest.Path(jobDir)
	result.Artifacts = []string{artifactName}
	result.Success = true

	m.MarkCompleted(models.PassA, result)
	if err := manifest.RecordArtifact(m, jobDir, artifactName); err != nil {
		return result, fmt.Errorf("pipeline: pass A record artifact: %w", err)
	}
	if err := manifest.Save(jobDir, m); err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("pipeline: pass A save manifest: %w", err)
	}

	return result, nil
}

type categoryKeywords struct {
	category models.DictCategory
	keywords []string
}

// categoryTable implements the keyword categorisation from spec §4.3
// step 5, tried in order; the first matching category wins.
var categoryTable = []categoryKeywords{
	{models.CategorySpells, []string{"spell", "magic", "incantation", "enchantment"}},
	{models.CategoryFeats, []string{"feat", "ability", "talent", "skill"}},
	{models.CategoryClasses, []string{"class", "archetype", "prestige", "profession"}},
	{models.CategoryEquipment, []string{"weapon", "armor", "item", "equipment", "gear"}},
	{models.CategoryMechanics, []string{"rule", "mechanic", "system", "combat", "action"}},
}

// categorize returns the category for a ToC entry's title, or ("", false)
// when nothing matches and the entry is too deep to fall back to general.
func categorize(title string, level int) (models.DictCategory, bool) {
	lower := strings.ToLower(title)
	for _, ck := range categoryTable {
		for _, kw := range ck.keywords {
			if strings.Contains(lower, kw) {
				return ck.category, true
			}
		}
	}
	if level <= 2 {
		return models.CategoryGeneral, true
	}
	return "", false
}

// seedTermsFromToc converts ToC entries into dictionary terms per spec
// §4.3 steps 5-6, skipping entries that categorize() rejects.
func seedTermsFromToc(entries []models.TocEntry, sourceFile string) []models.DictTerm {
	now := time.Now()
	terms := make([]models.DictTerm, 0, len(entries))
	for _, e := range entries {
		category, ok := categorize(e.Title, e.Level)
		if !ok {
			continue
		}
		definition := models.TruncateDefinition(
			fmt.Sprintf("%s from %s, page %d", e.Title, sourceFile, e.Page), 400)
		terms = append(terms, models.DictTerm{
			Term:       e.Title,
			Definition: definition,
			Category:   category,
			Sources: []models.DictSource{{
				Source: sourceFile, Method: "toc_extraction",
				Page: e.Page, SectionID: e.SectionID, Level: e.Level,
			}},
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return terms
}

const tocTextSampleEntries = 40

func tocTextSample(entries []models.TocEntry) string {
	var b strings.Builder
	limit := len(entries)
	if limit > tocTextSampleEntries {
		limit = tocTextSampleEntries
	}
	for _, e := range entries[:limit] {
		fmt.Fprintf(&b, "%s (p. %d)\n", e.Title, e.Page)
	}
	return b.String()
}
