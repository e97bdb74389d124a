package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"ttrpg-ingest/internal/atomicfile"
	"ttrpg-ingest/internal/dictionary"
	"ttrpg-ingest/internal/graphstore"
	"ttrpg-ingest/internal/manifest"
	"ttrpg-ingest/internal/models"
	"ttrpg-ingest/internal/vectorstore"
)

// passEReplaceBatchSize and passEReplacePause are spec §4.7 step 6's
// batch parameters for re-upserting graph-enriched chunks.
const (
	passEReplaceBatchSize = 30
	passEReplacePause     = 100 * time.Millisecond
)

// PassEDeps bundles Pass E's optional collaborators.
type PassEDeps struct {
	Dict  *dictionary.Store // optional; nil skips cross-reference dictionary back-fill
	Neo4j *graphstore.Neo4jExporter // optional; nil skips the Neo4j mirror
	Log   interface {
		Warnf(string, ...interface{})
	}
}

// ProcessPassE builds the document graph from Pass D's vectorized
// chunks, writes the graph artifacts, re-upserts the enriched chunks
// with stage="graph_enriched", back-fills the dictionary from
// cross-reference elements, and optionally mirrors the snapshot into
// Neo4j. Dictionary and Neo4j failures are warnings only, per spec
// §4.7 steps 7-9.
func ProcessPassE(ctx context.Context, jobDir, jobID, env string, store vectorstore.Store, deps PassEDeps) (*models.PassEResult, error) {
	start := time.Now()
	result := &models.PassEResult{}

	vectorsPath := filepath.Join(jobDir, fmt.Sprintf("%s_pass_d_vectors.jsonl", jobID))
	chunks, malformed := loadChunksJSONL(vectorsPath)
	if malformed > 0 && deps.Log != nil {
		deps.Log.Warnf("pass E: skipped %d malformed lines in %s", malformed, vectorsPath)
	}

	now := time.Now()
	built := graphstore.Build(chunks, now)

	snapshotPath := filepath.Join(jobDir, "graph_snapshot.json")
	if err := atomicfile.WriteJSON(snapshotPath, built.Snapshot); err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("pipeline: pass E write snapshot: %w", err)
	}
	aliasPath := filepath.Join(jobDir, "alias_map.json")
	if err := atomicfile.WriteJSON(aliasPath, built.AliasMap); err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("pipeline: pass E write alias map: %w", err)
	}
	relPath := filepath.Join(jobDir, "relationship_edges.jsonl")
	relItems := make([]interface{}, len(built.Relationships))
	for i, r := range built.Relationships {
		relItems[i] = r
	}
	if err := atomicfile.WriteJSONLines(relPath, relItems); err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("pipeline: pass E write relationships: %w", err)
	}

	if store != nil && len(built.EnrichedChunks) > 0 {
		if _, err := upsertInBatches(ctx, store, built.EnrichedChunks, env, jobID, jobDir, passEReplaceBatchSize, passEReplacePause, deps.Log); err != nil && deps.Log != nil {
			deps.Log.Warnf("pass E: batch replace encountered errors, reporting partial success: %v", err)
		}
	}

	dictionaryUpdates := 0
	if deps.Dict != nil {
		terms := dictionaryTermsFromCrossReferences(built.Snapshot.CrossReferences, now)
		if len(terms) > 0 {
			n, err := deps.Dict.UpsertTerms(ctx, terms)
			if err != nil {
				if deps.Log != nil {
					deps.Log.Warnf("pass E: dictionary back-fill failed, continuing: %v", err)
				}
			} else {
				dictionaryUpdates = n
			}
		}
	}

	if deps.Neo4j != nil {
		if err := deps.Neo4j.Export(ctx, built.Snapshot); err != nil && deps.Log != nil {
			deps.Log.Warnf("pass E: neo4j export failed, continuing: %v", err)
		}
	}

	result.GraphNodes = len(built.Snapshot.Nodes)
	result.GraphEdges = len(built.Snapshot.Edges)
	result.CrossReferences = len(built.Snapshot.CrossReferences)
	result.DictionaryUpdates = dictionaryUpdates
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	result.Success = true

	m, err := manifest.Load(jobDir)
	if err != nil {
		return result, fmt.Errorf("pipeline: pass E load manifest: %w", err)
	}
	m.MarkCompleted(models.PassE, result)
	for _, name := range []string{"graph_snapshot.json", "alias_map.json", "relationship_edges.jsonl"} {
		if err := manifest.RecordArtifact(m, jobDir, name); err != nil {
			return result, fmt.Errorf("pipeline: pass E record artifact %s: %w", name, err)
		}
	}
	if err := manifest.Save(jobDir, m); err != nil {
		return result, fmt.Errorf("pipeline: pass E save manifest: %w", err)
	}

	return result, nil
}

// dictionaryTermsFromCrossReferences turns cross-reference elements into
// dictionary terms, categorised by graphstore.DictionaryCategory, per
// spec §4.7 step 7.
func dictionaryTermsFromCrossReferences(refs []models.CrossReference, now time.Time) []models.DictTerm {
	seen := map[string]bool{}
	var terms []models.DictTerm
	add := func(element string) {
		if element == "" || seen[element] {
			return
		}
		seen[element] = true
		terms = append(terms, models.DictTerm{
			Term:       element,
			Definition: models.TruncateDefinition(fmt.Sprintf("%s, referenced via cross-reference analysis", element), 400),
			Category:   graphstore.DictionaryCategory(element),
			Sources: []models.DictSource{{
				Source: "cross_reference_analysis", Method: "graph_extraction",
			}},
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	for _, r := range refs {
		add(r.SourceElement)
		add(r.TargetElement)
	}
	return terms
}
