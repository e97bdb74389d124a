// Package graphstore implements Pass E: grouping vectorised chunks into
// section/chunk graph nodes, extracting cross-references between named
// game elements, and enriching chunks with the graph references that
// stage="graph_enriched" requires. The graph itself is kept as flat
// nodes/edges collections keyed by string IDs (spec §9 "cyclic/graph
// structures"), never as embedded object references, so it has no
// ownership cycles and the cross-reference regex sweeps in
// internal/chunker's entity-extraction spirit can be reused directly.
package graphstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"ttrpg-ingest/internal/models"
)

// Result bundles everything Pass E produces: the full snapshot, the
// alias map (undirected adjacency restricted to confident cross-refs),
// the enriched chunks, and the relationship rows for the JSONL artifact.
type Result struct {
	Snapshot       models.GraphSnapshot
	AliasMap       map[string][]string
	EnrichedChunks []models.Chunk
	Relationships  []RelationshipRow
}

// RelationshipRow is one row of relationship_edges.jsonl: either a graph
// edge (source_type="graph") or a cross-reference (source_type="cross_reference").
type RelationshipRow struct {
	SourceType string  `json:"source_type"`
	SourceID   string  `json:"source_id"`
	TargetID   string  `json:"target_id"`
	EdgeType   string  `json:"edge_type"`
	Weight     float64 `json:"weight"`
	Confidence float64 `json:"confidence,omitempty"`
	Context    string  `json:"context,omitempty"`
}

// minAliasConfidence is the threshold spec §4.7 step 8 applies to the
// alias map.
const minAliasConfidence = 0.7

// Build runs the full Pass E algorithm over a job's vectorised chunks.
func Build(chunks []models.Chunk, now time.Time) Result {
	nodes := map[string]*models.GraphNode{}
	var edges []models.GraphEdge
	var relationships []RelationshipRow

	sectionOrder, sectionGroups := groupBySection(chunks)
	for _, key := range sectionOrder {
		group := sectionGroups[key]
		sectionNode := buildSectionNode(key, group)
		nodes[sectionNode.NodeID] = &sectionNode

		for _, c := range group {
			chunkNode := buildChunkNode(c, sectionNode.NodeID)
			nodes[chunkNode.NodeID] = &chunkNode
			sn := nodes[sectionNode.NodeID]
			sn.Children = append(sn.Children, chunkNode.NodeID)

			edge := models.GraphEdge{
				EdgeID:   fmt.Sprintf("contains_%s_%s", sectionNode.NodeID, chunkNode.NodeID),
				SourceID: sectionNode.NodeID,
				TargetID: chunkNode.NodeID,
				EdgeType: models.EdgeContains,
				Weight:   1.0,
			}
			edges = append(edges, edge)
			relationships = append(relationships, RelationshipRow{
				SourceType: "graph", SourceID: edge.SourceID, TargetID: edge.TargetID,
				EdgeType: string(edge.EdgeType), Weight: edge.Weight,
			})
		}
	}

	tocEdges := buildTocHierarchy(chunks)
	for _, edge := range tocEdges {
		if _, ok := nodes[edge.SourceID]; !ok {
			n := models.NewGraphNode(edge.SourceID, models.NodeSection, edge.SourceID)
			nodes[edge.SourceID] = &n
		}
		if _, ok := nodes[edge.TargetID]; !ok {
			n := models.NewGraphNode(edge.TargetID, models.NodeSection, edge.TargetID)
			nodes[edge.TargetID] = &n
		}
		edges = append(edges, edge)
		relationships = append(relationships, RelationshipRow{
			SourceType: "graph", SourceID: edge.SourceID, TargetID: edge.TargetID,
			EdgeType: string(edge.EdgeType), Weight: edge.Weight,
		})
	}

	crossRefs := extractCrossReferences(chunks)
	for _, ref := range crossRefs {
		relationships = append(relationships, RelationshipRow{
			SourceType: "cross_reference", SourceID: ref.SourceElement, TargetID: ref.TargetElement,
			EdgeType: ref.RefType, Confidence: ref.Confidence, Context: ref.Context,
		})
	}

	refsByChunk := map[string][]models.CrossReference{}
	for i, c := range chunks {
		for _, ref := range crossRefs {
			if strings.Contains(c.Content, ref.SourceElement) || strings.Contains(c.Content, ref.TargetElement) {
				refsByChunk[c.ChunkID] = append(refsByChunk[c.ChunkID], ref)
			}
		}
		_ = i
	}

	enriched := make([]models.Chunk, len(chunks))
	for i, c := range chunks {
		c.Stage = models.StageGraphEnriched
		refs := refsByChunk[c.ChunkID]
		c.GraphRefs = graphRefIDs(refs)
		sectionTitle := sectionGroups[sectionKey(c)][0].TocPath
		if sectionTitle == "" {
			sectionTitle = fmt.Sprintf("Section %s", c.SectionID)
		}
		c.TocLineage = []string{sectionTitle}
		c.RelatedIDs = relatedIDs(refs, 10)
		updated := now
		c.GraphUpdatedAt = &updated
		enriched[i] = c
	}

	snapshot := models.GraphSnapshot{
		Nodes:           flattenNodes(nodes),
		Edges:           edges,
		CrossReferences: crossRefs,
	}

	return Result{
		Snapshot:       snapshot,
		AliasMap:       buildAliasMap(crossRefs),
		EnrichedChunks: enriched,
		Relationships:  relationships,
	}
}

func sectionKey(c models.Chunk) string {
	return c.TocPath + "\x00" + c.SectionID
}

func groupBySection(chunks []models.Chunk) ([]string, map[string][]models.Chunk) {
	groups := map[string][]models.Chunk{}
	var order []string
	for _, c := range chunks {
		key := sectionKey(c)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}
	sort.Strings(order)
	return order, groups
}

func buildSectionNode(key string, group []models.Chunk) models.GraphNode {
	sectionID := group[0].SectionID
	title := group[0].TocPath
	if title == "" {
		title = fmt.Sprintf("Section %s", sectionID)
	}
	node := models.NewGraphNode("section_"+sectionID, models.NodeSection, title)
	node.Metadata = map[string]interface{}{
		"chunk_count": len(group),
		"toc_path":    group[0].TocPath,
		"section_id":  sectionID,
	}
	return node
}

const chunkContentPreview = 200

func buildChunkNode(c models.Chunk, parentID string) models.GraphNode {
	content := c.Content
	if len(content) > chunkContentPreview {
		content = content[:chunkContentPreview]
	}
	node := models.NewGraphNode(c.ChunkID, models.NodeChunk, c.ChunkID)
	node.Content = content
	node.ParentID = parentID
	node.Metadata = map[string]interface{}{
		"page_number":      c.PageNumber,
		"element_type":     c.ElementType,
		"confidence_score": c.ConfidenceScore,
	}
	return node
}

// buildTocHierarchy emits hierarchy edges between synthetic toc_* nodes
// for every distinct multi-part toc_path, walking each path's parts
// left to right.
func buildTocHierarchy(chunks []models.Chunk) []models.GraphEdge {
	seen := map[string]bool{}
	var edges []models.GraphEdge
	var paths []string
	for _, c := range chunks {
		if strings.Contains(c.TocPath, " > ") && !seen[c.TocPath] {
			seen[c.TocPath] = true
			paths = append(paths, c.TocPath)
		}
	}
	sort.Strings(paths)

	for _, path := range paths {
		parts := strings.Split(path, " > ")
		for i := 0; i+1 < len(parts); i++ {
			src := tocNodeID(strings.Join(parts[:i+1], " > "))
			dst := tocNodeID(strings.Join(parts[:i+2], " > "))
			edges = append(edges, models.GraphEdge{
				EdgeID:   fmt.Sprintf("hierarchy_%s_%s", src, dst),
				SourceID: src,
				TargetID: dst,
				EdgeType: models.EdgeHierarchy,
				Weight:   1.0,
			})
		}
	}
	return edges
}

func tocNodeID(path string) string {
	id := strings.ToLower(strings.ReplaceAll(path, " ", "_"))
	return "toc_" + id
}

func flattenNodes(nodes map[string]*models.GraphNode) []models.GraphNode {
	ids := make([]string, 0, len(nodes))
	for id := range nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]models.GraphNode, 0, len(ids))
	for _, id := range ids {
		out = append(out, *nodes[id])
	}
	return out
}

// Cross-reference regex sweeps, spec §4.7 step 5.
var (
	spellRe = regexp.MustCompile(`\b([A-Z][a-z]+(?: [A-Z][a-z]+)*) \(spell\)|(?:cast|casting) ([A-Z][a-z]+(?:[ -][A-Z][a-z]+)*)`)
	classRe = regexp.MustCompile(`\b(Fighter|Wizard|Rogue|Cleric|Barbarian|Ranger|Paladin|Sorcerer|Warlock|Bard|Druid|Monk)\b`)
	featRe  = regexp.MustCompile(`\b([A-Z][a-z]+ [A-Z][a-z]+) \(feat\)|gains? the ([A-Z][a-z]+ [A-Z][a-z]+) feat`)
	ruleRe  = regexp.MustCompile(`\b(Attack of Opportunity|Sneak Attack|Rage|Spellcasting|Turn Undead)\b`)
)

const crossRefContextLen = 200

// extractCrossReferences applies the four regex sweeps per chunk and
// enumerates (spell,class), (feat,class), (rule,class) pairs.
func extractCrossReferences(chunks []models.Chunk) []models.CrossReference {
	var refs []models.CrossReference
	seq := 0

	for _, c := range chunks {
		spells := firstGroupMatches(spellRe, c.Content)
		classes := uniqueMatches(classRe.FindAllString(c.Content, -1))
		feats := firstGroupMatches(featRe, c.Content)
		rules := uniqueMatches(ruleRe.FindAllString(c.Content, -1))

		context := c.Content
		if len(context) > crossRefContextLen {
			context = context[:crossRefContextLen]
		}

		for _, spell := range spells {
			for _, class := range classes {
				seq++
				refs = append(refs, models.CrossReference{
					RefID: fmt.Sprintf("xref_%d", seq), SourceElement: spell, TargetElement: class,
					RefType: string(models.EdgeSpellToClass), Confidence: 0.7, Context: context,
				})
			}
		}
		for _, feat := range feats {
			for _, class := range classes {
				seq++
				refs = append(refs, models.CrossReference{
					RefID: fmt.Sprintf("xref_%d", seq), SourceElement: feat, TargetElement: class,
					RefType: string(models.EdgeFeatToClass), Confidence: 0.8, Context: context,
				})
			}
		}
		for _, rule := range rules {
			for _, class := range classes {
				seq++
				refs = append(refs, models.CrossReference{
					RefID: fmt.Sprintf("xref_%d", seq), SourceElement: rule, TargetElement: class,
					RefType: string(models.EdgeRuleToClass), Confidence: 0.6, Context: context,
				})
			}
		}
	}
	return refs
}

func firstGroupMatches(re *regexp.Regexp, text string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		for _, g := range m[1:] {
			if g != "" && !seen[g] {
				seen[g] = true
				out = append(out, g)
			}
		}
	}
	return out
}

func uniqueMatches(matches []string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range matches {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

func graphRefIDs(refs []models.CrossReference) []string {
	var out []string
	for _, r := range refs {
		out = append(out, r.RefID)
	}
	return out
}

func relatedIDs(refs []models.CrossReference, max int) []string {
	seen := map[string]bool{}
	var out []string
	for _, r := range refs {
		for _, el := range []string{r.SourceElement, r.TargetElement} {
			if !seen[el] {
				seen[el] = true
				out = append(out, el)
				if len(out) >= max {
					return out
				}
			}
		}
	}
	return out
}

// buildAliasMap builds an undirected adjacency map from cross-references
// at or above minAliasConfidence, spec §4.7 step 8.
func buildAliasMap(refs []models.CrossReference) map[string][]string {
	adj := map[string]map[string]bool{}
	add := func(a, b string) {
		if adj[a] == nil {
			adj[a] = map[string]bool{}
		}
		adj[a][b] = true
	}
	for _, r := range refs {
		if r.Confidence < minAliasConfidence {
			continue
		}
		add(r.SourceElement, r.TargetElement)
		add(r.TargetElement, r.SourceElement)
	}

	out := map[string][]string{}
	for node, neighbors := range adj {
		var list []string
		for n := range neighbors {
			list = append(list, n)
		}
		sort.Strings(list)
		out[node] = list
	}
	return out
}

// DictionaryCategory infers a dictionary category for a cross-reference
// element, per spec §4.7 step 7, from a short rule list checked in order:
// "spell" -> spells, "feat" -> feats, a known class name -> classes,
// "rule"/"attack"/"rage" -> mechanics, anything else -> general. This is a
// smaller rule set than Pass A's ToC categoriser.
func DictionaryCategory(element string) models.DictCategory {
	lower := strings.ToLower(element)
	switch {
	case strings.Contains(lower, "spell"):
		return models.CategorySpells
	case strings.Contains(lower, "feat"):
		return models.CategoryFeats
	case isKnownClass(element):
		return models.CategoryClasses
	case strings.Contains(lower, "rule") || strings.Contains(lower, "attack") || strings.Contains(lower, "rage"):
		return models.CategoryMechanics
	default:
		return models.CategoryGeneral
	}
}

func isKnownClass(element string) bool {
	return classRe.MatchString(element)
}

// ElementHash is used to build deterministic cross-reference-derived
// dictionary term IDs when no other identity is available.
func ElementHash(element string) string {
	sum := sha256.Sum256([]byte(element))
	return hex.EncodeToString(sum[:])[:12]
}
