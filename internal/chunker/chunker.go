// Package chunker implements the pure chunk-shaping logic Pass D applies
// before enrichment: size normalisation (split oversized, merge
// undersized neighbours), content-hash deduplication, and the
// entity/keyword extraction and scoring helpers that turn a raw chunk
// into an enriched one.
package chunker

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"ttrpg-ingest/internal/models"
)

// Config bundles the size knobs Pass D's normalisation step honors.
type Config struct {
	MaxChars int
	HardCap  int
	MinChars int
	Overlap  int
	SplitBy  string // "word" or "sentence"
}

// DefaultConfig matches spec §6's CHUNK_* defaults.
var DefaultConfig = Config{MaxChars: 500, HardCap: 600, MinChars: 120, Overlap: 60, SplitBy: "word"}

// Normalize splits any chunk whose content exceeds cfg.MaxChars into
// children, then merges adjacent small neighbours back together.
func Normalize(chunks []models.Chunk, cfg Config) []models.Chunk {
	var out []models.Chunk
	for _, c := range chunks {
		if len(c.Content) <= cfg.MaxChars {
			out = append(out, c)
			continue
		}
		out = append(out, splitChunk(c, cfg)...)
	}
	return mergeSmallNeighbors(out, cfg)
}

// splitChunk breaks one oversized chunk into word- or sentence-bounded
// children respecting MaxChars (soft) and HardCap (hard), carrying
// Overlap characters of context between adjacent children.
func splitChunk(c models.Chunk, cfg Config) []models.Chunk {
	var units []string
	if cfg.SplitBy == "sentence" {
		units = splitSentences(c.Content)
	} else {
		units = strings.Fields(c.Content)
	}
	if len(units) == 0 {
		return []models.Chunk{c}
	}

	var children []models.Chunk
	var current strings.Builder
	index := 1

	flush := func() {
		if current.Len() == 0 {
			return
		}
		child := c
		child.Content = strings.TrimSpace(current.String())
		child.ChunkID = fmt.Sprintf("%s_%d", c.ChunkID, index)
		child.ParentChunkID = c.ChunkID
		children = append(children, child)
		index++
	}

	overlapCarry := ""
	for _, u := range units {
		candidate := current.String()
		if candidate == "" {
			candidate = overlapCarry
		}
		if candidate != "" {
			candidate += " "
		}
		candidate += u
		if len(candidate) > cfg.HardCap && current.Len() > 0 {
			overlapCarry = lastNChars(current.String(), cfg.Overlap)
			flush()
			current.Reset()
			current.WriteString(overlapCarry)
			if overlapCarry != "" {
				current.WriteString(" ")
			}
			current.WriteString(u)
			continue
		}
		current.Reset()
		current.WriteString(candidate)
		if len(candidate) >= cfg.MaxChars {
			overlapCarry = lastNChars(candidate, cfg.Overlap)
			flush()
			current.Reset()
		}
	}
	flush()

	if len(children) == 0 {
		return []models.Chunk{c}
	}
	return children
}

func lastNChars(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

var sentenceBoundary = regexp.MustCompile(`(?:[.!?])\s+`)

func splitSentences(text string) []string {
	parts := sentenceBoundary.Split(text, -1)
	var out []string
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return out
}

// mergeSmallNeighbors folds adjacent chunks into one another whenever
// the combined size stays within MaxChars and either side is below
// MinChars.
func mergeSmallNeighbors(chunks []models.Chunk, cfg Config) []models.Chunk {
	if len(chunks) <= 1 {
		return chunks
	}

	merged := []models.Chunk{chunks[0]}
	for _, next := range chunks[1:] {
		last := &merged[len(merged)-1]
		combined := len(last.Content) + 1 + len(next.Content)
		if combined <= cfg.MaxChars && (len(last.Content) < cfg.MinChars || len(next.Content) < cfg.MinChars) {
			last.Content = last.Content + " " + next.Content
			continue
		}
		merged = append(merged, next)
	}
	return merged
}

// Deduplicate keys chunks by MD5(content); the first occurrence wins
// and absorbs subsequent duplicates' page spans (comma-appended if new).
func Deduplicate(chunks []models.Chunk) []models.Chunk {
	seen := map[string]int{}
	var out []models.Chunk

	for _, c := range chunks {
		key := ContentHashMD5(c.Content)
		if idx, ok := seen[key]; ok {
			existing := &out[idx]
			if !strings.Contains(existing.PageSpan, c.PageSpan) {
				if existing.PageSpan == "" {
					existing.PageSpan = c.PageSpan
				} else if c.PageSpan != "" {
					existing.PageSpan = existing.PageSpan + "," + c.PageSpan
				}
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, c)
	}
	return out
}

// ContentHashMD5 is the deduplication key.
func ContentHashMD5(content string) string {
	sum := md5.Sum([]byte(content))
	return hex.EncodeToString(sum[:])
}

// ChunkHashSHA256 is the persisted chunk_hash field.
func ChunkHashSHA256(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// VectorID formats "{jobId}_v_{chunk_hash[:12]}".
func VectorID(jobID, chunkHash string) string {
	n := 12
	if len(chunkHash) < n {
		n = len(chunkHash)
	}
	return fmt.Sprintf("%s_v_%s", jobID, chunkHash[:n])
}

// ConfidenceScore is min(1, len(content)/2000).
func ConfidenceScore(content string) float64 {
	score := float64(len(content)) / 2000.0
	if score > 1 {
		return 1
	}
	return score
}

var classNames = []string{
	"Fighter", "Wizard", "Rogue", "Cleric", "Barbarian",
	"Ranger", "Paladin", "Sorcerer", "Warlock", "Bard", "Druid", "Monk",
}

var ofTheRe = regexp.MustCompile(`\b[A-Z][a-z]+ (?:of|the) [A-Z][a-z]+\b`)
var capitalizedWordRe = regexp.MustCompile(`\b[A-Z][a-z]{3,}\b`)

const maxEntities = 10

// ExtractEntities unions "X of/the Y" matches, the fixed class-name
// list, and the first five capitalised words longer than 3 chars,
// capped at 10 entries.
func ExtractEntities(content string) []string {
	set := map[string]bool{}
	var ordered []string
	add := func(s string) {
		if s == "" || set[s] || len(ordered) >= maxEntities {
			return
		}
		set[s] = true
		ordered = append(ordered, s)
	}

	for _, m := range ofTheRe.FindAllString(content, -1) {
		add(m)
	}
	for _, cls := range classNames {
		if strings.Contains(content, cls) {
			add(cls)
		}
	}
	capMatches := capitalizedWordRe.FindAllString(content, -1)
	count := 0
	for _, m := range capMatches {
		if count >= 5 {
			break
		}
		add(m)
		count++
	}

	sort.Strings(ordered)
	if len(ordered) > maxEntities {
		ordered = ordered[:maxEntities]
	}
	return ordered
}

var fixedKeywordVocab = []string{
	"spell", "magic", "combat", "attack", "damage", "heal", "armor", "weapon",
	"class", "race", "feat", "skill", "ability", "level", "experience",
	"dungeon", "monster", "treasure", "quest", "adventure",
}

var keywordStopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true,
	"with": true, "this": true, "that": true, "from": true, "have": true,
}

const maxKeywords = 15

var wordTokenRe = regexp.MustCompile(`[a-zA-Z]+`)

// ExtractKeywords unions fixed TTRPG vocabulary hits with lowercase
// tokens (length >= 3, not stop-listed) appearing at least twice,
// capped at 15.
func ExtractKeywords(content string) []string {
	lower := strings.ToLower(content)

	set := map[string]bool{}
	var ordered []string
	add := func(s string) {
		if set[s] {
			return
		}
		set[s] = true
		ordered = append(ordered, s)
	}

	for _, kw := range fixedKeywordVocab {
		if strings.Contains(lower, kw) {
			add(kw)
		}
	}

	counts := map[string]int{}
	for _, tok := range wordTokenRe.FindAllString(lower, -1) {
		if len(tok) < 3 || keywordStopWords[tok] {
			continue
		}
		counts[tok]++
	}
	var repeated []string
	for tok, n := range counts {
		if n >= 2 {
			repeated = append(repeated, tok)
		}
	}
	sort.Strings(repeated)
	for _, tok := range repeated {
		add(tok)
	}

	if len(ordered) > maxKeywords {
		ordered = ordered[:maxKeywords]
	}
	return ordered
}
