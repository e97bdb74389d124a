package extractor

import "testing"

func TestParseTocLineDottedLeader(t *testing.T) {
	title, page, ok := parseTocLine("Chapter 1 Introduction ..... 12")
	if !ok {
		t.Fatalf("expected match")
	}
	if page != 12 {
		t.Fatalf("page = %d, want 12", page)
	}
	if title == "" {
		t.Fatalf("expected non-empty title")
	}
}

func TestParseTocLineNoPageNumber(t *testing.T) {
	_, _, ok := parseTocLine("This line has no trailing number")
	if ok {
		t.Fatalf("expected no match for a line without a trailing page number")
	}
}

func TestDetermineLevelChapter(t *testing.T) {
	if lvl := DetermineLevel("Chapter 3: Combat", 0); lvl != 1 {
		t.Fatalf("Chapter title level = %d, want 1", lvl)
	}
}

func TestDetermineLevelAppendix(t *testing.T) {
	if lvl := DetermineLevel("Appendix A: Tables", 0); lvl != 1 {
		t.Fatalf("Appendix title level = %d, want 1", lvl)
	}
}

func TestDetermineLevelNumberedSubsection(t *testing.T) {
	if lvl := DetermineLevel("3.2 Saving Throws", 0); lvl != 3 {
		t.Fatalf("3.2 title level = %d, want 3", lvl)
	}
	if lvl := DetermineLevel("3. Saving Throws", 0); lvl != 2 {
		t.Fatalf("3. title level = %d, want 2", lvl)
	}
}

func TestDetermineLevelLeadingWhitespace(t *testing.T) {
	if lvl := DetermineLevel("Some Subsection", 12); lvl != 3 {
		t.Fatalf("deep indent level = %d, want 3", lvl)
	}
	if lvl := DetermineLevel("Some Subsection", 7); lvl != 2 {
		t.Fatalf("medium indent level = %d, want 2", lvl)
	}
}

func TestMatchHeadingLineLevel1(t *testing.T) {
	title, level, ok := matchHeadingLine("Chapter 2: Magic Items")
	if !ok || level != 1 {
		t.Fatalf("expected level 1 heading match, got ok=%v level=%d", ok, level)
	}
	if title != "Magic Items" {
		t.Fatalf("title = %q, want %q", title, "Magic Items")
	}
}

func TestMatchHeadingLineLevel2(t *testing.T) {
	_, level, ok := matchHeadingLine("4.1 Spellcasting Basics")
	if !ok || level != 2 {
		t.Fatalf("expected level 2 heading match, got ok=%v level=%d", ok, level)
	}
}

func TestParagraphs(t *testing.T) {
	text := "First paragraph.\n\n\nSecond paragraph.\n\nThird."
	paras := Paragraphs(text)
	if len(paras) != 3 {
		t.Fatalf("len(paras) = %d, want 3: %v", len(paras), paras)
	}
}
