package atomicfile

import (
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestWriteJSONRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.json")

	want := sample{Name: "pass_a", Count: 3}
	if err := WriteJSON(path, want); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	var got sample
	if err := ReadJSON(path, &got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
	if !Exists(path) {
		t.Fatalf("Exists(%s) = false, want true", path)
	}
}

func TestWriteJSONLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunks.jsonl")

	items := []interface{}{
		sample{Name: "a", Count: 1},
		sample{Name: "b", Count: 2},
	}
	if err := WriteJSONLines(path, items); err != nil {
		t.Fatalf("WriteJSONLines: %v", err)
	}
	if !Exists(path) {
		t.Fatalf("Exists(%s) = false, want true", path)
	}
}

func TestSHA256File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hash.json")
	if err := WriteJSON(path, sample{Name: "x", Count: 1}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	sum, err := SHA256File(path)
	if err != nil {
		t.Fatalf("SHA256File: %v", err)
	}
	if len(sum) != 64 {
		t.Fatalf("SHA256File length = %d, want 64", len(sum))
	}
}

func TestExistsMissing(t *testing.T) {
	if Exists(filepath.Join(t.TempDir(), "nope.json")) {
		t.Fatalf("Exists on missing file = true, want false")
	}
}
