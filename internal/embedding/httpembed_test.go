package embedding

import "testing"

func TestHTTPEmbedderNoAPIKeyReturnsZeroVector(t *testing.T) {
	e := NewHTTPEmbedder("https://api.openai.com/v1", "", "text-embedding-3-small", 1024)
	vec, err := e.Embed("hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 1024 {
		t.Fatalf("expected zero vector of length 1024, got %d", len(vec))
	}
	for _, v := range vec {
		if v != 0 {
			t.Fatalf("expected all-zero vector when no API key configured")
		}
	}
}

func TestHTTPEmbedderDimension(t *testing.T) {
	e := NewHTTPEmbedder("https://api.openai.com/v1", "key", "text-embedding-3-small", 1536)
	if e.Dimension() != 1536 {
		t.Fatalf("Dimension() = %d, want 1536", e.Dimension())
	}
}
