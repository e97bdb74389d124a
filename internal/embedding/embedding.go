// Package embedding provides the Embedder interface Pass D enriches
// chunks through, plus dimension-reduction helpers and the two
// implementations the pack's stack supports: Ollama (grounded on the
// teacher's internal/embedding/ollama.go) and a generic OpenAI-contract
// HTTP client (spec §6's "Embedding service").
package embedding

// Embedder produces a single embedding vector for one piece of text.
// Pass D substitutes a zero vector and logs a warning when an Embedder
// call errors, rather than failing the pass.
type Embedder interface {
	Embed(text string) ([]float32, error)
	Dimension() int
}

// maxInputChars is the truncation length the external embedding service
// contract specifies.
const maxInputChars = 8000

// TruncateInput truncates text to the service's accepted input length.
func TruncateInput(text string) string {
	if len(text) <= maxInputChars {
		return text
	}
	return text[:maxInputChars]
}

// ReduceDimension reduces vec to targetDim using the configured method.
// "truncate" keeps the first targetDim components; "pca-1024" also
// truncates (PCA on a single vector degenerates to truncation, which the
// spec explicitly accepts as a known compromise rather than claiming a
// real PCA projection); "off" returns vec unchanged even if oversized.
func ReduceDimension(vec []float32, targetDim int, method string) []float32 {
	if method == "off" || len(vec) <= targetDim {
		return vec
	}
	switch method {
	case "truncate", "pca-1024":
		return vec[:targetDim]
	default:
		return vec[:targetDim]
	}
}

// ZeroVector returns a zero-filled embedding of the given dimension, used
// when no API key is configured or the embedding call errors.
func ZeroVector(dim int) []float32 {
	return make([]float32, dim)
}

// Reducing wraps an Embedder and applies ReduceDimension to every vector
// it returns, so Pass D can request a model-native embedder and still
// honor EMBED_DIM_REDUCTION/MODEL_DIM without every call site repeating
// the reduction logic.
type Reducing struct {
	Inner     Embedder
	TargetDim int
	Method    string
}

// NewReducing builds a Reducing wrapper around inner.
func NewReducing(inner Embedder, targetDim int, method string) *Reducing {
	return &Reducing{Inner: inner, TargetDim: targetDim, Method: method}
}

// Dimension returns the post-reduction width.
func (r *Reducing) Dimension() int { return r.TargetDim }

// Embed calls the wrapped embedder and reduces its output.
func (r *Reducing) Embed(text string) ([]float32, error) {
	vec, err := r.Inner.Embed(text)
	if err != nil {
		return nil, err
	}
	return ReduceDimension(vec, r.TargetDim, r.Method), nil
}
