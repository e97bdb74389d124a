package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

// OllamaEmbedder calls a local or remote Ollama server's embeddings
// endpoint, adapted from the teacher's embedding client: the same
// retry-with-backoff single-call path and semaphore-bounded batch path,
// reworked to return float32 vectors (the data model's embedding field
// type) and to operate over plain strings rather than a domain-specific
// chunk type.
type OllamaEmbedder struct {
	Client        *api.Client
	Model         string
	MaxRetries    int
	Timeout       time.Duration
	MaxConcurrent int
	dim           int
}

// NewOllamaEmbedder builds an embedder against host (empty uses the
// OLLAMA_HOST environment default), requesting model.
func NewOllamaEmbedder(host, model string, dim int) (*OllamaEmbedder, error) {
	hostURL := envconfig.Host()
	if host != "" {
		if parsed, err := url.Parse(host); err == nil {
			hostURL = parsed
		}
	}

	client := api.NewClient(hostURL, http.DefaultClient)

	return &OllamaEmbedder{
		Client:        client,
		Model:         model,
		MaxRetries:    3,
		Timeout:       30 * time.Second,
		MaxConcurrent: 4,
		dim:           dim,
	}, nil
}

// Dimension returns the configured embedding width.
func (e *OllamaEmbedder) Dimension() int { return e.dim }

// Embed requests a single embedding, retrying with a linear backoff on
// transient failures.
func (e *OllamaEmbedder) Embed(text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= e.MaxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(time.Duration(attempt) * time.Second)
		}
		vec, err := e.createEmbedding(text)
		if err == nil {
			return vec, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("embedding: ollama embed failed after %d attempts: %w", e.MaxRetries+1, lastErr)
}

func (e *OllamaEmbedder) createEmbedding(text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(context.Background(), e.Timeout)
	defer cancel()

	req := &api.EmbeddingRequest{
		Model:   e.Model,
		Prompt:  TruncateInput(text),
		Options: map[string]any{},
	}

	resp, err := e.Client.Embeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("embedding: ollama request: %w", err)
	}

	vec := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// EmbedBatch embeds every entry in texts concurrently, bounded by
// MaxConcurrent, collecting the first error encountered if any call
// fails. Results preserve input order.
func (e *OllamaEmbedder) EmbedBatch(texts []string) ([][]float32, error) {
	return e.EmbedBatchWithProgress(texts, nil)
}

// EmbedBatchWithProgress is EmbedBatch with an optional progress
// callback invoked after each embedding completes.
func (e *OllamaEmbedder) EmbedBatchWithProgress(texts []string, progressFunc func(processed, total int)) ([][]float32, error) {
	results := make([][]float32, len(texts))
	semaphore := make(chan struct{}, e.MaxConcurrent)
	errChan := make(chan error, len(texts))

	var wg sync.WaitGroup
	var mu sync.Mutex
	processed := 0

	for i, text := range texts {
		wg.Add(1)
		go func(i int, text string) {
			defer wg.Done()
			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			vec, err := e.Embed(text)
			if err != nil {
				errChan <- err
				return
			}

			mu.Lock()
			results[i] = vec
			processed++
			if progressFunc != nil {
				progressFunc(processed, len(texts))
			}
			mu.Unlock()
		}(i, text)
	}

	wg.Wait()
	close(errChan)

	if err, ok := <-errChan; ok {
		return results, err
	}
	return results, nil
}
