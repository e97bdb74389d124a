package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPEmbedder calls an OpenAI-compatible embeddings endpoint: POST a
// JSON body of {model, input}, receive {data:[{embedding:[]float32}]}.
// This is the generic "Embedding service" contract spec §6 names for
// deployments that don't run Ollama.
type HTTPEmbedder struct {
	BaseURL    string
	APIKey     string
	Model      string
	HTTPClient *http.Client
	dim        int
}

// NewHTTPEmbedder builds an embedder against an OpenAI-compatible base
// URL (e.g. "https://api.openai.com/v1").
func NewHTTPEmbedder(baseURL, apiKey, model string, dim int) *HTTPEmbedder {
	return &HTTPEmbedder{
		BaseURL:    baseURL,
		APIKey:     apiKey,
		Model:      model,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		dim:        dim,
	}
}

// Dimension returns the configured embedding width.
func (e *HTTPEmbedder) Dimension() int { return e.dim }

type embeddingRequestBody struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponseBody struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed truncates text to the service's input limit and returns the
// first embedding in the response's data array. If no API key is
// configured, it returns a zero vector rather than attempting a call
// that would only fail authentication.
func (e *HTTPEmbedder) Embed(text string) ([]float32, error) {
	if e.APIKey == "" {
		return ZeroVector(e.dim), nil
	}

	body, err := json.Marshal(embeddingRequestBody{Model: e.Model, Input: TruncateInput(text)})
	if err != nil {
		return nil, fmt.Errorf("embedding: marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), e.HTTPClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("embedding: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.APIKey)

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding: service returned status %d", resp.StatusCode)
	}

	var parsed embeddingResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("embedding: decode response: %w", err)
	}
	if len(parsed.Data) == 0 {
		return nil, fmt.Errorf("embedding: empty data array in response")
	}

	return parsed.Data[0].Embedding, nil
}
