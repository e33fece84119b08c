package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

const (
	defaultGeminiURL        = "https://generativelanguage.googleapis.com"
	defaultGeminiModel      = "text-embedding-004"
	defaultGeminiDims       = 768
	defaultGeminiTimeout    = 60 * time.Second
	defaultGeminiMaxRetries = 3
	defaultGeminiRetryDelay = 1 * time.Second
)

// GeminiConfig holds configuration for the Gemini embedding provider.
type GeminiConfig struct {
	APIKey        string
	Model         string
	Dimensions    int
	BaseURL       string
	Timeout       time.Duration
	MaxRetries    int
	RetryInterval time.Duration
}

// DefaultGeminiConfig returns a default configuration for Gemini.
func DefaultGeminiConfig() GeminiConfig {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GPAL_GEMINI_API_KEY")
	}

	baseURL := os.Getenv("GPAL_GEMINI_BASE_URL")
	if baseURL == "" {
		baseURL = defaultGeminiURL
	}

	return GeminiConfig{
		APIKey:        apiKey,
		Model:         defaultGeminiModel,
		Dimensions:    defaultGeminiDims,
		BaseURL:       baseURL,
		Timeout:       defaultGeminiTimeout,
		MaxRetries:    defaultGeminiMaxRetries,
		RetryInterval: defaultGeminiRetryDelay,
	}
}

// GeminiProvider implements the Provider interface using the Gemini API.
type GeminiProvider struct {
	config GeminiConfig
	client *http.Client
}

// geminiEmbedRequest is one entry in a batchEmbedContents request.
type geminiEmbedRequest struct {
	Model    string        `json:"model"`
	Content  geminiContent `json:"content"`
	TaskType string        `json:"taskType,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

// geminiBatchRequest is the request body for batchEmbedContents.
type geminiBatchRequest struct {
	Requests []geminiEmbedRequest `json:"requests"`
}

// geminiBatchResponse is the response from batchEmbedContents.
type geminiBatchResponse struct {
	Embeddings []struct {
		Values []float32 `json:"values"`
	} `json:"embeddings"`
}

// geminiErrorResponse represents an error response from the Gemini API.
type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// NewGeminiProvider creates a new Gemini embedding provider.
func NewGeminiProvider(cfg GeminiConfig) *GeminiProvider {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
		if cfg.APIKey == "" {
			cfg.APIKey = os.Getenv("GPAL_GEMINI_API_KEY")
		}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = os.Getenv("GPAL_GEMINI_BASE_URL")
		if cfg.BaseURL == "" {
			cfg.BaseURL = defaultGeminiURL
		}
	}
	if cfg.Model == "" {
		cfg.Model = defaultGeminiModel
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = defaultGeminiDims
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultGeminiTimeout
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultGeminiMaxRetries
	}
	if cfg.RetryInterval == 0 {
		cfg.RetryInterval = defaultGeminiRetryDelay
	}

	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &GeminiProvider{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// EmbedBatch generates embeddings for the given texts under the given task type.
func (p *GeminiProvider) EmbedBatch(ctx context.Context, texts []string, task TaskType) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if p.config.APIKey == "" {
		return nil, NewProviderError("gemini", "embed", fmt.Errorf("API key not configured"))
	}

	var lastErr error
	for attempt := 0; attempt < p.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, NewProviderError("gemini", "embed", ErrContextCanceled)
			case <-time.After(p.config.RetryInterval * time.Duration(1<<uint(attempt-1))):
			}
		}

		vectors, err := p.doEmbedBatch(ctx, texts, task)
		if err == nil {
			return vectors, nil
		}

		lastErr = err
		if err == ErrContextCanceled {
			return nil, NewProviderError("gemini", "embed", err)
		}
		// Retry on rate limiting and transient server errors only.
		msg := err.Error()
		if strings.Contains(msg, "RESOURCE_EXHAUSTED") || strings.Contains(msg, "429") ||
			strings.Contains(msg, "UNAVAILABLE") || strings.Contains(msg, "503") {
			continue
		}
		return nil, NewProviderError("gemini", "embed", err)
	}

	return nil, NewProviderError("gemini", "embed", lastErr)
}

// doEmbedBatch performs a single batchEmbedContents request.
func (p *GeminiProvider) doEmbedBatch(ctx context.Context, texts []string, task TaskType) ([][]float32, error) {
	model := p.config.Model
	if !strings.HasPrefix(model, "models/") {
		model = "models/" + model
	}

	reqBody := geminiBatchRequest{
		Requests: make([]geminiEmbedRequest, len(texts)),
	}
	for i, text := range texts {
		reqBody.Requests[i] = geminiEmbedRequest{
			Model:    model,
			Content:  geminiContent{Parts: []geminiPart{{Text: text}}},
			TaskType: string(task),
		}
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/%s:batchEmbedContents", p.config.BaseURL, model)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.config.APIKey)

	resp, err := p.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ErrContextCanceled
		}
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp geminiErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("gemini error %d (%s): %s",
				resp.StatusCode, errResp.Error.Status, errResp.Error.Message)
		}
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var embResp geminiBatchResponse
	if err := json.Unmarshal(body, &embResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if len(embResp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embResp.Embeddings))
	}

	vectors := make([][]float32, len(texts))
	for i, e := range embResp.Embeddings {
		if len(e.Values) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", i)
		}
		vectors[i] = e.Values
	}

	return vectors, nil
}

// Model returns the name of the embedding model.
func (p *GeminiProvider) Model() string {
	return p.config.Model
}

// Dimensions returns the embedding vector dimensions.
func (p *GeminiProvider) Dimensions() int {
	return p.config.Dimensions
}

// Ping checks if the Gemini API is reachable and the API key is valid.
func (p *GeminiProvider) Ping(ctx context.Context) error {
	if p.config.APIKey == "" {
		return NewProviderError("gemini", "ping", fmt.Errorf("API key not configured"))
	}

	_, err := p.EmbedBatch(ctx, []string{"test"}, TaskQuery)
	if err != nil {
		return NewProviderError("gemini", "ping", err)
	}
	return nil
}

var _ Provider = (*GeminiProvider)(nil)
