package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	serrors "github.com/Aman-CERP/semsearch/internal/errors"
)

const (
	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is a general-purpose text embedding model.
	DefaultOllamaModel = "nomic-embed-text"

	// OllamaConnectTimeout bounds the startup health check.
	OllamaConnectTimeout = 5 * time.Second
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	// Host is the Ollama API endpoint (default: http://localhost:11434).
	Host string

	// Model is the embedding model to use.
	Model string

	// Dimensions pins the expected vector size (0 learns it from the first response).
	Dimensions int

	// Timeout bounds each HTTP attempt.
	Timeout time.Duration

	// Retry controls retries of transient failures.
	Retry serrors.RetryConfig

	// SkipHealthCheck skips the startup model check (for testing).
	SkipHealthCheck bool
}

// DefaultOllamaConfig returns sensible defaults.
func DefaultOllamaConfig() OllamaConfig {
	return OllamaConfig{
		Host:    DefaultOllamaHost,
		Model:   DefaultOllamaModel,
		Timeout: DefaultTimeout,
		Retry:   serrors.DefaultRetryConfig(),
	}
}

// ollamaEmbedRequest is the Ollama /api/embed request.
type ollamaEmbedRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

// ollamaEmbedResponse is the Ollama /api/embed response.
type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// ollamaTagsResponse is the Ollama /api/tags response.
type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// OllamaEmbedder generates embeddings using Ollama's HTTP API.
type OllamaEmbedder struct {
	client  *http.Client
	config  OllamaConfig
	breaker *serrors.CircuitBreaker

	mu     sync.RWMutex
	dims   int
	closed bool
}

var _ Embedder = (*OllamaEmbedder)(nil)

// NewOllamaEmbedder creates an Ollama embedder and, unless skipped, checks
// that the server is reachable and has the model installed.
func NewOllamaEmbedder(ctx context.Context, cfg OllamaConfig) (*OllamaEmbedder, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	cfg.Host = strings.TrimRight(cfg.Host, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = serrors.DefaultRetryConfig()
	}
	cfg.Retry.ShouldRetry = serrors.IsRetryable

	e := &OllamaEmbedder{
		// Per-attempt deadlines come from the request context.
		client:  &http.Client{},
		config:  cfg,
		breaker: serrors.NewCircuitBreaker("ollama"),
		dims:    cfg.Dimensions,
	}

	if !cfg.SkipHealthCheck {
		checkCtx, cancel := context.WithTimeout(ctx, OllamaConnectTimeout)
		defer cancel()
		if err := e.checkModel(checkCtx); err != nil {
			return nil, err
		}
	}

	return e, nil
}

// checkModel verifies the configured model is installed, matching with or
// without a tag (":latest").
func (e *OllamaEmbedder) checkModel(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.config.Host+"/api/tags", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return serrors.New(serrors.ErrCodeProviderUnavailable, "failed to connect to Ollama", err).
			WithSuggestion("Start Ollama with 'ollama serve' or set embeddings.provider to static")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return serrors.Newf(serrors.ErrCodeProviderUnavailable, "ollama returned status %d: %s", resp.StatusCode, string(body))
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return fmt.Errorf("failed to decode model list: %w", err)
	}

	want := strings.ToLower(e.config.Model)
	for _, m := range tags.Models {
		name := strings.ToLower(m.Name)
		if name == want || strings.Split(name, ":")[0] == want {
			return nil
		}
	}
	return serrors.Newf(serrors.ErrCodeEmbeddingFailed, "ollama model %q is not installed", e.config.Model).
		WithSuggestion(fmt.Sprintf("Run 'ollama pull %s'", e.config.Model))
}

// Embed generates the embedding for text, retrying transient failures and
// failing fast while the provider is known to be down.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	closed, dims := e.closed, e.dims
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	if strings.TrimSpace(text) == "" && dims > 0 {
		return make([]float32, dims), nil
	}

	vec, err := serrors.Guard(e.breaker, func() ([]float32, error) {
		return serrors.Retry(ctx, e.config.Retry, func(ctx context.Context) ([]float32, error) {
			return e.embedOnce(ctx, text)
		})
	})
	if err != nil {
		if errors.Is(err, serrors.ErrCircuitOpen) {
			return nil, serrors.New(serrors.ErrCodeProviderUnavailable, "ollama is unavailable, retrying later", err)
		}
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.dims == 0 {
		e.dims = len(vec)
		slog.Debug("learned embedding dimensions", slog.String("model", e.config.Model), slog.Int("dims", e.dims))
	} else if len(vec) != e.dims {
		return nil, serrors.Newf(serrors.ErrCodeDimensionMismatch, "ollama returned %d dimensions, expected %d", len(vec), e.dims)
	}
	return vec, nil
}

func (e *OllamaEmbedder) embedOnce(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.config.Model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, serrors.New(serrors.ErrCodeProviderUnavailable, "ollama request failed", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		code := serrors.ErrCodeEmbeddingFailed
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			code = serrors.ErrCodeProviderUnavailable
		}
		return nil, serrors.Newf(code, "ollama embed failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, serrors.New(serrors.ErrCodeEmbeddingFailed, "failed to decode ollama response", err)
	}
	if len(result.Embeddings) == 0 || len(result.Embeddings[0]) == 0 {
		return nil, serrors.New(serrors.ErrCodeEmbeddingFailed, "ollama returned an empty embedding", nil)
	}

	vec := make([]float32, len(result.Embeddings[0]))
	for i, v := range result.Embeddings[0] {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Dimensions returns the configured or learned dimension (0 before the first call).
func (e *OllamaEmbedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dims
}

// ModelName returns the model identifier.
func (e *OllamaEmbedder) ModelName() string {
	return "ollama/" + e.config.Model
}

// Available checks the server and the breaker.
func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed || e.breaker.State() == serrors.StateOpen {
		return false
	}
	return e.checkModel(ctx) == nil
}

// Close releases idle connections.
func (e *OllamaEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	e.client.CloseIdleConnections()
	return nil
}
