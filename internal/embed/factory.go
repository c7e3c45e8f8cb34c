package embed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// ProviderType represents an embedding provider.
type ProviderType string

const (
	// ProviderStatic uses hash-based embeddings, no network.
	ProviderStatic ProviderType = "static"

	// ProviderOllama uses the Ollama HTTP API.
	ProviderOllama ProviderType = "ollama"
)

// Options selects and configures the embedding provider.
type Options struct {
	Provider   ProviderType
	Model      string
	Dimensions int
	OllamaHost string
	Timeout    time.Duration
	// CacheSize wraps the provider in an LRU of this many vectors (0 disables).
	CacheSize int
}

// NewEmbedder constructs the configured provider. An explicitly selected
// provider that cannot start is an error; there is no silent fallback,
// because vectors from different providers must never mix in one corpus.
func NewEmbedder(ctx context.Context, opts Options) (Embedder, error) {
	var embedder Embedder

	switch ProviderType(strings.ToLower(string(opts.Provider))) {
	case ProviderStatic, "":
		embedder = NewStaticEmbedderWithDimensions(opts.Dimensions)

	case ProviderOllama:
		cfg := DefaultOllamaConfig()
		if opts.OllamaHost != "" {
			cfg.Host = opts.OllamaHost
		}
		if opts.Model != "" {
			cfg.Model = opts.Model
		}
		if opts.Timeout > 0 {
			cfg.Timeout = opts.Timeout
		}
		cfg.Dimensions = opts.Dimensions

		ollama, err := NewOllamaEmbedder(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("ollama embedder: %w", err)
		}
		embedder = ollama

	default:
		return nil, fmt.Errorf("unknown embedding provider %q", opts.Provider)
	}

	slog.Info("embedder ready",
		slog.String("model", embedder.ModelName()),
		slog.Int("dimensions", embedder.Dimensions()),
		slog.Int("cache_size", opts.CacheSize))

	if opts.CacheSize > 0 {
		return NewCachedEmbedder(embedder, opts.CacheSize), nil
	}
	return embedder, nil
}
