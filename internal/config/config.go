package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete semsearch configuration.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Cache      CacheConfig      `yaml:"cache" json:"cache"`
	Server     ServerConfig     `yaml:"server" json:"server"`
}

// StorageConfig configures where and how corpora are persisted.
type StorageConfig struct {
	// Root is the directory holding one artifact group per corpus.
	Root string `yaml:"root" json:"root"`
	// Backend selects the artifact format: "file" or "sqlite".
	Backend string `yaml:"backend" json:"backend"`
	// Watch invalidates cached corpora when another process changes them.
	Watch         bool   `yaml:"watch" json:"watch"`
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// SearchConfig configures query ranking.
type SearchConfig struct {
	// TopK is the number of results returned when a request gives none.
	TopK int `yaml:"top_k" json:"top_k"`
	// MaxTopK caps any requested top_k.
	MaxTopK int `yaml:"max_top_k" json:"max_top_k"`
	// Engine selects "exact" (brute force) or "hnsw".
	Engine string `yaml:"engine" json:"engine"`

	// HNSW settings, ignored by the exact engine.
	HNSWMinDocuments int   `yaml:"hnsw_min_documents" json:"hnsw_min_documents"`
	HNSWOversample   int   `yaml:"hnsw_oversample" json:"hnsw_oversample"`
	HNSWM            int   `yaml:"hnsw_m" json:"hnsw_m"`
	HNSWEfSearch     int   `yaml:"hnsw_ef_search" json:"hnsw_ef_search"`
	HNSWSeed         int64 `yaml:"hnsw_seed" json:"hnsw_seed"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	OllamaHost string `yaml:"ollama_host" json:"ollama_host"`
	Timeout    string `yaml:"timeout" json:"timeout"`
	// CacheSize is the number of query embeddings kept in memory (0 disables).
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// CacheConfig configures the in-memory corpus cache.
type CacheConfig struct {
	MaxCorpora int `yaml:"max_corpora" json:"max_corpora"`
}

// ServerConfig configures the request server.
type ServerConfig struct {
	// Transport is "unix" (socket daemon) or "mcp" (stdio MCP server).
	Transport  string `yaml:"transport" json:"transport"`
	SocketPath string `yaml:"socket_path" json:"socket_path"`
	// Workers bounds concurrent request handling. 1 keeps requests strictly sequential.
	Workers  int    `yaml:"workers" json:"workers"`
	LogLevel string `yaml:"log_level" json:"log_level"`
}

// Backend, engine and transport names.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"

	EngineExact = "exact"
	EngineHNSW  = "hnsw"

	ProviderStatic = "static"
	ProviderOllama = "ollama"

	TransportUnix = "unix"
	TransportMCP  = "mcp"
)

// ProjectConfigName is the per-directory configuration file.
const ProjectConfigName = ".semsearch.yaml"

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Storage: StorageConfig{
			Root:          filepath.Join(DataDir(), "indexes"),
			Backend:       BackendFile,
			Watch:         false,
			WatchDebounce: "200ms",
		},
		Search: SearchConfig{
			TopK:             3,
			MaxTopK:          50,
			Engine:           EngineExact,
			HNSWMinDocuments: 1000,
			HNSWOversample:   4,
			HNSWM:            16,
			HNSWEfSearch:     64,
			HNSWSeed:         1,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   ProviderStatic,
			Model:      "nomic-embed-text",
			Dimensions: 0,
			OllamaHost: "",
			Timeout:    "30s",
			CacheSize:  1000,
		},
		Cache: CacheConfig{
			MaxCorpora: 64,
		},
		Server: ServerConfig{
			Transport:  TransportUnix,
			SocketPath: "",
			Workers:    1,
			LogLevel:   "info",
		},
	}
}

// DataDir returns the base directory for semsearch state (~/.semsearch).
// SEMSEARCH_HOME overrides it.
func DataDir() string {
	if v := os.Getenv("SEMSEARCH_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".semsearch")
	}
	return filepath.Join(home, ".semsearch")
}

// GetUserConfigPath returns the path to the user configuration file.
// It follows the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/semsearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/semsearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "semsearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "semsearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "semsearch", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// Load loads configuration for the given working directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User config (~/.config/semsearch/config.yaml)
//  3. Project config (.semsearch.yaml in dir)
//  4. .env in dir (never overrides variables already set)
//  5. Environment variables (SEMSEARCH_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if path := GetUserConfigPath(); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if path := filepath.Join(dir, ProjectConfigName); fileExists(path) {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	if path := filepath.Join(dir, ".env"); fileExists(path) {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Storage
	if other.Storage.Root != "" {
		c.Storage.Root = expandHome(other.Storage.Root)
	}
	if other.Storage.Backend != "" {
		c.Storage.Backend = other.Storage.Backend
	}
	if other.Storage.Watch {
		c.Storage.Watch = true
	}
	if other.Storage.WatchDebounce != "" {
		c.Storage.WatchDebounce = other.Storage.WatchDebounce
	}

	// Search
	if other.Search.TopK != 0 {
		c.Search.TopK = other.Search.TopK
	}
	if other.Search.MaxTopK != 0 {
		c.Search.MaxTopK = other.Search.MaxTopK
	}
	if other.Search.Engine != "" {
		c.Search.Engine = other.Search.Engine
	}
	if other.Search.HNSWMinDocuments != 0 {
		c.Search.HNSWMinDocuments = other.Search.HNSWMinDocuments
	}
	if other.Search.HNSWOversample != 0 {
		c.Search.HNSWOversample = other.Search.HNSWOversample
	}
	if other.Search.HNSWM != 0 {
		c.Search.HNSWM = other.Search.HNSWM
	}
	if other.Search.HNSWEfSearch != 0 {
		c.Search.HNSWEfSearch = other.Search.HNSWEfSearch
	}
	if other.Search.HNSWSeed != 0 {
		c.Search.HNSWSeed = other.Search.HNSWSeed
	}

	// Embeddings
	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.OllamaHost != "" {
		c.Embeddings.OllamaHost = other.Embeddings.OllamaHost
	}
	if other.Embeddings.Timeout != "" {
		c.Embeddings.Timeout = other.Embeddings.Timeout
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	// Cache
	if other.Cache.MaxCorpora != 0 {
		c.Cache.MaxCorpora = other.Cache.MaxCorpora
	}

	// Server
	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.SocketPath != "" {
		c.Server.SocketPath = expandHome(other.Server.SocketPath)
	}
	if other.Server.Workers != 0 {
		c.Server.Workers = other.Server.Workers
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies SEMSEARCH_* environment variable overrides.
// Malformed numeric values are reported rather than ignored.
func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv("SEMSEARCH_STORAGE_ROOT"); v != "" {
		c.Storage.Root = expandHome(v)
	}
	if v := os.Getenv("SEMSEARCH_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("SEMSEARCH_WATCH"); v != "" {
		c.Storage.Watch = parseBool(v)
	}
	if v := os.Getenv("SEMSEARCH_SEARCH_ENGINE"); v != "" {
		c.Search.Engine = v
	}
	if v := os.Getenv("SEMSEARCH_EMBEDDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("SEMSEARCH_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("SEMSEARCH_OLLAMA_HOST"); v != "" {
		c.Embeddings.OllamaHost = v
	}
	if v := os.Getenv("SEMSEARCH_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv("SEMSEARCH_SOCKET"); v != "" {
		c.Server.SocketPath = expandHome(v)
	}
	if v := os.Getenv("SEMSEARCH_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}

	ints := []struct {
		env string
		dst *int
	}{
		{"SEMSEARCH_TOP_K", &c.Search.TopK},
		{"SEMSEARCH_MAX_TOP_K", &c.Search.MaxTopK},
		{"SEMSEARCH_CACHE_MAX_CORPORA", &c.Cache.MaxCorpora},
		{"SEMSEARCH_WORKERS", &c.Server.Workers},
	}
	for _, o := range ints {
		v := os.Getenv(o.env)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer, got %q", o.env, v)
		}
		*o.dst = n
	}

	return nil
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Storage.Root == "" {
		return fmt.Errorf("storage.root must not be empty")
	}
	switch strings.ToLower(c.Storage.Backend) {
	case BackendFile, BackendSQLite:
	default:
		return fmt.Errorf("storage.backend must be 'file' or 'sqlite', got %s", c.Storage.Backend)
	}
	if _, err := time.ParseDuration(c.Storage.WatchDebounce); err != nil {
		return fmt.Errorf("storage.watch_debounce: %w", err)
	}

	if c.Search.TopK <= 0 {
		return fmt.Errorf("search.top_k must be positive, got %d", c.Search.TopK)
	}
	if c.Search.MaxTopK < c.Search.TopK {
		return fmt.Errorf("search.max_top_k (%d) must be at least search.top_k (%d)", c.Search.MaxTopK, c.Search.TopK)
	}
	switch strings.ToLower(c.Search.Engine) {
	case EngineExact, EngineHNSW:
	default:
		return fmt.Errorf("search.engine must be 'exact' or 'hnsw', got %s", c.Search.Engine)
	}
	if c.Search.HNSWOversample < 1 {
		return fmt.Errorf("search.hnsw_oversample must be at least 1, got %d", c.Search.HNSWOversample)
	}

	switch strings.ToLower(c.Embeddings.Provider) {
	case ProviderStatic, ProviderOllama:
	default:
		return fmt.Errorf("embeddings.provider must be 'static' or 'ollama', got %s", c.Embeddings.Provider)
	}
	if c.Embeddings.Dimensions < 0 {
		return fmt.Errorf("embeddings.dimensions must be non-negative, got %d", c.Embeddings.Dimensions)
	}
	if c.Embeddings.CacheSize < 0 {
		return fmt.Errorf("embeddings.cache_size must be non-negative, got %d", c.Embeddings.CacheSize)
	}
	if _, err := time.ParseDuration(c.Embeddings.Timeout); err != nil {
		return fmt.Errorf("embeddings.timeout: %w", err)
	}

	if c.Cache.MaxCorpora <= 0 {
		return fmt.Errorf("cache.max_corpora must be positive, got %d", c.Cache.MaxCorpora)
	}

	switch strings.ToLower(c.Server.Transport) {
	case TransportUnix, TransportMCP:
	default:
		return fmt.Errorf("server.transport must be 'unix' or 'mcp', got %s", c.Server.Transport)
	}
	if c.Server.Workers <= 0 {
		return fmt.Errorf("server.workers must be positive, got %d", c.Server.Workers)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WatchDebounce returns the parsed watcher debounce interval.
func (c *Config) WatchDebounce() time.Duration {
	d, err := time.ParseDuration(c.Storage.WatchDebounce)
	if err != nil {
		return 200 * time.Millisecond
	}
	return d
}

// EmbeddingTimeout returns the parsed per-request embedding timeout.
func (c *Config) EmbeddingTimeout() time.Duration {
	d, err := time.ParseDuration(c.Embeddings.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// JSON returns the configuration as indented JSON.
func (c *Config) JSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func parseBool(v string) bool {
	return strings.ToLower(v) == "true" || v == "1"
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
