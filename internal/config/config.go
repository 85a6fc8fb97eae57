package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration. It is built once at startup
// and treated as immutable afterwards; components receive the sections they
// need at construction time.
type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Documents  DocumentsConfig  `yaml:"documents,omitempty"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Generation GenerationConfig `yaml:"generation"`
	Search     SearchConfig     `yaml:"search,omitempty"`
	Server     ServerConfig     `yaml:"server,omitempty"`
}

// DatabaseConfig holds vector index storage configuration.
type DatabaseConfig struct {
	// Path to the SQLite database file.
	// If empty, defaults to ~/.warren/data/warren.db
	Path string `yaml:"path,omitempty"`

	// Collection is the named partition of the vector index.
	Collection string `yaml:"collection,omitempty"`

	// TextIndexDir is the bleve keyword index directory.
	// If empty, defaults to <Path>.bleve
	TextIndexDir string `yaml:"text_index_dir,omitempty"`
}

// DocumentsConfig holds ingestion source configuration.
type DocumentsConfig struct {
	Dir     string   `yaml:"dir,omitempty"`     // Source document directory
	Exclude []string `yaml:"exclude,omitempty"` // Glob patterns to skip
}

// ChunkingConfig holds document chunking parameters.
type ChunkingConfig struct {
	Size    int `yaml:"size"`    // Maximum chunk size in characters
	Overlap int `yaml:"overlap"` // Characters shared between consecutive chunks
}

// EmbeddingConfig holds embedding provider configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`              // "openai" (or OpenAI-compatible via base_url)
	Model     string `yaml:"model"`                 // Embedding model identifier
	BaseURL   string `yaml:"base_url,omitempty"`    // Override for OpenAI-compatible endpoints
	APIKeyEnv string `yaml:"api_key_env,omitempty"` // Env var holding the API key

	Dimensions int `yaml:"dimensions"` // Configured vector dimension
	BatchSize  int `yaml:"batch_size"` // Maximum texts per provider call

	// APIKey is resolved from APIKeyEnv at load time. Never read from the
	// environment after startup.
	APIKey string `yaml:"-"`
}

// GenerationConfig holds answer generation configuration.
type GenerationConfig struct {
	Model          string `yaml:"model"`               // Chat model identifier
	Streaming      bool   `yaml:"streaming,omitempty"` // Stream and concatenate the completion
	MaxRetries     int    `yaml:"max_retries,omitempty"`
	RetryDelaySecs int    `yaml:"retry_delay_secs,omitempty"`
}

// SearchConfig holds retrieval parameters.
type SearchConfig struct {
	TopK          int     `yaml:"top_k,omitempty"`          // Number of chunks to retrieve
	PreviewChars  int     `yaml:"preview_chars,omitempty"`  // Snippet truncation length
	MinScore      float32 `yaml:"min_score,omitempty"`      // Drop hits below this similarity
	VectorWeight  float32 `yaml:"vector_weight,omitempty"`  // Vector similarity weight (0-1)
	KeywordWeight float32 `yaml:"keyword_weight,omitempty"` // Keyword match weight (0-1)
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr               string `yaml:"addr,omitempty"`
	RequestTimeoutSecs int    `yaml:"request_timeout_secs,omitempty"`
}

// RequestTimeout returns the per-request deadline.
func (s ServerConfig) RequestTimeout() time.Duration {
	return time.Duration(s.RequestTimeoutSecs) * time.Second
}

// RetryDelay returns the base delay between generation retries.
func (g GenerationConfig) RetryDelay() time.Duration {
	return time.Duration(g.RetryDelaySecs) * time.Second
}

// DefaultPath returns the default config file location.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".warren", "config", "warren.yaml"), nil
}

// Load loads configuration from the default config file
// (~/.warren/config/warren.yaml).
func Load() (*Config, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return LoadFromFile(path)
}

// LoadFromFile loads configuration from a specific file, applies defaults,
// resolves credentials from the environment, and validates.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			defaultPath, _ := DefaultPath()
			return nil, &NotFoundError{RequestedPath: path, DefaultPath: defaultPath}
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	cfg.resolveCredentials()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// NotFoundError is returned when the config file is missing.
type NotFoundError struct {
	RequestedPath string
	DefaultPath   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("config file not found at: %s\n\nDefault location: %s\n\nYou can:\n"+
		"  1. Run 'warren ingest' once to create a template at the default location\n"+
		"  2. Specify a custom path with -config flag",
		e.RequestedPath, e.DefaultPath)
}

// IsNotFound reports whether err is a missing-config-file error.
func IsNotFound(err error) bool {
	_, ok := err.(*NotFoundError)
	return ok
}

func (c *Config) applyDefaults() {
	if c.Database.Path != "" {
		c.Database.Path = expandPath(c.Database.Path)
	}
	if c.Database.Collection == "" {
		c.Database.Collection = "warren"
	}
	if c.Database.TextIndexDir != "" {
		c.Database.TextIndexDir = expandPath(c.Database.TextIndexDir)
	}

	if c.Documents.Dir == "" {
		c.Documents.Dir = "docs"
	}

	if c.Chunking.Size == 0 {
		c.Chunking.Size = 1024
	}
	if c.Chunking.Overlap == 0 {
		c.Chunking.Overlap = 100
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions == 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.BatchSize == 0 {
		c.Embedding.BatchSize = 64
	}
	if c.Embedding.APIKeyEnv == "" {
		c.Embedding.APIKeyEnv = "OPENAI_API_KEY"
	}

	if c.Generation.Model == "" {
		c.Generation.Model = "gpt-4o-mini"
	}
	if c.Generation.MaxRetries == 0 {
		c.Generation.MaxRetries = 3
	}
	if c.Generation.RetryDelaySecs == 0 {
		c.Generation.RetryDelaySecs = 2
	}

	if c.Search.TopK == 0 {
		c.Search.TopK = 5
	}
	if c.Search.PreviewChars == 0 {
		c.Search.PreviewChars = 600
	}
	if c.Search.VectorWeight == 0 && c.Search.KeywordWeight == 0 {
		c.Search.VectorWeight = 1.0
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.RequestTimeoutSecs == 0 {
		c.Server.RequestTimeoutSecs = 60
	}
}

// resolveCredentials reads provider credentials from the environment once.
// Business logic only ever sees the populated Config.
func (c *Config) resolveCredentials() {
	c.Embedding.APIKey = os.Getenv(c.Embedding.APIKeyEnv)
}

// Validate checks the configuration. Validation failures are fatal at
// startup.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, %d), got %d", c.Chunking.Size, c.Chunking.Overlap)
	}

	if c.Embedding.Provider != "openai" {
		return fmt.Errorf("unsupported embedding provider: %s", c.Embedding.Provider)
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.BatchSize <= 0 || c.Embedding.BatchSize > 2048 {
		return fmt.Errorf("embedding.batch_size must be between 1 and 2048, got %d", c.Embedding.BatchSize)
	}

	if c.Generation.MaxRetries < 0 || c.Generation.MaxRetries > 10 {
		return fmt.Errorf("generation.max_retries must be between 0 and 10, got %d", c.Generation.MaxRetries)
	}

	if c.Search.TopK <= 0 {
		return fmt.Errorf("search.top_k must be positive, got %d", c.Search.TopK)
	}
	if c.Search.MinScore < 0 || c.Search.MinScore > 1 {
		return fmt.Errorf("search.min_score must be in [0, 1], got %f", c.Search.MinScore)
	}
	if c.Search.VectorWeight < 0 || c.Search.KeywordWeight < 0 {
		return fmt.Errorf("search weights must not be negative")
	}
	if c.Search.VectorWeight+c.Search.KeywordWeight == 0 {
		return fmt.Errorf("at least one of search.vector_weight and search.keyword_weight must be positive")
	}

	if c.Server.RequestTimeoutSecs <= 0 {
		return fmt.Errorf("server.request_timeout_secs must be positive, got %d", c.Server.RequestTimeoutSecs)
	}

	return nil
}

// expandPath expands ~ and $HOME prefixes to the user's home directory.
func expandPath(path string) string {
	if strings.HasPrefix(path, "$HOME/") || path == "$HOME" {
		homeDir := os.Getenv("HOME")
		if homeDir == "" {
			var err error
			homeDir, err = os.UserHomeDir()
			if err != nil {
				return path
			}
		}
		if path == "$HOME" {
			return homeDir
		}
		return filepath.Join(homeDir, path[6:])
	}

	if strings.HasPrefix(path, "~/") || path == "~" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return homeDir
		}
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

const defaultConfigTemplate = `# Warren Configuration
#
# Copy and edit this file for your environment.
# Default location: $HOME/.warren/config/warren.yaml

database:
  # SQLite vector index location. Defaults to ~/.warren/data/warren.db
  # path: ~/.warren/data/warren.db
  collection: warren

documents:
  # Directory of source documents (.pdf, .txt, .md) for 'warren ingest'
  dir: docs
  # exclude:
  #   - "**/drafts/**"

chunking:
  size: 1024      # maximum characters per chunk
  overlap: 100    # characters shared between consecutive chunks

embedding:
  provider: openai
  model: text-embedding-3-small
  dimensions: 1536
  batch_size: 64
  api_key_env: OPENAI_API_KEY
  # base_url: https://api.openai.com/v1

generation:
  model: gpt-4o-mini
  streaming: false
  max_retries: 3

search:
  top_k: 5
  preview_chars: 600
  vector_weight: 0.7
  keyword_weight: 0.3

server:
  addr: ":8080"
  request_timeout_secs: 60
`

// WriteDefaultTemplate creates a default configuration file if it does not
// exist. It returns true if a file was created, false if it already existed.
func WriteDefaultTemplate(path string) (bool, error) {
	if path == "" {
		return false, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err == nil {
		return false, nil
	} else if !os.IsNotExist(err) {
		return false, fmt.Errorf("failed to stat config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfigTemplate), 0644); err != nil {
		return false, fmt.Errorf("failed to write config template: %w", err)
	}

	return true, nil
}
