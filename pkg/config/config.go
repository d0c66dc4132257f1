// Package config loads the pipeline configuration: defaults first, an
// optional YAML file on top, API credentials from the environment last.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full pipeline configuration.
type Config struct {
	DuckDB     DuckDBConfig     `yaml:"duckdb"`
	Data       DataConfig       `yaml:"data"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Search     SearchConfig     `yaml:"search"`
	Graph      GraphConfig      `yaml:"graph"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Output     OutputConfig     `yaml:"output"`
	Validation ValidationConfig `yaml:"validation"`
	Log        LogConfig        `yaml:"log"`
	Request    RequestConfig    `yaml:"request"`
}

// DuckDBConfig controls the embedded analytical engine.
type DuckDBConfig struct {
	MemoryLimit  string `yaml:"memory_limit"`
	Threads      int    `yaml:"threads"`
	DatabaseFile string `yaml:"database_file"` // empty runs in memory
}

// DataConfig points at the raw source files.
type DataConfig struct {
	PropertiesFiles    []string `yaml:"properties_files"`
	NeighborhoodsFiles []string `yaml:"neighborhoods_files"`
	LocationsFile      string   `yaml:"locations_file"`
	WikipediaDB        string   `yaml:"wikipedia_db"`
	// SampleSize caps rows per source during ingestion. Unset ingests
	// everything; an explicit zero creates empty Bronze tables. Negative
	// values are rejected.
	SampleSize *int `yaml:"sample_size,omitempty"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider     string   `yaml:"provider"` // "voyage", "openai", "gemini", "ollama", "mock"
	Model        string   `yaml:"model"`
	Dimension    int      `yaml:"dimension"`
	BatchSize    int      `yaml:"batch_size"` // zero uses the provider default
	RequestDelay Duration `yaml:"request_delay"`
	Endpoint     string   `yaml:"endpoint"` // ollama only
	// Key is resolved from the environment by provider, never from YAML.
	Key string `yaml:"-"`
}

// SearchConfig controls the search-engine sink and retrieval.
type SearchConfig struct {
	Addresses     []string `yaml:"addresses"`
	IndexPrefix   string   `yaml:"index_prefix"`
	BulkBatchSize int      `yaml:"bulk_batch_size"`
	// Basic auth comes from ES_USERNAME / ES_PASSWORD.
	Username string `yaml:"-"`
	Password string `yaml:"-"`
}

// GraphConfig controls the graph-database sink.
type GraphConfig struct {
	URI       string `yaml:"uri"`
	Username  string `yaml:"username"`
	Database  string `yaml:"database"` // empty uses the server default
	BatchSize int    `yaml:"batch_size"`
	// Password comes from NEO4J_PASSWORD.
	Password string `yaml:"-"`
}

// RetrievalConfig tunes the hybrid search front end.
type RetrievalConfig struct {
	LLMProvider string `yaml:"llm_provider"` // "gemini", "openai", "rules"
	LLMModel    string `yaml:"llm_model"`
	Size        int    `yaml:"size"`
	// Key is resolved from the environment by provider.
	Key string `yaml:"-"`
}

// OutputConfig controls file exports.
type OutputConfig struct {
	ParquetDir string `yaml:"parquet_dir"`
}

// ValidationConfig controls how strictly raw data is checked.
type ValidationConfig struct {
	// Strict promotes duplicate-key findings to stage failures.
	Strict bool `yaml:"strict"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`   // optional tee target
	Format string `yaml:"format"` // "text" or "json"
}

// RequestConfig holds HTTP client settings shared by all providers.
type RequestConfig struct {
	Retries int           `yaml:"retries"`
	Timeout Duration      `yaml:"timeout"`
	Backoff BackoffConfig `yaml:"backoff"`
}

// BackoffConfig holds exponential backoff settings.
type BackoffConfig struct {
	BaseDelay Duration `yaml:"base_delay"`
	MaxDelay  Duration `yaml:"max_delay"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		DuckDB: DuckDBConfig{
			MemoryLimit:  "4GB",
			Threads:      4,
			DatabaseFile: "",
		},
		Data: DataConfig{
			PropertiesFiles:    []string{"data/properties_sf.json", "data/properties_pc.json"},
			NeighborhoodsFiles: []string{"data/neighborhoods_sf.json", "data/neighborhoods_pc.json"},
			LocationsFile:      "data/locations.json",
			WikipediaDB:        "data/wikipedia/wikipedia.db",
		},
		Embedding: EmbeddingConfig{
			Provider:     "voyage",
			Model:        "voyage-3",
			Dimension:    1024,
			BatchSize:    0,
			RequestDelay: Duration(100 * time.Millisecond),
			Endpoint:     "",
		},
		Search: SearchConfig{
			Addresses:     []string{"http://localhost:9200"},
			IndexPrefix:   "",
			BulkBatchSize: 100,
		},
		Graph: GraphConfig{
			URI:       "bolt://localhost:7687",
			Username:  "neo4j",
			Database:  "",
			BatchSize: 1000,
		},
		Retrieval: RetrievalConfig{
			LLMProvider: "gemini",
			LLMModel:    "gemini-2.5-flash-lite",
			Size:        10,
		},
		Output: OutputConfig{
			ParquetDir: "out/parquet",
		},
		Validation: ValidationConfig{
			Strict: false,
		},
		Log: LogConfig{
			Level:  "info",
			File:   "",
			Format: "text",
		},
		Request: RequestConfig{
			Retries: 3,
			Timeout: Duration(60 * time.Second),
			Backoff: BackoffConfig{
				BaseDelay: Duration(1 * time.Second),
				MaxDelay:  Duration(30 * time.Second),
			},
		},
	}
}

// Load reads the configuration from the given path. A missing file is
// created with defaults. Credentials are always resolved from the
// environment and never written back to disk.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to save config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv resolves credentials and endpoint overrides from the environment.
func (c *Config) applyEnv() {
	c.Embedding.Key = keyForProvider(c.Embedding.Provider)
	if c.Embedding.Provider == "ollama" && c.Embedding.Endpoint == "" {
		if host := os.Getenv("OLLAMA_HOST"); host != "" {
			c.Embedding.Endpoint = host
		}
	}
	c.Retrieval.Key = keyForProvider(c.Retrieval.LLMProvider)
	c.Search.Username = os.Getenv("ES_USERNAME")
	c.Search.Password = os.Getenv("ES_PASSWORD")
	c.Graph.Password = os.Getenv("NEO4J_PASSWORD")
}

func keyForProvider(provider string) string {
	switch provider {
	case "voyage":
		return os.Getenv("VOYAGE_API_KEY")
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	case "gemini":
		if key := os.Getenv("GOOGLE_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GEMINI_API_KEY")
	}
	return ""
}

var knownEmbeddingProviders = map[string]bool{
	"voyage": true, "openai": true, "gemini": true, "ollama": true, "mock": true,
}

var knownLLMProviders = map[string]bool{
	"gemini": true, "openai": true, "rules": true,
}

// Validate rejects configurations that cannot possibly run.
func (c *Config) Validate() error {
	if c.Data.SampleSize != nil && *c.Data.SampleSize < 0 {
		return fmt.Errorf("config: data.sample_size must not be negative, got %d", *c.Data.SampleSize)
	}
	if !knownEmbeddingProviders[c.Embedding.Provider] {
		return fmt.Errorf("config: unknown embedding.provider %q", c.Embedding.Provider)
	}
	if !knownLLMProviders[c.Retrieval.LLMProvider] {
		return fmt.Errorf("config: unknown retrieval.llm_provider %q", c.Retrieval.LLMProvider)
	}
	if c.DuckDB.Threads < 0 {
		return fmt.Errorf("config: duckdb.threads must not be negative, got %d", c.DuckDB.Threads)
	}
	if c.Search.BulkBatchSize <= 0 {
		return fmt.Errorf("config: search.bulk_batch_size must be positive, got %d", c.Search.BulkBatchSize)
	}
	if c.Graph.BatchSize <= 0 {
		return fmt.Errorf("config: graph.batch_size must be positive, got %d", c.Graph.BatchSize)
	}
	if c.Retrieval.Size <= 0 {
		return fmt.Errorf("config: retrieval.size must be positive, got %d", c.Retrieval.Size)
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Roofline Pipeline Configuration
# -------------------------------
# Duration units: ns, us, ms, s, m, h, d (day), w (week)
# Credentials are read from the environment, never from this file:
#   VOYAGE_API_KEY, OPENAI_API_KEY, GOOGLE_API_KEY,
#   ES_USERNAME, ES_PASSWORD, NEO4J_PASSWORD

`)
	data = append(header, data...)

	// Inject option hints next to enum fields.
	reProvider := regexp.MustCompile(`(?m)^(\s+)provider:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: voyage, openai, gemini, ollama, mock\n${1}provider:"))

	reLLM := regexp.MustCompile(`(?m)^(\s+)llm_provider:`)
	data = reLLM.ReplaceAll(data, []byte("${1}# Options: gemini, openai, rules\n${1}llm_provider:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return Save(path, DefaultConfig())
}
