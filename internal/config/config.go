package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete docsearch configuration.
type Config struct {
	Version     int               `yaml:"version" json:"version"`
	Search      SearchConfig      `yaml:"search" json:"search"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings" json:"embeddings"`
	Tenancy     TenancyConfig     `yaml:"tenancy" json:"tenancy"`
	Providers   ProvidersConfig   `yaml:"providers" json:"providers"`
	Redis       RedisConfig       `yaml:"redis" json:"redis"`
	Performance PerformanceConfig `yaml:"performance" json:"performance"`
	Server      ServerConfig      `yaml:"server" json:"server"`
}

// SearchConfig configures hybrid search parameters.
// Weights and RRF constant are configurable via:
//  1. User config (~/.config/docsearch/config.yaml) - personal defaults
//  2. Project config (.docsearch.yaml) - per-deployment tuning
//  3. Env vars (DOCSEARCH_BM25_WEIGHT, DOCSEARCH_SEMANTIC_WEIGHT, DOCSEARCH_RRF_CONSTANT) - highest priority
type SearchConfig struct {
	// BM25Weight is the weight for BM25 keyword matching (0.0-1.0).
	// Must sum to 1.0 with SemanticWeight.
	BM25Weight float64 `yaml:"bm25_weight" json:"bm25_weight"`

	// SemanticWeight is the weight for semantic similarity (0.0-1.0).
	// Must sum to 1.0 with BM25Weight.
	SemanticWeight float64 `yaml:"semantic_weight" json:"semantic_weight"`

	// RRFConstant is the RRF fusion smoothing parameter (k).
	// Default: 60 (industry standard used by Azure AI Search, OpenSearch).
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`

	// BM25Backend selects the keyword index backend: "sqlite" (default,
	// FTS5 with WAL mode, safe for concurrent multi-process access) or
	// "bleve" (scorch segments, single-process only — Bleve holds an
	// exclusive lock on its index directory). An existing data dir's
	// on-disk index overrides this at App startup; see
	// store.DetectBM25Backend.
	BM25Backend string `yaml:"bm25_backend" json:"bm25_backend"`

	ChunkSize    int `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`
	MaxResults   int `yaml:"max_results" json:"max_results"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	Provider   string `yaml:"provider" json:"provider"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`

	// Endpoint is the embedding provider's HTTP base URL (e.g. a local
	// Ollama instance or a hosted embeddings API).
	Endpoint string `yaml:"endpoint" json:"endpoint"`

	ModelDownloadTimeout time.Duration `yaml:"model_download_timeout" json:"model_download_timeout"`

	// CacheSize is the number of embedding results kept in the
	// in-process LRU cache, keyed by content hash.
	CacheSize int `yaml:"cache_size" json:"cache_size"`
}

// TenancyConfig holds the per-tenant defaults for hybrid search mixing
// and the semantic-similarity acceptance thresholds. These are the
// knobs tuned empirically and kept configurable per tenant.
type TenancyConfig struct {
	// HybridBM25Weight and HybridSemanticWeight mix BM25 and semantic
	// scores for compound/hybrid queries (distinct from SearchConfig's
	// top-level weights, which apply to pure keyword/semantic routing).
	HybridBM25Weight     float64 `yaml:"hybrid_bm25_weight" json:"hybrid_bm25_weight"`
	HybridSemanticWeight float64 `yaml:"hybrid_semantic_weight" json:"hybrid_semantic_weight"`

	// SemanticThresholdStrict is the minimum cosine similarity accepted
	// for a pure semantic query. SemanticThresholdLoose applies when the
	// semantic strategy is one leg of a hybrid/compound query.
	SemanticThresholdStrict float64 `yaml:"semantic_threshold_strict" json:"semantic_threshold_strict"`
	SemanticThresholdLoose  float64 `yaml:"semantic_threshold_loose" json:"semantic_threshold_loose"`
}

// ProvidersConfig configures the external collaborator endpoints: the
// vision captioning model and the OCR engine. Both are optional; when
// empty the corresponding pipeline stage degrades to null fields.
type ProvidersConfig struct {
	VisionEndpoint string        `yaml:"vision_endpoint" json:"vision_endpoint"`
	VisionTimeout  time.Duration `yaml:"vision_timeout" json:"vision_timeout"`

	OCREndpoint string        `yaml:"ocr_endpoint" json:"ocr_endpoint"`
	OCRTimeout  time.Duration `yaml:"ocr_timeout" json:"ocr_timeout"`
}

// RedisConfig configures the connection to the suggestion index store.
type RedisConfig struct {
	Addr     string `yaml:"addr" json:"addr"`
	Password string `yaml:"password" json:"password"`
	DB       int    `yaml:"db" json:"db"`
}

// PerformanceConfig configures performance tuning options.
type PerformanceConfig struct {
	IndexWorkers  int    `yaml:"index_workers" json:"index_workers"`
	QueueCapacity int    `yaml:"queue_capacity" json:"queue_capacity"`
	MemoryLimit   string `yaml:"memory_limit" json:"memory_limit"`
	SQLiteCacheMB int    `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"`
}

// ServerConfig configures the search service's transport.
type ServerConfig struct {
	Transport string `yaml:"transport" json:"transport"`
	Port      int    `yaml:"port" json:"port"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Search: SearchConfig{
			BM25Weight:     0.35,
			SemanticWeight: 0.65,
			RRFConstant:    60,
			BM25Backend:    "sqlite",
			ChunkSize:      1500,
			ChunkOverlap:   200,
			MaxResults:     20,
		},
		Embeddings: EmbeddingsConfig{
			Provider:             "ollama",
			Model:                "nomic-embed-text",
			Dimensions:           0, // auto-detected from the first embedding
			BatchSize:            32,
			Endpoint:             "http://localhost:11434",
			ModelDownloadTimeout: 10 * time.Minute,
			CacheSize:            2000,
		},
		Tenancy: TenancyConfig{
			HybridBM25Weight:        0.4,
			HybridSemanticWeight:    0.6,
			SemanticThresholdStrict: 0.15,
			SemanticThresholdLoose:  0.05,
		},
		Providers: ProvidersConfig{
			VisionTimeout: 15 * time.Second,
			OCRTimeout:    15 * time.Second,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			DB:   0,
		},
		Performance: PerformanceConfig{
			IndexWorkers:  runtime.NumCPU(),
			QueueCapacity: 256,
			MemoryLimit:   "auto",
			SQLiteCacheMB: 64,
		},
		Server: ServerConfig{
			Transport: "http",
			Port:      8765,
			LogLevel:  "info",
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/docsearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/docsearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "docsearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "docsearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "docsearch", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist (that's OK).
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()

	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// Load loads configuration from the specified directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/docsearch/config.yaml)
//  3. Deployment config (.docsearch.yaml in dir)
//  4. Environment variables (DOCSEARCH_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from .docsearch.yaml or .docsearch.yml.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ".docsearch.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".docsearch.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	return nil
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

	if other.Search.BM25Weight != 0 {
		c.Search.BM25Weight = other.Search.BM25Weight
	}
	if other.Search.SemanticWeight != 0 {
		c.Search.SemanticWeight = other.Search.SemanticWeight
	}
	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.BM25Backend != "" {
		c.Search.BM25Backend = other.Search.BM25Backend
	}
	if other.Search.ChunkSize != 0 {
		c.Search.ChunkSize = other.Search.ChunkSize
	}
	if other.Search.ChunkOverlap != 0 {
		c.Search.ChunkOverlap = other.Search.ChunkOverlap
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}

	if other.Embeddings.Provider != "" {
		c.Embeddings.Provider = other.Embeddings.Provider
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.Endpoint != "" {
		c.Embeddings.Endpoint = other.Embeddings.Endpoint
	}
	if other.Embeddings.CacheSize != 0 {
		c.Embeddings.CacheSize = other.Embeddings.CacheSize
	}

	if other.Tenancy.HybridBM25Weight != 0 {
		c.Tenancy.HybridBM25Weight = other.Tenancy.HybridBM25Weight
	}
	if other.Tenancy.HybridSemanticWeight != 0 {
		c.Tenancy.HybridSemanticWeight = other.Tenancy.HybridSemanticWeight
	}
	if other.Tenancy.SemanticThresholdStrict != 0 {
		c.Tenancy.SemanticThresholdStrict = other.Tenancy.SemanticThresholdStrict
	}
	if other.Tenancy.SemanticThresholdLoose != 0 {
		c.Tenancy.SemanticThresholdLoose = other.Tenancy.SemanticThresholdLoose
	}

	if other.Providers.VisionEndpoint != "" {
		c.Providers.VisionEndpoint = other.Providers.VisionEndpoint
	}
	if other.Providers.VisionTimeout != 0 {
		c.Providers.VisionTimeout = other.Providers.VisionTimeout
	}
	if other.Providers.OCREndpoint != "" {
		c.Providers.OCREndpoint = other.Providers.OCREndpoint
	}
	if other.Providers.OCRTimeout != 0 {
		c.Providers.OCRTimeout = other.Providers.OCRTimeout
	}

	if other.Redis.Addr != "" {
		c.Redis.Addr = other.Redis.Addr
	}
	if other.Redis.Password != "" {
		c.Redis.Password = other.Redis.Password
	}
	if other.Redis.DB != 0 {
		c.Redis.DB = other.Redis.DB
	}

	if other.Performance.IndexWorkers != 0 {
		c.Performance.IndexWorkers = other.Performance.IndexWorkers
	}
	if other.Performance.QueueCapacity != 0 {
		c.Performance.QueueCapacity = other.Performance.QueueCapacity
	}
	if other.Performance.MemoryLimit != "" {
		c.Performance.MemoryLimit = other.Performance.MemoryLimit
	}
	if other.Performance.SQLiteCacheMB != 0 {
		c.Performance.SQLiteCacheMB = other.Performance.SQLiteCacheMB
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
}

// applyEnvOverrides applies DOCSEARCH_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DOCSEARCH_BM25_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.BM25Weight = w
		}
	}
	if v := os.Getenv("DOCSEARCH_SEMANTIC_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.SemanticWeight = w
		}
	}
	if v := os.Getenv("DOCSEARCH_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}

	if v := os.Getenv("DOCSEARCH_EMBEDDINGS_PROVIDER"); v != "" {
		c.Embeddings.Provider = v
	}
	if v := os.Getenv("DOCSEARCH_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("DOCSEARCH_EMBEDDINGS_ENDPOINT"); v != "" {
		c.Embeddings.Endpoint = v
	}

	if v := os.Getenv("DOCSEARCH_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("DOCSEARCH_REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}

	if v := os.Getenv("DOCSEARCH_VISION_ENDPOINT"); v != "" {
		c.Providers.VisionEndpoint = v
	}
	if v := os.Getenv("DOCSEARCH_OCR_ENDPOINT"); v != "" {
		c.Providers.OCREndpoint = v
	}

	if v := os.Getenv("DOCSEARCH_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("DOCSEARCH_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.BM25Weight < 0 || c.Search.BM25Weight > 1 {
		return fmt.Errorf("search.bm25_weight must be between 0 and 1, got %f", c.Search.BM25Weight)
	}
	if c.Search.SemanticWeight < 0 || c.Search.SemanticWeight > 1 {
		return fmt.Errorf("search.semantic_weight must be between 0 and 1, got %f", c.Search.SemanticWeight)
	}
	if sum := c.Search.BM25Weight + c.Search.SemanticWeight; math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("search.bm25_weight + search.semantic_weight must equal 1.0, got %.2f", sum)
	}

	if sum := c.Tenancy.HybridBM25Weight + c.Tenancy.HybridSemanticWeight; c.Tenancy.HybridBM25Weight != 0 && math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("tenancy.hybrid_bm25_weight + tenancy.hybrid_semantic_weight must equal 1.0, got %.2f", sum)
	}

	if c.Search.MaxResults < 0 {
		return fmt.Errorf("search.max_results must be non-negative, got %d", c.Search.MaxResults)
	}
	if c.Search.ChunkSize < 0 {
		return fmt.Errorf("search.chunk_size must be non-negative, got %d", c.Search.ChunkSize)
	}

	validTransports := map[string]bool{"http": true, "grpc": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'http' or 'grpc', got %s", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}
