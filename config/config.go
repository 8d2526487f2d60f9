package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"paperrag/internal/domain"
)

// Config holds all configuration for the paper index. It is built once at
// startup and passed to each component; nothing mutates it afterwards.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Index     IndexConfig     `yaml:"index"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Paths     PathsConfig     `yaml:"paths"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// APIConfig holds the OpenAI-compatible endpoint settings. The key is only
// ever read from the environment and never written to disk.
type APIConfig struct {
	Key         string `yaml:"-"`
	BaseURL     string `yaml:"base_url"`
	LLMModel    string `yaml:"llm_model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// IndexConfig holds chunking configuration.
type IndexConfig struct {
	ChunkSize    int      `yaml:"chunk_size"`
	ChunkOverlap int      `yaml:"chunk_overlap"`
	Includes     []string `yaml:"includes"`
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK int `yaml:"top_k"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Model     string `yaml:"model"`
	BatchSize int    `yaml:"batch_size"`
}

// PathsConfig locates the source documents and the persisted index.
// Relative paths are resolved against the root directory.
type PathsConfig struct {
	PapersDir string `yaml:"papers_dir"`
	IndexDir  string `yaml:"index_dir"`
	SampleDir string `yaml:"sample_dir"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

const (
	chunksFile     = "chunks.jsonl"
	embeddingsFile = "embeddings.npy"
	manifestFile   = "manifest.db"
	metadataFile   = "metadata.json"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:     "https://openrouter.ai/api/v1",
			LLMModel:    "openai/gpt-4o-mini",
			TimeoutSecs: 60,
		},
		Index: IndexConfig{
			ChunkSize:    900,
			ChunkOverlap: 150,
			Includes:     []string{"*.pdf"},
		},
		Retrieve: RetrieveConfig{
			TopK: 3,
		},
		Embedding: EmbeddingConfig{
			Model:     "openai/text-embedding-3-small",
			BatchSize: 64,
		},
		Paths: PathsConfig{
			PapersDir: filepath.Join("data", "papers"),
			IndexDir:  filepath.Join("data", "index"),
			SampleDir: filepath.Join("data", "sample_papers"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", domain.ErrConfig, path, err)
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for paperrag.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "paperrag.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".paperrag", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ApplyEnv overlays environment settings onto the configuration. lookup is
// normally os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup("OPENROUTER_API_KEY"); ok && v != "" {
		c.API.Key = v
	} else if v, ok := lookup("OPENAI_API_KEY"); ok && v != "" {
		c.API.Key = v
	}

	strs := []struct {
		name string
		dst  *string
	}{
		{"API_BASE_URL", &c.API.BaseURL},
		{"EMBEDDING_MODEL", &c.Embedding.Model},
		{"LLM_MODEL", &c.API.LLMModel},
		{"PAPERRAG_LOG_LEVEL", &c.Logging.Level},
	}
	for _, s := range strs {
		if v, ok := lookup(s.name); ok && v != "" {
			*s.dst = v
		}
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"CHUNK_SIZE", &c.Index.ChunkSize},
		{"CHUNK_OVERLAP", &c.Index.ChunkOverlap},
		{"RETRIEVE_K", &c.Retrieve.TopK},
		{"EMBED_BATCH_SIZE", &c.Embedding.BatchSize},
	}
	for _, i := range ints {
		v, ok := lookup(i.name)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not an integer", domain.ErrConfig, i.name, v)
		}
		*i.dst = n
	}

	return nil
}

// Validate checks settings every command depends on.
func (c *Config) Validate() error {
	if c.Index.ChunkSize <= 0 {
		return fmt.Errorf("%w: chunk_size must be positive, got %d", domain.ErrConfig, c.Index.ChunkSize)
	}
	if c.Index.ChunkOverlap < 0 || c.Index.ChunkOverlap >= c.Index.ChunkSize {
		return fmt.Errorf("%w: chunk_overlap must be in [0, chunk_size), got %d", domain.ErrConfig, c.Index.ChunkOverlap)
	}
	if c.Retrieve.TopK <= 0 {
		return fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrConfig, c.Retrieve.TopK)
	}
	if c.Embedding.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive, got %d", domain.ErrConfig, c.Embedding.BatchSize)
	}
	return nil
}

// RequireAPIKey fails when no credential was found in the environment.
func (c *Config) RequireAPIKey() error {
	if c.API.Key == "" {
		return fmt.Errorf("%w: OPENROUTER_API_KEY is missing, put it in your .env file", domain.ErrConfig)
	}
	return nil
}

// Resolve makes relative paths absolute against root.
func (c *Config) Resolve(root string) {
	for _, p := range []*string{&c.Paths.PapersDir, &c.Paths.IndexDir, &c.Paths.SampleDir} {
		if !filepath.IsAbs(*p) {
			*p = filepath.Join(root, *p)
		}
	}
}

// ChunksPath returns the path of the chunk records file.
func (c *Config) ChunksPath() string {
	return filepath.Join(c.Paths.IndexDir, chunksFile)
}

// EmbeddingsPath returns the path of the embedding matrix file.
func (c *Config) EmbeddingsPath() string {
	return filepath.Join(c.Paths.IndexDir, embeddingsFile)
}

// ManifestPath returns the path of the build manifest database.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.Paths.IndexDir, manifestFile)
}

// MetadataPath returns the path of the acquired papers catalog.
func (c *Config) MetadataPath() string {
	return filepath.Join(c.Paths.PapersDir, metadataFile)
}
