package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"paperrag/internal/domain"
)

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Index.ChunkSize != 900 {
		t.Errorf("expected ChunkSize=900, got %d", cfg.Index.ChunkSize)
	}
	if cfg.Index.ChunkOverlap != 150 {
		t.Errorf("expected ChunkOverlap=150, got %d", cfg.Index.ChunkOverlap)
	}
	if cfg.Retrieve.TopK != 3 {
		t.Errorf("expected TopK=3, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Embedding.BatchSize != 64 {
		t.Errorf("expected BatchSize=64, got %d", cfg.Embedding.BatchSize)
	}
	if cfg.API.BaseURL != "https://openrouter.ai/api/v1" {
		t.Errorf("unexpected BaseURL %s", cfg.API.BaseURL)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Error("expected default config, got nil")
	}
}

func TestLoad_ValidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "paperrag.yaml")

	content := `
index:
  chunk_size: 400
  chunk_overlap: 40
retrieve:
  top_k: 7
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Index.ChunkSize != 400 {
		t.Errorf("expected ChunkSize=400, got %d", cfg.Index.ChunkSize)
	}
	if cfg.Index.ChunkOverlap != 40 {
		t.Errorf("expected ChunkOverlap=40, got %d", cfg.Index.ChunkOverlap)
	}
	if cfg.Retrieve.TopK != 7 {
		t.Errorf("expected TopK=7, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Embedding.BatchSize != 64 {
		t.Errorf("unset fields should keep defaults, got BatchSize=%d", cfg.Embedding.BatchSize)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "paperrag.yaml")
	if err := os.WriteFile(configPath, []byte("index: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(configPath)
	if !errors.Is(err, domain.ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}
}

func TestLoadFromDir(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(tmpDir, ".paperrag"), 0755); err != nil {
		t.Fatal(err)
	}
	content := `
embedding:
  batch_size: 16
`
	if err := os.WriteFile(filepath.Join(tmpDir, ".paperrag", "config.yaml"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Embedding.BatchSize != 16 {
		t.Errorf("expected BatchSize=16, got %d", cfg.Embedding.BatchSize)
	}
}

func TestApplyEnv(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"OPENAI_API_KEY":   "sk-fallback",
		"API_BASE_URL":     "http://localhost:8080/v1",
		"EMBEDDING_MODEL":  "nomic-embed-text",
		"LLM_MODEL":        "llama3",
		"CHUNK_SIZE":       "500",
		"CHUNK_OVERLAP":    "50",
		"RETRIEVE_K":       "5",
		"EMBED_BATCH_SIZE": "8",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.API.Key != "sk-fallback" {
		t.Errorf("expected fallback key, got %q", cfg.API.Key)
	}
	if cfg.API.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("unexpected BaseURL %s", cfg.API.BaseURL)
	}
	if cfg.Embedding.Model != "nomic-embed-text" || cfg.API.LLMModel != "llama3" {
		t.Errorf("models not applied: %s / %s", cfg.Embedding.Model, cfg.API.LLMModel)
	}
	if cfg.Index.ChunkSize != 500 || cfg.Index.ChunkOverlap != 50 {
		t.Errorf("chunking not applied: %d / %d", cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	}
	if cfg.Retrieve.TopK != 5 || cfg.Embedding.BatchSize != 8 {
		t.Errorf("counts not applied: %d / %d", cfg.Retrieve.TopK, cfg.Embedding.BatchSize)
	}
}

func TestApplyEnv_PrefersOpenRouterKey(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{
		"OPENROUTER_API_KEY": "sk-or",
		"OPENAI_API_KEY":     "sk-oa",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.API.Key != "sk-or" {
		t.Errorf("expected OpenRouter key, got %q", cfg.API.Key)
	}
}

func TestApplyEnv_BadInteger(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.ApplyEnv(envMap(map[string]string{"CHUNK_SIZE": "big"}))
	if !errors.Is(err, domain.ErrConfig) {
		t.Errorf("expected ErrConfig, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"overlap_equals_size", func(c *Config) { c.Index.ChunkOverlap = c.Index.ChunkSize }},
		{"overlap_exceeds_size", func(c *Config) { c.Index.ChunkOverlap = c.Index.ChunkSize + 1 }},
		{"negative_overlap", func(c *Config) { c.Index.ChunkOverlap = -1 }},
		{"zero_size", func(c *Config) { c.Index.ChunkSize = 0 }},
		{"zero_top_k", func(c *Config) { c.Retrieve.TopK = 0 }},
		{"zero_batch", func(c *Config) { c.Embedding.BatchSize = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, domain.ErrConfig) {
				t.Errorf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestRequireAPIKey(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.RequireAPIKey(); !errors.Is(err, domain.ErrConfig) {
		t.Errorf("expected ErrConfig for empty key, got %v", err)
	}
	cfg.API.Key = "sk-test"
	if err := cfg.RequireAPIKey(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestResolveAndPaths(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve("/home/user/project")

	expected := filepath.Join("/home/user/project", "data", "index", "chunks.jsonl")
	if cfg.ChunksPath() != expected {
		t.Errorf("expected %s, got %s", expected, cfg.ChunksPath())
	}
	expected = filepath.Join("/home/user/project", "data", "index", "embeddings.npy")
	if cfg.EmbeddingsPath() != expected {
		t.Errorf("expected %s, got %s", expected, cfg.EmbeddingsPath())
	}
	expected = filepath.Join("/home/user/project", "data", "papers", "metadata.json")
	if cfg.MetadataPath() != expected {
		t.Errorf("expected %s, got %s", expected, cfg.MetadataPath())
	}
}
