package cli

import (
	"errors"
	"os"
	"time"

	"paperrag/config"
	"paperrag/internal/adapter/embedding"
	"paperrag/internal/adapter/llm"
	"paperrag/internal/adapter/store"
	"paperrag/internal/port"
)

func newFileStore(cfg *config.Config) *store.FileStore {
	return store.NewFileStore(cfg.Paths.IndexDir, cfg.ChunksPath(), cfg.EmbeddingsPath())
}

func newEmbedder(cfg *config.Config) (*embedding.OpenAIEmbedder, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	return embedding.NewOpenAIEmbedder(cfg.API.Key, cfg.API.BaseURL, cfg.Embedding.Model,
		cfg.Embedding.BatchSize, apiTimeout(cfg)), nil
}

func newChat(cfg *config.Config) (*llm.OpenAIChat, error) {
	if err := cfg.RequireAPIKey(); err != nil {
		return nil, err
	}
	return llm.NewOpenAIChat(cfg.API.Key, cfg.API.BaseURL, cfg.API.LLMModel, apiTimeout(cfg)), nil
}

func apiTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.API.TimeoutSecs) * time.Second
}

// openManifestIfExists returns nil when the index has no manifest yet.
func openManifestIfExists(cfg *config.Config) (port.ManifestStore, func(), error) {
	if _, err := os.Stat(cfg.ManifestPath()); errors.Is(err, os.ErrNotExist) {
		return nil, func() {}, nil
	}
	ms, err := store.OpenManifestReadOnly(cfg.ManifestPath())
	if err != nil {
		return nil, nil, err
	}
	return ms, func() { ms.Close() }, nil
}
