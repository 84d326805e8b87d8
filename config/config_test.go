package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
llm:
  model: test-model
render:
  max_concurrent_encodes: 4
research:
  subreddits: [golang]
`
	if err := os.WriteFile(path, []byte(yml), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("GROQ_API_KEY", "gsk_test")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("WORKER_CONCURRENCY", "5")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.Model != "test-model" {
		t.Errorf("model = %q", cfg.LLM.Model)
	}
	if cfg.LLM.BaseURL == "" {
		t.Error("base url default lost")
	}
	if cfg.Render.MaxConcurrentEncodes != 4 {
		t.Errorf("encodes = %d, want 4", cfg.Render.MaxConcurrentEncodes)
	}
	if cfg.Script.MaxRetries != 3 {
		t.Errorf("max retries = %d, want default 3", cfg.Script.MaxRetries)
	}
	if len(cfg.Research.Subreddits) != 1 || cfg.Research.Subreddits[0] != "golang" {
		t.Errorf("subreddits = %v", cfg.Research.Subreddits)
	}
	if cfg.LLM.APIKey != "gsk_test" {
		t.Errorf("api key not taken from env")
	}
	if cfg.Queue.RedisURL != "redis://localhost:6379/1" {
		t.Errorf("redis url = %q", cfg.Queue.RedisURL)
	}
	if cfg.Queue.Concurrency != 5 {
		t.Errorf("concurrency = %d, want 5", cfg.Queue.Concurrency)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
