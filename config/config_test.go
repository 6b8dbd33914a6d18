package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Address != ":8000" {
		t.Fatalf("expected default address :8000, got %q", cfg.Server.Address)
	}
	if cfg.Storage.OutputDir != "Generated-Books" {
		t.Fatalf("unexpected output dir %q", cfg.Storage.OutputDir)
	}
	if cfg.Pipeline.WebResults != 5 || cfg.Pipeline.TranscriptResults != 3 || cfg.Pipeline.MinHeadingLength != 5 {
		t.Fatalf("unexpected pipeline defaults: %+v", cfg.Pipeline)
	}
	p, err := cfg.LLM.Active()
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if p.Type != "gemini" || p.Model != "gemini-1.5-flash-latest" {
		t.Fatalf("unexpected llm provider: %+v", p)
	}
	if cfg.Server.StreamHeartbeat != 15*time.Second {
		t.Fatalf("unexpected heartbeat %s", cfg.Server.StreamHeartbeat)
	}
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
  "server": {"address": "9090"},
  "pipeline": {"web_results": 3, "parallel": true},
  "llm": {"provider": "openai"}
}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("TOPICBOOK_STORAGE_OUTPUT_DIR", "/tmp/books")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Server.Address != ":9090" {
		t.Fatalf("expected normalized address :9090, got %q", cfg.Server.Address)
	}
	if cfg.Pipeline.WebResults != 3 || !cfg.Pipeline.Parallel {
		t.Fatalf("file values not applied: %+v", cfg.Pipeline)
	}
	if cfg.Storage.OutputDir != "/tmp/books" {
		t.Fatalf("env override not applied: %q", cfg.Storage.OutputDir)
	}
	p, err := cfg.LLM.Active()
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if p.APIKey != "sk-test" {
		t.Fatalf("expected OPENAI_API_KEY to fill api key, got %q", p.APIKey)
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			General: GeneralConfig{LogFormat: "text"},
			LLM: LLMConfig{
				Provider:  "gemini",
				Providers: map[string]LLMProvider{"gemini": {Type: "gemini", Model: "m"}},
			},
			Sources:  SourcesConfig{WebProvider: "google", Scrape: ScrapeConfig{Mode: "goquery"}},
			Pipeline: PipelineConfig{WebResults: 5, TranscriptResults: 3, MinHeadingLength: 5, MaxConcurrentTasks: 1},
			Storage:  StorageConfig{OutputDir: "out"},
		}
	}

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "bad provider", mutate: func(c *Config) { c.LLM.Provider = "anthropic" }, wantErr: "llm.providers.anthropic"},
		{name: "bad web provider", mutate: func(c *Config) { c.Sources.WebProvider = "bing" }, wantErr: "sources.web_provider"},
		{name: "bad scrape mode", mutate: func(c *Config) { c.Sources.Scrape.Mode = "lynx" }, wantErr: "sources.scrape.mode"},
		{name: "zero web results", mutate: func(c *Config) { c.Pipeline.WebResults = 0 }, wantErr: "pipeline.web_results"},
		{name: "zero admission", mutate: func(c *Config) { c.Pipeline.MaxConcurrentTasks = 0 }, wantErr: "pipeline.max_concurrent_tasks"},
		{name: "redis without stream", mutate: func(c *Config) {
			c.Storage.Redis = RedisConfig{Enabled: true, Host: "h", Port: "1"}
		}, wantErr: "storage.redis.stream"},
		{name: "empty output dir", mutate: func(c *Config) { c.Storage.OutputDir = " " }, wantErr: "storage.output_dir"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}
