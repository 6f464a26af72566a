package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{}`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RateLimit.Window != 10*time.Second || cfg.RateLimit.Quota != 1 {
		t.Fatalf("unexpected rate limit defaults: %+v", cfg.RateLimit)
	}
	if cfg.Fetcher.Timeout != 15*time.Second {
		t.Fatalf("expected 15s fetch timeout, got %v", cfg.Fetcher.Timeout)
	}
	if cfg.Fetcher.Type != "chromedp" {
		t.Fatalf("expected chromedp fetcher, got %q", cfg.Fetcher.Type)
	}
	if len(cfg.Classifier.Signatures) != len(DefaultSignatures) {
		t.Fatalf("expected default signatures, got %#v", cfg.Classifier.Signatures)
	}
}

func TestLoadConfigFileAndEnvOverride(t *testing.T) {
	path := writeConfig(t, `{
		"rate_limit": {"window": "1m", "quota": 5, "store": "memory"},
		"cache": {"backend": "memory", "ttl": "1h"},
		"classifier": {"signatures": ["Gone", "Gone", " "]}
	}`)
	t.Setenv("GROUNDCHAT_RATE_LIMIT_QUOTA", "7")
	t.Setenv("GROUNDCHAT_LLM_MODEL", "llama3-8b-8192")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.RateLimit.Window != time.Minute {
		t.Fatalf("expected 1m window, got %v", cfg.RateLimit.Window)
	}
	if cfg.RateLimit.Quota != 7 {
		t.Fatalf("expected env override quota 7, got %d", cfg.RateLimit.Quota)
	}
	if cfg.Cache.TTL != time.Hour {
		t.Fatalf("expected 1h ttl, got %v", cfg.Cache.TTL)
	}
	if cfg.LLM.Model != "llama3-8b-8192" {
		t.Fatalf("expected model override, got %q", cfg.LLM.Model)
	}
	if len(cfg.Classifier.Signatures) != 1 || cfg.Classifier.Signatures[0] != "Gone" {
		t.Fatalf("expected normalized signatures, got %#v", cfg.Classifier.Signatures)
	}
	if cfg.UsesRedis() {
		t.Fatalf("memory-only config should not need redis")
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"bad fetcher":    `{"fetcher": {"type": "curl"}}`,
		"zero quota":     `{"rate_limit": {"quota": 0}}`,
		"bad cache":      `{"cache": {"backend": "disk"}}`,
		"no signatures":  `{"classifier": {"signatures": [""]}}`,
		"missing model":  `{"llm": {"model": " "}}`,
		"missing redis":  `{"storage": {"redis": {"host": ""}}}`,
		"negative grace": `{"fetcher": {"grace": "-1s"}}`,
	}
	for name, body := range cases {
		body := body
		t.Run(name, func(t *testing.T) {
			if _, err := LoadConfig(writeConfig(t, body)); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatalf("expected error for missing explicit config file")
	}
}
