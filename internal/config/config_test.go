package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsEnvOnly(t *testing.T) {
	cfg, err := Load("", true)
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if cfg.Server.HTTPAddr != ":3001" {
		t.Fatalf("http_addr=%q", cfg.Server.HTTPAddr)
	}
	if cfg.Pipeline.FreshnessMinutes != 30 || cfg.Pipeline.HistoryLimit != 10 || cfg.Pipeline.MaxSearchQueries != 5 {
		t.Fatalf("pipeline=%+v", cfg.Pipeline)
	}
	if cfg.Gamma.Limit != 5 || cfg.Gamma.Timeout != 15*time.Second {
		t.Fatalf("gamma=%+v", cfg.Gamma)
	}
	if cfg.Chain.ParentDomain != "oddly.eth" || cfg.Chain.GasMarginPct != 20 || cfg.Chain.MinBalanceEth != 0.001 {
		t.Fatalf("chain=%+v", cfg.Chain)
	}
	if cfg.Redis.LockTTL != 10*time.Minute {
		t.Fatalf("lock_ttl=%v", cfg.Redis.LockTTL)
	}
	if cfg.TTS.DefaultVoice != "gnPxliFHTp6OK6tcoA6i" {
		t.Fatalf("default voice=%q", cfg.TTS.DefaultVoice)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := []byte("db:\n  dsn: postgres://reader@db/oddly\npipeline:\n  freshness_minutes: 45\nllm:\n  model: from-file\n")
	if err := os.WriteFile(path, yaml, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("ODDLY_LLM_MODEL", "from-env")
	t.Setenv("ODDLY_LLM_API_KEY", "sk-test")

	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if cfg.Pipeline.FreshnessMinutes != 45 {
		t.Fatalf("freshness=%d want=45", cfg.Pipeline.FreshnessMinutes)
	}
	if cfg.LLM.Model != "from-env" || cfg.LLM.APIKey != "sk-test" {
		t.Fatalf("llm=%+v", cfg.LLM)
	}
	if cfg.DB.AdminDSN != cfg.DB.DSN || cfg.DB.DSN != "postgres://reader@db/oddly" {
		t.Fatalf("db=%+v", cfg.DB)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), false); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestGenerationTTLCoversClientTimeouts(t *testing.T) {
	cfg, err := Load("", true)
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if got := cfg.GenerationTTL(); got != 10*time.Minute {
		t.Fatalf("default ttl=%v want=10m", got)
	}

	cfg.LLM.Timeout = 5 * time.Minute
	want := 15*time.Second + 10*time.Minute + 5*20*time.Second + 120*time.Second + 60*time.Second + time.Minute
	if got := cfg.GenerationTTL(); got != want {
		t.Fatalf("ttl=%v want=%v", got, want)
	}
}
