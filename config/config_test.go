package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	def := Default()
	if cfg.LLM.Model != def.LLM.Model {
		t.Errorf("model = %q, want %q", cfg.LLM.Model, def.LLM.Model)
	}
	if cfg.HUD.AutoHideDelayMs != 5000 {
		t.Errorf("auto_hide_delay_ms = %d, want 5000", cfg.HUD.AutoHideDelayMs)
	}
}

func TestLoadPartialFileOverridesOnlyNamedFields(t *testing.T) {
	dir := t.TempDir()
	partial := `llm:
  model: llama3
speech:
  language: en-US
`
	if err := os.WriteFile(Path(dir), []byte(partial), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.Model != "llama3" {
		t.Errorf("model = %q, want llama3", cfg.LLM.Model)
	}
	if cfg.Speech.Language != "en-US" {
		t.Errorf("language = %q, want en-US", cfg.Speech.Language)
	}
	// Unnamed fields keep their defaults.
	if cfg.LLM.MaxTokens != 1024 {
		t.Errorf("max_tokens = %d, want 1024", cfg.LLM.MaxTokens)
	}
	if cfg.Voice.Name != "th-TH-PremwadeeNeural" {
		t.Errorf("voice = %q, want default", cfg.Voice.Name)
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(Path(dir), []byte("llm: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestWriteSample(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	path, err := WriteSample(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("sample not written: %v", err)
	}

	// Second call refuses to clobber.
	if _, err := WriteSample(dir); err == nil {
		t.Fatal("expected error on existing config")
	}

	// Round-trips through Load.
	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Hotkey != "ctrl+shift+space" {
		t.Errorf("hotkey = %q", cfg.Hotkey)
	}
}

func TestDurationHelpers(t *testing.T) {
	cfg := Default()
	if got := cfg.AutoHideDelay(); got != 5*time.Second {
		t.Errorf("AutoHideDelay = %v", got)
	}
	if got := cfg.LLMTimeout(); got != 60*time.Second {
		t.Errorf("LLMTimeout = %v", got)
	}
	if got := cfg.PauseThreshold(); got != 1500*time.Millisecond {
		t.Errorf("PauseThreshold = %v", got)
	}
	if got := cfg.PhraseTimeLimit(); got != 30*time.Second {
		t.Errorf("PhraseTimeLimit = %v", got)
	}
}
