// Package config handles reading and writing the sova config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level structure for config.yaml. Missing fields
// keep their defaults, so a partial file only overrides what it names.
type Config struct {
	Hotkey  string        `yaml:"hotkey"`
	HUD     HUDConfig     `yaml:"hud"`
	Speech  SpeechConfig  `yaml:"speech"`
	LLM     LLMConfig     `yaml:"llm"`
	Voice   VoiceConfig   `yaml:"voice"`
	Logging LoggingConfig `yaml:"logging"`
}

// HUDConfig controls the on-screen overlay.
type HUDConfig struct {
	AutoHideDelayMs int `yaml:"auto_hide_delay_ms"`
}

// SpeechConfig controls microphone capture and recognition.
type SpeechConfig struct {
	Language        string  `yaml:"language"`
	EnergyThreshold float64 `yaml:"energy_threshold"`
	PauseThreshold  float64 `yaml:"pause_threshold"`   // seconds of silence ending a phrase
	PhraseTimeLimit float64 `yaml:"phrase_time_limit"` // seconds, hard cap per capture
	Device          string  `yaml:"device"`
}

// LLMConfig points at an OpenAI-compatible chat completions endpoint.
type LLMConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	APIKey      string  `yaml:"api_key"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSecs int     `yaml:"timeout_seconds"`
	HistoryMax  int     `yaml:"history_max"`
	System      string  `yaml:"system_prompt"`
}

// VoiceConfig selects the synthesized reply voice.
type VoiceConfig struct {
	Name string `yaml:"name"`
}

// LoggingConfig controls where diagnostics and conversation logs go.
type LoggingConfig struct {
	Dir string `yaml:"dir"`
}

const configFile = "config.yaml"

// DefaultDir returns the per-user config directory for sova.
func DefaultDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "sova"), nil
}

// Path returns the config file path inside dir.
func Path(dir string) string {
	return filepath.Join(dir, configFile)
}

// Load reads config.yaml from dir, merging it over the defaults.
// A missing file is not an error; defaults are returned as-is.
func Load(dir string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(Path(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// Write writes cfg to config.yaml in dir, creating dir if needed.
func Write(dir string, cfg *Config) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}

	if err := os.WriteFile(Path(dir), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// WriteSample writes a default config.yaml to dir unless one exists.
func WriteSample(dir string) (string, error) {
	path := Path(dir)
	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("config already exists at %s", path)
	}
	if err := Write(dir, Default()); err != nil {
		return "", err
	}
	return path, nil
}

// Default returns a Config populated with the stock settings.
func Default() *Config {
	return &Config{
		Hotkey: "ctrl+shift+space",
		HUD: HUDConfig{
			AutoHideDelayMs: 5000,
		},
		Speech: SpeechConfig{
			Language:        "th-TH",
			EnergyThreshold: 300,
			PauseThreshold:  1.5,
			PhraseTimeLimit: 30,
		},
		LLM: LLMConfig{
			BaseURL:     "http://localhost:4000/v1",
			Model:       "openclaw",
			Temperature: 0.7,
			MaxTokens:   1024,
			TimeoutSecs: 60,
			HistoryMax:  40,
			System:      "You are a helpful voice assistant. Keep answers short and speakable.",
		},
		Voice: VoiceConfig{
			Name: "th-TH-PremwadeeNeural",
		},
	}
}

// AutoHideDelay returns the HUD auto-hide delay as a duration.
func (c *Config) AutoHideDelay() time.Duration {
	return time.Duration(c.HUD.AutoHideDelayMs) * time.Millisecond
}

// LLMTimeout returns the per-request LLM timeout as a duration.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSecs) * time.Second
}

// PauseThreshold returns the end-of-phrase silence window as a duration.
func (c *Config) PauseThreshold() time.Duration {
	return time.Duration(c.Speech.PauseThreshold * float64(time.Second))
}

// PhraseTimeLimit returns the hard capture cap as a duration.
func (c *Config) PhraseTimeLimit() time.Duration {
	return time.Duration(c.Speech.PhraseTimeLimit * float64(time.Second))
}
