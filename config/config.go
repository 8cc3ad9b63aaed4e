// Package config loads settings from a YAML file, an optional .env file and
// LOCALNOTES_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ModeExternal = "external"
	ModeManaged  = "managed"
)

var DefaultUseCases = []string{"Meeting", "Lecture", "Brainstorm", "Interview", "Stand-up"}

type Config struct {
	HotkeyKey       string        `yaml:"hotkey_key"`
	WhisperModel    string        `yaml:"whisper_model"`
	WhisperEndpoint string        `yaml:"whisper_endpoint"`
	Language        string        `yaml:"language"`
	OllamaModel     string        `yaml:"ollama_model"`
	OllamaMode      string        `yaml:"ollama_mode"`
	OllamaHost      string        `yaml:"ollama_host"`
	OllamaBinary    string        `yaml:"ollama_binary"`
	ModelsDir       string        `yaml:"models_dir"`
	TranscriptsDir  string        `yaml:"transcripts_dir"`
	UseCases        []string      `yaml:"use_cases"`
	DefaultUseCase  string        `yaml:"default_use_case"`
	FlushInterval   time.Duration `yaml:"flush_interval"`
	ArtifactFormat  string        `yaml:"artifact_format"`
	AutoPaste       bool          `yaml:"auto_paste"`
	Device          string        `yaml:"device"`
	StartupTimeout  time.Duration `yaml:"startup_timeout"`

	// Path is the file the config was read from, if any.
	Path string `yaml:"-"`
}

func Default() *Config {
	return &Config{
		HotkeyKey:       "n",
		WhisperModel:    "base",
		WhisperEndpoint: "http://127.0.0.1:8000/v1/audio/transcriptions",
		OllamaModel:     "qwen3:8b",
		OllamaMode:      ModeExternal,
		OllamaHost:      "http://127.0.0.1:11434",
		UseCases:        append([]string(nil), DefaultUseCases...),
		DefaultUseCase:  DefaultUseCases[0],
		FlushInterval:   10 * time.Second,
		ArtifactFormat:  "wav",
		StartupTimeout:  30 * time.Second,
	}
}

// DefaultPath is <user config dir>/localnotes/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "localnotes", "config.yaml")
}

// Load reads path, or DefaultPath when path is empty. A missing default file
// is not an error; a missing explicit file is.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	loadDotEnv(filepath.Join(filepath.Dir(path), ".env"))
	loadDotEnv(".env")

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		cfg.Path = path
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.expandPaths()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadDotEnv sets variables from a .env file without overriding the
// environment.
func loadDotEnv(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = godotenv.Load(path)
}

func (c *Config) applyEnv() error {
	str := map[string]*string{
		"LOCALNOTES_HOTKEY_KEY":       &c.HotkeyKey,
		"LOCALNOTES_WHISPER_MODEL":    &c.WhisperModel,
		"LOCALNOTES_WHISPER_ENDPOINT": &c.WhisperEndpoint,
		"LOCALNOTES_LANGUAGE":         &c.Language,
		"LOCALNOTES_OLLAMA_MODEL":     &c.OllamaModel,
		"LOCALNOTES_OLLAMA_MODE":      &c.OllamaMode,
		"LOCALNOTES_OLLAMA_HOST":      &c.OllamaHost,
		"LOCALNOTES_OLLAMA_BINARY":    &c.OllamaBinary,
		"LOCALNOTES_MODELS_DIR":       &c.ModelsDir,
		"LOCALNOTES_TRANSCRIPTS_DIR":  &c.TranscriptsDir,
		"LOCALNOTES_DEFAULT_USE_CASE": &c.DefaultUseCase,
		"LOCALNOTES_ARTIFACT_FORMAT":  &c.ArtifactFormat,
		"LOCALNOTES_DEVICE":           &c.Device,
	}
	for key, dst := range str {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	if v := os.Getenv("LOCALNOTES_USE_CASES"); v != "" {
		var cases []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				cases = append(cases, s)
			}
		}
		c.UseCases = cases
	}

	durations := map[string]*time.Duration{
		"LOCALNOTES_FLUSH_INTERVAL":  &c.FlushInterval,
		"LOCALNOTES_STARTUP_TIMEOUT": &c.StartupTimeout,
	}
	for key, dst := range durations {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}

	if v := os.Getenv("LOCALNOTES_AUTO_PASTE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LOCALNOTES_AUTO_PASTE: %w", err)
		}
		c.AutoPaste = b
	}
	return nil
}

func (c *Config) expandPaths() {
	c.ModelsDir = expandTilde(c.ModelsDir)
	c.TranscriptsDir = expandTilde(c.TranscriptsDir)
	c.OllamaBinary = expandTilde(c.OllamaBinary)
}

func expandTilde(path string) string {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

func (c *Config) Validate() error {
	if c.OllamaMode != ModeExternal && c.OllamaMode != ModeManaged {
		return fmt.Errorf("ollama_mode must be %q or %q, got %q", ModeExternal, ModeManaged, c.OllamaMode)
	}
	if c.OllamaMode == ModeExternal && c.OllamaHost == "" {
		return fmt.Errorf("ollama_host cannot be empty in external mode")
	}
	if c.OllamaModel == "" {
		return fmt.Errorf("ollama_model cannot be empty")
	}
	if c.WhisperEndpoint == "" {
		return fmt.Errorf("whisper_endpoint cannot be empty")
	}
	if c.WhisperModel == "" {
		return fmt.Errorf("whisper_model cannot be empty")
	}
	if c.FlushInterval < time.Second {
		return fmt.Errorf("flush_interval must be at least 1s, got %s", c.FlushInterval)
	}
	if c.StartupTimeout <= 0 {
		return fmt.Errorf("startup_timeout must be positive, got %s", c.StartupTimeout)
	}
	if c.ArtifactFormat != "wav" && c.ArtifactFormat != "flac" {
		return fmt.Errorf("artifact_format must be wav or flac, got %q", c.ArtifactFormat)
	}
	if len(c.UseCases) == 0 {
		return fmt.Errorf("use_cases cannot be empty")
	}
	if c.DefaultUseCase == "" {
		c.DefaultUseCase = c.UseCases[0]
	}
	return nil
}
