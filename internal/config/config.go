// Package config loads daemon settings from ~/.cloak/config.toml with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	defaultAddr          = "127.0.0.1:8064"
	defaultLogFile       = "~/.cloak/audit.log"
	defaultModelDir      = "~/.cloak/models/ner_en"
	defaultMaxChars      = 2000
	defaultOverlapChars  = 100
	defaultMinConfidence = 0.5
	defaultStrategy      = "mask"
	defaultTimeout       = 30 * time.Second
)

type Config struct {
	Addr            string   `toml:"addr"`
	LogFile         string   `toml:"log_file"`
	ModelDir        string   `toml:"model_dir"`
	NEREnabled      bool     `toml:"ner_enabled"`
	MaxChars        int      `toml:"max_chars"`
	OverlapChars    int      `toml:"overlap_chars"`
	MinConfidence   float64  `toml:"min_confidence"`
	Strategy        string   `toml:"strategy"`
	Labels          []string `toml:"labels"`
	LabelPriority   []string `toml:"label_priority"`
	DetectTimeoutMs int      `toml:"detect_timeout_ms"`
}

func Default() Config {
	return Config{
		Addr:            defaultAddr,
		LogFile:         defaultLogFile,
		ModelDir:        defaultModelDir,
		NEREnabled:      true,
		MaxChars:        defaultMaxChars,
		OverlapChars:    defaultOverlapChars,
		MinConfidence:   defaultMinConfidence,
		Strategy:        defaultStrategy,
		DetectTimeoutMs: int(defaultTimeout / time.Millisecond),
	}
}

func ConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cloak", "config.toml"), nil
}

func EnsureConfigDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// Load reads path (missing file means defaults), applies CLOAK_* environment
// overrides, expands ~ in paths and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	applyEnv(&cfg)
	cfg.LogFile = expandHome(cfg.LogFile)
	cfg.ModelDir = expandHome(cfg.ModelDir)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CLOAK_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("CLOAK_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("CLOAK_MODEL_DIR"); v != "" {
		cfg.ModelDir = v
	}
	if v := os.Getenv("CLOAK_NER_ENABLED"); v != "" {
		cfg.NEREnabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("CLOAK_STRATEGY"); v != "" {
		cfg.Strategy = v
	}
	if v := os.Getenv("CLOAK_MAX_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxChars = n
		}
	}
	if v := os.Getenv("CLOAK_OVERLAP_CHARS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.OverlapChars = n
		}
	}
	if v := os.Getenv("CLOAK_MIN_CONFIDENCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.MinConfidence = f
		}
	}
	if v := os.Getenv("CLOAK_LABELS"); v != "" {
		cfg.Labels = splitList(v)
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}

func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config: addr must not be empty")
	}
	if c.MaxChars <= 0 {
		return fmt.Errorf("config: max_chars must be positive")
	}
	if c.OverlapChars < 0 || c.OverlapChars >= c.MaxChars {
		return fmt.Errorf("config: overlap_chars %d must be in [0, max_chars)", c.OverlapChars)
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("config: min_confidence must be within [0,1]")
	}
	if c.DetectTimeoutMs < 0 {
		return fmt.Errorf("config: detect_timeout_ms must not be negative")
	}
	return nil
}

func (c Config) DetectTimeout() time.Duration {
	return time.Duration(c.DetectTimeoutMs) * time.Millisecond
}

func expandHome(p string) string {
	if !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, p[2:])
}
