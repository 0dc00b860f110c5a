package nova

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RateConfig bounds outbound backend requests.
type RateConfig struct {
	Requests      int `yaml:"requests"`
	WindowSeconds int `yaml:"window_seconds"`
}

// Window returns the configured window as a duration.
func (rc RateConfig) Window() time.Duration {
	return time.Duration(rc.WindowSeconds) * time.Second
}

// Config is the runtime configuration, loaded from a YAML file with
// every field optional.
type Config struct {
	ComponentsDir string     `yaml:"components_dir"`
	Backend       string     `yaml:"backend"`
	Model         string     `yaml:"model"`
	SystemPrompt  string     `yaml:"system_prompt"`
	Continuation  string     `yaml:"continuation"`
	RateLimit     RateConfig `yaml:"rate_limit"`
	TranscriptDB  string     `yaml:"transcript_db"`
	Watch         bool       `yaml:"watch"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		ComponentsDir: DefaultComponentsDir(),
		Backend:       "anthropic",
		Continuation:  DefaultContinuation,
		RateLimit: RateConfig{
			Requests:      DefaultRateLimit,
			WindowSeconds: int(DefaultRateWindow / time.Second),
		},
		TranscriptDB: DefaultDBPath(),
	}
}

// LoadConfig reads a YAML config file over the defaults. An empty path
// returns the defaults unchanged.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	if cfg.ComponentsDir == "" {
		cfg.ComponentsDir = DefaultComponentsDir()
	}
	if cfg.Backend == "" {
		cfg.Backend = "anthropic"
	}
	if cfg.Continuation == "" {
		cfg.Continuation = DefaultContinuation
	}
	if cfg.RateLimit.Requests <= 0 {
		cfg.RateLimit.Requests = DefaultRateLimit
	}
	if cfg.RateLimit.WindowSeconds <= 0 {
		cfg.RateLimit.WindowSeconds = int(DefaultRateWindow / time.Second)
	}
	if cfg.TranscriptDB == "" {
		cfg.TranscriptDB = DefaultDBPath()
	}

	return cfg, nil
}
