// Package config loads the optional packlist config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const fileName = "config.yaml"

// Config is everything tunable from ~/.packlist/config.yaml. A missing
// file yields the defaults.
type Config struct {
	// DataDir holds the checklist record and logs.
	DataDir string `yaml:"data_dir"`
	// Theme selects the terminal palette: classic, neon, or mono.
	Theme string `yaml:"theme"`
	// Debug enables verbose logging.
	Debug bool `yaml:"debug"`
	// QuotaBytes caps the size of the stored record. 0 means unlimited.
	QuotaBytes int `yaml:"quota_bytes"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		DataDir: defaultDataDir(),
		Theme:   "classic",
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		// Degraded but functional; the CLI still works from anywhere.
		return ".packlist"
	}
	return filepath.Join(home, ".packlist")
}

// Load reads the config at path, or the default location inside the
// default data dir when path is empty. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = filepath.Join(cfg.DataDir, fileName)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if cfg.DataDir == "" {
		cfg.DataDir = defaultDataDir()
	}
	if cfg.Theme == "" {
		cfg.Theme = "classic"
	}
	return cfg, nil
}
