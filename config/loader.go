package config

import (
	"log/slog"
	"os"
	"path/filepath"
)

const (
	// ProjectConfigFile is the per-corpus config, found by walking up from
	// the working directory.
	ProjectConfigFile = "driftwatch.yaml"

	// UserConfigDir holds the per-user config under the home directory.
	UserConfigDir = ".config/driftwatch"

	// UserConfigFile is the file name inside UserConfigDir.
	UserConfigFile = "config.yaml"
)

// Loader assembles the effective configuration from layered sources:
// defaults, then the user config, then the nearest project config. Later
// layers override earlier ones field by field.
type Loader struct {
	logger *slog.Logger
}

// NewLoader creates a configuration loader.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{logger: logger}
}

// layer is one optional config source. anchorDocs marks layers whose
// relative docs dir is resolved against the config file location rather
// than the process working directory.
type layer struct {
	name       string
	path       string
	anchorDocs bool
}

// Load builds and validates the effective configuration.
func (l *Loader) Load() (*Config, error) {
	config := DefaultConfig()

	for _, lay := range []layer{
		{name: "user", path: l.userConfigPath()},
		{name: "project", path: findUpward(ProjectConfigFile), anchorDocs: true},
	} {
		if lay.path == "" {
			l.logger.Debug("No config layer found", "layer", lay.name)
			continue
		}

		overlay, err := LoadFromFile(lay.path)
		if err != nil {
			if !os.IsNotExist(err) {
				l.logger.Warn("Skipping unreadable config layer",
					"layer", lay.name, "path", lay.path, "error", err)
			}
			continue
		}

		config.Merge(overlay)
		l.logger.Debug("Applied config layer", "layer", lay.name, "path", lay.path)

		if lay.anchorDocs && !filepath.IsAbs(config.Docs.Dir) {
			config.Docs.Dir = filepath.Join(filepath.Dir(lay.path), config.Docs.Dir)
		}
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// EnsureUserConfig writes a default user config file if none exists, so a
// first run has something to edit.
func (l *Loader) EnsureUserConfig() error {
	path := l.userConfigPath()
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	if err := DefaultConfig().SaveToFile(path); err != nil {
		return err
	}
	l.logger.Info("Created default user config", "path", path)
	return nil
}

func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findUpward walks from the working directory toward the filesystem root
// and returns the first directory entry matching name, or "".
func findUpward(name string) string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
