// Package config handles loading and managing chezmui configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// EngineConfig holds dotfile-engine invocation configuration.
type EngineConfig struct {
	Binary     string `toml:"binary"`      // Engine binary name or path
	HomeDir    string `toml:"home_dir"`    // Destination directory (default: $HOME)
	WorkingDir string `toml:"working_dir"` // Directory scoping the unmanaged view
}

// ConfirmConfig holds destructive-action confirmation configuration.
type ConfirmConfig struct {
	TwoStep bool `toml:"two_step"` // Require the typed phrase step for dangerous actions
}

// UnmanagedConfig holds unmanaged-tree listing configuration.
type UnmanagedConfig struct {
	ExcludePaths []string `toml:"exclude_paths"` // Extra path prefixes hidden from the unmanaged view
}

type Config struct {
	Engine    EngineConfig    `toml:"engine"`
	Confirm   ConfirmConfig   `toml:"confirm"`
	Unmanaged UnmanagedConfig `toml:"unmanaged"`
}

// DefaultHome returns the default chezmui home directory.
// Respects CHEZMUI_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv("CHEZMUI_HOME"); h != "" {
		return h
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/chezmui"
	}
	return filepath.Join(home, ".config", "chezmui")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			Binary: "chezmoi",
		},
		Confirm: ConfirmConfig{
			TwoStep: true,
		},
	}
}

// Load reads the configuration from the specified file.
// If path is empty, uses the default location (~/.config/chezmui/config.toml).
// A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = filepath.Join(DefaultHome(), "config.toml")
	}

	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.Engine.HomeDir = expandPath(cfg.Engine.HomeDir)
	cfg.Engine.WorkingDir = expandPath(cfg.Engine.WorkingDir)
	for i, p := range cfg.Unmanaged.ExcludePaths {
		cfg.Unmanaged.ExcludePaths[i] = expandPath(p)
	}

	return cfg, nil
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
