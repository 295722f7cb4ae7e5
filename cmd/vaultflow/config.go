package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/emarren/vaultflow/internal/trigger"
)

// Config holds all vaultflow configuration.
// Priority: env vars > settings.json > defaults.
type Config struct {
	VaultDir string `json:"vault_dir"`
	DBPath   string `json:"db_path"` // empty keeps history in memory
	LogLevel string `json:"log_level"`
	MaxSteps int    `json:"max_steps"`

	Bindings  []trigger.Binding  `json:"bindings,omitempty"`
	Schedules []trigger.Schedule `json:"schedules,omitempty"`
}

func defaultConfig() Config {
	return Config{
		VaultDir: ".",
		DBPath:   filepath.Join(vaultflowDir(), "history.db"),
		LogLevel: "info",
		MaxSteps: 10000,
	}
}

func vaultflowDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".vaultflow"
	}
	return filepath.Join(home, ".vaultflow")
}

func settingsPath() string {
	return filepath.Join(vaultflowDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("VAULTFLOW_VAULT_DIR"); v != "" {
		cfg.VaultDir = v
	}
	if v := os.Getenv("VAULTFLOW_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("VAULTFLOW_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("VAULTFLOW_MAX_STEPS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxSteps = n
		}
	}

	return cfg
}
