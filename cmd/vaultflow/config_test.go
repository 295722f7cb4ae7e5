package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("VAULTFLOW_VAULT_DIR", "/tmp/vault")
	t.Setenv("VAULTFLOW_LOG_LEVEL", "debug")
	t.Setenv("VAULTFLOW_MAX_STEPS", "250")

	cfg := loadConfig()
	assert.Equal(t, "/tmp/vault", cfg.VaultDir)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 250, cfg.MaxSteps)
}

func TestLoadConfig_BadMaxStepsKeepsDefault(t *testing.T) {
	t.Setenv("VAULTFLOW_MAX_STEPS", "lots")
	cfg := loadConfig()
	assert.Equal(t, defaultConfig().MaxSteps, cfg.MaxSteps)
}

func TestVarFlags(t *testing.T) {
	var v varFlags
	assert.NoError(t, v.Set("topic=go"))
	assert.NoError(t, v.Set("limit=5"))
	assert.Error(t, v.Set("novalue"))
	assert.Equal(t, map[string]any{"topic": "go", "limit": "5"}, v.values)
}
