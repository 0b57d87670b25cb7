package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/MegaGrindStone/argus-console/internal/config"
	"github.com/MegaGrindStone/argus-console/internal/console"
	"github.com/MegaGrindStone/argus-console/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
backendURL: http://argus.local:5000
port: "9090"
logLevel: debug
logFormat: json
warningThreshold: 90
taskCommands: ["/pendentes"]
voice:
  locale: en-US
  priority: ["Samantha"]
personas:
  - key: architect
    name: The Architect
    color: 0x00ff00
  - key: oracle
    name: Oracle Prime
    color: "#abc"
    control: Seer
  - key: night
    name: ""
    color: 1193046
`)

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://argus.local:5000", cfg.BackendURL)
	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, float64(90), cfg.WarningThreshold)
	assert.Equal(t, []models.Persona{
		{Key: "architect", Name: "The Architect", Color: models.NewColor(0x00ff00), Control: "Architect"},
		{Key: "oracle", Name: "Oracle Prime", Color: models.NewColor(0xaabbcc), Control: "Seer"},
		{Key: "night", Name: "", Color: models.NewColor(0x123456), Control: "Night"},
	}, cfg.Personas)

	// Unset voice fields keep their defaults.
	assert.Equal(t, "en-US", cfg.Voice.Locale)
	assert.Equal(t, []string{"Samantha"}, cfg.Voice.Priority)
	assert.Equal(t, console.DefaultVoiceConfig().Rate, cfg.Voice.Rate)

	opts := cfg.ConsoleOptions()
	assert.Equal(t, []string{"/pendentes"}, opts.TaskCommands)
	assert.Equal(t, cfg.Personas, opts.Personas)
	assert.Equal(t, "en-US", opts.Voice.Locale)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(config.BackendURLEnv, "")
	t.Setenv(config.PortEnv, "")

	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000", cfg.BackendURL)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, float64(console.DefaultWarningThreshold), cfg.WarningThreshold)
	assert.Equal(t, models.DefaultPersonas(), cfg.Personas)
	assert.Equal(t, console.DefaultVoiceConfig().Priority, cfg.Voice.Priority)
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Len(t, cfg.Personas, 4)
}

func TestLoadEnvironmentFallbacks(t *testing.T) {
	t.Setenv(config.BackendURLEnv, "http://10.0.0.2:5000")
	t.Setenv(config.PortEnv, "7000")

	cfg, err := config.Load(writeConfig(t, "logLevel: warn\n"))
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.2:5000", cfg.BackendURL)
	assert.Equal(t, "7000", cfg.Port)

	path := writeConfig(t, "port: \"1234\"\n")
	t.Setenv(config.PathEnv, path)
	cfg, err = config.Load("")
	require.NoError(t, err)
	assert.Equal(t, "1234", cfg.Port, "file wins over the environment")
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "invalid yaml", content: "port: [unterminated"},
		{name: "missing key", content: "personas:\n  - name: Nobody\n    color: 1\n"},
		{name: "duplicate key", content: "personas:\n  - key: a\n    color: 1\n  - key: a\n    color: 2\n"},
		{name: "bad color", content: "personas:\n  - key: a\n    color: purple\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer

	config.Config{LogLevel: "warn", LogFormat: "json"}.Logger(&buf).Info("hidden")
	assert.Empty(t, buf.String())

	config.Config{LogLevel: "debug", LogFormat: "json"}.Logger(&buf).Debug("shown")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	config.Config{}.Logger(&buf).Info("text")
	assert.Contains(t, buf.String(), "msg=text")
}
