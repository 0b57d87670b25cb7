// Package config loads the console configuration from a YAML file, filling in defaults and environment
// fallbacks.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/MegaGrindStone/argus-console/internal/console"
	"github.com/MegaGrindStone/argus-console/internal/models"
	"gopkg.in/yaml.v3"
)

// Config is the console configuration shared by the web and terminal consoles.
type Config struct {
	BackendURL string `yaml:"backendURL"`
	Port       string `yaml:"port"`

	LogLevel  string `yaml:"logLevel"`
	LogFormat string `yaml:"logFormat"`

	// CodeStyle is the chroma style of highlighted code in the web console.
	CodeStyle string `yaml:"codeStyle"`
	// GlamourStyle is the glamour style of the terminal console.
	GlamourStyle string `yaml:"glamourStyle"`

	WarningThreshold float64  `yaml:"warningThreshold"`
	GestureMarker    string   `yaml:"gestureMarker"`
	TaskCommands     []string `yaml:"taskCommands"`
	TaskKeywords     []string `yaml:"taskKeywords"`

	Voice    VoiceConfig      `yaml:"voice"`
	Personas []models.Persona `yaml:"-"`
}

// VoiceConfig tunes speech output.
type VoiceConfig struct {
	Locale   string   `yaml:"locale"`
	Priority []string `yaml:"priority"`
	Rate     float64  `yaml:"rate"`
	Pitch    float64  `yaml:"pitch"`
}

type personaConfig struct {
	Key     string `yaml:"key"`
	Name    string `yaml:"name"`
	Color   any    `yaml:"color"`
	Control string `yaml:"control"`
}

const (
	// PathEnv overrides the configuration file location.
	PathEnv = "ARGUS_CONFIG"
	// BackendURLEnv is used when the file does not set backendURL.
	BackendURLEnv = "ARGUS_BACKEND_URL"
	// PortEnv is used when the file does not set port.
	PortEnv = "ARGUS_PORT"

	defaultBackendURL = "http://localhost:5000"
	defaultPort       = "8080"
)

// UnmarshalYAML decodes the file form of Config. Persona colors may be written in any form ParseColor
// accepts, including bare YAML integers such as 0xff8800.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	type plain Config
	var raw struct {
		plain    `yaml:",inline"`
		Personas []personaConfig `yaml:"personas"`
	}

	if err := value.Decode(&raw); err != nil {
		return err
	}

	*c = Config(raw.plain)

	seen := make(map[string]bool, len(raw.Personas))
	for i, p := range raw.Personas {
		if p.Key == "" {
			return fmt.Errorf("persona %d: key is required", i)
		}
		if seen[p.Key] {
			return fmt.Errorf("persona %s: duplicate key", p.Key)
		}
		seen[p.Key] = true

		color, err := models.ParseColor(p.Color)
		if err != nil {
			return fmt.Errorf("persona %s: %w", p.Key, err)
		}

		control := p.Control
		if control == "" {
			control = defaultControl(p.Name, p.Key)
		}
		c.Personas = append(c.Personas, models.Persona{
			Key:     p.Key,
			Name:    p.Name,
			Color:   color,
			Control: control,
		})
	}

	return nil
}

// defaultControl is the first significant word of the persona name, or the capitalized key.
func defaultControl(name, key string) string {
	words := strings.Fields(name)
	if len(words) > 1 && strings.EqualFold(words[0], "the") {
		words = words[1:]
	}
	if len(words) > 0 {
		return words[0]
	}
	if key == "" {
		return ""
	}
	return strings.ToUpper(key[:1]) + key[1:]
}

// DefaultPath returns the configuration file location: $ARGUS_CONFIG, or argus/config.yaml under the
// user config directory.
func DefaultPath() (string, error) {
	if p := os.Getenv(PathEnv); p != "" {
		return p, nil
	}
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("error getting user config dir: %w", err)
	}
	return filepath.Join(cfgDir, "argus", "config.yaml"), nil
}

// Load reads the configuration at path, or at DefaultPath when path is empty. A missing file is not an
// error: the defaults are used.
func Load(path string) (Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return Config{}, err
		}
		path = p
	}

	var cfg Config

	f, err := os.Open(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("error opening config file: %w", err)
	default:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("error decoding config file: %w", err)
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.BackendURL == "" {
		c.BackendURL = os.Getenv(BackendURLEnv)
	}
	if c.BackendURL == "" {
		c.BackendURL = defaultBackendURL
	}
	if c.Port == "" {
		c.Port = os.Getenv(PortEnv)
	}
	if c.Port == "" {
		c.Port = defaultPort
	}
	if c.WarningThreshold <= 0 {
		c.WarningThreshold = console.DefaultWarningThreshold
	}
	if len(c.Personas) == 0 {
		c.Personas = models.DefaultPersonas()
	}

	def := console.DefaultVoiceConfig()
	if c.Voice.Locale == "" {
		c.Voice.Locale = def.Locale
	}
	if len(c.Voice.Priority) == 0 {
		c.Voice.Priority = def.Priority
	}
	if c.Voice.Rate == 0 {
		c.Voice.Rate = def.Rate
	}
	if c.Voice.Pitch == 0 {
		c.Voice.Pitch = def.Pitch
	}
}

// ConsoleOptions converts the configuration into console options. The speech engines are left for the
// caller to set.
func (c Config) ConsoleOptions() console.Options {
	return console.Options{
		Personas:         c.Personas,
		WarningThreshold: c.WarningThreshold,
		Voice: console.VoiceConfig{
			Locale:   c.Voice.Locale,
			Priority: c.Voice.Priority,
			Rate:     c.Voice.Rate,
			Pitch:    c.Voice.Pitch,
		},
		TaskCommands:  c.TaskCommands,
		TaskKeywords:  c.TaskKeywords,
		GestureMarker: c.GestureMarker,
	}
}

// Logger builds the slog logger described by LogLevel and LogFormat. Unknown levels fall back to info.
func (c Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
