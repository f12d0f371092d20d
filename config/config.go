package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"stickies/hotkey"
)

type UtteranceConfig struct {
	Threshold float64       `yaml:"threshold"`
	Silence   time.Duration `yaml:"silence"`
	Max       time.Duration `yaml:"max"`
}

type ExecConfig struct {
	Command string `yaml:"command"`
	Model   string `yaml:"model"`
}

type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type Config struct {
	NotesDir      string          `yaml:"notes_dir"`
	Extension     string          `yaml:"extension"`
	Provider      string          `yaml:"provider"`
	Language      string          `yaml:"language"`
	Device        string          `yaml:"device"`
	ListenTimeout time.Duration   `yaml:"listen_timeout"`
	RetryDelay    time.Duration   `yaml:"retry_delay"`
	Utterance     UtteranceConfig `yaml:"utterance"`
	Exec          ExecConfig      `yaml:"exec"`
	Journal       JournalConfig   `yaml:"journal"`
	Hotkey        bool            `yaml:"hotkey"`
	HotkeyCombo   string          `yaml:"hotkey_combo"`
	Cues          bool            `yaml:"cues"`
	LogLevel      string          `yaml:"log_level"`
}

var providers = map[string]bool{"": true, "groq": true, "openai": true, "deepgram": true, "exec": true, "fake": true}

func Default() Config {
	home, _ := os.UserHomeDir()
	return Config{
		NotesDir:   filepath.Join(home, "Notes"),
		Extension:  ".txt",
		RetryDelay: 500 * time.Millisecond,
		Utterance: UtteranceConfig{
			Threshold: 0.015,
			Silence:   800 * time.Millisecond,
			Max:       30 * time.Second,
		},
		Journal:  JournalConfig{Enabled: true},
		Hotkey:      true,
		HotkeyCombo: hotkey.DefaultCombo,
		Cues:        true,
		LogLevel:    "info",
	}
}

// DefaultPath is <UserConfigDir>/stickies/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "stickies", "config.yaml")
}

// Loader reads the YAML file and applies environment overrides. Tests can
// override Lookup to inject deterministic maps.
type Loader struct {
	Lookup func(string) (string, bool)
	// Path overrides $STICKIES_CONFIG and the default location.
	Path string
}

func (l Loader) Load() (Config, error) {
	if l.Lookup == nil {
		l.Lookup = os.LookupEnv
	}
	cfg := Default()

	path := l.Path
	if path == "" {
		if v, ok := l.Lookup("STICKIES_CONFIG"); ok && strings.TrimSpace(v) != "" {
			path = strings.TrimSpace(v)
		} else {
			path = DefaultPath()
		}
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
			}
		}
	}

	overrideString(l.Lookup, "STICKIES_NOTES_DIR", &cfg.NotesDir)
	overrideString(l.Lookup, "STICKIES_PROVIDER", &cfg.Provider)
	overrideString(l.Lookup, "STICKIES_LANGUAGE", &cfg.Language)
	overrideString(l.Lookup, "STICKIES_DEVICE", &cfg.Device)
	overrideString(l.Lookup, "STICKIES_EXEC_COMMAND", &cfg.Exec.Command)
	overrideString(l.Lookup, "STICKIES_LOG_LEVEL", &cfg.LogLevel)
	overrideString(l.Lookup, "STICKIES_HOTKEY_COMBO", &cfg.HotkeyCombo)
	if err := overrideDuration(l.Lookup, "STICKIES_LISTEN_TIMEOUT", &cfg.ListenTimeout); err != nil {
		return Config{}, err
	}
	if err := overrideBool(l.Lookup, "STICKIES_CUES", &cfg.Cues); err != nil {
		return Config{}, err
	}

	cfg.NotesDir = expandHome(cfg.NotesDir)
	cfg.Journal.Path = expandHome(cfg.Journal.Path)
	cfg.Provider = strings.ToLower(cfg.Provider)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.NotesDir) == "" {
		problems = append(problems, "notes_dir is empty")
	}
	if !providers[c.Provider] {
		problems = append(problems, fmt.Sprintf("unknown provider %q", c.Provider))
	}
	if c.Provider == "exec" && strings.TrimSpace(c.Exec.Command) == "" {
		problems = append(problems, "provider exec needs exec.command")
	}
	for name, d := range map[string]time.Duration{
		"listen_timeout":    c.ListenTimeout,
		"retry_delay":       c.RetryDelay,
		"utterance.silence": c.Utterance.Silence,
		"utterance.max":     c.Utterance.Max,
	} {
		if d < 0 {
			problems = append(problems, name+" is negative")
		}
	}
	if c.Hotkey {
		if _, err := hotkey.ParseCombo(c.HotkeyCombo); err != nil {
			problems = append(problems, "hotkey_combo: "+err.Error())
		}
	}
	if c.Utterance.Threshold < 0 || c.Utterance.Threshold >= 1 {
		problems = append(problems, "utterance.threshold must be in [0, 1)")
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func expandHome(p string) string {
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

func overrideString(lookup func(string) (string, bool), key string, target *string) {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		*target = strings.TrimSpace(value)
	}
}

func overrideDuration(lookup func(string) (string, bool), key string, target *time.Duration) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*target = d
	return nil
}

func overrideBool(lookup func(string) (string, bool), key string, target *bool) error {
	value, ok := lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("config: %s: %w", key, err)
	}
	*target = b
	return nil
}
