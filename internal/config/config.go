package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"minivt/internal/term"
)

// Config controls runtime behavior for the minivt binary.
type Config struct {
	Width    int      `yaml:"width"`
	Height   int      `yaml:"height"`
	Command  []string `yaml:"command"`
	Dir      string   `yaml:"dir"`
	TermName string   `yaml:"term_name"`
	Silent   bool     `yaml:"silent"`

	Engine  EngineConfig  `yaml:"engine"`
	Logging LoggingConfig `yaml:"logging"`
	Output  OutputConfig  `yaml:"output"`
}

type EngineConfig struct {
	DebounceMS      int `yaml:"debounce_ms"`
	MaxRunBytes     int `yaml:"max_run_bytes"`
	InputQueueBytes int `yaml:"input_queue_bytes"`
	ReapTimeoutMS   int `yaml:"reap_timeout_ms"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

type OutputConfig struct {
	TracePath   string `yaml:"trace_path"`
	JournalPath string `yaml:"journal_path"`
	CursorGlyph string `yaml:"cursor_glyph"`
}

func DefaultConfig() Config {
	return Config{
		Width:    term.DefaultWidth,
		Height:   term.DefaultHeight,
		TermName: term.DefaultTermName,
		Engine: EngineConfig{
			DebounceMS:      int(term.DefaultDebounce / time.Millisecond),
			MaxRunBytes:     term.DefaultMaxRunBytes,
			InputQueueBytes: term.DefaultInputQueueBytes,
			ReapTimeoutMS:   int(term.DefaultReapTimeout / time.Millisecond),
		},
		Logging: LoggingConfig{
			Level: "warn",
		},
		Output: OutputConfig{
			CursorGlyph: "_",
		},
	}
}

// Load reads a YAML file on top of DefaultConfig. An empty path returns
// the defaults.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Width < 0 || c.Height < 0 {
		return fmt.Errorf("invalid terminal size %dx%d", c.Width, c.Height)
	}
	if c.Width == 0 {
		c.Width = term.DefaultWidth
	}
	if c.Height == 0 {
		c.Height = term.DefaultHeight
	}
	if c.Width > 0xffff || c.Height > 0xffff {
		return fmt.Errorf("terminal size %dx%d out of range", c.Width, c.Height)
	}
	if len(c.Command) > 0 && strings.TrimSpace(c.Command[0]) == "" {
		return fmt.Errorf("command must name a program")
	}
	c.TermName = strings.TrimSpace(c.TermName)
	if c.TermName == "" {
		c.TermName = term.DefaultTermName
	}

	if c.Engine.DebounceMS < 0 {
		return fmt.Errorf("invalid engine debounce %dms", c.Engine.DebounceMS)
	}
	if c.Engine.DebounceMS == 0 {
		c.Engine.DebounceMS = int(term.DefaultDebounce / time.Millisecond)
	}
	if c.Engine.MaxRunBytes < 0 || c.Engine.MaxRunBytes > 8 {
		return fmt.Errorf("invalid engine max run bytes %d", c.Engine.MaxRunBytes)
	}
	if c.Engine.MaxRunBytes == 0 {
		c.Engine.MaxRunBytes = term.DefaultMaxRunBytes
	}
	if c.Engine.InputQueueBytes <= 0 {
		c.Engine.InputQueueBytes = term.DefaultInputQueueBytes
	}
	if c.Engine.ReapTimeoutMS <= 0 {
		c.Engine.ReapTimeoutMS = int(term.DefaultReapTimeout / time.Millisecond)
	}

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch c.Logging.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level %q", c.Logging.Level)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "warn"
	}

	if c.Output.CursorGlyph == "" {
		c.Output.CursorGlyph = "_"
	}
	if n := len([]rune(c.Output.CursorGlyph)); n != 1 {
		return fmt.Errorf("cursor glyph must be a single character, got %q", c.Output.CursorGlyph)
	}
	return nil
}

// TermConfig maps the file settings onto the terminal engine.
func (c Config) TermConfig() term.Config {
	return term.Config{
		Width:           c.Width,
		Height:          c.Height,
		Command:         append([]string(nil), c.Command...),
		Dir:             c.Dir,
		TermName:        c.TermName,
		Debounce:        time.Duration(c.Engine.DebounceMS) * time.Millisecond,
		MaxRunBytes:     c.Engine.MaxRunBytes,
		InputQueueBytes: c.Engine.InputQueueBytes,
		ReapTimeout:     time.Duration(c.Engine.ReapTimeoutMS) * time.Millisecond,
	}
}
