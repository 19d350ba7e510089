package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	clog "github.com/charmbracelet/log"

	"minivt/internal/app"
	"minivt/internal/config"
)

func TestJournalCommandOnEmptyJournal(t *testing.T) {
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"journal", filepath.Join(t.TempDir(), "journal.db")})
	if err := root.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), "no sessions recorded") {
		t.Fatalf("unexpected output %q", out.String())
	}
}

func TestReplayCommandRequiresFile(t *testing.T) {
	root := newRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"replay"})
	if err := root.Execute(); err == nil {
		t.Fatalf("expected argument error")
	}
}

func TestApplyFlagsOverridesConfig(t *testing.T) {
	flags := &rootFlags{}
	root := newRootCommandWith(flags)
	printCmd, _, err := root.Find([]string{"print"})
	if err != nil {
		t.Fatalf("find print: %v", err)
	}
	if err := printCmd.ParseFlags([]string{"--width", "40", "--silent", "--debounce-ms", "10"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg := config.DefaultConfig()
	applyFlags(printCmd, flags, &cfg)
	if cfg.Width != 40 || cfg.Height != 24 {
		t.Fatalf("unexpected size %dx%d", cfg.Width, cfg.Height)
	}
	if !cfg.Silent || cfg.Engine.DebounceMS != 10 {
		t.Fatalf("flags not applied: %+v", cfg)
	}
}

func TestNewLoggerLevels(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.Level = "debug"
	cfg.Logging.Path = filepath.Join(t.TempDir(), "minivt.log")
	logger, closeLog, err := newLogger(cfg, app.ModePrint)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	defer closeLog()
	if logger.GetLevel() != clog.DebugLevel {
		t.Fatalf("expected debug level, got %v", logger.GetLevel())
	}
}
