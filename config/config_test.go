// ABOUTME: Tests for config loading: defaults, file overrides, missing and malformed files.

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("missing file must not error: %v", err)
	}
	if cfg.Pipeline.MaxReviewCycles != 3 || cfg.Speech.Voice != "sage" {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "pipeline:\n  max_parallel: 8\nspeech:\n  voice: alloy\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Pipeline.MaxParallel != 8 {
		t.Errorf("override not applied, got %d", cfg.Pipeline.MaxParallel)
	}
	if cfg.Speech.Voice != "alloy" {
		t.Errorf("override not applied, got %q", cfg.Speech.Voice)
	}
	// Untouched keys keep defaults.
	if cfg.Pipeline.MaxReviewCycles != 3 {
		t.Errorf("default lost on partial override, got %d", cfg.Pipeline.MaxReviewCycles)
	}
}

func TestLoadMalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{not yaml:::"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestNewRunIDIsUniqueAndSortable(t *testing.T) {
	a := NewRunID()
	b := NewRunID()
	if a == b {
		t.Error("run IDs must be unique")
	}
	if len(a) != 26 {
		t.Errorf("expected a 26-char ULID, got %q", a)
	}
}
