// ABOUTME: Tests for the sandbox runner using stub binaries instead of a real manim install.
// ABOUTME: Covers exit-code capture, timeout kills, validation short-circuit, and fallback output recovery.

package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRunCapturesOutputAndExitCode(t *testing.T) {
	r := &Runner{}
	res, err := r.run(context.Background(), 5*time.Second, t.TempDir(),
		"sh", "-c", "echo to-stdout; echo to-stderr >&2; exit 3")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.ExitCode != 3 {
		t.Errorf("expected exit code 3, got %d", res.ExitCode)
	}
	if !strings.Contains(res.Stdout, "to-stdout") {
		t.Errorf("stdout not captured: %q", res.Stdout)
	}
	if !strings.Contains(res.Stderr, "to-stderr") {
		t.Errorf("stderr not captured: %q", res.Stderr)
	}
	if res.OK() {
		t.Error("nonzero exit must not report OK")
	}
}

func TestRunKillsOnTimeout(t *testing.T) {
	r := &Runner{}
	res, err := r.run(context.Background(), 100*time.Millisecond, t.TempDir(), "sleep", "30")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.TimedOut {
		t.Fatal("expected TimedOut")
	}
	if res.OK() {
		t.Error("timed-out run must not report OK")
	}
	if !strings.Contains(res.Logs(), "timeout") {
		t.Errorf("logs should mention the timeout: %q", res.Logs())
	}
}

func TestRunTimeoutNotHeldOpenByGrandchild(t *testing.T) {
	r := &Runner{}
	start := time.Now()
	// The background sleep inherits the output pipes; a kill that only hits
	// the shell would leave Wait blocked until the sleep finishes.
	res, err := r.run(context.Background(), 200*time.Millisecond, t.TempDir(),
		"sh", "-c", "sleep 30 & sleep 30")
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !res.TimedOut {
		t.Fatal("expected TimedOut")
	}
	if elapsed > 5*time.Second {
		t.Fatalf("run returned after %v, deadline was 200ms", elapsed)
	}
}

func TestRunOrphanHoldingPipesDoesNotBlockExit(t *testing.T) {
	r := &Runner{}
	start := time.Now()
	// The shell exits immediately; only the orphaned sleep keeps the pipes
	// open, so Wait must give up on them after the grace period.
	res, err := r.run(context.Background(), 30*time.Second, t.TempDir(),
		"sh", "-c", "sleep 30 & echo started; exit 0")
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.TimedOut {
		t.Error("leader exited in time, run must not report a timeout")
	}
	if res.ExitCode != 0 {
		t.Errorf("expected exit code 0, got %d", res.ExitCode)
	}
	if !strings.Contains(res.Stdout, "started") {
		t.Errorf("stdout written before exit should be captured: %q", res.Stdout)
	}
	if elapsed > 10*time.Second {
		t.Fatalf("run returned after %v, should be bounded by the pipe grace period", elapsed)
	}
}

func TestValidateSyntaxFailureSkipsDryRun(t *testing.T) {
	r := &Runner{
		PythonBin: "false",
		ManimBin:  "definitely-not-on-path",
	}
	res, err := r.Validate(context.Background(), "not python at all", "Segment0")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if res.OK() {
		t.Error("syntax check failure must report not OK")
	}
}

func TestValidatePassesWithStubBinaries(t *testing.T) {
	r := &Runner{PythonBin: "true", ManimBin: "true"}
	res, err := r.Validate(context.Background(), "from manim import *", "Segment0")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !res.OK() {
		t.Errorf("expected OK, got exit %d logs %q", res.ExitCode, res.Logs())
	}
}

func TestRecoverDefaultOutput(t *testing.T) {
	workDir := t.TempDir()
	scriptPath := filepath.Join(workDir, "segment_2.py")
	fallback := filepath.Join(workDir, "media", "videos", "segment_2", "720p30", "Segment2.mp4")
	if err := os.MkdirAll(filepath.Dir(fallback), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fallback, []byte("fake video"), 0o644); err != nil {
		t.Fatal(err)
	}

	outPath := filepath.Join(workDir, "segment_2.mp4")
	got := recoverDefaultOutput(workDir, scriptPath, "Segment2", outPath)
	if got != outPath {
		t.Fatalf("expected recovery to %s, got %q", outPath, got)
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Errorf("recovered file missing: %v", err)
	}
	if _, err := os.Stat(fallback); !os.IsNotExist(err) {
		t.Error("fallback file should have been moved away")
	}
}

func TestRecoverDefaultOutputMissing(t *testing.T) {
	workDir := t.TempDir()
	got := recoverDefaultOutput(workDir, filepath.Join(workDir, "scene.py"), "Scene", filepath.Join(workDir, "out.mp4"))
	if got != "" {
		t.Errorf("expected empty path, got %q", got)
	}
}

func TestRenderRecoversFromFallbackLocation(t *testing.T) {
	workDir := t.TempDir()
	scriptPath := filepath.Join(workDir, "segment_0.py")
	if err := os.WriteFile(scriptPath, []byte("from manim import *"), 0o644); err != nil {
		t.Fatal(err)
	}

	// Stub manim exits nonzero but the video is already sitting in the
	// convention-based default location.
	stub := filepath.Join(workDir, "fake-manim")
	if err := os.WriteFile(stub, []byte("#!/bin/sh\nexit 1\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	fallback := filepath.Join(workDir, "media", "videos", "segment_0", "1080p60", "Segment0.mp4")
	if err := os.MkdirAll(filepath.Dir(fallback), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(fallback, []byte("fake video"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := &Runner{ManimBin: stub}
	outPath := filepath.Join(workDir, "out", "segment_0.mp4")
	got, res, err := r.Render(context.Background(), scriptPath, "Segment0", outPath)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if res.OK() {
		t.Error("stub exits 1, result should not be OK")
	}
	if got == "" {
		t.Fatal("expected fallback recovery to yield a video path")
	}
	if _, statErr := os.Stat(got); statErr != nil {
		t.Errorf("recovered video missing: %v", statErr)
	}
}

func TestRenderNoOutputReturnsEmptyPath(t *testing.T) {
	workDir := t.TempDir()
	scriptPath := filepath.Join(workDir, "segment_1.py")
	if err := os.WriteFile(scriptPath, []byte("from manim import *"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := &Runner{ManimBin: "false"}
	got, res, err := r.Render(context.Background(), scriptPath, "Segment1", filepath.Join(workDir, "out.mp4"))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "" {
		t.Errorf("expected empty path, got %q", got)
	}
	if res.OK() {
		t.Error("failed render should not be OK")
	}
}
