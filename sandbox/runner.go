// ABOUTME: Sandboxed execution of generated manim scenes: syntax check, dry-run validation, and full renders.
// ABOUTME: Every invocation is bounded by a wall-clock timeout and killed at the process-group level on expiry.

package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
)

const (
	defaultCompileTimeout  = 30 * time.Second
	defaultValidateTimeout = 60 * time.Second
	defaultRenderTimeout   = 180 * time.Second
)

// Result captures one subprocess invocation. A timeout is reported through
// TimedOut rather than an error: the caller decides whether it is fatal.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// OK reports whether the invocation finished in time with exit status zero.
func (r *Result) OK() bool { return r != nil && !r.TimedOut && r.ExitCode == 0 }

// Logs returns combined stdout and stderr for diagnostics.
func (r *Result) Logs() string {
	if r == nil {
		return ""
	}
	if r.TimedOut {
		return strings.TrimSpace(r.Stdout + "\n" + r.Stderr + "\nprocess killed: wall-clock timeout exceeded")
	}
	return strings.TrimSpace(r.Stdout + "\n" + r.Stderr)
}

// Runner executes generated scene code in subprocesses. The zero value is
// usable; fields override binaries, timeouts, and scratch placement.
type Runner struct {
	PythonBin       string        // default "python3"
	ManimBin        string        // default "manim"
	ScratchRoot     string        // default os.TempDir()
	CompileTimeout  time.Duration // python -m py_compile budget
	ValidateTimeout time.Duration // dry-run budget per scene
	RenderTimeout   time.Duration // full render budget per scene
}

func (r *Runner) python() string { return orDefault(r.PythonBin, "python3") }
func (r *Runner) manim() string  { return orDefault(r.ManimBin, "manim") }

func orDefault(v, d string) string {
	if v == "" {
		return d
	}
	return v
}

func orDuration(v, d time.Duration) time.Duration {
	if v <= 0 {
		return d
	}
	return v
}

// Validate writes the candidate code to a scratch file and runs it through a
// syntax check followed by a low-quality dry run of the named scene. No frames
// are written. The scratch directory is removed before returning.
func (r *Runner) Validate(ctx context.Context, code, className string) (*Result, error) {
	scratch, err := os.MkdirTemp(orDefault(r.ScratchRoot, os.TempDir()), "scene-validate-"+uuid.NewString()[:8]+"-")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	scriptPath := filepath.Join(scratch, "scene.py")
	if err := os.WriteFile(scriptPath, []byte(code), 0o644); err != nil {
		return nil, fmt.Errorf("write scratch script: %w", err)
	}

	// Syntax errors are cheaper to catch before manim imports the module.
	res, err := r.run(ctx, orDuration(r.CompileTimeout, defaultCompileTimeout), scratch,
		r.python(), "-m", "py_compile", scriptPath)
	if err != nil {
		return nil, err
	}
	if !res.OK() {
		return res, nil
	}

	return r.run(ctx, orDuration(r.ValidateTimeout, defaultValidateTimeout), scratch,
		r.manim(), "-ql", "--dry_run", scriptPath, className)
}

// Render renders the named scene from scriptPath to outPath. On a nonzero
// exit it still searches manim's convention-based default output locations,
// since manim sometimes writes the file but exits unhappy; a recovered file
// is moved to outPath. The returned string is the path of the rendered video,
// empty when no output was produced.
func (r *Runner) Render(ctx context.Context, scriptPath, className, outPath string) (string, *Result, error) {
	workDir := filepath.Dir(scriptPath)

	absOut, err := filepath.Abs(outPath)
	if err != nil {
		return "", nil, fmt.Errorf("resolve output path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absOut), 0o755); err != nil {
		return "", nil, fmt.Errorf("create output dir: %w", err)
	}

	res, err := r.run(ctx, orDuration(r.RenderTimeout, defaultRenderTimeout), workDir,
		r.manim(), scriptPath, className,
		"-qm", "--format", "mp4",
		"-o", absOut,
		"--disable_caching")
	if err != nil {
		return "", nil, err
	}

	if _, statErr := os.Stat(absOut); statErr == nil {
		return absOut, res, nil
	}
	if found := recoverDefaultOutput(workDir, scriptPath, className, absOut); found != "" {
		return found, res, nil
	}
	return "", res, nil
}

// recoverDefaultOutput checks manim's default media tree for the scene video
// and moves it to the requested path. Returns the recovered path or empty.
func recoverDefaultOutput(workDir, scriptPath, className, outPath string) string {
	stem := strings.TrimSuffix(filepath.Base(scriptPath), filepath.Ext(scriptPath))
	for _, quality := range []string{"1080p60", "720p30", "480p15"} {
		candidate := filepath.Join(workDir, "media", "videos", stem, quality, className+".mp4")
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if err := os.Rename(candidate, outPath); err != nil {
			// Cross-device scratch dirs break rename; fall back to a copy.
			if copyErr := copyFile(candidate, outPath); copyErr != nil {
				continue
			}
		}
		return outPath
	}
	return ""
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

// killGrace is how long a SIGTERMed process group gets before Wait gives up
// on its output pipes and the group is SIGKILLed.
const killGrace = 2 * time.Second

// run executes one command under its own process group so a timeout kills
// the whole tree, not just the leader. The group is signaled from the
// cancellation path, before Wait, so an orphaned grandchild holding the
// output pipes cannot keep the run alive past the deadline.
func (r *Runner) run(ctx context.Context, timeout time.Duration, dir, name string, args ...string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	// With Setpgid the child leads its own group, addressed as -pid. Cancel
	// fires at the deadline; WaitDelay then bounds how long Wait may block on
	// pipes still held open by surviving group members.
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
		if err == syscall.ESRCH {
			return os.ErrProcessDone
		}
		return err
	}
	cmd.WaitDelay = killGrace

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", name, err)
	}

	waitErr := cmd.Wait()
	timedOut := ctx.Err() == context.DeadlineExceeded

	// Reap anything in the group that survived the SIGTERM or outlived the
	// leader while holding its pipes.
	if (timedOut || errors.Is(waitErr, exec.ErrWaitDelay)) && cmd.Process != nil {
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	exitCode := 0
	switch {
	case waitErr == nil:
	case errors.Is(waitErr, exec.ErrWaitDelay):
		// The leader exited cleanly but an orphan kept the pipes open.
		if cmd.ProcessState != nil {
			exitCode = cmd.ProcessState.ExitCode()
		}
	default:
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else if !timedOut {
			return nil, fmt.Errorf("run %s: %w", name, waitErr)
		} else {
			exitCode = -1
		}
	}

	return &Result{
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		TimedOut: timedOut,
		Duration: time.Since(start),
	}, nil
}
