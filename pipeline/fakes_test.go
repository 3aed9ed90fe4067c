// ABOUTME: Shared in-memory fakes for pipeline tests: LLM clients, synthesizer, sandbox, renderer, muxer.
// ABOUTME: Each fake records its calls so tests can assert on interaction counts and arguments.

package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/2389-research/chalktalk/llm"
	"github.com/2389-research/chalktalk/retrieval"
	"github.com/2389-research/chalktalk/sandbox"
)

// fakeLLM satisfies llm.Client with a caller-supplied response function.
type fakeLLM struct {
	mu       sync.Mutex
	name     string
	fn       func(req llm.Request) (string, error)
	requests []llm.Request
}

func newFakeLLM(name string, fn func(req llm.Request) (string, error)) *fakeLLM {
	return &fakeLLM{name: name, fn: fn}
}

func (f *fakeLLM) Name() string { return f.name }

func (f *fakeLLM) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	text, err := f.fn(req)
	if err != nil {
		return nil, err
	}
	return &llm.Response{Text: text, Model: f.name}, nil
}

func (f *fakeLLM) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// staticLLM always answers with the same text.
func staticLLM(name, text string) *fakeLLM {
	return newFakeLLM(name, func(llm.Request) (string, error) { return text, nil })
}

// fakeSynth writes a placeholder audio file and reports a fixed duration.
type fakeSynth struct {
	duration float64
	err      error
	mu       sync.Mutex
	calls    int
}

func (f *fakeSynth) Synthesize(ctx context.Context, text, outPath string) (float64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return 0, err
	}
	if err := os.WriteFile(outPath, []byte("audio"), 0o644); err != nil {
		return 0, err
	}
	return f.duration, nil
}

// fakeValidator runs a caller-supplied verdict function per validation call.
type fakeValidator struct {
	mu    sync.Mutex
	calls []string // class names, in call order
	fn    func(code, className string) *sandbox.Result
}

func validatorOK() *fakeValidator {
	return &fakeValidator{fn: func(string, string) *sandbox.Result {
		return &sandbox.Result{ExitCode: 0}
	}}
}

func validatorFail(stderr string) *fakeValidator {
	return &fakeValidator{fn: func(string, string) *sandbox.Result {
		return &sandbox.Result{ExitCode: 1, Stderr: stderr}
	}}
}

func (f *fakeValidator) Validate(ctx context.Context, code, className string) (*sandbox.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, className)
	f.mu.Unlock()
	return f.fn(code, className), nil
}

func (f *fakeValidator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeRenderer writes a placeholder video file unless told to fail a segment.
type fakeRenderer struct {
	failClasses map[string]bool
}

func (f *fakeRenderer) Render(ctx context.Context, scriptPath, className, outPath string) (string, *sandbox.Result, error) {
	if f.failClasses[className] {
		return "", &sandbox.Result{ExitCode: 1, Stderr: "render blew up"}, nil
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return "", nil, err
	}
	if err := os.WriteFile(outPath, []byte("video"), 0o644); err != nil {
		return "", nil, err
	}
	return outPath, &sandbox.Result{ExitCode: 0}, nil
}

// fakeMuxer materializes clip and final files, recording call order.
type fakeMuxer struct {
	mu        sync.Mutex
	muxed     [][2]string // video, audio pairs in call order
	concatted []string
	muxErrFor map[string]bool // keyed by video path
}

func (f *fakeMuxer) MuxClip(ctx context.Context, videoPath, audioPath, outPath string) error {
	f.mu.Lock()
	f.muxed = append(f.muxed, [2]string{videoPath, audioPath})
	f.mu.Unlock()
	if f.muxErrFor[videoPath] {
		return fmt.Errorf("mux refused for %s", videoPath)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outPath, []byte("clip"), 0o644)
}

func (f *fakeMuxer) Concat(ctx context.Context, clipPaths []string, outPath string) error {
	f.mu.Lock()
	f.concatted = append([]string(nil), clipPaths...)
	f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	return os.WriteFile(outPath, []byte("final"), 0o644)
}

// fakeSearcher returns canned retrieval hits.
type fakeSearcher struct {
	results []retrieval.Result
}

func (f *fakeSearcher) Search(ctx context.Context, query string, k int) ([]retrieval.Result, error) {
	if len(f.results) > k {
		return f.results[:k], nil
	}
	return f.results, nil
}

// testServices builds a Services wired entirely with fakes. Individual tests
// override fields as needed.
func testServices(t interface {
	TempDir() string
	Helper()
}) *Services {
	t.Helper()
	return &Services{
		ScriptLLM:       staticLLM("script", `{"full_script":"s","segments":[{"segment_id":0,"script":"seg zero","duration_sec":30}]}`),
		PlannerLLM:      staticLLM("planner", "show a graph"),
		CodegenLLM:      staticLLM("codegen", `{"class_name":"Segment0","completed_code":"from manim import *\nclass Segment0(Scene):\n    def construct(self):\n        self.wait(1)"}`),
		RepairLLM:       staticLLM("repair", "from manim import *\nclass Segment0(Scene):\n    def construct(self):\n        self.wait(2)"),
		Retry:           llm.RetryPolicy{MaxRetries: 0},
		Synth:           &fakeSynth{duration: 30.5},
		Sandbox:         validatorOK(),
		Renderer:        &fakeRenderer{},
		Muxer:           &fakeMuxer{},
		OutDir:          t.TempDir(),
		MaxParallel:     2,
		MaxReviewCycles: 3,
		MaxRegenCycles:  2,
		RetrievalK:      3,
	}
}
