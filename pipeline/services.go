// ABOUTME: Services bundles every external collaborator a pipeline run needs, behind small interfaces.
// ABOUTME: Stages reach collaborators only through this struct, so tests swap in fakes per concern.

package pipeline

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/2389-research/chalktalk/llm"
	"github.com/2389-research/chalktalk/retrieval"
	"github.com/2389-research/chalktalk/sandbox"
	"github.com/2389-research/chalktalk/speech"
)

// Default budgets. Review cycles bound the per-segment repair state machine;
// regen cycles bound the outer review -> codegen routing loop.
const (
	DefaultMaxParallel     = 4
	DefaultMaxReviewCycles = 3
	DefaultMaxRegenCycles  = 2
	DefaultRetrievalK      = 3
)

// Searcher is the retrieval contract stages consume. Results are best-effort
// context: an error or empty list degrades the prompt, never the stage.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]retrieval.Result, error)
}

// Validator dry-runs candidate scene code.
type Validator interface {
	Validate(ctx context.Context, code, className string) (*sandbox.Result, error)
}

// Renderer renders a scene to a video file, reporting the actual output path.
type Renderer interface {
	Render(ctx context.Context, scriptPath, className, outPath string) (string, *sandbox.Result, error)
}

// Muxer pairs and concatenates finished media files.
type Muxer interface {
	MuxClip(ctx context.Context, videoPath, audioPath, outPath string) error
	Concat(ctx context.Context, clipPaths []string, outPath string) error
}

// Services wires the pipeline's collaborators and budgets for one run.
type Services struct {
	ScriptLLM  llm.Client // script generation (structured)
	PlannerLLM llm.Client // animation planning (freeform)
	CodegenLLM llm.Client // code generation (structured)
	RepairLLM  llm.Client // review/repair patching (freeform)

	Retry llm.RetryPolicy

	// Temperature, when positive, is applied to every text-generation call.
	Temperature float64

	Synth    speech.Synthesizer
	Index    Searcher // nil disables retrieval context
	Sandbox  Validator
	Renderer Renderer
	Muxer    Muxer

	// OutDir is the per-run working directory; audio, generated scripts,
	// rendered clips, and state snapshots all live under it.
	OutDir string

	MaxParallel     int
	MaxReviewCycles int
	MaxRegenCycles  int
	RetrievalK      int

	// Observe receives engine events when non-nil.
	Observe func(Event)

	// ObserveState receives the merged state after every stage when non-nil,
	// so a status surface can show the run in progress.
	ObserveState func(State)
}

func (s *Services) withDefaults() *Services {
	out := *s
	if out.MaxParallel <= 0 {
		out.MaxParallel = DefaultMaxParallel
	}
	if out.MaxReviewCycles <= 0 {
		out.MaxReviewCycles = DefaultMaxReviewCycles
	}
	if out.MaxRegenCycles <= 0 {
		out.MaxRegenCycles = DefaultMaxRegenCycles
	}
	if out.RetrievalK <= 0 {
		out.RetrievalK = DefaultRetrievalK
	}
	return &out
}

// Per-segment file placement. Paths are pure functions of the segment ID so
// re-executed workers overwrite idempotently.

func (s *Services) audioPath(id int) string {
	return filepath.Join(s.OutDir, "audio", "segment_"+strconv.Itoa(id)+".mp3")
}

func (s *Services) scriptPath(id int) string {
	return filepath.Join(s.OutDir, "scripts", "segment_"+strconv.Itoa(id)+".py")
}

func (s *Services) videoPath(id int) string {
	return filepath.Join(s.OutDir, "video", "segment_"+strconv.Itoa(id)+".mp4")
}

func (s *Services) finalPath() string {
	return filepath.Join(s.OutDir, "final_video.mp4")
}

// temperature returns the configured sampling temperature as a request
// override, or nil to use the provider default.
func (s *Services) temperature() *float64 {
	if s.Temperature > 0 {
		return llm.Float(s.Temperature)
	}
	return nil
}

// sceneClass is the generated entry-point class name for a segment.
func sceneClass(id int) string { return "Segment" + strconv.Itoa(id) }

// retrieveSnippets queries the index and returns result contents, degrading
// to nil on any failure.
func (s *Services) retrieveSnippets(ctx context.Context, query string) []string {
	if s.Index == nil || query == "" {
		return nil
	}
	results, err := s.Index.Search(ctx, query, s.RetrievalK)
	if err != nil {
		return nil
	}
	snippets := make([]string, 0, len(results))
	for _, r := range results {
		snippets = append(snippets, r.Content)
	}
	return snippets
}
