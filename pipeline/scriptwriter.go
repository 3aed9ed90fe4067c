// ABOUTME: Script generation stage: turns a topic into a full narration script split into segments.
// ABOUTME: A whole-stage failure sets the terminal error and leaves segments empty; downstream fan-outs become no-ops.

package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/2389-research/chalktalk/llm"
)

type scriptOutput struct {
	FullScript string          `json:"full_script"`
	Segments   []scriptSegment `json:"segments"`
}

type scriptSegment struct {
	SegmentID   int     `json:"segment_id"`
	Script      string  `json:"script"`
	DurationSec float64 `json:"duration_sec"`
}

// scriptUpdate asks the script service for a structured video script. Segment
// IDs are normalized to 0..N-1 so they are unique and dense regardless of what
// the service returned.
func (s *Services) scriptUpdate(ctx context.Context, st State) Update {
	log.Printf("[scriptwriter] generating script for topic %q", st.Topic)

	var out scriptOutput
	err := llm.GenerateObject(ctx, s.ScriptLLM, s.Retry, llm.Request{
		Messages:    []llm.Message{llm.UserMessage(fmt.Sprintf(scriptwriterPrompt, st.Topic))},
		SchemaName:  "video_script",
		Temperature: s.temperature(),
	}, scriptSchema, &out)
	if err != nil {
		return Update{Error: fmt.Sprintf("script generation: %v", err)}
	}
	if len(out.Segments) == 0 {
		return Update{Error: "script generation: service returned no segments"}
	}

	segments := make([]Segment, len(out.Segments))
	for i, sg := range out.Segments {
		segments[i] = Segment{
			ID:              i,
			Text:            sg.Script,
			PlannedDuration: sg.DurationSec,
		}
	}

	log.Printf("[scriptwriter] produced %d segments", len(segments))
	return Update{FullScript: out.FullScript, Segments: segments}
}
