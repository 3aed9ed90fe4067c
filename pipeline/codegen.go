// ABOUTME: Code generation stage: fans out one structured codegen task per segment with an animation plan.
// ABOUTME: Returns failed segment IDs separately so the graph can clear stale code the merge model cannot erase.

package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/2389-research/chalktalk/llm"
)

type manimOutput struct {
	ClassName     string `json:"class_name"`
	CompletedCode string `json:"completed_code"`
}

// codegenUpdates generates scene code for the given segments, or for every
// segment when only is nil. Each worker writes the code to the segment's
// script path. The second return value lists segments whose generation failed
// outright; their previous code (if any) must be treated as cleared.
func (s *Services) codegenUpdates(ctx context.Context, st State, only []int) ([]Update, []int) {
	targets := st.Segments
	if only != nil {
		targets = st.SegmentsByID(only)
	}

	var mu sync.Mutex
	var failed []int
	markFailed := func(id int) {
		mu.Lock()
		failed = append(failed, id)
		mu.Unlock()
	}

	updates := forEachSegment(ctx, targets, s.MaxParallel, func(ctx context.Context, seg Segment) Update {
		if seg.AnimationPrompt == "" {
			// Planning failed upstream; there is nothing to generate from.
			return Update{}
		}

		duration := seg.AudioDurationSec
		if duration <= 0 {
			duration = seg.PlannedDuration
		}

		examples := formatRetrievedContext(
			"Reference code examples:",
			s.retrieveSnippets(ctx, seg.AnimationPrompt),
		)
		prompt := fmt.Sprintf(codegenPromptTemplate,
			seg.AnimationPrompt, duration, seg.ID,
			seg.ID, duration, duration, examples)

		var out manimOutput
		err := llm.GenerateObject(ctx, s.CodegenLLM, s.Retry, llm.Request{
			System:      codegenSystemPrompt,
			Messages:    []llm.Message{llm.UserMessage(prompt)},
			SchemaName:  "manim_scene",
			Temperature: s.temperature(),
		}, manimSchema, &out)
		if err != nil {
			log.Printf("[codegen] segment %d generation failed: %v", seg.ID, err)
			markFailed(seg.ID)
			return Update{}
		}

		code := ExtractCodeBlock(out.CompletedCode)
		if code == "" {
			log.Printf("[codegen] segment %d: empty code in response", seg.ID)
			markFailed(seg.ID)
			return Update{}
		}

		if err := s.writeScript(seg.ID, code); err != nil {
			log.Printf("[codegen] segment %d: %v", seg.ID, err)
			markFailed(seg.ID)
			return Update{}
		}

		log.Printf("[codegen] segment %d: scene %s generated", seg.ID, out.ClassName)
		return Update{Segments: []Segment{{
			ID:          seg.ID,
			ManimScript: code,
		}}}
	})

	sort.Ints(failed)
	return updates, failed
}

// writeScript persists a segment's scene code to its predictable path.
func (s *Services) writeScript(id int, code string) error {
	path := s.scriptPath(id)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create scripts dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(code), 0o644); err != nil {
		return fmt.Errorf("write script %s: %w", path, err)
	}
	return nil
}

// clearScripts returns a copy of the state with the given segments' code
// erased. The merge model treats empty as "no write", so stale code after a
// failed regeneration is cleared here at the stage boundary instead.
func clearScripts(st State, ids []int) State {
	if len(ids) == 0 {
		return st
	}
	doomed := make(map[int]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
	}
	next := st
	next.Segments = append([]Segment(nil), st.Segments...)
	for i := range next.Segments {
		if doomed[next.Segments[i].ID] {
			next.Segments[i].ManimScript = ""
		}
	}
	return next
}
