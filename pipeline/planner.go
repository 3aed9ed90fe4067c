// ABOUTME: Animation planning stage: fans out one prompt-writing task per segment.
// ABOUTME: Runs concurrently with narration, so it falls back to the planned duration when audio is not measured yet.

package pipeline

import (
	"context"
	"fmt"
	"log"

	"github.com/2389-research/chalktalk/llm"
)

// planningUpdates produces an animation description for every segment with
// text. Retrieved reference examples, when an index is available, are appended
// to the prompt as best-effort context.
func (s *Services) planningUpdates(ctx context.Context, st State) []Update {
	return forEachSegment(ctx, st.Segments, s.MaxParallel, func(ctx context.Context, seg Segment) Update {
		if seg.Text == "" {
			return Update{}
		}

		duration := seg.AudioDurationSec
		if duration <= 0 {
			duration = seg.PlannedDuration
		}

		examples := formatRetrievedContext(
			"Reference animation examples for inspiration:",
			s.retrieveSnippets(ctx, seg.Text),
		)
		prompt := fmt.Sprintf(plannerPromptTemplate, seg.Text, duration, st.Topic, duration, examples)

		text, err := llm.GenerateText(ctx, s.PlannerLLM, s.Retry, llm.Request{
			System:      plannerSystemPrompt,
			Messages:    []llm.Message{llm.UserMessage(prompt)},
			Temperature: s.temperature(),
		})
		if err != nil {
			log.Printf("[planner] segment %d planning failed: %v", seg.ID, err)
			return Update{}
		}

		log.Printf("[planner] segment %d: animation prompt ready", seg.ID)
		return Update{Segments: []Segment{{
			ID:              seg.ID,
			AnimationPrompt: text,
		}}}
	})
}
