// ABOUTME: Narration synthesis stage: fans out one TTS task per segment.
// ABOUTME: A failed segment keeps empty audio fields; composition skips it later.

package pipeline

import (
	"context"
	"log"
)

// narrationUpdates synthesizes narration audio for every segment with text.
// Each worker writes audio to a path derived from the segment ID and reports
// the measured duration, which becomes the authoritative clip length.
func (s *Services) narrationUpdates(ctx context.Context, st State) []Update {
	return forEachSegment(ctx, st.Segments, s.MaxParallel, func(ctx context.Context, seg Segment) Update {
		if seg.Text == "" {
			return Update{}
		}

		outPath := s.audioPath(seg.ID)
		dur, err := s.Synth.Synthesize(ctx, seg.Text, outPath)
		if err != nil {
			log.Printf("[narrate] segment %d synthesis failed: %v", seg.ID, err)
			return Update{}
		}

		log.Printf("[narrate] segment %d: %.2fs of audio at %s", seg.ID, dur, outPath)
		return Update{Segments: []Segment{{
			ID:               seg.ID,
			AudioPath:        outPath,
			AudioDurationSec: dur,
		}}}
	})
}
