// ABOUTME: Render stage: fans out one sandboxed full render per segment with reviewed code.
// ABOUTME: A failed or timed-out render leaves video_path empty; fallback output discovery happens inside the sandbox.

package pipeline

import (
	"context"
	"log"
)

// renderUpdates renders every segment that has scene code. The script file is
// rewritten from state first so the render always runs the reviewed code.
func (s *Services) renderUpdates(ctx context.Context, st State) []Update {
	return forEachSegment(ctx, st.Segments, s.MaxParallel, func(ctx context.Context, seg Segment) Update {
		if seg.ManimScript == "" {
			return Update{}
		}

		if err := s.writeScript(seg.ID, seg.ManimScript); err != nil {
			log.Printf("[render] segment %d: %v", seg.ID, err)
			return Update{}
		}

		className := findSceneClass(seg.ManimScript, seg.ID)
		if className == "" {
			log.Printf("[render] segment %d: no scene class in code, skipping", seg.ID)
			return Update{}
		}

		videoPath, res, err := s.Renderer.Render(ctx, s.scriptPath(seg.ID), className, s.videoPath(seg.ID))
		if err != nil {
			log.Printf("[render] segment %d render error: %v", seg.ID, err)
			return Update{}
		}
		if videoPath == "" {
			log.Printf("[render] segment %d produced no video (exit %d, timed out %v)",
				seg.ID, res.ExitCode, res.TimedOut)
			return Update{}
		}

		log.Printf("[render] segment %d rendered to %s in %s", seg.ID, videoPath, res.Duration)
		return Update{Segments: []Segment{{
			ID:        seg.ID,
			VideoPath: videoPath,
		}}}
	})
}
