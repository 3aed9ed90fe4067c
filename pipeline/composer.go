// ABOUTME: Composition stage: muxes each complete segment's video with its narration and concatenates in ID order.
// ABOUTME: Incomplete segments are skipped; the stage fails only when zero usable clips remain.

package pipeline

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

// composeUpdate assembles the final video. A segment contributes a clip only
// when both its media files exist on disk; each clip's video track is aligned
// to its audio duration by the muxer.
func (s *Services) composeUpdate(ctx context.Context, st State) Update {
	var clips []string

	for _, seg := range st.Segments {
		if !seg.Complete() {
			log.Printf("[compose] skipping incomplete segment %d", seg.ID)
			continue
		}
		if _, err := os.Stat(seg.VideoPath); err != nil {
			log.Printf("[compose] segment %d video missing on disk: %v", seg.ID, err)
			continue
		}
		if _, err := os.Stat(seg.AudioPath); err != nil {
			log.Printf("[compose] segment %d audio missing on disk: %v", seg.ID, err)
			continue
		}

		clipPath := filepath.Join(s.OutDir, "clips", "segment_"+strconv.Itoa(seg.ID)+".mp4")
		if err := s.Muxer.MuxClip(ctx, seg.VideoPath, seg.AudioPath, clipPath); err != nil {
			log.Printf("[compose] segment %d mux failed: %v", seg.ID, err)
			continue
		}

		log.Printf("[compose] segment %d muxed (%.2fs narration)", seg.ID, seg.AudioDurationSec)
		clips = append(clips, clipPath)
	}

	if len(clips) == 0 {
		return Update{Error: "composition: no usable clips, all segments incomplete"}
	}

	finalPath := s.finalPath()
	if err := s.Muxer.Concat(ctx, clips, finalPath); err != nil {
		return Update{Error: fmt.Sprintf("composition: concatenate clips: %v", err)}
	}

	log.Printf("[compose] final video written to %s from %d clip(s)", finalPath, len(clips))
	return Update{FinalVideoPath: finalPath}
}
