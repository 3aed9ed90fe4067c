// ABOUTME: ffmpeg muxing: pairs each segment's video with its narration audio and concatenates clips in order.
// ABOUTME: Video track duration is aligned to the audio track (hold last frame or trim) beyond a small tolerance.

package media

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// DefaultTolerance is the audio/video duration mismatch, in seconds, below
// which no alignment is applied.
const DefaultTolerance = 0.1

// Muxer combines and concatenates media files with ffmpeg.
type Muxer struct {
	FFmpegBin string  // default "ffmpeg"
	Tolerance float64 // default DefaultTolerance

	// Probe overrides duration probing, for tests. Defaults to ProbeDuration.
	Probe func(path string) (float64, error)
}

func (m *Muxer) bin() string {
	if m.FFmpegBin == "" {
		return "ffmpeg"
	}
	return m.FFmpegBin
}

func (m *Muxer) tolerance() float64 {
	if m.Tolerance <= 0 {
		return DefaultTolerance
	}
	return m.Tolerance
}

// MuxClip combines one video track and one audio track into a single clip at
// outPath. When the tracks' durations differ by more than the tolerance the
// video is extended by holding its last frame, or trimmed, so the clip runs
// exactly as long as the audio.
func (m *Muxer) MuxClip(ctx context.Context, videoPath, audioPath, outPath string) error {
	probe := m.Probe
	if probe == nil {
		probe = ProbeDuration
	}
	videoDur, err := probe(videoPath)
	if err != nil {
		return fmt.Errorf("probe video: %w", err)
	}
	audioDur, err := probe(audioPath)
	if err != nil {
		return fmt.Errorf("probe audio: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	diff := videoDur - audioDur
	switch {
	case math.Abs(diff) <= m.tolerance():
		// Durations already agree; stream-copy the video track.
		return m.run(ctx,
			"-i", videoPath,
			"-i", audioPath,
			"-map", "0:v", "-map", "1:a",
			"-c:v", "copy",
			"-c:a", "aac", "-b:a", "192k",
			"-shortest",
			outPath,
		)
	case diff < 0:
		// Video is short: freeze the last frame until the narration ends.
		log.Printf("[media] extending video %.2fs -> %.2fs to match audio", videoDur, audioDur)
		return m.run(ctx,
			"-i", videoPath,
			"-i", audioPath,
			"-map", "0:v", "-map", "1:a",
			"-vf", fmt.Sprintf("tpad=stop_mode=clone:stop_duration=%.3f", -diff),
			"-t", fmt.Sprintf("%.3f", audioDur),
			"-c:v", "libx264", "-preset", "fast", "-pix_fmt", "yuv420p",
			"-c:a", "aac", "-b:a", "192k",
			outPath,
		)
	default:
		// Video is long: cut it at the narration's end.
		log.Printf("[media] trimming video %.2fs -> %.2fs to match audio", videoDur, audioDur)
		return m.run(ctx,
			"-i", videoPath,
			"-i", audioPath,
			"-map", "0:v", "-map", "1:a",
			"-t", fmt.Sprintf("%.3f", audioDur),
			"-c:v", "libx264", "-preset", "fast", "-pix_fmt", "yuv420p",
			"-c:a", "aac", "-b:a", "192k",
			outPath,
		)
	}
}

// Concat joins the clips, in the given order, into one file at outPath. Clips
// are re-encoded to a common resolution and frame rate since renders may land
// at different qualities.
func (m *Muxer) Concat(ctx context.Context, clipPaths []string, outPath string) error {
	if len(clipPaths) == 0 {
		return fmt.Errorf("no clips to concatenate")
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	listFile := filepath.Join(filepath.Dir(outPath), "concat_list.txt")
	var lines []string
	for _, p := range clipPaths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("resolve clip path %s: %w", p, err)
		}
		lines = append(lines, fmt.Sprintf("file '%s'", abs))
	}
	if err := os.WriteFile(listFile, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		return fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(listFile)

	return m.run(ctx,
		"-f", "concat",
		"-safe", "0",
		"-i", listFile,
		"-vf", "scale=1920:1080:force_original_aspect_ratio=decrease,pad=1920:1080:(ow-iw)/2:(oh-ih)/2,setsar=1",
		"-r", "24",
		"-c:v", "libx264", "-preset", "veryfast", "-crf", "22", "-pix_fmt", "yuv420p",
		"-c:a", "aac", "-b:a", "192k",
		"-movflags", "+faststart",
		outPath,
	)
}

func (m *Muxer) run(ctx context.Context, args ...string) error {
	full := append([]string{"-y", "-v", "error"}, args...)
	cmd := exec.CommandContext(ctx, m.bin(), full...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s %s: %w: %s", m.bin(), strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
