// ABOUTME: Media duration probing via ffprobe, accurate to fractional seconds.
// ABOUTME: Used for both narration audio and rendered video so duration alignment compares like units.

package media

import (
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ProbeDuration returns the duration of an audio or video file in seconds.
func ProbeDuration(path string) (float64, error) {
	out, err := exec.Command("ffprobe",
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	dur, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse ffprobe output %q: %w", strings.TrimSpace(string(out)), err)
	}
	return dur, nil
}
