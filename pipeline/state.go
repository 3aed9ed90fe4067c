// ABOUTME: Pipeline state and the per-field merge model shared by every stage.
// ABOUTME: Empty string / 0.0 mean "not provided"; MergeSegments is a per-field last-write-wins reducer keyed by segment ID.
package pipeline

import (
	"sort"
)

// Segment is one independently narrated and animated slice of the final video.
// A zero value in any field means that field has not been produced yet; stages
// that fill a field return a partial Segment carrying only the fields they own.
type Segment struct {
	ID               int     `json:"segment_id"`
	Text             string  `json:"text"`
	PlannedDuration  float64 `json:"planned_duration"`
	AudioPath        string  `json:"audio_path"`
	AudioDurationSec float64 `json:"audio_duration_sec"`
	AnimationPrompt  string  `json:"animation_prompt"`
	ManimScript      string  `json:"manim_script"`
	VideoPath        string  `json:"video_path"`
}

// Complete reports whether the segment has everything composition needs.
func (s Segment) Complete() bool {
	return s.AudioPath != "" && s.VideoPath != "" && s.AudioDurationSec > 0
}

// State is the single object threaded through the whole stage graph.
// It is never mutated in place by concurrent workers; workers return Updates
// that a single-threaded reducer applies between stages.
type State struct {
	Topic             string    `json:"topic"`
	FullScript        string    `json:"full_script"`
	Segments          []Segment `json:"segments"`
	NeedsRegeneration []int     `json:"segments_needing_regeneration,omitempty"`
	FinalVideoPath    string    `json:"final_video_path,omitempty"`
	Error             string    `json:"error,omitempty"`
}

// Update is an immutable partial contribution returned by a stage or a segment
// worker. Zero-valued fields are "no write".
type Update struct {
	FullScript     string
	Segments       []Segment
	FinalVideoPath string
	Error          string

	// RegenerationSet, when non-nil, replaces NeedsRegeneration wholesale.
	// A non-nil empty slice clears it. The set is never unioned across review
	// cycles; each cycle reports exactly the segments that failed that cycle.
	RegenerationSet []int
}

// Apply merges an Update into the state and returns the new state. The receiver
// is not modified. Per-field policies:
//   - Segments: MergeSegments reducer.
//   - FullScript, FinalVideoPath: set-once, first writer wins.
//   - Error: latest non-empty wins.
//   - RegenerationSet: replace-with-latest when provided.
func (st State) Apply(u Update) State {
	next := st
	next.Segments = MergeSegments(st.Segments, u.Segments)
	if next.FullScript == "" && u.FullScript != "" {
		next.FullScript = u.FullScript
	}
	if next.FinalVideoPath == "" && u.FinalVideoPath != "" {
		next.FinalVideoPath = u.FinalVideoPath
	}
	if u.Error != "" {
		next.Error = u.Error
	}
	if u.RegenerationSet != nil {
		next.NeedsRegeneration = append([]int(nil), u.RegenerationSet...)
	} else {
		next.NeedsRegeneration = append([]int(nil), st.NeedsRegeneration...)
	}
	return next
}

// MergeSegments combines an incoming batch of partial segments into the
// existing collection. For each incoming segment, if its ID already exists,
// only non-empty/non-zero incoming fields override; if the ID is new, it is
// inserted. The result is always sorted ascending by ID with no duplicates.
//
// The reducer is idempotent and commutes for updates touching disjoint fields
// of the same segment, so concurrent workers converge regardless of merge
// order.
func MergeSegments(existing, incoming []Segment) []Segment {
	byID := make(map[int]Segment, len(existing)+len(incoming))
	for _, s := range existing {
		byID[s.ID] = s
	}
	for _, in := range incoming {
		cur, ok := byID[in.ID]
		if !ok {
			byID[in.ID] = in
			continue
		}
		byID[in.ID] = overlaySegment(cur, in)
	}

	merged := make([]Segment, 0, len(byID))
	for _, s := range byID {
		merged = append(merged, s)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].ID < merged[j].ID })
	return merged
}

// overlaySegment applies non-empty fields of in over base.
func overlaySegment(base, in Segment) Segment {
	out := base
	if in.Text != "" {
		out.Text = in.Text
	}
	if in.PlannedDuration != 0 {
		out.PlannedDuration = in.PlannedDuration
	}
	if in.AudioPath != "" {
		out.AudioPath = in.AudioPath
	}
	if in.AudioDurationSec != 0 {
		out.AudioDurationSec = in.AudioDurationSec
	}
	if in.AnimationPrompt != "" {
		out.AnimationPrompt = in.AnimationPrompt
	}
	if in.ManimScript != "" {
		out.ManimScript = in.ManimScript
	}
	if in.VideoPath != "" {
		out.VideoPath = in.VideoPath
	}
	return out
}

// FindSegment returns the segment with the given ID, or false if absent.
func (st State) FindSegment(id int) (Segment, bool) {
	for _, s := range st.Segments {
		if s.ID == id {
			return s, true
		}
	}
	return Segment{}, false
}

// SegmentsByID returns the subset of segments whose IDs appear in ids,
// preserving ascending ID order.
func (st State) SegmentsByID(ids []int) []Segment {
	want := make(map[int]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []Segment
	for _, s := range st.Segments {
		if want[s.ID] {
			out = append(out, s)
		}
	}
	return out
}
