// ABOUTME: Tests for the per-field merge model: overlay semantics, ordering, and update application.
// ABOUTME: Exercises idempotence and order-independence for disjoint-field writers.

package pipeline

import (
	"reflect"
	"testing"
)

func TestMergeSegmentsInsertsAndSorts(t *testing.T) {
	merged := MergeSegments(nil, []Segment{
		{ID: 2, Text: "two"},
		{ID: 0, Text: "zero"},
		{ID: 1, Text: "one"},
	})

	if len(merged) != 3 {
		t.Fatalf("expected 3 segments, got %d", len(merged))
	}
	for i, want := range []int{0, 1, 2} {
		if merged[i].ID != want {
			t.Errorf("position %d: expected ID %d, got %d", i, want, merged[i].ID)
		}
	}
}

func TestMergeSegmentsOverlayKeepsAbsentFields(t *testing.T) {
	existing := []Segment{{ID: 0, Text: "narration", PlannedDuration: 30}}
	incoming := []Segment{{ID: 0, AudioPath: "audio/segment_0.mp3", AudioDurationSec: 31.2}}

	merged := MergeSegments(existing, incoming)
	got := merged[0]

	if got.Text != "narration" || got.PlannedDuration != 30 {
		t.Errorf("existing fields must survive: %+v", got)
	}
	if got.AudioPath != "audio/segment_0.mp3" || got.AudioDurationSec != 31.2 {
		t.Errorf("incoming fields must land: %+v", got)
	}
}

func TestMergeSegmentsEmptyMeansNoWrite(t *testing.T) {
	existing := []Segment{{ID: 0, ManimScript: "code", VideoPath: "v.mp4"}}
	incoming := []Segment{{ID: 0, Text: "updated"}}

	got := MergeSegments(existing, incoming)[0]
	if got.ManimScript != "code" || got.VideoPath != "v.mp4" {
		t.Errorf("zero-valued incoming fields must not erase: %+v", got)
	}
}

func TestMergeSegmentsDisjointFieldsCommute(t *testing.T) {
	base := []Segment{{ID: 0, Text: "t"}}
	audio := []Segment{{ID: 0, AudioPath: "a.mp3", AudioDurationSec: 10}}
	plan := []Segment{{ID: 0, AnimationPrompt: "show a graph"}}

	ab := MergeSegments(MergeSegments(base, audio), plan)
	ba := MergeSegments(MergeSegments(base, plan), audio)

	if !reflect.DeepEqual(ab, ba) {
		t.Errorf("disjoint-field merges must commute:\n%+v\n%+v", ab, ba)
	}
}

func TestMergeSegmentsIdempotent(t *testing.T) {
	base := []Segment{{ID: 1, Text: "t"}}
	in := []Segment{{ID: 1, AudioPath: "a.mp3"}}

	once := MergeSegments(base, in)
	twice := MergeSegments(once, in)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("reapplying the same update must be a no-op:\n%+v\n%+v", once, twice)
	}
}

func TestApplySetOnceScalars(t *testing.T) {
	st := State{}.Apply(Update{FullScript: "first"})
	st = st.Apply(Update{FullScript: "second", FinalVideoPath: "final.mp4"})
	st = st.Apply(Update{FinalVideoPath: "other.mp4"})

	if st.FullScript != "first" {
		t.Errorf("FullScript is set-once, got %q", st.FullScript)
	}
	if st.FinalVideoPath != "final.mp4" {
		t.Errorf("FinalVideoPath is set-once, got %q", st.FinalVideoPath)
	}
}

func TestApplyErrorLatestWins(t *testing.T) {
	st := State{}.Apply(Update{Error: "first failure"})
	st = st.Apply(Update{})
	st = st.Apply(Update{Error: "second failure"})

	if st.Error != "second failure" {
		t.Errorf("latest non-empty error must win, got %q", st.Error)
	}
}

func TestApplyRegenerationSetReplacesWholesale(t *testing.T) {
	st := State{}.Apply(Update{RegenerationSet: []int{0, 2}})
	if !reflect.DeepEqual(st.NeedsRegeneration, []int{0, 2}) {
		t.Fatalf("expected {0,2}, got %v", st.NeedsRegeneration)
	}

	// Nil leaves the set alone.
	st = st.Apply(Update{Segments: []Segment{{ID: 0, VideoPath: "v.mp4"}}})
	if !reflect.DeepEqual(st.NeedsRegeneration, []int{0, 2}) {
		t.Fatalf("nil RegenerationSet must not touch the set, got %v", st.NeedsRegeneration)
	}

	// A later cycle's set replaces, never unions.
	st = st.Apply(Update{RegenerationSet: []int{1}})
	if !reflect.DeepEqual(st.NeedsRegeneration, []int{1}) {
		t.Fatalf("expected replacement with {1}, got %v", st.NeedsRegeneration)
	}

	// Non-nil empty clears.
	st = st.Apply(Update{RegenerationSet: []int{}})
	if len(st.NeedsRegeneration) != 0 {
		t.Fatalf("expected cleared set, got %v", st.NeedsRegeneration)
	}
}

func TestApplyDoesNotMutateReceiver(t *testing.T) {
	orig := State{Segments: []Segment{{ID: 0, Text: "t"}}}
	_ = orig.Apply(Update{Segments: []Segment{{ID: 0, AudioPath: "a.mp3"}}})

	if orig.Segments[0].AudioPath != "" {
		t.Error("Apply must not mutate the receiver's segments")
	}
}

func TestSegmentComplete(t *testing.T) {
	cases := []struct {
		name string
		seg  Segment
		want bool
	}{
		{"all set", Segment{AudioPath: "a", VideoPath: "v", AudioDurationSec: 1}, true},
		{"missing audio", Segment{VideoPath: "v", AudioDurationSec: 1}, false},
		{"missing video", Segment{AudioPath: "a", AudioDurationSec: 1}, false},
		{"zero duration", Segment{AudioPath: "a", VideoPath: "v"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.seg.Complete(); got != tc.want {
				t.Errorf("Complete() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSegmentsByIDPreservesOrder(t *testing.T) {
	st := State{Segments: []Segment{{ID: 0}, {ID: 1}, {ID: 2}, {ID: 3}}}
	got := st.SegmentsByID([]int{3, 0})

	if len(got) != 2 || got[0].ID != 0 || got[1].ID != 3 {
		t.Errorf("expected segments 0 and 3 in ascending order, got %+v", got)
	}
}
