// ABOUTME: Review/repair loop: a bounded per-segment state machine validating generated code in the sandbox.
// ABOUTME: Invalid code is patched by the repair service with truncated logs and prior-cycle error history.

package pipeline

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/2389-research/chalktalk/llm"
)

// reviewStatus is a segment's position in the review state machine.
type reviewStatus int

const (
	reviewPending reviewStatus = iota
	reviewValidating
	reviewValid
	reviewInvalid
	reviewFailed
)

func (s reviewStatus) String() string {
	switch s {
	case reviewPending:
		return "pending"
	case reviewValidating:
		return "validating"
	case reviewValid:
		return "valid"
	case reviewInvalid:
		return "invalid"
	case reviewFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// entryPointRe recognizes a scene class inheriting from Scene or ThreeDScene.
var entryPointRe = regexp.MustCompile(`class\s+(\w+)\s*\(\s*(?:Scene|ThreeDScene)\s*\)`)

// findSceneClass returns the code's entry-point class name, preferring the
// conventional Segment<id> name when several scenes are defined. Empty means
// no recognizable entry point.
func findSceneClass(code string, id int) string {
	matches := entryPointRe.FindAllStringSubmatch(code, -1)
	if len(matches) == 0 {
		return ""
	}
	want := sceneClass(id)
	for _, m := range matches {
		if m[1] == want {
			return want
		}
	}
	return matches[0][1]
}

// maxRepairLogChars bounds the execution log passed to the repair service.
const maxRepairLogChars = 4000

// reviewUpdates validates every segment that has code, repairing invalid code
// up to the cycle budget. The returned updates carry corrected code plus a
// wholesale replacement of the regeneration set: exactly the segments that
// exhausted their budget this pass, and nothing from earlier passes.
func (s *Services) reviewUpdates(ctx context.Context, st State) []Update {
	var mu sync.Mutex
	var regen []int

	updates := forEachSegment(ctx, st.Segments, s.MaxParallel, func(ctx context.Context, seg Segment) Update {
		if seg.ManimScript == "" {
			return Update{}
		}

		code, ok := s.reviewSegment(ctx, seg)
		if !ok {
			mu.Lock()
			regen = append(regen, seg.ID)
			mu.Unlock()
		}
		if code == seg.ManimScript {
			return Update{}
		}

		// Keep the on-disk script in sync with the corrected code.
		if err := s.writeScript(seg.ID, code); err != nil {
			log.Printf("[review] segment %d: %v", seg.ID, err)
		}
		return Update{Segments: []Segment{{ID: seg.ID, ManimScript: code}}}
	})

	sort.Ints(regen)
	if regen == nil {
		regen = []int{}
	}
	return append(updates, Update{RegenerationSet: regen})
}

// reviewSegment runs the state machine for one segment:
// Pending -> Validating -> Valid (done) or Invalid -> Pending while budget
// remains, else Failed. On Valid the passing code is kept; on Failed the
// last-attempted code is kept and the caller marks the segment for
// regeneration.
func (s *Services) reviewSegment(ctx context.Context, seg Segment) (string, bool) {
	code := seg.ManimScript
	status := reviewPending
	var history []string

	for cycle := 1; cycle <= s.MaxReviewCycles; cycle++ {
		status = reviewValidating
		log.Printf("[review] segment %d cycle %d/%d: %s", seg.ID, cycle, s.MaxReviewCycles, status)

		logs, valid := s.validateCode(ctx, code, seg.ID)
		if valid {
			status = reviewValid
			log.Printf("[review] segment %d: %s after %d cycle(s)", seg.ID, status, cycle)
			return code, true
		}

		status = reviewInvalid
		history = append(history, summarizeError(logs))
		if cycle == s.MaxReviewCycles {
			break
		}

		fixed, err := s.repairCode(ctx, seg, code, logs, history)
		if err != nil {
			log.Printf("[review] segment %d repair failed: %v", seg.ID, err)
			continue
		}
		if fixed != "" {
			code = fixed
		}
	}

	status = reviewFailed
	log.Printf("[review] segment %d: %s, budget of %d cycles exhausted", seg.ID, status, s.MaxReviewCycles)
	return code, false
}

// validateCode checks for a recognizable entry point, then dry-runs the scene
// in the sandbox. A missing entry point short-circuits without running it.
func (s *Services) validateCode(ctx context.Context, code string, id int) (logs string, valid bool) {
	className := findSceneClass(code, id)
	if className == "" {
		return "No valid class found, must inherit from Scene or ThreeDScene", false
	}

	res, err := s.Sandbox.Validate(ctx, code, className)
	if err != nil {
		return fmt.Sprintf("validation could not run: %v", err), false
	}
	if res.OK() {
		return "", true
	}
	return res.Logs(), false
}

// repairCode asks the repair service for a patched candidate, supplying the
// failing code, truncated execution logs, and prior-cycle error summaries.
func (s *Services) repairCode(ctx context.Context, seg Segment, code, logs string, history []string) (string, error) {
	duration := seg.AudioDurationSec
	if duration <= 0 {
		duration = seg.PlannedDuration
	}

	// History excludes the current cycle's entry; it is already in the logs.
	prior := history[:len(history)-1]
	prompt := fmt.Sprintf(repairPromptTemplate,
		code,
		truncateLogs(logs, maxRepairLogChars),
		formatErrorHistory(prior),
		seg.AnimationPrompt, duration, seg.ID,
		duration, seg.ID)

	text, err := llm.GenerateText(ctx, s.RepairLLM, s.Retry, llm.Request{
		System:      repairSystemPrompt,
		Messages:    []llm.Message{llm.UserMessage(prompt)},
		Temperature: s.temperature(),
	})
	if err != nil {
		return "", err
	}
	return ExtractCodeBlock(text), nil
}

// truncateLogs bounds logs to roughly maxLen bytes, preserving the head and
// tail and dropping the middle. Cut points back off to rune boundaries so the
// repair prompt never carries a split UTF-8 sequence.
func truncateLogs(logs string, maxLen int) string {
	if len(logs) <= maxLen {
		return logs
	}
	half := maxLen / 2
	headEnd := runeFloor(logs, half)
	tailStart := runeCeil(logs, len(logs)-half)
	dropped := tailStart - headEnd
	return logs[:headEnd] + fmt.Sprintf("\n... [%d characters truncated] ...\n", dropped) + logs[tailStart:]
}

// runeFloor returns the largest index <= i that starts a rune.
func runeFloor(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// runeCeil returns the smallest index >= i that starts a rune.
func runeCeil(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

// summarizeError condenses execution logs into a one-line summary for the
// cross-cycle error history: the last line mentioning an error, or the last
// non-empty line.
func summarizeError(logs string) string {
	lines := strings.Split(logs, "\n")
	var lastNonEmpty, lastError string
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		lastNonEmpty = l
		if strings.Contains(strings.ToLower(l), "error") {
			lastError = l
		}
	}
	summary := lastError
	if summary == "" {
		summary = lastNonEmpty
	}
	const maxSummary = 240
	if len(summary) > maxSummary {
		summary = summary[:runeFloor(summary, maxSummary)]
	}
	return summary
}
