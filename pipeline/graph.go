// ABOUTME: Stage graph orchestration: sequences the stages, runs the narration/planning diamond concurrently,
// ABOUTME: and routes review failures back through code generation under an explicit regeneration budget.

package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event is an orchestration observation emitted to Services.Observe.
type Event struct {
	Stage   string    `json:"stage"`
	Kind    string    `json:"kind"` // start, finish, route
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

func (s *Services) emit(stage, kind, message string) {
	if s.Observe == nil {
		return
	}
	s.Observe(Event{Stage: stage, Kind: kind, Message: message, Time: time.Now()})
}

// Run executes the full pipeline for a topic and returns the final state.
// The error is non-nil only when the run produced no final video; a partially
// degraded run that still composed a video returns nil.
func Run(ctx context.Context, services *Services, topic string) (State, error) {
	s := services.withDefaults()
	st := State{Topic: topic}
	snap := &snapshotter{dir: filepath.Join(s.OutDir, "state")}

	stage := func(name string, fn func() []Update) {
		s.emit(name, "start", "")
		// fn may adjust st itself (clearing stale code), so it must run
		// before st is read for the reduce.
		updates := fn()
		st = reduce(st, updates)
		snap.write(st, name)
		if s.ObserveState != nil {
			s.ObserveState(st)
		}
		s.emit(name, "finish", st.Error)
	}

	stage("scriptwriter", func() []Update {
		return []Update{s.scriptUpdate(ctx, st)}
	})
	if st.Error != "" {
		return st, errors.New(st.Error)
	}

	// Narration and planning are independent; run both branches on the same
	// input state and join their updates through the reducer.
	stage("narration+planning", func() []Update {
		var narr, plan []Update
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			narr = s.narrationUpdates(ctx, st)
		}()
		go func() {
			defer wg.Done()
			plan = s.planningUpdates(ctx, st)
		}()
		wg.Wait()
		return append(narr, plan...)
	})

	stage("codegen", func() []Update {
		updates, failed := s.codegenUpdates(ctx, st, nil)
		st = clearScripts(st, failed)
		return updates
	})

	stage("review", func() []Update {
		return s.reviewUpdates(ctx, st)
	})

	// Outer regeneration loop: segments that exhausted the review budget go
	// back through code generation, bounded so a hopeless segment cannot spin
	// forever.
	for cycle := 1; cycle <= s.MaxRegenCycles && len(st.NeedsRegeneration) > 0; cycle++ {
		ids := st.NeedsRegeneration
		s.emit("review", "route", fmt.Sprintf("regenerating %d segment(s), cycle %d/%d", len(ids), cycle, s.MaxRegenCycles))
		log.Printf("[graph] regeneration cycle %d/%d for segments %v", cycle, s.MaxRegenCycles, ids)

		stage("codegen", func() []Update {
			updates, failed := s.codegenUpdates(ctx, st, ids)
			st = clearScripts(st, failed)
			return updates
		})
		stage("review", func() []Update {
			return s.reviewUpdates(ctx, st)
		})
	}
	if len(st.NeedsRegeneration) > 0 {
		log.Printf("[graph] regeneration budget exhausted, segments %v proceed with last code", st.NeedsRegeneration)
	}

	stage("render", func() []Update {
		return s.renderUpdates(ctx, st)
	})

	stage("compose", func() []Update {
		return []Update{s.composeUpdate(ctx, st)}
	})

	if st.FinalVideoPath == "" {
		if st.Error == "" {
			st.Error = "pipeline finished without a final video"
		}
		return st, errors.New(st.Error)
	}
	return st, nil
}

// snapshotter persists the state after each stage for inspection and
// debugging. Snapshot failures are logged, never fatal.
type snapshotter struct {
	dir string
	seq int
}

func (sn *snapshotter) write(st State, stage string) {
	sn.seq++
	if err := os.MkdirAll(sn.dir, 0o755); err != nil {
		log.Printf("[graph] snapshot dir: %v", err)
		return
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		log.Printf("[graph] snapshot marshal: %v", err)
		return
	}
	path := filepath.Join(sn.dir, fmt.Sprintf("%02d_%s.json", sn.seq, stage))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		log.Printf("[graph] snapshot write: %v", err)
	}
}
