// ABOUTME: Tracker collects engine events and state snapshots for one pipeline run.
// ABOUTME: Safe for concurrent use: the pipeline writes while HTTP handlers read.

package web

import (
	"sync"
	"time"

	"github.com/2389-research/chalktalk/pipeline"
)

// Tracker is the mutable record of a run in progress.
type Tracker struct {
	mu         sync.RWMutex
	runID      string
	topic      string
	startedAt  time.Time
	finishedAt *time.Time
	errText    string
	state      pipeline.State
	events     []pipeline.Event
}

// NewTracker starts tracking a run.
func NewTracker(runID, topic string) *Tracker {
	return &Tracker{
		runID:     runID,
		topic:     topic,
		startedAt: time.Now(),
		state:     pipeline.State{Topic: topic},
	}
}

// Observe records an engine event. Wire it to Services.Observe.
func (t *Tracker) Observe(e pipeline.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, e)
}

// SetState records the latest known pipeline state. Wire it to
// Services.ObserveState.
func (t *Tracker) SetState(st pipeline.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = st
}

// Finish marks the run complete, with its terminal error if any.
func (t *Tracker) Finish(st pipeline.State, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = st
	now := time.Now()
	t.finishedAt = &now
	if err != nil {
		t.errText = err.Error()
	}
}

// Status returns the run summary.
func (t *Tracker) Status() RunStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return RunStatus{
		RunID:      t.runID,
		Topic:      t.topic,
		Running:    t.finishedAt == nil,
		Error:      t.errText,
		FinalVideo: t.state.FinalVideoPath,
		StartedAt:  t.startedAt,
		FinishedAt: t.finishedAt,
		EventCount: len(t.events),
	}
}

// State returns the latest known pipeline state.
func (t *Tracker) State() pipeline.State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// Events returns a copy of the recorded events.
func (t *Tracker) Events() []pipeline.Event {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]pipeline.Event(nil), t.events...)
}
