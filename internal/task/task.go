// Package task sequences a herding trial: it owns the lifecycle broadcast,
// drives the containment monitor and collects early-termination requests.
package task

import (
	"log/slog"

	"github.com/san-kum/herdsim/internal/logging"
)

// Task is the single coordinator of one simulation.
type Task struct {
	Lifecycle

	monitor   *Monitor
	indicator Indicator
	log       *slog.Logger

	active    bool
	endEarly  bool
	endReason string
	onEnd     []func()
}

// New wires a task to its monitor. A nil indicator leaves the task running
// without visual feedback.
func New(monitor *Monitor, indicator Indicator, log *slog.Logger) *Task {
	log = logging.OrDiscard(log)
	if indicator == nil {
		log.Error("no containment indicator attached, running without visual feedback")
		indicator = NopIndicator{}
	}
	monitor.SetIndicator(indicator)
	return &Task{monitor: monitor, indicator: indicator, log: log}
}

func (t *Task) Monitor() *Monitor { return t.monitor }

func (t *Task) Active() bool { return t.active }

// OnEnd registers fn to run after End has been broadcast.
func (t *Task) OnEnd(fn func()) {
	t.onEnd = append(t.onEnd, fn)
}

// Reset shows the uncontained state and tells every agent to reset.
func (t *Task) Reset() {
	t.indicator.SetContained(false)
	t.broadcastReset()
}

// Begin resets, activates the task and starts monitoring. Calling Begin on an
// active task restarts it.
func (t *Task) Begin() {
	t.Reset()
	t.active = true
	t.endEarly = false
	t.endReason = ""
	t.monitor.Start()
	t.broadcastBegin()
}

// End deactivates the task, stops monitoring and resets before broadcasting
// End, so agents always see a reset first.
func (t *Task) End() {
	t.active = false
	t.monitor.Stop()
	t.Reset()
	t.broadcastEnd()
	for _, fn := range t.onEnd {
		fn()
	}
}

// Toggle ends an active task and begins an inactive one.
func (t *Task) Toggle() {
	if t.active {
		t.End()
		return
	}
	t.Begin()
}

func (t *Task) RequestEndEarly(reason string) {
	if t.endEarly {
		return
	}
	t.endEarly = true
	t.endReason = reason
	t.log.Info("trial ending early", "reason", reason)
}

// EndEarly reports whether an early end was requested since the last Begin.
func (t *Task) EndEarly() (bool, string) {
	return t.endEarly, t.endReason
}
