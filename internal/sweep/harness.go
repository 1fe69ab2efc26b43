package sweep

import (
	"context"
	"log/slog"

	"github.com/san-kum/herdsim/internal/experiment"
	"github.com/san-kum/herdsim/internal/logging"
	"github.com/san-kum/herdsim/internal/metrics"
	"github.com/san-kum/herdsim/internal/storage"
)

type HarnessConfig struct {
	SweepID string
	Trials  int
	Dt      float64
	MaxTime float64
	Seed    int64
}

// MaxSamples is ⌊MaxTime⌋ / Dt. A trial records MaxSamples+1 rows.
func (c HarnessConfig) MaxSamples() int {
	return int(float64(int(c.MaxTime)) / c.Dt)
}

// Harness drives one Simulation through every trial of the combinations it
// pulls from its Source. It is a step function: the host calls Step, and
// ticks the simulation by Dt each time Step returns true.
type Harness struct {
	ctx     context.Context
	cfg     HarnessConfig
	sim     *experiment.Simulation
	src     Source
	store   *storage.Store
	index   *storage.Index
	log     *slog.Logger
	buf     *storage.Buffer
	metrics metrics.Set
	spread  *metrics.MeanSpread

	combo     Combination
	haveCombo bool
	trial     int
	seed      int64
	running   bool
	sample    int
	params    storage.Params

	completed int
	files     []string
	err       error
}

// NewHarness binds a harness to sim. The index may be nil.
func NewHarness(ctx context.Context, cfg HarnessConfig, sim *experiment.Simulation, src Source, store *storage.Store, index *storage.Index, log *slog.Logger) *Harness {
	if cfg.Trials < 1 {
		cfg.Trials = 1
	}
	spread := metrics.NewMeanSpread()
	h := &Harness{
		ctx:     ctx,
		cfg:     cfg,
		sim:     sim,
		src:     src,
		store:   store,
		index:   index,
		log:     logging.OrDiscard(log),
		buf:     storage.NewBuffer(sim.Names()),
		metrics: metrics.Set{metrics.NewContainedFraction(), metrics.NewTimeToContainment(), spread},
		spread:  spread,
	}
	sim.Task.OnEnd(h.flush)
	return h
}

// Step advances the harness by one sample. It returns false once every
// trial is done or an error stopped the harness.
func (h *Harness) Step() bool {
	for h.err == nil {
		if h.running {
			if early, _ := h.sim.Task.EndEarly(); early || h.sample > h.cfg.MaxSamples() {
				h.finish()
				continue
			}
			h.record()
			h.sample++
			return true
		}

		if !h.nextTrial() {
			return false
		}
		h.begin()
	}
	return false
}

// Abort ends the running trial, flushing what was recorded.
func (h *Harness) Abort() {
	if h.running {
		h.finish()
	}
}

func (h *Harness) Err() error { return h.err }

// Completed is the number of trials ended so far.
func (h *Harness) Completed() int { return h.completed }

// Files are the trial files written so far.
func (h *Harness) Files() []string { return h.files }

// Trial returns the running combination and 1-based trial number.
func (h *Harness) Trial() (Combination, int) { return h.combo, h.trial }

func (h *Harness) nextTrial() bool {
	if h.haveCombo && h.trial < h.cfg.Trials {
		h.trial++
		return true
	}
	for {
		c, ok := h.src.Next()
		if !ok {
			h.haveCombo = false
			return false
		}
		if err := c.Validate(); err != nil {
			h.log.Warn("skipping combination", "index", c.Index, "error", err)
			continue
		}
		h.configure(c)
		h.trial = 1
		return true
	}
}

// configure writes the combination to the parameter objects shared by the
// controllers. They pick the values up on the next Reset.
func (h *Harness) configure(c Combination) {
	h.combo = c
	h.haveCombo = true
	h.sim.Limits.MaxVelocity = c.MaxSpeed
	h.sim.Gains.Stiffness = c.Stiffness()
	h.sim.Gains.Damping = c.Damping()
	h.sim.Gains.Offset = c.Offset
	h.log.Debug("combination configured",
		"index", c.Index,
		"speed", c.MaxSpeed,
		"stiffness", c.Stiffness(),
		"damping", c.Damping(),
		"offset", c.Offset)
}

func (h *Harness) begin() {
	c := h.combo
	h.params = storage.Params{
		TrialNum:        h.trial,
		TrialMaxTime:    h.cfg.MaxTime,
		TrialMaxSamples: h.cfg.MaxSamples(),
		TargetMaxSpeed:  c.MaxSpeed,
		Stiffness:       c.Stiffness(),
		DampingRatio:    c.DampingRatio,
		Damping:         c.Damping(),
		Offset:          c.Offset,
	}
	h.seed = h.cfg.Seed + int64(c.Index*h.cfg.Trials+h.trial)
	h.sim.Reseed(h.seed)
	h.metrics.Reset()
	h.sample = 0
	h.running = true
	h.sim.Task.Begin()
}

func (h *Harness) record() {
	m := h.sim.Task.Monitor()
	t := float64(h.sample) * h.cfg.Dt
	h.buf.Append(storage.Record{
		Params:    h.params,
		Time:      t,
		Contained: m.Contained(),
		Positions: h.sim.Snapshot(),
	})
	h.metrics.Observe(metrics.Sample{Time: t, Contained: m.Contained(), Spread: m.Spread()})
}

func (h *Harness) finish() {
	h.running = false
	h.sim.Task.End()
}

// flush runs as the task's end hook.
func (h *Harness) flush() {
	samples := h.buf.Len()
	name, err := h.store.Flush(h.buf)
	if err != nil {
		h.err = err
		h.log.Error("failed to write trial", "trial", h.trial, "error", err)
		return
	}
	if name == "" {
		return
	}
	h.completed++
	h.files = append(h.files, name)

	early, reason := h.sim.Task.EndEarly()
	values := h.metrics.Values()
	h.log.Info("trial complete",
		"combination", h.combo.Index,
		"trial", h.trial,
		"samples", samples,
		"contained", values["contained_fraction"],
		"file", name)

	if h.index == nil {
		return
	}
	// an aborted trial is still indexed after its context is cancelled
	err = h.index.Insert(context.WithoutCancel(h.ctx), storage.Summary{
		SweepID:           h.cfg.SweepID,
		Params:            h.params,
		Seed:              h.seed,
		Samples:           samples,
		ContainedFraction: values["contained_fraction"],
		TimeToContainment: values["time_to_containment"],
		MeanSpread:        h.spread.Value(),
		EndedEarly:        early,
		EndReason:         reason,
		File:              name,
	})
	if err != nil {
		h.err = err
		h.log.Error("failed to index trial", "file", name, "error", err)
	}
}
