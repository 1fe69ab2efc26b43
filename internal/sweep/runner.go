package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/herdsim/internal/config"
	"github.com/san-kum/herdsim/internal/dynamo"
	"github.com/san-kum/herdsim/internal/experiment"
	"github.com/san-kum/herdsim/internal/logging"
	"github.com/san-kum/herdsim/internal/storage"
	"github.com/san-kum/herdsim/internal/task"
)

// Result summarises a finished (or cancelled) sweep.
type Result struct {
	SweepID  string
	Trials   int
	Files    []string
	Duration time.Duration
}

// Runner hosts one harness per worker over a shared queue of combinations.
type Runner struct {
	Config *config.Config
	Store  *storage.Store
	Index  *storage.Index
	Log    *slog.Logger
	// Options are passed to every experiment.Build call.
	Options experiment.Options
}

// Run sweeps every combination of the configured grid.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	grid := GridFromConfig(r.Config.Sweep)
	return r.RunQueue(ctx, NewQueue(grid.Combinations()), grid.Trials)
}

// RunQueue runs trials per combination for every combination in q.
func (r *Runner) RunQueue(ctx context.Context, q *Queue, trials int) (*Result, error) {
	log := logging.OrDiscard(r.Log)
	res := &Result{SweepID: uuid.NewString()}
	start := time.Now()

	workers := r.Config.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > q.Len() {
		workers = max(q.Len(), 1)
	}

	log.Info("sweep starting",
		"sweep", res.SweepID,
		"combinations", q.Len(),
		"trials", trials,
		"workers", workers)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			completed, files, err := r.work(gctx, w, q, trials, res.SweepID, log)
			mu.Lock()
			res.Trials += completed
			res.Files = append(res.Files, files...)
			mu.Unlock()
			return err
		})
	}
	err := g.Wait()
	res.Duration = time.Since(start)

	log.Info("sweep finished",
		"sweep", res.SweepID,
		"trials", res.Trials,
		"duration", res.Duration.Round(time.Millisecond))
	return res, err
}

func (r *Runner) work(ctx context.Context, id int, q *Queue, trials int, sweepID string, log *slog.Logger) (int, []string, error) {
	log = log.With("worker", id)
	opts := r.Options
	opts.Log = log
	if opts.Indicator == nil {
		opts.Indicator = task.NopIndicator{}
	}

	sim, err := experiment.Build(r.Config, opts)
	if err != nil {
		return 0, nil, err
	}
	defer sim.Close()

	h := NewHarness(ctx, HarnessConfig{
		SweepID: sweepID,
		Trials:  trials,
		Dt:      r.Config.Dt,
		MaxTime: r.Config.MaxTime,
		Seed:    r.Config.Seed,
	}, sim, q, r.Store, r.Index, log)

	err = Host(ctx, h, sim, r.Config.Dt)
	return h.Completed(), h.Files(), err
}

// Host alternates harness steps and simulation ticks until the harness is
// done. Cancellation is checked once per tick; the running trial is still
// ended and flushed.
func Host(ctx context.Context, h *Harness, sim *experiment.Simulation, dt float64) error {
	for h.Step() {
		if err := ctx.Err(); err != nil {
			h.Abort()
			return fmt.Errorf("%w: %w", dynamo.ErrContextCanceled, err)
		}
		if err := sim.Tick(dt); err != nil {
			c, trial := h.Trial()
			h.Abort()
			return fmt.Errorf("combination %d trial %d: %w", c.Index, trial, err)
		}
	}
	return h.Err()
}
