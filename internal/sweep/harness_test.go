package sweep_test

import (
	"context"
	"math"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/herdsim/internal/config"
	"github.com/san-kum/herdsim/internal/dynamo"
	"github.com/san-kum/herdsim/internal/experiment"
	"github.com/san-kum/herdsim/internal/storage"
	"github.com/san-kum/herdsim/internal/sweep"
	"github.com/san-kum/herdsim/internal/task"
)

func smallConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Dt = 0.1
	cfg.MaxTime = 1
	cfg.Seed = 5
	cfg.Sweep = config.SweepConfig{
		Speeds:        []float64{0.2},
		StiffnessRoot: config.RangeConfig{Start: 6, End: 8, Step: 2},
		DampingRatio:  config.RangeConfig{Start: 1, End: 1, Step: 0.1},
		Offset:        config.RangeConfig{Start: 0.35, End: 0.35, Step: 0.05},
		Trials:        2,
		Precision:     1000,
	}
	return cfg
}

func harnessFor(ctx context.Context, cfg *config.Config, src sweep.Source, store *storage.Store, index *storage.Index) (*sweep.Harness, *experiment.Simulation) {
	sim, err := experiment.Build(cfg, experiment.Options{Indicator: task.NopIndicator{}})
	Expect(err).NotTo(HaveOccurred())
	DeferCleanup(sim.Close)

	h := sweep.NewHarness(ctx, sweep.HarnessConfig{
		SweepID: "test",
		Trials:  cfg.Sweep.Trials,
		Dt:      cfg.Dt,
		MaxTime: cfg.MaxTime,
		Seed:    cfg.Seed,
	}, sim, src, store, index, nil)
	return h, sim
}

func readAll(store *storage.Store, names []string) []*storage.Trial {
	var out []*storage.Trial
	for _, n := range names {
		tr, err := storage.ReadTrial(filepath.Join(store.Dir(), n))
		Expect(err).NotTo(HaveOccurred())
		out = append(out, tr)
	}
	return out
}

var _ = Describe("Harness", func() {
	var (
		ctx   context.Context
		store *storage.Store
		index *storage.Index
	)

	BeforeEach(func() {
		ctx = context.Background()
		dir := GinkgoT().TempDir()
		store = storage.New(dir)
		var err error
		index, err = storage.OpenIndex(ctx, dir)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(index.Close)
	})

	It("runs every trial of every combination and records maxSamples+1 rows", func() {
		cfg := smallConfig()
		grid := sweep.GridFromConfig(cfg.Sweep)
		h, sim := harnessFor(ctx, cfg, sweep.NewQueue(grid.Combinations()), store, index)

		Expect(sweep.Host(ctx, h, sim, cfg.Dt)).To(Succeed())

		Expect(h.Completed()).To(Equal(4))
		trials := readAll(store, h.Files())
		Expect(trials).To(HaveLen(4))

		var nums []int
		for _, tr := range trials {
			Expect(tr.Names).To(Equal(sim.Names()))
			Expect(tr.Records).To(HaveLen(11))
			first := tr.Records[0]
			Expect(first.TrialMaxSamples).To(Equal(10))
			Expect(first.Time).To(Equal(0.0))
			Expect(tr.Records[10].Time).To(BeNumerically("~", 1.0, 1e-9))
			Expect(first.Damping).To(BeNumerically("~", 2*first.DampingRatio*math.Sqrt(first.Stiffness), 1e-3))
			nums = append(nums, first.TrialNum)
		}
		Expect(nums).To(Equal([]int{1, 2, 1, 2}))
		Expect(trials[0].Records[0].Stiffness).To(Equal(36.0))
		Expect(trials[2].Records[0].Stiffness).To(Equal(64.0))

		rows, err := index.Trials(ctx, "test")
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(4))
		for _, r := range rows {
			Expect(r.Samples).To(Equal(11))
			Expect(r.EndedEarly).To(BeFalse())
		}
	})

	It("applies each combination to the shared parameter objects", func() {
		cfg := smallConfig()
		cfg.Sweep.Trials = 1
		q := sweep.NewQueue([]sweep.Combination{{Index: 0, MaxSpeed: 0.12, StiffnessRoot: 3, DampingRatio: 0.5, Offset: 0.4}})
		h, sim := harnessFor(ctx, cfg, q, store, nil)

		Expect(h.Step()).To(BeTrue())
		Expect(sim.Limits.MaxVelocity).To(Equal(0.12))
		Expect(sim.Gains.Stiffness).To(Equal(9.0))
		Expect(sim.Gains.Damping).To(BeNumerically("~", 3, 1e-12))
		Expect(sim.Gains.Offset).To(Equal(0.4))
		Expect(sim.Task.Active()).To(BeTrue())
	})

	It("skips combinations with non-finite parameters", func() {
		cfg := smallConfig()
		cfg.Sweep.Trials = 1
		q := sweep.NewQueue([]sweep.Combination{
			{Index: 0, MaxSpeed: math.NaN(), StiffnessRoot: 6, DampingRatio: 1, Offset: 0.35},
			{Index: 1, MaxSpeed: 0.2, StiffnessRoot: 6, DampingRatio: 1, Offset: 0.35},
		})
		h, sim := harnessFor(ctx, cfg, q, store, nil)

		Expect(sweep.Host(ctx, h, sim, cfg.Dt)).To(Succeed())
		Expect(h.Completed()).To(Equal(1))
		tr := readAll(store, h.Files())[0]
		Expect(tr.Records[0].TargetMaxSpeed).To(Equal(0.2))
	})

	It("ends a trial early when a target leaves the field", func() {
		cfg := smallConfig()
		cfg.Sweep.Trials = 1
		cfg.Scene = append(cfg.Scene, config.AgentConfig{Name: "TA9", Role: "target", X: 3, Z: 0})
		q := sweep.NewQueue([]sweep.Combination{{Index: 0, MaxSpeed: 0.2, StiffnessRoot: 8, DampingRatio: 0.625, Offset: 0.35}})
		h, sim := harnessFor(ctx, cfg, q, store, index)

		Expect(sweep.Host(ctx, h, sim, cfg.Dt)).To(Succeed())
		tr := readAll(store, h.Files())[0]
		Expect(len(tr.Records)).To(BeNumerically("<", 11))

		rows, err := index.Trials(ctx, "test")
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(1))
		Expect(rows[0].EndedEarly).To(BeTrue())
		Expect(rows[0].EndReason).To(ContainSubstring("TA9"))
	})

	It("flushes the running trial when cancelled", func() {
		cfg := smallConfig()
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		grid := sweep.GridFromConfig(cfg.Sweep)
		h, sim := harnessFor(cctx, cfg, sweep.NewQueue(grid.Combinations()), store, index)

		err := sweep.Host(cctx, h, sim, cfg.Dt)
		Expect(err).To(MatchError(context.Canceled))
		Expect(err).To(MatchError(dynamo.ErrContextCanceled))
		Expect(h.Completed()).To(Equal(1))
		Expect(sim.Task.Active()).To(BeFalse())

		rows, err := index.Trials(ctx, "")
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(1))
		Expect(rows[0].Samples).To(Equal(1))
	})

	It("reproduces a trial from the same seed", func() {
		cfg := smallConfig()
		cfg.Sweep.Trials = 1
		combo := sweep.Combination{Index: 0, MaxSpeed: 0.2, StiffnessRoot: 8, DampingRatio: 0.625, Offset: 0.35}

		run := func() []storage.Record {
			h, sim := harnessFor(ctx, cfg, sweep.NewQueue([]sweep.Combination{combo}), store, nil)
			Expect(sweep.Host(ctx, h, sim, cfg.Dt)).To(Succeed())
			return readAll(store, h.Files())[0].Records
		}
		Expect(run()).To(Equal(run()))
	})
})

var _ = Describe("Runner", func() {
	It("splits a sweep across workers", func() {
		ctx := context.Background()
		dir := GinkgoT().TempDir()
		index, err := storage.OpenIndex(ctx, dir)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(index.Close)

		cfg := smallConfig()
		cfg.Workers = 2
		r := &sweep.Runner{Config: cfg, Store: storage.New(dir), Index: index}

		res, err := r.Run(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(res.SweepID).NotTo(BeEmpty())
		Expect(res.Trials).To(Equal(4))
		Expect(res.Files).To(HaveLen(4))

		rows, err := index.Trials(ctx, res.SweepID)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(4))

		sweeps, err := index.Sweeps(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(sweeps).To(HaveLen(1))
		Expect(sweeps[0].Trials).To(Equal(4))
	})
})
