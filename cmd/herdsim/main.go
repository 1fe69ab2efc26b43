package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/herdsim/internal/automation"
	"github.com/san-kum/herdsim/internal/config"
	"github.com/san-kum/herdsim/internal/experiment"
	"github.com/san-kum/herdsim/internal/export"
	"github.com/san-kum/herdsim/internal/logging"
	"github.com/san-kum/herdsim/internal/optim"
	"github.com/san-kum/herdsim/internal/storage"
	"github.com/san-kum/herdsim/internal/sweep"
	"github.com/san-kum/herdsim/internal/viz"
)

var (
	configFile string
	preset     string
	logLevel   string
	outDir     string

	workers int
	trials  int
	seed    int64

	// single-trial overrides
	maxSpeed  float64
	stiffness float64
	damping   float64
	offset    float64

	setup  bool
	record bool

	axis      string
	agents    []string
	height    int
	plotWidth int
	output    string
	showFiles bool

	objective string
	top       int
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "herdsim",
		Short:        "herding simulation lab",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Default to the interactive setup when no command given
			cfg, log, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			return viz.RunInteractive(cfg, storage.New(cfg.OutputDir), log)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path (yaml or toml)")
	rootCmd.PersistentFlags().StringVar(&preset, "preset", "", "use preset configuration")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&outDir, "out", "", "output directory for trial files and the index")

	sweepCmd := &cobra.Command{
		Use:   "sweep",
		Short: "run every parameter combination of the configured grid",
		RunE:  runSweep,
	}
	sweepCmd.Flags().IntVar(&workers, "workers", 0, "parallel workers (default from config)")
	sweepCmd.Flags().IntVar(&trials, "trials", 0, "trials per combination (default from config)")
	sweepCmd.Flags().Int64Var(&seed, "seed", 0, "base random seed (default from config)")

	trialCmd := &cobra.Command{
		Use:   "trial",
		Short: "run the configured gains as a single combination",
		RunE:  runTrial,
	}
	trialCmd.Flags().IntVar(&trials, "trials", 1, "number of trials")
	trialCmd.Flags().Int64Var(&seed, "seed", 0, "base random seed (default from config)")
	trialCmd.Flags().Float64Var(&maxSpeed, "speed", 0, "target max speed")
	trialCmd.Flags().Float64Var(&stiffness, "stiffness", 0, "herder stiffness")
	trialCmd.Flags().Float64Var(&damping, "damping", 0, "herder damping")
	trialCmd.Flags().Float64Var(&offset, "offset", 0, "herder offset")

	liveCmd := &cobra.Command{
		Use:   "live",
		Short: "run trials with live visualization",
		RunE:  runLive,
	}
	liveCmd.Flags().BoolVar(&setup, "setup", false, "pick preset and gains before starting")
	liveCmd.Flags().BoolVar(&record, "record", false, "write a CSV for every finished trial")

	listCmd := &cobra.Command{
		Use:   "list [sweep_id]",
		Short: "list sweeps, or the trials of one sweep",
		Args:  cobra.MaximumNArgs(1),
		RunE:  listRuns,
	}
	listCmd.Flags().BoolVar(&showFiles, "files", false, "list trial CSV files instead")

	plotCmd := &cobra.Command{
		Use:   "plot [file.csv | sweep_id]",
		Short: "plot a trial file or a sweep's containment",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().StringVar(&axis, "axis", "x", "position axis (x or z)")
	plotCmd.Flags().StringSliceVar(&agents, "agents", nil, "agents to plot (default all)")
	plotCmd.Flags().IntVar(&height, "height", 12, "graph height")
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "graph width")

	renderCmd := &cobra.Command{
		Use:   "render [file.csv | sweep_id]",
		Short: "render trajectories or sweep containment to PNG",
		Args:  cobra.ExactArgs(1),
		RunE:  renderRun,
	}
	renderCmd.Flags().StringVarP(&output, "output", "o", "", "png or svg path (default png next to the input)")

	scenarioCmd := &cobra.Command{
		Use:   "scenario [file.yaml]",
		Short: "run a scripted list of gain settings",
		Args:  cobra.ExactArgs(1),
		RunE:  runScenario,
	}

	rankCmd := &cobra.Command{
		Use:   "rank [sweep_id]",
		Short: "rank a sweep's combinations",
		Args:  cobra.MaximumNArgs(1),
		RunE:  rankSweep,
	}
	rankCmd.Flags().StringVar(&objective, "by", "contained", "objective (contained, time, spread)")
	rankCmd.Flags().IntVar(&top, "top", 10, "number of combinations to show")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("presets:")
			for _, p := range config.ListPresets() {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	rootCmd.AddCommand(sweepCmd, trialCmd, liveCmd, listCmd, plotCmd, renderCmd, scenarioCmd, rankCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig layers the config file over the preset (or the defaults), then
// applies the environment and finally the flags.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}
	if configFile != "" {
		if _, err := config.LoadOver(configFile, cfg); err != nil {
			return nil, nil, fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		config.ApplyEnv(cfg)
	}

	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if outDir != "" {
		cfg.OutputDir = outDir
	}
	flags := cmd.Flags()
	if flags.Lookup("workers") != nil && flags.Changed("workers") {
		cfg.Workers = workers
	}
	if flags.Lookup("seed") != nil && flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Lookup("trials") != nil && flags.Changed("trials") {
		cfg.Sweep.Trials = trials
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, logging.NewLogger(cfg.LogLevel, os.Stderr), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func openOutputs(ctx context.Context, cfg *config.Config) (*storage.Store, *storage.Index, error) {
	st := storage.New(cfg.OutputDir)
	if err := st.Init(); err != nil {
		return nil, nil, err
	}
	ix, err := storage.OpenIndex(ctx, cfg.OutputDir)
	if err != nil {
		return nil, nil, err
	}
	return st, ix, nil
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	st, ix, err := openOutputs(ctx, cfg)
	if err != nil {
		return err
	}
	defer ix.Close()

	grid := sweep.GridFromConfig(cfg.Sweep)
	fmt.Printf("sweeping %d combinations x %d trials (%d trials total)...\n", len(grid.Combinations()), grid.Trials, grid.Total())

	r := &sweep.Runner{Config: cfg, Store: st, Index: ix, Log: log}
	res, err := r.Run(ctx)
	if res != nil {
		printResult(res)
	}
	if errors.Is(err, context.Canceled) {
		fmt.Println("interrupted; finished trials were saved")
		return nil
	}
	return err
}

func runTrial(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("speed") {
		cfg.MaxVelocity = maxSpeed
	}
	if flags.Changed("stiffness") {
		cfg.Gains.Stiffness = stiffness
	}
	if flags.Changed("damping") {
		cfg.Gains.Damping = damping
	}
	if flags.Changed("offset") {
		cfg.Gains.Offset = offset
	}
	// --trials defaults to one here, not to the sweep's count
	cfg.Sweep.Trials = trials
	cfg.Workers = 1

	ctx, stop := signalContext()
	defer stop()

	st, ix, err := openOutputs(ctx, cfg)
	if err != nil {
		return err
	}
	defer ix.Close()

	combo := sweep.FromGains(cfg.MaxVelocity, cfg.Gains)
	if err := combo.Validate(); err != nil {
		return err
	}
	fmt.Printf("running %d trial(s) at k=%.3f b=%.3f offset=%.2f speed=%.2f...\n",
		cfg.Sweep.Trials, combo.Stiffness(), combo.Damping(), combo.Offset, combo.MaxSpeed)

	r := &sweep.Runner{Config: cfg, Store: st, Index: ix, Log: log}
	res, err := r.RunQueue(ctx, sweep.NewQueue([]sweep.Combination{combo}), cfg.Sweep.Trials)
	if res != nil {
		printResult(res)
		if err == nil {
			return printTrials(ctx, ix, res.SweepID)
		}
	}
	return err
}

func printResult(res *sweep.Result) {
	fmt.Printf("completed %d trials in %v\n", res.Trials, res.Duration.Round(time.Millisecond))
	fmt.Printf("sweep id: %s\n", res.SweepID)
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	// the TUI owns the terminal; keep logs out of it
	if logLevel == "" {
		log = logging.Discard()
	}

	var st *storage.Store
	if record {
		st = storage.New(cfg.OutputDir)
		if err := st.Init(); err != nil {
			return err
		}
	}
	if setup {
		return viz.RunInteractive(cfg, st, log)
	}

	sim, err := experiment.Build(cfg, experiment.Options{Log: log})
	if err != nil {
		return err
	}
	defer sim.Close()

	m, err := viz.RunLive(sim, viz.LiveConfig{
		Dt:         cfg.Dt,
		MaxTime:    cfg.MaxTime,
		HalfExtent: cfg.World.HalfExtent,
		Store:      st,
		Log:        log,
	})
	if err != nil {
		return err
	}
	for _, f := range m.Files() {
		fmt.Println(filepath.Join(cfg.OutputDir, f))
	}
	return m.Err()
}

func listRuns(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := context.Background()

	if showFiles {
		files, err := storage.New(cfg.OutputDir).List()
		if err != nil {
			return err
		}
		if len(files) == 0 {
			fmt.Println("no trial files found")
			return nil
		}
		for _, f := range files {
			fmt.Println(f)
		}
		return nil
	}

	ix, err := storage.OpenIndex(ctx, cfg.OutputDir)
	if err != nil {
		return err
	}
	defer ix.Close()

	if len(args) == 1 {
		return printTrials(ctx, ix, args[0])
	}

	sweeps, err := ix.Sweeps(ctx)
	if err != nil {
		return err
	}
	if len(sweeps) == 0 {
		fmt.Println("no sweeps found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tTRIALS\tCONTAINED")
	for _, s := range sweeps {
		fmt.Fprintf(w, "%s\t%s\t%d\t%.3f\n",
			s.ID,
			s.Started.Local().Format("2006-01-02 15:04:05"),
			s.Trials,
			s.MeanContained,
		)
	}
	return w.Flush()
}

func printTrials(ctx context.Context, ix *storage.Index, sweepID string) error {
	rows, err := ix.Trials(ctx, sweepID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Printf("no trials for sweep %s\n", sweepID)
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRIAL\tSPEED\tSTIFF\tRATIO\tOFFSET\tSAMPLES\tCONTAINED\tT_CONTAIN\tSPREAD\tEND\tFILE")
	for _, r := range rows {
		end := "-"
		if r.EndedEarly {
			end = "early"
		}
		fmt.Fprintf(w, "%d\t%.2f\t%.3f\t%.3f\t%.2f\t%d\t%.3f\t%.2f\t%.3f\t%s\t%s\n",
			r.Params.TrialNum,
			r.Params.TargetMaxSpeed,
			r.Params.Stiffness,
			r.Params.DampingRatio,
			r.Params.Offset,
			r.Samples,
			r.ContainedFraction,
			r.TimeToContainment,
			r.MeanSpread,
			end,
			r.File,
		)
	}
	return w.Flush()
}

func isTrialFile(arg string) bool {
	return strings.HasSuffix(strings.ToLower(arg), ".csv")
}

// trialPath accepts a path or a bare name inside the output directory.
func trialPath(cfg *config.Config, arg string) string {
	if _, err := os.Stat(arg); err == nil {
		return arg
	}
	return storage.New(cfg.OutputDir).Path(arg)
}

func sweepRows(ctx context.Context, cfg *config.Config, sweepID string) ([]storage.Summary, error) {
	ix, err := storage.OpenIndex(ctx, cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	defer ix.Close()
	return ix.Trials(ctx, sweepID)
}

func plotRun(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	var graph string
	if isTrialFile(args[0]) {
		tr, err := storage.ReadTrial(trialPath(cfg, args[0]))
		if err != nil {
			return err
		}
		graph, err = viz.PlotTrial(tr, viz.PlotOptions{Agents: agents, Axis: axis, Height: height, Width: plotWidth})
		if err != nil {
			return err
		}
	} else {
		rows, err := sweepRows(context.Background(), cfg, args[0])
		if err != nil {
			return err
		}
		graph, err = viz.PlotSummaries(rows, height, plotWidth)
		if err != nil {
			return err
		}
	}
	fmt.Println(graph)
	return nil
}

func renderRun(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if isTrialFile(args[0]) {
		path := trialPath(cfg, args[0])
		tr, err := storage.ReadTrial(path)
		if err != nil {
			return err
		}
		p, err := viz.TrajectoryPlot(tr, cfg.World.HalfExtent)
		if err != nil {
			return err
		}
		dst := output
		if dst == "" {
			dst = strings.TrimSuffix(path, filepath.Ext(path)) + ".png"
		}
		if strings.EqualFold(filepath.Ext(dst), ".svg") {
			err = saveSVG(tr, cfg.World.HalfExtent, dst)
		} else {
			err = viz.SavePNG(p, dst)
		}
		if err != nil {
			return err
		}
		fmt.Printf("saved to %s\n", dst)
		return nil
	}

	rows, err := sweepRows(context.Background(), cfg, args[0])
	if err != nil {
		return err
	}
	p, err := viz.ContainmentPlot(rows)
	if err != nil {
		return err
	}
	dst := output
	if dst == "" {
		dst = filepath.Join(cfg.OutputDir, "sweep-"+args[0]+".png")
	}
	if err := viz.SavePNG(p, dst); err != nil {
		return err
	}
	fmt.Printf("saved to %s\n", dst)
	return nil
}

func saveSVG(tr *storage.Trial, halfExtent float64, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer f.Close()
	return export.TrialToSVG(f, tr, halfExtent, 800)
}

func runScenario(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	sc, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	st, ix, err := openOutputs(ctx, cfg)
	if err != nil {
		return err
	}
	defer ix.Close()

	fmt.Printf("running scenario %s (%d steps)...\n", sc.Name, len(sc.Steps))
	r := &automation.Runner{Base: cfg, Store: st, Index: ix, Log: log}
	results, err := r.RunScenario(ctx, sc)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STEP\tSWEEP\tTRIALS")
	for _, res := range results {
		fmt.Fprintf(w, "%s\t%s\t%d\n", res.Step, res.SweepID, res.Trials)
	}
	if ferr := w.Flush(); err == nil {
		err = ferr
	}
	return err
}

func rankSweep(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	obj, err := optim.ParseObjective(objective)
	if err != nil {
		return err
	}
	sweepID := ""
	if len(args) == 1 {
		sweepID = args[0]
	}
	rows, err := sweepRows(context.Background(), cfg, sweepID)
	if err != nil {
		return err
	}
	scores := optim.Rank(rows, obj)
	if len(scores) == 0 {
		fmt.Println("no trials found")
		return nil
	}
	if top > 0 && len(scores) > top {
		scores = scores[:top]
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSPEED\tSTIFF\tRATIO\tOFFSET\tTRIALS\tEARLY\tCONTAINED\tT_CONTAIN\tSPREAD")
	for i, s := range scores {
		fmt.Fprintf(w, "%d\t%.2f\t%.3f\t%.3f\t%.2f\t%d\t%d\t%.3f\t%.2f\t%.3f\n",
			i+1,
			s.Params.TargetMaxSpeed,
			s.Params.Stiffness,
			s.Params.DampingRatio,
			s.Params.Offset,
			s.Trials,
			s.EarlyEnds,
			s.ContainedFraction,
			s.TimeToContainment,
			s.MeanSpread,
		)
	}
	return w.Flush()
}
