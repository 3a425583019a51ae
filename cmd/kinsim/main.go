package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/avereen/kinsim/internal/config"
	"github.com/avereen/kinsim/internal/dae"
	"github.com/avereen/kinsim/internal/errlog"
	"github.com/avereen/kinsim/internal/reactor"
	"github.com/avereen/kinsim/internal/storage"
	"github.com/avereen/kinsim/internal/viz"
)

var (
	dataDir    string
	verbose    bool
	configFile string
	rtol       float64
	atol       float64
	duration   float64
	t0         float64
	maxOrder   int
	h0         float64
	hmin       float64
	hmax       float64
	maxSteps   int
	params     []string
	samples    int
	noSave     bool
	live       bool
	component  int
	outFile    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "kinsim",
		Short:         "chemical kinetics DAE simulation lab",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".kinsim", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "integrate a reactor model",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runModel,
	}
	runCmd.Flags().StringVar(&configFile, "config", "", "problem configuration (yaml)")
	runCmd.Flags().Float64Var(&rtol, "rtol", config.DefaultRtol, "relative tolerance")
	runCmd.Flags().Float64Var(&atol, "atol", config.DefaultAtol, "absolute tolerance")
	runCmd.Flags().Float64Var(&duration, "time", config.DefaultDuration, "integration interval")
	runCmd.Flags().Float64Var(&t0, "t0", 0, "start time")
	runCmd.Flags().IntVar(&maxOrder, "order", config.DefaultMaxOrder, "maximum BDF order")
	runCmd.Flags().Float64Var(&h0, "h0", 0, "initial step size (0 = automatic)")
	runCmd.Flags().Float64Var(&hmin, "hmin", 0, "minimum step size")
	runCmd.Flags().Float64Var(&hmax, "hmax", 0, "maximum step size")
	runCmd.Flags().IntVar(&maxSteps, "max-steps", config.DefaultMaxSteps, "step budget per output interval")
	runCmd.Flags().StringArrayVar(&params, "param", nil, "model parameter (name=value, repeatable)")
	runCmd.Flags().IntVar(&samples, "samples", 100, "output samples")
	runCmd.Flags().BoolVar(&noSave, "no-save", false, "do not store the run")
	runCmd.Flags().BoolVar(&live, "live", false, "live terminal monitor")

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list reactor models",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range reactor.NewRegistry().List() {
				fmt.Println(name)
			}
			return nil
		},
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&component, "component", 0, "solution component")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a stored run as json",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}
	exportCmd.Flags().StringVar(&outFile, "out", "", "output path (default <run_id>.json)")

	rootCmd.AddCommand(runCmd, modelsCmd, listCmd, plotCmd, exportCmd)

	if err := rootCmd.Execute(); err != nil {
		logger().Error(err.Error())
		os.Exit(1)
	}
}

func logger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}

// buildConfig merges the config file, defaults, and command-line flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if len(args) > 0 {
		cfg.Model = args[0]
	}
	if cmd.Flags().Changed("rtol") {
		cfg.Rtol = rtol
	}
	if cmd.Flags().Changed("atol") {
		cfg.Atol = atol
	}
	if cmd.Flags().Changed("time") {
		cfg.Duration = duration
	}
	if cmd.Flags().Changed("t0") {
		cfg.T0 = t0
	}
	if cmd.Flags().Changed("order") {
		cfg.MaxOrder = maxOrder
	}
	if cmd.Flags().Changed("h0") {
		cfg.H0 = h0
	}
	if cmd.Flags().Changed("hmin") {
		cfg.Hmin = hmin
	}
	if cmd.Flags().Changed("hmax") {
		cfg.Hmax = hmax
	}
	if cmd.Flags().Changed("max-steps") {
		cfg.MaxSteps = maxSteps
	}
	if cfg.Params == nil {
		cfg.Params = make(map[string]float64)
	}
	for _, p := range params {
		name, val, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("malformed --param %q, want name=value", p)
		}
		v, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed --param %q: %v", p, err)
		}
		cfg.Params[name] = v
	}
	return cfg, cfg.Validate()
}

func buildSolver(cfg *config.Config, rep *errlog.Reporter) (*dae.Solver, error) {
	eval, err := reactor.NewRegistry().Get(cfg.Model, reactor.Params(cfg.Params))
	if err != nil {
		return nil, err
	}
	s := dae.NewSolver(eval, rep)
	if len(cfg.AtolVec) > 0 {
		s.SetVectorTolerances(cfg.Rtol, cfg.AtolVec)
	} else {
		s.SetTolerances(cfg.Rtol, cfg.Atol)
	}
	s.SetMaxOrder(cfg.MaxOrder)
	s.SetInitialStepSize(cfg.H0)
	s.SetMinStepSize(cfg.Hmin)
	s.SetMaxStepSize(cfg.Hmax)
	s.SetMaxSteps(cfg.MaxSteps)
	if err := s.Init(cfg.T0, nil, nil); err != nil {
		return nil, err
	}
	return s, nil
}

func runModel(cmd *cobra.Command, args []string) error {
	log := logger()
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	rep := errlog.New().WithLogger(log)
	solver, err := buildSolver(cfg, rep)
	if err != nil {
		return err
	}

	if live {
		return viz.NewMonitor(solver, cfg.Model, cfg.T0+cfg.Duration).Run()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("integrating", "model", cfg.Model, "t0", cfg.T0, "tf", cfg.T0+cfg.Duration,
		"rtol", cfg.Rtol, "atol", cfg.Atol)

	times := []float64{cfg.T0}
	states := [][]float64{solver.SolutionVector()}
	start := time.Now()
	for i := 1; i <= samples; i++ {
		tout := cfg.T0 + cfg.Duration*float64(i)/float64(samples)
		if err := solver.Solve(ctx, tout); err != nil {
			log.Error("integration failed", "t", solver.Time(), "state", solver.State().String())
			if drained := rep.Drain(); len(drained) > 0 {
				for _, rec := range drained {
					log.Debug("diagnostic", "proc", rec.Proc, "msg", rec.Msg)
				}
			}
			return err
		}
		times = append(times, solver.Time())
		states = append(states, solver.SolutionVector())
	}
	elapsed := time.Since(start)

	stats := solver.Stats()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "model\t%s\n", cfg.Model)
	fmt.Fprintf(w, "interval\t[%g, %g]\n", cfg.T0, solver.Time())
	fmt.Fprintf(w, "steps\t%d\n", stats.Steps)
	fmt.Fprintf(w, "residual evals\t%d\n", stats.ResidEvals)
	fmt.Fprintf(w, "jacobians\t%d\n", stats.JacEvals)
	fmt.Fprintf(w, "error test fails\t%d\n", stats.ErrTestFails)
	fmt.Fprintf(w, "conv fails\t%d\n", stats.ConvFails)
	fmt.Fprintf(w, "wall time\t%s\n", elapsed.Round(time.Microsecond))
	fmt.Fprintf(w, "final state\t%v\n", solver.SolutionVector())
	w.Flush()

	if noSave {
		return nil
	}
	store := storage.New(dataDir)
	if err := store.Init(); err != nil {
		return err
	}
	id, err := store.Save(storage.RunMetadata{
		Model: cfg.Model,
		Rtol:  cfg.Rtol,
		Atol:  cfg.Atol,
		T0:    cfg.T0,
		Tf:    solver.Time(),
		Stats: stats,
	}, times, states)
	if err != nil {
		return err
	}
	log.Info("run stored", "id", id)
	return nil
}

func listRuns(cmd *cobra.Command, args []string) error {
	metas, err := storage.New(dataDir).List()
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		fmt.Println("no stored runs")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMODEL\tINTERVAL\tSTEPS\tWHEN")
	for _, m := range metas {
		fmt.Fprintf(w, "%s\t%s\t[%g, %g]\t%d\t%s\n",
			m.ID, m.Model, m.T0, m.Tf, m.Stats.Steps, m.Timestamp.Format(time.RFC3339))
	}
	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	run, err := storage.New(dataDir).Load(args[0])
	if err != nil {
		return err
	}
	caption := fmt.Sprintf("%s y%d(t), t in [%g, %g]", run.Meta.Model, component, run.Meta.T0, run.Meta.Tf)
	graph, err := viz.Plot(run.Times, run.States, component, caption)
	if err != nil {
		return err
	}
	fmt.Println(graph)
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	out := outFile
	if out == "" {
		out = args[0] + ".json"
	}
	if err := storage.New(dataDir).ExportJSON(args[0], out); err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
