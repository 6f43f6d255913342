package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"os/signal"
	"time"

	"github.com/CodeStranger-Fred/mdplearn/config"
	"github.com/CodeStranger-Fred/mdplearn/experiment"
	"github.com/CodeStranger-Fred/mdplearn/gridworld"
	"github.com/CodeStranger-Fred/mdplearn/logging"
	"github.com/CodeStranger-Fred/mdplearn/plot"
	"github.com/CodeStranger-Fred/mdplearn/telemetry"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	rootCmd = &cobra.Command{
		Use:   "mdplearn",
		Short: "Solve and learn Markov decision processes on a grid world",
		Long: `mdplearn solves the configured grid world with value iteration or
policy iteration, or learns it online with Q-learning, and reports the
resulting utilities and policy.`,
		SilenceUsage:       true,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
	}
	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run one algorithm and print its utilities and policy",
		Args:  cobra.NoArgs,
		RunE:  runRun,
	}
	compareCmd = &cobra.Command{
		Use:   "compare [algorithm...]",
		Short: "Run several algorithms concurrently and compare their learning curves",
		RunE:  runCompare,
	}
	gridCmd = &cobra.Command{
		Use:   "grid",
		Short: "Print the configured grid world",
		Args:  cobra.NoArgs,
		RunE:  runGrid,
	}

	configPath  string
	envPath     string
	algorithm   string
	trials      int
	seed        uint64
	plotFile    string
	metricsAddr string
	color       bool
	showValues  bool

	cfg       config.Config
	log       *logrus.Logger
	logCloser io.Closer
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "config.yaml", "YAML configuration file")
	pf.StringVar(&envPath, "env", ".env", "dotenv file with MDP_* overrides")
	pf.IntVarP(&trials, "trials", "n", 0, "number of simulated episodes")
	pf.Uint64Var(&seed, "seed", 0, "random seed, 0 for a time based seed")
	pf.StringVar(&plotFile, "plot", "", "write learning curves to this HTML file")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	pf.BoolVar(&color, "color", true, "colour grid output")

	runCmd.Flags().StringVarP(&algorithm, "algorithm", "a", "", "value-iteration, policy-iteration or q-learning")
	runCmd.Flags().BoolVar(&showValues, "values", false, "also print the controller's raw tables")

	rootCmd.AddCommand(runCmd, compareCmd, gridCmd)
}

// setup loads .env, the config file and flag overrides, then builds the
// logger. Flags win over the environment, which wins over the file.
func setup(cmd *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(envPath); err != nil {
		return err
	}
	var err error
	if cfg, err = config.Load(configPath); err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("algorithm") {
		cfg.Algorithm = algorithm
	}
	if flags.Changed("trials") {
		cfg.Trials = trials
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("plot") {
		cfg.Plot.File = plotFile
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.Seed == 0 {
		cfg.Seed = uint64(time.Now().UnixNano())
	}

	if log, logCloser, err = logging.New(cfg.Logging); err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"config":    configPath,
		"algorithm": cfg.Algorithm,
		"seed":      cfg.Seed,
	}).Debug("configuration loaded")
	return nil
}

func teardown(*cobra.Command, []string) error {
	if logCloser == nil {
		return nil
	}
	return logCloser.Close()
}

// startMetrics always returns collectors; they are only served when an
// address is configured.
func startMetrics(ctx context.Context) *telemetry.Metrics {
	m := telemetry.New()
	if cfg.Metrics.Addr == "" {
		return m
	}
	go func() {
		if err := m.Serve(ctx, cfg.Metrics.Addr, cfg.Metrics.Path, log); err != nil {
			log.WithError(err).Error("metrics server stopped")
		}
	}()
	return m
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	metrics := startMetrics(ctx)

	run, err := experiment.RunGrid(ctx, cfg, rand.New(rand.NewPCG(cfg.Seed, 0)), log, metrics)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if err := report(out, run); err != nil {
		return err
	}
	if showValues {
		if err := run.Controller.WriteValues(out); err != nil {
			return err
		}
	}
	return writePlot(run)
}

func runCompare(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	metrics := startMetrics(ctx)

	runs, err := experiment.Compare(ctx, cfg, cfg.Seed, log, metrics, args...)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, run := range runs {
		if err := report(out, run); err != nil {
			return err
		}
	}
	return writePlot(runs...)
}

func runGrid(cmd *cobra.Command, _ []string) error {
	d, err := gridworld.NewDomain(cfg.Grid.World(), nil)
	if err != nil {
		return err
	}
	p := gridworld.NewPrinter(d.World(), color)
	var buf bytes.Buffer
	if err := p.PrintLayout(&buf, d.StartState()); err != nil {
		return err
	}
	buf.WriteByte('\n')
	if err := p.PrintCurrentState(&buf, d.StartState()); err != nil {
		return err
	}
	_, err = buf.WriteTo(cmd.OutOrStdout())
	return err
}

// ==== Reporting ====

func report(out io.Writer, run experiment.GridRun) error {
	sum := run.Summary()
	// The report is assembled in memory; only the final copy to out can fail.
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "== %s (run %s)\n", run.Algorithm, run.RunID)
	fmt.Fprintf(&buf, "status %s, %d episodes, %d reached a terminal state, %s\n",
		run.Status, sum.Episodes, sum.Reached, run.Duration.Round(time.Millisecond))
	fmt.Fprintf(&buf, "return %.4f ± %.4f, %.1f steps per episode\n", sum.MeanReturn, sum.StdReturn, sum.MeanSteps)
	fmt.Fprintln(&buf, run.Stats)

	p := gridworld.NewPrinter(run.Domain.World(), color)
	fmt.Fprintln(&buf, "utilities:")
	if err := p.PrintValues(&buf, run.Controller.Utility()); err != nil {
		return err
	}
	policy, err := run.Controller.Policy()
	if err != nil {
		return errors.Wrap(err, "policy")
	}
	fmt.Fprintln(&buf, "policy:")
	if err := p.PrintPolicy(&buf, policy); err != nil {
		return err
	}
	buf.WriteByte('\n')

	_, err = buf.WriteTo(out)
	return errors.Wrap(err, "write report")
}

func writePlot(runs ...experiment.GridRun) error {
	if cfg.Plot.File == "" {
		return nil
	}
	series := make([]plot.Series, 0, len(runs))
	for _, run := range runs {
		series = append(series, plot.Series{Name: run.Algorithm, Returns: run.Returns, Steps: run.Steps})
	}
	if err := plot.WriteFile(cfg.Plot.File, cfg.Plot.Title, cfg.Plot.Window, series...); err != nil {
		return err
	}
	log.WithField("file", cfg.Plot.File).Info("learning curves written")
	return nil
}
