package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/xid"
	"github.com/spf13/cobra"
	"github.com/tebeka/atexit"

	"github.com/san-kum/sysid/internal/automation"
	"github.com/san-kum/sysid/internal/config"
	"github.com/san-kum/sysid/internal/datalog"
	"github.com/san-kum/sysid/internal/experiment"
	"github.com/san-kum/sysid/internal/viz"
)

var (
	dataDir    string
	verbose    bool
	configFile string
	preset     string

	mechanism   string
	motor       string
	integrator  string
	rampRate    float64
	stepVoltage float64
	timeout     float64
	period      float64
	settle      float64
	tests       []string
	seed        int64
	noise       float64
	realtime    bool
	noSQLite    bool
	noCSV       bool

	plotWidth  int
	plotHeight int
	plotMotor  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "sysid",
		Short: "system identification test routines for simulated mechanisms",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelWarn
			if verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data", ".sysid", "data directory")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	runCmd := &cobra.Command{
		Use:   "run [model]",
		Short: "run characterization tests against a simulated mechanism",
		Args:  cobra.ExactArgs(1),
		RunE:  runTests,
	}
	addRunFlags(runCmd)

	liveCmd := &cobra.Command{
		Use:   "live [model]",
		Short: "run tests in real time with a live view",
		Args:  cobra.ExactArgs(1),
		RunE:  runLive,
	}
	addRunFlags(liveCmd)

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list runs",
		RunE:  listRuns,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot logged motor data of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  plotRun,
	}
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")
	plotCmd.Flags().IntVar(&plotHeight, "height", 10, "plot height")
	plotCmd.Flags().StringVar(&plotMotor, "motor", "motor", "motor name")

	exportCmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export run metadata",
		Args:  cobra.ExactArgs(1),
		RunE:  exportRun,
	}

	keysCmd := &cobra.Command{
		Use:   "keys [run_id]",
		Short: "list log keys recorded in a run database",
		Args:  cobra.ExactArgs(1),
		RunE:  listKeys,
	}

	batchCmd := &cobra.Command{
		Use:   "batch [scenario.yaml]",
		Short: "run every step and sweep of a scenario file",
		Args:  cobra.ExactArgs(1),
		RunE:  runBatch,
	}

	modelsCmd := &cobra.Command{
		Use:   "models",
		Short: "list simulated models and integrators",
		Run: func(cmd *cobra.Command, args []string) {
			reg := experiment.NewRegistry()
			fmt.Println("models:")
			for _, m := range reg.ListModels() {
				fmt.Printf("  %s\n", m)
			}
			fmt.Println("integrators:")
			for _, i := range reg.ListIntegrators() {
				fmt.Printf("  %s\n", i)
			}
		},
	}

	presetsCmd := &cobra.Command{
		Use:   "presets [model]",
		Short: "list available presets for a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			presets := config.ListPresets(args[0])
			if len(presets) == 0 {
				fmt.Printf("no presets for model: %s\n", args[0])
				return nil
			}
			fmt.Printf("presets for %s:\n", args[0])
			for _, p := range presets {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	rootCmd.AddCommand(runCmd, liveCmd, batchCmd, listCmd, plotCmd, exportCmd, keysCmd, modelsCmd, presetsCmd)

	if err := rootCmd.Execute(); err != nil {
		atexit.Exit(1)
	}
	atexit.Exit(0)
}

func addRunFlags(cmd *cobra.Command) {
	d := config.DefaultConfig()
	cmd.Flags().StringVar(&configFile, "config", "", "config file path (yaml)")
	cmd.Flags().StringVar(&preset, "preset", "", "use preset configuration")
	cmd.Flags().StringVar(&mechanism, "mechanism", d.Mechanism, "mechanism name used in log keys")
	cmd.Flags().StringVar(&motor, "motor", d.Motor, "motor name used in log keys")
	cmd.Flags().StringVar(&integrator, "integrator", d.Integrator, "integrator")
	cmd.Flags().Float64Var(&rampRate, "ramp", d.Routine.RampRate, "quasistatic ramp rate (V/s)")
	cmd.Flags().Float64Var(&stepVoltage, "step", d.Routine.StepVoltage, "dynamic step voltage (V)")
	cmd.Flags().Float64Var(&timeout, "timeout", d.Routine.Timeout, "per-test timeout (s)")
	cmd.Flags().Float64Var(&period, "period", d.Period, "loop period (s)")
	cmd.Flags().Float64Var(&settle, "settle", d.Settle, "idle time between tests (s)")
	cmd.Flags().StringSliceVar(&tests, "tests", d.Tests, "tests to run, in order")
	cmd.Flags().Int64Var(&seed, "seed", 0, "sensor noise seed")
	cmd.Flags().Float64Var(&noise, "noise", 0, "sensor noise standard deviation")
	cmd.Flags().BoolVar(&realtime, "realtime", false, "pace the loop with the wall clock")
	cmd.Flags().BoolVar(&noSQLite, "no-sqlite", false, "skip the SQLite log")
	cmd.Flags().BoolVar(&noCSV, "no-csv", false, "skip the CSV run store")
}

// resolveConfig layers defaults, preset, config file and explicitly set flags.
func resolveConfig(cmd *cobra.Command, model string) (*config.Config, error) {
	cfg := config.DefaultConfig()
	cfg.Mechanism = model

	if preset != "" {
		p := config.GetPreset(model, preset)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(model))
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	cfg.Model = model

	flags := cmd.Flags()
	if flags.Changed("mechanism") || cfg.Mechanism == "" {
		cfg.Mechanism = mechanism
	}
	if flags.Changed("motor") || cfg.Motor == "" {
		cfg.Motor = motor
	}
	if flags.Changed("integrator") {
		cfg.Integrator = integrator
	}
	if flags.Changed("ramp") {
		cfg.Routine.RampRate = rampRate
	}
	if flags.Changed("step") {
		cfg.Routine.StepVoltage = stepVoltage
	}
	if flags.Changed("timeout") {
		cfg.Routine.Timeout = timeout
	}
	if flags.Changed("period") {
		cfg.Period = period
	}
	if flags.Changed("settle") {
		cfg.Settle = settle
	}
	if flags.Changed("tests") {
		cfg.Tests = tests
	}
	if flags.Changed("seed") {
		cfg.Seed = seed
	}
	if flags.Changed("noise") {
		cfg.Noise = noise
	}
	if flags.Changed("realtime") {
		cfg.Realtime = realtime
	}
	if noSQLite {
		cfg.Output.SQLite = false
	}
	if noCSV {
		cfg.Output.CSV = false
	}

	return cfg, cfg.Validate()
}

// session owns the outputs of one run.
type session struct {
	id     string
	dir    string
	store  *datalog.Store
	writer *datalog.SQLiteWriter
}

func openSession(cfg *config.Config) (*session, []experiment.Option, error) {
	id := fmt.Sprintf("%s_%s", cfg.Mechanism, xid.New().String())
	s := &session{
		id:    id,
		dir:   filepath.Join(dataDir, id),
		store: datalog.NewStore(dataDir),
	}
	if err := s.store.Init(); err != nil {
		return nil, nil, err
	}

	opts := []experiment.Option{experiment.WithLogger(slog.Default())}
	if cfg.Output.SQLite {
		if err := os.MkdirAll(s.dir, 0755); err != nil {
			return nil, nil, err
		}
		w, err := datalog.NewSQLiteWriter(filepath.Join(s.dir, "log"), slog.Default())
		if err != nil {
			s.abort()
			return nil, nil, err
		}
		s.writer = w
		opts = append(opts, experiment.WithLog(w))
	}
	return s, opts, nil
}

// newRun opens a session and builds its experiment. The session's outputs
// are removed when the experiment cannot be built.
func newRun(cfg *config.Config, extra ...experiment.Option) (*session, *experiment.Experiment, error) {
	sess, opts, err := openSession(cfg)
	if err != nil {
		return nil, nil, err
	}
	exp, err := experiment.New(cfg, experiment.NewRegistry(), append(opts, extra...)...)
	if err != nil {
		sess.abort()
		return nil, nil, err
	}
	return sess, exp, nil
}

// abort closes the writer and deletes the run directory of a run that never
// started.
func (s *session) abort() {
	if s.writer != nil {
		if err := s.writer.Close(); err != nil {
			slog.Warn("close run log", "run", s.id, "error", err)
		}
	}
	if err := os.RemoveAll(s.dir); err != nil {
		slog.Warn("remove run directory", "run", s.id, "error", err)
	}
}

// finish closes the run log and writes metadata.json, plus entries.csv when
// CSV output is enabled.
func (s *session) finish(exp *experiment.Experiment, cfg *config.Config, res *experiment.Result) error {
	meta := exp.Metadata()
	meta.ID = s.id
	meta.Entries = len(res.Entries)
	if s.writer != nil {
		if err := s.writer.Close(); err != nil {
			return err
		}
		meta.Database = s.writer.Path()
	}
	if cfg.Output.CSV {
		_, err := s.store.Save(meta, res.Entries)
		return err
	}
	_, err := s.store.SaveMetadata(meta)
	return err
}

func runTests(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args[0])
	if err != nil {
		return err
	}

	sess, exp, err := newRun(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("running %v on %s (%s)...\n", cfg.Tests, cfg.Mechanism, cfg.Model)
	res, runErr := exp.Run(ctx)
	if res != nil {
		if err := sess.finish(exp, cfg, res); err != nil {
			return err
		}
		printSummary(sess.id, cfg, res)
	}
	if errors.Is(runErr, context.Canceled) {
		return nil
	}
	return runErr
}

func runLive(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args[0])
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("realtime") {
		cfg.Realtime = true
	}

	var program *tea.Program
	sess, exp, err := newRun(cfg, experiment.WithProgress(func(p experiment.Progress) {
		program.Send(viz.ProgressMsg(p))
	}))
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	program = tea.NewProgram(viz.NewLiveModel(cfg.Mechanism, exp.Routine().Config().Timeout(), cancel))

	type outcome struct {
		res *experiment.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := exp.Run(ctx)
		done <- outcome{res, err}
		program.Send(viz.DoneMsg{Result: res, Err: err})
	}()

	if _, err := program.Run(); err != nil {
		cancel()
		<-done
		return err
	}
	cancel()
	out := <-done

	if out.res != nil {
		if err := sess.finish(exp, cfg, out.res); err != nil {
			return err
		}
		printSummary(sess.id, cfg, out.res)
	}
	if errors.Is(out.err, context.Canceled) {
		return nil
	}
	return out.err
}

func runBatch(cmd *cobra.Command, args []string) error {
	scenario, err := automation.LoadScenario(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var current *session
	runner := &automation.Runner{
		Registry: experiment.NewRegistry(),
		Logger:   slog.Default(),
		Options: func(cfg *config.Config) ([]experiment.Option, error) {
			sess, opts, err := openSession(cfg)
			current = sess
			return opts, err
		},
		Abort: func(cfg *config.Config, err error) {
			if current != nil {
				current.abort()
			}
		},
		Done: func(cfg *config.Config, exp *experiment.Experiment, res *experiment.Result) error {
			if err := current.finish(exp, cfg, res); err != nil {
				return err
			}
			printSummary(current.id, cfg, res)
			fmt.Println()
			return nil
		},
	}

	fmt.Printf("scenario %s: %s\n", scenario.Name, scenario.Description)
	results, err := runner.Run(ctx, scenario)
	fmt.Printf("%d runs completed\n", len(results))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printSummary(id string, cfg *config.Config, res *experiment.Result) {
	fmt.Println(viz.Metric("run id", id))
	fmt.Println(viz.Metric("sim time", fmt.Sprintf("%.2fs", res.Elapsed.Seconds())))
	fmt.Println(viz.Metric("ticks", fmt.Sprintf("%d", res.Ticks)))
	fmt.Println(viz.Metric("entries", fmt.Sprintf("%d", len(res.Entries))))
	if res.Interrupted {
		fmt.Println(viz.StatusError.Render("interrupted: mechanism stopped at 0 V"))
	}

	windows := viz.Windows(res.Entries, cfg.Mechanism)
	phases := make([]string, 0, len(windows))
	for p, n := range windows {
		phases = append(phases, fmt.Sprintf("%s x%d", p, n))
	}
	sort.Strings(phases)
	for _, p := range phases {
		fmt.Println(viz.Subtle.Render("  " + p))
	}
}

func listRuns(cmd *cobra.Command, args []string) error {
	st := datalog.NewStore(dataDir)
	runs, err := st.List()
	if err != nil {
		return err
	}

	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tMECHANISM\tPLANT\tTIME\tRAMP\tSTEP\tTIMEOUT\tENTRIES")

	for _, run := range runs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2fV/s\t%.2fV\t%.1fs\t%d\n",
			run.ID,
			run.Mechanism,
			run.Plant,
			run.Timestamp.Format("2006-01-02 15:04:05"),
			run.RampRate,
			run.StepVoltage,
			run.Timeout,
			run.Entries,
		)
	}

	return w.Flush()
}

func plotRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	st := datalog.NewStore(dataDir)
	meta, err := st.Load(runID)
	if err != nil {
		return err
	}
	entries, err := st.LoadEntries(runID)
	if err != nil {
		return err
	}

	fmt.Println(viz.Metric("run", meta.ID))
	fmt.Println(viz.Metric("mechanism", meta.Mechanism))
	fmt.Println(viz.Metric("entries", fmt.Sprintf("%d", len(entries))))
	fmt.Println()
	fmt.Print(viz.Plot(entries, plotMotor, meta.Mechanism, plotWidth, plotHeight))
	return nil
}

func exportRun(cmd *cobra.Command, args []string) error {
	st := datalog.NewStore(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func listKeys(cmd *cobra.Command, args []string) error {
	st := datalog.NewStore(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	if meta.Database == "" {
		return fmt.Errorf("run %s has no database", meta.ID)
	}

	r, err := datalog.OpenSQLite(meta.Database)
	if err != nil {
		return err
	}
	defer r.Close()

	keys, err := r.Keys()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tENTRIES")
	for _, k := range keys {
		entries, err := r.Entries(k)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%d\n", k, len(entries))
	}
	return w.Flush()
}
