package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"catbox/internal/config"
	"catbox/internal/logging"
	catboxapi "catbox/pkg/catbox"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "run":
		return runRun(ctx, args[1:])
	case "scenario":
		return runScenario(ctx, args[1:])
	case "sweep":
		return runSweep(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "sweeps":
		return runSweeps(ctx, args[1:])
	case "summary":
		return runSummary(ctx, args[1:])
	case "outcome":
		return runOutcome(ctx, args[1:])
	case "trajectory":
		return runTrajectory(ctx, args[1:])
	case "delete":
		return runDelete(ctx, args[1:])
	case "constants":
		return runConstants(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func runInit(ctx context.Context, args []string) error {
	defaults := config.Default()
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional config YAML path")
	storeKind := fs.String("store", defaults.Storage.Kind, "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "catbox.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "store":
			cfg.Storage.Kind = *storeKind
		case "db-path":
			cfg.Storage.SQLitePath = *dbPath
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Init(ctx); err != nil {
		return err
	}
	fmt.Printf("initialized store=%s\n", cfg.Storage.Kind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	defaults := config.Default()
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional config YAML path")
	storeKind := fs.String("store", defaults.Storage.Kind, "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "catbox.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "store":
			cfg.Storage.Kind = *storeKind
		case "db-path":
			cfg.Storage.SQLitePath = *dbPath
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.Reset(ctx); err != nil {
		return err
	}
	fmt.Printf("reset store=%s\n", cfg.Storage.Kind)
	return nil
}

func runRun(ctx context.Context, args []string) error {
	defaults := config.Default()
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional config YAML path")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	seed := fs.Int64("seed", defaults.Engine.Seed, "rng seed")
	precision := fs.Uint("precision", uint(defaults.Engine.Precision), "significant decimal digits")
	stubbornness := fs.Float64("stubbornness", defaults.Engine.Stubbornness, "cat stubbornness in [0, 1]")
	duration := fs.Int64("duration", defaults.Engine.DurationSeconds, "run duration in seconds")
	powerMode := fs.String("mode", "", "forced power mode: stasis|normal|strobe (unset leaves the controller in charge)")
	stopOnDeath := fs.Bool("stop-on-death", false, "stop stepping once a death condition triggers")
	report := fs.Bool("report", false, "print the full state report after the run")
	storeKind := fs.String("store", defaults.Storage.Kind, "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "catbox.db", "sqlite database path")
	artifactsDir := fs.String("artifacts-dir", defaults.Artifacts.Dir, "run artifacts directory")
	logLevel := fs.String("log-level", defaults.Logging.Level, "log level: trace|debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			cfg.Engine.Seed = *seed
		case "precision":
			cfg.Engine.Precision = uint32(*precision)
		case "stubbornness":
			cfg.Engine.Stubbornness = *stubbornness
		case "duration":
			cfg.Engine.DurationSeconds = *duration
		case "store":
			cfg.Storage.Kind = *storeKind
		case "db-path":
			cfg.Storage.SQLitePath = *dbPath
		case "artifacts-dir":
			cfg.Artifacts.Dir = *artifactsDir
		case "log-level":
			cfg.Logging.Level = *logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, catboxapi.RunRequest{
		RunID:           *runID,
		Seed:            cfg.Engine.Seed,
		Precision:       cfg.Engine.Precision,
		Stubbornness:    &cfg.Engine.Stubbornness,
		DurationSeconds: cfg.Engine.DurationSeconds,
		PowerMode:       *powerMode,
		StopOnDeath:     *stopOnDeath,
	})
	if err != nil {
		return err
	}

	fmt.Printf("run completed run_id=%s seed=%d steps=%d alive=%t cause=%s\n",
		summary.RunID, cfg.Engine.Seed, summary.StepsTaken, summary.IsAlive, causeDisplay(summary.CauseOfDeath))
	fmt.Printf("final_temp_k=%.4f final_entropy=%.4f final_corruption=%.4f wellbeing=%.4f\n",
		summary.FinalTemperatureK, summary.FinalEntropy, summary.FinalCorruption, summary.WellbeingScore)
	if *report {
		fmt.Print(summary.Report)
	}
	fmt.Printf("artifacts_dir=%s\n", summary.ArtifactsDir)
	return nil
}

func runScenario(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("scenario requires a name: heat-death|fractal-stasis|chaos")
	}
	name := args[0]

	defaults := config.Default()
	fs := flag.NewFlagSet("scenario", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional config YAML path")
	runID := fs.String("run-id", "", "explicit run id (optional)")
	seed := fs.Int64("seed", defaults.Engine.Seed, "rng seed")
	precision := fs.Uint("precision", uint(defaults.Engine.Precision), "significant decimal digits")
	stubbornness := fs.Float64("stubbornness", defaults.Engine.Stubbornness, "cat stubbornness in [0, 1]; unset keeps the scenario default")
	duration := fs.Int64("duration", 0, "run duration in seconds; unset keeps the scenario default")
	storeKind := fs.String("store", defaults.Storage.Kind, "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "catbox.db", "sqlite database path")
	artifactsDir := fs.String("artifacts-dir", defaults.Artifacts.Dir, "run artifacts directory")
	logLevel := fs.String("log-level", defaults.Logging.Level, "log level: trace|debug|info|warn|error")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	var stubbornnessOverride *float64
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "seed":
			cfg.Engine.Seed = *seed
		case "precision":
			cfg.Engine.Precision = uint32(*precision)
		case "stubbornness":
			stubbornnessOverride = stubbornness
		case "store":
			cfg.Storage.Kind = *storeKind
		case "db-path":
			cfg.Storage.SQLitePath = *dbPath
		case "artifacts-dir":
			cfg.Artifacts.Dir = *artifactsDir
		case "log-level":
			cfg.Logging.Level = *logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	summary, err := client.Run(ctx, catboxapi.RunRequest{
		RunID:           *runID,
		Seed:            cfg.Engine.Seed,
		Precision:       cfg.Engine.Precision,
		Stubbornness:    stubbornnessOverride,
		DurationSeconds: *duration,
		Scenario:        name,
	})
	if err != nil {
		return err
	}

	fmt.Print(summary.Report)
	fmt.Printf("\nscenario=%s run_id=%s steps=%d alive=%t cause=%s\n",
		name, summary.RunID, summary.StepsTaken, summary.IsAlive, causeDisplay(summary.CauseOfDeath))
	fmt.Printf("hypnosis_immobilization=%.4f immobility_death_risk=%.4f misalignment_risk=%.4f misaligned=%t\n",
		summary.Diagnostics.HypnosisImmobilization,
		summary.Diagnostics.ImmobilityDeathRisk,
		summary.Diagnostics.MisalignmentRisk,
		summary.Diagnostics.Misaligned,
	)
	fmt.Printf("artifacts_dir=%s\n", summary.ArtifactsDir)
	return nil
}

func runSweep(ctx context.Context, args []string) error {
	defaults := config.Default()
	fs := flag.NewFlagSet("sweep", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional config YAML path")
	sweepID := fs.String("sweep-id", "", "explicit sweep id (optional)")
	seedStart := fs.Int64("seed-start", 1, "first seed in the sweep")
	seedCount := fs.Int("seeds", 5, "number of consecutive seeds")
	stubbornness := fs.Float64("stubbornness", defaults.Engine.Stubbornness, "cat stubbornness in [0, 1]; unset keeps the scenario default")
	duration := fs.Int64("duration", 0, "per-run duration in seconds; unset keeps the scenario default")
	scenario := fs.String("scenario", "", "scenario: heat-death|fractal-stasis|chaos")
	powerMode := fs.String("mode", "", "forced power mode: stasis|normal|strobe")
	stopOnDeath := fs.Bool("stop-on-death", false, "stop each run once a death condition triggers")
	jsonOut := fs.Bool("json", false, "emit the sweep summary as JSON")
	storeKind := fs.String("store", defaults.Storage.Kind, "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "catbox.db", "sqlite database path")
	artifactsDir := fs.String("artifacts-dir", defaults.Artifacts.Dir, "run artifacts directory")
	logLevel := fs.String("log-level", defaults.Logging.Level, "log level: trace|debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	var stubbornnessOverride *float64
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "stubbornness":
			stubbornnessOverride = stubbornness
		case "store":
			cfg.Storage.Kind = *storeKind
		case "db-path":
			cfg.Storage.SQLitePath = *dbPath
		case "artifacts-dir":
			cfg.Artifacts.Dir = *artifactsDir
		case "log-level":
			cfg.Logging.Level = *logLevel
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	sweep, err := client.Sweep(ctx, catboxapi.SweepRequest{
		SweepID:         *sweepID,
		SeedStart:       *seedStart,
		SeedCount:       *seedCount,
		Stubbornness:    stubbornnessOverride,
		DurationSeconds: *duration,
		Scenario:        *scenario,
		PowerMode:       *powerMode,
		StopOnDeath:     *stopOnDeath,
	})
	if err != nil {
		return err
	}

	if *jsonOut {
		return encodeJSON(sweep)
	}

	fmt.Printf("sweep completed sweep_id=%s runs=%d survived=%d survival_rate=%.3f\n",
		sweep.ID, sweep.TotalRuns, sweep.Survived, sweep.SurvivalRate)
	fmt.Printf("mean_temp_k=%.4f std_temp_k=%.4f mean_entropy=%.4f mean_corruption=%.4f\n",
		sweep.MeanFinalTemperatureK, sweep.StdFinalTemperatureK, sweep.MeanFinalEntropy, sweep.MeanFinalCorruption)
	for _, result := range sweep.Results {
		fmt.Printf("seed=%d run_id=%s alive=%t cause=%s final_temp_k=%.4f\n",
			result.Seed, result.RunID, result.IsAlive, causeDisplay(result.CauseOfDeath), result.FinalTemperatureK)
	}
	return nil
}

func runDelete(ctx context.Context, args []string) error {
	defaults := config.Default()
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional config YAML path")
	runID := fs.String("run-id", "", "run id to delete from the store")
	storeKind := fs.String("store", defaults.Storage.Kind, "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "catbox.db", "sqlite database path")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" {
		return errors.New("delete requires --run-id")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "store":
			cfg.Storage.Kind = *storeKind
		case "db-path":
			cfg.Storage.SQLitePath = *dbPath
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	if err := client.DeleteRun(ctx, catboxapi.DeleteRunRequest{RunID: *runID}); err != nil {
		return err
	}
	fmt.Printf("run deleted run_id=%s\n", *runID)
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFromFile(path)
}

func newClient(cfg *config.Config) (*catboxapi.Client, error) {
	return catboxapi.New(catboxapi.Options{
		StoreKind:    cfg.Storage.Kind,
		DBPath:       cfg.Storage.SQLitePath,
		ArtifactsDir: cfg.Artifacts.Dir,
		Logger:       logging.New(cfg.Logging.Level, os.Stderr),
	})
}

func causeDisplay(cause string) string {
	if cause == "" {
		return "none"
	}
	return cause
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: catboxctl <init|reset|run|scenario|sweep|runs|sweeps|summary|outcome|trajectory|delete|constants> [flags]", msg)
}
