package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"

	"catbox/internal/config"
	"catbox/internal/thermo"
	catboxapi "catbox/pkg/catbox"
)

func runRuns(ctx context.Context, args []string) error {
	defaults := config.Default()
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional config YAML path")
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	artifactsDir := fs.String("artifacts-dir", defaults.Artifacts.Dir, "run artifacts directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "artifacts-dir" {
			cfg.Artifacts.Dir = *artifactsDir
		}
	})

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	runs, err := client.Runs(ctx, catboxapi.RunsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("no runs found")
		return nil
	}
	if *jsonOut {
		return encodeJSON(runs)
	}

	for _, r := range runs {
		fmt.Printf("run_id=%s created_at=%s scenario=%s seed=%d stubbornness=%.2f duration_s=%d alive=%t cause=%s final_temp_k=%.4f\n",
			r.RunID,
			r.CreatedAtUTC,
			scenarioDisplay(r.Scenario),
			r.Seed,
			r.Stubbornness,
			r.DurationSeconds,
			r.IsAlive,
			causeDisplay(r.CauseOfDeath),
			r.FinalTemperatureK,
		)
	}
	return nil
}

func runSweeps(ctx context.Context, args []string) error {
	defaults := config.Default()
	fs := flag.NewFlagSet("sweeps", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional config YAML path")
	limit := fs.Int("limit", 20, "max sweeps to list")
	jsonOut := fs.Bool("json", false, "emit sweeps list as JSON")
	artifactsDir := fs.String("artifacts-dir", defaults.Artifacts.Dir, "run artifacts directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "artifacts-dir" {
			cfg.Artifacts.Dir = *artifactsDir
		}
	})

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	sweeps, err := client.Sweeps(ctx, catboxapi.SweepsRequest{Limit: *limit})
	if err != nil {
		return err
	}
	if len(sweeps) == 0 {
		fmt.Println("no sweeps found")
		return nil
	}
	if *jsonOut {
		return encodeJSON(sweeps)
	}

	for _, s := range sweeps {
		fmt.Printf("sweep_id=%s started_at=%s scenario=%s runs=%d survived=%d survival_rate=%.3f mean_temp_k=%.4f\n",
			s.ID,
			s.StartedAtUTC,
			scenarioDisplay(s.Scenario),
			s.TotalRuns,
			s.Survived,
			s.SurvivalRate,
			s.MeanFinalTemperatureK,
		)
	}
	return nil
}

func runSummary(ctx context.Context, args []string) error {
	defaults := config.Default()
	fs := flag.NewFlagSet("summary", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional config YAML path")
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the most recent run from the run index")
	limit := fs.Int("limit", 10, "max trajectory rows to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit the run summary as JSON")
	artifactsDir := fs.String("artifacts-dir", defaults.Artifacts.Dir, "run artifacts directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("summary requires --run-id or --latest")
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "artifacts-dir" {
			cfg.Artifacts.Dir = *artifactsDir
		}
	})

	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	detail, err := client.RunDetail(ctx, catboxapi.RunDetailRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return encodeJSON(detail)
	}

	cfgRec := detail.Summary.Config
	outcome := detail.Summary.Outcome
	fmt.Printf("run_id=%s scenario=%s seed=%d stubbornness=%.2f precision=%d duration_s=%d\n",
		cfgRec.RunID,
		scenarioDisplay(cfgRec.Scenario),
		cfgRec.Seed,
		cfgRec.Stubbornness,
		cfgRec.Precision,
		cfgRec.DurationSeconds,
	)
	fmt.Printf("alive=%t cause=%s elapsed_s=%.0f final_temp_k=%.4f final_entropy=%.4f final_corruption=%.4f instinct_overrides=%d lcd_attacks=%d\n",
		outcome.IsAlive,
		causeDisplay(outcome.CauseOfDeath),
		outcome.ElapsedSeconds,
		outcome.FinalTemperatureK,
		outcome.FinalEntropy,
		outcome.FinalCorruption,
		outcome.InstinctOverrides,
		outcome.LCDAttacks,
	)
	for _, p := range detail.Trajectory {
		fmt.Printf("step=%d photons=%d entropy=%.4f temp_k=%.4f corruption=%.4f activity=%.3f stress=%.3f\n",
			p.Step, p.PhotonCount, p.Entropy, p.TemperatureK, p.Corruption, p.Activity, p.Stress)
	}
	return nil
}

func runOutcome(ctx context.Context, args []string) error {
	defaults := config.Default()
	fs := flag.NewFlagSet("outcome", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional config YAML path")
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the most recent run from the run index")
	jsonOut := fs.Bool("json", false, "emit the outcome as JSON")
	storeKind := fs.String("store", defaults.Storage.Kind, "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "catbox.db", "sqlite database path")
	artifactsDir := fs.String("artifacts-dir", defaults.Artifacts.Dir, "run artifacts directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("outcome requires --run-id or --latest")
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
		case "artifacts-dir":
			cfg.Artifacts.Dir = *artifactsDir
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

	outcome, err := client.Outcome(ctx, catboxapi.OutcomeRequest{RunID: *runID, Latest: *latest})
	if err != nil {
		return err
	}
	if *jsonOut {
		return encodeJSON(outcome)
	}

	fmt.Printf("run_id=%s alive=%t cause=%s elapsed_s=%.0f final_temp_k=%.4f final_entropy=%.4f final_corruption=%.4f instinct_overrides=%d lcd_attacks=%d\n",
		outcome.RunID,
		outcome.IsAlive,
		causeDisplay(outcome.CauseOfDeath),
		outcome.ElapsedSeconds,
		outcome.FinalTemperatureK,
		outcome.FinalEntropy,
		outcome.FinalCorruption,
		outcome.InstinctOverrides,
		outcome.LCDAttacks,
	)
	return nil
}

func runTrajectory(ctx context.Context, args []string) error {
	defaults := config.Default()
	fs := flag.NewFlagSet("trajectory", flag.ContinueOnError)
	configPath := fs.String("config", "", "optional config YAML path")
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the most recent run from the run index")
	limit := fs.Int("limit", 50, "max trajectory rows to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit trajectory rows as JSON")
	storeKind := fs.String("store", defaults.Storage.Kind, "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "catbox.db", "sqlite database path")
	artifactsDir := fs.String("artifacts-dir", defaults.Artifacts.Dir, "run artifacts directory")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("trajectory requires --run-id or --latest")
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
		case "artifacts-dir":
			cfg.Artifacts.Dir = *artifactsDir
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

	trajectory, err := client.Trajectory(ctx, catboxapi.TrajectoryRequest{
		RunID:  *runID,
		Latest: *latest,
		Limit:  *limit,
	})
	if err != nil {
		return err
	}
	if len(trajectory) == 0 {
		fmt.Println("no trajectory points")
		return nil
	}
	if *jsonOut {
		return encodeJSON(trajectory)
	}

	for _, p := range trajectory {
		fmt.Printf("step=%d photons=%d entropy=%.4f temp_k=%.4f corruption=%.4f activity=%.3f stress=%.3f\n",
			p.Step, p.PhotonCount, p.Entropy, p.TemperatureK, p.Corruption, p.Activity, p.Stress)
	}
	return nil
}

func runConstants(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("constants", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "emit constants as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	constants := thermo.SystemConstants()
	if *jsonOut {
		return encodeJSON(constants)
	}

	fmt.Printf("box_volume_m3=%.1f lcd_area_m2=%.1f subject_mass_kg=%.1f heat_capacity_j_per_k=%.0f\n",
		constants.BoxVolumeM3, constants.LCDAreaM2, constants.SubjectMassKg, constants.HeatCapacityJPerK)
	fmt.Printf("initial_temp_k=%.2f critical_temp_k=%.2f thirst_limit_s=%.0f hunger_limit_s=%.0f\n",
		constants.InitialTempK, constants.CriticalTempK, constants.ThirstLimitSec, constants.HungerLimitSec)
	return nil
}

func scenarioDisplay(scenario string) string {
	if scenario == "" {
		return "none"
	}
	return scenario
}

func encodeJSON(value any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
