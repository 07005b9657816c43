package catbox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"catbox/internal/model"
	"catbox/internal/num"
	"catbox/internal/sim"
	"catbox/internal/stats"
	"catbox/internal/storage"
	"catbox/internal/thermo"
)

const (
	defaultArtifactsDir    = "runs"
	defaultDBPath          = "catbox.db"
	defaultDurationSeconds = 600
	defaultSweepSeeds      = 5

	// heatDeathDurationSeconds runs long enough that the forced-strobe
	// scenario ends by death, not by the clock.
	heatDeathDurationSeconds = 3600

	defaultStubbornness = 0.7
)

// Scenarios bundle a forced power mode with run defaults: heat-death forces
// strobe and stops at death, fractal-stasis forces stasis, chaos leaves the
// controller free with a fully stubborn cat.
const (
	ScenarioHeatDeath     = "heat-death"
	ScenarioFractalStasis = "fractal-stasis"
	ScenarioChaos         = "chaos"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	Logger       *slog.Logger
}

type Client struct {
	store  storage.Store
	logger *slog.Logger

	artifactsDir string
	initialized  bool
}

type RunRequest struct {
	RunID string
	Seed  int64

	Precision uint32

	// Stubbornness is the cat's resistance in [0, 1]. Nil selects the
	// default; zero is a meaningful value, not an absent one.
	Stubbornness *float64

	DurationSeconds int64
	Scenario        string
	PowerMode       string
	StopOnDeath     bool
}

type RunSummary struct {
	RunID             string
	ArtifactsDir      string
	StepsTaken        int
	IsAlive           bool
	CauseOfDeath      string
	ElapsedSeconds    float64
	FinalTemperatureK float64
	FinalTemperatureC float64
	FinalEntropy      float64
	FinalCorruption   float64
	Determinism       float64
	WellbeingScore    float64
	InstinctOverrides int
	LCDAttacks        int
	Diagnostics       sim.Diagnostics
	Report            string
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID             string
	CreatedAtUTC      string
	Scenario          string
	Seed              int64
	Stubbornness      float64
	DurationSeconds   int64
	IsAlive           bool
	CauseOfDeath      string
	FinalTemperatureK float64
}

type RunDetailRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type RunDetail struct {
	Summary    stats.RunSummary
	Trajectory []model.TrajectoryPoint
}

type OutcomeRequest struct {
	RunID  string
	Latest bool
}

type TrajectoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type DeleteRunRequest struct {
	RunID string
}

type SweepRequest struct {
	SweepID         string
	SeedStart       int64
	SeedCount       int
	Stubbornness    *float64
	DurationSeconds int64
	Scenario        string
	PowerMode       string
	StopOnDeath     bool
}

type SweepsRequest struct {
	Limit int
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		logger:       logger,
		artifactsDir: artifactsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	return c.ensureStore(ctx)
}

func (c *Client) Reset(ctx context.Context) error {
	if err := c.ensureStore(ctx); err != nil {
		return err
	}
	resetter, ok := c.store.(storage.Resetter)
	if !ok {
		return errors.New("store does not support reset")
	}
	return resetter.Reset(ctx)
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if req.Scenario != "" && req.PowerMode != "" {
		return RunSummary{}, errors.New("use either scenario or power mode")
	}
	switch req.Scenario {
	case "", ScenarioHeatDeath, ScenarioFractalStasis, ScenarioChaos:
	default:
		return RunSummary{}, fmt.Errorf("unsupported scenario: %s", req.Scenario)
	}
	forcedMode, forced, err := forcedModeFor(req.Scenario, req.PowerMode)
	if err != nil {
		return RunSummary{}, err
	}
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	if req.Precision == 0 {
		req.Precision = num.DefaultPrecision
	}
	req.DurationSeconds = effectiveDuration(req.Scenario, req.DurationSeconds)
	if req.Scenario == ScenarioHeatDeath {
		req.StopOnDeath = true
	}
	stubbornness := effectiveStubbornness(req.Scenario, req.Stubbornness)
	if math.IsNaN(stubbornness) || stubbornness < 0 || stubbornness > 1 {
		return RunSummary{}, fmt.Errorf("stubbornness %v outside [0, 1]", stubbornness)
	}

	s, err := sim.New(req.Seed, req.Precision, num.MustNew(req.Precision).Float(stubbornness))
	if err != nil {
		return RunSummary{}, err
	}

	now := time.Now().UTC()
	c.logger.Debug("run starting",
		"run_id", req.RunID,
		"seed", req.Seed,
		"scenario", req.Scenario,
		"power_mode", req.PowerMode,
		"duration_seconds", req.DurationSeconds,
	)

	steps := 0
	for i := int64(0); i < req.DurationSeconds; i++ {
		if err := ctx.Err(); err != nil {
			return RunSummary{}, err
		}
		if forced {
			if err := s.Thermo().SetPowerMode(forcedMode); err != nil {
				return RunSummary{}, err
			}
		}
		if err := s.Step(); err != nil {
			return RunSummary{}, fmt.Errorf("step %d: %w", steps+1, err)
		}
		steps++
		if req.StopOnDeath && !s.IsAlive() {
			break
		}
	}

	final := s.CompleteState()
	diagnostics, err := s.Diagnostics()
	if err != nil {
		return RunSummary{}, err
	}
	causeOfDeath := ""
	if cause, dead := s.Thermo().DeathCause(); dead {
		causeOfDeath = string(cause)
	}

	history := s.History()
	trajectory := make([]model.TrajectoryPoint, 0, len(history))
	for i, state := range history {
		trajectory = append(trajectory, model.TrajectoryPoint{
			Step:         i + 1,
			PhotonCount:  state.PhotonCount,
			Entropy:      state.Quantum.Entropy,
			TemperatureK: state.Thermo.TemperatureKelvin,
			Corruption:   state.AI.Corruption,
			Activity:     state.Cat.Activity,
			Stress:       state.Cat.Stress,
		})
	}

	if err := c.ensureStore(ctx); err != nil {
		return RunSummary{}, err
	}
	versioned := model.VersionedRecord{
		SchemaVersion: storage.CurrentSchemaVersion,
		CodecVersion:  storage.CurrentCodecVersion,
	}
	createdAt := now.Format(time.RFC3339Nano)
	if err := c.store.SaveRun(ctx, model.RunRecord{
		VersionedRecord: versioned,
		ID:              req.RunID,
		Seed:            req.Seed,
		Precision:       req.Precision,
		Stubbornness:    stubbornness,
		Scenario:        req.Scenario,
		DurationSeconds: req.DurationSeconds,
		CreatedAtUTC:    createdAt,
	}); err != nil {
		return RunSummary{}, err
	}
	outcome := model.OutcomeRecord{
		VersionedRecord:   versioned,
		RunID:             req.RunID,
		IsAlive:           s.IsAlive(),
		CauseOfDeath:      causeOfDeath,
		ElapsedSeconds:    final.TimeSeconds,
		FinalTemperatureK: final.Thermo.TemperatureKelvin,
		FinalEntropy:      final.Quantum.Entropy,
		FinalCorruption:   final.AI.Corruption,
		InstinctOverrides: final.Cat.InstinctOverrides,
		LCDAttacks:        final.Cat.LCDAttacks,
	}
	if err := c.store.SaveOutcome(ctx, outcome); err != nil {
		return RunSummary{}, err
	}
	if err := c.store.SaveTrajectory(ctx, req.RunID, trajectory); err != nil {
		return RunSummary{}, err
	}

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:           req.RunID,
			Seed:            req.Seed,
			Precision:       req.Precision,
			Stubbornness:    stubbornness,
			Scenario:        req.Scenario,
			PowerMode:       req.PowerMode,
			DurationSeconds: req.DurationSeconds,
		},
		Outcome:    outcome,
		Trajectory: trajectory,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:             req.RunID,
		Scenario:          req.Scenario,
		Seed:              req.Seed,
		Stubbornness:      stubbornness,
		DurationSeconds:   req.DurationSeconds,
		IsAlive:           outcome.IsAlive,
		CauseOfDeath:      causeOfDeath,
		FinalTemperatureK: outcome.FinalTemperatureK,
		CreatedAtUTC:      createdAt,
	}); err != nil {
		return RunSummary{}, err
	}

	c.logger.Info("run complete",
		"run_id", req.RunID,
		"steps", steps,
		"alive", outcome.IsAlive,
		"cause_of_death", causeOfDeath,
		"final_temperature_k", outcome.FinalTemperatureK,
	)

	return RunSummary{
		RunID:             req.RunID,
		ArtifactsDir:      filepath.Clean(runDir),
		StepsTaken:        steps,
		IsAlive:           outcome.IsAlive,
		CauseOfDeath:      causeOfDeath,
		ElapsedSeconds:    final.TimeSeconds,
		FinalTemperatureK: final.Thermo.TemperatureKelvin,
		FinalTemperatureC: final.Thermo.TemperatureCelsius,
		FinalEntropy:      final.Quantum.Entropy,
		FinalCorruption:   final.AI.Corruption,
		Determinism:       final.AI.Determinism,
		WellbeingScore:    final.Optimization.WellbeingScore,
		InstinctOverrides: final.Cat.InstinctOverrides,
		LCDAttacks:        final.Cat.LCDAttacks,
		Diagnostics:       diagnostics,
		Report:            s.Summary(),
	}, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:             e.RunID,
			CreatedAtUTC:      e.CreatedAtUTC,
			Scenario:          e.Scenario,
			Seed:              e.Seed,
			Stubbornness:      e.Stubbornness,
			DurationSeconds:   e.DurationSeconds,
			IsAlive:           e.IsAlive,
			CauseOfDeath:      e.CauseOfDeath,
			FinalTemperatureK: e.FinalTemperatureK,
		})
	}
	return out, nil
}

func (c *Client) RunDetail(_ context.Context, req RunDetailRequest) (RunDetail, error) {
	if req.RunID != "" && req.Latest {
		return RunDetail{}, errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return RunDetail{}, errors.New("limit must be >= 0")
	}

	runID := req.RunID
	if req.Latest {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return RunDetail{}, err
		}
		if len(entries) == 0 {
			return RunDetail{}, errors.New("no runs available")
		}
		runID = entries[0].RunID
	}
	if runID == "" {
		return RunDetail{}, errors.New("run detail requires run id or latest")
	}

	summary, ok, err := stats.ReadRunSummary(c.artifactsDir, runID)
	if err != nil {
		return RunDetail{}, err
	}
	if !ok {
		return RunDetail{}, fmt.Errorf("run artifacts not found for run id: %s", runID)
	}
	trajectory, ok, err := stats.ReadTrajectory(c.artifactsDir, runID)
	if err != nil {
		return RunDetail{}, err
	}
	if !ok {
		return RunDetail{}, fmt.Errorf("trajectory artifacts not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(trajectory) > req.Limit {
		trajectory = trajectory[:req.Limit]
	}
	return RunDetail{Summary: summary, Trajectory: trajectory}, nil
}

func (c *Client) Outcome(ctx context.Context, req OutcomeRequest) (model.OutcomeRecord, error) {
	if req.RunID != "" && req.Latest {
		return model.OutcomeRecord{}, errors.New("use either run id or latest")
	}

	runID := req.RunID
	if req.Latest {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return model.OutcomeRecord{}, err
		}
		if len(entries) == 0 {
			return model.OutcomeRecord{}, errors.New("no runs available")
		}
		runID = entries[0].RunID
	}
	if runID == "" {
		return model.OutcomeRecord{}, errors.New("outcome requires run id or latest")
	}

	if err := c.ensureStore(ctx); err != nil {
		return model.OutcomeRecord{}, err
	}
	outcome, ok, err := c.store.GetOutcome(ctx, runID)
	if err != nil {
		return model.OutcomeRecord{}, err
	}
	if !ok {
		return model.OutcomeRecord{}, fmt.Errorf("outcome not found for run id: %s", runID)
	}
	return outcome, nil
}

func (c *Client) Trajectory(ctx context.Context, req TrajectoryRequest) ([]model.TrajectoryPoint, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}

	runID := req.RunID
	if req.Latest {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return nil, err
		}
		if len(entries) == 0 {
			return nil, errors.New("no runs available")
		}
		runID = entries[0].RunID
	}
	if runID == "" {
		return nil, errors.New("trajectory requires run id or latest")
	}

	if err := c.ensureStore(ctx); err != nil {
		return nil, err
	}
	trajectory, ok, err := c.store.GetTrajectory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("trajectory not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(trajectory) > req.Limit {
		trajectory = trajectory[:req.Limit]
	}
	return trajectory, nil
}

// DeleteRun removes a run record and its outcome and trajectory from the
// store. Artifacts on disk are left in place.
func (c *Client) DeleteRun(ctx context.Context, req DeleteRunRequest) error {
	if req.RunID == "" {
		return errors.New("delete requires run id")
	}

	if err := c.ensureStore(ctx); err != nil {
		return err
	}
	_, ok, err := c.store.GetRun(ctx, req.RunID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("run not found: %s", req.RunID)
	}
	return c.store.DeleteRun(ctx, req.RunID)
}

func (c *Client) Sweep(ctx context.Context, req SweepRequest) (stats.SweepSummary, error) {
	if req.Scenario != "" && req.PowerMode != "" {
		return stats.SweepSummary{}, errors.New("use either scenario or power mode")
	}
	if req.SweepID == "" {
		req.SweepID = uuid.NewString()
	}
	if req.SeedCount <= 0 {
		req.SeedCount = defaultSweepSeeds
	}

	started := time.Now().UTC()
	results := make([]stats.SweepResult, 0, req.SeedCount)
	for i := 0; i < req.SeedCount; i++ {
		seed := req.SeedStart + int64(i)
		summary, err := c.Run(ctx, RunRequest{
			Seed:            seed,
			Stubbornness:    req.Stubbornness,
			DurationSeconds: req.DurationSeconds,
			Scenario:        req.Scenario,
			PowerMode:       req.PowerMode,
			StopOnDeath:     req.StopOnDeath,
		})
		if err != nil {
			return stats.SweepSummary{}, fmt.Errorf("seed %d: %w", seed, err)
		}
		results = append(results, stats.SweepResult{
			RunID:             summary.RunID,
			Seed:              seed,
			IsAlive:           summary.IsAlive,
			CauseOfDeath:      summary.CauseOfDeath,
			ElapsedSeconds:    summary.ElapsedSeconds,
			FinalTemperatureK: summary.FinalTemperatureK,
			FinalEntropy:      summary.FinalEntropy,
			FinalCorruption:   summary.FinalCorruption,
			InstinctOverrides: summary.InstinctOverrides,
			LCDAttacks:        summary.LCDAttacks,
		})
	}

	sweep, err := stats.BuildSweepSummary(req.SweepID, results)
	if err != nil {
		return stats.SweepSummary{}, err
	}
	sweep.Scenario = req.Scenario
	sweep.PowerMode = req.PowerMode
	sweep.Stubbornness = effectiveStubbornness(req.Scenario, req.Stubbornness)
	sweep.DurationSeconds = effectiveDuration(req.Scenario, req.DurationSeconds)
	sweep.StartedAtUTC = started.Format(time.RFC3339Nano)
	sweep.CompletedAtUTC = time.Now().UTC().Format(time.RFC3339Nano)

	if _, err := stats.WriteSweepSummary(c.artifactsDir, sweep); err != nil {
		return stats.SweepSummary{}, err
	}
	c.logger.Info("sweep complete",
		"sweep_id", sweep.ID,
		"runs", sweep.TotalRuns,
		"survival_rate", sweep.SurvivalRate,
	)
	return sweep, nil
}

func (c *Client) Sweeps(_ context.Context, req SweepsRequest) ([]stats.SweepSummary, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	summaries, err := stats.ListSweepSummaries(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(summaries) > req.Limit {
		summaries = summaries[:req.Limit]
	}
	return summaries, nil
}

func (c *Client) ensureStore(ctx context.Context) error {
	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return err
	}
	c.initialized = true
	return nil
}

func effectiveStubbornness(scenario string, stubbornness *float64) float64 {
	if stubbornness != nil {
		return *stubbornness
	}
	if scenario == ScenarioChaos {
		return 1
	}
	return defaultStubbornness
}

func effectiveDuration(scenario string, durationSeconds int64) int64 {
	if durationSeconds > 0 {
		return durationSeconds
	}
	if scenario == ScenarioHeatDeath {
		return heatDeathDurationSeconds
	}
	return defaultDurationSeconds
}

func forcedModeFor(scenario, powerMode string) (thermo.Mode, bool, error) {
	switch scenario {
	case ScenarioHeatDeath:
		return thermo.ModeStrobe, true, nil
	case ScenarioFractalStasis:
		return thermo.ModeStasis, true, nil
	}
	switch powerMode {
	case "":
		return "", false, nil
	case string(thermo.ModeStasis), string(thermo.ModeNormal), string(thermo.ModeStrobe):
		return thermo.Mode(powerMode), true, nil
	default:
		return "", false, fmt.Errorf("unsupported power mode: %s", powerMode)
	}
}
