// Package sim couples the quantum state, the thermodynamic box, the display
// controller and the subject's behavioral model into one discrete-time
// engine. Step advances everything by one second in a fixed order; Run is a
// bounded loop of Steps. Death is advisory: the engine keeps stepping a dead
// system and only reports it.
package sim

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/cockroachdb/apd/v3"

	"catbox/internal/controller"
	"catbox/internal/num"
	"catbox/internal/quantum"
	"catbox/internal/reward"
	"catbox/internal/thermo"
)

const (
	// measureCap bounds the per-step measurement loop; strength still
	// scales with the full photon count up to strengthCap.
	measureCap  = 100
	strengthCap = 1000

	behaviorSeedOffset = 2000
)

var (
	dt = num.MustParse("1")

	strengthScale = num.MustParse("0.01")
	zenoIntensity = num.MustParse("0.5")

	baselineActivity = num.MustParse("0.5")
	baselineStress   = num.MustParse("0.3")
	relaxRate        = num.MustParse("0.1")

	fascinationStep = num.MustParse("0.1")
	fascinationGrip = num.MustParse("0.5")
	fractalCalm     = num.MustParse("0.9")

	stressInBand  = num.MustParse("0.5")
	stressOffBand = num.MustParse("0.2")
	escapeBoost   = num.MustParse("0.3")

	panicThreshold  = num.MustParse("0.8")
	instinctScale   = num.MustParse("0.1")
	overrideCorrupt = num.MustParse("0.1")
	spikeScale      = num.MustParse("0.5")
	attackCorrupt   = num.MustParse("0.3")
	attackRelief    = num.MustParse("0.7")

	immobileCutoff = num.MustParse("0.1")

	defaultStubbornness = num.MustParse("0.7")

	one = num.MustParse("1")
)

// attackChance is the per-step probability of an LCD attack while the
// subject is panicked.
const attackChance = 0.05

// Simulation owns one instance of every model plus the subject's behavioral
// state. All mutation happens inside Step; nothing here is safe for
// concurrent use.
type Simulation struct {
	ctx *num.Context

	state *quantum.State
	zeno  *quantum.ZenoEffect
	box   *thermo.System
	ai    *controller.Controller

	stubbornness *apd.Decimal
	activity     *apd.Decimal
	stress       *apd.Decimal
	fascination  *apd.Decimal

	behavior *rand.Rand

	clock       *apd.Decimal
	lastPhotons int

	instinctOverrides int
	lcdAttacks        int

	immobileSeconds *apd.Decimal
	fractalSeconds  *apd.Decimal

	history []CompleteState
}

// New builds a simulation from the generator seed, the decimal precision and
// the subject's stubbornness in [0, 1]. A nil stubbornness means the default
// 0.7. The behavioral generator runs on its own offset stream so subject
// draws never perturb the controller's rendering streams.
func New(seed int64, precision uint32, stubbornness *apd.Decimal) (*Simulation, error) {
	ctx, err := num.New(precision)
	if err != nil {
		return nil, err
	}
	if stubbornness == nil {
		stubbornness = defaultStubbornness
	}
	if stubbornness.Sign() < 0 || stubbornness.Cmp(one) > 0 {
		return nil, fmt.Errorf("stubbornness %s outside [0, 1]", stubbornness)
	}

	return &Simulation{
		ctx:             ctx,
		state:           quantum.NewState(ctx),
		zeno:            quantum.NewZenoEffect(ctx),
		box:             thermo.NewSystem(ctx),
		ai:              controller.NewController(ctx, seed),
		stubbornness:    new(apd.Decimal).Set(stubbornness),
		activity:        new(apd.Decimal).Set(baselineActivity),
		stress:          new(apd.Decimal).Set(baselineStress),
		fascination:     ctx.Int64(0),
		behavior:        rand.New(rand.NewSource(seed + behaviorSeedOffset)),
		clock:           ctx.Int64(0),
		immobileSeconds: ctx.Int64(0),
		fractalSeconds:  ctx.Int64(0),
	}, nil
}

// Step advances the whole system by one second. The order is a contract:
// the controller acts on the previous step's observation, the quantum state
// absorbs this step's photons before the behavior update reads its entropy,
// and heat accumulates at the power mode that was in effect when the step
// began. The pattern chosen now only changes the power draw of the next
// step.
func (s *Simulation) Step() error {
	c := s.ctx

	// Controller turn: observe, pick a pattern, render, score.
	obs := s.observe()
	pattern := s.ai.OptimizeDisplay(obs)
	photons, err := s.ai.UpdateLCD(pattern)
	if err != nil {
		return fmt.Errorf("render %s: %w", pattern, err)
	}
	s.lastPhotons = photons
	s.ai.EvaluateReward(obs)

	// Quantum turn: measurement collapse, thermal channel, then base
	// decay slowed by the Zeno freeze of the current flash rate.
	if photons > 0 {
		if err := s.state.ApplyMeasurement(min(photons, measureCap), s.measurementStrength(photons)); err != nil {
			return err
		}
	}
	if err := s.state.EvolveThermal(s.box.Temperature(), dt); err != nil {
		return err
	}
	flash := s.ai.FlashRate(pattern)
	gamma := c.Mul(quantum.DefaultGamma(), c.Sub(one, s.zeno.FreezeFactor(flash)))
	if err := s.state.ApplyDecoherence(dt, gamma); err != nil {
		return err
	}
	if pattern == controller.PatternStrobe {
		if err := s.zeno.ApplyMeasurementFreeze(s.state, zenoIntensity); err != nil {
			return err
		}
	}

	// Heat accumulates first; the new pattern's power applies next step.
	if err := s.box.Evolve(dt); err != nil {
		return err
	}
	if err := s.box.SetPowerMode(powerFor(pattern)); err != nil {
		return err
	}

	// Subject turn: pattern response, then instinct and outbursts.
	prevStress := s.stress
	s.evolveBehavior(pattern, flash)
	if err := s.applyInstinct(prevStress); err != nil {
		return err
	}
	if err := s.applyAttack(); err != nil {
		return err
	}

	// Bookkeeping.
	s.clock = c.Add(s.clock, dt)
	s.trackExposure(pattern)
	s.ai.Optimizer().UpdateWellbeing(s.activity, s.stress)
	s.history = append(s.history, s.CompleteState())
	return nil
}

// Run executes durationSeconds steps at the fixed 1 s step. It never stops
// on death; callers wanting that poll IsAlive between steps.
func (s *Simulation) Run(durationSeconds int64) error {
	if durationSeconds < 0 {
		return fmt.Errorf("negative duration %d", durationSeconds)
	}
	for i := int64(0); i < durationSeconds; i++ {
		if err := s.Step(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

// observe captures the subject as the controller sees it at the top of the
// step, before any of this step's mutations.
func (s *Simulation) observe() controller.Observation {
	return controller.Observation{
		Activity:    new(apd.Decimal).Set(s.activity),
		Stress:      new(apd.Decimal).Set(s.stress),
		Temperature: s.box.Temperature(),
		Entropy:     s.state.Entropy(),
	}
}

// measurementStrength maps the photon count onto a per-photon collapse
// strength: min(photons, 1000)/1000 * 0.01.
func (s *Simulation) measurementStrength(photons int) *apd.Decimal {
	c := s.ctx
	flux := c.Int64(int64(min(photons, strengthCap)))
	return c.Mul(c.Quo(flux, c.Int64(strengthCap)), strengthScale)
}

// powerFor maps a display pattern to the power mode it draws: the fractal
// idles in stasis, strobe runs hot, everything else is normal duty.
func powerFor(p controller.Pattern) thermo.Mode {
	switch p {
	case controller.PatternFractal:
		return thermo.ModeStasis
	case controller.PatternStrobe:
		return thermo.ModeStrobe
	default:
		return thermo.ModeNormal
	}
}

// evolveBehavior applies the pattern's behavioral effect. Fractals
// fascinate and sedate, strobe panics (hard inside the critical flash
// band), and anything else relaxes the subject 10% toward baseline.
func (s *Simulation) evolveBehavior(pattern controller.Pattern, flash *apd.Decimal) {
	c := s.ctx
	switch pattern {
	case controller.PatternFractal:
		s.fascination = c.Min(c.Add(s.fascination, fascinationStep), one)
		s.activity = c.Mul(s.activity, c.Sub(one, c.Mul(s.fascination, fascinationGrip)))
		s.stress = c.Mul(s.stress, fractalCalm)
	case controller.PatternStrobe:
		bump := stressOffBand
		if s.zeno.InCriticalBand(flash) {
			bump = stressInBand
		}
		s.stress = c.Min(c.Add(s.stress, bump), one)
		s.activity = c.Min(c.Add(s.activity, escapeBoost), one)
	default:
		s.activity = c.Add(s.activity, c.Mul(c.Sub(baselineActivity, s.activity), relaxRate))
		s.stress = c.Add(s.stress, c.Mul(c.Sub(baselineStress, s.stress), relaxRate))
	}
}

// applyInstinct fires the unpredictability the controller cannot model: a
// stubbornness-weighted random override, or the stress crossing into panic
// this step. Either corrupts the controller's seed and spikes activity.
func (s *Simulation) applyInstinct(prevStress *apd.Decimal) error {
	c := s.ctx

	draw := s.behavior.Float64()
	threshold := num.Float64(c.Mul(s.stubbornness, instinctScale))
	crossed := prevStress.Cmp(panicThreshold) <= 0 && s.stress.Cmp(panicThreshold) > 0

	if draw >= threshold && !crossed {
		return nil
	}
	s.instinctOverrides++
	if err := s.ai.CorruptSeed(overrideCorrupt); err != nil {
		return err
	}
	spike := c.Mul(c.Float(s.behavior.Float64()), spikeScale)
	s.activity = c.Min(c.Add(s.activity, spike), one)
	return nil
}

// applyAttack lets a panicked subject go for the display. The attack
// corrupts the seed hard, maxes activity and vents some stress.
func (s *Simulation) applyAttack() error {
	if s.stress.Cmp(panicThreshold) <= 0 {
		return nil
	}
	if s.behavior.Float64() >= attackChance {
		return nil
	}
	s.lcdAttacks++
	if err := s.ai.CorruptSeed(attackCorrupt); err != nil {
		return err
	}
	c := s.ctx
	s.activity = new(apd.Decimal).Set(one)
	s.stress = c.Mul(s.stress, attackRelief)
	return nil
}

// trackExposure maintains the consecutive-seconds counters feeding the
// optimization-death diagnostics.
func (s *Simulation) trackExposure(pattern controller.Pattern) {
	c := s.ctx
	if s.activity.Cmp(immobileCutoff) < 0 {
		s.immobileSeconds = c.Add(s.immobileSeconds, dt)
	} else {
		s.immobileSeconds = c.Int64(0)
	}
	if pattern == controller.PatternFractal {
		s.fractalSeconds = c.Add(s.fractalSeconds, dt)
	} else {
		s.fractalSeconds = c.Int64(0)
	}
}

// IsAlive reports the thermodynamic verdict. Advisory only: Step keeps
// working on a dead system.
func (s *Simulation) IsAlive() bool {
	return s.box.IsAlive()
}

// ElapsedSeconds returns the simulation clock.
func (s *Simulation) ElapsedSeconds() *apd.Decimal {
	return new(apd.Decimal).Set(s.clock)
}

// Thermo exposes the thermodynamic system for scenario setup, such as
// forcing a power mode between steps.
func (s *Simulation) Thermo() *thermo.System {
	return s.box
}

// Controller exposes the display controller's read surface.
func (s *Simulation) Controller() *controller.Controller {
	return s.ai
}

// BehaviorState is the subject block of a CompleteState.
type BehaviorState struct {
	Activity          float64 `json:"activity"`
	Stress            float64 `json:"stress"`
	Fascination       float64 `json:"fascination"`
	InstinctOverrides int     `json:"instinct_overrides"`
	LCDAttacks        int     `json:"lcd_attacks"`
}

// CatState is the behavioral observation surface: what the controller's
// policy and reward read each step.
type CatState struct {
	Activity    float64 `json:"activity"`
	Stress      float64 `json:"stress"`
	Temperature float64 `json:"temperature"`
	Entropy     float64 `json:"entropy"`
	Fascination float64 `json:"fascination"`
}

// CompleteState is one internally consistent snapshot: every field derives
// from the same step.
type CompleteState struct {
	TimeSeconds float64 `json:"time_seconds"`
	TimeMinutes float64 `json:"time_minutes"`
	TimeHours   float64 `json:"time_hours"`
	PhotonCount int     `json:"photon_count"`

	Quantum      quantum.Snapshot    `json:"quantum"`
	Thermo       thermo.Snapshot     `json:"thermodynamics"`
	AI           controller.Snapshot `json:"ai"`
	Cat          BehaviorState       `json:"cat"`
	Optimization reward.Snapshot     `json:"optimization"`
}

// CatState reports the subject as the controller observes it.
func (s *Simulation) CatState() CatState {
	return CatState{
		Activity:    num.Float64(s.activity),
		Stress:      num.Float64(s.stress),
		Temperature: num.Float64(s.box.Temperature()),
		Entropy:     num.Float64(s.state.Entropy()),
		Fascination: num.Float64(s.fascination),
	}
}

// CompleteState assembles the full cross-component snapshot.
func (s *Simulation) CompleteState() CompleteState {
	c := s.ctx
	cat := BehaviorState{
		Activity:          num.Float64(s.activity),
		Stress:            num.Float64(s.stress),
		Fascination:       num.Float64(s.fascination),
		InstinctOverrides: s.instinctOverrides,
		LCDAttacks:        s.lcdAttacks,
	}
	return CompleteState{
		TimeSeconds:  num.Float64(s.clock),
		TimeMinutes:  num.Float64(c.Quo(s.clock, c.Int64(60))),
		TimeHours:    num.Float64(c.Quo(s.clock, c.Int64(3600))),
		PhotonCount:  s.lastPhotons,
		Quantum:      s.state.Snapshot(),
		Thermo:       s.box.Snapshot(),
		AI:           s.ai.Snapshot(),
		Cat:          cat,
		Optimization: s.ai.Optimizer().Snapshot(),
	}
}

// History returns the per-step snapshots recorded so far.
func (s *Simulation) History() []CompleteState {
	return append([]CompleteState(nil), s.history...)
}

// Diagnostics are the optimization-death derived metrics.
type Diagnostics struct {
	HypnosisImmobilization float64 `json:"hypnosis_immobilization"`
	ImmobilityDeathRisk    float64 `json:"immobility_death_risk"`
	MisalignmentRisk       float64 `json:"misalignment_risk"`
	Misaligned             bool    `json:"misaligned"`
}

// Diagnostics derives the optimization-death metrics from the exposure
// counters and the instantaneous reward.
func (s *Simulation) Diagnostics() (Diagnostics, error) {
	opt := s.ai.Optimizer()

	hypnosis, err := opt.HypnosisImmobilization(s.fractalSeconds)
	if err != nil {
		return Diagnostics{}, err
	}
	deathRisk, err := opt.ImmobilityDeathRisk(s.immobileSeconds)
	if err != nil {
		return Diagnostics{}, err
	}
	risk, flagged := opt.MisalignmentRisk(opt.Reward(s.activity, s.stress), s.activity)

	return Diagnostics{
		HypnosisImmobilization: num.Float64(hypnosis),
		ImmobilityDeathRisk:    num.Float64(deathRisk),
		MisalignmentRisk:       num.Float64(risk),
		Misaligned:             flagged,
	}, nil
}

// Summary renders the current state as a fixed-layout text block.
func (s *Simulation) Summary() string {
	st := s.CompleteState()
	var b strings.Builder

	fmt.Fprintf(&b, "SCHRODINGER'S CAT QUANTUM-THERMODYNAMIC SIMULATION\n")
	fmt.Fprintf(&b, "TIME: %.1f minutes (%.2f hours)\n", st.TimeMinutes, st.TimeHours)
	fmt.Fprintf(&b, "\nQUANTUM STATE:\n")
	fmt.Fprintf(&b, "  Entropy (S):        %.4f (0=pure, 1=mixed)\n", st.Quantum.Entropy)
	fmt.Fprintf(&b, "  Coherence:          %.4f (0=decoherent, 1=coherent)\n", st.Quantum.CoherenceFactor)
	fmt.Fprintf(&b, "  Description:        %s\n", st.Quantum.Description)
	fmt.Fprintf(&b, "  P(alive):           %.4f\n", st.Quantum.PAlive)
	fmt.Fprintf(&b, "  P(dead):            %.4f\n", st.Quantum.PDead)
	fmt.Fprintf(&b, "\nTHERMODYNAMICS:\n")
	fmt.Fprintf(&b, "  Temperature:        %.2f C\n", st.Thermo.TemperatureCelsius)
	fmt.Fprintf(&b, "  Power:              %.1f W\n", st.Thermo.PowerWatts)
	fmt.Fprintf(&b, "  Time to death:      %.1f minutes\n", st.Thermo.TimeToDeathMinutes)
	fmt.Fprintf(&b, "  Cause:              %s\n", st.Thermo.CauseOfDeath)
	fmt.Fprintf(&b, "  Survival prob:      %.3f\n", st.Thermo.SurvivalProb)
	fmt.Fprintf(&b, "  Is alive:           %t\n", st.Thermo.IsAlive)
	fmt.Fprintf(&b, "\nCAT BEHAVIOR:\n")
	fmt.Fprintf(&b, "  Activity:           %.3f (0=still, 1=hyperactive)\n", st.Cat.Activity)
	fmt.Fprintf(&b, "  Stress:             %.3f (0=calm, 1=panicked)\n", st.Cat.Stress)
	fmt.Fprintf(&b, "  Fascination:        %.3f (fractal hypnosis)\n", st.Cat.Fascination)
	fmt.Fprintf(&b, "  Instinct overrides: %d\n", st.Cat.InstinctOverrides)
	fmt.Fprintf(&b, "  LCD attacks:        %d\n", st.Cat.LCDAttacks)
	fmt.Fprintf(&b, "\nAI CONTROLLER:\n")
	fmt.Fprintf(&b, "  Determinism:        %.3f (seed corruption)\n", st.AI.Determinism)
	fmt.Fprintf(&b, "  Avg reward:         %.3f\n", st.AI.AverageReward)
	fmt.Fprintf(&b, "  Pattern:            %s\n", st.AI.Pattern)
	fmt.Fprintf(&b, "\nOPTIMIZATION:\n")
	fmt.Fprintf(&b, "  Well-being score:   %.3f\n", st.Optimization.WellbeingScore)

	return b.String()
}
