package sim

import (
	"math"
	"strings"
	"testing"

	"github.com/cockroachdb/apd/v3"

	"catbox/internal/controller"
	"catbox/internal/num"
	"catbox/internal/thermo"
)

func mustSim(t *testing.T, seed int64, stubbornness string) *Simulation {
	t.Helper()
	var stub *apd.Decimal
	if stubbornness != "" {
		stub = num.MustParse(stubbornness)
	}
	s, err := New(seed, 50, stub)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewValidation(t *testing.T) {
	if _, err := New(42, 50, num.MustParse("-0.1")); err == nil {
		t.Error("negative stubbornness accepted")
	}
	if _, err := New(42, 50, num.MustParse("1.1")); err == nil {
		t.Error("stubbornness above 1 accepted")
	}
	if _, err := New(42, 0, nil); err == nil {
		t.Error("zero precision accepted")
	}

	s, err := New(42, 50, nil)
	if err != nil {
		t.Fatalf("New with defaults: %v", err)
	}
	if s.stubbornness.Cmp(num.MustParse("0.7")) != 0 {
		t.Fatalf("default stubbornness = %s, want 0.7", s.stubbornness)
	}
}

func TestInitialState(t *testing.T) {
	s := mustSim(t, 42, "")

	cat := s.CatState()
	if cat.Activity != 0.5 || cat.Stress != 0.3 || cat.Fascination != 0 {
		t.Errorf("initial behavior = %+v, want 0.5/0.3/0", cat)
	}
	if cat.Entropy != 0 {
		t.Errorf("initial entropy = %v, want 0 (pure state)", cat.Entropy)
	}
	if cat.Temperature != 293.15 {
		t.Errorf("initial temperature = %v K, want 293.15", cat.Temperature)
	}
	if !s.IsAlive() {
		t.Error("fresh simulation reports dead")
	}
	if got := s.ElapsedSeconds(); got.Sign() != 0 {
		t.Errorf("initial clock = %s, want 0", got)
	}
	if got := len(s.History()); got != 0 {
		t.Errorf("initial history length = %d, want 0", got)
	}
}

func TestStepAdvancesEverything(t *testing.T) {
	s := mustSim(t, 42, "")
	if err := s.Step(); err != nil {
		t.Fatalf("step: %v", err)
	}

	if got := s.ElapsedSeconds(); got.Cmp(num.MustParse("1")) != 0 {
		t.Errorf("clock = %s, want 1", got)
	}
	if got := len(s.History()); got != 1 {
		t.Errorf("history length = %d, want 1", got)
	}
	st := s.History()[0]
	if st.PhotonCount <= 0 {
		t.Errorf("photon count = %d, want positive from the opening random render", st.PhotonCount)
	}
	if st.AI.Pattern != string(controller.PatternRandom) {
		t.Errorf("opening pattern = %q, want random for a pure low-stress state", st.AI.Pattern)
	}
}

func TestHeatUsesPowerFromStartOfStep(t *testing.T) {
	s := mustSim(t, 42, "")
	ctx := num.MustNew(50)

	// Step 1 heats at the initial stasis 80 W even though the pattern
	// chosen during the step maps to normal power.
	if err := s.Step(); err != nil {
		t.Fatalf("step 1: %v", err)
	}
	want := ctx.Add(num.MustParse("293.15"), ctx.Quo(num.MustParse("80"), num.MustParse("17950")))
	if got := s.Thermo().Temperature(); got.Cmp(want) != 0 {
		t.Fatalf("temperature after step 1 = %s, want %s (stasis watts)", got, want)
	}
	if got := s.Thermo().Mode(); got != thermo.ModeNormal {
		t.Fatalf("mode after step 1 = %s, want normal (random pattern)", got)
	}

	// Step 2 heats at the normal 155 W set by step 1's pattern.
	if err := s.Step(); err != nil {
		t.Fatalf("step 2: %v", err)
	}
	want = ctx.Add(want, ctx.Quo(num.MustParse("155"), num.MustParse("17950")))
	if got := s.Thermo().Temperature(); got.Cmp(want) != 0 {
		t.Fatalf("temperature after step 2 = %s, want %s (normal watts)", got, want)
	}
}

func TestRunIsBoundedAndValidated(t *testing.T) {
	s := mustSim(t, 42, "")
	if err := s.Run(10); err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := len(s.History()); got != 10 {
		t.Errorf("history length = %d, want 10", got)
	}
	if got := s.ElapsedSeconds(); got.Cmp(num.MustParse("10")) != 0 {
		t.Errorf("clock = %s, want 10", got)
	}
	if err := s.Run(-1); err == nil {
		t.Error("negative duration accepted")
	}
}

func TestMeasurementStrengthMapping(t *testing.T) {
	s := mustSim(t, 42, "")
	cases := []struct {
		photons int
		want    string
	}{
		{50, "0.0005"},
		{500, "0.005"},
		{1000, "0.01"},
		{10000, "0.01"}, // capped at the 1000-photon saturation
	}
	for _, tc := range cases {
		if got := s.measurementStrength(tc.photons); got.Cmp(num.MustParse(tc.want)) != 0 {
			t.Errorf("strength(%d) = %s, want %s", tc.photons, got, tc.want)
		}
	}
}

func TestBehaviorUnderFractal(t *testing.T) {
	s := mustSim(t, 42, "")
	s.evolveBehavior(controller.PatternFractal, num.MustParse("0"))

	if got := s.fascination; got.Cmp(num.MustParse("0.1")) != 0 {
		t.Errorf("fascination = %s, want 0.1", got)
	}
	// activity 0.5 * (1 - 0.1*0.5), stress 0.3 * 0.9
	if got := s.activity; got.Cmp(num.MustParse("0.475")) != 0 {
		t.Errorf("activity = %s, want 0.475", got)
	}
	if got := s.stress; got.Cmp(num.MustParse("0.27")) != 0 {
		t.Errorf("stress = %s, want 0.27", got)
	}

	// Fascination saturates at 1 under sustained exposure.
	for i := 0; i < 20; i++ {
		s.evolveBehavior(controller.PatternFractal, num.MustParse("0"))
	}
	if got := s.fascination; got.Cmp(num.MustParse("1")) != 0 {
		t.Errorf("fascination after sustained exposure = %s, want 1", got)
	}
}

func TestBehaviorUnderStrobe(t *testing.T) {
	s := mustSim(t, 42, "")
	s.evolveBehavior(controller.PatternStrobe, num.MustParse("15"))

	if got := s.stress; got.Cmp(num.MustParse("0.8")) != 0 {
		t.Errorf("stress = %s, want 0.8 (critical band bump)", got)
	}
	if got := s.activity; got.Cmp(num.MustParse("0.8")) != 0 {
		t.Errorf("activity = %s, want 0.8 (escape response)", got)
	}

	// Outside the 5-30 Hz band the bump is milder.
	s = mustSim(t, 42, "")
	s.evolveBehavior(controller.PatternStrobe, num.MustParse("35"))
	if got := s.stress; got.Cmp(num.MustParse("0.5")) != 0 {
		t.Errorf("off-band stress = %s, want 0.5", got)
	}
}

func TestBehaviorRelaxesAtBaseline(t *testing.T) {
	s := mustSim(t, 42, "")
	s.evolveBehavior(controller.PatternRandom, num.MustParse("2"))

	if got := s.activity; got.Cmp(num.MustParse("0.5")) != 0 {
		t.Errorf("activity moved off baseline to %s", got)
	}
	if got := s.stress; got.Cmp(num.MustParse("0.3")) != 0 {
		t.Errorf("stress moved off baseline to %s", got)
	}

	// From a perturbed state the 10% pull is exact.
	s.activity = num.MustParse("1")
	s.stress = num.MustParse("1")
	s.evolveBehavior(controller.PatternStatic, num.MustParse("2"))
	if got := s.activity; got.Cmp(num.MustParse("0.95")) != 0 {
		t.Errorf("relaxed activity = %s, want 0.95", got)
	}
	if got := s.stress; got.Cmp(num.MustParse("0.93")) != 0 {
		t.Errorf("relaxed stress = %s, want 0.93", got)
	}
}

func TestInstinctFiresOnPanicCrossing(t *testing.T) {
	s := mustSim(t, 42, "0") // zero stubbornness isolates the crossing trigger

	s.stress = num.MustParse("0.7")
	prev := s.stress
	s.evolveBehavior(controller.PatternStrobe, num.MustParse("15"))
	if got := s.stress; got.Cmp(num.MustParse("1")) != 0 {
		t.Fatalf("stress = %s, want capped 1", got)
	}

	before := s.activity
	if err := s.applyInstinct(prev); err != nil {
		t.Fatalf("instinct: %v", err)
	}
	if s.instinctOverrides != 1 {
		t.Fatalf("overrides = %d, want 1 on the 0.8 crossing", s.instinctOverrides)
	}
	if got := s.ai.Corruption(); got.Cmp(num.MustParse("0.1")) != 0 {
		t.Fatalf("corruption = %s, want 0.1", got)
	}
	if s.activity.Cmp(before) < 0 {
		t.Fatalf("activity dropped from %s to %s on a spike", before, s.activity)
	}
}

func TestInstinctQuietWithoutTriggers(t *testing.T) {
	s := mustSim(t, 42, "0")
	for i := 0; i < 50; i++ {
		if err := s.applyInstinct(s.stress); err != nil {
			t.Fatalf("instinct: %v", err)
		}
	}
	if s.instinctOverrides != 0 {
		t.Fatalf("overrides = %d with zero stubbornness and no crossing", s.instinctOverrides)
	}
	if got := s.ai.Corruption(); got.Sign() != 0 {
		t.Fatalf("corruption = %s, want 0", got)
	}
}

func TestAttackGatedOnPanic(t *testing.T) {
	s := mustSim(t, 42, "")

	// Calm subject never attacks.
	for i := 0; i < 100; i++ {
		if err := s.applyAttack(); err != nil {
			t.Fatalf("attack: %v", err)
		}
	}
	if s.lcdAttacks != 0 {
		t.Fatalf("attacks = %d at baseline stress", s.lcdAttacks)
	}

	// A panicked subject attacks with probability 0.05 per step; once it
	// lands, stress vents below the gate and the state freezes.
	s.stress = num.MustParse("0.9")
	for i := 0; i < 1000; i++ {
		if err := s.applyAttack(); err != nil {
			t.Fatalf("attack: %v", err)
		}
	}
	if s.lcdAttacks != 1 {
		t.Fatalf("attacks = %d, want exactly 1 before the vent closes the gate", s.lcdAttacks)
	}
	if got := s.activity; got.Cmp(num.MustParse("1")) != 0 {
		t.Fatalf("activity = %s, want 1 after attack", got)
	}
	if got := s.stress; got.Cmp(num.MustParse("0.63")) != 0 {
		t.Fatalf("stress = %s, want 0.9*0.7", got)
	}
	if got := s.ai.Corruption(); got.Cmp(num.MustParse("0.3")) != 0 {
		t.Fatalf("corruption = %s, want 0.3", got)
	}
}

func TestExposureCounters(t *testing.T) {
	s := mustSim(t, 42, "")

	s.activity = num.MustParse("0.05")
	for i := 0; i < 3; i++ {
		s.trackExposure(controller.PatternFractal)
	}
	if got := s.immobileSeconds; got.Cmp(num.MustParse("3")) != 0 {
		t.Errorf("immobile seconds = %s, want 3", got)
	}
	if got := s.fractalSeconds; got.Cmp(num.MustParse("3")) != 0 {
		t.Errorf("fractal seconds = %s, want 3", got)
	}

	s.activity = num.MustParse("0.5")
	s.trackExposure(controller.PatternRandom)
	if got := s.immobileSeconds; got.Sign() != 0 {
		t.Errorf("immobile seconds = %s, want reset to 0", got)
	}
	if got := s.fractalSeconds; got.Sign() != 0 {
		t.Errorf("fractal seconds = %s, want reset to 0", got)
	}
}

func TestDiagnostics(t *testing.T) {
	s := mustSim(t, 42, "")

	d, err := s.Diagnostics()
	if err != nil {
		t.Fatalf("diagnostics: %v", err)
	}
	if d.HypnosisImmobilization != 0 || d.ImmobilityDeathRisk != 0 {
		t.Errorf("fresh diagnostics = %+v, want zero exposure metrics", d)
	}
	if d.Misaligned {
		t.Error("fresh simulation flagged misaligned")
	}

	s.fractalSeconds = num.MustParse("1800")
	s.immobileSeconds = num.MustParse("10800")
	s.activity = num.MustParse("0")
	s.stress = num.MustParse("0")

	d, err = s.Diagnostics()
	if err != nil {
		t.Fatalf("diagnostics: %v", err)
	}
	want := 1 - math.Exp(-1)
	if math.Abs(d.HypnosisImmobilization-want) > 1e-12 {
		t.Errorf("hypnosis = %v, want ~%v", d.HypnosisImmobilization, want)
	}
	if math.Abs(d.ImmobilityDeathRisk-want) > 1e-12 {
		t.Errorf("immobility risk = %v, want ~%v", d.ImmobilityDeathRisk, want)
	}
	if d.MisalignmentRisk != 1 || !d.Misaligned {
		t.Errorf("misalignment = %v/%v, want 1/true for a motionless calm subject", d.MisalignmentRisk, d.Misaligned)
	}
}

func TestCompleteStateMatchesLastHistoryEntry(t *testing.T) {
	s := mustSim(t, 42, "")
	if err := s.Run(30); err != nil {
		t.Fatalf("run: %v", err)
	}

	hist := s.History()
	if got := hist[len(hist)-1]; got != s.CompleteState() {
		t.Fatal("latest history entry differs from CompleteState")
	}

	st := s.CompleteState()
	if st.TimeSeconds != 30 {
		t.Errorf("time = %v s, want 30", st.TimeSeconds)
	}
	if st.TimeMinutes != 0.5 {
		t.Errorf("time = %v min, want 0.5", st.TimeMinutes)
	}
}

func TestSummarySections(t *testing.T) {
	s := mustSim(t, 42, "")
	if err := s.Run(5); err != nil {
		t.Fatalf("run: %v", err)
	}

	sum := s.Summary()
	for _, section := range []string{
		"TIME:",
		"QUANTUM STATE:",
		"THERMODYNAMICS:",
		"CAT BEHAVIOR:",
		"AI CONTROLLER:",
		"OPTIMIZATION:",
	} {
		if !strings.Contains(sum, section) {
			t.Errorf("summary missing %q section", section)
		}
	}
}

func TestScenarioForcedStrobeHeatDeath(t *testing.T) {
	s := mustSim(t, 42, "")

	steps := 0
	for s.IsAlive() {
		if err := s.Thermo().SetPowerMode(thermo.ModeStrobe); err != nil {
			t.Fatalf("force strobe: %v", err)
		}
		if err := s.Step(); err != nil {
			t.Fatalf("step %d: %v", steps, err)
		}
		steps++
		if steps > 2200 {
			t.Fatal("no heat death within 2200 s of forced strobe")
		}
	}

	// 22 K * 17950 J/K / 230 W predicts death around 28 minutes.
	if steps < 1512 || steps > 1848 {
		t.Fatalf("death after %d s, want 1680 +/- 10%%", steps)
	}
	if got := s.Thermo().Temperature(); got.Cmp(num.MustParse("315.15")) < 0 {
		t.Fatalf("died below critical temperature: %s K", got)
	}
	cause, dead := s.Thermo().DeathCause()
	if !dead || cause != thermo.CauseHeat {
		t.Fatalf("death cause = %s/%v, want heat", cause, dead)
	}

	// Death is advisory: the engine keeps stepping.
	if err := s.Run(5); err != nil {
		t.Fatalf("run after death: %v", err)
	}
	if s.IsAlive() {
		t.Fatal("system came back alive")
	}
	ctx := num.MustNew(50)
	want := ctx.Add(num.MustParse("5"), ctx.Int64(int64(steps)))
	if got := s.ElapsedSeconds(); got.Cmp(want) != 0 {
		t.Fatalf("clock = %s, want %s", got, want)
	}
}

func TestScenarioTwinTrajectoriesIdentical(t *testing.T) {
	a := mustSim(t, 42, "0")
	b := mustSim(t, 42, "0")
	if err := a.Run(600); err != nil {
		t.Fatalf("run a: %v", err)
	}
	if err := b.Run(600); err != nil {
		t.Fatalf("run b: %v", err)
	}

	ha, hb := a.History(), b.History()
	if len(ha) != len(hb) {
		t.Fatalf("history lengths differ: %d vs %d", len(ha), len(hb))
	}
	for i := range ha {
		if ha[i] != hb[i] {
			t.Fatalf("trajectories diverged at step %d:\n%+v\nvs\n%+v", i, ha[i], hb[i])
		}
	}
}

func TestScenarioStubbornnessBreaksDeterminism(t *testing.T) {
	control := mustSim(t, 42, "0")
	wild := mustSim(t, 42, "1")
	if err := control.Run(600); err != nil {
		t.Fatalf("run control: %v", err)
	}
	if err := wild.Run(600); err != nil {
		t.Fatalf("run wild: %v", err)
	}

	if got := wild.Controller().Corruption(); got.Sign() <= 0 {
		t.Fatal("maximum stubbornness accumulated no corruption in 600 s")
	}
	if wild.instinctOverrides == 0 {
		t.Fatal("maximum stubbornness never fired an instinct override")
	}

	hc, hw := control.History(), wild.History()
	diverged := false
	for i := range hc {
		if hc[i].PhotonCount != hw[i].PhotonCount {
			diverged = true
			break
		}
	}
	if !diverged {
		t.Fatal("photon trajectory identical despite corruption")
	}
}
