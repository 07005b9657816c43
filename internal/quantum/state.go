// Package quantum models the subject as a two-level system with populations
// for the alive and dead branches plus an off-diagonal coherence term. The
// only dynamics are decoherence channels: base exponential decay, photon
// measurement collapse, and thermal relaxation. There is no re-coherence
// path, so entropy is non-decreasing for non-negative arguments.
package quantum

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"

	"catbox/internal/num"
)

// Regime classifies the state by its Von Neumann entropy.
type Regime string

const (
	RegimeGod        Regime = "God"
	RegimeZombie     Regime = "Zombie"
	RegimeTransition Regime = "Transition"
)

var (
	hbar      = num.MustParse("1.054571817e-34")
	boltzmann = num.MustParse("1.380649e-23")

	baseGamma        = num.MustParse("0.001")
	transferScale    = num.MustParse("0.001")
	thermalRelaxBase = num.MustParse("0.0001")
	referenceTempK   = num.MustParse("300")
	equilibrium      = num.MustParse("0.5")
	transitionBand   = num.MustParse("0.01")

	one = num.MustParse("1")
	two = num.MustParse("2")
)

// DefaultGamma returns the base decoherence rate in 1/s.
func DefaultGamma() *apd.Decimal {
	return new(apd.Decimal).Set(baseGamma)
}

// State is the two-level quantum state. It starts pure (alive with
// certainty) and decoheres monotonically through the Apply* operations.
type State struct {
	ctx       *num.Context
	pAlive    *apd.Decimal
	pDead     *apd.Decimal
	coherence *apd.Decimal
	ln2       *apd.Decimal
}

// NewState returns a pure state: P(alive)=1, P(dead)=0, no off-diagonal
// coherence. The context must be non-nil.
func NewState(ctx *num.Context) *State {
	return &State{
		ctx:       ctx,
		pAlive:    ctx.Int64(1),
		pDead:     ctx.Int64(0),
		coherence: ctx.Int64(0),
		ln2:       ctx.Ln(two),
	}
}

// Entropy computes the Von Neumann entropy S = -(p ln p + q ln q) / ln 2,
// normalized so a 50/50 mixture scores 1. The 0*ln(0) limit counts as 0.
// The result is clamped to [0, 1] against rounding spill.
func (s *State) Entropy() *apd.Decimal {
	c := s.ctx
	sum := c.Add(s.entropyTerm(s.pAlive), s.entropyTerm(s.pDead))
	entropy := c.Neg(sum)
	if entropy.Sign() > 0 {
		entropy = c.Quo(entropy, s.ln2)
	}
	return c.ClampUnit(entropy)
}

func (s *State) entropyTerm(p *apd.Decimal) *apd.Decimal {
	if p.Sign() <= 0 {
		return new(apd.Decimal)
	}
	return s.ctx.Mul(p, s.ctx.Ln(p))
}

// ApplyDecoherence decays the off-diagonal coherence exponentially:
// coherence *= exp(-gamma * dt). Repeated calls compose, so dt1 followed by
// dt2 matches a single dt1+dt2 step.
func (s *State) ApplyDecoherence(dt, gamma *apd.Decimal) error {
	if dt.Sign() < 0 {
		return fmt.Errorf("quantum: negative dt %s", dt)
	}
	if gamma.Sign() < 0 {
		return fmt.Errorf("quantum: negative decoherence rate %s", gamma)
	}
	s.decay(dt, gamma)
	return nil
}

func (s *State) decay(dt, gamma *apd.Decimal) {
	c := s.ctx
	factor := c.Exp(c.Neg(c.Mul(gamma, dt)))
	s.coherence = c.Mul(s.coherence, factor)
}

// ApplyMeasurement collapses the state toward the dead branch, one photon
// at a time: each interaction transfers strength*P(alive)*0.001 of
// population, renormalizes, and damps coherence by (1-strength). Photon
// counts <= 0 are a no-op.
func (s *State) ApplyMeasurement(photonCount int, strength *apd.Decimal) error {
	if strength.Sign() < 0 || strength.Cmp(one) > 0 {
		return fmt.Errorf("quantum: measurement strength %s outside [0,1]", strength)
	}
	c := s.ctx
	damp := c.Sub(one, strength)
	for i := 0; i < photonCount; i++ {
		transfer := c.Mul(c.Mul(strength, s.pAlive), transferScale)
		s.pAlive = c.Sub(s.pAlive, transfer)
		s.pDead = c.Add(s.pDead, transfer)

		total := c.Add(s.pAlive, s.pDead)
		if total.Sign() > 0 {
			s.pAlive = c.Quo(s.pAlive, total)
			s.pDead = c.Quo(s.pDead, total)
		}
		s.coherence = c.Mul(s.coherence, damp)
	}
	return nil
}

// EvolveThermal applies temperature-driven decoherence. The thermal rate
// kB*T/hbar decays coherence (for any realistic temperature this rounds
// coherence straight to zero), and the populations relax toward the 50/50
// thermal mixture at 0.0001*(T/300) per second.
func (s *State) EvolveThermal(temperatureK, dt *apd.Decimal) error {
	if dt.Sign() < 0 {
		return fmt.Errorf("quantum: negative dt %s", dt)
	}
	if temperatureK.Sign() < 0 {
		return fmt.Errorf("quantum: negative temperature %s", temperatureK)
	}
	c := s.ctx

	thermalGamma := c.Quo(c.Mul(boltzmann, temperatureK), hbar)
	s.decay(dt, thermalGamma)

	rate := c.Mul(thermalRelaxBase, c.Quo(temperatureK, referenceTempK))
	step := c.Mul(rate, dt)
	s.pAlive = c.Add(s.pAlive, c.Mul(c.Sub(equilibrium, s.pAlive), step))
	s.pDead = c.Add(s.pDead, c.Mul(c.Sub(equilibrium, s.pDead), step))
	return nil
}

// Regime classifies the current entropy: below 0.5 is God territory, above
// is Zombie, and anything within the transition band of 0.5 reads as the
// critical crossover.
func (s *State) Regime() Regime {
	c := s.ctx
	entropy := s.Entropy()
	if c.Abs(c.Sub(entropy, equilibrium)).Cmp(transitionBand) < 0 {
		return RegimeTransition
	}
	if entropy.Cmp(equilibrium) < 0 {
		return RegimeGod
	}
	return RegimeZombie
}

// Describe renders the regime in the report form used by summaries.
func (s *State) Describe() string {
	switch s.Regime() {
	case RegimeGod:
		return "God (low entropy, high coherence)"
	case RegimeZombie:
		return "Zombie (high entropy, decoherent)"
	default:
		return "Transition (critical entropy)"
	}
}

// CoherenceFactor reports |coherence| relative to its theoretical maximum
// 2*sqrt(pAlive*pDead); zero when the bound itself is zero.
func (s *State) CoherenceFactor() *apd.Decimal {
	c := s.ctx
	product := c.Mul(s.pAlive, s.pDead)
	if product.Sign() <= 0 {
		return new(apd.Decimal)
	}
	bound := c.Mul(two, c.Sqrt(product))
	if bound.Sign() <= 0 {
		return new(apd.Decimal)
	}
	return c.Quo(c.Abs(s.coherence), bound)
}

// IsPure reports whether entropy is below the given threshold.
func (s *State) IsPure(threshold *apd.Decimal) bool {
	return s.Entropy().Cmp(threshold) < 0
}

// IsMixed reports whether entropy is above the given threshold.
func (s *State) IsMixed(threshold *apd.Decimal) bool {
	return s.Entropy().Cmp(threshold) > 0
}

// Populations returns copies of P(alive) and P(dead).
func (s *State) Populations() (*apd.Decimal, *apd.Decimal) {
	return new(apd.Decimal).Set(s.pAlive), new(apd.Decimal).Set(s.pDead)
}

// Coherence returns a copy of the off-diagonal coherence term.
func (s *State) Coherence() *apd.Decimal {
	return new(apd.Decimal).Set(s.coherence)
}

// Snapshot is the reporting view of the state.
type Snapshot struct {
	PAlive          float64 `json:"p_alive"`
	PDead           float64 `json:"p_dead"`
	Coherence       float64 `json:"coherence"`
	Entropy         float64 `json:"entropy"`
	CoherenceFactor float64 `json:"coherence_factor"`
	Regime          string  `json:"regime"`
	Description     string  `json:"description"`
}

// Snapshot renders the current state for reports and persistence.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		PAlive:          num.Float64(s.pAlive),
		PDead:           num.Float64(s.pDead),
		Coherence:       num.Float64(s.coherence),
		Entropy:         num.Float64(s.Entropy()),
		CoherenceFactor: num.Float64(s.CoherenceFactor()),
		Regime:          string(s.Regime()),
		Description:     s.Describe(),
	}
}
