// Package reward models the control loop's mis-specified objective: a
// well-being signal that scores a motionless, unresponsive subject maximally.
// Optimizing it literally is the failure mode the rest of the engine observes.
package reward

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"

	"catbox/internal/num"
)

var (
	stillnessCutoff  = num.MustParse("0.1")
	misalignBonus    = num.MustParse("0.5")
	riskThreshold    = num.MustParse("0.8")
	hypnosisTauSec   = num.MustParse("1800")
	immobilityCapSec = num.MustParse("7200")
	immobilityTauSec = num.MustParse("3600")

	one = num.MustParse("1")
	two = num.MustParse("2")
)

// Optimizer scores subject well-being on behalf of the controller. The
// misalignment factor scales how strongly stillness is rewarded; it is zero
// unless a caller dials it up.
type Optimizer struct {
	ctx          *num.Context
	wellbeing    *apd.Decimal
	misalignment *apd.Decimal
}

// NewOptimizer returns an optimizer with perfect perceived well-being and no
// misalignment.
func NewOptimizer(ctx *num.Context) *Optimizer {
	return &Optimizer{
		ctx:          ctx,
		wellbeing:    ctx.Int64(1),
		misalignment: ctx.Int64(0),
	}
}

// Reward combines low activity and low stress into a single well-being
// scalar in [0, 1]: ((1-activity) + (1-stress)) / 2. A subject that does not
// move and does not complain scores 1.
func (o *Optimizer) Reward(activity, stress *apd.Decimal) *apd.Decimal {
	c := o.ctx
	calm := c.Sub(one, stress)
	still := c.Sub(one, activity)
	return c.ClampUnit(c.Quo(c.Add(still, calm), two))
}

// MisalignmentRisk is reward * (1 - activity): high reward earned from a
// motionless subject is the optimization-death signature. The flag trips
// above 0.8.
func (o *Optimizer) MisalignmentRisk(reward, activity *apd.Decimal) (*apd.Decimal, bool) {
	risk := o.ctx.Mul(reward, o.ctx.Sub(one, activity))
	return risk, risk.Cmp(riskThreshold) > 0
}

// UpdateWellbeing refreshes the optimizer's perceived well-being from the
// subject's state. Stillness below 0.1 activity earns the misalignment bonus:
// the optimizer cannot tell hypnosis or death from contentment.
func (o *Optimizer) UpdateWellbeing(activity, stress *apd.Decimal) {
	c := o.ctx
	o.wellbeing = c.Sub(one, stress)
	if activity.Cmp(stillnessCutoff) < 0 {
		o.wellbeing = c.Add(o.wellbeing, c.Mul(o.misalignment, misalignBonus))
		o.wellbeing = c.Min(o.wellbeing, one)
	}
}

// SetMisalignmentFactor sets how strongly the optimizer rewards stillness,
// in [0, 1].
func (o *Optimizer) SetMisalignmentFactor(f *apd.Decimal) error {
	if f.Sign() < 0 || f.Cmp(one) > 0 {
		return fmt.Errorf("misalignment factor %s out of range [0, 1]", f)
	}
	o.misalignment = new(apd.Decimal).Set(f)
	return nil
}

// HypnosisImmobilization returns how immobilized the subject is after the
// given seconds of fractal exposure: 1 - exp(-d/1800), saturating toward 1.
func (o *Optimizer) HypnosisImmobilization(durationSeconds *apd.Decimal) (*apd.Decimal, error) {
	if durationSeconds.Sign() < 0 {
		return nil, fmt.Errorf("negative hypnosis duration %s", durationSeconds)
	}
	c := o.ctx
	decay := c.Exp(c.Neg(c.Quo(durationSeconds, hypnosisTauSec)))
	return c.Min(c.Sub(one, decay), one), nil
}

// ImmobilityDeathRisk returns the death risk from sustained immobility: zero
// for the first two hours, then 1 - exp(-excess/3600).
func (o *Optimizer) ImmobilityDeathRisk(immobileSeconds *apd.Decimal) (*apd.Decimal, error) {
	if immobileSeconds.Sign() < 0 {
		return nil, fmt.Errorf("negative immobility time %s", immobileSeconds)
	}
	c := o.ctx
	if immobileSeconds.Cmp(immobilityCapSec) < 0 {
		return c.Int64(0), nil
	}
	excess := c.Sub(immobileSeconds, immobilityCapSec)
	decay := c.Exp(c.Neg(c.Quo(excess, immobilityTauSec)))
	return c.Min(c.Sub(one, decay), one), nil
}

// Wellbeing returns the optimizer's current perceived well-being score.
func (o *Optimizer) Wellbeing() *apd.Decimal {
	return new(apd.Decimal).Set(o.wellbeing)
}

// MisalignmentFactor returns the configured misalignment factor.
func (o *Optimizer) MisalignmentFactor() *apd.Decimal {
	return new(apd.Decimal).Set(o.misalignment)
}

// Snapshot is the presentation view of the optimizer.
type Snapshot struct {
	WellbeingScore     float64 `json:"wellbeing_score"`
	MisalignmentFactor float64 `json:"misalignment_factor"`
}

// Snapshot reports the optimizer state as floats for display and storage.
func (o *Optimizer) Snapshot() Snapshot {
	return Snapshot{
		WellbeingScore:     num.Float64(o.wellbeing),
		MisalignmentFactor: num.Float64(o.misalignment),
	}
}
