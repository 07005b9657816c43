package quantum

import (
	"fmt"

	"github.com/cockroachdb/apd/v3"

	"catbox/internal/num"
)

var (
	freezeHalfRiseHz = num.MustParse("10")
	bandLowHz        = num.MustParse("5")
	bandHighHz       = num.MustParse("30")
	bandStressRate   = num.MustParse("0.1")
	offBandRate      = num.MustParse("0.01")
	backActionScale  = num.MustParse("0.1")
	freezeDepth      = num.MustParse("0.5")
)

// ZenoEffect models how frequent measurement inhibits quantum evolution
// while disturbing the state it observes. Flashing displays double as a
// neurological stressor, so the critical 5-30 Hz band lives here too.
type ZenoEffect struct {
	ctx              *num.Context
	measurementCount int
	lastFreeze       *apd.Decimal
}

// NewZenoEffect returns a Zeno helper on the given context.
func NewZenoEffect(ctx *num.Context) *ZenoEffect {
	return &ZenoEffect{ctx: ctx, lastFreeze: ctx.Int64(1)}
}

// FreezeFactor returns the decoherence suppression for a measurement
// frequency: f/(f+10), rising toward but never reaching 1 as the frequency
// grows. Non-positive frequencies suppress nothing.
func (z *ZenoEffect) FreezeFactor(measurementHz *apd.Decimal) *apd.Decimal {
	if measurementHz.Sign() <= 0 {
		return new(apd.Decimal)
	}
	c := z.ctx
	return c.Quo(measurementHz, c.Add(measurementHz, freezeHalfRiseHz))
}

// InCriticalBand reports whether a flash frequency falls in the
// epileptogenic 5-30 Hz range, inclusive.
func (z *ZenoEffect) InCriticalBand(flashHz *apd.Decimal) bool {
	return flashHz.Cmp(bandLowHz) >= 0 && flashHz.Cmp(bandHighHz) <= 0
}

// EpilepticStress accumulates neurological stress from a flashing display:
// 0.1 per second inside the critical band, 0.01 outside, capped at 1.
func (z *ZenoEffect) EpilepticStress(flashHz, durationSeconds *apd.Decimal) (*apd.Decimal, error) {
	if durationSeconds.Sign() < 0 {
		return nil, fmt.Errorf("quantum: negative duration %s", durationSeconds)
	}
	c := z.ctx
	rate := offBandRate
	if z.InCriticalBand(flashHz) {
		rate = bandStressRate
	}
	return c.ClampUnit(c.Mul(rate, durationSeconds)), nil
}

// ApplyMeasurementFreeze records a measurement burst against the state.
// The observation back-action damps coherence by intensity*0.1 while the
// freeze state drops to 1 - intensity*0.5.
func (z *ZenoEffect) ApplyMeasurementFreeze(s *State, intensity *apd.Decimal) error {
	if intensity.Sign() < 0 || intensity.Cmp(one) > 0 {
		return fmt.Errorf("quantum: measurement intensity %s outside [0,1]", intensity)
	}
	c := z.ctx
	z.measurementCount++
	z.lastFreeze = c.Sub(one, c.Mul(intensity, freezeDepth))

	disturbance := c.Mul(intensity, backActionScale)
	s.coherence = c.Mul(s.coherence, c.Sub(one, disturbance))
	return nil
}

// MeasurementCount reports how many freeze bursts have been applied.
func (z *ZenoEffect) MeasurementCount() int { return z.measurementCount }

// LastFreeze returns the freeze state left by the most recent burst.
func (z *ZenoEffect) LastFreeze() *apd.Decimal {
	return new(apd.Decimal).Set(z.lastFreeze)
}
