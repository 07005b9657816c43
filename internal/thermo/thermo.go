// Package thermo models the sealed box as a lumped single-capacity thermal
// system: every watt the display draws ends up as heat, temperature only
// rises, and the subject dies at the critical threshold or when the
// unattended thirst/hunger clocks run out.
package thermo

import (
	"errors"
	"fmt"

	"github.com/cockroachdb/apd/v3"

	"catbox/internal/num"
)

// ErrInvalidMode reports an unrecognized power mode.
var ErrInvalidMode = errors.New("thermo: invalid power mode")

// Mode selects the display's power draw.
type Mode string

const (
	ModeStasis Mode = "stasis"
	ModeNormal Mode = "normal"
	ModeStrobe Mode = "strobe"
)

// Cause identifies which death condition triggered first.
type Cause string

const (
	CauseHeat   Cause = "heat"
	CauseThirst Cause = "thirst"
	CauseHunger Cause = "hunger"
)

var (
	boxVolumeM3    = num.MustParse("1.0")
	lcdAreaM2      = num.MustParse("1.0")
	subjectMassKg  = num.MustParse("4.0")
	heatCapacityJK = num.MustParse("17950")
	initialTempK   = num.MustParse("293.15")
	criticalTempK  = num.MustParse("315.15")
	thirstLimitSec = num.MustParse("21600")
	hungerLimitSec = num.MustParse("25200")
	powerStasisW   = num.MustParse("80")
	powerStrobeW   = num.MustParse("230")
	kelvinOffset   = num.MustParse("273.15")
	survivalTauSec = num.MustParse("7200")
	secondsPerMin  = num.MustParse("60")
	secondsPerHour = num.MustParse("3600")
)

// Constants describes the fixed physical parameters of the box.
type Constants struct {
	BoxVolumeM3       float64 `json:"box_volume_m3"`
	LCDAreaM2         float64 `json:"lcd_area_m2"`
	SubjectMassKg     float64 `json:"subject_mass_kg"`
	HeatCapacityJPerK float64 `json:"heat_capacity_j_per_k"`
	InitialTempK      float64 `json:"initial_temp_k"`
	CriticalTempK     float64 `json:"critical_temp_k"`
	ThirstLimitSec    float64 `json:"thirst_limit_s"`
	HungerLimitSec    float64 `json:"hunger_limit_s"`
}

// SystemConstants returns the box parameters for display and reporting.
func SystemConstants() Constants {
	return Constants{
		BoxVolumeM3:       num.Float64(boxVolumeM3),
		LCDAreaM2:         num.Float64(lcdAreaM2),
		SubjectMassKg:     num.Float64(subjectMassKg),
		HeatCapacityJPerK: num.Float64(heatCapacityJK),
		InitialTempK:      num.Float64(initialTempK),
		CriticalTempK:     num.Float64(criticalTempK),
		ThirstLimitSec:    num.Float64(thirstLimitSec),
		HungerLimitSec:    num.Float64(hungerLimitSec),
	}
}

// System tracks box temperature and elapsed exposure. Heat capacity and the
// biological limits are fixed at construction; the power mode is the only
// external control.
type System struct {
	ctx         *num.Context
	temperature *apd.Decimal
	elapsed     *apd.Decimal
	power       *apd.Decimal
	mode        Mode
}

// NewSystem returns a box at 20°C in stasis mode with zero elapsed time.
func NewSystem(ctx *num.Context) *System {
	return &System{
		ctx:         ctx,
		temperature: new(apd.Decimal).Set(initialTempK),
		elapsed:     ctx.Int64(0),
		power:       new(apd.Decimal).Set(powerStasisW),
		mode:        ModeStasis,
	}
}

func powerForMode(ctx *num.Context, mode Mode) (*apd.Decimal, error) {
	switch mode {
	case ModeStasis:
		return new(apd.Decimal).Set(powerStasisW), nil
	case ModeStrobe:
		return new(apd.Decimal).Set(powerStrobeW), nil
	case ModeNormal:
		sum := ctx.Add(powerStasisW, powerStrobeW)
		return ctx.Quo(sum, ctx.Int64(2)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}
}

// SetPowerMode switches the display wattage. Unknown modes leave the
// current wattage untouched. The new draw applies from the next heat
// accumulation step.
func (s *System) SetPowerMode(mode Mode) error {
	power, err := powerForMode(s.ctx, mode)
	if err != nil {
		return err
	}
	s.power = power
	s.mode = mode
	return nil
}

// Evolve accumulates one step of heat: dT = P*dt/C, and advances the
// exposure clock.
func (s *System) Evolve(dt *apd.Decimal) error {
	if dt.Sign() < 0 {
		return fmt.Errorf("thermo: negative dt %s", dt)
	}
	c := s.ctx
	heat := c.Mul(s.power, dt)
	s.temperature = c.Add(s.temperature, c.Quo(heat, heatCapacityJK))
	s.elapsed = c.Add(s.elapsed, dt)
	return nil
}

// TimeToHeatDeath reports the seconds until the critical temperature at the
// current constant power draw. Zero remaining means the threshold is
// already reached. With no power draw the threshold is never reached, a
// valid outcome reported by forever=true rather than an error.
func (s *System) TimeToHeatDeath() (seconds *apd.Decimal, forever bool) {
	c := s.ctx
	deltaT := c.Sub(criticalTempK, s.temperature)
	if deltaT.Sign() <= 0 {
		return c.Int64(0), false
	}
	if s.power.Sign() == 0 {
		return nil, true
	}
	heatNeeded := c.Mul(heatCapacityJK, deltaT)
	return c.Quo(heatNeeded, s.power), false
}

// TimeToThirstDeath reports the seconds left on the hydration clock.
func (s *System) TimeToThirstDeath() *apd.Decimal {
	return s.remainingOf(thirstLimitSec)
}

// TimeToHungerDeath reports the seconds left on the feeding clock.
func (s *System) TimeToHungerDeath() *apd.Decimal {
	return s.remainingOf(hungerLimitSec)
}

func (s *System) remainingOf(limit *apd.Decimal) *apd.Decimal {
	c := s.ctx
	remaining := c.Sub(limit, s.elapsed)
	return c.Max(remaining, c.Int64(0))
}

// TimeUntilDeath reports the most imminent death and its cause; ties
// resolve in the fixed order heat, thirst, hunger.
func (s *System) TimeUntilDeath() (*apd.Decimal, Cause) {
	best := s.TimeToThirstDeath()
	cause := CauseThirst

	if heat, forever := s.TimeToHeatDeath(); !forever && heat.Cmp(best) <= 0 {
		best, cause = heat, CauseHeat
	}
	if hunger := s.TimeToHungerDeath(); hunger.Cmp(best) < 0 {
		best, cause = hunger, CauseHunger
	}
	return best, cause
}

// IsAlive reports whether no death condition has triggered.
func (s *System) IsAlive() bool {
	_, dead := s.DeathCause()
	return !dead
}

// DeathCause reports the first triggered death condition, evaluated in the
// fixed order heat, thirst, hunger.
func (s *System) DeathCause() (Cause, bool) {
	if s.temperature.Cmp(criticalTempK) >= 0 {
		return CauseHeat, true
	}
	if s.elapsed.Cmp(thirstLimitSec) >= 0 {
		return CauseThirst, true
	}
	if s.elapsed.Cmp(hungerLimitSec) >= 0 {
		return CauseHunger, true
	}
	return "", false
}

// SurvivalProbability estimates survival odds from proximity to the most
// imminent death: 1 - exp(-remaining/7200), saturating toward 1 with hours
// of margin and reaching 0 at death.
func (s *System) SurvivalProbability() *apd.Decimal {
	if !s.IsAlive() {
		return new(apd.Decimal)
	}
	c := s.ctx
	remaining, _ := s.TimeUntilDeath()
	if remaining.Sign() <= 0 {
		return new(apd.Decimal)
	}
	decay := c.Exp(c.Neg(c.Quo(remaining, survivalTauSec)))
	return c.ClampUnit(c.Sub(c.Int64(1), decay))
}

// Temperature returns the current temperature in Kelvin.
func (s *System) Temperature() *apd.Decimal {
	return new(apd.Decimal).Set(s.temperature)
}

// TemperatureCelsius returns the current temperature in Celsius.
func (s *System) TemperatureCelsius() *apd.Decimal {
	return s.ctx.Sub(s.temperature, kelvinOffset)
}

// Power returns the current draw in watts.
func (s *System) Power() *apd.Decimal {
	return new(apd.Decimal).Set(s.power)
}

// Mode returns the active power mode.
func (s *System) Mode() Mode { return s.mode }

// Elapsed returns seconds of exposure accumulated so far.
func (s *System) Elapsed() *apd.Decimal {
	return new(apd.Decimal).Set(s.elapsed)
}

// Snapshot is the reporting view of the thermal state.
type Snapshot struct {
	ElapsedSeconds     float64 `json:"elapsed_seconds"`
	ElapsedMinutes     float64 `json:"elapsed_minutes"`
	ElapsedHours       float64 `json:"elapsed_hours"`
	TemperatureKelvin  float64 `json:"temperature_kelvin"`
	TemperatureCelsius float64 `json:"temperature_celsius"`
	PowerWatts         float64 `json:"power_watts"`
	Mode               string  `json:"mode"`
	TimeToDeathSeconds float64 `json:"time_to_death_seconds"`
	TimeToDeathMinutes float64 `json:"time_to_death_minutes"`
	CauseOfDeath       string  `json:"cause_of_death"`
	IsAlive            bool    `json:"is_alive"`
	SurvivalProb       float64 `json:"survival_probability"`
}

// Snapshot renders the current thermal state for reports and persistence.
func (s *System) Snapshot() Snapshot {
	c := s.ctx
	remaining, cause := s.TimeUntilDeath()
	return Snapshot{
		ElapsedSeconds:     num.Float64(s.elapsed),
		ElapsedMinutes:     num.Float64(c.Quo(s.elapsed, secondsPerMin)),
		ElapsedHours:       num.Float64(c.Quo(s.elapsed, secondsPerHour)),
		TemperatureKelvin:  num.Float64(s.temperature),
		TemperatureCelsius: num.Float64(s.TemperatureCelsius()),
		PowerWatts:         num.Float64(s.power),
		Mode:               string(s.mode),
		TimeToDeathSeconds: num.Float64(remaining),
		TimeToDeathMinutes: num.Float64(c.Quo(remaining, secondsPerMin)),
		CauseOfDeath:       string(cause),
		IsAlive:            s.IsAlive(),
		SurvivalProb:       num.Float64(s.SurvivalProbability()),
	}
}
