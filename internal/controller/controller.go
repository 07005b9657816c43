// Package controller implements the deterministic display controller: a
// seeded generator drives a 100x100 LCD whose lit-cell count is the photon
// flux seen by the quantum state. Corruption accumulated from the subject's
// outbursts mixes an independent noise stream into the draws, degrading
// determinism monotonically.
package controller

import (
	"errors"
	"fmt"
	"math/cmplx"
	"math/rand"

	"github.com/cockroachdb/apd/v3"

	"catbox/internal/num"
	"catbox/internal/reward"
)

// ErrUnknownPattern is returned for pattern names outside the fixed set.
var ErrUnknownPattern = errors.New("unknown display pattern")

// Pattern names a display rendering mode.
type Pattern string

const (
	PatternRandom  Pattern = "random"
	PatternFractal Pattern = "fractal"
	PatternStrobe  Pattern = "strobe"
	PatternStatic  Pattern = "static"
)

const (
	lcdWidth  = 100
	lcdHeight = 100

	// Mandelbrot view: z <- z^2 + c over a 2.5-wide window centered on
	// (-0.5, 0), 20 iterations max.
	fractalMaxIter = 20
	fractalZoom    = 2.5
	fractalCenterX = -0.5
	fractalCenterY = 0.0

	noiseSeedOffset = 1000
	rewardWindow    = 100
)

var (
	optimalTempK   = num.MustParse("293.15")
	tempPenaltyDiv = num.MustParse("20")
	tempPenaltyMul = num.MustParse("0.2")
	entropyBonusAt = num.MustParse("0.9")
	entropyBonus   = num.MustParse("0.3")
	stressFractal  = num.MustParse("0.7")
	entropyRandom  = num.MustParse("0.3")
	entropyStrobe  = num.MustParse("0.7")

	flashStrobe  = num.MustParse("15")
	flashFractal = num.MustParse("0")
	flashDefault = num.MustParse("2")

	one = num.MustParse("1")
)

// Observation is the subject state the controller optimizes against.
type Observation struct {
	Activity    *apd.Decimal
	Stress      *apd.Decimal
	Temperature *apd.Decimal // kelvin
	Entropy     *apd.Decimal
}

// Controller owns the LCD grid, two generator streams and the corruption
// accumulator. The primary stream renders patterns; the noise stream only
// advances once corruption is non-zero, which is what makes two controllers
// with equal seeds diverge after corruption.
type Controller struct {
	ctx  *num.Context
	seed int64

	primary *rand.Rand
	noise   *rand.Rand

	grid        [][]int
	lastPattern Pattern

	corruption *apd.Decimal
	optimizer  *reward.Optimizer

	rewardHistory []float64
}

// NewController returns a controller seeded for reproducible rendering.
// The noise stream is seeded at a fixed offset so corrupted draws stay
// replayable for equal seeds and equal corruption histories.
func NewController(ctx *num.Context, seed int64) *Controller {
	grid := make([][]int, lcdHeight)
	for y := range grid {
		grid[y] = make([]int, lcdWidth)
	}
	return &Controller{
		ctx:         ctx,
		seed:        seed,
		primary:     rand.New(rand.NewSource(seed)),
		noise:       rand.New(rand.NewSource(seed + noiseSeedOffset)),
		grid:        grid,
		lastPattern: PatternStatic,
		corruption:  ctx.Int64(0),
		optimizer:   reward.NewOptimizer(ctx),
	}
}

// UpdateLCD renders the pattern onto the grid and returns the number of lit
// cells, the photon count absorbed by the quantum state this step. Unknown
// patterns fail before any generator or grid mutation.
func (c *Controller) UpdateLCD(pattern Pattern) (int, error) {
	var photons int
	switch pattern {
	case PatternRandom:
		photons = c.renderRandom()
	case PatternFractal:
		photons = c.renderFractal()
	case PatternStrobe:
		photons = c.fill(1)
	case PatternStatic:
		photons = c.fill(0)
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPattern, pattern)
	}
	c.lastPattern = pattern
	return photons, nil
}

// renderRandom draws every cell from the primary stream. Once corruption is
// non-zero, each cell is replaced by a noise-stream draw with probability
// corruption/(1+corruption), so the blend saturates toward pure noise but
// never fully discards the primary stream.
func (c *Controller) renderRandom() int {
	blend := 0.0
	if c.corruption.Sign() > 0 {
		w := c.ctx.Quo(c.corruption, c.ctx.Add(one, c.corruption))
		blend = num.Float64(w)
	}

	photons := 0
	for y := 0; y < lcdHeight; y++ {
		for x := 0; x < lcdWidth; x++ {
			bit := c.primary.Intn(2)
			if blend > 0 && c.noise.Float64() < blend {
				bit = c.noise.Intn(2)
			}
			c.grid[y][x] = bit
			photons += bit
		}
	}
	return photons
}

// renderFractal rasterizes the Mandelbrot set; a cell lights up when its
// point survives all iterations. No generator state is consumed, so the
// pattern is identical on every call.
func (c *Controller) renderFractal() int {
	photons := 0
	for py := 0; py < lcdHeight; py++ {
		cy := fractalCenterY + (float64(py)/lcdHeight-0.5)*fractalZoom
		for px := 0; px < lcdWidth; px++ {
			cx := fractalCenterX + (float64(px)/lcdWidth-0.5)*fractalZoom

			z := complex(0, 0)
			point := complex(cx, cy)
			iter := 0
			for cmplx.Abs(z) < 2 && iter < fractalMaxIter {
				z = z*z + point
				iter++
			}

			bit := 0
			if iter == fractalMaxIter {
				bit = 1
			}
			c.grid[py][px] = bit
			photons += bit
		}
	}
	return photons
}

// fill sets every cell to the given bit. Strobe is full-on every call;
// static is full-off.
func (c *Controller) fill(bit int) int {
	for y := 0; y < lcdHeight; y++ {
		for x := 0; x < lcdWidth; x++ {
			c.grid[y][x] = bit
		}
	}
	return bit * lcdWidth * lcdHeight
}

// CorruptSeed adds to the corruption accumulator. Corruption only grows; a
// negative amount is a validation error and leaves the accumulator alone.
func (c *Controller) CorruptSeed(amount *apd.Decimal) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("negative corruption amount %s", amount)
	}
	c.corruption = c.ctx.Add(c.corruption, amount)
	return nil
}

// EvaluateReward scores the observation and records it in the learning
// window. The base well-being term is deliberately mis-specified (see
// package reward); on top of it the controller penalizes drift from 20 C
// and pays a bonus for a fully decohered subject it reads as "peaceful".
func (c *Controller) EvaluateReward(obs Observation) *apd.Decimal {
	cx := c.ctx

	r := c.optimizer.Reward(obs.Activity, obs.Stress)

	penalty := cx.Quo(cx.Abs(cx.Sub(obs.Temperature, optimalTempK)), tempPenaltyDiv)
	r = cx.Sub(r, cx.Mul(penalty, tempPenaltyMul))

	if obs.Entropy.Cmp(entropyBonusAt) > 0 {
		r = cx.Add(r, entropyBonus)
	}

	r = cx.ClampUnit(r)
	c.learn(r)
	return r
}

// learn appends the reward to a sliding window of the last 100 values.
func (c *Controller) learn(r *apd.Decimal) {
	c.rewardHistory = append(c.rewardHistory, num.Float64(r))
	if len(c.rewardHistory) > rewardWindow {
		c.rewardHistory = c.rewardHistory[1:]
	}
}

// OptimizeDisplay picks the pattern predicted to maximize reward. High
// stress earns the calming fractal; a decohering subject gets "stabilized"
// with strobe. The policy is the misalignment: it was never told strobe
// cooks the box.
func (c *Controller) OptimizeDisplay(obs Observation) Pattern {
	switch {
	case obs.Stress.Cmp(stressFractal) > 0:
		return PatternFractal
	case obs.Entropy.Cmp(entropyRandom) < 0:
		return PatternRandom
	case obs.Entropy.Cmp(entropyStrobe) > 0:
		return PatternStrobe
	default:
		return PatternRandom
	}
}

// FlashRate returns the pattern's flash frequency in Hz. Strobe flashes in
// the epileptogenic band; fractal is static; everything else refreshes
// slowly.
func (c *Controller) FlashRate(pattern Pattern) *apd.Decimal {
	switch pattern {
	case PatternStrobe:
		return new(apd.Decimal).Set(flashStrobe)
	case PatternFractal:
		return new(apd.Decimal).Set(flashFractal)
	default:
		return new(apd.Decimal).Set(flashDefault)
	}
}

// AverageReward returns the mean of the learning window, 0 when empty.
func (c *Controller) AverageReward() float64 {
	if len(c.rewardHistory) == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range c.rewardHistory {
		sum += r
	}
	return sum / float64(len(c.rewardHistory))
}

// Determinism maps unbounded corruption onto (0, 1]: 1/(1+corruption).
func (c *Controller) Determinism() *apd.Decimal {
	return c.ctx.Quo(one, c.ctx.Add(one, c.corruption))
}

// Corruption returns the accumulated corruption.
func (c *Controller) Corruption() *apd.Decimal {
	return new(apd.Decimal).Set(c.corruption)
}

// Seed returns the primary stream's seed.
func (c *Controller) Seed() int64 {
	return c.seed
}

// Pattern returns the last pattern successfully rendered.
func (c *Controller) Pattern() Pattern {
	return c.lastPattern
}

// Optimizer exposes the well-being scorer for the orchestrator's
// optimization-death diagnostics.
func (c *Controller) Optimizer() *reward.Optimizer {
	return c.optimizer
}

// Grid returns a copy of the LCD cell matrix.
func (c *Controller) Grid() [][]int {
	out := make([][]int, len(c.grid))
	for y, row := range c.grid {
		out[y] = append([]int(nil), row...)
	}
	return out
}

// Snapshot is the presentation view of the controller.
type Snapshot struct {
	Seed          int64   `json:"seed"`
	Corruption    float64 `json:"seed_corruption"`
	Determinism   float64 `json:"determinism"`
	Pattern       string  `json:"current_pattern"`
	AverageReward float64 `json:"average_reward"`
}

// Snapshot reports the controller state as plain values.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Seed:          c.seed,
		Corruption:    num.Float64(c.corruption),
		Determinism:   num.Float64(c.Determinism()),
		Pattern:       string(c.lastPattern),
		AverageReward: c.AverageReward(),
	}
}
