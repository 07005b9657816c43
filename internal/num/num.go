// Package num provides the fixed-precision decimal arithmetic used by the
// simulation engine. Every model advances its state through a shared
// Context so that trajectories round identically from run to run regardless
// of platform floating-point behavior.
package num

import (
	"fmt"
	"strconv"

	"github.com/cockroachdb/apd/v3"
)

// DefaultPrecision is the number of significant decimal digits used when a
// caller does not configure one.
const DefaultPrecision = 50

// expFloor is the most negative exponent handed to Exp before the result is
// rounded to zero outright. Anything smaller underflows the decimal range
// (10^-24575) and would trip the context's underflow trap.
const expFloor = -50000

// Context performs decimal arithmetic at a fixed number of significant
// digits. Operations never mutate their operands and always allocate the
// result. Invalid operations (division by zero, logarithm of a non-positive
// value) panic, mirroring math/big; callers guard domains at the call site.
type Context struct {
	prec uint32
	ctx  *apd.Context
}

// New returns a Context computing with the given number of significant
// decimal digits.
func New(precision uint32) (*Context, error) {
	if precision == 0 {
		return nil, fmt.Errorf("num: precision must be at least 1")
	}
	return &Context{prec: precision, ctx: apd.BaseContext.WithPrecision(precision)}, nil
}

// MustNew is New for static configuration; it panics on invalid precision.
func MustNew(precision uint32) *Context {
	c, err := New(precision)
	if err != nil {
		panic(err)
	}
	return c
}

// Precision reports the number of significant digits the context retains.
func (c *Context) Precision() uint32 { return c.prec }

// Parse converts a decimal literal.
func (c *Context) Parse(s string) (*apd.Decimal, error) {
	d, _, err := new(apd.Decimal).SetString(s)
	if err != nil {
		return nil, fmt.Errorf("num: parse %q: %w", s, err)
	}
	return d, nil
}

// MustParse converts a decimal literal known to be valid, typically a
// package constant.
func MustParse(s string) *apd.Decimal {
	d, _, err := new(apd.Decimal).SetString(s)
	if err != nil {
		panic(fmt.Sprintf("num: parse %q: %v", s, err))
	}
	return d
}

// Int64 converts an integer.
func (c *Context) Int64(v int64) *apd.Decimal {
	return new(apd.Decimal).SetInt64(v)
}

// Float converts a binary float through its shortest decimal rendering, so
// 0.1 arrives as the literal 0.1 rather than its binary artifact.
func (c *Context) Float(f float64) *apd.Decimal {
	return MustParse(strconv.FormatFloat(f, 'g', -1, 64))
}

// Add returns x + y.
func (c *Context) Add(x, y *apd.Decimal) *apd.Decimal {
	d := new(apd.Decimal)
	c.must(c.ctx.Add(d, x, y))
	return d
}

// Sub returns x - y.
func (c *Context) Sub(x, y *apd.Decimal) *apd.Decimal {
	d := new(apd.Decimal)
	c.must(c.ctx.Sub(d, x, y))
	return d
}

// Mul returns x * y.
func (c *Context) Mul(x, y *apd.Decimal) *apd.Decimal {
	d := new(apd.Decimal)
	c.must(c.ctx.Mul(d, x, y))
	return d
}

// Quo returns x / y. It panics if y is zero.
func (c *Context) Quo(x, y *apd.Decimal) *apd.Decimal {
	if y.IsZero() {
		panic("num: division by zero")
	}
	d := new(apd.Decimal)
	c.must(c.ctx.Quo(d, x, y))
	return d
}

// Neg returns -x.
func (c *Context) Neg(x *apd.Decimal) *apd.Decimal {
	return new(apd.Decimal).Neg(x)
}

// Abs returns |x|.
func (c *Context) Abs(x *apd.Decimal) *apd.Decimal {
	return new(apd.Decimal).Abs(x)
}

// Exp returns e**x. Arguments below the representable decimal range round
// to zero instead of underflowing.
func (c *Context) Exp(x *apd.Decimal) *apd.Decimal {
	if x.Cmp(expFloorDec) < 0 {
		return new(apd.Decimal)
	}
	d := new(apd.Decimal)
	c.must(c.ctx.Exp(d, x))
	return d
}

// Ln returns the natural logarithm of x. It panics for x <= 0.
func (c *Context) Ln(x *apd.Decimal) *apd.Decimal {
	if x.Sign() <= 0 {
		panic("num: logarithm of non-positive value")
	}
	d := new(apd.Decimal)
	c.must(c.ctx.Ln(d, x))
	return d
}

// Sqrt returns the square root of x. It panics for x < 0.
func (c *Context) Sqrt(x *apd.Decimal) *apd.Decimal {
	if x.Sign() < 0 {
		panic("num: square root of negative value")
	}
	d := new(apd.Decimal)
	c.must(c.ctx.Sqrt(d, x))
	return d
}

// Min returns the smaller of x and y.
func (c *Context) Min(x, y *apd.Decimal) *apd.Decimal {
	if x.Cmp(y) <= 0 {
		return new(apd.Decimal).Set(x)
	}
	return new(apd.Decimal).Set(y)
}

// Max returns the larger of x and y.
func (c *Context) Max(x, y *apd.Decimal) *apd.Decimal {
	if x.Cmp(y) >= 0 {
		return new(apd.Decimal).Set(x)
	}
	return new(apd.Decimal).Set(y)
}

// Clamp returns x limited to [lo, hi].
func (c *Context) Clamp(x, lo, hi *apd.Decimal) *apd.Decimal {
	if x.Cmp(lo) < 0 {
		return new(apd.Decimal).Set(lo)
	}
	if x.Cmp(hi) > 0 {
		return new(apd.Decimal).Set(hi)
	}
	return new(apd.Decimal).Set(x)
}

// ClampUnit returns x limited to [0, 1].
func (c *Context) ClampUnit(x *apd.Decimal) *apd.Decimal {
	return c.Clamp(x, zeroDec, oneDec)
}

// Float64 renders x as a binary float for presentation and logging. The
// engine never feeds the result back into trajectory state.
func Float64(x *apd.Decimal) float64 {
	f, err := x.Float64()
	if err != nil {
		return 0
	}
	return f
}

func (c *Context) must(_ apd.Condition, err error) {
	if err != nil {
		panic(fmt.Sprintf("num: %v", err))
	}
}

var (
	zeroDec     = apd.New(0, 0)
	oneDec      = apd.New(1, 0)
	expFloorDec = apd.New(expFloor, 0)
)
