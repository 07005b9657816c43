package num

import "testing"

func TestNewRejectsZeroPrecision(t *testing.T) {
	if _, err := New(0); err == nil {
		t.Fatal("expected error for zero precision")
	}
}

func TestArithmeticAtPrecision(t *testing.T) {
	c := MustNew(10)

	cases := []struct {
		name string
		got  string
		want string
	}{
		{"add", c.Add(MustParse("0.1"), MustParse("0.2")).String(), "0.3"},
		{"sub", c.Sub(MustParse("1"), MustParse("0.3")).String(), "0.7"},
		{"mul", c.Mul(MustParse("1.5"), MustParse("2")).String(), "3.0"},
		{"quo", c.Quo(MustParse("1"), MustParse("8")).String(), "0.125"},
		{"neg", c.Neg(MustParse("0.5")).String(), "-0.5"},
		{"abs", c.Abs(MustParse("-0.5")).String(), "0.5"},
	}
	for _, tc := range cases {
		if tc.got != tc.want {
			t.Errorf("%s: got %s want %s", tc.name, tc.got, tc.want)
		}
	}
}

func TestQuoRounds(t *testing.T) {
	c := MustNew(5)
	got := c.Quo(MustParse("1"), MustParse("3"))
	if got.String() != "0.33333" {
		t.Fatalf("1/3 at 5 digits: got %s", got)
	}
}

func TestExpAndLn(t *testing.T) {
	c := MustNew(20)

	e := c.Exp(c.Int64(1))
	want := MustParse("2.7182818284")
	if c.Abs(c.Sub(e, want)).Cmp(MustParse("1e-9")) > 0 {
		t.Errorf("exp(1) = %s, want ~%s", e, want)
	}

	ln := c.Ln(MustParse("2.718281828459045235360287"))
	diff := c.Abs(c.Sub(ln, c.Int64(1)))
	if diff.Cmp(MustParse("1e-10")) > 0 {
		t.Errorf("ln(e) = %s, want ~1", ln)
	}
}

func TestExpUnderflowsToZero(t *testing.T) {
	c := MustNew(30)
	got := c.Exp(MustParse("-1.1e13"))
	if !got.IsZero() {
		t.Fatalf("exp(-1.1e13) = %s, want 0", got)
	}
}

func TestClampUnit(t *testing.T) {
	c := MustNew(10)

	cases := []struct {
		in   string
		want string
	}{
		{"-0.2", "0"},
		{"0", "0"},
		{"0.37", "0.37"},
		{"1", "1"},
		{"1.8", "1"},
	}
	for _, tc := range cases {
		got := c.ClampUnit(MustParse(tc.in))
		if got.Cmp(MustParse(tc.want)) != 0 {
			t.Errorf("ClampUnit(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}

func TestFloatRoundTripsShortestForm(t *testing.T) {
	c := MustNew(20)
	got := c.Float(0.1)
	if got.String() != "0.1" {
		t.Fatalf("Float(0.1) = %s, want 0.1", got)
	}
}

func TestMinMax(t *testing.T) {
	c := MustNew(10)
	a, b := MustParse("0.25"), MustParse("0.75")
	if got := c.Min(a, b); got.Cmp(a) != 0 {
		t.Errorf("Min = %s, want %s", got, a)
	}
	if got := c.Max(a, b); got.Cmp(b) != 0 {
		t.Errorf("Max = %s, want %s", got, b)
	}
}
