package param

import (
	"math"
	"testing"
)

func near(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestNewClampsInitialValue(t *testing.T) {
	p := New(5, 0, 1)
	if got := p.Value(); got != 1 {
		t.Fatalf("value = %v, want 1", got)
	}
	p = New(0.5, 1, 0)
	if p.Min() != 0 || p.Max() != 1 {
		t.Fatalf("bounds not normalized: [%v, %v]", p.Min(), p.Max())
	}
}

func TestSetValueAtTimeAppliesOnlyOnceReached(t *testing.T) {
	p := New(0, 0, 10)
	p.SetValueAtTime(3, 1.0)
	if got := p.Advance(0.5); got != 0 {
		t.Fatalf("before event: %v, want 0", got)
	}
	if got := p.Advance(1.0); got != 3 {
		t.Fatalf("at event: %v, want 3", got)
	}
	if p.Pending() != 0 {
		t.Fatalf("event not consumed")
	}
}

func TestLinearRampMidpoint(t *testing.T) {
	p := New(0, 0, 10)
	p.SetValueAtTime(0, 0)
	p.LinearRampToValueAtTime(10, 1)
	cases := []struct {
		at   float64
		want float64
	}{
		{0, 0},
		{0.25, 2.5},
		{0.5, 5},
		{1, 10},
		{2, 10},
	}
	for _, tc := range cases {
		if got := p.Advance(tc.at); !near(got, tc.want, 1e-9) {
			t.Fatalf("Advance(%v) = %v, want %v", tc.at, got, tc.want)
		}
	}
}

func TestExponentialRampFallsBackToLinearThroughZero(t *testing.T) {
	p := New(0, 0, 1)
	p.SetValueAtTime(0, 0)
	p.ExponentialRampToValueAtTime(1, 1)
	if got := p.Advance(0.5); !near(got, 0.5, 1e-9) {
		t.Fatalf("linear fallback = %v, want 0.5", got)
	}

	q := New(1, 0, 1)
	q.SetValueAtTime(1, 0)
	q.ExponentialRampToValueAtTime(0.01, 1)
	if got := q.Advance(0.5); !near(got, 0.1, 1e-9) {
		t.Fatalf("exponential midpoint = %v, want 0.1", got)
	}
}

func TestSetTargetConverges(t *testing.T) {
	p := New(0, 0, 1)
	p.SetTargetAtTime(1, 0, 0.1)
	p.Advance(0)
	got := p.Advance(0.1)
	if !near(got, 1-math.Exp(-1), 1e-9) {
		t.Fatalf("after one tau: %v", got)
	}
	if got := p.Advance(2); got < 0.999 {
		t.Fatalf("did not converge: %v", got)
	}
}

func TestRampToCancelsPreviousRamp(t *testing.T) {
	p := New(0, 0, 100)
	p.RampTo(100, 0, 1)
	p.Advance(0)
	mid := p.Advance(0.5)
	if !near(mid, 50, 1e-9) {
		t.Fatalf("mid = %v, want 50", mid)
	}
	// A new ramp replaces the first one and starts from the held value.
	p.RampTo(0, 0.5, 0.5)
	if got := p.Advance(0.75); !near(got, 25, 1e-9) {
		t.Fatalf("second ramp = %v, want 25", got)
	}
	if got := p.Advance(1.0); got != 0 {
		t.Fatalf("end = %v, want 0", got)
	}
	if got := p.Advance(1.5); got != 0 {
		t.Fatalf("first ramp leaked: %v", got)
	}
}

func TestCancelScheduledValuesHolds(t *testing.T) {
	p := New(0, 0, 1)
	p.SetValueAtTime(0, 0)
	p.LinearRampToValueAtTime(1, 1)
	p.Advance(0.5)
	p.CancelScheduledValues(0.5)
	if got := p.Advance(0.9); !near(got, 0.5, 1e-9) {
		t.Fatalf("held value = %v, want 0.5", got)
	}
}

func TestEqualTimeEventsKeepInsertionOrder(t *testing.T) {
	p := New(0, 0, 1)
	p.SetValueAtTime(1, 0.01)
	p.SetValueAtTime(0, 0.01)
	if got := p.Advance(0.02); got != 0 {
		t.Fatalf("last write should win, got %v", got)
	}
}

func TestTriggerPulseReturnsToZero(t *testing.T) {
	p := New(0, 0, 1)
	p.SetValueAtTime(1, 0.5)
	p.SetValueAtTime(0, 0.51)
	sr := 1000.0
	sawHigh := false
	for i := 0; i < 1000; i++ {
		v := p.Advance(float64(i) / sr)
		if v == 1 {
			sawHigh = true
		}
	}
	if !sawHigh {
		t.Fatal("pulse never went high")
	}
	if p.Value() != 0 {
		t.Fatalf("pulse stuck at %v", p.Value())
	}
}

func TestNaNIgnored(t *testing.T) {
	p := New(0.3, 0, 1)
	p.SetValue(math.NaN())
	p.SetValueAtTime(math.NaN(), 0)
	if got := p.Advance(1); got != 0.3 {
		t.Fatalf("NaN changed value: %v", got)
	}
}
