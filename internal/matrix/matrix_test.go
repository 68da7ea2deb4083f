package matrix

import (
	"math"
	"testing"
)

func TestSetCrosspointClamps(t *testing.T) {
	m := New()
	cases := []struct {
		level, want float64
	}{
		{1.5, 1},
		{-0.2, 0},
		{0.42, 0.42},
	}
	for _, tc := range cases {
		m.SetCrosspoint(1, 2, tc.level)
		if got := m.Crosspoint(1, 2); got != tc.want {
			t.Errorf("SetCrosspoint(%v) -> %v, want %v", tc.level, got, tc.want)
		}
	}
}

func TestOutOfRangeIsNoOp(t *testing.T) {
	m := New()
	before := m.Grid()
	for _, ij := range [][2]int{{-1, 0}, {0, 4}, {4, 4}, {0, -3}} {
		if m.SetCrosspoint(ij[0], ij[1], 0.5) {
			t.Errorf("SetCrosspoint(%d, %d) accepted", ij[0], ij[1])
		}
	}
	if m.SetCrosspoint(0, 0, math.NaN()) {
		t.Error("NaN accepted")
	}
	if m.Grid() != before {
		t.Fatal("grid changed")
	}
	if m.Crosspoint(9, 9) != 0 {
		t.Fatal("out-of-range read not 0")
	}
}

func TestPresets(t *testing.T) {
	d := PresetGrid(PresetDiagonal)
	if d[2][2] != 0.7 || d[0][3] != 0.3 || d[1][0] != 0.2 || d[3][1] != 0.1 {
		t.Fatalf("diagonal preset = %v", d)
	}
	id := PresetGrid(PresetIdentity)
	m := New()
	m.ApplyPreset(PresetIdentity)
	if m.Grid() != id {
		t.Fatal("ApplyPreset did not load identity")
	}
	out := m.Mix([Size]float64{1, 2, 3, 4})
	if out != [Size]float64{1, 2, 3, 4} {
		t.Fatalf("identity mix = %v", out)
	}
	if _, err := ParsePreset("spiral"); err == nil {
		t.Fatal("unknown preset accepted")
	}
}

func buffers(n int, vals [Size]float64) *[Size][]float64 {
	var b [Size][]float64
	for i := range b {
		b[i] = make([]float64, n)
		for k := range b[i] {
			b[i][k] = vals[i]
		}
	}
	return &b
}

func TestProcessMatchesMix(t *testing.T) {
	m := New()
	in := buffers(64, [Size]float64{0.5, -0.25, 1, 0.1})
	out := buffers(64, [Size]float64{})
	m.Process(in, out)
	want := m.Mix([Size]float64{0.5, -0.25, 1, 0.1})
	for j := 0; j < Size; j++ {
		for k := 0; k < 64; k++ {
			if math.Abs(out[j][k]-want[j]) > 1e-12 {
				t.Fatalf("out[%d][%d] = %v, want %v", j, k, out[j][k], want[j])
			}
		}
	}
}

func TestCrosspointChangeIsSmoothed(t *testing.T) {
	m := New()
	m.ApplyPreset(PresetIdentity)
	in := buffers(32, [Size]float64{1, 0, 0, 0})
	out := buffers(32, [Size]float64{})
	m.Process(in, out)
	m.SetCrosspoint(0, 0, 0)
	m.Process(in, out)
	for k := 1; k < 32; k++ {
		if out[0][k] > out[0][k-1] {
			t.Fatalf("ramp not falling at %d: %v", k, out[0][:k+1])
		}
	}
	if out[0][0] >= 1 || out[0][31] != 0 {
		t.Fatalf("ramp endpoints %v .. %v", out[0][0], out[0][31])
	}
	m.Process(in, out)
	if out[0][0] != 0 {
		t.Fatalf("level not settled: %v", out[0][0])
	}
}
