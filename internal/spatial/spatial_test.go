package spatial

import (
	"math"
	"testing"
)

func TestGainsPartitionUnity(t *testing.T) {
	for x := -1.0; x <= 1.0; x += 0.25 {
		for y := -1.0; y <= 1.0; y += 0.25 {
			g := Gains(x, y)
			sum := 0.0
			for _, v := range g {
				if v < 0 {
					t.Fatalf("negative gain at (%v, %v): %v", x, y, g)
				}
				sum += v
			}
			if math.Abs(sum-1) > 1e-12 {
				t.Fatalf("gains at (%v, %v) sum to %v", x, y, sum)
			}
		}
	}
	if g := Gains(-1, 1); g[FrontLeft] != 1 {
		t.Fatalf("hard front-left = %v", g)
	}
	if g := Gains(5, -5); g[RearRight] != 1 {
		t.Fatalf("clamped rear-right = %v", g)
	}
}

func TestSetPosition(t *testing.T) {
	d := New(48000, 1)
	if d.SetPosition(4, 0, 0) || d.SetPosition(-1, 0, 0) || d.SetPosition(0, math.NaN(), 0) {
		t.Fatal("invalid position accepted")
	}
	d.SetPosition(2, 3, -0.5)
	if x, y := d.Position(2); x != 1 || y != -0.5 {
		t.Fatalf("position = (%v, %v)", x, y)
	}
}

func block(n int, ch int, v float64) *[Channels][]float64 {
	var b [Channels][]float64
	for i := range b {
		b[i] = make([]float64, n)
	}
	if ch >= 0 {
		for k := range b[ch] {
			b[ch][k] = v
		}
	}
	return &b
}

func TestPanGlidesToTarget(t *testing.T) {
	d := New(48000, 1)
	d.SetPosition(0, 1, 1)
	in := block(4800, 0, 1)
	out := block(4800, -1, 0)
	if err := d.Process(in, out); err != nil {
		t.Fatal(err)
	}
	if first := out[FrontRight][0]; first > 0.3 {
		t.Fatalf("gain jumped: %v", first)
	}
	g := d.SpeakerGains(0)
	if math.Abs(g[FrontRight]-1) > 1e-6 || g[RearLeft] > 1e-6 {
		t.Fatalf("gains after 100 ms = %v", g)
	}
}

func TestFlatToneIsTransparent(t *testing.T) {
	d := New(48000, 1)
	in := block(256, 1, 0.5)
	out := block(256, -1, 0)
	if err := d.Process(in, out); err != nil {
		t.Fatal(err)
	}
	for s := 0; s < Speakers; s++ {
		for k, v := range out[s] {
			if math.Abs(v-0.125) > 1e-9 {
				t.Fatalf("speaker %d sample %d = %v", s, k, v)
			}
		}
	}
}

func TestToneShapeBoostsLows(t *testing.T) {
	d := New(48000, 1)
	d.SetToneShape(1, 0.5, 0.5)
	n := 48000
	in := block(n, 0, 0)
	for k := range in[0] {
		in[0][k] = math.Sin(2 * math.Pi * 50 * float64(k) / 48000)
	}
	out := block(n, -1, 0)
	if err := d.Process(in, out); err != nil {
		t.Fatal(err)
	}
	peak := 0.0
	for _, v := range out[FrontLeft][n/2:] {
		peak = math.Max(peak, math.Abs(v))
	}
	// +12 dB on a quarter-gain feed
	want := 0.25 * math.Pow(10, 12.0/20)
	if math.Abs(peak-want)/want > 0.1 {
		t.Fatalf("50 Hz peak %v, want about %v", peak, want)
	}
	if l, m, h := d.ToneShape(); l != 1 || m != 0.5 || h != 0.5 {
		t.Fatalf("tone = %v %v %v", l, m, h)
	}
}

func TestImpulseResponseDecay(t *testing.T) {
	const sr = 8000.0
	ir, err := ImpulseResponse(sr, 1, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(ir) != 8000 {
		t.Fatalf("len = %d", len(ir))
	}
	energy := func(s []float64) float64 {
		e := 0.0
		for _, v := range s {
			e += v * v
		}
		return e
	}
	if e := energy(ir); math.Abs(e-1) > 1e-9 {
		t.Fatalf("energy = %v", e)
	}
	head := energy(ir[:800])
	tail := energy(ir[7200:])
	// -60 dB at the end in amplitude, so the last tenth is far below the first
	if tail/head > 1e-4 {
		t.Fatalf("tail/head energy = %v", tail/head)
	}
	other, _ := ImpulseResponse(sr, 1, 4)
	if other[10] == ir[10] && other[11] == ir[11] {
		t.Fatal("seeds not decorrelated")
	}
}

func TestReverbClampsAndTail(t *testing.T) {
	const sr = 8000.0
	d := New(sr, 9)
	d.SetReverb(ReverbParams{Decay: 50, PreDelay: 1, Wet: 2})
	if p := d.Reverb(); p.Decay != MaxDecay || p.PreDelay != MaxPreDelay || p.Wet != 1 {
		t.Fatalf("reverb = %+v", p)
	}
	if err := d.SetReverb(ReverbParams{Decay: 0.5, PreDelay: 0.01, Wet: 0.5}); err != nil {
		t.Fatal(err)
	}
	if err := d.Initialize(); err != nil {
		t.Fatal(err)
	}
	if err := d.Initialize(); err != nil {
		t.Fatal("second Initialize failed:", err)
	}
	in := block(2048, 0, 0)
	in[0][0] = 1
	out := block(2048, -1, 0)
	if err := d.Process(in, out); err != nil {
		t.Fatal(err)
	}
	tail := 0.0
	for _, v := range out[FrontLeft][400:] {
		tail += v * v
	}
	if tail == 0 {
		t.Fatal("no reverb tail")
	}
	// nothing wet arrives before the pre-delay
	for k := 1; k < 80; k++ {
		if out[FrontLeft][k] != 0 {
			t.Fatalf("sample %d = %v before pre-delay", k, out[FrontLeft][k])
		}
	}
}
