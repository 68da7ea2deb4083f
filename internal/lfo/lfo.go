package lfo

import (
	"math"
	"math/rand/v2"
)

// Shape selects the LFO waveform.
type Shape int

const (
	ShapeSaw Shape = iota
	ShapeSquare
	ShapeTriangle
	ShapeRandom // stepped sample-and-hold, new value every cycle
	ShapeSine
)

// ParseShape maps a config name to a Shape.
func ParseShape(name string) (Shape, bool) {
	switch name {
	case "saw":
		return ShapeSaw, true
	case "square":
		return ShapeSquare, true
	case "triangle", "":
		return ShapeTriangle, true
	case "random":
		return ShapeRandom, true
	case "sine":
		return ShapeSine, true
	}
	return ShapeTriangle, false
}

// LFO is a low-frequency modulation source: oscillator drift and the
// Source of Uncertainty's stepped random voltages.
type LFO struct {
	depth  float64
	rateHz float64
	shape  Shape
	phase  float64 // [0, 1)
	held   float64 // current sample-and-hold value in [-1, 1)
	rng    *rand.Rand
	cycles int
}

// New returns an LFO whose random shape is driven by a seeded generator.
func New(seed uint64) *LFO {
	return &LFO{rng: rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))}
}

// Set configures depth, rate and shape. Unknown shapes fall back to triangle.
func (l *LFO) Set(depth, rateHz float64, shape Shape) {
	l.depth = depth
	l.rateHz = rateHz
	if shape < ShapeSaw || shape > ShapeSine {
		shape = ShapeTriangle
	}
	l.shape = shape
}

// Depth returns the configured depth.
func (l *LFO) Depth() float64 { return l.depth }

// Rate returns the configured rate in Hz.
func (l *LFO) Rate() float64 { return l.rateHz }

// Held returns the current sample-and-hold value scaled by depth.
func (l *LFO) Held() float64 { return l.held * l.depth }

// Cycles counts completed cycles since the last Reset.
func (l *LFO) Cycles() int { return l.cycles }

// Sample advances the LFO by one sample and returns a value in [-depth, +depth].
// Returns 0 if depth or rate is zero.
func (l *LFO) Sample(sampleRate float64) float64 {
	if l.depth == 0 || l.rateHz == 0 || sampleRate == 0 {
		return 0
	}

	var v float64
	switch l.shape {
	case ShapeSaw:
		v = 1.0 - 2.0*l.phase
	case ShapeSquare:
		if l.phase < 0.5 {
			v = 1.0
		} else {
			v = -1.0
		}
	case ShapeRandom:
		v = l.held
	case ShapeSine:
		v = math.Sin(2 * math.Pi * l.phase)
	default:
		if l.phase < 0.5 {
			v = 4.0*l.phase - 1.0
		} else {
			v = 3.0 - 4.0*l.phase
		}
	}

	l.phase += l.rateHz / sampleRate
	if l.phase >= 1.0 {
		l.phase -= math.Floor(l.phase)
		l.cycles++
		if l.shape == ShapeRandom {
			l.Resample()
		}
	}
	return v * l.depth
}

// Resample draws a new sample-and-hold value immediately.
func (l *LFO) Resample() {
	if l.rng == nil {
		l.rng = rand.New(rand.NewPCG(1, 2))
	}
	l.held = l.rng.Float64()*2 - 1
}

// Active returns true if the LFO has non-zero depth and rate.
func (l *LFO) Active() bool {
	return l.depth != 0 && l.rateHz != 0
}

// Reset zeros the phase and the held value.
func (l *LFO) Reset() {
	l.phase = 0
	l.held = 0
	l.cycles = 0
}
