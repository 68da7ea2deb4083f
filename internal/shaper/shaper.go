// Package shaper implements the wave folder used after every channel source.
//
// The transfer curve is a crossfade between the identity and a fully folded
// curve at a fixed drive:
//
//	y = (1-a)·x + a·fold(drive·x)
//
// Both terms are odd, so the curve never adds DC. As long as the folded
// curve's fundamental stays positive for a full-scale input (true for the
// default drive), the share of energy outside the fundamental grows
// monotonically with the amount a. The curve is sampled into a lookup table
// whenever a parameter changes; Process only interpolates.
package shaper

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
)

// Curve selects the folding function.
type Curve int

const (
	// CurveTriangle reflects the signal off ±1 (classic analog folder).
	CurveTriangle Curve = iota
	// CurveSine folds through sin(π/2·x), a softer variant.
	CurveSine
)

func (c Curve) String() string {
	switch c {
	case CurveSine:
		return "sine"
	default:
		return "triangle"
	}
}

// ParseCurve maps a config name to a Curve.
func ParseCurve(name string) (Curve, bool) {
	switch name {
	case "triangle", "":
		return CurveTriangle, true
	case "sine":
		return CurveSine, true
	}
	return CurveTriangle, false
}

const (
	MinTableSize     = 512
	DefaultTableSize = 1024
	DefaultDrive     = 5.0
)

// Folder is a lookup-table waveshaper.
type Folder struct {
	table  []float64
	amount float64
	drive  float64
	curve  Curve
	builds int
}

// New returns a Folder with a table of at least MinTableSize entries.
func New(size int, curve Curve, drive float64) *Folder {
	if size < MinTableSize {
		size = MinTableSize
	}
	if drive <= 0 || math.IsNaN(drive) {
		drive = DefaultDrive
	}
	f := &Folder{
		table: make([]float64, size),
		drive: drive,
		curve: curve,
	}
	f.rebuild()
	return f
}

// Amount returns the fold amount in [0,1].
func (f *Folder) Amount() float64 { return f.amount }

// Drive returns the fold drive of the fully folded curve.
func (f *Folder) Drive() float64 { return f.drive }

// Curve returns the active curve.
func (f *Folder) Curve() Curve { return f.curve }

// Builds counts table rebuilds.
func (f *Folder) Builds() int { return f.builds }

// Table exposes the current lookup table. Callers must not modify it.
func (f *Folder) Table() []float64 { return f.table }

// SetAmount clamps a to [0,1] and rebuilds the table when it changed.
func (f *Folder) SetAmount(a float64) {
	if math.IsNaN(a) {
		return
	}
	a = core.Clamp(a, 0, 1)
	if a == f.amount {
		return
	}
	f.amount = a
	f.rebuild()
}

// SetCurve switches the folding function.
func (f *Folder) SetCurve(c Curve) {
	if c == f.curve {
		return
	}
	f.curve = c
	f.rebuild()
}

// SetDrive changes the drive of the fully folded curve.
func (f *Folder) SetDrive(d float64) {
	if d <= 0 || math.IsNaN(d) || d == f.drive {
		return
	}
	f.drive = d
	f.rebuild()
}

func (f *Folder) rebuild() {
	n := len(f.table)
	for i := range f.table {
		x := -1 + 2*float64(i)/float64(n-1)
		f.table[i] = Transfer(f.curve, f.amount, f.drive, x)
	}
	// exact symmetry, independent of rounding in x
	for i := 0; i < n/2; i++ {
		v := (f.table[i] - f.table[n-1-i]) / 2
		f.table[i] = v
		f.table[n-1-i] = -v
	}
	if n%2 == 1 {
		f.table[n/2] = 0
	}
	f.builds++
}

// Transfer evaluates the analytic curve the table is sampled from.
func Transfer(curve Curve, amount, drive, x float64) float64 {
	return (1-amount)*x + amount*fold(curve, drive*x)
}

func fold(curve Curve, y float64) float64 {
	if curve == CurveSine {
		return math.Sin(math.Pi / 2 * y)
	}
	// triangle with period 4, identity on [-1,1]
	p := math.Mod(y+1, 4)
	if p < 0 {
		p += 4
	}
	if p < 2 {
		return p - 1
	}
	return 3 - p
}

// Process shapes one sample. Input is clamped to [-1,1].
func (f *Folder) Process(x float64) float64 {
	if f.amount == 0 {
		return core.Clamp(x, -1, 1)
	}
	x = core.Clamp(x, -1, 1)
	n := len(f.table)
	pos := (x + 1) * 0.5 * float64(n-1)
	i := int(pos)
	if i >= n-1 {
		return f.table[n-1]
	}
	frac := pos - float64(i)
	return f.table[i] + (f.table[i+1]-f.table[i])*frac
}
