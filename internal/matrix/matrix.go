// Package matrix implements the 4×4 crosspoint mixer that routes the channel
// sources into the low-pass gates.
package matrix

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/viterin/vek"
)

// Size is the number of inputs and outputs.
const Size = 4

// Preset names a fixed crosspoint layout.
type Preset int

const (
	// PresetDiagonal keeps each channel mostly on its own output with some
	// bleed into the others.
	PresetDiagonal Preset = iota
	// PresetIdentity routes input i to output i only.
	PresetIdentity
)

// ParsePreset maps a config name to a Preset.
func ParsePreset(name string) (Preset, error) {
	switch name {
	case "diagonal", "":
		return PresetDiagonal, nil
	case "identity":
		return PresetIdentity, nil
	}
	return PresetDiagonal, fmt.Errorf("matrix: unknown preset %q", name)
}

// Grid is a full crosspoint table indexed [input][output].
type Grid [Size][Size]float64

// PresetGrid returns the levels for p.
func PresetGrid(p Preset) Grid {
	var g Grid
	for i := 0; i < Size; i++ {
		for j := 0; j < Size; j++ {
			switch {
			case p == PresetIdentity && i == j:
				g[i][j] = 1
			case p == PresetIdentity:
			case i == j:
				g[i][j] = 0.7
			case i == 0:
				g[i][j] = 0.3
			case i == 1:
				g[i][j] = 0.2
			default:
				g[i][j] = 0.1
			}
		}
	}
	return g
}

// Mixer sums its inputs into its outputs through the crosspoint grid.
// Level changes are spread over the next processed block.
type Mixer struct {
	target  Grid
	applied Grid
	ramp    []float64
	tmp     []float64
	tmp2    []float64
}

// New returns a mixer loaded with the diagonal preset.
func New() *Mixer {
	m := &Mixer{}
	m.ApplyPreset(PresetDiagonal)
	m.applied = m.target
	return m
}

// SetCrosspoint sets the level from input i to output j, clamped to [0,1].
// It reports false for out-of-range indices or NaN.
func (m *Mixer) SetCrosspoint(i, j int, level float64) bool {
	if i < 0 || i >= Size || j < 0 || j >= Size || math.IsNaN(level) {
		return false
	}
	m.target[i][j] = core.Clamp(level, 0, 1)
	return true
}

// Crosspoint returns the target level from input i to output j, or 0 when out
// of range.
func (m *Mixer) Crosspoint(i, j int) float64 {
	if i < 0 || i >= Size || j < 0 || j >= Size {
		return 0
	}
	return m.target[i][j]
}

// Grid returns the target levels.
func (m *Mixer) Grid() Grid { return m.target }

// SetGrid replaces every crosspoint, clamping each level.
func (m *Mixer) SetGrid(g Grid) {
	for i := range g {
		for j := range g[i] {
			m.SetCrosspoint(i, j, g[i][j])
		}
	}
}

// ApplyPreset loads a preset layout.
func (m *Mixer) ApplyPreset(p Preset) {
	m.target = PresetGrid(p)
}

// Mix routes a single frame.
func (m *Mixer) Mix(in [Size]float64) [Size]float64 {
	var out [Size]float64
	for i := 0; i < Size; i++ {
		for j := 0; j < Size; j++ {
			out[j] += in[i] * m.target[i][j]
		}
	}
	m.applied = m.target
	return out
}

func (m *Mixer) grow(n int) {
	if len(m.ramp) == n {
		return
	}
	m.ramp = make([]float64, n)
	for k := range m.ramp {
		m.ramp[k] = float64(k+1) / float64(n)
	}
	m.tmp = make([]float64, n)
	m.tmp2 = make([]float64, n)
}

// Process mixes one block. in and out hold Size equal-length buffers and must
// not alias.
func (m *Mixer) Process(in, out *[Size][]float64) {
	n := len(in[0])
	if n == 0 {
		return
	}
	m.grow(n)
	for j := 0; j < Size; j++ {
		vek.Zeros_Into(out[j][:n], n)
		for i := 0; i < Size; i++ {
			from, to := m.applied[i][j], m.target[i][j]
			if from == 0 && to == 0 {
				continue
			}
			vek.MulNumber_Into(m.tmp, in[i][:n], from)
			if to != from {
				vek.Mul_Into(m.tmp2, in[i][:n], m.ramp)
				vek.MulNumber_Inplace(m.tmp2, to-from)
				vek.Add_Inplace(m.tmp, m.tmp2)
			}
			vek.Add_Inplace(out[j][:n], m.tmp)
		}
	}
	m.applied = m.target
}
