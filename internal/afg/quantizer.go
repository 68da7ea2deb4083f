package afg

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
)

// Scale is an ascending list of semitone offsets within an octave.
type Scale []float64

var scales = map[string]Scale{
	"chromatic":  {0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11},
	"major":      {0, 2, 4, 5, 7, 9, 11},
	"minor":      {0, 2, 3, 5, 7, 8, 10},
	"pentatonic": {0, 2, 4, 7, 9},
	"bright":     {0, 2, 4, 7, 9},
	"dark":       {0, 3, 5, 7, 10},
	"energetic":  {0, 2, 4, 7, 9, 12},
}

// ScaleNamed returns a copy of a named scale.
func ScaleNamed(name string) (Scale, error) {
	s, ok := scales[name]
	if !ok {
		return nil, fmt.Errorf("afg: unknown scale %q", name)
	}
	return append(Scale(nil), s...), nil
}

// ScaleNames lists the named scales in sorted order.
func ScaleNames() []string {
	names := make([]string, 0, len(scales))
	for n := range scales {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// TraverseMode is how the quantizer walks a scale.
type TraverseMode int

const (
	Up TraverseMode = iota
	Down
	UpDown
	Random
)

var traverseNames = []string{"up", "down", "upDown", "random"}

func (m TraverseMode) String() string {
	if m < 0 || int(m) >= len(traverseNames) {
		return fmt.Sprintf("TraverseMode(%d)", int(m))
	}
	return traverseNames[m]
}

// ParseTraverseMode maps "up", "down", "upDown" or "random" to a mode.
func ParseTraverseMode(name string) (TraverseMode, error) {
	for i, n := range traverseNames {
		if n == name {
			return TraverseMode(i), nil
		}
	}
	return Up, fmt.Errorf("afg: unknown traverse mode %q", name)
}

// TraverseState is the walk position. Dir is +1 or -1; zero means +1.
type TraverseState struct {
	Index int
	Dir   int
}

// Traverse returns the scale degree at st.Index and the state that follows.
// rng is only used in Random mode and may be nil otherwise.
func Traverse(scale Scale, mode TraverseMode, st TraverseState, rng *rand.Rand) (float64, TraverseState) {
	n := len(scale)
	if n == 0 {
		return 0, TraverseState{}
	}
	i := ((st.Index % n) + n) % n
	value := scale[i]
	next := TraverseState{Index: i, Dir: st.Dir}
	if next.Dir == 0 {
		next.Dir = 1
	}

	switch mode {
	case Down:
		next.Index = (i - 1 + n) % n
	case UpDown:
		if n == 1 {
			break
		}
		j := i + next.Dir
		if j >= n || j < 0 {
			next.Dir = -next.Dir
			j = i + next.Dir
		}
		next.Index = j
	case Random:
		if rng != nil {
			next.Index = rng.IntN(n)
		}
	default:
		next.Index = (i + 1) % n
	}
	return value, next
}

// Quantize snaps a volts-per-octave CV to the nearest degree of scale.
func Quantize(cv float64, scale Scale) float64 {
	if len(scale) == 0 || !finite(cv) {
		return cv
	}
	semis := cv * 12
	octave := math.Floor(semis / 12)
	within := semis - octave*12
	best, dist := scale[0], math.Inf(1)
	for _, d := range scale {
		if e := math.Abs(within - d); e < dist {
			best, dist = d, e
		}
	}
	// the next octave's root is a candidate for notes near the top
	if e := math.Abs(within - (scale[0] + 12)); e < dist {
		best = scale[0] + 12
	}
	return (octave*12 + best) / 12
}

// QuantizerParams configures the per-head quantizer.
type QuantizerParams struct {
	Enabled  bool
	Scale    Scale
	Root     float64 // V/oct CV the traversal is built on
	Traverse bool
	Mode     TraverseMode
}
