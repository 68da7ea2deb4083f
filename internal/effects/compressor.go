package effects

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
)

// Compressor is a channel-linked compressor: one envelope follows the
// loudest channel so the quad image does not shift under gain reduction.
type Compressor struct {
	threshold float64
	ratio     float64
	attack    float64 // coefficient
	release   float64 // coefficient
	makeup    float64
	env       float64
	gain      float64
}

// NewCompressor creates a compressor.
// thresholdDB: threshold in dB (e.g., -12)
// ratio: compression ratio, at least 1
// attackMs, releaseMs: follower times in ms
// makeupDB: makeup gain in dB
func NewCompressor(sampleRate int, thresholdDB, ratio, attackMs, releaseMs, makeupDB float64) *Compressor {
	sr := float64(sampleRate)
	return &Compressor{
		threshold: core.DBToLinear(thresholdDB),
		ratio:     math.Max(1, ratio),
		attack:    1.0 - math.Exp(-1.0/(math.Max(attackMs, 0.01)*sr/1000.0)),
		release:   1.0 - math.Exp(-1.0/(math.Max(releaseMs, 0.01)*sr/1000.0)),
		makeup:    core.DBToLinear(makeupDB),
		gain:      1,
	}
}

func (c *Compressor) Process(f *Frame) {
	peak := 0.0
	for _, v := range f {
		peak = math.Max(peak, math.Abs(v))
	}
	if peak > c.env {
		c.env += c.attack * (peak - c.env)
	} else {
		c.env += c.release * (peak - c.env)
	}
	c.gain = c.computeGain(c.env)
	g := c.gain * c.makeup
	for i := range f {
		f[i] *= g
	}
}

func (c *Compressor) computeGain(env float64) float64 {
	if env <= c.threshold || c.threshold <= 0 {
		return 1.0
	}
	over := env / c.threshold
	return math.Pow(over, 1.0/c.ratio-1)
}

// GainReduction returns the last applied gain before makeup, 1 meaning none.
func (c *Compressor) GainReduction() float64 { return c.gain }

func (c *Compressor) Reset() {
	c.env = 0
	c.gain = 1
}
