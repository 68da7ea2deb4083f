// Package filter holds the bandpass stages that sit between each channel's
// shaper and the matrix mixer.
package filter

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
)

const (
	MinFreq = 20.0
	MaxFreq = 20000.0
	MinQ    = 0.1
	MaxQ    = 100.0
	MaxGain = 4.0
)

// Band is one bandpass section with 0 dB gain at its centre frequency.
type Band struct {
	sampleRate float64
	freq, q    float64
	gain       float64
	section    *biquad.Section
}

// NewBand returns a bandpass band. freq and q are clamped.
func NewBand(sampleRate, freq, q float64) *Band {
	b := &Band{sampleRate: sampleRate, gain: 1, freq: 1000, q: 1}
	b.section = biquad.NewSection(biquad.Coefficients{})
	b.Set(freq, q)
	return b
}

// Set moves the band. Frequencies are clamped to [20, 20000] and below
// Nyquist; Q to [0.1, 100]. NaN leaves the band unchanged.
func (b *Band) Set(freq, q float64) {
	if math.IsNaN(freq) || math.IsNaN(q) {
		return
	}
	freq = core.Clamp(freq, MinFreq, MaxFreq)
	if nyq := b.sampleRate * 0.49; freq > nyq {
		freq = nyq
	}
	q = core.Clamp(q, MinQ, MaxQ)
	if freq == b.freq && q == b.q && b.section.Coefficients != (biquad.Coefficients{}) {
		return
	}
	b.freq, b.q = freq, q
	c := design.Bandpass(freq, q, b.sampleRate)
	// constant skirt gain peaks at q; scale to unity
	c.B0 /= q
	c.B1 /= q
	c.B2 /= q
	b.section.Coefficients = c
}

// SetGain sets the output gain in [0, 4].
func (b *Band) SetGain(g float64) {
	if math.IsNaN(g) {
		return
	}
	b.gain = core.Clamp(g, 0, MaxGain)
}

func (b *Band) Freq() float64 { return b.freq }
func (b *Band) Q() float64    { return b.q }
func (b *Band) Gain() float64 { return b.gain }

// ProcessSample filters one sample.
func (b *Band) ProcessSample(x float64) float64 {
	return b.section.ProcessSample(x) * b.gain
}

// Reset clears the filter state.
func (b *Band) Reset() { b.section.Reset() }

// Model selects a bank layout.
type Model int

const (
	// Model291 is a dual bandpass at 100 Hz and 1 kHz.
	Model291 Model = 291
	// Model295 is six bands spaced an octave apart from 100 Hz.
	Model295 Model = 295
)

// ParseModel maps a config value to a Model.
func ParseModel(v int) (Model, error) {
	switch Model(v) {
	case Model291, Model295:
		return Model(v), nil
	}
	return 0, fmt.Errorf("filter: unknown model %d (expected 291 or 295)", v)
}

const defaultQ = 2.0

// Bank is a set of parallel bandpass bands whose outputs are summed and
// blended with the dry input.
type Bank struct {
	model  Model
	bands  []*Band
	ratios []float64 // band frequency relative to band 0
	mix    float64
}

// NewBank builds a bank for model at the default frequencies.
func NewBank(sampleRate float64, model Model) *Bank {
	var freqs []float64
	switch model {
	case Model295:
		for i := 0; i < 6; i++ {
			freqs = append(freqs, 100*math.Pow(2, float64(i)))
		}
	default:
		model = Model291
		freqs = []float64{100, 1000}
	}
	bk := &Bank{model: model, mix: 1}
	for _, f := range freqs {
		bk.bands = append(bk.bands, NewBand(sampleRate, f, defaultQ))
		bk.ratios = append(bk.ratios, f/freqs[0])
	}
	return bk
}

// Model returns the bank layout.
func (bk *Bank) Model() Model { return bk.model }

// Len returns the number of bands.
func (bk *Bank) Len() int { return len(bk.bands) }

// Band returns band i or nil when out of range.
func (bk *Bank) Band(i int) *Band {
	if i < 0 || i >= len(bk.bands) {
		return nil
	}
	return bk.bands[i]
}

// SetBand configures one band. It reports false for an out-of-range index.
func (bk *Bank) SetBand(i int, freq, q, gain float64) bool {
	b := bk.Band(i)
	if b == nil {
		return false
	}
	b.Set(freq, q)
	b.SetGain(gain)
	return true
}

// SetFilter moves the whole bank so band 0 sits at freq, keeping the band
// spacing, and applies q to every band.
func (bk *Bank) SetFilter(freq, q float64) {
	for i, b := range bk.bands {
		b.Set(freq*bk.ratios[i], q)
	}
}

// SetMix blends filtered (1) and dry (0) signal.
func (bk *Bank) SetMix(m float64) {
	if math.IsNaN(m) {
		return
	}
	bk.mix = core.Clamp(m, 0, 1)
}

// Mix returns the wet share.
func (bk *Bank) Mix() float64 { return bk.mix }

// ProcessSample runs x through every band.
func (bk *Bank) ProcessSample(x float64) float64 {
	wet := 0.0
	for _, b := range bk.bands {
		wet += b.ProcessSample(x)
	}
	return core.FlushDenormals(bk.mix*wet + (1-bk.mix)*x)
}

// Reset clears every band.
func (bk *Bank) Reset() {
	for _, b := range bk.bands {
		b.Reset()
	}
}
