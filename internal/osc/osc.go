// Package osc implements the melodic source of a channel: a morphing,
// band-limited oscillator with detune spread, internal FM and slow drift.
package osc

import (
	"math"

	"github.com/cbegin/buchla-go/internal/lfo"
	"github.com/cbegin/buchla-go/internal/param"
	"github.com/cwbudde/algo-dsp/dsp/core"
)

const (
	MinFrequency     = 20.0
	MaxFrequency     = 20000.0
	DefaultFrequency = 440.0
	DefaultGlide     = 0.005
	DefaultFMRatio   = 2.0

	// modulation index at fmAmount 1
	fmIndexScale = 5.0
	// detune of the outer voices at spread 1, in cents
	maxSpreadCents = 10.0
)

// MIDIToFreq converts a MIDI note number to Hz (A4 = 69 = 440 Hz).
func MIDIToFreq(note float64) float64 {
	return 440 * math.Pow(2, (note-69)/12)
}

// VOctToFreq converts a V/oct control voltage relative to middle C to Hz.
func VOctToFreq(cv float64) float64 {
	return MIDIToFreq(60 + 12*cv)
}

// Oscillator produces one channel's periodic signal.
type Oscillator struct {
	sampleRate float64
	freq       *param.Param
	glide      float64

	shape    float64
	fmAmount float64
	fmRatio  float64
	spread   float64

	phases   [3]float64
	ratios   [3]float64
	modPhase float64

	drift *lfo.LFO
}

// New returns an oscillator at DefaultFrequency with a sawtooth shape.
func New(sampleRate float64, seed uint64) *Oscillator {
	o := &Oscillator{
		sampleRate: sampleRate,
		freq:       param.New(DefaultFrequency, MinFrequency, MaxFrequency),
		glide:      DefaultGlide,
		fmRatio:    DefaultFMRatio,
		ratios:     [3]float64{1, 1, 1},
		drift:      lfo.New(seed),
	}
	// spread the sub-oscillators so detuned voices don't start phase-locked
	o.phases[1] = 1.0 / 3
	o.phases[2] = 2.0 / 3
	return o
}

// SetGlide sets the ramp time used for frequency changes during playback.
func (o *Oscillator) SetGlide(seconds float64) {
	if seconds < 0 || math.IsNaN(seconds) {
		return
	}
	o.glide = seconds
}

// SetFrequency clamps hz to [20, 20000]. With ramp set the change glides
// over the glide time starting at now; otherwise it lands at now.
// NaN and infinities are rejected.
func (o *Oscillator) SetFrequency(hz, now float64, ramp bool) bool {
	if math.IsNaN(hz) || math.IsInf(hz, 0) {
		return false
	}
	hz = core.Clamp(hz, MinFrequency, MaxFrequency)
	if ramp {
		o.freq.RampTo(hz, now, o.glide)
	} else {
		o.freq.RampTo(hz, now, 0)
	}
	return true
}

// Frequency returns the current (possibly gliding) frequency.
func (o *Oscillator) Frequency() float64 { return o.freq.Value() }

// SetShape sets the waveform morph position in [0,1]:
// 0 saw, 1/3 pulse, 2/3 triangle, 1 sine.
func (o *Oscillator) SetShape(amount float64) {
	if math.IsNaN(amount) {
		return
	}
	o.shape = core.Clamp(amount, 0, 1)
}

// Shape returns the morph position.
func (o *Oscillator) Shape() float64 { return o.shape }

// SetFMAmount sets the depth of the internal sine modulator in [0,1].
func (o *Oscillator) SetFMAmount(amount float64) {
	if math.IsNaN(amount) {
		return
	}
	o.fmAmount = core.Clamp(amount, 0, 1)
}

// FMAmount returns the FM depth.
func (o *Oscillator) FMAmount() float64 { return o.fmAmount }

// SetFMRatio sets modulator frequency as a multiple of the carrier.
func (o *Oscillator) SetFMRatio(ratio float64) {
	if ratio <= 0 || math.IsNaN(ratio) {
		return
	}
	o.fmRatio = ratio
}

// SetDetuneSpread detunes the outer sub-oscillators by ±spread·10 cents.
func (o *Oscillator) SetDetuneSpread(spread float64) {
	if math.IsNaN(spread) {
		return
	}
	o.spread = core.Clamp(spread, 0, 1)
	cents := o.spread * maxSpreadCents
	o.ratios[1] = math.Pow(2, -cents/1200)
	o.ratios[2] = math.Pow(2, cents/1200)
}

// DetuneSpread returns the spread amount.
func (o *Oscillator) DetuneSpread() float64 { return o.spread }

// SetDrift sets a slow pitch wander of depth cents at rate Hz.
func (o *Oscillator) SetDrift(cents, rateHz float64) {
	if math.IsNaN(cents) || math.IsNaN(rateHz) || cents < 0 || rateHz < 0 {
		return
	}
	o.drift.Set(cents, rateHz, lfo.ShapeTriangle)
}

// Reset zeros the phases.
func (o *Oscillator) Reset() {
	o.phases = [3]float64{0, 1.0 / 3, 2.0 / 3}
	o.modPhase = 0
	o.drift.Reset()
}

// Sample renders the sample at time t.
func (o *Oscillator) Sample(t float64) float64 {
	f := o.freq.Advance(t)
	if o.drift.Active() {
		f *= math.Pow(2, o.drift.Sample(o.sampleRate)/1200)
	}

	pm := 0.0
	if o.fmAmount > 0 {
		pm = o.fmAmount * fmIndexScale * math.Sin(2*math.Pi*o.modPhase) / (2 * math.Pi)
		o.modPhase = wrap(o.modPhase + f*o.fmRatio/o.sampleRate)
	}

	voices := 1
	if o.spread > 0 {
		voices = 3
	}
	sum := 0.0
	for i := 0; i < voices; i++ {
		inc := f * o.ratios[i] / o.sampleRate
		sum += morph(o.shape, wrap(o.phases[i]+pm), inc)
		o.phases[i] = wrap(o.phases[i] + inc)
	}
	return sum / float64(voices)
}

func wrap(p float64) float64 {
	p -= math.Floor(p)
	return p
}

// morph blends neighbouring waveforms; each region ends exactly where the next
// begins, so the output is continuous in shape.
func morph(shape, phase, inc float64) float64 {
	const third = 1.0 / 3
	switch {
	case shape < third:
		m := shape / third
		return (1-m)*saw(phase, inc) + m*pulse(phase, inc)
	case shape < 2*third:
		m := (shape - third) / third
		return (1-m)*pulse(phase, inc) + m*triangle(phase)
	default:
		m := (shape - 2*third) / third
		if m > 1 {
			m = 1
		}
		return (1-m)*triangle(phase) + m*math.Sin(2*math.Pi*phase)
	}
}

func saw(phase, inc float64) float64 {
	return 2*phase - 1 - polyBLEP(phase, inc)
}

func pulse(phase, inc float64) float64 {
	v := 1.0
	if phase >= 0.5 {
		v = -1
	}
	return v + polyBLEP(phase, inc) - polyBLEP(wrap(phase+0.5), inc)
}

func triangle(phase float64) float64 {
	return 1 - 4*math.Abs(phase-0.5)
}

// polyBLEP is the two-sample polynomial correction for a unit step at phase 0.
func polyBLEP(t, dt float64) float64 {
	if dt <= 0 {
		return 0
	}
	if t < dt {
		t /= dt
		return t + t - t*t - 1
	}
	if t > 1-dt {
		t = (t - 1) / dt
		return t*t + t + t + 1
	}
	return 0
}
