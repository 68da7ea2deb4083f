// Package noise implements the Source of Uncertainty: filtered white noise,
// clock-stepped random voltages with a slew limiter, sample and hold, and
// probabilistic gates.
package noise

import (
	"math"
	"math/rand/v2"

	"github.com/cbegin/buchla-go/internal/filter"
	"github.com/cbegin/buchla-go/internal/lfo"
	"github.com/cbegin/buchla-go/internal/param"
	"github.com/cbegin/buchla-go/internal/schedule"
	"github.com/cwbudde/algo-dsp/dsp/core"
)

const (
	DefaultVolume     = 0.3
	DefaultFilterFreq = 2000.0
	DefaultFilterQ    = 3.0
	MaxFilterQ        = 10.0
	GateLength        = 0.01

	minSlewHz = 0.1
	maxSlewHz = 100.0
)

// Params configures the noise voice.
type Params struct {
	Volume     float64
	FilterFreq float64
	FilterQ    float64
}

// Source is the noise channel's signal and modulation generator.
type Source struct {
	sampleRate float64
	sched      *schedule.Scheduler

	lfsr   uint32
	band   *filter.Band
	volume *param.Param

	stepper  *lfo.LFO
	cvRange  float64
	slew     float64
	slewCoef float64
	cv       float64
	held     float64
	steps    int

	gate       *param.Param
	gateRate   float64
	gateProb   float64
	gateHandle schedule.Handle
	rng        *rand.Rand
	onGate     func(t float64)
	gates      int
}

// New returns a Source whose random streams all derive from seed.
func New(sched *schedule.Scheduler, seed uint64) *Source {
	sr := sched.SampleRate()
	lfsr := uint32(seed) ^ uint32(seed>>32)
	if lfsr == 0 {
		lfsr = 0xACE1
	}
	s := &Source{
		sampleRate: sr,
		sched:      sched,
		lfsr:       lfsr,
		band:       filter.NewBand(sr, DefaultFilterFreq, DefaultFilterQ),
		volume:     param.New(DefaultVolume, 0, 1),
		stepper:    lfo.New(seed + 1),
		cvRange:    1,
		gate:       param.New(0, 0, 1),
		rng:        rand.New(rand.NewPCG(seed+2, seed^0xD1B54A32D192ED03)),
	}
	s.stepper.Set(1, 0, lfo.ShapeRandom)
	s.stepper.Resample()
	s.SetRandomVoltages(1, 0)
	s.cv = s.target()
	return s
}

// white returns the next xorshift value in [-1, 1].
func (s *Source) white() float64 {
	x := s.lfsr
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	s.lfsr = x
	return float64(int32(x)) / float64(math.MaxInt32)
}

// SetParams sets volume, filter frequency and Q. Volume glides over 10 ms
// from now. Values are clamped; NaN fields are ignored.
func (s *Source) SetParams(p Params, now float64) {
	if !math.IsNaN(p.Volume) {
		s.volume.RampTo(core.Clamp(p.Volume, 0, 1), now, GateLength)
	}
	freq, q := s.band.Freq(), s.band.Q()
	if !math.IsNaN(p.FilterFreq) {
		freq = p.FilterFreq
	}
	if !math.IsNaN(p.FilterQ) {
		q = core.Clamp(p.FilterQ, filter.MinQ, MaxFilterQ)
	}
	s.band.Set(freq, q)
}

// Params returns the current settings.
func (s *Source) Params() Params {
	return Params{Volume: s.volume.Value(), FilterFreq: s.band.Freq(), FilterQ: s.band.Q()}
}

// Step draws the next random voltage. It is driven by the master clock's
// sixteenth pulse, so the voltage holds while the clock is stopped.
func (s *Source) Step(t float64) {
	s.stepper.Resample()
	s.steps++
}

// Steps returns how many times the random voltage has stepped.
func (s *Source) Steps() int { return s.steps }

// SetRandomVoltages sets the CV range (0..1 output scaled by rng) and the
// slew time in seconds.
func (s *Source) SetRandomVoltages(rng, slew float64) {
	if !math.IsNaN(rng) {
		s.cvRange = core.Clamp(rng, 0, 1)
	}
	if math.IsNaN(slew) || slew < 0 {
		return
	}
	s.slew = slew
	hz := maxSlewHz
	if slew > 0 {
		hz = core.Clamp(1/slew, minSlewHz, maxSlewHz)
	}
	s.slewCoef = 1 - math.Exp(-2*math.Pi*hz/s.sampleRate)
}

// Slew returns the slew time in seconds.
func (s *Source) Slew() float64 { return s.slew }

// SetRandomGates fires a GateLength pulse with the given probability every
// 60/rate seconds starting at now. rate <= 0 stops the gates.
func (s *Source) SetRandomGates(rate, probability, now float64) {
	if math.IsNaN(rate) || math.IsInf(rate, 0) {
		return
	}
	if !math.IsNaN(probability) {
		s.gateProb = core.Clamp(probability, 0, 1)
	}
	if rate <= 0 {
		s.StopGates()
		return
	}
	s.gateRate = rate
	interval := 60 / rate
	if s.sched.Active(s.gateHandle) {
		s.sched.SetInterval(s.gateHandle, interval)
		return
	}
	s.gateHandle = s.sched.Every(now, interval, s.fireGate)
}

func (s *Source) fireGate(t float64) {
	if s.rng.Float64() >= s.gateProb {
		return
	}
	s.gates++
	s.gate.SetValueAtTime(1, t)
	s.gate.SetValueAtTime(0, t+GateLength)
	if s.onGate != nil {
		s.onGate(t)
	}
}

// StopGates clears the gate generator.
func (s *Source) StopGates() {
	s.sched.Clear(s.gateHandle)
	s.gateHandle = 0
}

// GatesActive reports whether the gate generator is scheduled.
func (s *Source) GatesActive() bool { return s.sched.Active(s.gateHandle) }

// OnGate registers fn to run whenever a random gate fires.
func (s *Source) OnGate(fn func(t float64)) { s.onGate = fn }

// GateCount returns the number of gates fired so far.
func (s *Source) GateCount() int { return s.gates }

func (s *Source) target() float64 {
	return (s.stepper.Held() + 1) / 2 * s.cvRange
}

// SampleAndHold latches the current random voltage and returns it.
func (s *Source) SampleAndHold() float64 {
	s.held = s.cv
	return s.held
}

// Held returns the last latched voltage.
func (s *Source) Held() float64 { return s.held }

// CV returns the slewed random voltage in [0, range].
func (s *Source) CV() float64 { return s.cv }

// Gate returns the current gate level.
func (s *Source) Gate() float64 { return s.gate.Value() }

// Sample advances every generator to time t and returns the audio sample.
func (s *Source) Sample(t float64) float64 {
	s.cv += (s.target() - s.cv) * s.slewCoef
	s.gate.Advance(t)
	return s.band.ProcessSample(s.white()) * s.volume.Advance(t)
}

// Reset clears filter state and stops the gates.
func (s *Source) Reset() {
	s.StopGates()
	s.band.Reset()
	s.gate.SetValue(0)
}
