package lpg

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
)

// State is an envelope stage.
type State int

const (
	StateIdle State = iota
	StateAttack
	StateDecay
	StateSustain
	StateRelease
)

func (s State) String() string {
	switch s {
	case StateAttack:
		return "attack"
	case StateDecay:
		return "decay"
	case StateSustain:
		return "sustain"
	case StateRelease:
		return "release"
	default:
		return "idle"
	}
}

const (
	DefaultAttack  = 0.1
	DefaultDecay   = 0.2
	DefaultSustain = 0.5
	DefaultRelease = 0.5
	MinStageTime   = 0.001

	MinVelocity = 0.2
)

// EnvelopeParams are the ADSR times in seconds and the sustain level.
// NaN fields leave the current value unchanged.
type EnvelopeParams struct {
	Attack, Decay, Sustain, Release float64
}

// DefaultEnvelope returns the factory ADSR.
func DefaultEnvelope() EnvelopeParams {
	return EnvelopeParams{DefaultAttack, DefaultDecay, DefaultSustain, DefaultRelease}
}

// envelope is a linear-segment ADSR run once per sample.
type envelope struct {
	p     EnvelopeParams
	state State
	value float64
	depth float64

	gated     bool
	decayTime float64 // decay length for the current note
	// level the release stage starts from
	releaseFrom float64
}

func newEnvelope() *envelope {
	return &envelope{p: DefaultEnvelope(), depth: 1}
}

func (e *envelope) set(p EnvelopeParams) {
	stage := func(cur, v float64) float64 {
		if math.IsNaN(v) {
			return cur
		}
		return math.Max(MinStageTime, v)
	}
	e.p.Attack = stage(e.p.Attack, p.Attack)
	e.p.Decay = stage(e.p.Decay, p.Decay)
	e.p.Release = stage(e.p.Release, p.Release)
	if !math.IsNaN(p.Sustain) {
		e.p.Sustain = core.Clamp(p.Sustain, 0, 1)
	}
}

// trigger starts the attack from the current level. A positive duration
// replaces the decay length; gated notes hold at sustain until released.
func (e *envelope) trigger(velocity, duration float64, gated bool) {
	if math.IsNaN(velocity) {
		velocity = 1
	}
	e.depth = core.Clamp(velocity, MinVelocity, 1)
	e.decayTime = e.p.Decay
	if duration > 0 && !math.IsInf(duration, 0) {
		e.decayTime = math.Max(MinStageTime, duration)
	}
	e.gated = gated
	e.state = StateAttack
}

func (e *envelope) release() {
	e.gated = false
	if e.state == StateIdle || e.state == StateRelease {
		return
	}
	e.state = StateRelease
	e.releaseFrom = e.value
}

// next advances one sample and returns the envelope level scaled by velocity.
func (e *envelope) next(sampleRate float64) float64 {
	switch e.state {
	case StateAttack:
		e.value += 1 / (e.p.Attack * sampleRate)
		if e.value >= 1 {
			e.value = 1
			e.state = StateDecay
		}
	case StateDecay:
		e.value -= (1 - e.p.Sustain) / (e.decayTime * sampleRate)
		if e.value <= e.p.Sustain {
			e.value = e.p.Sustain
			if e.gated {
				e.state = StateSustain
			} else {
				e.state = StateRelease
				e.releaseFrom = e.value
			}
		}
	case StateSustain:
		e.value = e.p.Sustain
	case StateRelease:
		step := e.releaseFrom / (e.p.Release * sampleRate)
		if step <= 0 {
			step = 1
		}
		e.value -= step
		if e.value <= 0.0001 {
			e.value = 0
			e.state = StateIdle
		}
	case StateIdle:
		e.value = 0
	}
	return e.value * e.depth
}
