// Package param implements a sample-accurate automation timeline for a
// single control value. Values change only through scheduled events that are
// evaluated as the render clock advances, so every modulation lands on an
// exact sample and overlapping ramps resolve as last-write-wins.
package param

import "math"

type eventKind int

const (
	evSet eventKind = iota
	evLinear
	evExponential
	evTarget
)

type event struct {
	kind  eventKind
	time  float64
	value float64
	tau   float64

	// set when a target event becomes active
	started    bool
	startValue float64
}

// Param is one automatable value clamped to [min, max].
type Param struct {
	value    float64
	min, max float64
	events   []event

	// start point of the segment leading into events[0]
	anchorTime  float64
	anchorValue float64
	lastTime    float64
}

// New returns a Param holding value, clamped to [min, max].
func New(value, min, max float64) *Param {
	if min > max {
		min, max = max, min
	}
	p := &Param{min: min, max: max}
	p.value = p.clamp(value)
	p.anchorValue = p.value
	return p
}

func (p *Param) clamp(v float64) float64 {
	if v < p.min {
		return p.min
	}
	if v > p.max {
		return p.max
	}
	return v
}

// Value returns the most recently evaluated value.
func (p *Param) Value() float64 { return p.value }

// Min returns the lower clamp bound.
func (p *Param) Min() float64 { return p.min }

// Max returns the upper clamp bound.
func (p *Param) Max() float64 { return p.max }

// Pending returns the number of scheduled events not yet consumed.
func (p *Param) Pending() int { return len(p.events) }

// SetValue drops every scheduled event and jumps to v.
func (p *Param) SetValue(v float64) {
	if math.IsNaN(v) {
		return
	}
	p.events = p.events[:0]
	p.value = p.clamp(v)
	p.anchorTime = p.lastTime
	p.anchorValue = p.value
}

func (p *Param) insert(e event) {
	if math.IsNaN(e.value) || math.IsNaN(e.time) {
		return
	}
	e.value = p.clamp(e.value)
	i := len(p.events)
	for i > 0 && p.events[i-1].time > e.time {
		i--
	}
	p.events = append(p.events, event{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = e
}

// SetValueAtTime jumps to v at time t.
func (p *Param) SetValueAtTime(v, t float64) {
	p.insert(event{kind: evSet, time: t, value: v})
}

// LinearRampToValueAtTime ramps linearly from the previous event to v, ending at t.
func (p *Param) LinearRampToValueAtTime(v, t float64) {
	p.insert(event{kind: evLinear, time: t, value: v})
}

// ExponentialRampToValueAtTime ramps exponentially from the previous event to
// v, ending at t. Ramps that cross or touch zero fall back to linear.
func (p *Param) ExponentialRampToValueAtTime(v, t float64) {
	p.insert(event{kind: evExponential, time: t, value: v})
}

// SetTargetAtTime starts an exponential approach to v at time t with time constant tau.
func (p *Param) SetTargetAtTime(v, t, tau float64) {
	if tau <= 0 {
		p.SetValueAtTime(v, t)
		return
	}
	p.insert(event{kind: evTarget, time: t, value: v, tau: tau})
}

// CancelScheduledValues removes every event scheduled at or after t and holds
// the current value.
func (p *Param) CancelScheduledValues(t float64) {
	keep := p.events[:0]
	for _, e := range p.events {
		if e.time < t {
			keep = append(keep, e)
		}
	}
	p.events = keep
	if len(p.events) == 0 {
		p.anchorTime = p.lastTime
		p.anchorValue = p.value
	}
}

// RampTo cancels pending automation from now on and glides linearly to v over
// dur seconds. A non-positive duration sets v at now.
func (p *Param) RampTo(v, now, dur float64) {
	p.CancelScheduledValues(now)
	if dur <= 0 {
		p.SetValueAtTime(v, now)
		return
	}
	p.SetValueAtTime(p.value, now)
	p.LinearRampToValueAtTime(v, now+dur)
}

// Advance evaluates the timeline at time t and returns the value. Calls must
// use non-decreasing t.
func (p *Param) Advance(t float64) float64 {
	p.lastTime = t
	for len(p.events) > 0 {
		e := &p.events[0]
		switch e.kind {
		case evSet:
			if t < e.time {
				p.holdAnchor(t)
				return p.value
			}
			p.consume(e.time, e.value)
		case evLinear, evExponential:
			if t >= e.time {
				p.consume(e.time, e.value)
				continue
			}
			span := e.time - p.anchorTime
			if span <= 0 {
				p.consume(e.time, e.value)
				continue
			}
			frac := (t - p.anchorTime) / span
			if frac < 0 {
				frac = 0
			}
			p.value = p.clamp(interpolate(e.kind, p.anchorValue, e.value, frac))
			return p.value
		case evTarget:
			if t < e.time {
				p.holdAnchor(t)
				return p.value
			}
			if !e.started {
				e.started = true
				e.startValue = p.value
			}
			if len(p.events) > 1 && t >= p.events[1].time {
				at := p.events[1].time
				v := e.value + (e.startValue-e.value)*math.Exp(-(at-e.time)/e.tau)
				p.consume(at, v)
				continue
			}
			p.value = p.clamp(e.value + (e.startValue-e.value)*math.Exp(-(t-e.time)/e.tau))
			return p.value
		}
	}
	p.holdAnchor(t)
	return p.value
}

func (p *Param) holdAnchor(t float64) {
	p.anchorTime = t
	p.anchorValue = p.value
}

func (p *Param) consume(at, v float64) {
	p.value = p.clamp(v)
	p.anchorTime = at
	p.anchorValue = p.value
	p.events = p.events[1:]
}

func interpolate(kind eventKind, from, to, frac float64) float64 {
	if frac >= 1 {
		return to
	}
	if kind == evExponential && from*to > 0 {
		return from * math.Pow(to/from, frac)
	}
	return from + (to-from)*frac
}
