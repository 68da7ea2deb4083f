// Package afg implements the arbitrary function generator: a 16-step memory
// read by two independent playheads, with external CV substitution, a scale
// quantizer and strobe addressing.
package afg

import (
	"math"
	"math/rand/v2"

	"github.com/cbegin/buchla-go/internal/clock"
	"github.com/cbegin/buchla-go/internal/param"
	"github.com/cbegin/buchla-go/internal/schedule"
	"github.com/cwbudde/algo-dsp/dsp/core"
)

const (
	NumSteps     = 16
	NumPlayheads = 2
	Channels     = 4
	NumInputs    = 4

	DefaultDuration = 0.25
	MinDuration     = 0.01
	PulseWidth      = 0.01

	MinTimeMultiplier = 0.01
	MaxTimeMultiplier = 64.0
)

// Step is one cell of the step memory.
type Step struct {
	CV            float64 // V/oct relative to middle C
	CV2           float64 // secondary bank, velocity for loaded notes
	Trigger       float64 // 0 or 1
	ExternalMode  bool
	ExternalInput int
	Duration      float64
	Channel       int
}

// DefaultStep is a silent step of DefaultDuration.
func DefaultStep() Step {
	return Step{CV2: 1, Duration: DefaultDuration}
}

func sanitize(s Step) Step {
	if !finite(s.CV) {
		s.CV = 0
	}
	if !finite(s.CV2) {
		s.CV2 = 1
	}
	s.CV2 = core.Clamp(s.CV2, 0, 1)
	if s.Trigger >= 0.5 {
		s.Trigger = 1
	} else {
		s.Trigger = 0
	}
	if !finite(s.Duration) {
		s.Duration = DefaultDuration
	}
	s.Duration = math.Max(MinDuration, s.Duration)
	s.ExternalInput = min(max(s.ExternalInput, 0), NumInputs-1)
	s.Channel = min(max(s.Channel, 0), Channels-1)
	return s
}

// SourceKind selects what moves a playhead.
type SourceKind int

const (
	// SourceInternal advances by the step durations.
	SourceInternal SourceKind = iota
	// SourceClock advances on a master clock division.
	SourceClock
)

// Source is a playhead's timing source.
type Source struct {
	Kind     SourceKind
	Division clock.Division
}

// Playhead is a read position in the step memory.
type Playhead struct {
	CurrentStep     int
	Running         bool
	TimeMultiplier  float64
	LastTriggerTime float64
	Source          Source

	handle schedule.Handle
	pulses int
	walk   TraverseState
}

// StepEvent describes one playhead advance.
type StepEvent struct {
	Head     int
	Step     int
	Time     float64
	CV       float64
	CV2      float64
	Trigger  float64
	Duration float64
	Channel  int
	// Wrapped is set when the head moved from the last step back to 0.
	Wrapped bool
}

// AFG owns the step memory and both playheads.
type AFG struct {
	sched *schedule.Scheduler

	steps    [NumSteps]Step
	heads    [NumPlayheads]Playhead
	external [NumInputs]float64
	loaded   bool

	cv, cv2, trig [NumPlayheads]*param.Param

	quant QuantizerParams
	rng   *rand.Rand

	strobe  *param.Param
	address float64
	edge    *EdgeDetector

	listeners []func(StepEvent)
}

// New returns an AFG with default steps and both heads stopped.
func New(sched *schedule.Scheduler, seed uint64) *AFG {
	a := &AFG{
		sched:  sched,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15)),
		strobe: param.New(0, 0, 1),
	}
	for i := range a.steps {
		a.steps[i] = DefaultStep()
	}
	for h := range a.heads {
		a.heads[h].TimeMultiplier = 1
		a.cv[h] = param.New(0, -10, 10)
		a.cv2[h] = param.New(0, 0, 1)
		a.trig[h] = param.New(0, 0, 1)
	}
	a.edge = NewEdgeDetector(func(t float64) {
		a.JumpToStep(a.addressStep(), t)
	})
	return a
}

// OnStep registers a listener called after every advance.
func (a *AFG) OnStep(fn func(StepEvent)) {
	if fn != nil {
		a.listeners = append(a.listeners, fn)
	}
}

// LoadSequence stops both heads, rewinds them and replaces the step memory.
// It returns the number of notes that were not placed.
func (a *AFG) LoadSequence(seq Sequence) int {
	for h := range a.heads {
		a.StopPlayhead(h)
		a.heads[h].CurrentStep = 0
		a.heads[h].pulses = 0
	}
	steps, skipped := seq.Steps()
	a.steps = steps
	a.loaded = false
	for _, s := range steps {
		if s.Trigger > 0 {
			a.loaded = true
			break
		}
	}
	return skipped
}

// Loaded reports whether the step memory holds at least one trigger.
func (a *AFG) Loaded() bool { return a.loaded }

// Steps returns a copy of the step memory.
func (a *AFG) Steps() [NumSteps]Step { return a.steps }

// Step returns step i.
func (a *AFG) Step(i int) (Step, bool) {
	if i < 0 || i >= NumSteps {
		return Step{}, false
	}
	return a.steps[i], true
}

// SetStep replaces step i. Fields are sanitized: the trigger snaps to 0 or 1,
// the duration is at least MinDuration and indices are clamped.
func (a *AFG) SetStep(i int, s Step) bool {
	if i < 0 || i >= NumSteps {
		return false
	}
	a.steps[i] = sanitize(s)
	if a.steps[i].Trigger > 0 {
		a.loaded = true
	}
	return true
}

// SetExternalInput sets the live value of external input i.
func (a *AFG) SetExternalInput(i int, v float64) bool {
	if i < 0 || i >= NumInputs || !finite(v) {
		return false
	}
	a.external[i] = v
	return true
}

// ExternalInput returns the live value of input i.
func (a *AFG) ExternalInput(i int) float64 {
	if i < 0 || i >= NumInputs {
		return 0
	}
	return a.external[i]
}

// Playhead returns a copy of head h.
func (a *AFG) Playhead(h int) (Playhead, bool) {
	if h < 0 || h >= NumPlayheads {
		return Playhead{}, false
	}
	return a.heads[h], true
}

// StartPlayhead starts head h at t. Starting a running head is a no-op.
func (a *AFG) StartPlayhead(h int, t float64) bool {
	if h < 0 || h >= NumPlayheads {
		return false
	}
	ph := &a.heads[h]
	if ph.Running {
		return true
	}
	ph.Running = true
	ph.pulses = 0
	if ph.Source.Kind == SourceInternal {
		ph.handle = a.sched.At(t, func(t float64) { a.Advance(h, t) })
	}
	return true
}

// StopPlayhead stops head h and clears its pending advance.
func (a *AFG) StopPlayhead(h int) bool {
	if h < 0 || h >= NumPlayheads {
		return false
	}
	ph := &a.heads[h]
	ph.Running = false
	a.sched.Clear(ph.handle)
	ph.handle = 0
	return true
}

// Stop halts both heads, rewinds them and zeroes the outputs.
func (a *AFG) Stop() {
	for h := range a.heads {
		a.StopPlayhead(h)
		a.heads[h].CurrentStep = 0
		a.heads[h].walk = TraverseState{}
		for _, p := range []*param.Param{a.cv[h], a.cv2[h], a.trig[h]} {
			p.SetValue(0)
		}
	}
}

// HandleCount returns the number of pending head advances.
func (a *AFG) HandleCount() int {
	n := 0
	for h := range a.heads {
		if a.sched.Active(a.heads[h].handle) {
			n++
		}
	}
	return n
}

// SetTimeMultiplier scales head h's step durations, or divides its clock
// pulses when it follows the clock.
func (a *AFG) SetTimeMultiplier(h int, m float64) bool {
	if h < 0 || h >= NumPlayheads || !finite(m) || m <= 0 {
		return false
	}
	a.heads[h].TimeMultiplier = core.Clamp(m, MinTimeMultiplier, MaxTimeMultiplier)
	return true
}

// SetPlayheadSource switches head h between internal timing and a clock
// division. A running head keeps running on the new source from t.
func (a *AFG) SetPlayheadSource(h int, src Source, t float64) bool {
	if h < 0 || h >= NumPlayheads {
		return false
	}
	if src.Kind != SourceInternal && src.Kind != SourceClock {
		return false
	}
	if src.Kind == SourceClock && !src.Division.Valid() {
		return false
	}
	ph := &a.heads[h]
	ph.Source = src
	ph.pulses = 0
	a.sched.Clear(ph.handle)
	ph.handle = 0
	if ph.Running && src.Kind == SourceInternal {
		ph.handle = a.sched.At(t, func(t float64) { a.Advance(h, t) })
	}
	return true
}

// ClockPulse advances every running head that follows division d, honouring
// each head's pulse divisor.
func (a *AFG) ClockPulse(d clock.Division, t float64) {
	for h := range a.heads {
		ph := &a.heads[h]
		if !ph.Running || ph.Source.Kind != SourceClock || ph.Source.Division != d {
			continue
		}
		div := max(1, int(math.Round(ph.TimeMultiplier)))
		fire := ph.pulses%div == 0
		ph.pulses++
		if fire {
			a.Advance(h, t)
		}
	}
}

// SetQuantizer configures the quantizer shared by both heads.
func (a *AFG) SetQuantizer(q QuantizerParams) {
	if !finite(q.Root) {
		q.Root = 0
	}
	q.Scale = append(Scale(nil), q.Scale...)
	a.quant = q
	for h := range a.heads {
		a.heads[h].walk = TraverseState{}
	}
}

// Quantizer returns the quantizer settings.
func (a *AFG) Quantizer() QuantizerParams { return a.quant }

func (a *AFG) quantize(h int, cv float64) float64 {
	q := a.quant
	if !q.Enabled || len(q.Scale) == 0 {
		return cv
	}
	if q.Traverse {
		v, next := Traverse(q.Scale, q.Mode, a.heads[h].walk, a.rng)
		a.heads[h].walk = next
		return q.Root + v/12
	}
	return Quantize(cv, q.Scale)
}

// Advance plays head h's current step at t and moves it on.
func (a *AFG) Advance(h int, t float64) {
	if h < 0 || h >= NumPlayheads {
		return
	}
	ph := &a.heads[h]
	a.sched.Clear(ph.handle)
	ph.handle = 0

	idx := ph.CurrentStep
	st := a.steps[idx]
	cv := st.CV
	if st.ExternalMode {
		cv = a.external[st.ExternalInput]
	}
	cv = a.quantize(h, cv)

	a.cv[h].SetValueAtTime(cv, t)
	a.cv2[h].SetValueAtTime(st.CV2, t)
	if st.Trigger > 0 {
		a.trig[h].SetValueAtTime(1, t)
		a.trig[h].SetValueAtTime(0, t+PulseWidth)
		ph.LastTriggerTime = t
	}

	ph.CurrentStep = (idx + 1) % NumSteps
	ev := StepEvent{
		Head:     h,
		Step:     idx,
		Time:     t,
		CV:       cv,
		CV2:      st.CV2,
		Trigger:  st.Trigger,
		Duration: st.Duration,
		Channel:  st.Channel,
		Wrapped:  ph.CurrentStep == 0,
	}
	for _, fn := range a.listeners {
		fn(ev)
	}

	if ph.Running && ph.Source.Kind == SourceInternal {
		next := t + st.Duration*ph.TimeMultiplier
		ph.handle = a.sched.At(next, func(t float64) { a.Advance(h, t) })
	}
}

// JumpToStep moves both heads to index. Running heads play it at t.
func (a *AFG) JumpToStep(index int, t float64) bool {
	if index < 0 || index >= NumSteps {
		return false
	}
	for h := range a.heads {
		ph := &a.heads[h]
		a.sched.Clear(ph.handle)
		ph.handle = 0
		ph.CurrentStep = index
		ph.pulses = 0
	}
	for h := range a.heads {
		if a.heads[h].Running {
			a.Advance(h, t)
		}
	}
	return true
}

// SetAddress sets the address CV in [0, 1] read on the next strobe.
func (a *AFG) SetAddress(cv float64) {
	if finite(cv) {
		a.address = core.Clamp(cv, 0, 1)
	}
}

// Address returns the address CV.
func (a *AFG) Address() float64 { return a.address }

func (a *AFG) addressStep() int {
	return min(int(math.Floor(a.address*NumSteps)), NumSteps-1)
}

// Strobe sets the address and jumps to the addressed step at t. Every call
// lands, however close together.
func (a *AFG) Strobe(address, t float64) {
	a.SetAddress(address)
	step := a.addressStep()
	a.sched.At(t, func(t float64) { a.JumpToStep(step, t) })
}

// SetStrobe drives the strobe gate input from t. A rising edge through 0.5
// jumps to the step under the address CV at that moment.
func (a *AFG) SetStrobe(v, t float64) {
	if finite(v) {
		a.strobe.SetValueAtTime(v, t)
	}
}

// Tick evaluates the AFG for the frame at t. The strobe is polled before
// the outputs so a jump lands on the same frame.
func (a *AFG) Tick(t float64) {
	a.edge.Poll(a.strobe.Advance(t), t)
	for h := range a.heads {
		a.cv[h].Advance(t)
		a.cv2[h].Advance(t)
		a.trig[h].Advance(t)
	}
}

// CV returns head h's pitch output.
func (a *AFG) CV(h int) float64 {
	if h < 0 || h >= NumPlayheads {
		return 0
	}
	return a.cv[h].Value()
}

// CV2 returns head h's secondary output.
func (a *AFG) CV2(h int) float64 {
	if h < 0 || h >= NumPlayheads {
		return 0
	}
	return a.cv2[h].Value()
}

// TriggerOut returns head h's trigger output level.
func (a *AFG) TriggerOut(h int) float64 {
	if h < 0 || h >= NumPlayheads {
		return 0
	}
	return a.trig[h].Value()
}

