// Package lpg implements the low-pass gate: an ADSR envelope whose output is
// smoothed by a vactrol model and then drives a ladder low-pass filter, a
// VCA, or both.
package lpg

import (
	"fmt"
	"math"

	"github.com/cbegin/buchla-go/internal/param"
	"github.com/cbegin/buchla-go/internal/schedule"
	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/filter/moog"
)

// Mode selects what the smoothed envelope drives.
type Mode int

const (
	ModeBoth Mode = iota
	ModeVCF
	ModeVCA
)

func (m Mode) String() string {
	switch m {
	case ModeVCF:
		return "vcf"
	case ModeVCA:
		return "vca"
	default:
		return "both"
	}
}

// ParseMode maps a config name to a Mode.
func ParseMode(name string) (Mode, error) {
	switch name {
	case "both", "BOTH", "":
		return ModeBoth, nil
	case "vcf", "VCF":
		return ModeVCF, nil
	case "vca", "VCA":
		return ModeVCA, nil
	}
	return ModeBoth, fmt.Errorf("lpg: unknown mode %q", name)
}

const (
	DefaultBaseCutoff = 200.0
	DefaultMaxCutoff  = 20000.0
	MinCutoff         = 20.0
	MinQ              = 0.1
	MaxQ              = 20.0
	MinLoopRate       = 0.01

	// cutoff is pushed to the ladder once per controlBlock samples
	controlBlock = 16
	paramGlide   = 0.02
)

// Params are the gate settings. NaN fields and a nil Mode are left unchanged.
type Params struct {
	Mode       *Mode
	Level      float64
	ModAmount  float64
	Response   float64
	BaseCutoff float64
	FallRatio  float64
}

// Unset returns Params with every field left unchanged.
func Unset() Params {
	nan := math.NaN()
	return Params{Level: nan, ModAmount: nan, Response: nan, BaseCutoff: nan, FallRatio: nan}
}

// Snapshot is a read-only view of the gate.
type Snapshot struct {
	State     State
	Envelope  float64
	Vactrol   float64
	Gain      float64
	Output    float64
	Cutoff    float64
	Q         float64
	Mode      Mode
	Looping   bool
	LoopEvery float64
}

// Gate is one channel's LPG.
type Gate struct {
	sampleRate float64
	sched      *schedule.Scheduler

	env *envelope
	vac *vactrol

	mode      Mode
	level     *param.Param
	base      *param.Param
	maxCutoff float64
	modAmount float64
	q         float64

	ladder     *moog.Filter
	cutoff     float64
	gain       float64
	counter    int
	lastOutput float64

	pending []note

	loopRate   float64
	loopHandle schedule.Handle
}

// New returns a gate in BOTH mode at full level.
func New(sched *schedule.Scheduler) (*Gate, error) {
	sr := sched.SampleRate()
	maxCutoff := math.Min(DefaultMaxCutoff, 0.45*sr)
	g := &Gate{
		sampleRate: sr,
		sched:      sched,
		env:        newEnvelope(),
		vac:        newVactrol(sr),
		mode:       ModeBoth,
		level:      param.New(1, 0, 1),
		base:       param.New(DefaultBaseCutoff, MinCutoff, maxCutoff),
		maxCutoff:  maxCutoff,
		modAmount:  1,
		cutoff:     DefaultBaseCutoff,
	}
	g.q = qFor(DefaultResponse)
	ladder, err := moog.New(sr,
		moog.WithCutoffHz(g.cutoff),
		moog.WithResonance(resonanceFor(g.q)),
	)
	if err != nil {
		return nil, fmt.Errorf("lpg: ladder: %w", err)
	}
	g.ladder = ladder
	return g, nil
}

func qFor(response float64) float64 {
	return core.Clamp(1/response, MinQ, MaxQ)
}

// resonanceFor maps Q onto the ladder's 0..4 feedback range, staying clear of
// self-oscillation.
func resonanceFor(q float64) float64 {
	return core.Clamp((q-1/math.Sqrt2)/10, 0, 2.5)
}

// SetEnvelope updates the ADSR. A running loop picks up the new period.
func (g *Gate) SetEnvelope(p EnvelopeParams) {
	g.env.set(p)
	if g.Looping() {
		g.sched.SetInterval(g.loopHandle, g.loopPeriod())
	}
}

// Envelope returns the ADSR settings.
func (g *Gate) Envelope() EnvelopeParams { return g.env.p }

// SetParams applies p at now. Level and base cutoff glide; other fields
// change immediately.
func (g *Gate) SetParams(p Params, now float64) {
	if p.Mode != nil {
		switch *p.Mode {
		case ModeBoth, ModeVCF, ModeVCA:
			g.mode = *p.Mode
		}
	}
	if !math.IsNaN(p.Level) {
		g.level.RampTo(core.Clamp(p.Level, 0, 1), now, paramGlide)
	}
	if !math.IsNaN(p.ModAmount) {
		g.modAmount = core.Clamp(p.ModAmount, 0, 1)
	}
	if !math.IsNaN(p.BaseCutoff) {
		g.base.RampTo(p.BaseCutoff, now, paramGlide)
	}
	if !math.IsNaN(p.FallRatio) {
		g.vac.setFallRatio(p.FallRatio)
	}
	if !math.IsNaN(p.Response) && p.Response > 0 {
		g.vac.setResponse(p.Response)
		g.q = qFor(g.vac.rise)
		// the range is validated by resonanceFor
		_ = g.ladder.SetResonance(resonanceFor(g.q))
	}
}

// Mode returns the routing mode.
func (g *Gate) Mode() Mode { return g.mode }

// note is a pending envelope command.
type note struct {
	t        float64
	velocity float64
	duration float64
	gated    bool
	off      bool
}

// Trigger starts the envelope on the frame containing t. Commands for past
// times apply on the next processed frame.
func (g *Gate) Trigger(t, velocity, duration float64) {
	g.enqueue(note{t: t, velocity: velocity, duration: duration})
}

// GateOn starts a held note at t that sustains until GateOff.
func (g *Gate) GateOn(t, velocity float64) {
	g.enqueue(note{t: t, velocity: velocity, gated: true})
}

// GateOff releases a held note at t.
func (g *Gate) GateOff(t float64) {
	g.enqueue(note{t: t, off: true})
}

func (g *Gate) enqueue(n note) {
	if math.IsNaN(n.t) || math.IsInf(n.t, 0) {
		n.t = 0
	}
	i := len(g.pending)
	for i > 0 && g.pending[i-1].t > n.t {
		i--
	}
	g.pending = append(g.pending, note{})
	copy(g.pending[i+1:], g.pending[i:])
	g.pending[i] = n
}

// Pending returns the number of queued envelope commands.
func (g *Gate) Pending() int { return len(g.pending) }

func (g *Gate) applyDue(t float64) {
	// same frame boundary the scheduler uses
	end := (math.Round(t*g.sampleRate) + 1) / g.sampleRate
	for len(g.pending) > 0 && g.pending[0].t < end {
		n := g.pending[0]
		g.pending = g.pending[1:]
		if n.off {
			g.env.release()
		} else {
			g.env.trigger(n.velocity, n.duration, n.gated)
		}
	}
}

func (g *Gate) loopPeriod() float64 {
	return (g.env.p.Attack + g.env.p.Decay) / g.loopRate
}

// SetLoopMode makes the envelope retrigger itself every (attack+decay)/rate
// seconds starting at now. Any previous loop is cleared first. Rates below
// MinLoopRate are raised to it; NaN and infinite rates are rejected and leave
// the loop as it was.
func (g *Gate) SetLoopMode(enabled bool, rate, now float64) bool {
	if enabled && (math.IsNaN(rate) || math.IsInf(rate, 0)) {
		return false
	}
	g.sched.Clear(g.loopHandle)
	g.loopHandle = 0
	if !enabled {
		return true
	}
	rate = max(rate, MinLoopRate)
	g.loopRate = rate
	g.loopHandle = g.sched.Every(now, g.loopPeriod(), func(t float64) {
		g.Trigger(t, 1, 0)
	})
	return true
}

// Looping reports whether the loop is scheduled.
func (g *Gate) Looping() bool { return g.sched.Active(g.loopHandle) }

// Process runs one sample through the gate at time t.
func (g *Gate) Process(x, t float64) float64 {
	g.applyDue(t)
	v := g.vac.process(g.env.next(g.sampleRate))
	level := g.level.Advance(t)
	base := g.base.Advance(t)

	cutoff := base + (g.maxCutoff-base)*v*g.modAmount
	switch g.mode {
	case ModeVCF:
		g.gain = level
	case ModeVCA:
		g.gain = level * v
		cutoff = g.maxCutoff
	default:
		g.gain = level * v
	}

	if g.counter%controlBlock == 0 && math.Abs(cutoff-g.cutoff) > 1e-3 {
		// cutoff is kept in [MinCutoff, 0.45·sr]
		if err := g.ladder.SetCutoffHz(cutoff); err == nil {
			g.cutoff = cutoff
		}
	}
	g.counter++

	g.lastOutput = g.ladder.ProcessSample(x) * g.gain
	return g.lastOutput
}

// Snapshot returns the gate's current state.
func (g *Gate) Snapshot() Snapshot {
	s := Snapshot{
		State:    g.env.state,
		Envelope: g.env.value * g.env.depth,
		Vactrol:  g.vac.value,
		Gain:     g.gain,
		Output:   g.lastOutput,
		Cutoff:   g.cutoff,
		Q:        g.q,
		Mode:     g.mode,
		Looping:  g.Looping(),
	}
	if s.Looping {
		s.LoopEvery = g.loopPeriod()
	}
	return s
}

// Reset stops the loop and silences the envelope.
func (g *Gate) Reset() {
	g.SetLoopMode(false, 0, 0)
	g.pending = g.pending[:0]
	g.env.state = StateIdle
	g.env.value = 0
	g.vac.value = 0
	g.gain = 0
	g.ladder.Reset()
}
