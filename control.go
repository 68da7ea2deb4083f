package buchla

import (
	"math"

	"github.com/cbegin/buchla-go/internal/afg"
	"github.com/cbegin/buchla-go/internal/clock"
	"github.com/cbegin/buchla-go/internal/filter"
	"github.com/cbegin/buchla-go/internal/lpg"
	"github.com/cbegin/buchla-go/internal/matrix"
	"github.com/cbegin/buchla-go/internal/noise"
	"github.com/cbegin/buchla-go/internal/osc"
	"github.com/cbegin/buchla-go/internal/shaper"
	"github.com/cwbudde/algo-dsp/dsp/core"
)

// Control methods never fail: invalid input is clamped or ignored and logged
// as a warning.

func (e *Engine) warn(component, msg string, args ...any) {
	e.logger.Warn(msg, append([]any{"component", component}, args...)...)
}

func (e *Engine) validChannel(component string, ch int) bool {
	if ch < 0 || ch >= Channels {
		e.warn(component, "channel out of range", "channel", ch)
		return false
	}
	return true
}

// LoadSequence stops playback and replaces the step memory with seq. Invalid
// notes are skipped. It reports whether any step will trigger.
func (e *Engine) LoadSequence(seq Sequence) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopPlayback()
	return e.loadSequence(seq)
}

func (e *Engine) loadSequence(seq Sequence) bool {
	if err := seq.Validate(); err != nil {
		e.warn("afg", "sequence has invalid notes", "error", err)
	}
	skipped := e.afg.LoadSequence(seq)
	if skipped > 0 {
		e.warn("afg", "notes not placed", "skipped", skipped, "notes", len(seq.Notes))
	}
	return e.afg.Loaded()
}

// StartPlayback stops any running playback, loads seq and starts playhead 0
// and the master clock. An empty or fully invalid sequence leaves the engine
// silent and stopped.
func (e *Engine) StartPlayback(seq Sequence) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopPlayback()
	e.spatial.SetToneShape(0.5, 0.5, 0.5)
	if !e.loadSequence(seq) {
		e.warn("afg", "nothing to play", "notes", len(seq.Notes))
		return
	}
	now := e.sched.Now()
	e.clock.Reset()
	e.clock.Start(now)
	e.afg.StartPlayhead(0, now)
	e.playing = true
	e.logger.Info("playback started", "notes", len(seq.Notes), "tempo", e.clock.Tempo())
}

// StopPlayback stops the playheads and the clock. It is safe to call while
// stopped.
func (e *Engine) StopPlayback() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopPlayback()
}

func (e *Engine) stopPlayback() {
	e.afg.Stop()
	e.clock.Stop()
	if !e.playing {
		return
	}
	e.playing = false
	now := e.sched.Now()
	e.logger.Info("playback stopped", "time", now)
	e.sendEvent(Event{Kind: EventPlaybackStopped, Time: now})
}

// Playing reports whether a sequence is playing.
func (e *Engine) Playing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// SetOscillatorParams updates channel ch's source and folder.
func (e *Engine) SetOscillatorParams(ch int, p OscillatorParams) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.validChannel("osc", ch) {
		return
	}
	e.setOscillatorParams(ch, p, e.sched.Now())
}

func (e *Engine) setOscillatorParams(ch int, p OscillatorParams, now float64) {
	// value reports a set, finite field; set but non-finite fields are warned
	// about and skipped.
	value := func(name string, f *float64) (float64, bool) {
		if f == nil {
			return 0, false
		}
		if !finite(*f) {
			e.warn("osc", "parameter ignored", "channel", ch, "param", name, "value", *f)
			return 0, false
		}
		return *f, true
	}

	fold := e.folders[ch]
	if v, ok := value("foldAmount", p.FoldAmount); ok {
		fold.SetAmount(v)
	}
	if v, ok := value("foldDrive", p.FoldDrive); ok {
		if v <= 0 {
			e.warn("shaper", "fold drive must be positive", "drive", v)
		} else {
			fold.SetDrive(v)
		}
	}
	if p.FoldCurve != "" {
		if c, ok := shaper.ParseCurve(p.FoldCurve); ok {
			fold.SetCurve(c)
		} else {
			e.warn("shaper", "unknown fold curve", "curve", p.FoldCurve)
		}
	}
	if v, ok := value("shapeFold", p.ShapeFold); ok {
		e.shapeFold[ch] = core.Clamp(v, 0, 1)
	}

	if ch == NoiseChannel {
		if v, ok := value("frequency", p.Frequency); ok {
			e.noise.SetParams(noise.Params{Volume: math.NaN(), FilterFreq: v, FilterQ: math.NaN()}, now)
		}
		return
	}

	o := e.osc[ch]
	if v, ok := value("glide", p.Glide); ok {
		o.SetGlide(v)
	}
	if v, ok := value("frequency", p.Frequency); ok {
		if v < osc.MinFrequency || v > osc.MaxFrequency {
			e.warn("osc", "frequency clamped", "channel", ch, "frequency", v)
		}
		o.SetFrequency(v, now, e.playing)
	}
	if v, ok := value("waveShape", p.WaveShape); ok {
		o.SetShape(v)
	}
	if v, ok := value("fmAmount", p.FMAmount); ok {
		o.SetFMAmount(v)
	}
	if v, ok := value("fmRatio", p.FMRatio); ok {
		o.SetFMRatio(v)
	}
	if v, ok := value("detuneSpread", p.DetuneSpread); ok {
		o.SetDetuneSpread(v)
	}
	if v, ok := value("driftCents", p.DriftCents); ok {
		o.SetDrift(v, 0.1)
	}
	e.shapeFolders[ch].SetAmount(e.shapeFold[ch] * o.Shape())
}

// SetFilter moves channel ch's bandpass bank so its lowest band sits at freq.
func (e *Engine) SetFilter(ch int, freq, q float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.validChannel("filter", ch) {
		return
	}
	if !finite(freq) || !finite(q) {
		e.warn("filter", "invalid filter setting", "channel", ch, "freq", freq, "q", q)
		return
	}
	e.banks[ch].SetFilter(freq, q)
}

// SetFilterBand configures a single band of channel ch's bank.
func (e *Engine) SetFilterBand(ch, band int, freq, q, gain float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.validChannel("filter", ch) {
		return
	}
	if !finite(freq) || !finite(q) || !finite(gain) {
		e.warn("filter", "invalid band setting", "channel", ch, "band", band)
		return
	}
	if !e.banks[ch].SetBand(band, freq, q, gain) {
		e.warn("filter", "band out of range", "channel", ch, "band", band, "bands", e.banks[ch].Len())
	}
}

// SetFilterMix blends channel ch's filtered (1) and dry (0) signal.
func (e *Engine) SetFilterMix(ch int, mix float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.validChannel("filter", ch) {
		e.banks[ch].SetMix(mix)
	}
}

// SetFilterModel swaps channel ch's bank for a fresh one of model 291 or 295.
func (e *Engine) SetFilterModel(ch, model int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.validChannel("filter", ch) {
		return
	}
	m, err := filter.ParseModel(model)
	if err != nil {
		e.warn("filter", "unknown model", "channel", ch, "error", err)
		return
	}
	if e.banks[ch].Model() == m {
		return
	}
	mix := e.banks[ch].Mix()
	e.banks[ch] = filter.NewBank(float64(e.sampleRate), m)
	e.banks[ch].SetMix(mix)
}

// SetMixerPoint sets the matrix level from input i to output j.
func (e *Engine) SetMixerPoint(i, j int, level float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if math.IsNaN(level) {
		e.warn("matrix", "level is NaN", "input", i, "output", j)
		return
	}
	if !e.matrix.SetCrosspoint(i, j, level) {
		e.warn("matrix", "crosspoint out of range", "input", i, "output", j)
	}
}

// ApplyMatrixPreset loads "diagonal" or "identity".
func (e *Engine) ApplyMatrixPreset(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, err := matrix.ParsePreset(name)
	if err != nil {
		e.warn("matrix", "unknown preset", "error", err)
		return
	}
	e.matrix.ApplyPreset(p)
}

// SetEnvelope updates channel ch's ADSR. NaN fields are left unchanged.
func (e *Engine) SetEnvelope(ch int, p EnvelopeParams) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.validChannel("lpg", ch) {
		e.lpgs[ch].SetEnvelope(p)
	}
}

// SetLPGParams updates channel ch's gate. Start from UnsetLPG.
func (e *Engine) SetLPGParams(ch int, p LPGParams) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.validChannel("lpg", ch) {
		return
	}
	if !math.IsNaN(p.Response) && p.Response <= 0 {
		e.warn("lpg", "response must be positive", "channel", ch, "response", p.Response)
		p.Response = math.NaN()
	}
	e.lpgs[ch].SetParams(p, e.sched.Now())
}

// SetLoopMode makes channel ch's envelope retrigger itself.
func (e *Engine) SetLoopMode(ch int, enabled bool, rate float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.validChannel("lpg", ch) {
		return
	}
	if enabled && !finite(rate) {
		e.warn("lpg", "loop rate ignored", "channel", ch, "rate", rate)
		return
	}
	if enabled && rate < lpg.MinLoopRate {
		e.warn("lpg", "loop rate raised to minimum", "channel", ch, "rate", rate)
	}
	e.lpgs[ch].SetLoopMode(enabled, rate, e.sched.Now())
}

// Trigger fires channel ch's envelope at t, or now if t is in the past.
func (e *Engine) Trigger(ch int, t float64, opts TriggerOptions) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.validChannel("lpg", ch) {
		return
	}
	now := e.sched.Now()
	if !finite(t) || t < now {
		t = now
	}
	vel := opts.Velocity
	if vel == 0 || !finite(vel) {
		vel = 1
	}
	e.lpgs[ch].Trigger(t, vel, opts.Duration)
}

// GateOn holds channel ch's envelope at sustain until GateOff.
func (e *Engine) GateOn(ch int, velocity float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.validChannel("lpg", ch) {
		e.lpgs[ch].GateOn(e.sched.Now(), velocity)
	}
}

// GateOff releases channel ch's held envelope.
func (e *Engine) GateOff(ch int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.validChannel("lpg", ch) {
		e.lpgs[ch].GateOff(e.sched.Now())
	}
}

// SetSpatialPosition places channel ch in the quad field, x and y in [-1, 1].
func (e *Engine) SetSpatialPosition(ch int, x, y float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.validChannel("spatial", ch) {
		return
	}
	if !finite(x) || !finite(y) {
		e.warn("spatial", "invalid position", "channel", ch, "x", x, "y", y)
		return
	}
	e.spatial.SetPosition(ch, x, y)
}

// SetToneShape sets the low, mid and high tone controls in [0, 1], 0.5 flat.
func (e *Engine) SetToneShape(low, mid, high float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !finite(low) || !finite(mid) || !finite(high) {
		e.warn("spatial", "invalid tone shape", "low", low, "mid", mid, "high", high)
		return
	}
	e.spatial.SetToneShape(low, mid, high)
}

// SetReverb updates the reverb. NaN fields are left unchanged.
func (e *Engine) SetReverb(p ReverbParams) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.spatial.SetReverb(p); err != nil {
		e.warn("spatial", "reverb update failed", "error", err)
	}
}

// SetMasterVolume ramps the master gain to v in [0, 1] over ramp seconds.
func (e *Engine) SetMasterVolume(v, ramp float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if math.IsNaN(v) {
		e.warn("engine", "master volume is NaN")
		return
	}
	if !finite(ramp) || ramp < 0 {
		ramp = DefaultMasterRamp
	}
	e.setMasterVolume(v, e.sched.Now(), ramp)
}

// masterDB converts a volume in [0, 1] to dB, floored at minMasterDB.
func masterDB(v float64) float64 {
	v = core.Clamp(v, 0, 1)
	if v == 0 {
		return minMasterDB
	}
	return math.Max(minMasterDB, core.LinearToDB(v))
}

func (e *Engine) setMasterVolume(v, now, ramp float64) {
	db := masterDB(v)
	target := 0.0
	if db > muteDB {
		target = core.DBToLinear(db)
	}
	p := e.master
	if ramp <= 0 {
		p.SetValue(target)
		return
	}
	if target == 0 {
		p.RampTo(0, now, ramp)
		return
	}
	p.CancelScheduledValues(now)
	p.SetValueAtTime(p.Value(), now)
	p.ExponentialRampToValueAtTime(target, now+ramp)
}

// MasterVolume returns the current master gain as linear amplitude.
func (e *Engine) MasterVolume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.master.Value()
}

// SetTempo sets the master clock in BPM, clamped to 20-300.
func (e *Engine) SetTempo(bpm float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if math.IsNaN(bpm) {
		e.warn("clock", "tempo is NaN")
		return
	}
	if bpm < clock.MinTempo || bpm > clock.MaxTempo {
		e.warn("clock", "tempo clamped", "bpm", bpm)
	}
	e.setTempo(bpm)
}

func (e *Engine) setTempo(bpm float64) {
	e.clock.SetTempo(bpm)
}

// SetStep writes step i of the step memory.
func (e *Engine) SetStep(i int, s Step) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.afg.SetStep(i, s) {
		e.warn("afg", "step out of range", "step", i)
	}
}

// SetExternalInput sets external CV input i, read by steps in external mode.
func (e *Engine) SetExternalInput(i int, v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.afg.SetExternalInput(i, v) {
		e.warn("afg", "external input ignored", "input", i, "value", v)
	}
}

// PatchRandomVoltage feeds the noise source's random CV into external input
// i on every frame. A negative i removes the patch.
func (e *Engine) PatchRandomVoltage(i int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if i >= afg.NumInputs {
		e.warn("noise", "external input out of range", "input", i)
		return
	}
	e.randomPatch = max(i, -1)
}

// StartPlayhead starts playhead h now. Starting a running head is a no-op.
func (e *Engine) StartPlayhead(h int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.afg.StartPlayhead(h, e.sched.Now()) {
		e.warn("afg", "playhead out of range", "head", h)
	}
}

// StopPlayhead stops playhead h.
func (e *Engine) StopPlayhead(h int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.afg.StopPlayhead(h) {
		e.warn("afg", "playhead out of range", "head", h)
	}
}

// SetTimeMultiplier scales playhead h's step durations, or divides its clock
// pulses when it follows the clock.
func (e *Engine) SetTimeMultiplier(h int, m float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.afg.SetTimeMultiplier(h, m) {
		e.warn("afg", "time multiplier ignored", "head", h, "multiplier", m)
	}
}

// SetPlayheadSource switches playhead h between internal step timing and a
// clock division.
func (e *Engine) SetPlayheadSource(h int, src PlayheadSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.afg.SetPlayheadSource(h, src, e.sched.Now()) {
		e.warn("afg", "playhead source ignored", "head", h, "division", src.Division)
	}
}

// FollowClock makes playhead h advance on division d.
func FollowClock(d Division) PlayheadSource {
	return PlayheadSource{Kind: afg.SourceClock, Division: d}
}

// InternalTiming makes a playhead advance by its step durations.
func InternalTiming() PlayheadSource {
	return PlayheadSource{Kind: afg.SourceInternal}
}

// SetQuantizer configures the quantizer shared by both playheads.
func (e *Engine) SetQuantizer(q QuantizerParams) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if q.Enabled && len(q.Scale) == 0 {
		e.warn("afg", "quantizer enabled without a scale")
	}
	e.afg.SetQuantizer(q)
}

// Strobe jumps both playheads to the step addressed by address in [0, 1].
func (e *Engine) Strobe(address float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !finite(address) {
		e.warn("afg", "strobe address ignored", "address", address)
		return
	}
	e.afg.Strobe(address, e.sched.Now())
}

// SetStrobeInput sets the level of the strobe gate input. Crossing 0.5
// upwards jumps to the step under the current address CV.
func (e *Engine) SetStrobeInput(v float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !finite(v) {
		e.warn("afg", "strobe level ignored", "level", v)
		return
	}
	e.afg.SetStrobe(v, e.sched.Now())
}

// SetAddress sets the address CV read on the next strobe.
func (e *Engine) SetAddress(cv float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.afg.SetAddress(cv)
}

// JumpToStep moves both playheads to step i.
func (e *Engine) JumpToStep(i int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.afg.JumpToStep(i, e.sched.Now()) {
		e.warn("afg", "step out of range", "step", i)
	}
}

// SetNoiseParams sets the noise channel's volume and bandpass. NaN fields
// are left unchanged.
func (e *Engine) SetNoiseParams(p NoiseParams) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.noise.SetParams(p, e.sched.Now())
}

// SetRandomGates fires the noise channel's gate rate times a minute with the
// given probability. A rate of 0 stops the gates.
func (e *Engine) SetRandomGates(rate, probability float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !finite(rate) || rate < 0 {
		e.warn("noise", "gate rate ignored", "rate", rate)
		return
	}
	e.noise.SetRandomGates(rate, probability, e.sched.Now())
}

// SetRandomVoltages sets the random CV range in [0, 1] and its slew in
// seconds.
func (e *Engine) SetRandomVoltages(cvRange, slew float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if slew < 0 {
		e.warn("noise", "negative slew ignored", "slew", slew)
	}
	e.noise.SetRandomVoltages(cvRange, slew)
}

// SampleAndHold latches and returns the current random voltage.
func (e *Engine) SampleAndHold() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.noise.SampleAndHold()
}

// RouteDivision writes division d's counter, scaled to [0, 1], into external
// input i on every clock tick.
func (e *Engine) RouteDivision(d Division, input int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if input < 0 || input >= afg.NumInputs {
		e.warn("clock", "external input out of range", "input", input)
		return
	}
	if !d.Valid() {
		e.warn("clock", "unknown division", "division", int(d))
		return
	}
	e.cvRoutes[d][input] = true
}

// TriggerEnvelopeOn fires channel ch's envelope whenever division d fires.
// Repeating a route has no further effect.
func (e *Engine) TriggerEnvelopeOn(d Division, ch int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.validChannel("clock", ch) {
		return
	}
	if !d.Valid() {
		e.warn("clock", "unknown division", "division", int(d))
		return
	}
	e.envRoutes[d][ch] = true
}

// ClearDivision removes every route and envelope trigger on division d.
func (e *Engine) ClearDivision(d Division) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !d.Valid() {
		e.warn("clock", "unknown division", "division", int(d))
		return
	}
	e.cvRoutes[d] = [afg.NumInputs]bool{}
	e.envRoutes[d] = [Channels]bool{}
}

// StartClock runs the master clock without starting a playhead.
func (e *Engine) StartClock() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock.Start(e.sched.Now())
}

// StopClock halts the master clock.
func (e *Engine) StopClock() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock.Stop()
}
