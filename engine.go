// Package buchla renders a Buchla-style voice rack: four channels of
// oscillator or noise, wave folder and bandpass bank, a crosspoint matrix,
// low-pass gates, a quad spatial director and a master bus, sequenced by a
// two-playhead step generator on a shared master clock.
//
// An Engine is pulled for interleaved float32 frames through Process or
// ProcessQuad. All control methods are safe to call from other goroutines
// and take effect at the engine's current sample time.
package buchla

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cbegin/buchla-go/internal/afg"
	"github.com/cbegin/buchla-go/internal/audio"
	"github.com/cbegin/buchla-go/internal/clock"
	"github.com/cbegin/buchla-go/internal/config"
	"github.com/cbegin/buchla-go/internal/effects"
	"github.com/cbegin/buchla-go/internal/filter"
	"github.com/cbegin/buchla-go/internal/lpg"
	"github.com/cbegin/buchla-go/internal/matrix"
	"github.com/cbegin/buchla-go/internal/noise"
	"github.com/cbegin/buchla-go/internal/osc"
	"github.com/cbegin/buchla-go/internal/param"
	"github.com/cbegin/buchla-go/internal/schedule"
	"github.com/cbegin/buchla-go/internal/shaper"
	"github.com/cbegin/buchla-go/internal/spatial"
	"github.com/cwbudde/algo-vecmath"
)

var (
	ErrNotInitialized    = errors.New("buchla: engine not initialized")
	ErrInvalidSampleRate = errors.New("buchla: invalid sample rate")
	ErrInvalidBlockSize  = errors.New("buchla: invalid block size")
	ErrClosed            = errors.New("buchla: engine closed")
)

const (
	Channels     = 4
	OscChannels  = 3
	NoiseChannel = 3

	MinSampleRate = 8000
	MaxSampleRate = 192000
	MaxBlockSize  = 8192

	DefaultMasterRamp = 0.1
	DefaultShapeFold  = 0.3

	// master volume floor in dB; targets at or below muteDB ramp to silence
	minMasterDB = -60.0
	muteDB      = -55.0

	eventBuffer = 64
)

type Option func(*engineConfig)

type engineConfig struct {
	rack      *config.Config
	overrides []func(*config.Config)
	logger    *slog.Logger
	sampleTap func([]float32)
}

func defaultEngineConfig() engineConfig {
	return engineConfig{logger: slog.Default()}
}

// WithConfig starts the engine from a rack description instead of the
// factory defaults. The engine keeps its own copy.
func WithConfig(c *Config) Option {
	return func(cfg *engineConfig) {
		if c != nil {
			cfg.rack = c.Clone()
		}
	}
}

func WithSampleRate(sampleRate int) Option {
	return func(cfg *engineConfig) {
		cfg.overrides = append(cfg.overrides, func(c *config.Config) { c.SampleRate = sampleRate })
	}
}

// WithBlockSize sets how many frames are rendered between matrix, gate and
// bus passes.
func WithBlockSize(frames int) Option {
	return func(cfg *engineConfig) {
		cfg.overrides = append(cfg.overrides, func(c *config.Config) { c.BlockSize = frames })
	}
}

// WithSeed seeds every random source in the rack.
func WithSeed(seed uint64) Option {
	return func(cfg *engineConfig) {
		cfg.overrides = append(cfg.overrides, func(c *config.Config) { c.Seed = seed })
	}
}

// WithBackend selects the realtime output used by Play.
func WithBackend(name string) Option {
	return func(cfg *engineConfig) {
		cfg.overrides = append(cfg.overrides, func(c *config.Config) { c.Backend = name })
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(cfg *engineConfig) {
		if l != nil {
			cfg.logger = l
		}
	}
}

// WithSampleTap installs a callback invoked with each generated buffer.
// The callback runs on the audio thread; keep work brief and non-blocking.
func WithSampleTap(tap func([]float32)) Option {
	return func(cfg *engineConfig) {
		cfg.sampleTap = tap
	}
}

// Engine is the whole rack.
type Engine struct {
	mu         sync.Mutex
	logger     *slog.Logger
	rack       *config.Config
	sampleRate int
	blockSize  int
	backend    audio.Backend
	sampleTap  func([]float32)

	sched   *schedule.Scheduler
	osc     [OscChannels]*osc.Oscillator
	noise   *noise.Source
	folders [Channels]*shaper.Folder
	// second fold pass driven by the wave shape
	shapeFolders [Channels]*shaper.Folder
	shapeFold    [Channels]float64
	banks        [Channels]*filter.Bank
	lpgs         [Channels]*lpg.Gate
	matrix       *matrix.Mixer
	spatial      *spatial.Director
	afg          *afg.AFG
	clock        *clock.Clock
	master       *param.Param
	bus          *effects.Chain

	pre, post, quad [Channels][]float64
	times, gains    []float64
	randomPatch     int

	// division routes, one per (division, target) pair
	cvRoutes  [clock.NumDivisions][afg.NumInputs]bool
	envRoutes [clock.NumDivisions][Channels]bool

	initialized bool
	closed      bool
	playing     bool
	spatialErr  bool

	// playMu serializes Play and Stop so at most one sink is ever open.
	playMu   sync.Mutex
	openSink func(audio.Backend, int, audio.SampleSource) (audio.Sink, error)
	sink     audio.Sink
	stopPlay func() bool

	eventCh   chan Event
	eventChMu sync.Mutex
	watchDone bool
}

// New builds every module and applies the rack configuration. The engine
// renders silence until Initialize succeeds.
func New(opts ...Option) (*Engine, error) {
	cfg := defaultEngineConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	rack := config.Default()
	if cfg.rack != nil {
		rack = cfg.rack
	}
	for _, fn := range cfg.overrides {
		fn(rack)
	}
	if rack.SampleRate < MinSampleRate || rack.SampleRate > MaxSampleRate {
		return nil, fmt.Errorf("%w: %d (expected %d-%d)", ErrInvalidSampleRate, rack.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if rack.BlockSize < 1 || rack.BlockSize > MaxBlockSize {
		return nil, fmt.Errorf("%w: %d (expected 1-%d)", ErrInvalidBlockSize, rack.BlockSize, MaxBlockSize)
	}
	if err := rack.Validate(); err != nil {
		return nil, fmt.Errorf("buchla: config: %w", err)
	}
	backend, _ := audio.ParseBackend(rack.Backend)

	sr := float64(rack.SampleRate)
	e := &Engine{
		logger:      cfg.logger,
		rack:        rack,
		sampleRate:  rack.SampleRate,
		blockSize:   rack.BlockSize,
		backend:     backend,
		sampleTap:   cfg.sampleTap,
		sched:       schedule.New(rack.SampleRate),
		matrix:      matrix.New(),
		spatial:     spatial.New(sr, int64(rack.Seed)),
		master:      param.New(1, 0, 1),
		randomPatch: -1,
		openSink:    audio.Open,
	}
	for ch := range e.osc {
		e.osc[ch] = osc.New(sr, rack.Seed+uint64(ch))
	}
	e.noise = noise.New(e.sched, rack.Seed+16)
	e.afg = afg.New(e.sched, rack.Seed+32)
	e.clock = clock.New(e.sched)
	for ch := 0; ch < Channels; ch++ {
		e.folders[ch] = shaper.New(shaper.DefaultTableSize, shaper.CurveTriangle, shaper.DefaultDrive)
		e.shapeFolders[ch] = shaper.New(shaper.DefaultTableSize, shaper.CurveSine, shaper.DefaultDrive)
		e.shapeFold[ch] = DefaultShapeFold
		e.banks[ch] = filter.NewBank(sr, filter.Model291)
		g, err := lpg.New(e.sched)
		if err != nil {
			return nil, fmt.Errorf("buchla: channel %d: %w", ch, err)
		}
		e.lpgs[ch] = g
	}
	for ch := range e.pre {
		e.pre[ch] = make([]float64, e.blockSize)
		e.post[ch] = make([]float64, e.blockSize)
		e.quad[ch] = make([]float64, e.blockSize)
	}
	e.times = make([]float64, e.blockSize)
	e.gains = make([]float64, e.blockSize)
	e.applyRack(rack, 0)
	return e, nil
}

// Initialize generates the reverb impulse responses and connects the
// sequencer, clock and noise source to the voices. Calling it again is a
// no-op.
func (e *Engine) Initialize() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	if e.initialized {
		return nil
	}
	if err := e.spatial.Initialize(); err != nil {
		return fmt.Errorf("buchla: spatial: %w", err)
	}
	e.afg.OnStep(e.onStep)
	e.clock.OnAdvance(e.afg.ClockPulse)
	e.clock.OnPulse(clock.Sixteenth, e.noise.Step)
	for d := clock.Division(0); d < clock.NumDivisions; d++ {
		e.clock.Route(d, func(v int, _ float64) { e.routeCounter(d, v) })
		e.clock.OnPulse(d, func(t float64) { e.pulseEnvelopes(d, t) })
	}
	e.noise.OnGate(e.onRandomGate)
	e.initialized = true
	e.logger.Debug("engine initialized", "sampleRate", e.sampleRate, "blockSize", e.blockSize, "backend", e.backend)
	return nil
}

// Initialized reports whether Initialize succeeded.
func (e *Engine) Initialized() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initialized
}

// SampleRate returns the engine sample rate in Hz.
func (e *Engine) SampleRate() int { return e.sampleRate }

// Backend returns the realtime output Play opens.
func (e *Engine) Backend() string { return string(e.backend) }

// Now returns the time of the next frame to be rendered, in seconds.
func (e *Engine) Now() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sched.Now()
}

// ApplyConfig validates c and applies its module settings at the current
// time. Sample rate, block size, backend and seed are fixed at New.
func (e *Engine) ApplyConfig(c *Config) error {
	if c == nil {
		return nil
	}
	c = c.Clone()
	if err := c.Validate(); err != nil {
		return fmt.Errorf("buchla: config: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if c.SampleRate != e.sampleRate || c.BlockSize != e.blockSize {
		e.logger.Warn("sample rate and block size are fixed at construction",
			"component", "engine", "sampleRate", c.SampleRate, "blockSize", c.BlockSize)
	}
	e.applyRack(c, e.sched.Now())
	return nil
}

// applyRack pushes every module setting in c. c has been validated.
func (e *Engine) applyRack(c *config.Config, now float64) {
	sr := float64(e.sampleRate)
	for ch, cc := range c.Channels {
		e.setOscillatorParams(ch, OscillatorParams{
			Frequency:    Float(cc.Frequency),
			WaveShape:    Float(cc.Shape),
			FMAmount:     Float(cc.FMAmount),
			FMRatio:      Float(cc.FMRatio),
			DetuneSpread: Float(cc.Detune),
			FoldAmount:   Float(cc.Fold.Amount),
			FoldDrive:    Float(cc.Fold.Drive),
			FoldCurve:    cc.Fold.Curve,
		}, now)

		model, _ := filter.ParseModel(cc.Filter.Model)
		if e.banks[ch].Model() != model {
			e.banks[ch] = filter.NewBank(sr, model)
		}
		e.banks[ch].SetFilter(cc.Filter.Frequency, cc.Filter.Q)
		e.banks[ch].SetMix(cc.Filter.Mix)

		g := e.lpgs[ch]
		g.SetEnvelope(lpg.EnvelopeParams{
			Attack:  cc.Envelope.Attack,
			Decay:   cc.Envelope.Decay,
			Sustain: cc.Envelope.Sustain,
			Release: cc.Envelope.Release,
		})
		mode, _ := lpg.ParseMode(cc.LPG.Mode)
		g.SetParams(lpg.Params{
			Mode:       &mode,
			Level:      cc.LPG.Level,
			ModAmount:  cc.LPG.ModAmount,
			Response:   cc.LPG.Response,
			BaseCutoff: cc.LPG.BaseCutoff,
			FallRatio:  cc.LPG.FallRatio,
		}, now)
		if cc.LPG.Loop || g.Looping() {
			g.SetLoopMode(cc.LPG.Loop, cc.LPG.LoopRate, now)
		}
		e.spatial.SetPosition(ch, cc.Position.X, cc.Position.Y)
	}

	preset, _ := matrix.ParsePreset(c.Matrix.Preset)
	e.matrix.ApplyPreset(preset)
	if len(c.Matrix.Grid) == matrix.Size {
		var g matrix.Grid
		for i, row := range c.Matrix.Grid {
			copy(g[i][:], row)
		}
		e.matrix.SetGrid(g)
	}

	if err := e.spatial.SetReverb(spatial.ReverbParams{Decay: c.Reverb.Decay, PreDelay: c.Reverb.PreDelay, Wet: c.Reverb.Wet}); err != nil {
		e.logger.Warn("reverb update failed", "component", "spatial", "error", err)
	}
	e.spatial.SetToneShape(c.Tone.Low, c.Tone.Mid, c.Tone.High)

	scale, _ := afg.ScaleNamed(c.Quantizer.Scale)
	walk, _ := afg.ParseTraverseMode(c.Quantizer.Mode)
	e.afg.SetQuantizer(afg.QuantizerParams{
		Enabled:  c.Quantizer.Enabled,
		Scale:    scale,
		Root:     c.Quantizer.Root,
		Traverse: c.Quantizer.Traverse,
		Mode:     walk,
	})
	for h, p := range c.Playheads {
		src := afg.Source{Kind: afg.SourceInternal}
		if p.Division != "" {
			d, _ := clock.ParseDivision(p.Division)
			src = afg.Source{Kind: afg.SourceClock, Division: d}
		}
		e.afg.SetPlayheadSource(h, src, now)
		e.afg.SetTimeMultiplier(h, p.TimeMultiplier)
	}

	e.noise.SetParams(noise.Params{Volume: c.Noise.Volume, FilterFreq: c.Noise.FilterFreq, FilterQ: c.Noise.FilterQ}, now)
	e.noise.SetRandomVoltages(c.Noise.CVRange, c.Noise.Slew)
	if c.Noise.GateRate > 0 || e.noise.GatesActive() {
		e.noise.SetRandomGates(c.Noise.GateRate, c.Noise.GateProbability, now)
	}

	e.setTempo(c.Tempo)
	ramp := DefaultMasterRamp
	if !e.initialized {
		ramp = 0
	}
	e.setMasterVolume(c.MasterVolume, now, ramp)

	comp := c.Bus.Compressor
	e.bus = effects.NewChain(
		effects.NewCompressor(e.sampleRate, comp.ThresholdDB, comp.Ratio, comp.AttackMs, comp.ReleaseMs, comp.MakeupDB),
		effects.NewSoftClip(e.sampleRate, c.Bus.Drive, 1, 0),
	)
	e.rack = c
}

// routeCounter feeds d's counter, scaled to [0, 1], into every external
// input routed from d.
func (e *Engine) routeCounter(d clock.Division, v int) {
	span := float64(d.Period() - 1)
	for input, on := range e.cvRoutes[d] {
		if on {
			e.afg.SetExternalInput(input, float64(v)/span)
		}
	}
}

func (e *Engine) pulseEnvelopes(d clock.Division, t float64) {
	for ch, on := range e.envRoutes[d] {
		if on {
			e.lpgs[ch].Trigger(t, 1, 0)
		}
	}
}

// onStep plays a sequencer step on its channel. It runs inside the render
// loop with the engine lock held.
func (e *Engine) onStep(ev afg.StepEvent) {
	if ev.Trigger > 0 {
		g := e.lpgs[ev.Channel]
		if ev.Channel < OscChannels {
			glide := g.Snapshot().State != lpg.StateIdle
			e.osc[ev.Channel].SetFrequency(osc.VOctToFreq(ev.CV), ev.Time, glide)
		}
		g.Trigger(ev.Time, ev.CV2, ev.Duration)
	}
	e.sendEvent(Event{Kind: EventStep, Time: ev.Time, Step: ev})
	if ev.Wrapped {
		e.sendEvent(Event{Kind: EventLoopWrapped, Time: ev.Time, Step: ev})
	}
}

func (e *Engine) onRandomGate(t float64) {
	e.lpgs[NoiseChannel].Trigger(t, 1, 0)
	e.sendEvent(Event{Kind: EventRandomGate, Time: t})
}

// renderBlock renders n frames into the quad buffers.
func (e *Engine) renderBlock(n int) {
	var pre, post, quad [Channels][]float64
	for ch := 0; ch < Channels; ch++ {
		pre[ch] = e.pre[ch][:n]
		post[ch] = e.post[ch][:n]
		quad[ch] = e.quad[ch][:n]
	}
	times := e.times[:n]

	for k := 0; k < n; k++ {
		e.sched.RunDue()
		t := e.sched.Now()
		times[k] = t
		e.afg.Tick(t)
		if e.randomPatch >= 0 {
			e.afg.SetExternalInput(e.randomPatch, e.noise.CV())
		}
		for ch := 0; ch < OscChannels; ch++ {
			pre[ch][k] = e.shapeChannel(ch, e.osc[ch].Sample(t))
		}
		pre[NoiseChannel][k] = e.shapeChannel(NoiseChannel, e.noise.Sample(t))
		e.sched.Advance()
	}

	e.matrix.Process(&pre, &post)
	for ch, g := range e.lpgs {
		buf := post[ch]
		for k, x := range buf {
			buf[k] = g.Process(x, times[k])
		}
	}
	if err := e.spatial.Process(&post, &quad); err != nil && !e.spatialErr {
		e.spatialErr = true
		e.logger.Error("spatial processing failed", "component", "spatial", "error", err)
	}

	gains := e.gains[:n]
	for k, t := range times {
		gains[k] = e.master.Advance(t)
	}
	for s := range quad {
		vecmath.MulBlockInPlace(quad[s], gains)
	}
	e.bus.ProcessBlock(&quad)
}

func (e *Engine) shapeChannel(ch int, x float64) float64 {
	x = e.folders[ch].Process(x)
	x = e.shapeFolders[ch].Process(x)
	return e.banks[ch].ProcessSample(x)
}

// Process renders interleaved stereo frames. Front and rear speakers are
// folded down per side.
func (e *Engine) Process(dst []float32) { e.render(dst, 2) }

// ProcessQuad renders interleaved quad frames: FL, FR, RL, RR.
func (e *Engine) ProcessQuad(dst []float32) { e.render(dst, spatial.Speakers) }

func (e *Engine) render(dst []float32, channels int) {
	e.mu.Lock()
	frames := len(dst) / channels
	if !e.initialized || e.closed {
		clear(dst)
		e.mu.Unlock()
		return
	}
	for off := 0; off < frames; {
		n := min(e.blockSize, frames-off)
		e.renderBlock(n)
		for k := 0; k < n; k++ {
			i := (off + k) * channels
			if channels == spatial.Speakers {
				for s := 0; s < spatial.Speakers; s++ {
					dst[i+s] = float32(e.quad[s][k])
				}
				continue
			}
			dst[i] = float32(e.quad[spatial.FrontLeft][k] + e.quad[spatial.RearLeft][k])
			dst[i+1] = float32(e.quad[spatial.FrontRight][k] + e.quad[spatial.RearRight][k])
		}
		off += n
	}
	clear(dst[frames*channels:])
	tap := e.sampleTap
	e.mu.Unlock()
	if tap != nil {
		tap(dst)
	}
}

// Play opens the configured realtime output and starts pulling audio. It
// returns once the output is running; cancelling ctx stops it.
func (e *Engine) Play(ctx context.Context) error {
	e.playMu.Lock()
	defer e.playMu.Unlock()
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if !e.initialized {
		e.mu.Unlock()
		return ErrNotInitialized
	}
	if e.sink != nil {
		e.mu.Unlock()
		return nil
	}
	backend := e.backend
	open := e.openSink
	e.mu.Unlock()

	var src audio.SampleSource = audio.SourceFunc(e.Process)
	if backend.Channels() == spatial.Speakers {
		src = audio.SourceFunc(e.ProcessQuad)
	}
	sink, err := open(backend, e.sampleRate, src)
	if err != nil {
		return fmt.Errorf("buchla: open %s output: %w", backend, err)
	}
	sink.Play()

	e.mu.Lock()
	e.sink = sink
	e.stopPlay = context.AfterFunc(ctx, func() {
		if err := e.Stop(); err != nil {
			e.logger.Warn("stopping output", "component", "audio", "error", err)
		}
	})
	e.mu.Unlock()
	e.logger.Info("output started", "backend", backend, "sampleRate", e.sampleRate)
	return nil
}

// Stop closes the realtime output. The engine keeps its state and can be
// played again.
func (e *Engine) Stop() error {
	e.playMu.Lock()
	defer e.playMu.Unlock()
	e.mu.Lock()
	sink := e.sink
	stop := e.stopPlay
	e.sink = nil
	e.stopPlay = nil
	e.mu.Unlock()
	if stop != nil {
		stop()
	}
	if sink == nil {
		return nil
	}
	return sink.Stop()
}

// IsPlaying reports whether a realtime output is running.
func (e *Engine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sink != nil && e.sink.IsPlaying()
}

// Close stops the output and playback and clears every scheduled event.
// The Watch channel is closed.
func (e *Engine) Close() error {
	err := e.Stop()
	e.mu.Lock()
	if !e.closed {
		e.stopPlayback()
		e.cvRoutes = [clock.NumDivisions][afg.NumInputs]bool{}
		e.envRoutes = [clock.NumDivisions][Channels]bool{}
		for d := clock.Division(0); d < clock.NumDivisions; d++ {
			e.clock.ClearRoutes(d)
			e.clock.ClearPulses(d)
		}
		for _, g := range e.lpgs {
			g.Reset()
		}
		e.noise.Reset()
		e.sched.ClearAll()
		e.closed = true
	}
	e.mu.Unlock()

	e.eventChMu.Lock()
	if e.eventCh != nil {
		close(e.eventCh)
		e.eventCh = nil
	}
	e.watchDone = true
	e.eventChMu.Unlock()
	return err
}

// Watch returns a channel receiving step, loop and playback events. Events
// are dropped while the channel is full. A later call closes the previous
// channel and replaces it. After Close the returned channel is closed.
func (e *Engine) Watch() <-chan Event {
	ch := make(chan Event, eventBuffer)
	e.eventChMu.Lock()
	defer e.eventChMu.Unlock()
	if e.eventCh != nil {
		close(e.eventCh)
		e.eventCh = nil
	}
	if e.watchDone {
		close(ch)
		return ch
	}
	e.eventCh = ch
	return ch
}

func (e *Engine) sendEvent(ev Event) {
	e.eventChMu.Lock()
	defer e.eventChMu.Unlock()
	if e.eventCh == nil {
		return
	}
	select {
	case e.eventCh <- ev:
	default:
	}
}

// Inspect returns a snapshot of channel ch. Out-of-range channels return a
// zero snapshot.
func (e *Engine) Inspect(ch int) ChannelSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ch < 0 || ch >= Channels {
		return ChannelSnapshot{Channel: ch}
	}
	s := ChannelSnapshot{
		Channel:      ch,
		FoldAmount:   e.folders[ch].Amount(),
		LPG:          e.lpgs[ch].Snapshot(),
		SpeakerGains: e.spatial.SpeakerGains(ch),
	}
	s.X, s.Y = e.spatial.Position(ch)
	if band := e.banks[ch].Band(0); band != nil {
		s.FilterFreq, s.FilterQ = band.Freq(), band.Q()
	}
	if ch < OscChannels {
		o := e.osc[ch]
		s.Frequency = o.Frequency()
		s.WaveShape = o.Shape()
		s.FMAmount = o.FMAmount()
		s.DetuneSpread = o.DetuneSpread()
	} else {
		s.Frequency = e.noise.Params().FilterFreq
	}
	return s
}

// Transport returns a snapshot of the clock and sequencer.
func (e *Engine) Transport() TransportSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := TransportSnapshot{
		Now:             e.sched.Now(),
		Playing:         e.playing,
		Tempo:           e.clock.Tempo(),
		Ticks:           e.clock.Ticks(),
		ClockHandles:    e.clock.HandleCount(),
		PlayheadHandles: e.afg.HandleCount(),
		MasterGain:      e.master.Value(),
	}
	for d := clock.Division(0); d < clock.NumDivisions; d++ {
		s.Counters[d] = e.clock.Counter(d)
	}
	for h := range s.Heads {
		s.Heads[h], _ = e.afg.Playhead(h)
		s.CV[h] = e.afg.CV(h)
		s.CV2[h] = e.afg.CV2(h)
		s.Gate[h] = e.afg.TriggerOut(h)
	}
	return s
}

// Steps returns the step memory.
func (e *Engine) Steps() [afg.NumSteps]Step {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.afg.Steps()
}

// Crosspoint returns the matrix level from input i to output j.
func (e *Engine) Crosspoint(i, j int) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.matrix.Crosspoint(i, j)
}
