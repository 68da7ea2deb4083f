package buchla

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cbegin/buchla-go/internal/audio"
	"github.com/cbegin/buchla-go/internal/lpg"
)

const testRate = 8000

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t testing.TB, opts ...Option) *Engine {
	t.Helper()
	base := []Option{WithSampleRate(testRate), WithBlockSize(64), WithLogger(quietLogger())}
	e, err := New(append(base, opts...)...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if err := e.Initialize(); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func render(e *Engine, seconds float64) []float32 {
	buf := make([]float32, int(seconds*testRate)*2)
	e.Process(buf)
	return buf
}

func middleC() Sequence {
	return Sequence{Notes: []Note{{Pitch: 60, StartTime: 0, EndTime: 0.5, Velocity: 1, Channel: 0}}}
}

func TestNewRejectsInvalidSettings(t *testing.T) {
	if _, err := New(WithSampleRate(100), WithLogger(quietLogger())); !errors.Is(err, ErrInvalidSampleRate) {
		t.Fatalf("sample rate 100: err = %v, want ErrInvalidSampleRate", err)
	}
	if _, err := New(WithBlockSize(0), WithLogger(quietLogger())); !errors.Is(err, ErrInvalidBlockSize) {
		t.Fatalf("block size 0: err = %v, want ErrInvalidBlockSize", err)
	}
	bad := DefaultConfig()
	bad.Tempo = 1000
	if _, err := New(WithConfig(bad), WithLogger(quietLogger())); err == nil {
		t.Fatal("expected config validation error")
	}
}

func TestUninitializedEngineIsSilent(t *testing.T) {
	e, err := New(WithSampleRate(testRate), WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	defer e.Close()
	e.StartPlayback(middleC())
	buf := []float32{1, 1, 1, 1}
	e.Process(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("sample %d = %v, want 0", i, v)
		}
	}
	if err := e.Play(t.Context()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("Play before Initialize: err = %v, want ErrNotInitialized", err)
	}
}

func TestInitializeIsIdempotent(t *testing.T) {
	e := newTestEngine(t)
	if err := e.Initialize(); err != nil {
		t.Fatalf("second initialize: %v", err)
	}
	if !e.Initialized() {
		t.Fatal("engine not initialized")
	}
}

func TestMiddleCPlaysThroughAttack(t *testing.T) {
	e := newTestEngine(t)
	e.StartPlayback(middleC())
	if !e.Playing() {
		t.Fatal("engine not playing")
	}

	sawAttack := false
	opened := false
	frame := make([]float32, 2)
	for i := 0; i < int(0.3*testRate); i++ {
		e.Process(frame)
		snap := e.Inspect(0).LPG
		if snap.State == lpg.StateAttack {
			sawAttack = true
		}
		if snap.Gain > 0.01 && !opened {
			opened = true
			if !sawAttack {
				t.Fatalf("gain %v above 0.01 at frame %d before the attack stage", snap.Gain, i)
			}
		}
	}
	if !opened {
		t.Fatal("gate never opened")
	}
	if got, want := e.Inspect(0).Frequency, 261.6256; math.Abs(got-want) > 0.01 {
		t.Fatalf("channel 0 frequency = %v, want %v", got, want)
	}
}

func TestStartStopIdempotent(t *testing.T) {
	e := newTestEngine(t)
	e.StartPlayback(middleC())
	e.StartPlayback(middleC())
	tr := e.Transport()
	if tr.ClockHandles != 1 || tr.PlayheadHandles != 1 {
		t.Fatalf("handles after double start = clock %d, playheads %d, want 1, 1", tr.ClockHandles, tr.PlayheadHandles)
	}
	render(e, 0.1)
	e.StartPlayhead(0)
	e.StartClock()
	if tr := e.Transport(); tr.ClockHandles != 1 || tr.PlayheadHandles != 1 {
		t.Fatalf("handles after restart = clock %d, playheads %d, want 1, 1", tr.ClockHandles, tr.PlayheadHandles)
	}

	e.StopPlayback()
	e.StopPlayback()
	tr = e.Transport()
	if tr.Playing || tr.ClockHandles != 0 || tr.PlayheadHandles != 0 {
		t.Fatalf("after stop: %+v", tr)
	}
}

func TestStopPlaybackWhileIdle(t *testing.T) {
	e := newTestEngine(t)
	events := e.Watch()
	e.StopPlayback()
	if e.Playing() {
		t.Fatal("idle engine reports playing")
	}
	select {
	case ev := <-events:
		t.Fatalf("unexpected event %v", ev.Kind)
	default:
	}
}

func TestEmptySequenceStaysSilent(t *testing.T) {
	e := newTestEngine(t)
	e.StartPlayback(Sequence{})
	if e.Playing() {
		t.Fatal("empty sequence started playback")
	}
	if tr := e.Transport(); tr.ClockHandles != 0 {
		t.Fatalf("clock handles = %d, want 0", tr.ClockHandles)
	}
	for i, v := range render(e, 0.1) {
		if v != 0 {
			t.Fatalf("sample %d = %v, want silence", i, v)
		}
	}

	invalid := Sequence{Notes: []Note{{Pitch: 200, StartTime: 1, EndTime: 0.5}}}
	e.StartPlayback(invalid)
	if e.Playing() {
		t.Fatal("invalid sequence started playback")
	}
}

func TestWatchReportsStepsAndStop(t *testing.T) {
	e := newTestEngine(t)
	events := e.Watch()
	seq := Sequence{Notes: []Note{
		{Pitch: 60, StartTime: 0, EndTime: 0.05, Velocity: 1, Channel: 1},
		{Pitch: 67, StartTime: 0.05, EndTime: 0.1, Velocity: 0.5, Channel: 2},
	}}
	e.StartPlayback(seq)
	// two 0.05 s notes and fourteen rests of span/16 make a 0.1875 s loop
	render(e, 0.3)
	e.StopPlayback()

	var steps, wraps, stops int
	first := true
	for done := false; !done; {
		select {
		case ev := <-events:
			switch ev.Kind {
			case EventStep:
				if first {
					first = false
					if ev.Step.Step != 0 || ev.Step.Channel != 1 {
						t.Fatalf("first step event = %+v", ev.Step)
					}
				}
				steps++
			case EventLoopWrapped:
				wraps++
			case EventPlaybackStopped:
				stops++
			}
		default:
			done = true
		}
	}
	if steps < 16 || wraps < 1 || stops != 1 {
		t.Fatalf("steps %d wraps %d stops %d", steps, wraps, stops)
	}
}

func TestMasterVolume(t *testing.T) {
	e := newTestEngine(t)
	if got := e.MasterVolume(); math.Abs(got-0.8) > 1e-9 {
		t.Fatalf("default master volume = %v, want 0.8", got)
	}

	cases := []struct {
		name string
		v    float64
		want float64
	}{
		{"half", 0.5, 0.5},
		{"full", 1, 1},
		{"clamped above", 3, 1},
		{"near floor mutes", 0.001, 0},
		{"zero", 0, 0},
		{"clamped below", -1, 0},
		{"back up from silence", 0.25, 0.25},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e.SetMasterVolume(tc.v, 0.02)
			render(e, 0.05)
			if got := e.MasterVolume(); math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("master volume = %v, want %v", got, tc.want)
			}
		})
	}

	e.SetMasterVolume(math.NaN(), 0)
	render(e, 0.01)
	if got := e.MasterVolume(); math.Abs(got-0.25) > 1e-9 {
		t.Fatalf("NaN changed master volume to %v", got)
	}
}

func TestMasterDB(t *testing.T) {
	cases := []struct {
		v, want float64
	}{
		{1, 0},
		{0, -60},
		{1e-6, -60},
		{0.1, -20},
	}
	for _, tc := range cases {
		if got := masterDB(tc.v); math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("masterDB(%v) = %v, want %v", tc.v, got, tc.want)
		}
	}
}

func TestInvalidSettersAreIgnored(t *testing.T) {
	e := newTestEngine(t)
	before := e.Transport()

	e.SetOscillatorParams(7, OscillatorParams{})
	e.SetOscillatorParams(-1, OscillatorParams{})
	e.SetFilter(4, 100, 2)
	e.SetEnvelope(9, EnvelopeParams{})
	e.SetLoopMode(4, true, 1)
	e.Trigger(5, 0, TriggerOptions{})
	e.SetSpatialPosition(4, 0, 0)
	e.SetStep(16, Step{})
	e.SetExternalInput(4, 1)
	e.StartPlayhead(2)
	e.StopPlayhead(-1)
	e.SetTempo(math.NaN())
	e.SetMixerPoint(4, 0, 1)
	e.SetMixerPoint(0, 0, math.NaN())
	e.RouteDivision(Division(9), 0)
	e.TriggerEnvelopeOn(Whole, 8)
	e.Strobe(math.Inf(1))

	after := e.Transport()
	if after.Tempo != before.Tempo {
		t.Fatalf("tempo changed to %v", after.Tempo)
	}
	if got := e.Crosspoint(0, 0); got != 0.7 {
		t.Fatalf("crosspoint (0,0) = %v, want 0.7", got)
	}
	if snap := e.Inspect(9); snap.Channel != 9 || snap.Frequency != 0 {
		t.Fatalf("out-of-range inspect = %+v", snap)
	}
}

func TestSettersClamp(t *testing.T) {
	e := newTestEngine(t)
	e.SetTempo(1000)
	if got := e.Transport().Tempo; got != 300 {
		t.Fatalf("tempo = %v, want 300", got)
	}
	e.SetMixerPoint(0, 1, 2)
	if got := e.Crosspoint(0, 1); got != 1 {
		t.Fatalf("crosspoint = %v, want 1", got)
	}
	e.SetSpatialPosition(2, 5, -5)
	if snap := e.Inspect(2); snap.X != 1 || snap.Y != -1 {
		t.Fatalf("position = (%v, %v), want (1, -1)", snap.X, snap.Y)
	}
	e.SetOscillatorParams(1, OscillatorParams{Frequency: Float(5), WaveShape: Float(2)})
	render(e, 0.01)
	if snap := e.Inspect(1); snap.Frequency != 20 || snap.WaveShape != 1 {
		t.Fatalf("oscillator = %+v", snap)
	}
}

func TestConfigSeedsChannels(t *testing.T) {
	c := DefaultConfig()
	c.Channels[1].Frequency = 220
	c.Channels[1].LPG.Mode = "vca"
	c.Matrix.Preset = "identity"
	e := newTestEngine(t, WithConfig(c))
	render(e, 0.01)
	snap := e.Inspect(1)
	if math.Abs(snap.Frequency-220) > 1e-9 {
		t.Fatalf("frequency = %v, want 220", snap.Frequency)
	}
	if snap.LPG.Mode != LPGVCA {
		t.Fatalf("lpg mode = %v, want vca", snap.LPG.Mode)
	}
	if got := e.Crosspoint(0, 1); got != 0 {
		t.Fatalf("identity crosspoint = %v, want 0", got)
	}
}

func TestLoopModeLeavesNoHandles(t *testing.T) {
	e := newTestEngine(t)
	e.SetLoopMode(2, true, 4)
	render(e, 0.2)
	if !e.Inspect(2).LPG.Looping {
		t.Fatal("loop not running")
	}
	e.SetLoopMode(2, false, 0)
	if e.Inspect(2).LPG.Looping {
		t.Fatal("loop still scheduled")
	}
}

func TestRandomGatesTriggerNoiseChannel(t *testing.T) {
	e := newTestEngine(t)
	events := e.Watch()
	e.SetRandomGates(600, 1)
	sawAttack := false
	for i := 0; i < 25; i++ {
		render(e, 0.01)
		if e.Inspect(NoiseChannel).LPG.State == lpg.StateAttack {
			sawAttack = true
		}
	}
	gates := 0
	for done := false; !done; {
		select {
		case ev := <-events:
			if ev.Kind == EventRandomGate {
				gates++
			}
		default:
			done = true
		}
	}
	if gates < 2 || !sawAttack {
		t.Fatalf("gates %d, attack seen %t", gates, sawAttack)
	}
	e.SetRandomGates(0, 1)
}

func TestDivisionTriggersEnvelope(t *testing.T) {
	e := newTestEngine(t)
	e.SetTempo(300)
	e.TriggerEnvelopeOn(Sixteenth, 1)
	e.StartClock()
	render(e, 0.01)
	if got := e.Inspect(1).LPG.State; got != lpg.StateAttack {
		t.Fatalf("state = %v, want attack", got)
	}
	e.ClearDivision(Sixteenth)
	e.StopClock()
}

func TestRouteDivisionFeedsExternalStep(t *testing.T) {
	e := newTestEngine(t)
	e.RouteDivision(Sixteenth, 2)
	e.SetStep(0, Step{Trigger: 1, ExternalMode: true, ExternalInput: 2, CV2: 1, Duration: 1})
	e.StartClock()
	render(e, 0.2)
	e.StartPlayhead(0)
	render(e, 0.001)
	head := e.Transport().Heads[0]
	if head.CurrentStep != 1 {
		t.Fatalf("playhead at step %d, want 1", head.CurrentStep)
	}
	if cv2 := e.Transport().CV2[0]; cv2 != 1 {
		t.Fatalf("head 0 CV2 = %v, want the step's 1", cv2)
	}
	got := e.Inspect(0).Frequency
	// counter values 0..3 map to 0, 1/3, 2/3, 1 V/oct above middle C
	ok := false
	for _, v := range []float64{0, 1.0 / 3, 2.0 / 3, 1} {
		if math.Abs(got-261.6256*math.Pow(2, v)) < 0.05 {
			ok = true
		}
	}
	if !ok {
		t.Fatalf("frequency %v is not a routed counter value", got)
	}
}

func TestStereoIsQuadFoldDown(t *testing.T) {
	a := newTestEngine(t, WithSeed(7))
	b := newTestEngine(t, WithSeed(7))
	a.StartPlayback(middleC())
	b.StartPlayback(middleC())

	const frames = 2000
	stereo := make([]float32, frames*2)
	quad := make([]float32, frames*4)
	a.Process(stereo)
	b.ProcessQuad(quad)
	for k := 0; k < frames; k++ {
		l := quad[k*4] + quad[k*4+2]
		r := quad[k*4+1] + quad[k*4+3]
		if math.Abs(float64(stereo[k*2]-l)) > 1e-6 || math.Abs(float64(stereo[k*2+1]-r)) > 1e-6 {
			t.Fatalf("frame %d: stereo (%v, %v), quad fold (%v, %v)", k, stereo[k*2], stereo[k*2+1], l, r)
		}
	}
}

func TestCloseClearsEverything(t *testing.T) {
	e := newTestEngine(t)
	events := e.Watch()
	e.StartPlayback(middleC())
	e.SetLoopMode(1, true, 1)
	render(e, 0.05)
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	tr := e.Transport()
	if tr.ClockHandles != 0 || tr.PlayheadHandles != 0 || e.Inspect(1).LPG.Looping {
		t.Fatalf("handles left after close: %+v", tr)
	}
	for range events {
	}
	if err := e.Initialize(); !errors.Is(err, ErrClosed) {
		t.Fatalf("initialize after close: err = %v, want ErrClosed", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
}

// fakeOutput counts the sinks an engine opens and keeps open.
type fakeOutput struct {
	mu     sync.Mutex
	opened int
	open   int
}

func (f *fakeOutput) openSink(audio.Backend, int, audio.SampleSource) (audio.Sink, error) {
	f.mu.Lock()
	f.opened++
	f.open++
	f.mu.Unlock()
	// widen the window between opening and publishing the sink
	time.Sleep(5 * time.Millisecond)
	return &fakeSink{out: f}, nil
}

func (f *fakeOutput) counts() (opened, open int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened, f.open
}

type fakeSink struct {
	out     *fakeOutput
	mu      sync.Mutex
	playing bool
	stopped bool
}

func (s *fakeSink) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = !s.stopped
}

func (s *fakeSink) IsPlaying() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *fakeSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.stopped {
		s.stopped = true
		s.playing = false
		s.out.mu.Lock()
		s.out.open--
		s.out.mu.Unlock()
	}
	return nil
}

func TestConcurrentPlayOpensOneSink(t *testing.T) {
	e := newTestEngine(t)
	out := &fakeOutput{}
	e.openSink = out.openSink

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = e.Play(context.Background())
		}()
	}
	wg.Wait()
	for i, err := range errs {
		if err != nil {
			t.Fatalf("play %d: %v", i, err)
		}
	}
	if opened, open := out.counts(); opened != 1 || open != 1 {
		t.Fatalf("opened %d sinks, %d still open; want 1 and 1", opened, open)
	}
	if !e.IsPlaying() {
		t.Fatal("engine not playing")
	}
	if err := e.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if _, open := out.counts(); open != 0 {
		t.Fatalf("%d sinks open after Stop", open)
	}
}

func TestPlayStopsWhenContextEnds(t *testing.T) {
	e := newTestEngine(t)
	out := &fakeOutput{}
	e.openSink = out.openSink
	ctx, cancel := context.WithCancel(context.Background())
	if err := e.Play(ctx); err != nil {
		t.Fatalf("play: %v", err)
	}
	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, open := out.counts(); open == 0 && !e.IsPlaying() {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("output still open after cancel")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWatchClosesReplacedChannel(t *testing.T) {
	e := newTestEngine(t)
	first := e.Watch()
	second := e.Watch()
	select {
	case _, ok := <-first:
		if ok {
			t.Fatal("received an event on the replaced channel")
		}
	default:
		t.Fatal("replaced channel left open")
	}
	if err := e.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, ok := <-second; ok {
		t.Fatal("watch channel open after Close")
	}
	if _, ok := <-e.Watch(); ok {
		t.Fatal("Watch after Close returned an open channel")
	}
}

func randomVoltageSteps(e *Engine) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.noise.Steps()
}

func TestRandomVoltageFollowsClock(t *testing.T) {
	e := newTestEngine(t)
	e.SetTempo(120)
	render(e, 0.5)
	if n := randomVoltageSteps(e); n != 0 {
		t.Fatalf("random voltage stepped %d times with the clock stopped", n)
	}
	// sixteenths at 120 bpm are 125 ms apart
	e.StartClock()
	render(e, 0.5)
	if n := randomVoltageSteps(e); n != 4 {
		t.Fatalf("steps = %d after 0.5 s of clock, want 4", n)
	}
	e.StopClock()
	render(e, 0.5)
	if n := randomVoltageSteps(e); n != 4 {
		t.Fatalf("steps = %d after stopping the clock, want 4", n)
	}
}

func TestRepeatedDivisionRoutesFireOnce(t *testing.T) {
	e := newTestEngine(t)
	e.TriggerEnvelopeOn(Sixteenth, 1)
	e.TriggerEnvelopeOn(Sixteenth, 1)
	e.RouteDivision(Sixteenth, 2)
	e.RouteDivision(Sixteenth, 2)
	e.SetExternalInput(2, 0.9)

	tick := func() (pending int, input float64) {
		e.mu.Lock()
		defer e.mu.Unlock()
		e.clock.Tick(e.sched.Now())
		return e.lpgs[1].Pending(), e.afg.ExternalInput(2)
	}
	pending, input := tick()
	if pending != 1 {
		t.Fatalf("one tick queued %d envelope triggers, want 1", pending)
	}
	if math.Abs(input-1.0/3) > 1e-12 {
		t.Fatalf("external input = %v, want 1/3", input)
	}

	e.ClearDivision(Sixteenth)
	e.SetExternalInput(2, 0.9)
	pending, input = tick()
	if pending != 1 || input != 0.9 {
		t.Fatalf("cleared division still routed: pending %d, input %v", pending, input)
	}
}

func TestLoopModeIgnoresInfiniteRate(t *testing.T) {
	e := newTestEngine(t)
	e.SetLoopMode(2, true, 4)
	before := e.Inspect(2).LPG
	e.SetLoopMode(2, true, math.Inf(1))
	e.SetLoopMode(2, true, math.NaN())
	after := e.Inspect(2).LPG
	if !after.Looping || after.LoopEvery != before.LoopEvery {
		t.Fatalf("loop changed from %+v to %+v", before, after)
	}
}

func TestZeroOscillatorParamsChangeNothing(t *testing.T) {
	var logs bytes.Buffer
	e := newTestEngine(t, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	render(e, 0.01)
	before := e.Inspect(1)
	mark := logs.Len()

	e.SetOscillatorParams(1, OscillatorParams{})
	e.SetOscillatorParams(NoiseChannel, OscillatorParams{})
	render(e, 0.01)
	if after := e.Inspect(1); after.Frequency != before.Frequency || after.WaveShape != before.WaveShape ||
		after.FMAmount != before.FMAmount || after.FoldAmount != before.FoldAmount {
		t.Fatalf("zero params changed the channel: %+v -> %+v", before, after)
	}
	if tail := logs.String()[mark:]; strings.Contains(tail, "level=WARN") {
		t.Fatalf("zero params logged a warning: %s", tail)
	}

	e.SetOscillatorParams(1, OscillatorParams{WaveShape: Float(0.5), FoldDrive: Float(math.NaN())})
	render(e, 0.01)
	if got := e.Inspect(1).WaveShape; got != 0.5 {
		t.Fatalf("wave shape = %v, want 0.5", got)
	}
	if !strings.Contains(logs.String()[mark:], "foldDrive") {
		t.Fatal("NaN fold drive was not reported")
	}
}

func TestApplyConfigRampsMasterVolume(t *testing.T) {
	e := newTestEngine(t)
	start := e.MasterVolume()
	c := DefaultConfig()
	c.SampleRate, c.BlockSize = testRate, 64
	c.MasterVolume = 0.2
	if err := e.ApplyConfig(c); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if got := e.MasterVolume(); math.Abs(got-start) > 1e-9 {
		t.Fatalf("gain jumped from %v to %v", start, got)
	}
	render(e, 0.01)
	if got := e.MasterVolume(); got <= 0.21 || got >= start-0.01 {
		t.Fatalf("gain %v after 10 ms, want mid-ramp", got)
	}
	render(e, 0.2)
	if got := e.MasterVolume(); math.Abs(got-0.2) > 1e-6 {
		t.Fatalf("gain %v after the ramp, want 0.2", got)
	}
}

func TestConfigGridIsCopied(t *testing.T) {
	c := DefaultConfig()
	c.Matrix.Grid = [][]float64{{1, 0.5, 0, 0}, {0.5, 1, 0, 0}, {0, 0, 1, 0}, {0, 0, 0, 1}}
	e := newTestEngine(t, WithConfig(c))
	rackCell := func() float64 {
		e.mu.Lock()
		defer e.mu.Unlock()
		return e.rack.Matrix.Grid[0][1]
	}
	c.Matrix.Grid[0][1] = 1
	if got := rackCell(); got != 0.5 {
		t.Fatalf("caller edit reached the engine's rack: %v", got)
	}
	if got := e.Crosspoint(0, 1); got != 0.5 {
		t.Fatalf("crosspoint (0,1) = %v, want 0.5", got)
	}

	if err := e.ApplyConfig(c); err != nil {
		t.Fatalf("apply: %v", err)
	}
	c.Matrix.Grid[0][1] = 0
	if got := rackCell(); got != 1 {
		t.Fatalf("caller edit after ApplyConfig reached the rack: %v", got)
	}
}

func BenchmarkProcess(b *testing.B) {
	e := newTestEngine(b)
	e.StartPlayback(middleC())
	buf := make([]float32, 512*2)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Process(buf)
	}
}
