package buchla

import (
	"math"

	"github.com/cbegin/buchla-go/internal/afg"
	"github.com/cbegin/buchla-go/internal/clock"
	"github.com/cbegin/buchla-go/internal/config"
	"github.com/cbegin/buchla-go/internal/lpg"
	"github.com/cbegin/buchla-go/internal/noise"
	"github.com/cbegin/buchla-go/internal/spatial"
)

// Types shared with the internal modules.
type (
	Config          = config.Config
	Sequence        = afg.Sequence
	Note            = afg.Note
	Step            = afg.Step
	StepEvent       = afg.StepEvent
	Playhead        = afg.Playhead
	PlayheadSource  = afg.Source
	QuantizerParams = afg.QuantizerParams
	Scale           = afg.Scale
	TraverseMode    = afg.TraverseMode
	Division        = clock.Division
	EnvelopeParams  = lpg.EnvelopeParams
	LPGParams       = lpg.Params
	LPGMode         = lpg.Mode
	LPGState        = lpg.State
	LPGSnapshot     = lpg.Snapshot
	ReverbParams    = spatial.ReverbParams
	NoiseParams     = noise.Params
)

const (
	Sixteenth = clock.Sixteenth
	Eighth    = clock.Eighth
	Quarter   = clock.Quarter
	Half      = clock.Half
	Whole     = clock.Whole

	LPGBoth = lpg.ModeBoth
	LPGVCF  = lpg.ModeVCF
	LPGVCA  = lpg.ModeVCA

	TraverseUp     = afg.Up
	TraverseDown   = afg.Down
	TraverseUpDown = afg.UpDown
	TraverseRandom = afg.Random
)

// DefaultConfig returns the factory rack.
func DefaultConfig() *Config { return config.Default() }

// LoadConfig reads and validates a YAML rack file.
func LoadConfig(path string) (*Config, error) { return config.Load(path) }

// ScaleNamed returns a copy of one of the built-in quantizer scales.
func ScaleNamed(name string) (Scale, error) { return afg.ScaleNamed(name) }

// OscillatorParams updates a channel's source and shaper. Nil fields and an
// empty FoldCurve are left unchanged, so the zero value changes nothing:
//
//	e.SetOscillatorParams(0, OscillatorParams{WaveShape: buchla.Float(0.5)})
//
// On the noise channel Frequency moves the noise bandpass and the
// oscillator-only fields are ignored.
type OscillatorParams struct {
	Frequency    *float64
	WaveShape    *float64
	FMAmount     *float64
	FMRatio      *float64
	DetuneSpread *float64
	Glide        *float64
	DriftCents   *float64
	FoldAmount   *float64
	FoldDrive    *float64
	FoldCurve    string
	// ShapeFold scales the extra fold pass that follows the wave shape.
	ShapeFold *float64
}

// Float returns a pointer to v for the optional OscillatorParams fields.
func Float(v float64) *float64 { return &v }

// UnsetLPG returns LPGParams that change nothing.
func UnsetLPG() LPGParams { return lpg.Unset() }

// TriggerOptions shape a manual envelope trigger. A zero Velocity means full
// velocity; a zero Duration keeps the envelope's own decay.
type TriggerOptions struct {
	Velocity float64
	Duration float64
}

// EventKind identifies a Watch event.
type EventKind int

const (
	EventStep EventKind = iota
	EventLoopWrapped
	EventPlaybackStopped
	EventRandomGate
)

func (k EventKind) String() string {
	switch k {
	case EventStep:
		return "step"
	case EventLoopWrapped:
		return "loop"
	case EventPlaybackStopped:
		return "stopped"
	case EventRandomGate:
		return "gate"
	}
	return "unknown"
}

// Event is delivered on the channel returned by Watch.
type Event struct {
	Kind EventKind
	Time float64
	// Step is set for EventStep and EventLoopWrapped.
	Step StepEvent
}

// ChannelSnapshot is a read-only view of one channel.
type ChannelSnapshot struct {
	Channel      int
	Frequency    float64
	WaveShape    float64
	FMAmount     float64
	DetuneSpread float64
	FoldAmount   float64
	FilterFreq   float64
	FilterQ      float64
	LPG          LPGSnapshot
	X, Y         float64
	SpeakerGains [spatial.Speakers]float64
}

// TransportSnapshot is a read-only view of the clock and sequencer.
type TransportSnapshot struct {
	Now             float64
	Playing         bool
	Tempo           float64
	Ticks           int64
	Counters        [clock.NumDivisions]int
	ClockHandles    int
	PlayheadHandles int
	Heads           [afg.NumPlayheads]Playhead
	// Per-head outputs at Now: pitch CV, secondary CV and trigger level.
	CV, CV2, Gate [afg.NumPlayheads]float64
	MasterGain    float64
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
