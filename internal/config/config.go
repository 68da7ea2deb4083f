// Package config loads the YAML rack description: engine settings plus the
// initial state of every channel and shared module.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"

	"github.com/cbegin/buchla-go/internal/afg"
	"github.com/cbegin/buchla-go/internal/audio"
	"github.com/cbegin/buchla-go/internal/clock"
	"github.com/cbegin/buchla-go/internal/filter"
	"github.com/cbegin/buchla-go/internal/lpg"
	"github.com/cbegin/buchla-go/internal/matrix"
	"github.com/cbegin/buchla-go/internal/shaper"
	"gopkg.in/yaml.v3"
)

const NumChannels = 4

type Fold struct {
	Amount float64 `yaml:"amount"`
	Curve  string  `yaml:"curve"`
	Drive  float64 `yaml:"drive"`
}

type Filter struct {
	Model     int     `yaml:"model"`
	Frequency float64 `yaml:"frequency"`
	Q         float64 `yaml:"q"`
	Mix       float64 `yaml:"mix"`
}

type Envelope struct {
	Attack  float64 `yaml:"attack"`
	Decay   float64 `yaml:"decay"`
	Sustain float64 `yaml:"sustain"`
	Release float64 `yaml:"release"`
}

type LPG struct {
	Mode       string  `yaml:"mode"`
	Level      float64 `yaml:"level"`
	ModAmount  float64 `yaml:"modAmount"`
	Response   float64 `yaml:"response"`
	BaseCutoff float64 `yaml:"baseCutoff"`
	FallRatio  float64 `yaml:"fallRatio"`
	Loop       bool    `yaml:"loop"`
	LoopRate   float64 `yaml:"loopRate"`
}

type Position struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// Channel is the starting state of one voice.
type Channel struct {
	Frequency float64  `yaml:"frequency"`
	Shape     float64  `yaml:"shape"`
	FMAmount  float64  `yaml:"fmAmount"`
	FMRatio   float64  `yaml:"fmRatio"`
	Detune    float64  `yaml:"detune"`
	Fold      Fold     `yaml:"fold"`
	Filter    Filter   `yaml:"filter"`
	Envelope  Envelope `yaml:"envelope"`
	LPG       LPG      `yaml:"lpg"`
	Position  Position `yaml:"position"`
}

// Channels decodes a YAML list over the defaults: listed channels only
// override the fields they name.
type Channels [NumChannels]Channel

func (c *Channels) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: channels must be a list", n.Line)
	}
	if len(n.Content) > NumChannels {
		return fmt.Errorf("line %d: at most %d channels, got %d", n.Line, NumChannels, len(n.Content))
	}
	for i, item := range n.Content {
		if err := item.Decode(&c[i]); err != nil {
			return fmt.Errorf("channel %d: %w", i, err)
		}
	}
	return nil
}

type Matrix struct {
	Preset string      `yaml:"preset"`
	Grid   [][]float64 `yaml:"grid,omitempty"`
}

type Reverb struct {
	Decay    float64 `yaml:"decay"`
	PreDelay float64 `yaml:"preDelay"`
	Wet      float64 `yaml:"wet"`
}

type Tone struct {
	Low  float64 `yaml:"low"`
	Mid  float64 `yaml:"mid"`
	High float64 `yaml:"high"`
}

type Quantizer struct {
	Enabled  bool    `yaml:"enabled"`
	Scale    string  `yaml:"scale"`
	Root     float64 `yaml:"root"`
	Traverse bool    `yaml:"traverse"`
	Mode     string  `yaml:"mode"`
}

type Playhead struct {
	// Division is empty for internal step timing, else "16n".."1n".
	Division       string  `yaml:"division"`
	TimeMultiplier float64 `yaml:"timeMultiplier"`
}

// Playheads decodes a YAML list over the defaults like Channels.
type Playheads [2]Playhead

func (p *Playheads) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.SequenceNode {
		return fmt.Errorf("line %d: playheads must be a list", n.Line)
	}
	if len(n.Content) > len(p) {
		return fmt.Errorf("line %d: at most %d playheads, got %d", n.Line, len(p), len(n.Content))
	}
	for i, item := range n.Content {
		if err := item.Decode(&p[i]); err != nil {
			return fmt.Errorf("playhead %d: %w", i, err)
		}
	}
	return nil
}

type Noise struct {
	Volume          float64 `yaml:"volume"`
	FilterFreq      float64 `yaml:"filterFreq"`
	FilterQ         float64 `yaml:"filterQ"`
	CVRange         float64 `yaml:"cvRange"`
	Slew            float64 `yaml:"slew"`
	GateRate        float64 `yaml:"gateRate"`
	GateProbability float64 `yaml:"gateProbability"`
}

type Compressor struct {
	ThresholdDB float64 `yaml:"thresholdDB"`
	Ratio       float64 `yaml:"ratio"`
	AttackMs    float64 `yaml:"attackMs"`
	ReleaseMs   float64 `yaml:"releaseMs"`
	MakeupDB    float64 `yaml:"makeupDB"`
}

type Bus struct {
	Compressor Compressor `yaml:"compressor"`
	Drive      float64    `yaml:"drive"`
}

// Config is a whole rack.
type Config struct {
	SampleRate   int       `yaml:"sampleRate"`
	BlockSize    int       `yaml:"blockSize"`
	Backend      string    `yaml:"backend"`
	Seed         uint64    `yaml:"seed"`
	LogLevel     string    `yaml:"logLevel"`
	Tempo        float64   `yaml:"tempo"`
	MasterVolume float64   `yaml:"masterVolume"`
	Channels     Channels  `yaml:"channels"`
	Matrix       Matrix    `yaml:"matrix"`
	Reverb       Reverb    `yaml:"reverb"`
	Tone         Tone      `yaml:"tone"`
	Quantizer    Quantizer `yaml:"quantizer"`
	Playheads    Playheads `yaml:"playheads"`
	Noise        Noise     `yaml:"noise"`
	Bus          Bus       `yaml:"bus"`
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	cp := *c
	if c.Matrix.Grid != nil {
		cp.Matrix.Grid = make([][]float64, len(c.Matrix.Grid))
		for i, row := range c.Matrix.Grid {
			cp.Matrix.Grid[i] = append([]float64(nil), row...)
		}
	}
	return &cp
}

// Default returns the factory rack.
func Default() *Config {
	c := &Config{
		SampleRate:   48000,
		BlockSize:    256,
		Backend:      string(audio.BackendEbiten),
		Seed:         1,
		LogLevel:     "info",
		Tempo:        clock.DefaultTempo,
		MasterVolume: 0.8,
		Matrix:       Matrix{Preset: "diagonal"},
		Reverb:       Reverb{Decay: 2, PreDelay: 0.01, Wet: 0.2},
		Tone:         Tone{Low: 0.5, Mid: 0.5, High: 0.5},
		Quantizer:    Quantizer{Scale: "major", Mode: "up"},
		Noise: Noise{
			Volume:     0.3,
			FilterFreq: 2000,
			FilterQ:    3,
			CVRange:    1,
		},
		Bus: Bus{
			Compressor: Compressor{ThresholdDB: -12, Ratio: 3, AttackMs: 5, ReleaseMs: 120},
			Drive:      1,
		},
	}
	positions := [NumChannels]Position{{-0.5, 0.5}, {0.5, 0.5}, {-0.5, -0.5}, {0.5, -0.5}}
	for i := range c.Channels {
		c.Channels[i] = Channel{
			Frequency: 440,
			Shape:     0,
			FMRatio:   2,
			Fold:      Fold{Curve: "triangle", Drive: shaper.DefaultDrive},
			Filter:    Filter{Model: int(filter.Model291), Frequency: 100, Q: 2, Mix: 1},
			Envelope: Envelope{
				Attack:  lpg.DefaultAttack,
				Decay:   lpg.DefaultDecay,
				Sustain: lpg.DefaultSustain,
				Release: lpg.DefaultRelease,
			},
			LPG: LPG{
				Mode:       "both",
				Level:      1,
				ModAmount:  1,
				Response:   lpg.DefaultResponse,
				BaseCutoff: lpg.DefaultBaseCutoff,
				FallRatio:  lpg.DefaultFallRatio,
				LoopRate:   1,
			},
			Position: positions[i],
		}
	}
	c.Playheads = Playheads{{TimeMultiplier: 1}, {TimeMultiplier: 1}}
	return c
}

// Load reads and validates a rack file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	c, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Read decodes a rack over the defaults and validates it. Unknown top-level
// keys are rejected.
func Read(r io.Reader) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Marshal encodes c as YAML.
func (c *Config) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Validate reports every problem in c.
func (c *Config) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}
	if c.SampleRate < 8000 || c.SampleRate > 192000 {
		bad("sampleRate %d out of range 8000-192000", c.SampleRate)
	}
	if c.BlockSize < 1 || c.BlockSize > 8192 {
		bad("blockSize %d out of range 1-8192", c.BlockSize)
	}
	if _, err := audio.ParseBackend(c.Backend); err != nil {
		errs = append(errs, err)
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		bad("logLevel %q: %v", c.LogLevel, err)
	}
	if c.Tempo < clock.MinTempo || c.Tempo > clock.MaxTempo {
		bad("tempo %v out of range %v-%v", c.Tempo, clock.MinTempo, clock.MaxTempo)
	}
	if !inUnit(c.MasterVolume) {
		bad("masterVolume %v out of range 0-1", c.MasterVolume)
	}
	for i, ch := range c.Channels {
		if err := ch.validate(); err != nil {
			errs = append(errs, fmt.Errorf("channel %d: %w", i, err))
		}
	}
	if _, err := matrix.ParsePreset(c.Matrix.Preset); err != nil {
		errs = append(errs, err)
	}
	if g := c.Matrix.Grid; g != nil {
		if len(g) != matrix.Size {
			bad("matrix grid needs %d rows, got %d", matrix.Size, len(g))
		}
		for i, row := range g {
			if len(row) != matrix.Size {
				bad("matrix grid row %d needs %d columns, got %d", i, matrix.Size, len(row))
			}
		}
	}
	if c.Reverb.Decay <= 0 || c.Reverb.PreDelay < 0 || !inUnit(c.Reverb.Wet) {
		bad("reverb %+v out of range", c.Reverb)
	}
	if !inUnit(c.Tone.Low) || !inUnit(c.Tone.Mid) || !inUnit(c.Tone.High) {
		bad("tone %+v out of range 0-1", c.Tone)
	}
	if _, err := afg.ScaleNamed(c.Quantizer.Scale); err != nil {
		errs = append(errs, err)
	}
	if _, err := afg.ParseTraverseMode(c.Quantizer.Mode); err != nil {
		errs = append(errs, err)
	}
	for i, p := range c.Playheads {
		if p.Division != "" {
			if _, err := clock.ParseDivision(p.Division); err != nil {
				errs = append(errs, fmt.Errorf("playhead %d: %w", i, err))
			}
		}
		if p.TimeMultiplier <= 0 {
			bad("playhead %d: timeMultiplier %v must be positive", i, p.TimeMultiplier)
		}
	}
	if !inUnit(c.Noise.Volume) || !inUnit(c.Noise.CVRange) || !inUnit(c.Noise.GateProbability) {
		bad("noise %+v out of range", c.Noise)
	}
	if c.Noise.GateRate < 0 || c.Noise.Slew < 0 {
		bad("noise gate rate and slew must not be negative")
	}
	if c.Bus.Compressor.Ratio < 1 {
		bad("bus compressor ratio %v below 1", c.Bus.Compressor.Ratio)
	}
	if c.Bus.Drive <= 0 {
		bad("bus drive %v must be positive", c.Bus.Drive)
	}
	return errors.Join(errs...)
}

func (ch Channel) validate() error {
	var errs []error
	if ch.Frequency <= 0 || math.IsNaN(ch.Frequency) {
		errs = append(errs, fmt.Errorf("frequency %v must be positive", ch.Frequency))
	}
	if !inUnit(ch.Shape) || !inUnit(ch.FMAmount) || !inUnit(ch.Detune) || !inUnit(ch.Fold.Amount) {
		errs = append(errs, errors.New("shape, fmAmount, detune and fold amount must be within 0-1"))
	}
	if _, ok := shaper.ParseCurve(ch.Fold.Curve); !ok {
		errs = append(errs, fmt.Errorf("unknown fold curve %q", ch.Fold.Curve))
	}
	if _, err := filter.ParseModel(ch.Filter.Model); err != nil {
		errs = append(errs, err)
	}
	if _, err := lpg.ParseMode(ch.LPG.Mode); err != nil {
		errs = append(errs, err)
	}
	e := ch.Envelope
	if e.Attack <= 0 || e.Decay <= 0 || e.Release <= 0 || !inUnit(e.Sustain) {
		errs = append(errs, fmt.Errorf("envelope %+v out of range", e))
	}
	if ch.LPG.Response <= 0 || ch.LPG.FallRatio < 1 {
		errs = append(errs, fmt.Errorf("lpg response %v / fall ratio %v out of range", ch.LPG.Response, ch.LPG.FallRatio))
	}
	if math.Abs(ch.Position.X) > 1 || math.Abs(ch.Position.Y) > 1 {
		errs = append(errs, fmt.Errorf("position %+v outside [-1, 1]", ch.Position))
	}
	return errors.Join(errs...)
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 }
