// Package spatial places the four gated channels in a quad field and runs the
// shared tone shaping and reverb on each speaker feed.
package spatial

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/delay"
	"github.com/cwbudde/algo-dsp/dsp/effects/reverb"
	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"
	"github.com/cwbudde/algo-dsp/dsp/signal"
	"github.com/cwbudde/algo-vecmath"
	"github.com/viterin/vek"
)

// Speaker indexes the quad outputs.
type Speaker int

const (
	FrontLeft Speaker = iota
	FrontRight
	RearLeft
	RearRight
)

const (
	Channels = 4
	Speakers = 4

	DefaultDecay    = 2.0
	DefaultPreDelay = 0.01
	DefaultWet      = 0.2
	MinDecay        = 0.1
	MaxDecay        = 10.0
	MaxPreDelay     = 0.1

	lowShelfHz  = 200.0
	midPeakHz   = 1000.0
	highShelfHz = 4000.0
	toneRangeDB = 24.0

	// per-sample smoothing time for pan gains
	panGlide = 0.005
	// partition size 2^6 keeps reverb latency at 64 samples
	reverbBlockOrder = 6
)

// ReverbParams configure the reverb. NaN fields are left unchanged.
type ReverbParams struct {
	Decay    float64
	PreDelay float64
	Wet      float64
}

// Gains returns the bilinear speaker gains for a position. They always sum
// to 1.
func Gains(x, y float64) [Speakers]float64 {
	x = core.Clamp(x, -1, 1)
	y = core.Clamp(y, -1, 1)
	return [Speakers]float64{
		FrontLeft:  (1 - x) * (1 + y) / 4,
		FrontRight: (1 + x) * (1 + y) / 4,
		RearLeft:   (1 - x) * (1 - y) / 4,
		RearRight:  (1 + x) * (1 - y) / 4,
	}
}

// Director is the quad panner, tone stage and reverb.
type Director struct {
	sampleRate float64
	seed       int64

	pos    [Channels][2]float64
	target [Channels][Speakers]float64
	gains  [Channels][Speakers]float64
	glide  float64

	tone     [3]float64
	toneEQ   [Speakers][3]*biquad.Section
	preDelay [Speakers]*delay.Line
	reverbs  [Speakers]*reverb.ConvolutionReverb
	decay    float64
	delaySec float64
	wet      float64

	wetBuf      [Speakers][]float64
	initialized bool
}

// New returns a director with every channel centred and flat tone.
// Initialize must run before the reverb is heard.
func New(sampleRate float64, seed int64) *Director {
	d := &Director{
		sampleRate: sampleRate,
		seed:       seed,
		glide:      1 - math.Exp(-1/(panGlide*sampleRate)),
		tone:       [3]float64{0.5, 0.5, 0.5},
		decay:      DefaultDecay,
		delaySec:   DefaultPreDelay,
		wet:        DefaultWet,
	}
	for ch := 0; ch < Channels; ch++ {
		d.target[ch] = Gains(0, 0)
		d.gains[ch] = d.target[ch]
	}
	for s := 0; s < Speakers; s++ {
		for b := range d.toneEQ[s] {
			d.toneEQ[s][b] = biquad.NewSection(biquad.Coefficients{B0: 1})
		}
	}
	d.updateTone()
	return d
}

// Initialize builds the pre-delay lines and generates the impulse responses.
// Calling it again is a no-op.
func (d *Director) Initialize() error {
	if d.initialized {
		return nil
	}
	size := int(MaxPreDelay*d.sampleRate) + 2
	for s := 0; s < Speakers; s++ {
		line, err := delay.New(size)
		if err != nil {
			return fmt.Errorf("spatial: pre-delay: %w", err)
		}
		d.preDelay[s] = line
	}
	if err := d.buildReverbs(); err != nil {
		return err
	}
	d.initialized = true
	return nil
}

// Initialized reports whether Initialize succeeded.
func (d *Director) Initialized() bool { return d.initialized }

// ImpulseResponse generates a decaying noise IR reaching -60 dB after decay
// seconds, normalized to unit energy. Each seed gives a decorrelated tail.
func ImpulseResponse(sampleRate, decay float64, seed int64) ([]float64, error) {
	n := int(decay * sampleRate)
	if n < 1 {
		n = 1
	}
	gen := signal.NewGeneratorWithOptions(
		[]core.ProcessorOption{core.WithSampleRate(sampleRate)},
		signal.WithSeed(seed),
	)
	ir, err := gen.WhiteNoise(1, n)
	if err != nil {
		return nil, fmt.Errorf("spatial: impulse response: %w", err)
	}
	env := make([]float64, n)
	// ln(1000) nepers is -60 dB
	k := math.Log(1000) / float64(n)
	for i := range env {
		env[i] = math.Exp(-k * float64(i))
	}
	vecmath.MulBlockInPlace(ir, env)
	energy := vek.Dot(ir, ir)
	if energy > 0 {
		vecmath.ScaleBlock(ir, ir, 1/math.Sqrt(energy))
	}
	return ir, nil
}

func (d *Director) buildReverbs() error {
	var errs []error
	for s := 0; s < Speakers; s++ {
		ir, err := ImpulseResponse(d.sampleRate, d.decay, d.seed+int64(s)*7919)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rv, err := reverb.NewConvolutionReverb(ir, reverbBlockOrder)
		if err != nil {
			errs = append(errs, fmt.Errorf("spatial: speaker %d: %w", s, err))
			continue
		}
		rv.SetWetDry(1, 0)
		d.reverbs[s] = rv
	}
	return errors.Join(errs...)
}

// SetPosition places channel ch at (x, y), both clamped to [-1, 1]. Gains
// glide to the new position. It reports false for an invalid channel or NaN.
func (d *Director) SetPosition(ch int, x, y float64) bool {
	if ch < 0 || ch >= Channels || math.IsNaN(x) || math.IsNaN(y) {
		return false
	}
	x = core.Clamp(x, -1, 1)
	y = core.Clamp(y, -1, 1)
	d.pos[ch] = [2]float64{x, y}
	d.target[ch] = Gains(x, y)
	return true
}

// Position returns a channel's coordinates.
func (d *Director) Position(ch int) (x, y float64) {
	if ch < 0 || ch >= Channels {
		return 0, 0
	}
	return d.pos[ch][0], d.pos[ch][1]
}

// SpeakerGains returns the current (gliding) gains of a channel.
func (d *Director) SpeakerGains(ch int) [Speakers]float64 {
	if ch < 0 || ch >= Channels {
		return [Speakers]float64{}
	}
	return d.gains[ch]
}

// SetToneShape sets low, mid and high in [0,1]; 0.5 is flat and the extremes
// are ±12 dB.
func (d *Director) SetToneShape(low, mid, high float64) {
	for i, v := range []float64{low, mid, high} {
		if !math.IsNaN(v) {
			d.tone[i] = core.Clamp(v, 0, 1)
		}
	}
	d.updateTone()
}

// ToneShape returns the low, mid and high settings.
func (d *Director) ToneShape() (low, mid, high float64) {
	return d.tone[0], d.tone[1], d.tone[2]
}

// ToneGainDB converts a tone control value to shelf or peak gain.
func ToneGainDB(v float64) float64 { return (v - 0.5) * toneRangeDB }

func (d *Director) updateTone() {
	coeffs := [3]biquad.Coefficients{
		design.LowShelf(lowShelfHz, ToneGainDB(d.tone[0]), 1/math.Sqrt2, d.sampleRate),
		design.Peak(midPeakHz, ToneGainDB(d.tone[1]), 1, d.sampleRate),
		design.HighShelf(highShelfHz, ToneGainDB(d.tone[2]), 1/math.Sqrt2, d.sampleRate),
	}
	for b, c := range coeffs {
		if c == (biquad.Coefficients{}) {
			// band above Nyquist
			c = biquad.Coefficients{B0: 1}
		}
		for s := 0; s < Speakers; s++ {
			d.toneEQ[s][b].Coefficients = c
		}
	}
}

// SetReverb updates the reverb. A new decay regenerates the impulse
// responses, which is the only way this returns an error.
func (d *Director) SetReverb(p ReverbParams) error {
	if !math.IsNaN(p.PreDelay) {
		d.delaySec = core.Clamp(p.PreDelay, 0, MaxPreDelay)
	}
	if !math.IsNaN(p.Wet) {
		d.wet = core.Clamp(p.Wet, 0, 1)
	}
	if math.IsNaN(p.Decay) {
		return nil
	}
	decay := core.Clamp(p.Decay, MinDecay, MaxDecay)
	if decay == d.decay {
		return nil
	}
	d.decay = decay
	if !d.initialized {
		return nil
	}
	return d.buildReverbs()
}

// Reverb returns the reverb settings.
func (d *Director) Reverb() ReverbParams {
	return ReverbParams{Decay: d.decay, PreDelay: d.delaySec, Wet: d.wet}
}

// Process pans one block of channel signals into the four speaker feeds and
// applies tone and reverb. in and out hold equal-length buffers.
func (d *Director) Process(in, out *[Channels][]float64) error {
	n := len(in[0])
	if n == 0 {
		return nil
	}
	for s := 0; s < Speakers; s++ {
		vek.Zeros_Into(out[s][:n], n)
	}
	for k := 0; k < n; k++ {
		for ch := 0; ch < Channels; ch++ {
			x := in[ch][k]
			g := &d.gains[ch]
			for s := 0; s < Speakers; s++ {
				g[s] += (d.target[ch][s] - g[s]) * d.glide
				out[s][k] += x * g[s]
			}
		}
	}
	for s := 0; s < Speakers; s++ {
		for _, eq := range d.toneEQ[s] {
			eq.ProcessBlock(out[s][:n])
		}
	}
	if !d.initialized || d.wet == 0 {
		return nil
	}

	var errs []error
	delaySamples := int(math.Round(d.delaySec * d.sampleRate))
	for s := 0; s < Speakers; s++ {
		if len(d.wetBuf[s]) < n {
			d.wetBuf[s] = make([]float64, n)
		}
		wet := d.wetBuf[s][:n]
		line := d.preDelay[s]
		for k, x := range out[s][:n] {
			if delaySamples == 0 {
				wet[k] = x
			} else {
				wet[k] = line.Read(delaySamples)
			}
			line.Write(x)
		}
		if rv := d.reverbs[s]; rv != nil {
			if err := rv.ProcessInPlace(wet); err != nil {
				errs = append(errs, err)
				continue
			}
		}
		vecmath.ScaleBlock(out[s][:n], out[s][:n], 1-d.wet)
		vecmath.ScaleBlock(wet, wet, d.wet)
		vecmath.AddBlockInPlace(out[s][:n], wet)
	}
	return errors.Join(errs...)
}

// Reset clears filter, delay and reverb state.
func (d *Director) Reset() {
	for s := 0; s < Speakers; s++ {
		for _, eq := range d.toneEQ[s] {
			eq.Reset()
		}
		if d.preDelay[s] != nil {
			d.preDelay[s].Reset()
		}
		if d.reverbs[s] != nil {
			d.reverbs[s].Reset()
		}
	}
}
