package effects

import "math"

// SoftClip is a tanh waveshaper with pre/post gain and an optional one-pole
// lowpass on each channel. At unity gains it keeps the bus inside [-1, 1].
type SoftClip struct {
	preGain  float64
	postGain float64
	lpfAlpha float64
	lpf      Frame
}

// NewSoftClip creates a soft clipper.
// preGain: input gain (higher = more saturation)
// postGain: output gain
// lpfCutoff: lowpass cutoff in Hz (0 = no filter)
func NewSoftClip(sampleRate int, preGain, postGain, lpfCutoff float64) *SoftClip {
	d := &SoftClip{
		preGain:  preGain,
		postGain: postGain,
	}
	if lpfCutoff > 0 && lpfCutoff < float64(sampleRate)/2 {
		rc := 1.0 / (2.0 * math.Pi * lpfCutoff)
		dt := 1.0 / float64(sampleRate)
		d.lpfAlpha = dt / (rc + dt)
	}
	return d
}

func (d *SoftClip) Process(f *Frame) {
	for i, v := range f {
		v = math.Tanh(v*d.preGain) * d.postGain
		if d.lpfAlpha > 0 {
			d.lpf[i] += d.lpfAlpha * (v - d.lpf[i])
			v = d.lpf[i]
		}
		f[i] = v
	}
}

func (d *SoftClip) Reset() {
	d.lpf = Frame{}
}
