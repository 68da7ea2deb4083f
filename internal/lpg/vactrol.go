package lpg

import "math"

const (
	DefaultResponse  = 0.01
	DefaultFallRatio = 4.0
)

// vactrol is a one-pole smoother with separate rise and fall times, the fall
// being fallRatio times slower than the rise.
type vactrol struct {
	sampleRate float64
	rise       float64
	fallRatio  float64
	up, down   float64
	value      float64
}

func newVactrol(sampleRate float64) *vactrol {
	v := &vactrol{sampleRate: sampleRate, fallRatio: DefaultFallRatio}
	v.setResponse(DefaultResponse)
	return v
}

func (v *vactrol) setResponse(rise float64) {
	v.rise = math.Max(MinStageTime, rise)
	v.up = coef(v.rise, v.sampleRate)
	v.down = coef(v.rise*v.fallRatio, v.sampleRate)
}

func (v *vactrol) setFallRatio(r float64) {
	if r < 1 || math.IsNaN(r) || math.IsInf(r, 0) {
		return
	}
	v.fallRatio = r
	v.setResponse(v.rise)
}

func coef(tau, sampleRate float64) float64 {
	return 1 - math.Exp(-1/(tau*sampleRate))
}

func (v *vactrol) process(x float64) float64 {
	if x > v.value {
		v.value += (x - v.value) * v.up
	} else {
		v.value += (x - v.value) * v.down
	}
	return v.value
}
