// Package analysis measures rendered audio: dominant frequency, harmonic
// density and THD. It backs the CLI's analyze command and the DSP tests.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-dsp/dsp/window"
	"github.com/cwbudde/algo-dsp/measure/thd"
	algofft "github.com/cwbudde/algo-fft"
	"github.com/cwbudde/algo-vecmath"
)

// ErrEmptySignal is returned for zero-length input.
var ErrEmptySignal = errors.New("analysis: empty signal")

// Report summarizes one mono signal.
type Report struct {
	PeakHz      float64
	Fundamental float64
	THD         float64
	THDdB       float64
	RMS         float64
	PeakLevel   float64
	Harmonics   []float64
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// spectrum returns |X[k]|² for k in [0, n/2].
func spectrum(signal []float64, win []float64) ([]float64, int, error) {
	if len(signal) == 0 {
		return nil, 0, ErrEmptySignal
	}
	n := nextPow2(len(signal))
	if n < 2 {
		n = 2
	}
	buf := make([]float64, n)
	copy(buf, signal)
	if win != nil {
		vecmath.MulBlockInPlace(buf[:len(signal)], win)
	}
	in := make([]complex128, n)
	for i, v := range buf {
		in[i] = complex(v, 0)
	}
	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return nil, 0, fmt.Errorf("analysis: fft plan: %w", err)
	}
	out := make([]complex128, n)
	if err := plan.Forward(out, in); err != nil {
		return nil, 0, fmt.Errorf("analysis: fft: %w", err)
	}
	mag := make([]float64, n/2+1)
	for k := range mag {
		a := cmplx.Abs(out[k])
		mag[k] = a * a
	}
	return mag, n, nil
}

// PeakFrequency returns the frequency of the strongest spectral peak of a
// Hann-windowed signal, refined by parabolic interpolation.
func PeakFrequency(signal []float64, sampleRate float64) (float64, error) {
	win := window.Generate(window.TypeHann, len(signal))
	mag, n, err := spectrum(signal, win)
	if err != nil {
		return 0, err
	}
	best := 1
	for k := 2; k < len(mag)-1; k++ {
		if mag[k] > mag[best] {
			best = k
		}
	}
	offset := 0.0
	if best > 0 && best < len(mag)-1 {
		a := math.Log(mag[best-1] + 1e-300)
		b := math.Log(mag[best] + 1e-300)
		c := math.Log(mag[best+1] + 1e-300)
		if den := a - 2*b + c; den != 0 {
			offset = 0.5 * (a - c) / den
		}
	}
	return (float64(best) + offset) * sampleRate / float64(n), nil
}

// HarmonicDensity returns the share of spectral energy (DC excluded) outside
// the fundamental. The signal should hold an integer number of periods so the
// fundamental lands on one bin; no window is applied.
func HarmonicDensity(signal []float64, sampleRate, fundamental float64) (float64, error) {
	mag, n, err := spectrum(signal, nil)
	if err != nil {
		return 0, err
	}
	k := int(math.Round(fundamental * float64(n) / sampleRate))
	if k < 1 || k >= len(mag) {
		return 0, fmt.Errorf("analysis: fundamental %.2f Hz outside spectrum", fundamental)
	}
	var total, fund float64
	for i := 1; i < len(mag); i++ {
		total += mag[i]
		if i >= k-1 && i <= k+1 {
			fund += mag[i]
		}
	}
	if total == 0 {
		return 0, nil
	}
	return 1 - fund/total, nil
}

// Analyze computes peak frequency, level and THD figures for a signal.
func Analyze(signal []float64, sampleRate float64) (Report, error) {
	peak, err := PeakFrequency(signal, sampleRate)
	if err != nil {
		return Report{}, err
	}
	var sum, hi float64
	for _, v := range signal {
		sum += v * v
		if a := math.Abs(v); a > hi {
			hi = a
		}
	}
	res := thd.AnalyzeSignal(signal, thd.Config{
		SampleRate:      sampleRate,
		FundamentalFreq: peak,
		MaxHarmonics:    10,
		WindowType:      window.TypeHann,
	})
	return Report{
		PeakHz:      peak,
		Fundamental: res.FundamentalFreq,
		THD:         res.THD,
		THDdB:       res.THD_dB,
		RMS:         math.Sqrt(sum / float64(len(signal))),
		PeakLevel:   hi,
		Harmonics:   res.Harmonics,
	}, nil
}
