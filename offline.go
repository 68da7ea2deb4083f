package buchla

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cbegin/buchla-go/internal/spatial"
)

// Render plays seq from the engine's current state for the given number of
// seconds and returns interleaved samples with the given channel count
// (2 for stereo, 4 for quad). Playback is stopped afterwards.
func (e *Engine) Render(seq Sequence, seconds float64, channels int) ([]float32, error) {
	if channels != 2 && channels != spatial.Speakers {
		return nil, fmt.Errorf("buchla: render: %d channels (expected 2 or 4)", channels)
	}
	if !finite(seconds) || seconds < 0 {
		return nil, fmt.Errorf("buchla: render: invalid length %v", seconds)
	}
	if !e.Initialized() {
		return nil, ErrNotInitialized
	}
	e.StartPlayback(seq)
	frames := int(float64(e.sampleRate) * seconds)
	out := make([]float32, frames*channels)
	if channels == 2 {
		e.Process(out)
	} else {
		e.ProcessQuad(out)
	}
	e.StopPlayback()
	return out, nil
}

// RenderSamples builds a fresh engine from opts, renders seq and closes the
// engine. Equal options and sequences always give identical samples.
func RenderSamples(seq Sequence, seconds float64, channels int, opts ...Option) ([]float32, error) {
	e, err := New(opts...)
	if err != nil {
		return nil, err
	}
	defer e.Close()
	if err := e.Initialize(); err != nil {
		return nil, err
	}
	return e.Render(seq, seconds, channels)
}

// EncodeWAVFloat32LE wraps interleaved samples in a 32-bit float WAV file.
func EncodeWAVFloat32LE(samples []float32, sampleRate int, channels int) []byte {
	dataSize := len(samples) * 4
	byteRate := sampleRate * channels * 4
	blockAlign := channels * 4
	chunkSize := 36 + dataSize
	out := make([]byte, 44+dataSize)
	copy(out[0:], []byte("RIFF"))
	binary.LittleEndian.PutUint32(out[4:], uint32(chunkSize))
	copy(out[8:], []byte("WAVE"))
	copy(out[12:], []byte("fmt "))
	binary.LittleEndian.PutUint32(out[16:], 16)
	binary.LittleEndian.PutUint16(out[20:], 3)
	binary.LittleEndian.PutUint16(out[22:], uint16(channels))
	binary.LittleEndian.PutUint32(out[24:], uint32(sampleRate))
	binary.LittleEndian.PutUint32(out[28:], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(out[34:], 32)
	copy(out[36:], []byte("data"))
	binary.LittleEndian.PutUint32(out[40:], uint32(dataSize))
	for i, s := range samples {
		binary.LittleEndian.PutUint32(out[44+i*4:], math.Float32bits(s))
	}
	return out
}
