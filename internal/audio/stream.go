// Package audio connects an interleaved float32 sample source to a realtime
// output: ebiten for stereo, oto for quad.
package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
)

type SampleSource interface {
	Process(dst []float32)
}

// SourceFunc adapts a function to SampleSource.
type SourceFunc func(dst []float32)

func (f SourceFunc) Process(dst []float32) { f(dst) }

// FinishingSource is a SampleSource that can signal when playback has ended.
// When Finished returns true, the stream will return io.EOF on the next Read.
type FinishingSource interface {
	SampleSource
	Finished() bool
}

// StreamReader renders float32 little-endian frames of a fixed channel count.
type StreamReader struct {
	mu       sync.Mutex
	source   SampleSource
	channels int
	buf      []float32
}

func NewStreamReader(source SampleSource, channels int) *StreamReader {
	if channels < 1 {
		channels = 2
	}
	return &StreamReader{source: source, channels: channels}
}

// Channels returns the interleaved channel count.
func (r *StreamReader) Channels() int { return r.channels }

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frameBytes := 4 * r.channels
	frames := len(p) / frameBytes
	if frames == 0 {
		return 0, nil
	}
	need := frames * r.channels
	if cap(r.buf) < need {
		r.buf = make([]float32, need)
	}
	r.buf = r.buf[:need]
	r.source.Process(r.buf)
	for i := 0; i < need; i++ {
		u := math.Float32bits(r.buf[i])
		binary.LittleEndian.PutUint32(p[i*4:], u)
	}
	n := frames * frameBytes
	if fs, ok := r.source.(FinishingSource); ok && fs.Finished() {
		return n, io.EOF
	}
	return n, nil
}

func (r *StreamReader) Close() error { return nil }

// Backend names a realtime output.
type Backend string

const (
	BackendEbiten Backend = "ebiten"
	BackendOto    Backend = "oto"
)

// Channels returns the output width of the backend.
func (b Backend) Channels() int {
	if b == BackendOto {
		return 4
	}
	return 2
}

// ParseBackend validates a backend name.
func ParseBackend(name string) (Backend, error) {
	switch Backend(name) {
	case BackendEbiten, "":
		return BackendEbiten, nil
	case BackendOto:
		return BackendOto, nil
	}
	return "", fmt.Errorf("audio: unknown backend %q (expected ebiten or oto)", name)
}

// Sink is a realtime output pulling from a SampleSource. Stop releases it
// for good.
type Sink interface {
	Play()
	IsPlaying() bool
	Stop() error
}

// Open starts building a sink for backend. The source must produce
// backend.Channels() interleaved channels. Both backends share one
// process-wide device, so a process should stick to one of them.
func Open(backend Backend, sampleRate int, source SampleSource) (Sink, error) {
	switch backend {
	case BackendOto:
		return NewQuadPlayer(sampleRate, source)
	case BackendEbiten, "":
		return NewStereoPlayer(sampleRate, source)
	}
	return nil, fmt.Errorf("audio: unknown backend %q", backend)
}
