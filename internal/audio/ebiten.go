package audio

import (
	"fmt"
	"sync"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// ebiten allows one audio context per process.
var ebitenDevice struct {
	once sync.Once
	ctx  *ebitaudio.Context
	rate int
}

func ebitenContext(sampleRate int) (*ebitaudio.Context, error) {
	d := &ebitenDevice
	d.once.Do(func() {
		d.rate = sampleRate
		d.ctx = ebitaudio.NewContext(sampleRate)
	})
	if d.rate != sampleRate {
		return nil, fmt.Errorf("ebiten: device open at %d Hz, cannot stream at %d Hz", d.rate, sampleRate)
	}
	return d.ctx, nil
}

// StereoPlayer streams a two-channel source through ebiten. Once stopped it
// cannot be restarted; open a new one.
type StereoPlayer struct {
	mu      sync.Mutex
	player  *ebitaudio.Player
	stopped bool
}

// NewStereoPlayer wraps a stereo source in an ebiten player.
func NewStereoPlayer(sampleRate int, source SampleSource) (*StereoPlayer, error) {
	ctx, err := ebitenContext(sampleRate)
	if err != nil {
		return nil, err
	}
	pl, err := ctx.NewPlayerF32(NewStreamReader(source, 2))
	if err != nil {
		return nil, fmt.Errorf("ebiten: %w", err)
	}
	return &StereoPlayer{player: pl}, nil
}

func (p *StereoPlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.stopped {
		p.player.Play()
	}
}

func (p *StereoPlayer) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.stopped && p.player.IsPlaying()
}

func (p *StereoPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stopped {
		return nil
	}
	p.stopped = true
	return p.player.Close()
}
