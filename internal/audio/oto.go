package audio

import (
	"fmt"
	"sync"

	"github.com/ebitengine/oto/v3"
)

var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
	otoRate int
)

func sharedOtoContext(sampleRate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		otoRate = sampleRate
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: 4,
			Format:       oto.FormatFloat32LE,
		})
		if err != nil {
			otoErr = err
			return
		}
		<-ready
		otoCtx = ctx
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoRate != sampleRate {
		return nil, fmt.Errorf("oto context already initialized at %d Hz (requested %d Hz)", otoRate, sampleRate)
	}
	return otoCtx, nil
}

// QuadPlayer is the four-channel oto output.
type QuadPlayer struct {
	mu      sync.Mutex
	player  *oto.Player
	reader  *StreamReader
	started bool
}

// NewQuadPlayer wraps a quad source in an oto player.
func NewQuadPlayer(sampleRate int, source SampleSource) (*QuadPlayer, error) {
	ctx, err := sharedOtoContext(sampleRate)
	if err != nil {
		return nil, fmt.Errorf("oto: %w", err)
	}
	reader := NewStreamReader(source, 4)
	return &QuadPlayer{player: ctx.NewPlayer(reader), reader: reader}, nil
}

func (q *QuadPlayer) Play() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.player.Play()
	q.started = true
}

func (q *QuadPlayer) IsPlaying() bool { return q.player.IsPlaying() }

func (q *QuadPlayer) Stop() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.started {
		return q.reader.Close()
	}
	q.started = false
	q.player.Pause()
	if err := q.player.Close(); err != nil {
		return err
	}
	return q.reader.Close()
}
