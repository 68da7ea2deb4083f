// Package midictl maps live MIDI input onto the AFG: controllers drive the
// external CV inputs, the strobe address and the strobe gate, notes fire the
// strobe.
package midictl

import (
	"errors"
	"log/slog"

	"gitlab.com/gomidi/midi/v2"
)

// ErrNoDriver is returned when the binary was built without a MIDI driver.
var ErrNoDriver = errors.New("midictl: no MIDI driver in this build")

// Target receives the mapped control changes.
type Target interface {
	SetExternalInput(index int, value float64)
	SetAddress(cv float64)
	Strobe(address float64)
	SetStrobeInput(level float64)
}

// Mapping assigns controller numbers. InputCC[i] feeds external input i.
type Mapping struct {
	InputCC   [4]uint8
	AddressCC uint8
	StrobeCC  uint8
	// Channel filters incoming messages; negative accepts every channel.
	Channel int
}

// DefaultMapping is CC 1-4 to inputs 0-3, CC 5 to the address and CC 6 to
// the strobe gate on any channel.
func DefaultMapping() Mapping {
	return Mapping{InputCC: [4]uint8{1, 2, 3, 4}, AddressCC: 5, StrobeCC: 6, Channel: -1}
}

// Bridge turns MIDI messages into Target calls.
type Bridge struct {
	target  Target
	mapping Mapping
	logger  *slog.Logger
	handled int
}

// NewBridge returns a bridge using DefaultMapping. A nil logger uses
// slog.Default.
func NewBridge(target Target, logger *slog.Logger) *Bridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bridge{target: target, mapping: DefaultMapping(), logger: logger}
}

// SetMapping replaces the controller assignments.
func (b *Bridge) SetMapping(m Mapping) { b.mapping = m }

// Handled returns how many messages produced a Target call.
func (b *Bridge) Handled() int { return b.handled }

// Handle applies one message. It reports whether the message was mapped.
func (b *Bridge) Handle(msg midi.Message) bool {
	var ch, a, v uint8
	switch {
	case msg.GetNoteStart(&ch, &a, &v):
		if !b.accepts(ch) {
			return false
		}
		step := int(a) % 16
		b.target.Strobe(float64(step) / 16)
		b.logger.Debug("midi strobe", "note", a, "step", step)
	case msg.GetControlChange(&ch, &a, &v):
		if !b.accepts(ch) {
			return false
		}
		value := float64(v) / 127
		switch {
		case a == b.mapping.AddressCC:
			b.target.SetAddress(value)
		case a == b.mapping.StrobeCC:
			b.target.SetStrobeInput(value)
		default:
			i := b.inputFor(a)
			if i < 0 {
				return false
			}
			b.target.SetExternalInput(i, value)
		}
	default:
		return false
	}
	b.handled++
	return true
}

func (b *Bridge) accepts(ch uint8) bool {
	return b.mapping.Channel < 0 || int(ch) == b.mapping.Channel
}

func (b *Bridge) inputFor(cc uint8) int {
	for i, c := range b.mapping.InputCC {
		if c == cc {
			return i
		}
	}
	return -1
}
