package midictl

import (
	"testing"

	"gitlab.com/gomidi/midi/v2"
)

type fakeTarget struct {
	inputs  [4]float64
	address float64
	strobes []float64
	gate    []float64
}

func (f *fakeTarget) SetExternalInput(i int, v float64) { f.inputs[i] = v }
func (f *fakeTarget) SetAddress(cv float64)             { f.address = cv }
func (f *fakeTarget) Strobe(a float64)                  { f.strobes = append(f.strobes, a) }
func (f *fakeTarget) SetStrobeInput(v float64)          { f.gate = append(f.gate, v) }

func TestBridgeMapsControllers(t *testing.T) {
	ft := &fakeTarget{}
	b := NewBridge(ft, nil)
	cases := []struct {
		msg    midi.Message
		mapped bool
	}{
		{midi.ControlChange(0, 1, 127), true},
		{midi.ControlChange(3, 4, 0), true},
		{midi.ControlChange(0, 2, 127), true},
		{midi.ControlChange(0, 5, 64), true},
		{midi.ControlChange(0, 74, 10), false},
		{midi.Pitchbend(0, 100), false},
	}
	for _, tc := range cases {
		if got := b.Handle(tc.msg); got != tc.mapped {
			t.Errorf("Handle(%v) = %v, want %v", tc.msg, got, tc.mapped)
		}
	}
	if ft.inputs != [4]float64{1, 1, 0, 0} {
		t.Fatalf("inputs = %v", ft.inputs)
	}
	if ft.address != 64.0/127 {
		t.Fatalf("address = %v", ft.address)
	}
	if b.Handled() != 4 {
		t.Fatalf("handled = %d", b.Handled())
	}
}

func TestBridgeNoteStrobes(t *testing.T) {
	ft := &fakeTarget{}
	b := NewBridge(ft, nil)
	b.Handle(midi.NoteOn(0, 36, 100)) // 36 mod 16 = 4
	b.Handle(midi.NoteOn(0, 36, 0))   // note off by velocity
	b.Handle(midi.NoteOff(0, 36))
	if len(ft.strobes) != 1 || ft.strobes[0] != 4.0/16 {
		t.Fatalf("strobes = %v", ft.strobes)
	}
}

func TestBridgeStrobeGate(t *testing.T) {
	ft := &fakeTarget{}
	b := NewBridge(ft, nil)
	b.Handle(midi.ControlChange(0, 6, 127))
	b.Handle(midi.ControlChange(0, 6, 0))
	if len(ft.gate) != 2 || ft.gate[0] != 1 || ft.gate[1] != 0 {
		t.Fatalf("gate = %v", ft.gate)
	}
	if len(ft.strobes) != 0 {
		t.Fatalf("gate CC fired note strobes: %v", ft.strobes)
	}
}

func TestBridgeChannelFilter(t *testing.T) {
	ft := &fakeTarget{}
	b := NewBridge(ft, nil)
	m := DefaultMapping()
	m.Channel = 2
	b.SetMapping(m)
	if b.Handle(midi.ControlChange(0, 1, 127)) {
		t.Fatal("message on another channel was mapped")
	}
	if !b.Handle(midi.ControlChange(2, 1, 127)) || ft.inputs[0] != 1 {
		t.Fatal("message on the filtered channel was dropped")
	}
}
