// Package seqfile loads note sequences from YAML or JSON note lists and from
// Standard MIDI Files.
package seqfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cbegin/buchla-go/internal/afg"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"
	"gopkg.in/yaml.v3"
)

// Format is a sequence file encoding.
type Format int

const (
	FormatYAML Format = iota
	FormatJSON
	FormatMIDI
)

// ErrUnknownFormat is returned for an extension Load cannot map to a Format.
var ErrUnknownFormat = errors.New("seqfile: unknown format")

// FormatOf picks a format from a file extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".mid", ".midi", ".smf":
		return FormatMIDI, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, filepath.Ext(path))
}

// Load reads a sequence file, choosing the decoder by extension.
func Load(path string) (afg.Sequence, error) {
	format, err := FormatOf(path)
	if err != nil {
		return afg.Sequence{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return afg.Sequence{}, err
	}
	defer f.Close()
	seq, err := Read(f, format)
	if err != nil {
		return afg.Sequence{}, fmt.Errorf("%s: %w", path, err)
	}
	return seq, nil
}

// Read decodes a sequence in the given format. Notes are returned as found;
// callers decide whether to Validate.
func Read(r io.Reader, format Format) (afg.Sequence, error) {
	switch format {
	case FormatYAML:
		return readYAML(r)
	case FormatJSON:
		return readJSON(r)
	case FormatMIDI:
		return ReadMIDI(r)
	}
	return afg.Sequence{}, ErrUnknownFormat
}

func readYAML(r io.Reader) (afg.Sequence, error) {
	var seq afg.Sequence
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seq); err != nil && !errors.Is(err, io.EOF) {
		return afg.Sequence{}, fmt.Errorf("seqfile: yaml: %w", err)
	}
	return seq, nil
}

func readJSON(r io.Reader) (afg.Sequence, error) {
	var seq afg.Sequence
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&seq); err != nil && !errors.Is(err, io.EOF) {
		return afg.Sequence{}, fmt.Errorf("seqfile: json: %w", err)
	}
	return seq, nil
}

// Write encodes seq as YAML or JSON.
func Write(w io.Writer, seq afg.Sequence, format Format) error {
	switch format {
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(seq); err != nil {
			return err
		}
		return enc.Close()
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(seq)
	case FormatMIDI:
		return WriteMIDI(w, seq, 120)
	}
	return ErrUnknownFormat
}

type openNote struct {
	start    float64
	velocity float64
}

// ReadMIDI converts note on/off pairs from every track into notes. Times
// follow the file's tempo map; the MIDI channel is folded onto the four
// voices with channel mod 4. Unterminated notes end at the last event.
func ReadMIDI(r io.Reader) (afg.Sequence, error) {
	var seq afg.Sequence
	open := map[[2]uint8][]openNote{}
	last := 0.0

	tr := smf.ReadTracksFrom(r)
	tr.Do(func(ev smf.TrackEvent) {
		t := float64(ev.AbsMicroSeconds) / 1e6
		last = max(last, t)
		msg := midi.Message(ev.Message)
		var ch, key, vel uint8
		switch {
		case msg.GetNoteStart(&ch, &key, &vel):
			k := [2]uint8{ch, key}
			open[k] = append(open[k], openNote{start: t, velocity: float64(vel) / 127})
		case msg.GetNoteEnd(&ch, &key):
			k := [2]uint8{ch, key}
			stack := open[k]
			if len(stack) == 0 {
				return
			}
			n := stack[0]
			open[k] = stack[1:]
			seq.Notes = append(seq.Notes, afg.Note{
				Pitch:     int(key),
				StartTime: n.start,
				EndTime:   t,
				Velocity:  n.velocity,
				Channel:   int(ch) % afg.Channels,
			})
		}
	})
	if err := tr.Error(); err != nil {
		return afg.Sequence{}, fmt.Errorf("seqfile: midi: %w", err)
	}
	for k, stack := range open {
		for _, n := range stack {
			seq.Notes = append(seq.Notes, afg.Note{
				Pitch:     int(k[1]),
				StartTime: n.start,
				EndTime:   last,
				Velocity:  n.velocity,
				Channel:   int(k[0]) % afg.Channels,
			})
		}
	}
	sortNotes(seq.Notes)
	return seq, nil
}

// WriteMIDI writes seq as a single-track SMF at bpm with 960 ticks per
// quarter note.
func WriteMIDI(w io.Writer, seq afg.Sequence, bpm float64) error {
	const resolution = 960
	ticksPerSecond := resolution * bpm / 60

	type event struct {
		tick uint32
		msg  midi.Message
		off  bool
	}
	var events []event
	for _, n := range seq.Notes {
		if n.Pitch < 0 || n.Pitch > 127 || n.Channel < 0 || n.EndTime <= n.StartTime {
			continue
		}
		ch, key := uint8(n.Channel), uint8(n.Pitch)
		vel := uint8(min(max(n.Velocity, 0), 1)*126) + 1
		events = append(events,
			event{tick: uint32(n.StartTime * ticksPerSecond), msg: midi.NoteOn(ch, key, vel)},
			event{tick: uint32(n.EndTime * ticksPerSecond), msg: midi.NoteOff(ch, key), off: true},
		)
	}
	// note-offs first so a repeated key retriggers cleanly
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].off && !events[j].off
	})

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(resolution)
	var track smf.Track
	track.Add(0, smf.MetaMeter(4, 4))
	track.Add(0, smf.MetaTempo(bpm))
	prev := uint32(0)
	for _, e := range events {
		track.Add(e.tick-prev, e.msg)
		prev = e.tick
	}
	track.Close(0)
	if err := s.Add(track); err != nil {
		return fmt.Errorf("seqfile: midi track: %w", err)
	}
	if _, err := s.WriteTo(w); err != nil {
		return fmt.Errorf("seqfile: midi write: %w", err)
	}
	return nil
}

func sortNotes(notes []afg.Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].StartTime != notes[j].StartTime {
			return notes[i].StartTime < notes[j].StartTime
		}
		return notes[i].Pitch < notes[j].Pitch
	})
}
