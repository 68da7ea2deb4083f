package afg

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// Note is one sequenced event. Times are in seconds from the start of the
// sequence.
type Note struct {
	Pitch     int     `yaml:"pitch" json:"pitch"`
	StartTime float64 `yaml:"startTime" json:"startTime"`
	EndTime   float64 `yaml:"endTime" json:"endTime"`
	Velocity  float64 `yaml:"velocity" json:"velocity"`
	Channel   int     `yaml:"channel" json:"channel"`
}

// Sequence is an immutable note list.
type Sequence struct {
	Notes []Note `yaml:"notes" json:"notes"`
}

func (n Note) validate() error {
	var errs []error
	if n.Pitch < 0 || n.Pitch > 127 {
		errs = append(errs, fmt.Errorf("pitch %d out of range 0-127", n.Pitch))
	}
	if !finite(n.StartTime) || !finite(n.EndTime) || n.StartTime < 0 {
		errs = append(errs, fmt.Errorf("bad times %v..%v", n.StartTime, n.EndTime))
	} else if n.EndTime <= n.StartTime {
		errs = append(errs, fmt.Errorf("end time %v not after start %v", n.EndTime, n.StartTime))
	}
	if !finite(n.Velocity) || n.Velocity < 0 || n.Velocity > 1 {
		errs = append(errs, fmt.Errorf("velocity %v out of range 0-1", n.Velocity))
	}
	if n.Channel < 0 || n.Channel >= Channels {
		errs = append(errs, fmt.Errorf("channel %d out of range 0-%d", n.Channel, Channels-1))
	}
	return errors.Join(errs...)
}

// Validate reports every invalid note. An empty sequence is valid and plays
// as silence.
func (s Sequence) Validate() error {
	var errs []error
	for i, n := range s.Notes {
		if err := n.validate(); err != nil {
			errs = append(errs, fmt.Errorf("note %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Span returns the latest end time of the valid notes.
func (s Sequence) Span() float64 {
	span := 0.0
	for _, n := range s.Notes {
		if n.validate() == nil {
			span = math.Max(span, n.EndTime)
		}
	}
	return span
}

// PitchToCV converts a MIDI note to volts per octave relative to middle C.
func PitchToCV(pitch int) float64 { return float64(pitch-60) / 12 }

// Steps maps the sequence onto the step memory. Each valid note lands on step
// floor(start/span·16); the earliest note on a step wins. Empty steps are
// rests that hold the CV of the step before them. It returns the steps and
// the number of notes that were skipped as invalid or shadowed.
func (s Sequence) Steps() ([NumSteps]Step, int) {
	var steps [NumSteps]Step
	for i := range steps {
		steps[i] = DefaultStep()
	}
	var valid []Note
	skipped := 0
	for _, n := range s.Notes {
		if n.validate() != nil {
			skipped++
			continue
		}
		valid = append(valid, n)
	}
	if len(valid) == 0 {
		return steps, skipped
	}
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].StartTime < valid[j].StartTime })

	span := s.Span()
	rest := span / NumSteps
	var used [NumSteps]bool
	for _, n := range valid {
		i := int(math.Floor(n.StartTime / span * NumSteps))
		i = min(max(i, 0), NumSteps-1)
		if used[i] {
			skipped++
			continue
		}
		used[i] = true
		steps[i] = Step{
			CV:       PitchToCV(n.Pitch),
			CV2:      n.Velocity,
			Trigger:  1,
			Duration: math.Max(MinDuration, n.EndTime-n.StartTime),
			Channel:  n.Channel,
		}
	}

	// rests copy the previous step, wrapping from the last occupied one
	first := 0
	for !used[first] {
		first++
	}
	for k := 1; k < NumSteps; k++ {
		i := (first + k) % NumSteps
		if used[i] {
			continue
		}
		prev := steps[(i+NumSteps-1)%NumSteps]
		steps[i] = Step{
			CV:       prev.CV,
			CV2:      prev.CV2,
			Duration: math.Max(MinDuration, rest),
			Channel:  prev.Channel,
		}
	}
	return steps, skipped
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }
