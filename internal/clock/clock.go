// Package clock is the master clock: one repeating tick at the sixteenth-note
// rate feeding a chain of division counters. Slower divisions are derived by
// carry from faster ones, so they can never drift apart.
package clock

import (
	"fmt"
	"math"

	"github.com/cbegin/buchla-go/internal/schedule"
	"github.com/cwbudde/algo-dsp/dsp/core"
)

// Division is a musical subdivision, fastest first.
type Division int

const (
	Sixteenth Division = iota
	Eighth
	Quarter
	Half
	Whole

	NumDivisions = 5
)

var divisionNames = [NumDivisions]string{"16n", "8n", "4n", "2n", "1n"}

// periods[d] is the counter modulus of division d.
var periods = [NumDivisions]int{4, 2, 2, 2, 2}

func (d Division) String() string {
	if d < 0 || d >= NumDivisions {
		return fmt.Sprintf("Division(%d)", int(d))
	}
	return divisionNames[d]
}

// Valid reports whether d names a division.
func (d Division) Valid() bool { return d >= 0 && d < NumDivisions }

// Period returns the counter modulus of d.
func (d Division) Period() int { return periods[d] }

// ParseDivision maps "16n", "8n", "4n", "2n" or "1n" to a Division.
func ParseDivision(name string) (Division, error) {
	for i, n := range divisionNames {
		if n == name {
			return Division(i), nil
		}
	}
	return 0, fmt.Errorf("clock: unknown division %q", name)
}

const (
	MinTempo     = 20.0
	MaxTempo     = 300.0
	DefaultTempo = 120.0
)

// TickRate returns the sixteenth-note rate in Hz for bpm.
func TickRate(bpm float64) float64 { return bpm / 60 * 4 }

// Clock owns the division counters. They are only mutated by its tick.
type Clock struct {
	sched  *schedule.Scheduler
	bpm    float64
	handle schedule.Handle

	counters [NumDivisions]int
	ticks    int64

	routes    [NumDivisions][]func(value int, t float64)
	advancers []func(d Division, t float64)
	pulses    [NumDivisions][]func(t float64)
}

// New returns a stopped clock at DefaultTempo.
func New(sched *schedule.Scheduler) *Clock {
	return &Clock{sched: sched, bpm: DefaultTempo}
}

// SetTempo clamps bpm to [20, 300]. A running clock changes its interval in
// place. NaN and infinities are ignored and reported as false.
func (c *Clock) SetTempo(bpm float64) bool {
	if math.IsNaN(bpm) || math.IsInf(bpm, 0) {
		return false
	}
	c.bpm = core.Clamp(bpm, MinTempo, MaxTempo)
	if c.Running() {
		c.sched.SetInterval(c.handle, c.TickInterval())
	}
	return true
}

// Tempo returns the tempo in bpm.
func (c *Clock) Tempo() float64 { return c.bpm }

// TickInterval returns the seconds between ticks.
func (c *Clock) TickInterval() float64 { return 1 / TickRate(c.bpm) }

// Start begins ticking at t. It is a no-op while running.
func (c *Clock) Start(t float64) {
	if c.Running() {
		return
	}
	c.handle = c.sched.Every(t, c.TickInterval(), c.tick)
}

// Stop halts the clock. It is a no-op while stopped.
func (c *Clock) Stop() {
	c.sched.Clear(c.handle)
	c.handle = 0
}

// Running reports whether the tick is scheduled.
func (c *Clock) Running() bool { return c.sched.Active(c.handle) }

// HandleCount returns how many scheduler handles the clock holds.
func (c *Clock) HandleCount() int {
	if c.Running() {
		return 1
	}
	return 0
}

// Reset zeros the counters.
func (c *Clock) Reset() {
	c.counters = [NumDivisions]int{}
	c.ticks = 0
}

// Counter returns the current value of d's counter.
func (c *Clock) Counter(d Division) int {
	if !d.Valid() {
		return 0
	}
	return c.counters[d]
}

// Ticks returns the number of ticks since the last Reset.
func (c *Clock) Ticks() int64 { return c.ticks }

// Route sends d's counter value to fn on every tick.
func (c *Clock) Route(d Division, fn func(value int, t float64)) bool {
	if !d.Valid() || fn == nil {
		return false
	}
	c.routes[d] = append(c.routes[d], fn)
	return true
}

// ClearRoutes removes every route from d.
func (c *Clock) ClearRoutes(d Division) {
	if d.Valid() {
		c.routes[d] = nil
	}
}

// OnAdvance registers a playhead advancer, called once per fired division.
func (c *Clock) OnAdvance(fn func(d Division, t float64)) {
	if fn != nil {
		c.advancers = append(c.advancers, fn)
	}
}

// OnPulse calls fn whenever d fires.
func (c *Clock) OnPulse(d Division, fn func(t float64)) bool {
	if !d.Valid() || fn == nil {
		return false
	}
	c.pulses[d] = append(c.pulses[d], fn)
	return true
}

// ClearPulses removes every pulse listener from d.
func (c *Clock) ClearPulses(d Division) {
	if d.Valid() {
		c.pulses[d] = nil
	}
}

// Tick runs one clock tick at t: counters, then routes, then playhead
// advancers, then pulse listeners.
func (c *Clock) Tick(t float64) { c.tick(t) }

func (c *Clock) tick(t float64) {
	c.ticks++
	var fired [NumDivisions]bool
	carry := true
	for d := Division(0); d < NumDivisions && carry; d++ {
		c.counters[d] = (c.counters[d] + 1) % periods[d]
		fired[d] = true
		carry = c.counters[d] == 0
	}

	for d := range c.routes {
		for _, fn := range c.routes[d] {
			fn(c.counters[d], t)
		}
	}
	for d := Division(0); d < NumDivisions; d++ {
		if !fired[d] {
			continue
		}
		for _, fn := range c.advancers {
			fn(d, t)
		}
	}
	for d := Division(0); d < NumDivisions; d++ {
		if !fired[d] {
			continue
		}
		for _, fn := range c.pulses[d] {
			fn(t)
		}
	}
}
