// Package schedule is the transport scheduler: a sample clock plus a queue of
// one-shot and repeating callbacks that fire on the exact frame their time
// falls in. Nothing here uses timers; the render loop drives it frame by frame.
package schedule

import (
	"container/heap"
	"math"
)

// Handle identifies a scheduled event. The zero Handle is never issued.
type Handle uint64

// Callback receives the exact time the event was scheduled for.
type Callback func(t float64)

type event struct {
	handle   Handle
	time     float64
	seq      uint64
	interval float64 // >0 for repeating events
	origin   float64
	count    int64
	fn       Callback
	index    int
	dead     bool
}

type eventHeap []*event

func (h eventHeap) Len() int { return len(h) }
func (h eventHeap) Less(i, j int) bool {
	if h[i].time != h[j].time {
		return h[i].time < h[j].time
	}
	return h[i].seq < h[j].seq
}
func (h eventHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}
func (h *eventHeap) Push(x any) {
	e := x.(*event)
	e.index = len(*h)
	*h = append(*h, e)
}
func (h *eventHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	e.index = -1
	return e
}

// Scheduler owns the sample clock and the pending event queue.
type Scheduler struct {
	sampleRate float64
	frame      int64
	queue      eventHeap
	live       map[Handle]*event
	next       Handle
	seq        uint64
}

// New returns a scheduler positioned at frame 0.
func New(sampleRate int) *Scheduler {
	if sampleRate <= 0 {
		sampleRate = 48000
	}
	return &Scheduler{
		sampleRate: float64(sampleRate),
		live:       make(map[Handle]*event),
	}
}

// SampleRate returns the clock rate in Hz.
func (s *Scheduler) SampleRate() float64 { return s.sampleRate }

// Frame returns the index of the frame being rendered.
func (s *Scheduler) Frame() int64 { return s.frame }

// Now returns the start time of the current frame in seconds.
func (s *Scheduler) Now() float64 { return float64(s.frame) / s.sampleRate }

// Len returns the number of live scheduled events.
func (s *Scheduler) Len() int { return len(s.live) }

func (s *Scheduler) push(t, interval float64, fn Callback) Handle {
	if fn == nil || math.IsNaN(t) || math.IsInf(t, 0) {
		return 0
	}
	s.next++
	s.seq++
	e := &event{handle: s.next, time: t, seq: s.seq, interval: interval, origin: t, fn: fn}
	heap.Push(&s.queue, e)
	s.live[e.handle] = e
	return e.handle
}

// At schedules fn once at time t. Times in the past fire on the current frame.
func (s *Scheduler) At(t float64, fn Callback) Handle {
	return s.push(t, 0, fn)
}

// Every schedules fn at start and then every interval seconds until cleared.
func (s *Scheduler) Every(start, interval float64, fn Callback) Handle {
	return s.push(start, s.floorInterval(interval), fn)
}

func (s *Scheduler) floorInterval(interval float64) float64 {
	min := 1 / s.sampleRate
	if math.IsNaN(interval) || interval < min {
		return min
	}
	return interval
}

// SetInterval changes the period of a repeating event. The next occurrence is
// moved to lastFire+interval, where lastFire is the previous scheduled time.
func (s *Scheduler) SetInterval(h Handle, interval float64) bool {
	e, ok := s.live[h]
	if !ok || e.interval == 0 {
		return false
	}
	interval = s.floorInterval(interval)
	if e.index < 0 {
		// firing right now; the re-queue in RunDue applies the new period
		e.origin = e.time
		e.count = 0
		e.interval = interval
		return true
	}
	if e.count == 0 {
		e.interval = interval
		return true
	}
	e.origin = e.origin + float64(e.count-1)*e.interval
	e.count = 1
	e.interval = interval
	e.time = e.origin + interval
	heap.Fix(&s.queue, e.index)
	return true
}

// Clear cancels the event. It reports whether the handle was live.
func (s *Scheduler) Clear(h Handle) bool {
	e, ok := s.live[h]
	if !ok {
		return false
	}
	delete(s.live, h)
	e.dead = true
	if e.index >= 0 {
		heap.Remove(&s.queue, e.index)
	}
	return true
}

// Active reports whether h is still scheduled.
func (s *Scheduler) Active(h Handle) bool {
	_, ok := s.live[h]
	return ok
}

// ClearAll cancels every pending event.
func (s *Scheduler) ClearAll() {
	for h := range s.live {
		s.Clear(h)
	}
}

// RunDue fires every event whose time falls before the end of the current
// frame, in time order. Callbacks may schedule or clear events, including
// their own handle.
func (s *Scheduler) RunDue() {
	end := float64(s.frame+1) / s.sampleRate
	for len(s.queue) > 0 && s.queue[0].time < end {
		e := heap.Pop(&s.queue).(*event)
		if e.dead {
			continue
		}
		if e.interval == 0 {
			delete(s.live, e.handle)
			e.dead = true
		}
		e.fn(e.time)
		if e.interval > 0 && !e.dead && e.index < 0 {
			s.seq++
			e.seq = s.seq
			e.count++
			e.time = e.origin + float64(e.count)*e.interval
			heap.Push(&s.queue, e)
		}
	}
}

// Advance moves the clock to the next frame.
func (s *Scheduler) Advance() { s.frame++ }

// Step runs due events and advances one frame.
func (s *Scheduler) Step() {
	s.RunDue()
	s.frame++
}

// Reset clears every event and rewinds the clock to frame 0.
func (s *Scheduler) Reset() {
	s.ClearAll()
	s.frame = 0
}
