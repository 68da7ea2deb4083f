package afg

// EdgeDetector fires its callback when the polled value crosses from below
// the threshold to at or above it.
type EdgeDetector struct {
	Threshold float64

	previous     float64
	onRisingEdge func(t float64)
}

// NewEdgeDetector returns a detector with a 0.5 threshold.
func NewEdgeDetector(fn func(t float64)) *EdgeDetector {
	return &EdgeDetector{Threshold: 0.5, onRisingEdge: fn}
}

// OnRisingEdge replaces the callback.
func (e *EdgeDetector) OnRisingEdge(fn func(t float64)) { e.onRisingEdge = fn }

// Poll feeds one sample and reports whether it was a rising edge.
func (e *EdgeDetector) Poll(v, t float64) bool {
	rising := e.previous < e.Threshold && v >= e.Threshold
	e.previous = v
	if rising && e.onRisingEdge != nil {
		e.onRisingEdge(t)
	}
	return rising
}

// Previous returns the last polled value.
func (e *EdgeDetector) Previous() float64 { return e.previous }

// Reset forgets the previous value.
func (e *EdgeDetector) Reset() { e.previous = 0 }
