// Package effects holds the master-bus processors that run on quad frames
// after the master gain.
package effects

// Channels is the frame width of the master bus.
const Channels = 4

// Frame is one quad sample: front-left, front-right, rear-left, rear-right.
type Frame = [Channels]float64

// Effector processes one frame in place.
type Effector interface {
	Process(f *Frame)
	Reset()
}

// Chain applies a sequence of effects in order.
type Chain struct {
	effects []Effector
}

func NewChain(effects ...Effector) *Chain {
	return &Chain{effects: effects}
}

func (c *Chain) Process(f *Frame) {
	for _, e := range c.effects {
		e.Process(f)
	}
}

// ProcessBlock runs the chain over planar channel buffers of equal length.
func (c *Chain) ProcessBlock(bufs *[Channels][]float64) {
	n := len(bufs[0])
	for k := 0; k < n; k++ {
		f := Frame{bufs[0][k], bufs[1][k], bufs[2][k], bufs[3][k]}
		c.Process(&f)
		for ch := range bufs {
			bufs[ch][k] = f[ch]
		}
	}
}

func (c *Chain) Reset() {
	for _, e := range c.effects {
		e.Reset()
	}
}

