//go:build !cgo

package midictl

// Inputs is unavailable without cgo.
func Inputs() ([]string, error) { return nil, ErrNoDriver }

// Listen is unavailable without cgo.
func Listen(prefix string, b *Bridge) (stop func(), err error) { return nil, ErrNoDriver }
