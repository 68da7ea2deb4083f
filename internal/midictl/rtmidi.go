//go:build cgo

package midictl

import (
	"fmt"
	"strings"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

// Inputs lists the MIDI input port names.
func Inputs() ([]string, error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("midictl: driver: %w", err)
	}
	defer drv.Close()
	ins, err := drv.Ins()
	if err != nil {
		return nil, fmt.Errorf("midictl: list inputs: %w", err)
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.String()
	}
	return names, nil
}

// Listen opens the first input whose name starts with prefix (any input when
// prefix is empty) and feeds it to b until the returned stop is called.
func Listen(prefix string, b *Bridge) (stop func(), err error) {
	drv, err := rtmididrv.New()
	if err != nil {
		return nil, fmt.Errorf("midictl: driver: %w", err)
	}
	ins, err := drv.Ins()
	if err != nil {
		drv.Close()
		return nil, fmt.Errorf("midictl: list inputs: %w", err)
	}
	var found drivers.In
	for _, in := range ins {
		if strings.HasPrefix(in.String(), prefix) {
			found = in
			break
		}
	}
	if found == nil {
		drv.Close()
		return nil, fmt.Errorf("midictl: no input matching %q", prefix)
	}
	if err := found.Open(); err != nil {
		drv.Close()
		return nil, fmt.Errorf("midictl: open %s: %w", found, err)
	}
	name := found.String()
	stopListen, err := midi.ListenTo(found, func(msg midi.Message, _ int32) {
		b.Handle(msg)
	}, midi.HandleError(func(err error) {
		b.logger.Warn("midi listener error", "device", name, "err", err)
	}))
	if err != nil {
		found.Close()
		drv.Close()
		return nil, fmt.Errorf("midictl: listen %s: %w", name, err)
	}
	b.logger.Info("midi input connected", "device", name)
	return func() {
		stopListen()
		found.Close()
		drv.Close()
	}, nil
}
