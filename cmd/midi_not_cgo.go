//go:build !cgo

package cmd

import (
	"github.com/resynth/resynth/device"
)

func NewMidiContext() device.Ports {
	// with no cgo, we cannot use MIDI, so return a null context
	return device.NullPorts{}
}
