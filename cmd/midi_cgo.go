//go:build cgo

package cmd

import (
	"github.com/resynth/resynth/device"
	"github.com/resynth/resynth/device/gomidi"
)

func NewMidiContext() device.Ports {
	return gomidi.NewContext()
}
