// Package resynth defines the contracts of a hot-reloadable instrument: a
// behavior program (Module) that can be replaced while the instrument plays,
// the live state it creates (Instance), and the audio backend that pulls
// samples from it.
package resynth

import (
	"github.com/resynth/resynth/device/controlxl"
	"github.com/resynth/resynth/device/launchpad"
)

type (
	// Module is a loaded behavior program. It constructs Instances, either
	// with default state or from bytes produced by Instance.Serialize of any
	// version of the program. Close unloads the program; it must be called
	// only after its Instance has been destroyed.
	Module interface {
		Name() string
		Default() (Instance, error)
		Restore(state []byte) (Instance, error)
		Close() error
	}

	// Instance is the live musical state created by a Module. All methods
	// take the audio clock t, in seconds. Methods called after Destroy, or
	// after the owning Module is closed, do nothing and return zero values.
	Instance interface {
		// Serialize captures the full state. It never fails.
		Serialize() []byte
		Destroy()
		// Sample returns one stereo frame in [-1, 1].
		Sample(t float64) (left, right float64)
		PadIn(t float64, in launchpad.Input)
		PadOut(t float64) launchpad.Output
		CtrlIn(t float64, in controlxl.Input)
		CtrlOut(t float64) controlxl.Output
	}

	// Loader resolves an artifact path into a loaded Module. A Loader must
	// not have side effects on any live Module when loading fails.
	Loader interface {
		Load(path string) (Module, error)
	}

	// ReloadEvent notifies that the artifact at Path was (re)created.
	ReloadEvent struct {
		Path string
	}
)
