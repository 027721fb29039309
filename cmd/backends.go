// Package cmd holds what the binaries share: the MIDI context and the audio
// backends available in this build.
package cmd

import (
	"fmt"
	"maps"
	"slices"

	"github.com/resynth/resynth"
	"github.com/resynth/resynth/config"
	"github.com/resynth/resynth/engine"
)

// Backend opens an audio context from the configuration.
type Backend func(config.Audio) (resynth.AudioContext, error)

// Backends are the audio backends compiled in, by name. Build tags add
// more.
var Backends = map[string]Backend{
	"headless": func(c config.Audio) (resynth.AudioContext, error) {
		frames := int(c.Buffer.Seconds() * float64(c.SampleRate))
		return engine.NewHeadless(c.SampleRate, frames, nil), nil
	},
}

// NewAudioContext opens the configured backend.
func NewAudioContext(c config.Audio) (resynth.AudioContext, error) {
	backend, ok := Backends[c.Backend]
	if !ok {
		return nil, fmt.Errorf("audio backend %q is not available in this build, available: %v", c.Backend, slices.Sorted(maps.Keys(Backends)))
	}
	return backend(c)
}
