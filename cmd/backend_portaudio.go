//go:build portaudio

package cmd

import (
	"github.com/resynth/resynth"
	"github.com/resynth/resynth/config"
	"github.com/resynth/resynth/portaudio"
)

func init() {
	Backends["portaudio"] = func(c config.Audio) (resynth.AudioContext, error) {
		frames := int(c.Buffer.Seconds() * float64(c.SampleRate))
		return portaudio.NewContext(c.SampleRate, frames)
	}
}
