//go:build cgo || !linux

package cmd

import (
	"github.com/resynth/resynth"
	"github.com/resynth/resynth/config"
	"github.com/resynth/resynth/oto"
)

func init() {
	Backends["oto"] = func(c config.Audio) (resynth.AudioContext, error) {
		format, err := oto.ParseFormat(c.Format)
		if err != nil {
			return nil, err
		}
		return oto.NewContext(c.SampleRate, format, c.Buffer)
	}
}
