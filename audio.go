package resynth

import (
	"io"
	"time"
)

type (
	// AudioBuffer is a buffer of stereo audio frames.
	AudioBuffer [][2]float32

	// AudioSource produces audio on demand. ReadAudio is called on the
	// real-time thread of the backend and must fill the whole buffer without
	// blocking. AudioEvent reports what the backend observed; it is called
	// from the same thread and must not block either.
	AudioSource interface {
		ReadAudio(buffer AudioBuffer)
		AudioEvent(event AudioEvent)
	}

	// AudioContext is an audio backend. Play starts pulling audio from the
	// source until the returned Closer is closed.
	AudioContext interface {
		Play(source AudioSource) (io.Closer, error)
		SampleRate() int
		Close() error
	}

	AudioEventKind int

	// AudioEvent is an informational notification from the backend: a
	// changed sample rate or a buffer that was delivered late. Neither alters
	// the state of the instrument.
	AudioEvent struct {
		Kind       AudioEventKind
		SampleRate int
		Late       time.Duration
	}
)

const (
	AudioUnderrun AudioEventKind = iota
	AudioSampleRate
)

func (k AudioEventKind) String() string {
	switch k {
	case AudioUnderrun:
		return "underrun"
	case AudioSampleRate:
		return "samplerate"
	}
	return "unknown"
}

// Fill sets every frame of the buffer to v.
func (b AudioBuffer) Fill(v float32) {
	for i := range b {
		b[i] = [2]float32{v, v}
	}
}
