//go:build portaudio

// Package portaudio plays the instrument through PortAudio. The stream
// callback renders straight into the device buffer and reports the output
// underflows PortAudio flags.
package portaudio

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	pa "github.com/gordonklaus/portaudio"
	"github.com/resynth/resynth"
)

type (
	// Context owns the PortAudio library; it is initialized by NewContext
	// and terminated by Close.
	Context struct {
		rate   int
		frames int

		mutex   sync.Mutex
		streams []*stream
		closed  bool
	}

	stream struct {
		stream *pa.Stream
		source resynth.AudioSource
		buf    resynth.AudioBuffer
		period time.Duration
		once   sync.Once
		err    error
	}
)

// DefaultFrames is the callback buffer size used when none is configured.
const DefaultFrames = 256

var ErrClosed = errors.New("portaudio: context closed")

// NewContext initializes PortAudio. Frames is the number of frames per
// callback; zero uses DefaultFrames.
func NewContext(rate, frames int) (*Context, error) {
	if err := pa.Initialize(); err != nil {
		return nil, fmt.Errorf("unable to initialize portaudio: %w", err)
	}
	if frames <= 0 {
		frames = DefaultFrames
	}
	return &Context{rate: rate, frames: frames}, nil
}

func (c *Context) SampleRate() int {
	return c.rate
}

func (c *Context) MaxFrames() int {
	return c.frames
}

// Play opens a stereo stream on the default output device and starts it.
func (c *Context) Play(source resynth.AudioSource) (io.Closer, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	s := &stream{
		source: source,
		buf:    make(resynth.AudioBuffer, c.frames),
		period: time.Duration(c.frames) * time.Second / time.Duration(c.rate),
	}
	var err error
	s.stream, err = pa.OpenDefaultStream(0, 2, float64(c.rate), c.frames, s.process)
	if err != nil {
		return nil, fmt.Errorf("error opening default output via portaudio: %w", err)
	}
	if rate := int(s.stream.Info().SampleRate); rate != c.rate {
		source.AudioEvent(resynth.AudioEvent{Kind: resynth.AudioSampleRate, SampleRate: rate})
	}
	if err := s.stream.Start(); err != nil {
		s.stream.Close()
		return nil, fmt.Errorf("error starting portaudio stream: %w", err)
	}
	c.streams = append(c.streams, s)
	return s, nil
}

// process is the stream callback.
func (s *stream) process(out [][]float32, info pa.StreamCallbackTimeInfo, flags pa.StreamCallbackFlags) {
	if flags&pa.OutputUnderflow != 0 {
		late := s.period
		if d := info.CurrentTime - info.OutputBufferDacTime; d > 0 {
			late = d
		}
		s.source.AudioEvent(resynth.AudioEvent{Kind: resynth.AudioUnderrun, Late: late})
	}
	n := min(len(out[0]), len(s.buf))
	buf := s.buf[:n]
	s.source.ReadAudio(buf)
	for i, frame := range buf {
		out[0][i], out[1][i] = frame[0], frame[1]
	}
	for i := n; i < len(out[0]); i++ {
		out[0][i], out[1][i] = 0, 0
	}
}

func (s *stream) Close() error {
	s.once.Do(func() {
		s.err = errors.Join(s.stream.Stop(), s.stream.Close())
	})
	return s.err
}

// Close stops every stream and terminates PortAudio.
func (c *Context) Close() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	var errs []error
	for _, s := range c.streams {
		errs = append(errs, s.Close())
	}
	c.streams = nil
	if err := pa.Terminate(); err != nil {
		errs = append(errs, fmt.Errorf("termination error: %w", err))
	}
	return errors.Join(errs...)
}
