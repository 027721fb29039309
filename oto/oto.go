// Package oto plays the instrument through ebitengine/oto. Oto pulls: the
// device thread reads from a player, and every read renders fresh frames from
// the source.
package oto

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/resynth/resynth"
)

type (
	// Context is the oto audio context. Only one can exist per process.
	Context struct {
		ctx    *oto.Context
		rate   int
		format Format
		buffer time.Duration

		mutex   sync.Mutex
		players []*Player
		closed  bool
	}

	// Player feeds one source to the device.
	Player struct {
		player *oto.Player
		reader *reader
		once   sync.Once
	}

	// reader renders the source into frames on every read. It is only used
	// from the device thread.
	reader struct {
		source resynth.AudioSource
		format Format
		buf    resynth.AudioBuffer
	}

	// Format is the sample format handed to the device.
	Format int
)

const (
	Float32 Format = iota
	Int16
)

// DefaultBufferSize is the device buffer used when none is configured.
const DefaultBufferSize = 20 * time.Millisecond

// maxFrames bounds the frames rendered per read.
const maxFrames = 4096

var ErrClosed = errors.New("oto: context closed")

func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "f32", "float32":
		return Float32, nil
	case "s16", "int16":
		return Int16, nil
	}
	return Float32, fmt.Errorf("unknown sample format %q", s)
}

func (f Format) String() string {
	if f == Int16 {
		return "s16"
	}
	return "f32"
}

func (f Format) frameSize() int {
	if f == Int16 {
		return 4
	}
	return 8
}

func (f Format) otoFormat() oto.Format {
	if f == Int16 {
		return oto.FormatSignedInt16LE
	}
	return oto.FormatFloat32LE
}

// NewContext opens the default output device and waits until it is ready.
// A zero buffer uses DefaultBufferSize.
func NewContext(rate int, format Format, buffer time.Duration) (*Context, error) {
	if buffer <= 0 {
		buffer = DefaultBufferSize
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   rate,
		ChannelCount: 2,
		Format:       format.otoFormat(),
		BufferSize:   buffer,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot create oto context: %w", err)
	}
	<-ready
	return &Context{ctx: ctx, rate: rate, format: format, buffer: buffer}, nil
}

func (c *Context) SampleRate() int {
	return c.rate
}

// MaxFrames is the largest buffer a player renders at once.
func (c *Context) MaxFrames() int {
	return maxFrames
}

// Play starts pulling audio from the source. The player starts right away
// and plays until closed.
func (c *Context) Play(source resynth.AudioSource) (io.Closer, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if err := c.ctx.Err(); err != nil {
		return nil, fmt.Errorf("oto context failed: %w", err)
	}
	r := &reader{source: source, format: c.format, buf: make(resynth.AudioBuffer, maxFrames)}
	p := &Player{player: c.ctx.NewPlayer(r), reader: r}
	frames := int(int64(c.buffer) * int64(c.rate) / int64(time.Second))
	p.player.SetBufferSize(max(frames, 1) * c.format.frameSize())
	source.AudioEvent(resynth.AudioEvent{Kind: resynth.AudioSampleRate, SampleRate: c.rate})
	p.player.Play()
	c.players = append(c.players, p)
	return p, nil
}

// Read renders whole frames into p. It never returns an error: the source
// always has more audio.
func (r *reader) Read(p []byte) (int, error) {
	size := r.format.frameSize()
	frames := min(len(p)/size, len(r.buf))
	if frames == 0 {
		return 0, nil
	}
	buf := r.buf[:frames]
	r.source.ReadAudio(buf)
	if r.format == Int16 {
		return PutInt16LE(p, buf), nil
	}
	return PutFloat32LE(p, buf), nil
}

// Close stops the player. Errors reported by the device are returned.
func (p *Player) Close() (err error) {
	p.once.Do(func() {
		err = p.player.Err()
		p.player.Pause()
		if cerr := p.player.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("cannot close oto player: %w", cerr))
		}
	})
	return err
}

// Close stops every player and suspends the device. Oto contexts cannot be
// recreated, so the device itself stays open until the process exits.
func (c *Context) Close() error {
	c.mutex.Lock()
	players := c.players
	c.players, c.closed = nil, true
	c.mutex.Unlock()
	var errs []error
	for _, p := range players {
		errs = append(errs, p.Close())
	}
	if err := c.ctx.Suspend(); err != nil {
		errs = append(errs, fmt.Errorf("cannot suspend oto context: %w", err))
	}
	return errors.Join(errs...)
}
