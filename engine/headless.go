package engine

import (
	"errors"
	"io"
	"sync"
	"time"

	"github.com/resynth/resynth"
)

type (
	// Headless is an AudioContext without a device. It pulls buffers from the
	// source at real-time pace and hands them to an optional sink. A buffer
	// pulled more than one period late is reported as an underrun.
	Headless struct {
		rate   int
		frames int
		sink   func(resynth.AudioBuffer)

		mutex   sync.Mutex
		players []*headlessPlayer
		closed  bool
	}

	headlessPlayer struct {
		stop chan struct{}
		done chan struct{}
		once sync.Once
	}
)

var ErrContextClosed = errors.New("audio context closed")

// NewHeadless returns a context pulling frames-sized buffers at rate. The sink
// may be nil; it is called on the pumping goroutine and must not keep the
// buffer.
func NewHeadless(rate, frames int, sink func(resynth.AudioBuffer)) *Headless {
	return &Headless{rate: max(rate, 1), frames: max(frames, 1), sink: sink}
}

func (h *Headless) SampleRate() int {
	return h.rate
}

// MaxFrames is the size of every buffer the context pulls.
func (h *Headless) MaxFrames() int {
	return h.frames
}

func (h *Headless) Play(source resynth.AudioSource) (io.Closer, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.closed {
		return nil, ErrContextClosed
	}
	p := &headlessPlayer{stop: make(chan struct{}), done: make(chan struct{})}
	h.players = append(h.players, p)
	go h.pump(source, p)
	return p, nil
}

func (h *Headless) pump(source resynth.AudioSource, p *headlessPlayer) {
	defer close(p.done)
	buf := make(resynth.AudioBuffer, h.frames)
	period := time.Duration(h.frames) * time.Second / time.Duration(h.rate)
	source.AudioEvent(resynth.AudioEvent{Kind: resynth.AudioSampleRate, SampleRate: h.rate})
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	next := time.Now().Add(period)
	for {
		select {
		case <-p.stop:
			return
		case now := <-ticker.C:
			if late := now.Sub(next); late > period {
				source.AudioEvent(resynth.AudioEvent{Kind: resynth.AudioUnderrun, Late: late})
				next = now
			}
			next = next.Add(period)
			source.ReadAudio(buf)
			if h.sink != nil {
				h.sink(buf)
			}
		}
	}
}

// Close stops the player and waits for its last buffer.
func (p *headlessPlayer) Close() error {
	p.once.Do(func() { close(p.stop) })
	<-p.done
	return nil
}

// Close stops every player started from the context.
func (h *Headless) Close() error {
	h.mutex.Lock()
	players := h.players
	h.players, h.closed = nil, true
	h.mutex.Unlock()
	for _, p := range players {
		p.Close()
	}
	return nil
}
