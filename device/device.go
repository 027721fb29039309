// Package device connects control surfaces to the engine. A Codec translates
// between raw MIDI frames and typed inputs and outputs; a Surface binds a codec
// to an output connection and queues decoded input until the control loop
// drains it.
package device

import (
	"errors"
	"fmt"
	"sync"
)

type (
	// Codec translates raw frames of one controller model. Decode must never
	// panic: short, unknown and out-of-range frames report false.
	Codec[I, O any] interface {
		Decode(frame []byte) (I, bool)
		Encode(out O) [][]byte
		Setup() [][]byte
	}

	// Conn is the sending half of an opened MIDI port.
	Conn interface {
		Send(frame []byte) error
	}

	// Port is an opened bidirectional MIDI port. Input frames are delivered to
	// the handler given when the port was connected.
	Port interface {
		Conn
		Name() string
		Close() error
	}

	// Ports finds and opens MIDI ports by name prefix.
	Ports interface {
		Connect(prefix string, handle func(frame []byte)) (Port, error)
		Close()
	}

	// Surface is one connected controller.
	Surface[I, O any] struct {
		codec  Codec[I, O]
		conn   Conn
		mutex  sync.Mutex
		queue  []I
		max    int
		drops  int
		opened bool
	}
)

// DefaultQueueLength bounds the number of decoded inputs kept between two
// drains; a full queue drops the newest input.
const DefaultQueueLength = 1024

var ErrNotConnected = errors.New("surface not connected")

func NewSurface[I, O any](codec Codec[I, O], conn Conn) *Surface[I, O] {
	return &Surface[I, O]{codec: codec, conn: conn, max: DefaultQueueLength}
}

// Open sends the setup handshake of the codec. It is sent only once; later
// calls do nothing.
func (s *Surface[I, O]) Open() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.opened {
		return nil
	}
	if s.conn == nil {
		return ErrNotConnected
	}
	for i, frame := range s.codec.Setup() {
		if err := s.conn.Send(frame); err != nil {
			return fmt.Errorf("sending setup frame %d failed: %w", i, err)
		}
	}
	s.opened = true
	return nil
}

// HandleFrame decodes a frame and queues the result. It is called from the
// input goroutine of the MIDI driver and never blocks for long.
func (s *Surface[I, O]) HandleFrame(frame []byte) {
	input, ok := s.codec.Decode(frame)
	if !ok {
		return
	}
	s.mutex.Lock()
	if len(s.queue) < s.max {
		s.queue = append(s.queue, input)
	} else {
		s.drops++
	}
	s.mutex.Unlock()
}

// Drain appends all queued inputs to dst in arrival order, clears the queue
// and returns the extended slice.
func (s *Surface[I, O]) Drain(dst []I) []I {
	s.mutex.Lock()
	dst = append(dst, s.queue...)
	clear(s.queue)
	s.queue = s.queue[:0]
	s.mutex.Unlock()
	return dst
}

// Dropped returns the number of inputs discarded because the queue was full.
func (s *Surface[I, O]) Dropped() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.drops
}

// Push encodes the output and sends every frame. Sending stops at the first
// failing frame.
func (s *Surface[I, O]) Push(out O) error {
	if s.conn == nil {
		return ErrNotConnected
	}
	for _, frame := range s.codec.Encode(out) {
		if err := s.conn.Send(frame); err != nil {
			return fmt.Errorf("sending frame failed: %w", err)
		}
	}
	return nil
}
