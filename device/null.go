package device

import (
	"sync"
)

type (
	// NullPorts connects to nothing. It is used when MIDI is not available or
	// disabled; every Connect returns a port that discards what is sent.
	NullPorts struct{}

	nullPort struct{ name string }

	// Loopback is a Port that records every sent frame and lets the caller
	// inject input frames. Tests use it in place of real hardware.
	Loopback struct {
		name   string
		handle func([]byte)
		mutex  sync.Mutex
		sent   [][]byte
		closed bool
	}

	// LoopbackPorts hands out Loopback ports, keyed by the requested prefix.
	LoopbackPorts struct {
		mutex sync.Mutex
		ports map[string]*Loopback
	}
)

func (NullPorts) Connect(prefix string, handle func([]byte)) (Port, error) {
	return nullPort{name: prefix}, nil
}

func (NullPorts) Close() {}

func (p nullPort) Send([]byte) error { return nil }
func (p nullPort) Name() string      { return p.name }
func (p nullPort) Close() error      { return nil }

func NewLoopback(name string, handle func([]byte)) *Loopback {
	return &Loopback{name: name, handle: handle}
}

func (l *Loopback) Send(frame []byte) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	if l.closed {
		return ErrNotConnected
	}
	l.sent = append(l.sent, append([]byte(nil), frame...))
	return nil
}

func (l *Loopback) Name() string { return l.name }

func (l *Loopback) Close() error {
	l.mutex.Lock()
	l.closed = true
	l.mutex.Unlock()
	return nil
}

// Inject delivers an input frame as if the device had sent it.
func (l *Loopback) Inject(frame []byte) {
	if l.handle != nil {
		l.handle(frame)
	}
}

// Sent returns and clears the frames sent so far.
func (l *Loopback) Sent() [][]byte {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	ret := l.sent
	l.sent = nil
	return ret
}

func (p *LoopbackPorts) Connect(prefix string, handle func([]byte)) (Port, error) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	if p.ports == nil {
		p.ports = map[string]*Loopback{}
	}
	l := NewLoopback(prefix, handle)
	p.ports[prefix] = l
	return l, nil
}

// Port returns the loopback connected with the given prefix, or nil.
func (p *LoopbackPorts) Port(prefix string) *Loopback {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.ports[prefix]
}

func (p *LoopbackPorts) Close() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	for _, l := range p.ports {
		l.Close()
	}
}
