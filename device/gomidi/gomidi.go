// Package gomidi opens control surface ports through rtmidi.
package gomidi

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/resynth/resynth"
	"github.com/resynth/resynth/device"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	"gitlab.com/gomidi/midi/v2/drivers/rtmididrv"
)

type (
	RTMIDIContext struct {
		driver *rtmididrv.Driver
		mutex  sync.Mutex
		ports  []*RTMIDIPort
	}

	// RTMIDIPort is a pair of input and output ports whose names share a
	// prefix.
	RTMIDIPort struct {
		in   drivers.In
		out  drivers.Out
		stop func()
		once sync.Once
	}
)

var errNoDriver = errors.New("no MIDI driver available")

// Open the driver.
func NewContext() *RTMIDIContext {
	m := RTMIDIContext{}
	// there's not much we can do if this fails, so just use m.driver = nil to
	// indicate no driver available; Connect reports it
	m.driver, _ = rtmididrv.New()
	return &m
}

// Connect opens the first input and the first output port whose names start
// with prefix. Raw frames from the input, SysEx included, are passed to
// handle on the driver's goroutine.
func (m *RTMIDIContext) Connect(prefix string, handle func([]byte)) (device.Port, error) {
	if m.driver == nil {
		return nil, &resynth.DeviceConnectError{Port: prefix, Direction: "in", Err: errNoDriver}
	}
	ins, err := m.driver.Ins()
	if err != nil {
		return nil, &resynth.DeviceConnectError{Port: prefix, Direction: "in", Err: err}
	}
	outs, err := m.driver.Outs()
	if err != nil {
		return nil, &resynth.DeviceConnectError{Port: prefix, Direction: "out", Err: err}
	}
	p := &RTMIDIPort{}
	for _, in := range ins {
		if strings.HasPrefix(in.String(), prefix) {
			p.in = in
			break
		}
	}
	if p.in == nil {
		return nil, &resynth.DeviceConnectError{Port: prefix, Direction: "in", Err: resynth.ErrPortNotFound}
	}
	for _, out := range outs {
		if strings.HasPrefix(out.String(), prefix) {
			p.out = out
			break
		}
	}
	if p.out == nil {
		return nil, &resynth.DeviceConnectError{Port: prefix, Direction: "out", Err: resynth.ErrPortNotFound}
	}
	if err := p.out.Open(); err != nil {
		return nil, &resynth.DeviceConnectError{Port: prefix, Direction: "out", Err: err}
	}
	if err := p.in.Open(); err != nil {
		p.out.Close()
		return nil, &resynth.DeviceConnectError{Port: prefix, Direction: "in", Err: err}
	}
	p.stop, err = midi.ListenTo(p.in, func(msg midi.Message, timestampms int32) {
		handle(msg.Bytes())
	}, midi.UseSysEx())
	if err != nil {
		p.in.Close()
		p.out.Close()
		return nil, &resynth.DeviceConnectError{Port: prefix, Direction: "in", Err: err}
	}
	m.mutex.Lock()
	m.ports = append(m.ports, p)
	m.mutex.Unlock()
	return p, nil
}

// Ports lists the names of all input and output ports.
func (m *RTMIDIContext) Ports() (ins, outs []string, err error) {
	if m.driver == nil {
		return nil, nil, errNoDriver
	}
	inPorts, err := m.driver.Ins()
	if err != nil {
		return nil, nil, fmt.Errorf("listing MIDI inputs failed: %w", err)
	}
	outPorts, err := m.driver.Outs()
	if err != nil {
		return nil, nil, fmt.Errorf("listing MIDI outputs failed: %w", err)
	}
	for _, in := range inPorts {
		ins = append(ins, in.String())
	}
	for _, out := range outPorts {
		outs = append(outs, out.String())
	}
	return ins, outs, nil
}

func (c *RTMIDIContext) Close() {
	if c.driver == nil {
		return
	}
	c.mutex.Lock()
	for _, p := range c.ports {
		p.Close()
	}
	c.ports = nil
	c.mutex.Unlock()
	c.driver.Close()
}

func (p *RTMIDIPort) Send(frame []byte) error {
	if !p.out.IsOpen() {
		return device.ErrNotConnected
	}
	return p.out.Send(frame)
}

func (p *RTMIDIPort) Name() string {
	return p.in.String()
}

func (p *RTMIDIPort) Close() error {
	var err error
	p.once.Do(func() {
		if p.stop != nil {
			p.stop()
		}
		err = errors.Join(p.in.Close(), p.out.Close())
	})
	return err
}
