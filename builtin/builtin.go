// Package builtin provides Modules compiled into the host process, addressed
// as "builtin:<name>". They behave exactly like loaded programs, which makes
// them useful for running without a toolchain and for tests.
package builtin

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/resynth/resynth"
	"github.com/resynth/resynth/device/controlxl"
	"github.com/resynth/resynth/device/launchpad"
	"github.com/resynth/resynth/program"
	"github.com/resynth/resynth/wavetable"
)

// Scheme is the artifact prefix resolved by Loader.
const Scheme = "builtin"

type (
	Loader struct {
		Bank *wavetable.Bank
	}

	// Module wraps the program package in-process.
	Module struct {
		name   string
		bank   *wavetable.Bank
		closed atomic.Bool
	}

	Instance struct {
		module  *Module
		program *program.Program
	}
)

var errUnknownModule = errors.New("no such builtin module")

var registry = map[string]struct{}{
	"piano": {},
}

// Names lists the available builtin modules.
func Names() []string {
	ret := make([]string, 0, len(registry))
	for name := range registry {
		ret = append(ret, name)
	}
	sort.Strings(ret)
	return ret
}

// Load resolves "builtin:<name>" or a bare name.
func (l Loader) Load(path string) (resynth.Module, error) {
	name := strings.TrimPrefix(path, Scheme+":")
	if _, ok := registry[name]; !ok {
		return nil, &resynth.LoadError{Path: path, Err: fmt.Errorf("%w %q, available: %v", errUnknownModule, name, Names())}
	}
	bank := l.Bank
	if bank == nil {
		bank = wavetable.DefaultBank()
	}
	bank.Warm()
	return &Module{name: Scheme + ":" + name, bank: bank}, nil
}

func (m *Module) Name() string {
	return m.name
}

func (m *Module) Default() (resynth.Instance, error) {
	if m.isClosed() {
		return nil, errModuleClosed
	}
	return &Instance{module: m, program: program.Default(m.bank)}, nil
}

func (m *Module) Restore(state []byte) (resynth.Instance, error) {
	if m.isClosed() {
		return nil, errModuleClosed
	}
	p, err := program.Decode(state, m.bank)
	if err != nil {
		return nil, err
	}
	return &Instance{module: m, program: p}, nil
}

func (m *Module) Close() error {
	m.closed.Store(true)
	return nil
}

var errModuleClosed = errors.New("module is closed")

func (m *Module) isClosed() bool {
	return m.closed.Load()
}

// live returns the program, or nil after Destroy or Close.
func (i *Instance) live() *program.Program {
	if i.program == nil || i.module.isClosed() {
		return nil
	}
	return i.program
}

func (i *Instance) Serialize() []byte {
	if p := i.live(); p != nil {
		return p.Encode()
	}
	return nil
}

func (i *Instance) Destroy() {
	i.program = nil
}

func (i *Instance) Sample(t float64) (left, right float64) {
	if p := i.live(); p != nil {
		return p.Sample(t)
	}
	return 0, 0
}

func (i *Instance) PadIn(t float64, in launchpad.Input) {
	if p := i.live(); p != nil {
		p.PadIn(t, in)
	}
}

func (i *Instance) PadOut(t float64) launchpad.Output {
	if p := i.live(); p != nil {
		return p.PadOut(t)
	}
	return launchpad.Output{}
}

func (i *Instance) CtrlIn(t float64, in controlxl.Input) {
	if p := i.live(); p != nil {
		p.CtrlIn(t, in)
	}
}

func (i *Instance) CtrlOut(t float64) controlxl.Output {
	if p := i.live(); p != nil {
		return p.CtrlOut(t)
	}
	return controlxl.Output{}
}
