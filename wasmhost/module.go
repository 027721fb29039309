package wasmhost

import (
	"context"
	"errors"
	"math"
	"sync"

	"github.com/resynth/resynth"
	"github.com/resynth/resynth/device/controlxl"
	"github.com/resynth/resynth/device/launchpad"
	"github.com/resynth/resynth/wasmhost/abi"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"
)

type (
	// Module is one instantiated artifact. Calls into the program are
	// serialized by a mutex and reuse one preallocated stack, so sampling
	// does not allocate.
	Module struct {
		name     string
		ctx      context.Context
		logger   *zap.Logger
		compiled wazero.CompiledModule
		mod      api.Module
		mem      api.Memory
		fns      [numFuncs]api.Function

		mutex  sync.Mutex
		stack  [8]uint64
		closed bool
		faults int
	}

	Instance struct {
		module *Module
		handle uint32
	}
)

const (
	fnConstruct = iota
	fnRestore
	fnSerialize
	fnDestroy
	fnSample
	fnPadIn
	fnPadOut
	fnCtrlIn
	fnCtrlOut
	fnAlloc
	fnFree
	numFuncs
)

var funcNames = [numFuncs]string{
	abi.Construct, abi.Restore, abi.Serialize, abi.Destroy, abi.Sample,
	abi.PadIn, abi.PadOut, abi.CtrlIn, abi.CtrlOut, abi.Alloc, abi.Free,
}

var (
	errModuleClosed  = errors.New("module is closed")
	errConstruct     = errors.New("program failed to construct an instance")
	errRestore       = errors.New("program rejected the state")
	errOutOfBounds   = errors.New("program returned memory out of bounds")
	errStateTooLarge = errors.New("state does not fit in program memory")
	errAlloc         = errors.New("program could not allocate memory for the state")
)

func (m *Module) Name() string {
	return m.name
}

func (m *Module) Default() (resynth.Instance, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return nil, errModuleClosed
	}
	if err := m.call(fnConstruct); err != nil {
		return nil, err
	}
	h := api.DecodeU32(m.stack[0])
	if h == 0 {
		return nil, errConstruct
	}
	return &Instance{module: m, handle: h}, nil
}

// Restore copies the state into program memory and asks the program to
// construct an instance from it.
func (m *Module) Restore(state []byte) (resynth.Instance, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return nil, errModuleClosed
	}
	if uint64(len(state)) > math.MaxInt32 {
		return nil, errStateTooLarge
	}
	n := uint32(len(state))
	m.stack[0] = api.EncodeU32(n)
	if err := m.call(fnAlloc); err != nil {
		return nil, err
	}
	ptr := api.DecodeU32(m.stack[0])
	if ptr == 0 {
		return nil, errAlloc
	}
	if !m.mem.Write(ptr, state) {
		m.free(ptr)
		return nil, errOutOfBounds
	}
	m.stack[0], m.stack[1] = api.EncodeU32(ptr), api.EncodeU32(n)
	err := m.call(fnRestore)
	h := api.DecodeU32(m.stack[0])
	m.free(ptr)
	if err != nil {
		return nil, err
	}
	if h == 0 {
		return nil, errRestore
	}
	return &Instance{module: m, handle: h}, nil
}

// Close unloads the program. Instances still referring to it become inert.
func (m *Module) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	return errors.Join(m.mod.Close(m.ctx), m.compiled.Close(m.ctx))
}

// Faults returns the number of calls into the program that failed.
func (m *Module) Faults() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.faults
}

// call invokes fn with its parameters already on the stack. Only the first
// fault is logged.
func (m *Module) call(fn int) error {
	err := m.fns[fn].CallWithStack(m.ctx, m.stack[:])
	if err != nil {
		if m.faults == 0 {
			m.logger.Error("program call failed", zap.String("func", funcNames[fn]), zap.Error(err))
		}
		m.faults++
	}
	return err
}

func (m *Module) free(ptr uint32) {
	m.stack[0] = api.EncodeU32(ptr)
	m.call(fnFree)
}

// lock acquires the module and reports whether the instance can be called.
// The caller must unlock.
func (i *Instance) lock() bool {
	i.module.mutex.Lock()
	return i.handle != 0 && !i.module.closed
}

func (i *Instance) unlock() {
	i.module.mutex.Unlock()
}

func (i *Instance) Serialize() []byte {
	ok := i.lock()
	defer i.unlock()
	if !ok {
		return nil
	}
	m := i.module
	m.stack[0] = api.EncodeU32(i.handle)
	if m.call(fnSerialize) != nil {
		return nil
	}
	ptr, n := abi.Unslice(m.stack[0])
	defer m.free(ptr)
	buf, ok := m.mem.Read(ptr, n)
	if !ok {
		return nil
	}
	ret := make([]byte, n)
	copy(ret, buf)
	return ret
}

func (i *Instance) Destroy() {
	ok := i.lock()
	defer i.unlock()
	if !ok {
		return
	}
	m := i.module
	m.stack[0] = api.EncodeU32(i.handle)
	m.call(fnDestroy)
	i.handle = 0
}

func (i *Instance) Sample(t float64) (left, right float64) {
	ok := i.lock()
	defer i.unlock()
	if !ok {
		return 0, 0
	}
	m := i.module
	m.stack[0], m.stack[1] = api.EncodeU32(i.handle), api.EncodeF64(t)
	if m.call(fnSample) != nil {
		return 0, 0
	}
	buf, ok := m.mem.Read(api.DecodeU32(m.stack[0]), abi.SampleSize)
	if !ok {
		return 0, 0
	}
	return abi.GetSample(buf)
}

func (i *Instance) PadIn(t float64, in launchpad.Input) {
	ok := i.lock()
	defer i.unlock()
	if !ok {
		return
	}
	m := i.module
	m.stack[0] = api.EncodeU32(i.handle)
	m.stack[1] = api.EncodeF64(t)
	m.stack[2] = api.EncodeI32(int32(in.X))
	m.stack[3] = api.EncodeI32(int32(in.Y))
	m.stack[4] = api.EncodeF64(in.Value)
	m.call(fnPadIn)
}

func (i *Instance) PadOut(t float64) (out launchpad.Output) {
	ok := i.lock()
	defer i.unlock()
	if !ok {
		return
	}
	m := i.module
	m.stack[0], m.stack[1] = api.EncodeU32(i.handle), api.EncodeF64(t)
	if m.call(fnPadOut) != nil {
		return
	}
	if buf, ok := m.mem.Read(api.DecodeU32(m.stack[0]), abi.PadSize); ok {
		abi.GetPad(buf, &out)
	}
	return
}

func (i *Instance) CtrlIn(t float64, in controlxl.Input) {
	ok := i.lock()
	defer i.unlock()
	if !ok {
		return
	}
	m := i.module
	kind, a, b, v := abi.PutCtrlInput(in)
	m.stack[0] = api.EncodeU32(i.handle)
	m.stack[1] = api.EncodeF64(t)
	m.stack[2] = api.EncodeI32(kind)
	m.stack[3] = api.EncodeI32(a)
	m.stack[4] = api.EncodeI32(b)
	m.stack[5] = api.EncodeF64(v)
	m.call(fnCtrlIn)
}

func (i *Instance) CtrlOut(t float64) (out controlxl.Output) {
	ok := i.lock()
	defer i.unlock()
	if !ok {
		return
	}
	m := i.module
	m.stack[0], m.stack[1] = api.EncodeU32(i.handle), api.EncodeF64(t)
	if m.call(fnCtrlOut) != nil {
		return
	}
	if buf, ok := m.mem.Read(api.DecodeU32(m.stack[0]), abi.CtrlSize); ok {
		abi.GetCtrl(buf, &out)
	}
	return
}
