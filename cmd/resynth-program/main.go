//go:build wasip1

// Command resynth-program is the instrument program compiled to WebAssembly:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o program.wasm ./cmd/resynth-program
//
// The host reloads program.wasm whenever it is rebuilt.
package main

import (
	"unsafe"

	"github.com/resynth/resynth/device/launchpad"
	"github.com/resynth/resynth/program"
	"github.com/resynth/resynth/wasmhost/abi"
	"github.com/resynth/resynth/wavetable"
)

var (
	bank      = wavetable.DefaultBank()
	instances = map[int32]*program.Program{}
	nextID    int32
	// pinned keeps buffers handed to the host alive until freed.
	pinned = map[uint32][]byte{}

	sampleBuf [abi.SampleSize]byte
	padBuf    [abi.PadSize]byte
	ctrlBuf   [abi.CtrlSize]byte
)

func init() {
	bank.Warm()
}

func main() {}

func add(p *program.Program) int32 {
	nextID++
	instances[nextID] = p
	return nextID
}

func address(b []byte) uint32 {
	return uint32(uintptr(unsafe.Pointer(unsafe.SliceData(b))))
}

//go:wasmexport construct
func construct() int32 {
	return add(program.Default(bank))
}

//go:wasmexport restore
func restore(ptr, n uint32) int32 {
	buf, ok := pinned[ptr]
	if !ok || uint32(len(buf)) < n {
		return 0
	}
	p, err := program.Decode(buf[:n], bank)
	if err != nil {
		return 0
	}
	return add(p)
}

//go:wasmexport serialize
func serialize(h int32) uint64 {
	p, ok := instances[h]
	if !ok {
		return 0
	}
	state := p.Encode()
	ptr := alloc(uint32(len(state)))
	copy(pinned[ptr], state)
	return abi.Slice(ptr, uint32(len(state)))
}

//go:wasmexport destroy
func destroy(h int32) {
	delete(instances, h)
}

//go:wasmexport sample
func sample(h int32, t float64) uint32 {
	var l, r float64
	if p, ok := instances[h]; ok {
		l, r = p.Sample(t)
	}
	abi.PutSample(sampleBuf[:], l, r)
	return address(sampleBuf[:])
}

//go:wasmexport pad_in
func padIn(h int32, t float64, x, y int32, v float64) {
	if p, ok := instances[h]; ok {
		p.PadIn(t, launchpad.Input{X: int(x), Y: int(y), Value: v})
	}
}

//go:wasmexport pad_out
func padOut(h int32, t float64) uint32 {
	var out launchpad.Output
	if p, ok := instances[h]; ok {
		out = p.PadOut(t)
	}
	abi.PutPad(padBuf[:], &out)
	return address(padBuf[:])
}

//go:wasmexport ctrl_in
func ctrlIn(h int32, t float64, kind, a, b int32, v float64) {
	if p, ok := instances[h]; ok {
		p.CtrlIn(t, abi.GetCtrlInput(kind, a, b, v))
	}
}

//go:wasmexport ctrl_out
func ctrlOut(h int32, t float64) uint32 {
	p, ok := instances[h]
	if !ok {
		clear(ctrlBuf[:])
		return address(ctrlBuf[:])
	}
	out := p.CtrlOut(t)
	abi.PutCtrl(ctrlBuf[:], &out)
	return address(ctrlBuf[:])
}

//go:wasmexport alloc
func alloc(n uint32) uint32 {
	buf := make([]byte, max(n, 1))
	ptr := address(buf)
	pinned[ptr] = buf
	return ptr
}

//go:wasmexport free
func free(ptr uint32) {
	delete(pinned, ptr)
}
