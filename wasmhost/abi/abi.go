// Package abi describes the boundary between the host and a program compiled
// to WebAssembly: the names and signatures of the exports every program must
// provide and the memory layout of the values passed through guest memory.
// It is imported by both sides and depends on nothing WebAssembly specific.
//
// A program exports:
//
//	construct() i32                                  handle, 0 on failure
//	restore(ptr, len i32) i32                        handle, 0 on failure
//	serialize(h i32) i64                             ptr<<32 | len, freed by the host
//	destroy(h i32)
//	sample(h i32, t f64) i32                         ptr to [2]f64
//	pad_in(h i32, t f64, x, y i32, v f64)
//	pad_out(h i32, t f64) i32                        ptr to [81*3]f64
//	ctrl_in(h i32, t f64, kind, a, b i32, v f64)
//	ctrl_out(h i32, t f64) i32                       ptr to [48]u8
//	alloc(len i32) i32
//	free(ptr i32)
//
// and its linear memory as "memory". All values are little endian.
package abi

import (
	"encoding/binary"
	"math"

	"github.com/resynth/resynth/device/controlxl"
	"github.com/resynth/resynth/device/launchpad"
)

// ValueType uses the binary encoding of WebAssembly value types.
type ValueType byte

const (
	I32 ValueType = 0x7f
	I64 ValueType = 0x7e
	F64 ValueType = 0x7c
)

func (v ValueType) String() string {
	switch v {
	case I32:
		return "i32"
	case I64:
		return "i64"
	case F64:
		return "f64"
	}
	return "unknown"
}

type Signature struct {
	Params  []ValueType
	Results []ValueType
}

const (
	Memory     = "memory"
	Initialize = "_initialize"

	Construct = "construct"
	Restore   = "restore"
	Serialize = "serialize"
	Destroy   = "destroy"
	Sample    = "sample"
	PadIn     = "pad_in"
	PadOut    = "pad_out"
	CtrlIn    = "ctrl_in"
	CtrlOut   = "ctrl_out"
	Alloc     = "alloc"
	Free      = "free"
)

// Exports lists every required function export and its signature.
var Exports = map[string]Signature{
	Construct: {Results: []ValueType{I32}},
	Restore:   {Params: []ValueType{I32, I32}, Results: []ValueType{I32}},
	Serialize: {Params: []ValueType{I32}, Results: []ValueType{I64}},
	Destroy:   {Params: []ValueType{I32}},
	Sample:    {Params: []ValueType{I32, F64}, Results: []ValueType{I32}},
	PadIn:     {Params: []ValueType{I32, F64, I32, I32, F64}},
	PadOut:    {Params: []ValueType{I32, F64}, Results: []ValueType{I32}},
	CtrlIn:    {Params: []ValueType{I32, F64, I32, I32, I32, F64}},
	CtrlOut:   {Params: []ValueType{I32, F64}, Results: []ValueType{I32}},
	Alloc:     {Params: []ValueType{I32}, Results: []ValueType{I32}},
	Free:      {Params: []ValueType{I32}},
}

// Sizes in bytes of the values returned through guest memory.
const (
	SampleSize = 2 * 8
	PadSize    = launchpad.Cells * 3 * 8
	CtrlSize   = controlxl.KnobRows*controlxl.Cols + controlxl.ButtonRows*controlxl.Cols + 4 + controlxl.Selects
)

// Slice packs a pointer and a length as returned by serialize.
func Slice(ptr, length uint32) uint64 {
	return uint64(ptr)<<32 | uint64(length)
}

// Unslice is the inverse of Slice.
func Unslice(v uint64) (ptr, length uint32) {
	return uint32(v >> 32), uint32(v)
}

func PutSample(dst []byte, left, right float64) {
	binary.LittleEndian.PutUint64(dst, math.Float64bits(left))
	binary.LittleEndian.PutUint64(dst[8:], math.Float64bits(right))
}

func GetSample(src []byte) (left, right float64) {
	left = math.Float64frombits(binary.LittleEndian.Uint64(src))
	right = math.Float64frombits(binary.LittleEndian.Uint64(src[8:]))
	return
}

// PutPad writes the cells in order, each as r, g, b.
func PutPad(dst []byte, out *launchpad.Output) {
	for i, c := range out {
		o := dst[i*24:]
		binary.LittleEndian.PutUint64(o, math.Float64bits(c.R))
		binary.LittleEndian.PutUint64(o[8:], math.Float64bits(c.G))
		binary.LittleEndian.PutUint64(o[16:], math.Float64bits(c.B))
	}
}

func GetPad(src []byte, out *launchpad.Output) {
	for i := range out {
		o := src[i*24:]
		out[i] = launchpad.Color{
			R: math.Float64frombits(binary.LittleEndian.Uint64(o)),
			G: math.Float64frombits(binary.LittleEndian.Uint64(o[8:])),
			B: math.Float64frombits(binary.LittleEndian.Uint64(o[16:])),
		}
	}
}

// PutCtrl writes knobs, buttons, the arrows and the select buttons, one byte
// each.
func PutCtrl(dst []byte, out *controlxl.Output) {
	n := copyColors(dst, out.Knobs[:])
	n += copyColors(dst[n:], out.Buttons[:])
	for _, c := range [4]controlxl.Color{out.Up, out.Down, out.Left, out.Right} {
		dst[n] = byte(c)
		n++
	}
	for _, s := range out.Select {
		dst[n] = 0
		if s {
			dst[n] = 1
		}
		n++
	}
}

func GetCtrl(src []byte, out *controlxl.Output) {
	n := 0
	for i := range out.Knobs {
		out.Knobs[i] = color(src[n])
		n++
	}
	for i := range out.Buttons {
		out.Buttons[i] = color(src[n])
		n++
	}
	for _, c := range [4]*controlxl.Color{&out.Up, &out.Down, &out.Left, &out.Right} {
		*c = color(src[n])
		n++
	}
	for i := range out.Select {
		out.Select[i] = src[n] != 0
		n++
	}
}

func copyColors(dst []byte, colors []controlxl.Color) int {
	for i, c := range colors {
		dst[i] = byte(c)
	}
	return len(colors)
}

// color maps unknown values to Off.
func color(b byte) controlxl.Color {
	if b > byte(controlxl.Green) {
		return controlxl.Off
	}
	return controlxl.Color(b)
}

// PutCtrlInput flattens a control input into the ctrl_in arguments: a is the
// row or select index, b the column, v the value or 1 when pressed.
func PutCtrlInput(in controlxl.Input) (kind, a, b int32, v float64) {
	kind, b = int32(in.Kind), int32(in.Col)
	switch in.Kind {
	case controlxl.Knob, controlxl.Slider:
		return kind, int32(in.Row), b, in.Value
	case controlxl.Select:
		a = int32(in.Index)
	default:
		a = int32(in.Row)
	}
	if in.Pressed {
		v = 1
	}
	return kind, a, b, v
}

func GetCtrlInput(kind, a, b int32, v float64) controlxl.Input {
	in := controlxl.Input{Kind: controlxl.Kind(kind), Col: int(b)}
	switch in.Kind {
	case controlxl.Knob, controlxl.Slider:
		in.Row, in.Value = int(a), v
	case controlxl.Select:
		in.Index, in.Pressed = int(a), v > 0
	default:
		in.Row, in.Pressed = int(a), v > 0
	}
	return in
}
