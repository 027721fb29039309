// Package launchpad implements the wire protocol of a Novation Launchpad X in
// programmer mode: a 9x9 grid of pads (8x8 pads plus the top row and the right
// column of buttons) with full RGB feedback.
package launchpad

import (
	"math"
)

type (
	// Input is a pad press, release or pressure change. X is the column and Y
	// the row, both counted from the bottom left pad. Value is in [0, 1];
	// zero means released.
	Input struct {
		X, Y  int
		Value float64
	}

	// Color channels are in [0, 1].
	Color struct {
		R, G, B float64
	}

	// Output describes the color of every cell; cell i is at column i%9, row
	// i/9.
	Output [Cells]Color

	Codec struct {
		Settings Settings
	}
)

const (
	Size  = 9
	Cells = Size * Size
)

var sysexHeader = []byte{0xF0, 0x00, 0x20, 0x29, 0x02, 0x0C}

const (
	cmdLED        = 0x03
	cmdVelocity   = 0x04
	cmdBrightness = 0x08
	cmdPressure   = 0x0B
	cmdMode       = 0x0E
	sysexEnd      = 0xF7
	ledRGB        = 0x03
)

// Index returns the device note number of the cell at column x, row y.
// Coordinates outside the grid saturate to its edges.
func Index(x, y int) byte {
	x = min(max(x, 0), Size-1)
	y = min(max(y, 0), Size-1)
	return byte((y+1)*10 + (x + 1))
}

// Coords is the inverse of Index. Indices whose column or row digit is zero
// do not address a cell; rows above the grid saturate to the top row.
func Coords(index byte) (x, y int, ok bool) {
	col, row := int(index%10), int(index/10)
	if col == 0 || row == 0 {
		return 0, 0, false
	}
	return col - 1, min(row-1, Size-1), true
}

// Cell returns the position of cell i of an Output.
func Cell(i int) (x, y int) {
	return i % Size, i / Size
}

// At returns the color of the cell at column x, row y.
func (o *Output) At(x, y int) Color {
	if x < 0 || y < 0 || x >= Size || y >= Size {
		return Color{}
	}
	return o[y*Size+x]
}

// Set changes the color of the cell at column x, row y. Positions outside the
// grid are ignored.
func (o *Output) Set(x, y int, c Color) {
	if x < 0 || y < 0 || x >= Size || y >= Size {
		return
	}
	o[y*Size+x] = c
}

func NewCodec(settings Settings) Codec {
	return Codec{Settings: settings}
}

// Decode reads note on, note off, polyphonic aftertouch and control change
// messages on the first channel.
func (Codec) Decode(frame []byte) (Input, bool) {
	if len(frame) < 3 || frame[1] > 0x7F || frame[2] > 0x7F {
		return Input{}, false
	}
	var value float64
	switch frame[0] {
	case 0x90, 0xA0, 0xB0:
		value = toFloat(frame[2])
	case 0x80:
		value = 0
	default:
		return Input{}, false
	}
	x, y, ok := Coords(frame[1])
	if !ok {
		return Input{}, false
	}
	return Input{X: x, Y: y, Value: value}, true
}

// Encode returns a single SysEx message setting the RGB color of every cell.
func (Codec) Encode(out Output) [][]byte {
	frame := make([]byte, 0, len(sysexHeader)+2+Cells*5)
	frame = append(frame, sysexHeader...)
	frame = append(frame, cmdLED)
	for i, c := range out {
		x, y := Cell(i)
		frame = append(frame, ledRGB, Index(x, y), toByte(c.R), toByte(c.G), toByte(c.B))
	}
	frame = append(frame, sysexEnd)
	return [][]byte{frame}
}

// Setup returns the handshake: operating mode, velocity curve, pressure mode
// and brightness, in that order.
func (c Codec) Setup() [][]byte {
	s := c.Settings
	return [][]byte{
		sysex(cmdMode, byte(s.Mode)),
		sysex(cmdVelocity, s.Velocity.curve(), s.Velocity.fixed()),
		sysex(cmdPressure, byte(s.Pressure), byte(s.PressureCurve)),
		sysex(cmdBrightness, toByte(s.Brightness)),
	}
}

func sysex(cmd byte, data ...byte) []byte {
	frame := make([]byte, 0, len(sysexHeader)+len(data)+2)
	frame = append(frame, sysexHeader...)
	frame = append(frame, cmd)
	frame = append(frame, data...)
	return append(frame, sysexEnd)
}

func toFloat(b byte) float64 {
	return float64(b) / 127
}

func toByte(f float64) byte {
	if math.IsNaN(f) {
		return 0
	}
	return byte(min(max(f, 0), 1) * 127)
}
