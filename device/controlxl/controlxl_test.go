package controlxl_test

import (
	"bytes"
	"math"
	"testing"

	"github.com/resynth/resynth/device/controlxl"
)

func TestDecode(t *testing.T) {
	codec := controlxl.NewCodec()
	for _, tc := range []struct {
		name  string
		frame []byte
		ok    bool
		want  controlxl.Input
	}{
		{"top knob row", []byte{0xB0, 0x0D, 0x40}, true, controlxl.Input{Kind: controlxl.Knob, Row: 2, Col: 0, Value: 0}},
		{"middle knob row", []byte{0xB3, 0x24, 0x7F}, true, controlxl.Input{Kind: controlxl.Knob, Row: 1, Col: 7, Value: 1}},
		{"bottom knob row", []byte{0xB0, 0x33, 0x00}, true, controlxl.Input{Kind: controlxl.Knob, Row: 0, Col: 2, Value: -1}},
		{"slider", []byte{0xB0, 0x54, 0x7F}, true, controlxl.Input{Kind: controlxl.Slider, Col: 7, Value: 1}},
		{"upper button", []byte{0x90, 0x2A, 0x7F}, true, controlxl.Input{Kind: controlxl.Button, Col: 1, Row: 1, Pressed: true}},
		{"upper right button", []byte{0x90, 0x3C, 0x7F}, true, controlxl.Input{Kind: controlxl.Button, Col: 7, Row: 1, Pressed: true}},
		{"lower button release", []byte{0x80, 0x49, 0x00}, true, controlxl.Input{Kind: controlxl.Button, Col: 0, Row: 0}},
		{"lower right button", []byte{0x98, 0x5A, 0x7F}, true, controlxl.Input{Kind: controlxl.Button, Col: 5, Row: 0, Pressed: true}},
		{"select", []byte{0x90, 0x69, 0x7F}, true, controlxl.Input{Kind: controlxl.Select, Index: 3, Pressed: true}},
		{"select last", []byte{0x80, 0x6C, 0x00}, true, controlxl.Input{Kind: controlxl.Select, Index: 0}},
		{"up", []byte{0xB0, 0x68, 0x7F}, true, controlxl.Input{Kind: controlxl.Up, Pressed: true}},
		{"down released", []byte{0xB0, 0x69, 0x00}, true, controlxl.Input{Kind: controlxl.Down}},
		{"left", []byte{0xB0, 0x6A, 0x7F}, true, controlxl.Input{Kind: controlxl.Left, Pressed: true}},
		{"right", []byte{0xB0, 0x6B, 0x7F}, true, controlxl.Input{Kind: controlxl.Right, Pressed: true}},
		{"unknown cc", []byte{0xB0, 0x00, 0x7F}, false, controlxl.Input{}},
		{"unknown note", []byte{0x90, 0x2D, 0x7F}, false, controlxl.Input{}},
		{"pitch bend", []byte{0xE0, 0x00, 0x40}, false, controlxl.Input{}},
		{"short", []byte{0xB0, 0x0D}, false, controlxl.Input{}},
		{"empty", nil, false, controlxl.Input{}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := codec.Decode(tc.frame)
			if ok != tc.ok {
				t.Fatalf("Decode(% X) ok = %v, want %v", tc.frame, ok, tc.ok)
			}
			if got != tc.want {
				t.Fatalf("Decode(% X) = %+v, want %+v", tc.frame, got, tc.want)
			}
		})
	}
}

func TestKnobValueIsDiverging(t *testing.T) {
	codec := controlxl.NewCodec()
	prev := math.Inf(-1)
	for v := 0; v < 0x80; v++ {
		in, ok := codec.Decode([]byte{0xB0, 0x31, byte(v)})
		if !ok {
			t.Fatalf("knob value %d should decode", v)
		}
		if in.Value < -1 || in.Value > 1 {
			t.Fatalf("knob value %d decoded to %v, outside [-1, 1]", v, in.Value)
		}
		if in.Value <= prev {
			t.Fatalf("knob values should increase, %d gave %v after %v", v, in.Value, prev)
		}
		prev = in.Value
	}
}

func TestDecodeAllShortFrames(t *testing.T) {
	codec := controlxl.NewCodec()
	codec.Decode(nil)
	for a := 0; a < 256; a++ {
		codec.Decode([]byte{byte(a)})
		for b := 0; b < 256; b++ {
			codec.Decode([]byte{byte(a), byte(b)})
			for c := 0; c < 256; c += 5 {
				in, ok := codec.Decode([]byte{byte(a), byte(b), byte(c)})
				if !ok {
					continue
				}
				if in.Col < 0 || in.Col >= controlxl.Cols || in.Index < 0 || in.Index >= controlxl.Selects {
					t.Fatalf("decoded %+v outside the surface", in)
				}
			}
		}
	}
}

func FuzzDecode(f *testing.F) {
	f.Add([]byte{0xB0, 0x0D, 0x40})
	f.Add([]byte{0x90, 0x69, 0x7F})
	f.Add([]byte{0x80})
	codec := controlxl.NewCodec()
	f.Fuzz(func(t *testing.T, frame []byte) {
		in, ok := codec.Decode(frame)
		if ok && (in.Value < -1 || in.Value > 1) {
			t.Fatalf("decoded value %v outside [-1, 1]", in.Value)
		}
	})
}

func TestEncode(t *testing.T) {
	var out controlxl.Output
	out.SetKnob(0, 0, controlxl.Red)
	out.SetKnob(2, 7, controlxl.Green)
	out.SetButton(0, 0, controlxl.Yellow)
	out.SetButton(1, 7, controlxl.Orange)
	out.Up = controlxl.Green
	out.Select[2] = true
	frames := controlxl.NewCodec().Encode(out)
	if len(frames) != controlxl.LEDFrames || len(frames) != 48 {
		t.Fatalf("Encode returned %d frames, want 48", len(frames))
	}
	for i, frame := range frames {
		if len(frame) != 11 || !bytes.HasPrefix(frame, []byte{0xF0, 0x00, 0x20, 0x29, 0x02, 0x11, 0x78, 0x00}) || frame[10] != 0xF7 {
			t.Fatalf("frame %d malformed: % X", i, frame)
		}
	}
	check := func(frame int, index, value byte) {
		t.Helper()
		if got := frames[frame][8:10]; got[0] != index || got[1] != value {
			t.Errorf("frame %d sets led %#x to %#x, want led %#x to %#x", frame, got[0], got[1], index, value)
		}
	}
	check(0, 16, 0b001101)
	check(8, 8, 0b001100)
	check(23, 7, 0b111100)
	check(24, 0x18+8, 0b111110)
	check(39, 0x18+7, 0b111111)
	check(40, 0x2C, 0b111100)
	check(43, 0x2F, 0b001100)
	check(44, 0x28, 0)
	check(46, 0x2A, 63)
}

func TestSetup(t *testing.T) {
	frames := controlxl.Codec{Template: 1}.Setup()
	want := []byte{0xF0, 0x00, 0x20, 0x29, 0x02, 0x11, 0x77, 0x01, 0xF7}
	if len(frames) != 1 || !bytes.Equal(frames[0], want) {
		t.Fatalf("Setup = % X, want % X", frames, want)
	}
}
