// Package controlxl implements the wire protocol of a Novation Launch Control
// XL: three rows of eight knobs, eight sliders, two rows of eight buttons,
// four navigation arrows and four select buttons, with bicolor LEDs.
package controlxl

type (
	Kind int

	// Input is one decoded control event. Which fields are meaningful
	// depends on Kind: knobs use Row, Col and Value in [-1, 1]; sliders use
	// Col and Value in [0, 1]; buttons use Col, Row and Pressed; select
	// buttons use Index and Pressed; arrows use Pressed.
	Input struct {
		Kind    Kind
		Row     int
		Col     int
		Index   int
		Value   float64
		Pressed bool
	}

	Color byte

	// Output is the state of every LED. Knobs and Buttons are indexed row
	// by row from the bottom, eight per row, matching the rows of Input.
	Output struct {
		Knobs                 [KnobRows * Cols]Color
		Buttons               [ButtonRows * Cols]Color
		Up, Down, Left, Right Color
		Select                [Selects]bool
	}

	Codec struct {
		Template byte
	}
)

const (
	Knob Kind = iota
	Slider
	Button
	Up
	Down
	Left
	Right
	Select
)

const (
	Off Color = iota
	Red
	Orange
	Yellow
	Green
)

const (
	Cols       = 8
	KnobRows   = 3
	ButtonRows = 2
	Selects    = 4
	// LEDFrames is the number of frames in every encoded Output.
	LEDFrames = KnobRows*Cols + ButtonRows*Cols + 4 + Selects
)

var kindNames = [...]string{"knob", "slider", "button", "up", "down", "left", "right", "select"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

var colorNames = [...]string{"off", "red", "orange", "yellow", "green"}

func (c Color) String() string {
	if int(c) >= len(colorNames) {
		return "off"
	}
	return colorNames[c]
}

// Mask returns the LED byte: bits 0-1 are the red brightness, bits 2-3 the
// buffering flags and bits 4-5 the green brightness.
func (c Color) Mask() byte {
	switch c {
	case Red:
		return 0b001101
	case Orange:
		return 0b111111
	case Yellow:
		return 0b111110
	case Green:
		return 0b111100
	}
	return 0b001100
}

// Knob returns the color of the knob at row, col.
func (o *Output) Knob(row, col int) Color {
	if row < 0 || row >= KnobRows || col < 0 || col >= Cols {
		return Off
	}
	return o.Knobs[row*Cols+col]
}

func (o *Output) SetKnob(row, col int, c Color) {
	if row < 0 || row >= KnobRows || col < 0 || col >= Cols {
		return
	}
	o.Knobs[row*Cols+col] = c
}

func (o *Output) Button(row, col int) Color {
	if row < 0 || row >= ButtonRows || col < 0 || col >= Cols {
		return Off
	}
	return o.Buttons[row*Cols+col]
}

func (o *Output) SetButton(row, col int, c Color) {
	if row < 0 || row >= ButtonRows || col < 0 || col >= Cols {
		return
	}
	o.Buttons[row*Cols+col] = c
}

func NewCodec() Codec {
	return Codec{}
}

// Decode reads note on, note off and control change messages on any
// channel.
func (Codec) Decode(frame []byte) (Input, bool) {
	if len(frame) < 3 {
		return Input{}, false
	}
	status, b, v := frame[0]&0xF0, frame[1], frame[2]
	switch status {
	case 0x90, 0x80:
		pressed := status == 0x90
		switch {
		case b >= 0x29 && b <= 0x2C:
			return Input{Kind: Button, Col: int(b - 0x29), Row: 1, Pressed: pressed}, true
		case b >= 0x39 && b <= 0x3C:
			return Input{Kind: Button, Col: 4 + int(b-0x39), Row: 1, Pressed: pressed}, true
		case b >= 0x49 && b <= 0x4C:
			return Input{Kind: Button, Col: int(b - 0x49), Row: 0, Pressed: pressed}, true
		case b >= 0x59 && b <= 0x5C:
			return Input{Kind: Button, Col: 4 + int(b-0x59), Row: 0, Pressed: pressed}, true
		case b >= 0x69 && b <= 0x6C:
			return Input{Kind: Select, Index: 3 - int(b-0x69), Pressed: pressed}, true
		}
	case 0xB0:
		if v > 0x7F {
			return Input{}, false
		}
		switch {
		case b >= 0x0D && b <= 0x14:
			return Input{Kind: Knob, Row: 2, Col: int(b - 0x0D), Value: diverging(v)}, true
		case b >= 0x1D && b <= 0x24:
			return Input{Kind: Knob, Row: 1, Col: int(b - 0x1D), Value: diverging(v)}, true
		case b >= 0x31 && b <= 0x38:
			return Input{Kind: Knob, Row: 0, Col: int(b - 0x31), Value: diverging(v)}, true
		case b >= 0x4D && b <= 0x54:
			return Input{Kind: Slider, Col: int(b - 0x4D), Value: float64(v) / 127}, true
		case b == 0x68:
			return Input{Kind: Up, Pressed: v == 0x7F}, true
		case b == 0x69:
			return Input{Kind: Down, Pressed: v == 0x7F}, true
		case b == 0x6A:
			return Input{Kind: Left, Pressed: v == 0x7F}, true
		case b == 0x6B:
			return Input{Kind: Right, Pressed: v == 0x7F}, true
		}
	}
	return Input{}, false
}

// Encode returns one LED frame per light: knobs, buttons, the four arrows and
// the select buttons, in that order. The device numbers rows from the top,
// so knob and button rows are sent reversed.
func (c Codec) Encode(out Output) [][]byte {
	frames := make([][]byte, 0, LEDFrames)
	for i, color := range out.Knobs {
		var j int
		switch {
		case i < 8:
			j = i + 16
		case i < 16:
			j = i
		default:
			j = i - 16
		}
		frames = append(frames, c.led(byte(j), color.Mask()))
	}
	for i, color := range out.Buttons {
		j := i - 8
		if i < 8 {
			j = i + 8
		}
		frames = append(frames, c.led(0x18+byte(j), color.Mask()))
	}
	frames = append(frames,
		c.led(0x2C, out.Up.Mask()),
		c.led(0x2D, out.Down.Mask()),
		c.led(0x2E, out.Left.Mask()),
		c.led(0x2F, out.Right.Mask()))
	for i, on := range out.Select {
		var v byte
		if on {
			v = 63
		}
		frames = append(frames, c.led(0x28+byte(i), v))
	}
	return frames
}

// Setup selects the user template the LED frames address.
func (c Codec) Setup() [][]byte {
	return [][]byte{{0xF0, 0x00, 0x20, 0x29, 0x02, 0x11, 0x77, c.Template & 0x0F, 0xF7}}
}

func (c Codec) led(index, value byte) []byte {
	return []byte{0xF0, 0x00, 0x20, 0x29, 0x02, 0x11, 0x78, c.Template & 0x0F, index, value, 0xF7}
}

func diverging(v byte) float64 {
	if v >= 0x40 {
		return float64(v-0x40) / 63
	}
	return -1 + float64(v)/64
}
