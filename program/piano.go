package program

import (
	"github.com/resynth/resynth/device/launchpad"
	"github.com/resynth/resynth/pitch"
)

// Keys is the number of piano keys: one octave from C to C.
const Keys = 13

const (
	MinOctave = -1
	MaxOctave = 8
	MaxRow    = launchpad.Size - 2
)

// Piano lays one octave of keys over two pad rows, white keys on the lower
// row and black keys above them. Keys[i] is the pressure on key i; zero
// means released.
type Piano struct {
	Row      int             `yaml:"row"`
	Octave   int             `yaml:"octave"`
	Inactive launchpad.Color `yaml:"inactive"`
	Active   launchpad.Color `yaml:"active"`
	Keys     [Keys]float64   `yaml:"keys,flow"`
}

var (
	white = launchpad.Color{R: 1, G: 1, B: 1}
	blue  = launchpad.Color{R: 0, G: 0, B: 1}
	red   = launchpad.Color{R: 1, G: 0, B: 0}
)

// keyPads is the pad of each key relative to the piano row.
var keyPads = [Keys][2]int{
	{0, 0}, {1, 1}, {1, 0}, {2, 1}, {2, 0}, {3, 0}, {4, 1},
	{4, 0}, {5, 1}, {5, 0}, {6, 1}, {6, 0}, {7, 0},
}

func DefaultPiano() Piano {
	return Piano{Octave: 4, Inactive: white, Active: blue}
}

// Key returns the key at the pad, or -1.
func (p *Piano) Key(x, y int) int {
	y -= p.Row
	for i, pad := range keyPads {
		if pad[0] == x && pad[1] == y {
			return i
		}
	}
	return -1
}

// Note returns the note of key i; key 0 is the C of the current octave.
func (p *Piano) Note(i int) pitch.Note {
	return pitch.FromMIDI((p.Octave+1)*12 + i)
}

// Press sets the pressure of the key at the pad and reports whether the key
// went down.
func (p *Piano) Press(in launchpad.Input) (key int, down bool) {
	key = p.Key(in.X, in.Y)
	if key < 0 {
		return -1, false
	}
	value := in.Value
	if value != value || value < 0 {
		value = 0
	}
	down = p.Keys[key] == 0 && value > 0
	p.Keys[key] = min(value, 1)
	return key, down
}

func (p *Piano) Draw(out *launchpad.Output) {
	for i, v := range p.Keys {
		c := p.Inactive
		if v > 0 {
			c = p.Active
		}
		out.Set(keyPads[i][0], keyPads[i][1]+p.Row, c)
	}
}

// Release lifts every key.
func (p *Piano) Release() {
	p.Keys = [Keys]float64{}
}

func (p *Piano) shiftOctave(d int) {
	p.Octave = min(max(p.Octave+d, MinOctave), MaxOctave)
}

func (p *Piano) shiftRow(d int) {
	p.Row = min(max(p.Row+d, 0), MaxRow)
}
