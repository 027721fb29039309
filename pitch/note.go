package pitch

import (
	"fmt"
	"math"
)

type (
	Letter     int
	Accidental int

	// Note is a note name with an octave, plus a detune in semitones that is
	// added to the note before the frequency is computed. Octave 4 is the
	// octave of A4 = 440 Hz in the default tuning.
	Note struct {
		Letter     Letter     `yaml:"letter"`
		Accidental Accidental `yaml:"accidental"`
		Octave     int        `yaml:"octave"`
		Detune     float64    `yaml:"detune,omitempty"`
	}

	// Tuning maps notes to frequencies with equal temperament. Reference is
	// the frequency of the A in RefOctave.
	Tuning struct {
		Reference float64 `yaml:"reference"`
		RefOctave int     `yaml:"refoctave"`
	}
)

const (
	C Letter = iota
	D
	E
	F
	G
	A
	B
)

const (
	DoubleFlat Accidental = iota - 2
	Flat
	Natural
	Sharp
	DoubleSharp
)

// DefaultTuning is A4 = 440 Hz.
var DefaultTuning = Tuning{Reference: 440, RefOctave: 4}

var letterOffsets = [...]int{C: 0, D: 2, E: 4, F: 5, G: 7, A: 9, B: 11}
var letterNames = [...]string{C: "C", D: "D", E: "E", F: "F", G: "G", A: "A", B: "B"}

// sharps spelling of the twelve pitch classes
var pitchClasses = [12]struct {
	letter     Letter
	accidental Accidental
}{
	{C, Natural}, {C, Sharp}, {D, Natural}, {D, Sharp}, {E, Natural}, {F, Natural},
	{F, Sharp}, {G, Natural}, {G, Sharp}, {A, Natural}, {A, Sharp}, {B, Natural},
}

func (l Letter) Offset() int {
	if l < C || l > B {
		return 0
	}
	return letterOffsets[l]
}

func (l Letter) String() string {
	if l < C || l > B {
		return "?"
	}
	return letterNames[l]
}

func (a Accidental) Offset() int {
	if a < DoubleFlat || a > DoubleSharp {
		return 0
	}
	return int(a)
}

func (a Accidental) String() string {
	switch a {
	case DoubleFlat:
		return "bb"
	case Flat:
		return "b"
	case Sharp:
		return "#"
	case DoubleSharp:
		return "##"
	}
	return ""
}

// Steps returns the distance in semitones from the A of the same octave.
func (n Note) Steps() int {
	return n.Letter.Offset() + n.Accidental.Offset() - A.Offset()
}

// Detuned returns the note shifted by the given number of semitones. Detunes
// accumulate.
func (n Note) Detuned(semitones float64) Note {
	n.Detune += semitones
	return n
}

// Freq returns the frequency of the note in the default tuning.
func (n Note) Freq() float64 {
	return DefaultTuning.Freq(n)
}

// MIDI returns the MIDI note number of the note, ignoring detune. A4 is 69.
func (n Note) MIDI() int {
	return (n.Octave+1)*12 + n.Letter.Offset() + n.Accidental.Offset()
}

func (n Note) String() string {
	s := fmt.Sprintf("%v%v%d", n.Letter, n.Accidental, n.Octave)
	if n.Detune != 0 {
		s += fmt.Sprintf("%+.2f", n.Detune)
	}
	return s
}

// FromMIDI returns the note for a MIDI note number, spelled with sharps.
func FromMIDI(midi int) Note {
	octave := midi/12 - 1
	class := midi % 12
	if class < 0 {
		class += 12
		octave--
	}
	p := pitchClasses[class]
	return Note{Letter: p.letter, Accidental: p.accidental, Octave: octave}
}

// Freq returns reference * 2^(octave-refOctave) * 2^((steps+detune)/12). A
// zero tuning behaves as the default tuning.
func (t Tuning) Freq(n Note) float64 {
	if t.Reference <= 0 {
		t = DefaultTuning
	}
	scaled := t.Reference * math.Exp2(float64(n.Octave-t.RefOctave))
	return scaled * math.Exp2((float64(n.Steps())+n.Detune)/12)
}

// Offset returns the shift in semitones from the default tuning, so that
// t.Freq(n) == n.Detuned(t.Offset()).Freq().
func (t Tuning) Offset() float64 {
	if t.Reference <= 0 {
		return 0
	}
	return 12*math.Log2(t.Reference/DefaultTuning.Reference) + 12*float64(DefaultTuning.RefOctave-t.RefOctave)
}
