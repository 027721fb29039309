package wavetable

import (
	"github.com/resynth/resynth/pitch"
)

// Osc is a table lookup oscillator. Phi is the phase accumulator of Sample,
// for an oscillator playing one voice; it integrates frequency over time and
// is never reduced, the table lookup wraps it. Polyphonic players keep their
// own accumulators and call SampleVoice, and Phi is not serialized.
type Osc struct {
	Waveform Waveform `yaml:"waveform"`
	Amp      float64  `yaml:"amp"`
	Phase    float64  `yaml:"phase"`
	Detune   float64  `yaml:"detune"`
	Shape    float64  `yaml:"shape"`
	Phi      float64  `yaml:"-"`

	custom *Table
}

// NewOsc returns an oscillator with unit amplitude.
func NewOsc(shape Shape) Osc {
	return Osc{Waveform: Waveform{Shape: shape}, Amp: 1}
}

// Sample advances the oscillator by dt seconds playing note and returns the
// new sample.
func (o *Osc) Sample(bank *Bank, dt float64, note pitch.Note) float64 {
	return o.SampleVoice(bank, dt, note, &o.Phi)
}

// SampleVoice is Sample with an external phase accumulator, for playing the
// same oscillator on several notes at once.
func (o *Osc) SampleVoice(bank *Bank, dt float64, note pitch.Note, phi *float64) float64 {
	freq := note.Detuned(o.Detune).Freq()
	*phi += dt * freq
	return o.Amp * o.lookup(bank, *phi+o.Phase)
}

// Freq returns the frequency of the oscillator playing note.
func (o *Osc) Freq(note pitch.Note) float64 {
	return note.Detuned(o.Detune).Freq()
}

func (o *Osc) lookup(bank *Bank, x float64) float64 {
	s := o.Waveform.Shape
	if s == Custom {
		// custom tables are built by Prepare; an unprepared one is silent
		return o.custom.At(x)
	}
	if o.Shape != 0 && s.Modulated() {
		return bank.Table2D(s).At(x, o.Shape)
	}
	return bank.Table(s).At(x)
}

// Prepare builds the tables the oscillator needs. It must be called off the
// audio thread after changing the waveform.
func (o *Osc) Prepare(bank *Bank) error {
	s := o.Waveform.Shape
	if s == Custom {
		t, err := bank.Custom(o.Waveform.Harmonics)
		o.custom = t
		return err
	}
	o.custom = nil
	bank.Table(s)
	bank.Table2D(s)
	return nil
}
