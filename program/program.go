// Package program is the behavior program of the instrument: a one-octave
// piano on the pad grid playing three wavetable oscillators that are shaped
// from the knob surface.
package program

import (
	"math"

	"github.com/resynth/resynth/device/controlxl"
	"github.com/resynth/resynth/device/launchpad"
	"github.com/resynth/resynth/pitch"
	"github.com/resynth/resynth/wavetable"
)

// Oscs is the number of oscillators.
const Oscs = 3

// DefaultVolume keeps three full scale oscillators on several keys well
// below clipping.
const DefaultVolume = 0.01

type Program struct {
	Piano  Piano               `yaml:"piano"`
	Osc    [Oscs]wavetable.Osc `yaml:"osc"`
	Fine   [Oscs]float64       `yaml:"fine,flow"`
	Coarse [Oscs]float64       `yaml:"coarse,flow"`
	Volume float64             `yaml:"volume"`
	Tuning pitch.Tuning        `yaml:"tuning"`
	T      float64             `yaml:"t"`
	Phases [Oscs][Keys]float64 `yaml:"phases,flow"`

	bank *wavetable.Bank
}

// resetPad clears the program when pressed.
var resetPad = [2]int{7, 8}

// Default returns a program with sine, triangle and saw oscillators and no
// keys down. A nil bank means the default bank.
func Default(bank *wavetable.Bank) *Program {
	if bank == nil {
		bank = wavetable.DefaultBank()
	}
	p := &Program{
		Piano: DefaultPiano(),
		Osc: [Oscs]wavetable.Osc{
			wavetable.NewOsc(wavetable.Sine),
			wavetable.NewOsc(wavetable.Triangle),
			wavetable.NewOsc(wavetable.Saw),
		},
		Volume: DefaultVolume,
		Tuning: pitch.DefaultTuning,
		bank:   bank,
	}
	p.prepare()
	return p
}

func (p *Program) Bank() *wavetable.Bank {
	return p.bank
}

// Sample advances the program to time t and returns one stereo frame. Every
// sounding key plays every oscillator with its own phase.
func (p *Program) Sample(t float64) (left, right float64) {
	dt := t - p.T
	p.T = t
	offset := p.Tuning.Offset()
	var f float64
	for k, v := range p.Piano.Keys {
		if v <= 0 {
			continue
		}
		note := p.Piano.Note(k).Detuned(offset)
		for i := range p.Osc {
			f += p.Osc[i].SampleVoice(p.bank, dt, note, &p.Phases[i][k])
		}
	}
	f *= p.Volume
	if math.IsNaN(f) {
		return 0, 0
	}
	f = min(max(f, -1), 1)
	return f, f
}

// PadIn plays the piano. The reset pad restores the defaults.
func (p *Program) PadIn(t float64, in launchpad.Input) {
	if in.X == resetPad[0] && in.Y == resetPad[1] && in.Value > 0 {
		p.Reset()
		return
	}
	if key, down := p.Piano.Press(in); down {
		for i := range p.Phases {
			p.Phases[i][key] = 0
		}
	}
}

func (p *Program) PadOut(t float64) launchpad.Output {
	var out launchpad.Output
	p.Piano.Draw(&out)
	out.Set(resetPad[0], resetPad[1], red)
	return out
}

// CtrlIn maps the knob surface onto the oscillators. Knob columns 0-2 and
// slider columns 0-2 belong to oscillators 0-2: the bottom knob row is fine
// tune, the middle row coarse tune in semitones, the top row the phase
// offset. Bottom row knobs 3-5 move the modulation axis of the
// oscillators. Slider 7 is the master volume. The lower buttons 0-2 cycle
// the waveforms and the arrows move the piano in octaves and pad rows.
func (p *Program) CtrlIn(t float64, in controlxl.Input) {
	if in.Col < 0 || in.Row < 0 {
		return
	}
	switch in.Kind {
	case controlxl.Knob:
		k := in.Col
		switch {
		case in.Row == 0 && k < Oscs:
			p.Fine[k] = in.Value
			p.retune(k)
		case in.Row == 1 && k < Oscs:
			p.Coarse[k] = math.Round(in.Value * 12)
			p.retune(k)
		case in.Row == 2 && k < Oscs:
			p.Osc[k].Phase = mapUnit(in.Value)
		case in.Row == 0 && k >= Oscs && k < 2*Oscs:
			p.Osc[k-Oscs].Shape = mapUnit(in.Value)
		}
	case controlxl.Slider:
		switch {
		case in.Col < Oscs:
			p.Osc[in.Col].Amp = in.Value
		case in.Col == controlxl.Cols-1:
			p.Volume = in.Value
		}
	case controlxl.Button:
		if in.Pressed && in.Row == 0 && in.Col < Oscs {
			osc := &p.Osc[in.Col]
			osc.Waveform = osc.Waveform.Next()
			osc.Prepare(p.bank)
		}
	case controlxl.Up:
		if in.Pressed {
			p.Piano.shiftOctave(1)
		}
	case controlxl.Down:
		if in.Pressed {
			p.Piano.shiftOctave(-1)
		}
	case controlxl.Left:
		if in.Pressed {
			p.Piano.shiftRow(-1)
			p.Piano.Release()
		}
	case controlxl.Right:
		if in.Pressed {
			p.Piano.shiftRow(1)
			p.Piano.Release()
		}
	}
}

// CtrlOut lights the waveform buttons in the color of their shape, the
// arrows that can still move, and the knobs that are away from their
// defaults.
func (p *Program) CtrlOut(t float64) controlxl.Output {
	var out controlxl.Output
	for k := range p.Osc {
		osc := &p.Osc[k]
		out.SetButton(0, k, shapeColors[osc.Waveform.Shape])
		if p.Fine[k] != 0 {
			out.SetKnob(0, k, controlxl.Yellow)
		}
		if p.Coarse[k] != 0 {
			out.SetKnob(1, k, controlxl.Yellow)
		}
		if osc.Phase != 0 {
			out.SetKnob(2, k, controlxl.Yellow)
		}
		if osc.Shape != 0 && osc.Waveform.Shape.Modulated() {
			out.SetKnob(0, Oscs+k, controlxl.Green)
		}
	}
	out.Up = lit(p.Piano.Octave < MaxOctave)
	out.Down = lit(p.Piano.Octave > MinOctave)
	out.Left = lit(p.Piano.Row > 0)
	out.Right = lit(p.Piano.Row < MaxRow)
	return out
}

// Reset restores the defaults, keeping the clock.
func (p *Program) Reset() {
	t := p.T
	*p = *Default(p.bank)
	p.T = t
}

var shapeColors = map[wavetable.Shape]controlxl.Color{
	wavetable.Sine:     controlxl.Green,
	wavetable.Triangle: controlxl.Yellow,
	wavetable.Saw:      controlxl.Orange,
	wavetable.Square:   controlxl.Red,
	wavetable.Custom:   controlxl.Green,
}

func (p *Program) retune(k int) {
	p.Osc[k].Detune = p.Coarse[k] + p.Fine[k]
}

// prepare builds the tables of every oscillator and reports the first
// failure.
func (p *Program) prepare() error {
	var first error
	for i := range p.Osc {
		if err := p.Osc[i].Prepare(p.bank); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// mapUnit maps [-1, 1] onto [0, 1].
func mapUnit(v float64) float64 {
	return (v + 1) / 2
}

func lit(b bool) controlxl.Color {
	if b {
		return controlxl.Green
	}
	return controlxl.Off
}
