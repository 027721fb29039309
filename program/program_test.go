package program_test

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"math"
	"strings"
	"testing"

	"github.com/resynth/resynth/device/controlxl"
	"github.com/resynth/resynth/device/launchpad"
	"github.com/resynth/resynth/program"
	"github.com/resynth/resynth/wavetable"
)

const rate = 48000

var bank = wavetable.NewBank()

func init() {
	bank.Warm()
}

func TestDefaultIsSilent(t *testing.T) {
	p := program.Default(bank)
	for i := 0; i < rate/10; i++ {
		l, r := p.Sample(float64(i) / rate)
		if l != 0 || r != 0 {
			t.Fatalf("default program should be silent, frame %d = (%v, %v)", i, l, r)
		}
	}
}

func TestKeyMakesSound(t *testing.T) {
	p := program.Default(bank)
	p.PadIn(0, launchpad.Input{X: 0, Y: 0, Value: 1})
	var energy float64
	for i := 0; i < rate/10; i++ {
		l, r := p.Sample(float64(i) / rate)
		if l != r {
			t.Fatalf("left and right should be equal, got (%v, %v)", l, r)
		}
		if l < -1 || l > 1 {
			t.Fatalf("sample %v outside [-1, 1]", l)
		}
		energy += l * l
	}
	if energy == 0 {
		t.Fatalf("a pressed key should make sound")
	}
	p.PadIn(0, launchpad.Input{X: 0, Y: 0, Value: 0})
	if l, _ := p.Sample(1); l != 0 {
		t.Fatalf("releasing the key should silence the program, got %v", l)
	}
}

func TestOutputIsClamped(t *testing.T) {
	p := program.Default(bank)
	p.Volume = 100
	for x := 0; x < 8; x++ {
		p.PadIn(0, launchpad.Input{X: x, Y: 0, Value: 1})
		p.PadIn(0, launchpad.Input{X: x, Y: 1, Value: 1})
	}
	for i := 0; i < rate/10; i++ {
		l, _ := p.Sample(float64(i) / rate)
		if l < -1 || l > 1 || math.IsNaN(l) {
			t.Fatalf("sample %v outside [-1, 1]", l)
		}
	}
	p.Volume = math.NaN()
	if l, r := p.Sample(1); l != 0 || r != 0 {
		t.Fatalf("NaN output should become silence, got (%v, %v)", l, r)
	}
}

func TestPianoLayout(t *testing.T) {
	p := program.Default(bank)
	if n := p.Piano.Note(0); n.MIDI() != 60 {
		t.Fatalf("the first key should be C4 (60), got %v (%d)", n, n.MIDI())
	}
	if n := p.Piano.Note(12); n.MIDI() != 72 {
		t.Fatalf("the last key should be C5 (72), got %v", n)
	}
	black := []int{1, 3, 6, 8, 10}
	for _, key := range black {
		n := p.Piano.Note(key)
		if n.Accidental == 0 {
			t.Errorf("key %d should be a black key, got %v", key, n)
		}
	}
	if k := p.Piano.Key(1, 1); k != 1 {
		t.Errorf("pad (1, 1) should be C#, got key %d", k)
	}
	if k := p.Piano.Key(3, 1); k != -1 {
		t.Errorf("pad (3, 1) should not be a key, got %d", k)
	}
}

func TestResetPad(t *testing.T) {
	p := program.Default(bank)
	p.CtrlIn(0, controlxl.Input{Kind: controlxl.Slider, Col: 7, Value: 0.5})
	p.PadIn(0, launchpad.Input{X: 2, Y: 0, Value: 1})
	p.Sample(0.5)
	p.PadIn(0.5, launchpad.Input{X: 7, Y: 8, Value: 1})
	if p.Volume != program.DefaultVolume {
		t.Fatalf("reset should restore the volume, got %v", p.Volume)
	}
	if p.Piano.Keys != (program.Default(bank).Piano.Keys) {
		t.Fatalf("reset should release all keys")
	}
	if p.T != 0.5 {
		t.Fatalf("reset should keep the clock, got %v", p.T)
	}
	p.PadIn(0.5, launchpad.Input{X: 7, Y: 8, Value: 0})
	if l, _ := p.Sample(0.6); l != 0 {
		t.Fatalf("a reset program should be silent")
	}
}

func TestControlMapping(t *testing.T) {
	p := program.Default(bank)
	p.CtrlIn(0, controlxl.Input{Kind: controlxl.Knob, Row: 0, Col: 1, Value: 0.5})
	p.CtrlIn(0, controlxl.Input{Kind: controlxl.Knob, Row: 1, Col: 1, Value: 0.25})
	if p.Osc[1].Detune != 3.5 {
		t.Errorf("fine 0.5 plus coarse 3 should detune by 3.5, got %v", p.Osc[1].Detune)
	}
	p.CtrlIn(0, controlxl.Input{Kind: controlxl.Knob, Row: 2, Col: 2, Value: 0})
	if p.Osc[2].Phase != 0.5 {
		t.Errorf("centered phase knob should give 0.5, got %v", p.Osc[2].Phase)
	}
	p.CtrlIn(0, controlxl.Input{Kind: controlxl.Knob, Row: 0, Col: 3, Value: 1})
	if p.Osc[0].Shape != 1 {
		t.Errorf("knob 3 should move the modulation axis of oscillator 0, got %v", p.Osc[0].Shape)
	}
	p.CtrlIn(0, controlxl.Input{Kind: controlxl.Slider, Col: 0, Value: 0.25})
	if p.Osc[0].Amp != 0.25 {
		t.Errorf("slider 0 should set the amplitude, got %v", p.Osc[0].Amp)
	}
	p.CtrlIn(0, controlxl.Input{Kind: controlxl.Button, Row: 0, Col: 0, Pressed: true})
	p.CtrlIn(0, controlxl.Input{Kind: controlxl.Button, Row: 0, Col: 0, Pressed: false})
	if p.Osc[0].Waveform.Shape != wavetable.Triangle {
		t.Errorf("button press should cycle the waveform once, got %v", p.Osc[0].Waveform)
	}
	for i := 0; i < 20; i++ {
		p.CtrlIn(0, controlxl.Input{Kind: controlxl.Up, Pressed: true})
		p.CtrlIn(0, controlxl.Input{Kind: controlxl.Right, Pressed: true})
	}
	if p.Piano.Octave != program.MaxOctave || p.Piano.Row != program.MaxRow {
		t.Errorf("navigation should clamp, got octave %d row %d", p.Piano.Octave, p.Piano.Row)
	}
	for i := 0; i < 20; i++ {
		p.CtrlIn(0, controlxl.Input{Kind: controlxl.Down, Pressed: true})
		p.CtrlIn(0, controlxl.Input{Kind: controlxl.Left, Pressed: true})
	}
	if p.Piano.Octave != program.MinOctave || p.Piano.Row != 0 {
		t.Errorf("navigation should clamp, got octave %d row %d", p.Piano.Octave, p.Piano.Row)
	}
}

func TestPadOutput(t *testing.T) {
	p := program.Default(bank)
	p.PadIn(0, launchpad.Input{X: 1, Y: 1, Value: 0.5})
	out := p.PadOut(0)
	if out.At(1, 1) != p.Piano.Active {
		t.Errorf("pressed key should be lit active")
	}
	if out.At(0, 0) != p.Piano.Inactive {
		t.Errorf("released key should be lit inactive")
	}
	if out.At(3, 1) != (launchpad.Color{}) {
		t.Errorf("pads between black keys should be dark")
	}
	if c := out.At(7, 8); c.R != 1 || c.G != 0 || c.B != 0 {
		t.Errorf("reset pad should be red, got %+v", c)
	}
	p.CtrlIn(0, controlxl.Input{Kind: controlxl.Right, Pressed: true})
	out = p.PadOut(0)
	if out.At(0, 1) != p.Piano.Inactive || out.At(1, 2) != p.Piano.Inactive {
		t.Errorf("piano should move up one row")
	}
}

func TestControlOutput(t *testing.T) {
	p := program.Default(bank)
	out := p.CtrlOut(0)
	if out.Button(0, 0) != controlxl.Green || out.Button(0, 1) != controlxl.Yellow || out.Button(0, 2) != controlxl.Orange {
		t.Errorf("waveform buttons should show sine, triangle and saw, got %v %v %v",
			out.Button(0, 0), out.Button(0, 1), out.Button(0, 2))
	}
	if out.Knob(0, 0) != controlxl.Off {
		t.Errorf("default knobs should be dark")
	}
	if out.Up != controlxl.Green || out.Left != controlxl.Off {
		t.Errorf("only possible moves should be lit, up %v left %v", out.Up, out.Left)
	}
	p.CtrlIn(0, controlxl.Input{Kind: controlxl.Knob, Row: 0, Col: 0, Value: 0.1})
	out = p.CtrlOut(0)
	if out.Knob(0, 0) == controlxl.Off {
		t.Errorf("a detuned oscillator should light its knob")
	}
}

func TestStateRoundTrip(t *testing.T) {
	p := program.Default(bank)
	p.CtrlIn(0, controlxl.Input{Kind: controlxl.Knob, Row: 1, Col: 2, Value: -0.5})
	p.CtrlIn(0, controlxl.Input{Kind: controlxl.Button, Row: 0, Col: 1, Pressed: true})
	p.CtrlIn(0, controlxl.Input{Kind: controlxl.Up, Pressed: true})
	p.PadIn(0, launchpad.Input{X: 4, Y: 0, Value: 0.75})
	for i := 0; i < 100; i++ {
		p.Sample(float64(i) / rate)
	}
	q, err := program.Decode(p.Encode(), bank)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if q.Piano != p.Piano || q.Volume != p.Volume || q.T != p.T || q.Phases != p.Phases || q.Coarse != p.Coarse {
		t.Fatalf("state changed in round trip")
	}
	for i := range p.Osc {
		if q.Osc[i].Waveform.Shape != p.Osc[i].Waveform.Shape || q.Osc[i].Detune != p.Osc[i].Detune || q.Osc[i].Amp != p.Osc[i].Amp {
			t.Fatalf("oscillator %d changed in round trip: %+v != %+v", i, q.Osc[i], p.Osc[i])
		}
	}
	for i := 100; i < 200; i++ {
		tm := float64(i) / rate
		l1, _ := p.Sample(tm)
		l2, _ := q.Sample(tm)
		if l1 != l2 {
			t.Fatalf("restored program should continue identically, frame %d: %v != %v", i, l1, l2)
		}
	}
}

func TestStateCarriesVoicePhases(t *testing.T) {
	p := program.Default(bank)
	p.Osc[0].Phi = 12.5
	state := string(p.Encode())
	if !strings.Contains(state, "phases:") {
		t.Fatalf("the per key phases should be serialized")
	}
	if strings.Contains(state, "phi:") {
		t.Fatalf("the single voice accumulator should not be serialized")
	}
	q, err := program.Decode(frame([]byte("osc:\n  - phi: 3\n  - {}\n  - {}\n")), bank)
	if err != nil {
		t.Fatalf("a state with an accumulator should still decode: %v", err)
	}
	if q.Osc[0].Phi != 0 {
		t.Fatalf("the accumulator should be ignored, got %v", q.Osc[0].Phi)
	}
}

func TestCustomWaveformSurvivesState(t *testing.T) {
	p := program.Default(bank)
	p.Osc[0].Waveform = wavetable.Waveform{Shape: wavetable.Custom, Harmonics: []float64{1, 0, 0.3}}
	q, err := program.Decode(p.Encode(), bank)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	q.PadIn(0, launchpad.Input{X: 0, Y: 0, Value: 1})
	var energy float64
	for i := 0; i < 1000; i++ {
		l, _ := q.Sample(float64(i) / rate)
		energy += l * l
	}
	if energy == 0 {
		t.Fatalf("restored custom oscillator should play")
	}
}

func TestDecodeRejectsDamagedState(t *testing.T) {
	good := program.Default(bank).Encode()
	for n := 0; n < len(good); n++ {
		if _, err := program.Decode(good[:n], bank); err == nil {
			t.Fatalf("Decode of %d of %d bytes should fail", n, len(good))
		}
	}
	flipped := append([]byte(nil), good...)
	flipped[len(flipped)-3] ^= 0x20
	if _, err := program.Decode(flipped, bank); !errors.Is(err, program.ErrChecksum) {
		t.Fatalf("corrupted state should fail the checksum, got %v", err)
	}
	if _, err := program.Decode([]byte(`{"piano":{}}`), bank); err == nil {
		t.Fatalf("foreign bytes should be rejected")
	}
}

func TestDecodeAppliesDefaults(t *testing.T) {
	body := []byte("volume: 0.5\nunknown_field: 3\npiano:\n  octave: 99\n")
	q, err := program.Decode(frame(body), bank)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if q.Volume != 0.5 {
		t.Errorf("volume should be read, got %v", q.Volume)
	}
	if q.Osc[2].Waveform.Shape != wavetable.Saw || q.Osc[2].Amp != 1 {
		t.Errorf("missing oscillators should keep defaults, got %+v", q.Osc[2])
	}
	if q.Piano.Octave != program.MaxOctave {
		t.Errorf("out of range octave should be clamped, got %d", q.Piano.Octave)
	}
	if q.Piano.Active != program.DefaultPiano().Active {
		t.Errorf("missing piano colors should keep defaults")
	}
}

func TestDecodeFailsOnMismatchedShape(t *testing.T) {
	body := []byte("osc:\n  - waveform: {shape: wobble}\n")
	if _, err := program.Decode(frame(body), bank); err == nil {
		t.Fatalf("unknown waveform should fail")
	}
}

func FuzzDecode(f *testing.F) {
	f.Add(program.Default(bank).Encode())
	f.Add([]byte("RSYN"))
	f.Fuzz(func(t *testing.T, state []byte) {
		p, err := program.Decode(state, bank)
		if err != nil {
			return
		}
		l, r := p.Sample(p.T + 1.0/rate)
		if l < -1 || l > 1 || r < -1 || r > 1 {
			t.Fatalf("decoded program produced (%v, %v)", l, r)
		}
	})
}

// frame wraps a YAML body the way Encode does.
func frame(body []byte) []byte {
	header := []byte{'R', 'S', 'Y', 'N', program.FormatVersion, 0, 0, 0, 0}
	binary.BigEndian.PutUint32(header[5:], crc32.ChecksumIEEE(body))
	return append(header, body...)
}
