package wavetable_test

import (
	"math"
	"sync"
	"testing"

	"github.com/resynth/resynth/pitch"
	"github.com/resynth/resynth/wavetable"
	"gopkg.in/yaml.v3"
)

func TestTableIsPeriodic(t *testing.T) {
	bank := wavetable.NewBank()
	for s := wavetable.Sine; s < wavetable.Custom; s++ {
		table := bank.Table(s)
		for _, x := range []float64{0, 0.1, 0.37, 0.5, 0.999} {
			for _, k := range []float64{1, -1, 7, -13, 1000} {
				a, b := table.At(x), table.At(x+k)
				if math.Abs(a-b) > 1e-6 {
					t.Errorf("%v: At(%v) = %v but At(%v) = %v", s, x, a, x+k, b)
				}
			}
		}
	}
}

func TestTableInterpolatesLinearly(t *testing.T) {
	table := wavetable.NewTable(4, func(x float64) float64 { return x })
	for _, tc := range []struct{ x, want float64 }{
		{0, 0},
		{0.25, 0.25},
		{0.125, 0.125},
		{0.875, 0.375}, // between the last sample 0.75 and the wrapped first 0
		{-0.125, 0.375},
	} {
		if got := table.At(tc.x); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("At(%v) = %v, want %v", tc.x, got, tc.want)
		}
	}
}

func TestCanonicalShapes(t *testing.T) {
	bank := wavetable.NewBank()
	sine := bank.Table(wavetable.Sine)
	for _, x := range []float64{0, 0.1, 0.25, 0.6, 0.75} {
		if got, want := sine.At(x), math.Sin(2*math.Pi*x); math.Abs(got-want) > 1e-6 {
			t.Errorf("sine At(%v) = %v, want %v", x, got, want)
		}
	}
	tri := bank.Table(wavetable.Triangle)
	if math.Abs(tri.At(0.25)-1) > 1e-6 || math.Abs(tri.At(0.75)+1) > 1e-6 {
		t.Errorf("triangle should peak at 0.25 and bottom at 0.75")
	}
	saw := bank.Table(wavetable.Saw)
	if math.Abs(saw.At(0.5)) > 1e-6 || math.Abs(saw.At(0)+1) > 1e-6 {
		t.Errorf("saw should rise from -1 through 0 at half period")
	}
	square := bank.Table(wavetable.Square)
	if square.At(0.2) != 1 || square.At(0.7) != -1 {
		t.Errorf("square should be 1 then -1")
	}
}

func TestTable2DBilinear(t *testing.T) {
	table := wavetable.NewTable2D(4, 3, func(x, m float64) float64 { return x + 10*m })
	for _, tc := range []struct{ x, m, want float64 }{
		{0, 0, 0},
		{0.25, 1, 10.25},
		{0.125, 0.5, 5.125},
		{0.125, 0.25, 2.625},
		{0.25, -3, 0.25}, // m is clamped
		{0.25, 9, 10.25},
	} {
		if got := table.At(tc.x, tc.m); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("At(%v, %v) = %v, want %v", tc.x, tc.m, got, tc.want)
		}
	}
}

func TestModulationAxis(t *testing.T) {
	bank := wavetable.NewBank()
	square := bank.Table2D(wavetable.Square)
	if square.At(0.4, 0) != 1 {
		t.Errorf("square at m=0 should have a 50%% pulse")
	}
	if square.At(0.4, 1) != -1 {
		t.Errorf("square at m=1 should have a narrow pulse")
	}
	if bank.Table2D(wavetable.Sine) != nil {
		t.Errorf("sine has no modulation axis")
	}
	tri := bank.Table2D(wavetable.Triangle)
	if math.Abs(tri.At(0.25, 0)-1) > 1e-3 {
		t.Errorf("triangle at m=0 should be the canonical triangle, got %v", tri.At(0.25, 0))
	}
}

func TestBankBuildsTablesOnce(t *testing.T) {
	bank := wavetable.NewBank()
	var wg sync.WaitGroup
	tables := make([]*wavetable.Table, 8)
	for i := range tables {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tables[i] = bank.Table(wavetable.Saw)
		}(i)
	}
	wg.Wait()
	for _, table := range tables {
		if table != tables[0] {
			t.Fatalf("concurrent callers should get the same table")
		}
	}
	bank.Warm()
	if bank.Table(wavetable.Saw) != tables[0] {
		t.Fatalf("Warm should not rebuild tables")
	}
}

func TestCustomHarmonics(t *testing.T) {
	bank := wavetable.NewBank()
	table, err := bank.Custom([]float64{1})
	if err != nil {
		t.Fatalf("Custom failed: %v", err)
	}
	for _, x := range []float64{0.1, 0.25, 0.8} {
		if got, want := table.At(x), math.Sin(2*math.Pi*x); math.Abs(got-want) > 1e-6 {
			t.Errorf("fundamental only should be a sine: At(%v) = %v, want %v", x, got, want)
		}
	}
	again, _ := bank.Custom([]float64{1})
	if again != table {
		t.Errorf("the same series should return the cached table")
	}
	rich, err := bank.Custom([]float64{1, 0.5, 0.25})
	if err != nil {
		t.Fatalf("Custom failed: %v", err)
	}
	peak := 0.0
	for i := 0; i < 1000; i++ {
		peak = max(peak, math.Abs(rich.At(float64(i)/1000)))
	}
	if peak > 1+1e-9 || peak < 0.99 {
		t.Errorf("custom table should be normalized to 1, peak %v", peak)
	}
	if _, err := bank.Custom([]float64{0, 0}); err == nil {
		t.Errorf("a silent series should fail")
	}
	if _, err := bank.Custom([]float64{math.NaN()}); err == nil {
		t.Errorf("NaN harmonics should fail")
	}
}

func TestOscAdvancesPhase(t *testing.T) {
	bank := wavetable.NewBank()
	osc := wavetable.NewOsc(wavetable.Sine)
	a4 := pitch.Note{Letter: pitch.A, Octave: 4}
	dt := 1.0 / 1760 // a quarter period of A4
	if got := osc.Sample(bank, dt, a4); math.Abs(got-1) > 1e-6 {
		t.Fatalf("a quarter period into a sine should give 1, got %v", got)
	}
	if math.Abs(osc.Phi-0.25) > 1e-12 {
		t.Fatalf("Phi should be 0.25 periods, got %v", osc.Phi)
	}
	for i := 0; i < 4000; i++ {
		osc.Sample(bank, dt, a4)
	}
	if osc.Phi < 1000 {
		t.Fatalf("Phi should not be wrapped, got %v", osc.Phi)
	}
	osc.Amp = 0.5
	osc.Phase = 0.25
	var phi float64
	if got := osc.SampleVoice(bank, 0, a4, &phi); math.Abs(got-0.5) > 1e-6 {
		t.Fatalf("phase offset of a quarter with amp 0.5 should give 0.5, got %v", got)
	}
}

func TestOscDetune(t *testing.T) {
	osc := wavetable.NewOsc(wavetable.Saw)
	osc.Detune = 12
	a4 := pitch.Note{Letter: pitch.A, Octave: 4}
	if f := osc.Freq(a4); math.Abs(f-880) > 1e-9 {
		t.Fatalf("detune of 12 semitones should double the frequency, got %v", f)
	}
}

func TestCustomOscNeedsPrepare(t *testing.T) {
	bank := wavetable.NewBank()
	osc := wavetable.Osc{Waveform: wavetable.Waveform{Shape: wavetable.Custom, Harmonics: []float64{1}}, Amp: 1}
	a4 := pitch.Note{Letter: pitch.A, Octave: 4}
	if got := osc.Sample(bank, 1.0/1760, a4); got != 0 {
		t.Fatalf("an unprepared custom oscillator should be silent, got %v", got)
	}
	if err := osc.Prepare(bank); err != nil {
		t.Fatalf("Prepare failed: %v", err)
	}
	if got := osc.Sample(bank, 0, a4); math.Abs(got-1) > 1e-6 {
		t.Fatalf("prepared custom oscillator should play, got %v", got)
	}
}

func TestWaveformYAML(t *testing.T) {
	w := wavetable.Waveform{Shape: wavetable.Custom, Harmonics: []float64{1, 0.5}}
	out, err := yaml.Marshal(w)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var back wavetable.Waveform
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if back.Shape != wavetable.Custom || len(back.Harmonics) != 2 {
		t.Fatalf("waveform changed: %v -> %v", w, back)
	}
	if err := yaml.Unmarshal([]byte("shape: wobble\n"), &back); err == nil {
		t.Fatalf("unknown shapes should fail")
	}
}

func TestShapeCycle(t *testing.T) {
	s := wavetable.Sine
	seen := map[wavetable.Shape]bool{}
	for i := 0; i < 4; i++ {
		seen[s] = true
		s = s.Next()
	}
	if s != wavetable.Sine || len(seen) != 4 {
		t.Fatalf("Next should cycle through the four canonical shapes")
	}
	if wavetable.Custom.Next() != wavetable.Sine {
		t.Fatalf("Custom should cycle back to Sine")
	}
}
