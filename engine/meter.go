package engine

import (
	"math"
	"sync/atomic"

	"github.com/resynth/resynth"
	"github.com/viterin/vek/vek32"
)

type (
	// Meter measures the peak and RMS level of every rendered buffer and
	// counts clipped samples. Update runs on the audio thread; the readings
	// can be taken from any goroutine.
	Meter struct {
		tmp   []float32
		mask  []bool
		peak  [2]atomic.Uint32
		rms   [2]atomic.Uint32
		clips atomic.Int64
	}

	// Level is one reading of the meter, linear, for left and right.
	Level struct {
		Peak [2]float32
		RMS  [2]float32
	}
)

// ClipThreshold is the magnitude from which a sample counts as clipped.
const ClipThreshold = 0.999

// DefaultMeterFrames is the meter capacity for backends that do not report
// their largest buffer.
const DefaultMeterFrames = 4096

// NewMeter returns a Meter measuring up to maxFrames frames of every buffer.
// The scratch space is allocated here so that Update never allocates.
func NewMeter(maxFrames int) *Meter {
	maxFrames = max(maxFrames, 1)
	return &Meter{tmp: make([]float32, maxFrames), mask: make([]bool, maxFrames)}
}

// Update measures the first frames of the buffer, as many as the meter was
// created for. A zero Meter measures nothing.
func (m *Meter) Update(buf resynth.AudioBuffer) {
	n := min(len(buf), len(m.tmp))
	if n == 0 {
		return
	}
	x, mask := m.tmp[:n], m.mask[:n]
	for chn := range 2 {
		for i := range x {
			x[i] = buf[i][chn]
		}
		ms := vek32.Dot(x, x) / float32(len(x))
		vek32.Abs_Inplace(x)
		m.peak[chn].Store(math.Float32bits(vek32.Max(x)))
		m.rms[chn].Store(math.Float32bits(float32(math.Sqrt(float64(ms)))))
		vek32.GtNumber_Into(mask, x, ClipThreshold)
		m.clips.Add(int64(vek32.Count(mask)))
	}
}

func (m *Meter) Level() (l Level) {
	for chn := range 2 {
		l.Peak[chn] = math.Float32frombits(m.peak[chn].Load())
		l.RMS[chn] = math.Float32frombits(m.rms[chn].Load())
	}
	return
}

// Clips returns the number of clipped samples so far, both channels counted.
func (m *Meter) Clips() int64 {
	return m.clips.Load()
}

// Decibels converts a linear level to dBFS, with silence at -inf.
func Decibels(v float32) float64 {
	return 20 * math.Log10(float64(v))
}
