package host

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/resynth/resynth"
	"go.uber.org/zap"
)

type (
	// State is everything the audio and control paths share: the loaded
	// Module, the one live Instance it created and the audio clock in
	// seconds. Instance is nil when there is nothing to play.
	State struct {
		Module   resynth.Module
		Instance resynth.Instance
		T        float64
	}

	// Cell guards the State. The audio path takes it once per buffer, the
	// control path once per batch of inputs or outputs, and a swap holds it
	// for the whole replacement, so neither path ever sees a half-swapped
	// state.
	Cell struct {
		mutex    sync.Mutex
		state    State
		budget   time.Duration
		logger   *zap.Logger
		overruns atomic.Int64
	}
)

// DefaultBudget is how long a control section may hold the Cell before it is
// reported as an overrun.
const DefaultBudget = time.Millisecond

func NewCell(budget time.Duration, logger *zap.Logger) *Cell {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cell{budget: budget, logger: logger}
}

// Render fills the buffer from the live Instance, advancing the clock by one
// sample period before every frame. Without an Instance the buffer is
// silent; the clock still advances. Frames are clamped to [-1, 1] and NaN
// becomes silence.
func (c *Cell) Render(buf resynth.AudioBuffer, rate int) {
	if rate <= 0 {
		buf.Fill(0)
		return
	}
	dt := 1 / float64(rate)
	c.mutex.Lock()
	defer c.mutex.Unlock()
	inst := c.state.Instance
	for i := range buf {
		c.state.T += dt
		if inst == nil {
			buf[i] = [2]float32{}
			continue
		}
		l, r := inst.Sample(c.state.T)
		buf[i] = [2]float32{clamp(l), clamp(r)}
	}
}

// Do runs fn with the State held. Sections longer than the budget are
// counted and logged.
func (c *Cell) Do(name string, fn func(s *State)) {
	c.mutex.Lock()
	start := time.Now()
	fn(&c.state)
	took := time.Since(start)
	c.mutex.Unlock()
	if c.budget > 0 && took > c.budget {
		c.overruns.Add(1)
		c.logger.Warn("control section over budget", zap.String("section", name), zap.Duration("took", took), zap.Duration("budget", c.budget))
	}
}

// exclusive runs fn with the State held and no budget.
func (c *Cell) exclusive(fn func(s *State)) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	fn(&c.state)
}

// Overruns returns the number of control sections that exceeded the budget.
func (c *Cell) Overruns() int64 {
	return c.overruns.Load()
}

// Time returns the audio clock.
func (c *Cell) Time() float64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.state.T
}

func clamp(v float64) float32 {
	if math.IsNaN(v) {
		return 0
	}
	return float32(min(max(v, -1), 1))
}
