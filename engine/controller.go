package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/resynth/resynth"
	"github.com/resynth/resynth/device"
	"github.com/resynth/resynth/device/controlxl"
	"github.com/resynth/resynth/device/launchpad"
	"github.com/resynth/resynth/host"
	"go.uber.org/zap"
)

type (
	PadSurface  = device.Surface[launchpad.Input, launchpad.Output]
	CtrlSurface = device.Surface[controlxl.Input, controlxl.Output]

	// Controller is the control loop. Every tick it swaps in a rebuilt
	// program if one was announced, applies the queued surface input to the
	// live Instance and pushes the Instance's lights back to the surfaces.
	Controller struct {
		host   *host.Host
		broker *Broker
		pad    *PadSurface
		ctrl   *CtrlSurface
		meter  *Meter
		logger *zap.Logger

		interval       time.Duration
		statusInterval time.Duration

		padIn      []launchpad.Input
		ctrlIn     []controlxl.Input
		padOut     launchpad.Output
		ctrlOut    controlxl.Output
		pushed     bool
		pushFailed bool
		lastStatus time.Time
		underruns  atomic.Int64
	}

	ControllerOption func(*Controller)
)

const (
	DefaultInterval       = 5 * time.Millisecond
	DefaultStatusInterval = 10 * time.Second
)

func WithLogger(logger *zap.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithSurfaces sets the connected surfaces; either may be nil.
func WithSurfaces(pad *PadSurface, ctrl *CtrlSurface) ControllerOption {
	return func(c *Controller) {
		c.pad, c.ctrl = pad, ctrl
	}
}

func WithMeter(meter *Meter) ControllerOption {
	return func(c *Controller) {
		c.meter = meter
	}
}

func WithInterval(interval time.Duration) ControllerOption {
	return func(c *Controller) {
		if interval > 0 {
			c.interval = interval
		}
	}
}

// WithStatusInterval sets how often the status is logged; zero disables it.
func WithStatusInterval(interval time.Duration) ControllerOption {
	return func(c *Controller) {
		c.statusInterval = interval
	}
}

func NewController(h *host.Host, broker *Broker, opts ...ControllerOption) *Controller {
	c := &Controller{
		host:           h,
		broker:         broker,
		logger:         zap.NewNop(),
		interval:       DefaultInterval,
		statusInterval: DefaultStatusInterval,
		lastStatus:     time.Now(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run ticks until the context is done or CloseController is signaled, then
// closes FinishedController.
func (c *Controller) Run(ctx context.Context) {
	defer close(c.broker.FinishedController)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.broker.CloseController:
			return
		case <-ticker.C:
			c.Tick(ctx)
		}
	}
}

// Tick runs one iteration of the control loop.
func (c *Controller) Tick(ctx context.Context) {
	c.reload(ctx)
	c.audioEvents()
	c.input()
	c.output()
	if c.statusInterval > 0 && time.Since(c.lastStatus) >= c.statusInterval {
		c.lastStatus = time.Now()
		c.logStatus()
	}
}

// reload swaps to the last announced artifact; earlier announcements in the
// same tick are superseded.
func (c *Controller) reload(ctx context.Context) {
	var (
		event resynth.ReloadEvent
		ok    bool
	)
	for {
		select {
		case event = <-c.broker.Reloads:
			ok = true
		default:
			if ok {
				// failures are logged by the host
				c.host.Swap(ctx, event.Path)
			}
			return
		}
	}
}

func (c *Controller) audioEvents() {
	for {
		select {
		case e := <-c.broker.Audio:
			switch e.Kind {
			case resynth.AudioUnderrun:
				c.underruns.Add(1)
				c.logger.Debug("audio underrun", zap.Duration("late", e.Late))
			case resynth.AudioSampleRate:
				c.logger.Info("backend sample rate changed", zap.Int("rate", e.SampleRate))
			}
		default:
			return
		}
	}
}

func (c *Controller) input() {
	if c.pad != nil {
		c.padIn = c.pad.Drain(c.padIn[:0])
		if len(c.padIn) > 0 {
			c.host.Cell().Do("pad input", func(s *host.State) {
				if s.Instance == nil {
					return
				}
				for _, in := range c.padIn {
					s.Instance.PadIn(s.T, in)
				}
			})
		}
	}
	if c.ctrl != nil {
		c.ctrlIn = c.ctrl.Drain(c.ctrlIn[:0])
		if len(c.ctrlIn) > 0 {
			c.host.Cell().Do("control input", func(s *host.State) {
				if s.Instance == nil {
					return
				}
				for _, in := range c.ctrlIn {
					s.Instance.CtrlIn(s.T, in)
				}
			})
		}
	}
}

// output reads the lights under the Cell and sends them outside it. A
// surface is only sent what changed since the last successful push.
func (c *Controller) output() {
	if c.pad == nil && c.ctrl == nil {
		return
	}
	var (
		pad  launchpad.Output
		ctrl controlxl.Output
	)
	c.host.Cell().Do("output", func(s *host.State) {
		if s.Instance == nil {
			return
		}
		if c.pad != nil {
			pad = s.Instance.PadOut(s.T)
		}
		if c.ctrl != nil {
			ctrl = s.Instance.CtrlOut(s.T)
		}
	})
	if c.pushed && pad == c.padOut && ctrl == c.ctrlOut {
		return
	}
	var err error
	if c.pad != nil && (!c.pushed || pad != c.padOut) {
		err = c.pad.Push(pad)
	}
	if c.ctrl != nil && err == nil && (!c.pushed || ctrl != c.ctrlOut) {
		err = c.ctrl.Push(ctrl)
	}
	if err != nil {
		if !c.pushFailed {
			c.logger.Warn("pushing lights failed", zap.Error(err))
		}
		c.pushFailed, c.pushed = true, false
		return
	}
	c.pushFailed = false
	c.padOut, c.ctrlOut, c.pushed = pad, ctrl, true
}

func (c *Controller) logStatus() {
	st := c.host.Status()
	fields := []zap.Field{
		zap.String("module", st.Module),
		zap.Float64("t", st.T),
		zap.Int("swaps", st.Swaps),
		zap.Int("failures", st.Failures),
		zap.Int64("overruns", st.Overruns),
		zap.Int64("underruns", c.underruns.Load()),
	}
	if c.meter != nil {
		l := c.meter.Level()
		fields = append(fields,
			zap.Float64("peak_db", Decibels(max(l.Peak[0], l.Peak[1]))),
			zap.Int64("clips", c.meter.Clips()))
	}
	c.logger.Info("status", fields...)
}

// Underruns returns the number of underruns the backend reported. It is safe
// to call from any goroutine.
func (c *Controller) Underruns() int64 {
	return c.underruns.Load()
}
