package engine

import (
	"github.com/resynth/resynth"
	"github.com/resynth/resynth/host"
)

// Renderer is the audio producer. It renders from the Cell at a fixed sample
// rate and forwards what the backend reports to the control loop. Nothing it
// does blocks.
type Renderer struct {
	cell   *host.Cell
	broker *Broker
	meter  *Meter
	rate   int
}

// NewRenderer returns a Renderer advancing the clock at rate. The meter may
// be nil.
func NewRenderer(cell *host.Cell, broker *Broker, meter *Meter, rate int) *Renderer {
	return &Renderer{cell: cell, broker: broker, meter: meter, rate: rate}
}

func (r *Renderer) ReadAudio(buf resynth.AudioBuffer) {
	r.cell.Render(buf, r.rate)
	if r.meter != nil {
		r.meter.Update(buf)
	}
}

// AudioEvent passes the event on. Events are informational; a changed
// sample rate does not change the rate of the clock.
func (r *Renderer) AudioEvent(event resynth.AudioEvent) {
	TrySend(r.broker.Audio, event)
}

func (r *Renderer) SampleRate() int {
	return r.rate
}
