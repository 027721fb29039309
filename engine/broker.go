package engine

import (
	"github.com/resynth/resynth"
)

type (
	// Broker connects the goroutines of the engine. Reload events come from
	// the watcher and the remote control, audio events from the backend
	// thread; both are consumed by the control loop.
	//
	// For stopping the control loop, CloseController has a capacity of 1 so
	// sending struct{}{} to it never blocks; if it is already full, the loop
	// is already stopping. FinishedController is closed when the loop has
	// stopped; nothing is ever sent to it. Wait for it with a timeout:
	//
	//	select {
	//	case <-broker.FinishedController:
	//	case <-time.After(3 * time.Second):
	//	}
	Broker struct {
		Reloads chan resynth.ReloadEvent
		Audio   chan resynth.AudioEvent

		CloseController    chan struct{}
		FinishedController chan struct{}
	}
)

func NewBroker() *Broker {
	return &Broker{
		Reloads:            make(chan resynth.ReloadEvent, 64),
		Audio:              make(chan resynth.AudioEvent, 1024),
		CloseController:    make(chan struct{}, 1),
		FinishedController: make(chan struct{}),
	}
}

// TrySend is a helper function to send a value to a channel if it is not full.
// It is guaranteed to be non-blocking. Return true if the value was sent, false
// otherwise.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
	default:
		return false
	}
	return true
}
