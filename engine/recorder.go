package engine

import (
	"sync"

	"github.com/resynth/resynth"
)

// Recorder passes audio through from a source and keeps a copy of the first
// frames, up to a capacity allocated up front.
type Recorder struct {
	source resynth.AudioSource
	mutex  sync.Mutex
	frames resynth.AudioBuffer
}

// NewRecorder records up to capacity frames of source.
func NewRecorder(source resynth.AudioSource, capacity int) *Recorder {
	return &Recorder{source: source, frames: make(resynth.AudioBuffer, 0, max(capacity, 0))}
}

func (r *Recorder) ReadAudio(buf resynth.AudioBuffer) {
	r.source.ReadAudio(buf)
	r.mutex.Lock()
	n := min(len(buf), cap(r.frames)-len(r.frames))
	r.frames = append(r.frames, buf[:n]...)
	r.mutex.Unlock()
}

func (r *Recorder) AudioEvent(event resynth.AudioEvent) {
	r.source.AudioEvent(event)
}

// Frames returns a copy of what was recorded so far.
func (r *Recorder) Frames() resynth.AudioBuffer {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return append(resynth.AudioBuffer(nil), r.frames...)
}
