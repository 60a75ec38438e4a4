package events

import "sync"

// Recorder collects emitted events in memory for test assertions.
type Recorder struct {
	mu     sync.RWMutex
	events []Descriptor
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Descriptor) {
	if evt == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

// Events returns a snapshot of everything recorded so far.
func (r *Recorder) Events() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, len(r.events))
	copy(out, r.events)
	return out
}
