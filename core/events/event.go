package events

// Event is the flattened representation of a state change, suitable for
// serialisation over RPC and for log indexers.
type Event struct {
	Type       string
	Attributes map[string]string
}

// Descriptor is implemented by typed events that can describe themselves.
type Descriptor interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Descriptor)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default for components that expose events optionally.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Descriptor) {}
