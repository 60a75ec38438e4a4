package events

import "log/slog"

// Renderer is implemented by typed events that can flatten themselves into an
// Event for logs and downstream indexers.
type Renderer interface {
	Descriptor
	Event() *Event
}

// LogEmitter renders emitted events and writes them to a structured logger.
// It is the daemon's default sink: every engine event becomes one log line
// carrying the event type and its rendered attributes.
type LogEmitter struct {
	logger *slog.Logger
}

func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

// Emit implements the Emitter interface.
func (l *LogEmitter) Emit(evt Descriptor) {
	if evt == nil {
		return
	}
	attrs := []any{slog.String("event", evt.EventType())}
	if r, ok := evt.(Renderer); ok {
		if rendered := r.Event(); rendered != nil {
			for key, value := range rendered.Attributes {
				attrs = append(attrs, slog.String(key, value))
			}
		}
	}
	l.logger.Info("event emitted", attrs...)
}
