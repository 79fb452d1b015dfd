package sink

import "github.com/ayusman/handchord/internal/engine"

// Multi forwards every event to each of its sinks in order.
type Multi []engine.Sink

// Handle implements engine.Sink.
func (m Multi) Handle(ev engine.Event) {
	for _, s := range m {
		if s != nil {
			s.Handle(ev)
		}
	}
}
