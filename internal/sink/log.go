package sink

import (
	"log"
	"time"

	"github.com/ayusman/handchord/internal/engine"
)

// Log writes one line per event.
type Log struct {
	logger *log.Logger
	start  time.Time
}

// NewLog creates a Log sink. A nil logger selects the standard logger.
func NewLog(logger *log.Logger) *Log {
	if logger == nil {
		logger = log.Default()
	}
	return &Log{logger: logger}
}

// WithStart makes the sink print event times as offsets from start.
func (l *Log) WithStart(start time.Time) *Log {
	l.start = start
	return l
}

// Handle implements engine.Sink.
func (l *Log) Handle(ev engine.Event) {
	if l.start.IsZero() {
		l.logger.Println(ev)
		return
	}
	l.logger.Printf("%8.3fs %v", ev.At.Sub(l.start).Seconds(), ev)
}
