// Package progress is the event boundary between the conversion core and
// whatever is watching it. The core only publishes an ordered stream of
// events; console and GUI consumers subscribe without the core knowing
// about either.
package progress

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Level is the severity of a progress event.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Event is one entry in the batch progress stream. Index and Total are
// 1-based job counters; both are zero for events not tied to a job.
type Event struct {
	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	Index   int       `json:"index,omitempty"`
	Total   int       `json:"total,omitempty"`
}

// Sink consumes progress events. Publish is called from the single batch
// worker, in order; implementations decide their own thread safety.
type Sink interface {
	Publish(e Event)
}

// Multi fans one event out to several sinks in order.
type Multi []Sink

func (m Multi) Publish(e Event) {
	for _, s := range m {
		s.Publish(e)
	}
}

// Discard drops all events. Useful as a default when no consumer is wired.
type Discard struct{}

func (Discard) Publish(Event) {}

// Memory buffers events for later inspection. This is the sink a GUI (or
// a test) polls; it is safe for concurrent use.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func (m *Memory) Publish(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
}

// Events returns a snapshot of everything published so far.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// Console renders events through a zap logger.
type Console struct {
	log *zap.Logger
}

// NewConsole creates a console sink on top of logger.
func NewConsole(logger *zap.Logger) *Console {
	return &Console{log: logger}
}

func (c *Console) Publish(e Event) {
	var fields []zap.Field
	if e.Total > 0 {
		fields = append(fields, zap.Int("file", e.Index), zap.Int("of", e.Total))
	}

	switch e.Level {
	case LevelSuccess:
		c.log.Info(e.Message, append(fields, zap.Bool("success", true))...)
	case LevelWarning:
		c.log.Warn(e.Message, fields...)
	case LevelError:
		c.log.Error(e.Message, fields...)
	default:
		c.log.Info(e.Message, fields...)
	}
}
