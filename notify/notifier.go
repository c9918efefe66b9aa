package notify

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level is the severity of a notification.
type Level string

const (
	LevelError   Level = "error"
	LevelWarning Level = "warning"
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
)

// Notification is one message for the user.
type Notification struct {
	Timestamp time.Time `json:"timestamp"`
	Level     Level     `json:"level"`
	// Kind is the error class that produced the notification, if any.
	Kind string `json:"kind,omitempty"`
	// Field names the offending input for validation messages.
	Field     string `json:"field,omitempty"`
	Message   string `json:"message"`
	Status    int    `json:"status,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Notifier receives notifications. Implementations must be safe for concurrent use.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NoOp discards every notification.
type NoOp struct{}

func (NoOp) Notify(context.Context, Notification) {}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, n Notification)

func (f Func) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// ChannelSink publishes notifications on a buffered channel.
type ChannelSink struct {
	events chan Notification
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Notification, buffer)}
}

func (s *ChannelSink) Notify(ctx context.Context, n Notification) {
	select {
	case s.events <- n:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Notification {
	return s.events
}

// JSONWriterSink writes one JSON document per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{writer: w}
}

func (s *JSONWriterSink) Notify(_ context.Context, n Notification) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(n)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}

// LogSink writes notifications to a zerolog logger at a level matching their severity.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Notify(_ context.Context, n Notification) {
	var ev *zerolog.Event
	switch n.Level {
	case LevelError:
		ev = s.log.Error()
	case LevelWarning:
		ev = s.log.Warn()
	default:
		ev = s.log.Info()
	}
	ev.Str("kind", n.Kind).
		Str("field", n.Field).
		Int("status", n.Status).
		Str("request_id", n.RequestID).
		Msg(n.Message)
}

// Multi fans a notification out to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, n Notification) {
	for _, next := range m {
		if next != nil {
			next.Notify(ctx, n)
		}
	}
}
