package logging

import (
	"context"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// EventKind groups events by the part of the bridge that emitted them. It is
// written as the event's component.
type EventKind string

const (
	EventQuery  EventKind = "query"
	EventBridge EventKind = "bridge"
	EventConfig EventKind = "config"
	EventDaemon EventKind = "daemon"
	EventError  EventKind = "error"
)

const eventQueueSize = 256

// Event is one structured record queued on an EventLogger.
type Event struct {
	Kind    EventKind
	Level   LogLevel
	Message string
	Time    time.Time
	Fields  map[string]interface{}
	Err     error
}

// EventLogger writes events from a background goroutine so that request
// handling never waits on log output. A full queue falls back to writing
// inline.
type EventLogger struct {
	logger *Logger
	queue  chan Event
	exited chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewEventLogger(logger *Logger) *EventLogger {
	el := &EventLogger{
		logger: logger,
		queue:  make(chan Event, eventQueueSize),
		exited: make(chan struct{}),
	}
	go el.run()
	return el
}

// Emit queues ev. Events emitted after Close are dropped.
func (el *EventLogger) Emit(ev Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	el.mu.RLock()
	defer el.mu.RUnlock()

	if el.closed {
		return
	}

	select {
	case el.queue <- ev:
	default:
		el.write(ev)
	}
}

// LogQuery records a disk-space method call.
func (el *EventLogger) LogQuery(level LogLevel, message, method string, fields map[string]interface{}) {
	el.Emit(Event{Kind: EventQuery, Level: level, Message: message, Fields: with(fields, "method", method)})
}

// LogBridge records a transport event.
func (el *EventLogger) LogBridge(level LogLevel, message, transport string, fields map[string]interface{}) {
	el.Emit(Event{Kind: EventBridge, Level: level, Message: message, Fields: with(fields, "transport", transport)})
}

func (el *EventLogger) LogConfig(level LogLevel, message, configPath string, fields map[string]interface{}) {
	el.Emit(Event{Kind: EventConfig, Level: level, Message: message, Fields: with(fields, "config_path", configPath)})
}

func (el *EventLogger) LogDaemon(level LogLevel, message, action string, fields map[string]interface{}) {
	el.Emit(Event{Kind: EventDaemon, Level: level, Message: message, Fields: with(fields, "action", action)})
}

// LogError records err together with the file, line and function of the
// caller.
func (el *EventLogger) LogError(err error, message string, fields map[string]interface{}) {
	fields = with(fields, "", nil)
	if pc, file, line, ok := runtime.Caller(1); ok {
		fields["caller_file"] = filepath.Base(file)
		fields["caller_line"] = line
		if fn := runtime.FuncForPC(pc); fn != nil {
			fields["caller_func"] = fn.Name()
		}
	}

	el.Emit(Event{Kind: EventError, Level: LevelError, Message: message, Fields: fields, Err: err})
}

// with copies fields and adds key. An empty key only copies.
func with(fields map[string]interface{}, key string, value interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	if key != "" {
		out[key] = value
	}
	return out
}

func (el *EventLogger) write(ev Event) {
	args := make([]any, 0, len(ev.Fields)*2+4)
	args = append(args, "event_time", ev.Time.Format(time.RFC3339Nano))
	for k, v := range ev.Fields {
		args = append(args, k, v)
	}
	if ev.Err != nil {
		args = append(args, "error", ev.Err.Error())
	}

	el.logger.WithComponent(string(ev.Kind)).Log(context.Background(), ParseLevel(ev.Level), ev.Message, args...)
}

func (el *EventLogger) run() {
	defer close(el.exited)
	for ev := range el.queue {
		el.write(ev)
	}
}

// Close writes the queued events and stops the logger. It may be called more
// than once.
func (el *EventLogger) Close() {
	el.mu.Lock()
	if !el.closed {
		el.closed = true
		close(el.queue)
	}
	el.mu.Unlock()

	<-el.exited
}
