package diskspace

import (
	"time"

	"github.com/timfallmk/disk-space-bridge/internal/channel"
	"github.com/timfallmk/disk-space-bridge/internal/logging"
)

// ChannelName is the channel the plugin registers under by default.
const ChannelName = "disk_space"

// CallRecorder receives one sample per handled call.
type CallRecorder interface {
	RecordMethodCall(method, outcome string, value float64, duration time.Duration)
}

// Plugin exposes an Adapter on a method channel.
type Plugin struct {
	adapter  *Adapter
	logger   *logging.Logger
	recorder CallRecorder
	events   *logging.EventLogger
}

// NewPlugin wraps adapter. recorder may be nil.
func NewPlugin(adapter *Adapter, logger *logging.Logger, recorder CallRecorder) *Plugin {
	return &Plugin{
		adapter:  adapter,
		logger:   logger.WithComponent("disk_space"),
		recorder: recorder,
	}
}

// SetEventLogger routes failed calls to events as query events instead of
// the plugin's own logger.
func (p *Plugin) SetEventLogger(events *logging.EventLogger) {
	p.events = events
}

// RegisterWith installs the plugin's handler on m under name, or under
// ChannelName when name is empty.
func (p *Plugin) RegisterWith(m *channel.Messenger, name string) {
	if name == "" {
		name = ChannelName
	}
	m.SetMethodCallHandler(name, p.HandleMethodCall)
	p.logger.Debug("plugin registered", "channel", name)
}

// HandleMethodCall answers call through result.
func (p *Plugin) HandleMethodCall(call channel.MethodCall, result channel.MethodResult) {
	start := time.Now()
	res := p.adapter.Handle(call.Method, call.Arguments)
	duration := time.Since(start)

	switch res.Kind {
	case KindMegabytes, KindVersion:
		result.Success(res.Value())
	case KindError:
		code, msg := res.ErrorCode()
		result.Error(code, msg, nil)
	case KindNotImplemented:
		result.NotImplemented()
	}

	if p.recorder != nil {
		p.recorder.RecordMethodCall(call.Method, res.Outcome(), res.Megabytes, duration)
	}

	if res.Kind == KindError {
		if p.events != nil {
			p.events.LogQuery(logging.LevelWarn, "disk space call failed", call.Method, map[string]interface{}{
				"outcome": res.Outcome(),
				"error":   res.Err.Error(),
			})
			return
		}
		p.logger.Warn("disk space call failed", "method", call.Method, "outcome", res.Outcome(), "error", res.Err)
		return
	}
	p.logger.Debug("disk space call handled", "method", call.Method, "outcome", res.Outcome(), "duration", duration)
}
