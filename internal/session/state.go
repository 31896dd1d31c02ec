package session

// State is the coordinator's lifecycle position. It moves strictly
// forward; Closed is terminal.
type State int32

const (
	StateConfigured State = iota
	StateDeployed
	StateHandshaking
	StateRunning
	StateStopping
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConfigured:
		return "configured"
	case StateDeployed:
		return "deployed"
	case StateHandshaking:
		return "handshaking"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// MediaStream names one of the two media sockets.
type MediaStream string

const (
	StreamVideo MediaStream = "video"
	StreamAudio MediaStream = "audio"
)

// Sink receives everything a running session produces: one capability
// interface rather than a callback per event kind, so a caller
// implements only what it needs and embeds a no-op base for the rest.
type Sink interface {
	// OnFrame delivers one decoded frame for stream, in order.
	OnFrame(stream MediaStream, frame CodecFrame)
	// OnDeviceEvent delivers an unsolicited inbound control message.
	OnDeviceEvent(msg DeviceMessage)
	// OnStreamEnd fires once when a media socket reaches clean EOF, or
	// when shutdown closes it out from under a blocked read.
	OnStreamEnd(stream MediaStream)
	// OnTerminated fires exactly once, when the session reaches Closed.
	// cause is nil for a caller-requested Stop, otherwise the error that
	// forced the shutdown (its errs.Kind is the "terminated_because"
	// value).
	OnTerminated(cause error)
}

// NopSink is an embeddable Sink that ignores every event. Callers that
// only care about frames can embed it and override OnFrame.
type NopSink struct{}

func (NopSink) OnFrame(MediaStream, CodecFrame) {}
func (NopSink) OnDeviceEvent(DeviceMessage)     {}
func (NopSink) OnStreamEnd(MediaStream)         {}
func (NopSink) OnTerminated(error)              {}
