package nabu

import "time"

// Callbacks provides hooks for adapter session events.
// All callbacks are optional - nil callbacks use default behavior.
type Callbacks struct {
	// OnRequest is called when a request opcode arrives, before it is
	// handled.
	OnRequest func(op byte)

	// OnProgramLoad is called when a pak is materialized into the
	// store on first request.
	OnProgramLoad func(pakID uint32, segments int)

	// OnSegmentSent is called after a segment frame has been written
	// to the link.
	OnSegmentSent func(pakID uint32, index byte, size int, took time.Duration)

	// OnError is called when a request fails. The session always
	// continues; the callback is informational.
	// context: description of where the error occurred
	OnError func(err error, context string)

	// OnEvent is called for protocol events (debugging/logging).
	OnEvent func(event Event)
}

// Event represents a protocol event for logging/debugging.
type Event struct {
	Type      EventType
	Message   string
	Request   byte
	Timestamp time.Time
}

// EventType categorizes protocol events.
type EventType int

const (
	EventSessionStart EventType = iota
	EventSessionEnd
	EventChannelSet
	EventSegmentServed
	EventSegmentDenied
)

// defaultCallbacks returns a set of callbacks with default implementations.
func defaultCallbacks() *Callbacks {
	return &Callbacks{
		OnRequest:     func(byte) {},
		OnProgramLoad: func(uint32, int) {},
		OnSegmentSent: func(uint32, byte, int, time.Duration) {},
		OnError:       func(error, string) {},
		OnEvent:       func(Event) {},
	}
}

// mergeCallbacks merges user callbacks with defaults.
// User callbacks override defaults, nil callbacks use defaults.
func mergeCallbacks(user *Callbacks) *Callbacks {
	if user == nil {
		return defaultCallbacks()
	}

	result := defaultCallbacks()
	if user.OnRequest != nil {
		result.OnRequest = user.OnRequest
	}
	if user.OnProgramLoad != nil {
		result.OnProgramLoad = user.OnProgramLoad
	}
	if user.OnSegmentSent != nil {
		result.OnSegmentSent = user.OnSegmentSent
	}
	if user.OnError != nil {
		result.OnError = user.OnError
	}
	if user.OnEvent != nil {
		result.OnEvent = user.OnEvent
	}
	return result
}
