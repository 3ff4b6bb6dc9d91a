package events

// Event represents a structured state change emitted by the platform.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. HTTP gateway,
// off-chain indexers). Delivery is fire-and-forget and never part of the
// commit contract of an operation.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}
