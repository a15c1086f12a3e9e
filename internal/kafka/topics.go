package kafka

// Topic definitions for call lifecycle events

const (
	// TopicCallEvents carries call.started, reservation.confirmed and call.ended,
	// keyed by stream sid.
	TopicCallEvents = "voicecall.events.call"
)
