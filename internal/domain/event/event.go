package event

type EventKind string

const (
	FleetSnapshot EventKind = "fleet.snapshot.v1"
)

// Eventer defines the contract for all packets published to the message bus.
type Eventer interface {
	GetID() string
	GetKind() EventKind
	GetOccurredAt() int64
	// GetRoutingKey names the topic; an empty key means the event stays local.
	GetRoutingKey() string
}
