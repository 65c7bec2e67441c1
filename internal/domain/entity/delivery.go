package entity

import "time"

// DeliveryStatus is the terminal state of one rule's notification attempt.
type DeliveryStatus string

const (
	DeliverySent    DeliveryStatus = "sent"
	DeliveryBailed  DeliveryStatus = "bailed"
	DeliverySkipped DeliveryStatus = "skipped"
	DeliveryFailed  DeliveryStatus = "failed"
	DeliveryDropped DeliveryStatus = "dropped"
)

// Delivery records what happened to one rule for one event.
// It is written to the debug sinks only; the emitter never sees it.
type Delivery struct {
	ID        string
	EventID   string
	RuleID    int64
	Namespace string
	Trigger   Trigger
	Status    DeliveryStatus
	Reason    string
	Kind      string
	Attempts  int
	Error     string
	Duration  time.Duration
	CreatedAt time.Time
}
