package outbox

import "time"

// Status is the delivery state of an outbox row.
type Status string

const (
	StatusPending Status = "pending"
	StatusLeased  Status = "in_progress"
	StatusSent    Status = "sent"
	StatusFailed  Status = "failed"
)

// Event is a reservation event stored next to its ledger row. Events are
// published keyed by CounterKey, so all events of the seat counter or of one
// item's stock land on one partition in ledger order.
type Event struct {
	ID            int64
	CounterKey    string
	ReservationID string
	Type          string
	Payload       []byte
	Headers       map[string]string
	Traceparent   string
	CreatedAt     time.Time
	Attempts      int
}

func (e Event) Key() []byte { return []byte(e.CounterKey) }
