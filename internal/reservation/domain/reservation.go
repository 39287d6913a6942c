package domain

import "time"

type Kind string

const (
	KindSeat  Kind = "seat"
	KindStock Kind = "stock"
)

// Reservation is a confirmed decrement of one counter.
type Reservation struct {
	ID         string
	Kind       Kind
	CounterKey string
	ItemID     int
	Remaining  int64
	CreatedAt  time.Time
}

type Notification struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
}
