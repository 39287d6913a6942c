package domain

import "errors"

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrNotFound              = errors.New("not found")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrReservationsBlocked   = errors.New("reservations blocked")
	ErrStoreUnavailable      = errors.New("counter store unavailable")
	ErrNegativeCounter       = errors.New("counter value must not be negative")
	ErrMalformedCounter      = errors.New("counter value is not an integer")
	ErrBlacklisted           = errors.New("phone number is blacklisted")
)
