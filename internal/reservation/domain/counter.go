package domain

import "strconv"

const SeatCounterKey = "available_seats"

// ItemKey is the counter key holding the remaining stock of a product.
func ItemKey(itemID int) string {
	return "item." + strconv.Itoa(itemID)
}
