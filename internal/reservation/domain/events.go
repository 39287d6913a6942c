package domain

const (
	EventSeatReserved  = "SeatReserved"
	EventStockReserved = "StockReserved"
)

type SeatReserved struct {
	ReservationID string
	Remaining     int64
}

type StockReserved struct {
	ReservationID string
	ItemID        int
	Remaining     int64
}
