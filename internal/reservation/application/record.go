package application

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/dmehra2102/Reservation-System/internal/reservation/domain"
	"github.com/dmehra2102/Reservation-System/pkg/tracing"
)

// record writes the ledger entry for r. The counter was already mutated, so
// a ledger failure is logged and not returned.
func record(ctx context.Context, log *slog.Logger, rec ReservationRecorder, r domain.Reservation, eventType string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		log.Error("reservation event encode failed", "reservation_id", r.ID, "err", err)
		return
	}
	headers := map[string]string{"source": "reservation-service", "kind": string(r.Kind)}
	if err := rec.RecordWithOutbox(ctx, r, eventType, payload, headers, tracing.Traceparent(ctx)); err != nil {
		log.Error("reservation ledger write failed", "reservation_id", r.ID, "event_type", eventType, "err", err)
	}
}
