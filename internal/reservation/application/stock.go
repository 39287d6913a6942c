package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmehra2102/Reservation-System/internal/reservation/domain"
)

// StockService reserves product stock inline, one unit per call. The
// check-then-decrement runs as a single atomic store operation so concurrent
// requests for one item cannot oversell it.
type StockService struct {
	log      *slog.Logger
	store    CounterStore
	catalog  *domain.Catalog
	recorder ReservationRecorder
}

func NewStockService(log *slog.Logger, store CounterStore, catalog *domain.Catalog, recorder ReservationRecorder) *StockService {
	if recorder == nil {
		recorder = NoopRecorder{}
	}
	return &StockService{log: log, store: store, catalog: catalog, recorder: recorder}
}

func (s *StockService) ListProducts() []domain.Product {
	return s.catalog.Products()
}

func (s *StockService) ProductDetail(ctx context.Context, itemID int) (domain.ProductStock, error) {
	p, ok := s.catalog.Find(itemID)
	if !ok {
		return domain.ProductStock{}, fmt.Errorf("product %d: %w", itemID, domain.ErrNotFound)
	}
	current, found, err := s.store.Get(ctx, domain.ItemKey(itemID))
	if err != nil {
		return domain.ProductStock{}, err
	}
	if !found {
		current = p.InitialStock
	}
	return domain.ProductStock{Product: p, CurrentQuantity: current}, nil
}

// Reserve takes one unit of itemID and returns the quantity left.
func (s *StockService) Reserve(ctx context.Context, itemID int) (int64, error) {
	p, ok := s.catalog.Find(itemID)
	if !ok {
		return 0, fmt.Errorf("product %d: %w", itemID, domain.ErrNotFound)
	}

	key := domain.ItemKey(itemID)
	remaining, ok, err := s.store.DecrementIfPositive(ctx, key, p.InitialStock)
	if err != nil {
		return 0, err
	}
	if !ok {
		s.log.Info("stock exhausted", "item_id", itemID)
		return 0, fmt.Errorf("product %d: not enough stock available: %w", itemID, domain.ErrInsufficientInventory)
	}

	r := domain.Reservation{
		ID:         uuid.NewString(),
		Kind:       domain.KindStock,
		CounterKey: key,
		ItemID:     itemID,
		Remaining:  remaining,
		CreatedAt:  time.Now().UTC(),
	}
	record(ctx, s.log, s.recorder, r, domain.EventStockReserved, domain.StockReserved{ReservationID: r.ID, ItemID: itemID, Remaining: remaining})
	s.log.Info("stock reserved", "item_id", itemID, "remaining", remaining)
	return remaining, nil
}
