package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/dmehra2102/Reservation-System/internal/reservation/application"
	"github.com/dmehra2102/Reservation-System/internal/reservation/domain"
)

const maxNotificationBody = 1 << 20

const (
	statusInProcess       = "Reservation in process"
	statusBlocked         = "Reservation are blocked"
	statusFailed          = "Reservation failed"
	statusConfirmed       = "Reservation confirmed"
	statusNotEnoughStock  = "Not enough stock available"
	statusProductNotFound = "Product not found"
	statusQueueProcessing = "Queue processing"
	statusJobsCreated     = "Jobs created"
	msgJobsNotArray       = "Jobs is not an array"
)

type Handler struct {
	log           *slog.Logger
	seats         *application.SeatService
	stock         *application.StockService
	notifications *application.NotificationService
	tracer        trace.Tracer
}

func NewHandler(log *slog.Logger, seats *application.SeatService, stock *application.StockService, notifications *application.NotificationService) *Handler {
	return &Handler{
		log:           log,
		seats:         seats,
		stock:         stock,
		notifications: notifications,
		tracer:        otel.Tracer("reservation-http"),
	}
}

type productResp struct {
	ItemID                   int    `json:"itemId"`
	ItemName                 string `json:"itemName"`
	Price                    int64  `json:"price"`
	InitialAvailableQuantity int64  `json:"initialAvailableQuantity"`
	CurrentQuantity          *int64 `json:"currentQuantity,omitempty"`
}

type statusResp struct {
	Status string `json:"status"`
	ItemID *int   `json:"itemId,omitempty"`
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/available_seats", h.availableSeats)
	r.Get("/reserve_seat", h.reserveSeat)
	r.Get("/process", h.process)
	r.Get("/list_products", h.listProducts)
	r.Get("/list_products/{itemId}", h.getProduct)
	r.Get("/reserve_product/{itemId}", h.reserveProduct)
	r.Post("/notifications", h.createNotifications)

	return r
}

func (h *Handler) availableSeats(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "AvailableSeats")
	defer span.End()

	n, err := h.seats.AvailableSeats(ctx)
	if err != nil {
		h.log.Error("available seats read failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"numberOfAvailableSeats": strconv.FormatInt(n, 10)})
}

func (h *Handler) reserveSeat(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ReserveSeat")
	defer span.End()

	job, err := h.seats.Reserve(ctx)
	switch {
	case errors.Is(err, domain.ErrReservationsBlocked):
		writeJSON(w, http.StatusOK, statusResp{Status: statusBlocked})
	case err != nil:
		span.RecordError(err)
		writeJSON(w, http.StatusOK, statusResp{Status: statusFailed})
	default:
		span.SetAttributes(attribute.String("job.id", job.ID))
		writeJSON(w, http.StatusOK, statusResp{Status: statusInProcess})
	}
}

func (h *Handler) process(w http.ResponseWriter, r *http.Request) {
	if err := h.seats.StartProcessing(); err != nil {
		h.log.Error("seat processor registration failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, statusResp{Status: statusQueueProcessing})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	products := h.stock.ListProducts()
	out := make([]productResp, 0, len(products))
	for _, p := range products {
		out = append(out, toProductResp(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "GetProduct")
	defer span.End()

	id, ok := itemID(r)
	if !ok {
		writeJSON(w, http.StatusOK, statusResp{Status: statusProductNotFound})
		return
	}
	ps, err := h.stock.ProductDetail(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusOK, statusResp{Status: statusProductNotFound})
	case err != nil:
		h.log.Error("product read failed", "item_id", id, "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		resp := toProductResp(ps.Product)
		resp.CurrentQuantity = &ps.CurrentQuantity
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *Handler) reserveProduct(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "ReserveProduct")
	defer span.End()

	id, ok := itemID(r)
	if !ok {
		writeJSON(w, http.StatusOK, statusResp{Status: statusProductNotFound})
		return
	}
	span.SetAttributes(attribute.Int("item.id", id))

	_, err := h.stock.Reserve(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusOK, statusResp{Status: statusProductNotFound})
	case errors.Is(err, domain.ErrInsufficientInventory):
		writeJSON(w, http.StatusOK, statusResp{Status: statusNotEnoughStock, ItemID: &id})
	case err != nil:
		span.RecordError(err)
		h.log.Error("product reservation failed", "item_id", id, "err", err)
		writeJSON(w, http.StatusServiceUnavailable, statusResp{Status: statusFailed, ItemID: &id})
	default:
		writeJSON(w, http.StatusOK, statusResp{Status: statusConfirmed, ItemID: &id})
	}
}

func (h *Handler) createNotifications(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateNotifications")
	defer span.End()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxNotificationBody))
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	jobs, err := h.notifications.CreateJobs(ctx, body)
	if errors.Is(err, domain.ErrInvalidInput) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msgJobsNotArray})
		return
	}
	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		ids = append(ids, j.ID)
	}
	if err != nil {
		h.log.Error("notification enqueue failed", "created", len(ids), "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error(), "jobIds": ids})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": statusJobsCreated, "jobIds": ids})
}

func itemID(r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "itemId"))
	return id, err == nil
}

func toProductResp(p domain.Product) productResp {
	return productResp{
		ItemID:                   p.ID,
		ItemName:                 p.Name,
		Price:                    p.Price,
		InitialAvailableQuantity: p.InitialStock,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
