package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/Reservation-System/internal/reservation/application"
	"github.com/dmehra2102/Reservation-System/internal/reservation/domain"
	"github.com/dmehra2102/Reservation-System/internal/reservation/infrastructure/memory"
	"github.com/dmehra2102/Reservation-System/pkg/jobqueue"
)

type testEnv struct {
	srv   *httptest.Server
	store *memory.CounterStore
	queue *jobqueue.Queue
	seats *application.SeatService
}

func newTestEnv(t *testing.T, seats int64, startProcessing bool) *testEnv {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())

	store := memory.NewCounterStore()
	q := jobqueue.New(log, jobqueue.NewMemoryTransport())
	q.Start(ctx)

	seatSvc := application.NewSeatService(log, store, q, nil, seats)
	require.NoError(t, seatSvc.Seed(ctx))
	if startProcessing {
		require.NoError(t, seatSvc.StartProcessing())
	}
	stockSvc := application.NewStockService(log, store, domain.DefaultCatalog(), nil)
	notifySvc := application.NewNotificationService(log, q, nil)

	srv := httptest.NewServer(NewHandler(log, seatSvc, stockSvc, notifySvc).Routes())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		q.Wait()
	})
	return &testEnv{srv: srv, store: store, queue: q, seats: seatSvc}
}

func (e *testEnv) get(t *testing.T, path string, out any) int {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp.StatusCode
}

func TestAvailableSeatsIsIdempotent(t *testing.T) {
	env := newTestEnv(t, 50, true)

	var first, second map[string]string
	assert.Equal(t, http.StatusOK, env.get(t, "/available_seats", &first))
	env.get(t, "/available_seats", &second)
	assert.Equal(t, map[string]string{"numberOfAvailableSeats": "50"}, first)
	assert.Equal(t, first, second)
}

func TestReserveSeatFlow(t *testing.T) {
	env := newTestEnv(t, 50, false)

	for i := 0; i < 50; i++ {
		var body map[string]string
		env.get(t, "/reserve_seat", &body)
		require.Equal(t, statusInProcess, body["status"])
	}

	var body map[string]string
	require.Equal(t, http.StatusOK, env.get(t, "/process", &body))
	assert.Equal(t, statusQueueProcessing, body["status"])
	env.get(t, "/process", &body)
	assert.Equal(t, statusQueueProcessing, body["status"])

	require.Eventually(t, func() bool {
		var seats map[string]string
		env.get(t, "/available_seats", &seats)
		return seats["numberOfAvailableSeats"] == "0"
	}, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return !env.seats.ReservationsEnabled() }, time.Second, 5*time.Millisecond)

	env.get(t, "/reserve_seat", &body)
	assert.Equal(t, statusBlocked, body["status"])
}

func TestReserveSeatEnqueueFailure(t *testing.T) {
	env := newTestEnv(t, 5, true)
	require.NoError(t, env.queue.Close())

	var body map[string]string
	env.get(t, "/reserve_seat", &body)
	assert.Equal(t, statusFailed, body["status"])
}

func TestListProducts(t *testing.T) {
	env := newTestEnv(t, 50, true)

	var products []map[string]any
	assert.Equal(t, http.StatusOK, env.get(t, "/list_products", &products))
	require.Len(t, products, 4)
	assert.Equal(t, map[string]any{
		"itemId":                   float64(1),
		"itemName":                 "Suitcase 250",
		"price":                    float64(50),
		"initialAvailableQuantity": float64(4),
	}, products[0])
}

func TestProductDetailAndReservation(t *testing.T) {
	env := newTestEnv(t, 50, true)

	var detail map[string]any
	assert.Equal(t, http.StatusOK, env.get(t, "/list_products/3", &detail))
	assert.Equal(t, float64(2), detail["currentQuantity"])
	assert.Equal(t, "Suitcase 650", detail["itemName"])

	var res map[string]any
	env.get(t, "/reserve_product/3", &res)
	assert.Equal(t, map[string]any{"status": statusConfirmed, "itemId": float64(3)}, res)
	env.get(t, "/reserve_product/3", &res)
	assert.Equal(t, statusConfirmed, res["status"])

	v, found, err := env.store.Get(context.Background(), domain.ItemKey(3))
	require.NoError(t, err)
	assert.True(t, found)
	assert.Zero(t, v)

	env.get(t, "/reserve_product/3", &res)
	assert.Equal(t, map[string]any{"status": statusNotEnoughStock, "itemId": float64(3)}, res)

	env.get(t, "/list_products/3", &detail)
	assert.Equal(t, float64(0), detail["currentQuantity"])
}

func TestUnknownProduct(t *testing.T) {
	env := newTestEnv(t, 50, true)

	for _, path := range []string{"/list_products/99", "/reserve_product/99", "/list_products/abc", "/reserve_product/abc"} {
		var body map[string]any
		assert.Equal(t, http.StatusOK, env.get(t, path, &body), path)
		assert.Equal(t, map[string]any{"status": statusProductNotFound}, body, path)
	}
	_, found, _ := env.store.Get(context.Background(), domain.ItemKey(99))
	assert.False(t, found)
}

func TestCreateNotifications(t *testing.T) {
	env := newTestEnv(t, 50, true)

	resp, err := http.Post(env.srv.URL+"/notifications", "application/json", strings.NewReader(`[
		{"phoneNumber": "4153518743", "message": "This is the code 4321 to verify your account"},
		{"phoneNumber": "4153538781", "message": "This is the code 4562 to verify your account"}
	]`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body struct {
		Status string   `json:"status"`
		JobIDs []string `json:"jobIds"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, statusJobsCreated, body.Status)
	assert.Len(t, body.JobIDs, 2)
	assert.Equal(t, 0, env.queue.Backlog(application.SeatJobType))
}

func TestCreateNotificationsRejectsNonArray(t *testing.T) {
	env := newTestEnv(t, 50, true)

	resp, err := http.Post(env.srv.URL+"/notifications", "application/json", strings.NewReader(`"not an array"`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, map[string]string{"error": "Jobs is not an array"}, body)
}
