package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"bellavita/internal/config"
	"bellavita/internal/ledger"
	"bellavita/internal/models"
	"bellavita/internal/whatsapp"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInbound struct {
	mu       sync.Mutex
	messages []whatsapp.InboundMessage
	received chan struct{}
}

func newFakeInbound() *fakeInbound {
	return &fakeInbound{received: make(chan struct{}, 16)}
}

func (f *fakeInbound) HandleInbound(ctx context.Context, msg whatsapp.InboundMessage) {
	f.mu.Lock()
	f.messages = append(f.messages, msg)
	f.mu.Unlock()
	f.received <- struct{}{}
}

type fakeAvailability struct {
	available bool
	slots     []time.Time
}

func (f *fakeAvailability) Resolve(req models.BookingRequest) (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01-02 15:04", req.Date+" "+req.Time, models.UTCPlus4)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, start.Add(2 * time.Hour), nil
}

func (f *fakeAvailability) CheckAvailability(ctx context.Context, calendarID string, start, end time.Time) (*models.AvailabilityResult, error) {
	return &models.AvailabilityResult{Available: f.available}, nil
}

func (f *fakeAvailability) ProposeSlots(ctx context.Context, calendarID string, date time.Time, max int) ([]time.Time, error) {
	return f.slots, nil
}

type fakeAudit struct {
	bookings []*models.AuditedBooking
}

func (f *fakeAudit) RecordCreated(ctx context.Context, event *models.BookingEvent, req models.BookingRequest) error {
	return nil
}
func (f *fakeAudit) MarkCancelled(ctx context.Context, eventID string) error { return nil }
func (f *fakeAudit) GetByEventID(ctx context.Context, eventID string) (*models.AuditedBooking, error) {
	return nil, nil
}
func (f *fakeAudit) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]*models.AuditedBooking, error) {
	return f.bookings, nil
}
func (f *fakeAudit) ListByPhone(ctx context.Context, phone string) ([]*models.AuditedBooking, error) {
	return nil, nil
}

type fakeExporter struct {
	path string
	err  error
}

func (f *fakeExporter) ExportRange(ctx context.Context, from, to time.Time) (string, error) {
	return f.path, f.err
}

type apiTestEnv struct {
	server   *HTTPServer
	inbound  *fakeInbound
	ledger   *ledger.Service
	exporter *fakeExporter
}

func newAPITestEnv(t *testing.T, cfg config.APIConfig) *apiTestEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)
	inbound := newFakeInbound()
	paymentLedger := ledger.NewService(ledger.NewMemoryStore(), nil, "", &logger)
	exporter := &fakeExporter{path: "/tmp/export.xlsx"}

	srv := NewHTTPServer(cfg, HTTPServerDeps{
		VerifyToken:  "verify-secret",
		CalendarID:   "restaurant@example.com",
		Inbound:      inbound,
		Availability: &fakeAvailability{available: true, slots: []time.Time{
			time.Date(2026, 9, 10, 18, 0, 0, 0, models.UTCPlus4),
			time.Date(2026, 9, 10, 18, 30, 0, 0, models.UTCPlus4),
		}},
		Payments: paymentLedger,
		Audit: &fakeAudit{bookings: []*models.AuditedBooking{
			{EventID: "evt-1", CustomerName: "Elena", PartySize: 4},
		}},
		Exporter: exporter,
	}, &logger)

	return &apiTestEnv{server: srv, inbound: inbound, ledger: paymentLedger, exporter: exporter}
}

func (e *apiTestEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func openConfig() config.APIConfig {
	return config.APIConfig{}
}

func TestWebhookVerification(t *testing.T) {
	env := newAPITestEnv(t, openConfig())

	rec := env.do(httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=verify-secret&hub.challenge=42", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", rec.Body.String())

	rec = env.do(httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=42", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWebhookDispatchesInbound(t *testing.T) {
	env := newAPITestEnv(t, openConfig())

	payload := `{
		"object": "whatsapp_business_account",
		"entry": [{"changes": [{"field": "messages", "value": {
			"contacts": [{"profile": {"name": "Elena"}, "wa_id": "79991234567"}],
			"messages": [{"from": "79991234567", "id": "wamid.1", "timestamp": "1756500000",
				"type": "text", "text": {"body": "book a table for 2"}}]
		}}]}]
	}`

	rec := env.do(httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(payload)))
	assert.Equal(t, http.StatusOK, rec.Code)

	select {
	case <-env.inbound.received:
	case <-time.After(2 * time.Second):
		t.Fatal("inbound message was not dispatched")
	}

	env.inbound.mu.Lock()
	defer env.inbound.mu.Unlock()
	require.Len(t, env.inbound.messages, 1)
	assert.Equal(t, "79991234567", env.inbound.messages[0].From)
	assert.Equal(t, "book a table for 2", env.inbound.messages[0].Text)
}

func TestWebhookMalformedBodyStill200(t *testing.T) {
	env := newAPITestEnv(t, openConfig())
	rec := env.do(httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader("{not json")))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAvailabilityForSlot(t *testing.T) {
	env := newAPITestEnv(t, openConfig())

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/availability?date=2026-09-10&time=19:00", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, true, resp["available"])
}

func TestAvailabilityFreeSlots(t *testing.T) {
	env := newAPITestEnv(t, openConfig())

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/availability?date=2026-09-10", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		FreeSlots []string `json:"free_slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"18:00", "18:30"}, resp.FreeSlots)
}

func TestAvailabilityValidation(t *testing.T) {
	env := newAPITestEnv(t, openConfig())

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/availability", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/availability?date=10.09.2026", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPaymentLifecycleOverAPI(t *testing.T) {
	env := newAPITestEnv(t, openConfig())
	ctx := context.Background()

	_, err := env.ledger.RequestPayment(ctx, 20, "evt-9", "Deposit")
	require.NoError(t, err)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/payments/evt-9", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var record models.PaymentRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, models.PaymentPending, record.Status)

	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/v1/payments/evt-9/approve", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &record))
	assert.Equal(t, models.PaymentConfirmed, record.Status)
	assert.NotEmpty(t, record.TxHash)

	// A confirmed deposit cannot be cancelled afterwards.
	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/v1/payments/evt-9/cancel", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestPaymentNotFound(t *testing.T) {
	env := newAPITestEnv(t, openConfig())
	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/payments/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookingsListing(t *testing.T) {
	env := newAPITestEnv(t, openConfig())

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/bookings?limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Bookings []*models.AuditedBooking `json:"bookings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Bookings, 1)
	assert.Equal(t, "evt-1", resp.Bookings[0].EventID)
}

func TestExportEndpoint(t *testing.T) {
	env := newAPITestEnv(t, openConfig())

	body := strings.NewReader(`{"from": "2026-09-01", "to": "2026-09-30"}`)
	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/v1/exports", body))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "/tmp/export.xlsx", resp["path"])

	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/v1/exports",
		strings.NewReader(`{"from": "2026-09-30", "to": "2026-09-01"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func authedConfig() config.APIConfig {
	cfg := config.APIConfig{}
	cfg.Auth.Enabled = true
	cfg.Auth.APIKeys = []config.APIClientKey{
		{Key: "manager-key", Extra: "manager-extra", Name: "manager",
			Permissions: []string{"read:availability", "read:bookings", "read:payments", "write:payments", "write:exports"}},
		{Key: "readonly-key", Extra: "readonly-extra", Name: "dashboard",
			Permissions: []string{"read:availability"}},
	}
	return cfg
}

func TestAuthRequiredForAPI(t *testing.T) {
	env := newAPITestEnv(t, authedConfig())

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	req.Header.Set("x-api-key", "manager-key")
	req.Header.Set("x-api-extra", "wrong")
	assert.Equal(t, http.StatusUnauthorized, env.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	req.Header.Set("x-api-key", "manager-key")
	req.Header.Set("x-api-extra", "manager-extra")
	assert.Equal(t, http.StatusOK, env.do(req).Code)
}

func TestAuthPermissions(t *testing.T) {
	env := newAPITestEnv(t, authedConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/availability?date=2026-09-10&time=19:00", nil)
	req.Header.Set("x-api-key", "readonly-key")
	req.Header.Set("x-api-extra", "readonly-extra")
	assert.Equal(t, http.StatusOK, env.do(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/api/v1/payments/evt-1/approve", nil)
	req.Header.Set("x-api-key", "readonly-key")
	req.Header.Set("x-api-extra", "readonly-extra")
	assert.Equal(t, http.StatusForbidden, env.do(req).Code)
}

func TestWebhookBypassesAuth(t *testing.T) {
	env := newAPITestEnv(t, authedConfig())

	rec := env.do(httptest.NewRequest(http.MethodGet,
		"/webhook?hub.mode=subscribe&hub.verify_token=verify-secret&hub.challenge=ok", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitPerKey(t *testing.T) {
	cfg := config.APIConfig{}
	cfg.RateLimit.RPS = 1
	cfg.RateLimit.Burst = 2
	env := newAPITestEnv(t, cfg)

	var lastCode int
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
		req.Header.Set("x-api-key", fmt.Sprintf("key-%d", 0))
		lastCode = env.do(req).Code
	}
	assert.Equal(t, http.StatusTooManyRequests, lastCode)

	// A different key gets its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/bookings", nil)
	req.Header.Set("x-api-key", "key-1")
	assert.Equal(t, http.StatusOK, env.do(req).Code)
}
