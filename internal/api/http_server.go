package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bellavita/internal/config"
	"bellavita/internal/domain"
	"bellavita/internal/ledger"
	"bellavita/internal/metrics"
	"bellavita/internal/models"
	"bellavita/internal/whatsapp"

	"github.com/rs/zerolog"
)

// InboundHandler consumes parsed webhook messages. Implemented by the
// conversation handler.
type InboundHandler interface {
	HandleInbound(ctx context.Context, msg whatsapp.InboundMessage)
}

// AvailabilityChecker is the slice of the booking service the API needs.
type AvailabilityChecker interface {
	Resolve(req models.BookingRequest) (time.Time, time.Time, error)
	CheckAvailability(ctx context.Context, calendarID string, start, end time.Time) (*models.AvailabilityResult, error)
	ProposeSlots(ctx context.Context, calendarID string, date time.Time, max int) ([]time.Time, error)
}

// RangeExporter produces spreadsheet exports for a date range.
type RangeExporter interface {
	ExportRange(ctx context.Context, from, to time.Time) (string, error)
}

// HTTPServer exposes the webhook endpoint for WhatsApp plus a small
// manager-facing API for payments, bookings and exports.
type HTTPServer struct {
	cfg         config.APIConfig
	verifyToken string
	calendarID  string

	inbound      InboundHandler
	availability AvailabilityChecker
	payments     domain.Ledger
	audit        domain.BookingAudit
	exporter     RangeExporter

	auth   *HTTPAuth
	server *http.Server
	logger zerolog.Logger
}

type HTTPServerDeps struct {
	VerifyToken  string
	CalendarID   string
	Inbound      InboundHandler
	Availability AvailabilityChecker
	Payments     domain.Ledger
	Audit        domain.BookingAudit
	Exporter     RangeExporter
}

func NewHTTPServer(cfg config.APIConfig, deps HTTPServerDeps, logger *zerolog.Logger) *HTTPServer {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "api").Logger()
	}

	srv := &HTTPServer{
		cfg:          cfg,
		verifyToken:  deps.VerifyToken,
		calendarID:   deps.CalendarID,
		inbound:      deps.Inbound,
		availability: deps.Availability,
		payments:     deps.Payments,
		audit:        deps.Audit,
		exporter:     deps.Exporter,
		auth:         NewHTTPAuth(cfg),
		logger:       l,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", srv.handleWebhook)
	mux.HandleFunc("/healthz", srv.handleHealth)
	mux.HandleFunc("/api/v1/availability", srv.handleAvailability)
	mux.HandleFunc("/api/v1/bookings", srv.handleBookings)
	mux.HandleFunc("/api/v1/payments/", srv.handlePayments)
	mux.HandleFunc("/api/v1/exports", srv.handleExport)

	srv.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           srv.loggingMiddleware(srv.auth.Wrap(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}
	return srv
}

func (s *HTTPServer) Start() error {
	if s.server == nil {
		return fmt.Errorf("http server is not initialized")
	}
	s.logger.Info().Str("addr", s.server.Addr).Msg("http api listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Handler returns the configured handler chain, for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.server.Handler
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleWebhook serves Meta's subscription handshake on GET and inbound
// message notifications on POST. The Cloud API retries deliveries that don't
// get a 200 quickly, so processing happens off the request goroutine.
func (s *HTTPServer) handleWebhook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		q := r.URL.Query()
		if q.Get("hub.mode") == "subscribe" && q.Get("hub.verify_token") == s.verifyToken {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(q.Get("hub.challenge")))
			return
		}
		writeError(w, http.StatusForbidden, "verification failed")

	case http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
		if err != nil {
			writeError(w, http.StatusBadRequest, "unreadable body")
			return
		}

		messages, err := whatsapp.ParseWebhook(body)
		if err != nil {
			s.logger.Warn().Err(err).Msg("webhook parse error")
			// Still 200: Meta re-delivers on errors and the payload won't
			// get any more parseable.
			w.WriteHeader(http.StatusOK)
			return
		}

		for _, msg := range messages {
			go s.inbound.HandleInbound(context.Background(), msg)
		}
		w.WriteHeader(http.StatusOK)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	dateStr := strings.TrimSpace(q.Get("date"))
	if dateStr == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}
	if _, err := time.Parse("2006-01-02", dateStr); err != nil {
		writeError(w, http.StatusBadRequest, "invalid date format; expected YYYY-MM-DD")
		return
	}

	timeStr := strings.TrimSpace(q.Get("time"))
	if timeStr == "" {
		// No specific time: list free slots for the whole day.
		date, _ := time.ParseInLocation("2006-01-02", dateStr, models.UTCPlus4)
		slots, err := s.availability.ProposeSlots(r.Context(), s.calendarID, date, 0)
		if err != nil {
			writeError(w, http.StatusBadGateway, "calendar is unavailable")
			return
		}
		out := make([]string, 0, len(slots))
		for _, slot := range slots {
			out = append(out, slot.In(models.UTCPlus4).Format("15:04"))
		}
		writeJSON(w, http.StatusOK, map[string]any{"date": dateStr, "free_slots": out})
		return
	}

	req := models.BookingRequest{
		Date:         dateStr,
		Time:         timeStr,
		PartySize:    1,
		CustomerName: "availability probe",
		CalendarID:   s.calendarID,
	}
	start, end, err := s.availability.Resolve(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.availability.CheckAvailability(r.Context(), s.calendarID, start, end)
	if err != nil {
		writeError(w, http.StatusBadGateway, "calendar is unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":      dateStr,
		"time":      timeStr,
		"available": result.Available,
		"conflicts": len(result.Conflicts),
	})
}

func (s *HTTPServer) handleBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	from := time.Now().UTC()
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid from date; expected YYYY-MM-DD")
			return
		}
		from = parsed
	}

	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	bookings, err := s.audit.ListUpcoming(r.Context(), from, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

// handlePayments routes /api/v1/payments/{id} and its /approve and /cancel
// actions. Approvals normally come from the payment provider callback; this
// endpoint lets managers settle a deposit by hand.
func (s *HTTPServer) handlePayments(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/payments/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "payment id is required")
		return
	}
	bookingID := parts[0]

	var (
		record *models.PaymentRecord
		err    error
	)
	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		record, err = s.payments.CheckStatus(r.Context(), bookingID)
	case len(parts) == 2 && parts[1] == "approve" && r.Method == http.MethodPost:
		record, err = s.payments.Approve(r.Context(), bookingID)
	case len(parts) == 2 && parts[1] == "cancel" && r.Method == http.MethodPost:
		record, err = s.payments.Cancel(r.Context(), bookingID)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrNotFound):
			writeError(w, http.StatusNotFound, "payment not found")
		case errors.Is(err, ledger.ErrAlreadyConfirmed), errors.Is(err, ledger.ErrAlreadyCancelled):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "payment operation failed")
		}
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	type request struct {
		From string `json:"from"`
		To   string `json:"to"`
	}
	var body request
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	from, err := time.Parse("2006-01-02", strings.TrimSpace(body.From))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid from date; expected YYYY-MM-DD")
		return
	}
	to, err := time.Parse("2006-01-02", strings.TrimSpace(body.To))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid to date; expected YYYY-MM-DD")
		return
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to must not be before from")
		return
	}

	path, err := s.exporter.ExportRange(r.Context(), from, to.AddDate(0, 0, 1))
	if err != nil {
		s.logger.Error().Err(err).Msg("export failed")
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": path})
}

func (s *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)

		metrics.IncHTTP(r.URL.Path)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", recorder.status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
