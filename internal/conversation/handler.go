package conversation

import (
	"context"
	"errors"
	"time"

	"bellavita/internal/config"
	"bellavita/internal/domain"
	"bellavita/internal/guard"
	"bellavita/internal/intent"
	"bellavita/internal/kb"
	"bellavita/internal/ledger"
	"bellavita/internal/models"
	"bellavita/internal/service"
	"bellavita/internal/whatsapp"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Handler turns inbound WhatsApp messages into guard-driven booking flows.
// One guard instance is created per message; cross-message duplicate
// confirmations are absorbed by the session's pending booking id.
type Handler struct {
	config    *config.Config
	sessions  *service.SessionService
	bookings  *service.BookingService
	ledger    domain.Ledger
	messenger domain.Messenger
	parser    *intent.Parser
	knowledge *kb.Store
	logger    zerolog.Logger

	managers  map[string]bool
	blacklist map[string]bool

	// newGuard is swapped in tests.
	newGuard func() *guard.Guard
}

func NewHandler(
	cfg *config.Config,
	sessions *service.SessionService,
	bookings *service.BookingService,
	paymentLedger domain.Ledger,
	messenger domain.Messenger,
	knowledge *kb.Store,
	logger *zerolog.Logger,
) *Handler {
	var l zerolog.Logger
	if logger != nil {
		l = logger.With().Str("component", "conversation").Logger()
	}

	managers := make(map[string]bool, len(cfg.Managers))
	for _, m := range cfg.Managers {
		managers[m] = true
	}
	blacklist := make(map[string]bool, len(cfg.Blacklist))
	for _, b := range cfg.Blacklist {
		blacklist[b] = true
	}

	h := &Handler{
		config:    cfg,
		sessions:  sessions,
		bookings:  bookings,
		ledger:    paymentLedger,
		messenger: messenger,
		parser:    intent.NewParser(),
		knowledge: knowledge,
		logger:    l,
		managers:  managers,
		blacklist: blacklist,
	}
	h.newGuard = func() *guard.Guard {
		timeout := time.Duration(cfg.Calendar.TimeoutSeconds) * time.Second
		return guard.New(bookings, paymentLedger, cfg.Booking.DepositPerGuest, timeout, &l)
	}
	return h
}

// HandleInbound processes one user message end to end and sends the reply.
func (h *Handler) HandleInbound(ctx context.Context, msg whatsapp.InboundMessage) {
	if h.blacklist[msg.From] {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	requestID := uuid.NewString()
	l := h.logger.With().Str("request_id", requestID).Str("from", msg.From).Logger()

	defer func() {
		if r := recover(); r != nil {
			l.Error().Interface("panic", r).Msg("recovered from panic in message handler")
		}
	}()

	if !h.managers[msg.From] {
		allowed, err := h.sessions.CheckRateLimit(ctx, msg.From, models.RateLimitMessages, models.RateLimitWindow)
		if err != nil {
			l.Error().Err(err).Msg("rate limit check failed")
		} else if !allowed {
			l.Warn().Msg("rate limit exceeded")
			h.reply(ctx, msg.From, msgRateLimited)
			return
		}
	}

	if msg.MessageID != "" {
		if err := h.messenger.MarkRead(ctx, msg.MessageID, true); err != nil {
			l.Debug().Err(err).Msg("mark read failed")
		}
	}

	session, err := h.sessions.GetOrCreate(ctx, msg.From)
	if err != nil {
		l.Error().Err(err).Msg("session load failed")
		h.reply(ctx, msg.From, msgInternalError)
		return
	}

	parsed := h.parser.Parse(msg.Text)
	if parsed.Draft.Name == "" && session.Draft.Name == "" && msg.Name != "" {
		// Profile name fills the customer-name slot until the user states one.
		parsed.Draft.Name = msg.Name
	}
	l.Debug().Str("kind", string(parsed.Kind)).Msg("intent parsed")

	switch parsed.Kind {
	case intent.KindHelp:
		h.handleHelp(ctx, msg.From, msg.Text)
	case intent.KindStatus:
		h.handleStatus(ctx, session)
	case intent.KindCancel:
		h.handleCancel(ctx, session)
	case intent.KindConfirm:
		h.handleConfirm(ctx, session, parsed)
	case intent.KindBook:
		h.handleBooking(ctx, session, parsed)
	default:
		h.reply(ctx, msg.From, msgUnrecognized)
	}
}

func (h *Handler) handleHelp(ctx context.Context, to, text string) {
	if h.knowledge != nil {
		if doc := h.knowledge.Best(text); doc != nil {
			h.reply(ctx, to, doc.Answer)
			return
		}
	}
	h.reply(ctx, to, msgHelp)
}

func (h *Handler) handleStatus(ctx context.Context, session *models.Session) {
	if session.PendingBookingID == "" {
		h.reply(ctx, session.ActorID, msgNoPendingBooking)
		return
	}

	outcome, err := h.newGuard().CheckApproval(ctx, session.PendingBookingID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			h.reply(ctx, session.ActorID, msgNoPendingBooking)
			return
		}
		h.logger.Error().Err(err).Msg("status check failed")
		h.reply(ctx, session.ActorID, msgInternalError)
		return
	}
	h.reply(ctx, session.ActorID, renderApproval(outcome))

	if outcome.State == guard.StateConfirmed {
		h.finishSession(ctx, session)
	}
}

func (h *Handler) handleCancel(ctx context.Context, session *models.Session) {
	bookingID := session.PendingBookingID
	if bookingID == "" {
		h.reply(ctx, session.ActorID, msgNothingToCancel)
		return
	}

	if err := h.newGuard().CancelBooking(ctx, h.calendarID(), bookingID); err != nil {
		h.logger.Error().Err(err).Str("booking_id", bookingID).Msg("cancellation failed")
		h.reply(ctx, session.ActorID, msgCancelFailed)
		return
	}

	h.reply(ctx, session.ActorID, msgCancelled)
	h.finishSession(ctx, session)
}

// handleConfirm covers "yes, book it" style messages. If a booking is
// already pending payment the message is a duplicate and only the status is
// reported, never a second calendar write.
func (h *Handler) handleConfirm(ctx context.Context, session *models.Session, parsed intent.Intent) {
	if session.PendingBookingID != "" {
		h.handleStatus(ctx, session)
		return
	}
	h.handleBooking(ctx, session, parsed)
}

func (h *Handler) handleBooking(ctx context.Context, session *models.Session, parsed intent.Intent) {
	session.Draft.Merge(parsed.Draft)
	if err := h.sessions.Save(ctx, session); err != nil {
		h.logger.Error().Err(err).Msg("session save failed")
	}

	req := session.Draft.Request(session.ActorID, h.calendarID())

	outcome, err := h.newGuard().Run(ctx, req)
	if err != nil {
		h.logger.Error().Err(err).Msg("guard run failed")
	}
	if outcome == nil {
		h.reply(ctx, session.ActorID, msgInternalError)
		return
	}

	switch outcome.State {
	case guard.StateCollecting:
		h.reply(ctx, session.ActorID, renderMissing(outcome.Missing))
	case guard.StateDeclined:
		h.reply(ctx, session.ActorID, renderDeclined(outcome))
	case guard.StateFailed:
		h.reply(ctx, session.ActorID, renderFailed(outcome))
	case guard.StatePaymentPending:
		session.Step = models.StepAwaitingApproval
		session.PendingBookingID = outcome.Event.EventID
		if err := h.sessions.Save(ctx, session); err != nil {
			h.logger.Error().Err(err).Msg("session save failed")
		}
		h.reply(ctx, session.ActorID, renderPending(outcome))
	default:
		h.reply(ctx, session.ActorID, msgInternalError)
	}
}

func (h *Handler) finishSession(ctx context.Context, session *models.Session) {
	if err := h.sessions.Clear(ctx, session.ActorID); err != nil {
		h.logger.Error().Err(err).Msg("session clear failed")
	}
}

func (h *Handler) calendarID() string {
	return h.config.Calendar.ID
}

func (h *Handler) reply(ctx context.Context, to, body string) {
	if _, err := h.messenger.SendText(ctx, to, body); err != nil {
		h.logger.Error().Err(err).Str("to", to).Msg("send failed")
	}
}
