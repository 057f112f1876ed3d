package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"bellavita/internal/api"
	"bellavita/internal/auth"
	"bellavita/internal/calendar"
	"bellavita/internal/config"
	"bellavita/internal/conversation"
	"bellavita/internal/database"
	"bellavita/internal/domain"
	"bellavita/internal/events"
	"bellavita/internal/export"
	"bellavita/internal/kb"
	"bellavita/internal/ledger"
	"bellavita/internal/logging"
	"bellavita/internal/metrics"
	"bellavita/internal/models"
	"bellavita/internal/repository"
	"bellavita/internal/service"
	"bellavita/internal/whatsapp"
	"bellavita/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	metrics.Register()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("database init failed")
		return err
	}
	defer db.Close()

	redisClient, sessionService := initSessionService(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	calendarBackend, err := initCalendar(ctx, cfg, &logger)
	if err != nil {
		return err
	}

	eventBus := events.NewEventBus()

	ledgerStore, err := ledger.NewFileStore(cfg.Ledger.Path)
	if err != nil {
		logger.Error().Err(err).Msg("ledger store init failed")
		return err
	}
	paymentLedger := ledger.NewService(ledgerStore, eventBus, cfg.Ledger.PaymentURL, &logger)

	sweepInterval := time.Duration(cfg.Ledger.SweepIntervalSeconds) * time.Second
	expiryWorker := worker.NewExpiryWorker(paymentLedger, sweepInterval, &logger)
	go expiryWorker.Start(ctx)

	hours, err := config.LoadHoursFile(cfg.Booking.HoursFile)
	if err != nil {
		logger.Error().Err(err).Msg("hours file load failed")
		return err
	}

	bookingService := service.NewBookingService(calendarBackend, db, eventBus, hours, cfg.Booking, &logger)

	messenger := whatsapp.NewClient(cfg.WhatsApp, auth.FromConfig(cfg.WhatsApp), &logger)

	knowledge, err := initKnowledgeBase(cfg, &logger)
	if err != nil {
		return err
	}

	handler := conversation.NewHandler(cfg, sessionService, bookingService, paymentLedger, messenger, knowledge, &logger)

	subscribePaymentEvents(ctx, eventBus, cfg, messenger, &logger)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	if cfg.Monitoring.PrometheusEnabled {
		go serveMetrics(cfg.Monitoring.PrometheusPort, &logger)
	}

	exporter := export.NewExporter(db, ledgerStore, cfg.Exports.Path, &logger)

	apiServer := api.NewHTTPServer(cfg.API, api.HTTPServerDeps{
		VerifyToken:  cfg.WhatsApp.VerifyToken,
		CalendarID:   cfg.Calendar.ID,
		Inbound:      handler,
		Availability: bookingService,
		Payments:     paymentLedger,
		Audit:        db,
		Exporter:     exporter,
	}, &logger)

	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error().Err(err).Msg("api server error")
			stop()
		}
	}()

	logger.Info().Str("version", cfg.App.Version).Msg("booking assistant started")
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api shutdown error")
	}

	logger.Info().Msg("shutdown complete")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "agent-main").Logger()

	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg == nil {
		return os.ErrInvalid
	}
	for _, dir := range []string{
		filepath.Dir(cfg.Database.Path),
		cfg.Ledger.Path,
		cfg.Exports.Path,
	} {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Error().Err(err).Str("dir", dir).Msg("directory create failed")
			return err
		}
	}
	return nil
}

func initSessionService(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, *service.SessionService) {
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = repository.NewRedisClient(cfg.Redis)
		if errPing := repository.Ping(ctx, redisClient); errPing != nil {
			logger.Warn().Err(errPing).Msg("redis unavailable, sessions fall back to memory")
		}
	}

	primary := repository.NewRedisSessionRepository(redisClient, models.DefaultSessionTTL)
	fallback := repository.NewMemorySessionRepository(models.DefaultSessionTTL)
	sessionRepo := repository.NewFailoverSessionRepository(primary, fallback, logger)
	return redisClient, service.NewSessionService(sessionRepo, logger)
}

func initCalendar(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.Calendar, error) {
	timeout := time.Duration(cfg.Calendar.TimeoutSeconds) * time.Second

	switch cfg.Calendar.Backend {
	case "google":
		client, err := calendar.NewGoogleClient(ctx, cfg.Calendar.CredentialsFile)
		if err != nil {
			logger.Error().Err(err).Msg("google calendar init failed")
			return nil, err
		}
		logger.Info().Msg("using google calendar backend")
		return client, nil
	default:
		logger.Info().Str("url", cfg.Calendar.ServiceURL).Msg("using http calendar backend")
		return calendar.NewClient(cfg.Calendar.ServiceURL, timeout, logger), nil
	}
}

func initKnowledgeBase(cfg *config.Config, logger *zerolog.Logger) (*kb.Store, error) {
	if cfg.KB.Path == "" {
		return nil, nil
	}
	store, err := kb.Load(cfg.KB.Path)
	if err != nil {
		logger.Error().Err(err).Str("path", cfg.KB.Path).Msg("knowledge base load failed")
		return nil, err
	}
	logger.Info().Int("documents", store.Len()).Msg("knowledge base loaded")
	return store, nil
}

// subscribePaymentEvents notifies managers when a deposit is requested and
// tells the guest once their payment settles.
func subscribePaymentEvents(ctx context.Context, bus *events.EventBus, cfg *config.Config, messenger domain.Messenger, logger *zerolog.Logger) {
	decode := func(ev *events.Event) (events.PaymentEventPayload, error) {
		var payload events.PaymentEventPayload
		err := json.Unmarshal(ev.Payload, &payload)
		return payload, err
	}

	bus.Subscribe(events.EventPaymentRequested, func(ev *events.Event) error {
		payload, err := decode(ev)
		if err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		text := fmt.Sprintf("Deposit requested: booking %s, %.0f %s", payload.BookingID, payload.Amount, payload.Currency)
		for _, manager := range cfg.Managers {
			if _, err := messenger.SendText(ctx, manager, text); err != nil {
				logger.Error().Err(err).Str("manager", manager).Msg("manager notify failed")
			}
		}
		return nil
	})

	bus.Subscribe(events.EventPaymentConfirmed, func(ev *events.Event) error {
		payload, err := decode(ev)
		if err != nil {
			logger.Error().Err(err).Str("event", ev.Type).Msg("event bus: decode payload")
			return nil
		}
		logger.Info().Str("booking_id", payload.BookingID).Str("tx_hash", payload.TxHash).Msg("payment confirmed")
		return nil
	})
}

func serveMetrics(port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.Info().Str("addr", addr).Msg("metrics listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
