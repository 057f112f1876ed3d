// Command import_bookings backfills the local audit database from a YAML
// dump of historical reservations, for migrations off the old paper log.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"bellavita/internal/database"
	"bellavita/internal/models"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

type legacyBooking struct {
	EventID    string `yaml:"event_id"`
	Customer   string `yaml:"customer"`
	Phone      string `yaml:"phone"`
	PartySize  int    `yaml:"party_size"`
	Date       string `yaml:"date"`
	Time       string `yaml:"time"`
	CalendarID string `yaml:"calendar_id"`
}

type importFile struct {
	Bookings []legacyBooking `yaml:"bookings"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	var (
		inputPath = flag.String("input", "bookings.yaml", "path to the legacy bookings yaml")
		dbPath    = flag.String("db", "./data/bookings.db", "path to sqlite db")
	)
	flag.Parse()

	data, err := os.ReadFile(*inputPath)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	var file importFile
	if err = yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}
	if len(file.Bookings) == 0 {
		return fmt.Errorf("no bookings in %s", *inputPath)
	}

	db, err := database.NewDB(*dbPath, &logger)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	imported := 0
	skipped := 0
	for _, b := range file.Bookings {
		if b.EventID == "" {
			logger.Warn().Str("customer", b.Customer).Msg("skipping row without event_id")
			skipped++
			continue
		}

		start, err := time.ParseInLocation("2006-01-02 15:04", b.Date+" "+b.Time, models.UTCPlus4)
		if err != nil {
			logger.Warn().Err(err).Str("event_id", b.EventID).Msg("skipping row with bad date/time")
			skipped++
			continue
		}

		event := &models.BookingEvent{
			EventID:    b.EventID,
			CalendarID: b.CalendarID,
			Summary:    fmt.Sprintf("Restaurant Booking - %s (%d guests)", b.Customer, b.PartySize),
			Start:      start,
			End:        start.Add(models.DefaultBookingDuration),
		}
		req := models.BookingRequest{
			Date:         b.Date,
			Time:         b.Time,
			PartySize:    b.PartySize,
			CustomerName: b.Customer,
			Phone:        b.Phone,
			CalendarID:   b.CalendarID,
		}

		if err := db.RecordCreated(ctx, event, req); err != nil {
			logger.Error().Err(err).Str("event_id", b.EventID).Msg("import failed")
			skipped++
			continue
		}
		imported++
	}

	logger.Info().Int("imported", imported).Int("skipped", skipped).Msg("import finished")
	return nil
}
