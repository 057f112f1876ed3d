package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"bellavita/internal/models"
)

// ErrBookingNotFound is returned when no audit row matches an event id.
var ErrBookingNotFound = errors.New("booking not found")

// RecordCreated inserts an audit row for a calendar event that was actually
// written. INSERT OR IGNORE keeps replays of the same event id harmless.
func (db *DB) RecordCreated(ctx context.Context, event *models.BookingEvent, req models.BookingRequest) error {
	query := `INSERT OR IGNORE INTO bookings (
                event_id, calendar_id, customer_name, phone, party_size,
                start_time, end_time, status, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC()
	_, err := db.db.ExecContext(ctx, query,
		event.EventID,
		event.CalendarID,
		req.CustomerName,
		req.Phone,
		req.PartySize,
		event.Start.UTC(),
		event.End.UTC(),
		models.BookingActive,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to record booking: %w", err)
	}
	return nil
}

// MarkCancelled flips the audit row's status after the calendar delete.
func (db *DB) MarkCancelled(ctx context.Context, eventID string) error {
	query := `UPDATE bookings SET status = ?, updated_at = ? WHERE event_id = ?`

	result, err := db.db.ExecContext(ctx, query, models.BookingCancelled, time.Now().UTC(), eventID)
	if err != nil {
		return fmt.Errorf("failed to mark booking cancelled: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrBookingNotFound
	}
	return nil
}

// GetByEventID returns the audit row for a calendar event id.
func (db *DB) GetByEventID(ctx context.Context, eventID string) (*models.AuditedBooking, error) {
	query := `SELECT id, event_id, calendar_id, customer_name, phone, party_size,
                     start_time, end_time, status, created_at, updated_at
              FROM bookings WHERE event_id = ?`

	var b models.AuditedBooking
	err := db.db.QueryRowContext(ctx, query, eventID).Scan(
		&b.ID,
		&b.EventID,
		&b.CalendarID,
		&b.CustomerName,
		&b.Phone,
		&b.PartySize,
		&b.Start,
		&b.End,
		&b.Status,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &b, nil
}

// ListUpcoming returns active bookings starting at or after from, ordered by
// start time.
func (db *DB) ListUpcoming(ctx context.Context, from time.Time, limit int) ([]*models.AuditedBooking, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, event_id, calendar_id, customer_name, phone, party_size,
                     start_time, end_time, status, created_at, updated_at
              FROM bookings
              WHERE status = ? AND start_time >= ?
              ORDER BY start_time
              LIMIT ?`

	rows, err := db.db.QueryContext(ctx, query, models.BookingActive, from.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming bookings: %w", err)
	}
	defer rows.Close()

	return scanBookings(rows)
}

// ListByPhone returns every booking for a phone number, newest first.
func (db *DB) ListByPhone(ctx context.Context, phone string) ([]*models.AuditedBooking, error) {
	query := `SELECT id, event_id, calendar_id, customer_name, phone, party_size,
                     start_time, end_time, status, created_at, updated_at
              FROM bookings
              WHERE phone = ?
              ORDER BY start_time DESC`

	rows, err := db.db.QueryContext(ctx, query, phone)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings by phone: %w", err)
	}
	defer rows.Close()

	return scanBookings(rows)
}

// ListRange returns bookings of any status whose start falls in [from, to),
// ordered by start time. Used by exports.
func (db *DB) ListRange(ctx context.Context, from, to time.Time) ([]*models.AuditedBooking, error) {
	query := `SELECT id, event_id, calendar_id, customer_name, phone, party_size,
                     start_time, end_time, status, created_at, updated_at
              FROM bookings
              WHERE start_time >= ? AND start_time < ?
              ORDER BY start_time`

	rows, err := db.db.QueryContext(ctx, query, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings in range: %w", err)
	}
	defer rows.Close()

	return scanBookings(rows)
}

func scanBookings(rows *sql.Rows) ([]*models.AuditedBooking, error) {
	var bookings []*models.AuditedBooking
	for rows.Next() {
		var b models.AuditedBooking
		if err := rows.Scan(
			&b.ID,
			&b.EventID,
			&b.CalendarID,
			&b.CustomerName,
			&b.Phone,
			&b.PartySize,
			&b.Start,
			&b.End,
			&b.Status,
			&b.CreatedAt,
			&b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, &b)
	}
	return bookings, rows.Err()
}
