package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bellavita/internal/models"
)

// FileStore persists one JSON file per booking id under a directory,
// mirroring the object-store layout payments/<booking_id>.json.
type FileStore struct {
	dir string
}

// NewFileStore creates the payments directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create ledger directory: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(bookingID string) string {
	// Event ids are opaque backend strings; keep them filesystem-safe.
	safe := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':':
			return '_'
		}
		return r
	}, bookingID)
	return filepath.Join(s.dir, safe+".json")
}

func (s *FileStore) Get(ctx context.Context, bookingID string) (*models.PaymentRecord, error) {
	data, err := os.ReadFile(s.path(bookingID))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read payment record: %w", err)
	}

	var record models.PaymentRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("decode payment record %s: %w", bookingID, err)
	}
	return &record, nil
}

func (s *FileStore) Put(ctx context.Context, record *models.PaymentRecord) error {
	if record.BookingID == "" {
		return fmt.Errorf("payment record has no booking id")
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode payment record: %w", err)
	}

	// Write-then-rename keeps readers from ever seeing a partial record.
	tmp, err := os.CreateTemp(s.dir, ".payment-*")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write payment record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close payment record: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path(record.BookingID)); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("store payment record: %w", err)
	}
	return nil
}

func (s *FileStore) List(ctx context.Context) ([]*models.PaymentRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list ledger directory: %w", err)
	}

	records := make([]*models.PaymentRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read payment record %s: %w", entry.Name(), err)
		}
		var record models.PaymentRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("decode payment record %s: %w", entry.Name(), err)
		}
		records = append(records, &record)
	}
	return records, nil
}
