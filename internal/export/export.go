package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"bellavita/internal/domain"
	"bellavita/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// BookingLister is the audit query surface exports need.
type BookingLister interface {
	ListRange(ctx context.Context, from, to time.Time) ([]*models.AuditedBooking, error)
}

// Exporter builds Excel reports over the booking audit and the payment
// ledger.
type Exporter struct {
	bookings BookingLister
	ledger   domain.LedgerStore
	dir      string
	logger   zerolog.Logger
}

func NewExporter(bookings BookingLister, ledger domain.LedgerStore, dir string, logger *zerolog.Logger) *Exporter {
	var l zerolog.Logger
	if logger != nil {
		l = logger.With().Str("component", "export").Logger()
	}
	return &Exporter{bookings: bookings, ledger: ledger, dir: dir, logger: l}
}

// ExportRange writes a workbook with a bookings sheet and a payments sheet
// for the window, and returns the file path.
func (e *Exporter) ExportRange(ctx context.Context, from, to time.Time) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	bookings, err := e.bookings.ListRange(ctx, from, to)
	if err != nil {
		return "", fmt.Errorf("error listing bookings: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := e.writeBookingsSheet(f, bookings); err != nil {
		return "", err
	}
	if err := e.writePaymentsSheet(ctx, f, bookings); err != nil {
		return "", err
	}
	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("bookings_%s_to_%s.xlsx",
		from.Format("2006-01-02"),
		to.Format("2006-01-02"))
	filePath := filepath.Join(e.dir, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}

	e.logger.Info().Str("file_path", filePath).Int("bookings", len(bookings)).Msg("export created")
	return filePath, nil
}

func (e *Exporter) writeBookingsSheet(f *excelize.File, bookings []*models.AuditedBooking) error {
	const sheet = "Bookings"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headers := []string{"Event ID", "Customer", "Phone", "Party size", "Start", "End", "Status"}
	writeHeaderRow(f, sheet, headers)

	for i, b := range bookings {
		row := i + 2
		values := []any{
			b.EventID,
			b.CustomerName,
			b.Phone,
			b.PartySize,
			b.Start.In(models.UTCPlus4).Format("02.01.2006 15:04"),
			b.End.In(models.UTCPlus4).Format("02.01.2006 15:04"),
			b.Status,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 30)
	_ = f.SetColWidth(sheet, "B", "G", 20)
	return nil
}

func (e *Exporter) writePaymentsSheet(ctx context.Context, f *excelize.File, bookings []*models.AuditedBooking) error {
	const sheet = "Payments"
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}

	headers := []string{"Booking ID", "Amount", "Currency", "Status", "Created", "Tx hash"}
	writeHeaderRow(f, sheet, headers)

	row := 2
	for _, b := range bookings {
		record, err := e.ledger.Get(ctx, b.EventID)
		if err != nil {
			// Bookings without a payment record are still exported above.
			continue
		}
		values := []any{
			record.BookingID,
			record.Amount,
			record.Currency,
			record.Status,
			record.CreatedAt.In(models.UTCPlus4).Format("02.01.2006 15:04"),
			record.TxHash,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 30)
	_ = f.SetColWidth(sheet, "B", "F", 18)
	return nil
}

func writeHeaderRow(f *excelize.File, sheet string, headers []string) {
	style, _ := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
		_ = f.SetCellStyle(sheet, cell, cell, style)
	}
}
