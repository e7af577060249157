// Package export produces XLSX workbooks from stored receipt records.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/scanledger/scanledger/internal/entity"
	"github.com/scanledger/scanledger/internal/store"
)

// Service is a tiny façade over the store that produces XLSX bytes for exports.
type Service struct {
	store  *store.Store
	logger *slog.Logger
}

func NewService(st *store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, logger: logger}
}

// ExportReceiptsXLSX returns an XLSX workbook (as bytes) for the date window.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> all receipts.
func (s *Service) ExportReceiptsXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	// Normalize dates (date-only, UTC)
	var fromDate, toDate time.Time
	if from != nil {
		fromDate = time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	}
	if to != nil {
		toDate = time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	}
	if from != nil && to == nil {
		today := time.Now().UTC()
		toDate = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)
	}
	if to != nil && from == nil {
		fromDate = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)
	}

	recs, err := s.store.ListReceipts(ctx, fromDate, toDate)
	if err != nil {
		return nil, fmt.Errorf("query receipts: %w", err)
	}

	buf, err := buildWorkbook(recs)
	if err != nil {
		return nil, err
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(recs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf, nil
}

func buildWorkbook(recs []entity.ReceiptRecord) ([]byte, error) {
	f := excelize.NewFile()
	const sheet = "Receipts"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{
		"Transaction Date",
		"Vendor",
		"Category",
		"Account",
		"Total",
		"Tax",
		"Payment Method",
		"Confidence",
		"Status",
		"Notes",
		"Source File",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range recs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		if r.Date != nil {
			write(1, r.Date.Format("2006-01-02"))
		} else {
			write(1, "")
		}
		write(2, r.VendorName)
		write(3, string(r.Category))
		write(4, string(r.AccountCode))
		if r.Total != nil {
			write(5, *r.Total)
		}
		if r.Tax != nil {
			write(6, *r.Tax)
		}
		write(7, r.PaymentMethod)
		write(8, fmt.Sprintf("%.2f", r.Confidence))
		write(9, string(r.Status))
		write(10, truncate(strings.Join(r.Notes, "; "), 140))
		write(11, r.SourceFile)

		row++
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "A", 14) // date
	_ = f.SetColWidth(sheet, "B", "B", 28) // vendor
	_ = f.SetColWidth(sheet, "C", "D", 18) // category, account
	_ = f.SetColWidth(sheet, "E", "F", 12) // amounts
	_ = f.SetColWidth(sheet, "J", "J", 48) // notes
	_ = f.SetColWidth(sheet, "K", "K", 60) // path

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
