package export

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/scanledger/scanledger/constants"
	"github.com/scanledger/scanledger/internal/entity"
	"github.com/scanledger/scanledger/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.Store) {
	t.Helper()
	st, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewService(st, nil), st
}

func insertReceipt(t *testing.T, st *store.Store, vendor string, day time.Time, total float64) {
	t.Helper()
	rec := entity.ReceiptRecord{
		ID:          uuid.New(),
		Date:        &day,
		VendorName:  vendor,
		Total:       &total,
		Category:    constants.Food,
		AccountCode: constants.MiscExpense,
		Confidence:  0.9,
		Status:      constants.StatusProcessed,
		SourceFile:  vendor + ".pdf",
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, st.InsertReceipt(context.Background(), &rec))
}

func TestExportReceiptsXLSX(t *testing.T) {
	svc, st := newTestService(t)
	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC)
	insertReceipt(t, st, "vendor-a", jan, 1100)
	insertReceipt(t, st, "vendor-b", feb, 450)

	data, err := svc.ExportReceiptsXLSX(context.Background(), nil, nil)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Receipts")
	require.NoError(t, err)
	require.Len(t, rows, 3) // header plus two records

	assert.Equal(t, "Transaction Date", rows[0][0])
	assert.Equal(t, "Vendor", rows[0][1])

	// ListReceipts orders newest first
	assert.Equal(t, "2024-02-03", rows[1][0])
	assert.Equal(t, "vendor-b", rows[1][1])
	assert.Equal(t, "vendor-a", rows[2][1])
}

func TestExportReceiptsXLSXDateWindow(t *testing.T) {
	svc, st := newTestService(t)
	insertReceipt(t, st, "early", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), 100)
	insertReceipt(t, st, "late", time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC), 200)

	to := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	data, err := svc.ExportReceiptsXLSX(context.Background(), nil, &to)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Receipts")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "early", rows[1][1])
}

func TestExportReceiptsXLSXEmptyStore(t *testing.T) {
	svc, _ := newTestService(t)

	data, err := svc.ExportReceiptsXLSX(context.Background(), nil, nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Receipts")
	require.NoError(t, err)
	require.Len(t, rows, 1) // header only
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	long := truncate("abcdefghij", 5)
	assert.Equal(t, 5, len([]rune(long)))
	assert.Contains(t, long, "…")
}
