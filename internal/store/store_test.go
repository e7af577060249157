package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scanledger/scanledger/constants"
	"github.com/scanledger/scanledger/internal/entity"
	"github.com/scanledger/scanledger/internal/procerr"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRecord() *entity.ReceiptRecord {
	date := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)
	total := 715.0
	tax := 65.0
	return &entity.ReceiptRecord{
		ID:            uuid.New(),
		Date:          &date,
		VendorName:    "スーパーマーケット田中",
		Total:         &total,
		Tax:           &tax,
		PaymentMethod: "cash",
		Items: []entity.LineItem{
			{Name: "りんご", Quantity: 2, Price: 300},
		},
		ReceiptNumber: "12345",
		Category:      constants.Food,
		AccountCode:   constants.MiscExpense,
		Confidence:    0.87,
		Notes:         []string{"parsed from ocr"},
		Status:        constants.StatusProcessed,
		SourceFile:    "receipt-001.pdf",
		ContentHash:   "abc123",
		CreatedAt:     time.Now().UTC(),
	}
}

func TestInsertAndListRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := sampleRecord()
	require.NoError(t, s.InsertReceipt(ctx, rec))

	got, err := s.ListReceipts(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, got, 1)

	r := got[0]
	assert.Equal(t, rec.ID, r.ID)
	assert.Equal(t, rec.VendorName, r.VendorName)
	require.NotNil(t, r.Date)
	assert.Equal(t, "2024-01-15", r.Date.Format("2006-01-02"))
	require.NotNil(t, r.Total)
	assert.InDelta(t, 715, *r.Total, 0.001)
	assert.Equal(t, constants.Food, r.Category)
	assert.Equal(t, constants.MiscExpense, r.AccountCode)
	require.Len(t, r.Items, 1)
	assert.Equal(t, "りんご", r.Items[0].Name)
	assert.Equal(t, []string{"parsed from ocr"}, r.Notes)
	assert.Equal(t, constants.StatusProcessed, r.Status)
	assert.Equal(t, "abc123", r.ContentHash)
}

func TestListReceiptsDateWindow(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	jan := sampleRecord()
	require.NoError(t, s.InsertReceipt(ctx, jan))

	feb := sampleRecord()
	febDate := time.Date(2024, time.February, 20, 0, 0, 0, 0, time.UTC)
	feb.ID = uuid.New()
	feb.Date = &febDate
	feb.ContentHash = "def456"
	require.NoError(t, s.InsertReceipt(ctx, feb))

	got, err := s.ListReceipts(ctx,
		time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2024, time.February, 28, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, feb.ID, got[0].ID)
}

func TestFindByContentHash(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rec := sampleRecord()
	require.NoError(t, s.InsertReceipt(ctx, rec))

	id, err := s.FindByContentHash(ctx, "abc123")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, id)

	_, err = s.FindByContentHash(ctx, "unseen")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.FindByContentHash(ctx, "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContentHashUniqueness(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := sampleRecord()
	require.NoError(t, s.InsertReceipt(ctx, first))

	dup := sampleRecord() // new ID, same content hash
	assert.Error(t, s.InsertReceipt(ctx, dup))
}

func TestEmptyContentHashesDoNotCollide(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	a := sampleRecord()
	a.ContentHash = ""
	require.NoError(t, s.InsertReceipt(ctx, a))

	b := sampleRecord()
	b.ID = uuid.New()
	b.ContentHash = ""
	require.NoError(t, s.InsertReceipt(ctx, b))
}

func TestSaveSessionUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	sess := &entity.ProcessingSession{
		ID:        uuid.New(),
		TaskID:    "a.pdf",
		FileName:  "a.pdf",
		StartedAt: time.Now().UTC(),
		Status:    constants.SessionRunning,
	}
	require.NoError(t, s.SaveSession(ctx, sess))

	ended := time.Now().UTC()
	sess.EndedAt = &ended
	sess.Status = constants.SessionSuccess
	sess.Confidence = 0.9
	sess.Extractions = 2
	require.NoError(t, s.SaveSession(ctx, sess), "saving the same session twice replaces the row")
}

func TestRecordErrorEventAndCounts(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	log := procerr.NewLog()
	ev1 := log.Record(procerr.New(procerr.KindOCR, "page 1 failed", nil))
	ev2 := log.Record(procerr.New(procerr.KindOCR, "page 2 failed", nil))
	ev3 := log.Record(procerr.New(procerr.KindNetwork, "api down", nil))

	for _, ev := range []procerr.Event{ev1, ev2, ev3} {
		require.NoError(t, s.RecordErrorEvent(ctx, ev))
	}

	counts, err := s.ErrorEventCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[procerr.KindOCR])
	assert.Equal(t, 1, counts[procerr.KindNetwork])
}

func TestOpenRejectsEmptyDSN(t *testing.T) {
	_, err := Open(context.Background(), "", nil)
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	sqlite := &Store{postgres: false}
	assert.Equal(t, "SELECT ? , ?", sqlite.rebind("SELECT ? , ?"))

	pg := &Store{postgres: true}
	assert.Equal(t, "SELECT $1 , $2", pg.rebind("SELECT ? , ?"))
}
