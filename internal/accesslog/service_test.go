package accesslog

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"residence-backend/internal/events"
	"residence-backend/internal/models"
	"residence-backend/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

var base = time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *events.Recorder) {
	t.Helper()
	rec := &events.Recorder{}
	svc := NewService(store.New(store.NewMemoryBackend(), zap.NewNop()), rec, time.UTC, zap.NewNop())
	svc.now = func() time.Time { return base }
	n := 0
	svc.newID = func() string {
		n++
		return fmt.Sprintf("log-%d", n)
	}
	return svc, rec
}

func entry(resident string, at time.Time, typ models.AccessType) models.AccessLog {
	return models.AccessLog{
		ResidentID:   resident,
		ResidentName: "Resident " + resident,
		UnitNumber:   "A-101",
		Timestamp:    at,
		AccessType:   typ,
		Method:       models.AccessMethodQRCode,
		Location:     "Main Gate",
	}
}

func TestAppend_AssignsIDAndPublishes(t *testing.T) {
	svc, rec := newTestService(t)

	e := entry("r1", time.Time{}, models.AccessEntry)
	saved, err := svc.Append(context.Background(), e)
	require.NoError(t, err)

	assert.Equal(t, "log-1", saved.ID)
	assert.Equal(t, base, saved.Timestamp)
	require.Len(t, rec.Events(), 1)
	assert.Equal(t, saved.ID, rec.Events()[0].ID)
}

func TestAppend_Rejects(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()

	bad := entry("r1", base, "sideways")
	_, err := svc.Append(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalidEntry)

	bad = entry("r1", base, models.AccessEntry)
	bad.Method = "fingerprint"
	_, err = svc.Append(ctx, bad)
	assert.ErrorIs(t, err, ErrInvalidEntry)

	_, err = svc.Append(ctx, entry(" ", base, models.AccessExit))
	assert.ErrorIs(t, err, ErrInvalidEntry)

	assert.Empty(t, rec.Events())
	logs, err := svc.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestList_NewestFirstWithLimit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	const n = 7
	for i := 0; i < n; i++ {
		_, err := svc.Append(ctx, entry("r1", base.Add(time.Duration(i)*time.Minute), models.AccessEntry))
		require.NoError(t, err)
	}

	for _, k := range []int{0, 1, 3, n, n + 5} {
		logs, err := svc.List(ctx, k)
		require.NoError(t, err)

		want := n
		if k > 0 && k < n {
			want = k
		}
		require.Len(t, logs, want, "limit %d", k)
		assert.Equal(t, base.Add((n-1)*time.Minute), logs[0].Timestamp)
		for i := 1; i < len(logs); i++ {
			assert.False(t, logs[i].Timestamp.After(logs[i-1].Timestamp))
		}
	}
}

func TestList_SortsBackdatedEntries(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Append(ctx, entry("r1", base.Add(time.Hour), models.AccessEntry))
	require.NoError(t, err)
	_, err = svc.Append(ctx, entry("r2", base, models.AccessEntry))
	require.NoError(t, err)

	logs, err := svc.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "r1", logs[0].ResidentID)
}

func TestQuery_Filters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for i, e := range []models.AccessLog{
		entry("r1", base, models.AccessEntry),
		entry("r1", base.Add(2*time.Hour), models.AccessExit),
		entry("r2", base.Add(4*time.Hour), models.AccessEntry),
	} {
		_, err := svc.Append(ctx, e)
		require.NoError(t, err, "entry %d", i)
	}
	manual := entry("r3", base.Add(6*time.Hour), models.AccessEntry)
	manual.Method = models.AccessMethodManual
	_, err := svc.Append(ctx, manual)
	require.NoError(t, err)

	logs, err := svc.Query(ctx, Query{ResidentID: "r1"})
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	logs, err = svc.Query(ctx, Query{AccessType: models.AccessEntry})
	require.NoError(t, err)
	assert.Len(t, logs, 3)

	logs, err = svc.Query(ctx, Query{Method: models.AccessMethodManual})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "r3", logs[0].ResidentID)

	from, to := base.Add(time.Hour), base.Add(4*time.Hour)
	logs, err = svc.Query(ctx, Query{From: &from, To: &to})
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "r2", logs[0].ResidentID)
}

func TestExportXLSX(t *testing.T) {
	logs := []models.AccessLog{
		{ID: "log-2", ResidentID: "r2", ResidentName: "Maria Garcia", UnitNumber: "B-205", Timestamp: base.Add(time.Hour), AccessType: models.AccessExit, Method: models.AccessMethodManual, Location: "Main Gate"},
		{ID: "log-1", ResidentID: "r1", ResidentName: "John Smith", UnitNumber: "A-101", Timestamp: base, AccessType: models.AccessEntry, Method: models.AccessMethodQRCode, Location: "Main Gate", SecurityPersonnel: "Security Officer"},
	}

	data, err := ExportXLSX(logs)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{exportSheet}, f.GetSheetList())
	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Timestamp", rows[0][0])
	assert.Equal(t, "Maria Garcia", rows[1][1])
	assert.Equal(t, "entry", rows[2][3])
	assert.Equal(t, "Security Officer", rows[2][6])
	assert.Equal(t, "2025-03-10 08:00:00", rows[2][0])
}
