package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"tremor-monitor-backend/internal/model"
)

// newTestStore creates a store backed by a fresh in-memory SQLite database.
func newTestStore(t *testing.T) Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(&model.Device{}, &model.Session{}, &model.AnalysisRecord{}))
	return NewGormStore(db)
}

func registerTestDevice(t *testing.T, s Store, id string) {
	t.Helper()
	require.NoError(t, s.RegisterDevice(context.Background(), &model.Device{
		ID:         id,
		MACAddress: "AA:BB:CC:00:00:" + id[len(id)-1:],
		Name:       "wrist unit " + id,
	}))
}

func TestCreateSession_BindsAvailableDevice(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerTestDevice(t, s, "DEV-1")

	session, err := s.CreateSession(ctx, "DEV-1", "PAT-1", "DOC-1", "baseline run")
	require.NoError(t, err)
	assert.Equal(t, model.SessionActive, session.Status)
	assert.Equal(t, "PAT-1", session.PatientID)
	assert.NotEmpty(t, session.ID)

	device, err := s.GetDevice(ctx, "DEV-1")
	require.NoError(t, err)
	assert.Equal(t, model.DeviceInUse, device.Status)

	active, err := s.GetActiveSession(ctx, "DEV-1")
	require.NoError(t, err)
	assert.Equal(t, session.ID, active.ID)
}

func TestCreateSession_ConflictWhenAlreadyBound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerTestDevice(t, s, "DEV-1")

	first, err := s.CreateSession(ctx, "DEV-1", "PAT-1", "DOC-1", "")
	require.NoError(t, err)

	_, err = s.CreateSession(ctx, "DEV-1", "PAT-3", "DOC-2", "")
	assert.ErrorIs(t, err, ErrDeviceAlreadyBound)

	// The existing binding is unaffected.
	active, err := s.GetActiveSession(ctx, "DEV-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)
	assert.Equal(t, "PAT-1", active.PatientID)
}

func TestCreateSession_UnknownDevice(t *testing.T) {
	s := newTestStore(t)
	_, err := s.CreateSession(context.Background(), "DEV-404", "PAT-1", "DOC-1", "")
	assert.ErrorIs(t, err, ErrDeviceNotFound)
}

func TestCreateSession_RejectedWhileUnderMaintenance(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerTestDevice(t, s, "DEV-1")
	require.NoError(t, s.SetDeviceStatus(ctx, "DEV-1", model.DeviceMaintenance))

	_, err := s.CreateSession(ctx, "DEV-1", "PAT-1", "DOC-1", "")
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
}

func TestEndSession_IdempotentAndReleasesDevice(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerTestDevice(t, s, "DEV-1")

	session, err := s.CreateSession(ctx, "DEV-1", "PAT-1", "DOC-1", "")
	require.NoError(t, err)

	ended, err := s.EndSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, ended.Status)
	require.NotNil(t, ended.EndedAt)

	// Ending again is a no-op success, not an error.
	again, err := s.EndSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SessionCompleted, again.Status)

	device, err := s.GetDevice(ctx, "DEV-1")
	require.NoError(t, err)
	assert.Equal(t, model.DeviceAvailable, device.Status)

	_, err = s.GetActiveSession(ctx, "DEV-1")
	assert.ErrorIs(t, err, ErrNoActiveSession)

	// The released device can be bound to a different patient.
	_, err = s.CreateSession(ctx, "DEV-1", "PAT-2", "DOC-1", "")
	assert.NoError(t, err)
}

func TestEndSession_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.EndSession(context.Background(), "sess_missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSetDeviceStatus_RejectedWhileBound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerTestDevice(t, s, "DEV-1")

	_, err := s.CreateSession(ctx, "DEV-1", "PAT-1", "DOC-1", "")
	require.NoError(t, err)

	err = s.SetDeviceStatus(ctx, "DEV-1", model.DeviceMaintenance)
	assert.ErrorIs(t, err, ErrDeviceAlreadyBound)
}

func TestRegisterDevice_Duplicate(t *testing.T) {
	s := newTestStore(t)
	registerTestDevice(t, s, "DEV-1")
	err := s.RegisterDevice(context.Background(), &model.Device{ID: "DEV-1", MACAddress: "FF:FF:FF:FF:FF:FF"})
	assert.ErrorIs(t, err, ErrDeviceExists)
}

func testRecord(patientID, deviceID string, windowEnd time.Time, index float64, parkinsonian bool) *model.AnalysisRecord {
	return &model.AnalysisRecord{
		PatientID:         patientID,
		DeviceID:          deviceID,
		SessionID:         "sess_test",
		WindowStart:       windowEnd.Add(-5 * time.Second),
		WindowEnd:         windowEnd,
		SampleCount:       500,
		SamplingRate:      100,
		RMS:               0.5,
		DominantFrequency: 5,
		TremorPower:       8,
		TotalPower:        10,
		TremorIndex:       index,
		IsParkinsonian:    parkinsonian,
		SignalQuality:     0.95,
		ExpiresAt:         windowEnd.Add(90 * 24 * time.Hour),
	}
}

func TestAttributionFixation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	registerTestDevice(t, s, "DEV-1")

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	first, err := s.CreateSession(ctx, "DEV-1", "PAT-1", "DOC-1", "")
	require.NoError(t, err)
	require.NoError(t, s.InsertAnalysisRecord(ctx, testRecord("PAT-1", "DEV-1", base, 0.5, true)))

	_, err = s.EndSession(ctx, first.ID)
	require.NoError(t, err)
	_, err = s.CreateSession(ctx, "DEV-1", "PAT-2", "DOC-1", "")
	require.NoError(t, err)
	require.NoError(t, s.InsertAnalysisRecord(ctx, testRecord("PAT-2", "DEV-1", base.Add(5*time.Second), 0.3, false)))

	// Rebinding the device does not move the earlier record.
	records, err := s.GetRange(ctx, "PAT-1", base.Add(-time.Hour), base.Add(time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "PAT-1", records[0].PatientID)
	assert.Equal(t, base, records[0].WindowEnd.UTC())
}

func TestInsertAnalysisRecord_RedeliveryIsNoOp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	windowEnd := time.Date(2026, 8, 1, 12, 0, 5, 0, time.UTC)

	require.NoError(t, s.InsertAnalysisRecord(ctx, testRecord("PAT-1", "DEV-1", windowEnd, 0.5, true)))
	require.NoError(t, s.InsertAnalysisRecord(ctx, testRecord("PAT-1", "DEV-1", windowEnd, 0.9, false)))

	records, err := s.GetRange(ctx, "PAT-1", windowEnd.Add(-time.Minute), windowEnd.Add(time.Minute), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, 0.5, records[0].TremorIndex, "first write wins, records are immutable")
}

func TestGetRange_OrderingAndTailLimit(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		end := base.Add(time.Duration(i*5) * time.Second)
		require.NoError(t, s.InsertAnalysisRecord(ctx, testRecord("PAT-1", "DEV-1", end, 0.1*float64(i), false)))
	}

	all, err := s.GetRange(ctx, "PAT-1", base.Add(-time.Hour), base.Add(time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.True(t, all[i-1].WindowEnd.Before(all[i].WindowEnd), "ascending by window_end")
	}

	// A tail read returns the latest N, still ascending.
	tail, err := s.GetRange(ctx, "PAT-1", base.Add(-time.Hour), base.Add(time.Hour), 2)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	assert.Equal(t, all[3].WindowEnd.UTC(), tail[0].WindowEnd.UTC())
	assert.Equal(t, all[4].WindowEnd.UTC(), tail[1].WindowEnd.UTC())
}

func TestGetLatest_MonotonicPolling(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		end := base.Add(time.Duration(i*5) * time.Second)
		require.NoError(t, s.InsertAnalysisRecord(ctx, testRecord("PAT-1", "DEV-1", end, 0.5, false)))
	}

	first, err := s.GetLatest(ctx, "PAT-1", time.Time{}, 0)
	require.NoError(t, err)
	require.Len(t, first, 3)

	cursor := first[len(first)-1].WindowEnd

	// A concurrent writer appends a newer window.
	require.NoError(t, s.InsertAnalysisRecord(ctx, testRecord("PAT-1", "DEV-1", base.Add(15*time.Second), 0.6, false)))

	second, err := s.GetLatest(ctx, "PAT-1", cursor, 0)
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.True(t, second[0].WindowEnd.After(cursor), "no record from the first poll is returned again")

	third, err := s.GetLatest(ctx, "PAT-1", second[0].WindowEnd, 0)
	require.NoError(t, err)
	assert.Empty(t, third)
}

func TestGetStatistics(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	indices := []float64{0.1, 0.3, 0.5, 0.7, 0.9}
	for i, idx := range indices {
		end := base.Add(time.Duration(i*5) * time.Second)
		require.NoError(t, s.InsertAnalysisRecord(ctx, testRecord("PAT-1", "DEV-1", end, idx, idx >= 0.5)))
	}

	stats, err := s.GetStatistics(ctx, "PAT-1", base.Add(-time.Hour), base.Add(time.Hour))
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Count)
	assert.Equal(t, 0.1, stats.Min)
	assert.Equal(t, 0.9, stats.Max)
	assert.InDelta(t, 0.5, stats.Mean, 1e-9)
	assert.InDelta(t, 0.5, stats.Median, 1e-9)
	assert.InDelta(t, 0.3162, stats.StdDev, 1e-3)
	assert.Equal(t, 3, stats.ParkinsonianCount)
	assert.Equal(t, int64(1), stats.Severity["minimal"])
	assert.Equal(t, int64(1), stats.Severity["mild"])
	assert.Equal(t, int64(1), stats.Severity["moderate"])
	assert.Equal(t, int64(1), stats.Severity["severe"])
	assert.Equal(t, int64(1), stats.Severity["very_severe"])
}

func TestGetStatistics_Empty(t *testing.T) {
	s := newTestStore(t)
	stats, err := s.GetStatistics(context.Background(), "PAT-NONE", time.Time{}, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Count)
	assert.Equal(t, int64(0), stats.Severity["minimal"])
}

func TestPurgeExpired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	old := testRecord("PAT-1", "DEV-1", base, 0.5, false)
	old.ExpiresAt = base.Add(time.Hour)
	fresh := testRecord("PAT-1", "DEV-1", base.Add(5*time.Second), 0.5, false)
	fresh.ExpiresAt = base.Add(24 * time.Hour)
	require.NoError(t, s.InsertAnalysisRecord(ctx, old))
	require.NoError(t, s.InsertAnalysisRecord(ctx, fresh))

	purged, err := s.PurgeExpired(ctx, base.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	records, err := s.GetRange(ctx, "PAT-1", base.Add(-time.Hour), base.Add(time.Hour), 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, fresh.WindowEnd.UTC(), records[0].WindowEnd.UTC())
}
