package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tremor-monitor-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	// Device registry
	RegisterDevice(ctx context.Context, device *model.Device) error
	GetDevice(ctx context.Context, deviceID string) (*model.Device, error)
	ListDevices(ctx context.Context) ([]model.Device, error)
	SetDeviceStatus(ctx context.Context, deviceID string, status model.DeviceStatus) error
	TouchDevice(ctx context.Context, deviceID string, batteryLevel int, seenAt time.Time) error

	// Session binding
	CreateSession(ctx context.Context, deviceID, patientID, createdBy, notes string) (*model.Session, error)
	EndSession(ctx context.Context, sessionID string) (*model.Session, error)
	GetActiveSession(ctx context.Context, deviceID string) (*model.Session, error)
	GetSession(ctx context.Context, sessionID string) (*model.Session, error)

	// Analysis records
	InsertAnalysisRecord(ctx context.Context, record *model.AnalysisRecord) error
	GetRange(ctx context.Context, patientID string, start, end time.Time, limit int) ([]model.AnalysisRecord, error)
	GetLatest(ctx context.Context, patientID string, since time.Time, limit int) ([]model.AnalysisRecord, error)
	GetStatistics(ctx context.Context, patientID string, start, end time.Time) (*Statistics, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)

	// DB exposes the underlying handle for callers that need raw access.
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// --- Device registry ---

func (s *gormStore) RegisterDevice(ctx context.Context, device *model.Device) error {
	if device.Status == "" {
		device.Status = model.DeviceAvailable
	}
	err := s.db.WithContext(ctx).Create(device).Error
	if err != nil && (errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err)) {
		return ErrDeviceExists
	}
	return err
}

func (s *gormStore) GetDevice(ctx context.Context, deviceID string) (*model.Device, error) {
	var device model.Device
	if err := s.db.WithContext(ctx).First(&device, "id = ?", deviceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}
	return &device, nil
}

func (s *gormStore) ListDevices(ctx context.Context) ([]model.Device, error) {
	var devices []model.Device
	if err := s.db.WithContext(ctx).Order("id").Find(&devices).Error; err != nil {
		return nil, err
	}
	return devices, nil
}

// SetDeviceStatus applies an administrative override (maintenance,
// decommissioned, or back to available). It refuses to touch a device that is
// currently bound: the session must be ended first.
func (s *gormStore) SetDeviceStatus(ctx context.Context, deviceID string, status model.DeviceStatus) error {
	res := s.db.WithContext(ctx).Model(&model.Device{}).
		Where("id = ? AND status <> ?", deviceID, model.DeviceInUse).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var device model.Device
		if err := s.db.WithContext(ctx).First(&device, "id = ?", deviceID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDeviceNotFound
			}
			return err
		}
		if device.Status == model.DeviceInUse {
			return ErrDeviceAlreadyBound
		}
	}
	return nil
}

// TouchDevice records the device's last contact and battery level. Failures
// here are non-fatal to ingestion; callers only log them.
func (s *gormStore) TouchDevice(ctx context.Context, deviceID string, batteryLevel int, seenAt time.Time) error {
	updates := map[string]any{"last_seen": seenAt}
	if batteryLevel > 0 {
		updates["battery_level"] = batteryLevel
	}
	return s.db.WithContext(ctx).Model(&model.Device{}).Where("id = ?", deviceID).Updates(updates).Error
}

// --- Session binding state machine ---

// CreateSession atomically binds a device to a patient. The conditional
// UPDATE on device status is the compare-and-swap that prevents two
// concurrent binds of the same device: only one transaction can flip
// available -> in_use, and the session row is created in the same
// transaction.
func (s *gormStore) CreateSession(ctx context.Context, deviceID, patientID, createdBy, notes string) (*model.Session, error) {
	session := model.Session{
		ID:        "sess_" + uuid.NewString(),
		DeviceID:  deviceID,
		PatientID: patientID,
		CreatedBy: createdBy,
		StartedAt: time.Now().UTC(),
		Status:    model.SessionActive,
		Notes:     notes,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Device{}).
			Where("id = ? AND status = ?", deviceID, model.DeviceAvailable).
			Update("status", model.DeviceInUse)
		if res.Error != nil {
			return fmt.Errorf("failed to flip device %s to in_use: %w", deviceID, res.Error)
		}
		if res.RowsAffected == 0 {
			// The swap failed; look at the device to report why.
			var device model.Device
			if err := tx.First(&device, "id = ?", deviceID).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return ErrDeviceNotFound
				}
				return err
			}
			if device.Status == model.DeviceInUse {
				return ErrDeviceAlreadyBound
			}
			return ErrDeviceUnavailable
		}

		if err := tx.Create(&session).Error; err != nil {
			return fmt.Errorf("failed to create session for device %s: %w", deviceID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// EndSession completes a session and releases its device. Ending an already
// completed session is a no-op success so that client retries are harmless.
func (s *gormStore) EndSession(ctx context.Context, sessionID string) (*model.Session, error) {
	var session model.Session
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&session, "id = ?", sessionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		if session.Status == model.SessionCompleted {
			return nil // idempotent
		}

		now := time.Now().UTC()
		session.EndedAt = &now
		session.Status = model.SessionCompleted
		if err := tx.Model(&model.Session{}).Where("id = ?", sessionID).
			Updates(map[string]any{"ended_at": now, "status": model.SessionCompleted}).Error; err != nil {
			return fmt.Errorf("failed to complete session %s: %w", sessionID, err)
		}

		// Release the device, but only out of in_use: an administrative
		// maintenance override must not be clobbered.
		if err := tx.Model(&model.Device{}).
			Where("id = ? AND status = ?", session.DeviceID, model.DeviceInUse).
			Update("status", model.DeviceAvailable).Error; err != nil {
			return fmt.Errorf("failed to release device %s: %w", session.DeviceID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// GetActiveSession is the lookup the ingest path performs on every batch and
// window close.
func (s *gormStore) GetActiveSession(ctx context.Context, deviceID string) (*model.Session, error) {
	var session model.Session
	err := s.db.WithContext(ctx).
		Where("device_id = ? AND status = ?", deviceID, model.SessionActive).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSession
		}
		return nil, err
	}
	return &session, nil
}

func (s *gormStore) GetSession(ctx context.Context, sessionID string) (*model.Session, error) {
	var session model.Session
	if err := s.db.WithContext(ctx).First(&session, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

// --- Analysis records ---

// InsertAnalysisRecord persists one record per closed window. The conflict
// clause makes redelivery of the same window a no-op, matching the
// records' create-exactly-once contract.
func (s *gormStore) InsertAnalysisRecord(ctx context.Context, record *model.AnalysisRecord) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "patient_id"}, {Name: "window_end"}},
		DoNothing: true,
	}).Create(record).Error
}

// GetRange returns records ordered by window_end ascending. A positive limit
// returns the latest N within the range (tail read for polling dashboards)
// still in ascending order.
func (s *gormStore) GetRange(ctx context.Context, patientID string, start, end time.Time, limit int) ([]model.AnalysisRecord, error) {
	q := s.db.WithContext(ctx).
		Where("patient_id = ? AND window_end >= ? AND window_end <= ?", patientID, start, end)

	var records []model.AnalysisRecord
	if limit > 0 {
		if err := q.Order("window_end DESC").Limit(limit).Find(&records).Error; err != nil {
			return nil, err
		}
		reverse(records)
		return records, nil
	}
	if err := q.Order("window_end ASC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// GetLatest is the incremental read used by real-time pollers: only records
// strictly after the caller's cursor, ascending. Records are immutable and
// unique on (patient_id, window_end), so a client that advances its cursor to
// the last returned window_end never sees a record twice.
func (s *gormStore) GetLatest(ctx context.Context, patientID string, since time.Time, limit int) ([]model.AnalysisRecord, error) {
	q := s.db.WithContext(ctx).
		Where("patient_id = ? AND window_end > ?", patientID, since).
		Order("window_end ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var records []model.AnalysisRecord
	if err := q.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (s *gormStore) GetStatistics(ctx context.Context, patientID string, start, end time.Time) (*Statistics, error) {
	var rows []struct {
		TremorIndex    float64
		IsParkinsonian bool
	}
	err := s.db.WithContext(ctx).Model(&model.AnalysisRecord{}).
		Select("tremor_index, is_parkinsonian").
		Where("patient_id = ? AND window_end >= ? AND window_end <= ?", patientID, start, end).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	indices := make([]float64, len(rows))
	parkinsonian := 0
	for i, r := range rows {
		indices[i] = r.TremorIndex
		if r.IsParkinsonian {
			parkinsonian++
		}
	}
	return computeStatistics(indices, parkinsonian), nil
}

// PurgeExpired deletes analysis records past their retention expiry.
func (s *gormStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&model.AnalysisRecord{})
	return res.RowsAffected, res.Error
}

func reverse(records []model.AnalysisRecord) {
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
}

// isUniqueViolation covers drivers that do not translate duplicate-key errors
// into gorm.ErrDuplicatedKey (notably sqlite in the test setup).
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
