package model

import "time"

// SessionStatus enumerates the lifecycle states of a measurement session.
type SessionStatus string

const (
	SessionActive    SessionStatus = "active"
	SessionCompleted SessionStatus = "completed"
)

// Session is the exclusive, time-bounded binding between a device and a
// patient. For a given device at most one session is active at any instant.
// Sessions are never deleted; completed sessions are retained for audit.
type Session struct {
	ID        string        `gorm:"primaryKey;size:64" json:"session_id"`
	DeviceID  string        `gorm:"index;size:64;not null" json:"device_id"`
	PatientID string        `gorm:"index;size:64;not null" json:"patient_id"`
	CreatedBy string        `gorm:"size:64;not null" json:"created_by"`
	StartedAt time.Time     `gorm:"not null" json:"started_at"`
	EndedAt   *time.Time    `json:"ended_at"`
	Status    SessionStatus `gorm:"size:16;not null;index" json:"status"`
	Notes     string        `gorm:"size:1024" json:"notes"`

	// Associations
	Device Device `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
