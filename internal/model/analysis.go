package model

import "time"

// AnalysisRecord is the per-window analysis result (cold table). Created
// exactly once per closed window per device and immutable after creation.
// PatientID is resolved through the active session when the window closes
// and is not re-resolved later, so attribution survives device rebinding.
type AnalysisRecord struct {
	ID                int64     `gorm:"autoIncrement;primaryKey" json:"id"`
	PatientID         string    `gorm:"size:64;not null;uniqueIndex:idx_patient_window,priority:1" json:"patient_id"`
	DeviceID          string    `gorm:"size:64;not null;index" json:"device_id"`
	SessionID         string    `gorm:"size:64;not null" json:"session_id"`
	WindowStart       time.Time `gorm:"not null" json:"window_start"`
	WindowEnd         time.Time `gorm:"not null;uniqueIndex:idx_patient_window,priority:2" json:"window_end"`
	SampleCount       int       `gorm:"not null" json:"sample_count"`
	SamplingRate      float64   `gorm:"not null" json:"sampling_rate"`
	RMS               float64   `gorm:"column:rms;not null" json:"rms"`
	DominantFrequency float64   `gorm:"not null" json:"dominant_frequency"`
	TremorPower       float64   `gorm:"not null" json:"tremor_power"`
	TotalPower        float64   `gorm:"not null" json:"total_power"`
	TremorIndex       float64   `gorm:"not null" json:"tremor_index"`
	IsParkinsonian    bool      `gorm:"not null" json:"is_parkinsonian"`
	SignalQuality     float64   `gorm:"not null" json:"signal_quality"`
	ExpiresAt         time.Time `gorm:"not null;index" json:"-"`
	CreatedAt         time.Time `gorm:"not null" json:"-"`
}
