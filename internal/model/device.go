package model

import "time"

// DeviceStatus enumerates the lifecycle states of a physical device.
type DeviceStatus string

const (
	DeviceAvailable      DeviceStatus = "available"
	DeviceInUse          DeviceStatus = "in_use"
	DeviceMaintenance    DeviceStatus = "maintenance"
	DeviceDecommissioned DeviceStatus = "decommissioned"
)

// Device represents a physical tremor-monitoring wearable. The bound patient
// is never stored here; it is derived from the latest non-ended Session.
type Device struct {
	ID              string       `gorm:"primaryKey;size:64" json:"id"`
	MACAddress      string       `gorm:"column:mac_address;uniqueIndex;size:32;not null" json:"mac_address"`
	Name            string       `gorm:"size:128" json:"name"`
	FirmwareVersion string       `gorm:"size:32" json:"firmware_version"`
	Status          DeviceStatus `gorm:"size:24;not null;default:available" json:"status"`
	BatteryLevel    int          `json:"battery_level"`
	LastSeen        *time.Time   `json:"last_seen"`
	CreatedAt       time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"not null" json:"updated_at"`
}
