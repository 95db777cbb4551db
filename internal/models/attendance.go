package models

import (
	"math"
	"time"
)

// TimeRecordStatus represents the lifecycle state of an attendance record.
type TimeRecordStatus string

const (
	TimeRecordStatusActive    TimeRecordStatus = "ACTIVE"
	TimeRecordStatusCompleted TimeRecordStatus = "COMPLETED"
)

// Valid returns true when the status is a supported value.
func (s TimeRecordStatus) Valid() bool {
	switch s {
	case TimeRecordStatusActive, TimeRecordStatusCompleted:
		return true
	default:
		return false
	}
}

// LocationSource describes whether geofence validation occurred at clock-in.
type LocationSource string

const (
	LocationSourceGPS    LocationSource = "gps"
	LocationSourceManual LocationSource = "manual"
)

// AttendanceRecord is a single clock-in/clock-out session at a clinical site.
// A student has at most one ACTIVE record at any time; the repository enforces
// that with a row lock, not a unique constraint.
type AttendanceRecord struct {
	ID             string           `db:"id" json:"id"`
	StudentID      string           `db:"student_id" json:"student_id"`
	RotationID     *string          `db:"rotation_id" json:"rotation_id,omitempty"`
	SiteID         string           `db:"site_id" json:"site_id"`
	ClockInTime    time.Time        `db:"clock_in_time" json:"clock_in_time"`
	ClockOutTime   *time.Time       `db:"clock_out_time" json:"clock_out_time,omitempty"`
	TotalHours     *float64         `db:"total_hours" json:"total_hours,omitempty"`
	Status         TimeRecordStatus `db:"status" json:"status"`
	LocationSource LocationSource   `db:"location_source" json:"location_source"`
	ClockInLat     *float64         `db:"clock_in_lat" json:"clock_in_lat,omitempty"`
	ClockInLng     *float64         `db:"clock_in_lng" json:"clock_in_lng,omitempty"`
	ClockOutLat    *float64         `db:"clock_out_lat" json:"clock_out_lat,omitempty"`
	ClockOutLng    *float64         `db:"clock_out_lng" json:"clock_out_lng,omitempty"`
	Notes          *string          `db:"notes" json:"notes,omitempty"`
	CreatedAt      time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at" json:"updated_at"`
}

// AttendanceRecordFilter scopes listing queries over attendance records.
type AttendanceRecordFilter struct {
	StudentID  string
	RotationID string
	SiteID     string
	Status     *TimeRecordStatus
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// SessionHours converts a duration into hours rounded to two decimal places.
func SessionHours(d time.Duration) float64 {
	return math.Round(d.Hours()*100) / 100
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
