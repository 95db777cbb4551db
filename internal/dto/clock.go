package dto

import "time"

// Location is a device-reported GPS fix attached to a clock operation.
type Location struct {
	Latitude       float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude      float64 `json:"longitude" validate:"min=-180,max=180"`
	AccuracyMeters float64 `json:"accuracy_meters" validate:"omitempty,min=0"`
}

// ClockInRequest opens an attendance session. One of RotationID or SiteID is
// required; Location is optional and its absence means a manual clock-in.
type ClockInRequest struct {
	StudentID  string    `json:"student_id" validate:"required"`
	RotationID string    `json:"rotation_id"`
	SiteID     string    `json:"site_id"`
	Location   *Location `json:"location"`
	Timestamp  time.Time `json:"timestamp" validate:"required"`
	Notes      *string   `json:"notes"`
}

// ClockOutRequest closes the student's active session. TimeRecordID is
// optional; when absent the current active record is resolved.
type ClockOutRequest struct {
	StudentID    string    `json:"student_id" validate:"required"`
	TimeRecordID string    `json:"time_record_id"`
	Location     *Location `json:"location"`
	Timestamp    time.Time `json:"timestamp" validate:"required"`
	Notes        *string   `json:"notes"`
}

// ClockInResult echoes the created session.
type ClockInResult struct {
	RecordID       string    `json:"record_id"`
	Status         string    `json:"status"`
	SiteID         string    `json:"site_id"`
	SiteName       string    `json:"site_name,omitempty"`
	LocationSource string    `json:"location_source"`
	ClockInTime    time.Time `json:"clock_in_time"`
}

// ClockOutResult reports the closed session.
type ClockOutResult struct {
	RecordID     string    `json:"record_id"`
	Status       string    `json:"status"`
	TotalHours   float64   `json:"total_hours"`
	ClockOutTime time.Time `json:"clock_out_time"`
}

// ClockStatus is a best-effort snapshot of the student's current session.
// Only clock-in/clock-out are authoritative; this view may lag briefly.
type ClockStatus struct {
	IsActive               bool       `json:"is_active"`
	TimeRecordID           *string    `json:"time_record_id,omitempty"`
	SiteID                 *string    `json:"site_id,omitempty"`
	ClockInTime            *time.Time `json:"clock_in_time,omitempty"`
	CurrentDurationSeconds *int64     `json:"current_duration_seconds,omitempty"`
}

// ListRecordsRequest filters the attendance record listing.
type ListRecordsRequest struct {
	StudentID  string `form:"studentId"`
	RotationID string `form:"rotationId"`
	SiteID     string `form:"siteId"`
	Status     string `form:"status"`
	From       string `form:"from"`
	To         string `form:"to"`
	Page       int    `form:"page"`
	PageSize   int    `form:"pageSize"`
	SortBy     string `form:"sortBy"`
	SortOrder  string `form:"sortOrder"`
}
