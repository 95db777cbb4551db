package models

import "time"

// AuditAction constants represent attendance events worth a trail entry.
const (
	AuditActionClockIn       = "CLOCK_IN"
	AuditActionClockOut      = "CLOCK_OUT"
	AuditActionManualClockIn = "MANUAL_CLOCK_IN"
)

// AuditEvent is an attendance audit trail record. Manual (no-location)
// clock-ins are always recorded so supervisors can review geofence bypasses.
type AuditEvent struct {
	ID         string    `db:"id" json:"id"`
	StudentID  string    `db:"student_id" json:"student_id"`
	RecordID   string    `db:"record_id" json:"record_id"`
	Action     string    `db:"action" json:"action"`
	ActorID    *string   `db:"actor_id" json:"actor_id,omitempty"`
	Details    []byte    `db:"details" json:"details,omitempty"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
