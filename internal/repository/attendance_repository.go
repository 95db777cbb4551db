package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/clinical-clock-api/internal/models"
)

// AttendanceTx is the transactional view over attendance rows. The locking
// contract lives in the signatures: Lock* methods issue SELECT ... FOR UPDATE
// and the returned row stays locked until the surrounding transaction ends.
// Only this interface may mutate attendance rows.
type AttendanceTx interface {
	LockActiveForStudent(ctx context.Context, studentID string) (*models.AttendanceRecord, error)
	LockRecordForStudent(ctx context.Context, recordID, studentID string) (*models.AttendanceRecord, error)
	Insert(ctx context.Context, record *models.AttendanceRecord) error
	Complete(ctx context.Context, patch CompletionPatch) error
}

// CompletionPatch carries the closing mutation for an active record.
type CompletionPatch struct {
	RecordID     string
	ClockOutTime time.Time
	TotalHours   float64
	ClockOutLat  *float64
	ClockOutLng  *float64
	Notes        *string
}

const attendanceColumns = `id, student_id, rotation_id, site_id, clock_in_time, clock_out_time,
total_hours, status, location_source, clock_in_lat, clock_in_lng, clock_out_lat, clock_out_lng,
notes, created_at, updated_at`

// AttendanceRepository handles persistence for attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// WithinTx runs fn inside a transaction, rolling back on error or panic.
// Context cancellation aborts the transaction and releases any row locks.
func (r *AttendanceRepository) WithinTx(ctx context.Context, fn func(tx AttendanceTx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin attendance tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := fn(&attendanceTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit attendance tx: %w", err)
	}
	committed = true
	return nil
}

// FindActiveForStudent returns the active record without taking the row lock.
// Callers must treat the result as a snapshot, not an authoritative read.
func (r *AttendanceRepository) FindActiveForStudent(ctx context.Context, studentID string) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records
WHERE student_id = $1 AND status = $2`, attendanceColumns)
	var record models.AttendanceRecord
	if err := r.db.GetContext(ctx, &record, query, studentID, models.TimeRecordStatusActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find active record: %w", err)
	}
	return &record, nil
}

// List returns attendance records matching the provided filter.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceRecordFilter) ([]models.AttendanceRecord, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.StudentID != "" {
		where = append(where, fmt.Sprintf("student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.RotationID != "" {
		where = append(where, fmt.Sprintf("rotation_id = $%d", len(args)+1))
		args = append(args, filter.RotationID)
	}
	if filter.SiteID != "" {
		where = append(where, fmt.Sprintf("site_id = $%d", len(args)+1))
		args = append(args, filter.SiteID)
	}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("clock_in_time >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("clock_in_time <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	whereClause := strings.Join(where, " AND ")

	allowedSort := map[string]string{
		"clock_in_time":  "clock_in_time",
		"clock_out_time": "clock_out_time",
		"created_at":     "created_at",
	}
	sortColumn, ok := allowedSort[filter.SortBy]
	if !ok {
		sortColumn = "clock_in_time"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT %s FROM attendance_records
WHERE %s
ORDER BY %s %s
LIMIT %d OFFSET %d`, attendanceColumns, whereClause, sortColumn, order, size, offset)

	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendance records: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM attendance_records WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendance records: %w", err)
	}
	return rows, total, nil
}

type attendanceTx struct {
	tx *sqlx.Tx
}

func (t *attendanceTx) LockActiveForStudent(ctx context.Context, studentID string) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records
WHERE student_id = $1 AND status = $2
FOR UPDATE`, attendanceColumns)
	var record models.AttendanceRecord
	if err := t.tx.GetContext(ctx, &record, query, studentID, models.TimeRecordStatusActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("lock active record: %w", err)
	}
	return &record, nil
}

func (t *attendanceTx) LockRecordForStudent(ctx context.Context, recordID, studentID string) (*models.AttendanceRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM attendance_records
WHERE id = $1 AND student_id = $2
FOR UPDATE`, attendanceColumns)
	var record models.AttendanceRecord
	if err := t.tx.GetContext(ctx, &record, query, recordID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("lock record %s: %w", recordID, err)
	}
	return &record, nil
}

func (t *attendanceTx) Insert(ctx context.Context, record *models.AttendanceRecord) error {
	now := time.Now().UTC()
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	query := `INSERT INTO attendance_records (id, student_id, rotation_id, site_id, clock_in_time,
status, location_source, clock_in_lat, clock_in_lng, notes, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err := t.tx.ExecContext(ctx, query,
		record.ID, record.StudentID, record.RotationID, record.SiteID, record.ClockInTime,
		record.Status, record.LocationSource, record.ClockInLat, record.ClockInLng,
		record.Notes, record.CreatedAt, record.UpdatedAt,
	); err != nil {
		return fmt.Errorf("insert attendance record: %w", err)
	}
	return nil
}

func (t *attendanceTx) Complete(ctx context.Context, patch CompletionPatch) error {
	query := `UPDATE attendance_records
SET clock_out_time = $2, total_hours = $3, status = $4,
    clock_out_lat = $5, clock_out_lng = $6,
    notes = COALESCE($7, notes), updated_at = $8
WHERE id = $1 AND status = $9`
	result, err := t.tx.ExecContext(ctx, query,
		patch.RecordID, patch.ClockOutTime, patch.TotalHours, models.TimeRecordStatusCompleted,
		patch.ClockOutLat, patch.ClockOutLng, patch.Notes, time.Now().UTC(),
		models.TimeRecordStatusActive,
	)
	if err != nil {
		return fmt.Errorf("complete attendance record %s: %w", patch.RecordID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("complete attendance record %s: %w", patch.RecordID, err)
	}
	if affected == 0 {
		return fmt.Errorf("complete attendance record %s: record no longer active", patch.RecordID)
	}
	return nil
}
