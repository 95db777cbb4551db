package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinical-clock-api/internal/models"
)

func newAttendanceMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

var attendanceCols = []string{
	"id", "student_id", "rotation_id", "site_id", "clock_in_time", "clock_out_time",
	"total_hours", "status", "location_source", "clock_in_lat", "clock_in_lng",
	"clock_out_lat", "clock_out_lng", "notes", "created_at", "updated_at",
}

func activeRow(id, studentID string, clockIn time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(attendanceCols).AddRow(
		id, studentID, nil, "site-1", clockIn, nil,
		nil, string(models.TimeRecordStatusActive), string(models.LocationSourceGPS),
		40.7128, -74.0060, nil, nil, nil, clockIn, clockIn,
	)
}

func TestWithinTxInsertCommits(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM attendance_records WHERE student_id = \$1 AND status = \$2 FOR UPDATE`).
		WithArgs("stu-1", string(models.TimeRecordStatusActive)).
		WillReturnRows(sqlmock.NewRows(attendanceCols))
	mock.ExpectExec("INSERT INTO attendance_records").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	record := &models.AttendanceRecord{
		StudentID:      "stu-1",
		SiteID:         "site-1",
		ClockInTime:    time.Now(),
		Status:         models.TimeRecordStatusActive,
		LocationSource: models.LocationSourceGPS,
	}
	err := repo.WithinTx(context.Background(), func(tx AttendanceTx) error {
		active, err := tx.LockActiveForStudent(context.Background(), "stu-1")
		require.NoError(t, err)
		require.Nil(t, active)
		return tx.Insert(context.Background(), record)
	})
	require.NoError(t, err)
	assert.NotEmpty(t, record.ID, "insert assigns an identifier")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	clockIn := time.Now().Add(-2 * time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM attendance_records WHERE student_id = \$1 AND status = \$2 FOR UPDATE`).
		WithArgs("stu-1", string(models.TimeRecordStatusActive)).
		WillReturnRows(activeRow("rec-1", "stu-1", clockIn))
	mock.ExpectRollback()

	sentinel := errors.New("session already open")
	err := repo.WithinTx(context.Background(), func(tx AttendanceTx) error {
		active, err := tx.LockActiveForStudent(context.Background(), "stu-1")
		require.NoError(t, err)
		require.NotNil(t, active)
		assert.Equal(t, "rec-1", active.ID)
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithinTxCompleteCommits(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	clockIn := time.Now().Add(-8 * time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT (.+) FROM attendance_records WHERE id = \$1 AND student_id = \$2 FOR UPDATE`).
		WithArgs("rec-1", "stu-1").
		WillReturnRows(activeRow("rec-1", "stu-1", clockIn))
	mock.ExpectExec("UPDATE attendance_records").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.WithinTx(context.Background(), func(tx AttendanceTx) error {
		record, err := tx.LockRecordForStudent(context.Background(), "rec-1", "stu-1")
		require.NoError(t, err)
		require.NotNil(t, record)
		return tx.Complete(context.Background(), CompletionPatch{
			RecordID:     record.ID,
			ClockOutTime: time.Now(),
			TotalHours:   8.00,
		})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCompleteRejectsNonActiveRecord(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE attendance_records").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.WithinTx(context.Background(), func(tx AttendanceTx) error {
		return tx.Complete(context.Background(), CompletionPatch{
			RecordID:     "rec-1",
			ClockOutTime: time.Now(),
			TotalHours:   8.00,
		})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no longer active")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindActiveForStudentNoRows(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(`SELECT (.+) FROM attendance_records WHERE student_id = \$1 AND status = \$2`).
		WithArgs("stu-1", string(models.TimeRecordStatusActive)).
		WillReturnRows(sqlmock.NewRows(attendanceCols))

	record, err := repo.FindActiveForStudent(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListAttendanceRecords(t *testing.T) {
	db, mock, cleanup := newAttendanceMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	clockIn := time.Now().Add(-8 * time.Hour)
	mock.ExpectQuery(`SELECT (.+) FROM attendance_records WHERE 1=1 AND student_id = \$1 ORDER BY clock_in_time DESC LIMIT 50 OFFSET 0`).
		WithArgs("stu-1").
		WillReturnRows(activeRow("rec-1", "stu-1", clockIn))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM attendance_records WHERE 1=1 AND student_id = \$1`).
		WithArgs("stu-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	rows, total, err := repo.List(context.Background(), models.AttendanceRecordFilter{StudentID: "stu-1"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
