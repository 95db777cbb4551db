package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/clinical-clock-api/internal/dto"
	"github.com/noah-isme/clinical-clock-api/internal/middleware"
	"github.com/noah-isme/clinical-clock-api/internal/models"
	appErrors "github.com/noah-isme/clinical-clock-api/pkg/errors"
)

type fakeClockSrv struct {
	clockInResult  *dto.ClockInResult
	clockInErr     error
	clockOutResult *dto.ClockOutResult
	clockOutErr    error
	status         *dto.ClockStatus
	statusErr      error
	records        []models.AttendanceRecord
	pagination     *models.Pagination
	listErr        error
	lastListReq    dto.ListRecordsRequest
	lastStudentID  string
}

func (f *fakeClockSrv) ClockIn(_ context.Context, req dto.ClockInRequest, _ *models.JWTClaims) (*dto.ClockInResult, error) {
	return f.clockInResult, f.clockInErr
}

func (f *fakeClockSrv) ClockOut(_ context.Context, req dto.ClockOutRequest, _ *models.JWTClaims) (*dto.ClockOutResult, error) {
	return f.clockOutResult, f.clockOutErr
}

func (f *fakeClockSrv) GetClockStatus(_ context.Context, studentID string) (*dto.ClockStatus, error) {
	f.lastStudentID = studentID
	return f.status, f.statusErr
}

func (f *fakeClockSrv) ListRecords(_ context.Context, req dto.ListRecordsRequest) ([]models.AttendanceRecord, *models.Pagination, error) {
	f.lastListReq = req
	return f.records, f.pagination, f.listErr
}

type clockEnvelope struct {
	Data  map[string]interface{} `json:"data"`
	Error *appErrors.Error       `json:"error"`
}

func studentClaims(studentID string) *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", StudentID: studentID, Role: models.RoleStudent}
}

func clockTestContext(t *testing.T, method, target, body string, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
		c.Request = httptest.NewRequest(method, target, reader)
		c.Request.Header.Set("Content-Type", "application/json")
	} else {
		c.Request = httptest.NewRequest(method, target, nil)
	}
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, rec
}

func TestClockHandlerClockInCreated(t *testing.T) {
	srv := &fakeClockSrv{clockInResult: &dto.ClockInResult{
		RecordID: "rec-1", Status: "ACTIVE", SiteID: "site-1", LocationSource: "gps",
	}}
	handler := NewClockHandler(srv)

	body := `{"student_id":"stu-1","site_id":"site-1","timestamp":"2024-03-11T15:00:00Z","location":{"latitude":40.7128,"longitude":-74.0060,"accuracy_meters":10}}`
	c, rec := clockTestContext(t, http.MethodPost, "/attendance/clock-in", body, studentClaims("stu-1"))

	handler.ClockIn(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	var envelope clockEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "rec-1", envelope.Data["record_id"])
	assert.Equal(t, "ACTIVE", envelope.Data["status"])
}

func TestClockHandlerClockInMalformedBody(t *testing.T) {
	handler := NewClockHandler(&fakeClockSrv{})
	c, rec := clockTestContext(t, http.MethodPost, "/attendance/clock-in", `{"student_id":`, studentClaims("stu-1"))

	handler.ClockIn(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var envelope clockEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "VALIDATION_ERROR", envelope.Error.Code)
}

func TestClockHandlerClockInForbiddenForOtherStudent(t *testing.T) {
	srv := &fakeClockSrv{}
	handler := NewClockHandler(srv)

	body := `{"student_id":"stu-2","site_id":"site-1","timestamp":"2024-03-11T15:00:00Z"}`
	c, rec := clockTestContext(t, http.MethodPost, "/attendance/clock-in", body, studentClaims("stu-1"))

	handler.ClockIn(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestClockHandlerClockInCoordinatorProxy(t *testing.T) {
	srv := &fakeClockSrv{clockInResult: &dto.ClockInResult{RecordID: "rec-1", Status: "ACTIVE"}}
	handler := NewClockHandler(srv)

	body := `{"student_id":"stu-2","site_id":"site-1","timestamp":"2024-03-11T15:00:00Z"}`
	claims := &models.JWTClaims{UserID: "coord-1", Role: models.RoleCoordinator}
	c, rec := clockTestContext(t, http.MethodPost, "/attendance/clock-in", body, claims)

	handler.ClockIn(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestClockHandlerClockInConflictPassthrough(t *testing.T) {
	srv := &fakeClockSrv{clockInErr: appErrors.ErrAlreadyClockedIn}
	handler := NewClockHandler(srv)

	body := `{"student_id":"stu-1","site_id":"site-1","timestamp":"2024-03-11T15:00:00Z"}`
	c, rec := clockTestContext(t, http.MethodPost, "/attendance/clock-in", body, studentClaims("stu-1"))

	handler.ClockIn(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	var envelope clockEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, "ALREADY_CLOCKED_IN", envelope.Error.Code)
}

func TestClockHandlerClockOutOK(t *testing.T) {
	srv := &fakeClockSrv{clockOutResult: &dto.ClockOutResult{
		RecordID: "rec-1", Status: "COMPLETED", TotalHours: 8.00, ClockOutTime: time.Date(2024, 3, 11, 23, 0, 0, 0, time.UTC),
	}}
	handler := NewClockHandler(srv)

	body := `{"student_id":"stu-1","timestamp":"2024-03-11T23:00:00Z"}`
	c, rec := clockTestContext(t, http.MethodPost, "/attendance/clock-out", body, studentClaims("stu-1"))

	handler.ClockOut(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope clockEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 8.00, envelope.Data["total_hours"])
	assert.Equal(t, "COMPLETED", envelope.Data["status"])
}

func TestClockHandlerStatusDefaultsToCaller(t *testing.T) {
	srv := &fakeClockSrv{status: &dto.ClockStatus{IsActive: false}}
	handler := NewClockHandler(srv)

	c, rec := clockTestContext(t, http.MethodGet, "/attendance/status", "", studentClaims("stu-1"))

	handler.Status(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stu-1", srv.lastStudentID)
}

func TestClockHandlerStatusForbiddenForOtherStudent(t *testing.T) {
	handler := NewClockHandler(&fakeClockSrv{})

	c, rec := clockTestContext(t, http.MethodGet, "/attendance/status?studentId=stu-2", "", studentClaims("stu-1"))

	handler.Status(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestClockHandlerListScopesStudentsToOwnRecords(t *testing.T) {
	srv := &fakeClockSrv{pagination: &models.Pagination{Page: 1, PageSize: 50}}
	handler := NewClockHandler(srv)

	c, rec := clockTestContext(t, http.MethodGet, "/attendance/records?studentId=stu-2", "", studentClaims("stu-1"))

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stu-1", srv.lastListReq.StudentID, "filter is overridden with the caller's own student id")
}

func TestClockHandlerListAdminKeepsFilter(t *testing.T) {
	srv := &fakeClockSrv{pagination: &models.Pagination{Page: 1, PageSize: 50}}
	handler := NewClockHandler(srv)

	claims := &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin}
	c, rec := clockTestContext(t, http.MethodGet, "/attendance/records?studentId=stu-2&status=COMPLETED", "", claims)

	handler.List(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stu-2", srv.lastListReq.StudentID)
	assert.Equal(t, "COMPLETED", srv.lastListReq.Status)
}
