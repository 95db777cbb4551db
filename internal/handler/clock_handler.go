package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinical-clock-api/internal/dto"
	"github.com/noah-isme/clinical-clock-api/internal/middleware"
	"github.com/noah-isme/clinical-clock-api/internal/models"
	appErrors "github.com/noah-isme/clinical-clock-api/pkg/errors"
	"github.com/noah-isme/clinical-clock-api/pkg/response"
)

type clockService interface {
	ClockIn(ctx context.Context, req dto.ClockInRequest, actor *models.JWTClaims) (*dto.ClockInResult, error)
	ClockOut(ctx context.Context, req dto.ClockOutRequest, actor *models.JWTClaims) (*dto.ClockOutResult, error)
	GetClockStatus(ctx context.Context, studentID string) (*dto.ClockStatus, error)
	ListRecords(ctx context.Context, req dto.ListRecordsRequest) ([]models.AttendanceRecord, *models.Pagination, error)
}

// ClockHandler exposes the attendance clock endpoints.
type ClockHandler struct {
	service clockService
}

// NewClockHandler builds a new handler.
func NewClockHandler(service clockService) *ClockHandler {
	return &ClockHandler{service: service}
}

// ClockIn godoc
// @Summary Open an attendance session
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.ClockInRequest true "Clock-in payload"
// @Success 201 {object} response.Envelope
// @Router /attendance/clock-in [post]
func (h *ClockHandler) ClockIn(c *gin.Context) {
	claims := claimsFromContext(c)
	var req dto.ClockInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid clock-in payload"))
		return
	}
	if !claims.CanActFor(req.StudentID) {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	result, err := h.service.ClockIn(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// ClockOut godoc
// @Summary Close the active attendance session
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.ClockOutRequest true "Clock-out payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/clock-out [post]
func (h *ClockHandler) ClockOut(c *gin.Context) {
	claims := claimsFromContext(c)
	var req dto.ClockOutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid clock-out payload"))
		return
	}
	if !claims.CanActFor(req.StudentID) {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	result, err := h.service.ClockOut(c.Request.Context(), req, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Status godoc
// @Summary Snapshot of the student's current session
// @Tags Attendance
// @Produce json
// @Param studentId query string true "Student ID (defaults to the caller's own)"
// @Success 200 {object} response.Envelope
// @Router /attendance/status [get]
func (h *ClockHandler) Status(c *gin.Context) {
	claims := claimsFromContext(c)
	studentID := c.Query("studentId")
	if studentID == "" && claims != nil {
		studentID = claims.StudentID
	}
	if !claims.CanActFor(studentID) {
		response.Error(c, appErrors.ErrForbidden)
		return
	}
	status, err := h.service.GetClockStatus(c.Request.Context(), studentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil, middleware.ExtractMeta(c))
}

// List godoc
// @Summary List attendance records
// @Tags Attendance
// @Produce json
// @Param studentId query string false "Student ID filter"
// @Param rotationId query string false "Rotation ID filter"
// @Param siteId query string false "Site ID filter"
// @Param status query string false "Status filter (ACTIVE or COMPLETED)"
// @Success 200 {object} response.Envelope
// @Router /attendance/records [get]
func (h *ClockHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	var req dto.ListRecordsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid record filter"))
		return
	}
	// Students only see their own records regardless of the filter.
	if claims != nil && claims.Role == models.RoleStudent {
		req.StudentID = claims.StudentID
	}
	rows, pagination, err := h.service.ListRecords(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, pagination)
}
