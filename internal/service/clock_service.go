package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/clinical-clock-api/internal/dto"
	"github.com/noah-isme/clinical-clock-api/internal/geo"
	"github.com/noah-isme/clinical-clock-api/internal/models"
	"github.com/noah-isme/clinical-clock-api/internal/repository"
	"github.com/noah-isme/clinical-clock-api/pkg/config"
	appErrors "github.com/noah-isme/clinical-clock-api/pkg/errors"
)

// Logical operation names tracked by the circuit breaker and metrics.
const (
	OpClockIn  = "clockIn"
	OpClockOut = "clockOut"
	OpStatus   = "clockStatus"
)

type attendanceStore interface {
	WithinTx(ctx context.Context, fn func(tx repository.AttendanceTx) error) error
	FindActiveForStudent(ctx context.Context, studentID string) (*models.AttendanceRecord, error)
	List(ctx context.Context, filter models.AttendanceRecordFilter) ([]models.AttendanceRecord, int, error)
}

type siteResolver interface {
	ResolveSite(ctx context.Context, siteID, rotationID string) (*models.SiteReference, error)
}

type circuitBreaker interface {
	Allow(operation string) bool
	Success(operation string)
	Failure(operation string)
	Release(operation string)
}

type auditRecorder interface {
	Record(event models.AuditEvent)
}

// ClockService orchestrates the attendance state machine: validation,
// geofencing, failure isolation and the row-locked transitions.
type ClockService struct {
	store     attendanceStore
	sites     siteResolver
	breaker   circuitBreaker
	cache     *CacheService
	audit     auditRecorder
	metrics   *MetricsService
	validator *validator.Validate
	policy    geo.Policy
	clockCfg  config.ClockConfig
	geoCfg    config.GeofenceConfig
	keyPrefix string
	now       func() time.Time
	logger    *zap.Logger
}

// NewClockService constructs the clock service.
func NewClockService(store attendanceStore, sites siteResolver, cb circuitBreaker, cache *CacheService, audit auditRecorder, metrics *MetricsService, validate *validator.Validate, clockCfg config.ClockConfig, geoCfg config.GeofenceConfig, keyPrefix string, logger *zap.Logger) *ClockService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clockCfg.MinSession <= 0 {
		clockCfg.MinSession = 5 * time.Minute
	}
	if clockCfg.MaxSession <= 0 {
		clockCfg.MaxSession = 24 * time.Hour
	}
	if geoCfg.AccuracyCeilingMeters <= 0 {
		geoCfg.AccuracyCeilingMeters = 500
	}
	if keyPrefix == "" {
		keyPrefix = "clock"
	}
	return &ClockService{
		store:     store,
		sites:     sites,
		breaker:   cb,
		cache:     cache,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		policy: geo.Policy{
			DefaultRadiusMeters: geoCfg.DefaultRadiusMeters,
			StrictRadiusFactor:  geoCfg.StrictRadiusFactor,
		},
		clockCfg:  clockCfg,
		geoCfg:    geoCfg,
		keyPrefix: keyPrefix,
		now:       time.Now,
		logger:    logger,
	}
}

// ClockIn opens an attendance session. Validation order: structure, circuit,
// timestamp, accuracy, site, geofence, then the row-locked insert.
func (s *ClockService) ClockIn(ctx context.Context, req dto.ClockInRequest, actor *models.JWTClaims) (*dto.ClockInResult, error) {
	result, err := s.clockIn(ctx, req, actor)
	s.recordOutcome(OpClockIn, err)
	return result, err
}

func (s *ClockService) clockIn(ctx context.Context, req dto.ClockInRequest, actor *models.JWTClaims) (*dto.ClockInResult, error) {
	if err := s.validateClockIn(req); err != nil {
		return nil, err
	}

	if !s.breaker.Allow(OpClockIn) {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "clock-in temporarily unavailable")
	}
	// Calls that exit without reaching a datastore verdict must hand the
	// half-open probe slot back, or the circuit can never re-test.
	verdict := false
	defer func() {
		if !verdict {
			s.breaker.Release(OpClockIn)
		}
	}()

	now := s.now()
	if req.Timestamp.After(now.Add(s.clockCfg.SkewTolerance)) {
		return nil, appErrors.WithDetails(appErrors.ErrFutureTimestamp, map[string]interface{}{
			"timestamp":   req.Timestamp,
			"server_time": now,
		})
	}

	if req.Location != nil && req.Location.AccuracyMeters > s.geoCfg.AccuracyCeilingMeters {
		return nil, appErrors.WithDetails(appErrors.ErrLocationAccuracyLow, map[string]interface{}{
			"accuracy_meters": req.Location.AccuracyMeters,
			"ceiling_meters":  s.geoCfg.AccuracyCeilingMeters,
		})
	}

	site, err := s.sites.ResolveSite(ctx, req.SiteID, req.RotationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, "site lookup failed")
	}
	if site == nil {
		return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "unknown site or rotation"), map[string]interface{}{
			"site_id":     req.SiteID,
			"rotation_id": req.RotationID,
		})
	}

	source := models.LocationSourceManual
	if req.Location != nil {
		source = models.LocationSourceGPS
		if site.HasCoordinates() {
			check := s.policy.Classify(
				geo.Coordinate{Latitude: req.Location.Latitude, Longitude: req.Location.Longitude},
				geo.Coordinate{Latitude: *site.Latitude, Longitude: *site.Longitude},
				site.GeofenceRadiusMeters, site.StrictGeofence,
			)
			if !check.WithinRange {
				return nil, appErrors.WithDetails(appErrors.ErrLocationTooFar, map[string]interface{}{
					"distance_meters": check.DistanceMeters,
					"radius_meters":   check.RadiusMeters,
					"site_id":         site.ID,
				})
			}
		}
	}

	record := &models.AttendanceRecord{
		StudentID:      req.StudentID,
		SiteID:         site.ID,
		ClockInTime:    req.Timestamp,
		Status:         models.TimeRecordStatusActive,
		LocationSource: source,
		Notes:          req.Notes,
	}
	if req.RotationID != "" {
		rotation := req.RotationID
		record.RotationID = &rotation
	}
	if req.Location != nil {
		lat, lng := req.Location.Latitude, req.Location.Longitude
		record.ClockInLat = &lat
		record.ClockInLng = &lng
	}

	txCtx, cancel := s.boundedContext(ctx)
	defer cancel()

	txStart := time.Now()
	err = s.store.WithinTx(txCtx, func(tx repository.AttendanceTx) error {
		active, err := tx.LockActiveForStudent(txCtx, req.StudentID)
		if err != nil {
			return err
		}
		if active != nil {
			return appErrors.WithDetails(appErrors.ErrAlreadyClockedIn, map[string]interface{}{
				"record_id": active.ID,
			})
		}
		return tx.Insert(txCtx, record)
	})
	s.metrics.ObserveDBTx(OpClockIn, time.Since(txStart))
	if err != nil {
		if appErrors.IsCode(err, appErrors.ErrAlreadyClockedIn.Code) {
			return nil, err
		}
		verdict = true
		s.breaker.Failure(OpClockIn)
		return nil, s.databaseError(err, "clock-in transaction failed")
	}
	verdict = true
	s.breaker.Success(OpClockIn)

	s.invalidateStatus(ctx, req.StudentID)
	s.recordAudit(record, actor, source)

	s.logger.Sugar().Infow("clock-in",
		"student_id", req.StudentID,
		"record_id", record.ID,
		"site_id", site.ID,
		"location_source", string(source),
	)

	return &dto.ClockInResult{
		RecordID:       record.ID,
		Status:         string(record.Status),
		SiteID:         site.ID,
		SiteName:       site.Name,
		LocationSource: string(source),
		ClockInTime:    record.ClockInTime,
	}, nil
}

// ClockOut closes the student's active session. Duration bounds are checked
// before any mutation so the record stays ACTIVE on rejection.
func (s *ClockService) ClockOut(ctx context.Context, req dto.ClockOutRequest, actor *models.JWTClaims) (*dto.ClockOutResult, error) {
	result, err := s.clockOut(ctx, req, actor)
	s.recordOutcome(OpClockOut, err)
	return result, err
}

func (s *ClockService) clockOut(ctx context.Context, req dto.ClockOutRequest, actor *models.JWTClaims) (*dto.ClockOutResult, error) {
	if err := s.validateClockOut(req); err != nil {
		return nil, err
	}

	if !s.breaker.Allow(OpClockOut) {
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "clock-out temporarily unavailable")
	}
	verdict := false
	defer func() {
		if !verdict {
			s.breaker.Release(OpClockOut)
		}
	}()

	txCtx, cancel := s.boundedContext(ctx)
	defer cancel()

	var result *dto.ClockOutResult
	var closed *models.AttendanceRecord
	txStart := time.Now()
	err := s.store.WithinTx(txCtx, func(tx repository.AttendanceTx) error {
		var record *models.AttendanceRecord
		var err error
		if req.TimeRecordID != "" {
			record, err = tx.LockRecordForStudent(txCtx, req.TimeRecordID, req.StudentID)
		} else {
			record, err = tx.LockActiveForStudent(txCtx, req.StudentID)
		}
		if err != nil {
			return err
		}
		if record == nil || record.Status != models.TimeRecordStatusActive {
			return appErrors.Clone(appErrors.ErrNoActiveSession, "")
		}

		elapsed := req.Timestamp.Sub(record.ClockInTime)
		if elapsed < s.clockCfg.MinSession {
			return appErrors.WithDetails(appErrors.ErrSessionTooShort, map[string]interface{}{
				"elapsed_seconds": int64(elapsed.Seconds()),
				"minimum_seconds": int64(s.clockCfg.MinSession.Seconds()),
			})
		}
		if elapsed > s.clockCfg.MaxSession {
			return appErrors.WithDetails(appErrors.ErrSessionTooLong, map[string]interface{}{
				"elapsed_seconds": int64(elapsed.Seconds()),
				"maximum_seconds": int64(s.clockCfg.MaxSession.Seconds()),
			})
		}

		patch := repository.CompletionPatch{
			RecordID:     record.ID,
			ClockOutTime: req.Timestamp,
			TotalHours:   models.SessionHours(elapsed),
			Notes:        req.Notes,
		}
		if req.Location != nil {
			lat, lng := req.Location.Latitude, req.Location.Longitude
			patch.ClockOutLat = &lat
			patch.ClockOutLng = &lng
		}
		if err := tx.Complete(txCtx, patch); err != nil {
			return err
		}

		result = &dto.ClockOutResult{
			RecordID:     record.ID,
			Status:       string(models.TimeRecordStatusCompleted),
			TotalHours:   patch.TotalHours,
			ClockOutTime: req.Timestamp,
		}
		closed = record
		return nil
	})
	s.metrics.ObserveDBTx(OpClockOut, time.Since(txStart))
	if err != nil {
		var typed *appErrors.Error
		if errors.As(err, &typed) && typed.Code != appErrors.ErrDatabase.Code {
			return nil, err
		}
		verdict = true
		s.breaker.Failure(OpClockOut)
		return nil, s.databaseError(err, "clock-out transaction failed")
	}
	verdict = true
	s.breaker.Success(OpClockOut)

	s.invalidateStatus(ctx, req.StudentID)
	s.queueClockOutAudit(closed, actor, req.Timestamp, result.TotalHours)

	s.logger.Sugar().Infow("clock-out",
		"student_id", req.StudentID,
		"record_id", result.RecordID,
		"total_hours", result.TotalHours,
	)

	return result, nil
}

// statusSnapshot is the cached shape backing GetClockStatus.
type statusSnapshot struct {
	IsActive    bool       `json:"is_active"`
	RecordID    string     `json:"record_id,omitempty"`
	SiteID      string     `json:"site_id,omitempty"`
	ClockInTime *time.Time `json:"clock_in_time,omitempty"`
}

// GetClockStatus returns a best-effort view of the student's current session.
// It never takes the row lock; only ClockIn/ClockOut are authoritative.
func (s *ClockService) GetClockStatus(ctx context.Context, studentID string) (*dto.ClockStatus, error) {
	status, err := s.getClockStatus(ctx, studentID)
	s.recordOutcome(OpStatus, err)
	return status, err
}

func (s *ClockService) getClockStatus(ctx context.Context, studentID string) (*dto.ClockStatus, error) {
	if studentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}

	key := s.statusKey(studentID)
	var snapshot statusSnapshot
	hit, _ := s.cache.Get(ctx, key, &snapshot)
	if !hit {
		record, err := s.store.FindActiveForStudent(ctx, studentID)
		if err != nil {
			return nil, s.databaseError(err, "status lookup failed")
		}
		snapshot = statusSnapshot{}
		if record != nil {
			clockIn := record.ClockInTime
			snapshot = statusSnapshot{
				IsActive:    true,
				RecordID:    record.ID,
				SiteID:      record.SiteID,
				ClockInTime: &clockIn,
			}
		}
		_ = s.cache.Set(ctx, key, snapshot, 0)
	}

	status := &dto.ClockStatus{IsActive: snapshot.IsActive}
	if snapshot.IsActive {
		recordID := snapshot.RecordID
		siteID := snapshot.SiteID
		status.TimeRecordID = &recordID
		status.SiteID = &siteID
		status.ClockInTime = snapshot.ClockInTime
		if snapshot.ClockInTime != nil {
			seconds := int64(s.now().Sub(*snapshot.ClockInTime).Seconds())
			if seconds < 0 {
				seconds = 0
			}
			status.CurrentDurationSeconds = &seconds
		}
	}
	return status, nil
}

// ListRecords returns attendance records for reporting consumers.
func (s *ClockService) ListRecords(ctx context.Context, req dto.ListRecordsRequest) ([]models.AttendanceRecord, *models.Pagination, error) {
	filter := models.AttendanceRecordFilter{
		StudentID:  req.StudentID,
		RotationID: req.RotationID,
		SiteID:     req.SiteID,
		Page:       req.Page,
		PageSize:   req.PageSize,
		SortBy:     req.SortBy,
		SortOrder:  req.SortOrder,
	}
	if req.Status != "" {
		status := models.TimeRecordStatus(req.Status)
		if !status.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid status filter")
		}
		filter.Status = &status
	}
	if req.From != "" {
		from, err := time.Parse(time.RFC3339, req.From)
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid from timestamp")
		}
		filter.From = &from
	}
	if req.To != "" {
		to, err := time.Parse(time.RFC3339, req.To)
		if err != nil {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid to timestamp")
		}
		filter.To = &to
	}

	rows, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, s.databaseError(err, "list records failed")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	return rows, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

func (s *ClockService) validateClockIn(req dto.ClockInRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clock-in payload")
	}
	if req.RotationID == "" && req.SiteID == "" {
		return appErrors.Clone(appErrors.ErrValidation, "one of rotation_id or site_id is required")
	}
	return s.validateLocation(req.Location)
}

func (s *ClockService) validateClockOut(req dto.ClockOutRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clock-out payload")
	}
	return s.validateLocation(req.Location)
}

func (s *ClockService) validateLocation(loc *dto.Location) error {
	if loc == nil {
		return nil
	}
	if !geo.ValidLatitude(loc.Latitude) || !geo.ValidLongitude(loc.Longitude) {
		return appErrors.WithDetails(appErrors.Clone(appErrors.ErrValidation, "coordinates out of range"), map[string]interface{}{
			"latitude":  loc.Latitude,
			"longitude": loc.Longitude,
		})
	}
	return nil
}

func (s *ClockService) boundedContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.clockCfg.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.clockCfg.RequestTimeout)
}

func (s *ClockService) databaseError(err error, message string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, fmt.Sprintf("%s: timed out", message))
	}
	return appErrors.Wrap(err, appErrors.ErrDatabase.Code, appErrors.ErrDatabase.Status, message)
}

func (s *ClockService) statusKey(studentID string) string {
	return fmt.Sprintf("%s:status:%s", s.keyPrefix, studentID)
}

// invalidateStatus is best-effort side work; failures are logged by the cache
// service and never fail the committed operation.
func (s *ClockService) invalidateStatus(ctx context.Context, studentID string) {
	_ = s.cache.Invalidate(ctx, s.statusKey(studentID))
}

func (s *ClockService) recordAudit(record *models.AttendanceRecord, actor *models.JWTClaims, source models.LocationSource) {
	if s.audit == nil {
		return
	}
	action := models.AuditActionClockIn
	if source == models.LocationSourceManual {
		action = models.AuditActionManualClockIn
	}
	event := models.AuditEvent{
		StudentID:  record.StudentID,
		RecordID:   record.ID,
		Action:     action,
		OccurredAt: record.ClockInTime,
	}
	if actor != nil {
		actorID := actor.UserID
		event.ActorID = &actorID
	}
	s.audit.Record(event)
}

func (s *ClockService) queueClockOutAudit(record *models.AttendanceRecord, actor *models.JWTClaims, at time.Time, hours float64) {
	if s.audit == nil {
		return
	}
	event := models.AuditEvent{
		StudentID:  record.StudentID,
		RecordID:   record.ID,
		Action:     models.AuditActionClockOut,
		OccurredAt: at,
		Details:    []byte(fmt.Sprintf(`{"total_hours":%.2f}`, hours)),
	}
	if actor != nil {
		actorID := actor.UserID
		event.ActorID = &actorID
	}
	s.audit.Record(event)
}

func (s *ClockService) recordOutcome(operation string, err error) {
	if s.metrics == nil {
		return
	}
	outcome := "OK"
	if err != nil {
		outcome = appErrors.FromError(err).Code
	}
	s.metrics.RecordClockOperation(operation, outcome)
}
