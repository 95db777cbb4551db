package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/clinical-clock-api/internal/models"
	"github.com/noah-isme/clinical-clock-api/pkg/config"
	"github.com/noah-isme/clinical-clock-api/pkg/jobs"
)

type auditInserter interface {
	Insert(ctx context.Context, event *models.AuditEvent) error
}

// AuditService records attendance audit events asynchronously. Recording is
// best-effort side work: a failed write is retried by the queue and then
// logged, never surfaced to the clock operation that triggered it.
type AuditService struct {
	repo    auditInserter
	queue   *jobs.Queue
	logger  *zap.Logger
	enabled bool
}

// NewAuditService constructs the service with its worker queue.
func NewAuditService(repo auditInserter, cfg config.AuditConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuditService{repo: repo, logger: logger, enabled: cfg.Enabled && repo != nil}
	if !s.enabled {
		return s
	}
	s.queue = jobs.NewQueue("attendance-audit", s.handle, jobs.QueueConfig{
		Workers:    cfg.WorkerConcurrency,
		MaxRetries: cfg.WorkerRetries,
		Logger:     logger,
	})
	return s
}

// Start launches the queue workers.
func (s *AuditService) Start(ctx context.Context) {
	if s.queue != nil {
		s.queue.Start(ctx)
	}
}

// Stop drains the workers.
func (s *AuditService) Stop() {
	if s.queue != nil {
		s.queue.Stop()
	}
}

// Record enqueues an audit event. Drops with a log line when the queue is
// unavailable; the primary operation has already committed.
func (s *AuditService) Record(event models.AuditEvent) {
	if !s.enabled {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	job := jobs.Job{ID: uuid.NewString(), Type: event.Action, Payload: event}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Warn("audit event dropped",
			zap.String("action", event.Action),
			zap.String("record_id", event.RecordID),
			zap.Error(err),
		)
	}
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	event, ok := job.Payload.(models.AuditEvent)
	if !ok {
		s.logger.Warn("audit job with unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	return s.repo.Insert(ctx, &event)
}
