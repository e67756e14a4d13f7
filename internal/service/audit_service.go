package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/cte-skillshub-api/internal/models"
	"github.com/noah-isme/cte-skillshub-api/pkg/jobs"
)

const auditJobType = "audit_log"

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// AuditService records audit entries off the request path through a job queue.
type AuditService struct {
	writer auditWriter
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewAuditService builds the service and its queue. Call Start before recording.
func NewAuditService(writer auditWriter, cfg jobs.QueueConfig, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AuditService{writer: writer, logger: logger}
	cfg.Logger = logger
	s.queue = jobs.NewQueue("audit", s.handle, cfg)
	return s
}

// Start launches the queue workers.
func (s *AuditService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains pending entries.
func (s *AuditService) Stop() {
	s.queue.Stop()
}

// Record enqueues an entry. A full or stopped queue drops the entry with a warning.
func (s *AuditService) Record(entry models.AuditLog) {
	if s == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if err := s.queue.TryEnqueue(jobs.Job{ID: entry.ID, Type: auditJobType, Payload: entry}); err != nil {
		s.logger.Warn("audit entry dropped",
			zap.String("action", entry.Action),
			zap.String("resource", entry.Resource),
			zap.Error(err))
	}
}

func (s *AuditService) handle(ctx context.Context, job jobs.Job) error {
	entry, ok := job.Payload.(models.AuditLog)
	if !ok {
		return fmt.Errorf("unexpected audit payload %T", job.Payload)
	}
	if s.writer == nil {
		return nil
	}
	return s.writer.CreateAuditLog(ctx, &entry)
}

// LogAuditWriter writes audit entries to the structured log. It backs the in-memory mode.
type LogAuditWriter struct {
	logger *zap.Logger
}

// NewLogAuditWriter constructs the writer.
func NewLogAuditWriter(logger *zap.Logger) *LogAuditWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogAuditWriter{logger: logger}
}

// CreateAuditLog logs the entry.
func (w *LogAuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	fields := []zap.Field{
		zap.String("audit_id", log.ID),
		zap.String("action", log.Action),
		zap.String("resource", log.Resource),
	}
	if log.UserID != nil {
		fields = append(fields, zap.String("user_id", *log.UserID))
	}
	if log.ResourceID != nil {
		fields = append(fields, zap.String("resource_id", *log.ResourceID))
	}
	if len(log.NewValues) > 0 {
		fields = append(fields, zap.ByteString("new_values", log.NewValues))
	}
	w.logger.Info("audit", fields...)
	return nil
}
