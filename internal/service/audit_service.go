package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	"github.com/noah-isme/school-mgmt-api/pkg/jobs"
	"github.com/noah-isme/school-mgmt-api/pkg/middleware/requestid"
)

const auditJobType = "audit_log"

type auditRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

// AuditRecorder accepts audit entries for persistence.
type AuditRecorder interface {
	Record(ctx context.Context, log *models.AuditLog)
}

// AuditConfig tunes the audit worker pool.
type AuditConfig struct {
	Workers      int
	BufferSize   int
	MaxRetries   int
	RetryDelay   time.Duration
	DrainTimeout time.Duration
}

// AuditDispatcher writes audit logs on a background queue so requests never
// wait on the audit table.
type AuditDispatcher struct {
	repo    auditRepository
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewAuditDispatcher builds the dispatcher and its queue. Call Start before use.
func NewAuditDispatcher(repo auditRepository, metrics *MetricsService, logger *zap.Logger, cfg AuditConfig) *AuditDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 200 * time.Millisecond
	}
	d := &AuditDispatcher{repo: repo, metrics: metrics, logger: logger}
	d.queue = jobs.NewQueue("audit", d.handle, jobs.QueueConfig{
		Workers:      cfg.Workers,
		BufferSize:   cfg.BufferSize,
		MaxRetries:   cfg.MaxRetries,
		RetryDelay:   cfg.RetryDelay,
		DrainTimeout: cfg.DrainTimeout,
		Logger:       logger,
	})
	return d
}

// Start launches the workers. Pass a context that outlives request handling;
// Stop is what flushes pending entries on shutdown.
func (d *AuditDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop writes out buffered entries, bounded by DrainTimeout, and stops the workers.
func (d *AuditDispatcher) Stop() {
	d.queue.Stop()
}

// Record enqueues an entry. When the buffer is full the entry is dropped and logged.
func (d *AuditDispatcher) Record(ctx context.Context, log *models.AuditLog) {
	if log == nil {
		return
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	if err := d.queue.TryEnqueue(jobs.Job{ID: log.ID, Type: auditJobType, Payload: log}); err != nil {
		d.metrics.RecordAudit(false)
		d.logger.Warn("audit log dropped",
			zap.String("action", log.Action),
			zap.String("resource", log.Resource),
			zap.String("request_id", requestid.FromContext(ctx)),
			zap.Error(err))
		return
	}
	d.metrics.RecordAudit(true)
}

func (d *AuditDispatcher) handle(ctx context.Context, job jobs.Job) error {
	log, ok := job.Payload.(*models.AuditLog)
	if !ok {
		return fmt.Errorf("unexpected audit payload %T", job.Payload)
	}
	return d.repo.Create(ctx, log)
}

func recordAudit(ctx context.Context, recorder AuditRecorder, log *models.AuditLog) {
	if recorder == nil {
		return
	}
	recorder.Record(ctx, log)
}
