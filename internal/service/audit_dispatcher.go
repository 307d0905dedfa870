package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/campus-records-api/internal/models"
	"github.com/noah-isme/campus-records-api/pkg/jobs"
)

type auditOriginKey struct{}

type auditOrigin struct {
	ip        string
	userAgent string
}

// WithAuditOrigin attaches the caller's address and user agent to ctx for audit entries.
func WithAuditOrigin(ctx context.Context, ip, userAgent string) context.Context {
	return context.WithValue(ctx, auditOriginKey{}, auditOrigin{ip: ip, userAgent: userAgent})
}

// stampOrigin fills IP and user agent from ctx, falling back to the given service name.
func stampOrigin(ctx context.Context, log *models.AuditLog, component string) {
	origin, _ := ctx.Value(auditOriginKey{}).(auditOrigin)
	log.IPAddress = origin.ip
	if log.IPAddress == "" {
		log.IPAddress = "system"
	}
	log.UserAgent = origin.userAgent
	if log.UserAgent == "" {
		log.UserAgent = component
	}
}

// AuditDispatcher persists audit entries on a worker pool so transitions never wait on the audit table.
type AuditDispatcher struct {
	queue *jobs.Queue[*models.AuditLog]
}

// NewAuditDispatcher wraps sink with a bounded queue.
func NewAuditDispatcher(sink auditLogger, workers, buffer int, logger *zap.Logger) *AuditDispatcher {
	handler := func(ctx context.Context, log *models.AuditLog) error {
		return sink.CreateAuditLog(ctx, log)
	}
	return &AuditDispatcher{
		queue: jobs.New[*models.AuditLog]("audit", handler, jobs.Config{
			Workers:    workers,
			BufferSize: buffer,
			MaxRetries: 2,
			Logger:     logger,
		}),
	}
}

// Start launches the workers.
func (d *AuditDispatcher) Start(ctx context.Context) { d.queue.Start(ctx) }

// Stop flushes buffered entries.
func (d *AuditDispatcher) Stop() { d.queue.Stop() }

// CreateAuditLog enqueues the entry; it fails only when the buffer is full or the dispatcher stopped.
func (d *AuditDispatcher) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return d.queue.Enqueue(log)
}
