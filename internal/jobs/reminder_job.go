package jobs

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"procurement-service/internal/engine"
	"procurement-service/internal/models"
	"procurement-service/internal/repository"
	"procurement-service/internal/services"
)

// ReminderJob periodically nudges approvers whose step has been waiting too
// long. It never changes request state, it only re-sends the pending-step
// notification and records the reminder in the audit trail.
type ReminderJob struct {
	repo         repository.RequestRepositoryInterface
	service      *services.RequestService
	eng          *engine.Engine
	logger       *logrus.Logger
	interval     time.Duration
	pendingAfter time.Duration
	stopCh       chan struct{}
}

// NewReminderJob creates a new reminder job
func NewReminderJob(repo repository.RequestRepositoryInterface, service *services.RequestService, eng *engine.Engine, logger *logrus.Logger) *ReminderJob {
	return &ReminderJob{
		repo:         repo,
		service:      service,
		eng:          eng,
		logger:       logger,
		interval:     1 * time.Hour,
		pendingAfter: 24 * time.Hour,
		stopCh:       make(chan struct{}),
	}
}

// Start begins the reminder job
func (j *ReminderJob) Start(ctx context.Context) {
	j.logger.Info("Reminder job started")

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// Run immediately on start
	j.runReminderCheck(ctx)

	for {
		select {
		case <-ticker.C:
			j.runReminderCheck(ctx)
		case <-j.stopCh:
			j.logger.Info("Reminder job stopped")
			return
		case <-ctx.Done():
			j.logger.Info("Reminder job context cancelled")
			return
		}
	}
}

// Stop signals the job to stop
func (j *ReminderJob) Stop() {
	close(j.stopCh)
}

// runReminderCheck finds stale requests and re-notifies their pending step
func (j *ReminderJob) runReminderCheck(ctx context.Context) {
	j.logger.Debug("Running reminder check...")

	cutoff := time.Now().Add(-j.pendingAfter)
	requests, err := j.repo.FindRequestsPendingSince(ctx, cutoff)
	if err != nil {
		j.logger.Errorf("Failed to find stale requests: %v", err)
		return
	}

	if len(requests) == 0 {
		j.logger.Debug("No requests need reminders")
		return
	}

	j.logger.Infof("Found %d requests with a stale pending step", len(requests))

	for i := range requests {
		req := &requests[i]
		step := engine.NextPendingStep(req)
		if step == nil {
			continue
		}

		j.service.DispatchIntents(ctx, req, []engine.Intent{j.eng.ReminderIntent(req, step)})

		if err := j.repo.CreateAuditLog(ctx, &models.RequestAuditLog{
			RequestID: req.ID,
			EventType: models.AuditEventReminded,
		}); err != nil {
			j.logger.Errorf("Failed to write reminder audit log for %s: %v", req.ID, err)
		}
	}
}
