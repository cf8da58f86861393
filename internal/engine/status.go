package engine

import (
	"time"

	"procurement-service/internal/models"
)

// DeriveStatus computes the request's overall status from its step statuses.
// Pure function: re-deriving from the same step set always yields the same
// result.
func DeriveStatus(steps []models.ApprovalStep) string {
	byKind := make(map[string]string, len(steps))
	for _, s := range steps {
		byKind[s.Kind] = s.Status
	}

	for _, kind := range models.GatingStepKinds {
		if byKind[kind] == models.StepStatusRejected {
			return models.StatusRejected
		}
	}

	switch byKind[models.StepPurchasing] {
	case models.StepStatusCompleted:
		return models.StatusCompleted
	case models.StepStatusInProcurement:
		return models.StatusInProcurement
	}

	for _, kind := range models.GatingStepKinds {
		if byKind[kind] != models.StepStatusApproved {
			return models.StatusPending
		}
	}
	return models.StatusApproved
}

// ApplyDerivedStatus recomputes the overall status and stores it on the
// request. When the three gating steps are all approved the PURCHASING step
// is created if absent; the creation is idempotent.
func ApplyDerivedStatus(req *models.PurchaseRequest, now time.Time) {
	// Cancellation is an explicit transition, never derived away.
	if req.Status == models.StatusCancelled {
		return
	}

	req.Status = DeriveStatus(req.Steps)

	if req.Status == models.StatusApproved {
		EnsurePurchasingStep(req, now)
	}
}

// EnsurePurchasingStep appends a PENDING purchasing step if the request has
// none, and resets a stale one (REJECTED, NOT_APPLICABLE) back to PENDING.
// Steps already moving through procurement are left alone. Safe to call
// repeatedly.
func EnsurePurchasingStep(req *models.PurchaseRequest, now time.Time) {
	if step := req.Step(models.StepPurchasing); step != nil {
		if step.Status == models.StepStatusRejected || step.Status == models.StepStatusNotApplicable {
			step.Status = models.StepStatusPending
			step.DeciderID = nil
			step.Comment = ""
			step.DecidedAt = nil
		}
		return
	}
	req.Steps = append(req.Steps, models.ApprovalStep{
		RequestID: req.ID,
		Kind:      models.StepPurchasing,
		Status:    models.StepStatusPending,
		CreatedAt: now,
	})
}
