package engine

import (
	"fmt"

	"github.com/google/uuid"
	"procurement-service/internal/models"
)

// Intent is an instruction to notify someone about a request. Recipients are
// either a role (resolved against the catalog by the caller, scoped to a
// department for DEPT_MANAGER) or explicit user ids. Delivery is best-effort
// and happens only after the state change has committed.
type Intent struct {
	RequestID    uuid.UUID
	Role         string
	DepartmentID *uuid.UUID
	UserIDs      []uuid.UUID
	Title        string
	Message      string
}

// roleForStep maps a step kind to the role whose holders act on it
var roleForStep = map[string]string{
	models.StepDeptManager: models.RoleDepartmentManager,
	models.StepIT:          models.RoleITAdmin,
	models.StepFinance:     models.RoleFinanceAdmin,
	models.StepPurchasing:  models.RolePurchasingAdmin,
}

// chainOrder is the full step order used to find the next unresolved step
var chainOrder = []string{
	models.StepDeptManager, models.StepIT, models.StepFinance, models.StepPurchasing,
}

// NextPendingStep returns the first step in chain order still PENDING, or nil
func NextPendingStep(req *models.PurchaseRequest) *models.ApprovalStep {
	for _, kind := range chainOrder {
		if step := req.Step(kind); step != nil && step.Status == models.StepStatusPending {
			return step
		}
	}
	return nil
}

// CreationIntents computes the notifications owed after a request is created:
// the role holders of the next unresolved step. Steps the creator already
// satisfied are not pending and are skipped naturally.
func (e *Engine) CreationIntents(req *models.PurchaseRequest) []Intent {
	next := NextPendingStep(req)
	if next == nil {
		return nil
	}
	return []Intent{stepIntent(req, next,
		fmt.Sprintf("Purchase request PR-%d submitted", req.RequestNumber),
		fmt.Sprintf("%q awaits your %s approval.", req.Title, next.Kind))}
}

// DecisionIntents computes the notifications owed after a step decision,
// based on the request's new state.
func (e *Engine) DecisionIntents(req *models.PurchaseRequest, kind, decision string) []Intent {
	switch req.Status {
	case models.StatusRejected:
		return []Intent{requesterIntent(req,
			fmt.Sprintf("Purchase request PR-%d rejected", req.RequestNumber),
			fmt.Sprintf("Your request %q was rejected at the %s step.", req.Title, kind))}
	case models.StatusCompleted:
		return []Intent{requesterIntent(req,
			fmt.Sprintf("Purchase request PR-%d completed", req.RequestNumber),
			fmt.Sprintf("Procurement for %q is complete.", req.Title))}
	case models.StatusInProcurement:
		return []Intent{requesterIntent(req,
			fmt.Sprintf("Purchase request PR-%d in procurement", req.RequestNumber),
			fmt.Sprintf("Purchasing has started procurement for %q.", req.Title))}
	}

	next := NextPendingStep(req)
	if next == nil {
		return nil
	}
	return []Intent{stepIntent(req, next,
		fmt.Sprintf("Purchase request PR-%d awaits %s approval", req.RequestNumber, next.Kind),
		fmt.Sprintf("%q passed the %s step and awaits your approval.", req.Title, kind))}
}

// ReminderIntent builds the notification for a step pending too long
func (e *Engine) ReminderIntent(req *models.PurchaseRequest, step *models.ApprovalStep) Intent {
	return stepIntent(req, step,
		fmt.Sprintf("Purchase request PR-%d still awaits %s approval", req.RequestNumber, step.Kind),
		fmt.Sprintf("%q has been waiting on the %s step.", req.Title, step.Kind))
}

func stepIntent(req *models.PurchaseRequest, step *models.ApprovalStep, title, message string) Intent {
	intent := Intent{
		RequestID: req.ID,
		Role:      roleForStep[step.Kind],
		Title:     title,
		Message:   message,
	}
	if step.Kind == models.StepDeptManager {
		dept := req.DepartmentID
		intent.DepartmentID = &dept
	}
	return intent
}

func requesterIntent(req *models.PurchaseRequest, title, message string) Intent {
	return Intent{
		RequestID: req.ID,
		UserIDs:   []uuid.UUID{req.RequesterID},
		Title:     title,
		Message:   message,
	}
}
