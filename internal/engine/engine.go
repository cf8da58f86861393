// Package engine implements the approval workflow core: step ordering,
// authorization, status derivation and notification intents. All functions
// operate on the aggregate loaded for the current transaction attempt and
// perform no I/O; persistence and delivery are the caller's concern.
package engine

import (
	"time"

	"github.com/google/uuid"
	"procurement-service/internal/models"
)

// stepAuthorization maps each step kind to the roles allowed to decide it.
// ADMIN is authorized everywhere; DEPT_MANAGER additionally requires the
// actor's department to match the request's department (checked in Authorized).
var stepAuthorization = map[string][]string{
	models.StepDeptManager: {models.RoleDepartmentManager, models.RoleAdmin},
	models.StepIT:          {models.RoleITAdmin, models.RoleAdmin},
	models.StepFinance:     {models.RoleFinanceAdmin, models.RoleAdmin},
	models.StepPurchasing:  {models.RolePurchasingAdmin, models.RoleAdmin},
}

// stepPrerequisite maps a step kind to the kind that must already be APPROVED
// before it may be decided. DEPT_MANAGER has no prerequisite.
var stepPrerequisite = map[string]string{
	models.StepIT:         models.StepDeptManager,
	models.StepFinance:    models.StepIT,
	models.StepPurchasing: models.StepFinance,
}

// Authorized reports whether the actor's role permits deciding the given step
// kind on a request belonging to requestDept.
func Authorized(actor models.Actor, kind string, requestDept uuid.UUID) bool {
	for _, role := range stepAuthorization[kind] {
		if actor.Role != role {
			continue
		}
		if role == models.RoleDepartmentManager && actor.DepartmentID != requestDept {
			continue
		}
		return true
	}
	return false
}

// Decide validates and applies a step decision to the loaded aggregate.
// The request is mutated in place; the caller persists the whole aggregate
// atomically afterwards. No state is touched when an error is returned.
func (e *Engine) Decide(req *models.PurchaseRequest, kind, decision, comment string, actor models.Actor, now time.Time) error {
	if !models.ValidStepKind(kind) {
		return &ValidationError{Field: "stepKind", Reason: "unknown step kind"}
	}
	if !models.ValidDecision(decision) {
		return &ValidationError{Field: "decision", Reason: "unknown decision value"}
	}
	// IN_PROCUREMENT and COMPLETED only make sense on the purchasing step;
	// the overall status is never derived from them anywhere else.
	if (decision == models.StepStatusInProcurement || decision == models.StepStatusCompleted) &&
		kind != models.StepPurchasing {
		return ErrInvalidTransition
	}

	step := req.Step(kind)
	if step == nil {
		return ErrStepNotFound
	}

	if req.Status == models.StatusCancelled {
		return ErrRequestFrozen
	}
	if req.Status == models.StatusRejected || req.Status == models.StatusCompleted {
		return ErrInvalidTransition
	}

	if !Authorized(actor, kind, req.DepartmentID) {
		return ErrUnauthorized
	}

	// Ordering check. Skipped entirely when the decider is the requester:
	// a requester who also holds downstream authority over a step would
	// otherwise deadlock the chain waiting on approvals only they can give.
	if actor.ID != req.RequesterID {
		if prereq, ok := stepPrerequisite[kind]; ok {
			prev := req.Step(prereq)
			if prev == nil || prev.Status != models.StepStatusApproved {
				return ErrOutOfOrder
			}
		}
	}

	deciderID := actor.ID
	step.Status = decision
	step.DeciderID = &deciderID
	step.Comment = comment
	step.DecidedAt = &now

	ApplyDerivedStatus(req, now)
	return nil
}

// AddStep retrofits a step of the given kind onto the request. It does not
// re-run validation of earlier steps.
func (e *Engine) AddStep(req *models.PurchaseRequest, kind, initialStatus string, actor models.Actor, now time.Time) error {
	if !models.ValidStepKind(kind) {
		return &ValidationError{Field: "stepKind", Reason: "unknown step kind"}
	}
	if initialStatus != "" && !models.ValidStepStatus(initialStatus) {
		return &ValidationError{Field: "initialStatus", Reason: "unknown step status"}
	}
	if req.Status == models.StatusCancelled {
		return ErrRequestFrozen
	}
	if req.Status == models.StatusRejected || req.Status == models.StatusCompleted {
		return ErrInvalidTransition
	}
	if req.Step(kind) != nil {
		return ErrStepAlreadyExists
	}

	if kind == models.StepPurchasing && !privilegedForPurchasingInsert(actor.Role) {
		finance := req.Step(models.StepFinance)
		if finance == nil || finance.Status != models.StepStatusApproved {
			return ErrOutOfOrder
		}
	}

	if initialStatus == "" {
		initialStatus = models.StepStatusPending
	}
	req.Steps = append(req.Steps, models.ApprovalStep{
		RequestID: req.ID,
		Kind:      kind,
		Status:    initialStatus,
		CreatedAt: now,
	})

	ApplyDerivedStatus(req, now)
	return nil
}

func privilegedForPurchasingInsert(role string) bool {
	return role == models.RoleAdmin || role == models.RoleITAdmin || role == models.RolePurchasingAdmin
}

// Cancel transitions the request to CANCELLED on behalf of its requester.
// Administrative deletion is handled by the service layer, not here.
func (e *Engine) Cancel(req *models.PurchaseRequest, actor models.Actor) error {
	if actor.ID != req.RequesterID {
		return ErrUnauthorized
	}
	if req.Status == models.StatusInProcurement || req.Status == models.StatusCompleted {
		return ErrInvalidTransition
	}
	if req.Status == models.StatusCancelled {
		return ErrInvalidTransition
	}
	req.Status = models.StatusCancelled
	return nil
}

// Engine groups the pure workflow operations. It carries no state; the type
// exists so callers depend on a single injectable value rather than free
// functions.
type Engine struct{}

// New creates a new Engine
func New() *Engine {
	return &Engine{}
}
