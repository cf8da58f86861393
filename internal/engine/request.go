package engine

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"procurement-service/internal/models"
)

// CreateFields carries the validated scalar fields of a new purchase request
type CreateFields struct {
	Title        string
	Description  string
	Priority     string
	NeededBy     time.Time
	DepartmentID uuid.UUID
}

// LineItem is one product line of a new purchase request
type LineItem struct {
	ProductID  uuid.UUID
	Quantity   int
	UnitAmount float64
}

// AutoSatisfiedSteps returns the step kinds the creating actor's role
// satisfies at creation time. Each returned step is stamped approved with the
// actor and the creation timestamp.
func AutoSatisfiedSteps(role string, actorDept, requestDept uuid.UUID) map[string]bool {
	satisfied := make(map[string]bool, 3)
	switch role {
	case models.RoleAdmin:
		satisfied[models.StepDeptManager] = true
		satisfied[models.StepIT] = true
		satisfied[models.StepFinance] = true
	case models.RoleDepartmentManager:
		if actorDept == requestDept {
			satisfied[models.StepDeptManager] = true
		}
	case models.RoleITAdmin:
		satisfied[models.StepIT] = true
	case models.RoleFinanceAdmin:
		satisfied[models.StepFinance] = true
	}
	return satisfied
}

// NewRequest validates the input and builds the request aggregate with its
// three gating steps. Steps the actor's role auto-satisfies are created
// already approved, and the initial overall status is derived immediately.
// Product and department existence is checked by the caller against the
// catalog before persisting.
func (e *Engine) NewRequest(fields CreateFields, items []LineItem, actor models.Actor, now time.Time) (*models.PurchaseRequest, error) {
	if strings.TrimSpace(fields.Title) == "" {
		return nil, &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	if strings.TrimSpace(fields.Description) == "" {
		return nil, &ValidationError{Field: "description", Reason: "must not be empty"}
	}
	if fields.DepartmentID == uuid.Nil {
		return nil, &ValidationError{Field: "departmentId", Reason: "must be set"}
	}
	if fields.Priority == "" {
		fields.Priority = models.PriorityMedium
	}
	if !models.ValidPriority(fields.Priority) {
		return nil, &ValidationError{Field: "priority", Reason: "must be LOW, MEDIUM, HIGH or CRITICAL"}
	}
	if fields.NeededBy.IsZero() {
		return nil, &ValidationError{Field: "neededBy", Reason: "must be a resolvable date"}
	}
	if len(items) == 0 {
		return nil, &ValidationError{Field: "items", Reason: "at least one line item is required"}
	}
	for _, item := range items {
		if item.ProductID == uuid.Nil {
			return nil, &ValidationError{Field: "items.productId", Reason: "must be set"}
		}
		if item.Quantity <= 0 {
			return nil, &ValidationError{Field: "items.quantity", Reason: "must be positive"}
		}
	}

	req := &models.PurchaseRequest{
		Title:        strings.TrimSpace(fields.Title),
		Description:  strings.TrimSpace(fields.Description),
		Priority:     fields.Priority,
		NeededBy:     fields.NeededBy,
		DepartmentID: fields.DepartmentID,
		RequesterID:  actor.ID,
		Status:       models.StatusPending,
		Version:      1,
		CreatedAt:    now,
	}

	var total float64
	for _, item := range items {
		total += float64(item.Quantity) * item.UnitAmount
		req.Items = append(req.Items, models.RequestItem{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			UnitAmount: item.UnitAmount,
		})
	}
	req.EstimatedTotal = total

	satisfied := AutoSatisfiedSteps(actor.Role, actor.DepartmentID, fields.DepartmentID)
	deciderID := actor.ID
	for _, kind := range models.GatingStepKinds {
		step := models.ApprovalStep{
			Kind:      kind,
			Status:    models.StepStatusPending,
			CreatedAt: now,
		}
		if satisfied[kind] {
			step.Status = models.StepStatusApproved
			step.DeciderID = &deciderID
			decidedAt := now
			step.DecidedAt = &decidedAt
		}
		req.Steps = append(req.Steps, step)
	}

	ApplyDerivedStatus(req, now)
	return req, nil
}
