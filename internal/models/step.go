package models

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalStep is one stage in the fixed approval chain of a purchase request
type ApprovalStep struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	RequestID uuid.UUID  `gorm:"type:uuid;not null;index:idx_step_request_kind,unique" json:"requestId"`
	Kind      string     `gorm:"type:varchar(30);not null;index:idx_step_request_kind,unique" json:"kind"`
	Status    string     `gorm:"type:varchar(30);not null;default:'PENDING'" json:"status"`
	DeciderID *uuid.UUID `gorm:"type:uuid" json:"deciderId,omitempty"`
	Comment   string     `gorm:"type:text" json:"comment,omitempty"`
	DecidedAt *time.Time `json:"decidedAt,omitempty"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName returns the table name for ApprovalStep
func (ApprovalStep) TableName() string {
	return "approval_steps"
}

// StepKind constants, in chain order
const (
	StepDeptManager = "DEPT_MANAGER"
	StepIT          = "IT"
	StepFinance     = "FINANCE"
	StepPurchasing  = "PURCHASING"
)

// StepStatus constants
const (
	StepStatusPending       = "PENDING"
	StepStatusApproved      = "APPROVED"
	StepStatusRejected      = "REJECTED"
	StepStatusNotApplicable = "NOT_APPLICABLE"
	StepStatusInProcurement = "IN_PROCUREMENT"
	StepStatusCompleted     = "COMPLETED"
)

// GatingStepKinds are the steps created at request creation time, in order.
// The PURCHASING step is appended once FINANCE is approved.
var GatingStepKinds = []string{StepDeptManager, StepIT, StepFinance}

// ValidStepKind reports whether kind is one of the four chain steps
func ValidStepKind(kind string) bool {
	switch kind {
	case StepDeptManager, StepIT, StepFinance, StepPurchasing:
		return true
	}
	return false
}

// ValidStepStatus reports whether status is a known step status value
func ValidStepStatus(status string) bool {
	switch status {
	case StepStatusPending, StepStatusApproved, StepStatusRejected,
		StepStatusNotApplicable, StepStatusInProcurement, StepStatusCompleted:
		return true
	}
	return false
}

// ValidDecision reports whether status is a value an approver may set on a step
func ValidDecision(status string) bool {
	switch status {
	case StepStatusApproved, StepStatusRejected, StepStatusInProcurement, StepStatusCompleted:
		return true
	}
	return false
}
