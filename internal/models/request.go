package models

import (
	"time"

	"github.com/google/uuid"
)

// PurchaseRequest represents an IT-purchase request moving through the approval chain
type PurchaseRequest struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	RequestNumber  int64     `gorm:"autoIncrement;uniqueIndex" json:"requestNumber"`
	Title          string    `gorm:"type:varchar(255);not null" json:"title"`
	Description    string    `gorm:"type:text;not null" json:"description"`
	Priority       string    `gorm:"type:varchar(20);not null;default:'MEDIUM'" json:"priority"`
	NeededBy       time.Time `gorm:"not null" json:"neededBy"`
	DepartmentID   uuid.UUID `gorm:"type:uuid;not null;index" json:"departmentId"`
	RequesterID    uuid.UUID `gorm:"type:uuid;not null;index" json:"requesterId"`
	EstimatedTotal float64   `gorm:"not null;default:0" json:"estimatedTotal"`
	Status         string    `gorm:"type:varchar(30);not null;default:'PENDING';index" json:"status"`
	Version        int       `gorm:"not null;default:1" json:"version"` // Optimistic locking

	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	// Owned aggregate
	Steps []ApprovalStep `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"steps,omitempty"`
	Items []RequestItem  `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Notes []RequestNote  `gorm:"foreignKey:RequestID;constraint:OnDelete:CASCADE" json:"notes,omitempty"`
}

// TableName returns the table name for PurchaseRequest
func (PurchaseRequest) TableName() string {
	return "purchase_requests"
}

// RequestStatus constants
const (
	StatusPending       = "PENDING"
	StatusApproved      = "APPROVED"
	StatusRejected      = "REJECTED"
	StatusInProcurement = "IN_PROCUREMENT"
	StatusCompleted     = "COMPLETED"
	StatusCancelled     = "CANCELLED"
)

// Priority constants
const (
	PriorityLow      = "LOW"
	PriorityMedium   = "MEDIUM"
	PriorityHigh     = "HIGH"
	PriorityCritical = "CRITICAL"
)

// ValidPriority reports whether p is a known priority value
func ValidPriority(p string) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Step returns the step of the given kind, or nil if the request has none
func (r *PurchaseRequest) Step(kind string) *ApprovalStep {
	for i := range r.Steps {
		if r.Steps[i].Kind == kind {
			return &r.Steps[i]
		}
	}
	return nil
}

// IsTerminal returns true if the status is a terminal state
func (r *PurchaseRequest) IsTerminal() bool {
	return r.Status == StatusRejected ||
		r.Status == StatusCompleted ||
		r.Status == StatusCancelled
}

// RequestItem is a single product line on a purchase request
type RequestItem struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	RequestID  uuid.UUID `gorm:"type:uuid;not null;index" json:"requestId"`
	ProductID  uuid.UUID `gorm:"type:uuid;not null" json:"productId"`
	Quantity   int       `gorm:"not null" json:"quantity"`
	UnitAmount float64   `gorm:"not null;default:0" json:"unitAmount"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName returns the table name for RequestItem
func (RequestItem) TableName() string {
	return "purchase_request_items"
}

// RequestNote is a free-text note attached to a purchase request
type RequestNote struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	RequestID uuid.UUID `gorm:"type:uuid;not null;index" json:"requestId"`
	AuthorID  uuid.UUID `gorm:"type:uuid;not null" json:"authorId"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName returns the table name for RequestNote
func (RequestNote) TableName() string {
	return "purchase_request_notes"
}
