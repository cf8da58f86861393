package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RequestAuditLog is an append-only audit trail entry for a purchase request
type RequestAuditLog struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	RequestID uuid.UUID      `gorm:"type:uuid;not null;index" json:"requestId"`
	EventType string         `gorm:"type:varchar(50);not null;index" json:"eventType"`
	ActorID   *uuid.UUID     `gorm:"type:uuid" json:"actorId,omitempty"`
	ActorRole string         `gorm:"type:varchar(50)" json:"actorRole,omitempty"`
	Metadata  datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName returns the table name for RequestAuditLog
func (RequestAuditLog) TableName() string {
	return "purchase_request_audit_log"
}

// AuditEventType constants
const (
	AuditEventCreated   = "created"
	AuditEventDecided   = "decided"
	AuditEventStepAdded = "step_added"
	AuditEventCancelled = "cancelled"
	AuditEventDeleted   = "deleted"
	AuditEventReminded  = "reminded"
	AuditEventNoteAdded = "note_added"
)
