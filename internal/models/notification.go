package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// NotificationOutbox stores a notification intent emitted by the engine.
// Rows are written once the state change has committed and before the delivery
// attempt; dispatched_at stays null when delivery fails, so undelivered
// intents remain visible without ever blocking the state change itself.
type NotificationOutbox struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	RequestID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"requestId"`
	RecipientIDs pq.StringArray `gorm:"type:uuid[];not null" json:"recipientIds"`
	Title        string         `gorm:"type:varchar(255);not null" json:"title"`
	Message      string         `gorm:"type:text;not null" json:"message"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	DispatchedAt *time.Time     `json:"dispatchedAt,omitempty"`
}

// TableName returns the table name for NotificationOutbox
func (NotificationOutbox) TableName() string {
	return "purchase_request_notifications"
}
