package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// NotificationClient handles HTTP communication with the notification
// service. Delivery is best-effort: the engine decides that and to whom a
// notification is owed, the sink owns the channel and any retries.
type NotificationClient struct {
	baseURL    string
	httpClient *http.Client
}

// notificationRequest is the API request format of the notification service
type notificationRequest struct {
	RecipientIDs []string `json:"recipientIds"`
	Title        string   `json:"title"`
	Message      string   `json:"message"`
	RelatedID    string   `json:"relatedId,omitempty"`
}

// NewNotificationClient creates a new notification client
func NewNotificationClient(baseURL string) *NotificationClient {
	return &NotificationClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Notify sends a single notification to the given recipients. One delivery
// attempt; a failure is reported to the caller for logging only.
func (c *NotificationClient) Notify(ctx context.Context, recipientIDs []uuid.UUID, title, message string, requestID uuid.UUID) error {
	if len(recipientIDs) == 0 {
		return nil
	}

	ids := make([]string, 0, len(recipientIDs))
	for _, id := range recipientIDs {
		ids = append(ids, id.String())
	}

	body, err := json.Marshal(&notificationRequest{
		RecipientIDs: ids,
		Title:        title,
		Message:      message,
		RelatedID:    requestID.String(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal notification request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/notifications/send", bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Internal-Service", "procurement-service")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("notification service returned status %d", resp.StatusCode)
	}
	return nil
}
