package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
	"procurement-service/internal/models"
)

// Event subjects published by the service
const (
	SubjectRequestCreated   = "procurement.request.created"
	SubjectRequestDecided   = "procurement.request.decided"
	SubjectRequestCancelled = "procurement.request.cancelled"
	SubjectRequestDeleted   = "procurement.request.deleted"

	streamName = "PROCUREMENT"
)

// RequestEvent is the wire payload for request lifecycle events
type RequestEvent struct {
	EventType     string `json:"eventType"`
	RequestID     string `json:"requestId"`
	RequestNumber int64  `json:"requestNumber"`
	RequesterID   string `json:"requesterId"`
	DepartmentID  string `json:"departmentId"`
	Status        string `json:"status"`
	Priority      string `json:"priority"`
	StepKind      string `json:"stepKind,omitempty"`
	Decision      string `json:"decision,omitempty"`
	ActorID       string `json:"actorId,omitempty"`
	OccurredAt    string `json:"occurredAt"`
}

// Publisher publishes request lifecycle events to NATS JetStream
type Publisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	logger *logrus.Entry
}

// NewPublisher connects to NATS and ensures the procurement stream exists
func NewPublisher(natsURL string, logger *logrus.Logger) (*Publisher, error) {
	nc, err := nats.Connect(natsURL,
		nats.Name("procurement-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	_, err = js.AddStream(&nats.StreamConfig{
		Name:     streamName,
		Subjects: []string{"procurement.>"},
	})
	if err != nil && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
		logger.WithError(err).Warn("Failed to ensure procurement stream (may already exist)")
	}

	return &Publisher{
		nc:     nc,
		js:     js,
		logger: logger.WithField("component", "procurement-events"),
	}, nil
}

// Close closes the NATS connection
func (p *Publisher) Close() {
	if p != nil && p.nc != nil {
		p.nc.Close()
	}
}

// PublishRequestCreated publishes a procurement.request.created event
func (p *Publisher) PublishRequestCreated(ctx context.Context, req *models.PurchaseRequest) {
	p.publish(SubjectRequestCreated, p.buildEvent(SubjectRequestCreated, req))
}

// PublishRequestDecided publishes a procurement.request.decided event
func (p *Publisher) PublishRequestDecided(ctx context.Context, req *models.PurchaseRequest, stepKind, decision string, actorID string) {
	event := p.buildEvent(SubjectRequestDecided, req)
	event.StepKind = stepKind
	event.Decision = decision
	event.ActorID = actorID
	p.publish(SubjectRequestDecided, event)
}

// PublishRequestCancelled publishes a procurement.request.cancelled event
func (p *Publisher) PublishRequestCancelled(ctx context.Context, req *models.PurchaseRequest, actorID string) {
	event := p.buildEvent(SubjectRequestCancelled, req)
	event.ActorID = actorID
	p.publish(SubjectRequestCancelled, event)
}

// PublishRequestDeleted publishes a procurement.request.deleted event
func (p *Publisher) PublishRequestDeleted(ctx context.Context, req *models.PurchaseRequest, actorID string) {
	event := p.buildEvent(SubjectRequestDeleted, req)
	event.ActorID = actorID
	p.publish(SubjectRequestDeleted, event)
}

func (p *Publisher) buildEvent(eventType string, req *models.PurchaseRequest) *RequestEvent {
	return &RequestEvent{
		EventType:     eventType,
		RequestID:     req.ID.String(),
		RequestNumber: req.RequestNumber,
		RequesterID:   req.RequesterID.String(),
		DepartmentID:  req.DepartmentID.String(),
		Status:        req.Status,
		Priority:      req.Priority,
		OccurredAt:    time.Now().UTC().Format(time.RFC3339),
	}
}

// publish sends the event asynchronously. Events are emitted only after the
// state transition has committed, so a publish failure is logged and dropped
// rather than rolled into the operation's result.
func (p *Publisher) publish(subject string, event *RequestEvent) {
	if p == nil || p.js == nil {
		return
	}

	go func() {
		data, err := json.Marshal(event)
		if err != nil {
			p.logger.WithError(err).Error("Failed to marshal request event")
			return
		}

		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if _, err := p.js.Publish(subject, data, nats.Context(pubCtx)); err != nil {
			p.logger.WithFields(logrus.Fields{
				"subject":   subject,
				"requestId": event.RequestID,
			}).WithError(err).Error("Failed to publish request event")
			return
		}
		p.logger.WithFields(logrus.Fields{
			"subject":   subject,
			"requestId": event.RequestID,
			"status":    event.Status,
		}).Info("Request event published")
	}()
}
