package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"procurement-service/internal/engine"
	"procurement-service/internal/events"
	"procurement-service/internal/models"
	"procurement-service/internal/repository"
)

var (
	ErrRequestNotFound    = errors.New("purchase request not found")
	ErrProductNotFound    = errors.New("referenced product does not exist")
	ErrDepartmentNotFound = errors.New("referenced department does not exist")
	ErrConflict           = errors.New("request was modified concurrently, retry from a fresh read")
)

// Bounded timeout for a single service operation; a repository timeout
// surfaces as repository.ErrUnavailable and is never retried here.
const opTimeout = 10 * time.Second

// A conflicting concurrent decision is re-read and re-validated this many
// times before Conflict is surfaced to the caller.
const maxConflictRetries = 2

// Catalog is the read-only collaborator for departments, products and role
// membership
type Catalog interface {
	ProductExists(ctx context.Context, id uuid.UUID) (bool, error)
	DepartmentExists(ctx context.Context, id uuid.UUID) (bool, error)
	UsersWithRole(ctx context.Context, role string, departmentID *uuid.UUID) ([]uuid.UUID, error)
}

// NotificationSink receives notification intents for asynchronous delivery
type NotificationSink interface {
	Notify(ctx context.Context, recipientIDs []uuid.UUID, title, message string, requestID uuid.UUID) error
}

// RequestService orchestrates the approval engine, repository and sinks
type RequestService struct {
	repo      repository.RequestRepositoryInterface
	eng       *engine.Engine
	catalog   Catalog
	notifier  NotificationSink
	publisher *events.Publisher
	logger    *logrus.Entry
}

// NewRequestService creates a new RequestService
func NewRequestService(repo repository.RequestRepositoryInterface, eng *engine.Engine, catalog Catalog, notifier NotificationSink, publisher *events.Publisher, logger *logrus.Logger) *RequestService {
	return &RequestService{
		repo:      repo,
		eng:       eng,
		catalog:   catalog,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger.WithField("component", "request-service"),
	}
}

// ItemInput is one product line of a create request call
type ItemInput struct {
	ProductID  uuid.UUID `json:"productId"`
	Quantity   int       `json:"quantity"`
	UnitAmount float64   `json:"unitAmount"`
}

// CreateRequestInput represents input for creating a purchase request
type CreateRequestInput struct {
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Priority     string      `json:"priority,omitempty"`
	NeededBy     string      `json:"neededBy"`
	DepartmentID uuid.UUID   `json:"departmentId"`
	Items        []ItemInput `json:"items"`
}

// CreateRequest validates the input against the catalog, builds the aggregate
// through the engine and persists it, then emits creation notifications.
func (s *RequestService) CreateRequest(ctx context.Context, input CreateRequestInput, actor models.Actor) (*models.PurchaseRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	neededBy, err := parseDate(input.NeededBy)
	if err != nil {
		return nil, err
	}

	exists, err := s.catalog.DepartmentExists(ctx, input.DepartmentID)
	if err != nil {
		return nil, fmt.Errorf("department lookup failed: %w", err)
	}
	if !exists {
		return nil, ErrDepartmentNotFound
	}

	items := make([]engine.LineItem, 0, len(input.Items))
	for _, item := range input.Items {
		exists, err := s.catalog.ProductExists(ctx, item.ProductID)
		if err != nil {
			return nil, fmt.Errorf("product lookup failed: %w", err)
		}
		if !exists {
			return nil, ErrProductNotFound
		}
		items = append(items, engine.LineItem{
			ProductID:  item.ProductID,
			Quantity:   item.Quantity,
			UnitAmount: item.UnitAmount,
		})
	}

	req, err := s.eng.NewRequest(engine.CreateFields{
		Title:        input.Title,
		Description:  input.Description,
		Priority:     input.Priority,
		NeededBy:     neededBy,
		DepartmentID: input.DepartmentID,
	}, items, actor, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.repo.CreateRequest(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	s.createAuditLog(ctx, req.ID, models.AuditEventCreated, actor, map[string]interface{}{
		"status": req.Status,
	})
	s.DispatchIntents(ctx, req, s.eng.CreationIntents(req))
	s.publisher.PublishRequestCreated(ctx, req)

	return req, nil
}

// DecideStep applies a step decision as a single atomic read-modify-write.
// A version conflict is retried from a fresh read; if the retries are
// exhausted the caller gets ErrConflict and nothing is written.
func (s *RequestService) DecideStep(ctx context.Context, requestID uuid.UUID, stepKind, decision, comment string, actor models.Actor) (*models.PurchaseRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	for attempt := 0; ; attempt++ {
		req, err := s.loadRequest(ctx, requestID)
		if err != nil {
			return nil, err
		}

		if err := s.eng.Decide(req, stepKind, decision, comment, actor, time.Now().UTC()); err != nil {
			return nil, err
		}

		audit := buildAuditLog(req.ID, models.AuditEventDecided, actor, map[string]interface{}{
			"stepKind": stepKind,
			"decision": decision,
			"comment":  comment,
			"status":   req.Status,
		})
		err = s.repo.WithTransaction(ctx, func(tx repository.RequestRepositoryInterface) error {
			if err := tx.SaveAggregate(ctx, req); err != nil {
				return err
			}
			return tx.CreateAuditLog(ctx, audit)
		})
		if errors.Is(err, repository.ErrVersionConflict) {
			if attempt < maxConflictRetries {
				continue
			}
			return nil, ErrConflict
		}
		if err != nil {
			return nil, fmt.Errorf("failed to save request: %w", err)
		}

		s.DispatchIntents(ctx, req, s.eng.DecisionIntents(req, stepKind, decision))
		s.publisher.PublishRequestDecided(ctx, req, stepKind, decision, actor.ID.String())

		return req, nil
	}
}

// AddStep retrofits a step onto an existing request
func (s *RequestService) AddStep(ctx context.Context, requestID uuid.UUID, stepKind, initialStatus string, actor models.Actor) (*models.PurchaseRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	for attempt := 0; ; attempt++ {
		req, err := s.loadRequest(ctx, requestID)
		if err != nil {
			return nil, err
		}

		if err := s.eng.AddStep(req, stepKind, initialStatus, actor, time.Now().UTC()); err != nil {
			return nil, err
		}

		audit := buildAuditLog(req.ID, models.AuditEventStepAdded, actor, map[string]interface{}{
			"stepKind": stepKind,
			"status":   req.Status,
		})
		err = s.repo.WithTransaction(ctx, func(tx repository.RequestRepositoryInterface) error {
			if err := tx.SaveAggregate(ctx, req); err != nil {
				return err
			}
			return tx.CreateAuditLog(ctx, audit)
		})
		if errors.Is(err, repository.ErrVersionConflict) {
			if attempt < maxConflictRetries {
				continue
			}
			return nil, ErrConflict
		}
		if err != nil {
			return nil, fmt.Errorf("failed to save request: %w", err)
		}
		return req, nil
	}
}

// CancelOutcome reports whether CancelOrDelete deleted the aggregate or
// transitioned it to CANCELLED
type CancelOutcome struct {
	Deleted bool                    `json:"deleted"`
	Request *models.PurchaseRequest `json:"request,omitempty"`
}

// CancelOrDelete cancels a request on behalf of its requester, or deletes the
// whole aggregate when the actor is an administrator.
func (s *RequestService) CancelOrDelete(ctx context.Context, requestID uuid.UUID, actor models.Actor) (*CancelOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	req, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}

	if actor.Role == models.RoleAdmin {
		if err := s.repo.DeleteAggregate(ctx, requestID); err != nil {
			return nil, fmt.Errorf("failed to delete request: %w", err)
		}
		s.publisher.PublishRequestDeleted(ctx, req, actor.ID.String())
		return &CancelOutcome{Deleted: true}, nil
	}

	for attempt := 0; ; attempt++ {
		if err := s.eng.Cancel(req, actor); err != nil {
			return nil, err
		}

		audit := buildAuditLog(req.ID, models.AuditEventCancelled, actor, nil)
		err = s.repo.WithTransaction(ctx, func(tx repository.RequestRepositoryInterface) error {
			if err := tx.SaveAggregate(ctx, req); err != nil {
				return err
			}
			return tx.CreateAuditLog(ctx, audit)
		})
		if errors.Is(err, repository.ErrVersionConflict) {
			if attempt < maxConflictRetries {
				if req, err = s.loadRequest(ctx, requestID); err != nil {
					return nil, err
				}
				continue
			}
			return nil, ErrConflict
		}
		if err != nil {
			return nil, fmt.Errorf("failed to save request: %w", err)
		}

		s.publisher.PublishRequestCancelled(ctx, req, actor.ID.String())
		return &CancelOutcome{Request: req}, nil
	}
}

// AddNote attaches a free-text note to a request
func (s *RequestService) AddNote(ctx context.Context, requestID uuid.UUID, body string, actor models.Actor) (*models.RequestNote, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if body == "" {
		return nil, &engine.ValidationError{Field: "body", Reason: "must not be empty"}
	}

	if _, err := s.loadRequest(ctx, requestID); err != nil {
		return nil, err
	}

	note := &models.RequestNote{
		RequestID: requestID,
		AuthorID:  actor.ID,
		Body:      body,
	}
	if err := s.repo.CreateNote(ctx, note); err != nil {
		return nil, fmt.Errorf("failed to create note: %w", err)
	}

	s.createAuditLog(ctx, requestID, models.AuditEventNoteAdded, actor, nil)
	return note, nil
}

// GetRequest retrieves a request by id
func (s *RequestService) GetRequest(ctx context.Context, requestID uuid.UUID) (*models.PurchaseRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return s.loadRequest(ctx, requestID)
}

// ListForApprover lists requests currently waiting on a step the actor's
// role decides. Department managers only see their own department.
func (s *RequestService) ListForApprover(ctx context.Context, actor models.Actor, statusFilter string, limit, offset int) ([]models.PurchaseRequest, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	var dept *uuid.UUID
	if actor.Role == models.RoleDepartmentManager {
		d := actor.DepartmentID
		dept = &d
	}
	return s.repo.ListForApproverRole(ctx, actor.Role, dept, statusFilter, limit, offset)
}

// ListMyRequests lists requests submitted by the actor
func (s *RequestService) ListMyRequests(ctx context.Context, actor models.Actor, limit, offset int) ([]models.PurchaseRequest, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return s.repo.ListByRequester(ctx, actor.ID, limit, offset)
}

// GetRequestHistory retrieves the audit history for a request
func (s *RequestService) GetRequestHistory(ctx context.Context, requestID uuid.UUID) ([]models.RequestAuditLog, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	return s.repo.GetRequestHistory(ctx, requestID)
}

// DispatchIntents resolves each intent's recipients, records it in the
// outbox and attempts delivery once. Called strictly after the state change
// has committed; failures are logged and never propagated.
func (s *RequestService) DispatchIntents(ctx context.Context, req *models.PurchaseRequest, intents []engine.Intent) {
	for _, intent := range intents {
		recipients := intent.UserIDs
		if intent.Role != "" {
			ids, err := s.catalog.UsersWithRole(ctx, intent.Role, intent.DepartmentID)
			if err != nil {
				s.logger.WithError(err).WithField("role", intent.Role).Warn("Failed to resolve notification recipients")
				continue
			}
			recipients = ids
		}
		if len(recipients) == 0 {
			continue
		}

		entry := &models.NotificationOutbox{
			RequestID:    req.ID,
			RecipientIDs: pq.StringArray(uuidStrings(recipients)),
			Title:        intent.Title,
			Message:      intent.Message,
		}
		if err := s.repo.CreateOutbox(ctx, entry); err != nil {
			s.logger.WithError(err).Warn("Failed to record notification outbox entry")
		}

		if err := s.notifier.Notify(ctx, recipients, intent.Title, intent.Message, req.ID); err != nil {
			s.logger.WithError(err).WithField("requestId", req.ID).Warn("Notification delivery failed")
			continue
		}
		if entry.ID != uuid.Nil {
			if err := s.repo.MarkOutboxDispatched(ctx, entry.ID); err != nil {
				s.logger.WithError(err).Warn("Failed to mark outbox entry dispatched")
			}
		}
	}
}

func (s *RequestService) loadRequest(ctx context.Context, requestID uuid.UUID) (*models.PurchaseRequest, error) {
	req, err := s.repo.GetRequestByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return req, nil
}

func buildAuditLog(requestID uuid.UUID, eventType string, actor models.Actor, metadata map[string]interface{}) *models.RequestAuditLog {
	actorID := actor.ID
	log := &models.RequestAuditLog{
		RequestID: requestID,
		EventType: eventType,
		ActorID:   &actorID,
		ActorRole: actor.Role,
	}
	if metadata != nil {
		if data, err := json.Marshal(metadata); err == nil {
			log.Metadata = datatypes.JSON(data)
		}
	}
	return log
}

func (s *RequestService) createAuditLog(ctx context.Context, requestID uuid.UUID, eventType string, actor models.Actor, metadata map[string]interface{}) {
	if err := s.repo.CreateAuditLog(ctx, buildAuditLog(requestID, eventType, actor, metadata)); err != nil {
		s.logger.WithError(err).Warn("Failed to write audit log entry")
	}
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

// parseDate accepts RFC3339 timestamps or plain dates
func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, &engine.ValidationError{Field: "neededBy", Reason: "must be set"}
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", value); err == nil {
		return t, nil
	}
	return time.Time{}, &engine.ValidationError{Field: "neededBy", Reason: "must be a resolvable date"}
}
