package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"procurement-service/internal/models"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrVersionConflict = errors.New("version conflict - record was modified by another request")
	ErrUnavailable     = errors.New("storage unavailable or timed out")
)

// RequestRepositoryInterface abstracts persistence for purchase requests so
// the service layer can be tested against a mock.
type RequestRepositoryInterface interface {
	CreateRequest(ctx context.Context, req *models.PurchaseRequest) error
	GetRequestByID(ctx context.Context, id uuid.UUID) (*models.PurchaseRequest, error)
	SaveAggregate(ctx context.Context, req *models.PurchaseRequest) error
	DeleteAggregate(ctx context.Context, id uuid.UUID) error
	ListForApproverRole(ctx context.Context, role string, departmentID *uuid.UUID, statusFilter string, limit, offset int) ([]models.PurchaseRequest, int64, error)
	ListByRequester(ctx context.Context, requesterID uuid.UUID, limit, offset int) ([]models.PurchaseRequest, int64, error)
	CreateAuditLog(ctx context.Context, log *models.RequestAuditLog) error
	GetRequestHistory(ctx context.Context, requestID uuid.UUID) ([]models.RequestAuditLog, error)
	CreateNote(ctx context.Context, note *models.RequestNote) error
	CreateOutbox(ctx context.Context, entry *models.NotificationOutbox) error
	MarkOutboxDispatched(ctx context.Context, id uuid.UUID) error
	FindRequestsPendingSince(ctx context.Context, cutoff time.Time) ([]models.PurchaseRequest, error)
	WithTransaction(ctx context.Context, fn func(txRepo RequestRepositoryInterface) error) error
}

// RequestRepository handles database operations for purchase requests
type RequestRepository struct {
	db *gorm.DB
}

// NewRequestRepository creates a new RequestRepository
func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

var _ RequestRepositoryInterface = (*RequestRepository)(nil)

// translate maps driver/context failures onto the repository error taxonomy
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrUnavailable
	}
	return err
}

// CreateRequest persists a new request aggregate (steps and items included)
func (r *RequestRepository) CreateRequest(ctx context.Context, req *models.PurchaseRequest) error {
	return translate(r.db.WithContext(ctx).Create(req).Error)
}

// GetRequestByID retrieves a request with its full aggregate
func (r *RequestRepository) GetRequestByID(ctx context.Context, id uuid.UUID) (*models.PurchaseRequest, error) {
	var req models.PurchaseRequest
	err := r.db.WithContext(ctx).
		Preload("Steps").
		Preload("Items").
		Preload("Notes").
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, translate(err)
	}
	return &req, nil
}

// SaveAggregate writes the whole aggregate atomically, guarded by the
// request's version column. Two concurrent writers never both succeed
// against a stale read: the loser gets ErrVersionConflict.
func (r *RequestRepository) SaveAggregate(ctx context.Context, req *models.PurchaseRequest) error {
	oldVersion := req.Version
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.PurchaseRequest{}).
			Where("id = ? AND version = ?", req.ID, oldVersion).
			Updates(map[string]interface{}{
				"status":     req.Status,
				"version":    oldVersion + 1,
				"updated_at": time.Now(),
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrVersionConflict
		}

		for i := range req.Steps {
			step := &req.Steps[i]
			step.RequestID = req.ID
			if step.ID == uuid.Nil {
				if err := tx.Create(step).Error; err != nil {
					return err
				}
			} else if err := tx.Save(step).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return translate(err)
	}
	req.Version = oldVersion + 1
	return nil
}

// DeleteAggregate irreversibly removes the request and everything it owns
func (r *RequestRepository) DeleteAggregate(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, m := range []interface{}{
			&models.ApprovalStep{},
			&models.RequestItem{},
			&models.RequestNote{},
			&models.RequestAuditLog{},
			&models.NotificationOutbox{},
		} {
			if err := tx.Where("request_id = ?", id).Delete(m).Error; err != nil {
				return err
			}
		}
		result := tx.Where("id = ?", id).Delete(&models.PurchaseRequest{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
	return translate(err)
}

// ListForApproverRole retrieves requests that currently wait on a step the
// given role decides. DEPT_MANAGER listings are scoped to a department.
func (r *RequestRepository) ListForApproverRole(ctx context.Context, role string, departmentID *uuid.UUID, statusFilter string, limit, offset int) ([]models.PurchaseRequest, int64, error) {
	var requests []models.PurchaseRequest
	var total int64

	kind, ok := stepKindForRole(role)
	query := r.db.WithContext(ctx).Model(&models.PurchaseRequest{})
	if ok {
		query = query.Where(
			"id IN (?)",
			r.db.Model(&models.ApprovalStep{}).
				Select("request_id").
				Where("kind = ? AND status = ?", kind, models.StepStatusPending),
		)
	}
	if departmentID != nil {
		query = query.Where("department_id = ?", *departmentID)
	}
	if statusFilter != "" && statusFilter != "all" {
		query = query.Where("status = ?", statusFilter)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	err := query.
		Preload("Steps").
		Preload("Items").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&requests).Error
	return requests, total, translate(err)
}

func stepKindForRole(role string) (string, bool) {
	switch role {
	case models.RoleDepartmentManager:
		return models.StepDeptManager, true
	case models.RoleITAdmin:
		return models.StepIT, true
	case models.RoleFinanceAdmin:
		return models.StepFinance, true
	case models.RolePurchasingAdmin:
		return models.StepPurchasing, true
	}
	// ADMIN and unknown roles see everything
	return "", false
}

// ListByRequester retrieves requests submitted by a specific user
func (r *RequestRepository) ListByRequester(ctx context.Context, requesterID uuid.UUID, limit, offset int) ([]models.PurchaseRequest, int64, error) {
	var requests []models.PurchaseRequest
	var total int64

	query := r.db.WithContext(ctx).Model(&models.PurchaseRequest{}).
		Where("requester_id = ?", requesterID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translate(err)
	}

	err := query.
		Preload("Steps").
		Preload("Items").
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&requests).Error
	return requests, total, translate(err)
}

// CreateAuditLog creates an audit log entry
func (r *RequestRepository) CreateAuditLog(ctx context.Context, log *models.RequestAuditLog) error {
	return translate(r.db.WithContext(ctx).Create(log).Error)
}

// GetRequestHistory retrieves audit history for a request
func (r *RequestRepository) GetRequestHistory(ctx context.Context, requestID uuid.UUID) ([]models.RequestAuditLog, error) {
	var logs []models.RequestAuditLog
	err := r.db.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&logs).Error
	return logs, translate(err)
}

// CreateNote attaches a note to a request
func (r *RequestRepository) CreateNote(ctx context.Context, note *models.RequestNote) error {
	return translate(r.db.WithContext(ctx).Create(note).Error)
}

// CreateOutbox records a notification intent alongside the state change
func (r *RequestRepository) CreateOutbox(ctx context.Context, entry *models.NotificationOutbox) error {
	return translate(r.db.WithContext(ctx).Create(entry).Error)
}

// MarkOutboxDispatched stamps an outbox row after a delivery attempt
func (r *RequestRepository) MarkOutboxDispatched(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	return translate(r.db.WithContext(ctx).Model(&models.NotificationOutbox{}).
		Where("id = ?", id).
		Update("dispatched_at", now).Error)
}

// FindRequestsPendingSince finds non-terminal requests whose next step has
// been waiting since before the cutoff. Used by the reminder job.
func (r *RequestRepository) FindRequestsPendingSince(ctx context.Context, cutoff time.Time) ([]models.PurchaseRequest, error) {
	var requests []models.PurchaseRequest
	err := r.db.WithContext(ctx).
		Preload("Steps").
		Where("status IN ?", []string{models.StatusPending, models.StatusApproved}).
		Where("updated_at < ?", cutoff).
		Find(&requests).Error
	return requests, translate(err)
}

// WithTransaction executes fn with a repository bound to a single database
// transaction
func (r *RequestRepository) WithTransaction(ctx context.Context, fn func(txRepo RequestRepositoryInterface) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&RequestRepository{db: tx})
	})
	return translate(err)
}
