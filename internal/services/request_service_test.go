package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"procurement-service/internal/engine"
	"procurement-service/internal/models"
	"procurement-service/internal/repository"
)

// MockRequestRepository is a mock implementation of RequestRepositoryInterface
type MockRequestRepository struct {
	mock.Mock
}

// Ensure MockRequestRepository implements the interface
var _ repository.RequestRepositoryInterface = (*MockRequestRepository)(nil)

func (m *MockRequestRepository) CreateRequest(ctx context.Context, req *models.PurchaseRequest) error {
	args := m.Called(ctx, req)
	if args.Error(0) == nil && req.ID == uuid.Nil {
		req.ID = uuid.New()
		req.RequestNumber = 1001
	}
	return args.Error(0)
}

func (m *MockRequestRepository) GetRequestByID(ctx context.Context, id uuid.UUID) (*models.PurchaseRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PurchaseRequest), args.Error(1)
}

func (m *MockRequestRepository) SaveAggregate(ctx context.Context, req *models.PurchaseRequest) error {
	args := m.Called(ctx, req)
	if args.Error(0) == nil {
		req.Version++
	}
	return args.Error(0)
}

func (m *MockRequestRepository) DeleteAggregate(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRequestRepository) ListForApproverRole(ctx context.Context, role string, departmentID *uuid.UUID, statusFilter string, limit, offset int) ([]models.PurchaseRequest, int64, error) {
	args := m.Called(ctx, role, departmentID, statusFilter, limit, offset)
	return args.Get(0).([]models.PurchaseRequest), args.Get(1).(int64), args.Error(2)
}

func (m *MockRequestRepository) ListByRequester(ctx context.Context, requesterID uuid.UUID, limit, offset int) ([]models.PurchaseRequest, int64, error) {
	args := m.Called(ctx, requesterID, limit, offset)
	return args.Get(0).([]models.PurchaseRequest), args.Get(1).(int64), args.Error(2)
}

func (m *MockRequestRepository) CreateAuditLog(ctx context.Context, log *models.RequestAuditLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

func (m *MockRequestRepository) GetRequestHistory(ctx context.Context, requestID uuid.UUID) ([]models.RequestAuditLog, error) {
	args := m.Called(ctx, requestID)
	return args.Get(0).([]models.RequestAuditLog), args.Error(1)
}

func (m *MockRequestRepository) CreateNote(ctx context.Context, note *models.RequestNote) error {
	args := m.Called(ctx, note)
	return args.Error(0)
}

func (m *MockRequestRepository) CreateOutbox(ctx context.Context, entry *models.NotificationOutbox) error {
	args := m.Called(ctx, entry)
	if args.Error(0) == nil && entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *MockRequestRepository) MarkOutboxDispatched(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRequestRepository) FindRequestsPendingSince(ctx context.Context, cutoff time.Time) ([]models.PurchaseRequest, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).([]models.PurchaseRequest), args.Error(1)
}

// WithTransaction executes the callback against the mock itself
func (m *MockRequestRepository) WithTransaction(ctx context.Context, fn func(txRepo repository.RequestRepositoryInterface) error) error {
	return fn(m)
}

// MockCatalog is a mock implementation of Catalog
type MockCatalog struct {
	mock.Mock
}

func (m *MockCatalog) ProductExists(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockCatalog) DepartmentExists(ctx context.Context, id uuid.UUID) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *MockCatalog) UsersWithRole(ctx context.Context, role string, departmentID *uuid.UUID) ([]uuid.UUID, error) {
	args := m.Called(ctx, role, departmentID)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

// MockNotifier is a mock implementation of NotificationSink
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, recipientIDs []uuid.UUID, title, message string, requestID uuid.UUID) error {
	args := m.Called(ctx, recipientIDs, title, message, requestID)
	return args.Error(0)
}

func newTestService(repo *MockRequestRepository, catalog *MockCatalog, notifier *MockNotifier) *RequestService {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return NewRequestService(repo, engine.New(), catalog, notifier, nil, logger)
}

func pendingRequest(requesterID, departmentID uuid.UUID) *models.PurchaseRequest {
	return &models.PurchaseRequest{
		ID:            uuid.New(),
		RequestNumber: 1001,
		Title:         "Monitors",
		Description:   "Two monitors for the design desk",
		Priority:      models.PriorityMedium,
		NeededBy:      time.Now().AddDate(0, 1, 0),
		DepartmentID:  departmentID,
		RequesterID:   requesterID,
		Status:        models.StatusPending,
		Version:       1,
		Steps: []models.ApprovalStep{
			{ID: uuid.New(), Kind: models.StepDeptManager, Status: models.StepStatusPending},
			{ID: uuid.New(), Kind: models.StepIT, Status: models.StepStatusPending},
			{ID: uuid.New(), Kind: models.StepFinance, Status: models.StepStatusPending},
		},
	}
}

func allowDispatch(repo *MockRequestRepository, catalog *MockCatalog, notifier *MockNotifier) {
	catalog.On("UsersWithRole", mock.Anything, mock.Anything, mock.Anything).Return([]uuid.UUID{uuid.New()}, nil).Maybe()
	repo.On("CreateOutbox", mock.Anything, mock.Anything).Return(nil).Maybe()
	repo.On("MarkOutboxDispatched", mock.Anything, mock.Anything).Return(nil).Maybe()
	notifier.On("Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
}

func TestCreateRequestSuccess(t *testing.T) {
	repo := new(MockRequestRepository)
	catalog := new(MockCatalog)
	notifier := new(MockNotifier)
	service := newTestService(repo, catalog, notifier)

	dept := uuid.New()
	productID := uuid.New()
	actor := models.Actor{ID: uuid.New(), Role: models.RoleStandardUser}

	catalog.On("DepartmentExists", mock.Anything, dept).Return(true, nil)
	catalog.On("ProductExists", mock.Anything, productID).Return(true, nil)
	repo.On("CreateRequest", mock.Anything, mock.Anything).Return(nil)
	repo.On("CreateAuditLog", mock.Anything, mock.Anything).Return(nil)
	allowDispatch(repo, catalog, notifier)

	req, err := service.CreateRequest(context.Background(), CreateRequestInput{
		Title:        "Monitors",
		Description:  "Two monitors for the design desk",
		NeededBy:     "2026-09-30",
		DepartmentID: dept,
		Items:        []ItemInput{{ProductID: productID, Quantity: 2, UnitAmount: 300}},
	}, actor)

	assert.NoError(t, err)
	assert.Equal(t, models.StatusPending, req.Status)
	assert.Equal(t, actor.ID, req.RequesterID)
	assert.Len(t, req.Steps, 3)
	repo.AssertCalled(t, "CreateRequest", mock.Anything, mock.Anything)
}

func TestCreateRequestUnknownDepartment(t *testing.T) {
	repo := new(MockRequestRepository)
	catalog := new(MockCatalog)
	notifier := new(MockNotifier)
	service := newTestService(repo, catalog, notifier)

	dept := uuid.New()
	catalog.On("DepartmentExists", mock.Anything, dept).Return(false, nil)

	_, err := service.CreateRequest(context.Background(), CreateRequestInput{
		Title:        "Monitors",
		Description:  "Two monitors",
		NeededBy:     "2026-09-30",
		DepartmentID: dept,
		Items:        []ItemInput{{ProductID: uuid.New(), Quantity: 1, UnitAmount: 300}},
	}, models.Actor{ID: uuid.New(), Role: models.RoleStandardUser})

	assert.ErrorIs(t, err, ErrDepartmentNotFound)
	repo.AssertNotCalled(t, "CreateRequest", mock.Anything, mock.Anything)
}

func TestCreateRequestUnknownProduct(t *testing.T) {
	repo := new(MockRequestRepository)
	catalog := new(MockCatalog)
	notifier := new(MockNotifier)
	service := newTestService(repo, catalog, notifier)

	dept := uuid.New()
	productID := uuid.New()
	catalog.On("DepartmentExists", mock.Anything, dept).Return(true, nil)
	catalog.On("ProductExists", mock.Anything, productID).Return(false, nil)

	_, err := service.CreateRequest(context.Background(), CreateRequestInput{
		Title:        "Monitors",
		Description:  "Two monitors",
		NeededBy:     "2026-09-30",
		DepartmentID: dept,
		Items:        []ItemInput{{ProductID: productID, Quantity: 1, UnitAmount: 300}},
	}, models.Actor{ID: uuid.New(), Role: models.RoleStandardUser})

	assert.ErrorIs(t, err, ErrProductNotFound)
	repo.AssertNotCalled(t, "CreateRequest", mock.Anything, mock.Anything)
}

func TestDecideStepSuccess(t *testing.T) {
	repo := new(MockRequestRepository)
	catalog := new(MockCatalog)
	notifier := new(MockNotifier)
	service := newTestService(repo, catalog, notifier)

	dept := uuid.New()
	req := pendingRequest(uuid.New(), dept)
	manager := models.Actor{ID: uuid.New(), Role: models.RoleDepartmentManager, DepartmentID: dept}

	repo.On("GetRequestByID", mock.Anything, req.ID).Return(req, nil)
	repo.On("SaveAggregate", mock.Anything, req).Return(nil)
	repo.On("CreateAuditLog", mock.Anything, mock.Anything).Return(nil)
	allowDispatch(repo, catalog, notifier)

	result, err := service.DecideStep(context.Background(), req.ID, models.StepDeptManager, models.StepStatusApproved, "fine", manager)

	assert.NoError(t, err)
	assert.Equal(t, models.StepStatusApproved, result.Step(models.StepDeptManager).Status)
	repo.AssertNumberOfCalls(t, "SaveAggregate", 1)
}

func TestDecideStepNotFound(t *testing.T) {
	repo := new(MockRequestRepository)
	catalog := new(MockCatalog)
	notifier := new(MockNotifier)
	service := newTestService(repo, catalog, notifier)

	id := uuid.New()
	repo.On("GetRequestByID", mock.Anything, id).Return(nil, repository.ErrNotFound)

	_, err := service.DecideStep(context.Background(), id, models.StepIT, models.StepStatusApproved, "", models.Actor{ID: uuid.New(), Role: models.RoleITAdmin})
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestDecideStepEngineRejectionDoesNotSave(t *testing.T) {
	repo := new(MockRequestRepository)
	catalog := new(MockCatalog)
	notifier := new(MockNotifier)
	service := newTestService(repo, catalog, notifier)

	req := pendingRequest(uuid.New(), uuid.New())
	repo.On("GetRequestByID", mock.Anything, req.ID).Return(req, nil)

	// IT step decided before DEPT_MANAGER by a non-requester
	_, err := service.DecideStep(context.Background(), req.ID, models.StepIT, models.StepStatusApproved, "", models.Actor{ID: uuid.New(), Role: models.RoleITAdmin})

	assert.ErrorIs(t, err, engine.ErrOutOfOrder)
	repo.AssertNotCalled(t, "SaveAggregate", mock.Anything, mock.Anything)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestDecideStepRetriesOnVersionConflict(t *testing.T) {
	repo := new(MockRequestRepository)
	catalog := new(MockCatalog)
	notifier := new(MockNotifier)
	service := newTestService(repo, catalog, notifier)

	dept := uuid.New()
	req := pendingRequest(uuid.New(), dept)
	manager := models.Actor{ID: uuid.New(), Role: models.RoleDepartmentManager, DepartmentID: dept}

	repo.On("GetRequestByID", mock.Anything, req.ID).Return(req, nil)
	repo.On("SaveAggregate", mock.Anything, req).Return(repository.ErrVersionConflict).Once()
	repo.On("SaveAggregate", mock.Anything, req).Return(nil).Once()
	repo.On("CreateAuditLog", mock.Anything, mock.Anything).Return(nil)
	allowDispatch(repo, catalog, notifier)

	_, err := service.DecideStep(context.Background(), req.ID, models.StepDeptManager, models.StepStatusApproved, "", manager)

	assert.NoError(t, err)
	repo.AssertNumberOfCalls(t, "GetRequestByID", 2)
	repo.AssertNumberOfCalls(t, "SaveAggregate", 2)
}

func TestDecideStepSurfacesConflictAfterRetries(t *testing.T) {
	repo := new(MockRequestRepository)
	catalog := new(MockCatalog)
	notifier := new(MockNotifier)
	service := newTestService(repo, catalog, notifier)

	dept := uuid.New()
	req := pendingRequest(uuid.New(), dept)
	manager := models.Actor{ID: uuid.New(), Role: models.RoleDepartmentManager, DepartmentID: dept}

	repo.On("GetRequestByID", mock.Anything, req.ID).Return(req, nil)
	repo.On("SaveAggregate", mock.Anything, req).Return(repository.ErrVersionConflict)

	_, err := service.DecideStep(context.Background(), req.ID, models.StepDeptManager, models.StepStatusApproved, "", manager)

	assert.ErrorIs(t, err, ErrConflict)
	repo.AssertNumberOfCalls(t, "SaveAggregate", 3)
	notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCancelOrDeleteAdminDeletes(t *testing.T) {
	repo := new(MockRequestRepository)
	catalog := new(MockCatalog)
	notifier := new(MockNotifier)
	service := newTestService(repo, catalog, notifier)

	req := pendingRequest(uuid.New(), uuid.New())
	admin := models.Actor{ID: uuid.New(), Role: models.RoleAdmin}

	repo.On("GetRequestByID", mock.Anything, req.ID).Return(req, nil)
	repo.On("DeleteAggregate", mock.Anything, req.ID).Return(nil)

	outcome, err := service.CancelOrDelete(context.Background(), req.ID, admin)

	assert.NoError(t, err)
	assert.True(t, outcome.Deleted)
	repo.AssertCalled(t, "DeleteAggregate", mock.Anything, req.ID)
	repo.AssertNotCalled(t, "SaveAggregate", mock.Anything, mock.Anything)
}

func TestCancelOrDeleteRequesterCancels(t *testing.T) {
	repo := new(MockRequestRepository)
	catalog := new(MockCatalog)
	notifier := new(MockNotifier)
	service := newTestService(repo, catalog, notifier)

	requesterID := uuid.New()
	req := pendingRequest(requesterID, uuid.New())
	requester := models.Actor{ID: requesterID, Role: models.RoleStandardUser}

	repo.On("GetRequestByID", mock.Anything, req.ID).Return(req, nil)
	repo.On("SaveAggregate", mock.Anything, req).Return(nil)
	repo.On("CreateAuditLog", mock.Anything, mock.Anything).Return(nil)

	outcome, err := service.CancelOrDelete(context.Background(), req.ID, requester)

	assert.NoError(t, err)
	assert.False(t, outcome.Deleted)
	assert.Equal(t, models.StatusCancelled, outcome.Request.Status)
	repo.AssertNotCalled(t, "DeleteAggregate", mock.Anything, mock.Anything)
}

func TestCancelOrDeleteStrangerForbidden(t *testing.T) {
	repo := new(MockRequestRepository)
	catalog := new(MockCatalog)
	notifier := new(MockNotifier)
	service := newTestService(repo, catalog, notifier)

	req := pendingRequest(uuid.New(), uuid.New())
	repo.On("GetRequestByID", mock.Anything, req.ID).Return(req, nil)

	_, err := service.CancelOrDelete(context.Background(), req.ID, models.Actor{ID: uuid.New(), Role: models.RoleStandardUser})

	assert.ErrorIs(t, err, engine.ErrUnauthorized)
	repo.AssertNotCalled(t, "SaveAggregate", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "DeleteAggregate", mock.Anything, mock.Anything)
}

func TestAddNote(t *testing.T) {
	repo := new(MockRequestRepository)
	catalog := new(MockCatalog)
	notifier := new(MockNotifier)
	service := newTestService(repo, catalog, notifier)

	req := pendingRequest(uuid.New(), uuid.New())
	actor := models.Actor{ID: uuid.New(), Role: models.RoleStandardUser}

	t.Run("empty body rejected", func(t *testing.T) {
		_, err := service.AddNote(context.Background(), req.ID, "", actor)
		assert.True(t, engine.IsValidation(err))
	})

	t.Run("note created", func(t *testing.T) {
		repo.On("GetRequestByID", mock.Anything, req.ID).Return(req, nil)
		repo.On("CreateNote", mock.Anything, mock.Anything).Return(nil)
		repo.On("CreateAuditLog", mock.Anything, mock.Anything).Return(nil)

		note, err := service.AddNote(context.Background(), req.ID, "please expedite", actor)
		assert.NoError(t, err)
		assert.Equal(t, actor.ID, note.AuthorID)
		assert.Equal(t, "please expedite", note.Body)
	})
}

func TestListForApproverScopesDepartmentManager(t *testing.T) {
	repo := new(MockRequestRepository)
	catalog := new(MockCatalog)
	notifier := new(MockNotifier)
	service := newTestService(repo, catalog, notifier)

	dept := uuid.New()
	manager := models.Actor{ID: uuid.New(), Role: models.RoleDepartmentManager, DepartmentID: dept}

	repo.On("ListForApproverRole", mock.Anything, models.RoleDepartmentManager, mock.MatchedBy(func(d *uuid.UUID) bool {
		return d != nil && *d == dept
	}), "", 20, 0).Return([]models.PurchaseRequest{}, int64(0), nil)

	_, _, err := service.ListForApprover(context.Background(), manager, "", 20, 0)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestListForApproverAdminUnscoped(t *testing.T) {
	repo := new(MockRequestRepository)
	catalog := new(MockCatalog)
	notifier := new(MockNotifier)
	service := newTestService(repo, catalog, notifier)

	admin := models.Actor{ID: uuid.New(), Role: models.RoleAdmin}

	repo.On("ListForApproverRole", mock.Anything, models.RoleAdmin, (*uuid.UUID)(nil), "all", 50, 0).
		Return([]models.PurchaseRequest{}, int64(0), nil)

	_, _, err := service.ListForApprover(context.Background(), admin, "all", 50, 0)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestParseDate(t *testing.T) {
	_, err := parseDate("2026-09-30")
	assert.NoError(t, err)

	_, err = parseDate("2026-09-30T12:00:00Z")
	assert.NoError(t, err)

	_, err = parseDate("next tuesday")
	assert.True(t, engine.IsValidation(err))

	_, err = parseDate("")
	assert.True(t, engine.IsValidation(err))
}
