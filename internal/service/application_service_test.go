package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/pmorev/giglance-backend/internal/events"
	"github.com/pmorev/giglance-backend/internal/models"
	"github.com/pmorev/giglance-backend/internal/pkg/apperror"
)

type mockApplicationStore struct {
	mock.Mock
}

func (m *mockApplicationStore) CreateGig(ctx context.Context, gig *models.Gig) error {
	args := m.Called(ctx, gig)
	if args.Error(0) == nil {
		gig.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockApplicationStore) GetGig(ctx context.Context, id uuid.UUID) (*models.Gig, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Gig), args.Error(1)
}

func (m *mockApplicationStore) CreateApplication(ctx context.Context, app *models.GigApplication) error {
	args := m.Called(ctx, app)
	if args.Error(0) == nil {
		app.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockApplicationStore) GetApplication(ctx context.Context, id uuid.UUID) (*models.GigApplication, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GigApplication), args.Error(1)
}

func (m *mockApplicationStore) GetByGigAndFreelancer(ctx context.Context, gigID, freelancerID uuid.UUID) (*models.GigApplication, error) {
	args := m.Called(ctx, gigID, freelancerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GigApplication), args.Error(1)
}

func (m *mockApplicationStore) ListByGig(ctx context.Context, gigID uuid.UUID, limit, offset int) ([]models.GigApplication, error) {
	args := m.Called(ctx, gigID, limit, offset)
	return args.Get(0).([]models.GigApplication), args.Error(1)
}

func (m *mockApplicationStore) UpdateStatuses(ctx context.Context, app *models.GigApplication, applicationStatus, projectStatus string) error {
	args := m.Called(ctx, app, applicationStatus, projectStatus)
	return args.Error(0)
}

func (m *mockApplicationStore) ConsumeIteration(ctx context.Context, appID uuid.UUID, projectStatus string) (*models.GigApplication, error) {
	args := m.Called(ctx, appID, projectStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.GigApplication), args.Error(1)
}

func gigOwnedBy(clientID uuid.UUID) *models.Gig {
	return &models.Gig{
		ID:                uuid.New(),
		ClientID:          clientID,
		Title:             "Лендинг под ключ",
		Status:            "open",
		IterationsAllowed: 3,
	}
}

func TestApplicationService_CreateGig_Validation(t *testing.T) {
	repo := new(mockApplicationStore)
	svc := NewApplicationService(repo, events.NopPublisher{})
	ctx := context.Background()

	_, err := svc.CreateGig(ctx, uuid.New(), "", "", nil, 3)
	assert.True(t, apperror.IsValidation(err))

	_, err = svc.CreateGig(ctx, uuid.New(), "Лендинг", "", nil, 0)
	assert.True(t, apperror.IsValidation(err))

	badBudget := int64(-100)
	_, err = svc.CreateGig(ctx, uuid.New(), "Лендинг", "", &badBudget, 3)
	assert.ErrorIs(t, err, apperror.ErrInvalidAmount)

	repo.AssertNotCalled(t, "CreateGig", mock.Anything, mock.Anything)
}

func TestApplicationService_Apply_SeedsIterations(t *testing.T) {
	repo := new(mockApplicationStore)
	svc := NewApplicationService(repo, events.NopPublisher{})
	ctx := context.Background()
	freelancerID := uuid.New()
	gig := gigOwnedBy(uuid.New())

	repo.On("GetGig", ctx, gig.ID).Return(gig, nil)
	repo.On("GetByGigAndFreelancer", ctx, gig.ID, freelancerID).Return(nil, apperror.ErrApplicationNotFound)
	repo.On("CreateApplication", ctx, mock.AnythingOfType("*models.GigApplication")).Return(nil)

	app, err := svc.Apply(ctx, gig.ID, freelancerID, 4500)
	assert.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusPending, app.ApplicationStatus)
	assert.Equal(t, models.ProjectStatusNotStarted, app.ProjectStatus)
	assert.Equal(t, 3, app.RemainingIterations)
	assert.Equal(t, 3, app.TotalIterations)
	repo.AssertExpectations(t)
}

func TestApplicationService_Apply_OwnGig(t *testing.T) {
	repo := new(mockApplicationStore)
	svc := NewApplicationService(repo, events.NopPublisher{})
	ctx := context.Background()
	clientID := uuid.New()
	gig := gigOwnedBy(clientID)

	repo.On("GetGig", ctx, gig.ID).Return(gig, nil)

	_, err := svc.Apply(ctx, gig.ID, clientID, 4500)
	assert.Error(t, err)
	assert.True(t, apperror.IsStateConflict(err))
}

func TestApplicationService_Apply_Duplicate(t *testing.T) {
	repo := new(mockApplicationStore)
	svc := NewApplicationService(repo, events.NopPublisher{})
	ctx := context.Background()
	freelancerID := uuid.New()
	gig := gigOwnedBy(uuid.New())

	repo.On("GetGig", ctx, gig.ID).Return(gig, nil)
	repo.On("GetByGigAndFreelancer", ctx, gig.ID, freelancerID).
		Return(&models.GigApplication{ID: uuid.New()}, nil)

	_, err := svc.Apply(ctx, gig.ID, freelancerID, 4500)
	assert.Error(t, err)
	assert.True(t, apperror.IsStateConflict(err))
	repo.AssertNotCalled(t, "CreateApplication", mock.Anything, mock.Anything)
}

func TestApplicationService_Accept_Success(t *testing.T) {
	repo := new(mockApplicationStore)
	svc := NewApplicationService(repo, events.NopPublisher{})
	ctx := context.Background()
	clientID := uuid.New()
	gig := gigOwnedBy(clientID)
	app := &models.GigApplication{
		ID:                uuid.New(),
		GigID:             gig.ID,
		FreelancerID:      uuid.New(),
		ApplicationStatus: models.ApplicationStatusPending,
		ProjectStatus:     models.ProjectStatusNotStarted,
	}
	accepted := *app
	accepted.ApplicationStatus = models.ApplicationStatusAccepted
	accepted.ProjectStatus = models.ProjectStatusInProgress

	repo.On("GetApplication", ctx, app.ID).Return(app, nil).Twice()
	repo.On("GetGig", ctx, gig.ID).Return(gig, nil)
	repo.On("UpdateStatuses", ctx, app, models.ApplicationStatusAccepted, models.ProjectStatusInProgress).Return(nil)
	repo.On("GetApplication", ctx, app.ID).Return(&accepted, nil)

	got, err := svc.Accept(ctx, app.ID, clientID)
	assert.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusAccepted, got.ApplicationStatus)
	assert.Equal(t, models.ProjectStatusInProgress, got.ProjectStatus)
	repo.AssertExpectations(t)
}

func TestApplicationService_Accept_AlreadyRejected(t *testing.T) {
	repo := new(mockApplicationStore)
	svc := NewApplicationService(repo, events.NopPublisher{})
	ctx := context.Background()
	clientID := uuid.New()
	gig := gigOwnedBy(clientID)
	app := &models.GigApplication{
		ID:                uuid.New(),
		GigID:             gig.ID,
		ApplicationStatus: models.ApplicationStatusRejected,
	}

	repo.On("GetApplication", ctx, app.ID).Return(app, nil)
	repo.On("GetGig", ctx, gig.ID).Return(gig, nil)

	_, err := svc.Accept(ctx, app.ID, clientID)
	assert.ErrorIs(t, err, apperror.ErrAlreadyRejected)
	repo.AssertNotCalled(t, "UpdateStatuses", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApplicationService_Accept_NotTheOwner(t *testing.T) {
	repo := new(mockApplicationStore)
	svc := NewApplicationService(repo, events.NopPublisher{})
	ctx := context.Background()
	gig := gigOwnedBy(uuid.New())
	app := &models.GigApplication{ID: uuid.New(), GigID: gig.ID, ApplicationStatus: models.ApplicationStatusPending}

	repo.On("GetApplication", ctx, app.ID).Return(app, nil)
	repo.On("GetGig", ctx, gig.ID).Return(gig, nil)

	_, err := svc.Accept(ctx, app.ID, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotAParticipant)
}

func TestApplicationService_Reject_AcceptedApplication(t *testing.T) {
	repo := new(mockApplicationStore)
	svc := NewApplicationService(repo, events.NopPublisher{})
	ctx := context.Background()
	clientID := uuid.New()
	gig := gigOwnedBy(clientID)
	app := &models.GigApplication{
		ID:                uuid.New(),
		GigID:             gig.ID,
		ApplicationStatus: models.ApplicationStatusAccepted,
	}

	repo.On("GetApplication", ctx, app.ID).Return(app, nil)
	repo.On("GetGig", ctx, gig.ID).Return(gig, nil)

	_, err := svc.Reject(ctx, app.ID, clientID)
	assert.ErrorIs(t, err, apperror.ErrInvalidTransition)
}

func TestApplicationService_Reject_Twice(t *testing.T) {
	repo := new(mockApplicationStore)
	svc := NewApplicationService(repo, events.NopPublisher{})
	ctx := context.Background()
	clientID := uuid.New()
	gig := gigOwnedBy(clientID)
	app := &models.GigApplication{
		ID:                uuid.New(),
		GigID:             gig.ID,
		ApplicationStatus: models.ApplicationStatusRejected,
	}

	repo.On("GetApplication", ctx, app.ID).Return(app, nil)
	repo.On("GetGig", ctx, gig.ID).Return(gig, nil)

	_, err := svc.Reject(ctx, app.ID, clientID)
	assert.ErrorIs(t, err, apperror.ErrAlreadyRejected)
}

func TestApplicationService_SubmitDelivery_WrongFreelancer(t *testing.T) {
	repo := new(mockApplicationStore)
	svc := NewApplicationService(repo, events.NopPublisher{})
	ctx := context.Background()
	app := &models.GigApplication{
		ID:                uuid.New(),
		FreelancerID:      uuid.New(),
		ApplicationStatus: models.ApplicationStatusAccepted,
	}

	repo.On("GetApplication", ctx, app.ID).Return(app, nil)

	_, err := svc.SubmitDelivery(ctx, app.ID, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotAParticipant)
	repo.AssertNotCalled(t, "ConsumeIteration", mock.Anything, mock.Anything, mock.Anything)
}

func TestApplicationService_SubmitDelivery_NoIterationsLeft(t *testing.T) {
	repo := new(mockApplicationStore)
	svc := NewApplicationService(repo, events.NopPublisher{})
	ctx := context.Background()
	freelancerID := uuid.New()
	app := &models.GigApplication{
		ID:                  uuid.New(),
		FreelancerID:        freelancerID,
		ApplicationStatus:   models.ApplicationStatusAccepted,
		RemainingIterations: 0,
	}

	repo.On("GetApplication", ctx, app.ID).Return(app, nil)
	repo.On("ConsumeIteration", ctx, app.ID, models.ProjectStatusDelivered).
		Return(nil, apperror.ErrNoIterationsLeft)

	_, err := svc.SubmitDelivery(ctx, app.ID, freelancerID)
	assert.ErrorIs(t, err, apperror.ErrNoIterationsLeft)
}

func TestApplicationService_SubmitDelivery_Success(t *testing.T) {
	repo := new(mockApplicationStore)
	svc := NewApplicationService(repo, events.NopPublisher{})
	ctx := context.Background()
	freelancerID := uuid.New()
	gig := gigOwnedBy(uuid.New())
	app := &models.GigApplication{
		ID:                  uuid.New(),
		GigID:               gig.ID,
		FreelancerID:        freelancerID,
		ApplicationStatus:   models.ApplicationStatusAccepted,
		ProjectStatus:       models.ProjectStatusInProgress,
		RemainingIterations: 2,
		TotalIterations:     3,
	}
	delivered := *app
	delivered.ProjectStatus = models.ProjectStatusDelivered
	delivered.RemainingIterations = 1

	repo.On("GetApplication", ctx, app.ID).Return(app, nil)
	repo.On("ConsumeIteration", ctx, app.ID, models.ProjectStatusDelivered).Return(&delivered, nil)
	repo.On("GetGig", ctx, gig.ID).Return(gig, nil)

	got, err := svc.SubmitDelivery(ctx, app.ID, freelancerID)
	assert.NoError(t, err)
	assert.Equal(t, 1, got.RemainingIterations)
	assert.Equal(t, models.ProjectStatusDelivered, got.ProjectStatus)
	repo.AssertExpectations(t)
}

func TestApplicationService_ListByGig_OwnerOnly(t *testing.T) {
	repo := new(mockApplicationStore)
	svc := NewApplicationService(repo, events.NopPublisher{})
	ctx := context.Background()
	gig := gigOwnedBy(uuid.New())

	repo.On("GetGig", ctx, gig.ID).Return(gig, nil)

	_, err := svc.ListByGig(ctx, gig.ID, uuid.New(), 20, 0)
	assert.ErrorIs(t, err, apperror.ErrNotAParticipant)
}
