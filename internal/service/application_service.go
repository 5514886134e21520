package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/pmorev/giglance-backend/internal/events"
	"github.com/pmorev/giglance-backend/internal/models"
	"github.com/pmorev/giglance-backend/internal/pkg/apperror"
)

// ApplicationStore описывает взаимодействие сервиса откликов с хранилищем.
type ApplicationStore interface {
	CreateGig(ctx context.Context, gig *models.Gig) error
	GetGig(ctx context.Context, id uuid.UUID) (*models.Gig, error)
	CreateApplication(ctx context.Context, app *models.GigApplication) error
	GetApplication(ctx context.Context, id uuid.UUID) (*models.GigApplication, error)
	GetByGigAndFreelancer(ctx context.Context, gigID, freelancerID uuid.UUID) (*models.GigApplication, error)
	ListByGig(ctx context.Context, gigID uuid.UUID, limit, offset int) ([]models.GigApplication, error)
	UpdateStatuses(ctx context.Context, app *models.GigApplication, applicationStatus, projectStatus string) error
	ConsumeIteration(ctx context.Context, appID uuid.UUID, projectStatus string) (*models.GigApplication, error)
}

// ApplicationService ведёт жизненный цикл откликов: подача, решение клиента
// и сдачи работы в пределах лимита итераций.
type ApplicationService struct {
	repo      ApplicationStore
	publisher events.Publisher
}

// NewApplicationService создаёт сервис откликов.
func NewApplicationService(repo ApplicationStore, publisher events.Publisher) *ApplicationService {
	return &ApplicationService{repo: repo, publisher: publisher}
}

// CreateGig публикует новое задание.
func (s *ApplicationService) CreateGig(ctx context.Context, clientID uuid.UUID, title, description string, budget *int64, iterations int) (*models.Gig, error) {
	if title == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "название задания обязательно")
	}
	if iterations <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "число итераций должно быть положительным")
	}
	if budget != nil && *budget <= 0 {
		return nil, apperror.ErrInvalidAmount
	}

	gig := &models.Gig{
		ClientID:          clientID,
		Title:             title,
		Description:       description,
		Budget:            budget,
		Status:            "open",
		IterationsAllowed: iterations,
	}
	if err := s.repo.CreateGig(ctx, gig); err != nil {
		return nil, err
	}
	return gig, nil
}

// Apply создаёт отклик фрилансера. Один фрилансер — один отклик на задание,
// клиент на собственное задание откликнуться не может.
func (s *ApplicationService) Apply(ctx context.Context, gigID, freelancerID uuid.UUID, proposedRate int64) (*models.GigApplication, error) {
	if proposedRate <= 0 {
		return nil, apperror.ErrInvalidAmount
	}

	gig, err := s.repo.GetGig(ctx, gigID)
	if err != nil {
		return nil, err
	}
	if gig.ClientID == freelancerID {
		return nil, apperror.New(apperror.ErrCodeStateConflict, "нельзя откликнуться на собственное задание")
	}

	if _, err := s.repo.GetByGigAndFreelancer(ctx, gigID, freelancerID); err == nil {
		return nil, apperror.New(apperror.ErrCodeStateConflict, "отклик на это задание уже подан")
	} else if !apperror.IsNotFound(err) {
		return nil, err
	}

	app := &models.GigApplication{
		GigID:               gigID,
		FreelancerID:        freelancerID,
		ProposedRate:        proposedRate,
		ApplicationStatus:   models.ApplicationStatusPending,
		ProjectStatus:       models.ProjectStatusNotStarted,
		RemainingIterations: gig.IterationsAllowed,
		TotalIterations:     gig.IterationsAllowed,
	}
	if err := s.repo.CreateApplication(ctx, app); err != nil {
		return nil, err
	}
	return app, nil
}

// Accept принимает отклик. Доступно только автору задания и только для
// ожидающего отклика; работа переходит в in_progress.
func (s *ApplicationService) Accept(ctx context.Context, applicationID, clientID uuid.UUID) (*models.GigApplication, error) {
	app, _, err := s.getForClient(ctx, applicationID, clientID)
	if err != nil {
		return nil, err
	}

	if app.ApplicationStatus != models.ApplicationStatusPending {
		if app.ApplicationStatus == models.ApplicationStatusRejected {
			return nil, apperror.ErrAlreadyRejected
		}
		return nil, apperror.ErrInvalidTransition
	}

	err = withConflictRetry(ctx, func(ctx context.Context) error {
		fresh, err := s.repo.GetApplication(ctx, applicationID)
		if err != nil {
			return err
		}
		return s.repo.UpdateStatuses(ctx, fresh, models.ApplicationStatusAccepted, models.ProjectStatusInProgress)
	})
	if err != nil {
		return nil, err
	}

	app, err = s.repo.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, app.FreelancerID, events.ApplicationAccepted, app)
	return app, nil
}

// Reject отклоняет отклик. Принятый отклик отклонить нельзя, повторное
// отклонение — отдельная ошибка.
func (s *ApplicationService) Reject(ctx context.Context, applicationID, clientID uuid.UUID) (*models.GigApplication, error) {
	app, _, err := s.getForClient(ctx, applicationID, clientID)
	if err != nil {
		return nil, err
	}

	switch app.ApplicationStatus {
	case models.ApplicationStatusRejected:
		return nil, apperror.ErrAlreadyRejected
	case models.ApplicationStatusAccepted:
		return nil, apperror.ErrInvalidTransition
	}

	err = withConflictRetry(ctx, func(ctx context.Context) error {
		fresh, err := s.repo.GetApplication(ctx, applicationID)
		if err != nil {
			return err
		}
		return s.repo.UpdateStatuses(ctx, fresh, models.ApplicationStatusRejected, fresh.ProjectStatus)
	})
	if err != nil {
		return nil, err
	}

	app, err = s.repo.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, app.FreelancerID, events.ApplicationRejected, app)
	return app, nil
}

// SubmitDelivery списывает одну итерацию сдачи. Счётчик оставшихся итераций
// не опускается ниже нуля ни при какой гонке.
func (s *ApplicationService) SubmitDelivery(ctx context.Context, applicationID, freelancerID uuid.UUID) (*models.GigApplication, error) {
	app, err := s.repo.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.FreelancerID != freelancerID {
		return nil, apperror.ErrNotAParticipant
	}
	if app.ApplicationStatus != models.ApplicationStatusAccepted {
		return nil, apperror.ErrInvalidTransition
	}

	app, err = s.repo.ConsumeIteration(ctx, applicationID, models.ProjectStatusDelivered)
	if err != nil {
		return nil, err
	}

	gig, err := s.repo.GetGig(ctx, app.GigID)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, gig.ClientID, events.DeliverySubmitted, app)
	return app, nil
}

// Get возвращает отклик. Доступен фрилансеру-автору и владельцу задания.
func (s *ApplicationService) Get(ctx context.Context, applicationID, userID uuid.UUID) (*models.GigApplication, error) {
	app, err := s.repo.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	if app.FreelancerID == userID {
		return app, nil
	}
	gig, err := s.repo.GetGig(ctx, app.GigID)
	if err != nil {
		return nil, err
	}
	if gig.ClientID != userID {
		return nil, apperror.ErrNotAParticipant
	}
	return app, nil
}

// ListByGig возвращает отклики задания его владельцу.
func (s *ApplicationService) ListByGig(ctx context.Context, gigID, clientID uuid.UUID, limit, offset int) ([]models.GigApplication, error) {
	gig, err := s.repo.GetGig(ctx, gigID)
	if err != nil {
		return nil, err
	}
	if gig.ClientID != clientID {
		return nil, apperror.ErrNotAParticipant
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByGig(ctx, gigID, limit, offset)
}

func (s *ApplicationService) getForClient(ctx context.Context, applicationID, clientID uuid.UUID) (*models.GigApplication, *models.Gig, error) {
	app, err := s.repo.GetApplication(ctx, applicationID)
	if err != nil {
		return nil, nil, err
	}
	gig, err := s.repo.GetGig(ctx, app.GigID)
	if err != nil {
		return nil, nil, err
	}
	if gig.ClientID != clientID {
		return nil, nil, apperror.ErrNotAParticipant
	}
	return app, gig, nil
}
