package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pmorev/giglance-backend/internal/models"
	"github.com/pmorev/giglance-backend/internal/pkg/apperror"
	"github.com/pmorev/giglance-backend/internal/repository/common"
)

// ApplicationRepository отвечает за задания и отклики фрилансеров.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository создаёт экземпляр репозитория.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// CreateGig создаёт новое задание.
func (r *ApplicationRepository) CreateGig(ctx context.Context, gig *models.Gig) error {
	query := `
		INSERT INTO gigs (client_id, title, description, budget, status, iterations_allowed)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query, gig.ClientID, gig.Title, gig.Description,
		gig.Budget, gig.Status, gig.IterationsAllowed).
		Scan(&gig.ID, &gig.CreatedAt, &gig.UpdatedAt); err != nil {
		return fmt.Errorf("application repository: create gig %w", err)
	}
	return nil
}

// GetGig возвращает задание по идентификатору.
func (r *ApplicationRepository) GetGig(ctx context.Context, id uuid.UUID) (*models.Gig, error) {
	return common.GetByID[models.Gig](ctx, r.db, "gigs", id, apperror.ErrGigNotFound)
}

// CreateApplication создаёт отклик фрилансера на задание.
func (r *ApplicationRepository) CreateApplication(ctx context.Context, app *models.GigApplication) error {
	query := `
		INSERT INTO gig_applications (gig_id, freelancer_id, proposed_rate, application_status,
			project_status, remaining_iterations, total_iterations)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, version, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query, app.GigID, app.FreelancerID, app.ProposedRate,
		app.ApplicationStatus, app.ProjectStatus, app.RemainingIterations, app.TotalIterations).
		Scan(&app.ID, &app.Version, &app.CreatedAt, &app.UpdatedAt); err != nil {
		return fmt.Errorf("application repository: create application %w", err)
	}
	return nil
}

// GetApplication возвращает отклик по идентификатору.
func (r *ApplicationRepository) GetApplication(ctx context.Context, id uuid.UUID) (*models.GigApplication, error) {
	return common.GetByID[models.GigApplication](ctx, r.db, "gig_applications", id, apperror.ErrApplicationNotFound)
}

// GetByGigAndFreelancer возвращает отклик пары (задание, фрилансер).
func (r *ApplicationRepository) GetByGigAndFreelancer(ctx context.Context, gigID, freelancerID uuid.UUID) (*models.GigApplication, error) {
	var app models.GigApplication
	err := r.db.GetContext(ctx, &app, `
		SELECT * FROM gig_applications WHERE gig_id = $1 AND freelancer_id = $2
	`, gigID, freelancerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrApplicationNotFound
		}
		return nil, fmt.Errorf("application repository: get by gig and freelancer %w", err)
	}
	return &app, nil
}

// ListByGig возвращает отклики по заданию.
func (r *ApplicationRepository) ListByGig(ctx context.Context, gigID uuid.UUID, limit, offset int) ([]models.GigApplication, error) {
	var apps []models.GigApplication
	err := r.db.SelectContext(ctx, &apps, `
		SELECT * FROM gig_applications WHERE gig_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, gigID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("application repository: list by gig %w", err)
	}
	return apps, nil
}

// UpdateStatuses условно по версии меняет статус отклика и статус работы.
func (r *ApplicationRepository) UpdateStatuses(ctx context.Context, app *models.GigApplication, applicationStatus, projectStatus string) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		return common.BumpVersion(ctx, tx, `
			UPDATE gig_applications SET application_status = $3, project_status = $4,
				version = version + 1, updated_at = NOW()
			WHERE id = $1 AND version = $2
		`, app.ID, app.Version, applicationStatus, projectStatus)
	})
}

// ConsumeIteration списывает одну итерацию сдачи работы. Условие
// remaining_iterations > 0 в самом запросе не даёт счётчику уйти ниже нуля
// при любой гонке; исчерпанный лимит возвращает ErrNoIterationsLeft.
func (r *ApplicationRepository) ConsumeIteration(ctx context.Context, appID uuid.UUID, projectStatus string) (*models.GigApplication, error) {
	var app models.GigApplication
	err := r.db.GetContext(ctx, &app, `
		UPDATE gig_applications SET remaining_iterations = remaining_iterations - 1,
			project_status = $2, version = version + 1, updated_at = NOW()
		WHERE id = $1 AND application_status = 'accepted' AND remaining_iterations > 0
		RETURNING *
	`, appID, projectStatus)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrNoIterationsLeft
		}
		return nil, fmt.Errorf("application repository: consume iteration %w", err)
	}
	return &app, nil
}
