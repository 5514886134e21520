package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pmorev/giglance-backend/internal/models"
	"github.com/pmorev/giglance-backend/internal/pkg/apperror"
	"github.com/pmorev/giglance-backend/internal/repository/common"
)

// ConversationRepository отвечает за беседы и историю переговоров.
type ConversationRepository struct {
	db *sqlx.DB
}

// NewConversationRepository создаёт экземпляр репозитория.
func NewConversationRepository(db *sqlx.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// Create создаёт новую беседу.
func (r *ConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	query := `
		INSERT INTO conversations (gig_id, client_id, freelancer_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, version, created_at, updated_at
	`
	if err := r.db.QueryRowxContext(ctx, query, conv.GigID, conv.ClientID, conv.FreelancerID, conv.Status).
		Scan(&conv.ID, &conv.Version, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
		return fmt.Errorf("conversation repository: create %w", err)
	}
	return nil
}

// GetByID возвращает беседу по идентификатору.
func (r *ConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	return common.GetByID[models.Conversation](ctx, r.db, "conversations", id, apperror.ErrConversationNotFound)
}

// ListByUser возвращает беседы, в которых пользователь участвует.
func (r *ConversationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := r.db.SelectContext(ctx, &conversations, `
		SELECT * FROM conversations
		WHERE client_id = $1 OR freelancer_id = $1
		ORDER BY updated_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("conversation repository: list by user %w", err)
	}
	return conversations, nil
}

// CurrentNegotiation возвращает активное предложение беседы (pending или
// accepted). Инвариант схемы: такое предложение не более одного.
func (r *ConversationRepository) CurrentNegotiation(ctx context.Context, conversationID uuid.UUID) (*models.Negotiation, error) {
	var negotiation models.Negotiation
	err := r.db.GetContext(ctx, &negotiation, `
		SELECT * FROM negotiations
		WHERE conversation_id = $1 AND status IN ('pending', 'accepted')
		ORDER BY created_at DESC LIMIT 1
	`, conversationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrNegotiationNotFound
		}
		return nil, fmt.Errorf("conversation repository: current negotiation %w", err)
	}
	return &negotiation, nil
}

// ListNegotiations возвращает историю предложений беседы, новые первыми.
func (r *ConversationRepository) ListNegotiations(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]models.Negotiation, error) {
	var negotiations []models.Negotiation
	err := r.db.SelectContext(ctx, &negotiations, `
		SELECT * FROM negotiations
		WHERE conversation_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("conversation repository: list negotiations %w", err)
	}
	return negotiations, nil
}

// Propose атомарно вытесняет прежнее активное предложение, добавляет новое и
// переводит беседу в указанный статус. Запись условная по версии беседы:
// при параллельном изменении возвращается common.ErrVersionConflict.
func (r *ConversationRepository) Propose(ctx context.Context, conv *models.Conversation, negotiation *models.Negotiation, newStatus string) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		// Прежнее pending/accepted предложение помечаем superseded.
		_, err := tx.ExecContext(ctx, `
			UPDATE negotiations SET status = 'superseded', updated_at = NOW()
			WHERE conversation_id = $1 AND status IN ('pending', 'accepted')
		`, conv.ID)
		if err != nil {
			return fmt.Errorf("conversation repository: supersede %w", err)
		}

		if err := tx.QueryRowxContext(ctx, `
			INSERT INTO negotiations (conversation_id, proposed_by, price, timeline, terms, status)
			VALUES ($1, $2, $3, $4, $5, 'pending')
			RETURNING id, created_at, updated_at
		`, conv.ID, negotiation.ProposedBy, negotiation.Price, negotiation.Timeline, negotiation.Terms).
			Scan(&negotiation.ID, &negotiation.CreatedAt, &negotiation.UpdatedAt); err != nil {
			return fmt.Errorf("conversation repository: insert negotiation %w", err)
		}
		negotiation.ConversationID = conv.ID
		negotiation.Status = models.NegotiationStatusPending

		return common.BumpVersion(ctx, tx, `
			UPDATE conversations SET status = $3, version = version + 1, updated_at = NOW()
			WHERE id = $1 AND version = $2
		`, conv.ID, conv.Version, newStatus)
	})
}

// SetNegotiationStatus переводит предложение из одного статуса в другой и
// синхронно меняет статус беседы. Переход предложения условный по прежнему
// статусу, беседы — по версии.
func (r *ConversationRepository) SetNegotiationStatus(ctx context.Context, conv *models.Conversation, negotiationID uuid.UUID, fromStatus, toStatus, convStatus string) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE negotiations SET status = $3, updated_at = NOW()
			WHERE id = $1 AND status = $2
		`, negotiationID, fromStatus, toStatus)
		if err != nil {
			return fmt.Errorf("conversation repository: set negotiation status %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return common.ErrVersionConflict
		}

		return common.BumpVersion(ctx, tx, `
			UPDATE conversations SET status = $3, version = version + 1, updated_at = NOW()
			WHERE id = $1 AND version = $2
		`, conv.ID, conv.Version, convStatus)
	})
}

// UpdateStatus условно меняет статус беседы по прочитанной версии.
func (r *ConversationRepository) UpdateStatus(ctx context.Context, conversationID uuid.UUID, version int64, status string) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		return common.BumpVersion(ctx, tx, `
			UPDATE conversations SET status = $3, version = version + 1, updated_at = NOW()
			WHERE id = $1 AND version = $2
		`, conversationID, version, status)
	})
}

// ExpireStale помечает superseded все pending предложения старше отметки.
// Обновление условное по статусу, поэтому идемпотентно и безопасно при
// параллельных запусках.
func (r *ConversationRepository) ExpireStale(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE negotiations SET status = 'superseded', updated_at = NOW()
		WHERE status = 'pending' AND created_at < $1
	`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("conversation repository: expire stale %w", err)
	}
	return res.RowsAffected()
}
