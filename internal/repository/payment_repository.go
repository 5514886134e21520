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

// PaymentRepository отвечает за платежи и их историю статусов.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository создаёт экземпляр репозитория.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// Create сохраняет новый платёж и первую запись истории статусов.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := tx.QueryRowxContext(ctx, `
			INSERT INTO payments (conversation_id, gig_id, payer_id, payee_id, type, status,
				amount, platform_fee, total_payable, commission, currency, gateway_order_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id, created_at, updated_at
		`, payment.ConversationID, payment.GigID, payment.PayerID, payment.PayeeID,
			payment.Type, payment.Status, payment.Amount, payment.PlatformFee,
			payment.TotalPayable, payment.Commission, payment.Currency, payment.GatewayOrderID).
			Scan(&payment.ID, &payment.CreatedAt, &payment.UpdatedAt); err != nil {
			// Частичный уникальный индекс держит инвариант "один незавершённый
			// платёж на беседу" при конкурентных запусках.
			if common.IsUniqueViolation(err, "uq_payments_in_flight") {
				return apperror.ErrPaymentInFlight
			}
			return fmt.Errorf("payment repository: create %w", err)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO payment_status_history (payment_id, status, note)
			VALUES ($1, $2, $3)
		`, payment.ID, payment.Status, "платёж создан")
		if err != nil {
			return fmt.Errorf("payment repository: create history %w", err)
		}
		return nil
	})
}

// GetByID возвращает платёж по идентификатору.
func (r *PaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return common.GetByID[models.Payment](ctx, r.db, "payments", id, apperror.ErrPaymentNotFound)
}

// GetByGatewayOrderID возвращает платёж по идентификатору заказа во внешнем шлюзе.
func (r *PaymentRepository) GetByGatewayOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	return common.GetByField[models.Payment](ctx, r.db, "payments", "gateway_order_id", orderID, apperror.ErrPaymentNotFound)
}

// ListByConversation возвращает платежи беседы, новые первыми.
func (r *PaymentRepository) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.SelectContext(ctx, &payments, `
		SELECT * FROM payments WHERE conversation_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("payment repository: list by conversation %w", err)
	}
	return payments, nil
}

// HasInFlight сообщает, есть ли по беседе незавершённый платёж.
func (r *PaymentRepository) HasInFlight(ctx context.Context, conversationID uuid.UUID) (bool, error) {
	var count int
	err := r.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM payments
		WHERE conversation_id = $1 AND status IN ('pending', 'processing')
	`, conversationID)
	if err != nil {
		return false, fmt.Errorf("payment repository: has in flight %w", err)
	}
	return count > 0, nil
}

// TransitionStatus переводит платёж из from в to и дописывает запись истории.
// Обновление условное по прежнему статусу: это гарантирует монотонность
// истории даже при гонке вебхуков. На проигранную гонку возвращается
// common.ErrVersionConflict.
func (r *PaymentRepository) TransitionStatus(ctx context.Context, paymentID uuid.UUID, from, to string, note string) error {
	if !models.IsValidPaymentTransition(from, to) {
		return apperror.ErrInvalidTransition
	}

	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE payments SET status = $3, updated_at = NOW()
			WHERE id = $1 AND status = $2
		`, paymentID, from, to)
		if err != nil {
			return fmt.Errorf("payment repository: transition %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return common.ErrVersionConflict
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO payment_status_history (payment_id, status, note)
			VALUES ($1, $2, $3)
		`, paymentID, to, note)
		if err != nil {
			return fmt.Errorf("payment repository: transition history %w", err)
		}
		return nil
	})
}

// SetPaymentRef сохраняет ссылку на платёж во внешнем шлюзе.
func (r *PaymentRepository) SetPaymentRef(ctx context.Context, paymentID uuid.UUID, paymentRef string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payments SET gateway_payment_ref = $2, updated_at = NOW() WHERE id = $1
	`, paymentID, paymentRef)
	if err != nil {
		return fmt.Errorf("payment repository: set payment ref %w", err)
	}
	return nil
}

// SetTransfer сохраняет данные выплаты исполнителю.
func (r *PaymentRepository) SetTransfer(ctx context.Context, paymentID uuid.UUID, transferID, transferMode string) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE payments SET transfer_id = $2, transfer_mode = $3, transferred_at = $4, updated_at = NOW()
		WHERE id = $1 AND transfer_id IS NULL
	`, paymentID, transferID, transferMode, now)
	if err != nil {
		return fmt.Errorf("payment repository: set transfer %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return common.ErrVersionConflict
	}
	return nil
}

// StatusHistory возвращает историю статусов платежа в порядке добавления.
func (r *PaymentRepository) StatusHistory(ctx context.Context, paymentID uuid.UUID) ([]models.PaymentStatusEntry, error) {
	var history []models.PaymentStatusEntry
	err := r.db.SelectContext(ctx, &history, `
		SELECT * FROM payment_status_history WHERE payment_id = $1 ORDER BY id ASC
	`, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("payment repository: status history %w", err)
	}
	return history, nil
}
