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

// WalletRepository — единственная точка записи в журнал кошельков. Журнал
// append-only, баланс меняется только вместе с добавлением записи.
type WalletRepository struct {
	db *sqlx.DB
}

// NewWalletRepository создаёт экземпляр репозитория.
func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetOrCreate возвращает кошелёк пользователя, создавая его при первом обращении.
func (r *WalletRepository) GetOrCreate(ctx context.Context, userID uuid.UUID, currency string) (*models.Wallet, error) {
	var wallet models.Wallet
	query := `
		INSERT INTO wallets (user_id, currency)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET updated_at = NOW()
		RETURNING *
	`
	if err := r.db.GetContext(ctx, &wallet, query, userID, currency); err != nil {
		return nil, fmt.Errorf("wallet repository: get or create %w", err)
	}
	return &wallet, nil
}

// WalletDeltas описывает изменение агрегатов кошелька одной операцией.
// Balance уже подписан; остальные счётчики меняются на модуль суммы.
type WalletDeltas struct {
	Balance            int64
	PendingWithdrawals int64
	TotalEarned        int64
	TotalWithdrawn     int64
}

// Apply атомарно применяет операцию: условно по версии обновляет агрегаты
// кошелька и дописывает запись журнала со снимком balance_after. На
// параллельное изменение возвращает common.ErrVersionConflict.
func (r *WalletRepository) Apply(ctx context.Context, wallet *models.Wallet, txn *models.WalletTransaction, deltas WalletDeltas) error {
	newBalance := wallet.Balance + deltas.Balance
	if newBalance < 0 {
		// Сюда попадать не должны: сервис проверяет баланс заранее.
		return apperror.ErrInsufficientBalance
	}

	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := common.BumpVersion(ctx, tx, `
			UPDATE wallets SET
				balance = balance + $3,
				pending_withdrawals = pending_withdrawals + $4,
				total_earned = total_earned + $5,
				total_withdrawn = total_withdrawn + $6,
				version = version + 1,
				updated_at = NOW()
			WHERE user_id = $1 AND version = $2 AND balance + $3 >= 0
		`, wallet.UserID, wallet.Version,
			deltas.Balance, deltas.PendingWithdrawals, deltas.TotalEarned, deltas.TotalWithdrawn); err != nil {
			return err
		}

		if err := tx.QueryRowxContext(ctx, `
			INSERT INTO wallet_transactions (user_id, type, amount, description, reference_id, reference_kind, balance_after)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id, created_at
		`, txn.UserID, txn.Type, txn.Amount, txn.Description, txn.ReferenceID, txn.ReferenceKind, newBalance).
			Scan(&txn.ID, &txn.CreatedAt); err != nil {
			return fmt.Errorf("wallet repository: insert transaction %w", err)
		}
		txn.BalanceAfter = newBalance

		return nil
	})
}

// UpdateAggregates условно по версии меняет счётчики кошелька без записи в
// журнал. Баланс этим путём меняться не может: его меняет только Apply.
func (r *WalletRepository) UpdateAggregates(ctx context.Context, wallet *models.Wallet, deltas WalletDeltas) error {
	if deltas.Balance != 0 {
		return fmt.Errorf("wallet repository: изменение баланса без записи журнала запрещено")
	}

	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		return common.BumpVersion(ctx, tx, `
			UPDATE wallets SET
				pending_withdrawals = pending_withdrawals + $3,
				total_earned = total_earned + $4,
				total_withdrawn = total_withdrawn + $5,
				version = version + 1,
				updated_at = NOW()
			WHERE user_id = $1 AND version = $2
		`, wallet.UserID, wallet.Version,
			deltas.PendingWithdrawals, deltas.TotalEarned, deltas.TotalWithdrawn)
	})
}

// History возвращает операции кошелька, новые первыми, с опциональным фильтром по типу.
func (r *WalletRepository) History(ctx context.Context, userID uuid.UUID, limit, offset int, txType string) ([]models.WalletTransaction, error) {
	var transactions []models.WalletTransaction
	var err error
	if txType != "" {
		err = r.db.SelectContext(ctx, &transactions, `
			SELECT * FROM wallet_transactions
			WHERE user_id = $1 AND type = $2
			ORDER BY created_at DESC LIMIT $3 OFFSET $4
		`, userID, txType, limit, offset)
	} else {
		err = r.db.SelectContext(ctx, &transactions, `
			SELECT * FROM wallet_transactions
			WHERE user_id = $1
			ORDER BY created_at DESC LIMIT $2 OFFSET $3
		`, userID, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("wallet repository: history %w", err)
	}
	return transactions, nil
}

// SumSigned пересчитывает баланс по журналу. Используется самопроверкой
// сервиса против расхождения баланса и журнала.
func (r *WalletRepository) SumSigned(ctx context.Context, userID uuid.UUID) (int64, error) {
	var sum int64
	err := r.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(
			CASE WHEN type IN ('credit', 'refund', 'bonus', 'commission_earned') THEN amount ELSE -amount END
		), 0)
		FROM wallet_transactions WHERE user_id = $1
	`, userID)
	if err != nil {
		return 0, fmt.Errorf("wallet repository: sum signed %w", err)
	}
	return sum, nil
}

// ExistsByReference сообщает, есть ли у пользователя запись журнала данного
// типа по указанной ссылке.
func (r *WalletRepository) ExistsByReference(ctx context.Context, userID uuid.UUID, txType string, ref models.TxReference) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `
		SELECT EXISTS(
			SELECT 1 FROM wallet_transactions
			WHERE user_id = $1 AND type = $2 AND reference_id = $3 AND reference_kind = $4
		)
	`, userID, txType, ref.ID, ref.Kind)
	if err != nil {
		return false, fmt.Errorf("wallet repository: exists by reference %w", err)
	}
	return exists, nil
}

// CreateWithdrawal создаёт заявку на вывод средств.
func (r *WalletRepository) CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	query := `
		INSERT INTO withdrawals (user_id, amount, status, account, card_last4, bank_name)
		VALUES ($1, $2, 'pending', $3, $4, $5)
		RETURNING id, created_at
	`
	if err := r.db.QueryRowxContext(ctx, query, w.UserID, w.Amount, w.Account, w.CardLast4, w.BankName).
		Scan(&w.ID, &w.CreatedAt); err != nil {
		return fmt.Errorf("wallet repository: create withdrawal %w", err)
	}
	w.Status = models.WithdrawalStatusPending
	return nil
}

// GetWithdrawal возвращает заявку на вывод по идентификатору.
func (r *WalletRepository) GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error) {
	return common.GetByID[models.Withdrawal](ctx, r.db, "withdrawals", id,
		apperror.New(apperror.ErrCodeNotFound, "заявка на вывод не найдена"))
}

// ListWithdrawals возвращает заявки пользователя, новые первыми.
func (r *WalletRepository) ListWithdrawals(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Withdrawal, error) {
	var withdrawals []models.Withdrawal
	err := r.db.SelectContext(ctx, &withdrawals, `
		SELECT * FROM withdrawals WHERE user_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("wallet repository: list withdrawals %w", err)
	}
	return withdrawals, nil
}

// SettleWithdrawal закрывает pending-заявку. Переход условный по статусу:
// повторное закрытие вернёт common.ErrVersionConflict.
func (r *WalletRepository) SettleWithdrawal(ctx context.Context, id uuid.UUID, status string, transferID, rejectionReason *string) (*models.Withdrawal, error) {
	now := time.Now().UTC()
	var withdrawal models.Withdrawal
	err := r.db.GetContext(ctx, &withdrawal, `
		UPDATE withdrawals
		SET status = $2, transfer_id = $3, rejection_reason = $4, processed_at = $5
		WHERE id = $1 AND status = 'pending'
		RETURNING *
	`, id, status, transferID, rejectionReason, now)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrVersionConflict
		}
		return nil, fmt.Errorf("wallet repository: settle withdrawal %w", err)
	}
	return &withdrawal, nil
}
