package service

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/pmorev/giglance-backend/internal/events"
	"github.com/pmorev/giglance-backend/internal/gateway"
	"github.com/pmorev/giglance-backend/internal/models"
	"github.com/pmorev/giglance-backend/internal/pkg/apperror"
	"github.com/pmorev/giglance-backend/internal/repository"
)

// WalletStore описывает взаимодействие сервиса кошельков с хранилищем.
type WalletStore interface {
	GetOrCreate(ctx context.Context, userID uuid.UUID, currency string) (*models.Wallet, error)
	Apply(ctx context.Context, wallet *models.Wallet, txn *models.WalletTransaction, deltas repository.WalletDeltas) error
	UpdateAggregates(ctx context.Context, wallet *models.Wallet, deltas repository.WalletDeltas) error
	History(ctx context.Context, userID uuid.UUID, limit, offset int, txType string) ([]models.WalletTransaction, error)
	SumSigned(ctx context.Context, userID uuid.UUID) (int64, error)
	ExistsByReference(ctx context.Context, userID uuid.UUID, txType string, ref models.TxReference) (bool, error)
	CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error
	GetWithdrawal(ctx context.Context, id uuid.UUID) (*models.Withdrawal, error)
	ListWithdrawals(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Withdrawal, error)
	SettleWithdrawal(ctx context.Context, id uuid.UUID, status string, transferID, rejectionReason *string) (*models.Withdrawal, error)
}

// WalletService оборачивает журнал кошельков доменными операциями. Только он
// пишет в журнал; баланс нигде больше не вычисляется и не кэшируется.
type WalletService struct {
	repo              WalletStore
	gw                gateway.Gateway
	publisher         events.Publisher
	currency          string
	platformAccountID uuid.UUID
	minWithdrawal     int64
}

// NewWalletService создаёт сервис кошельков.
func NewWalletService(repo WalletStore, gw gateway.Gateway, publisher events.Publisher, currency string, platformAccountID uuid.UUID, minWithdrawal int64) *WalletService {
	return &WalletService{
		repo:              repo,
		gw:                gw,
		publisher:         publisher,
		currency:          currency,
		platformAccountID: platformAccountID,
		minWithdrawal:     minWithdrawal,
	}
}

// Get возвращает кошелёк пользователя, создавая его при первом обращении.
func (s *WalletService) Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	return s.repo.GetOrCreate(ctx, userID, s.currency)
}

// Credit зачисляет средства. Не падает ни на чём, кроме заблокированного
// кошелька и невалидной суммы.
func (s *WalletService) Credit(ctx context.Context, userID uuid.UUID, amount int64, description string, ref models.TxReference) (*models.WalletTransaction, error) {
	txn, err := s.apply(ctx, userID, models.WalletTxCredit, amount, description, ref, repository.WalletDeltas{
		Balance:     amount,
		TotalEarned: amount,
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, userID, events.WalletCredited, txn)
	return txn, nil
}

// Debit списывает средства. Недостаточный баланс — отказ целиком, частичных
// списаний не бывает.
func (s *WalletService) Debit(ctx context.Context, userID uuid.UUID, amount int64, description string, ref models.TxReference) (*models.WalletTransaction, error) {
	txn, err := s.apply(ctx, userID, models.WalletTxDebit, amount, description, ref, repository.WalletDeltas{
		Balance: -amount,
	})
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, userID, events.WalletDebited, txn)
	return txn, nil
}

// Refund зачисляет возврат отдельной записью журнала.
func (s *WalletService) Refund(ctx context.Context, userID uuid.UUID, amount int64, description string, ref models.TxReference) (*models.WalletTransaction, error) {
	return s.apply(ctx, userID, models.WalletTxRefund, amount, description, ref, repository.WalletDeltas{
		Balance: amount,
	})
}

// RecordCommission проводит комиссионную разбивку выплаты: исполнителю
// зачисляется полная сумма и тут же удерживается комиссия, комиссия уходит
// на служебный кошелёк платформы. Возвращает сумму, оставшуюся исполнителю.
func (s *WalletService) RecordCommission(ctx context.Context, payerID, payeeID uuid.UUID, grossAmount int64, commissionRate float64, ref models.TxReference) (int64, error) {
	if grossAmount <= 0 {
		return 0, apperror.ErrInvalidAmount
	}

	commission := RoundShare(grossAmount, commissionRate)
	net := grossAmount - commission

	if _, err := s.Credit(ctx, payeeID, grossAmount, "Оплата за выполненную работу", ref); err != nil {
		return 0, err
	}

	if commission > 0 {
		if _, err := s.apply(ctx, payeeID, models.WalletTxCommissionDeducted, commission,
			"Комиссия платформы", ref, repository.WalletDeltas{Balance: -commission}); err != nil {
			return 0, err
		}

		if _, err := s.apply(ctx, s.platformAccountID, models.WalletTxCommissionEarned, commission,
			fmt.Sprintf("Комиссия с платежа пользователя %s", payerID), ref,
			repository.WalletDeltas{Balance: commission, TotalEarned: commission}); err != nil {
			return 0, err
		}
	}

	return net, nil
}

// HasCredit сообщает, зачислялась ли уже оплата по указанной ссылке.
// Повторная доставка уведомления шлюза не должна кредитовать дважды.
func (s *WalletService) HasCredit(ctx context.Context, userID uuid.UUID, ref models.TxReference) (bool, error) {
	return s.repo.ExistsByReference(ctx, userID, models.WalletTxCredit, ref)
}

// History возвращает операции кошелька, новые первыми, с фильтром по типу.
func (s *WalletService) History(ctx context.Context, userID uuid.UUID, limit, offset int, txType string) ([]models.WalletTransaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if txType != "" {
		if _, ok := models.WalletTxSign[txType]; !ok {
			return nil, apperror.New(apperror.ErrCodeValidation, "неизвестный тип операции")
		}
	}
	return s.repo.History(ctx, userID, limit, offset, txType)
}

// VerifyLedger сверяет баланс кошелька с суммой журнала.
func (s *WalletService) VerifyLedger(ctx context.Context, userID uuid.UUID) error {
	wallet, err := s.repo.GetOrCreate(ctx, userID, s.currency)
	if err != nil {
		return err
	}
	sum, err := s.repo.SumSigned(ctx, userID)
	if err != nil {
		return err
	}
	if sum != wallet.Balance {
		return apperror.New(apperror.ErrCodeInternal,
			fmt.Sprintf("баланс кошелька %d расходится с журналом %d", wallet.Balance, sum))
	}
	return nil
}

// RequestWithdrawal списывает средства в заявку на вывод. Реквизиты выплаты
// фиксируются в заявке: оператор закрывает её без ввода реквизитов.
func (s *WalletService) RequestWithdrawal(ctx context.Context, userID uuid.UUID, amount int64, account, cardLast4, bankName string) (*models.Withdrawal, error) {
	if amount < s.minWithdrawal {
		return nil, apperror.New(apperror.ErrCodeValidation,
			fmt.Sprintf("минимальная сумма вывода %d %s", s.minWithdrawal, s.currency))
	}
	if account == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "реквизиты для выплаты обязательны")
	}

	withdrawal := &models.Withdrawal{
		UserID:  userID,
		Amount:  amount,
		Account: &account,
	}
	if cardLast4 != "" {
		withdrawal.CardLast4 = &cardLast4
	}
	if bankName != "" {
		withdrawal.BankName = &bankName
	}
	if err := s.repo.CreateWithdrawal(ctx, withdrawal); err != nil {
		return nil, err
	}

	ref := models.TxReference{ID: withdrawal.ID, Kind: models.RefKindWithdrawal}
	if _, err := s.apply(ctx, userID, models.WalletTxWithdrawal, amount, "Заявка на вывод средств", ref, repository.WalletDeltas{
		Balance:            -amount,
		PendingWithdrawals: amount,
	}); err != nil {
		// Заявка без списания остаётся pending и будет отклонена оператором.
		reason := "не удалось зарезервировать средства"
		_, _ = s.repo.SettleWithdrawal(ctx, withdrawal.ID, models.WithdrawalStatusRejected, nil, &reason)
		return nil, err
	}

	s.publisher.Publish(ctx, userID, events.WithdrawalRequested, withdrawal)
	return withdrawal, nil
}

// CompleteWithdrawal выплачивает зарезервированные средства через шлюз.
// Доступно только операторской роли; реквизиты берутся из самой заявки.
func (s *WalletService) CompleteWithdrawal(ctx context.Context, id uuid.UUID, callerRole string) (*models.Withdrawal, error) {
	if callerRole != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}

	withdrawal, err := s.repo.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, err
	}
	if withdrawal.Status != models.WithdrawalStatusPending {
		return nil, apperror.ErrInvalidTransition
	}
	if withdrawal.Account == nil || *withdrawal.Account == "" {
		return nil, apperror.New(apperror.ErrCodeStateConflict, "в заявке нет реквизитов для выплаты")
	}

	details := gateway.PayoutDetails{Account: *withdrawal.Account}
	if withdrawal.CardLast4 != nil {
		details.CardLast4 = *withdrawal.CardLast4
	}
	if withdrawal.BankName != nil {
		details.BankName = *withdrawal.BankName
	}

	transfer, err := s.gw.TransferToPayee(ctx, details, withdrawal.Amount*100)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeExternalService, "не удалось выполнить выплату")
	}

	settled, err := s.repo.SettleWithdrawal(ctx, id, models.WithdrawalStatusCompleted, &transfer.ID, nil)
	if err != nil {
		return nil, err
	}

	err = withConflictRetry(ctx, func(ctx context.Context) error {
		wallet, err := s.repo.GetOrCreate(ctx, withdrawal.UserID, s.currency)
		if err != nil {
			return err
		}
		return s.repo.UpdateAggregates(ctx, wallet, repository.WalletDeltas{
			PendingWithdrawals: -withdrawal.Amount,
			TotalWithdrawn:     withdrawal.Amount,
		})
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, withdrawal.UserID, events.WithdrawalSettled, settled)
	return settled, nil
}

// RejectWithdrawal возвращает зарезервированные средства отдельной записью.
// Доступно только операторской роли.
func (s *WalletService) RejectWithdrawal(ctx context.Context, id uuid.UUID, callerRole, reason string) (*models.Withdrawal, error) {
	if callerRole != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}

	withdrawal, err := s.repo.GetWithdrawal(ctx, id)
	if err != nil {
		return nil, err
	}
	if withdrawal.Status != models.WithdrawalStatusPending {
		return nil, apperror.ErrInvalidTransition
	}

	settled, err := s.repo.SettleWithdrawal(ctx, id, models.WithdrawalStatusRejected, nil, &reason)
	if err != nil {
		return nil, err
	}

	ref := models.TxReference{ID: id, Kind: models.RefKindWithdrawal}
	if _, err := s.apply(ctx, withdrawal.UserID, models.WalletTxRefund, withdrawal.Amount,
		"Возврат по отклонённой заявке на вывод", ref, repository.WalletDeltas{
			Balance:            withdrawal.Amount,
			PendingWithdrawals: -withdrawal.Amount,
		}); err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, withdrawal.UserID, events.WithdrawalSettled, settled)
	return settled, nil
}

// ListWithdrawals возвращает заявки пользователя.
func (s *WalletService) ListWithdrawals(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Withdrawal, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListWithdrawals(ctx, userID, limit, offset)
}

// apply выполняет одну операцию журнала с повторами по конфликту версий и
// самопроверкой снимка баланса.
func (s *WalletService) apply(ctx context.Context, userID uuid.UUID, txType string, amount int64, description string, ref models.TxReference, deltas repository.WalletDeltas) (*models.WalletTransaction, error) {
	if amount <= 0 {
		return nil, apperror.ErrInvalidAmount
	}

	var txn *models.WalletTransaction

	err := withConflictRetry(ctx, func(ctx context.Context) error {
		wallet, err := s.repo.GetOrCreate(ctx, userID, s.currency)
		if err != nil {
			return err
		}
		if wallet.IsBlocked {
			return apperror.ErrWalletBlocked
		}
		if wallet.Balance+deltas.Balance < 0 {
			return apperror.ErrInsufficientBalance
		}

		txn = &models.WalletTransaction{
			UserID:      userID,
			Type:        txType,
			Amount:      amount,
			Description: description,
		}
		if ref.ID != uuid.Nil {
			refID := ref.ID
			refKind := ref.Kind
			txn.ReferenceID = &refID
			txn.ReferenceKind = &refKind
		}

		if err := s.repo.Apply(ctx, wallet, txn, deltas); err != nil {
			return err
		}

		// Самопроверка против расхождения баланса и журнала.
		if txn.BalanceAfter != wallet.Balance+deltas.Balance {
			return apperror.New(apperror.ErrCodeInternal, "снимок баланса не совпал с пересчётом")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// RoundShare возвращает долю от суммы, округлённую до целого рубля.
func RoundShare(amount int64, rate float64) int64 {
	return int64(math.Round(float64(amount) * rate))
}
