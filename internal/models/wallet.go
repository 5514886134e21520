package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet — внутренний кошелёк пользователя. Баланс в целых рублях и в любой
// момент равен сумме подписанных операций; это проверяется на каждой записи.
type Wallet struct {
	UserID             uuid.UUID `db:"user_id" json:"user_id"`
	Balance            int64     `db:"balance" json:"balance"`
	Currency           string    `db:"currency" json:"currency"`
	PendingWithdrawals int64     `db:"pending_withdrawals" json:"pending_withdrawals"`
	TotalEarned        int64     `db:"total_earned" json:"total_earned"`
	TotalWithdrawn     int64     `db:"total_withdrawn" json:"total_withdrawn"`
	IsBlocked          bool      `db:"is_blocked" json:"is_blocked"`
	Version            int64     `db:"version" json:"-"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}

// WalletTransaction — одна запись журнала кошелька. Журнал append-only:
// записи не редактируются и не удаляются, возвраты — новые записи.
type WalletTransaction struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	UserID        uuid.UUID  `db:"user_id" json:"user_id"`
	Type          string     `db:"type" json:"type"`
	Amount        int64      `db:"amount" json:"amount"`
	Description   string     `db:"description" json:"description"`
	ReferenceID   *uuid.UUID `db:"reference_id" json:"reference_id,omitempty"`
	ReferenceKind *string    `db:"reference_kind" json:"reference_kind,omitempty"`
	BalanceAfter  int64      `db:"balance_after" json:"balance_after"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
}

// SignedAmount возвращает сумму операции со знаком её типа.
func (t *WalletTransaction) SignedAmount() int64 {
	return WalletTxSign[t.Type] * t.Amount
}

// TxReference указывает на сущность, породившую операцию по кошельку.
type TxReference struct {
	ID   uuid.UUID
	Kind string
}

// Виды ссылок операций по кошельку.
const (
	RefKindPayment    = "payment"
	RefKindWithdrawal = "withdrawal"
	RefKindGig        = "gig"
)

// Withdrawal — заявка на вывод средств. Средства списываются с баланса при
// создании заявки и возвращаются отдельной записью при отклонении.
type Withdrawal struct {
	ID              uuid.UUID  `db:"id" json:"id"`
	UserID          uuid.UUID  `db:"user_id" json:"user_id"`
	Amount          int64      `db:"amount" json:"amount"`
	Status          string     `db:"status" json:"status"`
	Account         *string    `db:"account" json:"account,omitempty"`
	CardLast4       *string    `db:"card_last4" json:"card_last4,omitempty"`
	BankName        *string    `db:"bank_name" json:"bank_name,omitempty"`
	TransferID      *string    `db:"transfer_id" json:"transfer_id,omitempty"`
	RejectionReason *string    `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time  `db:"created_at" json:"created_at"`
	ProcessedAt     *time.Time `db:"processed_at" json:"processed_at,omitempty"`
}
