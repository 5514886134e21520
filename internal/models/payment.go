package models

import (
	"time"

	"github.com/google/uuid"
)

// Payment представляет движение денег через платёжный шлюз. Статусы меняются
// только по карте ValidPaymentTransitions, каждый переход дописывает запись
// в payment_status_history.
type Payment struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	ConversationID *uuid.UUID `db:"conversation_id" json:"conversation_id,omitempty"`
	GigID          *uuid.UUID `db:"gig_id" json:"gig_id,omitempty"`
	PayerID        uuid.UUID  `db:"payer_id" json:"payer_id"`
	PayeeID        uuid.UUID  `db:"payee_id" json:"payee_id"`
	Type           string     `db:"type" json:"type"`
	Status         string     `db:"status" json:"status"`

	// Суммы в целых рублях.
	Amount       int64 `db:"amount" json:"amount"`
	PlatformFee  int64 `db:"platform_fee" json:"platform_fee"`
	TotalPayable int64 `db:"total_payable" json:"total_payable"`
	Commission   int64 `db:"commission" json:"commission"`

	Currency string `db:"currency" json:"currency"`

	// Корреляция с внешним шлюзом.
	GatewayOrderID    *string `db:"gateway_order_id" json:"gateway_order_id,omitempty"`
	GatewayPaymentRef *string `db:"gateway_payment_ref" json:"gateway_payment_ref,omitempty"`

	// Данные выплаты исполнителю.
	TransferID    *string    `db:"transfer_id" json:"transfer_id,omitempty"`
	TransferMode  *string    `db:"transfer_mode" json:"transfer_mode,omitempty"`
	TransferredAt *time.Time `db:"transferred_at" json:"transferred_at,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`

	// История статусов (загружается отдельно)
	StatusHistory []PaymentStatusEntry `json:"status_history,omitempty"`
}

// PaymentStatusEntry — одна запись истории статусов платежа. Записи
// append-only и никогда не изменяются.
type PaymentStatusEntry struct {
	ID        int64     `db:"id" json:"id"`
	PaymentID uuid.UUID `db:"payment_id" json:"payment_id"`
	Status    string    `db:"status" json:"status"`
	Note      *string   `db:"note" json:"note,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// IsInFlight сообщает, занимает ли платёж слот незавершённого по беседе.
func (p *Payment) IsInFlight() bool {
	return p.Status == PaymentStatusPending || p.Status == PaymentStatusProcessing
}

// PaymentContext фиксирует расчёт сумм при запуске платежа.
type PaymentContext struct {
	AgreedAmount   int64   `json:"agreed_amount"`
	PlatformFee    int64   `json:"platform_fee"`
	TotalPayable   int64   `json:"total_payable"`
	GatewayOrderID string  `json:"gateway_order_id"`
	Receipt        string  `json:"receipt"`
	FeeRate        float64 `json:"fee_rate"`
}
