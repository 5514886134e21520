package gateway

import (
	"context"
)

// Order — заказ, созданный во внешнем шлюзе под итоговую сумму платежа.
type Order struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

// Transfer — выплата исполнителю на карту или счёт.
type Transfer struct {
	ID   string `json:"id"`
	Mode string `json:"mode"`
}

// PayoutDetails — реквизиты получателя выплаты.
type PayoutDetails struct {
	CardLast4 string `json:"card_last4,omitempty"`
	BankName  string `json:"bank_name,omitempty"`
	Account   string `json:"account"`
}

// Gateway описывает возможности внешнего платёжного шлюза, которыми
// пользуется ядро. Суммы на этой границе в минорных единицах (копейках).
type Gateway interface {
	CreateOrder(ctx context.Context, amountMinorUnits int64, currency, receipt string, notes map[string]string) (*Order, error)
	VerifyCapture(orderID, paymentRef, signature string) bool
	TransferToPayee(ctx context.Context, details PayoutDetails, amountMinorUnits int64) (*Transfer, error)
}
