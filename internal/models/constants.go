package models

// ConversationStatus константы статусов бесед
const (
	ConversationStatusActive            = "active"
	ConversationStatusPaymentPending    = "payment_pending"
	ConversationStatusPaymentProcessing = "payment_processing"
	ConversationStatusCompleted         = "completed"
	ConversationStatusClosed            = "closed"
)

// NegotiationStatus константы статусов предложений по цене
const (
	NegotiationStatusPending    = "pending"
	NegotiationStatusAccepted   = "accepted"
	NegotiationStatusRejected   = "rejected"
	NegotiationStatusSuperseded = "superseded"
)

// Роли участников беседы; admin — операторская роль платформы,
// в беседах не участвует.
const (
	RoleClient     = "client"
	RoleFreelancer = "freelancer"
	RoleAdmin      = "admin"
)

// PaymentStatus константы статусов платежей
const (
	PaymentStatusPending    = "pending"
	PaymentStatusProcessing = "processing"
	PaymentStatusCompleted  = "completed"
	PaymentStatusFailed     = "failed"
	PaymentStatusRefunded   = "refunded"
)

// PaymentType константы типов платежей
const (
	PaymentTypeSubscription = "subscription"
	PaymentTypeGigPayment   = "gig_payment"
	PaymentTypeGigEscrow    = "gig_escrow"
	PaymentTypeMilestone    = "milestone_payment"
	PaymentTypeRefund       = "refund"
	PaymentTypeCommission   = "commission"
	PaymentTypePenalty      = "penalty"
	PaymentTypeWithdrawal   = "withdrawal"
)

// WalletTransactionType константы типов операций по кошельку
const (
	WalletTxCredit             = "credit"
	WalletTxDebit              = "debit"
	WalletTxRefund             = "refund"
	WalletTxWithdrawal         = "withdrawal"
	WalletTxPenalty            = "penalty"
	WalletTxBonus              = "bonus"
	WalletTxCommissionEarned   = "commission_earned"
	WalletTxCommissionDeducted = "commission_deducted"
)

// WithdrawalStatus константы статусов заявок на вывод
const (
	WithdrawalStatusPending   = "pending"
	WithdrawalStatusCompleted = "completed"
	WithdrawalStatusRejected  = "rejected"
)

// ApplicationStatus константы статусов откликов на задания
const (
	ApplicationStatusPending  = "pending"
	ApplicationStatusAccepted = "accepted"
	ApplicationStatusRejected = "rejected"
)

// ProjectStatus константы статусов работы по принятому отклику
const (
	ProjectStatusNotStarted = "not_started"
	ProjectStatusInProgress = "in_progress"
	ProjectStatusDelivered  = "delivered"
	ProjectStatusCompleted  = "completed"
)

// WalletTxSign задаёт знак каждого типа операции: сумма хранится как модуль,
// знак определяется типом.
var WalletTxSign = map[string]int64{
	WalletTxCredit:             +1,
	WalletTxDebit:              -1,
	WalletTxRefund:             +1,
	WalletTxWithdrawal:         -1,
	WalletTxPenalty:            -1,
	WalletTxBonus:              +1,
	WalletTxCommissionEarned:   +1,
	WalletTxCommissionDeducted: -1,
}

// ValidPaymentTransitions описывает допустимые переходы статусов платежа.
// Любой переход вне этой карты отклоняется.
var ValidPaymentTransitions = map[string][]string{
	PaymentStatusPending:    {PaymentStatusProcessing, PaymentStatusFailed, PaymentStatusRefunded},
	PaymentStatusProcessing: {PaymentStatusCompleted, PaymentStatusFailed, PaymentStatusRefunded},
	PaymentStatusCompleted:  {PaymentStatusRefunded},
}

// IsValidPaymentTransition проверяет допустимость перехода статусов платежа.
func IsValidPaymentTransition(from, to string) bool {
	for _, next := range ValidPaymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminalConversationStatus сообщает, закрыта ли беседа для переговоров.
func IsTerminalConversationStatus(status string) bool {
	return status == ConversationStatusCompleted || status == ConversationStatusClosed
}
