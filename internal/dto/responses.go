package dto

import (
	"github.com/pmorev/giglance-backend/internal/models"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// SuccessResponse represents a standard success response
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Pagination represents pagination metadata
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

// ConversationResponse represents a conversation with its current negotiation
type ConversationResponse struct {
	*models.Conversation
	Negotiations []models.Negotiation `json:"negotiations,omitempty"`
}

// WalletResponse represents a wallet with a slice of recent operations
type WalletResponse struct {
	*models.Wallet
	RecentTransactions []models.WalletTransaction `json:"recent_transactions,omitempty"`
}

// PaymentQuote shows the payable breakdown before a payment is initiated
type PaymentQuote struct {
	Amount       int64  `json:"amount"`
	PlatformFee  int64  `json:"platform_fee"`
	TotalPayable int64  `json:"total_payable"`
	Currency     string `json:"currency"`
}
