package dto

// StartConversationRequest opens a negotiation conversation with a freelancer
type StartConversationRequest struct {
	FreelancerID string  `json:"freelancer_id" binding:"required,uuid"`
	GigID        *string `json:"gig_id,omitempty" binding:"omitempty,uuid"`
}

// ProposeRequest submits a price proposal in a conversation
type ProposeRequest struct {
	Price    int64   `json:"price" binding:"required,gt=0"`
	Timeline *string `json:"timeline,omitempty"`
	Terms    *string `json:"terms,omitempty"`
}

// InitiatePaymentRequest starts an escrow payment for a conversation
type InitiatePaymentRequest struct {
	ConversationID string `json:"conversation_id" binding:"required,uuid"`
	Amount         *int64 `json:"amount,omitempty" binding:"omitempty,gt=0"`
}

// CaptureWebhookRequest is the gateway's notification payload; the signature
// authenticates both capture and failure notifications
type CaptureWebhookRequest struct {
	OrderID    string `json:"order_id" binding:"required"`
	PaymentRef string `json:"payment_ref"`
	Signature  string `json:"signature" binding:"required"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
}

// RefundRequest reverses a completed payment
type RefundRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ReleaseRequest pays out a completed payment to the payee bank account
type ReleaseRequest struct {
	Account   string `json:"account" binding:"required"`
	CardLast4 string `json:"card_last4,omitempty"`
	BankName  string `json:"bank_name,omitempty"`
}

// CreateWithdrawalRequest reserves wallet funds for a payout; payout details
// are captured here and reused when an operator settles the withdrawal
type CreateWithdrawalRequest struct {
	Amount    int64  `json:"amount" binding:"required,gt=0"`
	Account   string `json:"account" binding:"required"`
	CardLast4 string `json:"card_last4,omitempty"`
	BankName  string `json:"bank_name,omitempty"`
}

// RejectWithdrawalRequest declines a pending withdrawal with a reason
type RejectWithdrawalRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// CreateGigRequest publishes a new gig
type CreateGigRequest struct {
	Title             string `json:"title" binding:"required"`
	Description       string `json:"description"`
	Budget            *int64 `json:"budget,omitempty" binding:"omitempty,gt=0"`
	IterationsAllowed int    `json:"iterations_allowed" binding:"required,gt=0"`
}

// ApplyRequest submits a freelancer application to a gig
type ApplyRequest struct {
	ProposedRate int64 `json:"proposed_rate" binding:"required,gt=0"`
}
