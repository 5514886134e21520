package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation описывает диалог клиента и фрилансера, внутри которого
// идут переговоры о цене. Версия используется для оптимистичных блокировок:
// каждая мутация выполняется условно по прочитанной версии.
type Conversation struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	GigID        *uuid.UUID `db:"gig_id" json:"gig_id,omitempty"`
	ClientID     uuid.UUID  `db:"client_id" json:"client_id"`
	FreelancerID uuid.UUID  `db:"freelancer_id" json:"freelancer_id"`
	Status       string     `db:"status" json:"status"`
	Version      int64      `db:"version" json:"-"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`

	// Текущее предложение (загружается отдельно)
	CurrentNegotiation *Negotiation `json:"current_negotiation,omitempty"`
}

// ParticipantRole возвращает роль пользователя в беседе, пустую строку для постороннего.
func (c *Conversation) ParticipantRole(userID uuid.UUID) string {
	switch userID {
	case c.ClientID:
		return RoleClient
	case c.FreelancerID:
		return RoleFreelancer
	default:
		return ""
	}
}

// ParticipantByRole возвращает идентификатор участника по его роли.
func (c *Conversation) ParticipantByRole(role string) uuid.UUID {
	if role == RoleClient {
		return c.ClientID
	}
	return c.FreelancerID
}

// Negotiation описывает одно предложение цены внутри беседы. История
// предложений append-only: новое предложение помечает прежнее superseded,
// записи никогда не удаляются.
type Negotiation struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ConversationID uuid.UUID `db:"conversation_id" json:"conversation_id"`
	ProposedBy     string    `db:"proposed_by" json:"proposed_by"`
	Price          int64     `db:"price" json:"price"`
	Timeline       *string   `db:"timeline" json:"timeline,omitempty"`
	Terms          *string   `db:"terms" json:"terms,omitempty"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// IsOpen сообщает, занимает ли предложение слот активного (pending или accepted).
func (n *Negotiation) IsOpen() bool {
	return n.Status == NegotiationStatusPending || n.Status == NegotiationStatusAccepted
}

// NegotiationSnapshot фиксирует согласованные условия на момент запуска платежа.
// Явная структура вместо свободной metadata-карты.
type NegotiationSnapshot struct {
	NegotiationID uuid.UUID `json:"negotiation_id"`
	AgreedAmount  int64     `json:"agreed_amount"`
	PlatformFee   int64     `json:"platform_fee"`
	TotalPayable  int64     `json:"total_payable"`
	Timeline      *string   `json:"timeline,omitempty"`
	Terms         *string   `json:"terms,omitempty"`
}
