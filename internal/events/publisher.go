package events

import (
	"context"

	"github.com/google/uuid"

	"github.com/pmorev/giglance-backend/internal/goroutine"
	"github.com/pmorev/giglance-backend/internal/logger"
)

// Имена доменных событий ядра.
const (
	NegotiationProposed = "negotiation.proposed"
	NegotiationAccepted = "negotiation.accepted"
	NegotiationRejected = "negotiation.rejected"

	PaymentInitiated = "payment.initiated"
	PaymentCompleted = "payment.completed"
	PaymentFailed    = "payment.failed"
	PaymentRefunded  = "payment.refunded"
	PaymentReleased  = "payment.released"

	WalletCredited      = "wallet.credited"
	WalletDebited       = "wallet.debited"
	WithdrawalRequested = "withdrawal.requested"
	WithdrawalSettled   = "withdrawal.settled"

	ApplicationAccepted = "application.accepted"
	ApplicationRejected = "application.rejected"
	DeliverySubmitted   = "application.delivery_submitted"
)

// Publisher — выход ядра во внешние каналы доставки (чат, уведомления).
// Публикация fire-and-forget: сбой получателя никогда не блокирует и не
// откатывает финансовый переход.
type Publisher interface {
	Publish(ctx context.Context, userID uuid.UUID, event string, payload any)
}

// Broadcaster — то, что умеет доставить событие пользователю (ws hub).
type Broadcaster interface {
	BroadcastToUser(userID uuid.UUID, event string, data any) error
}

// HubPublisher публикует события через WebSocket hub асинхронно.
type HubPublisher struct {
	hub Broadcaster
}

// NewHubPublisher создаёт publisher поверх хаба.
func NewHubPublisher(hub Broadcaster) *HubPublisher {
	return &HubPublisher{hub: hub}
}

// Publish отправляет событие получателю, не дожидаясь результата.
func (p *HubPublisher) Publish(_ context.Context, userID uuid.UUID, event string, payload any) {
	goroutine.SafeGo(func() {
		if err := p.hub.BroadcastToUser(userID, event, payload); err != nil {
			if logger.Log != nil {
				logger.Log.Errorf("events: не удалось опубликовать %s: %v", event, err)
			}
		}
	})
}

// NopPublisher молча проглатывает события (для тестов).
type NopPublisher struct{}

// Publish ничего не делает.
func (NopPublisher) Publish(context.Context, uuid.UUID, string, any) {}
