package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/pmorev/giglance-backend/internal/events"
	"github.com/pmorev/giglance-backend/internal/models"
	"github.com/pmorev/giglance-backend/internal/pkg/apperror"
)

// ConversationStore описывает взаимодействие движка переговоров с хранилищем.
type ConversationStore interface {
	Create(ctx context.Context, conv *models.Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Conversation, error)
	CurrentNegotiation(ctx context.Context, conversationID uuid.UUID) (*models.Negotiation, error)
	ListNegotiations(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]models.Negotiation, error)
	Propose(ctx context.Context, conv *models.Conversation, negotiation *models.Negotiation, newStatus string) error
	SetNegotiationStatus(ctx context.Context, conv *models.Conversation, negotiationID uuid.UUID, fromStatus, toStatus, convStatus string) error
	ExpireStale(ctx context.Context, olderThan time.Time) (int64, error)
}

// NegotiationService — машина состояний переговоров о цене внутри беседы.
// Инвариант: у беседы не более одного предложения в статусе pending или
// accepted; новое предложение вытесняет прежнее в superseded.
type NegotiationService struct {
	repo      ConversationStore
	publisher events.Publisher
}

// NewNegotiationService создаёт движок переговоров.
func NewNegotiationService(repo ConversationStore, publisher events.Publisher) *NegotiationService {
	return &NegotiationService{repo: repo, publisher: publisher}
}

// Start создаёт беседу между клиентом и фрилансером.
func (s *NegotiationService) Start(ctx context.Context, clientID, freelancerID uuid.UUID, gigID *uuid.UUID) (*models.Conversation, error) {
	if clientID == freelancerID {
		return nil, apperror.New(apperror.ErrCodeValidation, "участники беседы должны различаться")
	}

	conv := &models.Conversation{
		GigID:        gigID,
		ClientID:     clientID,
		FreelancerID: freelancerID,
		Status:       models.ConversationStatusActive,
	}
	if err := s.repo.Create(ctx, conv); err != nil {
		return nil, err
	}
	return conv, nil
}

// Propose создаёт новое предложение цены. Прежнее активное предложение
// помечается superseded, беседа возвращается в active, если не закрыта.
func (s *NegotiationService) Propose(ctx context.Context, conversationID, proposerID uuid.UUID, price int64, timeline, terms *string) (*models.Negotiation, error) {
	if price <= 0 {
		return nil, apperror.ErrInvalidAmount
	}

	var negotiation *models.Negotiation
	var otherParty uuid.UUID

	err := withConflictRetry(ctx, func(ctx context.Context) error {
		conv, err := s.repo.GetByID(ctx, conversationID)
		if err != nil {
			return err
		}

		role := conv.ParticipantRole(proposerID)
		if role == "" {
			return apperror.ErrNotAParticipant
		}
		if models.IsTerminalConversationStatus(conv.Status) {
			return apperror.New(apperror.ErrCodeStateConflict, "беседа завершена, переговоры невозможны")
		}

		negotiation = &models.Negotiation{
			ProposedBy: role,
			Price:      price,
			Timeline:   timeline,
			Terms:      terms,
		}
		otherParty = otherParticipant(conv, proposerID)

		return s.repo.Propose(ctx, conv, negotiation, models.ConversationStatusActive)
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, otherParty, events.NegotiationProposed, negotiation)
	return negotiation, nil
}

// Accept принимает текущее pending-предложение. Принять может только вторая
// сторона: своё предложение принять нельзя. Беседа переходит в payment_pending.
func (s *NegotiationService) Accept(ctx context.Context, conversationID, accepterID uuid.UUID) (*models.Negotiation, error) {
	var negotiation *models.Negotiation
	var proposer uuid.UUID

	err := withConflictRetry(ctx, func(ctx context.Context) error {
		conv, err := s.repo.GetByID(ctx, conversationID)
		if err != nil {
			return err
		}

		role := conv.ParticipantRole(accepterID)
		if role == "" {
			return apperror.ErrNotAParticipant
		}

		negotiation, err = s.currentPending(ctx, conversationID)
		if err != nil {
			return err
		}
		if negotiation.ProposedBy == role {
			return apperror.ErrSelfAcceptance
		}

		proposer = conv.ParticipantByRole(negotiation.ProposedBy)

		if err := s.repo.SetNegotiationStatus(ctx, conv, negotiation.ID,
			models.NegotiationStatusPending, models.NegotiationStatusAccepted,
			models.ConversationStatusPaymentPending); err != nil {
			return err
		}
		negotiation.Status = models.NegotiationStatusAccepted
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, proposer, events.NegotiationAccepted, negotiation)
	return negotiation, nil
}

// Reject отклоняет текущее pending-предложение, беседа остаётся active.
func (s *NegotiationService) Reject(ctx context.Context, conversationID, rejecterID uuid.UUID) (*models.Negotiation, error) {
	var negotiation *models.Negotiation
	var proposer uuid.UUID

	err := withConflictRetry(ctx, func(ctx context.Context) error {
		conv, err := s.repo.GetByID(ctx, conversationID)
		if err != nil {
			return err
		}

		if conv.ParticipantRole(rejecterID) == "" {
			return apperror.ErrNotAParticipant
		}

		negotiation, err = s.currentPending(ctx, conversationID)
		if err != nil {
			return err
		}

		proposer = conv.ParticipantByRole(negotiation.ProposedBy)

		if err := s.repo.SetNegotiationStatus(ctx, conv, negotiation.ID,
			models.NegotiationStatusPending, models.NegotiationStatusRejected,
			models.ConversationStatusActive); err != nil {
			return err
		}
		negotiation.Status = models.NegotiationStatusRejected
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, proposer, events.NegotiationRejected, negotiation)
	return negotiation, nil
}

// Get возвращает беседу с текущим предложением, доступна только участникам.
func (s *NegotiationService) Get(ctx context.Context, conversationID, userID uuid.UUID) (*models.Conversation, error) {
	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.ParticipantRole(userID) == "" {
		return nil, apperror.ErrNotAParticipant
	}

	current, err := s.repo.CurrentNegotiation(ctx, conversationID)
	if err != nil && !apperror.IsNotFound(err) {
		return nil, err
	}
	conv.CurrentNegotiation = current
	return conv, nil
}

// ListMy возвращает беседы пользователя.
func (s *NegotiationService) ListMy(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Conversation, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByUser(ctx, userID, limit, offset)
}

// History возвращает историю предложений беседы, доступна только участникам.
func (s *NegotiationService) History(ctx context.Context, conversationID, userID uuid.UUID, limit, offset int) ([]models.Negotiation, error) {
	conv, err := s.repo.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.ParticipantRole(userID) == "" {
		return nil, apperror.ErrNotAParticipant
	}

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListNegotiations(ctx, conversationID, limit, offset)
}

// ExpireStale помечает superseded зависшие pending-предложения старше ttl.
func (s *NegotiationService) ExpireStale(ctx context.Context, ttl time.Duration) (int64, error) {
	return s.repo.ExpireStale(ctx, time.Now().Add(-ttl))
}

// currentPending возвращает текущее предложение, требуя статус pending.
func (s *NegotiationService) currentPending(ctx context.Context, conversationID uuid.UUID) (*models.Negotiation, error) {
	negotiation, err := s.repo.CurrentNegotiation(ctx, conversationID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.ErrNoActiveNegotiation
		}
		return nil, err
	}
	if negotiation.Status != models.NegotiationStatusPending {
		return nil, apperror.ErrNoActiveNegotiation
	}
	return negotiation, nil
}

// otherParticipant возвращает второго участника беседы.
func otherParticipant(conv *models.Conversation, userID uuid.UUID) uuid.UUID {
	if conv.ClientID == userID {
		return conv.FreelancerID
	}
	return conv.ClientID
}
