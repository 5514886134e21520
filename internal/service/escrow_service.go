package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/pmorev/giglance-backend/internal/events"
	"github.com/pmorev/giglance-backend/internal/gateway"
	"github.com/pmorev/giglance-backend/internal/models"
	"github.com/pmorev/giglance-backend/internal/pkg/apperror"
)

// PaymentStore описывает взаимодействие эскроу-сервиса с хранилищем платежей.
type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetByGatewayOrderID(ctx context.Context, orderID string) (*models.Payment, error)
	ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]models.Payment, error)
	HasInFlight(ctx context.Context, conversationID uuid.UUID) (bool, error)
	TransitionStatus(ctx context.Context, paymentID uuid.UUID, from, to string, note string) error
	SetPaymentRef(ctx context.Context, paymentID uuid.UUID, paymentRef string) error
	SetTransfer(ctx context.Context, paymentID uuid.UUID, transferID, transferMode string) error
	StatusHistory(ctx context.Context, paymentID uuid.UUID) ([]models.PaymentStatusEntry, error)
}

// ConversationAccess — срез хранилища бесед, нужный эскроу.
type ConversationAccess interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	CurrentNegotiation(ctx context.Context, conversationID uuid.UUID) (*models.Negotiation, error)
	UpdateStatus(ctx context.Context, conversationID uuid.UUID, version int64, status string) error
}

// EscrowWallet — операции по кошелькам, которые выполняет эскроу.
type EscrowWallet interface {
	RecordCommission(ctx context.Context, payerID, payeeID uuid.UUID, grossAmount int64, commissionRate float64, ref models.TxReference) (int64, error)
	Debit(ctx context.Context, userID uuid.UUID, amount int64, description string, ref models.TxReference) (*models.WalletTransaction, error)
	Refund(ctx context.Context, userID uuid.UUID, amount int64, description string, ref models.TxReference) (*models.WalletTransaction, error)
	HasCredit(ctx context.Context, userID uuid.UUID, ref models.TxReference) (bool, error)
}

// EscrowService проводит платёж от согласованной цены до зачисления на
// кошелёк исполнителя. Деньги двигаются только через записи журнала,
// статусы платежа — только по карте допустимых переходов.
type EscrowService struct {
	payments       PaymentStore
	conversations  ConversationAccess
	wallet         EscrowWallet
	gw             gateway.Gateway
	publisher      events.Publisher
	currency       string
	feeRate        float64
	commissionRate float64
}

// NewEscrowService создаёт эскроу-сервис.
func NewEscrowService(payments PaymentStore, conversations ConversationAccess, wallet EscrowWallet, gw gateway.Gateway, publisher events.Publisher, currency string, feeRate, commissionRate float64) *EscrowService {
	return &EscrowService{
		payments:       payments,
		conversations:  conversations,
		wallet:         wallet,
		gw:             gw,
		publisher:      publisher,
		currency:       currency,
		feeRate:        feeRate,
		commissionRate: commissionRate,
	}
}

// Currency возвращает валюту, в которой проводятся платежи.
func (s *EscrowService) Currency() string {
	return s.currency
}

// Initiate запускает платёж по беседе: берёт согласованную цену (или явную
// сумму), считает сбор площадки, создаёт заказ в шлюзе и переводит беседу в
// payment_processing. Пока по беседе висит незавершённый платёж, новый не
// создаётся.
func (s *EscrowService) Initiate(ctx context.Context, conversationID, payerID uuid.UUID, amountOverride *int64) (*models.Payment, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.ClientID != payerID {
		return nil, apperror.ErrNotAParticipant
	}
	if conv.Status != models.ConversationStatusPaymentPending {
		return nil, apperror.Wrap(apperror.ErrInvalidTransition, apperror.ErrCodeStateConflict,
			fmt.Sprintf("беседа в статусе %s, оплата недоступна", conv.Status))
	}

	amount, negotiation, err := s.resolveAmount(ctx, conv, amountOverride)
	if err != nil {
		return nil, err
	}

	inFlight, err := s.payments.HasInFlight(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if inFlight {
		return nil, apperror.ErrPaymentInFlight
	}

	fee := RoundShare(amount, s.feeRate)
	total := amount + fee
	receipt := fmt.Sprintf("escrow_%s", uuid.New().String())

	notes := map[string]string{
		"conversation_id": conversationID.String(),
		"payer_id":        payerID.String(),
	}
	if negotiation != nil {
		notes["negotiation_id"] = negotiation.ID.String()
	}

	// Суммы на границе шлюза в копейках.
	order, err := s.gw.CreateOrder(ctx, total*100, s.currency, receipt, notes)
	if err != nil {
		// Беседа остаётся в payment_pending, оплату можно запустить повторно.
		return nil, apperror.Wrap(err, apperror.ErrCodeExternalService, "платёжный шлюз недоступен")
	}

	payment := &models.Payment{
		ConversationID: &conv.ID,
		GigID:          conv.GigID,
		PayerID:        conv.ClientID,
		PayeeID:        conv.FreelancerID,
		Type:           models.PaymentTypeGigEscrow,
		Status:         models.PaymentStatusPending,
		Amount:         amount,
		PlatformFee:    fee,
		TotalPayable:   total,
		Commission:     RoundShare(amount, s.commissionRate),
		Currency:       s.currency,
		GatewayOrderID: &order.ID,
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, err
	}

	err = withConflictRetry(ctx, func(ctx context.Context) error {
		fresh, err := s.conversations.GetByID(ctx, conversationID)
		if err != nil {
			return err
		}
		return s.conversations.UpdateStatus(ctx, conversationID, fresh.Version, models.ConversationStatusPaymentProcessing)
	})
	if err != nil {
		return nil, err
	}

	payload := paymentInitiatedPayload{
		Payment: payment,
		Context: models.PaymentContext{
			AgreedAmount:   amount,
			PlatformFee:    fee,
			TotalPayable:   total,
			GatewayOrderID: order.ID,
			Receipt:        receipt,
			FeeRate:        s.feeRate,
		},
	}
	if negotiation != nil {
		payload.Negotiation = &models.NegotiationSnapshot{
			NegotiationID: negotiation.ID,
			AgreedAmount:  amount,
			PlatformFee:   fee,
			TotalPayable:  total,
			Timeline:      negotiation.Timeline,
			Terms:         negotiation.Terms,
		}
	}
	s.publisher.Publish(ctx, conv.FreelancerID, events.PaymentInitiated, payload)
	return payment, nil
}

// paymentInitiatedPayload — тело события о запуске платежа: сам платёж,
// расчёт сумм и снимок согласованных условий.
type paymentInitiatedPayload struct {
	Payment     *models.Payment             `json:"payment"`
	Context     models.PaymentContext       `json:"context"`
	Negotiation *models.NegotiationSnapshot `json:"negotiation,omitempty"`
}

// Quote возвращает расчёт сумм будущего платежа без обращения к шлюзу.
func (s *EscrowService) Quote(ctx context.Context, conversationID, userID uuid.UUID) (*models.PaymentContext, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.ParticipantRole(userID) == "" {
		return nil, apperror.ErrNotAParticipant
	}

	amount, _, err := s.resolveAmount(ctx, conv, nil)
	if err != nil {
		return nil, err
	}
	fee := RoundShare(amount, s.feeRate)
	return &models.PaymentContext{
		AgreedAmount: amount,
		PlatformFee:  fee,
		TotalPayable: amount + fee,
		FeeRate:      s.feeRate,
	}, nil
}

// ConfirmCapture обрабатывает уведомление шлюза об успешном списании.
// Подпись проверяется до любых изменений; повторное уведомление по уже
// завершённому платежу — no-op.
func (s *EscrowService) ConfirmCapture(ctx context.Context, orderID, paymentRef, signature string) (*models.Payment, error) {
	payment, err := s.payments.GetByGatewayOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !s.gw.VerifyCapture(orderID, paymentRef, signature) {
		logrus.WithFields(logrus.Fields{
			"order_id":   orderID,
			"payment_id": payment.ID,
		}).Warn("подпись уведомления шлюза не прошла проверку")
		return nil, apperror.ErrInvalidSignature
	}

	switch payment.Status {
	case models.PaymentStatusCompleted:
		return payment, nil
	case models.PaymentStatusPending:
		if err := s.payments.SetPaymentRef(ctx, payment.ID, paymentRef); err != nil {
			return nil, err
		}
		if err := s.payments.TransitionStatus(ctx, payment.ID, models.PaymentStatusPending,
			models.PaymentStatusProcessing, "списание подтверждено шлюзом"); err != nil {
			return nil, err
		}
	case models.PaymentStatusProcessing:
		// Повторная доставка после сбоя между переходом и зачислением:
		// продолжаем с места падения.
	default:
		return nil, apperror.Wrap(apperror.ErrInvalidTransition, apperror.ErrCodeStateConflict,
			fmt.Sprintf("платёж в статусе %s, подтверждение невозможно", payment.Status))
	}

	ref := models.TxReference{ID: payment.ID, Kind: models.RefKindPayment}
	credited, err := s.wallet.HasCredit(ctx, payment.PayeeID, ref)
	if err != nil {
		return nil, err
	}

	net := payment.Amount - RoundShare(payment.Amount, s.commissionRate)
	if !credited {
		net, err = s.wallet.RecordCommission(ctx, payment.PayerID, payment.PayeeID, payment.Amount, s.commissionRate, ref)
		if err != nil {
			return nil, err
		}
	}

	if err := s.payments.TransitionStatus(ctx, payment.ID, models.PaymentStatusProcessing,
		models.PaymentStatusCompleted, fmt.Sprintf("исполнителю зачислено %d %s", net, s.currency)); err != nil {
		return nil, err
	}

	if payment.ConversationID != nil {
		if err := s.setConversationStatus(ctx, *payment.ConversationID, models.ConversationStatusCompleted); err != nil {
			return nil, err
		}
	}

	payment, err = s.payments.GetByID(ctx, payment.ID)
	if err != nil {
		return nil, err
	}

	s.publisher.Publish(ctx, payment.PayeeID, events.PaymentCompleted, payment)
	s.publisher.Publish(ctx, payment.PayerID, events.PaymentCompleted, payment)
	return payment, nil
}

// MarkFailed фиксирует неуспех платежа. Подпись проверяется так же, как при
// подтверждении: поддельное уведомление не должно ронять платёж. Беседа
// возвращается в payment_pending, оплату можно запустить заново.
func (s *EscrowService) MarkFailed(ctx context.Context, orderID, paymentRef, signature, reason string) (*models.Payment, error) {
	payment, err := s.payments.GetByGatewayOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !s.gw.VerifyCapture(orderID, paymentRef, signature) {
		logrus.WithFields(logrus.Fields{
			"order_id":   orderID,
			"payment_id": payment.ID,
		}).Warn("подпись уведомления о неуспехе не прошла проверку")
		return nil, apperror.ErrInvalidSignature
	}

	if err := s.payments.TransitionStatus(ctx, payment.ID, payment.Status,
		models.PaymentStatusFailed, reason); err != nil {
		return nil, err
	}

	if payment.ConversationID != nil {
		if err := s.setConversationStatus(ctx, *payment.ConversationID, models.ConversationStatusPaymentPending); err != nil {
			return nil, err
		}
	}

	payment.Status = models.PaymentStatusFailed
	s.publisher.Publish(ctx, payment.PayerID, events.PaymentFailed, payment)
	return payment, nil
}

// Refund разворачивает завершённый платёж: с исполнителя снимается
// зачисленное, плательщику зачисляется возврат. Комиссия платформы не
// сторнируется, исходные записи журнала не трогаются. Запросить возврат
// может плательщик или оператор платформы.
func (s *EscrowService) Refund(ctx context.Context, paymentID, callerID uuid.UUID, callerRole, reason string) (*models.Payment, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.PayerID != callerID && callerRole != models.RoleAdmin {
		return nil, apperror.ErrForbidden
	}
	if payment.Status != models.PaymentStatusCompleted {
		return nil, apperror.Wrap(apperror.ErrInvalidTransition, apperror.ErrCodeStateConflict,
			"возврат возможен только по завершённому платежу")
	}

	commission := RoundShare(payment.Amount, s.commissionRate)
	net := payment.Amount - commission
	ref := models.TxReference{ID: payment.ID, Kind: models.RefKindPayment}

	if _, err := s.wallet.Debit(ctx, payment.PayeeID, net,
		fmt.Sprintf("Возврат по платежу: %s", reason), ref); err != nil {
		return nil, err
	}
	if _, err := s.wallet.Refund(ctx, payment.PayerID, payment.Amount,
		fmt.Sprintf("Возврат средств: %s", reason), ref); err != nil {
		return nil, err
	}

	if err := s.payments.TransitionStatus(ctx, payment.ID, models.PaymentStatusCompleted,
		models.PaymentStatusRefunded, reason); err != nil {
		return nil, err
	}

	payment.Status = models.PaymentStatusRefunded
	s.publisher.Publish(ctx, payment.PayerID, events.PaymentRefunded, payment)
	s.publisher.Publish(ctx, payment.PayeeID, events.PaymentRefunded, payment)
	return payment, nil
}

// ReleaseToBank выводит зачисленные исполнителю средства сразу на его счёт,
// минуя заявку на вывод. Доступно один раз по завершённому платежу.
func (s *EscrowService) ReleaseToBank(ctx context.Context, paymentID, payeeID uuid.UUID, details gateway.PayoutDetails) (*models.Payment, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.PayeeID != payeeID {
		return nil, apperror.ErrNotAParticipant
	}
	if payment.Status != models.PaymentStatusCompleted {
		return nil, apperror.Wrap(apperror.ErrInvalidTransition, apperror.ErrCodeStateConflict,
			"выплата возможна только по завершённому платежу")
	}
	if payment.TransferID != nil {
		return nil, apperror.Wrap(apperror.ErrInvalidTransition, apperror.ErrCodeStateConflict,
			"выплата по платежу уже выполнена")
	}

	net := payment.Amount - RoundShare(payment.Amount, s.commissionRate)
	ref := models.TxReference{ID: payment.ID, Kind: models.RefKindPayment}

	if _, err := s.wallet.Debit(ctx, payeeID, net, "Выплата на банковский счёт", ref); err != nil {
		return nil, err
	}

	transfer, err := s.gw.TransferToPayee(ctx, details, net*100)
	if err != nil {
		// Списание откатываем отдельной записью, журнал append-only.
		if _, refundErr := s.wallet.Refund(ctx, payeeID, net, "Возврат несостоявшейся выплаты", ref); refundErr != nil {
			logrus.WithError(refundErr).WithField("payment_id", payment.ID).
				Error("не удалось вернуть средства после сбоя выплаты")
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeExternalService, "не удалось выполнить выплату")
	}

	if err := s.payments.SetTransfer(ctx, payment.ID, transfer.ID, transfer.Mode); err != nil {
		return nil, err
	}

	payment, err = s.payments.GetByID(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ctx, payeeID, events.PaymentReleased, payment)
	return payment, nil
}

// Get возвращает платёж с историей статусов. Доступен только участникам.
func (s *EscrowService) Get(ctx context.Context, paymentID, userID uuid.UUID) (*models.Payment, error) {
	payment, err := s.payments.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.PayerID != userID && payment.PayeeID != userID {
		return nil, apperror.ErrNotAParticipant
	}
	history, err := s.payments.StatusHistory(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	payment.StatusHistory = history
	return payment, nil
}

// ListByConversation возвращает платежи беседы, новые первыми.
func (s *EscrowService) ListByConversation(ctx context.Context, conversationID, userID uuid.UUID, limit, offset int) ([]models.Payment, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conv.ParticipantRole(userID) == "" {
		return nil, apperror.ErrNotAParticipant
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.payments.ListByConversation(ctx, conversationID, limit, offset)
}

// resolveAmount берёт сумму из явного указания или из принятого предложения.
func (s *EscrowService) resolveAmount(ctx context.Context, conv *models.Conversation, override *int64) (int64, *models.Negotiation, error) {
	if override != nil {
		if *override <= 0 {
			return 0, nil, apperror.ErrInvalidAmount
		}
		return *override, nil, nil
	}

	negotiation, err := s.conversations.CurrentNegotiation(ctx, conv.ID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return 0, nil, apperror.ErrNoAgreedAmount
		}
		return 0, nil, err
	}
	if negotiation.Status != models.NegotiationStatusAccepted {
		return 0, nil, apperror.ErrNoAgreedAmount
	}
	return negotiation.Price, negotiation, nil
}

func (s *EscrowService) setConversationStatus(ctx context.Context, conversationID uuid.UUID, status string) error {
	return withConflictRetry(ctx, func(ctx context.Context) error {
		conv, err := s.conversations.GetByID(ctx, conversationID)
		if err != nil {
			return err
		}
		return s.conversations.UpdateStatus(ctx, conversationID, conv.Version, status)
	})
}
