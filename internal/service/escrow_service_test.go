package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/pmorev/giglance-backend/internal/events"
	"github.com/pmorev/giglance-backend/internal/gateway"
	"github.com/pmorev/giglance-backend/internal/models"
	"github.com/pmorev/giglance-backend/internal/pkg/apperror"
)

type mockPaymentStore struct {
	mock.Mock
}

func (m *mockPaymentStore) Create(ctx context.Context, payment *models.Payment) error {
	args := m.Called(ctx, payment)
	if args.Error(0) == nil {
		payment.ID = uuid.New()
	}
	return args.Error(0)
}

func (m *mockPaymentStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockPaymentStore) GetByGatewayOrderID(ctx context.Context, orderID string) (*models.Payment, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}

func (m *mockPaymentStore) ListByConversation(ctx context.Context, conversationID uuid.UUID, limit, offset int) ([]models.Payment, error) {
	args := m.Called(ctx, conversationID, limit, offset)
	return args.Get(0).([]models.Payment), args.Error(1)
}

func (m *mockPaymentStore) HasInFlight(ctx context.Context, conversationID uuid.UUID) (bool, error) {
	args := m.Called(ctx, conversationID)
	return args.Bool(0), args.Error(1)
}

func (m *mockPaymentStore) TransitionStatus(ctx context.Context, paymentID uuid.UUID, from, to string, note string) error {
	args := m.Called(ctx, paymentID, from, to, note)
	return args.Error(0)
}

func (m *mockPaymentStore) SetPaymentRef(ctx context.Context, paymentID uuid.UUID, paymentRef string) error {
	args := m.Called(ctx, paymentID, paymentRef)
	return args.Error(0)
}

func (m *mockPaymentStore) SetTransfer(ctx context.Context, paymentID uuid.UUID, transferID, transferMode string) error {
	args := m.Called(ctx, paymentID, transferID, transferMode)
	return args.Error(0)
}

func (m *mockPaymentStore) StatusHistory(ctx context.Context, paymentID uuid.UUID) ([]models.PaymentStatusEntry, error) {
	args := m.Called(ctx, paymentID)
	return args.Get(0).([]models.PaymentStatusEntry), args.Error(1)
}

type mockConversationAccess struct {
	mock.Mock
}

func (m *mockConversationAccess) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Conversation), args.Error(1)
}

func (m *mockConversationAccess) CurrentNegotiation(ctx context.Context, conversationID uuid.UUID) (*models.Negotiation, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Negotiation), args.Error(1)
}

func (m *mockConversationAccess) UpdateStatus(ctx context.Context, conversationID uuid.UUID, version int64, status string) error {
	args := m.Called(ctx, conversationID, version, status)
	return args.Error(0)
}

type mockEscrowWallet struct {
	mock.Mock
}

func (m *mockEscrowWallet) RecordCommission(ctx context.Context, payerID, payeeID uuid.UUID, grossAmount int64, commissionRate float64, ref models.TxReference) (int64, error) {
	args := m.Called(ctx, payerID, payeeID, grossAmount, commissionRate, ref)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockEscrowWallet) Debit(ctx context.Context, userID uuid.UUID, amount int64, description string, ref models.TxReference) (*models.WalletTransaction, error) {
	args := m.Called(ctx, userID, amount, description, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WalletTransaction), args.Error(1)
}

func (m *mockEscrowWallet) Refund(ctx context.Context, userID uuid.UUID, amount int64, description string, ref models.TxReference) (*models.WalletTransaction, error) {
	args := m.Called(ctx, userID, amount, description, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WalletTransaction), args.Error(1)
}

func (m *mockEscrowWallet) HasCredit(ctx context.Context, userID uuid.UUID, ref models.TxReference) (bool, error) {
	args := m.Called(ctx, userID, ref)
	return args.Bool(0), args.Error(1)
}

type escrowFixture struct {
	payments      *mockPaymentStore
	conversations *mockConversationAccess
	wallet        *mockEscrowWallet
	gw            *mockGateway
	svc           *EscrowService
}

func newEscrowFixture() *escrowFixture {
	f := &escrowFixture{
		payments:      new(mockPaymentStore),
		conversations: new(mockConversationAccess),
		wallet:        new(mockEscrowWallet),
		gw:            new(mockGateway),
	}
	f.svc = NewEscrowService(f.payments, f.conversations, f.wallet, f.gw, events.NopPublisher{}, "RUB", 0.05, 0.05)
	return f
}

func paymentPendingConversation(clientID, freelancerID uuid.UUID) *models.Conversation {
	return &models.Conversation{
		ID:           uuid.New(),
		ClientID:     clientID,
		FreelancerID: freelancerID,
		Status:       models.ConversationStatusPaymentPending,
		Version:      3,
	}
}

func TestEscrowService_Initiate_FeeMath(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	clientID := uuid.New()
	conv := paymentPendingConversation(clientID, uuid.New())

	f.conversations.On("GetByID", ctx, conv.ID).Return(conv, nil)
	f.conversations.On("CurrentNegotiation", ctx, conv.ID).Return(&models.Negotiation{
		ID:     uuid.New(),
		Price:  4500,
		Status: models.NegotiationStatusAccepted,
	}, nil)
	f.payments.On("HasInFlight", ctx, conv.ID).Return(false, nil)
	// 4500 + сбор 225 = 4725 рублей, шлюзу уходит в копейках.
	f.gw.On("CreateOrder", ctx, int64(472500), "RUB", mock.Anything, mock.Anything).
		Return(&gateway.Order{ID: "order_1"}, nil)
	f.payments.On("Create", ctx, mock.AnythingOfType("*models.Payment")).Return(nil)
	f.conversations.On("UpdateStatus", ctx, conv.ID, conv.Version, models.ConversationStatusPaymentProcessing).Return(nil)

	payment, err := f.svc.Initiate(ctx, conv.ID, clientID, nil)
	assert.NoError(t, err)
	assert.Equal(t, int64(4500), payment.Amount)
	assert.Equal(t, int64(225), payment.PlatformFee)
	assert.Equal(t, int64(4725), payment.TotalPayable)
	assert.Equal(t, int64(225), payment.Commission)
	assert.Equal(t, models.PaymentStatusPending, payment.Status)
	f.payments.AssertExpectations(t)
	f.gw.AssertExpectations(t)
}

func TestEscrowService_Initiate_NotThePayer(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	conv := paymentPendingConversation(uuid.New(), uuid.New())

	f.conversations.On("GetByID", ctx, conv.ID).Return(conv, nil)

	_, err := f.svc.Initiate(ctx, conv.ID, conv.FreelancerID, nil)
	assert.ErrorIs(t, err, apperror.ErrNotAParticipant)
}

func TestEscrowService_Initiate_WrongConversationStatus(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	clientID := uuid.New()
	conv := paymentPendingConversation(clientID, uuid.New())
	conv.Status = models.ConversationStatusActive

	f.conversations.On("GetByID", ctx, conv.ID).Return(conv, nil)

	_, err := f.svc.Initiate(ctx, conv.ID, clientID, nil)
	assert.Error(t, err)
	assert.True(t, apperror.IsStateConflict(err))
}

func TestEscrowService_Initiate_NoAgreedAmount(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	clientID := uuid.New()
	conv := paymentPendingConversation(clientID, uuid.New())

	f.conversations.On("GetByID", ctx, conv.ID).Return(conv, nil)
	f.conversations.On("CurrentNegotiation", ctx, conv.ID).Return(nil, apperror.ErrNegotiationNotFound)

	_, err := f.svc.Initiate(ctx, conv.ID, clientID, nil)
	assert.ErrorIs(t, err, apperror.ErrNoAgreedAmount)
}

func TestEscrowService_Initiate_PaymentAlreadyInFlight(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	clientID := uuid.New()
	conv := paymentPendingConversation(clientID, uuid.New())
	amount := int64(1000)

	f.conversations.On("GetByID", ctx, conv.ID).Return(conv, nil)
	f.payments.On("HasInFlight", ctx, conv.ID).Return(true, nil)

	_, err := f.svc.Initiate(ctx, conv.ID, clientID, &amount)
	assert.ErrorIs(t, err, apperror.ErrPaymentInFlight)
	f.gw.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEscrowService_Initiate_RaceCaughtByStore(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	clientID := uuid.New()
	conv := paymentPendingConversation(clientID, uuid.New())
	amount := int64(1000)

	// Два запуска прошли проверку незавершённого платежа одновременно:
	// второго останавливает хранилище при вставке.
	f.conversations.On("GetByID", ctx, conv.ID).Return(conv, nil)
	f.payments.On("HasInFlight", ctx, conv.ID).Return(false, nil)
	f.gw.On("CreateOrder", ctx, int64(105000), "RUB", mock.Anything, mock.Anything).
		Return(&gateway.Order{ID: "order_2"}, nil)
	f.payments.On("Create", ctx, mock.AnythingOfType("*models.Payment")).
		Return(apperror.ErrPaymentInFlight)

	_, err := f.svc.Initiate(ctx, conv.ID, clientID, &amount)
	assert.ErrorIs(t, err, apperror.ErrPaymentInFlight)
	f.conversations.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEscrowService_Initiate_GatewayDown(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	clientID := uuid.New()
	conv := paymentPendingConversation(clientID, uuid.New())
	amount := int64(1000)

	f.conversations.On("GetByID", ctx, conv.ID).Return(conv, nil)
	f.payments.On("HasInFlight", ctx, conv.ID).Return(false, nil)
	f.gw.On("CreateOrder", ctx, int64(105000), "RUB", mock.Anything, mock.Anything).
		Return(nil, errors.New("connection refused"))

	_, err := f.svc.Initiate(ctx, conv.ID, clientID, &amount)
	assert.Error(t, err)
	assert.Equal(t, apperror.ErrCodeExternalService, apperror.CodeOf(err))
	// Платёж не создаётся, беседа не трогается.
	f.payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	f.conversations.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEscrowService_Quote_FeeBreakdown(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	clientID := uuid.New()
	conv := paymentPendingConversation(clientID, uuid.New())

	f.conversations.On("GetByID", ctx, conv.ID).Return(conv, nil)
	f.conversations.On("CurrentNegotiation", ctx, conv.ID).Return(&models.Negotiation{
		ID:     uuid.New(),
		Price:  4500,
		Status: models.NegotiationStatusAccepted,
	}, nil)

	quote, err := f.svc.Quote(ctx, conv.ID, clientID)
	assert.NoError(t, err)
	assert.Equal(t, int64(4500), quote.AgreedAmount)
	assert.Equal(t, int64(225), quote.PlatformFee)
	assert.Equal(t, int64(4725), quote.TotalPayable)
	// Расчёт не трогает шлюз и не создаёт платёж.
	f.gw.AssertNotCalled(t, "CreateOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.payments.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestEscrowService_Quote_OutsiderForbidden(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	conv := paymentPendingConversation(uuid.New(), uuid.New())

	f.conversations.On("GetByID", ctx, conv.ID).Return(conv, nil)

	_, err := f.svc.Quote(ctx, conv.ID, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotAParticipant)
}

func TestEscrowService_ConfirmCapture_ForgedSignature(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	payment := &models.Payment{ID: uuid.New(), Status: models.PaymentStatusPending}

	f.payments.On("GetByGatewayOrderID", ctx, "order_1").Return(payment, nil)
	f.gw.On("VerifyCapture", "order_1", "pay_1", "deadbeef").Return(false)

	_, err := f.svc.ConfirmCapture(ctx, "order_1", "pay_1", "deadbeef")
	assert.ErrorIs(t, err, apperror.ErrInvalidSignature)
	f.payments.AssertNotCalled(t, "SetPaymentRef", mock.Anything, mock.Anything, mock.Anything)
	f.wallet.AssertNotCalled(t, "RecordCommission", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEscrowService_ConfirmCapture_IdempotentOnCompleted(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	payment := &models.Payment{ID: uuid.New(), Status: models.PaymentStatusCompleted}

	f.payments.On("GetByGatewayOrderID", ctx, "order_1").Return(payment, nil)
	f.gw.On("VerifyCapture", "order_1", "pay_1", "sig").Return(true)

	got, err := f.svc.ConfirmCapture(ctx, "order_1", "pay_1", "sig")
	assert.NoError(t, err)
	assert.Equal(t, payment.ID, got.ID)
	f.wallet.AssertNotCalled(t, "RecordCommission", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEscrowService_ConfirmCapture_Success(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	convID := uuid.New()
	payment := &models.Payment{
		ID:             uuid.New(),
		ConversationID: &convID,
		PayerID:        uuid.New(),
		PayeeID:        uuid.New(),
		Status:         models.PaymentStatusPending,
		Amount:         4500,
	}
	ref := models.TxReference{ID: payment.ID, Kind: models.RefKindPayment}

	f.payments.On("GetByGatewayOrderID", ctx, "order_1").Return(payment, nil)
	f.gw.On("VerifyCapture", "order_1", "pay_1", "sig").Return(true)
	f.payments.On("SetPaymentRef", ctx, payment.ID, "pay_1").Return(nil)
	f.payments.On("TransitionStatus", ctx, payment.ID, models.PaymentStatusPending,
		models.PaymentStatusProcessing, mock.Anything).Return(nil)
	f.wallet.On("HasCredit", ctx, payment.PayeeID, ref).Return(false, nil)
	f.wallet.On("RecordCommission", ctx, payment.PayerID, payment.PayeeID, int64(4500), 0.05, ref).
		Return(int64(4275), nil)
	f.payments.On("TransitionStatus", ctx, payment.ID, models.PaymentStatusProcessing,
		models.PaymentStatusCompleted, mock.Anything).Return(nil)
	f.conversations.On("GetByID", ctx, convID).
		Return(&models.Conversation{ID: convID, Status: models.ConversationStatusPaymentProcessing, Version: 4}, nil)
	f.conversations.On("UpdateStatus", ctx, convID, int64(4), models.ConversationStatusCompleted).Return(nil)
	completed := *payment
	completed.Status = models.PaymentStatusCompleted
	f.payments.On("GetByID", ctx, payment.ID).Return(&completed, nil)

	got, err := f.svc.ConfirmCapture(ctx, "order_1", "pay_1", "sig")
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, got.Status)
	f.payments.AssertExpectations(t)
	f.wallet.AssertExpectations(t)
	f.conversations.AssertExpectations(t)
}

func TestEscrowService_ConfirmCapture_ResumesAfterCredit(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	convID := uuid.New()
	payment := &models.Payment{
		ID:             uuid.New(),
		ConversationID: &convID,
		PayerID:        uuid.New(),
		PayeeID:        uuid.New(),
		Status:         models.PaymentStatusProcessing,
		Amount:         4500,
	}
	ref := models.TxReference{ID: payment.ID, Kind: models.RefKindPayment}

	// Первая доставка упала между зачислением и переходом в completed;
	// повтор не должен зачислять второй раз.
	f.payments.On("GetByGatewayOrderID", ctx, "order_1").Return(payment, nil)
	f.gw.On("VerifyCapture", "order_1", "pay_1", "sig").Return(true)
	f.wallet.On("HasCredit", ctx, payment.PayeeID, ref).Return(true, nil)
	f.payments.On("TransitionStatus", ctx, payment.ID, models.PaymentStatusProcessing,
		models.PaymentStatusCompleted, mock.Anything).Return(nil)
	f.conversations.On("GetByID", ctx, convID).
		Return(&models.Conversation{ID: convID, Status: models.ConversationStatusPaymentProcessing, Version: 4}, nil)
	f.conversations.On("UpdateStatus", ctx, convID, int64(4), models.ConversationStatusCompleted).Return(nil)
	completed := *payment
	completed.Status = models.PaymentStatusCompleted
	f.payments.On("GetByID", ctx, payment.ID).Return(&completed, nil)

	got, err := f.svc.ConfirmCapture(ctx, "order_1", "pay_1", "sig")
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, got.Status)
	f.wallet.AssertNotCalled(t, "RecordCommission", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.payments.AssertNotCalled(t, "SetPaymentRef", mock.Anything, mock.Anything, mock.Anything)
	f.payments.AssertExpectations(t)
}

func TestEscrowService_ConfirmCapture_ResumesBeforeCredit(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	convID := uuid.New()
	payment := &models.Payment{
		ID:             uuid.New(),
		ConversationID: &convID,
		PayerID:        uuid.New(),
		PayeeID:        uuid.New(),
		Status:         models.PaymentStatusProcessing,
		Amount:         4500,
	}
	ref := models.TxReference{ID: payment.ID, Kind: models.RefKindPayment}

	// Первая доставка упала сразу после перехода в processing: зачисления
	// ещё не было, повтор доводит платёж до конца.
	f.payments.On("GetByGatewayOrderID", ctx, "order_1").Return(payment, nil)
	f.gw.On("VerifyCapture", "order_1", "pay_1", "sig").Return(true)
	f.wallet.On("HasCredit", ctx, payment.PayeeID, ref).Return(false, nil)
	f.wallet.On("RecordCommission", ctx, payment.PayerID, payment.PayeeID, int64(4500), 0.05, ref).
		Return(int64(4275), nil)
	f.payments.On("TransitionStatus", ctx, payment.ID, models.PaymentStatusProcessing,
		models.PaymentStatusCompleted, mock.Anything).Return(nil)
	f.conversations.On("GetByID", ctx, convID).
		Return(&models.Conversation{ID: convID, Status: models.ConversationStatusPaymentProcessing, Version: 4}, nil)
	f.conversations.On("UpdateStatus", ctx, convID, int64(4), models.ConversationStatusCompleted).Return(nil)
	completed := *payment
	completed.Status = models.PaymentStatusCompleted
	f.payments.On("GetByID", ctx, payment.ID).Return(&completed, nil)

	got, err := f.svc.ConfirmCapture(ctx, "order_1", "pay_1", "sig")
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, got.Status)
	f.wallet.AssertExpectations(t)
}

func TestEscrowService_MarkFailed_ReopensPayment(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	convID := uuid.New()
	payment := &models.Payment{
		ID:             uuid.New(),
		ConversationID: &convID,
		PayerID:        uuid.New(),
		Status:         models.PaymentStatusProcessing,
	}

	f.payments.On("GetByGatewayOrderID", ctx, "order_1").Return(payment, nil)
	f.gw.On("VerifyCapture", "order_1", "pay_1", "sig").Return(true)
	f.payments.On("TransitionStatus", ctx, payment.ID, models.PaymentStatusProcessing,
		models.PaymentStatusFailed, "недостаточно средств на карте").Return(nil)
	f.conversations.On("GetByID", ctx, convID).
		Return(&models.Conversation{ID: convID, Status: models.ConversationStatusPaymentProcessing, Version: 4}, nil)
	f.conversations.On("UpdateStatus", ctx, convID, int64(4), models.ConversationStatusPaymentPending).Return(nil)

	got, err := f.svc.MarkFailed(ctx, "order_1", "pay_1", "sig", "недостаточно средств на карте")
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, got.Status)
	f.conversations.AssertExpectations(t)
}

func TestEscrowService_MarkFailed_ForgedSignature(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	payment := &models.Payment{ID: uuid.New(), PayerID: uuid.New(), Status: models.PaymentStatusPending}

	f.payments.On("GetByGatewayOrderID", ctx, "order_1").Return(payment, nil)
	f.gw.On("VerifyCapture", "order_1", "", "deadbeef").Return(false)

	_, err := f.svc.MarkFailed(ctx, "order_1", "", "deadbeef", "якобы отклонено")
	assert.ErrorIs(t, err, apperror.ErrInvalidSignature)
	f.payments.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEscrowService_Refund_OnlyCompleted(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	payment := &models.Payment{ID: uuid.New(), PayerID: uuid.New(), Status: models.PaymentStatusPending}

	f.payments.On("GetByID", ctx, payment.ID).Return(payment, nil)

	_, err := f.svc.Refund(ctx, payment.ID, payment.PayerID, models.RoleClient, "передумал")
	assert.Error(t, err)
	assert.True(t, apperror.IsStateConflict(err))
	f.wallet.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEscrowService_Refund_StrangerForbidden(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	payment := &models.Payment{
		ID:      uuid.New(),
		PayerID: uuid.New(),
		PayeeID: uuid.New(),
		Status:  models.PaymentStatusCompleted,
		Amount:  4500,
	}

	f.payments.On("GetByID", ctx, payment.ID).Return(payment, nil)

	// Чужой пользователь не может развернуть чужой платёж.
	_, err := f.svc.Refund(ctx, payment.ID, uuid.New(), models.RoleClient, "хочу чужие деньги")
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	f.wallet.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.wallet.AssertNotCalled(t, "Refund", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.payments.AssertNotCalled(t, "TransitionStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEscrowService_Refund_PayeeForbidden(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	payment := &models.Payment{
		ID:      uuid.New(),
		PayerID: uuid.New(),
		PayeeID: uuid.New(),
		Status:  models.PaymentStatusCompleted,
		Amount:  4500,
	}

	f.payments.On("GetByID", ctx, payment.ID).Return(payment, nil)

	_, err := f.svc.Refund(ctx, payment.ID, payment.PayeeID, models.RoleFreelancer, "верну сам себе")
	assert.ErrorIs(t, err, apperror.ErrForbidden)
	f.wallet.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEscrowService_Refund_Success(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	payment := &models.Payment{
		ID:      uuid.New(),
		PayerID: uuid.New(),
		PayeeID: uuid.New(),
		Status:  models.PaymentStatusCompleted,
		Amount:  4500,
	}
	ref := models.TxReference{ID: payment.ID, Kind: models.RefKindPayment}

	f.payments.On("GetByID", ctx, payment.ID).Return(payment, nil)
	// С исполнителя снимается чистая сумма, плательщику возвращается полная.
	f.wallet.On("Debit", ctx, payment.PayeeID, int64(4275), mock.Anything, ref).
		Return(&models.WalletTransaction{}, nil)
	f.wallet.On("Refund", ctx, payment.PayerID, int64(4500), mock.Anything, ref).
		Return(&models.WalletTransaction{}, nil)
	f.payments.On("TransitionStatus", ctx, payment.ID, models.PaymentStatusCompleted,
		models.PaymentStatusRefunded, "работа не принята").Return(nil)

	got, err := f.svc.Refund(ctx, payment.ID, payment.PayerID, models.RoleClient, "работа не принята")
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, got.Status)
	f.wallet.AssertExpectations(t)
}

func TestEscrowService_Refund_OperatorMayRefund(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	payment := &models.Payment{
		ID:      uuid.New(),
		PayerID: uuid.New(),
		PayeeID: uuid.New(),
		Status:  models.PaymentStatusCompleted,
		Amount:  1000,
	}
	ref := models.TxReference{ID: payment.ID, Kind: models.RefKindPayment}

	f.payments.On("GetByID", ctx, payment.ID).Return(payment, nil)
	f.wallet.On("Debit", ctx, payment.PayeeID, int64(950), mock.Anything, ref).
		Return(&models.WalletTransaction{}, nil)
	f.wallet.On("Refund", ctx, payment.PayerID, int64(1000), mock.Anything, ref).
		Return(&models.WalletTransaction{}, nil)
	f.payments.On("TransitionStatus", ctx, payment.ID, models.PaymentStatusCompleted,
		models.PaymentStatusRefunded, "решение по спору").Return(nil)

	got, err := f.svc.Refund(ctx, payment.ID, uuid.New(), models.RoleAdmin, "решение по спору")
	assert.NoError(t, err)
	assert.Equal(t, models.PaymentStatusRefunded, got.Status)
	f.wallet.AssertExpectations(t)
}

func TestEscrowService_ReleaseToBank_DoubleRelease(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	payeeID := uuid.New()
	transferID := "tr_1"
	payment := &models.Payment{
		ID:         uuid.New(),
		PayeeID:    payeeID,
		Status:     models.PaymentStatusCompleted,
		Amount:     4500,
		TransferID: &transferID,
	}

	f.payments.On("GetByID", ctx, payment.ID).Return(payment, nil)

	_, err := f.svc.ReleaseToBank(ctx, payment.ID, payeeID, gateway.PayoutDetails{Account: "40817"})
	assert.Error(t, err)
	assert.True(t, apperror.IsStateConflict(err))
	f.wallet.AssertNotCalled(t, "Debit", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEscrowService_ReleaseToBank_GatewayFailureRefundsDebit(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	payeeID := uuid.New()
	payment := &models.Payment{
		ID:      uuid.New(),
		PayeeID: payeeID,
		Status:  models.PaymentStatusCompleted,
		Amount:  4500,
	}
	ref := models.TxReference{ID: payment.ID, Kind: models.RefKindPayment}
	details := gateway.PayoutDetails{Account: "40817"}

	f.payments.On("GetByID", ctx, payment.ID).Return(payment, nil)
	f.wallet.On("Debit", ctx, payeeID, int64(4275), mock.Anything, ref).
		Return(&models.WalletTransaction{}, nil)
	f.gw.On("TransferToPayee", ctx, details, int64(427500)).
		Return(nil, errors.New("gateway timeout"))
	f.wallet.On("Refund", ctx, payeeID, int64(4275), mock.Anything, ref).
		Return(&models.WalletTransaction{}, nil)

	_, err := f.svc.ReleaseToBank(ctx, payment.ID, payeeID, details)
	assert.Error(t, err)
	assert.Equal(t, apperror.ErrCodeExternalService, apperror.CodeOf(err))
	f.wallet.AssertExpectations(t)
	f.payments.AssertNotCalled(t, "SetTransfer", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEscrowService_Get_OnlyParticipants(t *testing.T) {
	f := newEscrowFixture()
	ctx := context.Background()
	payment := &models.Payment{ID: uuid.New(), PayerID: uuid.New(), PayeeID: uuid.New()}

	f.payments.On("GetByID", ctx, payment.ID).Return(payment, nil)

	_, err := f.svc.Get(ctx, payment.ID, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotAParticipant)
}
