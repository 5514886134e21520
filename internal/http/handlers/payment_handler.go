package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pmorev/giglance-backend/internal/dto"
	"github.com/pmorev/giglance-backend/internal/gateway"
	"github.com/pmorev/giglance-backend/internal/http/handlers/common"
	"github.com/pmorev/giglance-backend/internal/models"
	"github.com/pmorev/giglance-backend/internal/service"
)

// PaymentHandler обслуживает эскроу-платежи и вебхук шлюза.
type PaymentHandler struct {
	escrow *service.EscrowService
}

func NewPaymentHandler(escrow *service.EscrowService) *PaymentHandler {
	return &PaymentHandler{escrow: escrow}
}

// InitiatePayment POST /payments
func (h *PaymentHandler) InitiatePayment(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.InitiatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	conversationID, err := uuid.Parse(req.ConversationID)
	if err != nil {
		common.RespondBadRequest(c, "неверный conversation_id")
		return
	}

	payment, err := h.escrow.Initiate(c.Request.Context(), conversationID, userID, req.Amount)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, payment)
}

// Quote GET /conversations/:id/payments/quote
func (h *PaymentHandler) Quote(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	conversationID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	quote, err := h.escrow.Quote(c.Request.Context(), conversationID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PaymentQuote{
		Amount:       quote.AgreedAmount,
		PlatformFee:  quote.PlatformFee,
		TotalPayable: quote.TotalPayable,
		Currency:     h.escrow.Currency(),
	})
}

// GetPayment GET /payments/:id
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	paymentID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	payment, err := h.escrow.Get(c.Request.Context(), paymentID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

// ListConversationPayments GET /conversations/:id/payments
func (h *PaymentHandler) ListConversationPayments(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	conversationID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	payments, err := h.escrow.ListByConversation(c.Request.Context(), conversationID, userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"payments":   payments,
		"pagination": dto.Pagination{Limit: limit, Offset: offset, Count: len(payments)},
	})
}

// Refund POST /payments/:id/refund
func (h *PaymentHandler) Refund(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	paymentID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "причина возврата обязательна")
		return
	}

	payment, err := h.escrow.Refund(c.Request.Context(), paymentID, userID, role, req.Reason)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

// Release POST /payments/:id/release
func (h *PaymentHandler) Release(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	paymentID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "реквизиты получателя обязательны")
		return
	}

	payment, err := h.escrow.ReleaseToBank(c.Request.Context(), paymentID, userID, gateway.PayoutDetails{
		Account:   req.Account,
		CardLast4: req.CardLast4,
		BankName:  req.BankName,
	})
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}

// GatewayWebhook POST /payments/webhook — публичный endpoint для уведомлений
// шлюза. Аутентификация — подпись в теле, а не JWT; обе ветки проверяются
// одной и той же подписью.
func (h *PaymentHandler) GatewayWebhook(c *gin.Context) {
	var req dto.CaptureWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	if req.Status == models.PaymentStatusFailed {
		reason := req.Reason
		if reason == "" {
			reason = "шлюз сообщил о неуспехе списания"
		}
		payment, err := h.escrow.MarkFailed(c.Request.Context(), req.OrderID, req.PaymentRef, req.Signature, reason)
		if err != nil {
			common.RespondAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, payment)
		return
	}

	payment, err := h.escrow.ConfirmCapture(c.Request.Context(), req.OrderID, req.PaymentRef, req.Signature)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, payment)
}
