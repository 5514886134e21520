package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pmorev/giglance-backend/internal/dto"
	"github.com/pmorev/giglance-backend/internal/http/handlers/common"
	"github.com/pmorev/giglance-backend/internal/service"
)

// WithdrawalHandler обслуживает заявки на вывод средств.
type WithdrawalHandler struct {
	wallets *service.WalletService
}

func NewWithdrawalHandler(wallets *service.WalletService) *WithdrawalHandler {
	return &WithdrawalHandler{wallets: wallets}
}

// CreateWithdrawal POST /withdrawals
func (h *WithdrawalHandler) CreateWithdrawal(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "сумма и реквизиты выплаты обязательны")
		return
	}

	withdrawal, err := h.wallets.RequestWithdrawal(c.Request.Context(), userID, req.Amount,
		req.Account, req.CardLast4, req.BankName)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, withdrawal)
}

// ListWithdrawals GET /withdrawals
func (h *WithdrawalHandler) ListWithdrawals(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	withdrawals, err := h.wallets.ListWithdrawals(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"withdrawals": withdrawals,
		"pagination":  dto.Pagination{Limit: limit, Offset: offset, Count: len(withdrawals)},
	})
}

// CompleteWithdrawal POST /withdrawals/:id/complete — операторский endpoint,
// выплачивает зарезервированные средства по реквизитам из заявки.
func (h *WithdrawalHandler) CompleteWithdrawal(c *gin.Context) {
	if _, err := common.CurrentUserID(c); err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	withdrawalID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	withdrawal, err := h.wallets.CompleteWithdrawal(c.Request.Context(), withdrawalID, role)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, withdrawal)
}

// RejectWithdrawal POST /withdrawals/:id/reject — операторский endpoint,
// возвращает зарезервированные средства на кошелёк.
func (h *WithdrawalHandler) RejectWithdrawal(c *gin.Context) {
	if _, err := common.CurrentUserID(c); err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}
	role, _ := common.CurrentUserRole(c)

	withdrawalID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.RejectWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "причина отклонения обязательна")
		return
	}

	withdrawal, err := h.wallets.RejectWithdrawal(c.Request.Context(), withdrawalID, role, req.Reason)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, withdrawal)
}
