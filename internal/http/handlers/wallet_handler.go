package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pmorev/giglance-backend/internal/dto"
	"github.com/pmorev/giglance-backend/internal/http/handlers/common"
	"github.com/pmorev/giglance-backend/internal/service"
)

// WalletHandler обслуживает кошелёк и историю операций.
type WalletHandler struct {
	wallets *service.WalletService
}

func NewWalletHandler(wallets *service.WalletService) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

// GetWallet GET /wallet
func (h *WalletHandler) GetWallet(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	wallet, err := h.wallets.Get(c.Request.Context(), userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	recent, err := h.wallets.History(c.Request.Context(), userID, 10, 0, "")
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.WalletResponse{
		Wallet:             wallet,
		RecentTransactions: recent,
	})
}

// ListTransactions GET /wallet/transactions
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	txType := c.Query("type")

	transactions, err := h.wallets.History(c.Request.Context(), userID, limit, offset, txType)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"transactions": transactions,
		"pagination":   dto.Pagination{Limit: limit, Offset: offset, Count: len(transactions)},
	})
}
