package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/pmorev/giglance-backend/internal/dto"
	"github.com/pmorev/giglance-backend/internal/http/handlers/common"
	"github.com/pmorev/giglance-backend/internal/service"
)

// ConversationHandler обслуживает беседы и переговоры о цене.
type ConversationHandler struct {
	negotiations *service.NegotiationService
}

func NewConversationHandler(negotiations *service.NegotiationService) *ConversationHandler {
	return &ConversationHandler{negotiations: negotiations}
}

// StartConversation POST /conversations
func (h *ConversationHandler) StartConversation(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.StartConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	freelancerID, err := uuid.Parse(req.FreelancerID)
	if err != nil {
		common.RespondBadRequest(c, "неверный freelancer_id")
		return
	}

	var gigID *uuid.UUID
	if req.GigID != nil {
		parsed, err := uuid.Parse(*req.GigID)
		if err != nil {
			common.RespondBadRequest(c, "неверный gig_id")
			return
		}
		gigID = &parsed
	}

	conv, err := h.negotiations.Start(c.Request.Context(), userID, freelancerID, gigID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, conv)
}

// ListMyConversations GET /conversations/my
func (h *ConversationHandler) ListMyConversations(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	conversations, err := h.negotiations.ListMy(c.Request.Context(), userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversations": conversations,
		"pagination":    dto.Pagination{Limit: limit, Offset: offset, Count: len(conversations)},
	})
}

// GetConversation GET /conversations/:id
func (h *ConversationHandler) GetConversation(c *gin.Context) {
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

	conv, err := h.negotiations.Get(c.Request.Context(), conversationID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	negotiations, err := h.negotiations.History(c.Request.Context(), conversationID, userID, 10, 0)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ConversationResponse{
		Conversation: conv,
		Negotiations: negotiations,
	})
}

// Propose POST /conversations/:id/proposals
func (h *ConversationHandler) Propose(c *gin.Context) {
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

	var req dto.ProposeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "цена должна быть положительной")
		return
	}

	negotiation, err := h.negotiations.Propose(c.Request.Context(), conversationID, userID, req.Price, req.Timeline, req.Terms)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, negotiation)
}

// Accept POST /conversations/:id/proposals/accept
func (h *ConversationHandler) Accept(c *gin.Context) {
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

	negotiation, err := h.negotiations.Accept(c.Request.Context(), conversationID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, negotiation)
}

// Reject POST /conversations/:id/proposals/reject
func (h *ConversationHandler) Reject(c *gin.Context) {
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

	negotiation, err := h.negotiations.Reject(c.Request.Context(), conversationID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, negotiation)
}

// History GET /conversations/:id/proposals
func (h *ConversationHandler) History(c *gin.Context) {
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
	negotiations, err := h.negotiations.History(c.Request.Context(), conversationID, userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"negotiations": negotiations,
		"pagination":   dto.Pagination{Limit: limit, Offset: offset, Count: len(negotiations)},
	})
}
