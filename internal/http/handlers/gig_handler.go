package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pmorev/giglance-backend/internal/dto"
	"github.com/pmorev/giglance-backend/internal/http/handlers/common"
	"github.com/pmorev/giglance-backend/internal/service"
)

// GigHandler обслуживает задания и отклики фрилансеров.
type GigHandler struct {
	applications *service.ApplicationService
}

func NewGigHandler(applications *service.ApplicationService) *GigHandler {
	return &GigHandler{applications: applications}
}

// CreateGig POST /gigs
func (h *GigHandler) CreateGig(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	var req dto.CreateGigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	gig, err := h.applications.CreateGig(c.Request.Context(), userID, req.Title, req.Description, req.Budget, req.IterationsAllowed)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gig)
}

// Apply POST /gigs/:id/applications
func (h *GigHandler) Apply(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	gigID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	var req dto.ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondBadRequest(c, "ставка должна быть положительной")
		return
	}

	app, err := h.applications.Apply(c.Request.Context(), gigID, userID, req.ProposedRate)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, app)
}

// ListApplications GET /gigs/:id/applications
func (h *GigHandler) ListApplications(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	gigID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	apps, err := h.applications.ListByGig(c.Request.Context(), gigID, userID, limit, offset)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"applications": apps,
		"pagination":   dto.Pagination{Limit: limit, Offset: offset, Count: len(apps)},
	})
}

// GetApplication GET /applications/:id
func (h *GigHandler) GetApplication(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	applicationID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	app, err := h.applications.Get(c.Request.Context(), applicationID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, app)
}

// AcceptApplication POST /applications/:id/accept
func (h *GigHandler) AcceptApplication(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	applicationID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	app, err := h.applications.Accept(c.Request.Context(), applicationID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, app)
}

// RejectApplication POST /applications/:id/reject
func (h *GigHandler) RejectApplication(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	applicationID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	app, err := h.applications.Reject(c.Request.Context(), applicationID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, app)
}

// SubmitDelivery POST /applications/:id/deliveries
func (h *GigHandler) SubmitDelivery(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondUnauthorized(c, err.Error())
		return
	}

	applicationID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondBadRequest(c, err.Error())
		return
	}

	app, err := h.applications.SubmitDelivery(c.Request.Context(), applicationID, userID)
	if err != nil {
		common.RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, app)
}
