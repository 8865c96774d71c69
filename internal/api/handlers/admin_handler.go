package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Meekal-Jamil/travelbid/internal/api/middleware"
	"github.com/Meekal-Jamil/travelbid/internal/models"
	"github.com/Meekal-Jamil/travelbid/internal/services"
)

// AdminHandler serves /api/admin. Every route requires the admin role.
type AdminHandler struct {
	userService services.IUserService
	tripService services.ITripService
}

func NewAdminHandler(userService services.IUserService, tripService services.ITripService) *AdminHandler {
	return &AdminHandler{userService: userService, tripService: tripService}
}

// GetAllUsers handles GET /api/admin/users.
func (h *AdminHandler) GetAllUsers(c *gin.Context) {
	users, err := h.userService.ListUsers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// GetAllTrips handles GET /api/admin/trips.
func (h *AdminHandler) GetAllTrips(c *gin.Context) {
	trips, err := h.tripService.ListTrips(c.Request.Context(), middleware.CurrentUserID(c), models.RoleAdmin)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, trips)
}

// ReconcileAgentStats handles POST /api/admin/agents/:id/reconcile-stats.
func (h *AdminHandler) ReconcileAgentStats(c *gin.Context) {
	agentID, ok := objectIDParam(c, "id")
	if !ok {
		return
	}
	stats, err := h.userService.ReconcileAgentStats(c.Request.Context(), agentID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
