package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Meekal-Jamil/travelbid/internal/api/middleware"
	"github.com/Meekal-Jamil/travelbid/internal/services"
)

type AgentHandler struct {
	userService services.IUserService
}

func NewAgentHandler(userService services.IUserService) *AgentHandler {
	return &AgentHandler{userService: userService}
}

// agentStatsResponse is the dashboard shape of models.AgentStats.
type agentStatsResponse struct {
	TotalBids    int     `json:"totalBids"`
	AcceptedBids int     `json:"acceptedBids"`
	RejectedBids int     `json:"rejectedBids"`
	PendingBids  int     `json:"pendingBids"`
	Earnings     float64 `json:"earnings"`
}

// GetStats handles GET /api/agent/stats.
func (h *AgentHandler) GetStats(c *gin.Context) {
	stats, err := h.userService.GetAgentStats(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, agentStatsResponse{
		TotalBids:    stats.TotalBids,
		AcceptedBids: stats.AcceptedBids,
		RejectedBids: stats.RejectedBids,
		PendingBids:  stats.PendingBids,
		Earnings:     stats.TotalEarnings,
	})
}
