package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Meekal-Jamil/travelbid/internal/services"
)

// ConfigHandler serves the public runtime configuration.
type ConfigHandler struct {
	settings services.ISettingsService
}

func NewConfigHandler(settings services.ISettingsService) *ConfigHandler {
	return &ConfigHandler{settings: settings}
}

// GetPublicConfig handles GET /api/config.
func (h *ConfigHandler) GetPublicConfig(c *gin.Context) {
	publicConfig, err := h.settings.GetAllPublic(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Failed to retrieve configuration"})
		return
	}
	c.JSON(http.StatusOK, publicConfig)
}
