package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Meekal-Jamil/travelbid/internal/api/middleware"
	"github.com/Meekal-Jamil/travelbid/internal/models"
	"github.com/Meekal-Jamil/travelbid/internal/services"
)

// AuthHandler serves registration, login and the caller's profile.
type AuthHandler struct {
	userService services.IUserService
}

func NewAuthHandler(userService services.IUserService) *AuthHandler {
	return &AuthHandler{userService: userService}
}

type registerRequest struct {
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Password string      `json:"password"`
	Role     models.Role `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type updateProfileRequest struct {
	Name     *string `json:"name"`
	Password *string `json:"password"`
}

type authResponse struct {
	Token string             `json:"token"`
	User  models.UserSummary `json:"user"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}
	user, token, err := h.userService.Register(c.Request.Context(), req.Name, req.Email, req.Password, req.Role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, authResponse{Token: token, User: user.Summary()})
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}
	user, token, err := h.userService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse{Token: token, User: user.Summary()})
}

// GetProfile handles GET /api/auth/profile.
func (h *AuthHandler) GetProfile(c *gin.Context) {
	user, err := h.userService.FindByID(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// UpdateProfile handles PUT /api/auth/profile. Omitted fields are unchanged.
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req updateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.UpdateProfile(c.Request.Context(), middleware.CurrentUserID(c), req.Name, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// Verify handles GET /api/auth/verify. The token was already checked by
// AuthMiddleware; this also confirms the account still exists.
func (h *AuthHandler) Verify(c *gin.Context) {
	user, err := h.userService.FindByID(c.Request.Context(), middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true, "user": user.Summary()})
}
