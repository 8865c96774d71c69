package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Meekal-Jamil/travelbid/internal/auth"
	"github.com/Meekal-Jamil/travelbid/internal/models"
)

const (
	// ContextKeyUserID holds the caller's primitive.ObjectID.
	ContextKeyUserID = "userID"
	// ContextKeyRole holds the caller's models.Role.
	ContextKeyRole = "role"
)

// AuthMiddleware creates a Gin middleware for JWT authentication.
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "No token, authorization denied"})
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := auth.ValidateJWT(strings.TrimSpace(parts[1]), jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Token is not valid"})
			return
		}
		// ValidateJWT already checked the hex form.
		userID, _ := primitive.ObjectIDFromHex(claims.UserID)

		c.Set(ContextKeyUserID, userID)
		c.Set(ContextKeyRole, claims.Role)
		c.Next()
	}
}

// RequireRole allows the request through only for the listed roles.
// Assumes AuthMiddleware runs first.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := CurrentRole(c)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Access denied"})
	}
}

// CurrentUserID returns the authenticated caller's id, or the zero id.
func CurrentUserID(c *gin.Context) primitive.ObjectID {
	if v, ok := c.Get(ContextKeyUserID); ok {
		if id, ok := v.(primitive.ObjectID); ok {
			return id
		}
	}
	return primitive.NilObjectID
}

func CurrentRole(c *gin.Context) models.Role {
	if v, ok := c.Get(ContextKeyRole); ok {
		if role, ok := v.(models.Role); ok {
			return role
		}
	}
	return ""
}
