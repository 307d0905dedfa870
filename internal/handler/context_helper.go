package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-records-api/internal/middleware"
	"github.com/noah-isme/campus-records-api/internal/models"
)

// claimsFromContext returns the verified caller identity, nil when the route is unauthenticated.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok || claims.UserID == "" {
		return nil
	}
	return claims
}
