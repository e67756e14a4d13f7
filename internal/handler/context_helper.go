package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cte-skillshub-api/internal/middleware"
	"github.com/noah-isme/cte-skillshub-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.ClaimsFromContext(c)
}

// viewerFromContext yields an unauthenticated viewer when no token was presented;
// services reject it with Unauthenticated.
func viewerFromContext(c *gin.Context) models.Viewer {
	return claimsFromContext(c).Viewer()
}
