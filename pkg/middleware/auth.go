package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"ensemble-chat/backend/pkg/errors"
	"ensemble-chat/backend/pkg/jwt"
)

// JWTAuth validates the Bearer guest token and stores the claims on the
// request context under "claims" and the guest ID under "guestId".
func JWTAuth(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.Error(errors.NewUnauthorizedError(errors.CodeUnauthorized, "Authorization header is required"))
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.Error(errors.NewUnauthorizedError(errors.CodeUnauthorized, "Authorization header must be a Bearer token"))
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(parts[1])
		if err != nil {
			c.Error(errors.NewUnauthorizedError(errors.CodeUnauthorized, err.Error()))
			c.Abort()
			return
		}

		c.Set("claims", claims)
		c.Set("guestId", claims.GuestID)
		c.Next()
	}
}
