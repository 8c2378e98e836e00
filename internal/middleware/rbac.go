package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/journeyman/marketplace-api/internal/models"
	appErrors "github.com/journeyman/marketplace-api/pkg/errors"
	"github.com/journeyman/marketplace-api/pkg/response"
)

// RequireRoles blocks requests whose token role is not in the allowed set.
// The sentinel "SELF" also admits a caller whose email matches the :email
// route parameter.
func RequireRoles(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		allowSelf := false
		allowed := make(map[models.UserRole]struct{})
		for _, r := range roles {
			if r == "SELF" {
				allowSelf = true
				continue
			}
			allowed[models.UserRole(r)] = struct{}{}
		}

		if _, ok := allowed[claims.Role]; ok {
			c.Next()
			return
		}

		if allowSelf {
			if email := c.Param("email"); email != "" && email == claims.Email {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}
