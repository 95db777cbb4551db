package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/clinical-clock-api/internal/models"
	appErrors "github.com/noah-isme/clinical-clock-api/pkg/errors"
	"github.com/noah-isme/clinical-clock-api/pkg/response"
)

// RequireRoles restricts a route to the given roles. The special pseudo-role
// SELF admits a student whose own studentId is the target of the request.
func RequireRoles(allowed ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		allowSelf := false
		allowedRoles := make(map[models.UserRole]struct{})
		for _, a := range allowed {
			if a == "SELF" {
				allowSelf = true
				continue
			}
			allowedRoles[models.UserRole(a)] = struct{}{}
		}

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}

		if allowSelf && claims.Role == models.RoleStudent && claims.StudentID != "" {
			target := c.Query("studentId")
			if target == "" {
				target = c.Param("studentId")
			}
			if target == claims.StudentID {
				c.Next()
				return
			}
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}
