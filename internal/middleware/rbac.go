package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-attendance-api/internal/models"
	appErrors "github.com/noah-isme/sma-attendance-api/pkg/errors"
	"github.com/noah-isme/sma-attendance-api/pkg/response"
)

// RoleAdministrative expands to every role that may manage course rosters.
const RoleAdministrative = "ADMINISTRATIVE"

// RoleSelf expands to every role bound to a single student.
const RoleSelf = "SELF"

// RBAC enforces role-based access control for routes.
func RBAC(allowed ...string) gin.HandlerFunc {
	allowAdministrative := false
	allowSelf := false
	allowedRoles := make(map[models.UserRole]struct{})
	for _, a := range allowed {
		switch a {
		case RoleAdministrative:
			allowAdministrative = true
		case RoleSelf:
			allowSelf = true
		default:
			allowedRoles[models.ParseRole(a)] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := claimsValue.(*models.JWTClaims)
		if !ok || claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowedRoles[claims.Role]; ok {
			c.Next()
			return
		}
		if allowAdministrative && claims.Role.Administrative() {
			c.Next()
			return
		}
		// Self roles must be bound to a student to act at all.
		if allowSelf && claims.Role.Self() && claims.StudentID != "" {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

