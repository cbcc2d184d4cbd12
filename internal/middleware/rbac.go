package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/school-mgmt-api/internal/models"
	appErrors "github.com/noah-isme/school-mgmt-api/pkg/errors"
	"github.com/noah-isme/school-mgmt-api/pkg/response"
)

// PermissionChecker resolves whether a role may perform an action on a resource.
type PermissionChecker interface {
	Allowed(ctx context.Context, role models.UserRole, resource, action string) (bool, error)
}

// RequireRoles lets only the listed roles through. SUPERADMIN always passes.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims, ok := CurrentUser(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; ok || claims.Role == models.RoleSuperAdmin {
			c.Next()
			return
		}
		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequirePermission checks the caller's role against the permission table.
func RequirePermission(checker PermissionChecker, resource, action string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		claims, ok := CurrentUser(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		allowed, err := checker.Allowed(c.Request.Context(), claims.Role, resource, action)
		if err != nil {
			logger.Error("permission check failed",
				zap.String("role", string(claims.Role)),
				zap.String("resource", resource),
				zap.String("action", action),
				zap.Error(err))
			response.Error(c, err)
			c.Abort()
			return
		}
		if !allowed {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "missing permission "+resource+":"+action))
			c.Abort()
			return
		}
		c.Next()
	}
}
