package middleware

import (
	"context"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
	"github.com/oksasatya/ngo-backoffice/pkg/response"
)

const ctxProfileKey = "profile"

type ProfileLookup interface {
	Get(ctx context.Context, id string) (*entity.AccountProfile, error)
}

// RequireProfile runs after Auth. It loads the caller's account profile and,
// when roles are given, requires one of them.
func RequireProfile(profiles ProfileLookup, roles ...entity.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := c.GetString(CtxUserIDKey)
		if uid == "" {
			response.Abort(c, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		p, err := profiles.Get(c.Request.Context(), uid)
		if err != nil || p == nil {
			response.Abort(c, http.StatusForbidden, "account profile required", nil)
			return
		}
		if len(roles) > 0 && !slices.Contains(roles, p.Role) {
			response.Abort(c, http.StatusForbidden, "insufficient role", nil)
			return
		}
		c.Set(ctxProfileKey, p)
		c.Next()
	}
}

// Profile returns the profile set by RequireProfile, or nil.
func Profile(c *gin.Context) *entity.AccountProfile {
	if v, ok := c.Get(ctxProfileKey); ok {
		if p, ok := v.(*entity.AccountProfile); ok {
			return p
		}
	}
	return nil
}
