package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
	"github.com/oksasatya/ngo-backoffice/pkg/helpers"
	"github.com/oksasatya/ngo-backoffice/pkg/response"
)

const (
	CtxUserIDKey    = "userID"
	CtxUserEmailKey = "userEmail"
	ctxPrincipalKey = "principal"
)

// SessionResolver maps an access token to the principal of a live session.
type SessionResolver interface {
	Session(ctx context.Context, accessToken string) (*entity.Principal, error)
}

// Auth reads the access token from the Authorization header or cookie and
// requires a live session for it.
func Auth(sessions SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := helpers.AccessToken(c)
		if token == "" {
			response.Abort(c, http.StatusUnauthorized, "missing access token", nil)
			return
		}
		p, err := sessions.Session(c.Request.Context(), token)
		if err != nil || p == nil {
			response.Abort(c, http.StatusUnauthorized, "session not found", nil)
			return
		}
		c.Set(CtxUserIDKey, p.ID)
		c.Set(CtxUserEmailKey, p.Email)
		c.Set(ctxPrincipalKey, p)
		c.Next()
	}
}

// Principal returns the principal set by Auth, or nil.
func Principal(c *gin.Context) *entity.Principal {
	if v, ok := c.Get(ctxPrincipalKey); ok {
		if p, ok := v.(*entity.Principal); ok {
			return p
		}
	}
	return nil
}
