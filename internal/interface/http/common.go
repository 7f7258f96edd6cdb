package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/oksasatya/ngo-backoffice/internal/application/identity"
	"github.com/oksasatya/ngo-backoffice/internal/interface/middleware"
)

func clientIP(c *gin.Context) string {
	if ip := c.GetString(middleware.CtxRealIPKey); ip != "" {
		return ip
	}
	return c.ClientIP()
}

// tokenBody is returned next to the cookies so non-browser clients can use
// the Authorization header.
type tokenBody struct {
	Principal any `json:"principal"`
	identity.TokenPair
}
