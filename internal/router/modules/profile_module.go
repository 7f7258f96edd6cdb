package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/ngo-backoffice/internal/container"
	handlers "github.com/oksasatya/ngo-backoffice/internal/interface/http"
	"github.com/oksasatya/ngo-backoffice/internal/interface/middleware"
)

// ProfileModule exposes the hosted data API over account profiles.
// Public: GET /api/profiles/email
// Protected: POST /api/profiles, GET /api/profiles/me, PUT /api/profiles/me/avatar
type ProfileModule struct {
	Handler  *handlers.ProfileHandler
	Sessions middleware.SessionResolver
}

func NewProfileModule(h *handlers.ProfileHandler, sessions middleware.SessionResolver) *ProfileModule {
	return &ProfileModule{Handler: h, Sessions: sessions}
}

func (m *ProfileModule) Register(rg *gin.RouterGroup) {
	rdb := container.GetRedis()
	lookupLimiter := middleware.RateLimit(rdb, 30, time.Minute, middleware.KeyByIP(), nil)
	rg.GET("/profiles/email", lookupLimiter, m.Handler.EmailByUsername)

	auth := rg.Group("/profiles")
	auth.Use(middleware.Auth(m.Sessions))
	auth.Use(
		middleware.RateLimit(rdb, 300, time.Minute, middleware.KeyByIP(), nil),
		middleware.RateLimit(rdb, 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		auth.POST("", m.Handler.Create)
		auth.GET("/me", m.Handler.Me)
		auth.PUT("/me/avatar", m.Handler.UploadAvatar)
	}
}
