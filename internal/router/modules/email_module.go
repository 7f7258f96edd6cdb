package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/ngo-backoffice/internal/container"
	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
	handlers "github.com/oksasatya/ngo-backoffice/internal/interface/http"
	"github.com/oksasatya/ngo-backoffice/internal/interface/middleware"
)

// EmailModule lets root admins re-queue account emails.
type EmailModule struct {
	Handler  *handlers.EmailHandler
	Sessions middleware.SessionResolver
	Profiles middleware.ProfileLookup
}

func NewEmailModule(h *handlers.EmailHandler, sessions middleware.SessionResolver, profiles middleware.ProfileLookup) *EmailModule {
	return &EmailModule{Handler: h, Sessions: sessions, Profiles: profiles}
}

func (m *EmailModule) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/admin")
	auth.Use(middleware.Auth(m.Sessions))
	auth.Use(middleware.RequireProfile(m.Profiles, entity.RoleRoot))
	auth.Use(
		middleware.RateLimit(container.GetRedis(), 30, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		auth.POST("/users/:id/welcome", m.Handler.ResendWelcome)
	}
}
