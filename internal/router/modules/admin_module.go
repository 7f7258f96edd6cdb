package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/ngo-backoffice/internal/container"
	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
	handlers "github.com/oksasatya/ngo-backoffice/internal/interface/http"
	"github.com/oksasatya/ngo-backoffice/internal/interface/middleware"
)

// AdminModule serves the back-office flows.
// Public: POST /api/admin/login, POST /api/admin/register
// Admin profile required: GET /api/admin/users, GET /api/admin/users/search
type AdminModule struct {
	Handler  *handlers.AdminHandler
	Sessions middleware.SessionResolver
	Profiles middleware.ProfileLookup
}

func NewAdminModule(h *handlers.AdminHandler, sessions middleware.SessionResolver, profiles middleware.ProfileLookup) *AdminModule {
	return &AdminModule{Handler: h, Sessions: sessions, Profiles: profiles}
}

func (m *AdminModule) Register(rg *gin.RouterGroup) {
	rdb := container.GetRedis()
	loginLimiter := middleware.RateLimit(rdb, 10, time.Minute, middleware.KeyByIP(), nil)
	registerLimiter := middleware.RateLimit(rdb, 10, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/admin/login", loginLimiter, m.Handler.Login)
	rg.POST("/admin/register", registerLimiter, m.Handler.Register)

	admin := rg.Group("/admin")
	admin.Use(middleware.Auth(m.Sessions))
	admin.Use(middleware.RequireProfile(m.Profiles, entity.RoleRoot, entity.RoleAdmin))
	admin.Use(middleware.RateLimit(rdb, 120, time.Minute, middleware.KeyByUserID(), nil))
	{
		admin.GET("/users", m.Handler.Users)
		admin.GET("/users/search", m.Handler.Search)
	}
}
