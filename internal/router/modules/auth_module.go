package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/ngo-backoffice/internal/container"
	handlers "github.com/oksasatya/ngo-backoffice/internal/interface/http"
	"github.com/oksasatya/ngo-backoffice/internal/interface/middleware"
)

// AuthModule exposes the hosted identity API.
// Public: POST /api/auth/signup, /api/auth/token, /api/auth/refresh, /api/auth/otp/send
// Protected: GET /api/auth/session, POST /api/auth/logout, GET /api/auth/session/stream
type AuthModule struct {
	Handler  *handlers.AuthHandler
	Stream   *handlers.StreamHandler
	OTP      *handlers.AdminHandler
	Sessions middleware.SessionResolver
}

func NewAuthModule(h *handlers.AuthHandler, stream *handlers.StreamHandler, otp *handlers.AdminHandler, sessions middleware.SessionResolver) *AuthModule {
	return &AuthModule{Handler: h, Stream: stream, OTP: otp, Sessions: sessions}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	rdb := container.GetRedis()
	signUpLimiter := middleware.RateLimit(rdb, 10, time.Minute, middleware.KeyByIP(), nil)
	tokenLimiter := middleware.RateLimit(rdb, 10, time.Minute, middleware.KeyByIP(), nil)
	refreshLimiter := middleware.RateLimit(rdb, 60, time.Minute, middleware.KeyByIP(), nil)
	otpLimiter := middleware.RateLimit(rdb, 5, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/auth/signup", signUpLimiter, m.Handler.SignUp)
	rg.POST("/auth/token", tokenLimiter, m.Handler.Token)
	rg.POST("/auth/refresh", refreshLimiter, m.Handler.Refresh)
	rg.POST("/auth/otp/send", otpLimiter, m.OTP.SendOTP)

	auth := rg.Group("/auth")
	auth.Use(middleware.Auth(m.Sessions))
	auth.Use(middleware.RateLimit(rdb, 120, time.Minute, middleware.KeyByUserID(), nil))
	{
		auth.GET("/session", m.Handler.Session)
		auth.POST("/logout", m.Handler.Logout)
		auth.GET("/session/stream", m.Stream.Stream)
	}
}
