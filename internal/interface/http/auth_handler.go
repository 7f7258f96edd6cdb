package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/ngo-backoffice/internal/application/identity"
	"github.com/oksasatya/ngo-backoffice/internal/interface/middleware"
	"github.com/oksasatya/ngo-backoffice/pkg/helpers"
	"github.com/oksasatya/ngo-backoffice/pkg/response"
	"github.com/oksasatya/ngo-backoffice/pkg/validation"
)

// AuthHandler exposes the identity service: sign up, password sign-in,
// refresh, session lookup and sign-out.
type AuthHandler struct {
	Identity *identity.Service
	Cookies  *helpers.Manager
	Logger   *logrus.Logger
}

func NewAuthHandler(id *identity.Service, cookies *helpers.Manager, logger *logrus.Logger) *AuthHandler {
	return &AuthHandler{Identity: id, Cookies: cookies, Logger: logger}
}

type credentialsRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// SignUp POST /api/auth/signup
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	p, err := h.Identity.SignUp(c.Request.Context(), req.Email, req.Password)
	switch {
	case err == nil:
		response.Success(c, http.StatusCreated, p, "signed up", nil)
	case errors.Is(err, identity.ErrEmailTaken):
		response.Error[any](c, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, identity.ErrEmailNotAllowed):
		response.Error[any](c, http.StatusForbidden, err.Error(), nil)
	case errors.Is(err, identity.ErrInvalidEmail), errors.Is(err, helpers.ErrPasswordTooShort):
		response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
	default:
		helpers.LogError(h.Logger, "sign up failed", err, logrus.Fields{"email": req.Email})
		response.Error[any](c, http.StatusInternalServerError, "sign up failed", nil)
	}
}

// Token POST /api/auth/token
func (h *AuthHandler) Token(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	p, pair, err := h.Identity.SignInWithPassword(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if !errors.Is(err, identity.ErrInvalidCredentials) {
			helpers.LogError(h.Logger, "sign in failed", err, nil)
			response.Error[any](c, http.StatusInternalServerError, "sign in failed", nil)
			return
		}
		response.Error[any](c, http.StatusUnauthorized, err.Error(), nil)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, tokenBody{Principal: p, TokenPair: pair}, "signed in", nil)
}

// Refresh POST /api/auth/refresh; the refresh token comes from the cookie or the body.
func (h *AuthHandler) Refresh(c *gin.Context) {
	refresh, _ := c.Cookie(helpers.RefreshCookie)
	if refresh == "" {
		var req refreshRequest
		_ = c.ShouldBindJSON(&req)
		refresh = req.RefreshToken
	}
	if refresh == "" {
		response.Error[any](c, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}
	p, pair, err := h.Identity.Refresh(c.Request.Context(), refresh)
	if err != nil {
		response.Error[any](c, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, tokenBody{Principal: p, TokenPair: pair}, "token refreshed", nil)
}

// Session GET /api/auth/session
func (h *AuthHandler) Session(c *gin.Context) {
	response.Success(c, http.StatusOK, middleware.Principal(c), "session", nil)
}

// Logout POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.Identity.SignOut(c.Request.Context(), middleware.Principal(c)); err != nil {
		helpers.LogError(h.Logger, "sign out failed", err, logrus.Fields{"user_id": c.GetString(middleware.CtxUserIDKey)})
		response.Error[any](c, http.StatusInternalServerError, "sign out failed", nil)
		return
	}
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, map[string]any{"logged_out": true}, "logged out", nil)
}
