package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/ngo-backoffice/config"
	"github.com/oksasatya/ngo-backoffice/internal/application/auth"
	"github.com/oksasatya/ngo-backoffice/internal/application/identity"
	"github.com/oksasatya/ngo-backoffice/internal/application/otp"
	"github.com/oksasatya/ngo-backoffice/internal/application/profile"
	"github.com/oksasatya/ngo-backoffice/internal/application/session"
	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
	"github.com/oksasatya/ngo-backoffice/internal/infrastructure/inprocess"
	"github.com/oksasatya/ngo-backoffice/pkg/helpers"
	"github.com/oksasatya/ngo-backoffice/pkg/response"
	"github.com/oksasatya/ngo-backoffice/pkg/validation"
)

// AdminHandler serves the back-office screens: username sign-in, OTP-gated
// registration and the users table.
type AdminHandler struct {
	Identity *identity.Service
	Profiles *profile.Service
	OTP      *otp.Service
	Emails   *EmailHandler
	Cookies  *helpers.Manager
	Logger   *logrus.Logger
	Cfg      *config.Config
}

func NewAdminHandler(id *identity.Service, profiles *profile.Service, otpSvc *otp.Service, emails *EmailHandler, cookies *helpers.Manager, logger *logrus.Logger, cfg *config.Config) *AdminHandler {
	return &AdminHandler{Identity: id, Profiles: profiles, OTP: otpSvc, Emails: emails, Cookies: cookies, Logger: logger, Cfg: cfg}
}

type sendOTPRequest struct {
	Email string `json:"email"`
}

type adminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type adminRegisterRequest struct {
	Email           string `json:"email" binding:"required,email"`
	Username        string `json:"username" binding:"required,username"`
	Password        string `json:"password" binding:"required,pwd"`
	ConfirmPassword string `json:"confirm_password" binding:"required,eqfield=Password"`
	Role            string `json:"role" binding:"omitempty,roletag"`
	OTP             string `json:"otp" binding:"required,otpcode"`
}

// SendOTP POST /api/auth/otp/send
func (h *AdminHandler) SendOTP(c *gin.Context) {
	var req sendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	code, err := h.OTP.Send(c.Request.Context(), req.Email, otp.SendMeta{
		IP:        clientIP(c),
		UserAgent: c.GetHeader("User-Agent"),
		Geo:       h.Emails.geo(),
	})
	switch {
	case errors.Is(err, otp.ErrEmailRequired):
		response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
		return
	case errors.Is(err, otp.ErrEmailNotAllowed):
		response.Error[any](c, http.StatusForbidden, err.Error(), nil)
		return
	case err != nil:
		helpers.LogError(h.Logger, "otp send failed", err, nil)
		response.Error[any](c, http.StatusInternalServerError, "could not issue code", nil)
		return
	}
	data := gin.H{"sent": true}
	if code != "" {
		data["code"] = code
	}
	response.Success(c, http.StatusOK, data, "code sent", nil)
}

// Login POST /api/admin/login
func (h *AdminHandler) Login(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	ctx := c.Request.Context()
	gw := inprocess.New(h.Identity, h.Profiles)
	store := session.NewStore(gw, h.Logger)
	if err := store.Initialize(ctx); err != nil {
		response.Error[any](c, http.StatusInternalServerError, "session unavailable", nil)
		return
	}
	defer store.Close()

	if err := auth.NewService(gw, gw, h.Logger).SignIn(ctx, req.Username, req.Password); err != nil {
		if errors.Is(err, auth.ErrUnknownIdentifier) {
			response.Error[any](c, http.StatusUnauthorized, err.Error(), nil)
			return
		}
		response.Error[any](c, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error(), nil)
		return
	}
	p := store.Principal()
	pair, ok := gw.Tokens()
	if p == nil || !ok {
		response.Error[any](c, http.StatusInternalServerError, "session not established", nil)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	if prof, err := h.Profiles.Get(ctx, p.ID); err == nil {
		h.Emails.LoginNotification(c, prof)
	}
	response.Success(c, http.StatusOK, tokenBody{Principal: p, TokenPair: pair}, "signed in", nil)
}

// Register POST /api/admin/register
func (h *AdminHandler) Register(c *gin.Context) {
	var req adminRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	ctx := c.Request.Context()
	if err := h.OTP.Verify(ctx, req.Email, req.OTP); err != nil {
		if errors.Is(err, otp.ErrInvalidOTP) {
			response.Error[any](c, http.StatusBadRequest, err.Error(), nil)
			return
		}
		helpers.LogError(h.Logger, "otp verify failed", err, nil)
		response.Error[any](c, http.StatusInternalServerError, "could not verify code", nil)
		return
	}

	gw := inprocess.New(h.Identity, h.Profiles)
	svc := auth.NewService(gw, gw, h.Logger)
	if h.Cfg != nil && h.Cfg.RegisterCompensate {
		svc.WithCompensation(gw)
	}
	p, err := svc.Register(ctx, auth.RegisterInput{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
		Role:     entity.RoleTag(req.Role),
	})
	if err != nil {
		status, msg := registerErrorStatus(err)
		response.Error[any](c, status, msg, nil)
		return
	}
	h.Emails.AccountCreated(c, p)
	response.Success(c, http.StatusCreated, p, "account created", nil)
}

func registerErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, identity.ErrEmailTaken), errors.Is(err, profile.ErrUsernameTaken),
		errors.Is(err, profile.ErrProfileExists):
		return http.StatusConflict, err.Error()
	case errors.Is(err, identity.ErrEmailNotAllowed):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, identity.ErrInvalidEmail), errors.Is(err, helpers.ErrPasswordTooShort),
		errors.Is(err, profile.ErrUsernameTooShort):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, auth.ErrSignUpRejected):
		return http.StatusBadRequest, auth.ErrSignUpRejected.Error()
	case errors.Is(err, auth.ErrProfileCreationFailed):
		return http.StatusInternalServerError, auth.ErrProfileCreationFailed.Error()
	}
	return http.StatusInternalServerError, "internal error"
}

// Users GET /api/admin/users?role=&limit=&offset=
func (h *AdminHandler) Users(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	list, total, err := h.Profiles.List(c.Request.Context(), entity.ProfileFilter{
		Role:   entity.Role(c.Query("role")),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		status, msg := profileErrorStatus(err)
		response.Error[any](c, status, msg, nil)
		return
	}
	response.Success(c, http.StatusOK, list, "users", gin.H{"total": total, "limit": limit, "offset": offset})
}

// Search GET /api/admin/users/search?q=&size=
func (h *AdminHandler) Search(c *gin.Context) {
	size, _ := strconv.Atoi(c.DefaultQuery("size", "10"))
	found, err := h.Profiles.Search(c.Request.Context(), c.Query("q"), size)
	if err != nil {
		helpers.LogError(h.Logger, "profile search failed", err, nil)
		response.Error[any](c, http.StatusBadGateway, "search failed", nil)
		return
	}
	response.Success(c, http.StatusOK, found, "search results", nil)
}
