package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/ngo-backoffice/internal/application/profile"
	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
	"github.com/oksasatya/ngo-backoffice/internal/interface/middleware"
	"github.com/oksasatya/ngo-backoffice/pkg/helpers"
	"github.com/oksasatya/ngo-backoffice/pkg/response"
	"github.com/oksasatya/ngo-backoffice/pkg/validation"
)

const maxAvatarBytes = 5 << 20

// ProfileHandler is the data side: username lookup and account profile records.
type ProfileHandler struct {
	Profiles *profile.Service
	Logger   *logrus.Logger
}

func NewProfileHandler(profiles *profile.Service, logger *logrus.Logger) *ProfileHandler {
	return &ProfileHandler{Profiles: profiles, Logger: logger}
}

type createProfileRequest struct {
	ID       string `json:"id" binding:"required,uuid"`
	Email    string `json:"email" binding:"required,email"`
	Username string `json:"username" binding:"required,username"`
	FullName string `json:"full_name" binding:"max=200"`
	Role     string `json:"role" binding:"omitempty,profilerole"`
}

// EmailByUsername GET /api/profiles/email?username=
func (h *ProfileHandler) EmailByUsername(c *gin.Context) {
	username := strings.TrimSpace(c.Query("username"))
	if username == "" {
		response.Error[any](c, http.StatusBadRequest, "username is required", nil)
		return
	}
	email, err := h.Profiles.EmailByUsername(c.Request.Context(), username)
	if err != nil {
		if errors.Is(err, profile.ErrProfileNotFound) {
			response.Error[any](c, http.StatusNotFound, err.Error(), nil)
			return
		}
		helpers.LogError(h.Logger, "username lookup failed", err, nil)
		response.Error[any](c, http.StatusInternalServerError, "lookup failed", nil)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"email": email}, "email", nil)
}

// Create POST /api/profiles; callers may only create their own profile.
func (h *ProfileHandler) Create(c *gin.Context) {
	var req createProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if req.ID != c.GetString(middleware.CtxUserIDKey) {
		response.Error[any](c, http.StatusForbidden, "profile id must match the signed-in principal", nil)
		return
	}
	p, err := h.Profiles.Insert(c.Request.Context(), entity.AccountProfile{
		ID:       req.ID,
		Email:    req.Email,
		Username: req.Username,
		FullName: req.FullName,
		Role:     entity.Role(req.Role),
	})
	if err != nil {
		status, msg := profileErrorStatus(err)
		if status == http.StatusInternalServerError {
			helpers.LogError(h.Logger, "profile insert failed", err, logrus.Fields{"user_id": req.ID})
		}
		response.Error[any](c, status, msg, nil)
		return
	}
	response.Success(c, http.StatusCreated, p, "profile created", nil)
}

// Me GET /api/profiles/me
func (h *ProfileHandler) Me(c *gin.Context) {
	p, err := h.Profiles.Get(c.Request.Context(), c.GetString(middleware.CtxUserIDKey))
	if err != nil {
		status, msg := profileErrorStatus(err)
		response.Error[any](c, status, msg, nil)
		return
	}
	response.Success(c, http.StatusOK, p, "profile", nil)
}

// UploadAvatar PUT /api/profiles/me/avatar (multipart field "avatar")
func (h *ProfileHandler) UploadAvatar(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxAvatarBytes+1<<10)
	fh, err := c.FormFile("avatar")
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "avatar file is required", nil)
		return
	}
	if fh.Size > maxAvatarBytes {
		response.Error[any](c, http.StatusRequestEntityTooLarge, "avatar too large", nil)
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "unreadable file", nil)
		return
	}
	defer func() { _ = f.Close() }()

	uid := c.GetString(middleware.CtxUserIDKey)
	url, err := h.Profiles.UploadAvatar(c.Request.Context(), uid, f, fh.Header.Get("Content-Type"))
	if err != nil {
		status, msg := profileErrorStatus(err)
		if status == http.StatusInternalServerError {
			helpers.LogError(h.Logger, "avatar upload failed", err, logrus.Fields{"user_id": uid})
		}
		response.Error[any](c, status, msg, nil)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"avatar_url": url}, "avatar updated", nil)
}

func profileErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, profile.ErrProfileNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, profile.ErrUsernameTaken), errors.Is(err, profile.ErrProfileExists):
		return http.StatusConflict, err.Error()
	case errors.Is(err, profile.ErrIdentityMissing):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, profile.ErrUsernameTooShort), errors.Is(err, profile.ErrInvalidRole),
		errors.Is(err, profile.ErrUnsupportedImage):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, profile.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, err.Error()
	}
	return http.StatusInternalServerError, "internal error"
}
