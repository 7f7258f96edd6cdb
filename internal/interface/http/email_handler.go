package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/ngo-backoffice/config"
	"github.com/oksasatya/ngo-backoffice/internal/application/otp"
	"github.com/oksasatya/ngo-backoffice/internal/application/profile"
	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
	"github.com/oksasatya/ngo-backoffice/pkg/mailer"
	tpl "github.com/oksasatya/ngo-backoffice/pkg/mailer/templates"
	"github.com/oksasatya/ngo-backoffice/pkg/response"
)

// EmailHandler enqueues account emails on the worker queue.
type EmailHandler struct {
	Pub      otp.JobPublisher
	Profiles *profile.Service
	Geo      tpl.GeoResolver
	Logger   *logrus.Logger
	Cfg      *config.Config
}

func NewEmailHandler(pub otp.JobPublisher, profiles *profile.Service, geo tpl.GeoResolver, logger *logrus.Logger, cfg *config.Config) *EmailHandler {
	return &EmailHandler{Pub: pub, Profiles: profiles, Geo: geo, Logger: logger, Cfg: cfg}
}

// Enqueue reports whether the job was put on the queue. Sending disabled or
// a missing publisher is not an error.
func (h *EmailHandler) Enqueue(ctx context.Context, job mailer.EmailJob) bool {
	if h == nil || h.Pub == nil || h.Cfg == nil || !h.Cfg.MailSendEnabled {
		return false
	}
	if err := h.Pub.PublishJSON(ctx, job); err != nil {
		if h.Logger != nil {
			h.Logger.WithError(err).WithField("template", job.Template).Warn("failed to publish email job")
		}
		return false
	}
	return true
}

// AccountCreated queues the welcome email for a new profile.
func (h *EmailHandler) AccountCreated(c *gin.Context, p *entity.AccountProfile) bool {
	if p == nil {
		return false
	}
	ip := clientIP(c)
	data := tpl.NewAccountCreatedData(h.Cfg, p.Email, p.Username, p.Role.String(),
		tpl.WithIP(ip),
		tpl.WithUserAgent(c.GetHeader("User-Agent")),
		tpl.WithGeoFromIP(c.Request.Context(), h.Geo, ip),
	)
	return h.Enqueue(c.Request.Context(), mailer.EmailJob{To: p.Email, Template: tpl.AccountCreated, Data: data})
}

// LoginNotification queues the new sign-in notice.
func (h *EmailHandler) LoginNotification(c *gin.Context, p *entity.AccountProfile) bool {
	if p == nil {
		return false
	}
	ip := clientIP(c)
	data := tpl.NewLoginNotificationData(h.Cfg, p.Email, p.Username,
		tpl.WithTime(time.Now()),
		tpl.WithIP(ip),
		tpl.WithUserAgent(c.GetHeader("User-Agent")),
		tpl.WithGeoFromIP(c.Request.Context(), h.Geo, ip),
	)
	return h.Enqueue(c.Request.Context(), mailer.EmailJob{To: p.Email, Template: tpl.LoginNotification, Data: data})
}

// ResendWelcome POST /api/admin/users/:id/welcome
func (h *EmailHandler) ResendWelcome(c *gin.Context) {
	p, err := h.Profiles.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		status, msg := profileErrorStatus(err)
		response.Error[any](c, status, msg, nil)
		return
	}
	if h.Cfg != nil && !h.Cfg.MailSendEnabled {
		response.Success[any](c, http.StatusAccepted, map[string]any{"enqueued": false, "disabled": true}, "email sending disabled", nil)
		return
	}
	if !h.AccountCreated(c, p) {
		response.Error[any](c, http.StatusInternalServerError, "failed to enqueue", nil)
		return
	}
	response.Success[any](c, http.StatusAccepted, map[string]any{"enqueued": true}, "email enqueued", nil)
}

func (h *EmailHandler) geo() tpl.GeoResolver {
	if h == nil {
		return nil
	}
	return h.Geo
}
