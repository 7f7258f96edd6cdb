package templates

import (
	"context"
	"strings"
	"time"

	"github.com/oksasatya/ngo-backoffice/config"
)

type Option func(*EmailData)

func WithIP(ip string) Option        { return func(d *EmailData) { d.IP = ip } }
func WithUserAgent(ua string) Option { return func(d *EmailData) { d.UserAgent = ua } }
func WithTime(t time.Time) Option {
	return func(d *EmailData) {
		utc := t.UTC()
		d.TimeAt = utc
		d.Time = utc.Format("02 January 2006, 15:04")
	}
}
func WithCode(code string) Option { return func(d *EmailData) { d.Code = code } }
func WithAccount(username, role string) Option {
	return func(d *EmailData) {
		d.Username = username
		d.Role = role
	}
}

func WithLocation(loc string) Option {
	return func(d *EmailData) {
		if s := strings.TrimSpace(loc); s != "" {
			d.Location = s
		}
	}
}

func WithGeoFromIP(ctx context.Context, r GeoResolver, ip string) Option {
	return func(d *EmailData) {
		if r == nil || strings.TrimSpace(ip) == "" {
			return
		}
		if g, err := r.Lookup(ctx, ip); err == nil {
			WithLocation(FormatGeo(g))(d)
		}
	}
}

func WithExpiresIn(dur time.Duration) Option {
	return func(d *EmailData) {
		utc := time.Now().Add(dur).UTC()
		d.ExpiresAt = utc
		d.ExpiresAtText = utc.Format("02 January 2006, 15:04")
	}
}

// NewBaseEmailData fills organisation fields from config, then applies opts.
func NewBaseEmailData(cfg *config.Config, typ string, name, email string, opts ...Option) EmailData {
	d := EmailData{
		Name:           name,
		Email:          email,
		RecipientEmail: email,
		Type:           typ,
	}
	if cfg != nil {
		d.CompanyName = cfg.CompanyName
		d.CompanyAddress = cfg.CompanyAddress
		d.AppName = cfg.AppName
		d.LogoURL = cfg.LogoURL
		d.SupportURL = cfg.SupportURL
		d.PrivacyURL = cfg.PrivacyURL
		d.AdminLoginURL = cfg.AdminLoginURL
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func NewRegisterOTPData(cfg *config.Config, email, code string, ttl time.Duration, opts ...Option) map[string]any {
	opts = append([]Option{WithCode(code), WithExpiresIn(ttl), WithTime(time.Now())}, opts...)
	return ToMap(NewBaseEmailData(cfg, RegisterOTP, "", email, opts...))
}

func NewAccountCreatedData(cfg *config.Config, email, username, role string, opts ...Option) map[string]any {
	opts = append([]Option{WithAccount(username, role), WithTime(time.Now())}, opts...)
	return ToMap(NewBaseEmailData(cfg, AccountCreated, username, email, opts...))
}

func NewLoginNotificationData(cfg *config.Config, email, username string, opts ...Option) map[string]any {
	return ToMap(NewBaseEmailData(cfg, LoginNotification, username, email, opts...))
}
