package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/ngo-backoffice/config"
	"github.com/oksasatya/ngo-backoffice/pkg/helpers"
	"github.com/oksasatya/ngo-backoffice/pkg/mailer"
	tpl "github.com/oksasatya/ngo-backoffice/pkg/mailer/templates"
)

// MaxAttempts is the number of wrong codes tolerated before the pending code is dropped.
const MaxAttempts = 5

var (
	ErrEmailRequired   = errors.New("email is required")
	ErrEmailNotAllowed = errors.New("email is not allowed to register")
	ErrInvalidOTP      = errors.New("invalid or expired code")
)

// JobPublisher enqueues email jobs. helpers.RabbitPublisher satisfies it.
type JobPublisher interface {
	PublishJSON(ctx context.Context, body any) error
}

type Service struct {
	Redis     *redis.Client
	Pub       JobPublisher // optional
	Cfg       *config.Config
	Logger    *logrus.Logger
	Allowlist []string
	TTL       time.Duration

	genCode func() (string, error)
}

func NewService(rdb *redis.Client, pub JobPublisher, cfg *config.Config, logger *logrus.Logger) *Service {
	ttl := cfg.OTPTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Service{
		Redis:     rdb,
		Pub:       pub,
		Cfg:       cfg,
		Logger:    logger,
		Allowlist: cfg.RegisterAllowlist(),
		TTL:       ttl,
		genCode:   helpers.GenOTPCode,
	}
}

// SendMeta carries request details rendered into the email.
type SendMeta struct {
	IP        string
	UserAgent string
	Geo       tpl.GeoResolver
}

// Send issues a registration code for email and enqueues it for delivery.
// The code is returned only in development; callers must not expose it otherwise.
func (s *Service) Send(ctx context.Context, email string, meta SendMeta) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", ErrEmailRequired
	}
	if !s.allowed(email) {
		return "", ErrEmailNotAllowed
	}

	code, err := s.genCode()
	if err != nil {
		return "", err
	}
	pipe := s.Redis.TxPipeline()
	pipe.Set(ctx, helpers.KeyRegisterOTP(email), code, s.TTL)
	pipe.Del(ctx, helpers.KeyRegisterOTPAttempts(email))
	if _, err := pipe.Exec(ctx); err != nil {
		return "", err
	}

	if s.Pub != nil && s.Cfg.MailSendEnabled {
		data := tpl.NewRegisterOTPData(s.Cfg, email, code, s.TTL,
			tpl.WithIP(meta.IP),
			tpl.WithUserAgent(meta.UserAgent),
			tpl.WithGeoFromIP(ctx, meta.Geo, meta.IP),
		)
		job := mailer.EmailJob{To: email, Template: tpl.RegisterOTP, Data: data}
		if err := s.Pub.PublishJSON(ctx, job); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("email", email).Warn("enqueue otp email failed")
		}
	}
	if s.Logger != nil {
		s.Logger.WithField("email", email).Info("registration code issued")
	}

	if s.Cfg.IsDevelopment() {
		return code, nil
	}
	return "", nil
}

// Verify consumes the pending code for email. A code verifies at most once.
func (s *Service) Verify(ctx context.Context, email, code string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	code = strings.TrimSpace(code)
	if email == "" || code == "" {
		return ErrInvalidOTP
	}
	key := helpers.KeyRegisterOTP(email)
	want, err := s.Redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return ErrInvalidOTP
	}
	if err != nil {
		return err
	}

	if subtle.ConstantTimeCompare([]byte(want), []byte(code)) != 1 {
		attemptsKey := helpers.KeyRegisterOTPAttempts(email)
		n, aErr := s.Redis.Incr(ctx, attemptsKey).Result()
		if aErr == nil {
			if n == 1 {
				s.Redis.Expire(ctx, attemptsKey, s.TTL)
			}
			if n >= MaxAttempts {
				s.Redis.Del(ctx, key, attemptsKey)
			}
		}
		return ErrInvalidOTP
	}

	// Del reports 0 when a concurrent Verify consumed the code first.
	n, err := s.Redis.Del(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrInvalidOTP
	}
	s.Redis.Del(ctx, helpers.KeyRegisterOTPAttempts(email))
	return nil
}

// allowed fails closed: an empty allowlist refuses every address.
func (s *Service) allowed(email string) bool {
	return len(s.Allowlist) > 0 && slices.Contains(s.Allowlist, email)
}
