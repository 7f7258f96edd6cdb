package identity

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
	repo "github.com/oksasatya/ngo-backoffice/internal/domain/repository"
	"github.com/oksasatya/ngo-backoffice/pkg/helpers"
)

var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrInvalidEmail       = errors.New("invalid email address")
	ErrEmailTaken         = errors.New("email already registered")
	ErrNoSession          = errors.New("no active session")
	ErrIdentityNotFound   = errors.New("identity not found")
	ErrEmailNotAllowed    = errors.New("email is not allowed to sign up")
)

// EventPublisher fans session events out to listeners of a principal.
type EventPublisher interface {
	Publish(ctx context.Context, ev entity.SessionEvent) error
}

// Service is the hosted identity side: it owns credentials and sessions.
type Service struct {
	Identities repo.IdentityRepository
	Profiles   repo.ProfileRepository // optional; used to record last login
	JWT        *helpers.JWTManager
	Redis      *redis.Client
	Events     EventPublisher // optional
	Logger     *logrus.Logger
	SessionTTL time.Duration
	// With RestrictSignUp set, only the lower-cased addresses in Allowlist may
	// sign up; an empty list refuses everyone. Unset, sign-up is open (seed, tests).
	RestrictSignUp bool
	Allowlist      []string

	validate *validator.Validate
	now      func() time.Time
}

type TokenPair struct {
	AccessToken        string    `json:"access_token"`
	AccessTokenExpiry  time.Time `json:"access_expires_at"`
	RefreshToken       string    `json:"refresh_token"`
	RefreshTokenExpiry time.Time `json:"refresh_expires_at"`
	SessionID          string    `json:"session_id"`
}

func NewService(identities repo.IdentityRepository, profiles repo.ProfileRepository, jwt *helpers.JWTManager, rdb *redis.Client, events EventPublisher, logger *logrus.Logger, sessionTTL time.Duration) *Service {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	return &Service{
		Identities: identities,
		Profiles:   profiles,
		JWT:        jwt,
		Redis:      rdb,
		Events:     events,
		Logger:     logger,
		SessionTTL: sessionTTL,
		validate:   validator.New(),
		now:        time.Now,
	}
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// SignUp creates a new identity. It does not start a session.
func (s *Service) SignUp(ctx context.Context, email, password string) (*entity.Principal, error) {
	email = NormalizeEmail(email)
	if err := s.validate.Var(email, "required,email"); err != nil {
		return nil, ErrInvalidEmail
	}
	if s.RestrictSignUp && !slices.Contains(s.Allowlist, email) {
		return nil, ErrEmailNotAllowed
	}
	hash, err := helpers.HashPassword(password)
	if err != nil {
		return nil, err
	}
	id := &entity.Identity{Email: email, PasswordHash: hash}
	if err := s.Identities.Create(ctx, id); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	if s.Logger != nil {
		s.Logger.WithField("principal_id", id.ID).Info("identity created")
	}
	return id.Principal(), nil
}

// SignInWithPassword checks the credentials, starts a session and issues tokens.
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (*entity.Principal, TokenPair, error) {
	id, err := s.Identities.GetByEmail(ctx, NormalizeEmail(email))
	if err != nil || id == nil {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	if !helpers.CompareHashAndPassword(id.PasswordHash, password) {
		return nil, TokenPair{}, ErrInvalidCredentials
	}

	pair, err := s.startSession(ctx, id.Principal())
	if err != nil {
		return nil, TokenPair{}, err
	}
	if s.Profiles != nil {
		if err := s.Profiles.TouchLastLogin(ctx, id.ID, s.now().UTC()); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("principal_id", id.ID).Warn("last login update failed")
		}
	}
	s.publish(ctx, entity.SessionSignedIn, id.Principal(), pair.SessionID)
	return id.Principal(), pair, nil
}

// Refresh rotates the session id and both tokens.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*entity.Principal, TokenPair, error) {
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return nil, TokenPair{}, ErrInvalidCredentials
	}
	if !s.sessionMatches(ctx, claims.UserID, claims.SessionID) {
		return nil, TokenPair{}, ErrNoSession
	}
	p := &entity.Principal{ID: claims.UserID, Email: claims.Email}
	pair, err := s.startSession(ctx, p)
	if err != nil {
		return nil, TokenPair{}, err
	}
	s.publish(ctx, entity.SessionTokenRefreshed, p, pair.SessionID)
	return p, pair, nil
}

// Session returns the principal behind a live access token.
func (s *Service) Session(ctx context.Context, accessToken string) (*entity.Principal, error) {
	if accessToken == "" {
		return nil, ErrNoSession
	}
	claims, err := s.JWT.ParseAccessToken(accessToken)
	if err != nil {
		return nil, ErrNoSession
	}
	if !s.sessionMatches(ctx, claims.UserID, claims.SessionID) {
		return nil, ErrNoSession
	}
	return &entity.Principal{ID: claims.UserID, Email: claims.Email}, nil
}

// SignOut ends the principal's session. Ending a missing session is not an error.
func (s *Service) SignOut(ctx context.Context, p *entity.Principal) error {
	if p == nil || p.ID == "" {
		return nil
	}
	n, err := s.Redis.Del(ctx, helpers.SessionKey(p.ID)).Result()
	if err != nil {
		return err
	}
	if n > 0 {
		s.publish(ctx, entity.SessionSignedOut, p, "")
	}
	return nil
}

// DeleteIdentity removes an identity and any live session it has.
func (s *Service) DeleteIdentity(ctx context.Context, id string) error {
	ident, err := s.Identities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrIdentityNotFound
		}
		return err
	}
	if err := s.SignOut(ctx, ident.Principal()); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("principal_id", id).Warn("session cleanup failed")
	}
	if err := s.Identities.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrIdentityNotFound
		}
		return err
	}
	if s.Logger != nil {
		s.Logger.WithField("principal_id", id).Warn("identity deleted")
	}
	return nil
}

// Orphans lists identities that never received an account profile.
func (s *Service) Orphans(ctx context.Context) ([]*entity.Identity, error) {
	return s.Identities.ListOrphaned(ctx)
}

func (s *Service) startSession(ctx context.Context, p *entity.Principal) (TokenPair, error) {
	sid := uuid.NewString()
	access, aexp, err := s.JWT.GenerateAccessToken(p.ID, p.Email, sid)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("principal_id", p.ID).Error("generate access token failed")
		}
		return TokenPair{}, err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(p.ID, p.Email, sid)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("principal_id", p.ID).Error("generate refresh token failed")
		}
		return TokenPair{}, err
	}

	key := helpers.SessionKey(p.ID)
	pipe := s.Redis.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"user_id":    p.ID,
		"email":      p.Email,
		"sid":        sid,
		"created_at": s.now().UTC().Format(time.RFC3339Nano),
	})
	pipe.Expire(ctx, key, s.SessionTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp, SessionID: sid}, nil
}

func (s *Service) sessionMatches(ctx context.Context, userID, sid string) bool {
	got, err := s.Redis.HGet(ctx, helpers.SessionKey(userID), "sid").Result()
	return err == nil && got != "" && got == sid
}

func (s *Service) publish(ctx context.Context, typ entity.SessionEventType, p *entity.Principal, sid string) {
	if s.Events == nil {
		return
	}
	ev := entity.SessionEvent{Type: typ, UserID: p.ID, Email: p.Email, SessionID: sid, At: s.now().UTC()}
	if err := s.Events.Publish(ctx, ev); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("event", typ).Warn("session event publish failed")
	}
}
