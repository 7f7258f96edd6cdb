package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
	"github.com/oksasatya/ngo-backoffice/internal/domain/gateway"
)

var (
	// ErrUnknownIdentifier covers both "no such username" and a failed lookup.
	ErrUnknownIdentifier     = errors.New("invalid username")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrSignUpRejected        = errors.New("sign up rejected")
	ErrProfileCreationFailed = errors.New("profile creation failed")
)

// Service signs admins in by username and registers new admin accounts
// against the hosted identity and data services.
type Service struct {
	Auth   gateway.AuthService
	Data   gateway.DataService
	Logger *logrus.Logger

	// Remover, when set together with Compensate, deletes the identity created
	// by a registration whose profile insert failed.
	Remover    gateway.IdentityRemover
	Compensate bool
}

func NewService(auth gateway.AuthService, data gateway.DataService, logger *logrus.Logger) *Service {
	return &Service{Auth: auth, Data: data, Logger: logger}
}

// WithCompensation enables best-effort deletion of orphaned identities.
func (s *Service) WithCompensation(r gateway.IdentityRemover) *Service {
	s.Remover = r
	s.Compensate = r != nil
	return s
}

// SignIn resolves the username to its email and then signs in with the
// password. The new principal is not returned; session holders observe it
// through their subscription.
func (s *Service) SignIn(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return ErrUnknownIdentifier
	}
	if password == "" {
		return ErrInvalidCredentials
	}

	email, err := s.Data.QueryEmailByUsername(ctx, username)
	if err != nil || email == "" {
		if s.Logger != nil && err != nil && !errors.Is(err, gateway.ErrNotFound) {
			s.Logger.WithError(err).WithField("username", username).Warn("username lookup failed")
		}
		return ErrUnknownIdentifier
	}

	if err := s.Auth.SignInWithPassword(ctx, email, password); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCredentials, err)
	}
	return nil
}

// SignOut ends the current session. Signing out without a session is not an error.
func (s *Service) SignOut(ctx context.Context) error {
	return s.Auth.SignOut(ctx)
}

type RegisterInput struct {
	Email    string
	Username string
	Password string
	Role     entity.RoleTag
}

// Register creates the identity and then its account profile. The two steps
// are not atomic: when the profile insert fails the identity is left in place
// unless compensation is enabled.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*entity.AccountProfile, error) {
	p, err := s.Auth.SignUp(ctx, in.Email, in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignUpRejected, err)
	}
	if p == nil || p.ID == "" {
		return nil, fmt.Errorf("%w: no principal returned", ErrSignUpRejected)
	}

	profile := entity.AccountProfile{
		ID:       p.ID,
		Email:    in.Email,
		Username: in.Username,
		Role:     entity.ResolveRole(in.Role),
	}
	if err := s.Data.InsertAccountProfile(ctx, profile); err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithFields(logrus.Fields{
				"principal_id": p.ID,
				"email":        in.Email,
				"compensate":   s.Compensate,
			}).Error("profile insert failed after sign up")
		}
		s.compensate(ctx, p.ID)
		return nil, fmt.Errorf("%w: %w", ErrProfileCreationFailed, err)
	}
	return &profile, nil
}

func (s *Service) compensate(ctx context.Context, principalID string) {
	if !s.Compensate || s.Remover == nil {
		return
	}
	if err := s.Remover.DeleteIdentity(ctx, principalID); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("principal_id", principalID).Error("compensating identity delete failed")
	}
}
