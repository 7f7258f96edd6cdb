// Package gateway declares the calls the auth core makes against the hosted
// identity and data service. Adapters live under internal/infrastructure.
package gateway

import (
	"context"
	"errors"

	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
)

// ErrNotFound is returned by DataService lookups that match no record.
var ErrNotFound = errors.New("gateway: not found")

// Unsubscribe cancels a session-change subscription. It is safe to call more than once.
type Unsubscribe func()

// SessionListener receives the current principal, or nil once signed out.
type SessionListener func(p *entity.Principal)

// AuthService is the hosted identity API.
type AuthService interface {
	// GetCurrentSession returns nil, nil when no session exists.
	GetCurrentSession(ctx context.Context) (*entity.Principal, error)
	OnSessionChange(fn SessionListener) Unsubscribe
	SignInWithPassword(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
	SignUp(ctx context.Context, email, password string) (*entity.Principal, error)
}

// DataService is the hosted record storage API.
type DataService interface {
	QueryEmailByUsername(ctx context.Context, username string) (string, error)
	InsertAccountProfile(ctx context.Context, p entity.AccountProfile) error
}

// IdentityRemover deletes an identity. Only used for registration compensation.
type IdentityRemover interface {
	DeleteIdentity(ctx context.Context, id string) error
}
