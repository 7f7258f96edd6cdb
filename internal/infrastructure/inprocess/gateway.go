// Package inprocess adapts the identity and profile services to the gateway
// ports so the admin sign-in and registration flows can run inside the
// server for a single request.
package inprocess

import (
	"context"
	"errors"
	"sync"

	"github.com/oksasatya/ngo-backoffice/internal/application/identity"
	"github.com/oksasatya/ngo-backoffice/internal/application/profile"
	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
	"github.com/oksasatya/ngo-backoffice/internal/domain/gateway"
)

// Gateway holds at most one session: the one started through it. It is not
// shared across requests.
type Gateway struct {
	identity *identity.Service
	profiles *profile.Service

	mu        sync.Mutex
	principal *entity.Principal
	tokens    *identity.TokenPair
	listeners map[int]gateway.SessionListener
	nextID    int
}

func New(id *identity.Service, profiles *profile.Service) *Gateway {
	return &Gateway{identity: id, profiles: profiles, listeners: map[int]gateway.SessionListener{}}
}

// WithPrincipal seeds the session of an already authenticated caller.
func (g *Gateway) WithPrincipal(p *entity.Principal) *Gateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	if p != nil {
		c := *p
		g.principal = &c
	}
	return g
}

// Tokens returns the pair issued by the last successful sign-in.
func (g *Gateway) Tokens() (identity.TokenPair, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.tokens == nil {
		return identity.TokenPair{}, false
	}
	return *g.tokens, true
}

func (g *Gateway) GetCurrentSession(ctx context.Context) (*entity.Principal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.principal == nil {
		return nil, nil
	}
	c := *g.principal
	return &c, nil
}

func (g *Gateway) OnSessionChange(fn gateway.SessionListener) gateway.Unsubscribe {
	g.mu.Lock()
	id := g.nextID
	g.nextID++
	g.listeners[id] = fn
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.listeners, id)
			g.mu.Unlock()
		})
	}
}

func (g *Gateway) SignInWithPassword(ctx context.Context, email, password string) error {
	p, pair, err := g.identity.SignInWithPassword(ctx, email, password)
	if err != nil {
		return err
	}
	g.mu.Lock()
	g.principal = p
	g.tokens = &pair
	g.mu.Unlock()
	g.notify(p)
	return nil
}

func (g *Gateway) SignOut(ctx context.Context) error {
	g.mu.Lock()
	p := g.principal
	g.mu.Unlock()
	if p == nil {
		return nil
	}
	if err := g.identity.SignOut(ctx, p); err != nil {
		return err
	}
	g.mu.Lock()
	g.principal = nil
	g.tokens = nil
	g.mu.Unlock()
	g.notify(nil)
	return nil
}

func (g *Gateway) SignUp(ctx context.Context, email, password string) (*entity.Principal, error) {
	return g.identity.SignUp(ctx, email, password)
}

func (g *Gateway) QueryEmailByUsername(ctx context.Context, username string) (string, error) {
	email, err := g.profiles.EmailByUsername(ctx, username)
	if errors.Is(err, profile.ErrProfileNotFound) {
		return "", gateway.ErrNotFound
	}
	return email, err
}

func (g *Gateway) InsertAccountProfile(ctx context.Context, p entity.AccountProfile) error {
	_, err := g.profiles.Insert(ctx, p)
	return err
}

func (g *Gateway) DeleteIdentity(ctx context.Context, id string) error {
	return g.identity.DeleteIdentity(ctx, id)
}

func (g *Gateway) notify(p *entity.Principal) {
	g.mu.Lock()
	ls := make([]gateway.SessionListener, 0, len(g.listeners))
	for _, fn := range g.listeners {
		ls = append(ls, fn)
	}
	g.mu.Unlock()
	for _, fn := range ls {
		var c *entity.Principal
		if p != nil {
			cp := *p
			c = &cp
		}
		fn(c)
	}
}

var (
	_ gateway.AuthService     = (*Gateway)(nil)
	_ gateway.DataService     = (*Gateway)(nil)
	_ gateway.IdentityRemover = (*Gateway)(nil)
)
