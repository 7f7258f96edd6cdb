// Package gatewaytest provides an in-memory hosted service for tests.
package gatewaytest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
	"github.com/oksasatya/ngo-backoffice/internal/domain/gateway"
)

var (
	ErrBadPassword = errors.New("invalid login credentials")
	ErrEmailTaken  = errors.New("user already registered")
)

type account struct {
	id       string
	password string
}

// Fake implements gateway.AuthService, gateway.DataService and
// gateway.IdentityRemover. Notifications are delivered synchronously.
// The exported error fields force the matching call to fail.
type Fake struct {
	SessionErr error
	LookupErr  error
	SignInErr  error
	SignOutErr error
	SignUpErr  error
	InsertErr  error
	DeleteErr  error

	mu        sync.Mutex
	accounts  map[string]account
	profiles  map[string]entity.AccountProfile
	current   *entity.Principal
	listeners map[int]gateway.SessionListener
	nextID    int
	calls     []string
	deleted   []string
}

func New() *Fake {
	return &Fake{
		accounts:  map[string]account{},
		profiles:  map[string]entity.AccountProfile{},
		listeners: map[int]gateway.SessionListener{},
	}
}

// AddUser seeds an identity and its profile.
func (f *Fake) AddUser(username, email, password string, role entity.Role) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.NewString()
	f.accounts[strings.ToLower(email)] = account{id: id, password: password}
	f.profiles[id] = entity.AccountProfile{ID: id, Email: email, Username: username, Role: role}
	return id
}

// SetSession sets the session returned by GetCurrentSession without notifying.
func (f *Fake) SetSession(p *entity.Principal) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = p
}

// Emit simulates a push notification from the service.
func (f *Fake) Emit(p *entity.Principal) {
	f.mu.Lock()
	f.current = p
	ls := f.snapshot()
	f.mu.Unlock()
	for _, fn := range ls {
		fn(p)
	}
}

func (f *Fake) Listeners() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.listeners)
}

func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *Fake) Deleted() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.deleted...)
}

func (f *Fake) Profile(id string) (entity.AccountProfile, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[id]
	return p, ok
}

func (f *Fake) HasIdentity(email string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.accounts[strings.ToLower(email)]
	return ok
}

func (f *Fake) GetCurrentSession(ctx context.Context) (*entity.Principal, error) {
	f.record("GetCurrentSession")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SessionErr != nil {
		return nil, f.SessionErr
	}
	return f.current, nil
}

func (f *Fake) OnSessionChange(fn gateway.SessionListener) gateway.Unsubscribe {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.listeners[id] = fn
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		delete(f.listeners, id)
		f.mu.Unlock()
	}
}

func (f *Fake) SignInWithPassword(ctx context.Context, email, password string) error {
	f.record("SignInWithPassword")
	f.mu.Lock()
	if f.SignInErr != nil {
		err := f.SignInErr
		f.mu.Unlock()
		return err
	}
	acc, ok := f.accounts[strings.ToLower(email)]
	if !ok || acc.password != password {
		f.mu.Unlock()
		return ErrBadPassword
	}
	p := &entity.Principal{ID: acc.id, Email: email}
	f.current = p
	ls := f.snapshot()
	f.mu.Unlock()
	for _, fn := range ls {
		fn(p)
	}
	return nil
}

func (f *Fake) SignOut(ctx context.Context) error {
	f.record("SignOut")
	f.mu.Lock()
	if f.SignOutErr != nil {
		err := f.SignOutErr
		f.mu.Unlock()
		return err
	}
	f.current = nil
	ls := f.snapshot()
	f.mu.Unlock()
	for _, fn := range ls {
		fn(nil)
	}
	return nil
}

func (f *Fake) SignUp(ctx context.Context, email, password string) (*entity.Principal, error) {
	f.record("SignUp")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SignUpErr != nil {
		return nil, f.SignUpErr
	}
	key := strings.ToLower(email)
	if _, ok := f.accounts[key]; ok {
		return nil, ErrEmailTaken
	}
	id := uuid.NewString()
	f.accounts[key] = account{id: id, password: password}
	return &entity.Principal{ID: id, Email: email}, nil
}

func (f *Fake) QueryEmailByUsername(ctx context.Context, username string) (string, error) {
	f.record("QueryEmailByUsername")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LookupErr != nil {
		return "", f.LookupErr
	}
	for _, p := range f.profiles {
		if p.Username == username {
			return p.Email, nil
		}
	}
	return "", gateway.ErrNotFound
}

func (f *Fake) InsertAccountProfile(ctx context.Context, p entity.AccountProfile) error {
	f.record("InsertAccountProfile")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InsertErr != nil {
		return f.InsertErr
	}
	f.profiles[p.ID] = p
	return nil
}

func (f *Fake) DeleteIdentity(ctx context.Context, id string) error {
	f.record("DeleteIdentity")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	for email, acc := range f.accounts {
		if acc.id == id {
			delete(f.accounts, email)
		}
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *Fake) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *Fake) snapshot() []gateway.SessionListener {
	out := make([]gateway.SessionListener, 0, len(f.listeners))
	for _, fn := range f.listeners {
		out = append(out, fn)
	}
	return out
}

var (
	_ gateway.AuthService     = (*Fake)(nil)
	_ gateway.DataService     = (*Fake)(nil)
	_ gateway.IdentityRemover = (*Fake)(nil)
)
