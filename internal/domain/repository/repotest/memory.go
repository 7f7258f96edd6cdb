// Package repotest holds in-memory repositories for service tests.
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
	repo "github.com/oksasatya/ngo-backoffice/internal/domain/repository"
)

// Store implements both IdentityRepository and ProfileRepository with the
// same constraints the SQL schema enforces.
type Store struct {
	mu         sync.Mutex
	identities map[string]*entity.Identity
	profiles   map[string]*entity.AccountProfile

	// CreateProfileErr, when set, is returned by the next profile Create.
	CreateProfileErr error
}

func NewStore() *Store {
	return &Store{
		identities: map[string]*entity.Identity{},
		profiles:   map[string]*entity.AccountProfile{},
	}
}

type Identities struct{ *Store }
type Profiles struct{ *Store }

func (s *Store) IdentityRepo() Identities { return Identities{s} }
func (s *Store) ProfileRepo() Profiles    { return Profiles{s} }

func (s *Store) IdentityCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.identities)
}

func (r Identities) Create(ctx context.Context, i *entity.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ex := range r.identities {
		if ex.Email == i.Email {
			return repo.ErrDuplicate
		}
	}
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	i.CreatedAt, i.UpdatedAt = now, now
	c := *i
	r.identities[i.ID] = &c
	return nil
}

func (r Identities) GetByID(ctx context.Context, id string) (*entity.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i, ok := r.identities[id]; ok {
		c := *i
		return &c, nil
	}
	return nil, repo.ErrNotFound
}

func (r Identities) GetByEmail(ctx context.Context, email string) (*entity.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, i := range r.identities {
		if i.Email == email {
			c := *i
			return &c, nil
		}
	}
	return nil, repo.ErrNotFound
}

func (r Identities) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.identities[id]; !ok {
		return repo.ErrNotFound
	}
	delete(r.identities, id)
	delete(r.profiles, id)
	return nil
}

func (r Identities) ListOrphaned(ctx context.Context) ([]*entity.Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Identity
	for id, i := range r.identities {
		if _, ok := r.profiles[id]; !ok {
			c := *i
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Email < out[b].Email })
	return out, nil
}

func (r Profiles) Create(ctx context.Context, p *entity.AccountProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.CreateProfileErr; err != nil {
		r.CreateProfileErr = nil
		return err
	}
	if _, ok := r.identities[p.ID]; !ok {
		return repo.ErrMissingParent
	}
	if _, ok := r.profiles[p.ID]; ok {
		return repo.ErrAlreadyExists
	}
	for _, ex := range r.profiles {
		if strings.EqualFold(ex.Username, p.Username) {
			return repo.ErrDuplicate
		}
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	c := *p
	r.profiles[p.ID] = &c
	return nil
}

func (r Profiles) GetByID(ctx context.Context, id string) (*entity.AccountProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.profiles[id]; ok {
		c := *p
		return &c, nil
	}
	return nil, repo.ErrNotFound
}

func (r Profiles) EmailByUsername(ctx context.Context, username string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.profiles {
		if p.Username == username {
			return p.Email, nil
		}
	}
	return "", repo.ErrNotFound
}

func (r Profiles) List(ctx context.Context, f entity.ProfileFilter) ([]*entity.AccountProfile, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []*entity.AccountProfile
	for _, p := range r.profiles {
		if f.Role != "" && p.Role != f.Role {
			continue
		}
		c := *p
		all = append(all, &c)
	}
	sort.Slice(all, func(a, b int) bool { return all[a].CreatedAt.After(all[b].CreatedAt) })
	total := len(all)
	if f.Offset > 0 {
		if f.Offset >= len(all) {
			all = nil
		} else {
			all = all[f.Offset:]
		}
	}
	if f.Limit > 0 && len(all) > f.Limit {
		all = all[:f.Limit]
	}
	return all, total, nil
}

func (r Profiles) UpdateAvatar(ctx context.Context, id, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[id]
	if !ok {
		return repo.ErrNotFound
	}
	p.AvatarURL = url
	return nil
}

func (r Profiles) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.profiles[id]; ok {
		t := at
		p.LastLogin = &t
	}
	return nil
}

var (
	_ repo.IdentityRepository = Identities{}
	_ repo.ProfileRepository  = Profiles{}
)
