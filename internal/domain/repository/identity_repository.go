package repository

import (
	"context"
	"errors"

	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
	// ErrAlreadyExists is a primary key clash: a row with this id is already stored.
	ErrAlreadyExists = errors.New("already exists")
	// ErrMissingParent is returned when a row references an identity that does not exist.
	ErrMissingParent = errors.New("missing parent")
)

// IdentityRepository stores credentials behind principals.
type IdentityRepository interface {
	Create(ctx context.Context, i *entity.Identity) error
	GetByID(ctx context.Context, id string) (*entity.Identity, error)
	GetByEmail(ctx context.Context, email string) (*entity.Identity, error)
	Delete(ctx context.Context, id string) error
	// ListOrphaned returns identities that have no account profile.
	ListOrphaned(ctx context.Context) ([]*entity.Identity, error)
}
