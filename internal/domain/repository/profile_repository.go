package repository

import (
	"context"
	"time"

	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
)

// ProfileRepository stores account profiles.
type ProfileRepository interface {
	Create(ctx context.Context, p *entity.AccountProfile) error
	GetByID(ctx context.Context, id string) (*entity.AccountProfile, error)
	EmailByUsername(ctx context.Context, username string) (string, error)
	List(ctx context.Context, f entity.ProfileFilter) ([]*entity.AccountProfile, int, error)
	UpdateAvatar(ctx context.Context, id, url string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
}
