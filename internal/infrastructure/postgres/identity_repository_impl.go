package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
	"github.com/oksasatya/ngo-backoffice/internal/domain/repository"
)

type IdentityRepository struct {
	pool *pgxpool.Pool
}

func NewIdentityRepository(pool *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

func (r *IdentityRepository) Create(ctx context.Context, i *entity.Identity) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO auth_identities (email, password_hash)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at
	`, i.Email, i.PasswordHash)

	return mapErr(row.Scan(&i.ID, &i.CreatedAt, &i.UpdatedAt))
}

func (r *IdentityRepository) GetByID(ctx context.Context, id string) (*entity.Identity, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *IdentityRepository) GetByEmail(ctx context.Context, email string) (*entity.Identity, error) {
	return r.getOne(ctx, `WHERE email = $1`, email)
}

func (r *IdentityRepository) getOne(ctx context.Context, where string, arg any) (*entity.Identity, error) {
	i := &entity.Identity{}
	row := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, created_at, updated_at
		FROM auth_identities
		`+where, arg)
	if err := row.Scan(&i.ID, &i.Email, &i.PasswordHash, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, mapErr(err)
	}
	return i, nil
}

func (r *IdentityRepository) Delete(ctx context.Context, id string) error {
	res, err := r.pool.Exec(ctx, `DELETE FROM auth_identities WHERE id = $1`, id)
	if err != nil {
		return mapErr(err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *IdentityRepository) ListOrphaned(ctx context.Context) ([]*entity.Identity, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT i.id, i.email, i.created_at, i.updated_at
		FROM auth_identities i
		LEFT JOIN users u ON u.id = i.id
		WHERE u.id IS NULL
		ORDER BY i.created_at
	`)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*entity.Identity
	for rows.Next() {
		i := &entity.Identity{}
		if err := rows.Scan(&i.ID, &i.Email, &i.CreatedAt, &i.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, rows.Err()
}

var _ repository.IdentityRepository = (*IdentityRepository)(nil)
