package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
	"github.com/oksasatya/ngo-backoffice/internal/domain/repository"
)

type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(pool *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{pool: pool}
}

const profileColumns = `id, email, username, COALESCE(full_name, ''), role, COALESCE(avatar_url, ''), created_at, last_login`

// Create inserts the profile. The id must reference an existing identity.
func (r *ProfileRepository) Create(ctx context.Context, p *entity.AccountProfile) error {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO users (id, email, username, full_name, role)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		RETURNING created_at
	`, p.ID, p.Email, p.Username, p.FullName, string(p.Role))

	return mapErr(row.Scan(&p.CreatedAt))
}

func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*entity.AccountProfile, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+profileColumns+` FROM users WHERE id = $1`, id)
	p, err := scanProfile(row)
	if err != nil {
		return nil, mapErr(err)
	}
	return p, nil
}

// EmailByUsername expects at most one match; usernames are unique.
func (r *ProfileRepository) EmailByUsername(ctx context.Context, username string) (string, error) {
	var email string
	err := r.pool.QueryRow(ctx, `SELECT email FROM users WHERE username = $1`, username).Scan(&email)
	if err != nil {
		return "", mapErr(err)
	}
	return email, nil
}

func (r *ProfileRepository) List(ctx context.Context, f entity.ProfileFilter) ([]*entity.AccountProfile, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM users WHERE ($1 = '' OR role = $1)
	`, string(f.Role)).Scan(&total); err != nil {
		return nil, 0, mapErr(err)
	}

	rows, err := r.pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM users
		WHERE ($1 = '' OR role = $1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, string(f.Role), f.Limit, f.Offset)
	if err != nil {
		return nil, 0, mapErr(err)
	}
	defer rows.Close()

	out := make([]*entity.AccountProfile, 0, f.Limit)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

func (r *ProfileRepository) UpdateAvatar(ctx context.Context, id, url string) error {
	res, err := r.pool.Exec(ctx, `UPDATE users SET avatar_url = $1, updated_at = now() WHERE id = $2`, url, id)
	if err != nil {
		return mapErr(err)
	}
	if res.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *ProfileRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, at, id)
	return mapErr(err)
}

func scanProfile(row pgx.Row) (*entity.AccountProfile, error) {
	p := &entity.AccountProfile{}
	var role string
	if err := row.Scan(&p.ID, &p.Email, &p.Username, &p.FullName, &role, &p.AvatarURL, &p.CreatedAt, &p.LastLogin); err != nil {
		return nil, err
	}
	p.Role = entity.Role(role)
	return p, nil
}

var _ repository.ProfileRepository = (*ProfileRepository)(nil)
