package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/oksasatya/ngo-backoffice/internal/domain/repository"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// mapErr translates driver errors into repository sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			if strings.HasSuffix(pgErr.ConstraintName, "_pkey") {
				return errors.Join(repository.ErrAlreadyExists, err)
			}
			return errors.Join(repository.ErrDuplicate, err)
		case pgForeignKeyViolation:
			return errors.Join(repository.ErrMissingParent, err)
		}
	}
	return err
}
