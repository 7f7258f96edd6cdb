package main

import (
	"context"
	"errors"
	"flag"
	"log"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/ngo-backoffice/config"
	"github.com/oksasatya/ngo-backoffice/internal/application/identity"
	"github.com/oksasatya/ngo-backoffice/internal/application/profile"
	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
	pginfra "github.com/oksasatya/ngo-backoffice/internal/infrastructure/postgres"
	"github.com/oksasatya/ngo-backoffice/pkg/helpers"
)

func main() {
	username := flag.String("username", "admin", "username of the seeded root admin")
	email := flag.String("email", "admin@example.com", "email of the seeded root admin")
	password := flag.String("password", "password123", "password of the seeded root admin")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env)
	ctx := context.Background()

	if err := pginfra.RunMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		log.Fatalf("migration failed: %v", err)
	}
	pool, err := pginfra.NewPool(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	identities := pginfra.NewIdentityRepository(pool)
	profiles := pginfra.NewProfileRepository(pool)
	idSvc := identity.NewService(identities, profiles, nil, nil, nil, logger, cfg.SessionTTL)
	profSvc := profile.NewService(profiles, nil, nil, "", logger)

	p, err := idSvc.SignUp(ctx, *email, *password)
	switch {
	case errors.Is(err, identity.ErrEmailTaken):
		existing, gerr := identities.GetByEmail(ctx, identity.NormalizeEmail(*email))
		if gerr != nil {
			log.Fatalf("failed to load existing identity: %v", gerr)
		}
		p = existing.Principal()
		logger.WithField("email", p.Email).Info("identity already present")
	case err != nil:
		log.Fatalf("failed to seed identity: %v", err)
	}

	_, err = profSvc.Insert(ctx, entity.AccountProfile{ID: p.ID, Email: p.Email, Username: *username, Role: entity.RoleRoot})
	if err != nil && !errors.Is(err, profile.ErrUsernameTaken) && !errors.Is(err, profile.ErrProfileExists) {
		log.Fatalf("failed to seed profile: %v", err)
	}
	logger.WithFields(logrus.Fields{"id": p.ID, "email": p.Email, "username": *username}).Info("seeded root admin")
}
