package router

import (
	"github.com/oksasatya/ngo-backoffice/internal/application/identity"
	"github.com/oksasatya/ngo-backoffice/internal/application/otp"
	"github.com/oksasatya/ngo-backoffice/internal/application/profile"
	"github.com/oksasatya/ngo-backoffice/internal/container"
	"github.com/oksasatya/ngo-backoffice/internal/infrastructure/objectstore"
	pginfra "github.com/oksasatya/ngo-backoffice/internal/infrastructure/postgres"
	"github.com/oksasatya/ngo-backoffice/internal/infrastructure/sessionbus"
	handlers "github.com/oksasatya/ngo-backoffice/internal/interface/http"
	"github.com/oksasatya/ngo-backoffice/internal/router/modules"
	"github.com/oksasatya/ngo-backoffice/pkg/helpers"
)

// Deps groups the services and handlers built from the container.
type Deps struct {
	Identity *identity.Service
	Profiles *profile.Service
	OTP      *otp.Service

	Auth    *handlers.AuthHandler
	Stream  *handlers.StreamHandler
	Profile *handlers.ProfileHandler
	Email   *handlers.EmailHandler
	Admin   *handlers.AdminHandler
}

func buildDeps() Deps {
	cfg := container.GetConfig()
	logger := container.GetLogger()
	rdb := container.GetRedis()
	pool := container.GetPGPool()

	bus := sessionbus.New(rdb, logger)
	profileRepo := pginfra.NewProfileRepository(pool)

	var objects profile.ObjectStore
	if gcs := objectstore.NewGCS(container.GetGCS(), cfg.GCSBucket); gcs != nil {
		objects = gcs
	}
	var pub otp.JobPublisher
	if p := container.GetRabbitPub(); p != nil {
		pub = p
	}

	idSvc := identity.NewService(
		pginfra.NewIdentityRepository(pool),
		profileRepo,
		container.GetJWT(),
		rdb,
		bus,
		logger,
		cfg.SessionTTL,
	)
	idSvc.RestrictSignUp = true
	idSvc.Allowlist = cfg.RegisterAllowlist()
	profileSvc := profile.NewService(profileRepo, objects, container.GetES(), cfg.ESProfilesIndex, logger)
	otpSvc := otp.NewService(rdb, pub, cfg, logger)

	cookies := helpers.NewCookie(cfg.CookieDomain, cfg.CookieSecure)
	emails := handlers.NewEmailHandler(pub, profileSvc, container.GetGeo(), logger, cfg)

	return Deps{
		Identity: idSvc,
		Profiles: profileSvc,
		OTP:      otpSvc,
		Auth:     handlers.NewAuthHandler(idSvc, cookies, logger),
		Stream:   handlers.NewStreamHandler(bus, logger, cfg.CORSOrigins()),
		Profile:  handlers.NewProfileHandler(profileSvc, logger),
		Email:    emails,
		Admin:    handlers.NewAdminHandler(idSvc, profileSvc, otpSvc, emails, cookies, logger, cfg),
	}
}

// InitModules initializes all application modules and registers them with the router registry
// This function should be called once during application startup to wire up all modules
func InitModules(r *Registry) {
	d := buildDeps()
	r.Add(modules.NewAuthModule(d.Auth, d.Stream, d.Admin, d.Identity))
	r.Add(modules.NewProfileModule(d.Profile, d.Identity))
	r.Add(modules.NewAdminModule(d.Admin, d.Identity, d.Profiles))
	r.Add(modules.NewEmailModule(d.Email, d.Identity, d.Profiles))
	if cfg := container.GetConfig(); cfg != nil && cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
