package inprocess_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/ngo-backoffice/internal/application/auth"
	"github.com/oksasatya/ngo-backoffice/internal/application/identity"
	"github.com/oksasatya/ngo-backoffice/internal/application/profile"
	"github.com/oksasatya/ngo-backoffice/internal/application/session"
	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
	"github.com/oksasatya/ngo-backoffice/internal/domain/repository/repotest"
	"github.com/oksasatya/ngo-backoffice/internal/infrastructure/inprocess"
	"github.com/oksasatya/ngo-backoffice/pkg/helpers"
)

type services struct {
	identity *identity.Service
	profiles *profile.Service
	store    *repotest.Store
}

func newServices(t *testing.T) services {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	store := repotest.NewStore()
	jwt := helpers.NewJWTManager("a", "r", time.Minute, time.Hour)
	return services{
		identity: identity.NewService(store.IdentityRepo(), store.ProfileRepo(), jwt, rdb, nil, nil, time.Hour),
		profiles: profile.NewService(store.ProfileRepo(), nil, nil, "", nil),
		store:    store,
	}
}

func TestRegisterThenSignInByUsername(t *testing.T) {
	svcs := newServices(t)
	ctx := context.Background()

	gw := inprocess.New(svcs.identity, svcs.profiles)
	created, err := auth.NewService(gw, gw, nil).Register(ctx, auth.RegisterInput{
		Email: "admin@example.com", Username: "admin", Password: "s3cretpass", Role: entity.RoleTagRoot,
	})
	require.NoError(t, err)
	assert.Equal(t, entity.RoleRoot, created.Role)
	_, ok := gw.Tokens()
	assert.False(t, ok, "registration does not sign in")

	gw = inprocess.New(svcs.identity, svcs.profiles)
	store := session.NewStore(gw, nil)
	require.NoError(t, store.Initialize(ctx))
	defer store.Close()
	require.Equal(t, session.StateUnauthenticated, store.State())

	require.NoError(t, auth.NewService(gw, gw, nil).SignIn(ctx, "admin", "s3cretpass"))
	require.Equal(t, session.StateAuthenticated, store.State())
	assert.Equal(t, created.ID, store.Principal().ID)

	pair, ok := gw.Tokens()
	require.True(t, ok)
	p, err := svcs.identity.Session(ctx, pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", p.Email)

	require.NoError(t, gw.SignOut(ctx))
	require.NoError(t, gw.SignOut(ctx))
	assert.Nil(t, store.Principal())
	_, err = svcs.identity.Session(ctx, pair.AccessToken)
	assert.ErrorIs(t, err, identity.ErrNoSession)
}

func TestUnknownUsernameMapsToNotFound(t *testing.T) {
	svcs := newServices(t)
	gw := inprocess.New(svcs.identity, svcs.profiles)

	err := auth.NewService(gw, gw, nil).SignIn(context.Background(), "ghost", "whatever1")
	assert.ErrorIs(t, err, auth.ErrUnknownIdentifier)
}

func TestDuplicateUsernameLeavesOrphanUnlessCompensated(t *testing.T) {
	svcs := newServices(t)
	ctx := context.Background()
	gw := inprocess.New(svcs.identity, svcs.profiles)
	_, err := auth.NewService(gw, gw, nil).Register(ctx, auth.RegisterInput{Email: "a@x.com", Username: "alice", Password: "password1"})
	require.NoError(t, err)

	_, err = auth.NewService(gw, gw, nil).Register(ctx, auth.RegisterInput{Email: "b@x.com", Username: "alice", Password: "password1"})
	assert.ErrorIs(t, err, auth.ErrProfileCreationFailed)
	assert.ErrorIs(t, err, profile.ErrUsernameTaken)
	orphans, err := svcs.identity.Orphans(ctx)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, "b@x.com", orphans[0].Email)

	_, err = auth.NewService(gw, gw, nil).WithCompensation(gw).Register(ctx, auth.RegisterInput{Email: "c@x.com", Username: "alice", Password: "password1"})
	assert.ErrorIs(t, err, auth.ErrProfileCreationFailed)
	orphans, err = svcs.identity.Orphans(ctx)
	require.NoError(t, err)
	assert.Len(t, orphans, 1)
}

func TestWithPrincipalSeedsSession(t *testing.T) {
	svcs := newServices(t)
	gw := inprocess.New(svcs.identity, svcs.profiles).WithPrincipal(&entity.Principal{ID: "u1", Email: "a@x.com"})
	store := session.NewStore(gw, nil)
	require.NoError(t, store.Initialize(context.Background()))
	defer store.Close()
	assert.Equal(t, "u1", store.Principal().ID)
}
