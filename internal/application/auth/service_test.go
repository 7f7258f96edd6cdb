package auth_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/ngo-backoffice/internal/application/auth"
	"github.com/oksasatya/ngo-backoffice/internal/application/session"
	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
	"github.com/oksasatya/ngo-backoffice/internal/domain/gateway/gatewaytest"
)

func newStore(t *testing.T, fake *gatewaytest.Fake) *session.Store {
	t.Helper()
	store := session.NewStore(fake, nil)
	require.NoError(t, store.Initialize(context.Background()))
	t.Cleanup(store.Close)
	return store
}

func TestSignInResolvesUsernameAndAuthenticates(t *testing.T) {
	fake := gatewaytest.New()
	fake.AddUser("admin", "admin@example.com", "s3cretpass", entity.RoleRoot)
	store := newStore(t, fake)
	require.Equal(t, session.StateUnauthenticated, store.State())

	svc := auth.NewService(fake, fake, nil)
	require.NoError(t, svc.SignIn(context.Background(), "admin", "s3cretpass"))

	assert.Equal(t, session.StateAuthenticated, store.State())
	require.NotNil(t, store.Principal())
	assert.Equal(t, "admin@example.com", store.Principal().Email)
	assert.Equal(t, []string{"GetCurrentSession", "QueryEmailByUsername", "SignInWithPassword"}, fake.Calls())
}

func TestSignInUnknownUsername(t *testing.T) {
	fake := gatewaytest.New()
	store := newStore(t, fake)

	err := auth.NewService(fake, fake, nil).SignIn(context.Background(), "ghost", "whatever1")
	assert.ErrorIs(t, err, auth.ErrUnknownIdentifier)
	assert.Nil(t, store.Principal())
	assert.NotContains(t, fake.Calls(), "SignInWithPassword")
}

func TestSignInLookupFailureLooksLikeUnknownUser(t *testing.T) {
	fake := gatewaytest.New()
	fake.AddUser("admin", "admin@example.com", "s3cretpass", entity.RoleRoot)
	fake.LookupErr = errors.New("connection reset")

	err := auth.NewService(fake, fake, nil).SignIn(context.Background(), "admin", "s3cretpass")
	assert.ErrorIs(t, err, auth.ErrUnknownIdentifier)
	assert.Equal(t, auth.ErrUnknownIdentifier.Error(), err.Error())
}

func TestSignInWrongPassword(t *testing.T) {
	fake := gatewaytest.New()
	fake.AddUser("admin", "admin@example.com", "s3cretpass", entity.RoleRoot)
	store := newStore(t, fake)

	err := auth.NewService(fake, fake, nil).SignIn(context.Background(), "admin", "nope-nope")
	assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	assert.Equal(t, session.StateUnauthenticated, store.State())
}

func TestSignInRejectsEmptyInput(t *testing.T) {
	fake := gatewaytest.New()
	svc := auth.NewService(fake, fake, nil)

	assert.ErrorIs(t, svc.SignIn(context.Background(), "  ", "pw"), auth.ErrUnknownIdentifier)
	assert.ErrorIs(t, svc.SignIn(context.Background(), "admin", ""), auth.ErrInvalidCredentials)
	assert.Empty(t, fake.Calls())
}

func TestSignOutIsIdempotent(t *testing.T) {
	fake := gatewaytest.New()
	store := newStore(t, fake)
	svc := auth.NewService(fake, fake, nil)

	require.NoError(t, svc.SignOut(context.Background()))
	require.NoError(t, svc.SignOut(context.Background()))
	assert.Nil(t, store.Principal())
	assert.Equal(t, session.StateUnauthenticated, store.State())
}

func TestRegisterResolvesRole(t *testing.T) {
	cases := []struct {
		tag  entity.RoleTag
		want entity.Role
	}{
		{entity.RoleTagRoot, entity.RoleRoot},
		{entity.RoleTagRegular, entity.RoleAdmin},
		{"editor", entity.RoleAdmin},
		{"", entity.RoleAdmin},
	}
	for _, tc := range cases {
		t.Run(string(tc.tag), func(t *testing.T) {
			fake := gatewaytest.New()
			svc := auth.NewService(fake, fake, nil)

			p, err := svc.Register(context.Background(), auth.RegisterInput{
				Email: "new@x.com", Username: "newbie", Password: "password1", Role: tc.tag,
			})
			require.NoError(t, err)

			stored, ok := fake.Profile(p.ID)
			require.True(t, ok)
			assert.Equal(t, tc.want, stored.Role)
			assert.Equal(t, "new@x.com", stored.Email)
			assert.Equal(t, "newbie", stored.Username)
		})
	}
}

func TestRegisterSignUpRejected(t *testing.T) {
	fake := gatewaytest.New()
	fake.AddUser("taken", "dup@x.com", "password1", entity.RoleAdmin)
	svc := auth.NewService(fake, fake, nil)

	_, err := svc.Register(context.Background(), auth.RegisterInput{Email: "dup@x.com", Username: "other", Password: "password1"})
	assert.ErrorIs(t, err, auth.ErrSignUpRejected)
	assert.ErrorIs(t, err, gatewaytest.ErrEmailTaken)
	assert.NotContains(t, fake.Calls(), "InsertAccountProfile")
}

// The identity created by step one survives a failed profile insert.
func TestRegisterProfileFailureLeavesOrphanedIdentity(t *testing.T) {
	fake := gatewaytest.New()
	fake.InsertErr = errors.New("insert failed")
	svc := auth.NewService(fake, fake, nil)

	_, err := svc.Register(context.Background(), auth.RegisterInput{Email: "new@x.com", Username: "newbie", Password: "password1", Role: "root"})
	assert.ErrorIs(t, err, auth.ErrProfileCreationFailed)
	assert.True(t, fake.HasIdentity("new@x.com"))
	assert.Empty(t, fake.Deleted())
	assert.NotContains(t, fake.Calls(), "DeleteIdentity")
}

func TestRegisterCompensationDeletesIdentity(t *testing.T) {
	fake := gatewaytest.New()
	fake.InsertErr = errors.New("insert failed")
	svc := auth.NewService(fake, fake, nil).WithCompensation(fake)

	_, err := svc.Register(context.Background(), auth.RegisterInput{Email: "new@x.com", Username: "newbie", Password: "password1"})
	assert.ErrorIs(t, err, auth.ErrProfileCreationFailed)
	assert.False(t, fake.HasIdentity("new@x.com"))
	assert.Len(t, fake.Deleted(), 1)
}

func TestRegisterCompensationFailureStillReportsProfileError(t *testing.T) {
	fake := gatewaytest.New()
	fake.InsertErr = errors.New("insert failed")
	fake.DeleteErr = errors.New("delete failed")
	svc := auth.NewService(fake, fake, nil).WithCompensation(fake)

	_, err := svc.Register(context.Background(), auth.RegisterInput{Email: "new@x.com", Username: "newbie", Password: "password1"})
	assert.ErrorIs(t, err, auth.ErrProfileCreationFailed)
	assert.True(t, fake.HasIdentity("new@x.com"))
}
