package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/ngo-backoffice/internal/application/session"
	"github.com/oksasatya/ngo-backoffice/internal/domain/entity"
	"github.com/oksasatya/ngo-backoffice/internal/domain/gateway"
	"github.com/oksasatya/ngo-backoffice/internal/domain/gateway/gatewaytest"
)

func TestStoreStartsLoading(t *testing.T) {
	store := session.NewStore(gatewaytest.New(), nil)
	assert.True(t, store.Loading())
	assert.Equal(t, session.StateInitializing, store.State())
	assert.Nil(t, store.Principal())
}

func TestInitializeWithExistingSession(t *testing.T) {
	fake := gatewaytest.New()
	fake.SetSession(&entity.Principal{ID: "u1", Email: "admin@example.com"})

	store := session.NewStore(fake, nil)
	require.NoError(t, store.Initialize(context.Background()))
	defer store.Close()

	assert.False(t, store.Loading())
	assert.Equal(t, session.StateAuthenticated, store.State())
	assert.Equal(t, "admin@example.com", store.Principal().Email)
	select {
	case <-store.Ready():
	default:
		t.Fatal("ready channel not closed")
	}
}

func TestInitializeWithoutSession(t *testing.T) {
	store := session.NewStore(gatewaytest.New(), nil)
	require.NoError(t, store.Initialize(context.Background()))
	defer store.Close()

	assert.Equal(t, session.StateUnauthenticated, store.State())
}

func TestInitializeFetchFailureIsTreatedAsSignedOut(t *testing.T) {
	fake := gatewaytest.New()
	fake.SessionErr = errors.New("network down")

	store := session.NewStore(fake, nil)
	require.NoError(t, store.Initialize(context.Background()))
	defer store.Close()

	assert.False(t, store.Loading())
	assert.Equal(t, session.StateUnauthenticated, store.State())
}

func TestInitializeTwice(t *testing.T) {
	store := session.NewStore(gatewaytest.New(), nil)
	require.NoError(t, store.Initialize(context.Background()))
	defer store.Close()

	assert.ErrorIs(t, store.Initialize(context.Background()), session.ErrAlreadyInitialized)
}

func TestNotificationsOverwritePrincipal(t *testing.T) {
	fake := gatewaytest.New()
	store := session.NewStore(fake, nil)
	require.NoError(t, store.Initialize(context.Background()))
	defer store.Close()

	fake.Emit(&entity.Principal{ID: "u1", Email: "a@x.com"})
	assert.Equal(t, session.StateAuthenticated, store.State())
	assert.Equal(t, "u1", store.Principal().ID)

	fake.Emit(&entity.Principal{ID: "u2", Email: "b@x.com"})
	assert.Equal(t, "u2", store.Principal().ID)

	fake.Emit(nil)
	assert.Equal(t, session.StateUnauthenticated, store.State())
	assert.Nil(t, store.Principal())
}

func TestCloseStopsUpdates(t *testing.T) {
	fake := gatewaytest.New()
	store := session.NewStore(fake, nil)
	require.NoError(t, store.Initialize(context.Background()))
	require.Equal(t, 1, fake.Listeners())

	store.Close()
	assert.Equal(t, 0, fake.Listeners())

	fake.Emit(&entity.Principal{ID: "u1", Email: "a@x.com"})
	assert.Nil(t, store.Principal())
	assert.Equal(t, session.StateUnauthenticated, store.State())

	store.Close()
	assert.ErrorIs(t, store.Initialize(context.Background()), session.ErrClosed)
}

// lateSession emits a notification while the startup fetch is in flight.
type lateSession struct {
	*gatewaytest.Fake
	stale *entity.Principal
}

func (l lateSession) GetCurrentSession(ctx context.Context) (*entity.Principal, error) {
	l.Emit(&entity.Principal{ID: "fresh", Email: "fresh@x.com"})
	return l.stale, nil
}

func TestNotificationDuringFetchWins(t *testing.T) {
	src := lateSession{Fake: gatewaytest.New(), stale: &entity.Principal{ID: "stale"}}
	store := session.NewStore(src, nil)
	require.NoError(t, store.Initialize(context.Background()))
	defer store.Close()

	assert.Equal(t, "fresh", store.Principal().ID)
	assert.False(t, store.Loading())
}

// closingSession closes the store while the startup fetch is in flight.
type closingSession struct {
	*gatewaytest.Fake
	close func()
}

func (c *closingSession) GetCurrentSession(ctx context.Context) (*entity.Principal, error) {
	c.close()
	return &entity.Principal{ID: "u1"}, nil
}

func TestCloseDuringFetchReleasesReady(t *testing.T) {
	src := &closingSession{Fake: gatewaytest.New()}
	store := session.NewStore(src, nil)
	src.close = store.Close

	assert.ErrorIs(t, store.Initialize(context.Background()), session.ErrClosed)
	select {
	case <-store.Ready():
	default:
		t.Fatal("Ready still blocked after Close")
	}
	assert.False(t, store.Loading())
	assert.Nil(t, store.Principal())
	assert.Zero(t, src.Listeners())
}

func TestCloseBeforeInitializeReleasesReady(t *testing.T) {
	store := session.NewStore(gatewaytest.New(), nil)
	store.Close()

	<-store.Ready()
	assert.False(t, store.Loading())
	assert.ErrorIs(t, store.Initialize(context.Background()), session.ErrClosed)
}

func TestWatchReceivesChanges(t *testing.T) {
	fake := gatewaytest.New()
	store := session.NewStore(fake, nil)

	var mu sync.Mutex
	var seen []*entity.Principal
	stop := store.Watch(func(p *entity.Principal) {
		mu.Lock()
		seen = append(seen, p)
		mu.Unlock()
	})

	require.NoError(t, store.Initialize(context.Background()))
	defer store.Close()
	fake.Emit(&entity.Principal{ID: "u1"})
	stop()
	fake.Emit(nil)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, seen, 2)
	assert.Nil(t, seen[0])
	assert.Equal(t, "u1", seen[1].ID)
}

func TestPrincipalIsACopy(t *testing.T) {
	fake := gatewaytest.New()
	store := session.NewStore(fake, nil)
	require.NoError(t, store.Initialize(context.Background()))
	defer store.Close()

	fake.Emit(&entity.Principal{ID: "u1", Email: "a@x.com"})
	p := store.Principal()
	p.Email = "mutated"
	assert.Equal(t, "a@x.com", store.Principal().Email)
}

var _ gateway.AuthService = lateSession{}
