package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-navgate"
	"github.com/goliatone/go-navgate/provider/redisstore"
)

func newTestStore(t *testing.T, opts ...redisstore.Option) (*redisstore.Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "miniredis run failed")
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store, err := redisstore.NewStore(rdb, opts...)
	require.NoError(t, err)

	return store, mr
}

func TestStoreSaveGetRoundTrip(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	user := &navgate.SessionUser{
		ID:             "1f6f9d2a-8f0f-4f6a-9d56-0a4aa2ac71bb",
		Email:          "nurse@clinic.test",
		Name:           "Pat Doe",
		Role:           navgate.RoleNurse,
		OrganizationID: "f3b7ac21-4b27-4f08-9e61-44c0f7f3a111",
	}

	require.NoError(t, store.Save(ctx, "sess-1", user))

	got, err := store.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, user, got)

	// persisted under the expected namespace with the default TTL
	ttl := mr.TTL("navgate:session:sess-1")
	assert.Equal(t, redisstore.DefaultTTL, ttl)
}

func TestStoreSaveValidation(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.Error(t, store.Save(ctx, "", &navgate.SessionUser{ID: "u-1"}))
	require.Error(t, store.Save(ctx, "sess-1", nil))
}

func TestStoreGetMissing(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "sess-unknown")
	require.ErrorIs(t, err, redisstore.ErrSessionNotFound)
}

func TestStoreDeleteIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sess-1", &navgate.SessionUser{ID: "u-1", Role: navgate.RoleDoctor}))
	require.NoError(t, store.Delete(ctx, "sess-1"))
	require.NoError(t, store.Delete(ctx, "sess-1"))

	_, err := store.Get(ctx, "sess-1")
	require.ErrorIs(t, err, redisstore.ErrSessionNotFound)
}

func TestStoreTouchExtendsExpiry(t *testing.T) {
	store, mr := newTestStore(t, redisstore.WithTTL(time.Hour))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sess-1", &navgate.SessionUser{ID: "u-1", Role: navgate.RoleOperator}))

	mr.FastForward(30 * time.Minute)
	require.NoError(t, store.Touch(ctx, "sess-1"))
	assert.Equal(t, time.Hour, mr.TTL("navgate:session:sess-1"))

	require.ErrorIs(t, store.Touch(ctx, "sess-missing"), redisstore.ErrSessionNotFound)
}

func TestStoreExpiredSessionIsGone(t *testing.T) {
	store, mr := newTestStore(t, redisstore.WithTTL(time.Minute))
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "sess-1", &navgate.SessionUser{ID: "u-1", Role: navgate.RoleUser}))

	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "sess-1")
	require.ErrorIs(t, err, redisstore.ErrSessionNotFound)
}

func TestLoaderHydratesSessionStore(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	user := &navgate.SessionUser{
		ID:   "7c3e1b9d-23fd-4b8e-8c1a-55b823a0f0de",
		Role: navgate.RoleHeadDoctor,
	}
	require.NoError(t, store.Save(ctx, "sess-boot", user))

	sessions := navgate.NewSessionStore()
	require.NoError(t, sessions.Hydrate(ctx, store.Loader("sess-boot")))

	snapshot := sessions.Snapshot()
	assert.True(t, snapshot.Hydrated)
	assert.True(t, snapshot.Authenticated)
	require.NotNil(t, snapshot.User)
	assert.Equal(t, navgate.RoleHeadDoctor, snapshot.User.Role)
}

func TestLoaderMissingSessionIsAnonymous(t *testing.T) {
	store, _ := newTestStore(t)

	session, err := store.Loader("sess-never-saved").Load(context.Background())
	require.NoError(t, err)
	assert.True(t, session.Hydrated)
	assert.False(t, session.Authenticated)

	session, err = store.Loader("").Load(context.Background())
	require.NoError(t, err)
	assert.False(t, session.Authenticated)
}

func TestLoaderSurfacesTransportFailure(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store, err := redisstore.NewStore(rdb)
	require.NoError(t, err)

	mr.Close()

	_, err = store.Loader("sess-1").Load(context.Background())
	require.ErrorIs(t, err, redisstore.ErrRedisUnavailable)
}

func TestConnect(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	ctx := context.Background()

	store, err := redisstore.Connect(ctx, redisstore.Config{
		Addr:      mr.Addr(),
		KeyPrefix: "gateway:session",
		TTL:       time.Hour,
	})
	require.NoError(t, err)

	require.NoError(t, store.Save(ctx, "sess-1", &navgate.SessionUser{ID: "u-1", Role: navgate.RoleAdmin}))
	assert.Equal(t, time.Hour, mr.TTL("gateway:session:sess-1"))

	_, err = redisstore.Connect(ctx, redisstore.Config{})
	require.Error(t, err)

	_, err = redisstore.Connect(ctx, redisstore.Config{Addr: "127.0.0.1:1"})
	require.ErrorIs(t, err, redisstore.ErrRedisUnavailable)
}
