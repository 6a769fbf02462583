package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestSessionManager(t *testing.T) *SessionManager {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "lumora_session", time.Hour)
}

func TestSessionRoundTrip(t *testing.T) {
	sm := newTestSessionManager(t)
	ctx := context.Background()

	sess := &Session{UserID: 42, SchoolCode: "GHS"}
	require.NoError(t, sm.Store(ctx, sess))
	require.NotEmpty(t, sess.ID)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: sess.ID})

	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.Equal(t, int64(42), loaded.UserID)
	require.Equal(t, "GHS", loaded.SchoolCode)
}

func TestSessionLoadMissing(t *testing.T) {
	sm := newTestSessionManager(t)
	ctx := context.Background()

	// no cookie at all
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	require.Nil(t, loaded)

	// cookie pointing at an expired session
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sm.CookieName(), Value: "gone"})
	loaded, err = sm.Load(ctx, req)
	require.NoError(t, err)
	require.Nil(t, loaded)
}

func TestActorContext(t *testing.T) {
	ctx := context.Background()
	require.False(t, ActorFromContext(ctx).Known())

	actor := Actor{UserID: 7, SchoolCode: "GHS"}
	ctx = ContextWithActor(ctx, actor)
	got := ActorFromContext(ctx)
	require.True(t, got.Known())
	require.Equal(t, actor, got)
}
