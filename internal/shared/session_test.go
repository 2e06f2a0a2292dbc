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

func newTestManager(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "qm_session", time.Hour, false), mr
}

func TestSessionRoundTrip(t *testing.T) {
	sm, _ := newTestManager(t)
	ctx := context.Background()

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	sess, err := sm.Load(ctx, r)
	require.NoError(t, err)
	require.Empty(t, sess.ID)

	sess.SetPrincipal("42")
	sess.Set("theme", "dark")

	w := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, w, sess))
	require.NotEmpty(t, sess.ID)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, "qm_session", cookies[0].Name)
	require.Equal(t, sess.ID, cookies[0].Value)
	require.True(t, cookies[0].HttpOnly)

	// A follow-up request with the cookie restores the stored state.
	r2 := httptest.NewRequest(http.MethodGet, "/", nil)
	r2.AddCookie(cookies[0])
	restored, err := sm.Load(ctx, r2)
	require.NoError(t, err)
	require.Equal(t, "42", restored.Principal())
	require.Equal(t, "dark", restored.Get("theme"))
}

func TestSessionExpiresInRedis(t *testing.T) {
	sm, mr := newTestManager(t)
	ctx := context.Background()

	sess := &Session{isNew: true}
	sess.SetPrincipal("42")
	w := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, w, sess))

	mr.FastForward(2 * time.Hour)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "qm_session", Value: sess.ID})
	reloaded, err := sm.Load(ctx, r)
	require.NoError(t, err)
	require.Empty(t, reloaded.Principal())
}

func TestSessionDestroy(t *testing.T) {
	sm, mr := newTestManager(t)
	ctx := context.Background()

	sess := &Session{isNew: true}
	sess.SetPrincipal("42")
	w := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, w, sess))
	require.True(t, mr.Exists("session:"+sess.ID))

	sm.Destroy(sess)
	w = httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, w, sess))
	require.False(t, mr.Exists("session:"+sess.ID))

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, -1, cookies[0].MaxAge)
}

func TestSessionUnknownCookieStartsFresh(t *testing.T) {
	sm, _ := newTestManager(t)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(&http.Cookie{Name: "qm_session", Value: "stale-id"})
	sess, err := sm.Load(context.Background(), r)
	require.NoError(t, err)
	require.Equal(t, "stale-id", sess.ID)
	require.Empty(t, sess.Principal())
}
