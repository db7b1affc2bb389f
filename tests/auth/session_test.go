package auth_test

import (
	"testing"
	"time"

	"github.com/nordvik-media/blog-api/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_CreateAndGet(t *testing.T) {
	store := auth.NewSessionStore(time.Hour, 24*time.Hour)

	sess := store.Create()

	require.NotEmpty(t, sess.Token)
	assert.False(t, sess.Authenticated())
	assert.False(t, sess.Federated())

	got, ok := store.Get(sess.Token)
	require.True(t, ok)
	assert.Same(t, sess, got)
}

func TestSessionStore_GetUnknownToken(t *testing.T) {
	store := auth.NewSessionStore(time.Hour, 24*time.Hour)

	_, ok := store.Get("no-such-token")

	assert.False(t, ok)
}

func TestSessionStore_TokensAreUnique(t *testing.T) {
	store := auth.NewSessionStore(time.Hour, 24*time.Hour)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		sess := store.Create()
		assert.False(t, seen[sess.Token])
		seen[sess.Token] = true
	}
}

func TestSessionStore_ExpiredSessionIsDropped(t *testing.T) {
	store := auth.NewSessionStore(-time.Minute, 24*time.Hour)

	sess := store.Create()

	_, ok := store.Get(sess.Token)
	assert.False(t, ok)
	assert.Equal(t, 0, store.Len())
}

func TestSessionStore_CreateSweepsExpired(t *testing.T) {
	store := auth.NewSessionStore(-time.Minute, 24*time.Hour)

	store.Create()
	store.Create()

	// Each Create sweeps what expired before it
	assert.LessOrEqual(t, store.Len(), 1)
}

func TestSessionStore_PutExtendsLifetime(t *testing.T) {
	store := auth.NewSessionStore(time.Hour, 24*time.Hour)

	sess := store.Create()
	normalExpiry := sess.ExpiresAt

	sess.RememberMe = true
	store.Put(sess)

	assert.True(t, sess.ExpiresAt.After(normalExpiry.Add(time.Hour)))
}

func TestSessionStore_Delete(t *testing.T) {
	store := auth.NewSessionStore(time.Hour, 24*time.Hour)

	sess := store.Create()
	store.Delete(sess.Token)

	_, ok := store.Get(sess.Token)
	assert.False(t, ok)
}

func TestSession_Authenticated(t *testing.T) {
	userID := uint(7)

	assert.False(t, (&auth.Session{}).Authenticated())
	assert.True(t, (&auth.Session{UserID: &userID}).Authenticated())
}

func TestSession_Federated(t *testing.T) {
	assert.False(t, (&auth.Session{}).Federated())
	assert.True(t, (&auth.Session{Claims: &auth.Claims{Email: "a@b.c"}}).Federated())
}
