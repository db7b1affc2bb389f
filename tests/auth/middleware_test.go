package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nordvik-media/blog-api/internal/auth"
	"github.com/nordvik-media/blog-api/internal/repository"
	"github.com/nordvik-media/blog-api/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testCookieName = "blog_session"

func setupMiddleware(t *testing.T) (*auth.Middleware, *auth.SessionStore, *repository.UserRepository) {
	db := testutil.SetupTestDB(t)
	sessions := auth.NewSessionStore(time.Hour, 24*time.Hour)
	userRepo := repository.NewUserRepository(db)
	mw := auth.NewMiddleware(sessions, userRepo, testCookieName, zap.NewNop())
	return mw, sessions, userRepo
}

func TestLoadSession_AttachesLiveSession(t *testing.T) {
	mw, sessions, _ := setupMiddleware(t)
	sess := sessions.Create()

	var got *auth.Session
	handler := mw.LoadSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.SessionFromContext(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: sess.Token})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	assert.Same(t, sess, got)
}

func TestLoadSession_NoCookiePassesThrough(t *testing.T) {
	mw, _, _ := setupMiddleware(t)

	called := false
	handler := mw.LoadSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		_, ok := auth.SessionFromContext(r.Context())
		assert.False(t, ok)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	assert.True(t, called)
}

func TestLoadSession_StaleCookieIsCleared(t *testing.T) {
	mw, _, _ := setupMiddleware(t)

	handler := mw.LoadSession(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: "stale-token"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, testCookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestRequireUser_NoSession(t *testing.T) {
	mw, _, _ := setupMiddleware(t)

	handler := mw.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a session")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireUser_AnonymousSession(t *testing.T) {
	mw, sessions, _ := setupMiddleware(t)
	sess := sessions.Create()

	handler := mw.LoadSession(mw.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for an anonymous session")
	})))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireUser_AuthenticatedSession(t *testing.T) {
	db := testutil.SetupTestDB(t)
	sessions := auth.NewSessionStore(time.Hour, 24*time.Hour)
	userRepo := repository.NewUserRepository(db)
	mw := auth.NewMiddleware(sessions, userRepo, testCookieName, zap.NewNop())

	user := testutil.CreateTestUser(t, db, "bob", "password123")
	sess := sessions.Create()
	sess.UserID = &user.ID

	var got *auth.UserContext
	handler := mw.LoadSession(mw.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auth.MustFromContext(r.Context())
	})))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, user.ID, got.UserID)
	assert.Equal(t, "bob", got.Username)
	assert.False(t, got.Federated)
}

func TestRequireUser_FederatedFollowsStoredHash(t *testing.T) {
	db := testutil.SetupTestDB(t)
	sessions := auth.NewSessionStore(time.Hour, 24*time.Hour)
	userRepo := repository.NewUserRepository(db)
	mw := auth.NewMiddleware(sessions, userRepo, testCookieName, zap.NewNop())

	// Federated-only account (no password hash), session without claims:
	// the flag comes from the account, matching the user DTO mapping
	user := testutil.CreateTestUser(t, db, "alice@example.com", "")
	sess := sessions.Create()
	sess.UserID = &user.ID

	var got *auth.UserContext
	handler := mw.LoadSession(mw.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auth.MustFromContext(r.Context())
	})))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, got)
	assert.True(t, got.Federated)

	// A local-password account stays non-federated even when the session
	// itself was established through the identity provider
	local := testutil.CreateTestUser(t, db, "bob", "password123")
	localSess := sessions.Create()
	localSess.UserID = &local.ID
	localSess.Claims = &auth.Claims{Email: "bob@example.com"}

	req = httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: localSess.Token})
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, got.Federated)
}

func TestRequireUser_SessionForDeletedUser(t *testing.T) {
	db := testutil.SetupTestDB(t)
	sessions := auth.NewSessionStore(time.Hour, 24*time.Hour)
	userRepo := repository.NewUserRepository(db)
	mw := auth.NewMiddleware(sessions, userRepo, testCookieName, zap.NewNop())

	missingID := uint(9999)
	sess := sessions.Create()
	sess.UserID = &missingID

	handler := mw.LoadSession(mw.RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run for a dangling session")
	})))

	req := httptest.NewRequest("GET", "/", nil)
	req.AddCookie(&http.Cookie{Name: testCookieName, Value: sess.Token})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// The dangling session is evicted
	_, ok := sessions.Get(sess.Token)
	assert.False(t, ok)
}
