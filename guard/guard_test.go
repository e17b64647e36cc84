package guard

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-service/apperrors"
	"storefront-service/store"
)

func signedIn(email string) store.SessionState {
	return store.SessionState{User: store.SessionUser{Email: &email}}
}

func TestEvaluate(t *testing.T) {
	assert.Equal(t, Loading, Evaluate(store.SessionState{IsLoading: true}))
	assert.Equal(t, Loading, Evaluate(store.SessionState{IsLoading: true, User: signedIn("a@b.co").User}))
	assert.Equal(t, Unauthenticated, Evaluate(store.SessionState{}))
	empty := ""
	assert.Equal(t, Unauthenticated, Evaluate(store.SessionState{User: store.SessionUser{Email: &empty}}))
	assert.Equal(t, Authenticated, Evaluate(signedIn("a@b.co")))
}

func newGuardedRouter(state store.SessionState) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	src := func(c *gin.Context) (store.SessionState, bool) { return state, true }
	r.GET("/api/profile", Middleware("/login", src), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"email": UserEmail(c)})
	})
	return r
}

func TestLoadingDoesNotRedirect(t *testing.T) {
	r := newGuardedRouter(store.SessionState{IsLoading: true})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/profile", nil))

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
	assert.Empty(t, w.Header().Get("Location"))
	assert.JSONEq(t, `{"status":"loading"}`, w.Body.String())
}

func TestUnauthenticatedAPIClientGets401(t *testing.T) {
	r := newGuardedRouter(store.SessionState{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/profile?tab=orders", nil))

	require.Equal(t, http.StatusUnauthorized, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "/login?from=%2Fapi%2Fprofile%3Ftab%3Dorders", body["redirect"])
	assert.Equal(t, apperrors.ErrUnauthorized.Message, body["error"])
}

func TestUnauthenticatedBrowserIsRedirected(t *testing.T) {
	r := newGuardedRouter(store.SessionState{})
	req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/login?from=%2Fapi%2Fprofile", w.Header().Get("Location"))
}

func TestAuthenticatedPassesThrough(t *testing.T) {
	r := newGuardedRouter(signedIn("a@b.co"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/profile", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"email":"a@b.co"}`, w.Body.String())
}

func TestMissingSessionIsUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", Middleware("/login", func(c *gin.Context) (store.SessionState, bool) {
		return store.SessionState{}, false
	}), func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
