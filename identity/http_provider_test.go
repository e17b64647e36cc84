package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"storefront-service/clients"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	if _, ok := claims["exp"]; !ok {
		claims["exp"] = time.Now().Add(time.Hour).Unix()
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func newTestProvider(t *testing.T, mux *http.ServeMux) *HTTPProvider {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewHTTPProvider(clients.NewGatewayClient(srv.URL, 2*time.Second), NewTokenVerifier(testSecret))
}

func TestSignInVerifiesAccessToken(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "u1", "email": "a@b.co", "typ": "access"})
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		var creds credentials
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, "a@b.co", creds.Email)
		assert.Equal(t, "pw", creds.Password)
		json.NewEncoder(w).Encode(map[string]string{"access_token": token})
	})

	id, err := newTestProvider(t, mux).SignIn(context.Background(), "a@b.co", "pw")
	require.NoError(t, err)
	assert.Equal(t, "a@b.co", id.Email)
	assert.Equal(t, "u1", id.UID)
	assert.Equal(t, token, id.Token)
}

func TestSignInReadsTokenCookie(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"email": "a@b.co", "typ": "access"})
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "token", Value: token})
		w.Write([]byte(`{"message":"Logged in"}`))
	})

	id, err := newTestProvider(t, mux).SignIn(context.Background(), "a@b.co", "pw")
	require.NoError(t, err)
	assert.Equal(t, "a@b.co", id.Email)
}

func TestSignInRejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"Invalid password"}`))
	})

	_, err := newTestProvider(t, mux).SignIn(context.Background(), "a@b.co", "bad")
	require.Error(t, err)
	assert.True(t, IsProviderError(err))
	assert.Equal(t, "Invalid password", err.Error())
}

func TestSignInRejectsRefreshToken(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"email": "a@b.co", "typ": "refresh"})
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	})

	_, err := newTestProvider(t, mux).SignIn(context.Background(), "a@b.co", "pw")
	require.Error(t, err)
	assert.True(t, IsProviderError(err))
}

func TestSignInFederatedFillsProfile(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "u9", "email": "g@b.co", "typ": "access"})
	mux := http.NewServeMux()
	mux.HandleFunc("/google", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "google-id-token", body["idToken"])
		json.NewEncoder(w).Encode(map[string]string{
			"token":       token,
			"email":       "g@b.co",
			"name":        "Gee",
			"picture":     "https://img/g.png",
			"firebase_id": "fb-1",
		})
	})

	id, err := newTestProvider(t, mux).SignInFederated(context.Background(), "google-id-token")
	require.NoError(t, err)
	assert.Equal(t, "g@b.co", id.Email)
	assert.Equal(t, "Gee", id.DisplayName)
	assert.Equal(t, "https://img/g.png", id.PhotoURL)
	assert.Equal(t, "fb-1", id.UID)
}

func TestCreateAccountConflict(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/register", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"error":"Email already exists"}`))
	})

	_, err := newTestProvider(t, mux).CreateAccount(context.Background(), "a@b.co", "pw")
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusConflict, pe.StatusCode)
}

func TestSignOutSendsBearer(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/logout", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, newTestProvider(t, mux).SignOut(context.Background(), "tok"))
}

func TestVerifyRequiresSecret(t *testing.T) {
	_, err := NewTokenVerifier("").Verify("anything", "")
	assert.Error(t, err)
}

func TestIdentityFromRequiresEmail(t *testing.T) {
	_, err := IdentityFrom("tok", jwt.MapClaims{"sub": "u1"})
	assert.Error(t, err)
}
