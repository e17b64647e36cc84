package sessions

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"storefront-service/identity"
	"storefront-service/models"
	"storefront-service/store"
)

type MockAuthenticator struct{ mock.Mock }

func (m *MockAuthenticator) CreateAccount(ctx context.Context, email, password string) (*identity.Identity, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Identity), args.Error(1)
}

func (m *MockAuthenticator) SignIn(ctx context.Context, email, password string) (*identity.Identity, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Identity), args.Error(1)
}

func (m *MockAuthenticator) SignInFederated(ctx context.Context, credential string) (*identity.Identity, error) {
	args := m.Called(ctx, credential)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.Identity), args.Error(1)
}

func (m *MockAuthenticator) SignOut(ctx context.Context, token string) error {
	return m.Called(ctx, token).Error(0)
}

func TestEvictIdleClearsStores(t *testing.T) {
	provider := new(MockAuthenticator)
	provider.On("SignIn", mock.Anything, "a@b.co", "pw").Return(&identity.Identity{Email: "a@b.co", Token: "tok"}, nil)
	provider.On("SignOut", mock.Anything, "tok").Return(nil).Once()

	r := NewRegistry(provider, time.Minute)
	now := time.Now()
	r.now = func() time.Time { return now }

	idle := r.Create()
	require.NoError(t, idle.Cart.AddToCart(models.Product{ID: "p", Price: 1, Status: models.Availability(true)}))
	require.True(t, idle.Auth.SignIn(context.Background(), "a@b.co", "pw").OK())

	now = now.Add(30 * time.Second)
	active := r.Create()

	now = now.Add(45 * time.Second)
	_, ok := r.Get(active.ID)
	require.True(t, ok)

	assert.Equal(t, 1, r.EvictIdle(context.Background()))
	assert.Equal(t, 1, r.Len())

	_, ok = r.Get(idle.ID)
	assert.False(t, ok)
	assert.Empty(t, idle.Cart.Snapshot().Products)
	assert.False(t, idle.Auth.Snapshot().SignedIn())
	provider.AssertExpectations(t)
}

func TestEvictIdleKeepsStreamingSessions(t *testing.T) {
	r := NewRegistry(new(MockAuthenticator), time.Minute)
	now := time.Now()
	r.now = func() time.Time { return now }

	streaming := r.Create()
	require.NoError(t, streaming.Cart.AddToCart(models.Product{ID: "p", Price: 1}))
	unsubscribe := streaming.Cart.Subscribe(func(store.CartState) {})

	now = now.Add(5 * time.Minute)
	assert.Zero(t, r.EvictIdle(context.Background()))
	_, ok := r.Get(streaming.ID)
	require.True(t, ok)
	assert.Len(t, streaming.Cart.Snapshot().Products, 1)

	t.Run("evicted once the stream closes and the session idles", func(t *testing.T) {
		unsubscribe()
		now = now.Add(30 * time.Second)
		assert.Zero(t, r.EvictIdle(context.Background()))

		now = now.Add(2 * time.Minute)
		assert.Equal(t, 1, r.EvictIdle(context.Background()))
		assert.Empty(t, streaming.Cart.Snapshot().Products)
	})
}

func TestRunStopsWithContext(t *testing.T) {
	r := NewRegistry(new(MockAuthenticator), time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}

func newSessionRouter(r *Registry) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Middleware(r, false))
	router.GET("/whoami", func(c *gin.Context) {
		s, ok := FromContext(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, s.ID)
	})
	return router
}

func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, ck := range w.Result().Cookies() {
		if ck.Name == CookieName {
			return ck
		}
	}
	return nil
}

func TestMiddlewareIssuesAndReusesSession(t *testing.T) {
	r := NewRegistry(new(MockAuthenticator), time.Minute)
	router := newSessionRouter(r)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	ck := sessionCookie(w)
	require.NotNil(t, ck)
	assert.True(t, ck.HttpOnly)
	assert.Equal(t, ck.Value, w.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.AddCookie(ck)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, ck.Value, w.Body.String())
	assert.Equal(t, 1, r.Len())
}

func TestMiddlewareReplacesUnknownSession(t *testing.T) {
	r := NewRegistry(new(MockAuthenticator), time.Minute)
	router := newSessionRouter(r)

	for _, v := range []string{"not-a-uuid", "7b0f1c2e-4a57-4c1b-9a8e-2f6f1c7d9e10"} {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.AddCookie(&http.Cookie{Name: CookieName, Value: v})
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.NotEqual(t, v, w.Body.String())
		assert.Equal(t, w.Body.String(), sessionCookie(w).Value)
	}
}

func TestAuthStateWithoutSession(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	_, ok := AuthState(c)
	assert.False(t, ok)
}
