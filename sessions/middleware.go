package sessions

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storefront-service/store"
)

const (
	CookieName = "sf_session"
	contextKey = "storefront_session"
)

// Middleware attaches the caller's session to the gin context, issuing a
// new session cookie when the browser has none or an unknown one.
func Middleware(r *Registry, secure bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var sess *Session
		if id, err := c.Cookie(CookieName); err == nil {
			if _, perr := uuid.Parse(id); perr == nil {
				sess, _ = r.Get(id)
			}
		}
		if sess == nil {
			sess = r.Create()
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(CookieName, sess.ID, int(r.idleTTL.Seconds()), "/", "", secure, true)
		c.Set(contextKey, sess)
		c.Next()
	}
}

// FromContext returns the session attached by Middleware.
func FromContext(c *gin.Context) (*Session, bool) {
	v, ok := c.Get(contextKey)
	if !ok {
		return nil, false
	}
	s, ok := v.(*Session)
	return s, ok
}

// AuthState reads the auth session for the route guard.
func AuthState(c *gin.Context) (store.SessionState, bool) {
	s, ok := FromContext(c)
	if !ok {
		return store.SessionState{}, false
	}
	return s.Auth.Snapshot(), true
}
