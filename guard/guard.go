package guard

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"storefront-service/apperrors"
	"storefront-service/store"
)

// Decision is the guard's verdict for a protected request.
type Decision string

const (
	Loading         Decision = "loading"
	Unauthenticated Decision = "unauthenticated"
	Authenticated   Decision = "authenticated"
)

// UserEmailKey holds the signed-in email on guarded requests.
const UserEmailKey = "user_email"

// Evaluate derives the decision from the session. An operation in flight
// always yields Loading so the user is never redirected mid sign-in.
func Evaluate(s store.SessionState) Decision {
	switch {
	case s.IsLoading:
		return Loading
	case s.SignedIn():
		return Authenticated
	default:
		return Unauthenticated
	}
}

// SessionSource reads the auth session of the current request.
type SessionSource func(c *gin.Context) (store.SessionState, bool)

// RedirectTarget is the sign-in location carrying the originally requested
// path.
func RedirectTarget(signInPath, from string) string {
	return signInPath + "?" + url.Values{"from": {from}}.Encode()
}

// Middleware protects the routes it is attached to. Loading answers 202
// without redirecting, unauthenticated requests are sent to signInPath,
// authenticated ones continue.
func Middleware(signInPath string, source SessionSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, ok := source(c)
		if !ok {
			state = store.SessionState{}
		}

		switch Evaluate(state) {
		case Loading:
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusAccepted, gin.H{"status": string(Loading)})
		case Unauthenticated:
			target := RedirectTarget(signInPath, c.Request.URL.RequestURI())
			if wantsHTML(c.Request) {
				c.Redirect(http.StatusFound, target)
				c.Abort()
				return
			}
			c.AbortWithStatusJSON(apperrors.ErrUnauthorized.Code, gin.H{
				"error":    apperrors.ErrUnauthorized.Message,
				"redirect": target,
			})
		default:
			c.Set(UserEmailKey, state.Email())
			c.Next()
		}
	}
}

// UserEmail returns the email set by Middleware.
func UserEmail(c *gin.Context) string {
	return c.GetString(UserEmailKey)
}

func wantsHTML(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
