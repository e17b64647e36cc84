package identity

import (
	"errors"
	"fmt"
)

// Identity is what the provider yields for a verified user.
type Identity struct {
	Email       string
	DisplayName string
	PhotoURL    string
	UID         string
	Token       string
}

// ErrNoIdentity is returned when the provider answered without a user.
var ErrNoIdentity = errors.New("identity provider returned no user")

// ProviderError carries the provider's own message for a rejected request.
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("identity provider returned %d", e.StatusCode)
}

// IsProviderError reports whether err came from the provider rejecting the
// request, as opposed to a transport failure.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}
