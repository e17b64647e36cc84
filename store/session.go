package store

import (
	"context"
	"errors"
	"sync"

	"storefront-service/apperrors"
	"storefront-service/identity"
	"storefront-service/logger"

	"go.uber.org/zap"
)

// Authenticator is the identity provider surface the session store drives.
type Authenticator interface {
	CreateAccount(ctx context.Context, email, password string) (*identity.Identity, error)
	SignIn(ctx context.Context, email, password string) (*identity.Identity, error)
	SignInFederated(ctx context.Context, credential string) (*identity.Identity, error)
	SignOut(ctx context.Context, token string) error
}

type Operation string

const (
	OpSignUp          Operation = "signUp"
	OpSignIn          Operation = "signIn"
	OpFederatedSignIn Operation = "federatedSignIn"
	OpSignOut         Operation = "signOut"
)

type OpStatus string

const (
	StatusIdle      OpStatus = "idle"
	StatusPending   OpStatus = "pending"
	StatusFulfilled OpStatus = "fulfilled"
	StatusRejected  OpStatus = "rejected"
)

// ErrSessionReset is returned by an operation whose outcome was discarded
// because the session was signed out while it was pending.
var ErrSessionReset = errors.New("session was signed out while the request was pending")

// ErrOperationAborted is recorded when a provider call ends without returning.
var ErrOperationAborted = errors.New("authentication was interrupted")

// SessionUser is the signed-in identity. Email is nil when signed out.
type SessionUser struct {
	Email       *string `json:"email"`
	DisplayName string  `json:"displayName,omitempty"`
	PhotoURL    string  `json:"photoURL,omitempty"`
	UID         string  `json:"uid,omitempty"`
}

// SessionState is an immutable snapshot of the auth session.
type SessionState struct {
	User          SessionUser `json:"user"`
	IsLoading     bool        `json:"isLoading"`
	IsError       bool        `json:"isError"`
	Error         *string     `json:"error"`
	LastOperation Operation   `json:"lastOperation,omitempty"`
	LastStatus    OpStatus    `json:"lastStatus"`
}

// SignedIn reports whether an identity is established.
func (s SessionState) SignedIn() bool {
	return s.User.Email != nil && *s.User.Email != ""
}

// Email returns the signed-in email or "".
func (s SessionState) Email() string {
	if s.User.Email == nil {
		return ""
	}
	return *s.User.Email
}

// AuthResult is the tagged outcome of one auth operation.
type AuthResult struct {
	Operation Operation `json:"operation"`
	Status    OpStatus  `json:"status"`
	Email     string    `json:"email,omitempty"`
	Err       error     `json:"-"`
}

// OK reports whether the operation was fulfilled.
func (r AuthResult) OK() bool {
	return r.Status == StatusFulfilled
}

// Session tracks the signed-in identity and the status of the latest auth
// operation. Only one sign-up/sign-in may be pending at a time.
type Session struct {
	mu         sync.Mutex
	dispatchMu sync.Mutex
	provider   Authenticator
	state      SessionState
	token      string
	generation uint64
	listeners  subject[SessionState]
}

// NewSession returns a signed-out session backed by provider.
func NewSession(provider Authenticator) *Session {
	return &Session{
		provider: provider,
		state:    SessionState{LastStatus: StatusIdle},
	}
}

// SignUp creates an account. A successful sign-up does not establish a
// session; the caller signs in explicitly afterwards.
func (s *Session) SignUp(ctx context.Context, email, password string) AuthResult {
	return s.run(ctx, OpSignUp, false, func(ctx context.Context) (*identity.Identity, error) {
		return s.provider.CreateAccount(ctx, email, password)
	})
}

// SignIn verifies credentials and establishes the session.
func (s *Session) SignIn(ctx context.Context, email, password string) AuthResult {
	return s.run(ctx, OpSignIn, true, func(ctx context.Context) (*identity.Identity, error) {
		return s.provider.SignIn(ctx, email, password)
	})
}

// SignInFederated exchanges a federated credential (an ID token from the
// external sign-in popup) for a session.
func (s *Session) SignInFederated(ctx context.Context, credential string) AuthResult {
	return s.run(ctx, OpFederatedSignIn, true, func(ctx context.Context) (*identity.Identity, error) {
		return s.provider.SignInFederated(ctx, credential)
	})
}

// SignOut clears the identity and error flags. It is idempotent and
// discards the outcome of any pending operation.
func (s *Session) SignOut(ctx context.Context) AuthResult {
	s.mu.Lock()
	token := s.token
	s.token = ""
	s.generation++
	s.state = SessionState{LastOperation: OpSignOut, LastStatus: StatusFulfilled}
	s.commit()

	if token != "" {
		if err := s.provider.SignOut(ctx, token); err != nil {
			logger.Warn(ctx, "identity provider sign-out failed", zap.Error(err))
		}
	}
	return AuthResult{Operation: OpSignOut, Status: StatusFulfilled}
}

// Snapshot returns the current state.
func (s *Session) Snapshot() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Token returns the provider access token of the signed-in user.
func (s *Session) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

// Subscribe registers l for state changes.
func (s *Session) Subscribe(l Listener[SessionState]) (unsubscribe func()) {
	return s.listeners.subscribe(l)
}

func (s *Session) run(ctx context.Context, op Operation, establish bool, call func(context.Context) (*identity.Identity, error)) AuthResult {
	s.mu.Lock()
	if s.state.IsLoading {
		s.mu.Unlock()
		return AuthResult{Operation: op, Status: StatusRejected, Err: apperrors.ErrAuthInFlight}
	}
	gen := s.generation
	s.state.IsLoading = true
	s.state.IsError = false
	s.state.Error = nil
	s.state.LastOperation = op
	s.state.LastStatus = StatusPending
	s.commit()

	returned := false
	defer func() {
		if !returned {
			s.abort(gen)
		}
	}()
	id, err := call(ctx)
	returned = true
	if err == nil && id == nil {
		err = identity.ErrNoIdentity
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		return AuthResult{Operation: op, Status: StatusRejected, Err: ErrSessionReset}
	}

	s.state.IsLoading = false
	if err != nil {
		msg := err.Error()
		s.state.User = SessionUser{}
		s.token = ""
		s.state.IsError = true
		s.state.Error = &msg
		s.state.LastStatus = StatusRejected
		s.commit()
		return AuthResult{Operation: op, Status: StatusRejected, Err: err}
	}

	if establish {
		email := id.Email
		s.state.User = SessionUser{
			Email:       &email,
			DisplayName: id.DisplayName,
			PhotoURL:    id.PhotoURL,
			UID:         id.UID,
		}
		s.token = id.Token
	}
	s.state.LastStatus = StatusFulfilled
	s.commit()
	return AuthResult{Operation: op, Status: StatusFulfilled, Email: id.Email}
}

// abort rejects the pending operation of generation gen when its provider
// call never returned, so the session does not stay loading.
func (s *Session) abort(gen uint64) {
	s.mu.Lock()
	if s.generation != gen || !s.state.IsLoading {
		s.mu.Unlock()
		return
	}
	msg := ErrOperationAborted.Error()
	s.state.IsLoading = false
	s.state.User = SessionUser{}
	s.token = ""
	s.state.IsError = true
	s.state.Error = &msg
	s.state.LastStatus = StatusRejected
	s.commit()
}

// commit must be called with s.mu held; it releases it and notifies
// listeners in mutation order.
func (s *Session) commit() {
	state := s.state
	s.dispatchMu.Lock()
	s.mu.Unlock()
	defer s.dispatchMu.Unlock()
	s.listeners.notify(state)
}
