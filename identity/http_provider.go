package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"storefront-service/clients"
)

const accessTokenType = "access"

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	Token       string `json:"token"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Picture     string `json:"picture"`
	FirebaseID  string `json:"firebase_id"`
}

func (t tokenResponse) token() string {
	if t.AccessToken != "" {
		return t.AccessToken
	}
	return t.Token
}

// HTTPProvider talks to the identity service over HTTP and verifies the
// access tokens it issues.
type HTTPProvider struct {
	gw       *clients.GatewayClient
	verifier *TokenVerifier
}

func NewHTTPProvider(gw *clients.GatewayClient, verifier *TokenVerifier) *HTTPProvider {
	return &HTTPProvider{gw: gw, verifier: verifier}
}

// CreateAccount registers email/password. No token is expected back.
func (p *HTTPProvider) CreateAccount(ctx context.Context, email, password string) (*Identity, error) {
	resp, err := p.gw.DoJSON(ctx, http.MethodPost, "/register", nil, nil, credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	if _, err := readOK(resp); err != nil {
		return nil, err
	}
	return &Identity{Email: email}, nil
}

func (p *HTTPProvider) SignIn(ctx context.Context, email, password string) (*Identity, error) {
	resp, err := p.gw.DoJSON(ctx, http.MethodPost, "/login", nil, nil, credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	body, err := readOK(resp)
	if err != nil {
		return nil, err
	}

	var tr tokenResponse
	_ = json.Unmarshal(body, &tr)
	token := tr.token()
	if token == "" {
		for _, ck := range resp.Cookies() {
			if ck.Name == "token" {
				token = ck.Value
			}
		}
	}
	if token == "" {
		return nil, ErrNoIdentity
	}
	return p.identityFromToken(token)
}

// SignInFederated exchanges an external ID token for a session. Profile
// fields from the response fill in whatever the access token lacks.
func (p *HTTPProvider) SignInFederated(ctx context.Context, credential string) (*Identity, error) {
	resp, err := p.gw.DoJSON(ctx, http.MethodPost, "/google", nil, nil, map[string]string{"idToken": credential})
	if err != nil {
		return nil, err
	}
	body, err := readOK(resp)
	if err != nil {
		return nil, err
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("decode federated response: %w", err)
	}
	if tr.token() == "" {
		return nil, ErrNoIdentity
	}
	id, err := p.identityFromToken(tr.token())
	if err != nil {
		return nil, err
	}
	if id.DisplayName == "" {
		id.DisplayName = tr.Name
	}
	if id.PhotoURL == "" {
		id.PhotoURL = tr.Picture
	}
	if tr.FirebaseID != "" {
		id.UID = tr.FirebaseID
	}
	return id, nil
}

func (p *HTTPProvider) SignOut(ctx context.Context, token string) error {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	resp, err := p.gw.Do(ctx, http.MethodPost, "/logout", nil, h, nil)
	if err != nil {
		return err
	}
	_, err = readOK(resp)
	return err
}

func (p *HTTPProvider) identityFromToken(token string) (*Identity, error) {
	claims, err := p.verifier.Verify(token, accessTokenType)
	if err != nil {
		return nil, &ProviderError{StatusCode: http.StatusUnauthorized, Message: err.Error()}
	}
	return IdentityFrom(token, claims)
}

func readOK(resp *http.Response) ([]byte, error) {
	body, err := clients.ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read identity response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: clients.ErrorMessage(body, resp.StatusCode)}
	}
	return body, nil
}
