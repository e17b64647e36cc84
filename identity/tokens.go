package identity

import (
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

// TokenVerifier validates HS256 access tokens issued by the identity service
// and extracts the identity claims.
type TokenVerifier struct {
	secretKey []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secretKey: []byte(secret)}
}

// Verify parses tokenStr and returns its claims. If expectedType is
// non-empty, the "typ" claim must match it.
func (v *TokenVerifier) Verify(tokenStr, expectedType string) (jwt.MapClaims, error) {
	if v == nil || len(v.secretKey) == 0 {
		return nil, fmt.Errorf("JWT secret not configured")
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secretKey, nil
	})
	if err != nil || token == nil || !token.Valid {
		return nil, fmt.Errorf("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	if expectedType != "" {
		if typ, ok := claims["typ"].(string); !ok || typ != expectedType {
			return nil, fmt.Errorf("invalid token type")
		}
	}
	return claims, nil
}

// IdentityFrom builds an Identity from verified claims.
func IdentityFrom(token string, claims jwt.MapClaims) (*Identity, error) {
	email, _ := claims["email"].(string)
	if email == "" {
		return nil, fmt.Errorf("invalid token: email claim is missing")
	}
	id := &Identity{Email: email, Token: token}
	id.UID, _ = claims["sub"].(string)
	id.DisplayName, _ = claims["name"].(string)
	id.PhotoURL, _ = claims["picture"].(string)
	return id, nil
}
