package live

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized is returned when a handshake credential cannot be verified.
var ErrUnauthorized = errors.New("unauthorized subscriber credential")

// Credential is the verified identity carried by a subscriber handshake.
type Credential struct {
	Identity string
	IsAdmin  bool
}

type subscriberClaims struct {
	Admin bool `json:"admin"`
	jwt.RegisteredClaims
}

// ParseCredential verifies a bearer token issued by the session layer and
// extracts the subscriber identity and admin flag.
func ParseCredential(token, secret string) (Credential, error) {
	if token == "" {
		return Credential{}, ErrUnauthorized
	}

	claims := &subscriberClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return Credential{}, ErrUnauthorized
	}

	if claims.Subject == "" {
		return Credential{}, ErrUnauthorized
	}

	return Credential{
		Identity: claims.Subject,
		IsAdmin:  claims.Admin,
	}, nil
}
