package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MicahParks/keyfunc"
	"github.com/golang-jwt/jwt/v4"

	"github.com/IDGHIM/TaskFlow/taskstore"
)

// AuthMode selects how bearer tokens are verified.
type AuthMode string

const (
	// AuthNone trusts every caller and maps it to the default owner.
	AuthNone AuthMode = "none"
	// AuthHS256 verifies tokens signed with a shared secret.
	AuthHS256 AuthMode = "hs256"
	// AuthJWKS verifies RS256 tokens against a remote key set.
	AuthJWKS AuthMode = "jwks"
)

// ParseAuthMode accepts the mode names case-insensitively. Empty means none.
func ParseAuthMode(s string) (AuthMode, error) {
	switch m := AuthMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", AuthNone:
		return AuthNone, nil
	case AuthHS256, AuthJWKS:
		return m, nil
	default:
		return "", fmt.Errorf("unsupported auth mode %q", s)
	}
}

// Auth validates incoming JWT tokens.
type Auth struct {
	Mode     AuthMode
	JWKS     *keyfunc.JWKS
	Secret   []byte
	Audience string
	Issuer   string

	parser *jwt.Parser
}

// NewAuth creates an Auth for mode. hs256 requires secret and jwks requires
// a key set.
func NewAuth(mode AuthMode, secret []byte, jwks *keyfunc.JWKS, audience, issuer string) (*Auth, error) {
	a := &Auth{Mode: mode, JWKS: jwks, Secret: secret, Audience: audience, Issuer: issuer}
	switch mode {
	case AuthNone:
	case AuthHS256:
		if len(secret) == 0 {
			return nil, errors.New("hs256 auth requires a secret")
		}
		a.parser = jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	case AuthJWKS:
		if jwks == nil {
			return nil, errors.New("jwks auth requires a key set")
		}
		a.parser = jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))
	default:
		return nil, fmt.Errorf("unsupported auth mode %q", mode)
	}
	return a, nil
}

// UserIDFromAuthHeader extracts the user identifier from the Authorization header.
func (a *Auth) UserIDFromAuthHeader(h string) (string, error) {
	if a.Mode == AuthNone {
		return taskstore.DefaultOwner, nil
	}
	token, err := bearerTokenFromString(h)
	if err != nil {
		return "", err
	}
	return a.UserIDFromBearer(token)
}

// UserIDFromBearer verifies a compact JWT and returns its subject.
func (a *Auth) UserIDFromBearer(token string) (string, error) {
	if token == "" {
		return "", errBadAuthorization
	}

	parsed, err := a.parser.Parse(token, a.keyFor)
	if err != nil {
		return "", err
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("invalid claims")
	}

	now := time.Now().Add(time.Minute).Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return "", errors.New("token expired")
	}
	if !claims.VerifyNotBefore(now, false) {
		return "", errors.New("token not valid yet")
	}
	if a.Audience != "" && !claims.VerifyAudience(a.Audience, false) {
		return "", errors.New("invalid audience")
	}
	if a.Issuer != "" && !claims.VerifyIssuer(a.Issuer, false) {
		return "", errors.New("invalid issuer")
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", errors.New("missing sub")
	}
	return sub, nil
}

func (a *Auth) keyFor(t *jwt.Token) (any, error) {
	if a.Mode == AuthHS256 {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return a.Secret, nil
	}
	return a.JWKS.Keyfunc(t)
}
