package auth

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"pokemon-battle-server/storage"
)

// ErrNotConfigured is returned when no auth base URL was provided.
var ErrNotConfigured = errors.New("auth base URL is not set")

// Validator checks bearer tokens against the JWKS published under baseURL.
// The key set is fetched lazily on first use and then refreshed in the
// background by keyfunc.
type Validator struct {
	baseURL string
	issuer  string

	once    sync.Once
	keys    keyfunc.Keyfunc
	initErr error

	// keyfuncOverride lets tests plug in a static key.
	keyfuncOverride jwt.Keyfunc
}

// NewValidator returns a Validator for baseURL. An empty baseURL yields a
// Validator whose Validate always fails with ErrNotConfigured.
func NewValidator(baseURL string) (*Validator, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	v := &Validator{baseURL: baseURL}
	if baseURL == "" {
		return v, nil
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	v.issuer = u.Scheme + "://" + u.Host
	return v, nil
}

// Configured reports whether tokens can be validated at all.
func (v *Validator) Configured() bool {
	return v != nil && (v.baseURL != "" || v.keyfuncOverride != nil)
}

func (v *Validator) loadKeyfunc() (jwt.Keyfunc, error) {
	if v.keyfuncOverride != nil {
		return v.keyfuncOverride, nil
	}
	v.once.Do(func() {
		v.keys, v.initErr = keyfunc.NewDefault([]string{v.baseURL + "/.well-known/jwks.json"})
	})
	if v.initErr != nil {
		return nil, v.initErr
	}
	return v.keys.Keyfunc, nil
}

// Validate parses tokenString and returns its claims.
func (v *Validator) Validate(tokenString string) (jwt.MapClaims, error) {
	if !v.Configured() {
		return nil, ErrNotConfigured
	}
	kf, err := v.loadKeyfunc()
	if err != nil {
		return nil, fmt.Errorf("load jwks: %w", err)
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{"EdDSA", "RS256", "ES256"})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	token, err := jwt.Parse(tokenString, kf, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

// UserIDFromClaims returns the user id from claims ("sub" or "id").
func UserIDFromClaims(claims jwt.MapClaims) string {
	if sub, ok := claims["sub"].(string); ok && sub != "" {
		return sub
	}
	if id, ok := claims["id"].(string); ok && id != "" {
		return id
	}
	return ""
}

// BearerToken extracts the token from an "Authorization: Bearer …" header value.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// ResolveParticipant picks the identity for a connecting player: a valid
// token wins, then a previously issued anonymous id, then a fresh one.
func (v *Validator) ResolveParticipant(token, claimedID string) (string, error) {
	if token != "" {
		claims, err := v.Validate(token)
		if err != nil {
			return "", err
		}
		if id := UserIDFromClaims(claims); id != "" {
			return id, nil
		}
		return "", fmt.Errorf("token has no subject")
	}
	if storage.IsAnonymousUserID(claimedID) {
		if _, err := uuid.Parse(strings.TrimPrefix(claimedID, storage.AnonymousUserID(""))); err == nil {
			return claimedID, nil
		}
	}
	return storage.AnonymousUserID(uuid.NewString()), nil
}
