package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
)

var (
	ErrNoToken      = errors.New("no session token")
	ErrTokenExpired = errors.New("session token expired")
)

// tokenExpiry reads the exp claim without verifying the signature; the
// service verifies, the client only needs to know when to stop sending it.
// A token without exp yields the zero time.
func tokenExpiry(raw string) (time.Time, error) {
	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse token: %w", err)
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read token expiry: %w", err)
	}
	if exp == nil {
		return time.Time{}, nil
	}
	return exp.Time, nil
}

// Token implements oauth2.TokenSource over the stored bearer credential
func (s *Store) Token() (*oauth2.Token, error) {
	s.mu.RLock()
	raw := s.token
	s.mu.RUnlock()

	if raw == "" {
		return nil, ErrNoToken
	}

	token := &oauth2.Token{AccessToken: raw, TokenType: "Bearer"}
	expiry, err := tokenExpiry(raw)
	if err != nil {
		// opaque tokens are passed through; the service decides
		return token, nil
	}
	if !expiry.IsZero() && !expiry.After(s.now()) {
		return nil, ErrTokenExpired
	}
	token.Expiry = expiry
	return token, nil
}

// HasToken reports whether a bearer credential is stored
func (s *Store) HasToken() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

var _ oauth2.TokenSource = (*Store)(nil)
