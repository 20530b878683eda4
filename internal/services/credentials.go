package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/desertthunder/adder/internal/shared"
	"golang.org/x/oauth2"
)

// TokenCredentials hands out credentials from an [oauth2.TokenSource], refreshing when the token expires.
type TokenCredentials struct {
	source oauth2.TokenSource
}

// NewTokenCredentials wraps token in a refreshing source built from config.
//
// onRefresh, if set, is called each time a different access token is issued so it can be persisted.
func NewTokenCredentials(ctx context.Context, config *oauth2.Config, token *oauth2.Token, onRefresh func(*oauth2.Token)) (*TokenCredentials, error) {
	if token == nil || (token.AccessToken == "" && token.RefreshToken == "") {
		return nil, fmt.Errorf("%w: run `adder auth` first", shared.ErrNotAuthenticated)
	}

	base := config.TokenSource(ctx, token)
	src := &refreshableTokenSource{source: base, callback: onRefresh, last: token.AccessToken}
	return &TokenCredentials{source: oauth2.ReuseTokenSource(token, src)}, nil
}

// Credential returns a valid credential, refreshing the token if needed.
func (c *TokenCredentials) Credential(ctx context.Context) (Credential, error) {
	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}

	token, err := c.source.Token()
	if err != nil {
		return Credential{}, fmt.Errorf("%w: %w", shared.ErrTokenExpired, err)
	}
	return Credential{Token: token}, nil
}

// StaticCredentials always returns the same credential.
type StaticCredentials struct {
	Cred Credential
	Err  error
}

// Credential returns the stored credential or error.
func (s StaticCredentials) Credential(context.Context) (Credential, error) {
	if s.Err != nil {
		return Credential{}, s.Err
	}
	if !s.Cred.Valid() {
		return Credential{}, shared.ErrNotAuthenticated
	}
	return s.Cred, nil
}

// refreshableTokenSource reports newly issued tokens to callback.
type refreshableTokenSource struct {
	mu       sync.Mutex
	source   oauth2.TokenSource
	callback func(*oauth2.Token)
	last     string
}

func (s *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.source.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	changed := token.AccessToken != s.last
	s.last = token.AccessToken
	s.mu.Unlock()

	if changed && s.callback != nil {
		s.notify(token)
	}
	return token, nil
}

func (s *refreshableTokenSource) notify(token *oauth2.Token) {
	defer func() { _ = recover() }()
	s.callback(token)
}
