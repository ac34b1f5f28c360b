package auth

import (
	"errors"
	"fmt"

	"github.com/Skotchmaster/catalog_admin/pkg/tokens"
)

var (
	ErrNoToken      = errors.New("no token provided")
	ErrInvalidToken = errors.New("invalid or expired token")
)

type Verifier interface {
	Verify(token string) (*tokens.Claims, error)
}

// Authenticator is the single credential check shared by the API guard and
// the page navigation guard.
type Authenticator struct {
	Tokens Verifier
}

func NewAuthenticator(v Verifier) *Authenticator {
	return &Authenticator{Tokens: v}
}

func (a *Authenticator) Authenticate(credential string) (*tokens.Claims, error) {
	if credential == "" {
		return nil, ErrNoToken
	}
	claims, err := a.Tokens.Verify(credential)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
