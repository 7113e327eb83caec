package auth

import (
	"context"
	"errors"
	"sync"
)

// ErrNoIDToken is returned by a provider holding no identity token.
var ErrNoIDToken = errors.New("identity provider has no token")

// StaticProvider is a FederatedProvider backed by an identity token handed to
// the agent at startup. Revoke forgets the token so it cannot be replayed.
type StaticProvider struct {
	name string

	mu      sync.Mutex
	idToken string
}

func NewStaticProvider(name, idToken string) *StaticProvider {
	return &StaticProvider{name: name, idToken: idToken}
}

func (p *StaticProvider) Name() string {
	return p.name
}

func (p *StaticProvider) IDToken(context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.idToken == "" {
		return "", ErrNoIDToken
	}
	return p.idToken, nil
}

func (p *StaticProvider) Revoke(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idToken = ""
	return nil
}
