// Package identity defines the interface boundary to the external account
// service. The core only ever asks one question: does this session token
// map to an account and save identity.
package identity

import (
	"context"
	"errors"
	"sync"
)

// ErrInvalidToken is returned when the provider does not recognize a
// session token.
var ErrInvalidToken = errors.New("identity: invalid session token")

// Identity is the authenticated account plus save identity bound to a
// connection at login.
type Identity struct {
	// AccountID identifies the account at the account service.
	AccountID string
	// SaveID identifies the player's save slot; it is the in-world
	// player identity.
	SaveID string
	// DisplayName is the player's visible name.
	DisplayName string
}

// Provider validates session tokens. Implementations may call out over the
// network; callers bound the call with the context so a non-responding
// provider is treated as a failed login.
type Provider interface {
	Validate(ctx context.Context, token string) (Identity, error)
}

// StaticProvider is an in-memory token table, used by the dev-mode binary
// and tests.
type StaticProvider struct {
	mu     sync.RWMutex
	tokens map[string]Identity
}

// NewStaticProvider creates an empty token table.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{tokens: make(map[string]Identity)}
}

// Add registers a token.
func (p *StaticProvider) Add(token string, id Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens[token] = id
}

// Validate resolves a token or fails with ErrInvalidToken. A cancelled
// context fails first.
func (p *StaticProvider) Validate(ctx context.Context, token string) (Identity, error) {
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.tokens[token]
	if !ok {
		return Identity{}, ErrInvalidToken
	}
	return id, nil
}
