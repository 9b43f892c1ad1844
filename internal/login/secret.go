// Package login answers the interactive prompts ssh prints on a terminal.
package login

import (
	"context"
	"fmt"
)

// Provider resolves a secret on demand, e.g. by asking the user.
type Provider func(ctx context.Context) (string, error)

// Secret is either a fixed value or a provider. The zero value means none.
type Secret struct {
	value    string
	provider Provider
	fixed    bool
}

// Fixed returns a secret with a known value.
func Fixed(value string) Secret {
	return Secret{value: value, fixed: true}
}

// FromProvider returns a secret resolved by p when a prompt appears.
func FromProvider(p Provider) Secret {
	if p == nil {
		return Secret{}
	}
	return Secret{provider: p}
}

// IsZero reports whether no secret is configured.
func (s Secret) IsZero() bool {
	return !s.fixed && s.provider == nil
}

// IsProvider reports whether the secret is resolved on demand.
func (s Secret) IsProvider() bool {
	return s.provider != nil
}

// Resolve returns the secret's value.
func (s Secret) Resolve(ctx context.Context) (string, error) {
	switch {
	case s.fixed:
		return s.value, nil
	case s.provider != nil:
		return s.provider(ctx)
	default:
		return "", fmt.Errorf("no secret configured")
	}
}

// String never renders the secret.
func (s Secret) String() string {
	switch {
	case s.fixed:
		return "Secret(fixed)"
	case s.provider != nil:
		return "Secret(provider)"
	default:
		return "Secret(none)"
	}
}

// GoString keeps %#v from leaking the value.
func (s Secret) GoString() string {
	return s.String()
}

// Credentials are the secrets offered to ssh's prompts.
type Credentials struct {
	Password   Secret
	Passphrase Secret
}
