package access

import (
	"context"
	"fmt"
	"strings"
)

// Outcome is the result of an API key check. It is one of Authenticated, InvalidKey
// or MissingKey.
type Outcome interface {
	outcome()
}

// Authenticated means the key belongs to Identity
type Authenticated struct {
	Identity Identity
}

// InvalidKey means a key was supplied but it matches no identity
type InvalidKey struct{}

// MissingKey means no key was supplied
type MissingKey struct{}

func (Authenticated) outcome() {}
func (InvalidKey) outcome()    {}
func (MissingKey) outcome()    {}

// Verify checks an API key. The error is only set if the validator fails.
func Verify(ctx context.Context, validator KeyValidator, key string) (Outcome, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return MissingKey{}, nil
	}
	identity, err := validator.ValidateAPIKey(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("cannot validate api key: %w", err)
	}
	if identity == nil {
		return InvalidKey{}, nil
	}
	return Authenticated{Identity: *identity}, nil
}
