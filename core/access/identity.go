// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

/*Package access provides the credential store of the gateway and utilities for access control

An identity is a user with a unique login, a bcrypt password hash and at most one
live API key. Keys are opaque strings; at rest only their SHA-256 digest is kept.
Three store implementations exist: in process memory, postgres and redis.
*/
package access

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrAuthentication is returned when a login, password or key does not authenticate an identity
	ErrAuthentication = errors.New("authentication failed")
	// ErrIdentityExists is returned when an identity with the same login is registered twice
	ErrIdentityExists = errors.New("identity already exists")
	// ErrInvalidIdentity is returned for identities without login or password
	ErrInvalidIdentity = errors.New("invalid identity")
)

// Identity is an authenticated user of the gateway
type Identity struct {
	Login string `json:"login"`
	Name  string `json:"name"`
}

// KeyValidator looks up the identity that owns an API key. It returns nil and no error
// if the key matches nobody.
type KeyValidator interface {
	ValidateAPIKey(ctx context.Context, key string) (*Identity, error)
}

// Authenticator checks a login and password
type Authenticator interface {
	Authenticate(ctx context.Context, login, password string) (*Identity, error)
}

// Store is a credential store
type Store interface {
	KeyValidator
	Authenticator
	// IssueAPIKey generates a new key for the identity with the given login. Any previous
	// key of the identity stops working. Returns ErrAuthentication for unknown logins.
	IssueAPIKey(ctx context.Context, login string) (string, error)
	// Register stores a new identity with an already hashed password
	Register(ctx context.Context, identity Identity, passwordHash string) error
}

// CreateIdentity hashes the password and registers a new identity
func CreateIdentity(ctx context.Context, store Store, login, name, password string) (*Identity, error) {
	login = strings.TrimSpace(login)
	if login == "" || password == "" {
		return nil, ErrInvalidIdentity
	}
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	identity := Identity{Login: login, Name: name}
	if identity.Name == "" {
		identity.Name = login
	}
	if err := store.Register(ctx, identity, hash); err != nil {
		return nil, err
	}
	return &identity, nil
}

// contextKey is the type for context keys. Go linter does not like plain strings
type contextKey string

const contextKeyIdentity contextKey = "_identity_"

// ContextWithIdentity returns a new context with the identity added to it
func ContextWithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, contextKeyIdentity, identity)
}

// IdentityFromContext retrieves an identity from the context
func IdentityFromContext(ctx context.Context) *Identity {
	identity, _ := ctx.Value(contextKeyIdentity).(*Identity)
	return identity
}
