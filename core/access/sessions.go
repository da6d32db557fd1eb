package access

import (
	"context"
	"fmt"
)

// Sessions authenticates login sessions against the identity system of one database
type Sessions struct {
	// Database is the name of the database the gateway serves
	Database string
	// Authenticator checks the password
	Authenticator Authenticator
}

// Authenticate checks login and password. The database must be empty or match the configured
// database. Every failure is reported as ErrAuthentication.
func (s Sessions) Authenticate(ctx context.Context, database, login, password string) (*Identity, error) {
	if database != "" && database != s.Database {
		return nil, fmt.Errorf("%w: unknown database %s", ErrAuthentication, database)
	}
	if login == "" || password == "" {
		return nil, fmt.Errorf("%w: missing login or password", ErrAuthentication)
	}
	return s.Authenticator.Authenticate(ctx, login, password)
}
