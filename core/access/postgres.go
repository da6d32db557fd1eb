package access

import (
	"context"
	"errors"
	"fmt"

	"github.com/relabs-tech/modelgate/core/csql"
)

// PostgresStore is a credential store in the table "identity" of a postgres schema
type PostgresStore struct {
	db    *csql.DB
	table string
}

// NewPostgresStore creates the identity table if it does not exist yet
func NewPostgresStore(ctx context.Context, db *csql.DB) (*PostgresStore, error) {
	s := &PostgresStore{db: db, table: db.Table("identity")}
	_, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+s.table+`
(login varchar PRIMARY KEY,
name varchar NOT NULL,
password_hash varchar NOT NULL,
key_digest varchar UNIQUE,
key_issued_at timestamp with time zone,
create_date timestamp with time zone NOT NULL DEFAULT now()
);`)
	if err != nil {
		return nil, fmt.Errorf("cannot create identity table: %w", err)
	}
	return s, nil
}

// Register implements Store
func (s *PostgresStore) Register(ctx context.Context, identity Identity, passwordHash string) error {
	if identity.Login == "" || passwordHash == "" {
		return ErrInvalidIdentity
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO `+s.table+` (login, name, password_hash) VALUES ($1, $2, $3) ON CONFLICT (login) DO NOTHING;`,
		identity.Login, identity.Name, passwordHash)
	if err != nil {
		return fmt.Errorf("cannot register %s: %w", identity.Login, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", ErrIdentityExists, identity.Login)
	}
	return nil
}

// Authenticate implements Store
func (s *PostgresStore) Authenticate(ctx context.Context, login, password string) (*Identity, error) {
	var (
		identity = Identity{Login: login}
		hash     string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT name, password_hash FROM `+s.table+` WHERE login = $1;`, login).Scan(&identity.Name, &hash)
	if errors.Is(err, csql.ErrNoRows) {
		return nil, ErrAuthentication
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read identity %s: %w", login, err)
	}
	if !CheckPassword(hash, password) {
		return nil, ErrAuthentication
	}
	return &identity, nil
}

// IssueAPIKey implements Store. The previous digest is overwritten in the same statement.
func (s *PostgresStore) IssueAPIKey(ctx context.Context, login string) (string, error) {
	key, err := GenerateAPIKey()
	if err != nil {
		return "", err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE `+s.table+` SET key_digest = $2, key_issued_at = now() WHERE login = $1;`,
		login, HashAPIKey(key))
	if err != nil {
		return "", fmt.Errorf("cannot issue api key for %s: %w", login, err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if count == 0 {
		return "", ErrAuthentication
	}
	return key, nil
}

// ValidateAPIKey implements Store
func (s *PostgresStore) ValidateAPIKey(ctx context.Context, key string) (*Identity, error) {
	var identity Identity
	err := s.db.QueryRowContext(ctx,
		`SELECT login, name FROM `+s.table+` WHERE key_digest = $1;`, HashAPIKey(key)).Scan(&identity.Login, &identity.Name)
	if errors.Is(err, csql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot look up api key: %w", err)
	}
	return &identity, nil
}
