package access

import (
	"context"
	"fmt"
	"sync"
)

type memoryIdentity struct {
	Identity
	passwordHash string
	keyDigest    string
}

// MemoryStore is a credential store kept in process memory
type MemoryStore struct {
	mutex      sync.RWMutex
	identities map[string]*memoryIdentity
	keys       map[string]string // key digest to login
}

// NewMemoryStore creates an empty in-memory credential store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		identities: map[string]*memoryIdentity{},
		keys:       map[string]string{},
	}
}

// Register implements Store
func (s *MemoryStore) Register(ctx context.Context, identity Identity, passwordHash string) error {
	if identity.Login == "" || passwordHash == "" {
		return ErrInvalidIdentity
	}
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if _, ok := s.identities[identity.Login]; ok {
		return fmt.Errorf("%w: %s", ErrIdentityExists, identity.Login)
	}
	s.identities[identity.Login] = &memoryIdentity{Identity: identity, passwordHash: passwordHash}
	return nil
}

// Authenticate implements Store
func (s *MemoryStore) Authenticate(ctx context.Context, login, password string) (*Identity, error) {
	s.mutex.RLock()
	mi, ok := s.identities[login]
	s.mutex.RUnlock()
	if !ok || !CheckPassword(mi.passwordHash, password) {
		return nil, ErrAuthentication
	}
	identity := mi.Identity
	return &identity, nil
}

// IssueAPIKey implements Store
func (s *MemoryStore) IssueAPIKey(ctx context.Context, login string) (string, error) {
	key, err := GenerateAPIKey()
	if err != nil {
		return "", err
	}
	digest := HashAPIKey(key)

	s.mutex.Lock()
	defer s.mutex.Unlock()
	mi, ok := s.identities[login]
	if !ok {
		return "", ErrAuthentication
	}
	if mi.keyDigest != "" {
		delete(s.keys, mi.keyDigest)
	}
	mi.keyDigest = digest
	s.keys[digest] = login
	return key, nil
}

// ValidateAPIKey implements Store
func (s *MemoryStore) ValidateAPIKey(ctx context.Context, key string) (*Identity, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	login, ok := s.keys[HashAPIKey(key)]
	if !ok {
		return nil, nil
	}
	identity := s.identities[login].Identity
	return &identity, nil
}
