package secrets

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// StaticStore serves credentials from memory. Used for local development and
// tests, where the shared database and a handful of tenants are known up
// front; production wiring uses VaultStore.
type StaticStore struct {
	shared  DatabaseCredentials
	tenants map[uuid.UUID]DatabaseCredentials
}

// NewStaticStore builds a store with the given shared credentials.
func NewStaticStore(shared DatabaseCredentials) *StaticStore {
	return &StaticStore{
		shared:  shared,
		tenants: make(map[uuid.UUID]DatabaseCredentials),
	}
}

// SetTenant registers credentials for one tenant, replacing any previous entry.
func (s *StaticStore) SetTenant(tenantID uuid.UUID, creds DatabaseCredentials) {
	s.tenants[tenantID] = creds
}

// GetDatabaseCredentials returns the registered tenant credentials.
func (s *StaticStore) GetDatabaseCredentials(_ context.Context, tenantID uuid.UUID) (DatabaseCredentials, error) {
	creds, ok := s.tenants[tenantID]
	if !ok {
		return DatabaseCredentials{}, fmt.Errorf("%w: tenant %s", ErrCredentialsNotFound, tenantID)
	}
	if err := creds.Validate(); err != nil {
		return DatabaseCredentials{}, err
	}
	return creds, nil
}

// GetSharedDatabaseCredentials returns the shared database credentials.
func (s *StaticStore) GetSharedDatabaseCredentials(context.Context) (DatabaseCredentials, error) {
	if err := s.shared.Validate(); err != nil {
		return DatabaseCredentials{}, err
	}
	return s.shared, nil
}

var _ Store = (*StaticStore)(nil)
