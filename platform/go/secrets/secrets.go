// Package secrets resolves database credentials for the shared database and
// for individual tenants. Migrations require admin-level connection strings;
// normal traffic uses the application-level ones.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrCredentialsNotFound is returned when no credentials exist for the
// requested scope. Failures never degrade to an empty credential.
var ErrCredentialsNotFound = errors.New("database credentials not found")

// DatabaseCredentials carries the connection strings for one database. The
// admin string holds elevated privileges sufficient to apply schema changes;
// the app string is what request traffic uses.
type DatabaseCredentials struct {
	ProviderName          string
	AdminConnectionString string
	AppConnectionString   string
}

// Validate rejects credentials that are unusable for migrations.
func (c DatabaseCredentials) Validate() error {
	if strings.TrimSpace(c.AdminConnectionString) == "" {
		return fmt.Errorf("%w: empty admin connection string", ErrCredentialsNotFound)
	}
	return nil
}

// Store yields database credentials per tenant and for the shared database.
// Implementations must propagate failures as errors; callers depend on never
// receiving a silently empty credential.
type Store interface {
	GetDatabaseCredentials(ctx context.Context, tenantID uuid.UUID) (DatabaseCredentials, error)
	GetSharedDatabaseCredentials(ctx context.Context) (DatabaseCredentials, error)
}
