package secrets

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	vault "github.com/hashicorp/vault/api"
)

// VaultStore reads database credentials from a Vault KV v2 mount.
//
// Layout under the mount:
//
//	<base>/shared                  shared database credentials
//	<base>/tenants/<tenant-id>     per-tenant credentials
//
// Each secret carries admin_connection_string, app_connection_string and
// provider fields.
type VaultStore struct {
	client *vault.Client
	mount  string
	base   string
}

// VaultStoreConfig configures a VaultStore.
type VaultStoreConfig struct {
	// Address and Token configure the Vault client when Client is nil.
	Address string
	Token   string
	// Client overrides the constructed client (tests, shared clients).
	Client *vault.Client
	// Mount is the KV v2 mount point, default "secret".
	Mount string
	// BasePath is the path prefix under the mount, default "databases".
	BasePath string
}

// NewVaultStore builds a Vault-backed credentials store.
func NewVaultStore(cfg VaultStoreConfig) (*VaultStore, error) {
	client := cfg.Client
	if client == nil {
		vaultCfg := vault.DefaultConfig()
		if cfg.Address != "" {
			vaultCfg.Address = cfg.Address
		}
		var err error
		client, err = vault.NewClient(vaultCfg)
		if err != nil {
			return nil, fmt.Errorf("init vault client: %w", err)
		}
		if cfg.Token != "" {
			client.SetToken(cfg.Token)
		}
	}

	mount := cfg.Mount
	if mount == "" {
		mount = "secret"
	}
	base := cfg.BasePath
	if base == "" {
		base = "databases"
	}

	return &VaultStore{client: client, mount: mount, base: base}, nil
}

// GetDatabaseCredentials reads the per-tenant secret.
func (s *VaultStore) GetDatabaseCredentials(ctx context.Context, tenantID uuid.UUID) (DatabaseCredentials, error) {
	return s.read(ctx, fmt.Sprintf("%s/tenants/%s", s.base, tenantID))
}

// GetSharedDatabaseCredentials reads the shared database secret.
func (s *VaultStore) GetSharedDatabaseCredentials(ctx context.Context) (DatabaseCredentials, error) {
	return s.read(ctx, s.base+"/shared")
}

func (s *VaultStore) read(ctx context.Context, path string) (DatabaseCredentials, error) {
	secret, err := s.client.KVv2(s.mount).Get(ctx, path)
	if err != nil {
		return DatabaseCredentials{}, fmt.Errorf("read vault secret %s: %w", path, err)
	}

	creds := DatabaseCredentials{
		ProviderName:          stringField(secret.Data, "provider"),
		AdminConnectionString: stringField(secret.Data, "admin_connection_string"),
		AppConnectionString:   stringField(secret.Data, "app_connection_string"),
	}
	if err := creds.Validate(); err != nil {
		return DatabaseCredentials{}, fmt.Errorf("vault secret %s: %w", path, err)
	}
	return creds, nil
}

func stringField(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}

var _ Store = (*VaultStore)(nil)
