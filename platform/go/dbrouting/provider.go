package dbrouting

import (
	"fmt"
	"strings"
)

// Provider is the canonical identifier for a database engine we can route to.
type Provider string

const (
	ProviderNone       Provider = "none"
	ProviderPostgreSQL Provider = "postgresql"
	ProviderSQLServer  Provider = "sqlserver"
	ProviderMySQL      Provider = "mysql"
	ProviderOracle     Provider = "oracle"
	ProviderMongoDB    Provider = "mongodb"
)

// DefaultProvider is used whenever a tenant record carries no engine hint.
const DefaultProvider = ProviderPostgreSQL

// ProviderProfile describes one engine: display metadata, connectivity
// defaults, economics, and the feature flags the compatibility checks consume.
type ProviderProfile struct {
	ID          Provider
	DisplayName string
	DefaultPort int

	// CostMultiplier is relative to PostgreSQL (1.0 baseline).
	CostMultiplier float64
	// MaxSizeGB is the supported ceiling for a single database.
	MaxSizeGB int

	NativeEncryption               bool
	JSONSupport                    bool
	SupportsReadReplicas           bool
	SupportsAutoScaling            bool
	SupportsGeographicDistribution bool
}

var providerProfiles = map[Provider]ProviderProfile{
	ProviderNone: {
		ID:          ProviderNone,
		DisplayName: "None",
	},
	ProviderPostgreSQL: {
		ID:                             ProviderPostgreSQL,
		DisplayName:                    "PostgreSQL",
		DefaultPort:                    5432,
		CostMultiplier:                 1.0,
		MaxSizeGB:                      16384,
		NativeEncryption:               true,
		JSONSupport:                    true,
		SupportsReadReplicas:           true,
		SupportsAutoScaling:            true,
		SupportsGeographicDistribution: true,
	},
	ProviderSQLServer: {
		ID:                             ProviderSQLServer,
		DisplayName:                    "SQL Server",
		DefaultPort:                    1433,
		CostMultiplier:                 1.8,
		MaxSizeGB:                      262144,
		NativeEncryption:               true,
		JSONSupport:                    true,
		SupportsReadReplicas:           true,
		SupportsGeographicDistribution: true,
	},
	ProviderMySQL: {
		ID:                   ProviderMySQL,
		DisplayName:          "MySQL",
		DefaultPort:          3306,
		CostMultiplier:       0.9,
		MaxSizeGB:            65536,
		JSONSupport:          true,
		SupportsReadReplicas: true,
		SupportsAutoScaling:  true,
	},
	ProviderOracle: {
		ID:                             ProviderOracle,
		DisplayName:                    "Oracle",
		DefaultPort:                    1521,
		CostMultiplier:                 2.5,
		MaxSizeGB:                      131072,
		NativeEncryption:               true,
		JSONSupport:                    true,
		SupportsReadReplicas:           true,
		SupportsGeographicDistribution: true,
	},
	ProviderMongoDB: {
		ID:                             ProviderMongoDB,
		DisplayName:                    "MongoDB",
		DefaultPort:                    27017,
		CostMultiplier:                 1.2,
		MaxSizeGB:                      32768,
		NativeEncryption:               true,
		JSONSupport:                    true,
		SupportsReadReplicas:           true,
		SupportsAutoScaling:            true,
		SupportsGeographicDistribution: true,
	},
}

// ParseProvider maps stored or remote engine names (and common aliases) to the
// canonical ID. Unknown or empty values map to ProviderNone.
func ParseProvider(s string) Provider {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgresql", "postgres", "pgsql", "pg":
		return ProviderPostgreSQL
	case "sqlserver", "mssql", "sql server":
		return ProviderSQLServer
	case "mysql", "mariadb":
		return ProviderMySQL
	case "oracle":
		return ProviderOracle
	case "mongodb", "mongo":
		return ProviderMongoDB
	default:
		return ProviderNone
	}
}

// Profile returns the engine profile. Unknown providers report the
// ProviderNone profile.
func (p Provider) Profile() ProviderProfile {
	if prof, ok := providerProfiles[p]; ok {
		return prof
	}
	return providerProfiles[ProviderNone]
}

// Validate rejects providers that cannot back a live tenant.
func (p Provider) Validate() error {
	switch p {
	case ProviderPostgreSQL, ProviderSQLServer, ProviderMySQL, ProviderOracle, ProviderMongoDB:
		return nil
	default:
		return fmt.Errorf("unsupported database provider %q", string(p))
	}
}

// IsCompatibleWith reports whether every enabled option is backed by a feature
// the engine provides. Providers carry no dedicated-resources concept, so that
// option is checked against the strategy only.
func (p Provider) IsCompatibleWith(opts Options) bool {
	prof := p.Profile()
	if opts.ReadReplicas && !prof.SupportsReadReplicas {
		return false
	}
	if opts.AutoScaling && !prof.SupportsAutoScaling {
		return false
	}
	if opts.GeographicDistribution && !prof.SupportsGeographicDistribution {
		return false
	}
	return true
}

func (p Provider) String() string {
	return p.Profile().DisplayName
}
