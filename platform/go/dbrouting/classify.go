package dbrouting

import "strings"

// ClassifyConnectionString guesses the backing engine from the shape of a
// connection string. Tenant records sometimes carry a raw connection string
// with no engine label, so routing falls back to recognizable tokens:
// URL schemes first, then keyword=value dialects. Unrecognized shapes default
// to the PostgreSQL configuration.
func ClassifyConnectionString(connString string) Provider {
	s := strings.ToLower(strings.TrimSpace(connString))
	if s == "" {
		return DefaultProvider
	}

	switch {
	case strings.HasPrefix(s, "mongodb://"), strings.HasPrefix(s, "mongodb+srv://"):
		return ProviderMongoDB
	case strings.HasPrefix(s, "postgres://"), strings.HasPrefix(s, "postgresql://"):
		return ProviderPostgreSQL
	case strings.HasPrefix(s, "mysql://"):
		return ProviderMySQL
	case strings.HasPrefix(s, "sqlserver://"):
		return ProviderSQLServer
	case strings.HasPrefix(s, "oracle://"):
		return ProviderOracle
	}

	// Keyword dialects. libpq uses space-separated host=/port= pairs; the
	// semicolon dialects are disambiguated by their user and catalog tokens.
	switch {
	case strings.Contains(s, "host=") || strings.Contains(s, "hostaddr="):
		return ProviderPostgreSQL
	case strings.Contains(s, "data source="):
		if strings.Contains(s, "initial catalog=") || strings.Contains(s, "integrated security=") {
			return ProviderSQLServer
		}
		return ProviderOracle
	case strings.Contains(s, "uid=") || strings.Contains(s, "pwd="):
		return ProviderMySQL
	case strings.Contains(s, "server="):
		return ProviderSQLServer
	}

	return DefaultProvider
}
