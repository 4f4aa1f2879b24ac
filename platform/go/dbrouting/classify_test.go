package dbrouting

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClassifyConnectionString(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		conn string
		want Provider
	}{
		{"postgres url", "postgres://app:pw@db.internal:5432/teck", ProviderPostgreSQL},
		{"postgresql url", "postgresql://db.internal/teck", ProviderPostgreSQL},
		{"libpq keywords", "host=db.internal port=5432 user=app dbname=teck", ProviderPostgreSQL},
		{"mongodb scheme", "mongodb://db.internal:27017/teck", ProviderMongoDB},
		{"mongodb srv scheme", "mongodb+srv://cluster0.example.net/teck", ProviderMongoDB},
		{"sqlserver data source", "Data Source=db.internal;Initial Catalog=teck;User Id=app;Password=pw", ProviderSQLServer},
		{"sqlserver integrated", "Data Source=db.internal;Integrated Security=true", ProviderSQLServer},
		{"oracle data source", "Data Source=db.internal:1521/ORCL;User Id=app;Password=pw", ProviderOracle},
		{"mysql uid pwd", "Server=db.internal;Database=teck;Uid=app;Pwd=pw", ProviderMySQL},
		{"bare server token", "Server=db.internal;Database=teck;Trusted_Connection=yes", ProviderSQLServer},
		{"unrecognized", "zookeeper://whatever", ProviderPostgreSQL},
		{"empty", "", ProviderPostgreSQL},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, tc.want, ClassifyConnectionString(tc.conn))
		})
	}
}
