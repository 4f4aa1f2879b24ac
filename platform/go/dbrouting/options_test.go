package dbrouting

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOptionsEnabledCountMatchesFlags(t *testing.T) {
	t.Parallel()

	require.Equal(t, 0, Options{}.EnabledCount())
	require.False(t, Options{}.HasAny())

	one := Options{}.WithEnhancedBackup()
	require.Equal(t, 1, one.EnabledCount())
	require.True(t, one.HasAny())

	all := Options{}.
		WithReadReplicas().
		WithGeographicDistribution().
		WithEnhancedBackup().
		WithEncryptionAtRest().
		WithDedicatedResources().
		WithAutoScaling().
		WithAdvancedMonitoring().
		WithComplianceFeatures()
	require.Equal(t, 8, all.EnabledCount())
}

func TestOptionsMutatorsDoNotMutateReceiver(t *testing.T) {
	t.Parallel()

	base := Options{}
	derived := base.WithReadReplicas().WithAutoScaling()

	require.False(t, base.ReadReplicas)
	require.False(t, base.AutoScaling)
	require.True(t, derived.ReadReplicas)
	require.True(t, derived.AutoScaling)
}

func TestTotalCostMultiplier(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		strategy Strategy
		opts     Options
		want     float64
	}{
		{"shared no options", StrategyShared, Options{}, 1.0},
		{"dedicated no options", StrategyDedicated, Options{}, 3.0},
		{"shared backup and monitoring", StrategyShared, Options{}.WithEnhancedBackup().WithAdvancedMonitoring(), 1.5},
		{"dedicated replicas", StrategyDedicated, Options{}.WithReadReplicas(), 4.5},
		{
			"external everything",
			StrategyExternal,
			Options{}.
				WithReadReplicas().
				WithGeographicDistribution().
				WithEnhancedBackup().
				WithEncryptionAtRest().
				WithDedicatedResources().
				WithAutoScaling().
				WithAdvancedMonitoring().
				WithComplianceFeatures(),
			5.0 + 1.5 + 0.8 + 0.3 + 0.2 + 1.0 + 0.4 + 0.2 + 0.5,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			require.InDelta(t, tc.want, tc.opts.TotalCostMultiplier(tc.strategy), 1e-9)
		})
	}
}

func TestEstimateMonthlyCost(t *testing.T) {
	t.Parallel()

	// Dedicated Postgres with replicas: 100 * (3.0 + 1.5) * 1.0
	got := EstimateMonthlyCost(100, StrategyDedicated, ProviderPostgreSQL, Options{}.WithReadReplicas())
	require.InDelta(t, 450.0, got, 1e-9)

	// Shared SQL Server baseline: 100 * 1.0 * 1.8
	got = EstimateMonthlyCost(100, StrategyShared, ProviderSQLServer, Options{})
	require.InDelta(t, 180.0, got, 1e-9)
}
