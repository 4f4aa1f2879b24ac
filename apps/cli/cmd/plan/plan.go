// Package plan inspects database plan configurations offline: it validates a
// strategy, engine and option combination and prints the estimated monthly
// cost. Nothing here talks to the customer API or a database.
package plan

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Teck-Lab/teck-cloud-saas/platform/go/dbrouting"
)

type flags struct {
	strategy  string
	provider  string
	basePrice float64

	readReplicas           bool
	geographicDistribution bool
	enhancedBackup         bool
	encryptionAtRest       bool
	dedicatedResources     bool
	autoScaling            bool
	advancedMonitoring     bool
	complianceFeatures     bool
}

func (f flags) options() dbrouting.Options {
	return dbrouting.Options{
		ReadReplicas:           f.readReplicas,
		GeographicDistribution: f.geographicDistribution,
		EnhancedBackup:         f.enhancedBackup,
		EncryptionAtRest:       f.encryptionAtRest,
		DedicatedResources:     f.dedicatedResources,
		AutoScaling:            f.autoScaling,
		AdvancedMonitoring:     f.advancedMonitoring,
		ComplianceFeatures:     f.complianceFeatures,
	}
}

// Command builds the plan inspection command.
func Command() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Estimate the monthly cost of a database plan",
		Long:  "Validate a strategy, engine and option combination and print the estimated monthly cost relative to the shared PostgreSQL baseline.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, f)
		},
	}

	cmd.Flags().StringVar(&f.strategy, "strategy", string(dbrouting.StrategyShared), "hosting strategy: shared, dedicated or external")
	cmd.Flags().StringVar(&f.provider, "provider", string(dbrouting.DefaultProvider), "database engine: postgresql, sqlserver, mysql, oracle or mongodb")
	cmd.Flags().Float64Var(&f.basePrice, "base-price", 100, "base monthly price before multipliers")
	cmd.Flags().BoolVar(&f.readReplicas, "read-replicas", false, "enable read replicas")
	cmd.Flags().BoolVar(&f.geographicDistribution, "geographic-distribution", false, "enable geographic distribution")
	cmd.Flags().BoolVar(&f.enhancedBackup, "enhanced-backup", false, "enable enhanced backups")
	cmd.Flags().BoolVar(&f.encryptionAtRest, "encryption-at-rest", false, "enable encryption at rest")
	cmd.Flags().BoolVar(&f.dedicatedResources, "dedicated-resources", false, "enable dedicated compute resources")
	cmd.Flags().BoolVar(&f.autoScaling, "auto-scaling", false, "enable auto scaling")
	cmd.Flags().BoolVar(&f.advancedMonitoring, "advanced-monitoring", false, "enable advanced monitoring")
	cmd.Flags().BoolVar(&f.complianceFeatures, "compliance-features", false, "enable compliance features")
	return cmd
}

func run(cmd *cobra.Command, f flags) error {
	strategy := dbrouting.ParseStrategy(f.strategy)
	if err := strategy.Validate(); err != nil {
		return err
	}
	provider := dbrouting.ParseProvider(f.provider)
	if err := provider.Validate(); err != nil {
		return err
	}

	opts := f.options()
	if !strategy.IsCompatibleWith(opts) {
		return fmt.Errorf("enabled options are not supported by the %s strategy", strategy)
	}
	if !provider.IsCompatibleWith(opts) {
		return fmt.Errorf("enabled options are not supported by %s", provider)
	}

	estimate := dbrouting.EstimateMonthlyCost(f.basePrice, strategy, provider, opts)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "strategy  %-12s sla=%.2f%%\n", strategy, strategy.Profile().UptimeSLA)
	fmt.Fprintf(out, "provider  %-12s port=%d\n", provider, provider.Profile().DefaultPort)
	fmt.Fprintf(out, "options   %d enabled\n", opts.EnabledCount())
	fmt.Fprintf(out, "estimate  %.2f per month (base %.2f)\n", estimate, f.basePrice)
	return nil
}
