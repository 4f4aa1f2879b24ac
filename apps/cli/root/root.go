package root

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the tenant database CLI. Subcommands
// (migrate, serve) are attached here.
var rootCmd = &cobra.Command{
	Use:           "teckdb",
	Short:         "Teck Cloud tenant database operations",
	Long:          "Operational tooling for the Teck Cloud tenant database fleet: schema migrations, status reporting and the ops HTTP server.",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

// Root returns the mutable root command for wiring from subpackages.
func Root() *cobra.Command {
	return rootCmd
}
