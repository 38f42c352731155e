// Command bridge runs the inbound-message bridge: it polls chat bots and
// mailboxes on behalf of users and forwards new messages to the automation
// webhooks.
package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	// A missing .env is fine; real deployments use the environment.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bridge",
		Short:         "Inbound message bridge",
		Long:          "bridge polls connected chat bots and mailboxes, deduplicates inbound messages and forwards them to the automation webhooks.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newSealCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := cmd.OutOrStdout().Write([]byte(version + "\n"))
			return err
		},
	}
}
