package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var envFiles []string

var rootCmd = &cobra.Command{
	Use:   "billingd",
	Short: "Subscription lifecycle orchestrator",
	Long: `billingd keeps local subscriptions in step with the billing provider.

It pauses, resumes and cancels subscriptions on behalf of their owners,
provisions trials for new owners and lifts collection pauses once their
window has ended.

Configuration is read from the environment; .env files are loaded first
when present.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadDotenv(envFiles)
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files to load")
}
