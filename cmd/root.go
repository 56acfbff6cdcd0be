// Package cmd holds the portal command line.
package cmd

import (
	"fmt"
	"os"

	"intranet-portal/pkg/config"
	"intranet-portal/pkg/logging"

	"github.com/spf13/cobra"
)

// cfgFile overrides the config search path when set with --config.
var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "portal",
	Short: "Membership intranet portal: treasury ledger, knowledge base and polls",
	Long: `portal runs the membership intranet: a cashbox ledger with a moderator
approval workflow, a markdown knowledge base with attachments, and polls.

Configuration comes from portal.yaml (or --config) and PORTAL_* environment
variables, e.g. PORTAL_DATABASE_HOST or PORTAL_AUTH_JWT_SECRET.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command. It is called by main.main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./portal.yaml or /etc/intranet-portal/portal.yaml)")
}

// bootstrap loads configuration and builds the process logger.
func bootstrap() (config.Config, *logging.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, err
	}
	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return config.Config{}, nil, err
	}
	logging.SetGlobal(logger)
	return cfg, logger, nil
}
