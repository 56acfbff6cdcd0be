package cmd

import (
	"fmt"

	"intranet-portal/pkg/logging"
	"intranet-portal/pkg/storage/postgres"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync()

		if err := postgres.MigrateUp(cfg.Database); err != nil {
			return err
		}
		return reportVersion(cmd, cfg.Database, logger)
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations (all of them unless --steps is given)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync()

		if err := postgres.MigrateDown(cfg.Database, migrateSteps); err != nil {
			return err
		}
		return reportVersion(cmd, cfg.Database, logger)
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the applied schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync()
		return reportVersion(cmd, cfg.Database, logger)
	},
}

func init() {
	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 0, "number of migrations to roll back (0 = all)")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}

func reportVersion(cmd *cobra.Command, cfg postgres.Config, logger *logging.Logger) error {
	version, dirty, err := postgres.MigrationVersion(cfg)
	if err != nil {
		return err
	}
	if version == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "schema version: none")
		return nil
	}
	logger.Info("schema version", zap.Uint("version", version), zap.Bool("dirty", dirty))
	fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d (dirty: %t)\n", version, dirty)
	return nil
}
