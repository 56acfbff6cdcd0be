package cmd

import (
	"fmt"

	"intranet-portal/pkg/auth"

	"github.com/spf13/cobra"
)

var adminInput auth.Registration

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Manage administrator accounts",
}

var adminCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an approved administrator account",
	Long: `create bootstraps the first administrator. Further accounts register
through the portal and are approved by an administrator.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := bootstrap()
		if err != nil {
			return err
		}
		defer logger.Sync()

		st, err := openStores(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer st.close()

		svc, err := auth.NewService(auth.Dependencies{
			Store:  st.users,
			Hasher: auth.NewBcryptHasher(cfg.Auth.BcryptCost),
			Logger: logger,
		})
		if err != nil {
			return err
		}

		user, err := svc.CreateAdmin(cmd.Context(), adminInput)
		if err != nil {
			return fmt.Errorf("%s: %w", auth.Message(err), err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created admin #%d <%s>\n", user.ID, user.Email)
		return nil
	},
}

func init() {
	flags := adminCreateCmd.Flags()
	flags.StringVar(&adminInput.Email, "email", "", "account email")
	flags.StringVar(&adminInput.Name, "name", "", "display name")
	flags.StringVar(&adminInput.Password, "password", "", "initial password (at least 8 characters)")
	adminCreateCmd.MarkFlagRequired("email")
	adminCreateCmd.MarkFlagRequired("name")
	adminCreateCmd.MarkFlagRequired("password")

	adminCmd.AddCommand(adminCreateCmd)
	rootCmd.AddCommand(adminCmd)
}
