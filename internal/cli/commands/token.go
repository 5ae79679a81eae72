package commands

import (
	"errors"
	"fmt"

	"github.com/ark7/a7router/internal/web/auth"
	"github.com/spf13/cobra"
)

// NewTokenCommand creates the token command
func NewTokenCommand(opts *globalOptions) *cobra.Command {
	var (
		user  string
		roles []string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for the demo API",
		Long: `Issue a bearer token signed with auth.secret.

Examples:
  a7router token --user alice
  a7router token --user root --role admin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if cfg.Auth.Secret == "" {
				return errors.New("auth.secret must be set to issue tokens")
			}
			if user == "" {
				return errors.New("--user is required")
			}

			svc, err := auth.NewService(cfg.Auth.Secret, cfg.Auth.TokenTTL)
			if err != nil {
				return err
			}
			token, err := svc.Issue(user, roles...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "User id carried by the token")
	cmd.Flags().StringSliceVarP(&roles, "role", "r", nil, "Role granted by the token (repeatable)")

	return cmd
}
