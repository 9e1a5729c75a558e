package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dukerupert/authd/internal/store"
)

func newSetActiveCmd(load loader) *cobra.Command {
	var (
		email  string
		active bool
	)

	cmd := &cobra.Command{
		Use:   "set-active",
		Short: "Enable or disable an account",
		Long: `set-active flips the account's active flag. Disabling also ends every
session the account holds; it can no longer log in until re-enabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			users := store.NewUserStore(db)
			u, err := users.GetByEmail(ctx, strings.TrimSpace(email))
			if err != nil {
				return err
			}
			if u == nil {
				return fmt.Errorf("no user with email %s", email)
			}

			if err := users.SetActive(ctx, u.ID, active); err != nil {
				return err
			}
			if !active {
				if err := store.NewSessionStore(db).DeactivateByUserID(ctx, u.ID); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s active=%t\n", u.Email, active)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email address")
	cmd.Flags().BoolVar(&active, "active", true, "whether the account may log in")
	cmd.MarkFlagRequired("email")
	return cmd
}
