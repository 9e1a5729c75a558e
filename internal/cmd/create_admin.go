package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dukerupert/authd/internal/auth"
	"github.com/dukerupert/authd/internal/autherr"
	"github.com/dukerupert/authd/internal/model"
	"github.com/dukerupert/authd/internal/password"
	"github.com/dukerupert/authd/internal/session"
	"github.com/dukerupert/authd/internal/store"
)

const adminPasswordEnv = "AUTHD_ADMIN_PASSWORD"

func newCreateAdminCmd(load loader) *cobra.Command {
	var in auth.RegisterInput

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an Admin account, or grant Admin to an existing one",
		Long: `create-admin registers a user and gives it the Admin role. If the email is
already registered, the existing account is made Admin and its password is
left unchanged. The password is read from --password or ` + adminPasswordEnv + `.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := load()
			if err != nil {
				return err
			}
			if in.Password == "" {
				in.Password = os.Getenv(adminPasswordEnv)
			}

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			hasher, err := password.New(cfg.Auth.BcryptCost)
			if err != nil {
				return err
			}
			users := store.NewUserStore(db)
			sessions := session.NewManager(store.NewSessionStore(db), logger)
			authn := auth.NewAuthenticator(users, hasher, sessions, cfg.Auth.SessionTTL, logger)

			ctx := cmd.Context()
			id, err := authn.Register(ctx, in)
			switch {
			case errors.Is(err, autherr.ErrConflict):
				u, lerr := users.GetByEmail(ctx, strings.TrimSpace(in.Email))
				if lerr != nil {
					return fmt.Errorf("load existing user %s: %w", in.Email, lerr)
				}
				if u == nil {
					return fmt.Errorf("user %s vanished during create-admin", in.Email)
				}
				id = u.ID
			case err != nil:
				return fmt.Errorf("register admin: %s", autherr.Message(err, err.Error()))
			}

			if err := users.SetRole(ctx, id, model.RoleAdmin); err != nil {
				return fmt.Errorf("grant admin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now Admin (id %s)\n", in.Email, id)
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "admin email address")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "Admin", "first name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "User", "last name")
	cmd.Flags().StringVar(&in.Password, "password", "", "admin password (prefer "+adminPasswordEnv+")")
	cmd.MarkFlagRequired("email")
	return cmd
}
