package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dukerupert/authd/internal/config"
	"github.com/dukerupert/authd/internal/database"
	"github.com/dukerupert/authd/internal/logging"
)

// NewRootCmd builds the authd command tree.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:   "authd",
		Short: "Session-based authentication and role authorization service",
		Long: `authd registers users, verifies passwords, issues server-side sessions
and gates routes by role (User, Lister, Admin). Configuration comes from
defaults, an optional YAML file and AUTHD_* environment variables.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "path to a YAML config file")

	load := func() (*config.Config, *slog.Logger, error) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return nil, nil, err
		}
		return cfg, logging.Setup(cfg.Log.Level, cfg.Log.Format), nil
	}

	root.AddCommand(
		newServeCmd(load),
		newMigrateCmd(load),
		newCreateAdminCmd(load),
		newSetActiveCmd(load),
	)
	return root
}

// ExecuteContext runs the root command with ctx.
func ExecuteContext(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

type loader func() (*config.Config, *slog.Logger, error)

func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := database.OpenWithPool(cfg.Database.Path, database.PoolConfig{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.Database.Path, err)
	}
	return db, nil
}
