package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"notebook-server/internal/app"
	"notebook-server/internal/config"
	"notebook-server/internal/domain"
	"notebook-server/internal/logger"
	"notebook-server/internal/repository"
	"notebook-server/internal/repository/migrations"
	"notebook-server/internal/service"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(config.Load).Execute(); err != nil {
		os.Exit(1)
	}
}

type configLoader func() (*config.Config, error)

func newRootCmd(load configLoader) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "notebookctl",
		Short:         "Maintain the notebook server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	rootCmd.AddCommand(newUserCmd(load))
	rootCmd.AddCommand(newDBCmd(load))
	return rootCmd
}

// newApp loads the config and opens the application. The caller must close
// it.
func newApp(cmd *cobra.Command, load configLoader) (*app.App, error) {
	cfg, err := load()
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	log, err := logger.New("notebookctl", "warn", cfg.Server.Env)
	if err != nil {
		return nil, err
	}
	a, err := app.New(cmd.Context(), cfg, log)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// userAction runs fn against the user service and prints its outcome.
// User-correctable failures are printed, not returned.
func userAction(load configLoader, fn func(ctx context.Context, users *service.UserService, out io.Writer, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, load)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		err = fn(cmd.Context(), a.Users, out, args)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, domain.ErrUserNotFound):
			fmt.Fprintf(out, "Username %s is invalid\n", args[0])
			return nil
		case domain.IsUserCorrectable(err):
			fmt.Fprintln(out, err.Error())
			return nil
		default:
			return err
		}
	}
}

func newUserCmd(load configLoader) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	addCmd := &cobra.Command{
		Use:   "add USERNAME EMAIL PASSWORD",
		Short: "Add a user",
		Args:  cobra.ExactArgs(3),
		RunE: userAction(load, func(ctx context.Context, users *service.UserService, out io.Writer, args []string) error {
			user, err := users.Create(ctx, &domain.CreateUserRequest{
				Username: args[0],
				Email:    args[1],
				Password: args[2],
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Added user %s\n", user.Username)
			return nil
		}),
	}

	modifyUsernameCmd := &cobra.Command{
		Use:   "modify-username USERNAME NEW_USERNAME",
		Short: "Modify a user's username",
		Args:  cobra.ExactArgs(2),
		RunE: userAction(load, func(ctx context.Context, users *service.UserService, out io.Writer, args []string) error {
			user, err := users.Modify(ctx, service.SystemPrincipal, args[0], domain.UserChanges{Username: &args[1]})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Modified username: old = %s, new = %s\n", args[0], user.Username)
			return nil
		}),
	}

	modifyEmailCmd := &cobra.Command{
		Use:   "modify-email USERNAME EMAIL",
		Short: "Modify a user's email",
		Args:  cobra.ExactArgs(2),
		RunE: userAction(load, func(ctx context.Context, users *service.UserService, out io.Writer, args []string) error {
			before, err := users.GetByUsername(ctx, service.SystemPrincipal, args[0])
			if err != nil {
				return err
			}
			user, err := users.Modify(ctx, service.SystemPrincipal, args[0], domain.UserChanges{Email: &args[1]})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Modified email: old = %s, new = %s\n", before.Email, user.Email)
			return nil
		}),
	}

	modifyPasswordCmd := &cobra.Command{
		Use:   "modify-password USERNAME PASSWORD",
		Short: "Modify a user's password",
		Args:  cobra.ExactArgs(2),
		RunE: userAction(load, func(ctx context.Context, users *service.UserService, out io.Writer, args []string) error {
			if _, err := users.Modify(ctx, service.SystemPrincipal, args[0], domain.UserChanges{Password: &args[1]}); err != nil {
				return err
			}
			fmt.Fprintf(out, "Modified password for the user %s\n", args[0])
			return nil
		}),
	}

	grantAdminCmd := &cobra.Command{
		Use:   "grant-admin USERNAME",
		Short: "Grant admin rights to a user",
		Args:  cobra.ExactArgs(1),
		RunE: userAction(load, func(ctx context.Context, users *service.UserService, out io.Writer, args []string) error {
			if _, err := users.SetAdmin(ctx, service.SystemPrincipal, args[0], true); err != nil {
				return err
			}
			fmt.Fprintf(out, "Granted admin rights to the user %s\n", args[0])
			return nil
		}),
	}

	revokeAdminCmd := &cobra.Command{
		Use:   "revoke-admin USERNAME",
		Short: "Revoke admin rights from a user",
		Args:  cobra.ExactArgs(1),
		RunE: userAction(load, func(ctx context.Context, users *service.UserService, out io.Writer, args []string) error {
			if _, err := users.SetAdmin(ctx, service.SystemPrincipal, args[0], false); err != nil {
				return err
			}
			fmt.Fprintf(out, "Revoked admin rights from the user %s\n", args[0])
			return nil
		}),
	}

	userCmd.AddCommand(addCmd, modifyUsernameCmd, modifyEmailCmd, modifyPasswordCmd, grantAdminCmd, revokeAdminCmd)
	return userCmd
}

func newDBCmd(load configLoader) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the database schema",
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("reading config: %w", err)
			}
			db, err := repository.Open(cfg.Database.Driver, cfg.Database.URI)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := migrations.MigrateUp(db, repository.Dialect(cfg.Database.Driver)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Database is up to date")
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("reading config: %w", err)
			}
			db, err := repository.Open(cfg.Database.Driver, cfg.Database.URI)
			if err != nil {
				return err
			}
			defer db.Close()

			out := cmd.OutOrStdout()
			status, err := migrations.GetStatus(db, repository.Dialect(cfg.Database.Driver))
			if errors.Is(err, migrations.ErrNeedsMigration) {
				fmt.Fprintln(out, "Database has no schema version (run: notebookctl db migrate)")
				return nil
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Version: %d\n", status.Version)
			fmt.Fprintf(out, "Latest:  %d\n", status.Latest)
			if status.Dirty {
				fmt.Fprintln(out, "State:   dirty")
			}
			return nil
		},
	}

	dbCmd.AddCommand(migrateCmd, statusCmd)
	return dbCmd
}
