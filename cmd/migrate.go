package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/okian/quotaboard/internal/adapters/repository"
	"github.com/spf13/cobra"
)

var errNoDatabase = errors.New("database_url is not set")

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the snapshot history schema",
		Long: `Apply or roll back the snapshot history migrations.

Available subcommands:
  up       - apply pending migrations
  down [N] - roll back N migrations (default 1)
  status   - show the applied version`,
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, err := databaseURL(cmd)
			if err != nil {
				return err
			}
			changed, err := repository.MigrateUp(dsn)
			if err != nil {
				return err
			}
			if changed {
				cmd.Println("migrations applied")
			} else {
				cmd.Println("no pending migrations")
			}
			return nil
		},
	}

	down := &cobra.Command{
		Use:   "down [N]",
		Short: "Roll back N migrations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("invalid steps value: %q", args[0])
				}
				steps = n
			}
			dsn, err := databaseURL(cmd)
			if err != nil {
				return err
			}
			changed, err := repository.MigrateDown(dsn, steps)
			if err != nil {
				return err
			}
			if changed {
				cmd.Printf("rolled back %d migration(s)\n", steps)
			} else {
				cmd.Println("nothing to roll back")
			}
			return nil
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the applied migration version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dsn, err := databaseURL(cmd)
			if err != nil {
				return err
			}
			st, err := repository.GetMigrationStatus(dsn)
			if err != nil {
				return err
			}
			if !st.Applied {
				cmd.Println("no migrations applied")
				return nil
			}
			cmd.Printf("version %d (dirty: %t)\n", st.Version, st.Dirty)
			return nil
		},
	}

	cmd.AddCommand(up, down, status)
	return cmd
}

func databaseURL(cmd *cobra.Command) (string, error) {
	cfg, _, err := setup(cmd.Context())
	if err != nil {
		return "", err
	}
	if cfg.DatabaseURL == "" {
		return "", errNoDatabase
	}
	return cfg.DatabaseURL, nil
}
