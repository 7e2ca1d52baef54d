package main

// Run database migrations:
//   go run ./cmd/migrate up

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"studyai-backend/internal/shared/config"
	"studyai-backend/internal/shared/storage/db"
)

var databaseURL string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the documents schema",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "Postgres URL (defaults to DATABASE_URL)")
	cmd.AddCommand(
		newStepCmd("up", "Apply all pending migrations", db.RunMigrations),
		newStepCmd("down", "Roll back the most recent migration", db.RollbackMigration),
		newStepCmd("status", "Print applied and pending migrations", db.MigrationStatus),
	)
	return cmd
}

func newStepCmd(use, short string, step func(context.Context, *sql.DB) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			url := databaseURL
			if url == "" {
				url = config.Load().DatabaseURL
			}
			conn, err := db.Connect(ctx, url, db.OptionsFromEnv(db.DefaultOptions(db.ProfileMigrate)))
			if err != nil {
				return err
			}
			defer conn.Close()
			return step(ctx, conn)
		},
	}
}
