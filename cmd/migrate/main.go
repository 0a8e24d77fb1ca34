package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/logger"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the clinic scheduling database schema",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("schema", "", "Target schema (defaults to MIGRATIONS_SCHEMA)")

	rootCmd.AddCommand(upCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func upCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, cleanup, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			fmt.Printf("Running migrations on schema: %s\n", m.schema)
			count, err := m.Up(cmd.Context())
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show which migrations have been applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, cleanup, err := openMigrator(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			statuses, err := m.Status(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Printf("Migration status for schema: %s\n", m.schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status, appliedAt := "pending", "-"
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format(time.RFC3339)
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
}

type schemaMigrator struct {
	*db.Migrator
	schema string
}

func openMigrator(cmd *cobra.Command) (*schemaMigrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	lg, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Printf("logger init error, falling back to nop: %v", err)
		lg = zap.NewNop()
	}

	schema, _ := cmd.Flags().GetString("schema")
	if schema == "" {
		schema = cfg.MigrationsSchema
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2, MinConns: 1})
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		pool.Close()
		_ = lg.Sync()
	}
	return &schemaMigrator{Migrator: db.NewMigrator(pool, db.Migrations(), schema, lg.Named("migrate")), schema: schema}, cleanup, nil
}
