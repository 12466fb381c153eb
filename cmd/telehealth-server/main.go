package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carelink/telehealth/internal/config"
	"github.com/carelink/telehealth/internal/domain/doctor"
	"github.com/carelink/telehealth/internal/platform/db"
	"github.com/carelink/telehealth/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "telehealth-server",
		Short: "CareLink telehealth scheduling API",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(doctorsCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the telehealth API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// migrationSource returns the embedded migrations unless dir is set.
func migrationSource(dir string) fs.FS {
	if dir == "" {
		return migrations.FS
	}
	return os.DirFS(dir)
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrationSource(dir)).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrationSource(dir)).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Read migrations from this directory instead of the embedded set")
	cmd.AddCommand(statusCmd)

	return cmd
}

func doctorsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctors",
		Short: "Inspect the provider directory",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List doctors",
		RunE: func(cmd *cobra.Command, args []string) error {
			specialty, _ := cmd.Flags().GetString("specialty")
			query, _ := cmd.Flags().GetString("query")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := doctor.NewService(doctor.NewRepoPG(pool), zerolog.Nop())
			docs, total, err := svc.List(ctx, doctor.ListFilter{Specialty: specialty, Query: query, Limit: 100})
			if err != nil {
				return err
			}

			fmt.Printf("%-36s %-30s %-24s %s\n", "ID", "NAME", "SPECIALTY", "AVAILABLE")
			for _, d := range docs {
				fmt.Printf("%-36s %-30s %-24s %t\n", d.ID, d.Name, d.Specialty, d.IsAvailable)
			}
			fmt.Printf("%d doctor(s)\n", total)
			return nil
		},
	}
	listCmd.Flags().String("specialty", "", "Only doctors with this specialty")
	listCmd.Flags().String("query", "", "Match name, specialty or bio")
	cmd.AddCommand(listCmd)

	return cmd
}
