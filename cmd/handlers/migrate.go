package handlers

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"topicdesk/internal/logger"
	"topicdesk/internal/persistence"
)

// NewMigrateCmd creates the migrate command for database migrations
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
		Long: `Manage database schema migrations.

Subcommands:
  up       Apply all pending migrations
  status   Show migration status
  rollback Roll back the last migration record

Applied migrations are tracked in the schema_migrations table and new
migrations are applied in version order.

Examples:
  # Apply all pending migrations
  topicdesk migrate up

  # Check migration status
  topicdesk migrate status

  # Remove the last migration record without prompting
  topicdesk migrate rollback --force`,
	}

	cmd.AddCommand(newMigrateUpCmd())
	cmd.AddCommand(newMigrateStatusCmd())
	cmd.AddCommand(newMigrateRollbackCmd())

	return cmd
}

func newMigrateUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateUp(cmd.Context())
		},
	}
}

func newMigrateStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateStatus(cmd.Context())
		},
	}
}

func newMigrateRollbackCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Roll back the last migration record",
		Long: `Remove the last applied migration from schema_migrations.

Schema changes are not reverted; drop the affected tables or columns by hand.
Use --force to skip the confirmation prompt.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrateRollback(cmd.Context(), force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation prompt")

	return cmd
}

func runMigrateUp(ctx context.Context) error {
	logger.Info("Starting database migration")

	db, err := getDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := persistence.NewMigrationManager(db).Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	fmt.Println(okStyle.Render("✓ All migrations applied"))
	return nil
}

func runMigrateStatus(ctx context.Context) error {
	db, err := getDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	status, err := persistence.NewMigrationManager(db).Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	if len(status) == 0 {
		fmt.Println("No migrations found")
		return nil
	}

	fmt.Println(titleStyle.Render("Migration status"))
	fmt.Printf("%-10s %-10s %s\n", "Version", "Status", "Description")

	pending := 0
	for _, m := range status {
		state := okStyle.Render("applied")
		if !m.Applied {
			state = warnStyle.Render("pending")
			pending++
		}
		fmt.Printf("%-10d %-10s %s\n", m.Version, state, m.Description)
	}

	fmt.Printf("\nApplied: %d | Pending: %d | Total: %d\n", len(status)-pending, pending, len(status))
	if pending > 0 {
		fmt.Println(dimStyle.Render("Run 'topicdesk migrate up' to apply pending migrations"))
	}
	return nil
}

func runMigrateRollback(ctx context.Context, force bool) error {
	if !force {
		fmt.Println(warnStyle.Render("Rolling back only removes the migration record; schema changes stay in place."))
		fmt.Print("Proceed? (yes/no): ")

		var response string
		if _, err := fmt.Scanln(&response); err != nil {
			return fmt.Errorf("failed to read response: %w", err)
		}
		if response != "yes" {
			fmt.Println("Rollback cancelled")
			return nil
		}
	}

	db, err := getDatabase(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := persistence.NewMigrationManager(db).Rollback(ctx); err != nil {
		return fmt.Errorf("rollback failed: %w", err)
	}

	logger.Warn("Migration record removed, revert schema changes manually")
	fmt.Println(warnStyle.Render("Migration record removed"))
	return nil
}
