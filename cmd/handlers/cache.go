package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"topicdesk/internal/config"
	"topicdesk/internal/logger"
	"topicdesk/internal/store"
)

// NewCacheCmd creates the cluster cache management command
func NewCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the cluster cache",
		Long: `Manage cached clustering results used by scheduled runs.

Examples:
  # Remove expired entries from the configured backend
  topicdesk cache cleanup`,
	}

	cacheCmd.AddCommand(newCacheCleanupCmd())
	return cacheCmd
}

func newCacheCleanupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Delete expired cluster cache entries",
		Long: `Delete cluster cache entries whose expiry has passed.

The postgres and sqlite backends are swept directly. Redis entries expire on
their own, and the none backend holds nothing.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheCleanup(cmd.Context())
		},
	}
}

func runCacheCleanup(ctx context.Context) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var removed int64
	now := time.Now()

	switch cfg.Cache.Backend {
	case "none", "redis":
		fmt.Println(dimStyle.Render(fmt.Sprintf("Nothing to clean for the %s backend", cfg.Cache.Backend)))
		return nil
	case "sqlite":
		st, err := store.NewStore(cfg.Cache.Directory)
		if err != nil {
			return fmt.Errorf("failed to open cluster cache: %w", err)
		}
		defer func() {
			if err := st.Close(); err != nil {
				logger.Error("Failed to close cache store", err)
			}
		}()
		removed, err = st.CleanupExpired(ctx, now)
		if err != nil {
			return err
		}
	default:
		db, err := getDatabase(ctx)
		if err != nil {
			return err
		}
		defer db.Close()
		removed, err = db.ClusterCache().DeleteExpired(ctx, now)
		if err != nil {
			return fmt.Errorf("failed to delete expired entries: %w", err)
		}
	}

	logger.Info("Cluster cache cleaned", "backend", cfg.Cache.Backend, "removed", removed)
	fmt.Println(okStyle.Render(fmt.Sprintf("✓ Removed %d expired entries", removed)))
	return nil
}
