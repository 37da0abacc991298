package handlers

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"topicdesk/internal/logger"
)

// NewScheduleCmd creates the scheduled generation command
func NewScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run scheduled generation for every auto-enabled project",
		Long: `Check every project with automatic generation turned on and generate
proposals for the projects whose schedule time has come.

A project fires when a pass lands inside its firing window (generator.firing_window,
default 30m) and it has not already run for that day's slot. Passes are meant to run
hourly; a shorter interval is safe but only retries projects whose last pass failed.

Subcommands:
  run    Run one pass and exit (for cron)
  loop   Run a pass every interval until interrupted

Examples:
  # One pass, from cron at the top of every hour
  topicdesk schedule run

  # Long-running worker
  topicdesk schedule loop --interval 1h`,
	}

	cmd.AddCommand(newScheduleRunCmd())
	cmd.AddCommand(newScheduleLoopCmd())
	return cmd
}

func newScheduleRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one scheduled pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			summary, err := a.gen.RunScheduled(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(renderSummary(summary))
			return nil
		},
	}
}

func newScheduleLoopCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "loop",
		Short: "Run scheduled passes until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduleLoop(cmd.Context(), interval)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 0, "Time between passes (default from config: 1h)")
	return cmd
}

func runScheduleLoop(ctx context.Context, interval time.Duration) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if interval <= 0 {
		interval = a.cfg.ScheduleInterval()
	}
	if window := a.gen.Config().FiringWindow; interval > window {
		logger.Info("Schedule interval exceeds the firing window; projects fire only when a pass lands in their window",
			"interval", interval.String(), "window", window.String())
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info("Scheduler started", "interval", interval.String())
	for {
		summary, err := a.gen.RunScheduled(ctx)
		if err != nil {
			logger.Error("Scheduled run failed", err)
		} else {
			fmt.Println(renderSummary(summary))
		}

		select {
		case <-ctx.Done():
			logger.Info("Scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}
