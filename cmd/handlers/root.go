package handlers

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"topicdesk/internal/config"
	"topicdesk/internal/logger"
)

var cfgFile string

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "topicdesk",
		Short: "Turn flagged news stories into video topic proposals",
		Long: `topicdesk clusters the news stories a team has flagged, then writes
audience-tailored video topic proposals with talking points and research citations.

Proposals are generated on demand (generate), on a per-project schedule (schedule),
or through the HTTP API (serve).`,
		SilenceUsage: true,
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.topicdesk.yaml)")

	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewGenerateCmd())
	rootCmd.AddCommand(NewPreviewCmd())
	rootCmd.AddCommand(NewResynthesizeCmd())
	rootCmd.AddCommand(NewScheduleCmd())
	rootCmd.AddCommand(NewMigrateCmd())
	rootCmd.AddCommand(NewCacheCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// initConfig reads in config file and ENV variables and configures logging.
func initConfig() {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	level := cfg.Logging.Level
	if cfg.App.Debug {
		level = "debug"
	}
	logger.Configure(level, cfg.Logging.Format)
}
