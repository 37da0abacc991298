package handlers

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"topicdesk/internal/logger"
	"topicdesk/internal/server"
)

// NewServeCmd creates the serve command for starting the HTTP API
func NewServeCmd() *cobra.Command {
	var (
		port    int
		host    string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the topicdesk HTTP API.

The server provides:
  • Manual generation, preview and similarity checks per project
  • Proposal listing, briefs (markdown or HTML), review and resynthesis
  • An admin endpoint that triggers a scheduled run (Bearer ADMIN_API_KEY)
  • /health and Prometheus /metrics

Callers are identified by the X-User-ID header set by the upstream auth proxy.

Examples:
  # Start server on default port 8080
  topicdesk serve

  # Start on custom port
  topicdesk serve --port 3000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), port, host, timeout)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 0.0.0.0)")
	cmd.Flags().DurationVar(&timeout, "request-timeout", 5*time.Minute, "Per-request timeout")

	return cmd
}

func runServe(ctx context.Context, port int, host string, timeout time.Duration) error {
	log := logger.Get()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	serverCfg := server.Config{
		Host:           a.cfg.Server.Host,
		Port:           a.cfg.Server.Port,
		AdminAPIKey:    a.cfg.Server.AdminAPIKey,
		CORSOrigins:    a.cfg.Server.CORSOrigins,
		RequestTimeout: timeout,
	}
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}

	srv := server.New(a.db, a.gen, serverCfg, a.metrics)

	serverErrors := make(chan error, 1)
	go func() {
		log.Info(fmt.Sprintf("Server listening on http://%s:%d", serverCfg.Host, serverCfg.Port))
		serverErrors <- srv.Start()
	}()

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case <-sigCtx.Done():
		log.Info("Server shutdown initiated")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}
