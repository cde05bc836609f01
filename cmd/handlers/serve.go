package handlers

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"watchtrail/internal/config"
	"watchtrail/internal/logger"
	"watchtrail/internal/server"
)

// NewServeCmd creates the serve command for starting the HTTP server
func NewServeCmd() *cobra.Command {
	var (
		port int
		host string
	)

	cmd := &cobra.Command{
		Use:   "serve [clustered.json]",
		Short: "Serve clustered watch history to the viewer",
		Long: `Start an HTTP server over a file written by 'watchtrail cluster'.

The server provides:
  • GET /data/<file>            the clustered records as written
  • GET /api/clusters           clusters by size, noise last
  • GET /api/clusters/{label}   one cluster, newest videos first (?limit=n)
  • GET /api/summary            record and cluster counts
  • GET /health                 health check

The file is re-read whenever it changes, so a new cluster run shows up
without restarting the server.

Examples:
  # Serve the default output file on 127.0.0.1:8080
  watchtrail serve

  # Serve another file on a custom port
  watchtrail serve runs/epsilon.json --port 3001`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runServe(path, port, host)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "HTTP server port (default from config: 8080)")
	cmd.Flags().StringVar(&host, "host", "", "HTTP server host (default from config: 127.0.0.1)")

	return cmd
}

func runServe(dataPath string, port int, host string) error {
	log := logger.Get()

	// Override server config from flags if provided
	serverCfg := config.GetServer()
	if port != 0 {
		serverCfg.Port = port
	}
	if host != "" {
		serverCfg.Host = host
	}
	if dataPath == "" {
		dataPath = config.GetOutput().OutputPath()
	}

	srv, err := server.New(dataPath, serverCfg)
	if err != nil {
		return fmt.Errorf("%w\n\nRun 'watchtrail cluster <watch-history.html>' first, or pass the clustered file to serve", err)
	}

	// Channel to listen for errors coming from the server
	serverErrors := make(chan error, 1)

	// Start server in a goroutine
	go func() {
		log.Info(fmt.Sprintf("Server listening on http://%s", serverCfg.Addr()))
		log.Info("Press Ctrl+C to stop")
		serverErrors <- srv.Start()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive our signal or an error from server
	select {
	case err := <-serverErrors:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil

	case sig := <-shutdown:
		log.Info("Server shutdown initiated", "signal", sig.String())

		// Create shutdown context with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		// Attempt graceful shutdown
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		log.Info("Server stopped successfully")
	}

	return nil
}
