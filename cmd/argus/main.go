// Argus monitoring server: receives agent telemetry from capture hooks,
// persists session reports, and streams live updates to the dashboard.
package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arguslabs/argus/pkg/api"
	"github.com/arguslabs/argus/pkg/cleanup"
	"github.com/arguslabs/argus/pkg/config"
	"github.com/arguslabs/argus/pkg/events"
	"github.com/arguslabs/argus/pkg/services"
	"github.com/arguslabs/argus/pkg/store"
	"github.com/arguslabs/argus/pkg/version"
	"github.com/joho/godotenv"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	// Load .env before flag parsing so env-derived flag defaults see it.
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment",
			"error", err)
	} else {
		slog.Info("Loaded environment from .env")
	}

	// Parse command-line flags; flags override environment variables.
	host := flag.String("host", getEnv("ARGUS_HOST", "0.0.0.0"),
		"Listen host")
	port := flag.String("port", getEnv("ARGUS_PORT", "8000"),
		"Listen port")
	logDir := flag.String("log-dir", getEnv("ARGUS_LOG_DIR", "argus_logs"),
		"Root directory for session logs and runtime config")
	dashboardDir := flag.String("dashboard-dir", getEnv("ARGUS_DASHBOARD_DIR", ""),
		"Directory with a built dashboard bundle to serve (optional)")
	flag.Parse()

	addr := net.JoinHostPort(*host, *port)

	slog.Info("Starting Argus",
		"version", version.Full(),
		"addr", addr,
		"log_dir", *logDir)

	ctx := context.Background()

	// 1. Open the file store (creates the workspace layout on first run)
	st, err := store.New(*logDir)
	if err != nil {
		slog.Error("Failed to open file store", "log_dir", *logDir, "error", err)
		os.Exit(1)
	}
	slog.Info("File store ready", "base_dir", st.BaseDir())

	// 2. Runtime configuration with live reload
	cfgManager := config.NewManager(st.ConfigPath())
	watcher := config.NewWatcher(cfgManager)
	if err := watcher.Start(ctx); err != nil {
		slog.Error("Failed to start config watcher", "error", err)
		os.Exit(1)
	}

	// 3. Domain services over the store
	sessionService := services.NewSessionService(st)
	registryService := services.NewRegistryService(st)
	statsService := services.NewStatsService(sessionService, registryService)
	auditService := services.NewAuditService(st)
	swarmService := services.NewSwarmService(st)
	snapshotService := services.NewSnapshotService(sessionService, registryService)
	slog.Info("Services initialized")

	// 4. WebSocket connection manager + periodic state refresh
	connManager := events.NewConnectionManager(snapshotService, 10*time.Second)
	refreshCtx, stopRefresh := context.WithCancel(ctx)
	go connManager.Run(refreshCtx)

	// 5. Background log retention sweeper
	cleanupService := cleanup.NewService(st, cfgManager, cleanup.DefaultInterval)
	cleanupService.Start(ctx)

	// 6. Create HTTP server
	httpServer := api.NewServer(
		cfgManager, st,
		sessionService, registryService, statsService, auditService, swarmService,
		connManager,
	)
	if *dashboardDir != "" {
		slog.Info("Dashboard serving enabled", "dir", *dashboardDir)
		httpServer.SetDashboardDir(*dashboardDir)
	}

	// 7. Start HTTP server (non-blocking)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := httpServer.Start(addr); err != nil {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	slog.Info("Argus started successfully", "addr", addr)

	// 8. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 9. Graceful shutdown: HTTP first so no new mutations arrive, then the
	// background loops.
	httpShutdownCtx, httpCancel := context.WithTimeout(ctx, 5*time.Second)
	defer httpCancel()
	if err := httpServer.Shutdown(httpShutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	stopRefresh()
	cleanupService.Stop()
	watcher.Stop()

	slog.Info("Shutdown complete")
}
