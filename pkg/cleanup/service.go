// Package cleanup enforces the log retention policy in the background.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/arguslabs/argus/pkg/config"
	"github.com/arguslabs/argus/pkg/store"
)

// DefaultInterval is how often the retention sweep runs.
const DefaultInterval = 6 * time.Hour

// Service periodically removes session, step and issue files older than
// the configured retention window. Sweeps are idempotent, and the
// retention setting is re-read on every pass so config updates take
// effect without a restart.
type Service struct {
	store      *store.FileStore
	cfgManager *config.Manager
	interval   time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates a cleanup service. A non-positive interval applies
// DefaultInterval.
func NewService(st *store.FileStore, cfgManager *config.Manager, interval time.Duration) *Service {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Service{
		store:      st,
		cfgManager: cfgManager,
		interval:   interval,
	}
}

// Start launches the background cleanup loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"retention_days", s.cfgManager.Current().LogRetentionDays,
		"interval", s.interval)
}

// Stop signals the cleanup loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.sweep()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep runs one retention pass with the currently configured window.
func (s *Service) sweep() {
	retention := s.cfgManager.Current().LogRetentionDays
	if retention <= 0 {
		return
	}
	s.store.CleanupOldLogs(retention)
}
