package store

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// CleanupOldLogs removes session, step and issue files older than
// retentionDays by modification time. Per-session workspaces are left
// alone. Returns the number of files removed.
func (s *FileStore) CleanupOldLogs(retentionDays int) int {
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, dir := range []string{s.sessionsDir, s.stepsDir, s.issuesDir} {
		paths, err := filepath.Glob(filepath.Join(dir, "*"))
		if err != nil {
			continue
		}
		for _, p := range paths {
			info, err := os.Stat(p)
			if err != nil || info.IsDir() {
				continue
			}
			if info.ModTime().Before(cutoff) {
				if err := os.Remove(p); err != nil {
					slog.Warn("Failed to clean up log file", "path", p, "error", err)
					continue
				}
				removed++
			}
		}
	}
	if removed > 0 {
		slog.Info("Cleaned up old log files", "removed", removed, "retention_days", retentionDays)
	}
	return removed
}
