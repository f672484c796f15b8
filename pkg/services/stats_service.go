package services

import "context"

// criticalSecurityScore is the threshold below which a session counts as a
// critical threat on the dashboard.
const criticalSecurityScore = 70

// DashboardStats is the aggregate card strip on the dashboard home page.
type DashboardStats struct {
	TotalSessions   int     `json:"total_sessions"`
	ActiveSessions  int     `json:"active_sessions"`
	CriticalThreats int     `json:"critical_threats"`
	AvgEfficiency   float64 `json:"avg_efficiency"`
	AvgSecurity     float64 `json:"avg_security"`
	TotalAgents     int     `json:"total_agents"`
}

// StatsService aggregates session and registry counts for the dashboard.
type StatsService struct {
	sessions *SessionService
	registry *RegistryService
}

// NewStatsService creates a stats service over the session and registry
// services.
func NewStatsService(sessions *SessionService, registry *RegistryService) *StatsService {
	return &StatsService{sessions: sessions, registry: registry}
}

// Stats computes dashboard aggregates over the most recent sessions.
// Sessions without a security score count as fully secure; sessions without
// an efficiency score count as zero, which keeps unevaluated active sessions
// from inflating the efficiency average.
func (s *StatsService) Stats(ctx context.Context) DashboardStats {
	sessions := s.sessions.List(ctx, DefaultListLimit)
	stats := DashboardStats{
		TotalSessions: len(sessions),
		AvgSecurity:   100,
		TotalAgents:   len(s.registry.List(ctx)),
	}
	if len(sessions) == 0 {
		return stats
	}

	var effSum, secSum float64
	for _, sess := range sessions {
		if status, _ := sess["status"].(string); status == statusActive {
			stats.ActiveSessions++
		}
		sec, ok := scoreValue(sess["security_score"])
		if !ok {
			sec = 100
		}
		if sec < criticalSecurityScore {
			stats.CriticalThreats++
		}
		secSum += sec
		if eff, ok := scoreValue(sess["efficiency_score"]); ok {
			effSum += eff
		}
	}
	stats.AvgEfficiency = effSum / float64(len(sessions))
	stats.AvgSecurity = secSum / float64(len(sessions))
	return stats
}
