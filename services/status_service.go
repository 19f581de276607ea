package services

import (
	"time"

	"mm-swarm/internal/models"
	"mm-swarm/internal/proc"
)

// StatusServer answers the status API from the supervisor state.
type StatusServer struct {
	supervisor proc.Supervisor
	instance   string
	version    string
	startTime  time.Time
}

func NewStatusServer(supervisor proc.Supervisor, instance, version string) *StatusServer {
	return &StatusServer{
		supervisor: supervisor,
		instance:   instance,
		version:    version,
		startTime:  time.Now(),
	}
}

/**
 * Build the health probe response
 * @returns {models.HealthResponse} Version, uptime and process counters
 * @description
 * - Healthy only while every registered process runs
 */
func (s *StatusServer) GetHealthz() models.HealthResponse {
	processes := s.supervisor.Processes()
	running, restarts := 0, 0
	for _, p := range processes {
		if p.Status == models.StatusRunning {
			running++
		}
		restarts += p.RestartCount
	}
	status := models.Healthy
	if len(processes) == 0 || running < len(processes) {
		status = models.Unavailable
	}

	return models.HealthResponse{
		Version:   s.version,
		Instance:  s.instance,
		StartTime: s.startTime.Format(time.RFC3339),
		Status:    string(status),
		Uptime:    time.Since(s.startTime).Truncate(time.Second).String(),
		Metrics: models.Metrics{
			TotalRequests:    GetTotalRequestCount(),
			ErrorRequests:    GetTotalErrorCount(),
			TotalProcesses:   len(processes),
			RunningProcesses: running,
			TotalRestarts:    restarts,
		},
	}
}

func (s *StatusServer) Processes() []models.ProcessDetail {
	return s.supervisor.Processes()
}

func (s *StatusServer) Restart(name string) error {
	return s.supervisor.Restart(name)
}
