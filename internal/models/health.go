package models

type HealthyStatus string

const (
	Healthy     HealthyStatus = "healthy"
	Unavailable HealthyStatus = "unavailable"
)

// HealthResponse is the body of GET /healthz
type HealthResponse struct {
	Version   string  `json:"version" example:"1.0.0"`
	Instance  string  `json:"instance" example:"livingroom"`
	StartTime string  `json:"startTime" example:"2024-01-01T10:00:00Z"`
	Status    string  `json:"status" example:"healthy"`
	Uptime    string  `json:"uptime" example:"1h30m45s"`
	Metrics   Metrics `json:"metrics"`
}

// Metrics summarizes the supervised processes.
type Metrics struct {
	TotalRequests    int64 `json:"totalRequests" example:"1000"`
	ErrorRequests    int64 `json:"errorRequests" example:"5"`
	TotalProcesses   int   `json:"totalProcesses" example:"3"`
	RunningProcesses int   `json:"runningProcesses" example:"3"`
	TotalRestarts    int   `json:"totalRestarts" example:"1"`
}
