package models

// Health check models
type HealthData struct {
	Status  string `json:"status" example:"ok" doc:"Service status"`
	Message string `json:"message" example:"API is healthy" doc:"Status message"`
}

type HealthResponse struct {
	Body HealthData
}

// Version models
type VersionData struct {
	Version   string `json:"version" example:"1.2.0" doc:"Supervisor version"`
	GitCommit string `json:"git_commit" example:"a1b2c3d" doc:"Git commit hash"`
	BuildDate string `json:"build_date" example:"2025-01-27" doc:"Build date"`
	GoVersion string `json:"go_version" example:"go1.24.0" doc:"Go toolchain version"`
	Platform  string `json:"platform" example:"linux/amd64" doc:"Build platform"`
}

type VersionResponse struct {
	Body VersionData
}

// Worker status models
type WorkerStatusData struct {
	State        string  `json:"state" example:"running" doc:"Worker lifecycle state"`
	Command      string  `json:"command" example:"python3 main.py" doc:"Worker command line"`
	PID          int     `json:"pid,omitempty" example:"4242" doc:"Worker process ID when alive"`
	UptimeSecs   float64 `json:"uptime_seconds,omitempty" example:"3600.5" doc:"Uptime of the current process"`
	StartedAt    string  `json:"started_at,omitempty" example:"2025-01-27T10:30:00Z" doc:"Start time of the current process"`
	RestartCount int     `json:"restart_count" example:"0" doc:"Consecutive crash restarts"`
	LastExitCode int     `json:"last_exit_code" example:"0" doc:"Exit code of the previous worker process"`
	LastError    string  `json:"last_error,omitempty" doc:"Most recent lifecycle error"`
	NextRestart  string  `json:"next_restart,omitempty" example:"2025-01-27T10:30:05Z" doc:"Scheduled automatic restart, if any"`
}

type WorkerStatusResponse struct {
	Body WorkerStatusData
}

// Worker action models
type WorkerActionData struct {
	Action string `json:"action" example:"start" doc:"Requested action"`
	State  string `json:"state" example:"starting" doc:"Worker state after the action"`
}

type WorkerActionResponse struct {
	Body WorkerActionData
}

// Deployment models
type DeploymentData struct {
	Timestamp   string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Deployment start time"`
	Outcome     string `json:"outcome" example:"success" doc:"Deployment outcome: success, failed, rolled_back"`
	PreviousRef string `json:"previous_ref,omitempty" doc:"Artifact reference before the deployment"`
	NewRef      string `json:"new_ref,omitempty" doc:"Artifact reference after the deployment"`
	Error       string `json:"error,omitempty" doc:"Failure detail, if any"`
	Duration    string `json:"duration" example:"12.4s" doc:"Total deployment duration"`
}

type DeployResponse struct {
	Body DeploymentData
}

type DeploymentsData struct {
	Deployments []DeploymentData `json:"deployments" doc:"Deployment history, newest first"`
	Count       int              `json:"count" example:"3" doc:"Number of records returned"`
}

type DeploymentsResponse struct {
	Body DeploymentsData
}

// Log models
type LogEntryData struct {
	Timestamp  string         `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Entry timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"supervisor" doc:"Originating module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured attributes"`
}

type LogsData struct {
	Entries []LogEntryData `json:"entries" doc:"Buffered log entries, oldest first"`
	Count   int            `json:"count" example:"100" doc:"Number of entries returned"`
}

type LogsResponse struct {
	Body LogsData
}

// Systemd models
type SystemdUnitStatus struct {
	Unit   string `json:"unit" example:"bot.service" doc:"Unit name"`
	Status string `json:"status" example:"active" doc:"systemd ActiveState"`
}

type SystemdUnitStatusResponse struct {
	Body SystemdUnitStatus
}

type SystemdUnitAction struct {
	Unit    string `json:"unit" example:"bot.service" doc:"Unit name"`
	Action  string `json:"action" example:"restart" doc:"Requested action"`
	Success bool   `json:"success" example:"true" doc:"Whether the action was accepted"`
}

type SystemdUnitActionResponse struct {
	Body SystemdUnitAction
}
