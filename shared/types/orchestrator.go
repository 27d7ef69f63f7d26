package types

import "time"

// StageState is where a scheduled stage is in its run cycle
type StageState string

const (
	StageIdle    StageState = "idle"
	StageRunning StageState = "running"
	StageError   StageState = "error"
)

// LogEntry represents a single log line with timestamp
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"stage,omitempty"`
	Message   string    `json:"message"`
}

// StageStatus is the last known run of one pipeline stage
type StageStatus struct {
	Name         string     `json:"name"`
	State        StageState `json:"state"`
	Schedule     string     `json:"schedule,omitempty"`
	Runs         int        `json:"runs"`
	LastStarted  *time.Time `json:"last_started,omitempty"`
	LastFinished *time.Time `json:"last_finished,omitempty"`
	LastSuccess  *time.Time `json:"last_success,omitempty"`
	LastResult   any        `json:"last_result,omitempty"`
	LastError    string     `json:"last_error,omitempty"`
}

// StatusResponse is the JSON response for GET /api/status
type StatusResponse struct {
	Stages       []StageStatus `json:"stages"`
	Logs         []LogEntry    `json:"logs"`
	ReviewQueue  int           `json:"review_queue"`
	PendingFlags int           `json:"pending_flags"`
}
