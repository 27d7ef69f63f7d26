package tui

import (
	"time"

	"newsdesk/shared/types"
)

// StatusUpdateMsg is sent when we receive status from the server
type StatusUpdateMsg struct {
	Status *types.StatusResponse
	Err    error
}

// TickMsg is sent periodically to trigger polling
type TickMsg struct {
	Time time.Time
}

// StageTriggeredMsg reports the outcome of a manual stage run request
type StageTriggeredMsg struct {
	Stage string
	Err   error
}
