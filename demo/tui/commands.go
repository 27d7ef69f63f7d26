package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// pollStatus creates a command to fetch the server status
func pollStatus(client *DeskClient) tea.Cmd {
	return func() tea.Msg {
		status, err := client.GetStatus()
		return StatusUpdateMsg{Status: status, Err: err}
	}
}

// runStage creates a command that starts a stage on the server
func runStage(client *DeskClient, stage string) tea.Cmd {
	return func() tea.Msg {
		return StageTriggeredMsg{Stage: stage, Err: client.RunStage(stage)}
	}
}

// tickCmd creates a command that ticks for polling
func tickCmd(every time.Duration) tea.Cmd {
	return tea.Tick(every, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}
