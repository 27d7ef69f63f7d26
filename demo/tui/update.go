package tui

import (
	"fmt"

	"newsdesk/shared/types"

	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model interface
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case TickMsg:
		return m, tea.Batch(pollStatus(m.Client), tickCmd(m.Interval))
	case StatusUpdateMsg:
		if msg.Err != nil {
			m.Connected = false
			m.Err = msg.Err
			return m, nil
		}
		m.Connected = true
		m.Err = nil
		m.Status = msg.Status
	case StageTriggeredMsg:
		if msg.Err != nil {
			m.Notice = fmt.Sprintf("%s not started: %v", msg.Stage, msg.Err)
			return m, nil
		}
		m.Notice = msg.Stage + " started"
		return m, pollStatus(m.Client)
	}
	return m, nil
}

// handleKeyPress processes keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "r":
		return m, pollStatus(m.Client)
	}
	if len(key) == 1 && key[0] >= '1' && int(key[0]-'1') < len(stageKeys) {
		stage := stageKeys[key[0]-'1']
		if st, ok := m.stage(stage); ok && st.State == types.StageRunning {
			m.Notice = stage + " is already running"
			return m, nil
		}
		m.Notice = "starting " + stage + "..."
		return m, runStage(m.Client, stage)
	}
	return m, nil
}
