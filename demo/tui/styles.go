package tui

import (
	"newsdesk/shared/types"

	"github.com/charmbracelet/lipgloss"
)

// Newsprint palette
const (
	colorInk   = "#1F2937"
	colorPaper = "#F5F1E6"
	colorWire  = "#B91C1C"
	colorFresh = "#15803D"
	colorMuted = "#6B7280"
	colorRule  = "#9CA3AF"
	colorAmber = "#B45309"
)

var (
	mastheadStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(colorPaper)).
		Background(lipgloss.Color(colorInk)).
		Padding(0, 2).
		MarginTop(1)

	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorMuted))
	alertStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color(colorWire))
	noticeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorFresh))

	// stage table, ruled above and below like a column
	panelStyle = lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), true, false).
		BorderForeground(lipgloss.Color(colorRule)).
		Padding(0, 1)

	counterStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color(colorInk)).
		Background(lipgloss.Color(colorPaper)).
		Padding(0, 1)

	waitingStyle = counterStyle.
		Foreground(lipgloss.Color(colorPaper)).
		Background(lipgloss.Color(colorAmber))

	stageStyles = map[types.StageState]lipgloss.Style{
		types.StageIdle:    mutedStyle,
		types.StageRunning: noticeStyle.Bold(true),
		types.StageError:   alertStyle.Bold(true),
	}
)

// counterBadge styles a desk counter; work waiting on an editor shows in amber.
func counterBadge(n int) lipgloss.Style {
	if n > 0 {
		return waitingStyle
	}
	return counterStyle
}

func stageStyle(s types.StageState) lipgloss.Style {
	if st, ok := stageStyles[s]; ok {
		return st
	}
	return mutedStyle
}
