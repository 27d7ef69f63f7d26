package tui

import (
	"fmt"
	"strings"
	"time"

	"newsdesk/shared/types"
)

// View implements tea.Model interface
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(mastheadStyle.Render(TextTitle))
	b.WriteString("\n\n")

	if !m.Connected {
		b.WriteString(alertStyle.Render(TextDisconnected))
		if m.Err != nil {
			b.WriteString("\n" + mutedStyle.Render(m.Err.Error()))
		}
		b.WriteString("\n\n" + mutedStyle.Render(TextFooter))
		return b.String()
	}

	b.WriteString(counterBadge(m.Status.ReviewQueue).Render(fmt.Sprintf("Review queue: %d", m.Status.ReviewQueue)))
	b.WriteString("  ")
	b.WriteString(counterBadge(m.Status.PendingFlags).Render(fmt.Sprintf("Pending flags: %d", m.Status.PendingFlags)))
	b.WriteString("\n\n")

	b.WriteString(panelStyle.Render(m.stageTable()))
	b.WriteString("\n\n")

	if len(m.Status.Logs) > 0 {
		b.WriteString(mutedStyle.Render("Wire log:"))
		b.WriteString("\n")
		logs := m.Status.Logs
		if len(logs) > 10 {
			logs = logs[len(logs)-10:]
		}
		for _, l := range logs {
			line := fmt.Sprintf("   %s %-8s %s", l.Timestamp.Local().Format("15:04:05"), l.Stage, l.Message)
			b.WriteString(mutedStyle.Render(line))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if m.Notice != "" {
		b.WriteString(noticeStyle.Render(m.Notice))
		b.WriteString("\n\n")
	}
	b.WriteString(mutedStyle.Render(TextFooter))
	return b.String()
}

func (m Model) stageTable() string {
	var b strings.Builder
	for i, name := range stageKeys {
		st, ok := m.stage(name)
		if !ok {
			continue
		}
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d  %-9s %s  runs %-4d last %s", i+1, name, stateLabel(st), st.Runs, since(st.LastFinished))
		if st.State == types.StageError && st.LastError != "" {
			b.WriteString("  " + alertStyle.Render(st.LastError))
		}
	}
	return b.String()
}

func stateLabel(st types.StageStatus) string {
	return stageStyle(st.State).Render(fmt.Sprintf("%-7s", st.State))
}

func since(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return time.Since(*t).Round(time.Second).String() + " ago"
}
