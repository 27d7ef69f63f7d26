package tui

import (
	"time"

	"newsdesk/config"
	"newsdesk/shared/types"

	tea "github.com/charmbracelet/bubbletea"
)

// stageKeys maps number keys to the stages they start, in pipeline order.
var stageKeys = []string{
	config.StageIntake,
	config.StageEvaluate,
	config.StageVerify,
	config.StageDraft,
	config.StageReplies,
	config.StagePublish,
	config.StageMonitor,
}

// Model is the deskwatch client state, synced from the server on every poll.
type Model struct {
	Client   *DeskClient
	Interval time.Duration

	Status    *types.StatusResponse
	Connected bool
	Err       error
	// Notice is the outcome of the last key action.
	Notice string
}

func NewModel(baseURL string, interval time.Duration) Model {
	if interval <= 0 {
		interval = time.Second
	}
	return Model{Client: NewDeskClient(baseURL), Interval: interval}
}

// Init implements tea.Model interface
func (m Model) Init() tea.Cmd {
	return tea.Batch(pollStatus(m.Client), tickCmd(m.Interval))
}

func (m Model) stage(name string) (types.StageStatus, bool) {
	if m.Status == nil {
		return types.StageStatus{}, false
	}
	for _, st := range m.Status.Stages {
		if st.Name == name {
			return st, true
		}
	}
	return types.StageStatus{}, false
}
