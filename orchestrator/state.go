package orchestrator

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"newsdesk/shared/types"
)

// Manager holds per-stage run state and a ring buffer of recent log lines.
type Manager struct {
	mu      sync.RWMutex
	stages  map[string]*types.StageStatus
	logs    []types.LogEntry
	maxLogs int
	now     func() time.Time
}

func NewManager() *Manager {
	return &Manager{
		stages:  make(map[string]*types.StageStatus),
		maxLogs: 50,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Register adds a stage in the idle state.
func (m *Manager) Register(name, schedule string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages[name] = &types.StageStatus{Name: name, State: types.StageIdle, Schedule: schedule}
}

// Begin marks a stage running. It returns false when the stage is unknown or already running,
// and the time of the stage's last successful start otherwise.
func (m *Manager) Begin(name string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.stages[name]
	if !ok || st.State == types.StageRunning {
		return time.Time{}, false
	}
	now := m.now()
	st.State = types.StageRunning
	st.LastStarted = &now
	st.Runs++
	m.appendLog(name, "started")

	var last time.Time
	if st.LastSuccess != nil {
		last = *st.LastSuccess
	}
	return last, true
}

// Finish records the outcome of a run started with Begin.
func (m *Manager) Finish(name string, result any, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.stages[name]
	if !ok {
		return
	}
	now := m.now()
	st.LastFinished = &now
	st.LastResult = result
	if err != nil {
		st.State = types.StageError
		st.LastError = err.Error()
		m.appendLog(name, fmt.Sprintf("failed: %v", err))
		return
	}
	st.State = types.StageIdle
	st.LastError = ""
	st.LastSuccess = st.LastStarted
	m.appendLog(name, fmt.Sprintf("done: %+v", result))
}

// Running reports whether a stage is mid-run.
func (m *Manager) Running(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st, ok := m.stages[name]
	return ok && st.State == types.StageRunning
}

func (m *Manager) AddLog(stage, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLog(stage, message)
}

// appendLog must be called with mu held.
func (m *Manager) appendLog(stage, message string) {
	m.logs = append(m.logs, types.LogEntry{Timestamp: m.now(), Stage: stage, Message: message})
	if len(m.logs) > m.maxLogs {
		m.logs = m.logs[len(m.logs)-m.maxLogs:]
	}
}

// Status returns a copy of every stage, sorted by name, and the retained logs.
func (m *Manager) Status() types.StatusResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	resp := types.StatusResponse{
		Stages: make([]types.StageStatus, 0, len(m.stages)),
		Logs:   append([]types.LogEntry{}, m.logs...),
	}
	for _, st := range m.stages {
		resp.Stages = append(resp.Stages, *st)
	}
	sort.Slice(resp.Stages, func(i, j int) bool { return resp.Stages[i].Name < resp.Stages[j].Name })
	return resp
}
