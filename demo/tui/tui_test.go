package tui

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"newsdesk/shared/types"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/go-cmp/cmp"
)

func newServer(t *testing.T, runs *[]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(types.StatusResponse{
			Stages: []types.StageStatus{
				{Name: "intake", State: types.StageIdle, Runs: 2},
				{Name: "publish", State: types.StageRunning, Runs: 5},
			},
			ReviewQueue:  4,
			PendingFlags: 1,
		})
	})
	mux.HandleFunc("/api/stages/", func(w http.ResponseWriter, r *http.Request) {
		stage := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/stages/"), "/run")
		if stage == "verify" {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"error":{"message":"stage verify is already running","code":"STAGE_BUSY"}}`))
			return
		}
		*runs = append(*runs, stage)
		w.WriteHeader(http.StatusAccepted)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient(t *testing.T) {
	var runs []string
	c := NewDeskClient(newServer(t, &runs).URL + "/")

	st, err := c.GetStatus()
	if err != nil {
		t.Fatal(err)
	}
	if st.ReviewQueue != 4 || len(st.Stages) != 2 {
		t.Errorf("status = %+v", st)
	}

	if err := c.RunStage("intake"); err != nil {
		t.Fatal(err)
	}
	err = c.RunStage("verify")
	if err == nil || err.Error() != "STAGE_BUSY: stage verify is already running" {
		t.Errorf("busy err = %v", err)
	}
	if diff := cmp.Diff([]string{"intake"}, runs); diff != "" {
		t.Errorf("runs (-want +got):\n%s", diff)
	}
}

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestUpdate(t *testing.T) {
	var runs []string
	m := NewModel(newServer(t, &runs).URL, 0)

	next, _ := m.Update(StatusUpdateMsg{Err: errors.New("connection refused")})
	m = next.(Model)
	if m.Connected || !strings.Contains(m.View(), TextDisconnected) {
		t.Fatalf("disconnected view:\n%s", m.View())
	}

	status, err := m.Client.GetStatus()
	if err != nil {
		t.Fatal(err)
	}
	next, _ = m.Update(StatusUpdateMsg{Status: status})
	m = next.(Model)
	if !m.Connected || !strings.Contains(m.View(), "Review queue: 4") {
		t.Fatalf("connected view:\n%s", m.View())
	}

	// 6 is publish, which the server reports running
	next, cmd := m.Update(key("6"))
	m = next.(Model)
	if cmd != nil || m.Notice != "publish is already running" {
		t.Errorf("notice = %q", m.Notice)
	}

	next, cmd = m.Update(key("1"))
	m = next.(Model)
	if cmd == nil {
		t.Fatal("no command for stage key")
	}
	msg := cmd()
	next, _ = m.Update(msg)
	m = next.(Model)
	if m.Notice != "intake started" {
		t.Errorf("notice = %q", m.Notice)
	}
	if diff := cmp.Diff([]string{"intake"}, runs); diff != "" {
		t.Errorf("runs (-want +got):\n%s", diff)
	}

	next, _ = m.Update(StageTriggeredMsg{Stage: "verify", Err: errors.New("STAGE_BUSY: busy")})
	if got := next.(Model).Notice; got != "verify not started: STAGE_BUSY: busy" {
		t.Errorf("notice = %q", got)
	}
}

func TestDeskStyles(t *testing.T) {
	tests := []struct {
		name  string
		style lipgloss.Style
		bg    lipgloss.TerminalColor
		fg    lipgloss.TerminalColor
	}{
		{"empty counter", counterBadge(0), lipgloss.Color(colorPaper), lipgloss.Color(colorInk)},
		{"waiting counter", counterBadge(3), lipgloss.Color(colorAmber), lipgloss.Color(colorPaper)},
		{"failed stage", stageStyle(types.StageError), lipgloss.NoColor{}, lipgloss.Color(colorWire)},
		{"unknown state", stageStyle("paused"), lipgloss.NoColor{}, lipgloss.Color(colorMuted)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.style.GetBackground(); got != tt.bg {
				t.Errorf("background = %v, want %v", got, tt.bg)
			}
			if got := tt.style.GetForeground(); got != tt.fg {
				t.Errorf("foreground = %v, want %v", got, tt.fg)
			}
		})
	}
}
