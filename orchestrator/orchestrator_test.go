package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"newsdesk/apperr"
	"newsdesk/logger"
	"newsdesk/shared/types"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestRunStageRecordsOutcome(t *testing.T) {
	r := NewRunner(NewManager(), logger.Nop())
	defer r.Close()

	var lasts []time.Time
	calls := 0
	r.Register("publish", "* * * * *", func(_ context.Context, last time.Time) (any, error) {
		lasts = append(lasts, last)
		calls++
		if calls == 2 {
			return nil, errors.New("database gone")
		}
		return map[string]int{"published": calls}, nil
	})

	if _, err := r.RunStage(context.Background(), "publish"); err != nil {
		t.Fatal(err)
	}
	st := r.Status().Stages[0]
	if st.State != types.StageIdle || st.Runs != 1 || st.LastSuccess == nil || st.LastError != "" {
		t.Fatalf("after success: %+v", st)
	}
	firstStart := *st.LastStarted

	if _, err := r.RunStage(context.Background(), "publish"); err == nil {
		t.Fatal("want error")
	}
	st = r.Status().Stages[0]
	if st.State != types.StageError || st.LastError != "database gone" || !st.LastSuccess.Equal(firstStart) {
		t.Fatalf("after failure: %+v", st)
	}

	// a failed stage can run again, and sees the last successful start
	if _, err := r.RunStage(context.Background(), "publish"); err != nil {
		t.Fatal(err)
	}
	if !lasts[0].IsZero() || !lasts[2].Equal(firstStart) {
		t.Errorf("last = %v", lasts)
	}
}

func TestRunStageSkipsBusyStage(t *testing.T) {
	r := NewRunner(NewManager(), logger.Nop())
	started := make(chan struct{})
	release := make(chan struct{})
	r.Register("draft", "", func(ctx context.Context, _ time.Time) (any, error) {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return nil, nil
	})

	if err := r.Trigger("draft"); err != nil {
		t.Fatal(err)
	}
	<-started
	if !r.state.Running("draft") {
		t.Fatal("stage not running")
	}
	_, err := r.RunStage(context.Background(), "draft")
	if apperr.CodeOf(err) != apperr.CodeStageBusy || !apperr.IsConflict(err) {
		t.Fatalf("err = %v, want STAGE_BUSY", err)
	}
	if err := r.Trigger("draft"); apperr.CodeOf(err) != apperr.CodeStageBusy {
		t.Fatalf("trigger err = %v", err)
	}

	close(release)
	r.Close()
	if r.state.Running("draft") {
		t.Error("stage still running after Close")
	}
}

func TestRunStageUnknown(t *testing.T) {
	r := NewRunner(NewManager(), logger.Nop())
	defer r.Close()
	if _, err := r.RunStage(context.Background(), "nope"); !apperr.IsNotFound(err) {
		t.Fatalf("err = %v", err)
	}
}

func TestRunStageRecoversPanic(t *testing.T) {
	r := NewRunner(NewManager(), logger.Nop())
	defer r.Close()
	r.Register("monitor", "", func(context.Context, time.Time) (any, error) { panic("boom") })

	_, err := r.RunStage(context.Background(), "monitor")
	if err == nil || err.Error() != "stage monitor panicked: boom" {
		t.Fatalf("err = %v", err)
	}
	if st := r.Status().Stages[0]; st.State != types.StageError {
		t.Errorf("state = %s", st.State)
	}
}

func TestManagerKeepsLastLogs(t *testing.T) {
	m := NewManager()
	for i := 0; i < 60; i++ {
		m.AddLog("intake", "line")
	}
	if got := len(m.Status().Logs); got != 50 {
		t.Errorf("logs = %d, want 50", got)
	}
}

func TestSchedulerStart(t *testing.T) {
	noop := func(context.Context, time.Time) (any, error) { return nil, nil }

	r := NewRunner(NewManager(), logger.Nop())
	defer r.Close()
	r.Register("publish", "* * * * *", noop)
	r.Register("monitor", "0 * * * *", noop)
	r.Register("manual", "", noop)

	s := NewScheduler(r)
	if err := s.Start(); err != nil {
		t.Fatal(err)
	}
	defer s.Stop()

	var names []string
	for n := range s.Scheduled() {
		names = append(names, n)
	}
	if diff := cmp.Diff([]string{"monitor", "publish"}, names, cmpopts.SortSlices(func(a, b string) bool { return a < b })); diff != "" {
		t.Errorf("scheduled (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"manual", "monitor", "publish"}, r.Stages()); diff != "" {
		t.Errorf("stages (-want +got):\n%s", diff)
	}
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	r := NewRunner(NewManager(), logger.Nop())
	defer r.Close()
	r.Register("publish", "every minute", func(context.Context, time.Time) (any, error) { return nil, nil })
	if err := NewScheduler(r).Start(); err == nil {
		t.Fatal("want error for invalid schedule")
	}
}
