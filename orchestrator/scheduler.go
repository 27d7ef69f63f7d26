package orchestrator

import (
	"context"
	"fmt"

	"newsdesk/apperr"

	"github.com/robfig/cron/v3"
)

// Scheduler triggers each stage on its cron schedule.
type Scheduler struct {
	runner *Runner
	cron   *cron.Cron
	ids    map[string]cron.EntryID
}

func NewScheduler(r *Runner) *Scheduler {
	return &Scheduler{runner: r, cron: cron.New(), ids: make(map[string]cron.EntryID)}
}

// Start adds every scheduled stage and starts the cron loop. An invalid schedule fails
// before anything runs.
func (s *Scheduler) Start() error {
	for _, name := range s.runner.Stages() {
		spec := s.runner.stages[name].schedule
		if spec == "" {
			continue
		}
		id, err := s.cron.AddFunc(spec, func() { s.fire(name) })
		if err != nil {
			return fmt.Errorf("schedule %s (%q): %w", name, spec, err)
		}
		s.ids[name] = id
	}
	s.cron.Start()
	s.runner.log.Info("scheduler started", "stages", len(s.ids))
	return nil
}

func (s *Scheduler) fire(name string) {
	_, err := s.runner.RunStage(s.runner.ctx, name)
	if apperr.CodeOf(err) == apperr.CodeStageBusy {
		s.runner.log.Info("scheduled run skipped, stage busy", "stage", name)
	}
}

// Stop halts the cron loop; the returned context is done once running jobs return.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// Scheduled lists the stages with a cron entry and their next run.
func (s *Scheduler) Scheduled() map[string]string {
	out := make(map[string]string, len(s.ids))
	for name, id := range s.ids {
		out[name] = s.cron.Entry(id).Next.Format("2006-01-02T15:04:05Z07:00")
	}
	return out
}
