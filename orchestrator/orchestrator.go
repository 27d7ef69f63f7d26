// Package orchestrator runs the pipeline stages on their schedules. Each stage processes
// one bounded batch per run; a stage that is still running when it is due again is skipped.
package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"newsdesk/apperr"
	"newsdesk/logger"
	"newsdesk/shared/types"
)

// StageFunc runs one batch of a stage. last is when the stage's previous successful run
// started, or zero on the first run.
type StageFunc func(ctx context.Context, last time.Time) (any, error)

type stage struct {
	schedule string
	fn       StageFunc
}

// Runner executes registered stages, either from the scheduler or on demand.
type Runner struct {
	state  *Manager
	stages map[string]stage
	log    *logger.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRunner(state *Manager, log *logger.Logger) *Runner {
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		state:  state,
		stages: make(map[string]stage),
		log:    log.With("component", "orchestrator"),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a stage. An empty schedule leaves it manual-only.
func (r *Runner) Register(name, schedule string, fn StageFunc) {
	r.stages[name] = stage{schedule: schedule, fn: fn}
	r.state.Register(name, schedule)
}

// Stages lists registered stage names in order.
func (r *Runner) Stages() []string {
	names := make([]string, 0, len(r.stages))
	for n := range r.stages {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RunStage runs a stage and waits for it. A stage already running is a STAGE_BUSY conflict.
func (r *Runner) RunStage(ctx context.Context, name string) (any, error) {
	st, last, err := r.begin(name)
	if err != nil {
		return nil, err
	}
	r.wg.Add(1)
	defer r.wg.Done()
	return r.execute(ctx, name, st, last)
}

// Trigger starts a stage in the background and returns once it has been marked running.
func (r *Runner) Trigger(name string) error {
	st, last, err := r.begin(name)
	if err != nil {
		return err
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		_, _ = r.execute(r.ctx, name, st, last)
	}()
	return nil
}

// Status reports every stage and the recent log.
func (r *Runner) Status() types.StatusResponse {
	return r.state.Status()
}

// Close cancels running stages and waits for them to return.
func (r *Runner) Close() {
	r.cancel()
	r.wg.Wait()
}

func (r *Runner) begin(name string) (stage, time.Time, error) {
	st, ok := r.stages[name]
	if !ok {
		return stage{}, time.Time{}, apperr.NotFound("unknown stage %q", name)
	}
	last, ok := r.state.Begin(name)
	if !ok {
		return stage{}, time.Time{}, apperr.Conflict(apperr.CodeStageBusy, "stage %s is already running", name)
	}
	return st, last, nil
}

func (r *Runner) execute(ctx context.Context, name string, st stage, last time.Time) (res any, err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("stage %s panicked: %v", name, p)
		}
		r.state.Finish(name, res, err)
		if err != nil {
			r.log.Error("stage failed", "stage", name, "elapsed", time.Since(start), "error", err)
			return
		}
		r.log.Info("stage done", "stage", name, "elapsed", time.Since(start), "result", res)
	}()
	return st.fn(ctx, last)
}
