package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"newsdesk/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrCancelled is returned for a unit whose job was cancelled through Cancel.
var ErrCancelled = errors.New("job cancelled")

// Result is the outcome of one unit of work.
type Result struct {
	ID  uuid.UUID
	Err error
}

// Pool runs per-unit jobs with bounded parallelism. Each running unit can be
// cancelled by id without affecting the others.
type Pool struct {
	name  string
	limit int
	log   *logger.Logger

	mu      sync.Mutex
	running map[uuid.UUID]context.CancelCauseFunc
}

func NewPool(name string, limit int, log *logger.Logger) *Pool {
	if limit <= 0 {
		limit = 1
	}
	return &Pool{
		name:    name,
		limit:   limit,
		log:     log.With("pool", name),
		running: make(map[uuid.UUID]context.CancelCauseFunc),
	}
}

// Run executes fn for every id and waits for all of them. A failing unit does not
// stop its siblings; each unit's error is reported in its Result.
func (p *Pool) Run(ctx context.Context, ids []uuid.UUID, fn func(ctx context.Context, id uuid.UUID) error) []Result {
	results := make([]Result, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.limit)

	for i, id := range ids {
		g.Go(func() error {
			results[i] = Result{ID: id, Err: p.runOne(gctx, id, fn)}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (p *Pool) runOne(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, id uuid.UUID) error) (err error) {
	jctx, cancel := context.WithCancelCause(ctx)
	if !p.register(id, cancel) {
		cancel(nil)
		return fmt.Errorf("%s: job %s already running", p.name, id)
	}
	defer func() {
		p.unregister(id)
		cancel(nil)
	}()

	defer func() {
		if r := recover(); r != nil {
			p.log.Error("job panicked", "id", id, "panic", r)
			err = fmt.Errorf("%s: job %s panicked: %v", p.name, id, r)
		}
	}()

	err = fn(jctx, id)
	if errors.Is(context.Cause(jctx), ErrCancelled) {
		return ErrCancelled
	}
	return err
}

func (p *Pool) register(id uuid.UUID, cancel context.CancelCauseFunc) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.running[id]; busy {
		return false
	}
	p.running[id] = cancel
	return true
}

func (p *Pool) unregister(id uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.running, id)
}

// Cancel stops the running job for id. It reports whether a job was running.
func (p *Pool) Cancel(id uuid.UUID) bool {
	p.mu.Lock()
	cancel, ok := p.running[id]
	p.mu.Unlock()
	if ok {
		cancel(ErrCancelled)
		p.log.Info("job cancelled", "id", id)
	}
	return ok
}

// Running reports how many jobs are in flight.
func (p *Pool) Running() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.running)
}

// Canceller cancels in-flight work for a topic.
type Canceller interface {
	Cancel(id uuid.UUID) bool
}

// Cancellers fans a cancellation out to several pools.
type Cancellers []Canceller

func (cs Cancellers) Cancel(id uuid.UUID) bool {
	cancelled := false
	for _, c := range cs {
		if c != nil && c.Cancel(id) {
			cancelled = true
		}
	}
	return cancelled
}
