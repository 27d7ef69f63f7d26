package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"newsdesk/logger"

	"github.com/google/uuid"
)

func TestRunBoundsParallelism(t *testing.T) {
	p := NewPool("test", 2, logger.Nop())
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New(), uuid.New()}

	var inFlight, peak atomic.Int32
	results := p.Run(context.Background(), ids, func(ctx context.Context, id uuid.UUID) error {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inFlight.Add(-1)
		return nil
	})

	if got := peak.Load(); got > 2 {
		t.Errorf("peak parallelism = %d, want <= 2", got)
	}
	for i, r := range results {
		if r.ID != ids[i] || r.Err != nil {
			t.Errorf("results[%d] = %+v", i, r)
		}
	}
}

func TestFailingUnitDoesNotStopSiblings(t *testing.T) {
	p := NewPool("test", 4, logger.Nop())
	bad, good := uuid.New(), uuid.New()
	boom := errors.New("boom")

	results := p.Run(context.Background(), []uuid.UUID{bad, good}, func(ctx context.Context, id uuid.UUID) error {
		if id == bad {
			return boom
		}
		time.Sleep(5 * time.Millisecond)
		return ctx.Err()
	})
	if !errors.Is(results[0].Err, boom) {
		t.Errorf("bad unit err = %v", results[0].Err)
	}
	if results[1].Err != nil {
		t.Errorf("good unit err = %v, want nil", results[1].Err)
	}
}

func TestCancelStopsOnlyThatUnit(t *testing.T) {
	p := NewPool("test", 4, logger.Nop())
	target, other := uuid.New(), uuid.New()
	started := make(chan struct{})

	go func() {
		<-started
		for !p.Cancel(target) {
			time.Sleep(time.Millisecond)
		}
	}()

	results := p.Run(context.Background(), []uuid.UUID{target, other}, func(ctx context.Context, id uuid.UUID) error {
		if id == target {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	})

	if !errors.Is(results[0].Err, ErrCancelled) {
		t.Errorf("target err = %v, want ErrCancelled", results[0].Err)
	}
	if results[1].Err != nil {
		t.Errorf("other err = %v", results[1].Err)
	}
	if p.Running() != 0 {
		t.Errorf("Running() = %d after Run", p.Running())
	}
}

func TestPanicIsReportedAsError(t *testing.T) {
	p := NewPool("test", 1, logger.Nop())
	results := p.Run(context.Background(), []uuid.UUID{uuid.New()}, func(ctx context.Context, id uuid.UUID) error {
		panic("kaboom")
	})
	if results[0].Err == nil {
		t.Error("panicking unit returned nil error")
	}
}
