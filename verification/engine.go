// Package verification gathers and classifies sources for topics and enforces the sourcing gate.
package verification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"newsdesk/apperr"
	"newsdesk/config"
	"newsdesk/ledger"
	"newsdesk/logger"
	"newsdesk/providers"
	"newsdesk/store"
	"newsdesk/types"
	"newsdesk/worker"

	"github.com/google/uuid"
)

// Result counts topic outcomes for one run.
type Result struct {
	Verified  int `json:"verified"`
	Rejected  int `json:"rejected"`
	Cancelled int `json:"cancelled"`
	Failed    int `json:"failed"`
}

// Outcome is what happened to a single topic.
type Outcome string

const (
	OutcomeVerified  Outcome = "verified"
	OutcomeRejected  Outcome = "rejected"
	OutcomeCancelled Outcome = "cancelled"
)

type Engine struct {
	store     *store.Store
	search    providers.SearchProvider
	ledger    *ledger.Ledger
	pool      *worker.Pool
	policy    providers.RetryPolicy
	gate      Gate
	budget    int
	batchSize int
	log       *logger.Logger
	now       func() time.Time
}

func New(s *store.Store, search providers.SearchProvider, l *ledger.Ledger, pool *worker.Pool, policy providers.RetryPolicy, cfg config.PipelineConfig, log *logger.Logger) *Engine {
	return &Engine{
		store:  s,
		search: search,
		ledger: l,
		pool:   pool,
		policy: policy,
		gate: Gate{
			MinCredible:       cfg.MinCredibleSources,
			MinCitations:      cfg.MinPrimaryCitations,
			CredibleThreshold: cfg.CredibleThreshold,
		},
		budget:    cfg.SearchBudget,
		batchSize: cfg.BatchSize,
		log:       log.With("component", "verification"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run verifies pending topics in parallel, one pool job per topic.
func (e *Engine) Run(ctx context.Context) (Result, error) {
	var res Result
	topics, err := e.store.PendingTopics(ctx, e.batchSize)
	if err != nil {
		return res, err
	}
	if len(topics) == 0 {
		return res, nil
	}
	snap, err := e.ledger.Snapshot(ctx)
	if err != nil {
		return res, fmt.Errorf("ledger snapshot: %w", err)
	}

	byID := make(map[uuid.UUID]*types.Topic, len(topics))
	ids := make([]uuid.UUID, len(topics))
	for i := range topics {
		ids[i] = topics[i].ID
		byID[topics[i].ID] = &topics[i]
	}

	var mu sync.Mutex
	results := e.pool.Run(ctx, ids, func(ctx context.Context, id uuid.UUID) error {
		out, err := e.Verify(ctx, byID[id], snap)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		switch out {
		case OutcomeVerified:
			res.Verified++
		case OutcomeRejected:
			res.Rejected++
		case OutcomeCancelled:
			res.Cancelled++
		}
		return nil
	})
	for _, r := range results {
		switch {
		case r.Err == nil:
		case errors.Is(r.Err, worker.ErrCancelled), errors.Is(r.Err, context.Canceled):
			res.Cancelled++
		default:
			res.Failed++
			e.log.Error("verification failed", "topic_id", r.ID, "error", r.Err)
		}
	}

	e.log.Info("verification run done", "verified", res.Verified, "rejected", res.Rejected,
		"cancelled", res.Cancelled, "failed", res.Failed)
	return res, ctx.Err()
}

// Verify runs the search budget for one topic, stopping early once the gate passes, then
// commits facts and plan or rejects the topic. Nothing is written when ctx is cancelled
// or the topic stopped being pending in the meantime.
func (e *Engine) Verify(ctx context.Context, t *types.Topic, snap ledger.Snapshot) (Outcome, error) {
	log := e.log.With("topic_id", t.ID)
	var sources []Source
	seen := map[string]bool{}
	used := 0
	var gate GateResult

	for _, q := range Queries(t, e.budget) {
		results, err := providers.Do(ctx, e.policy, "search", func(ctx context.Context) ([]providers.SearchResult, error) {
			return e.search.Search(ctx, q)
		})
		used++
		if err != nil {
			if ctx.Err() != nil {
				return OutcomeCancelled, ctx.Err()
			}
			log.Warn("search failed, rejecting topic", "query", q, "error", err)
			return e.reject(ctx, t.ID, used, fmt.Sprintf("%s: %v", apperr.CodeProviderUnavailable, err))
		}
		for _, r := range results {
			if r.URL == "" || seen[r.URL] {
				continue
			}
			seen[r.URL] = true
			sources = append(sources, Classify(r, snap))
		}
		if gate = e.gate.Check(sources); gate.Passed {
			break
		}
	}

	if !gate.Passed {
		return e.reject(ctx, t.ID, used, fmt.Sprintf("%s: %d credible sources (need %d), %d academic/primary citations (need %d) after %d searches",
			apperr.CodeInsufficientSources, gate.Credible, e.gate.MinCredible, gate.Citations, e.gate.MinCitations, used))
	}

	facts := ExtractFacts(sources)
	if len(facts) == 0 {
		return e.reject(ctx, t.ID, used, fmt.Sprintf("%s: no corroborated facts in %d sources", apperr.CodeInsufficientSources, len(sources)))
	}
	plan := BuildPlan(sources)

	if err := ctx.Err(); err != nil {
		return OutcomeCancelled, err
	}
	err := e.store.Transaction(ctx, func(tx *store.Store) error {
		return tx.CommitVerification(ctx, t.ID, store.Verification{
			Facts:         Records(facts),
			Plan:          plan,
			SourcingLevel: types.SourcingLevel(len(plan)),
			SearchesUsed:  used,
			VerifiedAt:    e.now(),
		})
	})
	if apperr.CodeOf(err) == apperr.CodeTopicRejected {
		log.Info("topic rejected during verification, discarding results")
		return OutcomeCancelled, nil
	}
	if err != nil {
		return "", err
	}
	log.Info("topic verified", "facts", len(facts), "sources", len(plan), "searches", used)
	return OutcomeVerified, nil
}

func (e *Engine) reject(ctx context.Context, topicID uuid.UUID, used int, reason string) (Outcome, error) {
	var changed bool
	err := e.store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		if changed, err = tx.RejectTopic(ctx, topicID, reason); err != nil || !changed {
			return err
		}
		return tx.RecordSearches(ctx, topicID, used)
	})
	if err != nil {
		return "", err
	}
	if !changed {
		return OutcomeCancelled, nil
	}
	e.log.Info("topic rejected", "topic_id", topicID, "reason", reason)
	return OutcomeRejected, nil
}

// Queries builds the searches for a topic, broadest first.
func Queries(t *types.Topic, budget int) []string {
	qs := []string{
		t.Title,
		t.Title + " official statement",
		t.Title + " report data",
	}
	if t.Region != "" {
		qs = append(qs, t.Title+" "+t.Region)
	}
	if budget < len(qs) {
		qs = qs[:max(budget, 0)]
	}
	return qs
}
