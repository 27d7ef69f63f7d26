// Package drafting turns verified topics into article drafts, audits them against the
// house checklist and hands them to the editorial machine.
package drafting

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"newsdesk/apperr"
	"newsdesk/config"
	"newsdesk/editorial"
	"newsdesk/logger"
	"newsdesk/store"
	"newsdesk/types"
	"newsdesk/worker"

	"github.com/google/uuid"
)

// Result counts drafting outcomes for one run.
type Result struct {
	Drafted   int `json:"drafted"`
	Redrafted int `json:"redrafted"`
	Flagged   int `json:"flagged"`
	Escalated int `json:"escalated"`
	Cancelled int `json:"cancelled"`
	Failed    int `json:"failed"`
}

// Outcome is where a single draft ended up.
type Outcome string

const (
	OutcomeReview    Outcome = "pending_review"
	OutcomeFlagged   Outcome = "flagged"
	OutcomeEscalated Outcome = "escalated"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeSkipped   Outcome = "skipped"
)

type Generator struct {
	store       *store.Store
	machine     *editorial.Machine
	writer      Writer
	auditor     *Auditor
	scanner     *BiasScanner
	pool        *worker.Pool
	retryBudget int
	batchSize   int
	audience    []string
	log         *logger.Logger
	now         func() time.Time
}

func New(s *store.Store, m *editorial.Machine, w Writer, pool *worker.Pool, cfg config.PipelineConfig, coverage config.CoverageConfig, log *logger.Logger) *Generator {
	return &Generator{
		store:       s,
		machine:     m,
		writer:      w,
		auditor:     NewAuditor(cfg),
		scanner:     NewBiasScanner(),
		pool:        pool,
		retryBudget: cfg.DraftRetryBudget,
		batchSize:   cfg.BatchSize,
		audience:    coverage.Regions,
		log:         log.With("component", "drafting"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Run drafts verified topics without an article and redrafts articles sent back for
// revision. Each topic or article is one pool job keyed by its id, so a rescoring pass
// can cancel a topic's draft while it is being written.
func (g *Generator) Run(ctx context.Context) (Result, error) {
	var res Result
	topics, err := g.store.TopicsAwaitingDraft(ctx, g.batchSize)
	if err != nil {
		return res, err
	}
	revisions, err := g.store.ArticlesByStatus(ctx, types.StatusRevisionRequested, g.batchSize)
	if err != nil {
		return res, err
	}
	if len(topics)+len(revisions) == 0 {
		return res, nil
	}

	jobs := make(map[uuid.UUID]func(context.Context) (Outcome, error), len(topics)+len(revisions))
	redraft := make(map[uuid.UUID]bool, len(revisions))
	ids := make([]uuid.UUID, 0, len(topics)+len(revisions))
	for _, t := range topics {
		ids = append(ids, t.ID)
		jobs[t.ID] = func(ctx context.Context) (Outcome, error) { return g.Draft(ctx, t.ID) }
	}
	for i := range revisions {
		a := &revisions[i]
		ids = append(ids, a.ID)
		redraft[a.ID] = true
		jobs[a.ID] = func(ctx context.Context) (Outcome, error) { return g.Redraft(ctx, a) }
	}

	var mu sync.Mutex
	results := g.pool.Run(ctx, ids, func(ctx context.Context, id uuid.UUID) error {
		out, err := jobs[id](ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		switch out {
		case OutcomeReview:
			if redraft[id] {
				res.Redrafted++
			} else {
				res.Drafted++
			}
		case OutcomeFlagged:
			res.Flagged++
		case OutcomeEscalated:
			res.Escalated++
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
			g.log.Error("drafting failed", "id", r.ID, "error", r.Err)
		}
	}

	g.log.Info("drafting run done", "drafted", res.Drafted, "redrafted", res.Redrafted, "flagged", res.Flagged,
		"escalated", res.Escalated, "cancelled", res.Cancelled, "failed", res.Failed)
	return res, ctx.Err()
}

// Draft writes the first article for a verified topic. The article and its link from the
// topic commit together; a topic rejected in the meantime leaves nothing behind.
func (g *Generator) Draft(ctx context.Context, topicID uuid.UUID) (Outcome, error) {
	t, err := g.store.GetTopic(ctx, topicID)
	if err != nil {
		return "", err
	}
	if t.VerificationStatus != types.VerificationVerified || t.ArticleID != nil {
		return OutcomeSkipped, nil
	}
	log := g.log.With("topic_id", t.ID)

	d, err := g.compose(ctx, g.brief(t, nil), log)
	if err != nil {
		return OutcomeCancelled, err
	}
	if err := ctx.Err(); err != nil {
		return OutcomeCancelled, err
	}

	var a *types.Article
	err = g.store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		if a, err = g.machine.CreateDraft(ctx, tx, t, d); err != nil {
			return err
		}
		return tx.AttachArticle(ctx, t.ID, a.ID)
	})
	if apperr.CodeOf(err) == apperr.CodeTopicRejected {
		log.Info("topic rejected while drafting, discarding draft")
		return OutcomeCancelled, nil
	}
	if err != nil {
		return "", err
	}
	g.machine.NotifyEscalation(ctx, a)
	log.Info("article drafted", "article_id", a.ID, "status", a.Status, "attempts", d.Attempts)
	return outcomeOf(a), nil
}

// Redraft rewrites an article in revision_requested from its editor notes.
func (g *Generator) Redraft(ctx context.Context, a *types.Article) (Outcome, error) {
	t, err := g.store.GetTopic(ctx, a.TopicID)
	if err != nil {
		return "", err
	}
	log := g.log.With("article_id", a.ID)

	d, err := g.compose(ctx, g.brief(t, a), log)
	if err != nil {
		return OutcomeCancelled, err
	}
	if err := ctx.Err(); err != nil {
		return OutcomeCancelled, err
	}
	updated, err := g.machine.Redraft(ctx, editorial.Ref{ID: a.ID, Version: a.Version}, d)
	if apperr.IsConflict(err) {
		log.Info("article changed while redrafting, discarding redraft", "error", err)
		return OutcomeCancelled, nil
	}
	if err != nil {
		return "", err
	}
	log.Info("article redrafted", "status", updated.Status, "revision_count", updated.RevisionCount)
	return outcomeOf(updated), nil
}

func outcomeOf(a *types.Article) Outcome {
	switch a.Status {
	case types.StatusPendingReview:
		return OutcomeReview
	case types.StatusEscalated:
		return OutcomeEscalated
	default:
		return OutcomeFlagged
	}
}

func (g *Generator) brief(t *types.Topic, a *types.Article) Brief {
	b := Brief{
		Topic:    t,
		Audience: g.audience,
		Dateline: g.now().Weekday().String(),
	}
	if t.Region != "" {
		b.Dateline = strings.ToUpper(t.Region) + ", " + b.Dateline
	}
	if a != nil {
		b.EditorNotes = a.EditorialNotes
		b.PreviousBody = a.Body
	}
	return b
}

// compose writes and audits up to 1+retryBudget times, feeding each audit's failures into
// the next attempt. A bias flag ends the loop at once; the draft goes to an editor as is.
// It returns an error only when ctx ends.
func (g *Generator) compose(ctx context.Context, b Brief, log *logger.Logger) (editorial.Draft, error) {
	var d editorial.Draft
	var feedback []string
	var audit AuditReport

	for attempt := 1; attempt <= g.retryBudget+1; attempt++ {
		text, err := g.writer.Write(ctx, b, feedback)
		if err != nil {
			if ctx.Err() != nil {
				return d, ctx.Err()
			}
			log.Warn("draft generation failed", "attempt", attempt, "error", err)
			return editorial.Draft{
				Headline: b.Topic.Title,
				Body:     b.PreviousBody,
				Attempts: attempt,
				Failure:  fmt.Sprintf("%s: draft generation failed: %v", apperr.CodeProviderUnavailable, err),
			}, nil
		}

		audit = g.auditor.Audit(text, b)
		bias := g.scanner.Scan(text, b)
		d = editorial.Draft{
			Headline:        text.Headline,
			Body:            text.Body,
			ReadingLevel:    audit.ReadingLevel,
			SelfAuditPassed: audit.Passed,
			SelfAuditReport: audit,
			BiasFlagged:     bias.Flagged(),
			BiasScanReport:  bias,
			Attempts:        attempt,
		}
		if bias.Flagged() {
			d.Notes = bias.Summary()
			log.Warn("draft flagged by bias scan", "flags", len(bias.Flags))
			return d, nil
		}
		if audit.Passed {
			return d, nil
		}
		feedback = audit.Feedback()
		log.Info("draft failed self-audit", "attempt", attempt, "failed", audit.Failed(), "error", audit.Err())
	}

	d.Notes = fmt.Sprintf("failed after %d attempts: %s", d.Attempts, strings.Join(audit.Feedback(), "; "))
	return d, nil
}
