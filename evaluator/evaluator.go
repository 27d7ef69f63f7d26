// Package evaluator scores event candidates for newsworthiness and promotes winners to topics.
package evaluator

import (
	"context"
	"fmt"
	"time"

	"newsdesk/apperr"
	"newsdesk/config"
	"newsdesk/ledger"
	"newsdesk/logger"
	"newsdesk/store"
	"newsdesk/types"
	"newsdesk/worker"

	"github.com/google/uuid"
)

// Result counts the outcome of one evaluation run.
type Result struct {
	Scored    int `json:"scored"`
	Approved  int `json:"approved"`
	Held      int `json:"held"`
	Rejected  int `json:"rejected"`
	Withdrawn int `json:"withdrawn"`
	Generated int `json:"generated"`
}

type Evaluator struct {
	store       *store.Store
	scorer      Scorer
	ledger      *ledger.Ledger
	cancel      worker.Canceller
	rejectBelow int
	approveAt   int
	batchSize   int
	log         *logger.Logger
	now         func() time.Time
}

// New builds an evaluator. cancel stops in-flight verification or drafting of withdrawn topics; it may be nil.
func New(s *store.Store, scorer Scorer, l *ledger.Ledger, cancel worker.Canceller, cfg config.PipelineConfig, log *logger.Logger) *Evaluator {
	return &Evaluator{
		store:       s,
		scorer:      scorer,
		ledger:      l,
		cancel:      cancel,
		rejectBelow: cfg.RejectBelow,
		approveAt:   cfg.ApproveAt,
		batchSize:   cfg.BatchSize,
		log:         log.With("component", "evaluator"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Decide applies the threshold policy to a total score.
func Decide(total, rejectBelow, approveAt int) types.CandidateStatus {
	switch {
	case total < rejectBelow:
		return types.CandidateRejected
	case total < approveAt:
		return types.CandidateHold
	default:
		return types.CandidateApproved
	}
}

// Run re-scores approved candidates whose topics are still undrafted, decides every
// candidate awaiting a decision, then marks candidates whose topic has an article.
func (e *Evaluator) Run(ctx context.Context) (Result, error) {
	var res Result
	snap, err := e.ledger.Snapshot(ctx)
	if err != nil {
		return res, fmt.Errorf("ledger snapshot: %w", err)
	}
	now := e.now()

	if res.Withdrawn, err = e.rescore(ctx, snap, now); err != nil {
		return res, err
	}

	cands, err := e.store.CandidatesForEvaluation(ctx, e.batchSize)
	if err != nil {
		return res, err
	}
	for i := range cands {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		status, err := e.Evaluate(ctx, &cands[i], snap, now)
		if err != nil {
			return res, err
		}
		res.Scored++
		switch status {
		case types.CandidateApproved:
			res.Approved++
		case types.CandidateHold:
			res.Held++
		case types.CandidateRejected:
			res.Rejected++
		}
	}

	n, err := e.store.MarkGeneratedCandidates(ctx)
	if err != nil {
		return res, err
	}
	res.Generated = int(n)

	e.log.Info("evaluation run done", "scored", res.Scored, "approved", res.Approved,
		"held", res.Held, "rejected", res.Rejected, "withdrawn", res.Withdrawn, "generated", res.Generated)
	return res, nil
}

// Evaluate scores c and applies the decision policy. An approved candidate gets a pending
// topic in the same transaction as its decision.
func (e *Evaluator) Evaluate(ctx context.Context, c *types.EventCandidate, snap ledger.Snapshot, now time.Time) (types.CandidateStatus, error) {
	c.Scores = e.scorer.Score(*c, now, snap)
	c.TotalScore = c.Scores.Total()
	c.ScoredAt = &now
	c.Status = Decide(c.TotalScore, e.rejectBelow, e.approveAt)
	c.RejectionReason = ""

	switch c.Status {
	case types.CandidateRejected:
		c.RejectionReason = fmt.Sprintf("%s: total %d below %d (%s)",
			apperr.CodeScoreBelowThreshold, c.TotalScore, e.rejectBelow, breakdown(c.Scores))
	case types.CandidateHold:
		c.RejectionReason = fmt.Sprintf("held: total %d below approval threshold %d (%s)",
			c.TotalScore, e.approveAt, breakdown(c.Scores))
	}

	err := e.store.Transaction(ctx, func(tx *store.Store) error {
		if c.Status == types.CandidateApproved {
			topic := &types.Topic{
				CandidateID:        c.ID,
				Title:              c.Title,
				Summary:            c.Description,
				SourceURL:          c.SourceURL,
				Category:           c.Category,
				Region:             c.Region,
				VerificationStatus: types.VerificationPending,
			}
			if err := tx.CreateTopic(ctx, topic); err != nil {
				return err
			}
			c.TopicID = &topic.ID
		}
		return tx.SaveCandidateDecision(ctx, c)
	})
	if err != nil {
		return "", err
	}

	e.log.Debug("candidate scored", "candidate_id", c.ID, "total", c.TotalScore, "status", c.Status)
	return c.Status, nil
}

// Preview scores a candidate without deciding it. Undecided candidates are stored as evaluated.
func (e *Evaluator) Preview(ctx context.Context, id uuid.UUID) (*types.EventCandidate, error) {
	c, err := e.store.GetCandidate(ctx, id)
	if err != nil {
		return nil, err
	}
	snap, err := e.ledger.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("ledger snapshot: %w", err)
	}
	now := e.now()
	scores := e.scorer.Score(*c, now, snap)

	if c.Status != types.CandidateDiscovered && c.Status != types.CandidateEvaluated {
		preview := *c
		preview.Scores = scores
		preview.TotalScore = scores.Total()
		return &preview, nil
	}
	c.Scores = scores
	c.TotalScore = scores.Total()
	c.ScoredAt = &now
	c.Status = types.CandidateEvaluated
	if err := e.store.SaveCandidateDecision(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// rescore withdraws approved candidates that no longer clear the rejection threshold.
// Their recorded scores are kept; only status and topic change.
func (e *Evaluator) rescore(ctx context.Context, snap ledger.Snapshot, now time.Time) (int, error) {
	approved, err := e.store.ApprovedUndrafted(ctx, e.batchSize)
	if err != nil {
		return 0, err
	}
	withdrawn := 0
	for _, c := range approved {
		total := e.scorer.Score(c, now, snap).Total()
		if total >= e.rejectBelow {
			continue
		}
		reason := fmt.Sprintf("%s: re-scored %d below %d", apperr.CodeScoreBelowThreshold, total, e.rejectBelow)
		changed := false
		err := e.store.Transaction(ctx, func(tx *store.Store) error {
			var err error
			if changed, err = tx.RejectTopic(ctx, *c.TopicID, reason); err != nil || !changed {
				return err
			}
			return tx.WithdrawCandidate(ctx, c.ID, reason)
		})
		if err != nil {
			return withdrawn, err
		}
		if !changed {
			continue
		}
		withdrawn++
		if e.cancel != nil && e.cancel.Cancel(*c.TopicID) {
			e.log.Info("cancelled in-flight work for withdrawn topic", "topic_id", *c.TopicID)
		}
		e.log.Info("approved candidate withdrawn", "candidate_id", c.ID, "total", total)
	}
	return withdrawn, nil
}

// RejectTopic is an editor's kill of a topic before it has an article. Its candidate is
// withdrawn and in-flight verification or drafting is cancelled.
func (e *Evaluator) RejectTopic(ctx context.Context, id uuid.UUID, actor, reason string) error {
	if actor == "" {
		return apperr.Invalid("actor is required")
	}
	reason = fmt.Sprintf("rejected by %s: %s", actor, reason)
	err := e.store.Transaction(ctx, func(tx *store.Store) error {
		topic, err := tx.GetTopic(ctx, id)
		if err != nil {
			return err
		}
		changed, err := tx.RejectTopic(ctx, id, reason)
		if err != nil {
			return err
		}
		if !changed {
			return apperr.Conflict(apperr.CodeTopicRejected, "topic %s is already rejected or drafted", id)
		}
		return tx.WithdrawCandidate(ctx, topic.CandidateID, reason)
	})
	if err != nil {
		return err
	}
	if e.cancel != nil && e.cancel.Cancel(id) {
		e.log.Info("cancelled in-flight work for rejected topic", "topic_id", id)
	}
	e.log.Info("topic rejected", "topic_id", id, "actor", actor)
	return nil
}

func breakdown(s types.SubScores) string {
	return fmt.Sprintf("impact %d, timeliness %d, proximity %d, conflict %d, novelty %d, verifiability %d",
		s.Impact, s.Timeliness, s.Proximity, s.Conflict, s.Novelty, s.Verifiability)
}
