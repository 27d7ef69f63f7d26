// Package editorial owns Article.status: the human approval gate, the revision loop,
// pull-back and the right-of-reply sub-workflow.
package editorial

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"newsdesk/apperr"
	"newsdesk/config"
	"newsdesk/logger"
	"newsdesk/providers"
	"newsdesk/store"
	"newsdesk/types"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// System actors
const (
	ActorDrafting  = "system:drafting"
	ActorPublisher = "system:publisher"
	ActorReplies   = "system:replies"
)

// Ref names an article and, optionally, the version the caller last saw.
// A zero Version skips the staleness check.
type Ref struct {
	ID      uuid.UUID
	Version int
}

type Machine struct {
	store               *store.Store
	notifier            providers.Notifier
	editors             string
	maxRevisions        int
	replyDeadline       time.Duration
	replyDeadlineUrgent time.Duration
	log                 *logger.Logger
	now                 func() time.Time
}

// New builds the machine. editors receives pull-back and escalation notices.
func New(s *store.Store, notifier providers.Notifier, cfg config.PipelineConfig, editors string, log *logger.Logger) *Machine {
	return &Machine{
		store:               s,
		notifier:            notifier,
		editors:             editors,
		maxRevisions:        cfg.MaxRevisions,
		replyDeadline:       cfg.ReplyDeadline,
		replyDeadlineUrgent: cfg.ReplyDeadlineUrgent,
		log:                 log.With("component", "editorial"),
		now:                 func() time.Time { return time.Now().UTC() },
	}
}

// change is one event applied to an article.
type change struct {
	kind    types.EventKind
	to      types.ArticleStatus
	actor   string
	reason  string
	payload any
	// revision is set when the event rewrites headline or body
	revision string
	mutate   func(a *types.Article)
}

// apply validates and records one change: the revision (if any), the event, the article
// row and the review queue entry are written through tx, so they commit together.
func (m *Machine) apply(ctx context.Context, tx *store.Store, a *types.Article, ch change) error {
	from := a.Status
	if !CanTransition(from, ch.to) {
		return apperr.Conflict(apperr.CodeInvalidTransition, "article %s cannot move from %s to %s", a.ID, from, ch.to)
	}
	now := m.now()
	if ch.mutate != nil {
		ch.mutate(a)
	}
	a.Status = ch.to

	if ch.revision != "" {
		if err := tx.AppendRevision(ctx, &types.ArticleRevision{
			ArticleID: a.ID,
			Headline:  a.Headline,
			Body:      a.Body,
			RevisedBy: ch.actor,
			Reason:    ch.revision,
			CreatedAt: now,
		}); err != nil {
			return err
		}
	}

	ev := &types.ArticleEvent{
		ArticleID:  a.ID,
		Kind:       ch.kind,
		FromStatus: from,
		ToStatus:   ch.to,
		Actor:      ch.actor,
		Reason:     ch.reason,
		CreatedAt:  now,
	}
	if ch.payload != nil {
		raw, err := json.Marshal(ch.payload)
		if err != nil {
			return fmt.Errorf("encode %s payload: %w", ch.kind, err)
		}
		ev.Payload = datatypes.JSON(raw)
	}
	if err := tx.AppendEvent(ctx, ev); err != nil {
		return err
	}
	if err := tx.UpdateArticle(ctx, a); err != nil {
		return err
	}
	return m.syncReview(ctx, tx, a, ch.reason, now)
}

func (m *Machine) syncReview(ctx context.Context, tx *store.Store, a *types.Article, reason string, now time.Time) error {
	if !needsReview(a) {
		return tx.CloseReviewTask(ctx, a.ID, now)
	}
	if reason == "" {
		reason = string(a.Status)
	}
	return tx.OpenReviewTask(ctx, a.ID, a.Status, reason, now)
}

// mutateArticle loads the article inside a transaction, checks the caller's version and runs fn.
func (m *Machine) mutateArticle(ctx context.Context, ref Ref, fn func(tx *store.Store, a *types.Article) error) (*types.Article, error) {
	var out *types.Article
	err := m.store.Transaction(ctx, func(tx *store.Store) error {
		a, err := tx.GetArticle(ctx, ref.ID)
		if err != nil {
			return err
		}
		if ref.Version != 0 && ref.Version != a.Version {
			return apperr.Conflict(apperr.CodeStaleVersion, "article %s is at version %d, not %d", a.ID, a.Version, ref.Version)
		}
		if err := fn(tx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Draft is the generated content and audit outcome handed over by the draft generator.
type Draft struct {
	Headline        string
	Body            string
	ReadingLevel    float64
	SelfAuditPassed bool
	SelfAuditReport any
	BiasFlagged     bool
	BiasScanReport  any
	Attempts        int
	// Notes explains a bias flag or audit failure to editors
	Notes string
	// Failure, when set, means no usable draft could be produced; the article escalates.
	Failure string
}

func (d Draft) applyTo(a *types.Article) {
	a.Headline = d.Headline
	a.Body = d.Body
	a.ReadingLevel = d.ReadingLevel
	a.SelfAuditPassed = d.SelfAuditPassed
	a.BiasFlagged = d.BiasFlagged
	a.SelfAuditReport = jsonOrNil(d.SelfAuditReport)
	a.BiasScanReport = jsonOrNil(d.BiasScanReport)
	a.DraftAttempts += d.Attempts
	if d.Notes != "" {
		a.EditorialNotes = d.Notes
	}
}

func jsonOrNil(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

// CreateDraft stores a new article for topic in draft and routes it: a bias flag holds it
// in draft for an editor, a failed audit or generation escalates it, and a clean draft
// goes through AI review to pending_review. Run it in the transaction that attaches the
// article to its topic.
func (m *Machine) CreateDraft(ctx context.Context, tx *store.Store, topic *types.Topic, d Draft) (*types.Article, error) {
	now := m.now()
	a := &types.Article{
		TopicID:  topic.ID,
		Category: topic.Category,
		Region:   topic.Region,
		Status:   types.StatusDraft,
	}
	d.applyTo(a)
	if a.Headline == "" {
		a.Headline = topic.Title
	}
	if err := tx.CreateArticle(ctx, a); err != nil {
		return nil, err
	}
	if err := tx.AppendRevision(ctx, &types.ArticleRevision{
		ArticleID: a.ID, Headline: a.Headline, Body: a.Body,
		RevisedBy: ActorDrafting, Reason: "initial draft", CreatedAt: now,
	}); err != nil {
		return nil, err
	}
	if err := tx.AppendEvent(ctx, &types.ArticleEvent{
		ArticleID: a.ID, Kind: types.EventCreated, ToStatus: types.StatusDraft,
		Actor: ActorDrafting, CreatedAt: now,
	}); err != nil {
		return nil, err
	}
	if err := m.route(ctx, tx, a, d); err != nil {
		return nil, err
	}
	return a, nil
}

// Redraft replaces the body of an article in revision_requested and routes it again.
func (m *Machine) Redraft(ctx context.Context, ref Ref, d Draft) (*types.Article, error) {
	a, err := m.mutateArticle(ctx, ref, func(tx *store.Store, a *types.Article) error {
		if a.Status != types.StatusRevisionRequested {
			return apperr.Conflict(apperr.CodeInvalidTransition, "article %s is %s, not %s", a.ID, a.Status, types.StatusRevisionRequested)
		}
		if d.Failure != "" {
			// keep the previous body; the redraft could not be produced
			return m.apply(ctx, tx, a, escalation(types.EventEscalated, ActorDrafting, d.Failure, nil))
		}
		err := m.apply(ctx, tx, a, change{
			kind: types.EventRedrafted, to: types.StatusDraft, actor: ActorDrafting,
			reason: "redrafted from editor notes", revision: fmt.Sprintf("revision after editor notes (round %d)", a.RevisionCount+1),
			mutate: d.applyTo,
		})
		if err != nil {
			return err
		}
		return m.route(ctx, tx, a, d)
	})
	if err != nil {
		return nil, err
	}
	m.NotifyEscalation(ctx, a)
	return a, nil
}

// escalation hands an article to a senior reviewer and records why in the editorial notes.
func escalation(kind types.EventKind, actor, reason string, payload any) change {
	return change{
		kind: kind, to: types.StatusEscalated, actor: actor, reason: reason, payload: payload,
		mutate: func(a *types.Article) { a.EditorialNotes = reason },
	}
}

// route moves a fresh draft to where it belongs.
func (m *Machine) route(ctx context.Context, tx *store.Store, a *types.Article, d Draft) error {
	switch {
	case d.Failure != "":
		return m.apply(ctx, tx, a, escalation(types.EventEscalated, ActorDrafting, d.Failure, nil))
	case a.BiasFlagged:
		return m.apply(ctx, tx, a, change{
			kind: types.EventBiasFlagged, to: types.StatusDraft, actor: ActorDrafting,
			reason: a.EditorialNotes, payload: d.BiasScanReport,
		})
	}

	if err := m.apply(ctx, tx, a, change{
		kind: types.EventSubmitted, to: types.StatusAIReview, actor: ActorDrafting,
	}); err != nil {
		return err
	}
	if !a.SelfAuditPassed {
		reason := fmt.Sprintf("%s: %s", apperr.CodeSelfAuditFailed, d.Notes)
		return m.apply(ctx, tx, a, escalation(types.EventAIReviewFailed, ActorDrafting, reason, d.SelfAuditReport))
	}
	return m.apply(ctx, tx, a, change{
		kind: types.EventAIReviewPassed, to: types.StatusPendingReview, actor: ActorDrafting,
		payload: d.SelfAuditReport,
		mutate: func(a *types.Article) {
			if a.Submissions > 0 {
				a.RevisionCount++
			}
			a.Submissions++
		},
	})
}

// Publish moves an approved, due article to published and stamps published_at. The body is
// never touched. Publishing an already-published article is a no-op that reports false.
func (m *Machine) Publish(ctx context.Context, id uuid.UUID) (*types.Article, bool, error) {
	published := false
	a, err := m.mutateArticle(ctx, Ref{ID: id}, func(tx *store.Store, a *types.Article) error {
		if a.Status == types.StatusPublished {
			return nil
		}
		if a.Status != types.StatusApproved {
			return apperr.Conflict(apperr.CodeArticleNotApproved, "article %s is %s, not approved", a.ID, a.Status)
		}
		if err := requireBody(a); err != nil {
			return err
		}
		now := m.now()
		if a.ScheduledFor != nil && a.ScheduledFor.After(now) {
			return apperr.Conflict(apperr.CodeInvalidTransition, "article %s is scheduled for %s", a.ID, a.ScheduledFor.Format(time.RFC3339))
		}
		published = true
		return m.apply(ctx, tx, a, change{
			kind: types.EventPublished, to: types.StatusPublished, actor: ActorPublisher,
			mutate: func(a *types.Article) { a.PublishedAt = &now },
		})
	})
	if err != nil {
		return nil, false, err
	}
	return a, published, nil
}

// requireBody refuses to let an article with no text be approved or go out.
func requireBody(a *types.Article) error {
	if strings.TrimSpace(a.Body) == "" {
		return apperr.Conflict(apperr.CodeEmptyArticle, "article %s has no body", a.ID)
	}
	return nil
}

// Detail is an article with its full audit trail.
type Detail struct {
	Article     *types.Article              `json:"article"`
	Events      []types.ArticleEvent        `json:"events"`
	Revisions   []types.ArticleRevision     `json:"revisions"`
	Replies     []types.RightOfReplyRequest `json:"replies"`
	Corrections []types.Correction          `json:"corrections"`
}

func (m *Machine) Detail(ctx context.Context, id uuid.UUID) (*Detail, error) {
	a, err := m.store.GetArticle(ctx, id)
	if err != nil {
		return nil, err
	}
	d := &Detail{Article: a}
	if d.Events, err = m.store.Events(ctx, id); err != nil {
		return nil, err
	}
	if d.Revisions, err = m.store.Revisions(ctx, id); err != nil {
		return nil, err
	}
	if d.Replies, err = m.store.Replies(ctx, id); err != nil {
		return nil, err
	}
	if d.Corrections, err = m.store.Corrections(ctx, id); err != nil {
		return nil, err
	}
	return d, nil
}

// Queue lists articles waiting on a human decision, oldest first.
func (m *Machine) Queue(ctx context.Context, limit int) ([]store.ReviewItem, error) {
	return m.store.ReviewQueue(ctx, limit)
}

func (m *Machine) notify(ctx context.Context, to, tpl string, vars map[string]string) types.DeliveryStatus {
	if m.notifier == nil || to == "" {
		return types.DeliveryFailed
	}
	status, err := m.notifier.Send(ctx, to, tpl, vars)
	if err != nil {
		m.log.Warn("notification failed", "template", tpl, "error", err)
		return types.DeliveryFailed
	}
	return status
}

// NotifyEscalation tells the editors desk about an escalated article; other statuses are ignored.
func (m *Machine) NotifyEscalation(ctx context.Context, a *types.Article) {
	if a.Status != types.StatusEscalated {
		return
	}
	m.notify(ctx, m.editors, providers.TemplateEscalation, map[string]string{
		"headline": a.Headline,
		"reason":   a.EditorialNotes,
	})
}
