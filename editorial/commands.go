package editorial

import (
	"context"
	"fmt"
	"strings"
	"time"

	"newsdesk/apperr"
	"newsdesk/providers"
	"newsdesk/store"
	"newsdesk/types"
)

// decidable reports whether the article waits on an ordinary editor decision.
func decidable(a *types.Article) bool {
	return a.Status == types.StatusPendingReview || a.Status == types.StatusUnderReview
}

func notDecidable(a *types.Article, action string) error {
	return apperr.Conflict(apperr.CodeInvalidTransition, "cannot %s article %s in status %s", action, a.ID, a.Status)
}

// Approve clears an article for publication, optionally at a scheduled time.
func (m *Machine) Approve(ctx context.Context, ref Ref, actor, notes string, publishAt *time.Time) (*types.Article, error) {
	return m.mutateArticle(ctx, ref, func(tx *store.Store, a *types.Article) error {
		if !decidable(a) && a.Status != types.StatusEscalated {
			return notDecidable(a, "approve")
		}
		if err := requireBody(a); err != nil {
			return err
		}
		return m.apply(ctx, tx, a, change{
			kind: types.EventApproved, to: types.StatusApproved, actor: actor, reason: notes,
			mutate: func(a *types.Article) {
				if notes != "" {
					a.EditorialNotes = notes
				}
				if publishAt != nil {
					at := publishAt.UTC()
					a.ScheduledFor = &at
				}
			},
		})
	})
}

// RequestRevision sends an article back for another draft. Once the revision limit is
// reached the article escalates to a senior reviewer instead.
func (m *Machine) RequestRevision(ctx context.Context, ref Ref, actor, notes string) (*types.Article, error) {
	if strings.TrimSpace(notes) == "" {
		return nil, apperr.Invalid("revision notes are required")
	}
	a, err := m.mutateArticle(ctx, ref, func(tx *store.Store, a *types.Article) error {
		if !decidable(a) && !(a.Status == types.StatusDraft && a.BiasFlagged) {
			return notDecidable(a, "request revision of")
		}
		if a.RevisionCount >= m.maxRevisions {
			reason := fmt.Sprintf("revision limit reached after %d revisions: %s", a.RevisionCount, notes)
			return m.apply(ctx, tx, a, escalation(types.EventEscalated, actor, reason, nil))
		}
		return m.apply(ctx, tx, a, change{
			kind: types.EventRevisionRequest, to: types.StatusRevisionRequested, actor: actor, reason: notes,
			mutate: func(a *types.Article) { a.EditorialNotes = notes },
		})
	})
	if err != nil {
		return nil, err
	}
	m.NotifyEscalation(ctx, a)
	return a, nil
}

// Reject ends the article's life before publication.
func (m *Machine) Reject(ctx context.Context, ref Ref, actor, reason string) (*types.Article, error) {
	return m.mutateArticle(ctx, ref, func(tx *store.Store, a *types.Article) error {
		switch {
		case decidable(a), a.Status == types.StatusEscalated, a.Status == types.StatusRevisionRequested,
			a.Status == types.StatusDraft && a.BiasFlagged:
		default:
			return notDecidable(a, "reject")
		}
		return m.apply(ctx, tx, a, change{
			kind: types.EventRejected, to: types.StatusRejected, actor: actor, reason: reason,
			mutate: func(a *types.Article) {
				if reason != "" {
					a.EditorialNotes = reason
				}
			},
		})
	})
}

// Escalate hands an article to a senior reviewer.
func (m *Machine) Escalate(ctx context.Context, ref Ref, actor, reason string) (*types.Article, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperr.Invalid("an escalation reason is required")
	}
	a, err := m.mutateArticle(ctx, ref, func(tx *store.Store, a *types.Article) error {
		switch {
		case decidable(a), a.Status == types.StatusRevisionRequested, a.Status == types.StatusDraft && a.BiasFlagged:
		default:
			return notDecidable(a, "escalate")
		}
		return m.apply(ctx, tx, a, escalation(types.EventEscalated, actor, reason, nil))
	})
	if err != nil {
		return nil, err
	}
	m.NotifyEscalation(ctx, a)
	return a, nil
}

// PullBack reverses an approval before publication. It fails with a precise code when
// the article is already published or was never approved.
func (m *Machine) PullBack(ctx context.Context, ref Ref, actor, reason string) (*types.Article, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperr.Invalid("a pull-back reason is required")
	}
	a, err := m.mutateArticle(ctx, ref, func(tx *store.Store, a *types.Article) error {
		if a.Status == types.StatusPublished || a.PublishedAt != nil {
			return apperr.Conflict(apperr.CodeArticleAlreadyPublished, "article %s was published at %s and cannot be pulled back", a.ID, publishedAt(a))
		}
		if a.Status != types.StatusApproved {
			return apperr.Conflict(apperr.CodeArticleNotApproved, "article %s is %s; only approved articles can be pulled back", a.ID, a.Status)
		}
		return m.apply(ctx, tx, a, change{
			kind: types.EventPulledBack, to: types.StatusRevisionRequested, actor: actor, reason: reason,
			mutate: func(a *types.Article) {
				a.EditorialNotes = reason
				a.ScheduledFor = nil
			},
		})
	})
	if err != nil {
		return nil, err
	}
	m.notify(ctx, m.editors, providers.TemplatePullBack, map[string]string{
		"headline": a.Headline,
		"editor":   actor,
		"reason":   reason,
	})
	return a, nil
}

// AssignEditor records who owns the review; the status is unchanged.
func (m *Machine) AssignEditor(ctx context.Context, ref Ref, actor, editor string) (*types.Article, error) {
	if strings.TrimSpace(editor) == "" {
		return nil, apperr.Invalid("editor is required")
	}
	return m.mutateArticle(ctx, ref, func(tx *store.Store, a *types.Article) error {
		if a.Status.Terminal() {
			return notDecidable(a, "assign")
		}
		return m.apply(ctx, tx, a, change{
			kind: types.EventEditorAssigned, to: a.Status, actor: actor, reason: editor,
			mutate: func(a *types.Article) { a.AssignedEditor = editor },
		})
	})
}

func publishedAt(a *types.Article) string {
	if a.PublishedAt == nil {
		return "an unknown time"
	}
	return a.PublishedAt.Format(time.RFC3339)
}

