package editorial

import (
	"context"
	"strings"
	"time"

	"newsdesk/apperr"
	"newsdesk/providers"
	"newsdesk/store"
	"newsdesk/types"

	"github.com/google/uuid"
)

// ReplyRequest opens right of reply for one entity named in an article.
type ReplyRequest struct {
	EntityName string           `json:"entity_name"`
	EntityType types.EntityType `json:"entity_type"`
	Contact    string           `json:"contact"`
	Urgent     bool             `json:"urgent"`
}

func (r ReplyRequest) validate() error {
	if strings.TrimSpace(r.EntityName) == "" {
		return apperr.Invalid("entity_name is required")
	}
	switch r.EntityType {
	case types.EntityPerson, types.EntityOrg, types.EntityGovernment:
	default:
		return apperr.Invalid("entity_type must be person, org or government, got %q", r.EntityType)
	}
	if strings.TrimSpace(r.Contact) == "" {
		return apperr.Invalid("contact is required")
	}
	return nil
}

// Deadline is when an unanswered request lapses: sooner for urgent stories.
func (m *Machine) Deadline(sent time.Time, urgent bool) time.Time {
	if urgent {
		return sent.Add(m.replyDeadlineUrgent)
	}
	return sent.Add(m.replyDeadline)
}

// RequestReply records a right-of-reply request, moves the article to awaiting_reply and
// sends the request to the entity.
func (m *Machine) RequestReply(ctx context.Context, ref Ref, actor string, req ReplyRequest) (*types.Article, *types.RightOfReplyRequest, error) {
	if err := req.validate(); err != nil {
		return nil, nil, err
	}
	var reply *types.RightOfReplyRequest
	a, err := m.mutateArticle(ctx, ref, func(tx *store.Store, a *types.Article) error {
		switch a.Status {
		case types.StatusPendingReview, types.StatusUnderReview, types.StatusRevisionRequested, types.StatusAwaitingReply:
		default:
			return notDecidable(a, "request a reply for")
		}
		now := m.now()
		reply = &types.RightOfReplyRequest{
			ArticleID:      a.ID,
			EntityName:     strings.TrimSpace(req.EntityName),
			EntityType:     req.EntityType,
			Contact:        req.Contact,
			Urgent:         req.Urgent,
			Status:         types.ReplySent,
			DeliveryStatus: types.DeliveryQueued,
			Deadline:       m.Deadline(now, req.Urgent),
			RequestedBy:    actor,
			SentAt:         now,
		}
		if err := tx.CreateReply(ctx, reply); err != nil {
			return err
		}
		return m.apply(ctx, tx, a, change{
			kind: types.EventReplyRequested, to: types.StatusAwaitingReply, actor: actor,
			reason: reply.EntityName,
			payload: map[string]any{
				"reply_id": reply.ID, "entity_type": reply.EntityType, "deadline": reply.Deadline, "urgent": reply.Urgent,
			},
		})
	})
	if err != nil {
		return nil, nil, err
	}

	reply.DeliveryStatus = m.notify(ctx, reply.Contact, providers.TemplateRightOfReply, map[string]string{
		"entity":   reply.EntityName,
		"headline": a.Headline,
		"deadline": reply.Deadline.Format(time.RFC1123),
		"summary":  lede(a.Body),
	})
	if err := m.store.SaveReply(ctx, reply); err != nil {
		m.log.Warn("could not record reply delivery status", "reply_id", reply.ID, "error", err)
	}
	return a, reply, nil
}

// RecordReply stores the entity's response. When it was the last outstanding request the
// article returns to under_review.
func (m *Machine) RecordReply(ctx context.Context, articleID uuid.UUID, actor, entity, text string) (*types.Article, error) {
	if strings.TrimSpace(text) == "" {
		return nil, apperr.Invalid("reply text is required")
	}
	return m.mutateArticle(ctx, Ref{ID: articleID}, func(tx *store.Store, a *types.Article) error {
		r, err := tx.OutstandingReply(ctx, a.ID, entity)
		if err != nil {
			return err
		}
		r.Status = types.ReplyReplied
		r.ResponseText = text
		return m.resolveReply(ctx, tx, a, r, types.EventReplyRecorded, actor, "")
	})
}

// BypassReply closes an outstanding request without a response.
func (m *Machine) BypassReply(ctx context.Context, articleID uuid.UUID, actor, entity, reason string) (*types.Article, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, apperr.Invalid("a bypass reason is required")
	}
	return m.mutateArticle(ctx, Ref{ID: articleID}, func(tx *store.Store, a *types.Article) error {
		r, err := tx.OutstandingReply(ctx, a.ID, entity)
		if err != nil {
			return err
		}
		r.Status = types.ReplyBypassed
		r.BypassReason = reason
		return m.resolveReply(ctx, tx, a, r, types.EventReplyBypassed, actor, reason)
	})
}

// MarkReplyOpened records that the entity opened the request.
func (m *Machine) MarkReplyOpened(ctx context.Context, articleID uuid.UUID, entity string) error {
	r, err := m.store.OutstandingReply(ctx, articleID, entity)
	if err != nil {
		return err
	}
	if r.Status == types.ReplyOpened {
		return nil
	}
	r.Status = types.ReplyOpened
	return m.store.SaveReply(ctx, r)
}

// ExpireReplies marks every outstanding request past its deadline as no_response and
// releases articles with nothing left outstanding. It returns how many requests lapsed.
func (m *Machine) ExpireReplies(ctx context.Context) (int, error) {
	expired, err := m.store.ExpiredReplies(ctx, m.now())
	if err != nil {
		return 0, err
	}
	n := 0
	for _, e := range expired {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		lapsed := false
		_, err := m.mutateArticle(ctx, Ref{ID: e.ArticleID}, func(tx *store.Store, a *types.Article) error {
			r, err := tx.GetReply(ctx, e.ID)
			if err != nil {
				return err
			}
			if !r.Status.Outstanding() {
				return nil
			}
			lapsed = true
			r.Status = types.ReplyNoResponse
			return m.resolveReply(ctx, tx, a, r, types.EventReplyExpired, ActorReplies, "deadline passed")
		})
		if err != nil {
			m.log.Error("could not expire reply request", "reply_id", e.ID, "article_id", e.ArticleID, "error", err)
			continue
		}
		if lapsed {
			n++
		}
	}
	if n > 0 {
		m.log.Info("reply requests lapsed", "count", n)
	}
	return n, nil
}

func (m *Machine) resolveReply(ctx context.Context, tx *store.Store, a *types.Article, r *types.RightOfReplyRequest, kind types.EventKind, actor, reason string) error {
	now := m.now()
	r.ResolvedAt = &now
	if err := tx.SaveReply(ctx, r); err != nil {
		return err
	}
	if a.Status.Terminal() {
		return nil
	}

	payload := map[string]any{"reply_id": r.ID, "status": r.Status}
	err := m.apply(ctx, tx, a, change{
		kind: kind, to: a.Status, actor: actor, reason: firstNonEmpty(reason, r.EntityName), payload: payload,
		mutate: func(a *types.Article) {
			if r.Status == types.ReplyReplied {
				entry := r.EntityName + ": " + r.ResponseText
				if a.RightOfReplyResponse != "" {
					entry = a.RightOfReplyResponse + "\n\n" + entry
				}
				a.RightOfReplyResponse = entry
			}
		},
	})
	if err != nil {
		return err
	}

	outstanding, err := tx.CountOutstandingReplies(ctx, a.ID)
	if err != nil {
		return err
	}
	if outstanding > 0 || a.Status != types.StatusAwaitingReply {
		return nil
	}
	return m.apply(ctx, tx, a, change{
		kind: types.EventRepliesResolved, to: types.StatusUnderReview, actor: ActorReplies,
		reason: "all right-of-reply requests resolved",
	})
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// lede is the first paragraph of a body.
func lede(body string) string {
	body = strings.TrimSpace(body)
	if i := strings.Index(body, "\n\n"); i >= 0 {
		return body[:i]
	}
	return body
}
