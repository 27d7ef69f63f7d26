package editorial

import (
	"context"
	"strings"
	"time"

	"newsdesk/apperr"
	"newsdesk/types"

	"github.com/google/uuid"
)

// Action is an inbound human review command.
type Action string

const (
	ActionApprove         Action = "approve"
	ActionRequestRevision Action = "request_revision"
	ActionReject          Action = "reject"
	ActionEscalate        Action = "escalate"
	ActionPullBack        Action = "pull_back"
	ActionRequestReply    Action = "request_reply"
	ActionRecordReply     Action = "record_reply"
	ActionBypassReply     Action = "bypass_reply"
	ActionReplyOpened     Action = "reply_opened"
	ActionAssign          Action = "assign"
)

// Command is the wire form of a review action, shared by the HTTP surface and the
// command topic consumer.
type Command struct {
	Action    Action        `json:"action"`
	ArticleID uuid.UUID     `json:"article_id"`
	Version   int           `json:"version,omitempty"`
	Actor     string        `json:"actor"`
	Notes     string        `json:"notes,omitempty"`
	PublishAt *time.Time    `json:"publish_at,omitempty"`
	Editor    string        `json:"editor,omitempty"`
	Reply     *ReplyRequest `json:"reply,omitempty"`
	Entity    string        `json:"entity,omitempty"`
	Text      string        `json:"text,omitempty"`
}

// Dispatch validates a command and runs it. The returned article reflects the new state.
func (m *Machine) Dispatch(ctx context.Context, cmd Command) (*types.Article, error) {
	if cmd.ArticleID == uuid.Nil {
		return nil, apperr.Invalid("article_id is required")
	}
	actor := strings.TrimSpace(cmd.Actor)
	if actor == "" {
		return nil, apperr.Invalid("actor is required")
	}
	ref := Ref{ID: cmd.ArticleID, Version: cmd.Version}

	switch cmd.Action {
	case ActionApprove:
		return m.Approve(ctx, ref, actor, cmd.Notes, cmd.PublishAt)
	case ActionRequestRevision:
		return m.RequestRevision(ctx, ref, actor, cmd.Notes)
	case ActionReject:
		return m.Reject(ctx, ref, actor, cmd.Notes)
	case ActionEscalate:
		return m.Escalate(ctx, ref, actor, cmd.Notes)
	case ActionPullBack:
		return m.PullBack(ctx, ref, actor, cmd.Notes)
	case ActionAssign:
		return m.AssignEditor(ctx, ref, actor, cmd.Editor)
	case ActionRequestReply:
		if cmd.Reply == nil {
			return nil, apperr.Invalid("reply is required")
		}
		a, _, err := m.RequestReply(ctx, ref, actor, *cmd.Reply)
		return a, err
	case ActionRecordReply:
		return m.RecordReply(ctx, cmd.ArticleID, actor, cmd.Entity, cmd.Text)
	case ActionBypassReply:
		return m.BypassReply(ctx, cmd.ArticleID, actor, cmd.Entity, cmd.Notes)
	case ActionReplyOpened:
		if err := m.MarkReplyOpened(ctx, cmd.ArticleID, cmd.Entity); err != nil {
			return nil, err
		}
		return m.store.GetArticle(ctx, cmd.ArticleID)
	default:
		return nil, apperr.Invalid("unknown action %q", cmd.Action)
	}
}
