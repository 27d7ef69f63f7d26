package editorial

import (
	"fmt"

	"newsdesk/types"
)

// transitions lists every status change the machine may make. Self-transitions
// (an event that leaves the status unchanged) are always allowed.
var transitions = map[types.ArticleStatus][]types.ArticleStatus{
	types.StatusDraft: {
		types.StatusAIReview,
		types.StatusRevisionRequested, // only for bias-flagged drafts
		types.StatusEscalated,
		types.StatusRejected,
	},
	types.StatusAIReview: {
		types.StatusPendingReview,
		types.StatusDraft,
		types.StatusEscalated,
	},
	types.StatusPendingReview: {
		types.StatusApproved,
		types.StatusRevisionRequested,
		types.StatusRejected,
		types.StatusEscalated,
		types.StatusAwaitingReply,
	},
	types.StatusUnderReview: {
		types.StatusApproved,
		types.StatusRevisionRequested,
		types.StatusRejected,
		types.StatusEscalated,
		types.StatusAwaitingReply,
	},
	types.StatusRevisionRequested: {
		types.StatusDraft,
		types.StatusAwaitingReply,
		types.StatusEscalated,
		types.StatusRejected,
	},
	types.StatusAwaitingReply: {
		types.StatusUnderReview,
	},
	types.StatusEscalated: {
		types.StatusApproved,
		types.StatusRejected,
	},
	types.StatusApproved: {
		types.StatusPublished,
		types.StatusRevisionRequested,
	},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to types.ArticleStatus) bool {
	if from == to {
		return !from.Terminal()
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// needsReview reports whether an article in this state waits on a human decision.
func needsReview(a *types.Article) bool {
	switch a.Status {
	case types.StatusPendingReview, types.StatusUnderReview, types.StatusEscalated:
		return true
	case types.StatusDraft:
		return a.BiasFlagged
	}
	return false
}

// Project replays an event log and returns the status it leads to. Every event must
// start where the previous one ended and follow an allowed transition.
func Project(events []types.ArticleEvent) (types.ArticleStatus, error) {
	var status types.ArticleStatus
	for i, e := range events {
		if i == 0 {
			if e.Kind != types.EventCreated {
				return "", fmt.Errorf("event log starts with %s, not %s", e.Kind, types.EventCreated)
			}
			status = e.ToStatus
			continue
		}
		if e.FromStatus != status {
			return "", fmt.Errorf("event %d (%s) starts at %s but the article was %s", e.Sequence, e.Kind, e.FromStatus, status)
		}
		if !CanTransition(status, e.ToStatus) {
			return "", fmt.Errorf("event %d (%s) moves %s to %s, which is not allowed", e.Sequence, e.Kind, status, e.ToStatus)
		}
		status = e.ToStatus
	}
	return status, nil
}
