package editorial

import (
	"context"

	"newsdesk/apperr"
	"newsdesk/logger"
	"newsdesk/shared/kafka"

	"github.com/google/uuid"
)

// CommandHandler feeds commands from the command topic into Dispatch. Commands that fail
// on their own merits (bad input, stale version, illegal transition) are marked and
// dropped; storage and provider failures are left for redelivery.
func (m *Machine) CommandHandler(log *logger.Logger) *kafka.TypedMessageHandler[Command] {
	log = log.With("component", "editorial_commands")
	return &kafka.TypedMessageHandler[Command]{
		Validate: func(cmd *Command) bool {
			if cmd.ArticleID == uuid.Nil || cmd.Action == "" {
				log.Warn("dropping command without article or action", "action", cmd.Action)
				return false
			}
			return true
		},
		Process: func(ctx context.Context, cmd *Command) error {
			a, err := m.Dispatch(ctx, *cmd)
			if err != nil {
				return err
			}
			log.Info("command applied", "action", cmd.Action, "article_id", a.ID, "actor", cmd.Actor, "status", a.Status)
			return nil
		},
		Retryable: func(err error) bool {
			kind := apperr.KindOf(err)
			return kind == "" || kind == apperr.KindTransient
		},
		AlwaysMark: true,
	}
}
