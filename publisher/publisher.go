// Package publisher releases approved articles once they are due.
package publisher

import (
	"context"
	"time"

	"newsdesk/apperr"
	"newsdesk/common"
	"newsdesk/config"
	"newsdesk/editorial"
	"newsdesk/logger"
	"newsdesk/shared/kafka"
	"newsdesk/store"
	"newsdesk/types"
)

// Archiver keeps a copy of every published article.
type Archiver interface {
	Store(ctx context.Context, snap common.Snapshot) (string, error)
}

// Emitter announces pipeline events.
type Emitter interface {
	Emit(ctx context.Context, ev kafka.Event) error
}

// Result counts one publishing run.
type Result struct {
	Published int `json:"published"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
	Archived  int `json:"archived"`
	Announced int `json:"announced"`
}

type Publisher struct {
	store     *store.Store
	machine   *editorial.Machine
	archive   Archiver
	events    Emitter
	batchSize int
	log       *logger.Logger
	now       func() time.Time
}

// New builds a publisher. archive and events may be nil when not configured.
func New(s *store.Store, m *editorial.Machine, archive Archiver, events Emitter, cfg config.PipelineConfig, log *logger.Logger) *Publisher {
	return &Publisher{
		store:     s,
		machine:   m,
		archive:   archive,
		events:    events,
		batchSize: cfg.BatchSize,
		log:       log.With("component", "publisher"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run publishes every approved article whose schedule is unset or due. Publication is
// committed before the archive and the event; failures there are logged only.
func (p *Publisher) Run(ctx context.Context) (Result, error) {
	var res Result
	due, err := p.store.DueForPublication(ctx, p.now(), p.batchSize)
	if err != nil {
		return res, err
	}
	for _, d := range due {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		a, published, err := p.machine.Publish(ctx, d.ID)
		switch {
		case apperr.IsConflict(err):
			// changed by an editor since it was listed
			res.Skipped++
			p.log.Info("article no longer publishable", "article_id", d.ID, "error", err)
			continue
		case err != nil:
			res.Failed++
			p.log.Error("publish failed", "article_id", d.ID, "error", err)
			continue
		case !published:
			res.Skipped++
			continue
		}
		res.Published++
		p.log.Info("article published", "article_id", a.ID, "headline", a.Headline)

		if p.archiveCopy(ctx, a) {
			res.Archived++
		}
		if p.announce(ctx, a) {
			res.Announced++
		}
	}
	if len(due) > 0 {
		p.log.Info("publishing run done", "published", res.Published, "skipped", res.Skipped, "failed", res.Failed)
	}
	return res, nil
}

func (p *Publisher) archiveCopy(ctx context.Context, a *types.Article) bool {
	if p.archive == nil {
		return false
	}
	key, err := p.archive.Store(ctx, common.Snapshot{Article: a, ArchivedAt: p.now()})
	if err != nil {
		p.log.Warn("archive failed", "article_id", a.ID, "error", err)
		return false
	}
	p.log.Debug("article archived", "article_id", a.ID, "key", key)
	return true
}

func (p *Publisher) announce(ctx context.Context, a *types.Article) bool {
	if p.events == nil {
		return false
	}
	err := p.events.Emit(ctx, kafka.Event{
		Type:       kafka.EventArticlePublished,
		ArticleID:  a.ID,
		OccurredAt: *a.PublishedAt,
		Data: map[string]any{
			"headline": a.Headline,
			"category": a.Category,
			"region":   a.Region,
			"version":  a.Version,
		},
	})
	if err != nil {
		p.log.Warn("publish event failed", "article_id", a.ID, "error", err)
		return false
	}
	return true
}
