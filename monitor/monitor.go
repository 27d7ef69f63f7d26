// Package monitor watches published articles for contradicting coverage and turns editor
// decisions on the resulting flags into corrections and ledger entries.
package monitor

import (
	"context"
	"encoding/json"
	"slices"
	"strings"
	"time"

	"newsdesk/apperr"
	"newsdesk/common"
	"newsdesk/config"
	"newsdesk/ledger"
	"newsdesk/logger"
	"newsdesk/providers"
	"newsdesk/shared/kafka"
	"newsdesk/store"
	"newsdesk/types"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Archiver keeps the archived copy of an article current with its corrections.
type Archiver interface {
	Store(ctx context.Context, snap common.Snapshot) (string, error)
}

// Emitter announces pipeline events.
type Emitter interface {
	Emit(ctx context.Context, ev kafka.Event) error
}

// Result counts one monitoring run.
type Result struct {
	Polled  int `json:"polled"`
	Flagged int `json:"flagged"`
	Closed  int `json:"closed"`
	Failed  int `json:"failed"`
}

// CorrectionInput is what an editor writes when approving a flag.
type CorrectionInput struct {
	Text        string `json:"correction_text"`
	WhatChanged string `json:"what_changed"`
	Reason      string `json:"reason"`
}

type Monitor struct {
	store     *store.Store
	search    providers.SearchProvider
	notifier  providers.Notifier
	archive   Archiver
	events    Emitter
	policy    providers.RetryPolicy
	window    time.Duration
	batchSize int
	editors   string
	log       *logger.Logger
	now       func() time.Time
}

// New builds a monitor. notifier, archive and events may be nil.
func New(s *store.Store, search providers.SearchProvider, notifier providers.Notifier, archive Archiver, events Emitter,
	policy providers.RetryPolicy, cfg config.PipelineConfig, editors string, log *logger.Logger) *Monitor {
	return &Monitor{
		store:     s,
		search:    search,
		notifier:  notifier,
		archive:   archive,
		events:    events,
		policy:    policy,
		window:    cfg.MonitorWindow,
		batchSize: cfg.BatchSize,
		editors:   editors,
		log:       log.With("component", "monitor"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run polls mentions for articles inside the monitoring window and closes the window on
// articles past it. A failed poll is logged and the batch moves on.
func (m *Monitor) Run(ctx context.Context) (Result, error) {
	var res Result
	articles, err := m.store.MonitoredArticles(ctx, m.batchSize)
	if err != nil {
		return res, err
	}
	now := m.now()
	for i := range articles {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		a := &articles[i]
		if a.PublishedAt == nil {
			continue
		}
		log := m.log.With("article_id", a.ID)

		if !now.Before(a.PublishedAt.Add(m.window)) {
			closed, err := m.closeWindow(ctx, a, now)
			if err != nil {
				res.Failed++
				log.Error("closing monitoring window failed", "error", err)
			} else if closed {
				res.Closed++
				continue
			}
		} else if n, err := m.poll(ctx, a, now); err != nil {
			res.Failed++
			log.Warn("mention poll failed", "error", err)
		} else {
			res.Polled++
			res.Flagged += n
		}

		// still open: send it to the back of the queue
		if err := m.store.MarkMonitored(ctx, a.ID, now); err != nil {
			log.Warn("marking article monitored failed", "error", err)
		}
	}
	if len(articles) > 0 {
		m.log.Info("monitor run done", "polled", res.Polled, "flagged", res.Flagged, "closed", res.Closed, "failed", res.Failed)
	}
	return res, nil
}

func (m *Monitor) poll(ctx context.Context, a *types.Article, now time.Time) (int, error) {
	topic, err := m.store.GetTopic(ctx, a.TopicID)
	if err != nil {
		return 0, err
	}
	results, err := providers.Do(ctx, m.policy, "search", func(ctx context.Context) ([]providers.SearchResult, error) {
		return m.search.Search(ctx, a.Headline)
	})
	if err != nil {
		return 0, err
	}

	flagged := 0
	for _, r := range results {
		found, ok := detect(a, topic.SourcePlan, r)
		if !ok {
			continue
		}
		f := &types.MonitorFlag{
			ID:                  uuid.New(),
			ArticleID:           a.ID,
			MentionURL:          r.URL,
			Snippet:             r.Snippet,
			Reason:              found.reason,
			Status:              types.FlagPending,
			ContradictedSources: sourceList(found.contradicted),
			DetectedAt:          now,
		}
		created, err := m.store.CreateFlag(ctx, f)
		if err != nil {
			return flagged, err
		}
		if created {
			flagged++
			m.log.Info("contradiction flagged", "article_id", a.ID, "flag_id", f.ID, "url", r.URL, "sources", found.contradicted)
		}
	}
	return flagged, nil
}

// closeWindow ends monitoring for an article. With no correction on record, each of its
// sources is credited with claim_verified. Pending flags keep the window open until an
// editor decides them.
func (m *Monitor) closeWindow(ctx context.Context, a *types.Article, now time.Time) (bool, error) {
	pending, err := m.store.CountFlags(ctx, a.ID, types.FlagPending)
	if err != nil {
		return false, err
	}
	if pending > 0 {
		m.log.Debug("monitoring window held open by pending flags", "article_id", a.ID, "pending", pending)
		return false, nil
	}

	closed := false
	err = m.store.Transaction(ctx, func(tx *store.Store) error {
		ok, err := tx.CloseMonitoring(ctx, a.ID, now)
		if err != nil || !ok {
			return err
		}
		closed = true
		corrections, err := tx.CountCorrections(ctx, a.ID)
		if err != nil || corrections > 0 {
			return err
		}
		sources, err := tx.TopicSourceIDs(ctx, a.TopicID)
		if err != nil {
			return err
		}
		return ledger.Record(ctx, tx, entries(sources, a.ID, types.ReliabilityClaimVerified, "no correction within monitoring window", now)...)
	})
	if err != nil {
		return false, err
	}
	if closed {
		m.log.Info("monitoring window closed", "article_id", a.ID)
	}
	return closed, nil
}

// ApproveFlag writes the correction an editor approved. The body is left as published;
// the correction is appended. Sources the mention disputed get claim_false, the article's
// other sources correction_needed.
func (m *Monitor) ApproveFlag(ctx context.Context, flagID uuid.UUID, actor string, in CorrectionInput) (*types.Correction, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, apperr.Invalid("actor is required")
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, apperr.Invalid("correction_text is required")
	}

	now := m.now()
	var a *types.Article
	var c *types.Correction
	err := m.store.Transaction(ctx, func(tx *store.Store) error {
		f, err := m.pendingFlag(ctx, tx, flagID)
		if err != nil {
			return err
		}
		if a, err = tx.GetArticle(ctx, f.ArticleID); err != nil {
			return err
		}
		if a.Status != types.StatusPublished {
			return apperr.Conflict(apperr.CodeInvalidTransition, "article %s is %s, corrections need a published article", a.ID, a.Status)
		}

		c = &types.Correction{
			ID:             uuid.New(),
			ArticleID:      a.ID,
			FlagID:         &f.ID,
			CorrectionText: strings.TrimSpace(in.Text),
			WhatChanged:    in.WhatChanged,
			Reason:         in.Reason,
			CorrectedBy:    actor,
			CorrectedAt:    now,
		}
		if c.Reason == "" {
			c.Reason = f.Reason
		}
		if err := tx.CreateCorrection(ctx, c); err != nil {
			return err
		}
		if err := resolve(ctx, tx, f, types.FlagApproved, actor, now); err != nil {
			return err
		}

		sources, err := tx.TopicSourceIDs(ctx, a.TopicID)
		if err != nil {
			return err
		}
		disputed := contradicted(f)
		var out []types.SourceReliabilityLogEntry
		for _, id := range union(sources, disputed) {
			if slices.Contains(disputed, id) {
				out = append(out, ledger.Entry(id, &a.ID, types.ReliabilityClaimFalse, f.MentionURL, now))
			} else {
				out = append(out, ledger.Entry(id, &a.ID, types.ReliabilityCorrectionNeeded, f.MentionURL, now))
			}
		}
		return ledger.Record(ctx, tx, out...)
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("correction issued", "article_id", a.ID, "flag_id", flagID, "editor", actor)
	m.announceCorrection(ctx, a, c)
	return c, nil
}

// DismissFlag closes a flag without a correction. The disputed sources, or all of the
// article's sources when none were named, get no_issue.
func (m *Monitor) DismissFlag(ctx context.Context, flagID uuid.UUID, actor, reason string) (*types.MonitorFlag, error) {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, apperr.Invalid("actor is required")
	}

	now := m.now()
	var f *types.MonitorFlag
	err := m.store.Transaction(ctx, func(tx *store.Store) error {
		var err error
		if f, err = m.pendingFlag(ctx, tx, flagID); err != nil {
			return err
		}
		if err := resolve(ctx, tx, f, types.FlagDismissed, actor, now); err != nil {
			return err
		}
		targets := contradicted(f)
		if len(targets) == 0 {
			a, err := tx.GetArticle(ctx, f.ArticleID)
			if err != nil {
				return err
			}
			if targets, err = tx.TopicSourceIDs(ctx, a.TopicID); err != nil {
				return err
			}
		}
		notes := reason
		if notes == "" {
			notes = "flag dismissed: " + f.MentionURL
		}
		return ledger.Record(ctx, tx, entries(targets, f.ArticleID, types.ReliabilityNoIssue, notes, now)...)
	})
	if err != nil {
		return nil, err
	}
	m.log.Info("flag dismissed", "flag_id", f.ID, "article_id", f.ArticleID, "editor", actor)
	return f, nil
}

// Flags lists flags in status, newest first; an empty status lists all.
func (m *Monitor) Flags(ctx context.Context, status types.FlagStatus, limit int) ([]types.MonitorFlag, error) {
	return m.store.Flags(ctx, status, limit)
}

func (m *Monitor) pendingFlag(ctx context.Context, tx *store.Store, id uuid.UUID) (*types.MonitorFlag, error) {
	f, err := tx.GetFlag(ctx, id)
	if err != nil {
		return nil, err
	}
	if f.Status != types.FlagPending {
		return nil, apperr.Conflict(apperr.CodeInvalidTransition, "flag %s is already %s", f.ID, f.Status)
	}
	return f, nil
}

func resolve(ctx context.Context, tx *store.Store, f *types.MonitorFlag, status types.FlagStatus, actor string, at time.Time) error {
	f.Status = status
	f.ResolvedBy = actor
	f.ResolvedAt = &at
	return tx.ResolveFlag(ctx, f)
}

// announceCorrection tells the desk, refreshes the archive and emits correction.issued.
// None of these undo the correction on failure.
func (m *Monitor) announceCorrection(ctx context.Context, a *types.Article, c *types.Correction) {
	log := m.log.With("article_id", a.ID, "correction_id", c.ID)
	if m.notifier != nil && m.editors != "" {
		_, err := m.notifier.Send(ctx, m.editors, providers.TemplateCorrection, map[string]string{
			"headline":   a.Headline,
			"editor":     c.CorrectedBy,
			"correction": c.CorrectionText,
		})
		if err != nil {
			log.Warn("correction notice failed", "error", err)
		}
	}
	if m.archive != nil {
		corrections, err := m.store.Corrections(ctx, a.ID)
		if err == nil {
			_, err = m.archive.Store(ctx, common.Snapshot{Article: a, Corrections: corrections, ArchivedAt: m.now()})
		}
		if err != nil {
			log.Warn("archive refresh failed", "error", err)
		}
	}
	if m.events != nil {
		err := m.events.Emit(ctx, kafka.Event{
			Type:       kafka.EventCorrectionIssued,
			ArticleID:  a.ID,
			OccurredAt: c.CorrectedAt,
			Data: map[string]any{
				"correction_id":   c.ID,
				"correction_text": c.CorrectionText,
				"what_changed":    c.WhatChanged,
			},
		})
		if err != nil {
			log.Warn("correction event failed", "error", err)
		}
	}
}

func entries(sources []string, articleID uuid.UUID, event types.ReliabilityEvent, notes string, at time.Time) []types.SourceReliabilityLogEntry {
	out := make([]types.SourceReliabilityLogEntry, 0, len(sources))
	for _, s := range sources {
		out = append(out, ledger.Entry(s, &articleID, event, notes, at))
	}
	return out
}

func sourceList(ids []string) datatypes.JSON {
	if len(ids) == 0 {
		return nil
	}
	b, _ := json.Marshal(ids)
	return datatypes.JSON(b)
}

func contradicted(f *types.MonitorFlag) []string {
	if len(f.ContradictedSources) == 0 {
		return nil
	}
	var ids []string
	_ = json.Unmarshal(f.ContradictedSources, &ids)
	return ids
}

func union(a, b []string) []string {
	out := append([]string(nil), a...)
	for _, s := range b {
		if !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}
