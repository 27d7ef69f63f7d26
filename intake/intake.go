// Package intake turns raw connector payloads into deduplicated event candidates.
package intake

import (
	"context"
	"fmt"
	"strings"
	"time"

	"newsdesk/connectors"
	"newsdesk/deduplication"
	"newsdesk/logger"
	"newsdesk/store"
	"newsdesk/types"
)

// Result counts what happened to one batch.
type Result struct {
	Received   int `json:"received"`
	Created    int `json:"created"`
	Duplicates int `json:"duplicates"`
	Existing   int `json:"existing"`
	Invalid    int `json:"invalid"`
}

type Intake struct {
	store      *store.Store
	dedup      *deduplication.Deduplicator
	connectors []connectors.Connector
	window     time.Duration
	log        *logger.Logger
	now        func() time.Time
}

func New(s *store.Store, dedup *deduplication.Deduplicator, conns []connectors.Connector, window time.Duration, log *logger.Logger) *Intake {
	return &Intake{
		store:      s,
		dedup:      dedup,
		connectors: conns,
		window:     window,
		log:        log.With("component", "intake"),
		now:        time.Now,
	}
}

// Run pulls every connector for items newer than since and ingests the combined batch.
func (in *Intake) Run(ctx context.Context, since time.Time) (Result, error) {
	batch := connectors.FetchAll(ctx, in.connectors, since, in.log)
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	return in.Ingest(ctx, batch)
}

// Ingest stores each payload that is new by source key and not a near-duplicate title of
// a candidate seen within the dedup window or earlier in the same batch.
func (in *Intake) Ingest(ctx context.Context, batch []types.RawCandidate) (Result, error) {
	res := Result{Received: len(batch)}
	now := in.now().UTC()

	refs, err := in.store.RecentCandidateTitles(ctx, now.Add(-in.window))
	if err != nil {
		return res, fmt.Errorf("load dedup window: %w", err)
	}
	titles := make([]string, 0, len(refs)+len(batch))
	for _, r := range refs {
		titles = append(titles, r.NormalizedTitle)
	}

	for _, raw := range batch {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		c, ok := in.candidate(raw, now)
		if !ok {
			res.Invalid++
			in.log.Debug("invalid payload skipped", "url", raw.URL, "from", raw.DiscoveredFrom)
			continue
		}

		exists, err := in.seen(ctx, c)
		if err != nil {
			return res, err
		}
		if exists {
			res.Existing++
			continue
		}

		if m, dup := in.dedup.FindDuplicate(c.NormalizedTitle, titles); dup {
			res.Duplicates++
			in.log.Info("duplicate candidate discarded",
				"title", c.Title, "matches", m.Title, "similarity", fmt.Sprintf("%.2f", m.Score))
			continue
		}

		created, err := in.store.CreateCandidate(ctx, c)
		if err != nil {
			return res, err
		}
		if !created {
			res.Existing++
			continue
		}
		res.Created++
		titles = append(titles, c.NormalizedTitle)
		if err := in.dedup.MarkSeen(ctx, types.SourceKey(c.SourceURL, c.DiscoveredFrom)); err != nil {
			in.log.Warn("bloom add failed", "error", err)
		}
	}

	in.log.Info("intake batch done",
		"received", res.Received, "created", res.Created, "duplicates", res.Duplicates,
		"existing", res.Existing, "invalid", res.Invalid)
	return res, nil
}

// seen confirms a filter hit against the store; the filter alone never drops a payload.
func (in *Intake) seen(ctx context.Context, c *types.EventCandidate) (bool, error) {
	maybe, err := in.dedup.MaybeSeen(ctx, types.SourceKey(c.SourceURL, c.DiscoveredFrom))
	if err != nil {
		in.log.Warn("bloom check failed, falling back to store", "error", err)
		maybe = true
	}
	if !maybe {
		return false, nil
	}
	return in.store.CandidateExists(ctx, c.SourceURL, c.DiscoveredFrom)
}

func (in *Intake) candidate(raw types.RawCandidate, now time.Time) (*types.EventCandidate, bool) {
	title := strings.Join(strings.Fields(raw.Title), " ")
	u := deduplication.NormalizeURL(raw.URL)
	norm := deduplication.NormalizeTitle(title)
	if title == "" || norm == "" || !validURL(u) || !raw.DiscoveredFrom.Valid() {
		return nil, false
	}
	c := &types.EventCandidate{
		Title:           title,
		Description:     strings.TrimSpace(raw.Description),
		SourceURL:       u,
		DiscoveredFrom:  raw.DiscoveredFrom,
		NormalizedTitle: norm,
		SourceName:      raw.SourceName,
		Region:          raw.Region,
		Category:        raw.Category,
		DiscoveredAt:    now,
		Status:          types.CandidateDiscovered,
	}
	if raw.PublishedAt != nil {
		p := raw.PublishedAt.UTC()
		c.PublishedAt = &p
	}
	return c, true
}

func validURL(u string) bool {
	return strings.HasPrefix(u, "http://") || strings.HasPrefix(u, "https://")
}
