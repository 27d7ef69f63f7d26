package connectors

import (
	"context"
	"fmt"
	"time"

	"newsdesk/config"
	"newsdesk/types"

	"github.com/mmcdole/gofeed"
)

// RSSConnector reads an RSS/Atom feed. Government press feeds use the same
// connector with the government channel.
type RSSConnector struct {
	feed      config.FeedConfig
	channel   types.DiscoverySource
	parser    *gofeed.Parser
	extractor *Extractor
}

// NewRSSConnector builds a connector for feed. When extractor is non-nil, items with a
// thin description are enriched with the readable article text.
func NewRSSConnector(feed config.FeedConfig, extractor *Extractor) *RSSConnector {
	channel := types.SourceRSS
	if feed.Kind == string(types.SourceGovernment) {
		channel = types.SourceGovernment
	}
	if !feed.Extract {
		extractor = nil
	}
	return &RSSConnector{feed: feed, channel: channel, parser: gofeed.NewParser(), extractor: extractor}
}

func (r *RSSConnector) Name() string { return r.feed.Name }

// Fetch retrieves and parses the feed, keeping items published after since.
// Items without a date are kept; intake dedup handles repeats.
func (r *RSSConnector) Fetch(ctx context.Context, since time.Time) ([]types.RawCandidate, error) {
	feed, err := r.parser.ParseURLWithContext(r.feed.URL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", r.feed.URL, err)
	}

	out := make([]types.RawCandidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		var published *time.Time
		if item.PublishedParsed != nil {
			published = item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			published = item.UpdatedParsed
		}
		if published != nil && !since.IsZero() && !published.After(since) {
			continue
		}

		summary := item.Description
		if summary == "" {
			summary = item.Content
		}

		category := r.feed.Category
		if category == "" && len(item.Categories) > 0 {
			category = item.Categories[0]
		}

		source := r.feed.Name
		if source == "" {
			source = feed.Title
		}

		out = append(out, types.RawCandidate{
			Title:          item.Title,
			Description:    plainText(summary),
			URL:            item.Link,
			DiscoveredFrom: r.channel,
			SourceName:     source,
			Region:         r.feed.Region,
			Category:       category,
			PublishedAt:    published,
		})
	}

	if r.extractor != nil {
		r.extractor.Enrich(ctx, out)
	}
	return out, nil
}
