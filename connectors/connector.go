package connectors

import (
	"context"
	"strings"
	"time"

	"newsdesk/logger"
	"newsdesk/types"

	"github.com/PuerkitoBio/goquery"
)

// Connector fetches raw candidates from one channel. Implementations must honor ctx.
type Connector interface {
	Name() string
	Fetch(ctx context.Context, since time.Time) ([]types.RawCandidate, error)
}

// FetchAll pulls every connector in turn. A failing connector is logged and skipped
// so one broken feed does not block intake.
func FetchAll(ctx context.Context, conns []Connector, since time.Time, log *logger.Logger) []types.RawCandidate {
	var out []types.RawCandidate
	for _, c := range conns {
		if ctx.Err() != nil {
			break
		}
		items, err := c.Fetch(ctx, since)
		if err != nil {
			log.Warn("connector fetch failed", "connector", c.Name(), "error", err)
			continue
		}
		log.Debug("connector fetched", "connector", c.Name(), "count", len(items))
		out = append(out, items...)
	}
	return out
}

// plainText strips markup from feed descriptions.
func plainText(html string) string {
	if !strings.ContainsAny(html, "<&") {
		return strings.Join(strings.Fields(html), " ")
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return strings.Join(strings.Fields(html), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
