package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"newsdesk/connectors"
	"newsdesk/deduplication"
	"newsdesk/logger"
	"newsdesk/store/storetest"
	"newsdesk/types"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type stubConnector struct {
	items []types.RawCandidate
	err   error
}

func (s stubConnector) Name() string { return "stub" }

func (s stubConnector) Fetch(context.Context, time.Time) ([]types.RawCandidate, error) {
	return s.items, s.err
}

func newIntake(t *testing.T, conns ...connectors.Connector) *Intake {
	t.Helper()
	in := New(storetest.New(t), deduplication.NewWithFilter(0.8, nil), conns, 7*24*time.Hour, logger.Nop())
	in.now = func() time.Time { return fixedNow }
	return in
}

func batch() []types.RawCandidate {
	return []types.RawCandidate{
		{Title: "Flood warning issued for East Coast", URL: "https://news.example.com/flood?utm_source=rss", DiscoveredFrom: types.SourceRSS},
		{Title: "Parliament passes budget amendment", URL: "https://gov.example.sg/budget", DiscoveredFrom: types.SourceGovernment},
		{Title: "Flood warning issued for east coast!", URL: "https://other.example.com/flood", DiscoveredFrom: types.SourceSocial},
		{Title: "", URL: "https://news.example.com/untitled", DiscoveredFrom: types.SourceRSS},
		{Title: "No link", URL: "not a url", DiscoveredFrom: types.SourceRSS},
		{Title: "Unknown channel", URL: "https://news.example.com/x", DiscoveredFrom: "pigeon"},
	}
}

func TestIngestDedupAndIdempotence(t *testing.T) {
	in := newIntake(t)
	ctx := context.Background()

	got, err := in.Ingest(ctx, batch())
	if err != nil {
		t.Fatal(err)
	}
	want := Result{Received: 6, Created: 2, Duplicates: 1, Invalid: 3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("first ingest (-want +got):\n%s", diff)
	}

	got, err = in.Ingest(ctx, batch())
	if err != nil {
		t.Fatal(err)
	}
	want = Result{Received: 6, Existing: 2, Duplicates: 1, Invalid: 3}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("re-ingest (-want +got):\n%s", diff)
	}

	cands, err := in.store.CandidatesForEvaluation(ctx, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(cands) != 2 {
		t.Fatalf("expected 2 stored candidates, got %d", len(cands))
	}
	for _, c := range cands {
		if c.Status != types.CandidateDiscovered {
			t.Errorf("candidate %q status = %s", c.Title, c.Status)
		}
		if c.SourceURL == "https://news.example.com/flood?utm_source=rss" {
			t.Errorf("source url was not normalized")
		}
	}
}

func TestIngestWindowExpires(t *testing.T) {
	in := newIntake(t)
	ctx := context.Background()

	old := &types.EventCandidate{
		Title:           "Flood warning issued for East Coast",
		SourceURL:       "https://archive.example.com/flood",
		DiscoveredFrom:  types.SourceRSS,
		NormalizedTitle: deduplication.NormalizeTitle("Flood warning issued for East Coast"),
		DiscoveredAt:    fixedNow.Add(-8 * 24 * time.Hour),
		Status:          types.CandidateRejected,
	}
	if _, err := in.store.CreateCandidate(ctx, old); err != nil {
		t.Fatal(err)
	}

	got, err := in.Ingest(ctx, batch()[:1])
	if err != nil {
		t.Fatal(err)
	}
	if got.Created != 1 {
		t.Fatalf("candidate outside the window should not dedup, got %+v", got)
	}

	recent := *old
	recent.ID = uuid.Nil
	recent.SourceURL = "https://archive.example.com/flood-2"
	recent.DiscoveredAt = fixedNow.Add(-time.Hour)
	if _, err := in.store.CreateCandidate(ctx, &recent); err != nil {
		t.Fatal(err)
	}
	got, err = in.Ingest(ctx, []types.RawCandidate{{
		Title: "Flood warnings issued for East Coast", URL: "https://third.example.com/f", DiscoveredFrom: types.SourceRSS,
	}})
	if err != nil {
		t.Fatal(err)
	}
	if got.Duplicates != 1 {
		t.Fatalf("expected duplicate within window, got %+v", got)
	}
}

type brokenFilter struct{}

func (brokenFilter) Exists(context.Context, string) (bool, error) { return false, errors.New("down") }
func (brokenFilter) Add(context.Context, string) error             { return errors.New("down") }

func TestIngestFilterFailureFallsBackToStore(t *testing.T) {
	in := newIntake(t)
	in.dedup = deduplication.NewWithFilter(0.8, brokenFilter{})
	ctx := context.Background()

	for i, want := range []Result{
		{Received: 1, Created: 1},
		{Received: 1, Existing: 1},
	} {
		got, err := in.Ingest(ctx, batch()[:1])
		if err != nil {
			t.Fatal(err)
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("run %d (-want +got):\n%s", i, diff)
		}
	}
}

func TestRunPullsConnectors(t *testing.T) {
	in := newIntake(t,
		stubConnector{items: batch()[:2]},
		stubConnector{err: errors.New("feed offline")},
	)
	got, err := in.Run(context.Background(), fixedNow.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if got.Received != 2 || got.Created != 2 {
		t.Fatalf("unexpected result %+v", got)
	}
}
