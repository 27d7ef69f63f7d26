package evaluator

import (
	"context"
	"strings"
	"testing"
	"time"

	"newsdesk/apperr"
	"newsdesk/config"
	"newsdesk/ledger"
	"newsdesk/logger"
	"newsdesk/store"
	"newsdesk/store/storetest"
	"newsdesk/types"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

var now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type stubScorer struct{ scores types.SubScores }

func (s *stubScorer) Score(types.EventCandidate, time.Time, ledger.Snapshot) types.SubScores {
	return s.scores
}

type recordingCanceller struct{ ids []uuid.UUID }

func (r *recordingCanceller) Cancel(id uuid.UUID) bool {
	r.ids = append(r.ids, id)
	return true
}

func newEvaluator(t *testing.T, scorer Scorer, cancel *recordingCanceller) (*Evaluator, *store.Store) {
	t.Helper()
	s := storetest.New(t)
	cfg := config.Default().Pipeline
	e := New(s, scorer, ledger.New(s, cfg.LedgerHalfLife, logger.Nop()), cancel, cfg, logger.Nop())
	e.now = func() time.Time { return now }
	return e, s
}

func seedCandidate(t *testing.T, s *store.Store, title string) *types.EventCandidate {
	t.Helper()
	c := &types.EventCandidate{
		Title:          title,
		SourceURL:      "https://news.example.com/" + strings.ReplaceAll(title, " ", "-"),
		DiscoveredFrom: types.SourceRSS,
		DiscoveredAt:   now.Add(-time.Hour),
		Status:         types.CandidateDiscovered,
	}
	if _, err := s.CreateCandidate(context.Background(), c); err != nil {
		t.Fatal(err)
	}
	return c
}

type titleScorer map[string]types.SubScores

func (s titleScorer) Score(c types.EventCandidate, _ time.Time, _ ledger.Snapshot) types.SubScores {
	return s[c.Title]
}

func TestHeldCandidatesDoNotStarveNewOnes(t *testing.T) {
	scorer := titleScorer{
		"council debates zoning":  {Impact: 20, Timeliness: 15, Proximity: 10},
		"port strike talks stall": {Impact: 20, Timeliness: 15, Proximity: 10},
		"budget passes":           {Impact: 15, Timeliness: 18, Proximity: 10, Conflict: 12, Novelty: 8, Verifiability: 10},
	}
	e, s := newEvaluator(t, scorer, nil)
	e.batchSize = 2
	ctx := context.Background()

	for i, title := range []string{"council debates zoning", "port strike talks stall"} {
		c := &types.EventCandidate{
			Title:          title,
			SourceURL:      "https://news.example.com/held/" + strings.ReplaceAll(title, " ", "-"),
			DiscoveredFrom: types.SourceRSS,
			DiscoveredAt:   now.Add(-time.Duration(10-i) * time.Hour),
			Status:         types.CandidateDiscovered,
		}
		if _, err := s.CreateCandidate(ctx, c); err != nil {
			t.Fatal(err)
		}
	}
	fresh := seedCandidate(t, s, "budget passes")

	for run := 1; run <= 2; run++ {
		res, err := e.Run(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if res.Scored != 2 {
			t.Fatalf("run %d scored %d, want a full batch", run, res.Scored)
		}
	}

	got, err := s.GetCandidate(ctx, fresh.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.CandidateApproved {
		t.Fatalf("fresh candidate status = %s, want approved on the second run", got.Status)
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		total int
		want  types.CandidateStatus
	}{
		{0, types.CandidateRejected},
		{29, types.CandidateRejected},
		{30, types.CandidateHold},
		{59, types.CandidateHold},
		{60, types.CandidateApproved},
		{100, types.CandidateApproved},
	}
	for _, tt := range tests {
		if got := Decide(tt.total, 30, 60); got != tt.want {
			t.Errorf("Decide(%d) = %s, want %s", tt.total, got, tt.want)
		}
	}
}

func TestEvaluateApprovesAndCreatesTopic(t *testing.T) {
	scorer := &stubScorer{types.SubScores{Impact: 15, Timeliness: 18, Proximity: 10, Conflict: 12, Novelty: 8, Verifiability: 10}}
	e, s := newEvaluator(t, scorer, nil)
	ctx := context.Background()
	c := seedCandidate(t, s, "budget passes")

	res, err := e.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Result{Scored: 1, Approved: 1}, res); diff != "" {
		t.Fatalf("result (-want +got):\n%s", diff)
	}

	got, err := s.GetCandidate(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.TotalScore != 73 || got.Status != types.CandidateApproved || got.TopicID == nil {
		t.Fatalf("candidate = total %d, status %s, topic %v", got.TotalScore, got.Status, got.TopicID)
	}
	topic, err := s.GetTopic(ctx, *got.TopicID)
	if err != nil {
		t.Fatal(err)
	}
	if topic.CandidateID != c.ID || topic.VerificationStatus != types.VerificationPending {
		t.Errorf("topic = %+v", topic)
	}
}

func TestEvaluateThresholdReasons(t *testing.T) {
	tests := []struct {
		name   string
		scores types.SubScores
		want   types.CandidateStatus
		reason string
	}{
		{"29 rejected", types.SubScores{Impact: 20, Timeliness: 9}, types.CandidateRejected, "SCORE_BELOW_THRESHOLD"},
		{"30 held", types.SubScores{Impact: 20, Timeliness: 10}, types.CandidateHold, "held: total 30"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, s := newEvaluator(t, &stubScorer{tt.scores}, nil)
			c := seedCandidate(t, s, "council meets")
			status, err := e.Evaluate(context.Background(), c, ledger.Snapshot{}, now)
			if err != nil {
				t.Fatal(err)
			}
			if status != tt.want || !strings.Contains(c.RejectionReason, tt.reason) {
				t.Fatalf("status %s reason %q", status, c.RejectionReason)
			}
			if c.TopicID != nil {
				t.Fatal("non-approved candidate got a topic")
			}
		})
	}
}

func TestRescoreWithdrawsAndCancels(t *testing.T) {
	scorer := &stubScorer{types.SubScores{Impact: 20, Timeliness: 20, Proximity: 15, Conflict: 5}}
	cancel := &recordingCanceller{}
	e, s := newEvaluator(t, scorer, cancel)
	ctx := context.Background()
	c := seedCandidate(t, s, "ferry collision")

	if _, err := e.Run(ctx); err != nil {
		t.Fatal(err)
	}
	approved, _ := s.GetCandidate(ctx, c.ID)

	scorer.scores = types.SubScores{Impact: 10}
	res, err := e.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Withdrawn != 1 {
		t.Fatalf("withdrawn = %d", res.Withdrawn)
	}

	got, _ := s.GetCandidate(ctx, c.ID)
	if got.Status != types.CandidateRejected || got.TotalScore != approved.TotalScore {
		t.Errorf("candidate status %s total %d; want rejected with original total %d", got.Status, got.TotalScore, approved.TotalScore)
	}
	topic, _ := s.GetTopic(ctx, *approved.TopicID)
	if topic.VerificationStatus != types.VerificationRejected {
		t.Errorf("topic status = %s", topic.VerificationStatus)
	}
	if diff := cmp.Diff([]uuid.UUID{*approved.TopicID}, cancel.ids); diff != "" {
		t.Errorf("cancelled (-want +got):\n%s", diff)
	}

	// a withdrawn candidate is terminal
	res, err = e.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Withdrawn != 0 || res.Scored != 0 {
		t.Errorf("third run = %+v", res)
	}
}

func TestPreviewMarksEvaluated(t *testing.T) {
	e, s := newEvaluator(t, &stubScorer{types.SubScores{Impact: 20, Timeliness: 20, Proximity: 15, Conflict: 15}}, nil)
	ctx := context.Background()
	c := seedCandidate(t, s, "mrt delay")

	got, err := e.Preview(ctx, c.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.CandidateEvaluated || got.TotalScore != 70 || got.TopicID != nil {
		t.Fatalf("preview = status %s total %d", got.Status, got.TotalScore)
	}

	// evaluated candidates still get a decision on the next run
	res, err := e.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res.Approved != 1 {
		t.Fatalf("run after preview = %+v", res)
	}
}

func TestHeuristicScorer(t *testing.T) {
	h := NewHeuristicScorer(config.CoverageConfig{Regions: []string{"Singapore"}, Terms: []string{"MRT"}})
	published := now.Add(-2 * time.Hour)
	c := types.EventCandidate{
		Title:          "Protest over new MRT fare hike draws 2,000",
		Description:    "Commuters accuse operator as first fare rise in a decade takes effect.",
		SourceURL:      "https://www.cna.example/singapore/fare",
		DiscoveredFrom: types.SourceGovernment,
		Region:         "singapore",
		PublishedAt:    &published,
		DiscoveredAt:   now,
	}

	first := h.Score(c, now, ledger.Snapshot{})
	if diff := cmp.Diff(first, h.Score(c, now, ledger.Snapshot{})); diff != "" {
		t.Fatalf("scores not deterministic:\n%s", diff)
	}
	want := types.SubScores{
		Impact:        8,  // fare + digits
		Timeliness:    20, // two hours old
		Proximity:     15, // covered region
		Conflict:      10, // protest, accuse
		Novelty:       10, // new, first
		Verifiability: 12, // government channel + published date
	}
	if diff := cmp.Diff(want, first); diff != "" {
		t.Errorf("scores (-want +got):\n%s", diff)
	}

	entries := []types.SourceReliabilityLogEntry{
		{SourceID: "cna.example", Event: types.ReliabilityClaimVerified, Impact: 1, CreatedAt: now},
	}
	trusted := h.Score(c, now, ledger.Compute(entries, now, 90*24*time.Hour))
	if trusted.Verifiability != 13 {
		t.Errorf("verifiability with a good record = %d, want 13", trusted.Verifiability)
	}
}

func TestTimelinessBuckets(t *testing.T) {
	tests := []struct {
		age  time.Duration
		want int
	}{
		{time.Hour, 20},
		{12 * time.Hour, 16},
		{48 * time.Hour, 10},
		{5 * 24 * time.Hour, 5},
		{30 * 24 * time.Hour, 0},
	}
	for _, tt := range tests {
		c := types.EventCandidate{DiscoveredAt: now.Add(-tt.age)}
		if got := timeliness(c, now); got != tt.want {
			t.Errorf("timeliness(%v) = %d, want %d", tt.age, got, tt.want)
		}
	}
}

func TestRejectTopic(t *testing.T) {
	cancel := &recordingCanceller{}
	e, s := newEvaluator(t, &stubScorer{types.SubScores{Impact: 20, Timeliness: 20, Proximity: 15, Conflict: 5}}, cancel)
	ctx := context.Background()
	c := seedCandidate(t, s, "reservoir closure")
	if _, err := e.Run(ctx); err != nil {
		t.Fatal(err)
	}
	approved, _ := s.GetCandidate(ctx, c.ID)

	if err := e.RejectTopic(ctx, *approved.TopicID, "", "duplicate"); apperr.KindOf(err) != apperr.KindInvalid {
		t.Fatalf("missing actor err = %v", err)
	}
	if err := e.RejectTopic(ctx, *approved.TopicID, "desk", "duplicate"); err != nil {
		t.Fatal(err)
	}
	topic, _ := s.GetTopic(ctx, *approved.TopicID)
	if topic.VerificationStatus != types.VerificationRejected {
		t.Errorf("topic status = %s", topic.VerificationStatus)
	}
	got, _ := s.GetCandidate(ctx, c.ID)
	if got.Status != types.CandidateRejected {
		t.Errorf("candidate status = %s", got.Status)
	}
	if diff := cmp.Diff([]uuid.UUID{*approved.TopicID}, cancel.ids); diff != "" {
		t.Errorf("cancelled (-want +got):\n%s", diff)
	}

	err := e.RejectTopic(ctx, *approved.TopicID, "desk", "again")
	if apperr.CodeOf(err) != apperr.CodeTopicRejected {
		t.Errorf("second reject err = %v", err)
	}
	if err := e.RejectTopic(ctx, uuid.New(), "desk", "x"); !apperr.IsNotFound(err) {
		t.Errorf("unknown topic err = %v", err)
	}
}
