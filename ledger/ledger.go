package ledger

import (
	"context"
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"newsdesk/logger"
	"newsdesk/store"
	"newsdesk/types"

	"github.com/google/uuid"
)

// Impacts is the signed weight of each reliability outcome.
var Impacts = map[types.ReliabilityEvent]float64{
	types.ReliabilityClaimVerified:    1.0,
	types.ReliabilityNoIssue:          0.25,
	types.ReliabilityCorrectionNeeded: -1.0,
	types.ReliabilityClaimFalse:       -2.0,
}

const (
	// adjustmentScale converts a decayed score into a credibility delta
	adjustmentScale = 0.1
	maxAdjustment   = 0.4
	// entries older than this many half-lives contribute less than 0.1%
	horizonHalfLives = 10
)

// Ledger records source outcomes and derives decayed credibility from them.
type Ledger struct {
	store    *store.Store
	halfLife time.Duration
	log      *logger.Logger
	now      func() time.Time
}

func New(s *store.Store, halfLife time.Duration, log *logger.Logger) *Ledger {
	return &Ledger{
		store:    s,
		halfLife: halfLife,
		log:      log.With("component", "ledger"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Entry builds a log entry for sourceID with the standard impact of event.
func Entry(sourceID string, articleID *uuid.UUID, event types.ReliabilityEvent, notes string, at time.Time) types.SourceReliabilityLogEntry {
	return types.SourceReliabilityLogEntry{
		ID:        uuid.New(),
		SourceID:  sourceID,
		ArticleID: articleID,
		Event:     event,
		Impact:    Impacts[event],
		Notes:     notes,
		CreatedAt: at,
	}
}

// Record appends entries through s, which may be a transaction-bound store.
func Record(ctx context.Context, s *store.Store, entries ...types.SourceReliabilityLogEntry) error {
	for i := range entries {
		if entries[i].Impact == 0 {
			entries[i].Impact = Impacts[entries[i].Event]
		}
	}
	return s.AppendLedgerEntries(ctx, entries...)
}

// Record appends entries to the ledger.
func (l *Ledger) Record(ctx context.Context, entries ...types.SourceReliabilityLogEntry) error {
	if err := Record(ctx, l.store, entries...); err != nil {
		return err
	}
	l.log.Debug("ledger entries recorded", "count", len(entries))
	return nil
}

// Decay weighs impact by its age with an exponential half-life.
func Decay(impact float64, age, halfLife time.Duration) float64 {
	if age <= 0 || halfLife <= 0 {
		return impact
	}
	return impact * math.Pow(0.5, float64(age)/float64(halfLife))
}

// Snapshot is a read-only view of decayed source scores at one instant.
// Scoring and verification read a snapshot so concurrent ledger writes cannot change a run midway.
type Snapshot struct {
	At     time.Time
	scores map[string]float64
	counts map[string]int
}

// Snapshot computes decayed scores for every source at the current time.
func (l *Ledger) Snapshot(ctx context.Context) (Snapshot, error) {
	now := l.now()
	since := now.Add(-time.Duration(horizonHalfLives) * l.halfLife)
	entries, err := l.store.LedgerEntriesSince(ctx, since)
	if err != nil {
		return Snapshot{}, err
	}
	return Compute(entries, now, l.halfLife), nil
}

// Compute folds entries into a snapshot at now.
func Compute(entries []types.SourceReliabilityLogEntry, now time.Time, halfLife time.Duration) Snapshot {
	snap := Snapshot{At: now, scores: map[string]float64{}, counts: map[string]int{}}
	for _, e := range entries {
		if e.CreatedAt.After(now) {
			continue
		}
		snap.scores[e.SourceID] += Decay(e.Impact, now.Sub(e.CreatedAt), halfLife)
		snap.counts[e.SourceID]++
	}
	return snap
}

// Score is the decayed sum of impacts for a source; unknown sources score 0.
func (s Snapshot) Score(sourceID string) float64 {
	return s.scores[sourceID]
}

// Adjustment is the credibility delta a source's track record earns, within ±0.4.
func (s Snapshot) Adjustment(sourceID string) float64 {
	adj := adjustmentScale * s.scores[sourceID]
	return math.Max(-maxAdjustment, math.Min(maxAdjustment, adj))
}

// SourceScore summarizes one source for the credibility endpoint.
type SourceScore struct {
	SourceID   string  `json:"source_id"`
	Score      float64 `json:"score"`
	Adjustment float64 `json:"adjustment"`
	Entries    int     `json:"entries"`
}

// Scores lists every source in the snapshot, best first.
func (s Snapshot) Scores() []SourceScore {
	out := make([]SourceScore, 0, len(s.scores))
	for id, score := range s.scores {
		out = append(out, SourceScore{SourceID: id, Score: score, Adjustment: s.Adjustment(id), Entries: s.counts[id]})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].SourceID < out[j].SourceID
	})
	return out
}

// SourceID keys a source by its host, without a www. prefix or port.
func SourceID(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
