package evaluator

import (
	"math"
	"strings"
	"time"
	"unicode"

	"newsdesk/config"
	"newsdesk/ledger"
	"newsdesk/types"
)

// Sub-score ceilings.
const (
	maxImpact        = 20
	maxTimeliness    = 20
	maxProximity     = 15
	maxConflict      = 15
	maxNovelty       = 15
	maxVerifiability = 15
)

// Scorer rates a candidate. Implementations must be pure: the same candidate, time and
// snapshot always yield the same scores.
type Scorer interface {
	Score(c types.EventCandidate, now time.Time, snap ledger.Snapshot) types.SubScores
}

var (
	impactTerms = []string{
		"dead", "death", "die", "kill", "injur", "casualt", "evacuat", "emergency", "outbreak",
		"pandemic", "nationwide", "million", "billion", "law", "bill", "policy", "ban", "tax",
		"price", "fare", "wage", "job", "layoff", "retrench", "school", "hospital", "flood", "fire",
	}
	conflictTerms = []string{
		"clash", "dispute", "protest", "accus", "lawsuit", "sue", "strike", "oppos", "critic",
		"denie", "deny", "row", "war", "fight", "tension", "condemn", "probe", "allegation",
	}
	noveltyTerms = []string{
		"first", "new", "record", "unprecedented", "launch", "discover", "breakthrough",
		"unveil", "announce", "debut", "rare",
	}
)

// channelVerifiability is the base verifiability of each discovery channel.
var channelVerifiability = map[types.DiscoverySource]int{
	types.SourceGovernment: 10,
	types.SourceRSS:        8,
	types.SourceManual:     6,
	types.SourceSocial:     3,
}

// HeuristicScorer scores candidates from lexicons, age and configured coverage.
type HeuristicScorer struct {
	regions []string
	terms   []string
}

func NewHeuristicScorer(cov config.CoverageConfig) *HeuristicScorer {
	h := &HeuristicScorer{}
	for _, r := range cov.Regions {
		if r = normalize(r); r != "" {
			h.regions = append(h.regions, r)
		}
	}
	for _, t := range cov.Terms {
		if t = normalize(t); t != "" {
			h.terms = append(h.terms, t)
		}
	}
	return h
}

func (h *HeuristicScorer) Score(c types.EventCandidate, now time.Time, snap ledger.Snapshot) types.SubScores {
	text := normalize(c.Title + " " + c.Description)
	tokens := strings.Fields(text)
	return types.SubScores{
		Impact:        impact(tokens),
		Timeliness:    timeliness(c, now),
		Proximity:     h.proximity(c, text),
		Conflict:      min(maxConflict, 5*lexiconHits(tokens, conflictTerms)),
		Novelty:       min(maxNovelty, 5*lexiconHits(tokens, noveltyTerms)),
		Verifiability: verifiability(c, snap),
	}
}

func impact(tokens []string) int {
	score := 4 * lexiconHits(tokens, impactTerms)
	for _, t := range tokens {
		if hasDigit(t) {
			score += 4
			break
		}
	}
	return min(maxImpact, score)
}

func timeliness(c types.EventCandidate, now time.Time) int {
	at := c.DiscoveredAt
	if c.PublishedAt != nil {
		at = *c.PublishedAt
	}
	switch age := now.Sub(at); {
	case age <= 6*time.Hour:
		return maxTimeliness
	case age <= 24*time.Hour:
		return 16
	case age <= 72*time.Hour:
		return 10
	case age <= 7*24*time.Hour:
		return 5
	default:
		return 0
	}
}

func (h *HeuristicScorer) proximity(c types.EventCandidate, text string) int {
	region := normalize(c.Region)
	padded := " " + text + " "
	for _, r := range h.regions {
		if region == r {
			return maxProximity
		}
	}
	for _, r := range h.regions {
		if strings.Contains(padded, " "+r+" ") {
			return 12
		}
	}
	for _, t := range h.terms {
		if strings.Contains(padded, " "+t+" ") {
			return 8
		}
	}
	return 0
}

// verifiability starts from the channel and moves with the source's ledger record, ±5.
func verifiability(c types.EventCandidate, snap ledger.Snapshot) int {
	score := float64(channelVerifiability[c.DiscoveredFrom])
	if c.PublishedAt != nil {
		score += 2
	}
	score += math.Round(snap.Adjustment(ledger.SourceID(c.SourceURL)) * 12.5)
	return int(math.Max(0, math.Min(maxVerifiability, score)))
}

// lexiconHits counts lexicon stems that prefix at least one token.
func lexiconHits(tokens, lexicon []string) int {
	hits := 0
	for _, stem := range lexicon {
		for _, t := range tokens {
			if strings.HasPrefix(t, stem) {
				hits++
				break
			}
		}
	}
	return hits
}

func normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func hasDigit(s string) bool {
	return strings.IndexFunc(s, unicode.IsDigit) >= 0
}
