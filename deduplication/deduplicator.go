package deduplication

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// DefaultSimilarityThreshold is the normalized-title similarity at which two candidates are one event
const DefaultSimilarityThreshold = 0.8

// SeenFilter is a probabilistic set of idempotence keys. A positive answer may be wrong
// and must be confirmed against the store; a negative answer is definitive.
type SeenFilter interface {
	Exists(ctx context.Context, key string) (bool, error)
	Add(ctx context.Context, key string) error
}

// Match describes the closest earlier title for a duplicate.
type Match struct {
	Index int
	Title string
	Score float64
}

// Deduplicator detects repeated events by title similarity and repeated payloads by key.
type Deduplicator struct {
	threshold float64
	seen      SeenFilter
}

// Config holds configuration for the deduplicator
type Config struct {
	SimilarityThreshold float64 // Default: 0.8
	// Optional Bloom filter configuration. If nil, Bloom checks are disabled.
	Bloom *BloomConfig
}

// New creates a deduplicator, connecting to RedisBloom when configured.
func New(cfg Config) (*Deduplicator, error) {
	var seen SeenFilter
	if cfg.Bloom != nil {
		b, err := NewRedisBloom(*cfg.Bloom)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize RedisBloom: %w", err)
		}
		seen = b
	}
	return NewWithFilter(cfg.SimilarityThreshold, seen), nil
}

// NewWithFilter constructs a deduplicator around an existing filter, which may be nil.
func NewWithFilter(threshold float64, seen SeenFilter) *Deduplicator {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	return &Deduplicator{threshold: threshold, seen: seen}
}

// Threshold reports the similarity at which titles are duplicates.
func (d *Deduplicator) Threshold() float64 { return d.threshold }

// Similarity is the Levenshtein ratio of two normalized titles, in [0, 1].
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := max(la, lb)
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// FindDuplicate compares a normalized title with earlier normalized titles and returns
// the most similar one when it reaches the threshold.
func (d *Deduplicator) FindDuplicate(title string, earlier []string) (Match, bool) {
	best := Match{Index: -1}
	for i, other := range earlier {
		// titles whose lengths differ too much cannot reach the threshold
		if !d.lengthsCompatible(title, other) {
			continue
		}
		if s := Similarity(title, other); s > best.Score {
			best = Match{Index: i, Title: other, Score: s}
		}
	}
	if best.Index >= 0 && best.Score >= d.threshold {
		return best, true
	}
	return best, false
}

func (d *Deduplicator) lengthsCompatible(a, b string) bool {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest, shortest := max(la, lb), min(la, lb)
	if longest == 0 {
		return true
	}
	return float64(shortest)/float64(longest) >= d.threshold
}

// MaybeSeen asks the filter whether key was added before. Without a filter it returns true,
// sending every key to the authoritative store check.
func (d *Deduplicator) MaybeSeen(ctx context.Context, key string) (bool, error) {
	if d.seen == nil {
		return true, nil
	}
	return d.seen.Exists(ctx, key)
}

// MarkSeen records key in the filter, if any.
func (d *Deduplicator) MarkSeen(ctx context.Context, key string) error {
	if d.seen == nil {
		return nil
	}
	return d.seen.Add(ctx, key)
}

// NormalizeTitle lowercases, drops punctuation and collapses whitespace.
func NormalizeTitle(t string) string {
	t = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return unicode.ToLower(r)
		case unicode.IsSpace(r), unicode.IsPunct(r), unicode.IsSymbol(r):
			return ' '
		default:
			return r
		}
	}, t)
	return strings.Join(strings.Fields(t), " ")
}

// NormalizeURL lowercases scheme and host, drops the fragment and tracking parameters,
// and trims a trailing slash.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		// fallback: lowercase and trim
		return strings.ToLower(raw)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || lk == "fbclid" || lk == "gclid" {
			q.Del(k)
		}
	}
	u.RawQuery = q.Encode()

	return strings.TrimRight(u.String(), "/")
}
