package verification

import (
	"math"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"newsdesk/ledger"
	"newsdesk/providers"
	"newsdesk/types"
)

// Source is a classified search result.
type Source struct {
	ID            string
	Name          string
	URL           string
	Title         string
	Snippet       string
	Kind          types.SourceKind
	Academic      bool
	Primary       bool
	Credibility   float64
	Justification string
}

// Citable reports whether the source may appear in a plan. Rumor never may, and an
// anonymous source only with a stated reason for anonymity.
func (s Source) Citable() bool {
	switch s.Kind {
	case types.KindRumor:
		return false
	case types.KindAnonymous:
		return s.Justification != ""
	}
	return s.ID != ""
}

var (
	academicHosts = []string{
		"arxiv.org", "doi.org", "pubmed.ncbi.nlm.nih.gov", "nature.com", "thelancet.com",
		"sciencedirect.com", "jstor.org", "nejm.org", "bmj.com", "springer.com",
	}
	socialHosts = []string{
		"twitter.com", "x.com", "facebook.com", "tiktok.com", "reddit.com", "t.me",
		"instagram.com", "threads.net", "telegram.org",
	}

	rumorPattern     = regexp.MustCompile(`(?i)\b(unconfirmed|rumou?rs?|unverified|viral (post|message)|circulating online|hearsay)\b`)
	anonymousPattern = regexp.MustCompile(`(?i)\b(anonymous|anonymity|unnamed|declined to be (named|identified)|sources? (familiar|close|said|told))\b`)
	justifiedPattern = regexp.MustCompile(`(?i)[^.]*\b(not authori[sz]ed to (speak|comment)|condition of anonymity|fear of (reprisal|retaliation)|matter is (private|sensitive))\b[^.]*`)
	personPattern    = regexp.MustCompile(`\b([A-Z][a-z]+(?: [A-Z][a-z]+)+),? (?:said|says|told|added|wrote)\b|\b(?:said|says|told) ([A-Z][a-z]+(?: [A-Z][a-z]+)+)\b`)
	documentPattern  = regexp.MustCompile(`(?i)\b(report|dataset|data (show|from)|statistics|figures|study|survey|filing|gazette|census)\b`)
)

// kindPrior is the base credibility of each kind of source.
var kindPrior = map[types.SourceKind]float64{
	types.KindIndividual:   0.6,
	types.KindOrganization: 0.55,
	types.KindDocument:     0.65,
	types.KindAnonymous:    0.4,
	types.KindRumor:        0.1,
}

// Classify derives a source's kind, flags and credibility from a search hit and the
// ledger snapshot in force for the run.
func Classify(r providers.SearchResult, snap ledger.Snapshot) Source {
	s := Source{
		ID:      ledger.SourceID(r.URL),
		URL:     r.URL,
		Title:   r.Title,
		Snippet: r.Snippet,
	}
	host, path := s.ID, ""
	if u, err := url.Parse(r.URL); err == nil {
		path = strings.ToLower(u.Path)
	}
	text := r.Title + ". " + r.Snippet

	s.Academic = isAcademic(host, path)
	s.Primary = isPrimary(host, path)

	switch {
	case hostIn(host, socialHosts) || rumorPattern.MatchString(text):
		s.Kind = types.KindRumor
	case anonymousPattern.MatchString(text):
		s.Kind = types.KindAnonymous
		s.Justification = strings.TrimSpace(justifiedPattern.FindString(r.Snippet))
	case personPattern.MatchString(r.Snippet):
		s.Kind = types.KindIndividual
		s.Name = personName(r.Snippet)
	case s.Academic || documentPattern.MatchString(text) || strings.HasSuffix(path, ".pdf"):
		s.Kind = types.KindDocument
	default:
		s.Kind = types.KindOrganization
	}
	if s.Name == "" {
		s.Name = host
	}

	cred := kindPrior[s.Kind]
	if s.Kind != types.KindRumor {
		if s.Primary {
			cred += 0.15
		}
		if s.Academic {
			cred += 0.15
		}
	}
	cred += snap.Adjustment(s.ID)
	s.Credibility = math.Round(math.Max(0, math.Min(1, cred))*1000) / 1000
	return s
}

func isAcademic(host, path string) bool {
	return strings.HasSuffix(host, ".edu") || strings.Contains(host, ".edu.") ||
		strings.Contains(host, ".ac.") || hostIn(host, academicHosts) || strings.Contains(path, "/doi/")
}

func isPrimary(host, path string) bool {
	return strings.HasSuffix(host, ".gov") || strings.Contains(host, ".gov.") ||
		strings.HasSuffix(host, ".int") || strings.HasSuffix(host, ".mil") ||
		strings.HasSuffix(path, ".pdf")
}

// hostIn matches host against a list of domains, including their subdomains.
func hostIn(host string, domains []string) bool {
	for _, d := range domains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

func personName(text string) string {
	m := personPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	if m[1] != "" {
		return m[1]
	}
	return m[2]
}

// GateResult is the outcome of the sourcing gate.
type GateResult struct {
	Credible  int
	Citations int
	Passed    bool
}

// Gate is the hard sourcing requirement a topic must meet.
type Gate struct {
	MinCredible       int
	MinCitations      int
	CredibleThreshold float64
}

// Check counts independent credible sources (distinct hosts at or above the threshold)
// and academic or primary citations (distinct hosts). Several documents from one host
// are one citation, as they are one entry in the source plan.
func (g Gate) Check(sources []Source) GateResult {
	credible := map[string]bool{}
	citations := map[string]bool{}
	for _, s := range sources {
		if !s.Citable() {
			continue
		}
		if s.Credibility >= g.CredibleThreshold {
			credible[s.ID] = true
		}
		if s.Academic || s.Primary {
			citations[s.ID] = true
		}
	}
	res := GateResult{Credible: len(credible), Citations: len(citations)}
	res.Passed = res.Credible >= g.MinCredible || res.Citations >= g.MinCitations
	return res
}

// BuildPlan orders citable sources into the attribution hierarchy: named individual,
// organization or official statement, document or dataset, justified anonymous.
// Each host appears once, at its most credible entry.
func BuildPlan(sources []Source) []types.SourcePlanEntry {
	best := map[string]Source{}
	for _, s := range sources {
		if !s.Citable() {
			continue
		}
		cur, ok := best[s.ID]
		if !ok || s.Kind.Rank() < cur.Kind.Rank() ||
			(s.Kind == cur.Kind && s.Credibility > cur.Credibility) {
			best[s.ID] = s
		}
	}
	picked := make([]Source, 0, len(best))
	for _, s := range best {
		picked = append(picked, s)
	}
	sortSources(picked)

	plan := make([]types.SourcePlanEntry, len(picked))
	for i, s := range picked {
		plan[i] = types.SourcePlanEntry{
			Rank:          i + 1,
			SourceID:      s.ID,
			Name:          s.Name,
			URL:           s.URL,
			Kind:          s.Kind,
			Academic:      s.Academic,
			Primary:       s.Primary,
			Credibility:   s.Credibility,
			Justification: s.Justification,
		}
	}
	return plan
}

func sortSources(ss []Source) {
	sort.SliceStable(ss, func(i, j int) bool {
		if ri, rj := ss[i].Kind.Rank(), ss[j].Kind.Rank(); ri != rj {
			return ri < rj
		}
		if ss[i].Credibility != ss[j].Credibility {
			return ss[i].Credibility > ss[j].Credibility
		}
		return ss[i].ID < ss[j].ID
	})
}
