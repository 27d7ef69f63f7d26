package monitor

import (
	"regexp"
	"strings"

	"newsdesk/providers"
	"newsdesk/types"
)

var (
	contradictionCue = regexp.MustCompile(`(?i)\b(contradict\w*|disput\w*|den(y|ies|ied)|false(ly)?|incorrect(ly)?|inaccura\w*|misleading|retract\w*|not true|debunk\w*|misreport\w*|wrongly|erroneous\w*)\b`)
	termPattern      = regexp.MustCompile(`[\p{L}\p{N}]+`)
)

var stopTerms = map[string]bool{
	"about": true, "after": true, "also": true, "amid": true, "been": true, "from": true,
	"have": true, "into": true, "more": true, "over": true, "said": true, "says": true,
	"than": true, "that": true, "their": true, "they": true, "this": true, "were": true,
	"what": true, "when": true, "will": true, "with": true,
}

// minSharedTerms is how many headline terms a mention must repeat to count as being about the story.
const minSharedTerms = 2

// mention is a search hit judged to dispute a published article.
type mention struct {
	reason       string
	contradicted []string
}

func storyTerms(headline string) []string {
	var out []string
	seen := map[string]bool{}
	for _, w := range termPattern.FindAllString(strings.ToLower(headline), -1) {
		if len([]rune(w)) < 4 || stopTerms[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// detect decides whether r plausibly contradicts a. The mention has to be about the story,
// carry a dispute cue, and postdate publication when it is dated. Plan sources named in
// the mention are the ones it disputes.
func detect(a *types.Article, plan []types.SourcePlanEntry, r providers.SearchResult) (mention, bool) {
	if r.URL == "" {
		return mention{}, false
	}
	if r.PublishedAt != nil && a.PublishedAt != nil && r.PublishedAt.Before(*a.PublishedAt) {
		return mention{}, false
	}
	text := strings.ToLower(r.Title + " " + r.Snippet)

	terms := storyTerms(a.Headline)
	shared := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			shared++
		}
	}
	if shared < min(minSharedTerms, len(terms)) || len(terms) == 0 {
		return mention{}, false
	}
	cue := contradictionCue.FindString(text)
	if cue == "" {
		return mention{}, false
	}

	m := mention{reason: "mention disputes the story (" + strings.ToLower(cue) + ")"}
	seen := map[string]bool{}
	for _, p := range plan {
		if seen[p.SourceID] {
			continue
		}
		if strings.Contains(text, strings.ToLower(p.SourceID)) || (p.Name != "" && strings.Contains(text, strings.ToLower(p.Name))) {
			seen[p.SourceID] = true
			m.contradicted = append(m.contradicted, p.SourceID)
		}
	}
	return m, true
}
