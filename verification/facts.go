package verification

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode"

	"newsdesk/types"

	"gorm.io/datatypes"
)

const (
	maxFacts = 12
	// two sentences support the same fact when their content words overlap this much
	supportOverlap  = 0.5
	minFactWords    = 5
	minContentToken = 4
)

var (
	interpretedPattern = regexp.MustCompile(`(?i)\b(could|may|might|likely|unlikely|expected to|suggests?|signals?|analysts?|experts? (say|believe)|appears to|is seen as|means that)\b`)
	claimedPattern     = regexp.MustCompile(`(?i)\b(said|says|told|claimed|claims|according to|stated|announced|alleged|insisted|maintained)\b`)
	disputePattern     = regexp.MustCompile(`(?i)\b(denied|denies|disputed|disputes|accused|accuses|alleged|allegedly|contested|refuted|rejected (the )?claims?)\b`)
	sentenceEnd        = regexp.MustCompile(`[.!?]+(\s+|$)`)
)

// Fact is a classified sentence with the hosts that support it.
type Fact struct {
	Text           string
	Classification types.FactClassification
	Contentious    bool
	Sources        []string
	tokens         map[string]bool
}

// ClassifySentence labels a sentence observed, claimed or interpreted. Analysis language wins
// over attribution so a quoted prediction stays interpreted.
func ClassifySentence(s string) types.FactClassification {
	switch {
	case interpretedPattern.MatchString(s):
		return types.FactInterpreted
	case claimedPattern.MatchString(s):
		return types.FactClaimed
	default:
		return types.FactObserved
	}
}

// ExtractFacts splits the snippets of citable sources into facts, merging sentences from
// different hosts that state the same thing. Contentious facts (claims, or any sentence
// with dispute language) survive only with at least two independent hosts behind them.
func ExtractFacts(sources []Source) []Fact {
	ordered := append([]Source(nil), sources...)
	sortSources(ordered)

	var facts []*Fact
	for _, src := range ordered {
		if !src.Citable() {
			continue
		}
		for _, sentence := range Sentences(src.Snippet) {
			tokens := contentTokens(sentence)
			if len(tokens) == 0 {
				continue
			}
			if f := matchFact(facts, tokens); f != nil {
				f.addSource(src.ID)
				continue
			}
			class := ClassifySentence(sentence)
			facts = append(facts, &Fact{
				Text:           sentence,
				Classification: class,
				Contentious:    class == types.FactClaimed || disputePattern.MatchString(sentence),
				Sources:        []string{src.ID},
				tokens:         tokens,
			})
		}
	}

	out := make([]Fact, 0, maxFacts)
	for _, f := range facts {
		if f.Contentious && len(f.Sources) < 2 {
			continue
		}
		out = append(out, *f)
		if len(out) == maxFacts {
			break
		}
	}
	return out
}

func (f *Fact) addSource(id string) {
	for _, s := range f.Sources {
		if s == id {
			return
		}
	}
	f.Sources = append(f.Sources, id)
}

func matchFact(facts []*Fact, tokens map[string]bool) *Fact {
	var best *Fact
	bestScore := 0.0
	for _, f := range facts {
		if s := jaccard(f.tokens, tokens); s >= supportOverlap && s > bestScore {
			best, bestScore = f, s
		}
	}
	return best
}

// Sentences splits text on terminal punctuation, dropping fragments too short to be a fact.
func Sentences(text string) []string {
	var out []string
	for _, part := range sentenceEnd.Split(strings.TrimSpace(text), -1) {
		part = strings.Join(strings.Fields(part), " ")
		if len(strings.Fields(part)) < minFactWords {
			continue
		}
		out = append(out, part+".")
	}
	return out
}

func contentTokens(s string) map[string]bool {
	tokens := map[string]bool{}
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(w) >= minContentToken || strings.IndexFunc(w, unicode.IsDigit) >= 0 {
			tokens[w] = true
		}
	}
	return tokens
}

func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if b[t] {
			inter++
		}
	}
	return float64(inter) / float64(len(a)+len(b)-inter)
}

// Records converts facts to rows; source refs are stored as a JSON array of host ids.
func Records(facts []Fact) []types.VerifiedFact {
	out := make([]types.VerifiedFact, len(facts))
	for i, f := range facts {
		refs, _ := json.Marshal(f.Sources)
		out[i] = types.VerifiedFact{
			Position:       i + 1,
			Text:           f.Text,
			Classification: f.Classification,
			Contentious:    f.Contentious,
			SourceRefs:     datatypes.JSON(refs),
		}
	}
	return out
}
