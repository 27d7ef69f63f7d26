package drafting

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Bias flag kinds
const (
	FlagFabrication = "fabrication"
	FlagPropaganda  = "propaganda"
)

var (
	figurePattern    = regexp.MustCompile(`\d[\d,]*(\.\d+)?`)
	vagueAttribution = regexp.MustCompile(`(?i)\b(sources say|experts say|critics say|observers say|many (people )?(are saying|believe)|it is (widely )?(believed|said|rumou?red)|some say|reportedly)\b`)
	loadedLabel      = regexp.MustCompile(`(?i)\b(regime|thugs?|traitors?|enemy of the people|puppets?|invaders?|glorious|evil|fake news|terrorists?)\b`)
	callToAction     = regexp.MustCompile(`(?i)\b(wake up|share this|must be stopped|everyone knows|they don'?t want you to know|the truth is)\b`)
)

// BiasFlag is one suspected fabrication or propaganda pattern.
type BiasFlag struct {
	Kind    string `json:"kind"`
	Rule    string `json:"rule"`
	Excerpt string `json:"excerpt"`
}

// BiasReport is stored on the article as bias_scan_report.
type BiasReport struct {
	Flags []BiasFlag `json:"flags"`
}

func (r BiasReport) Flagged() bool { return len(r.Flags) > 0 }

// Summary is the editorial note for a flagged draft.
func (r BiasReport) Summary() string {
	parts := make([]string, len(r.Flags))
	for i, f := range r.Flags {
		parts[i] = fmt.Sprintf("%s/%s %q", f.Kind, f.Rule, f.Excerpt)
	}
	return fmt.Sprintf("bias scan flagged %d issue(s): %s", len(r.Flags), strings.Join(parts, "; "))
}

func (r *BiasReport) add(kind, rule, excerpt string) {
	for _, f := range r.Flags {
		if f.Rule == rule && f.Excerpt == excerpt {
			return
		}
	}
	r.Flags = append(r.Flags, BiasFlag{Kind: kind, Rule: rule, Excerpt: excerpt})
}

// BiasScanner looks for copy that goes beyond the verified facts or reads as advocacy.
// Fabrication rules check the whole draft; propaganda rules ignore quoted speech.
type BiasScanner struct{}

func NewBiasScanner() *BiasScanner { return &BiasScanner{} }

func (s *BiasScanner) Scan(t Text, b Brief) BiasReport {
	var r BiasReport
	var known strings.Builder
	for _, f := range b.Topic.Facts {
		known.WriteString(strings.ToLower(f.Text))
		known.WriteByte('\n')
	}
	knownText := known.String()
	knownFigures := figures(knownText)

	full := t.Headline + "\n\n" + t.Body
	for _, sentence := range splitSentences(full) {
		for _, fig := range figurePattern.FindAllString(sentence, -1) {
			n := normalizeFigure(fig)
			if !knownFigures[n] && !isYear(n) {
				r.add(FlagFabrication, "unsourced_figure", sentence)
				break
			}
		}
		if m := vagueAttribution.FindString(sentence); m != "" {
			r.add(FlagFabrication, "vague_attribution", m)
		}
	}
	for _, m := range quotePattern.FindAllStringSubmatch(full, -1) {
		q := strings.ToLower(strings.Join(strings.Fields(m[1]), " "))
		if wordCount(q) >= minQuoteWords && !strings.Contains(knownText, q) {
			r.add(FlagFabrication, "unsourced_quote", m[1])
		}
	}

	unquoted := quotePattern.ReplaceAllString(full, "")
	for _, m := range loadedLabel.FindAllString(unquoted, -1) {
		r.add(FlagPropaganda, "loaded_label", strings.ToLower(m))
	}
	for _, m := range callToAction.FindAllString(unquoted, -1) {
		r.add(FlagPropaganda, "call_to_action", strings.ToLower(m))
	}
	return r
}

func figures(text string) map[string]bool {
	out := map[string]bool{}
	for _, f := range figurePattern.FindAllString(text, -1) {
		out[normalizeFigure(f)] = true
	}
	return out
}

func normalizeFigure(f string) string {
	return strings.TrimRight(strings.ReplaceAll(f, ",", ""), ".")
}

func isYear(f string) bool {
	n, err := strconv.Atoi(f)
	return err == nil && len(f) == 4 && n >= 1900 && n <= 2100
}
