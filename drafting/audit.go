package drafting

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"newsdesk/apperr"
	"newsdesk/config"
	"newsdesk/types"
)

// Self-audit checks, in the order they run
const (
	CheckQuickGrasp   = "quick_grasp"
	CheckFiveWH       = "five_w_h"
	CheckAttribution  = "attribution"
	CheckSourceCount  = "source_count"
	CheckQuotes       = "quotes_non_filler"
	CheckNutGraf      = "nut_graf"
	CheckAudience     = "audience_relevance"
	CheckReadingLevel = "reading_level"
	CheckImpact       = "impact_framing"
	CheckTone         = "neutral_tone"
)

const (
	maxHeadlineWords = 14
	maxLedeWords     = 40
	minQuoteWords    = 4
	// a sentence carries a fact when it repeats this share of the fact's content words
	factCoverage = 0.5
)

var (
	attributionPattern = regexp.MustCompile(`(?i)\b(said|says|told|according to|reported|stated|announced|wrote|as reported by|in a statement|data from|figures from)\b`)
	timePattern        = regexp.MustCompile(`(?i)\b(today|yesterday|tonight|tomorrow|this (morning|afternoon|evening|week|month)|last (night|week|month)|(mon|tues|wednes|thurs|fri|satur|sun)day|jan(uary)?|feb(ruary)?|march|april|june|july|aug(ust)?|sep(tember)?|oct(ober)?|nov(ember)?|dec(ember)?|\d{1,2}(am|pm)|(19|20)\d{2})\b`)
	placePattern       = regexp.MustCompile(`\b(in|at|near|across) [A-Z][a-z]+`)
	whyHowPattern      = regexp.MustCompile(`(?i)\b(because|after|due to|as a result|following|amid|in response to|caused|led to|through)\b`)
	nutGrafPattern     = regexp.MustCompile(`(?i)\b(matters because|this means|is significant|signals|the first time|raises questions|comes as|at stake|the (move|decision|change) (comes|follows))\b`)
	audienceGroups     = regexp.MustCompile(`(?i)\b(residents|readers|people|commuters|households|families|workers|businesses|consumers|parents|students|drivers|patients|taxpayers|voters)\b`)
	impactPattern      = regexp.MustCompile(`(?i)^(what (it|this) means|why it matters|what happens next|the impact|impact)\b`)
	quotePattern       = regexp.MustCompile(`[“"]([^”"]+)[”"]`)
	fillerQuote        = regexp.MustCompile(`(?i)^(no comment|we are (monitoring|looking into|aware)|thoughts and prayers|it is what it is|we take .* seriously|at this time|we will (see|respond))`)
	loadedTone         = regexp.MustCompile(`(?i)\b(shocking|outrageous|disgraceful|heroic|slammed|blasted|devastating|incredible|scandalous|brave)\b`)
	verifyLanguage     = regexp.MustCompile(`(?i)\b(confirmed|proven|proves|undeniabl[ey]|it is clear that|without (a )?doubt|definitely|obviously|in fact|verified)\b`)
)

// CheckResult is the outcome of one self-audit check.
type CheckResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// AuditReport is stored on the article as self_audit_report.
type AuditReport struct {
	Checks       []CheckResult `json:"checks"`
	Passed       bool          `json:"passed"`
	ReadingLevel float64       `json:"reading_level"`
	Words        int           `json:"words"`
}

// Failed lists the names of failed checks.
func (r AuditReport) Failed() []string {
	var out []string
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c.Name)
		}
	}
	return out
}

// Feedback describes each failed check for the next attempt.
func (r AuditReport) Feedback() []string {
	var out []string
	for _, c := range r.Checks {
		if !c.Passed {
			out = append(out, c.Name+": "+c.Detail)
		}
	}
	return out
}

// Err is nil for a passing report. Reading-level and attribution failures are
// validation errors; anything else is a self-audit rejection.
func (r AuditReport) Err() error {
	if r.Passed {
		return nil
	}
	for _, c := range r.Checks {
		if c.Passed {
			continue
		}
		switch c.Name {
		case CheckReadingLevel:
			return apperr.Validation(apperr.CodeReadingLevelOutOfBand, "%s", c.Detail)
		case CheckAttribution:
			return apperr.Validation(apperr.CodeMissingAttribution, "%s", c.Detail)
		}
	}
	return apperr.Rejection(apperr.CodeSelfAuditFailed, "failed checks: %s", strings.Join(r.Failed(), ", "))
}

// Auditor runs the fixed self-audit checklist against a draft.
type Auditor struct {
	minGrade     float64
	maxGrade     float64
	maxWords     int
	minSources   int
	minCitations int
	grade        func(string) float64
}

func NewAuditor(cfg config.PipelineConfig) *Auditor {
	return &Auditor{
		minGrade:     cfg.ReadingLevelMin,
		maxGrade:     cfg.ReadingLevelMax,
		maxWords:     cfg.MaxWords,
		minSources:   cfg.MinCredibleSources,
		minCitations: cfg.MinPrimaryCitations,
		grade:        Grade,
	}
}

// Audit runs all ten checks. The report passes only when every check does.
func (a *Auditor) Audit(t Text, b Brief) AuditReport {
	d := newDoc(t, b)
	r := AuditReport{
		ReadingLevel: a.grade(t.Body),
		Words:        wordCount(t.Body),
	}
	r.Checks = []CheckResult{
		a.quickGrasp(d, r.Words),
		checkFiveWH(d),
		checkAttribution(d),
		a.sourceCount(d),
		checkQuotes(d),
		checkNutGraf(d),
		checkAudience(d),
		a.readingLevel(r.ReadingLevel),
		checkImpact(d),
		checkTone(d),
	}
	r.Passed = len(r.Failed()) == 0
	return r
}

// doc is a draft split up once for all checks.
type doc struct {
	text      Text
	brief     Brief
	paras     []string
	sentences []string
	// unquoted is the body with quoted passages removed
	unquoted string
}

func newDoc(t Text, b Brief) doc {
	return doc{
		text:      t,
		brief:     b,
		paras:     paragraphs(t.Body),
		sentences: splitSentences(t.Body),
		unquoted:  quotePattern.ReplaceAllString(t.Body, ""),
	}
}

// block joins the first n paragraphs.
func (d doc) block(n int) string {
	return strings.Join(d.paras[:min(n, len(d.paras))], " ")
}

func (d doc) attributed(s string) bool {
	if attributionPattern.MatchString(s) {
		return true
	}
	lower := strings.ToLower(s)
	for _, e := range d.brief.Topic.SourcePlan {
		if strings.Contains(lower, strings.ToLower(Attribution(e))) {
			return true
		}
	}
	return false
}

func pass(name string) CheckResult { return CheckResult{Name: name, Passed: true} }

func fail(name, format string, args ...any) CheckResult {
	return CheckResult{Name: name, Detail: fmt.Sprintf(format, args...)}
}

func (a *Auditor) quickGrasp(d doc, words int) CheckResult {
	hw := wordCount(d.text.Headline)
	switch {
	case hw == 0 || hw > maxHeadlineWords:
		return fail(CheckQuickGrasp, "headline has %d words, want 1-%d", hw, maxHeadlineWords)
	case len(d.paras) == 0:
		return fail(CheckQuickGrasp, "body is empty")
	case wordCount(d.paras[0]) > maxLedeWords:
		return fail(CheckQuickGrasp, "first paragraph has %d words, want at most %d", wordCount(d.paras[0]), maxLedeWords)
	case a.maxWords > 0 && words > a.maxWords:
		return fail(CheckQuickGrasp, "body has %d words, limit is %d", words, a.maxWords)
	}
	return pass(CheckQuickGrasp)
}

func checkFiveWH(d doc) CheckResult {
	first := d.block(2)
	var missing []string
	if !hasWho(d, first) {
		missing = append(missing, "who")
	}
	if !sharesContent(d.block(1), d.text.Headline+" "+d.brief.Topic.Title) {
		missing = append(missing, "what")
	}
	if !timePattern.MatchString(first) {
		missing = append(missing, "when")
	}
	if !hasWhere(d, first) {
		missing = append(missing, "where")
	}
	if !whyHowPattern.MatchString(d.block(4)) {
		missing = append(missing, "why/how")
	}
	if len(missing) > 0 {
		return fail(CheckFiveWH, "opening does not say %s", strings.Join(missing, ", "))
	}
	return pass(CheckFiveWH)
}

func hasWho(d doc, text string) bool {
	lower := strings.ToLower(text)
	for _, e := range d.brief.Topic.SourcePlan {
		if strings.Contains(lower, strings.ToLower(Attribution(e))) {
			return true
		}
	}
	return personPattern.MatchString(text)
}

var personPattern = regexp.MustCompile(`\b[A-Z][a-z]+(\s+[A-Z][a-z]+)+\b`)

func hasWhere(d doc, text string) bool {
	lower := strings.ToLower(text)
	places := append([]string{d.brief.Topic.Region}, d.brief.Audience...)
	for _, p := range places {
		if p != "" && strings.Contains(lower, strings.ToLower(p)) {
			return true
		}
	}
	return placePattern.MatchString(text)
}

func sharesContent(text, ref string) bool {
	words := contentWords(text)
	for w := range contentWords(ref) {
		if words[w] {
			return true
		}
	}
	return false
}

func contentWords(s string) map[string]bool {
	out := map[string]bool{}
	for _, w := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(w) >= 4 || strings.IndexFunc(w, unicode.IsDigit) >= 0 {
			out[w] = true
		}
	}
	return out
}

// carriesFact reports whether sentence restates one of the brief's facts.
func carriesFact(sentence string, facts []types.VerifiedFact) bool {
	words := contentWords(sentence)
	for _, f := range facts {
		fw := contentWords(f.Text)
		if len(fw) == 0 {
			continue
		}
		hit := 0
		for w := range fw {
			if words[w] {
				hit++
			}
		}
		if float64(hit)/float64(len(fw)) >= factCoverage {
			return true
		}
	}
	return false
}

func checkAttribution(d doc) CheckResult {
	var bare []string
	for _, s := range d.sentences {
		if carriesFact(s, d.brief.Topic.Facts) && !d.attributed(s) {
			bare = append(bare, s)
		}
	}
	if len(bare) > 0 {
		return fail(CheckAttribution, "%d sentences state facts without attribution, first: %q", len(bare), bare[0])
	}
	return pass(CheckAttribution)
}

func (a *Auditor) sourceCount(d doc) CheckResult {
	body := strings.ToLower(d.text.Body)
	cited := map[string]bool{}
	citations := map[string]bool{}
	for _, e := range d.brief.Topic.SourcePlan {
		if !strings.Contains(body, strings.ToLower(Attribution(e))) {
			continue
		}
		cited[e.SourceID] = true
		if e.Academic || e.Primary {
			citations[e.SourceID] = true
		}
	}
	if len(cited) >= a.minSources || len(citations) >= a.minCitations {
		return pass(CheckSourceCount)
	}
	return fail(CheckSourceCount, "cites %d sources (need %d) and %d academic or primary sources (need %d)",
		len(cited), a.minSources, len(citations), a.minCitations)
}

func checkQuotes(d doc) CheckResult {
	var filler []string
	for _, m := range quotePattern.FindAllStringSubmatch(d.text.Body, -1) {
		q := strings.TrimSpace(m[1])
		if wordCount(q) < minQuoteWords || fillerQuote.MatchString(q) {
			filler = append(filler, q)
		}
	}
	if len(filler) > 0 {
		return fail(CheckQuotes, "quotes add nothing: %q", filler)
	}
	return pass(CheckQuotes)
}

func checkNutGraf(d doc) CheckResult {
	if nutGrafPattern.MatchString(d.block(4)) {
		return pass(CheckNutGraf)
	}
	return fail(CheckNutGraf, "no paragraph in the first four explains why the story matters")
}

func checkAudience(d doc) CheckResult {
	body := strings.ToLower(d.text.Body)
	known, named := false, false
	for _, p := range append([]string{d.brief.Topic.Region}, d.brief.Audience...) {
		if p == "" {
			continue
		}
		known = true
		if strings.Contains(body, strings.ToLower(p)) {
			named = true
			break
		}
	}
	if (named || !known) && audienceGroups.MatchString(d.text.Body) {
		return pass(CheckAudience)
	}
	return fail(CheckAudience, "body does not say who in the audience is affected")
}

func (a *Auditor) readingLevel(grade float64) CheckResult {
	if grade < a.minGrade || grade > a.maxGrade {
		return fail(CheckReadingLevel, "reading level %.1f outside %.1f-%.1f", grade, a.minGrade, a.maxGrade)
	}
	return pass(CheckReadingLevel)
}

func checkImpact(d doc) CheckResult {
	for _, p := range d.paras {
		if impactPattern.MatchString(p) {
			return pass(CheckImpact)
		}
	}
	return fail(CheckImpact, "no paragraph frames the impact (for example \"What it means:\")")
}

func checkTone(d doc) CheckResult {
	if m := loadedTone.FindString(d.unquoted); m != "" {
		return fail(CheckTone, "loaded word %q outside a quote", m)
	}
	if strings.Contains(d.unquoted, "!") {
		return fail(CheckTone, "exclamation mark outside a quote")
	}
	for _, s := range splitSentences(d.unquoted) {
		if m := verifyLanguage.FindString(s); m != "" && !d.attributed(s) {
			return fail(CheckTone, "unattributed verification language %q", m)
		}
	}
	return pass(CheckTone)
}
