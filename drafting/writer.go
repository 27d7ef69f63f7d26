package drafting

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"newsdesk/providers"
	"newsdesk/types"
)

// Brief is everything a writer may draw on: the verified facts and source plan of a
// topic, the audience it is written for and, on a redraft, the editor's notes.
type Brief struct {
	Topic    *types.Topic
	Audience []string
	// Dateline opens the story, e.g. "SINGAPORE, Tuesday"
	Dateline     string
	EditorNotes  string
	PreviousBody string
}

// Text is a generated headline and body. Paragraphs are separated by blank lines.
type Text struct {
	Headline string `json:"headline"`
	Body     string `json:"body"`
}

// Writer turns a brief into text. feedback lists the audit failures of the previous attempt.
type Writer interface {
	Write(ctx context.Context, b Brief, feedback []string) (Text, error)
}

// FactSources returns the plan entries behind a fact, in plan order.
func (b Brief) FactSources(f types.VerifiedFact) []types.SourcePlanEntry {
	var ids []string
	if len(f.SourceRefs) > 0 {
		_ = json.Unmarshal(f.SourceRefs, &ids)
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []types.SourcePlanEntry
	for _, e := range b.Topic.SourcePlan {
		if want[e.SourceID] {
			out = append(out, e)
		}
	}
	return out
}

// Attribution is how a source is named in copy.
func Attribution(e types.SourcePlanEntry) string {
	if e.Kind == types.KindAnonymous {
		return "a source who spoke on condition of anonymity"
	}
	if e.Name != "" {
		return e.Name
	}
	return e.SourceID
}

// LLMWriter drafts with the content generation provider.
type LLMWriter struct {
	gen    providers.Generator
	policy providers.RetryPolicy
}

func NewLLMWriter(gen providers.Generator, policy providers.RetryPolicy) *LLMWriter {
	return &LLMWriter{gen: gen, policy: policy}
}

const writerPreamble = `You are a news writer for a regional desk. Write only from the verified facts you are given and never add facts, numbers or quotes of your own. Attribute every fact to its source by name. Keep a neutral tone and never call a claim confirmed or proven unless a named source does.`

func (w *LLMWriter) Write(ctx context.Context, b Brief, feedback []string) (Text, error) {
	prompt := Prompt(b, feedback)
	out, err := providers.Do(ctx, w.policy, "generate", func(ctx context.Context) (string, error) {
		return w.gen.Generate(ctx, prompt, providers.Constraints{
			Preamble:    writerPreamble,
			MaxTokens:   1200,
			Temperature: 0.3,
		})
	})
	if err != nil {
		return Text{}, err
	}
	return ParseText(out, b.Topic.Title), nil
}

// Prompt lays out the brief and the house structure for the generation provider.
func Prompt(b Brief, feedback []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Story: %s\n", b.Topic.Title)
	if b.Topic.Region != "" {
		fmt.Fprintf(&sb, "Region: %s\n", b.Topic.Region)
	}
	if len(b.Audience) > 0 {
		fmt.Fprintf(&sb, "Audience: readers in %s\n", strings.Join(b.Audience, ", "))
	}
	if b.Dateline != "" {
		fmt.Fprintf(&sb, "Dateline: %s\n", b.Dateline)
	}

	sb.WriteString("\nVerified facts:\n")
	for _, f := range b.Topic.Facts {
		var names []string
		for _, e := range b.FactSources(f) {
			names = append(names, Attribution(e))
		}
		fmt.Fprintf(&sb, "%d. [%s] %s (sources: %s)\n", f.Position, f.Classification, f.Text, strings.Join(names, "; "))
	}

	sb.WriteString("\nSources, strongest first:\n")
	for _, e := range b.Topic.SourcePlan {
		fmt.Fprintf(&sb, "%d. %s (%s, %s)\n", e.Rank, Attribution(e), e.Kind, e.URL)
	}

	sb.WriteString(`
Structure:
- First line: HEADLINE: followed by a headline of at most 14 words.
- Inverted pyramid. The first paragraph says who, what, when and where in under 40 words.
- Explain why and how within the first four paragraphs.
- A nut graf explaining why the story matters to the audience.
- A paragraph that starts with "What it means:" covering the impact on readers.
- Only observed and claimed facts may be stated; interpreted facts must be attributed.
- Cite at least three sources by name.
- Aim for a Flesch-Kincaid grade level of 8.
`)

	if b.EditorNotes != "" {
		fmt.Fprintf(&sb, "\nEditor notes to address:\n%s\n", b.EditorNotes)
	}
	if b.PreviousBody != "" {
		fmt.Fprintf(&sb, "\nPrevious draft:\n%s\n", b.PreviousBody)
	}
	if len(feedback) > 0 {
		sb.WriteString("\nThe last attempt failed these checks, fix them:\n")
		for _, f := range feedback {
			fmt.Fprintf(&sb, "- %s\n", f)
		}
	}
	return sb.String()
}

// ParseText splits generated output into headline and body. Output without a HEADLINE
// line uses its first line as the headline; an empty headline falls back to title.
func ParseText(out, title string) Text {
	out = strings.TrimSpace(strings.ReplaceAll(out, "\r\n", "\n"))
	first, rest, _ := strings.Cut(out, "\n")
	headline := strings.Trim(first, "*# \t")
	if h, ok := cutPrefixFold(headline, "headline:"); ok {
		headline = strings.Trim(h, "*# \t")
	}
	if headline == "" {
		headline = title
	}
	return Text{Headline: headline, Body: strings.TrimSpace(rest)}
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return s, false
}

// TemplateWriter assembles a draft directly from the brief without a generation
// provider. Its output is deterministic.
type TemplateWriter struct{}

func (TemplateWriter) Write(_ context.Context, b Brief, _ []string) (Text, error) {
	t := b.Topic
	var paras []string

	for i, f := range t.Facts {
		sources := b.FactSources(f)
		if len(sources) == 0 {
			continue
		}
		names := make([]string, len(sources))
		for j, e := range sources {
			names[j] = Attribution(e)
		}
		text := strings.TrimRight(strings.TrimSpace(f.Text), ".")
		switch {
		case f.Classification == types.FactClaimed:
			paras = append(paras, fmt.Sprintf("%s, as reported by %s.", text, joinNames(names)))
		case i == 0 && b.Dateline != "":
			paras = append(paras, fmt.Sprintf("%s: %s, according to %s.", b.Dateline, text, joinNames(names)))
		default:
			paras = append(paras, fmt.Sprintf("%s, according to %s.", text, joinNames(names)))
		}
		if i == 0 {
			paras = append(paras, nutGraf(b.Audience))
		}
	}
	if len(paras) == 0 {
		paras = append(paras, nutGraf(b.Audience))
	}
	paras = append(paras, impactGraf(t, b.Audience))

	return Text{Headline: t.Title, Body: strings.Join(paras, "\n\n")}, nil
}

func nutGraf(audience []string) string {
	who := "readers"
	if len(audience) > 0 {
		who = "people in " + audience[0]
	}
	return fmt.Sprintf("The story matters because it affects %s.", who)
}

func impactGraf(t *types.Topic, audience []string) string {
	where := t.Region
	if where == "" && len(audience) > 0 {
		where = audience[0]
	}
	if where == "" {
		return "What it means: The desk will follow up as officials release more details."
	}
	return fmt.Sprintf("What it means: Residents of %s should watch for updates from officials.", where)
}

func joinNames(names []string) string {
	switch len(names) {
	case 0:
		return ""
	case 1:
		return names[0]
	default:
		return strings.Join(names[:len(names)-1], ", ") + " and " + names[len(names)-1]
	}
}
