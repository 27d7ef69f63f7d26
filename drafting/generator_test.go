package drafting

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"newsdesk/apperr"
	"newsdesk/config"
	"newsdesk/editorial"
	"newsdesk/logger"
	"newsdesk/providers"
	"newsdesk/store"
	"newsdesk/store/storetest"
	"newsdesk/types"
	"newsdesk/worker"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

type recordingNotifier struct {
	mu        sync.Mutex
	templates []string
}

func (n *recordingNotifier) Send(_ context.Context, _, tpl string, _ map[string]string) (types.DeliveryStatus, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.templates = append(n.templates, tpl)
	return types.DeliveryDelivered, nil
}

// scriptedWriter returns texts in order, repeating the last one. Without texts it
// falls back to the template writer.
type scriptedWriter struct {
	texts []Text
	err   error
	hook  func(ctx context.Context)

	mu       sync.Mutex
	briefs   []Brief
	feedback [][]string
}

func (w *scriptedWriter) Write(ctx context.Context, b Brief, feedback []string) (Text, error) {
	w.mu.Lock()
	w.briefs = append(w.briefs, b)
	w.feedback = append(w.feedback, feedback)
	n := len(w.briefs)
	w.mu.Unlock()

	if w.hook != nil {
		w.hook(ctx)
	}
	if err := ctx.Err(); err != nil {
		return Text{}, err
	}
	if w.err != nil {
		return Text{}, w.err
	}
	if len(w.texts) == 0 {
		return TemplateWriter{}.Write(ctx, b, feedback)
	}
	return w.texts[min(n, len(w.texts))-1], nil
}

func (w *scriptedWriter) calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.briefs)
}

type genFixture struct {
	s     *store.Store
	m     *editorial.Machine
	g     *Generator
	pool  *worker.Pool
	w     *scriptedWriter
	mail  *recordingNotifier
	topic uuid.UUID
}

func newGenFixture(t *testing.T, w *scriptedWriter) *genFixture {
	t.Helper()
	cfg := config.Default()
	f := &genFixture{
		s:    storetest.New(t),
		w:    w,
		mail: &recordingNotifier{},
		pool: worker.NewPool("drafting", 2, logger.Nop()),
	}
	f.m = editorial.New(f.s, f.mail, cfg.Pipeline, "desk@newsroom.example", logger.Nop())
	f.g = New(f.s, f.m, w, f.pool, cfg.Pipeline, config.CoverageConfig{Regions: []string{"Singapore"}}, logger.Nop())
	f.g.auditor.grade = fixedGrade(8.0)
	tuesday := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	f.g.now = func() time.Time { return tuesday }
	f.topic = seedVerifiedTopic(t, f.s)
	return f
}

func seedVerifiedTopic(t *testing.T, s *store.Store) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	b := floodBrief()
	topic := &types.Topic{
		CandidateID:        uuid.New(),
		Title:              b.Topic.Title,
		Region:             b.Topic.Region,
		VerificationStatus: types.VerificationPending,
	}
	if err := s.CreateTopic(ctx, topic); err != nil {
		t.Fatal(err)
	}
	err := s.Transaction(ctx, func(tx *store.Store) error {
		return tx.CommitVerification(ctx, topic.ID, store.Verification{
			Facts:         b.Topic.Facts,
			Plan:          b.Topic.SourcePlan,
			SourcingLevel: types.SourcingLevel(len(b.Topic.SourcePlan)),
			SearchesUsed:  2,
			VerifiedAt:    time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
		})
	})
	if err != nil {
		t.Fatal(err)
	}
	return topic.ID
}

func (f *genFixture) article(t *testing.T) *types.Article {
	t.Helper()
	topic, err := f.s.GetTopic(context.Background(), f.topic)
	if err != nil {
		t.Fatal(err)
	}
	if topic.ArticleID == nil {
		t.Fatal("topic has no article")
	}
	a, err := f.s.GetArticle(context.Background(), *topic.ArticleID)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func (f *genFixture) run(t *testing.T) Result {
	t.Helper()
	res, err := f.g.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestRunDraftsVerifiedTopic(t *testing.T) {
	f := newGenFixture(t, &scriptedWriter{})

	if diff := cmp.Diff(Result{Drafted: 1}, f.run(t)); diff != "" {
		t.Fatalf("Run() (-want +got):\n%s", diff)
	}
	a := f.article(t)
	if a.Status != types.StatusPendingReview || !a.SelfAuditPassed || a.BiasFlagged {
		t.Fatalf("article = %s, audit %v, bias %v", a.Status, a.SelfAuditPassed, a.BiasFlagged)
	}
	if a.DraftAttempts != 1 || a.ReadingLevel != 8.0 || a.Headline != "Flash floods close roads in Bukit Timah" {
		t.Errorf("article = %+v", a)
	}
	if !strings.Contains(string(a.SelfAuditReport), `"passed":true`) {
		t.Errorf("self audit report = %s", a.SelfAuditReport)
	}
	if b := f.w.briefs[0]; b.Dateline != "SINGAPORE, Tuesday" || len(b.Topic.Facts) != 3 {
		t.Errorf("brief dateline %q with %d facts", b.Dateline, len(b.Topic.Facts))
	}

	if diff := cmp.Diff(Result{}, f.run(t)); diff != "" {
		t.Errorf("second Run() (-want +got):\n%s", diff)
	}
}

func TestFailedAuditRetriesThenEscalates(t *testing.T) {
	f := newGenFixture(t, &scriptedWriter{})
	f.g.auditor.grade = fixedGrade(11.2)

	if diff := cmp.Diff(Result{Escalated: 1}, f.run(t)); diff != "" {
		t.Fatalf("Run() (-want +got):\n%s", diff)
	}
	if f.w.calls() != 3 {
		t.Errorf("writer called %d times, want 1 plus a retry budget of 2", f.w.calls())
	}
	wantFeedback := [][]string{nil, {"reading_level: reading level 11.2 outside 7.5-8.5"}, {"reading_level: reading level 11.2 outside 7.5-8.5"}}
	if diff := cmp.Diff(wantFeedback, f.w.feedback); diff != "" {
		t.Errorf("feedback (-want +got):\n%s", diff)
	}

	a := f.article(t)
	if a.Status != types.StatusEscalated || a.SelfAuditPassed || a.DraftAttempts != 3 {
		t.Fatalf("article = %s, audit %v, attempts %d", a.Status, a.SelfAuditPassed, a.DraftAttempts)
	}
	if !strings.HasPrefix(a.EditorialNotes, "SELF_AUDIT_FAILED: failed after 3 attempts") {
		t.Errorf("notes = %q", a.EditorialNotes)
	}
	if diff := cmp.Diff([]string{providers.TemplateEscalation}, f.mail.templates); diff != "" {
		t.Errorf("notifications (-want +got):\n%s", diff)
	}
}

func TestRetryRecoversFromFailedAudit(t *testing.T) {
	w := &scriptedWriter{texts: []Text{
		floodText(floodParagraphs()[:4]),
		floodText(floodParagraphs()),
	}}
	f := newGenFixture(t, w)

	if diff := cmp.Diff(Result{Drafted: 1}, f.run(t)); diff != "" {
		t.Fatalf("Run() (-want +got):\n%s", diff)
	}
	if len(w.feedback) != 2 || len(w.feedback[1]) != 1 || !strings.HasPrefix(w.feedback[1][0], CheckImpact+": ") {
		t.Errorf("feedback = %q", w.feedback)
	}
	if a := f.article(t); a.Status != types.StatusPendingReview || a.DraftAttempts != 2 {
		t.Errorf("article = %s after %d attempts", a.Status, a.DraftAttempts)
	}
}

func TestBiasFlagHoldsDraftForEditor(t *testing.T) {
	paras := floodParagraphs()
	paras[2] = "The story matters because residents fear the regime will not act in Singapore."
	w := &scriptedWriter{texts: []Text{floodText(paras)}}
	f := newGenFixture(t, w)

	if diff := cmp.Diff(Result{Flagged: 1}, f.run(t)); diff != "" {
		t.Fatalf("Run() (-want +got):\n%s", diff)
	}
	if w.calls() != 1 {
		t.Errorf("writer called %d times; a flagged draft is not regenerated", w.calls())
	}
	a := f.article(t)
	if a.Status != types.StatusDraft || !a.BiasFlagged || !strings.HasPrefix(a.EditorialNotes, "bias scan flagged 1 issue(s)") {
		t.Fatalf("article = %s, bias %v, notes %q", a.Status, a.BiasFlagged, a.EditorialNotes)
	}
	queue, err := f.m.Queue(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(queue) != 1 || queue[0].Article.ID != a.ID {
		t.Errorf("review queue = %+v", queue)
	}
}

func TestProviderFailureEscalates(t *testing.T) {
	w := &scriptedWriter{err: apperr.Transient(apperr.CodeProviderUnavailable, "cohere chat: 503")}
	f := newGenFixture(t, w)

	if diff := cmp.Diff(Result{Escalated: 1}, f.run(t)); diff != "" {
		t.Fatalf("Run() (-want +got):\n%s", diff)
	}
	a := f.article(t)
	if a.Status != types.StatusEscalated || !strings.HasPrefix(a.EditorialNotes, "PROVIDER_UNAVAILABLE: draft generation failed") {
		t.Errorf("article = %s, notes %q", a.Status, a.EditorialNotes)
	}
	if w.calls() != 1 {
		t.Errorf("writer called %d times", w.calls())
	}
}

func TestTopicRejectedWhileDraftingLeavesNothing(t *testing.T) {
	w := &scriptedWriter{}
	f := newGenFixture(t, w)
	w.hook = func(context.Context) {
		if _, err := f.s.RejectTopic(context.Background(), f.topic, "SCORE_BELOW_THRESHOLD: rescored"); err != nil {
			t.Error(err)
		}
	}

	if diff := cmp.Diff(Result{Cancelled: 1}, f.run(t)); diff != "" {
		t.Fatalf("Run() (-want +got):\n%s", diff)
	}
	topic, _ := f.s.GetTopic(context.Background(), f.topic)
	if topic.ArticleID != nil || topic.VerificationStatus != types.VerificationRejected {
		t.Errorf("topic = %+v", topic)
	}
	for _, status := range []types.ArticleStatus{types.StatusDraft, types.StatusPendingReview, types.StatusEscalated} {
		if as, _ := f.s.ArticlesByStatus(context.Background(), status, 10); len(as) != 0 {
			t.Errorf("%d %s articles left behind", len(as), status)
		}
	}
}

func TestCancelStopsDraft(t *testing.T) {
	started := make(chan struct{})
	w := &scriptedWriter{hook: func(ctx context.Context) {
		close(started)
		<-ctx.Done()
	}}
	f := newGenFixture(t, w)

	done := make(chan Result)
	go func() {
		res, _ := f.g.Run(context.Background())
		done <- res
	}()
	<-started
	if !f.pool.Cancel(f.topic) {
		t.Fatal("no drafting job running for the topic")
	}
	if diff := cmp.Diff(Result{Cancelled: 1}, <-done); diff != "" {
		t.Fatalf("Run() (-want +got):\n%s", diff)
	}
	if topic, _ := f.s.GetTopic(context.Background(), f.topic); topic.ArticleID != nil {
		t.Error("cancelled draft was attached to the topic")
	}
}

func TestRedraftAfterRevisionRequest(t *testing.T) {
	ctx := context.Background()
	w := &scriptedWriter{}
	f := newGenFixture(t, w)
	f.run(t)
	first := f.article(t)

	notes := "Lead with the rainfall total."
	if _, err := f.m.RequestRevision(ctx, editorial.Ref{ID: first.ID, Version: first.Version}, "editor:kim", notes); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Result{Redrafted: 1}, f.run(t)); diff != "" {
		t.Fatalf("Run() (-want +got):\n%s", diff)
	}

	a := f.article(t)
	if a.Status != types.StatusPendingReview || a.RevisionCount != 1 || a.Submissions != 2 {
		t.Fatalf("article = %s, revisions %d, submissions %d", a.Status, a.RevisionCount, a.Submissions)
	}
	b := w.briefs[1]
	if b.EditorNotes != notes || b.PreviousBody != first.Body {
		t.Errorf("redraft brief notes %q, previous body %q", b.EditorNotes, b.PreviousBody)
	}
	revisions, _ := f.s.Revisions(ctx, a.ID)
	if len(revisions) != 2 {
		t.Errorf("revisions = %d, want 2", len(revisions))
	}
}

type flakyGenerator struct {
	fails   int
	out     string
	prompts []string
	c       providers.Constraints
}

func (g *flakyGenerator) Generate(_ context.Context, prompt string, c providers.Constraints) (string, error) {
	g.prompts = append(g.prompts, prompt)
	g.c = c
	if len(g.prompts) <= g.fails {
		return "", apperr.Transient(apperr.CodeProviderUnavailable, "rate limited")
	}
	return g.out, nil
}

func TestLLMWriter(t *testing.T) {
	gen := &flakyGenerator{fails: 1, out: "HEADLINE: Flash floods close three roads\n\nSINGAPORE, Tuesday: Flash floods closed three roads."}
	w := NewLLMWriter(gen, providers.RetryPolicy{Attempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond})

	got, err := w.Write(context.Background(), floodBrief(), []string{"reading_level: reading level 11.2 outside 7.5-8.5"})
	if err != nil {
		t.Fatal(err)
	}
	want := Text{Headline: "Flash floods close three roads", Body: "SINGAPORE, Tuesday: Flash floods closed three roads."}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Write() (-want +got):\n%s", diff)
	}
	if len(gen.prompts) != 2 || gen.c.Preamble == "" {
		t.Fatalf("prompts = %d, preamble %q", len(gen.prompts), gen.c.Preamble)
	}
	for _, s := range []string{
		"1. [observed] Flash floods closed three roads in Bukit Timah on Tuesday. (sources: National Water Agency; channelnewsasia.com)",
		"Dateline: SINGAPORE, Tuesday",
		"- reading_level: reading level 11.2 outside 7.5-8.5",
	} {
		if !strings.Contains(gen.prompts[1], s) {
			t.Errorf("prompt is missing %q", s)
		}
	}

	down := &flakyGenerator{fails: 5}
	w = NewLLMWriter(down, providers.RetryPolicy{Attempts: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond})
	if _, err := w.Write(context.Background(), floodBrief(), nil); !apperr.IsTransient(err) {
		t.Errorf("Write() with the provider down = %v", err)
	}
}
