package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"newsdesk/common"
	"newsdesk/config"
	"newsdesk/editorial"
	"newsdesk/logger"
	"newsdesk/shared/kafka"
	"newsdesk/store"
	"newsdesk/store/storetest"
	"newsdesk/types"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

type fakeArchive struct {
	stored []uuid.UUID
	err    error
}

func (f *fakeArchive) Store(_ context.Context, snap common.Snapshot) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.stored = append(f.stored, snap.Article.ID)
	return "articles/" + snap.Article.ID.String() + ".json", nil
}

type fixture struct {
	s       *store.Store
	m       *editorial.Machine
	archive *fakeArchive
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := storetest.New(t)
	return &fixture{
		s:       s,
		m:       editorial.New(s, nil, config.Default().Pipeline, "", logger.Nop()),
		archive: &fakeArchive{},
	}
}

// approved seeds an article and approves it, scheduled for publishAt when non-nil.
func (f *fixture) approved(t *testing.T, headline string, publishAt *time.Time) *types.Article {
	t.Helper()
	ctx := context.Background()
	topic := &types.Topic{CandidateID: uuid.New(), Title: headline, VerificationStatus: types.VerificationVerified}
	if err := f.s.CreateTopic(ctx, topic); err != nil {
		t.Fatal(err)
	}
	var a *types.Article
	err := f.s.Transaction(ctx, func(tx *store.Store) error {
		var err error
		a, err = f.m.CreateDraft(ctx, tx, topic, editorial.Draft{
			Headline: headline, Body: "Body.", ReadingLevel: 8, SelfAuditPassed: true, Attempts: 1,
		})
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	a, err = f.m.Approve(ctx, editorial.Ref{ID: a.ID, Version: a.Version}, "desk", "", publishAt)
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func producer(t *testing.T) (*mocks.SyncProducer, *kafka.Producer) {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	sp := mocks.NewSyncProducer(t, cfg)
	return sp, kafka.NewProducerFrom(sp, "newsdesk.events", logger.Nop())
}

func TestRunPublishesDueArticles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(24 * time.Hour)

	now := f.approved(t, "Council passes budget", nil)
	due := f.approved(t, "Port strike ends", &past)
	later := f.approved(t, "Election results", &future)

	sp, events := producer(t)
	sp.ExpectSendMessageAndSucceed()
	sp.ExpectSendMessageAndSucceed()
	p := New(f.s, f.m, f.archive, events, config.Default().Pipeline, logger.Nop())

	res, err := p.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Result{Published: 2, Archived: 2, Announced: 2}, res); diff != "" {
		t.Errorf("result (-want +got):\n%s", diff)
	}

	for _, id := range []uuid.UUID{now.ID, due.ID} {
		a, err := f.s.GetArticle(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if a.Status != types.StatusPublished || a.PublishedAt == nil || a.Body != "Body." {
			t.Errorf("article %s: status %s, published_at %v", a.Headline, a.Status, a.PublishedAt)
		}
	}
	a, err := f.s.GetArticle(ctx, later.ID)
	if err != nil {
		t.Fatal(err)
	}
	if a.Status != types.StatusApproved {
		t.Errorf("scheduled article status = %s, want approved", a.Status)
	}

	// second run finds nothing and sends nothing
	res, err = p.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if res != (Result{}) {
		t.Errorf("second run = %+v", res)
	}
	if err := events.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestArchiveAndEventFailuresDoNotRollBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.approved(t, "Council passes budget", nil)

	f.archive.err = errors.New("bucket unavailable")
	sp, events := producer(t)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	p := New(f.s, f.m, f.archive, events, config.Default().Pipeline, logger.Nop())

	res, err := p.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Result{Published: 1}, res); diff != "" {
		t.Errorf("result (-want +got):\n%s", diff)
	}
	got, err := f.s.GetArticle(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != types.StatusPublished {
		t.Errorf("status = %s, want published", got.Status)
	}
	_ = events.Close()
}

func TestRunWithoutArchiveOrEvents(t *testing.T) {
	f := newFixture(t)
	f.approved(t, "Council passes budget", nil)
	p := New(f.s, f.m, nil, nil, config.Default().Pipeline, logger.Nop())

	res, err := p.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Result{Published: 1}, res); diff != "" {
		t.Errorf("result (-want +got):\n%s", diff)
	}
}
