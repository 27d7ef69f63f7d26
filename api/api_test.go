package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"newsdesk/apperr"
	"newsdesk/config"
	"newsdesk/editorial"
	"newsdesk/ledger"
	"newsdesk/logger"
	"newsdesk/monitor"
	stypes "newsdesk/shared/types"
	"newsdesk/store"
	"newsdesk/types"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

type fakeReview struct {
	cmds   []editorial.Command
	err    error
	opened []string
}

func (f *fakeReview) Dispatch(_ context.Context, cmd editorial.Command) (*types.Article, error) {
	f.cmds = append(f.cmds, cmd)
	if f.err != nil {
		return nil, f.err
	}
	return &types.Article{ID: cmd.ArticleID, Status: types.StatusApproved, Version: cmd.Version + 1}, nil
}

func (f *fakeReview) Detail(_ context.Context, id uuid.UUID) (*editorial.Detail, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &editorial.Detail{Article: &types.Article{ID: id, Headline: "Ferry service suspended"}}, nil
}

func (f *fakeReview) Queue(_ context.Context, limit int) ([]store.ReviewItem, error) {
	return []store.ReviewItem{{Article: types.Article{Headline: "queued"}}}, nil
}

func (f *fakeReview) MarkReplyOpened(_ context.Context, _ uuid.UUID, entity string) error {
	f.opened = append(f.opened, entity)
	return nil
}

type fakeFlags struct {
	approved []monitor.CorrectionInput
	statuses []types.FlagStatus
}

func (f *fakeFlags) Flags(_ context.Context, status types.FlagStatus, _ int) ([]types.MonitorFlag, error) {
	f.statuses = append(f.statuses, status)
	return nil, nil
}

func (f *fakeFlags) ApproveFlag(_ context.Context, id uuid.UUID, actor string, in monitor.CorrectionInput) (*types.Correction, error) {
	f.approved = append(f.approved, in)
	return &types.Correction{CorrectionText: in.Text, CorrectedBy: actor}, nil
}

func (f *fakeFlags) DismissFlag(_ context.Context, id uuid.UUID, _, _ string) (*types.MonitorFlag, error) {
	return nil, apperr.Conflict(apperr.CodeInvalidTransition, "flag %s already resolved", id)
}

type fakeTopics struct{ rejected []uuid.UUID }

func (f *fakeTopics) RejectTopic(_ context.Context, id uuid.UUID, actor, _ string) error {
	if actor == "" {
		return apperr.Invalid("actor is required")
	}
	f.rejected = append(f.rejected, id)
	return nil
}

type fakeCredibility struct{}

func (fakeCredibility) Snapshot(context.Context) (ledger.Snapshot, error) {
	now := time.Now()
	return ledger.Compute([]types.SourceReliabilityLogEntry{
		ledger.Entry("pub.gov.sg", nil, types.ReliabilityClaimVerified, "", now),
		ledger.Entry("rumours.example", nil, types.ReliabilityClaimFalse, "", now),
	}, now, 90*24*time.Hour), nil
}

type fakeStages struct {
	triggered []string
	busy      bool
}

func (f *fakeStages) Trigger(name string) error {
	if name == "nope" {
		return apperr.NotFound("unknown stage %q", name)
	}
	if f.busy {
		return apperr.Conflict(apperr.CodeStageBusy, "stage %s is already running", name)
	}
	f.triggered = append(f.triggered, name)
	return nil
}

func (f *fakeStages) Status() stypes.StatusResponse {
	return stypes.StatusResponse{Stages: []stypes.StageStatus{{Name: config.StageIntake, State: stypes.StageIdle}}}
}

type fakeCounts struct{}

func (fakeCounts) CountOpenReviews(context.Context) (int64, error)  { return 3, nil }
func (fakeCounts) CountPendingFlags(context.Context) (int64, error) { return 1, nil }

type harness struct {
	router *gin.Engine
	review *fakeReview
	flags  *fakeFlags
	topics *fakeTopics
	stages *fakeStages
	manual *fakeManual
}

type fakeManual struct{ items []types.RawCandidate }

func (f *fakeManual) Submit(c types.RawCandidate) { f.items = append(f.items, c) }
func (f *fakeManual) Len() int                    { return len(f.items) }

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := &harness{
		review: &fakeReview{},
		flags:  &fakeFlags{},
		topics: &fakeTopics{},
		stages: &fakeStages{},
		manual: &fakeManual{},
	}
	srv := NewServer(Deps{
		Review:      h.review,
		Flags:       h.flags,
		Topics:      h.topics,
		Credibility: fakeCredibility{},
		Stages:      h.stages,
		Manual:      h.manual,
		Counts:      fakeCounts{},
		Log:         logger.Nop(),
	}, "0")
	h.router = srv.Router()
	return h
}

func (h *harness) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var env ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return env.Error
}

func TestArticleActionsDispatchCommands(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()

	tests := []struct {
		path string
		body string
		want editorial.Command
	}{
		{
			path: "/approve",
			body: `{"actor":"desk","version":4,"notes":"clean","publish_at":"2026-03-10T12:00:00Z"}`,
			want: editorial.Command{Action: editorial.ActionApprove, ArticleID: id, Version: 4, Actor: "desk", Notes: "clean",
				PublishAt: ptr(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC))},
		},
		{
			path: "/request-revision",
			body: `{"actor":"desk","notes":"tighten the lede"}`,
			want: editorial.Command{Action: editorial.ActionRequestRevision, ArticleID: id, Actor: "desk", Notes: "tighten the lede"},
		},
		{
			path: "/pull-back",
			body: `{"actor":"desk","notes":"legal review"}`,
			want: editorial.Command{Action: editorial.ActionPullBack, ArticleID: id, Actor: "desk", Notes: "legal review"},
		},
		{
			path: "/assign",
			body: `{"actor":"chief","editor":"night desk"}`,
			want: editorial.Command{Action: editorial.ActionAssign, ArticleID: id, Actor: "chief", Editor: "night desk"},
		},
		{
			path: "/replies",
			body: `{"actor":"desk","reply":{"entity_name":"LTA","entity_type":"government","contact":"press@lta.example","urgent":true}}`,
			want: editorial.Command{Action: editorial.ActionRequestReply, ArticleID: id, Actor: "desk",
				Reply: &editorial.ReplyRequest{EntityName: "LTA", EntityType: types.EntityGovernment, Contact: "press@lta.example", Urgent: true}},
		},
		{
			path: "/replies/record",
			body: `{"actor":"desk","entity":"LTA","text":"Services resume at noon."}`,
			want: editorial.Command{Action: editorial.ActionRecordReply, ArticleID: id, Actor: "desk", Entity: "LTA", Text: "Services resume at noon."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			h.review.cmds = nil
			rec := h.do(http.MethodPost, "/api/articles/"+id.String()+tt.path, tt.body)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
			}
			if diff := cmp.Diff([]editorial.Command{tt.want}, h.review.cmds); diff != "" {
				t.Errorf("command (-want +got):\n%s", diff)
			}
		})
	}
}

func ptr[T any](v T) *T { return &v }

func TestArticleActionErrors(t *testing.T) {
	h := newHarness(t)
	id := uuid.New().String()

	tests := []struct {
		name     string
		err      error
		path     string
		body     string
		wantCode int
		wantErr  string
	}{
		{"bad id", nil, "/api/articles/not-a-uuid/approve", `{}`, http.StatusBadRequest, apperr.CodeInvalidRequest},
		{"bad json", nil, "/api/articles/" + id + "/approve", `{`, http.StatusBadRequest, apperr.CodeInvalidRequest},
		{"stale", apperr.Conflict(apperr.CodeStaleVersion, "stale"), "/api/articles/" + id + "/approve", `{"actor":"desk","version":1}`, http.StatusConflict, apperr.CodeStaleVersion},
		{"missing", apperr.NotFound("article not found"), "/api/articles/" + id + "/reject", `{"actor":"desk"}`, http.StatusNotFound, apperr.CodeNotFound},
		{"provider down", apperr.Transient(apperr.CodeProviderUnavailable, "mail down"), "/api/articles/" + id + "/replies", `{"actor":"desk"}`, http.StatusServiceUnavailable, apperr.CodeProviderUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.review.err = tt.err
			rec := h.do(http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if got := decodeError(t, rec); got.Code != tt.wantErr {
				t.Errorf("code = %q, want %q", got.Code, tt.wantErr)
			}
		})
	}
}

func TestInternalErrorsAreHidden(t *testing.T) {
	h := newHarness(t)
	h.review.err = context.DeadlineExceeded
	rec := h.do(http.MethodGet, "/api/articles/"+uuid.New().String(), "")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeError(t, rec); got.Message != "internal error" || got.Code != "" {
		t.Errorf("error = %+v", got)
	}
}

func TestArticleDetailAndQueue(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()

	rec := h.do(http.MethodGet, "/api/articles/"+id.String(), "")
	var d editorial.Detail
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil || d.Article.ID != id {
		t.Fatalf("detail = %s (%v)", rec.Body.String(), err)
	}

	rec = h.do(http.MethodGet, "/api/review/queue?limit=10", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"count":1`) {
		t.Errorf("queue = %d %s", rec.Code, rec.Body.String())
	}
	if rec := h.do(http.MethodGet, "/api/review/queue?limit=-1", ""); rec.Code != http.StatusBadRequest {
		t.Errorf("negative limit status = %d", rec.Code)
	}

	rec = h.do(http.MethodGet, "/api/articles/"+id.String()+"/replies/opened?entity=LTA", "")
	if rec.Code != http.StatusNoContent || len(h.review.opened) != 1 {
		t.Errorf("opened = %d %v", rec.Code, h.review.opened)
	}
}

func TestFlagRoutes(t *testing.T) {
	h := newHarness(t)
	id := uuid.New().String()

	rec := h.do(http.MethodPost, "/api/flags/"+id+"/approve",
		`{"actor":"desk","correction_text":"The closure began on Monday.","what_changed":"date","reason":"agency update"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("approve = %d %s", rec.Code, rec.Body.String())
	}
	want := []monitor.CorrectionInput{{Text: "The closure began on Monday.", WhatChanged: "date", Reason: "agency update"}}
	if diff := cmp.Diff(want, h.flags.approved); diff != "" {
		t.Errorf("approved (-want +got):\n%s", diff)
	}

	rec = h.do(http.MethodPost, "/api/flags/"+id+"/dismiss", `{"actor":"desk","reason":"unrelated"}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("dismiss resolved flag = %d", rec.Code)
	}

	h.do(http.MethodGet, "/api/flags", "")
	h.do(http.MethodGet, "/api/flags?status=all", "")
	h.do(http.MethodGet, "/api/flags?status=dismissed", "")
	if diff := cmp.Diff([]types.FlagStatus{types.FlagPending, "", types.FlagDismissed}, h.flags.statuses); diff != "" {
		t.Errorf("statuses (-want +got):\n%s", diff)
	}
}

func TestCredibility(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/api/sources/credibility", "")
	var body struct {
		Sources []ledger.SourceScore `json:"sources"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Sources) != 2 || body.Sources[0].SourceID != "pub.gov.sg" {
		t.Errorf("sources = %+v", body.Sources)
	}
}

func TestStatusIncludesQueueCounts(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/api/status", "")
	var got stypes.StatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatal(err)
	}
	if got.ReviewQueue != 3 || got.PendingFlags != 1 || len(got.Stages) != 1 {
		t.Errorf("status = %+v", got)
	}
}

func TestRunStage(t *testing.T) {
	h := newHarness(t)
	if rec := h.do(http.MethodPost, "/api/stages/publish/run", ""); rec.Code != http.StatusAccepted {
		t.Errorf("run = %d", rec.Code)
	}
	if rec := h.do(http.MethodPost, "/api/stages/nope/run", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown stage = %d", rec.Code)
	}
	h.stages.busy = true
	rec := h.do(http.MethodPost, "/api/stages/publish/run", "")
	if rec.Code != http.StatusConflict || decodeError(t, rec).Code != apperr.CodeStageBusy {
		t.Errorf("busy = %d %s", rec.Code, rec.Body.String())
	}
}

func TestSubmitCandidate(t *testing.T) {
	h := newHarness(t)

	rec := h.do(http.MethodPost, "/api/candidates", `{"title":"  Haze alert raised  ","url":"https://www.nea.gov.sg/haze"}`)
	if rec.Code != http.StatusAccepted || !strings.Contains(rec.Body.String(), `"intake":"started"`) {
		t.Fatalf("submit = %d %s", rec.Code, rec.Body.String())
	}
	if len(h.manual.items) != 1 || h.manual.items[0].Title != "Haze alert raised" {
		t.Errorf("queued = %+v", h.manual.items)
	}
	if diff := cmp.Diff([]string{config.StageIntake}, h.stages.triggered); diff != "" {
		t.Errorf("triggered (-want +got):\n%s", diff)
	}

	// a busy intake still accepts the candidate
	h.stages.busy = true
	rec = h.do(http.MethodPost, "/api/candidates", `{"title":"Flash floods","url":"https://example.com/floods"}`)
	if rec.Code != http.StatusAccepted || !strings.Contains(rec.Body.String(), `"intake":"busy"`) {
		t.Errorf("busy submit = %d %s", rec.Code, rec.Body.String())
	}

	if rec := h.do(http.MethodPost, "/api/candidates", `{"title":"no url"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing url = %d", rec.Code)
	}
}

func TestRejectTopic(t *testing.T) {
	h := newHarness(t)
	id := uuid.New()

	if rec := h.do(http.MethodPost, "/api/topics/"+id.String()+"/reject", `{"actor":"desk"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing reason = %d", rec.Code)
	}
	if rec := h.do(http.MethodPost, "/api/topics/"+id.String()+"/reject", `{"reason":"duplicate"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("missing actor = %d", rec.Code)
	}
	rec := h.do(http.MethodPost, "/api/topics/"+id.String()+"/reject", `{"actor":"desk","reason":"duplicate"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("reject = %d %s", rec.Code, rec.Body.String())
	}
	if diff := cmp.Diff([]uuid.UUID{id}, h.topics.rejected); diff != "" {
		t.Errorf("rejected (-want +got):\n%s", diff)
	}
}

func TestHealth(t *testing.T) {
	h := newHarness(t)
	if rec := h.do(http.MethodGet, "/api/health", ""); rec.Code != http.StatusOK {
		t.Errorf("health = %d", rec.Code)
	}
}
