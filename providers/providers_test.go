package providers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"newsdesk/apperr"
	"newsdesk/logger"
	"newsdesk/types"

	"github.com/google/go-cmp/cmp"
)

var fastPolicy = RetryPolicy{Attempts: 3, Timeout: time.Second, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}

func TestDoRetriesTransientFailures(t *testing.T) {
	var calls int
	got, err := Do(context.Background(), fastPolicy, "flaky", func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", apperr.Transient(apperr.CodeProviderUnavailable, "try again")
		}
		return "ok", nil
	})
	if err != nil || got != "ok" {
		t.Fatalf("Do() = %q, %v; want ok, nil", got, err)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestDoGivesUpAfterAttempts(t *testing.T) {
	var calls int
	_, err := Do(context.Background(), fastPolicy, "down", func(ctx context.Context) (int, error) {
		calls++
		return 0, apperr.Transient(apperr.CodeProviderUnavailable, "still down")
	})
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if !apperr.IsTransient(err) || apperr.CodeOf(err) != apperr.CodeProviderUnavailable {
		t.Fatalf("err = %v, want transient %s", err, apperr.CodeProviderUnavailable)
	}
	if !strings.Contains(err.Error(), "gave up after 3 attempts") {
		t.Errorf("err = %q", err)
	}
}

func TestDoDoesNotRetryPermanentFailures(t *testing.T) {
	var calls int
	boom := errors.New("bad request")
	_, err := Do(context.Background(), fastPolicy, "strict", func(ctx context.Context) (int, error) {
		calls++
		return 0, boom
	})
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestDoTimesOutSlowAttempts(t *testing.T) {
	p := fastPolicy
	p.Timeout = 5 * time.Millisecond
	_, err := Do(context.Background(), p, "slow", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !apperr.IsTransient(err) {
		t.Errorf("err = %v, want transient", err)
	}
}

func TestHTTPSearch(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if got := r.URL.Query().Get("q"); got != "port strike" {
			t.Errorf("q = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer k" {
			t.Errorf("Authorization = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"results": []SearchResult{{URL: "https://a.example/1", Title: "A", Snippet: "s"}},
		})
	}))
	defer srv.Close()

	s := NewHTTPSearch(srv.URL, "k")
	_, err := s.Search(context.Background(), "port strike")
	if !apperr.IsTransient(err) {
		t.Fatalf("first Search err = %v, want transient", err)
	}
	got, err := Do(context.Background(), fastPolicy, "search", func(ctx context.Context) ([]SearchResult, error) {
		return s.Search(ctx, "port strike")
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []SearchResult{{URL: "https://a.example/1", Title: "A", Snippet: "s"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Search mismatch (-want +got):\n%s", diff)
	}
}

func TestMailNotifier(t *testing.T) {
	var payload mailSendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v3/mail/send" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := NewMailNotifier(srv.URL, "key", "desk@example.org", logger.Nop())
	status, err := n.Send(context.Background(), "press@ministry.example", TemplateRightOfReply, map[string]string{
		"entity": "Ministry", "headline": "Port strike", "deadline": "Mon", "summary": "s",
	})
	if err != nil || status != types.DeliveryQueued {
		t.Fatalf("Send() = %s, %v", status, err)
	}
	if payload.Subject != "Request for comment: Port strike" {
		t.Errorf("Subject = %q", payload.Subject)
	}
	if len(payload.Personalizations) != 1 || payload.Personalizations[0].To[0].Email != "press@ministry.example" {
		t.Errorf("Personalizations = %+v", payload.Personalizations)
	}
}

func TestLogNotifierRejectsUnknownTemplate(t *testing.T) {
	n := NewLogNotifier(logger.Nop())
	if _, err := n.Send(context.Background(), "x", "nope", nil); err == nil {
		t.Error("Send(unknown template) err = nil")
	}
}
