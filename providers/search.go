package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"newsdesk/apperr"
)

// SearchResult is one web/news search hit.
type SearchResult struct {
	URL         string     `json:"url"`
	Title       string     `json:"title"`
	Snippet     string     `json:"snippet"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// SearchProvider runs a search query. Implementations must honor ctx cancellation.
type SearchProvider interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// HTTPSearch calls a JSON search API: GET {endpoint}?q=...
// returning {"results":[{"url","title","snippet","published_at"}]}.
type HTTPSearch struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPSearch(endpoint, apiKey string) *HTTPSearch {
	return &HTTPSearch{endpoint: endpoint, apiKey: apiKey, client: &http.Client{}}
}

func (s *HTTPSearch) Search(ctx context.Context, query string) ([]SearchResult, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("search endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperr.Transient(apperr.CodeProviderUnavailable, "search request: %v", err)
	}
	defer resp.Body.Close()

	if err := statusError("search", resp); err != nil {
		return nil, err
	}

	var out struct {
		Results []SearchResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return out.Results, nil
}

// statusError classifies a non-2xx response: throttling and server errors are transient.
func statusError(name string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return apperr.Transient(apperr.CodeProviderUnavailable, "%s returned %d: %s", name, resp.StatusCode, string(body))
	}
	return fmt.Errorf("%s returned %d: %s", name, resp.StatusCode, string(body))
}
