package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"newsdesk/types"
)

const maxSocialTitle = 120

// SocialConnector polls a social listening API that returns recent posts as JSON:
// GET {endpoint}?since=RFC3339 -> {"posts":[{"text","url","author","posted_at"}]}.
type SocialConnector struct {
	name     string
	endpoint string
	client   *http.Client
}

func NewSocialConnector(name, endpoint string) *SocialConnector {
	return &SocialConnector{name: name, endpoint: endpoint, client: &http.Client{Timeout: 20 * time.Second}}
}

func (s *SocialConnector) Name() string { return s.name }

type socialPost struct {
	Text     string     `json:"text"`
	URL      string     `json:"url"`
	Author   string     `json:"author"`
	PostedAt *time.Time `json:"posted_at"`
}

func (s *SocialConnector) Fetch(ctx context.Context, since time.Time) ([]types.RawCandidate, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("social endpoint: %w", err)
	}
	if !since.IsZero() {
		q := u.Query()
		q.Set("since", since.UTC().Format(time.RFC3339))
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("social fetch: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("social fetch: server returned %d", resp.StatusCode)
	}

	var body struct {
		Posts []socialPost `json:"posts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode social posts: %w", err)
	}

	out := make([]types.RawCandidate, 0, len(body.Posts))
	for _, p := range body.Posts {
		text := strings.Join(strings.Fields(p.Text), " ")
		if text == "" || p.URL == "" {
			continue
		}
		out = append(out, types.RawCandidate{
			Title:          socialTitle(text),
			Description:    text,
			URL:            p.URL,
			DiscoveredFrom: types.SourceSocial,
			SourceName:     p.Author,
			PublishedAt:    p.PostedAt,
		})
	}
	return out, nil
}

// socialTitle uses the first sentence of a post, cut at a word boundary.
func socialTitle(text string) string {
	if i := strings.IndexAny(text, ".!?"); i > 0 {
		text = text[:i]
	}
	if len(text) <= maxSocialTitle {
		return text
	}
	cut := text[:maxSocialTitle]
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return cut
}
