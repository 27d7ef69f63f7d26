package providers

import (
	"context"
	"crypto/tls"
	"errors"
	"net/http"
	"strings"
	"time"

	"newsdesk/apperr"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"
)

// Constraints bound a generation request.
type Constraints struct {
	Preamble    string
	MaxTokens   int
	Temperature float64
}

// Generator is the content generation service drafting depends on.
// Implementations must honor ctx cancellation.
type Generator interface {
	Generate(ctx context.Context, prompt string, c Constraints) (string, error)
}

// CohereGenerator generates text with the Cohere chat API.
// Docs: https://docs.cohere.com/reference/chat
type CohereGenerator struct {
	client *cohereclient.Client
	model  string
}

// NewCohereGenerator builds a generator for apiKey. Model defaults to command-r-plus.
func NewCohereGenerator(apiKey, model string) *CohereGenerator {
	if model == "" {
		model = "command-r-plus"
	}
	// HTTP/1.1 only; the chat endpoint drops long HTTP/2 streams
	httpClient := &http.Client{
		Timeout: 90 * time.Second,
		Transport: &http.Transport{
			TLSNextProto:      make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
			ForceAttemptHTTP2: false,
		},
	}
	client := cohereclient.NewClient(
		cohereclient.WithToken(apiKey),
		cohereclient.WithHTTPClient(httpClient),
	)
	return &CohereGenerator{client: client, model: model}
}

func (g *CohereGenerator) Generate(ctx context.Context, prompt string, c Constraints) (string, error) {
	req := &cohere.ChatRequest{
		Message: prompt,
		Model:   cohere.String(g.model),
	}
	if c.Preamble != "" {
		req.Preamble = cohere.String(c.Preamble)
	}
	if c.MaxTokens > 0 {
		req.MaxTokens = cohere.Int(c.MaxTokens)
	}
	if c.Temperature > 0 {
		req.Temperature = cohere.Float64(c.Temperature)
	}

	resp, err := g.client.Chat(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", apperr.Transient(apperr.CodeProviderUnavailable, "cohere chat: %v", err)
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		return "", apperr.Transient(apperr.CodeProviderUnavailable, "cohere chat returned empty text")
	}
	return resp.Text, nil
}
