package tui

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"newsdesk/shared/types"
)

// DeskClient is a thin HTTP client for the newsdesk API.
type DeskClient struct {
	baseURL string
	client  *http.Client
}

func NewDeskClient(baseURL string) *DeskClient {
	return &DeskClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 5 * time.Second},
	}
}

// GetStatus fetches stage state, recent logs and queue sizes.
func (c *DeskClient) GetStatus() (*types.StatusResponse, error) {
	resp, err := c.client.Get(c.baseURL + "/api/status")
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var status types.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &status, nil
}

// RunStage asks the server to start a stage now.
func (c *DeskClient) RunStage(stage string) error {
	resp, err := c.client.Post(c.baseURL+"/api/stages/"+stage+"/run", "application/json", strings.NewReader("{}"))
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", stage, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return apiError(resp)
	}
	return nil
}

// apiError reads the server's error envelope, falling back to the raw body.
func apiError(resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	var env struct {
		Error struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		} `json:"error"`
	}
	if json.Unmarshal(body, &env) == nil && env.Error.Message != "" {
		if env.Error.Code != "" {
			return fmt.Errorf("%s: %s", env.Error.Code, env.Error.Message)
		}
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, env.Error.Message)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}
