package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"newsroom/internal/domain"
	"newsroom/internal/ports"
)

// Client triggers downstream article re-enrichment with interview content.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

var _ ports.EnrichmentTrigger = (*Client)(nil)

// NewClient creates a reusable HTTP client. The per-call deadline comes from
// the caller's context.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
	}
}

// Enrich posts the interview dialogue for the article to the pipeline.
func (c *Client) Enrich(ctx context.Context, articleID int64, turns []domain.DialogueTurn) error {
	if c.endpoint == "" {
		return fmt.Errorf("enrichment endpoint not configured")
	}

	body, err := json.Marshal(map[string]any{
		"article_id":     articleID,
		"dialogue_turns": turns,
	})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
