package telephony

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"newsroom/internal/config"
	"newsroom/internal/ports"
)

const defaultAPIBase = "https://api.twilio.com/2010-04-01"

// Client places and completes calls through the Twilio REST API.
type Client struct {
	apiBase    string
	accountSID string
	authToken  string
	fromNumber string
	// callbackURL is the webhook Twilio requests call instructions from.
	callbackURL string
	httpClient  *http.Client
}

var _ ports.CallControl = (*Client)(nil)

// NewClient wires Twilio credentials and the public callback URL.
func NewClient(cfg config.TwilioConfig, callbackURL string) *Client {
	return &Client{
		apiBase:     defaultAPIBase,
		accountSID:  cfg.AccountSID,
		authToken:   cfg.AuthToken,
		fromNumber:  cfg.FromNumber,
		callbackURL: callbackURL,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

// CreateCall dials toNumber and returns the provider call SID.
func (c *Client) CreateCall(ctx context.Context, toNumber string) (string, error) {
	if c.accountSID == "" || c.authToken == "" || c.fromNumber == "" {
		return "", fmt.Errorf("twilio client misconfigured")
	}

	form := url.Values{}
	form.Set("To", toNumber)
	form.Set("From", c.fromNumber)
	form.Set("Url", c.callbackURL)

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", c.apiBase, c.accountSID)
	var created struct {
		SID string `json:"sid"`
	}
	if err := c.post(ctx, endpoint, form, &created); err != nil {
		return "", fmt.Errorf("create call to %s: %w", toNumber, err)
	}
	if created.SID == "" {
		return "", fmt.Errorf("create call to %s: response missing sid", toNumber)
	}
	return created.SID, nil
}

// CompleteCall asks Twilio to end the call.
func (c *Client) CompleteCall(ctx context.Context, callSID string) error {
	if callSID == "" {
		return fmt.Errorf("call sid is empty")
	}

	form := url.Values{}
	form.Set("Status", "completed")

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls/%s.json", c.apiBase, c.accountSID, callSID)
	if err := c.post(ctx, endpoint, form, nil); err != nil {
		return fmt.Errorf("complete call %s: %w", callSID, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, endpoint string, form url.Values, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("twilio error: %s", resp.Status)
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
