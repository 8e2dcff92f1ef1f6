// Package twilio sends SMS through the Twilio Messages REST API.
package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/xraph/smsrelay/dispatch"
)

const (
	defaultBaseURL  = "https://api.twilio.com"
	maxResponseBody = 1024
)

// Config configures a Client.
type Config struct {
	AccountSID string
	AuthToken  string

	// From is the sending number or messaging service SID.
	From string

	// BaseURL overrides the API host. Defaults to the public endpoint.
	BaseURL string

	// Timeout is the HTTP client timeout.
	Timeout time.Duration
}

// Client implements dispatch.CarrierGateway.
type Client struct {
	url    string
	cfg    Config
	client *http.Client
}

var _ dispatch.CarrierGateway = (*Client)(nil)

// APIError is the error body Twilio returns for rejected requests.
type APIError struct {
	Status  int    `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twilio: status %d code %d: %s", e.Status, e.Code, e.Message)
}

// New creates a Twilio client.
func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		url:    strings.TrimRight(base, "/") + "/2010-04-01/Accounts/" + url.PathEscape(cfg.AccountSID) + "/Messages.json",
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// SendSMS sends body to phoneNumber.
func (c *Client) SendSMS(ctx context.Context, phoneNumber, body string) error {
	form := url.Values{}
	form.Set("To", phoneNumber)
	form.Set("From", c.cfg.From)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("twilio: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.cfg.AccountSID, c.cfg.AuthToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("twilio: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	apiErr := &APIError{Status: resp.StatusCode}
	if err := json.Unmarshal(respBody, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = string(respBody)
	}
	apiErr.Status = resp.StatusCode
	return apiErr
}
