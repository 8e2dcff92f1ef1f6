// Package fcm sends push notifications through the Firebase Cloud Messaging
// HTTP v1 API.
package fcm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/xraph/smsrelay/dispatch"
)

const (
	defaultBaseURL  = "https://fcm.googleapis.com"
	maxResponseBody = 1024
)

// Config configures a Client.
type Config struct {
	// ProjectID is the Firebase project.
	ProjectID string

	// AccessToken is an OAuth2 bearer token for the messaging scope.
	AccessToken string

	// BaseURL overrides the API host. Defaults to the public endpoint.
	BaseURL string

	// Timeout is the HTTP client timeout.
	Timeout time.Duration
}

// Client implements dispatch.PushGateway.
type Client struct {
	url    string
	token  string
	client *http.Client
}

var _ dispatch.PushGateway = (*Client)(nil)

// New creates an FCM client.
func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		url:    strings.TrimRight(base, "/") + "/v1/projects/" + cfg.ProjectID + "/messages:send",
		token:  cfg.AccessToken,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type sendRequest struct {
	Message message `json:"message"`
}

type message struct {
	Token        string            `json:"token"`
	Notification notification      `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type notification struct {
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

// SendPush delivers n to the device registered under token.
func (c *Client) SendPush(ctx context.Context, token string, n dispatch.Notification) error {
	body, err := json.Marshal(sendRequest{Message: message{
		Token:        token,
		Notification: notification{Title: n.Title, Body: n.Body},
		Data:         n.Data,
	}})
	if err != nil {
		return fmt.Errorf("fcm: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("fcm: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("fcm: send: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		return fmt.Errorf("fcm: unexpected status code: %d body=%q", resp.StatusCode, string(respBody))
	}
	return nil
}
