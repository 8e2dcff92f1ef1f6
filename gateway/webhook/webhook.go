// Package webhook sends SMS by posting to a self-hosted HTTP gateway.
//
// Requests are JSON bodies signed with the shared secret; the gateway
// answers 202 Accepted with the ID it assigned to the message.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/xraph/smsrelay/dispatch"
	"github.com/xraph/smsrelay/signature"
)

const maxResponseBody = 1024

// Client implements dispatch.CarrierGateway.
type Client struct {
	url    string
	secret string
	client *http.Client
}

var _ dispatch.CarrierGateway = (*Client)(nil)

// New creates a webhook gateway client. An empty secret leaves requests unsigned.
func New(url, secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		url:    url,
		secret: secret,
		client: &http.Client{Timeout: timeout},
	}
}

type sendRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
}

type sendResponse struct {
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
}

// SendSMS posts body for phoneNumber to the gateway.
func (c *Client) SendSMS(ctx context.Context, phoneNumber, body string) error {
	_, err := c.Send(ctx, phoneNumber, body)
	return err
}

// Send posts the message and returns the gateway's message ID.
func (c *Client) Send(ctx context.Context, phoneNumber, message string) (string, error) {
	reqBody, err := json.Marshal(sendRequest{
		PhoneNumber: phoneNumber,
		Message:     message,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		signature.SignRequest(req, reqBody, c.secret, time.Now())
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("webhook: unexpected status code: %d body=%q", resp.StatusCode, string(body))
	}

	var sr sendResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return "", fmt.Errorf("webhook: decode response: %w body=%q", err, string(body))
	}
	if sr.MessageID == "" {
		return "", fmt.Errorf("webhook: missing messageId in response body=%q", string(body))
	}

	return sr.MessageID, nil
}
