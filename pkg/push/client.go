// Package push provides a client for sending push notifications through an
// HTTP push gateway.
package push

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// Client represents a push gateway client.
type Client struct {
	apiURL string
	apiKey string
	client *http.Client
}

// NewClient creates a new push Client for the given gateway.
func NewClient(apiURL, apiKey string) *Client {
	return &Client{
		apiURL: apiURL,
		apiKey: apiKey,
		client: &http.Client{},
	}
}

// sendMessageRequest represents the payload for the gateway's send endpoint.
type sendMessageRequest struct {
	Recipient string `json:"recipient"` // device or user token
	Body      string `json:"body"`      // notification body
}

// Send pushes a notification to the specified recipient token.
//
// It returns an error if the request fails or the gateway responds with a
// non-2xx status.
func (c *Client) Send(to string, payload string) error {
	reqBody := sendMessageRequest{
		Recipient: to,
		Body:      payload,
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.apiURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("push gateway error: %s", resp.Status)
	}

	return nil
}
