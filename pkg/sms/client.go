// Package sms provides a client for sending SMS messages through an HTTP
// gateway provider.
package sms

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

// Client represents an SMS gateway client.
type Client struct {
	apiURL string
	apiKey string
	from   string
	client *http.Client
}

// NewClient creates a new SMS Client for the given gateway and sender id.
func NewClient(apiURL, apiKey, from string) *Client {
	return &Client{
		apiURL: apiURL,
		apiKey: apiKey,
		from:   from,
		client: &http.Client{},
	}
}

// sendMessageRequest represents the payload for the gateway's send endpoint.
type sendMessageRequest struct {
	From string `json:"from"` // sender id
	To   string `json:"to"`   // recipient phone number
	Text string `json:"text"` // message text
}

// Send sends an SMS to the specified phone number.
//
// It returns an error if the request fails or the gateway responds with a
// non-2xx status.
func (c *Client) Send(to string, payload string) error {
	reqBody := sendMessageRequest{
		From: c.from,
		To:   to,
		Text: payload,
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
		return fmt.Errorf("sms gateway error: %s", resp.Status)
	}

	return nil
}
