package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const chatPostMessageURL = "https://slack.com/api/chat.postMessage"

// Client posts messages through the Slack Web API using a bot token.
type Client struct {
	token      string
	apiURL     string
	httpClient *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithAPIURL overrides the chat.postMessage endpoint, used in tests.
func WithAPIURL(url string) ClientOption {
	return func(c *Client) {
		c.apiURL = url
	}
}

// NewClient creates a Slack client.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token:  token,
		apiURL: chatPostMessageURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type block map[string]any

func messageBlocks(msg Message) []block {
	blocks := []block{
		{
			"type": "section",
			"text": map[string]any{"type": "mrkdwn", "text": msg.Text},
		},
	}
	if msg.ReminderID > 0 {
		value := strconv.FormatInt(msg.ReminderID, 10)
		blocks = append(blocks, block{
			"type": "actions",
			"elements": []block{
				{
					"type":      "button",
					"action_id": ActionReminderDone,
					"value":     value,
					"style":     "primary",
					"text":      map[string]any{"type": "plain_text", "text": "Done"},
				},
				{
					"type":      "button",
					"action_id": ActionReminderSnooze,
					"value":     value,
					"text":      map[string]any{"type": "plain_text", "text": "Snooze 10m"},
				},
			},
		})
	}
	return blocks
}

type postMessageResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

// PostMessage delivers a message via chat.postMessage. Slack reports API
// failures inside a 200 response, so the ok field is checked too.
func (c *Client) PostMessage(ctx context.Context, msg Message) error {
	payload := map[string]any{
		"channel": msg.Channel,
		"text":    msg.Text,
		"blocks":  messageBlocks(msg),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}

	var result postMessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode slack response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("slack API error: %s", result.Error)
	}
	return nil
}

// PostToResponseURL replies to an interaction, replacing the original
// message so the buttons disappear after being used.
func (c *Client) PostToResponseURL(ctx context.Context, responseURL, text string) error {
	payload := map[string]any{
		"text":             text,
		"replace_original": true,
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode slack response: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, responseURL, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("failed to create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("slack response_url request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack response_url returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Ensure Client implements Sender
var _ Sender = (*Client)(nil)
