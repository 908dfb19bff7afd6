package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ClientConfig configures the HTTP memory client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the semantic memory service over its REST API.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
}

// NewClient creates a memory client.
func NewClient(config ClientConfig) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

type addRequest struct {
	UserID   string         `json:"user_id"`
	Text     string         `json:"text"`
	Category string         `json:"category"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type addResponse struct {
	ID string `json:"id"`
}

type searchRequest struct {
	UserID   string `json:"user_id"`
	Query    string `json:"query"`
	Category string `json:"category,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

type entriesResponse struct {
	Entries []*Entry `json:"entries"`
}

type updateRequest struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Add stores a new entry.
func (c *Client) Add(ctx context.Context, userID, text, category string, metadata map[string]any) (string, error) {
	var resp addResponse
	err := c.do(ctx, http.MethodPost, "/v1/memories", addRequest{
		UserID:   userID,
		Text:     text,
		Category: category,
		Metadata: metadata,
	}, &resp)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Search returns entries relevant to the query.
func (c *Client) Search(ctx context.Context, userID, query, category string, limit int) ([]*Entry, error) {
	var resp entriesResponse
	err := c.do(ctx, http.MethodPost, "/v1/memories/search", searchRequest{
		UserID:   userID,
		Query:    query,
		Category: category,
		Limit:    limit,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

// Update replaces an entry's text and metadata.
func (c *Client) Update(ctx context.Context, id, text string, metadata map[string]any) error {
	return c.do(ctx, http.MethodPut, "/v1/memories/"+url.PathEscape(id), updateRequest{
		Text:     text,
		Metadata: metadata,
	}, nil)
}

// Delete removes an entry.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/v1/memories/"+url.PathEscape(id), nil, nil)
}

// GetAll returns every entry for a user.
func (c *Client) GetAll(ctx context.Context, userID string) ([]*Entry, error) {
	var resp entriesResponse
	path := "/v1/memories?user_id=" + url.QueryEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Entries, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode memory request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.config.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create memory request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Token "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("memory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && method == http.MethodDelete {
		// Deleting something already gone is success for our purposes.
		return nil
	}
	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("memory service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode memory response: %w", err)
		}
	}
	return nil
}

// Ensure Client implements Service
var _ Service = (*Client)(nil)
