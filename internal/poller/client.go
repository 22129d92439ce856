// Package poller is the terminal chat client. It keeps a chat in sync with
// the server by re-fetching it on a fixed interval rather than holding a
// push connection open.
package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sakif/foodshare/internal/model"
)

// API is the subset of the HTTP API the chat screen needs.
type API interface {
	GetChat(ctx context.Context, postID string) (*model.Chat, error)
	SendMessage(ctx context.Context, chatID, content string) (*model.Message, error)
}

// Client talks to the /api routes with a bearer token.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// GetChat opens (or reopens) the caller's chat for postID.
func (c *Client) GetChat(ctx context.Context, postID string) (*model.Chat, error) {
	var chat model.Chat
	if err := c.do(ctx, http.MethodGet, "/chat/"+url.PathEscape(postID), nil, &chat); err != nil {
		return nil, err
	}
	return &chat, nil
}

func (c *Client) SendMessage(ctx context.Context, chatID, content string) (*model.Message, error) {
	body := map[string]string{"chatId": chatID, "content": content}
	var msg model.Message
	if err := c.do(ctx, http.MethodPost, "/chat/message", body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Code)
	}
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&apiErr)
		return &StatusError{Code: resp.StatusCode, Message: apiErr.Message}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
