// Package waha is the client for the WAHA (WhatsApp HTTP API) gateway:
// outbound text, typing presence, and recent chat history.
package waha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/zapbotio/zapbot/internal/config"
)

var (
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnavailable marks transport failures talking to the gateway.
	// Never swallowed at this boundary; callers decide severity.
	ErrUnavailable = errors.New("waha gateway unavailable")
)

type Client struct {
	baseURL    string
	session    string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(log *slog.Logger, cfg config.WahaConfig) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		session:    cfg.Session,
		httpClient: &http.Client{Timeout: config.Duration(cfg.Timeout)},
		logger:     log.With(slog.String("service", "waha")),
	}
}

// SendText delivers one outbound message to a chat.
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	if chatID == "" {
		return fmt.Errorf("%w: chat id is empty", ErrInvalidArgument)
	}
	if text == "" {
		return fmt.Errorf("%w: text is empty", ErrInvalidArgument)
	}
	return c.post(ctx, "/api/sendText", sendTextRequest{
		Session: c.session,
		ChatID:  chatID,
		Text:    text,
	})
}

// SetTyping toggles the typing presence indicator for a chat.
func (c *Client) SetTyping(ctx context.Context, chatID string, on bool) error {
	if chatID == "" {
		return fmt.Errorf("%w: chat id is empty", ErrInvalidArgument)
	}
	path := "/api/stopTyping"
	if on {
		path = "/api/startTyping"
	}
	return c.post(ctx, path, typingRequest{Session: c.session, ChatID: chatID})
}

// RecentMessages returns up to limit recent messages for a chat, oldest
// first, without downloading media.
func (c *Client) RecentMessages(ctx context.Context, chatID string, limit int) ([]Message, error) {
	if chatID == "" {
		return nil, fmt.Errorf("%w: chat id is empty", ErrInvalidArgument)
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: limit must be non-negative, got %d", ErrInvalidArgument, limit)
	}

	endpoint := fmt.Sprintf("%s/api/%s/chats/%s/messages?limit=%d&downloadMedia=false",
		c.baseURL, url.PathEscape(c.session), url.PathEscape(chatID), limit)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w: %w", endpoint, ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: %s returned %d: %s", ErrUnavailable, endpoint, resp.StatusCode, body)
	}

	var messages []Message
	if err := json.NewDecoder(resp.Body).Decode(&messages); err != nil {
		return nil, fmt.Errorf("decode recent messages: %w", err)
	}
	return messages, nil
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w: %w", path, ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: %s returned %d: %s", ErrUnavailable, path, resp.StatusCode, respBody)
	}
	return nil
}
