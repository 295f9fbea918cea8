package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sakif/clicktrail/internal/apperror"
)

// AllowedUpdates is what the webhook subscribes to.
var AllowedUpdates = []string{"message", "edited_message"}

// APIResponse is the envelope every Bot API method returns.
type APIResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	Description string          `json:"description,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
}

// Client calls Bot API methods.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a Client against baseURL (normally
// https://api.telegram.org).
func NewClient(baseURL, botToken string, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      botToken,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// SetWebhookParams are the arguments to setWebhook.
type SetWebhookParams struct {
	URL            string   `json:"url"`
	AllowedUpdates []string `json:"allowed_updates"`
	SecretToken    string   `json:"secret_token,omitempty"`
}

// SetWebhook registers url as the bot's webhook. Telegram's answer is
// returned as-is even when ok is false; err is reserved for transport and
// decoding failures, which wrap apperror.ErrUnavailable.
func (c *Client) SetWebhook(ctx context.Context, params SetWebhookParams) (*APIResponse, error) {
	if params.AllowedUpdates == nil {
		params.AllowedUpdates = AllowedUpdates
	}
	return c.call(ctx, "setWebhook", params)
}

func (c *Client) call(ctx context.Context, method string, payload any) (*APIResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("telegram: encoding %s: %w", method, err)
	}

	// The bot token is part of the path; never log this URL.
	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("telegram: building %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, unavailable(fmt.Errorf("telegram: calling %s: %w", method, scrub(err, c.token)))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, unavailable(fmt.Errorf("telegram: reading %s response: %w", method, err))
	}

	var out APIResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, unavailable(fmt.Errorf("telegram: decoding %s response (status %d): %w", method, resp.StatusCode, err))
	}

	c.logger.Info("telegram api call",
		slog.String("method", method),
		slog.Int("status", resp.StatusCode),
		slog.Bool("ok", out.OK),
		slog.Duration("duration", time.Since(start)),
	)
	return &out, nil
}

func unavailable(err error) error {
	return apperror.Unavailable("telegram api", err)
}

// scrub removes the bot token from transport errors, which echo the URL.
func scrub(err error, token string) error {
	if token == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, token) {
		return err
	}
	return errors.New(strings.ReplaceAll(msg, token, "<redacted>"))
}

// WebhookPath is where the server receives updates.
const WebhookPath = "/tg/webhook"

// RegisterWebhook points the bot at baseURL + WebhookPath with the given
// secret_token and the default allowed updates.
func (c *Client) RegisterWebhook(ctx context.Context, baseURL, secret string) (*APIResponse, error) {
	return c.SetWebhook(ctx, SetWebhookParams{
		URL:         strings.TrimRight(baseURL, "/") + WebhookPath,
		SecretToken: secret,
	})
}
