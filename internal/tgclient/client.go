// Package tgclient is a minimal Telegram Bot API client over fasthttp.
package tgclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
)

// Client calls the Bot API for one bot token.
type Client struct {
	baseURL string
	http    *fasthttp.Client

	defaultTimeout time.Duration
	retryMax       int
}

type Option func(*Client)

func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.defaultTimeout = d }
}

func WithRetry(max int) Option {
	return func(c *Client) { c.retryMax = max }
}

// NewClient builds a client for apiBase (normally https://api.telegram.org).
func NewClient(apiBase, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(apiBase, "/") + "/bot" + strings.TrimSpace(token),
		http:           &fasthttp.Client{ReadTimeout: 70 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		defaultTimeout: 10 * time.Second,
		retryMax:       3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetUpdates long-polls for new updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	secs := int(timeout / time.Second)
	var updates []Update
	// deadline must outlive the server-side poll window
	err := c.call(ctx, "getUpdates", getUpdatesRequest{Offset: offset, Timeout: secs}, &updates, timeout+10*time.Second, false)
	return updates, err
}

// SendMessage sends text to a chat with an optional inline keyboard.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string, kb *InlineKeyboardMarkup) (*Message, error) {
	var msg Message
	err := c.call(ctx, "sendMessage", sendMessageRequest{ChatID: chatID, Text: text, ReplyMarkup: kb}, &msg, 0, true)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// EditMessageText replaces a previously sent message, dropping the
// keyboard when kb is nil.
func (c *Client) EditMessageText(ctx context.Context, chatID, messageID int64, text string, kb *InlineKeyboardMarkup) error {
	return c.call(ctx, "editMessageText", editMessageTextRequest{ChatID: chatID, MessageID: messageID, Text: text, ReplyMarkup: kb}, nil, 0, true)
}

// AnswerCallbackQuery acknowledges a button press, optionally with a toast.
func (c *Client) AnswerCallbackQuery(ctx context.Context, callbackID, text string) error {
	return c.call(ctx, "answerCallbackQuery", answerCallbackRequest{CallbackQueryID: callbackID, Text: text}, nil, 0, false)
}

// SetMyCommands publishes the command menu.
func (c *Client) SetMyCommands(ctx context.Context, commands []BotCommand) error {
	return c.call(ctx, "setMyCommands", setMyCommandsRequest{Commands: commands}, nil, 0, true)
}

// GetChat fetches chat info; used to resolve display names by user id.
func (c *Client) GetChat(ctx context.Context, chatID int64) (*Chat, error) {
	var chat Chat
	if err := c.call(ctx, "getChat", getChatRequest{ChatID: chatID}, &chat, 0, true); err != nil {
		return nil, err
	}
	return &chat, nil
}

// WebhookURL returns the currently registered webhook URL, if any.
func (c *Client) WebhookURL(ctx context.Context) (string, error) {
	var info webhookInfo
	if err := c.call(ctx, "getWebhookInfo", nil, &info, 0, true); err != nil {
		return "", err
	}
	return info.URL, nil
}

// SetWebhook registers url for update delivery.
func (c *Client) SetWebhook(ctx context.Context, url string) error {
	return c.call(ctx, "setWebhook", setWebhookRequest{URL: url}, nil, 0, true)
}

// DeleteWebhook removes any registered webhook so polling can take over.
func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", nil, nil, 0, true)
}

func (c *Client) call(ctx context.Context, method string, in, out any, timeout time.Duration, retry bool) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(fasthttp.MethodPost)
	req.SetRequestURI(c.baseURL + "/" + method)
	req.Header.SetContentType("application/json")
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	attempts := 1
	if retry && c.retryMax > 1 {
		attempts = c.retryMax
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		err := c.http.DoDeadline(req, resp, c.deadline(ctx, timeout))
		if err != nil {
			lastErr = fmt.Errorf("telegram %s: %w", method, err)
			if attempt == attempts || !retry {
				return lastErr
			}
			if serr := sleepCtx(ctx, backoff(attempt)); serr != nil {
				return lastErr
			}
			continue
		}

		var env apiResponse
		if err := json.Unmarshal(resp.Body(), &env); err != nil {
			return fmt.Errorf("telegram %s: decode response: %w", method, err)
		}
		if !env.OK {
			lastErr = fmt.Errorf("telegram %s: code=%d %s", method, env.ErrorCode, env.Description)
			if attempt == attempts || !retry || !retryableCode(env.ErrorCode) {
				return lastErr
			}
			if serr := sleepCtx(ctx, backoff(attempt)); serr != nil {
				return lastErr
			}
			continue
		}
		if out != nil && len(env.Result) > 0 {
			if err := json.Unmarshal(env.Result, out); err != nil {
				return fmt.Errorf("telegram %s: decode result: %w", method, err)
			}
		}
		return nil
	}

	if lastErr == nil {
		lastErr = errors.New("unknown error")
	}
	return lastErr
}

func (c *Client) deadline(ctx context.Context, timeout time.Duration) time.Time {
	if timeout <= 0 {
		timeout = c.defaultTimeout
	}
	clientDL := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > 6 {
		attempt = 6
	}
	return time.Duration(1<<uint(attempt-1)) * 100 * time.Millisecond
}

func retryableCode(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
