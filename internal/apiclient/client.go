// Package apiclient is the bot-side client for the backend API.
package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// UserWithToken is the registration response; a fresh token is issued on
// every call, new user or not.
type UserWithToken struct {
	ID          int64  `json:"id"`
	TelegramID  int64  `json:"telegram_id"`
	Username    string `json:"username"`
	AccessToken string `json:"access_token"`
}

// GameRecord is one persisted finished game.
type GameRecord struct {
	ID        int64  `json:"id"`
	Player1ID int64  `json:"player1_id"`
	Player2ID int64  `json:"player2_id"`
	Result    string `json:"result"`
}

type registerRequest struct {
	TelegramID int64  `json:"telegram_id"`
	Username   string `json:"username"`
}

type recordGameRequest struct {
	Player1ID int64  `json:"player1_id"`
	Player2ID int64  `json:"player2_id"`
	Result    string `json:"result"`
}

// Client talks JSON over HTTP to the backend. Every call is attempted
// exactly once; failures surface to the handler as retry-later messages.
type Client struct {
	baseURL string
	http    *fasthttp.Client
	timeout time.Duration
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &fasthttp.Client{ReadTimeout: 10 * time.Second, WriteTimeout: 10 * time.Second, MaxConnsPerHost: 64},
		timeout: 10 * time.Second,
	}
}

// RegisterUser creates or refreshes the backend user and returns a fresh
// bearer token.
func (c *Client) RegisterUser(ctx context.Context, telegramID int64, username string) (*UserWithToken, error) {
	var u UserWithToken
	if err := c.doJSON(ctx, fasthttp.MethodPost, "/users/", "", registerRequest{TelegramID: telegramID, Username: username}, &u, fasthttp.StatusCreated); err != nil {
		return nil, err
	}
	return &u, nil
}

// RecordGame persists one finished game result.
func (c *Client) RecordGame(ctx context.Context, token string, player1ID, player2ID int64, result string) error {
	return c.doJSON(ctx, fasthttp.MethodPost, "/games/", token, recordGameRequest{Player1ID: player1ID, Player2ID: player2ID, Result: result}, nil, fasthttp.StatusCreated)
}

// GamesByUser returns the user's history, oldest first.
func (c *Client) GamesByUser(ctx context.Context, token string, userID int64) ([]GameRecord, error) {
	var games []GameRecord
	path := "/games/" + strconv.FormatInt(userID, 10)
	if err := c.doJSON(ctx, fasthttp.MethodGet, path, token, nil, &games, fasthttp.StatusOK); err != nil {
		return nil, err
	}
	return games, nil
}

func (c *Client) doJSON(ctx context.Context, method, path, token string, in, out any, wantStatus int) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.Header.SetMethod(method)
	req.SetRequestURI(c.baseURL + path)
	req.Header.SetContentType("application/json")
	req.Header.Set("X-Correlation-Id", correlationID(ctx))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		req.SetBody(payload)
	}

	deadline := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := c.http.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("backend %s %s: %w", method, path, err)
	}

	status := resp.StatusCode()
	if status != wantStatus {
		return fmt.Errorf("backend %s %s: status=%d body=%s", method, path, status, truncate(string(resp.Body()), 512))
	}
	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("backend %s %s: decode response: %w", method, path, err)
		}
	}
	return nil
}

type ctxKey struct{}

// WithCorrelationID stores a correlation id for outbound requests.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// correlationID returns the id in scope or generates a new one.
func correlationID(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok && v != "" {
		return v
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
