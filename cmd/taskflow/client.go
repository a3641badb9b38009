package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"github.com/IDGHIM/TaskFlow/domain"
)

// command mirrors one element of the POST /api/commands body.
type command struct {
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
	Type           string `json:"type"`
	Data           any    `json:"data,omitempty"`
}

type commandResult struct {
	IdempotencyKey string `json:"idempotencyKey"`
	Type           string `json:"type"`
	Applied        bool   `json:"applied"`
	Duplicate      bool   `json:"duplicate,omitempty"`
}

type commandResponse struct {
	Results []commandResult `json:"results"`
	Counts  *domain.Counts  `json:"counts,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type client struct {
	base  string
	token string
	http  *http.Client
}

func newClient(base, token string) *client {
	return &client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *client) view(ctx context.Context, filter, search string) (domain.View, error) {
	q := url.Values{}
	if filter != "" {
		q.Set("filter", filter)
	}
	if search != "" {
		q.Set("search", search)
	}
	var v domain.View
	err := c.do(ctx, http.MethodGet, "/api/tasks?"+q.Encode(), nil, &v)
	return v, err
}

func (c *client) send(ctx context.Context, cmds ...command) (commandResponse, error) {
	body, err := sonic.Marshal(cmds)
	if err != nil {
		return commandResponse{}, err
	}
	var resp commandResponse
	err = c.do(ctx, http.MethodPost, "/api/commands", body, &resp)
	return resp, err
}

func (c *client) health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/healthz", nil, nil)
}

func (c *client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
