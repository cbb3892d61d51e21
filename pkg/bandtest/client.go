// Package bandtest is a Go SDK for the bandtest-server HTTP API.
package bandtest

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
)

// Client provides a Go SDK for interacting with the bandtest-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new bandtest API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bandtest: %d %s", e.StatusCode, e.Message)
}

// RunBacktest runs a backtest on the server.
func (c *Client) RunBacktest(ctx context.Context, req BacktestRequest) (*BacktestResponse, error) {
	var resp BacktestResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/backtest", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetBars retrieves the bars a backtest over [start, end] would use,
// warm-up window included.
func (c *Client) GetBars(ctx context.Context, symbol, source string, start, end time.Time) ([]Bar, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	if source != "" {
		q.Set("source", source)
	}
	q.Set("start", start.Format("2006-01-02"))
	q.Set("end", end.Format("2006-01-02"))

	var resp struct {
		Bars []Bar `json:"bars"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/bars?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Bars, nil
}

// ListProfiles retrieves the stored symbol profiles.
func (c *Client) ListProfiles(ctx context.Context) ([]Profile, error) {
	var resp struct {
		Profiles []Profile `json:"profiles"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/profiles", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Profiles, nil
}

// ListStrategies retrieves the registered strategies and bar sources.
func (c *Client) ListStrategies(ctx context.Context) (*Strategies, error) {
	var resp Strategies
	if err := c.do(ctx, http.MethodGet, "/api/v1/strategies", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}
