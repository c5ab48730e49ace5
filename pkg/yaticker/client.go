// Package yaticker is a Go client for the yaticker HTTP API.
package yaticker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Bar is one OHLCV sample as served by GET /ticker/{symbol}.
type Bar struct {
	Time   time.Time `json:"-"`
	Open   float64   `json:"Open"`
	High   float64   `json:"High"`
	Low    float64   `json:"Low"`
	Close  float64   `json:"Close"`
	Volume int64     `json:"Volume"`
}

// Summary is the body of GET /summary/{symbol}.
type Summary struct {
	Symbol        string   `json:"symbol"`
	PreviousClose *float64 `json:"previous_close,omitempty"`
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("yaticker api: %d %s", e.Code, e.Message)
}

// Client talks to a yaticker server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL, for example
// "http://127.0.0.1:8080".
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Health reports nil when the server answers its health check.
func (c *Client) Health(ctx context.Context) error {
	var out map[string]string
	return c.get(ctx, "/healthz", &out)
}

// Ticker retrieves the bars of symbol over period at interval, oldest first.
// Empty period or interval selects the server defaults.
func (c *Client) Ticker(ctx context.Context, symbol, period, interval string) ([]Bar, error) {
	q := url.Values{}
	if period != "" {
		q.Set("period", period)
	}
	if interval != "" {
		q.Set("interval", interval)
	}
	path := "/ticker/" + url.PathEscape(symbol)
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var raw map[string]Bar
	if err := c.get(ctx, path, &raw); err != nil {
		return nil, err
	}
	bars := make([]Bar, 0, len(raw))
	for k, b := range raw {
		ms, err := strconv.ParseInt(k, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("yaticker api: bad timestamp key %q", k)
		}
		b.Time = time.UnixMilli(ms).UTC()
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars, nil
}

// Summary retrieves the reference information of symbol.
func (c *Client) Summary(ctx context.Context, symbol string) (Summary, error) {
	var out Summary
	err := c.get(ctx, "/summary/"+url.PathEscape(symbol), &out)
	return out, err
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		var body struct {
			Error string `json:"error"`
		}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(data, &body) != nil || body.Error == "" {
			body.Error = strings.TrimSpace(string(data))
		}
		return &StatusError{Code: resp.StatusCode, Message: body.Error}
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
