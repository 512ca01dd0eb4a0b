package monitorclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/autobrr/botmon/pkg/history"
	"github.com/autobrr/botmon/pkg/logger"
	"github.com/autobrr/botmon/pkg/monitor"
	"github.com/autobrr/botmon/pkg/registry"
	"github.com/autobrr/botmon/pkg/sharedhttp"
	"github.com/autobrr/botmon/pkg/version"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	"github.com/rs/xid"
)

const DefaultClientTimeout = 15 * time.Second

var ErrUnauthorized = errors.New("unauthorized")

type Client struct {
	http *http.Client

	baseUrl string
	token   string

	attempts   uint
	retryDelay time.Duration
}

type Option func(*Client)

// WithInsecure skips TLS verification for self signed endpoints.
func WithInsecure() Option {
	return func(c *Client) {
		c.http.Transport = sharedhttp.TransportTLSInsecure
	}
}

func WithRetry(attempts uint, delay time.Duration) Option {
	if delay <= 0 {
		delay = time.Millisecond
	}
	return func(c *Client) {
		c.attempts = attempts
		c.retryDelay = delay
	}
}

func NewClient(addr, token string, opts ...Option) *Client {
	c := &Client{
		baseUrl: addr,
		token:   token,
		http: &http.Client{
			Timeout:   DefaultClientTimeout,
			Transport: sharedhttp.Transport,
		},
		attempts:   3,
		retryDelay: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func (c *Client) GetStatus(ctx context.Context) (*monitor.Status, error) {
	var st monitor.Status
	if err := c.get(ctx, "status", nil, &st); err != nil {
		return nil, errors.Wrap(err, "could not get status")
	}
	return &st, nil
}

func (c *Client) GetTasks(ctx context.Context) (*registry.Snapshot, error) {
	var snap registry.Snapshot
	if err := c.get(ctx, "tasks", nil, &snap); err != nil {
		return nil, errors.Wrap(err, "could not get tasks")
	}
	return &snap, nil
}

func (c *Client) GetLogs(ctx context.Context) ([]string, error) {
	var lines []string
	if err := c.get(ctx, "logs", nil, &lines); err != nil {
		return nil, errors.Wrap(err, "could not get logs")
	}
	return lines, nil
}

func (c *Client) GetHistory(ctx context.Context, limit int) ([]history.Entry, error) {
	var params map[string]string
	if limit > 0 {
		params = map[string]string{"limit": strconv.Itoa(limit)}
	}

	var entries []history.Entry
	if err := c.get(ctx, "history", params, &entries); err != nil {
		return nil, errors.Wrap(err, "could not get history")
	}
	return entries, nil
}

func (c *Client) GetHistorySummary(ctx context.Context) (*history.Summary, error) {
	var sum history.Summary
	if err := c.get(ctx, "history/summary", nil, &sum); err != nil {
		return nil, errors.Wrap(err, "could not get history summary")
	}
	return &sum, nil
}

// ClearTasks is not retried, a repeated clear could remove tasks finished in between.
func (c *Client) ClearTasks(ctx context.Context, filter registry.ClearFilter) (int, error) {
	reqUrl, err := c.buildUrl("tasks/clear", nil)
	if err != nil {
		return 0, err
	}

	body, err := json.Marshal(monitor.ClearRequest{Type: filter})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqUrl.String(), bytes.NewBuffer(body))
	if err != nil {
		return 0, errors.Wrap(err, "could not create request")
	}

	req.Header.Set("Content-Type", "application/json")
	c.setHeaders(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, errors.Wrap(err, "error during clear request")
	}

	defer resp.Body.Close()

	var res monitor.ClearResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return 0, errors.Wrapf(err, "could not decode clear response, status: %d", resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK || !res.Success {
		return 0, errors.Errorf("clear failed: %d %s", resp.StatusCode, res.Error)
	}

	return res.Cleared, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params map[string]string, out any) error {
	reqUrl, err := c.buildUrl(endpoint, params)
	if err != nil {
		return err
	}

	return retry.Do(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqUrl.String(), nil)
		if err != nil {
			return retry.Unrecoverable(errors.Wrap(err, "could not create request"))
		}

		c.setHeaders(ctx, req)

		resp, err := c.http.Do(req)
		if err != nil {
			return errors.Wrapf(err, "error during request: %s", endpoint)
		}

		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return retry.Unrecoverable(ErrUnauthorized)
		case resp.StatusCode >= 400 && resp.StatusCode < 500:
			return retry.Unrecoverable(errors.Errorf("unexpected status: %d", resp.StatusCode))
		case resp.StatusCode != http.StatusOK:
			_, _ = io.Copy(io.Discard, resp.Body)
			return errors.Errorf("unexpected status: %d", resp.StatusCode)
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return retry.Unrecoverable(errors.Wrapf(err, "could not decode response: %s", endpoint))
		}

		return nil
	},
		retry.Context(ctx),
		retry.Attempts(c.attempts),
		retry.Delay(c.retryDelay),
		retry.MaxJitter(c.retryDelay),
		retry.LastErrorOnly(true),
	)
}

func (c *Client) setHeaders(ctx context.Context, req *http.Request) {
	if c.token != "" {
		req.Header.Set("X-API-Token", c.token)
	}
	req.Header.Set("User-Agent", "botmon-client-"+version.Version)

	id := logger.CorrelationID(ctx)
	if id == "" {
		id = xid.New().String()
	}
	req.Header.Set("X-Correlation-ID", id)
}

func (c *Client) buildUrl(endpoint string, params map[string]string) (*url.URL, error) {
	joinedUrl, err := url.JoinPath(c.baseUrl, "/api/", endpoint)
	if err != nil {
		return nil, errors.Wrapf(err, "could not build url for: %s", endpoint)
	}

	parsedUrl, err := url.Parse(joinedUrl)
	if err != nil {
		return nil, err
	}

	queryParams := url.Values{}
	for key, value := range params {
		queryParams.Add(key, value)
	}
	parsedUrl.RawQuery = queryParams.Encode()

	return parsedUrl, nil
}
