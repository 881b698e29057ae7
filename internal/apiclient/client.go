// Package apiclient is the JSON-over-HTTP plumbing shared by the knowledge,
// escalation and call log clients.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"voice-agent-go/internal/config"
	"voice-agent-go/internal/logger"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client owns one reusable connection pool against the remote API.
type Client struct {
	BaseURL string
	Timeout time.Duration
	HTTP    *http.Client
	Log     *logger.Logger
}

func New(cfg config.Config, log *logger.Logger) *Client {
	return &Client{
		BaseURL: strings.TrimRight(cfg.APIBaseURL, "/"),
		Timeout: cfg.HTTPTimeout,
		HTTP:    &http.Client{Timeout: cfg.HTTPTimeout, Transport: http.DefaultTransport.(*http.Transport).Clone()},
		Log:     log,
	}
}

// DoJSON sends body (if any) as JSON and decodes a 2xx response into out (if
// non-nil). Every call is bounded by the client timeout.
func (c *Client) DoJSON(ctx context.Context, method, path string, query url.Values, body, out any) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	endpoint := c.BaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s body: %w", path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		return nil
	}
	if len(raw) == 0 {
		return fmt.Errorf("%s %s: empty body", method, path)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("json decode error: %v body=%s", err, string(raw))
	}
	return nil
}

// Retry runs op with exponential backoff until it succeeds, returns a 4xx
// StatusError, ctx ends, or maxElapsed passes.
func Retry(ctx context.Context, maxElapsed time.Duration, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = maxElapsed

	return backoff.Retry(func() error {
		err := op()
		var se *StatusError
		if errors.As(err, &se) && se.Code >= 400 && se.Code < 500 {
			// Permanent: don't retry on client errors
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
}

// Close releases idle connections held by the pool.
func (c *Client) Close() error {
	c.HTTP.CloseIdleConnections()
	return nil
}
