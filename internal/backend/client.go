// Package backend talks to the AI feature service. Every call carries the
// session's Google id_token as a bearer token. Calls are never retried.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/justsurfingit/elevate-tracker/internal/auth"
	"github.com/justsurfingit/elevate-tracker/internal/config"
)

var ErrUnauthenticated = errors.New("not signed in")

// HTTPError carries status and body for non-2xx responses.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("backend error: %s %s status=%d body=%s", e.Method, e.URL, e.StatusCode, snippet(e.Body, 300))
}

func snippet(b []byte, max int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

// Response is a relayed backend reply.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

type Client struct {
	BaseURL             string
	HTTP                *http.Client
	SkillBenchmarkLimit time.Duration
}

func New(cfg *config.Config) *Client {
	return &Client{
		BaseURL:             strings.TrimRight(cfg.Backend.BaseURL, "/"),
		HTTP:                &http.Client{},
		SkillBenchmarkLimit: cfg.Backend.SkillBenchmarkLimit,
	}
}

// Forward sends a JSON body to path and returns whatever the backend answered,
// including non-2xx replies. Only transport failures are returned as errors.
func (c *Client) Forward(ctx context.Context, s *auth.Session, method, path string, body []byte) (*Response, error) {
	return c.ForwardAs(ctx, s, method, path, "application/json", body)
}

// ForwardAs is Forward with an explicit request content type, for uploads.
func (c *Client) ForwardAs(ctx context.Context, s *auth.Session, method, path, contentType string, body []byte) (*Response, error) {
	if !s.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if path == "/skill_benchmark" && c.SkillBenchmarkLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.SkillBenchmarkLimit)
		defer cancel()
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if reader != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.IDToken)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

// do sends in as JSON and decodes the reply into out. Non-2xx replies become *HTTPError.
func (c *Client) do(ctx context.Context, s *auth.Session, method, path string, in, out any) error {
	var body []byte
	if in != nil {
		var err error
		if body, err = json.Marshal(in); err != nil {
			return err
		}
	}
	resp, err := c.Forward(ctx, s, method, path, body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{Method: method, URL: c.BaseURL + path, StatusCode: resp.StatusCode, Body: resp.Body}
	}
	if out == nil || len(resp.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
