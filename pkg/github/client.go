package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"forkcrawl/pkg/config"
	errs "forkcrawl/pkg/errors"
	"forkcrawl/pkg/logger"
	"forkcrawl/pkg/metrics"
)

// maxBodySize bounds how much of a response is read
const maxBodySize = 16 << 20

// Response is a fully read GitHub response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Message returns the "message" field of an error body, or the raw body
func (r *Response) Message() string {
	var e apiError
	if err := json.Unmarshal(r.Body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	msg := strings.TrimSpace(string(r.Body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return msg
}

// Client sends authenticated requests to the GitHub REST API
type Client struct {
	httpClient *http.Client
	baseURL    string
	headers    map[string]string
	logger     logger.Logger
}

// NewClient creates a client for the configured API endpoint
func NewClient(cfg *config.GitHubConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.APIURL, "/"),
		headers: map[string]string{
			"Accept":               "application/vnd.github.v3+json",
			"X-GitHub-Api-Version": cfg.APIVersion,
			"User-Agent":           cfg.UserAgent,
		},
		logger: log,
	}
}

// SetHTTPClient replaces the underlying HTTP client
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// ForksURL builds the fork listing URL for one page, oldest first
func (c *Client) ForksURL(project string, page, perPage int) (string, error) {
	owner, name, ok := strings.Cut(project, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("invalid project %q: want owner/name", project)
	}

	q := url.Values{}
	q.Set("page", fmt.Sprint(page))
	q.Set("per_page", fmt.Sprint(perPage))
	q.Set("sort", "oldest")

	return fmt.Sprintf("%s/repos/%s/%s/forks?%s",
		c.baseURL, url.PathEscape(owner), url.PathEscape(name), q.Encode()), nil
}

// Get performs an authenticated GET and reads the whole body. Only
// transport failures are returned as errors; HTTP error statuses are left
// to the caller.
func (c *Client) Get(ctx context.Context, rawURL, token string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, 0, "failed to create request", err)
	}

	for key, value := range c.headers {
		if value != "" {
			req.Header.Set(key, value)
		}
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    rawURL,
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveRequest(0, duration)
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"url":      rawURL,
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, 0, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	duration = time.Since(start)
	metrics.ObserveRequest(resp.StatusCode, duration)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, resp.StatusCode, "failed to read response body", err)
	}

	logger.LogRequest(c.logger, req.Method, rawURL, resp.StatusCode, duration)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

// HasNextPage reports whether a Link header advertises rel="next"
func HasNextPage(h http.Header) bool {
	for _, link := range h.Values("Link") {
		for _, part := range strings.Split(link, ",") {
			segments := strings.Split(part, ";")
			for _, seg := range segments[1:] {
				if strings.TrimSpace(seg) == `rel="next"` {
					return true
				}
			}
		}
	}
	return false
}
