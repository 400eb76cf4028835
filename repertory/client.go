package repertory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
	"unicode/utf8"

	"github.com/giygas/repertory-api/logging"
	"github.com/giygas/repertory-api/metrics"
	"github.com/giygas/repertory-api/repertory/entities"
	"github.com/juju/ratelimit"
	"golang.org/x/text/encoding/charmap"
)

const DefaultSearchPath = "/api/lookup_rep"

// Request is one authenticated upstream call. Body is a byte slice so the
// request can be replayed after a session refresh.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
	Header http.Header
}

type ClientConfig struct {
	SearchPath string
	// Limiter throttles every outbound call when set
	Limiter *ratelimit.Bucket
	MaxWait time.Duration
}

// Client sends requests to the upstream with the cached session attached
type Client struct {
	session    *SessionManager
	searchPath string
	limiter    *ratelimit.Bucket
	maxWait    time.Duration
}

func NewClient(session *SessionManager, cfg ClientConfig) *Client {
	c := &Client{
		session:    session,
		searchPath: cfg.SearchPath,
		limiter:    cfg.Limiter,
		maxWait:    cfg.MaxWait,
	}
	if c.searchPath == "" {
		c.searchPath = DefaultSearchPath
	}
	if c.maxWait <= 0 {
		c.maxWait = 5 * time.Second
	}
	return c
}

func (c *Client) Session() *SessionManager {
	return c.session
}

// Fetch sends req with the session cookie. A 401 or 403 invalidates the
// session and the request is sent once more with a fresh one; whatever that
// second attempt returns is the result. The caller closes the body.
func (c *Client) Fetch(ctx context.Context, req Request) (*http.Response, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized && resp.StatusCode != http.StatusForbidden {
		return resp, nil
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	logging.Info("repertory_session_rejected", "status", resp.StatusCode, "path", req.Path)
	metrics.RepertoryAuthRetries.Inc()
	c.session.Invalidate()

	return c.send(ctx, req)
}

func (c *Client) send(ctx context.Context, req Request) (*http.Response, error) {
	if c.limiter != nil && !c.limiter.WaitMaxDuration(1, c.maxWait) {
		return nil, ErrUpstreamThrottled
	}

	cookie, err := c.session.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target := c.session.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", req.Path, err)
	}
	httpReq.Header.Set("Accept", jsonAccept)
	for key, values := range req.Header {
		httpReq.Header[key] = values
	}
	httpReq.Header.Set("User-Agent", c.session.UserAgent())
	httpReq.Header.Set("Referer", c.session.Root())
	httpReq.Header.Set("Cookie", cookie)

	start := time.Now()
	resp, err := c.session.http.Do(httpReq)
	if err != nil {
		metrics.RepertoryUpstreamDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, fmt.Errorf("repertory request %s: %w", req.Path, err)
	}
	metrics.RepertoryUpstreamDuration.WithLabelValues(strconv.Itoa(resp.StatusCode)).Observe(time.Since(start).Seconds())

	return resp, nil
}

// Search runs a repertory lookup. No matching rubric is an empty result, not
// an error; an unusable status is an *UpstreamError.
func (c *Client) Search(ctx context.Context, query entities.SearchQuery) (*entities.SearchResult, error) {
	params := url.Values{}
	for key, value := range query.Params() {
		params.Set(key, value)
	}

	resp, err := c.Fetch(ctx, Request{Method: http.MethodGet, Path: c.searchPath, Query: params})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		_, _ = io.Copy(io.Discard, resp.Body)
		return emptyResult(query.Page), nil
	default:
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &UpstreamError{Status: resp.StatusCode, Path: c.searchPath}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading search response: %w", err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return emptyResult(query.Page), nil
	}

	// the upstream occasionally serves latin-1 remedy names
	if !utf8.Valid(raw) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
		if err != nil {
			return nil, fmt.Errorf("decoding latin-1 search response: %w", err)
		}
		raw = decoded
	}

	var result entities.SearchResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	result.Page = query.Page
	for i := range result.Results {
		if result.Results[i].Repertory == "" {
			result.Results[i].Repertory = query.Repertory
		}
	}

	logging.Debug("repertory_search",
		"repertory", query.Repertory,
		"page", query.Page,
		"results", len(result.Results),
	)
	return &result, nil
}

func emptyResult(page int) *entities.SearchResult {
	return &entities.SearchResult{Results: []entities.Rubric{}, Page: page}
}
