package instagram

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

	"igcomments/pkg/config"
	errs "igcomments/pkg/errors"
	"igcomments/pkg/logger"
	"igcomments/pkg/ratelimit"
	"igcomments/pkg/retry"
)

// RawRecorder receives every response the client observes, for debugging.
// The decision whether to persist lives behind the interface.
type RawRecorder interface {
	Record(label, requestURL string, params map[string]any, status int, payload any)
}

// Client executes logical endpoint descriptions as paced, retried HTTP
// requests and hands back decoded JSON payloads.
type Client struct {
	httpClient    *http.Client
	headers       map[string]string
	cookies       map[string]string
	pacer         ratelimit.Limiter
	retryAttempts int
	retryDelay    time.Duration
	raw           RawRecorder
	logger        logger.Logger
}

// NewClient creates a client from the crawl configuration
func NewClient(cfg *config.Config, raw RawRecorder, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	transport := http.DefaultTransport
	if cfg.Proxy.HTTP != "" || cfg.Proxy.HTTPS != "" {
		transport = proxyTransport(cfg.Proxy)
	}

	headers := map[string]string{
		"Accept":          "*/*",
		"Accept-Language": "en-US,en;q=0.9",
	}
	for k, v := range cfg.FilteredHeaders() {
		headers[k] = v
	}

	return &Client{
		httpClient: &http.Client{
			Timeout:   cfg.Crawl.Timeout,
			Transport: transport,
		},
		headers:       headers,
		cookies:       cfg.FilteredCookies(),
		pacer:         ratelimit.NewPacer(cfg.Crawl.RequestsPerMinute, cfg.Crawl.JitterRatio),
		retryAttempts: cfg.Crawl.RetryAttempts,
		retryDelay:    cfg.Crawl.RetryDelay,
		raw:           raw,
		logger:        log,
	}
}

func proxyTransport(p config.ProxyConfig) http.RoundTripper {
	return &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			raw := p.HTTP
			if req.URL.Scheme == "https" && p.HTTPS != "" {
				raw = p.HTTPS
			}
			if raw == "" {
				return nil, nil
			}
			return url.Parse(raw)
		},
	}
}

// request is one concrete HTTP call derived from an endpoint description
type request struct {
	method string
	url    string
	query  url.Values
	body   url.Values
}

// buildRequest translates an endpoint description plus resolved variables
// into a concrete request. GraphQL endpoints carry their document ID and a
// JSON-encoded variables field in the body; REST endpoints put fixed params
// in the query string and variables in the body. GET folds everything into
// the query string.
func buildRequest(endpoint *config.Endpoint, variables map[string]any) (*request, error) {
	if endpoint == nil || endpoint.URL == "" {
		return nil, fmt.Errorf("endpoint URL missing")
	}

	method := strings.ToUpper(endpoint.Method)
	if method == "" {
		method = http.MethodPost
	}

	query := url.Values{}
	body := url.Values{}

	if endpoint.Type == "" || endpoint.Type == "graphql" {
		if endpoint.DocID != "" {
			body.Set("doc_id", endpoint.DocID)
		}
		if endpoint.QueryHash != "" {
			body.Set("query_hash", endpoint.QueryHash)
		}
		for k, v := range endpoint.Params {
			body.Set(k, v)
		}
		if len(variables) > 0 {
			encoded, err := json.Marshal(variables)
			if err != nil {
				return nil, fmt.Errorf("failed to encode variables: %w", err)
			}
			body.Set("variables", string(encoded))
		}
	} else {
		for k, v := range endpoint.Params {
			query.Set(k, v)
		}
		for k, v := range variables {
			body.Set(k, toParamString(v))
		}
	}

	if method == http.MethodGet {
		for k, vs := range body {
			for _, v := range vs {
				query.Add(k, v)
			}
		}
		body = url.Values{}
	}

	return &request{method: method, url: endpoint.URL, query: query, body: body}, nil
}

func toParamString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		if b, err := json.Marshal(t); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", t)
	}
}

// Execute runs one endpoint call with rate limiting and retries. Transport
// failures retry after a fixed delay; 429 and the usual 5xx statuses retry
// with linear backoff; any other non-200 is terminal. Exhausting attempts
// returns a nil payload, never a panic, so callers can treat every failure
// the same way.
func (c *Client) Execute(ctx context.Context, endpoint *config.Endpoint, variables map[string]any) map[string]any {
	req, err := buildRequest(endpoint, variables)
	if err != nil {
		c.logger.WithError(err).Error("failed to build request")
		return nil
	}

	var payload map[string]any
	var statusBackoff bool

	op := func() error {
		if err := c.pacer.Wait(ctx); err != nil {
			return err
		}

		status, decoded, err := c.do(ctx, req)
		if err != nil {
			statusBackoff = false
			return err
		}

		c.recordRaw(req, status, decoded)

		if status == http.StatusOK {
			payload = decoded
			return nil
		}
		statusBackoff = true
		return statusError(status)
	}

	// Transport failures wait the base delay; retryable statuses grow the
	// delay linearly with the attempt number
	constant := &retry.ConstantBackoff{Delay: c.retryDelay}
	linear := &retry.LinearBackoff{BaseDelay: c.retryDelay}
	backoff := retry.BackoffFunc(func(attempt int) time.Duration {
		if statusBackoff {
			return linear.NextDelay(attempt)
		}
		return constant.NextDelay(attempt)
	})

	err = retry.Do(ctx, op, &retry.Config{
		MaxAttempts: c.retryAttempts,
		Backoff:     backoff,
		Logger:      c.logger,
	})
	if err != nil {
		c.logger.ErrorWithFields("request failed", map[string]interface{}{
			"url":   req.url,
			"error": err.Error(),
		})
		return nil
	}
	return payload
}

// statusError classifies a non-200 status so the retry predicate can tell
// transient statuses from terminal ones.
func statusError(status int) *errs.Error {
	switch {
	case status == http.StatusTooManyRequests:
		return &errs.Error{Type: errs.ErrorTypeRateLimit, Message: "rate limited", Code: status}
	case errs.IsRetryableStatusCode(status):
		return &errs.Error{Type: errs.ErrorTypeServerError, Message: "server error", Code: status}
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return &errs.Error{Type: errs.ErrorTypeAuth, Message: "authentication rejected", Code: status}
	case status == http.StatusNotFound:
		return &errs.Error{Type: errs.ErrorTypeNotFound, Message: "not found", Code: status}
	default:
		return &errs.Error{Type: errs.ErrorTypeUnknown, Message: "unexpected status", Code: status}
	}
}

// do performs one physical HTTP round trip and decodes the response body.
// Numbers decode as json.Number so IDs above 2^53 keep their exact digits.
// A body that is not valid JSON is wrapped so it still reaches the raw store.
func (c *Client) do(ctx context.Context, req *request) (int, map[string]any, error) {
	target := req.url
	if len(req.query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target = target + sep + req.query.Encode()
	}

	var bodyReader io.Reader
	if len(req.body) > 0 {
		bodyReader = strings.NewReader(req.body.Encode())
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, bodyReader)
	if err != nil {
		return 0, nil, &errs.Error{Type: errs.ErrorTypeUnknown, Message: err.Error()}
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	if len(req.body) > 0 {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for name, value := range c.cookies {
		httpReq.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return 0, nil, &errs.Error{Type: errs.ErrorTypeNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &errs.Error{Type: errs.ErrorTypeNetwork, Message: err.Error(), Code: resp.StatusCode}
	}

	var payload map[string]any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&payload); err != nil {
		payload = map[string]any{"error": string(raw)}
	}

	c.logger.DebugWithFields("request completed", map[string]interface{}{
		"method":   req.method,
		"url":      req.url,
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	})

	return resp.StatusCode, payload, nil
}

func (c *Client) recordRaw(req *request, status int, payload any) {
	if c.raw == nil {
		return
	}
	params := map[string]any{
		"params": req.query.Encode(),
		"data":   req.body.Encode(),
	}
	c.raw.Record("response", req.url, params, status, payload)
}

// GetText fetches a URL and returns its body as text. Used by the HTML
// scrape fallback during identity resolution.
func (c *Client) GetText(ctx context.Context, target string) (string, error) {
	if err := c.pacer.Wait(ctx); err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	for name, value := range c.cookies {
		httpReq.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &errs.Error{Type: errs.ErrorTypeNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &errs.Error{Type: errs.ErrorTypeServerError, Message: "unexpected status", Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
