package clients

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

	"storefront-service/logger"
)

// forwardedHeaders are copied from the inbound request to upstream calls.
var forwardedHeaders = []string{"Authorization", "X-Request-ID", "Accept-Language"}

// GatewayClient issues JSON requests against one upstream base URL.
type GatewayClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGatewayClient creates a client for baseURL with the given timeout.
func NewGatewayClient(baseURL string, timeout time.Duration) *GatewayClient {
	return &GatewayClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the upstream base URL.
func (g *GatewayClient) BaseURL() string {
	return g.baseURL
}

// Do sends a request to path. Only a fixed set of inbound headers is
// forwarded; the request ID from ctx is always propagated.
func (g *GatewayClient) Do(ctx context.Context, method, path string, query url.Values, headers http.Header, body io.Reader) (*http.Response, error) {
	target := g.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for _, h := range forwardedHeaders {
		if v := headers.Get(h); v != "" {
			req.Header.Set(h, v)
		}
	}
	if req.Header.Get("X-Request-ID") == "" {
		if rid := logger.RequestID(ctx); rid != "unknown" {
			req.Header.Set("X-Request-ID", rid)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// DoJSON marshals payload (when non-nil) and sends it.
func (g *GatewayClient) DoJSON(ctx context.Context, method, path string, query url.Values, headers http.Header, payload any) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	return g.Do(ctx, method, path, query, headers, body)
}

// ReadBody reads and closes resp.Body.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(io.LimitReader(resp.Body, 10<<20))
}

// ErrorMessage extracts a human-readable message from an error body of the
// shape {"error": "..."} or {"message": "..."}.
func ErrorMessage(body []byte, status int) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != "" {
			return payload.Error
		}
		if payload.Message != "" {
			return payload.Message
		}
	}
	return fmt.Sprintf("upstream returned %d", status)
}

type headersKey struct{}

// WithForwardHeaders stores the inbound request headers in ctx so typed
// clients can forward the allowed subset upstream.
func WithForwardHeaders(ctx context.Context, h http.Header) context.Context {
	return context.WithValue(ctx, headersKey{}, h.Clone())
}

func requestHeaders(ctx context.Context) http.Header {
	if h, ok := ctx.Value(headersKey{}).(http.Header); ok {
		return h
	}
	return http.Header{}
}
