package navgate

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
)

// DefaultUpstreamTimeout bounds forwarded requests when no custom HTTP client
// is supplied.
const DefaultUpstreamTimeout = 30 * time.Second

// hopHeaders are connection level headers that must not be forwarded.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// UpstreamRequest is the forwarded portion of an inbound API call.
type UpstreamRequest struct {
	Method string
	// Path is the subpath under the upstream base URL.
	Path string
	// Query is the raw query string without the leading "?".
	Query  string
	Header http.Header
	Body   []byte
}

// UpstreamResponse carries the upstream reply verbatim so the passthrough
// layer can relay status, headers, and body without interpretation.
type UpstreamResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// UpstreamClient forwards requests to a backing service.
type UpstreamClient interface {
	Do(ctx context.Context, req UpstreamRequest) (*UpstreamResponse, error)
}

// UpstreamClientFunc adapts a function into an UpstreamClient.
type UpstreamClientFunc func(ctx context.Context, req UpstreamRequest) (*UpstreamResponse, error)

// Do satisfies the UpstreamClient interface.
func (f UpstreamClientFunc) Do(ctx context.Context, req UpstreamRequest) (*UpstreamResponse, error) {
	if f == nil {
		return nil, errors.New("upstream client is not configured", errors.CategoryInternal).
			WithTextCode(TextCodeUpstreamFailure)
	}
	return f(ctx, req)
}

// HTTPUpstream forwards requests to a single base URL over HTTP.
type HTTPUpstream struct {
	baseURL string
	client  *http.Client
	logger  Logger
}

// UpstreamOption configures an HTTPUpstream.
type UpstreamOption func(*HTTPUpstream)

// WithUpstreamHTTPClient replaces the default HTTP client.
func WithUpstreamHTTPClient(client *http.Client) UpstreamOption {
	return func(u *HTTPUpstream) {
		if client != nil {
			u.client = client
		}
	}
}

// WithUpstreamTimeout sets the timeout on the default HTTP client.
func WithUpstreamTimeout(timeout time.Duration) UpstreamOption {
	return func(u *HTTPUpstream) {
		if timeout > 0 {
			u.client.Timeout = timeout
		}
	}
}

// WithUpstreamLogger sets the logger used for forwarding failures.
func WithUpstreamLogger(logger Logger) UpstreamOption {
	return func(u *HTTPUpstream) {
		if logger != nil {
			u.logger = logger
		}
	}
}

// NewHTTPUpstream validates the base URL and returns a forwarding client.
func NewHTTPUpstream(baseURL string, opts ...UpstreamOption) (*HTTPUpstream, error) {
	if baseURL == "" {
		return nil, errors.New("upstream base URL is required", errors.CategoryBadInput).
			WithTextCode(TextCodeMissingTarget).
			WithCode(errors.CodeBadRequest)
	}

	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.New("upstream base URL is not absolute", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest).
			WithMetadata(map[string]any{"base_url": baseURL})
	}

	u := &HTTPUpstream{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: DefaultUpstreamTimeout},
		logger:  defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(u)
		}
	}

	return u, nil
}

// BaseURL returns the normalized upstream base URL.
func (u *HTTPUpstream) BaseURL() string {
	return u.baseURL
}

// Do forwards the request and reads the full reply. Hop-by-hop headers are
// stripped in both directions.
func (u *HTTPUpstream) Do(ctx context.Context, upReq UpstreamRequest) (*UpstreamResponse, error) {
	method := upReq.Method
	if method == "" {
		method = http.MethodGet
	}

	target := u.baseURL
	if path := strings.TrimLeft(upReq.Path, "/"); path != "" {
		target += "/" + path
	}
	if upReq.Query != "" {
		target += "?" + upReq.Query
	}

	var body io.Reader
	if len(upReq.Body) > 0 {
		body = bytes.NewReader(upReq.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "failed to build upstream request").
			WithTextCode(TextCodeUpstreamFailure)
	}

	copyForwardHeaders(req.Header, upReq.Header)

	resp, err := u.client.Do(req)
	if err != nil {
		u.logger.Error("upstream request failed", "method", method, "target", target, "error", err)
		return nil, errors.Wrap(err, errors.CategoryExternal, "upstream request failed").
			WithTextCode(TextCodeUpstreamFailure).
			WithCode(errors.CodeInternal).
			WithMetadata(map[string]any{"method": method, "path": upReq.Path})
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		u.logger.Error("upstream response read failed", "method", method, "target", target, "error", err)
		return nil, errors.Wrap(err, errors.CategoryExternal, "failed to read upstream response").
			WithTextCode(TextCodeUpstreamFailure).
			WithCode(errors.CodeInternal)
	}

	out := &UpstreamResponse{
		StatusCode: resp.StatusCode,
		Header:     resp.Header.Clone(),
		Body:       payload,
	}
	stripHopHeaders(out.Header)

	return out, nil
}

func copyForwardHeaders(dst, src http.Header) {
	for key, values := range src {
		if isHopHeader(key) {
			continue
		}
		for _, value := range values {
			dst.Add(key, value)
		}
	}
}

func stripHopHeaders(header http.Header) {
	for _, key := range hopHeaders {
		header.Del(key)
	}
}

func isHopHeader(key string) bool {
	for _, hop := range hopHeaders {
		if strings.EqualFold(key, hop) {
			return true
		}
	}
	return false
}
