package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"IndexSDK/pkg/logger"
	"IndexSDK/pkg/query"
	"IndexSDK/pkg/reqid"
)

// RequestOptions holds HTTP request parameters.
type RequestOptions struct {
	Method  string
	Path    string
	Headers map[string]string
	Query   query.Options
	Params  url.Values
	Body    interface{}
	Timeout time.Duration
}

// RequestOption configures one call made through a verb helper.
type RequestOption func(*RequestOptions)

// WithHeaders sets request headers. The map is copied before any header is added.
func WithHeaders(h map[string]string) RequestOption {
	return func(o *RequestOptions) {
		o.Headers = h
	}
}

// WithHeader sets one header without touching any map passed to WithHeaders.
func WithHeader(key, value string) RequestOption {
	return func(o *RequestOptions) {
		h := make(map[string]string, len(o.Headers)+1)
		for k, v := range o.Headers {
			h[k] = v
		}
		h[key] = value
		o.Headers = h
	}
}

// WithRequestID pins the correlation id for this call.
func WithRequestID(id string) RequestOption {
	return WithHeader(reqid.Header, id)
}

// WithQuery sets normalized query options.
func WithQuery(q query.Options) RequestOption {
	return func(o *RequestOptions) {
		o.Query = q
	}
}

// WithFilter normalizes f into query options.
func WithFilter(f query.Filter) RequestOption {
	return func(o *RequestOptions) {
		o.Query = query.Normalize(f)
	}
}

// WithParams sets raw query params. Mutually exclusive with WithQuery.
func WithParams(p url.Values) RequestOption {
	return func(o *RequestOptions) {
		o.Params = p
	}
}

// WithBody sets the request body; structs and maps are sent as JSON.
func WithBody(body interface{}) RequestOption {
	return func(o *RequestOptions) {
		o.Body = body
	}
}

// WithRequestTimeout overrides the session timeout for this call only.
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(o *RequestOptions) {
		o.Timeout = d
	}
}

// Response is a fully read upstream response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Method     string
	URL        string
	RequestID  string
}

// JSON decodes the body into dest.
func (r *Response) JSON(dest interface{}) error {
	if err := json.Unmarshal(r.Body, dest); err != nil {
		return fmt.Errorf("decode json from %s: %w", r.URL, err)
	}
	return nil
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// Request attaches the correlation id, sends, and turns any non-2xx into *APIError.
func (s *Session) Request(ctx context.Context, opts RequestOptions) (*Response, error) {
	headers, explicit, set := splitRequestID(opts.Headers)
	id, src := s.ids.Resolve(ctx, explicit, set)
	if id != "" {
		headers[reqid.Header] = id
	}
	opts.Headers = headers

	resp, err := s.Send(ctx, opts)
	if err != nil {
		s.log.Error("upstream call failed",
			logger.String("method", opts.Method),
			logger.String("path", opts.Path),
			logger.String("request_id", id),
			logger.Error(err),
		)
		return nil, err
	}

	resp.RequestID = id
	if echoed := resp.Header.Get(reqid.Header); echoed != "" {
		resp.RequestID = echoed
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := newAPIError(resp)
		s.log.Warn("upstream returned error status",
			logger.String("method", resp.Method),
			logger.String("url", resp.URL),
			logger.Int("status", resp.StatusCode),
			logger.String("request_id", resp.RequestID),
			logger.String("request_id_source", src.String()),
		)
		return nil, apiErr
	}
	return resp, nil
}

func (s *Session) verb(ctx context.Context, method, path string, opts []RequestOption) (*Response, error) {
	ro := RequestOptions{Method: method, Path: path}
	for _, opt := range opts {
		opt(&ro)
	}
	return s.Request(ctx, ro)
}

// Get issues a GET.
func (s *Session) Get(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return s.verb(ctx, MethodGet, path, opts)
}

// Put issues a PUT.
func (s *Session) Put(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return s.verb(ctx, MethodPut, path, opts)
}

// Patch issues a PATCH.
func (s *Session) Patch(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return s.verb(ctx, MethodPatch, path, opts)
}

// Post issues a POST.
func (s *Session) Post(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return s.verb(ctx, MethodPost, path, opts)
}

// Delete issues a DELETE.
func (s *Session) Delete(ctx context.Context, path string, opts ...RequestOption) (*Response, error) {
	return s.verb(ctx, MethodDelete, path, opts)
}

// splitRequestID copies headers without the correlation id key, reporting the
// caller's value and whether the key was present at all.
func splitRequestID(in map[string]string) (map[string]string, string, bool) {
	out := make(map[string]string, len(in)+1)
	var (
		explicit string
		set      bool
	)
	for k, v := range in {
		if http.CanonicalHeaderKey(k) == http.CanonicalHeaderKey(reqid.Header) {
			explicit, set = v, true
			continue
		}
		out[k] = v
	}
	return out, explicit, set
}

func newAPIError(resp *Response) *APIError {
	body := map[string]any{}
	if err := json.Unmarshal(resp.Body, &body); err != nil || body == nil {
		body = map[string]any{}
	}
	return &APIError{
		Status:    resp.StatusCode,
		Body:      body,
		RequestID: resp.RequestID,
		Method:    resp.Method,
		URL:       resp.URL,
	}
}
