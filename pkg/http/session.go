package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"IndexSDK/pkg/logger"
	"IndexSDK/pkg/metrics"
	"IndexSDK/pkg/reqid"
)

const userAgent = "indexsdk-go"

// SessionOption configures Session.
type SessionOption func(*Session)

// Session performs authenticated calls against one base URL with retries and a
// per-process connection pool. It is safe for concurrent use.
type Session struct {
	token  string
	cfg    SessionConfig
	policy RetryPolicy
	ids    *reqid.Generator

	limiter   *rate.Limiter
	transport http.RoundTripper
	log       *logger.Logger
	metrics   *metrics.Recorder
	getpid    func() int
	sleep     func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	client *http.Client
	pid    int
}

// NewSession validates cfg (filling defaults) and returns a session for token.
// An empty token sends no Authorization header.
func NewSession(token string, cfg SessionConfig, opts ...SessionOption) (*Session, error) {
	if err := ValidateStruct(&cfg); err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}
	if _, err := parseBase(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("session config: %w", err)
	}

	s := &Session{
		token:  token,
		cfg:    cfg,
		policy: NewRetryPolicy(cfg),
		log:    logger.Nop(),
		getpid: os.Getpid,
		sleep:  sleepContext,
	}
	if !cfg.DisableRequestID {
		s.ids = reqid.NewGenerator(cfg.RequestIDPrefix)
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.Burst)
	}

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the effective configuration.
func (s *Session) Config() SessionConfig { return s.cfg }

// Policy returns the retry policy.
func (s *Session) Policy() RetryPolicy { return s.policy }

// Send performs one logical request: auth, query encoding, timeout, retries.
// Any response that is not retried is returned as is, whatever its status.
func (s *Session) Send(ctx context.Context, opts RequestOptions) (*Response, error) {
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = MethodGet
	}
	if _, ok := validMethods[method]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, opts.Method)
	}
	if len(opts.Query) > 0 && len(opts.Params) > 0 {
		return nil, ErrConflictingQuery
	}

	target, err := joinURL(s.cfg.BaseURL, opts.Path)
	if err != nil {
		return nil, err
	}
	q := target.Query()
	for k, v := range opts.Query {
		q.Set(k, v)
	}
	for k, vs := range opts.Params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	target.RawQuery = q.Encode()
	url := target.String()

	body, contentType, err := encodeBody(opts.Body)
	if err != nil {
		return nil, fmt.Errorf("create body: %w", err)
	}
	header := s.buildHeader(opts.Headers, contentType)

	timeout := s.cfg.RequestTimeout
	if opts.Timeout > 0 {
		timeout = opts.Timeout
	}
	retryable := s.policy.AllowsMethod(method)

	for attempt := 0; ; attempt++ {
		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return nil, &TransportError{Method: method, URL: url, Attempts: attempt, Err: err}
			}
		}

		resp, err := s.do(ctx, method, url, body, header, timeout)
		if err != nil {
			if retryable && attempt < s.policy.Retries && ctx.Err() == nil {
				if werr := s.wait(ctx, method, url, attempt, "transport", err); werr != nil {
					return nil, &TransportError{Method: method, URL: url, Attempts: attempt + 1, Err: werr}
				}
				continue
			}
			return nil, &TransportError{Method: method, URL: url, Attempts: attempt + 1, Err: err}
		}

		if retryable && s.policy.RetryStatus(resp.StatusCode) {
			if attempt < s.policy.Retries {
				reason := fmt.Sprintf("status_%d", resp.StatusCode)
				if werr := s.wait(ctx, method, url, attempt, reason, nil); werr != nil {
					return nil, &TransportError{Method: method, URL: url, Attempts: attempt + 1, Status: resp.StatusCode, Err: werr}
				}
				continue
			}
			return nil, &TransportError{
				Method:   method,
				URL:      url,
				Attempts: attempt + 1,
				Status:   resp.StatusCode,
				Err:      ErrRetriesExhausted,
			}
		}
		return resp, nil
	}
}

func (s *Session) do(ctx context.Context, method, url string, body []byte, header http.Header, timeout time.Duration) (*Response, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rdr)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header = header.Clone()

	start := time.Now()
	resp, err := s.httpClient().Do(req)
	if err != nil {
		s.metrics.RecordRequest(method, 0, time.Since(start))
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	s.metrics.RecordRequest(method, resp.StatusCode, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	s.log.Debug("upstream call",
		logger.String("method", method),
		logger.String("url", url),
		logger.Int("status", resp.StatusCode),
		logger.Duration("elapsed_ms", time.Since(start)),
	)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		Method:     method,
		URL:        url,
	}, nil
}

func (s *Session) wait(ctx context.Context, method, url string, attempt int, reason string, cause error) error {
	d := s.policy.Backoff(attempt)
	s.metrics.RecordRetry(method, reason)

	fields := []logger.Field{
		logger.String("method", method),
		logger.String("url", url),
		logger.Int("attempt", attempt+1),
		logger.String("reason", reason),
		logger.Duration("backoff_ms", d),
	}
	if cause != nil {
		fields = append(fields, logger.Error(cause))
	}
	s.log.Warn("retrying upstream call", fields...)

	return s.sleep(ctx, d)
}

// httpClient returns the pooled client, building a new one when none exists or
// the process id changed since it was built.
func (s *Session) httpClient() *http.Client {
	s.mu.Lock()
	defer s.mu.Unlock()

	pid := s.getpid()
	if s.client != nil && s.pid == pid {
		return s.client
	}
	if s.client != nil {
		s.client.CloseIdleConnections()
		s.log.Info("process changed, rebuilding connection pool",
			logger.Int("old_pid", s.pid),
			logger.Int("pid", pid),
		)
	}

	transport := s.transport
	if transport == nil {
		transport = http.DefaultTransport.(*http.Transport).Clone()
	}
	s.client = &http.Client{Transport: transport}
	s.pid = pid
	return s.client
}

// Close releases pooled connections. The session stays usable; the next call
// builds a fresh pool.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		s.client.CloseIdleConnections()
		s.client = nil
		s.pid = 0
	}
	return nil
}

func (s *Session) buildHeader(in map[string]string, contentType string) http.Header {
	h := make(http.Header, len(in)+4)
	for k, v := range in {
		h.Set(k, v)
	}
	if s.token != "" {
		h.Set("Authorization", s.cfg.TokenType+" "+s.token)
	}
	if contentType != "" && h.Get("Content-Type") == "" {
		h.Set("Content-Type", contentType)
	}
	if h.Get("Accept") == "" {
		h.Set("Accept", "application/json")
	}
	if h.Get("User-Agent") == "" {
		h.Set("User-Agent", userAgent)
	}
	return h
}

func encodeBody(body interface{}) ([]byte, string, error) {
	switch v := body.(type) {
	case nil:
		return nil, "", nil
	case []byte:
		return v, "", nil
	case string:
		return []byte(v), "", nil
	case io.Reader:
		b, err := io.ReadAll(v)
		return b, "", err
	case json.RawMessage:
		return v, "application/json", nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("marshal json: %w", err)
		}
		return b, "application/json", nil
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// WithLogger sets the session logger.
func WithLogger(l *logger.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records attempts and retries on r.
func WithMetrics(r *metrics.Recorder) SessionOption {
	return func(s *Session) {
		s.metrics = r
	}
}

// WithTransport replaces the pooled transport, mostly for tests.
func WithTransport(rt http.RoundTripper) SessionOption {
	return func(s *Session) {
		s.transport = rt
	}
}

// WithPIDFunc replaces os.Getpid, for simulating a fork in tests.
func WithPIDFunc(fn func() int) SessionOption {
	return func(s *Session) {
		s.getpid = fn
	}
}

// WithSleep replaces the backoff sleep.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) SessionOption {
	return func(s *Session) {
		s.sleep = fn
	}
}

// WithRequestIDGenerator replaces the id generator; nil disables generation.
func WithRequestIDGenerator(g *reqid.Generator) SessionOption {
	return func(s *Session) {
		s.ids = g
	}
}

var _ io.Closer = (*Session)(nil)

// IsTransport reports whether err is a connection-level failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
