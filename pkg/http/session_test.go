package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IndexSDK/pkg/query"
	"IndexSDK/pkg/reqid"
)

type seenRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

type upstream struct {
	*httptest.Server
	mu   sync.Mutex
	seen []seenRequest
}

func (u *upstream) requests() []seenRequest {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]seenRequest(nil), u.seen...)
}

// newUpstream starts a server; handler receives the 0-based call number.
func newUpstream(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, call int)) *upstream {
	t.Helper()
	u := &upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		u.mu.Lock()
		call := len(u.seen)
		u.seen = append(u.seen, seenRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Header: r.Header.Clone(),
			Body:   string(body),
		})
		u.mu.Unlock()
		handler(w, r, call)
	}))
	t.Cleanup(u.Close)
	return u
}

func okJSON(body string) func(http.ResponseWriter, *http.Request, int) {
	return func(w http.ResponseWriter, _ *http.Request, _ int) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}
}

type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(_ context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return nil
}

func newTestSession(t *testing.T, baseURL string, cfg SessionConfig, opts ...SessionOption) (*Session, *sleepRecorder) {
	t.Helper()
	cfg.BaseURL = baseURL
	sl := &sleepRecorder{}
	opts = append([]SessionOption{WithSleep(sl.sleep)}, opts...)
	s, err := NewSession("secret", cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, sl
}

func TestNewSessionDefaults(t *testing.T) {
	s, err := NewSession("", SessionConfig{})
	require.NoError(t, err)

	cfg := s.Config()
	assert.Equal(t, DefaultBaseURL, cfg.BaseURL)
	assert.Equal(t, "APIKEY", cfg.TokenType)
	assert.Equal(t, 3, cfg.Retries)
	assert.Equal(t, 0.3, cfg.BackoffFactor)
	assert.Equal(t, []int{502, 504}, cfg.StatusForcelist)
	assert.Equal(t, []string{"GET"}, cfg.AllowedMethods)
	assert.Equal(t, reqid.DefaultPrefix, cfg.RequestIDPrefix)
}

func TestNewSessionRejectsUnknownRetryMethod(t *testing.T) {
	_, err := NewSession("", SessionConfig{AllowedMethods: []string{"FETCH"}})
	var verrs ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, "ERR_ONEOF", verrs[0].Code)
}

func TestNewSessionRejectsRelativeBase(t *testing.T) {
	_, err := NewSession("", SessionConfig{BaseURL: "api.merqube.com"})
	assert.Error(t, err)
}

func TestJoinURL(t *testing.T) {
	cases := []struct {
		base, path, want string
	}{
		{"https://api.merqube.com", "/index", "https://api.merqube.com/index"},
		{"https://api.merqube.com", "index", "https://api.merqube.com/index"},
		{"https://api.merqube.com/", "index", "https://api.merqube.com/index"},
		{"https://api.merqube.com/v1", "/index", "https://api.merqube.com/index"},
		{"https://api.merqube.com/v1", "index", "https://api.merqube.com/v1/index"},
		// never protocol-relative
		{"https://api.merqube.com", "//evil.example/index", "https://api.merqube.com/evil.example/index"},
		{"https://api.merqube.com", "///index", "https://api.merqube.com/index"},
		{"https://api.merqube.com", "/index?name=abc", "https://api.merqube.com/index?name=abc"},
		{"https://api.merqube.com", "https://staging.api.merqube.com/index", "https://staging.api.merqube.com/index"},
	}
	for _, tc := range cases {
		got, err := joinURL(tc.base, tc.path)
		require.NoError(t, err, tc.path)
		assert.Equal(t, tc.want, got.String(), "base=%s path=%s", tc.base, tc.path)
	}
}

func TestSendAddsAuthWithoutMutatingCallerHeaders(t *testing.T) {
	up := newUpstream(t, okJSON(`{}`))
	s, _ := newTestSession(t, up.URL, SessionConfig{})

	headers := map[string]string{"X-Custom": "1"}
	_, err := s.Send(context.Background(), RequestOptions{Method: "get", Path: "/index", Headers: headers})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"X-Custom": "1"}, headers)
	got := up.requests()[0]
	assert.Equal(t, "APIKEY secret", got.Header.Get("Authorization"))
	assert.Equal(t, "1", got.Header.Get("X-Custom"))
	assert.Equal(t, http.MethodGet, got.Method)
}

func TestSendEncodesQueryAndBody(t *testing.T) {
	up := newUpstream(t, okJSON(`{}`))
	s, _ := newTestSession(t, up.URL, SessionConfig{})

	_, err := s.Send(context.Background(), RequestOptions{
		Method: MethodPost,
		Path:   "/index?type=all",
		Query:  query.Options{"names": "a,b"},
		Body:   map[string]string{"name": "TEST"},
	})
	require.NoError(t, err)

	got := up.requests()[0]
	assert.Equal(t, "names=a%2Cb&type=all", got.Query)
	assert.JSONEq(t, `{"name":"TEST"}`, got.Body)
	assert.Equal(t, "application/json", got.Header.Get("Content-Type"))
}

func TestSendRejectsQueryWithParams(t *testing.T) {
	up := newUpstream(t, okJSON(`{}`))
	s, _ := newTestSession(t, up.URL, SessionConfig{})

	_, err := s.Send(context.Background(), RequestOptions{
		Path:   "/index",
		Query:  query.Options{"a": "1"},
		Params: map[string][]string{"b": {"2"}},
	})
	assert.ErrorIs(t, err, ErrConflictingQuery)
	assert.Empty(t, up.requests())
}

func TestSendRejectsUnknownMethod(t *testing.T) {
	up := newUpstream(t, okJSON(`{}`))
	s, _ := newTestSession(t, up.URL, SessionConfig{})

	_, err := s.Send(context.Background(), RequestOptions{Method: "BREW", Path: "/"})
	assert.ErrorIs(t, err, ErrInvalidMethod)
	assert.Empty(t, up.requests())
}

func TestRetryOnForcelistedStatus(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, _ *http.Request, call int) {
		if call < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{"ok":true}`)
	})
	s, sl := newTestSession(t, up.URL, SessionConfig{})

	resp, err := s.Get(context.Background(), "/index")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, up.requests(), 3)
	assert.Equal(t, []time.Duration{300 * time.Millisecond, 600 * time.Millisecond}, sl.waits)
}

func TestRetriesExhaustedIsTransportError(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		w.WriteHeader(http.StatusGatewayTimeout)
	})
	s, sl := newTestSession(t, up.URL, SessionConfig{})

	_, err := s.Get(context.Background(), "/index")
	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.ErrorIs(t, err, ErrRetriesExhausted)
	assert.Equal(t, 4, te.Attempts)
	assert.Equal(t, http.StatusGatewayTimeout, te.Status)
	assert.Len(t, up.requests(), 4)
	assert.Equal(t, []time.Duration{300 * time.Millisecond, 600 * time.Millisecond, 1200 * time.Millisecond}, sl.waits)
	assert.True(t, IsTransport(err))
}

func TestNonForcelistedStatusIsNotRetried(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	s, _ := newTestSession(t, up.URL, SessionConfig{})

	_, err := s.Get(context.Background(), "/index")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Len(t, up.requests(), 1)
}

func TestPostNotRetriedByDefault(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		w.WriteHeader(http.StatusBadGateway)
	})
	s, sl := newTestSession(t, up.URL, SessionConfig{})

	resp, err := s.Send(context.Background(), RequestOptions{Method: MethodPost, Path: "/index"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	_, err = s.Post(context.Background(), "/index")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.Status)

	assert.Len(t, up.requests(), 2)
	assert.Empty(t, sl.waits)
}

func TestPostRetriedWhenEnabled(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, _ *http.Request, call int) {
		if call == 0 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `{}`)
	})
	s, _ := newTestSession(t, up.URL, SessionConfig{AllowedMethods: []string{"GET", "POST"}})

	_, err := s.Post(context.Background(), "/index", WithBody(map[string]int{"a": 1}))
	require.NoError(t, err)
	reqs := up.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, reqs[0].Body, reqs[1].Body)
}

func TestDisableRetries(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		w.WriteHeader(http.StatusBadGateway)
	})
	s, _ := newTestSession(t, up.URL, SessionConfig{DisableRetries: true})

	_, err := s.Get(context.Background(), "/index")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Len(t, up.requests(), 1)
}

func TestConnectionFailureRetriedThenSurfaced(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	url := dead.URL
	dead.Close()

	s, sl := newTestSession(t, url, SessionConfig{})
	_, err := s.Get(context.Background(), "/index")

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 4, te.Attempts)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
	assert.Len(t, sl.waits, 3)
}

func TestPerCallTimeoutOverridesSession(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, r *http.Request, _ int) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	})
	s, _ := newTestSession(t, up.URL, SessionConfig{DisableRetries: true, RequestTimeout: 10 * time.Second})

	start := time.Now()
	_, err := s.Get(context.Background(), "/slow", WithRequestTimeout(50*time.Millisecond))
	assert.True(t, IsTransport(err), "got %v", err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPoolRebuiltAfterPIDChange(t *testing.T) {
	up := newUpstream(t, okJSON(`{}`))
	pid := 100
	s, _ := newTestSession(t, up.URL, SessionConfig{}, WithPIDFunc(func() int { return pid }))

	_, err := s.Get(context.Background(), "/a")
	require.NoError(t, err)
	first := s.client
	require.NotNil(t, first)

	_, err = s.Get(context.Background(), "/b")
	require.NoError(t, err)
	assert.Same(t, first, s.client)

	pid = 101
	_, err = s.Get(context.Background(), "/c")
	require.NoError(t, err)
	assert.NotSame(t, first, s.client)
	assert.Equal(t, 101, s.pid)
}

func TestCloseReleasesPoolAndAllowsReuse(t *testing.T) {
	up := newUpstream(t, okJSON(`{}`))
	s, _ := newTestSession(t, up.URL, SessionConfig{})

	_, err := s.Get(context.Background(), "/a")
	require.NoError(t, err)
	first := s.client

	require.NoError(t, s.Close())
	assert.Nil(t, s.client)

	_, err = s.Get(context.Background(), "/a")
	require.NoError(t, err)
	assert.NotSame(t, first, s.client)
}

func TestRetryPolicyBackoff(t *testing.T) {
	p := NewRetryPolicy(SessionConfig{Retries: 3, BackoffFactor: 0.3, AllowedMethods: []string{"GET"}})
	assert.Equal(t, 300*time.Millisecond, p.Backoff(0))
	assert.Equal(t, 1200*time.Millisecond, p.Backoff(2))
	assert.Equal(t, maxBackoff, p.Backoff(30))
	assert.True(t, p.AllowsMethod("GET"))
	assert.False(t, p.AllowsMethod("POST"))

	p = NewRetryPolicy(SessionConfig{Retries: 3, DisableRetries: true, AllowedMethods: []string{"GET"}})
	assert.False(t, p.AllowsMethod("GET"))
}

func TestRateLimitHonoursContext(t *testing.T) {
	up := newUpstream(t, okJSON(`{}`))
	s, _ := newTestSession(t, up.URL, SessionConfig{RateLimit: 0.001, Burst: 1})

	_, err := s.Get(context.Background(), "/a")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = s.Get(ctx, "/a")
	assert.True(t, IsTransport(err))
	assert.Len(t, up.requests(), 1)
}
