// Package fakeapi is an in-process stand-in for the IndexAPI/SecAPI upstream, used by
// package tests. It serves fixture data, records every call and can inject failures.
package fakeapi

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/labstack/echo/v4"

	xhttp "IndexSDK/pkg/http"
	xmw "IndexSDK/pkg/http/middleware"
	"IndexSDK/pkg/logger"
	"IndexSDK/pkg/reqid"
)

// Call is one request the server received.
type Call struct {
	Method    string
	Path      string
	Query     url.Values
	Body      []byte
	RequestID string
}

// Server implements http.Handler.
type Server struct {
	// URL is set by Start.
	URL string

	e   *echo.Echo
	log *logger.Logger

	mu               sync.Mutex
	calls            []Call
	securities       map[string][]security
	indices          map[string]map[string]any
	identifiers      map[string][]map[string]any
	targetPortfolios map[string][]any
	runStates        map[string][]string
	failures         map[string][]int
	permFiltered     bool
}

// New builds a server loaded with the default fixtures.
func New() *Server {
	s := &Server{
		log:              logger.Nop(),
		securities:       defaultSecurities(),
		indices:          defaultIndices(),
		identifiers:      make(map[string][]map[string]any),
		targetPortfolios: make(map[string][]any),
		runStates:        make(map[string][]string),
		failures:         make(map[string][]int),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(xmw.Recover(s.log))
	e.Use(s.record)
	e.Use(xmw.RequestID(reqid.NewGenerator("fakeapi")))
	e.Use(s.inject)
	s.RegisterRoutes(e)
	s.e = e
	return s
}

// Start serves s on a local listener until tb finishes.
func Start(tb testing.TB) *Server {
	tb.Helper()
	s := New()
	ts := httptest.NewServer(s)
	tb.Cleanup(ts.Close)
	s.URL = ts.URL
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.e.ServeHTTP(w, r)
}

// RegisterRoutes wires the upstream's endpoints.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/security", s.listTypes)
	e.GET("/security/:type", s.listSecurities)
	e.GET("/security/:type/metrics", s.metricsByName)
	e.GET("/security/:type/:id/metrics", s.metricsByID)

	e.GET("/index", s.listIndices)
	e.POST("/index", s.createIndex)
	e.GET("/index/:id", s.getIndex)
	e.PATCH("/index/:id", s.patchIndex)
	e.DELETE("/index/:id", s.deleteIndex)
	for _, name := range []string{"portfolio", "portfolio_allocations", "caps", "stats", "data_collections"} {
		e.GET("/index/:id/"+name, s.subresource(name))
	}
	e.GET("/index/:id/target_portfolio", s.getTargetPortfolio)
	e.PUT("/index/:id/target_portfolio", s.putTargetPortfolio)
	e.GET("/index/:id/last_run_state", s.lastRunState)

	e.GET("/identifier/:provider", s.listIdentifiers)
	e.POST("/identifier/:provider", s.createIdentifier)
}

// Calls returns every recorded call in arrival order.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Call(nil), s.calls...)
}

// CallsTo returns the recorded calls whose path equals path.
func (s *Server) CallsTo(path string) []Call {
	var out []Call
	for _, c := range s.Calls() {
		if c.Path == path {
			out = append(out, c)
		}
	}
	return out
}

// ResetCalls forgets recorded calls.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	s.calls = nil
	s.mu.Unlock()
}

// Fail makes the next len(statuses) requests to path answer with those statuses.
func (s *Server) Fail(path string, statuses ...int) {
	s.mu.Lock()
	s.failures[path] = append(s.failures[path], statuses...)
	s.mu.Unlock()
}

// FilterPermissions toggles the permission-filtered marker on collection responses.
func (s *Server) FilterPermissions(on bool) {
	s.mu.Lock()
	s.permFiltered = on
	s.mu.Unlock()
}

// SetRunStates queues the states returned by successive last_run_state calls. The
// final state repeats.
func (s *Server) SetRunStates(indexID string, states ...string) {
	s.mu.Lock()
	s.runStates[indexID] = states
	s.mu.Unlock()
}

// Index returns a copy of the stored manifest.
func (s *Server) Index(id string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.indices[id]
	if !ok {
		return nil, false
	}
	return clone(m), true
}

// PutIndex stores or replaces a manifest.
func (s *Server) PutIndex(m map[string]any) {
	s.mu.Lock()
	s.indices[m["id"].(string)] = clone(m)
	s.mu.Unlock()
}

// Identifiers returns the identifiers stored for provider.
func (s *Server) Identifiers(provider string) []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]any(nil), s.identifiers[provider]...)
}

// TargetPortfolios returns every target portfolio PUT for the index.
func (s *Server) TargetPortfolios(indexID string) []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]any(nil), s.targetPortfolios[indexID]...)
}

func (s *Server) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		var body []byte
		if req.Body != nil {
			body, _ = io.ReadAll(req.Body)
			req.Body = io.NopCloser(bytes.NewReader(body))
		}
		s.mu.Lock()
		s.calls = append(s.calls, Call{
			Method:    req.Method,
			Path:      req.URL.Path,
			Query:     req.URL.Query(),
			Body:      body,
			RequestID: req.Header.Get(reqid.Header),
		})
		s.mu.Unlock()
		return next(c)
	}
}

func (s *Server) inject(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Request().URL.Path
		s.mu.Lock()
		queued := s.failures[path]
		var status int
		if len(queued) > 0 {
			status = queued[0]
			s.failures[path] = queued[1:]
		}
		s.mu.Unlock()
		if status != 0 {
			return xhttp.ErrorResponse(c, status, "injected failure")
		}
		return next(c)
	}
}

func (s *Server) collection(c echo.Context, results any) error {
	s.mu.Lock()
	filtered := s.permFiltered
	s.mu.Unlock()
	if filtered {
		return xhttp.CollectionResponse(c, results, xhttp.PermissionFiltered)
	}
	return xhttp.CollectionResponse(c, results)
}

func sortedByName(in map[string]map[string]any) []map[string]any {
	out := make([]map[string]any, 0, len(in))
	for _, m := range in {
		out = append(out, clone(m))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i]["name"].(string) < out[j]["name"].(string)
	})
	return out
}

func clone(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			v = clone(nested)
		}
		out[k] = v
	}
	return out
}

func csvSet(s string) map[string]struct{} {
	if s == "" {
		return nil
	}
	out := make(map[string]struct{})
	for _, p := range strings.Split(s, ",") {
		out[strings.TrimSpace(p)] = struct{}{}
	}
	return out
}
