package http

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IndexSDK/pkg/reqid"
)

func TestRequestIDGenerated(t *testing.T) {
	up := newUpstream(t, okJSON(`{}`))
	s, _ := newTestSession(t, up.URL, SessionConfig{})

	resp, err := s.Get(context.Background(), "/index")
	require.NoError(t, err)

	sent := up.requests()[0].Header.Get(reqid.Header)
	assert.True(t, strings.HasPrefix(sent, reqid.DefaultPrefix+"_"), sent)
	assert.Len(t, strings.TrimPrefix(sent, reqid.DefaultPrefix+"_"), 32)
	assert.Equal(t, sent, resp.RequestID)
}

func TestRequestIDCustomPrefix(t *testing.T) {
	up := newUpstream(t, okJSON(`{}`))
	s, _ := newTestSession(t, up.URL, SessionConfig{RequestIDPrefix: "batch"})

	_, err := s.Get(context.Background(), "/index")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(up.requests()[0].Header.Get(reqid.Header), "batch_"))
}

func TestRequestIDPrecedence(t *testing.T) {
	up := newUpstream(t, okJSON(`{}`))
	s, _ := newTestSession(t, up.URL, SessionConfig{})
	ctx := reqid.WithInbound(context.Background(), "inbound-1")

	_, err := s.Get(ctx, "/a", WithRequestID("explicit-1"))
	require.NoError(t, err)
	_, err = s.Get(ctx, "/b")
	require.NoError(t, err)
	// header keys are matched case-insensitively
	_, err = s.Get(ctx, "/c", WithHeaders(map[string]string{"x-request-id": "lower-1"}))
	require.NoError(t, err)

	reqs := up.requests()
	assert.Equal(t, "explicit-1", reqs[0].Header.Get(reqid.Header))
	assert.Equal(t, "inbound-1", reqs[1].Header.Get(reqid.Header))
	assert.Equal(t, "lower-1", reqs[2].Header.Get(reqid.Header))
	assert.Len(t, reqs[2].Header.Values(reqid.Header), 1)
}

func TestRequestIDClearedByCaller(t *testing.T) {
	up := newUpstream(t, okJSON(`{}`))
	s, _ := newTestSession(t, up.URL, SessionConfig{})
	ctx := reqid.WithInbound(context.Background(), "inbound-1")

	resp, err := s.Get(ctx, "/a", WithRequestID(""))
	require.NoError(t, err)
	assert.Empty(t, up.requests()[0].Header.Values(reqid.Header))
	assert.Empty(t, resp.RequestID)
}

func TestRequestIDDisabled(t *testing.T) {
	up := newUpstream(t, okJSON(`{}`))
	s, _ := newTestSession(t, up.URL, SessionConfig{DisableRequestID: true})

	_, err := s.Get(context.Background(), "/a")
	require.NoError(t, err)
	assert.Empty(t, up.requests()[0].Header.Get(reqid.Header))

	// inbound ids still propagate
	_, err = s.Get(reqid.WithInbound(context.Background(), "inbound-2"), "/a")
	require.NoError(t, err)
	assert.Equal(t, "inbound-2", up.requests()[1].Header.Get(reqid.Header))
}

func TestRequestIDReplacedGenerator(t *testing.T) {
	up := newUpstream(t, okJSON(`{}`))
	s, _ := newTestSession(t, up.URL, SessionConfig{}, WithRequestIDGenerator(reqid.NewGenerator("svc")))

	_, err := s.Get(context.Background(), "/a")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(up.requests()[0].Header.Get(reqid.Header), "svc_"))
}

func TestCallerHeadersNotMutatedByRequest(t *testing.T) {
	up := newUpstream(t, okJSON(`{}`))
	s, _ := newTestSession(t, up.URL, SessionConfig{})

	headers := map[string]string{"X-Trace": "t"}
	_, err := s.Get(context.Background(), "/a", WithHeaders(headers), WithHeader("X-Extra", "e"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X-Trace": "t"}, headers)

	got := up.requests()[0].Header
	assert.Equal(t, "t", got.Get("X-Trace"))
	assert.Equal(t, "e", got.Get("X-Extra"))
}

func TestTokenOverridesCallerAuthorization(t *testing.T) {
	up := newUpstream(t, okJSON(`{}`))
	s, _ := newTestSession(t, up.URL, SessionConfig{})

	_, err := s.Get(context.Background(), "/a", WithHeader("Authorization", "Bearer other"))
	require.NoError(t, err)
	assert.Equal(t, "APIKEY secret", up.requests()[0].Header.Get("Authorization"))
}

func TestAPIErrorCarriesBodyAndEchoedID(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		w.Header().Set(reqid.Header, "server-assigned")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"message":"bad metric","field":"metrics"}`)
	})
	s, _ := newTestSession(t, up.URL, SessionConfig{})

	_, err := s.Get(context.Background(), "/security/equity", WithRequestID("mine"))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "server-assigned", apiErr.RequestID)
	assert.Equal(t, "metrics", apiErr.Body["field"])
	assert.Contains(t, apiErr.Error(), "bad metric")
	assert.Equal(t, http.StatusBadRequest, StatusCode(err))
}

func TestAPIErrorNonJSONBody(t *testing.T) {
	up := newUpstream(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `<html>forbidden</html>`)
	})
	s, _ := newTestSession(t, up.URL, SessionConfig{})

	_, err := s.Get(context.Background(), "/a", WithRequestID("mine"))
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.NotNil(t, apiErr.Body)
	assert.Empty(t, apiErr.Body)
	assert.Equal(t, "mine", apiErr.RequestID)
}

func TestResponseJSONAndText(t *testing.T) {
	up := newUpstream(t, okJSON(`{"id":"abc"}`))
	s, _ := newTestSession(t, up.URL, SessionConfig{})

	resp, err := s.Patch(context.Background(), "/index/abc", WithBody(map[string]string{"status": "x"}))
	require.NoError(t, err)

	var out struct {
		ID string `json:"id"`
	}
	require.NoError(t, resp.JSON(&out))
	assert.Equal(t, "abc", out.ID)
	assert.Equal(t, `{"id":"abc"}`, resp.Text())
	assert.Equal(t, http.MethodPatch, up.requests()[0].Method)
}
