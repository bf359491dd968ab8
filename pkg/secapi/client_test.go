package secapi

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"IndexSDK/internal/fakeapi"
	"IndexSDK/pkg/cache"
	xhttp "IndexSDK/pkg/http"
	"IndexSDK/pkg/query"
)

func newTestClient(t *testing.T, opts ...Option) (*Client, *fakeapi.Server) {
	t.Helper()
	srv := fakeapi.Start(t)
	sess, err := xhttp.NewSession("tok", xhttp.SessionConfig{BaseURL: srv.URL})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })
	return New(sess, opts...), srv
}

func TestSupportedTypesAreCached(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	types, err := c.SupportedTypes(ctx)
	require.NoError(t, err)
	assert.Equal(t, fakeapi.SecurityTypes, types)

	_, err = c.SupportedTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, srv.CallsTo("/security"), 1)

	require.NoError(t, c.ClearTypeCache(ctx))
	_, err = c.SupportedTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, srv.CallsTo("/security"), 2)
}

func TestSupportedTypesExpire(t *testing.T) {
	now := time.Date(2023, 5, 4, 12, 0, 0, 0, time.UTC)
	store := cache.NewMemoryStore(cache.WithMemoryMaxSize(1), cache.WithMemoryClock(func() time.Time { return now }))
	c, srv := newTestClient(t, WithTypeCache(store))
	ctx := context.Background()

	_, err := c.SupportedTypes(ctx)
	require.NoError(t, err)

	now = now.Add(DefaultTypeCacheTTL - time.Second)
	_, err = c.SupportedTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, srv.CallsTo("/security"), 1)

	now = now.Add(2 * time.Second)
	_, err = c.SupportedTypes(ctx)
	require.NoError(t, err)
	assert.Len(t, srv.CallsTo("/security"), 2)
}

func TestClientsDoNotShareTypeCache(t *testing.T) {
	a, srv := newTestClient(t)
	sess, err := xhttp.NewSession("tok", xhttp.SessionConfig{BaseURL: srv.URL})
	require.NoError(t, err)
	b := New(sess)

	_, err = a.SupportedTypes(context.Background())
	require.NoError(t, err)
	_, err = b.SupportedTypes(context.Background())
	require.NoError(t, err)
	assert.Len(t, srv.CallsTo("/security"), 2)
}

func TestUnsupportedType(t *testing.T) {
	c, srv := newTestClient(t)

	_, err := c.GetSecurityDefinitionsMappingTable(context.Background(), "nooo", Selector{}, nil, false)
	assert.ErrorIs(t, err, ErrUnsupportedType)
	assert.Empty(t, srv.CallsTo("/security/nooo"))
}

func TestGetMetricsForSecurity(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	defs, err := c.GetMetricsForSecurity(ctx, "index", ByID(fakeapi.ID1))
	require.NoError(t, err)
	require.Len(t, defs, 3)
	assert.Equal(t, fakeapi.MetricDailyReturn, defs[0].Name)
	assert.Equal(t, "float", defs[0].DataType)
	assert.Len(t, srv.CallsTo("/security/index/"+fakeapi.ID1+"/metrics"), 1)

	defs, err = c.GetMetricsForSecurity(ctx, "index", ByName(fakeapi.N2))
	require.NoError(t, err)
	assert.Len(t, defs, 3)
	calls := srv.CallsTo("/security/index/metrics")
	require.Len(t, calls, 1)
	assert.Equal(t, fakeapi.N2, calls[0].Query.Get("name"))
}

func TestGetMetricsForSecurityNeedsOneSecurity(t *testing.T) {
	c, srv := newTestClient(t)

	for _, sel := range []Selector{{}, ByIDs("a", "b"), ByNames("a"), ByID("")} {
		_, err := c.GetMetricsForSecurity(context.Background(), "index", sel)
		assert.ErrorIs(t, err, ErrInvalidArgument, sel.String())
	}
	assert.Empty(t, srv.Calls())
}

func TestMappingTable(t *testing.T) {
	c, srv := newTestClient(t)
	ctx := context.Background()

	all, err := c.GetSecurityDefinitionsMappingTable(ctx, "index", Selector{}, nil, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{fakeapi.N1: fakeapi.ID1, fakeapi.N2: fakeapi.ID2, fakeapi.N3: fakeapi.ID3}, all)

	byID, err := c.GetSecurityDefinitionsMappingTable(ctx, "index", ByIDs(fakeapi.ID1, fakeapi.ID3), nil, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{fakeapi.ID1: fakeapi.N1, fakeapi.ID3: fakeapi.N3}, byID)

	byName, err := c.GetSecurityDefinitionsMappingTable(ctx, "index", ByName(fakeapi.N2), query.Filter{"as_of": query.String("2023-05-04T12:00:00")}, false)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{fakeapi.N2: fakeapi.ID2}, byName)

	calls := srv.CallsTo("/security/index")
	require.Len(t, calls, 3)
	assert.Equal(t, fakeapi.ID1+","+fakeapi.ID3, calls[1].Query.Get("ids"))
	assert.Equal(t, "2023-05-04T12:00:00", calls[2].Query.Get("as_of"))
}

func TestMappingTablePermissionErrors(t *testing.T) {
	c, srv := newTestClient(t)
	srv.FilterPermissions(true)
	ctx := context.Background()

	_, err := c.GetSecurityDefinitionsMappingTable(ctx, "index", Selector{}, nil, false)
	assert.NoError(t, err)

	_, err = c.GetSecurityDefinitionsMappingTable(ctx, "index", Selector{}, nil, true)
	assert.ErrorIs(t, err, xhttp.ErrPermissionFiltered)
}
