// Package secapi is the client for the security API: supported types, security
// definitions and metric time series, with optional request chunking.
package secapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"IndexSDK/pkg/cache"
	xhttp "IndexSDK/pkg/http"
	"IndexSDK/pkg/logger"
	"IndexSDK/pkg/metrics"
	"IndexSDK/pkg/query"
)

const (
	// DefaultTypeCacheTTL bounds how long the supported-type list is trusted.
	DefaultTypeCacheTTL = 600 * time.Second

	typeCacheKey = "secapi:supported_types"
)

// Session is the transport the client needs.
type Session interface {
	GetCollection(ctx context.Context, path string, q query.Options, raisePermErrors bool) ([]xhttp.Record, error)
}

// Option configures Client.
type Option func(*Client)

// Client talks to the security API. It is safe for concurrent use.
type Client struct {
	session Session
	types   cache.Store
	typeTTL time.Duration
	log     *logger.Logger
	metrics *metrics.Recorder
}

// New returns a client over session. Unless WithTypeCache is given, supported types
// are cached in a private single-entry memory store.
func New(session Session, opts ...Option) *Client {
	c := &Client{
		session: session,
		typeTTL: DefaultTypeCacheTTL,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.types == nil {
		c.types = cache.NewMemoryStore(cache.WithMemoryMaxSize(1))
	}
	return c
}

// WithTypeCache shares the supported-type cache, e.g. a Redis store across processes.
func WithTypeCache(s cache.Store) Option {
	return func(c *Client) {
		c.types = s
	}
}

// WithTypeCacheTTL overrides DefaultTypeCacheTTL.
func WithTypeCacheTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.typeTTL = ttl
	}
}

// WithLogger sets the client logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithMetrics records chunk sub-requests on r.
func WithMetrics(r *metrics.Recorder) Option {
	return func(c *Client) {
		c.metrics = r
	}
}

// Session returns the underlying transport.
func (c *Client) Session() Session { return c.session }

// SupportedTypes lists the security types the server knows, from cache when fresh.
func (c *Client) SupportedTypes(ctx context.Context) ([]string, error) {
	types, err := cache.GetJSON[[]string](ctx, c.types, typeCacheKey)
	if err == nil {
		return types, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		c.log.Warn("supported type cache read failed", logger.Error(err))
	}

	recs, err := c.session.GetCollection(ctx, "/security", nil, false)
	if err != nil {
		return nil, fmt.Errorf("list security types: %w", err)
	}
	types = make([]string, 0, len(recs))
	for _, r := range recs {
		if name, ok := r["name"].(string); ok {
			types = append(types, name)
		}
	}

	if err := cache.SetJSON(ctx, c.types, typeCacheKey, types, c.typeTTL); err != nil {
		c.log.Warn("supported type cache write failed", logger.Error(err))
	}
	return types, nil
}

// ClearTypeCache forgets the supported-type list so the next call refetches it.
func (c *Client) ClearTypeCache(ctx context.Context) error {
	return c.types.Delete(ctx, typeCacheKey)
}

func (c *Client) requireType(ctx context.Context, secType string) error {
	if secType == "" {
		return fmt.Errorf("%w: security type is required", ErrInvalidArgument)
	}
	types, err := c.SupportedTypes(ctx)
	if err != nil {
		return err
	}
	for _, t := range types {
		if t == secType {
			return nil
		}
	}
	return fmt.Errorf("%w: %q, must be one of %v", ErrUnsupportedType, secType, types)
}

// MetricDefinition describes one metric available for a security.
type MetricDefinition struct {
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	DataType     string         `json:"data_type,omitempty"`
	ObjectSchema map[string]any `json:"object_schema,omitempty"`
}

// GetMetricsForSecurity lists the metrics currently available for one security.
func (c *Client) GetMetricsForSecurity(ctx context.Context, secType string, sel Selector) ([]MetricDefinition, error) {
	if err := requireSingle(sel); err != nil {
		return nil, err
	}
	if err := c.requireType(ctx, secType); err != nil {
		return nil, err
	}

	var (
		path string
		q    query.Options
	)
	if sel.SelectsIDs() {
		path = fmt.Sprintf("/security/%s/%s/metrics", url.PathEscape(secType), url.PathEscape(sel.values[0]))
	} else {
		path = fmt.Sprintf("/security/%s/metrics", url.PathEscape(secType))
		q = query.Options{"name": sel.values[0]}
	}

	recs, err := c.session.GetCollection(ctx, path, q, false)
	if err != nil {
		return nil, err
	}
	return decodeRecords[MetricDefinition](recs)
}

// GetSecurityDefinitionsMappingTable lists permissioned securities of a type,
// optionally filtered by sel. Selecting by id returns id to name; otherwise name to id.
func (c *Client) GetSecurityDefinitionsMappingTable(ctx context.Context, secType string, sel Selector, extra query.Filter, raisePermErrors bool) (map[string]string, error) {
	if err := requireValid(sel); err != nil {
		return nil, err
	}
	if err := c.requireType(ctx, secType); err != nil {
		return nil, err
	}

	q := query.Normalize(sel.filter().Merge(extra))
	recs, err := c.session.GetCollection(ctx, "/security/"+url.PathEscape(secType), q, raisePermErrors)
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(recs))
	for _, r := range recs {
		id, _ := r["id"].(string)
		name, _ := r["name"].(string)
		if sel.SelectsIDs() {
			out[id] = name
		} else {
			out[name] = id
		}
	}
	return out, nil
}

func decodeRecords[T any](recs []xhttp.Record) ([]T, error) {
	raw, err := json.Marshal(recs)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return out, nil
}
