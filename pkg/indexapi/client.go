// Package indexapi is the client for index definitions, portfolios, run states and
// identifiers. It embeds the secapi client for security lookups and metrics.
package indexapi

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	xhttp "IndexSDK/pkg/http"
	"IndexSDK/pkg/logger"
	"IndexSDK/pkg/query"
	"IndexSDK/pkg/secapi"
)

// lockDelay is how far in the future a lock takes effect.
const lockDelay = 3 * time.Second

// statusTimeLayout matches the server's microsecond timestamps.
const statusTimeLayout = "2006-01-02T15:04:05.000000"

var (
	// ErrIdentifierConflict is returned when an identifier name is already linked to
	// another index.
	ErrIdentifierConflict = errors.New("identifier already exists for a different index")
	// ErrNotIntraday is returned for intraday requests on an index without intraday data.
	ErrNotIntraday = errors.New("index is not an intraday index")
	// ErrRunFailed is returned by PollRunState when the run ends in FAILED.
	ErrRunFailed = errors.New("index run failed")
)

// Session is the transport the client needs. *xhttp.Session implements it.
type Session interface {
	secapi.Session
	GetCollectionSingle(ctx context.Context, path string, q query.Options) (xhttp.Record, error)
	GetJSON(ctx context.Context, path string, q query.Options, dest interface{}) error
	Post(ctx context.Context, path string, opts ...xhttp.RequestOption) (*xhttp.Response, error)
	Put(ctx context.Context, path string, opts ...xhttp.RequestOption) (*xhttp.Response, error)
	Patch(ctx context.Context, path string, opts ...xhttp.RequestOption) (*xhttp.Response, error)
	Delete(ctx context.Context, path string, opts ...xhttp.RequestOption) (*xhttp.Response, error)
}

// Option configures Client.
type Option func(*Client)

// Client combines index and security API calls that are not tied to one index.
// Use ForIndex for an index-scoped client.
type Client struct {
	*secapi.Client

	session Session
	log     *logger.Logger
	now     func() time.Time
	secOpts []secapi.Option
}

// New returns a client over session.
func New(session Session, opts ...Option) *Client {
	c := &Client{
		session: session,
		log:     logger.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.Client = secapi.New(session, append([]secapi.Option{secapi.WithLogger(c.log)}, c.secOpts...)...)
	return c
}

// WithLogger sets the logger for both API clients.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithClock replaces time.Now, used for lock timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithSecAPIOptions passes options to the embedded secapi client.
func WithSecAPIOptions(opts ...secapi.Option) Option {
	return func(c *Client) {
		c.secOpts = append(c.secOpts, opts...)
	}
}

func indexPath(id string, sub ...string) string {
	p := "/index/" + url.PathEscape(id)
	for _, s := range sub {
		p += "/" + s
	}
	return p
}

// GetIndexDefs returns manifests keyed by id. No names means every permissioned index.
// Non-production indices are included only when includeNonprod is set.
func (c *Client) GetIndexDefs(ctx context.Context, names []string, includeNonprod bool) (map[string]Manifest, error) {
	f := query.Filter{"names": query.List(names...)}
	if includeNonprod {
		f["type"] = query.String("all")
	}
	recs, err := c.session.GetCollection(ctx, "/index", query.Normalize(f), false)
	if err != nil {
		return nil, err
	}
	out := make(map[string]Manifest, len(recs))
	for _, r := range recs {
		m := Manifest(r)
		out[m.ID()] = m
	}
	return out, nil
}

// GetIndexManifest fetches one manifest by id.
func (c *Client) GetIndexManifest(ctx context.Context, id string) (Manifest, error) {
	var m Manifest
	if err := c.session.GetJSON(ctx, indexPath(id), nil, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// GetIndexManifestByName fetches the one manifest named name.
func (c *Client) GetIndexManifestByName(ctx context.Context, name string) (Manifest, error) {
	rec, err := c.session.GetCollectionSingle(ctx, "/index", query.Options{"name": name})
	if err != nil {
		return nil, err
	}
	return Manifest(rec), nil
}

// GetIndicesInNamespace lists the manifests in namespace.
func (c *Client) GetIndicesInNamespace(ctx context.Context, namespace string) ([]Manifest, error) {
	recs, err := c.session.GetCollection(ctx, "/index", query.Options{"namespace": namespace}, false)
	if err != nil {
		return nil, err
	}
	out := make([]Manifest, len(recs))
	for i, r := range recs {
		out[i] = Manifest(r)
	}
	return out, nil
}

// IndexPostModelFromExisting copies an index's manifest into a creatable definition
// under a new name and namespace.
func (c *Client) IndexPostModelFromExisting(ctx context.Context, id, name, namespace string) (Manifest, error) {
	m, err := c.GetIndexManifest(ctx, id)
	if err != nil {
		return nil, err
	}
	out := m.Clone()
	delete(out, "id")
	delete(out, "status")
	out["name"] = name
	out["namespace"] = namespace
	return out, nil
}

// CreateIndex posts a new index definition and returns the stored manifest.
func (c *Client) CreateIndex(ctx context.Context, def Manifest) (Manifest, error) {
	resp, err := c.session.Post(ctx, "/index", xhttp.WithBody(def))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := resp.JSON(&m); err != nil {
		return nil, err
	}
	c.log.Info("index created", logger.String("id", m.ID()), logger.String("name", m.Name()))
	return m, nil
}

// DeleteIndex removes an index.
func (c *Client) DeleteIndex(ctx context.Context, id string) error {
	_, err := c.session.Delete(ctx, indexPath(id))
	return err
}

// PatchIndex applies a partial update. With autoStatus the current status block is
// sent along, which the server requires on most updates.
func (c *Client) PatchIndex(ctx context.Context, id string, updates map[string]any, autoStatus bool) (Manifest, error) {
	body := make(map[string]any, len(updates)+1)
	for k, v := range updates {
		body[k] = v
	}
	if autoStatus {
		current, err := c.GetIndexManifest(ctx, id)
		if err != nil {
			return nil, err
		}
		body["status"] = current.Status()
	}
	return c.patch(ctx, id, body)
}

func (c *Client) patch(ctx context.Context, id string, body map[string]any) (Manifest, error) {
	resp, err := c.session.Patch(ctx, indexPath(id), xhttp.WithBody(body))
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := resp.JSON(&m); err != nil {
		return nil, err
	}
	return m, nil
}

// LockIndex sets locked_after a few seconds ahead. It reports false without calling
// the server when the index is already locked.
func (c *Client) LockIndex(ctx context.Context, id string) (bool, error) {
	m, err := c.GetIndexManifest(ctx, id)
	if err != nil {
		return false, err
	}
	if m.Locked() {
		return false, nil
	}
	status := m.Status()
	status["locked_after"] = c.now().Add(lockDelay).Format(statusTimeLayout)
	if _, err := c.patch(ctx, id, map[string]any{"status": status}); err != nil {
		return false, err
	}
	c.log.Info("index locked", logger.String("id", id))
	return true, nil
}

// UnlockIndex clears locked_after. It reports false without calling the server when
// the index is not locked.
func (c *Client) UnlockIndex(ctx context.Context, id string) (bool, error) {
	m, err := c.GetIndexManifest(ctx, id)
	if err != nil {
		return false, err
	}
	if !m.Locked() {
		return false, nil
	}
	status := m.Status()
	delete(status, "locked_after")
	if _, err := c.patch(ctx, id, map[string]any{"status": status}); err != nil {
		return false, err
	}
	c.log.Info("index unlocked", logger.String("id", id))
	return true, nil
}

// ReplaceTargetPortfolio sets the target portfolio for the index's next rebalance.
func (c *Client) ReplaceTargetPortfolio(ctx context.Context, id string, tp any) (map[string]any, error) {
	resp, err := c.session.Put(ctx, indexPath(id, "target_portfolio"), xhttp.WithBody(tp))
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if len(resp.Body) > 0 {
		if err := resp.JSON(&out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Provider names an identifier provider.
type Provider string

const (
	ProviderBloomberg Provider = "bloomberg"
)

// IdentifierRequest links a provider identifier to an index.
type IdentifierRequest struct {
	Name      string `json:"name" validate:"required"`
	IndexName string `json:"index_name" validate:"required"`
	Namespace string `json:"namespace" validate:"required"`
	Ticker    string `json:"ticker,omitempty"`
}

// IdentifierExistsStatus is returned when the identifier already points at the index.
const IdentifierExistsStatus = "already exists for this index name"

// CreateIdentifier registers req with MerQube (not with the provider). An identifier
// already linked to the same index is reported, not recreated.
func (c *Client) CreateIdentifier(ctx context.Context, provider Provider, req IdentifierRequest) (map[string]any, error) {
	if err := xhttp.ValidateStruct(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", secapi.ErrInvalidArgument, err)
	}
	path := "/identifier/" + url.PathEscape(string(provider))

	existing, err := c.session.GetCollection(ctx, path, query.Options{"names": req.Name}, false)
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		resp, err := c.session.Post(ctx, path, xhttp.WithBody(req))
		if err != nil {
			return nil, err
		}
		out := map[string]any{}
		if err := resp.JSON(&out); err != nil {
			return nil, err
		}
		return out, nil
	}

	linked, _ := existing[0]["index_name"].(string)
	if linked == req.IndexName {
		return map[string]any{"status": IdentifierExistsStatus}, nil
	}
	return nil, fmt.Errorf("%w: %s is linked to %s", ErrIdentifierConflict, req.Name, linked)
}
