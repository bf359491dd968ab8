package indexapi

import (
	"context"
	"fmt"
	"time"

	xhttp "IndexSDK/pkg/http"
	"IndexSDK/pkg/query"
	"IndexSDK/pkg/secapi"
	"IndexSDK/pkg/table"
	"IndexSDK/pkg/util"
)

// DefaultReturnsMetric is the metric GetReturns reads when none is given.
const DefaultReturnsMetric = "price_return"

// SingleIndex is a client scoped to one existing index.
type SingleIndex struct {
	*Client

	model       Manifest
	id          string
	name        string
	intraday    bool
	hasIntraday bool
	secID       string
	intraSecID  string
}

// ForIndex loads the index named name and resolves its security ids. intraday marks
// the caller's interest in intraday data; it does not change which calls are allowed.
func (c *Client) ForIndex(ctx context.Context, name string, intraday bool) (*SingleIndex, error) {
	m, err := c.GetIndexManifestByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("index %s: %w", name, err)
	}
	s := &SingleIndex{
		Client:      c,
		model:       m,
		id:          m.ID(),
		name:        name,
		intraday:    intraday,
		hasIntraday: m.IntradayEnabled(),
	}

	if s.secID, err = c.securityID(ctx, "index", name); err != nil {
		return nil, err
	}
	if s.hasIntraday {
		if s.intraSecID, err = c.securityID(ctx, "intraday_index", name); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (c *Client) securityID(ctx context.Context, secType, name string) (string, error) {
	rec, err := c.session.GetCollectionSingle(ctx, "/security/"+secType, query.Options{"name": name})
	if err != nil {
		return "", fmt.Errorf("%s security %s: %w", secType, name, err)
	}
	id, _ := rec["id"].(string)
	return id, nil
}

// Model returns the manifest loaded by ForIndex.
func (s *SingleIndex) Model() Manifest { return s.model.Clone() }

func (s *SingleIndex) ID() string { return s.id }

func (s *SingleIndex) Name() string { return s.name }

// IsIntraday reports the flag passed to ForIndex.
func (s *SingleIndex) IsIntraday() bool { return s.intraday }

// HasIntraday reports whether the index publishes intraday metrics.
func (s *SingleIndex) HasIntraday() bool { return s.hasIntraday }

// SecurityID returns the index's security id, or the intraday one.
func (s *SingleIndex) SecurityID(intraday bool) string {
	if intraday {
		return s.intraSecID
	}
	return s.secID
}

// Manifest refetches the manifest.
func (s *SingleIndex) Manifest(ctx context.Context) (Manifest, error) {
	return s.GetIndexManifest(ctx, s.id)
}

// PostModelFromExisting copies this index's definition under a new name and namespace.
func (s *SingleIndex) PostModelFromExisting(ctx context.Context, name, namespace string) (Manifest, error) {
	return s.IndexPostModelFromExisting(ctx, s.id, name, namespace)
}

// LastRunState returns this index's latest run state.
func (s *SingleIndex) LastRunState(ctx context.Context) (RunState, error) {
	return s.GetLastIndexRunState(ctx, s.id)
}

func (s *SingleIndex) Lock(ctx context.Context) (bool, error) { return s.LockIndex(ctx, s.id) }

func (s *SingleIndex) Unlock(ctx context.Context) (bool, error) { return s.UnlockIndex(ctx, s.id) }

// Update patches this index; see PatchIndex.
func (s *SingleIndex) Update(ctx context.Context, updates map[string]any, autoStatus bool) (Manifest, error) {
	return s.PatchIndex(ctx, s.id, updates, autoStatus)
}

// ReplacePortfolio sets this index's target portfolio.
func (s *SingleIndex) ReplacePortfolio(ctx context.Context, tp any) (map[string]any, error) {
	return s.ReplaceTargetPortfolio(ctx, s.id, tp)
}

// Portfolio lists the portfolio active on each rebalance date.
func (s *SingleIndex) Portfolio(ctx context.Context) ([]xhttp.Record, error) {
	return s.collection(ctx, "portfolio", nil)
}

// PortfolioAllocations shows how the portfolio changed over time.
func (s *SingleIndex) PortfolioAllocations(ctx context.Context) ([]xhttp.Record, error) {
	return s.collection(ctx, "portfolio_allocations", nil)
}

// TargetPortfolio lists target portfolios set for the index, optionally bounded by
// date. Zero times are ignored.
func (s *SingleIndex) TargetPortfolio(ctx context.Context, start, end time.Time) ([]xhttp.Record, error) {
	q := query.Normalize(query.Filter{
		"start_date": query.String(util.FormatQueryTime(start)),
		"end_date":   query.String(util.FormatQueryTime(end)),
	})
	return s.collection(ctx, "target_portfolio", q)
}

// Caps lists caps; only buffer indices have them.
func (s *SingleIndex) Caps(ctx context.Context) ([]xhttp.Record, error) {
	return s.collection(ctx, "caps", nil)
}

// Stats lists historical returns over standard periods.
func (s *SingleIndex) Stats(ctx context.Context) ([]xhttp.Record, error) {
	return s.collection(ctx, "stats", nil)
}

// DataCollections lists the daily data collections published for the index.
func (s *SingleIndex) DataCollections(ctx context.Context) ([]xhttp.Record, error) {
	return s.collection(ctx, "data_collections", nil)
}

func (s *SingleIndex) collection(ctx context.Context, sub string, q query.Options) ([]xhttp.Record, error) {
	return s.session.GetCollection(ctx, indexPath(s.id, sub), q, false)
}

// GetMetrics fetches metrics for this index between start and end.
func (s *SingleIndex) GetMetrics(ctx context.Context, metrics []string, useIntraday bool, start, end time.Time) (*table.Table, error) {
	if useIntraday && !s.hasIntraday {
		return nil, ErrNotIntraday
	}
	secType := "index"
	if useIntraday {
		secType = "intraday_index"
	}
	return s.GetSecurityMetrics(ctx, secapi.MetricsRequest{
		SecType:    secType,
		Metrics:    secapi.MetricList(metrics...),
		Securities: secapi.ByIDs(s.SecurityID(useIntraday)),
		Start:      start,
		End:        end,
	})
}

// GetReturns fetches one returns metric, DefaultReturnsMetric when metric is empty.
func (s *SingleIndex) GetReturns(ctx context.Context, metric string, useIntraday bool, start, end time.Time) (*table.Table, error) {
	if metric == "" {
		metric = DefaultReturnsMetric
	}
	return s.GetMetrics(ctx, []string{metric}, useIntraday, start, end)
}
