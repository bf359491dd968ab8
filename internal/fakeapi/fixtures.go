package fakeapi

import (
	"time"

	"IndexSDK/pkg/util"
)

const (
	ID1 = "6a083435-9118-48ef-a7a9-a7633cdc0a9c"
	ID2 = "f056cf50-1f75-4fae-87d6-230e2d676975"
	ID3 = "ee56deaf-c012-421e-91a6-099649e12738"

	N1 = "MQ2S0B04"
	N2 = "MQ2Q0BQR"
	N3 = "MQ2S0B01"

	IntradayID = "0c6fd6a1-5c1e-4c3a-9d2f-6a2c0e1f4b77"

	MetricDailyReturn = "daily_return"
	MetricPriceReturn = "price_return"
	MetricTotalReturn = "total_return"
	MetricMissing     = "metricdoesnotexist"
)

var (
	IDs     = []string{ID1, ID2, ID3}
	Names   = []string{N1, N2, N3}
	Metrics = []string{MetricDailyReturn, MetricPriceReturn, MetricTotalReturn}

	// SecurityTypes is what GET /security lists.
	SecurityTypes = []string{
		"crypto_asset", "custom", "economic_data", "equity", "exchange", "futures_contract",
		"futures_option", "futures_root", "fx", "index", "interest_rate", "intraday_index",
	}

	// Dates are the business days with stored values.
	Dates = []time.Time{
		date(2023, time.April, 27),
		date(2023, time.April, 28),
		date(2023, time.May, 1),
		date(2023, time.May, 2),
		date(2023, time.May, 3),
	}
)

type security struct {
	ID   string
	Name string
}

func defaultSecurities() map[string][]security {
	return map[string][]security{
		"index": {
			{ID: ID1, Name: N1},
			{ID: ID2, Name: N2},
			{ID: ID3, Name: N3},
		},
		"intraday_index": {
			{ID: IntradayID, Name: N1},
		},
	}
}

// MetricValue is the stored value for security i, metric m and date d, or nil.
// ID3 has no daily_return on 2023-05-01.
func MetricValue(sec int, metric string, d int) *float64 {
	var v float64
	switch metric {
	case MetricPriceReturn:
		v = 5000 + 100*float64(sec) + 10*float64(d) + 0.5
	case MetricTotalReturn:
		v = 5000 + 100*float64(sec) + 10*float64(d) + 0.75
	case MetricDailyReturn:
		if sec == 2 && d == 2 {
			return nil
		}
		v = 0.001 * float64(d+1) * float64(sec+1)
	default:
		return nil
	}
	return &v
}

// EffTS formats a date the way the metrics endpoint returns eff_ts.
func EffTS(t time.Time) string {
	return t.Format(util.QueryTimeLayout)
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func defaultIndices() map[string]map[string]any {
	out := make(map[string]map[string]any)
	for i, name := range Names {
		id := "idx-" + name
		m := manifest(id, name, "test", "prod")
		if i == 0 {
			m["intraday"] = map[string]any{"enabled": true}
		}
		out[id] = m
	}
	dev := manifest("idx-DEV00001", "DEV00001", "dev", "dev")
	out["idx-DEV00001"] = dev
	return out
}

func manifest(id, name, namespace, stage string) map[string]any {
	return map[string]any{
		"id":          id,
		"name":        name,
		"namespace":   namespace,
		"stage":       stage,
		"description": "index " + name,
		"status": map[string]any{
			"created_at":       "2022-06-07T23:15:31.212502",
			"created_by":       "test@merqube.com",
			"last_modified":    "2023-01-25T22:40:25.552308",
			"last_modified_by": "test@merqube.com",
		},
	}
}
