package models

import (
	"time"

	"github.com/guregu/null/v6"
)

// MetricPoint is one metric value of one security on one effective timestamp. A null
// Value means the security has no value for the metric on that date.
type MetricPoint struct {
	SecType string     `json:"sec_type"`
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	EffTS   time.Time  `json:"eff_ts"`
	Metric  string     `json:"metric"`
	Value   null.Float `json:"value"`
}

// Key identifies the point's security and date; sinks partition on it.
func (p MetricPoint) Key() string {
	return p.ID + "|" + p.EffTS.Format("2006-01-02T15:04:05")
}
