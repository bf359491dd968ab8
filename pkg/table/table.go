// Package table holds tabular metric results: rows of named columns where a nil
// value means null.
package table

import (
	"cmp"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	"IndexSDK/pkg/util"
)

const (
	ColEffTS = "eff_ts"
	ColID    = "id"
	ColName  = "name"
)

// Row is one record. Every column of the owning table is present as a key.
type Row map[string]any

// Float returns the column as a nullable float. Non-numeric values are null.
func (r Row) Float(col string) null.Float {
	switch v := r[col].(type) {
	case float64:
		return null.FloatFrom(v)
	case float32:
		return null.FloatFrom(float64(v))
	case int:
		return null.FloatFrom(float64(v))
	case int64:
		return null.FloatFrom(float64(v))
	case json.Number:
		f, err := v.Float64()
		return null.NewFloat(f, err == nil)
	default:
		return null.Float{}
	}
}

// String returns the column as a nullable string. Non-string values are null.
func (r Row) String(col string) null.String {
	if s, ok := r[col].(string); ok {
		return null.StringFrom(s)
	}
	return null.String{}
}

// Table is an ordered set of rows over a sorted column set.
type Table struct {
	columns []string
	rows    []Row
}

// New returns an empty table with the given columns.
func New(columns ...string) *Table {
	t := &Table{}
	t.EnsureColumns(columns...)
	return t
}

// FromRecords builds a table from decoded JSON records. Columns are the union of
// record keys; missing values become null. Records are copied.
func FromRecords(records []map[string]any) *Table {
	t := &Table{rows: make([]Row, 0, len(records))}
	seen := make(map[string]struct{})
	for _, rec := range records {
		row := make(Row, len(rec))
		for k, v := range rec {
			row[k] = v
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				t.columns = append(t.columns, k)
			}
		}
		t.rows = append(t.rows, row)
	}
	sort.Strings(t.columns)
	t.fill()
	return t
}

// Columns returns the column names in sorted order.
func (t *Table) Columns() []string { return append([]string(nil), t.columns...) }

// Rows returns the rows in their current order. The slice is shared with the table.
func (t *Table) Rows() []Row { return t.rows }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// HasColumn reports whether col exists.
func (t *Table) HasColumn(col string) bool {
	i := sort.SearchStrings(t.columns, col)
	return i < len(t.columns) && t.columns[i] == col
}

// EnsureColumns adds any missing column as all-null.
func (t *Table) EnsureColumns(cols ...string) {
	added := false
	for _, c := range cols {
		if !t.HasColumn(c) {
			t.columns = append(t.columns, c)
			sort.Strings(t.columns)
			added = true
		}
	}
	if added {
		t.fill()
	}
}

func (t *Table) fill() {
	for _, row := range t.rows {
		for _, c := range t.columns {
			if _, ok := row[c]; !ok {
				row[c] = nil
			}
		}
	}
}

// Concat stacks tables in order; the result's columns are the union.
func Concat(tables ...*Table) *Table {
	out := &Table{}
	seen := make(map[string]struct{})
	for _, t := range tables {
		if t == nil {
			continue
		}
		for _, c := range t.columns {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				out.columns = append(out.columns, c)
			}
		}
		for _, r := range t.rows {
			cp := make(Row, len(r))
			for k, v := range r {
				cp[k] = v
			}
			out.rows = append(out.rows, cp)
		}
	}
	sort.Strings(out.columns)
	out.fill()
	return out
}

// MergeLastWins collapses rows sharing the same key columns. For each column the
// last non-null value in row order wins; a later null never overwrites an earlier
// value. Groups keep the position of their first row.
func (t *Table) MergeLastWins(keys ...string) *Table {
	out := &Table{columns: t.Columns()}
	index := make(map[string]int)
	for _, r := range t.rows {
		k := groupKey(r, keys)
		pos, ok := index[k]
		if !ok {
			index[k] = len(out.rows)
			cp := make(Row, len(r))
			for c, v := range r {
				cp[c] = v
			}
			out.rows = append(out.rows, cp)
			continue
		}
		merged := out.rows[pos]
		for c, v := range r {
			if v != nil {
				merged[c] = v
			}
		}
	}
	out.fill()
	return out
}

// SortBy orders rows by the given columns, ascending, stable. Nulls sort first, then
// numbers, then text. In eff_ts, values that parse as timestamps compare
// chronologically and sort before ones that do not.
func (t *Table) SortBy(cols ...string) {
	sort.SliceStable(t.rows, func(i, j int) bool {
		for _, c := range cols {
			if d := compare(c, t.rows[i][c], t.rows[j][c]); d != 0 {
				return d < 0
			}
		}
		return false
	})
}

// Canonical merges on (eff_ts, id), then sorts by (id, eff_ts).
func (t *Table) Canonical() *Table {
	out := t.MergeLastWins(ColEffTS, ColID)
	out.SortBy(ColID, ColEffTS)
	return out
}

func groupKey(r Row, keys []string) string {
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = text(r[k])
	}
	return strings.Join(parts, "\x00")
}

// Value ranks within a column. Every pair in the same rank compares the same way, so
// the ordering is total whatever order rows arrive in.
const (
	rankNull = iota
	rankNumber
	rankTime
	rankText
)

type sortKey struct {
	rank int
	num  float64
	ts   time.Time
	str  string
}

func keyOf(col string, v any) sortKey {
	switch x := v.(type) {
	case nil:
		return sortKey{rank: rankNull}
	case float64:
		return sortKey{rank: rankNumber, num: x}
	}
	str := text(v)
	if col == ColEffTS {
		if ts, ok := util.ParseTime(str); ok {
			return sortKey{rank: rankTime, ts: ts}
		}
	}
	return sortKey{rank: rankText, str: str}
}

func compare(col string, a, b any) int {
	ka, kb := keyOf(col, a), keyOf(col, b)
	if ka.rank != kb.rank {
		return cmp.Compare(ka.rank, kb.rank)
	}
	switch ka.rank {
	case rankNumber:
		return cmp.Compare(ka.num, kb.num)
	case rankTime:
		return ka.ts.Compare(kb.ts)
	case rankText:
		return strings.Compare(ka.str, kb.str)
	}
	return 0
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	default:
		return fmt.Sprint(x)
	}
}
