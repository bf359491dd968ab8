// Package query turns semantic filters into the string-encoded query options
// sent to collection endpoints.
package query

import (
	"net/url"
	"strings"
)

type kind uint8

const (
	absent kind = iota
	single
	multi
)

// Value is one filter value: absent, a single string, or a list of strings.
// The zero Value is absent.
type Value struct {
	kind  kind
	items []string
}

// Absent is a value that is dropped by Normalize.
var Absent = Value{}

// String wraps a single string. Normalize passes it through unchanged.
func String(s string) Value {
	return Value{kind: single, items: []string{s}}
}

// List wraps a collection that Normalize joins with "," in the given order.
func List(items ...string) Value {
	return Value{kind: multi, items: append([]string(nil), items...)}
}

// IsAbsent reports whether v carries no value.
func (v Value) IsAbsent() bool { return v.kind == absent }

// IsList reports whether v was built from a collection.
func (v Value) IsList() bool { return v.kind == multi }

// Items returns a copy of the wrapped strings.
func (v Value) Items() []string { return append([]string(nil), v.items...) }

func (v Value) encode() (string, bool) {
	switch v.kind {
	case single:
		if v.items[0] == "" {
			return "", false
		}
		return v.items[0], true
	case multi:
		if len(v.items) == 0 {
			return "", false
		}
		return strings.Join(v.items, ","), true
	default:
		return "", false
	}
}

// Filter is a set of named semantic values.
type Filter map[string]Value

// Options is the canonical wire form: every present key maps to one string.
type Options map[string]string

// Normalize drops absent and empty values and comma-joins lists. It never sorts and
// never mutates f.
func Normalize(f Filter) Options {
	out := make(Options, len(f))
	for k, v := range f {
		if s, ok := v.encode(); ok {
			out[k] = s
		}
	}
	return out
}

// Merge returns a new Filter with other's entries layered over f's.
func (f Filter) Merge(other Filter) Filter {
	out := make(Filter, len(f)+len(other))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Filter lifts normalized options back into a Filter of single values, so
// Normalize(o.Filter()) equals o.
func (o Options) Filter() Filter {
	f := make(Filter, len(o))
	for k, v := range o {
		f[k] = String(v)
	}
	return f
}

// Values converts o into url.Values.
func (o Options) Values() url.Values {
	vals := make(url.Values, len(o))
	for k, v := range o {
		vals.Set(k, v)
	}
	return vals
}
